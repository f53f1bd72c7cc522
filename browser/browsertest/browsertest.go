// Package browsertest provides a scripted, in-memory browser.Engine for tests.
// Pages are plain HTML documents queried with goquery; no JavaScript runs.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"termprobe/browser"
)

var (
	ErrTimeout   = errors.New("browsertest: timed out waiting for selector")
	ErrNoPage    = errors.New("browsertest: no page scripted for url")
	ErrNoFocus   = errors.New("browsertest: no focused element")
	ErrNotLoaded = errors.New("browsertest: no document loaded")
)

// SubmitFunc renders the page shown after the search form is submitted with
// the given query.
type SubmitFunc func(query string) string

// FailFunc is consulted before every tab operation; a non-nil return fails it.
// op is the method name, e.g. "Navigate" or "WaitReady".
type FailFunc func(op, arg string) error

// Engine is a fake browser.Engine. Fields must be set before the first NewTab.
type Engine struct {
	// Pages maps URLs to the HTML served on navigation.
	Pages map[string]string
	// OnSubmit renders the results page. If nil, submitting yields an empty body.
	OnSubmit SubmitFunc
	Fail     FailFunc
	// NewTabErr, when set, is returned by NewTab.
	NewTabErr error

	mu     sync.Mutex
	tabs   []*Tab
	closed bool
}

func (e *Engine) NewTab(ctx context.Context) (browser.Tab, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.NewTabErr != nil {
		return nil, e.NewTabErr
	}
	if e.closed {
		return nil, errors.New("browsertest: engine closed")
	}
	t := &Tab{engine: e}
	e.tabs = append(e.tabs, t)
	return t, nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Tabs returns every tab opened so far.
func (e *Engine) Tabs() []*Tab {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Tab(nil), e.tabs...)
}

func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Tab is a fake browser.Tab.
type Tab struct {
	engine *Engine

	mu        sync.Mutex
	doc       *goquery.Document
	url       string
	focused   string
	typed     map[string]string
	userAgent string
	ops       []string
	closed    bool
}

func (t *Tab) record(op, arg string) error {
	t.mu.Lock()
	t.ops = append(t.ops, op)
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return browser.ErrTabClosed
	}
	if f := t.engine.Fail; f != nil {
		return f(op, arg)
	}
	return nil
}

func (t *Tab) load(html string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("parse page: %w", err)
	}
	t.doc = doc
	t.typed = map[string]string{}
	t.focused = ""
	return nil
}

func (t *Tab) Navigate(ctx context.Context, url string) error {
	if err := t.record("Navigate", url); err != nil {
		return err
	}
	html, ok := t.engine.Pages[url]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoPage, url)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.url = url
	return t.load(html)
}

func (t *Tab) SetUserAgent(ctx context.Context, ua string) error {
	if err := t.record("SetUserAgent", ua); err != nil {
		return err
	}
	t.mu.Lock()
	t.userAgent = ua
	t.mu.Unlock()
	return nil
}

// WaitReady succeeds as soon as selector matches any node. Hidden nodes
// (display:none, the hidden attribute) count, as in a real DOM query.
func (t *Tab) WaitReady(ctx context.Context, selector string) error {
	if err := t.record("WaitReady", selector); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.doc == nil {
		return ErrNotLoaded
	}
	if t.doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%w: %s", ErrTimeout, selector)
	}
	return nil
}

func (t *Tab) Text(ctx context.Context, selector string) (string, error) {
	if err := t.record("Text", selector); err != nil {
		return "", err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.doc == nil {
		return "", ErrNotLoaded
	}
	sel := t.doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", fmt.Errorf("%w: %s", ErrTimeout, selector)
	}
	return strings.TrimSpace(sel.Text()), nil
}

func (t *Tab) Focus(ctx context.Context, selector string) error {
	if err := t.record("Focus", selector); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.doc == nil {
		return ErrNotLoaded
	}
	if t.doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%w: %s", ErrTimeout, selector)
	}
	t.focused = selector
	return nil
}

func (t *Tab) Type(ctx context.Context, text string) error {
	if err := t.record("Type", text); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.focused == "" {
		return ErrNoFocus
	}
	t.typed[t.focused] += text
	return nil
}

// Submit renders OnSubmit with whatever was typed into the focused element.
func (t *Tab) Submit(ctx context.Context, selector string) error {
	if err := t.record("Submit", selector); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.doc == nil {
		return ErrNotLoaded
	}
	if t.doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%w: %s", ErrTimeout, selector)
	}
	query := t.typed[t.focused]
	html := ""
	if t.engine.OnSubmit != nil {
		html = t.engine.OnSubmit(query)
	}
	return t.load(html)
}

func (t *Tab) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Ops returns the operations issued so far, in order.
func (t *Tab) Ops() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.ops...)
}

func (t *Tab) UserAgent() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.userAgent
}

func (t *Tab) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

var _ browser.Engine = (*Engine)(nil)
var _ browser.Tab = (*Tab)(nil)
