package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const DefaultTimeout = 30 * time.Second

type Options struct {
	Headless bool
	ProxyURL string
	ExecPath string
	// Timeout bounds every single tab primitive (navigation, waits, input).
	Timeout      time.Duration
	WindowWidth  int
	WindowHeight int
}

func DefaultOptions() Options {
	return Options{
		Headless:     true,
		Timeout:      DefaultTimeout,
		WindowWidth:  1366,
		WindowHeight: 768,
	}
}

// flags returns the Chrome switches applied on top of chromedp's defaults.
func (o Options) flags() map[string]any {
	f := map[string]any{
		"disable-gpu":            true,
		"no-sandbox":             true,
		"headless":               o.Headless,
		"disable-blink-features": "AutomationControlled",
		"exclude-switches":       "enable-automation",
		"disable-extensions":     true,
	}
	if o.WindowWidth > 0 && o.WindowHeight > 0 {
		f["window-size"] = fmt.Sprintf("%d,%d", o.WindowWidth, o.WindowHeight)
	}
	if o.ProxyURL != "" {
		f["proxy-server"] = o.ProxyURL
	}
	return f
}

func (o Options) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	for name, value := range o.flags() {
		opts = append(opts, chromedp.Flag(name, value))
	}
	if o.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecPath))
	}
	return opts
}

// Chrome is an Engine backed by a single chromedp-controlled browser process.
type Chrome struct {
	logger      *zap.Logger
	timeout     time.Duration
	browserCtx  context.Context
	cancelAlloc context.CancelFunc
	cancelBrows context.CancelFunc
	closeOnce   sync.Once
}

// Launch starts the browser process. The returned Chrome outlives ctx only
// until Close is called.
func Launch(ctx context.Context, logger *zap.Logger, opts Options) (*Chrome, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			logger.Debug("chromedp error", zap.String("msg", fmt.Sprintf(format, args...)))
		}),
	)

	// The first Run on a fresh context starts the process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	logger.Info("launched the browser",
		zap.Bool("headless", opts.Headless),
		zap.Bool("proxy", opts.ProxyURL != ""),
		zap.Duration("timeout", opts.Timeout))

	return &Chrome{
		logger:      logger,
		timeout:     opts.Timeout,
		browserCtx:  browserCtx,
		cancelAlloc: allocCancel,
		cancelBrows: browserCancel,
	}, nil
}

func (c *Chrome) NewTab(ctx context.Context) (Tab, error) {
	tabCtx, cancel := chromedp.NewContext(c.browserCtx)
	// The first Run attaches the target; it must see tabCtx itself, not a
	// timeout child, or the tab dies with the child.
	stop := context.AfterFunc(ctx, cancel)
	err := chromedp.Run(tabCtx)
	stop()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return &chromeTab{ctx: tabCtx, cancel: cancel, timeout: c.timeout}, nil
}

// Close shuts the browser down. It ends every tab it handed out.
func (c *Chrome) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = chromedp.Cancel(c.browserCtx)
		c.cancelBrows()
		c.cancelAlloc()
		c.logger.Info("closed the browser")
	})
	return err
}

type chromeTab struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	mu      sync.Mutex
	closed  bool
}

// run executes actions on the tab, bounded by the engine timeout and by the
// caller's ctx.
func (t *chromeTab) run(ctx context.Context, actions ...chromedp.Action) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrTabClosed
	}

	opCtx, cancel := context.WithTimeout(t.ctx, t.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(opCtx, actions...)
}

func (t *chromeTab) Navigate(ctx context.Context, url string) error {
	return t.run(ctx, chromedp.Navigate(url))
}

func (t *chromeTab) SetUserAgent(ctx context.Context, ua string) error {
	return t.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return emulation.SetUserAgentOverride(ua).
			WithAcceptLanguage("en-US,en;q=0.9").
			Do(ctx)
	}))
}

// WaitReady waits until selector matches a node in the DOM, whether or not
// that node is rendered.
func (t *chromeTab) WaitReady(ctx context.Context, selector string) error {
	return t.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (t *chromeTab) Text(ctx context.Context, selector string) (string, error) {
	var text string
	if err := t.run(ctx, chromedp.Text(selector, &text, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return text, nil
}

func (t *chromeTab) Focus(ctx context.Context, selector string) error {
	return t.run(ctx, chromedp.Focus(selector, chromedp.ByQuery))
}

func (t *chromeTab) Type(ctx context.Context, text string) error {
	return t.run(ctx, chromedp.KeyEvent(text))
}

func (t *chromeTab) Submit(ctx context.Context, selector string) error {
	return t.run(ctx, chromedp.Submit(selector, chromedp.ByQuery))
}

func (t *chromeTab) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.cancel()
	return nil
}
