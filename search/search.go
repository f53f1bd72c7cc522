package search

import (
	"context"
	"time"

	"go.uber.org/zap"

	"termprobe/browser"
	"termprobe/site"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/120.0.0.0 Safari/537.36"

	// DefaultHumanDelay is the pause between UI steps. It is fixed, not
	// randomized, and is not meant as bot-detection evasion.
	DefaultHumanDelay = 250 * time.Millisecond
)

type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type Option func(*Session)

func WithUserAgent(ua string) Option {
	return func(s *Session) { s.userAgent = ua }
}

func WithHumanDelay(d time.Duration) Option {
	return func(s *Session) { s.humanDelay = d }
}

func WithSleep(fn SleepFunc) Option {
	return func(s *Session) { s.sleep = fn }
}

// Session binds one site definition to one long-lived browser tab.
type Session struct {
	engine     browser.Engine
	site       site.Definition
	logger     *zap.Logger
	userAgent  string
	humanDelay time.Duration
	sleep      SleepFunc
	tab        browser.Tab
}

func New(engine browser.Engine, def site.Definition, logger *zap.Logger, opts ...Option) *Session {
	s := &Session{
		engine:     engine,
		site:       def,
		logger:     logger,
		userAgent:  DefaultUserAgent,
		humanDelay: DefaultHumanDelay,
		sleep:      Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Site() site.Definition { return s.site }

// Open validates the site and acquires the single tab every attempt reuses.
func (s *Session) Open(ctx context.Context) error {
	if s.tab != nil {
		return nil
	}
	if err := site.Validate(s.site); err != nil {
		return err
	}

	tab, err := s.engine.NewTab(ctx)
	if err != nil {
		return &SessionInitError{Err: err}
	}
	if err := tab.SetUserAgent(ctx, s.userAgent); err != nil {
		_ = tab.Close()
		return &SessionInitError{Err: err}
	}
	s.tab = tab

	s.logger.Debug("search session open",
		zap.String("site", s.site.Name()),
		zap.String("user_agent", s.userAgent))
	return nil
}

// Attempt runs the search procedure once for term. It never retries.
func (s *Session) Attempt(ctx context.Context, term string) (Outcome, error) {
	if s.tab == nil {
		return Unknown, &AttemptFailed{Term: term, Step: "open", Err: ErrNotOpen}
	}
	def := s.site
	tab := s.tab

	steps := []struct {
		name string
		fn   func() error
	}{
		{"navigate", func() error { return tab.Navigate(ctx, def.StartURL()) }},
		{"before_search", func() error { return def.BeforeSearch(ctx, tab, term) }},
		{"wait_input", func() error { return tab.WaitReady(ctx, def.SearchInputSelector()) }},
		{"human_delay", func() error { return s.sleep(ctx, s.humanDelay) }},
		{"focus", func() error { return tab.Focus(ctx, def.SearchInputSelector()) }},
		{"human_delay", func() error { return s.sleep(ctx, s.humanDelay) }},
		{"type", func() error { return tab.Type(ctx, term) }},
		{"human_delay", func() error { return s.sleep(ctx, s.humanDelay) }},
		{"submit", func() error { return tab.Submit(ctx, def.SearchSubmitSelector()) }},
		{"wait_results", func() error { return tab.WaitReady(ctx, def.ResultsSelector()) }},
		{"after_search", func() error { return def.AfterSearch(ctx, tab, term) }},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return Unknown, &AttemptFailed{Term: term, Step: step.name, Err: err}
		}
	}

	text, err := tab.Text(ctx, def.ResultsSelector())
	if err != nil {
		return Unknown, &AttemptFailed{Term: term, Step: "read_results", Err: err}
	}

	outcome := Classify(text, def.FoundPattern(), def.NotFoundPattern())
	s.logger.Debug("search classified",
		zap.String("term", term),
		zap.Stringer("outcome", outcome),
		zap.Int("text_length", len(text)))
	return outcome, nil
}

// Close releases the session's tab. The engine itself is closed by its owner.
func (s *Session) Close() error {
	if s.tab == nil {
		return nil
	}
	err := s.tab.Close()
	s.tab = nil
	return err
}
