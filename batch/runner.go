package batch

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"termprobe/metrics"
	"termprobe/search"
	"termprobe/site"
)

const DefaultMaxAttempts = 4

// Attempter runs one search attempt for one term.
type Attempter interface {
	Attempt(ctx context.Context, term string) (search.Outcome, error)
}

type Option func(*Runner)

func WithMaxAttempts(n int) Option {
	return func(r *Runner) { r.maxAttempts = n }
}

func WithRand(rnd *rand.Rand) Option {
	return func(r *Runner) { r.rnd = rnd }
}

func WithSleep(fn search.SleepFunc) Option {
	return func(r *Runner) { r.sleep = fn }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithSite labels logs and metrics with the site name.
func WithSite(name string) Option {
	return func(r *Runner) { r.site = name }
}

// Runner searches a list of terms one after another, retrying failed attempts
// and pacing itself between terms.
type Runner struct {
	attempter   Attempter
	pacing      site.Pacing
	logger      *zap.Logger
	maxAttempts int
	rnd         *rand.Rand
	sleep       search.SleepFunc
	metrics     *metrics.Recorder
	site        string
}

func NewRunner(attempter Attempter, pacing site.Pacing, logger *zap.Logger, opts ...Option) *Runner {
	r := &Runner{
		attempter:   attempter,
		pacing:      pacing,
		logger:      logger,
		maxAttempts: DefaultMaxAttempts,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:       search.Sleep,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.maxAttempts < 1 {
		r.maxAttempts = 1
	}
	return r
}

// Delay draws the wait before the next term, uniformly from
// [pacing.Min, pacing.Max] in whole milliseconds.
func (r *Runner) Delay() time.Duration {
	lo := r.pacing.Min.Milliseconds()
	hi := r.pacing.Max.Milliseconds()
	if hi <= lo {
		return time.Duration(lo) * time.Millisecond
	}
	return time.Duration(lo+r.rnd.Int63n(hi-lo+1)) * time.Millisecond
}

// Run returns exactly one result per term, in input order. A term whose every
// attempt fails is recorded as Unknown. A configuration error aborts the run.
// If ctx is cancelled the terms not yet searched are recorded as Unknown and
// ctx's error is returned with the full result set.
func (r *Runner) Run(ctx context.Context, terms []string) (Results, error) {
	logger := GetContextLogger(ctx, r.logger).With(zap.String("site", r.site))
	results := make(Results, 0, len(terms))

	for i, term := range terms {
		if err := ctx.Err(); err != nil {
			return fillUnknown(results, terms[i:]), err
		}

		outcome, err := r.runTerm(ctx, logger, term)
		if err != nil {
			return nil, err
		}
		results = append(results, Result{Term: term, Outcome: outcome})
		r.metrics.Outcome(r.site, outcome.String())

		if i == len(terms)-1 {
			break
		}
		delay := r.Delay()
		r.metrics.Pacing(delay)
		logger.Debug("pacing before next term", zap.Duration("delay", delay))
		if err := r.sleep(ctx, delay); err != nil {
			return fillUnknown(results, terms[i+1:]), err
		}
	}

	return results, ctx.Err()
}

func (r *Runner) runTerm(ctx context.Context, logger *zap.Logger, term string) (search.Outcome, error) {
	logger = logger.With(zap.String("term", term))
	logger.Debug("searching term")

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		attempts = attempt
		start := time.Now()
		outcome, err := r.attempter.Attempt(ctx, term)
		r.metrics.Attempt(r.site, time.Since(start), err)
		if err == nil {
			logger.Info("term searched",
				zap.Stringer("outcome", outcome),
				zap.Int("attempt", attempt))
			return outcome, nil
		}

		var cfgErr *site.ConfigurationError
		if errors.As(err, &cfgErr) {
			return search.Unknown, err
		}

		lastErr = err
		fields := []zap.Field{
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.maxAttempts),
			zap.Error(err),
		}
		var failed *search.AttemptFailed
		if errors.As(err, &failed) {
			fields = append(fields, zap.String("step", failed.Step))
		}
		logger.Warn("search attempt failed", fields...)

		if ctx.Err() != nil {
			break
		}
	}

	if ctx.Err() != nil {
		logger.Warn("term interrupted, recording unknown",
			zap.Int("attempts", attempts),
			zap.Error(lastErr))
		return search.Unknown, nil
	}
	logger.Error("retry budget exhausted, recording unknown",
		zap.Int("attempts", attempts),
		zap.Error(lastErr))
	return search.Unknown, nil
}

func fillUnknown(results Results, rest []string) Results {
	for _, term := range rest {
		results = append(results, Result{Term: term, Outcome: search.Unknown})
	}
	return results
}
