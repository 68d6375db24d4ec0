package browser

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/jobharvest/harvester/internal/domain"
	"github.com/jobharvest/harvester/internal/monitoring"
)

const (
	// MaxAttempts is the number of tries per URL before a FetchError.
	MaxAttempts  = 3
	jitterFactor = 0.3 // +/- 30%
)

// FetchOptions tunes the waits around each navigation.
type FetchOptions struct {
	Backoff   time.Duration // base wait between attempts, jittered
	SettleMin time.Duration // render settle delay after a successful navigation
	SettleMax time.Duration
}

// Fetcher acquires rendered pages through one Session, retrying transient
// failures. Calls must be sequential.
type Fetcher struct {
	session Session
	opts    FetchOptions
	metrics *monitoring.Metrics
	logger  *zap.Logger

	sleep  func(ctx context.Context, d time.Duration) error
	random func() float64
}

// NewFetcher wraps session with retry and settle handling.
func NewFetcher(session Session, opts FetchOptions, m *monitoring.Metrics, logger *zap.Logger) *Fetcher {
	if opts.SettleMax < opts.SettleMin {
		opts.SettleMax = opts.SettleMin
	}
	return &Fetcher{
		session: session,
		opts:    opts,
		metrics: m,
		logger:  logger,
		sleep:   sleepContext,
		random:  rand.Float64,
	}
}

// Fetch returns the rendered page for url. After MaxAttempts failures it
// returns a *domain.FetchError carrying the last cause. Cancelling ctx stops
// further retries but never interrupts a navigation already in flight.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*RenderedPage, error) {
	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := f.backoffDelay()
			f.logger.Warn("retrying fetch",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if err := f.sleep(ctx, delay); err != nil {
				return nil, &domain.FetchError{URL: url, Attempts: attempt - 1, Err: fmt.Errorf("retry cancelled: %w", err)}
			}
		}

		html, err := f.attempt(ctx, url)
		if err == nil {
			f.metrics.IncFetchAttempt("success")
			return &RenderedPage{URL: url, HTML: html}, nil
		}
		f.metrics.IncFetchAttempt("failure")
		lastErr = err
		if ctx.Err() != nil {
			return nil, &domain.FetchError{URL: url, Attempts: attempt, Err: lastErr}
		}
	}

	return nil, &domain.FetchError{URL: url, Attempts: MaxAttempts, Err: lastErr}
}

func (f *Fetcher) attempt(ctx context.Context, url string) (string, error) {
	if err := f.session.Navigate(ctx, url); err != nil {
		return "", err
	}
	// Settling belongs to the current URL, so it ignores cancellation.
	if d := f.settleDelay(); d > 0 {
		_ = f.sleep(context.WithoutCancel(ctx), d)
	}
	return f.session.HTML(ctx)
}

// backoffDelay applies +/- 30% jitter to the base delay so request timing
// is not uniform.
func (f *Fetcher) backoffDelay() time.Duration {
	if f.opts.Backoff <= 0 {
		return 0
	}
	jitter := float64(f.opts.Backoff) * jitterFactor
	return time.Duration(float64(f.opts.Backoff) + (f.random()*2-1)*jitter)
}

func (f *Fetcher) settleDelay() time.Duration {
	span := f.opts.SettleMax - f.opts.SettleMin
	if span <= 0 {
		return f.opts.SettleMin
	}
	return f.opts.SettleMin + time.Duration(f.random()*float64(span))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
