// Package runner repeats one extraction N times over a bounded worker pool.
package runner

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/jackzampolin/invex/internal/extract"
	"github.com/jackzampolin/invex/internal/providers"
	"github.com/jackzampolin/invex/internal/schema"
)

// Defaults applied by New for zero config values.
const (
	DefaultConcurrency = 5
	DefaultRetryDelay  = time.Second
)

// Observer is called once per completed attempt, from the worker goroutine
// that ran it. It must be safe for concurrent use.
type Observer func(extract.Result)

// Config configures a Runner.
type Config struct {
	Concurrency    int           // max attempts in flight (default 5, 1 = sequential)
	AttemptTimeout time.Duration // per attempt, including retries of that attempt; 0 = none

	// MaxRetries is the number of extra calls made for an attempt that failed
	// with a transport error. Parse errors are never retried.
	MaxRetries int
	RetryDelay time.Duration // base of the exponential backoff (default 1s)

	// RequestsPerMinute paces model calls across all workers; 0 = unlimited.
	RequestsPerMinute int

	Observer Observer
}

// Runner executes extraction attempts. It is safe for concurrent use; the
// rate limiter is shared by every batch run through it.
type Runner struct {
	cfg     Config
	limiter *providers.RateLimiter
	logger  *slog.Logger
}

// New creates a runner.
func New(cfg Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	return &Runner{
		cfg:     cfg,
		limiter: providers.NewRateLimiter(cfg.RequestsPerMinute),
		logger:  logger,
	}
}

// WithObserver returns a runner that reports to obs and shares r's rate
// limiter, so pacing holds across every batch derived from r.
func (r *Runner) WithObserver(obs Observer) *Runner {
	cp := *r
	cp.cfg.Observer = obs
	return &cp
}

// Run performs n attempts and returns their results ordered by RunIndex.
//
// When ctx is cancelled, attempts in flight or not yet started are dropped
// and Run returns the completed results together with ctx.Err().
func (r *Runner) Run(ctx context.Context, ex extract.Extractor, doc string, s *schema.Extraction, m extract.ModelConfig, n int) ([]extract.Result, error) {
	if err := validate(ex, s, n); err != nil {
		return nil, err
	}
	logger := r.logger.With("extractor", string(ex.Kind()), "model", m.Key)
	logger.Info("batch starting", "runs", n, "concurrency", min(r.cfg.Concurrency, n))
	start := time.Now()

	results := make([]extract.Result, n)
	completed := make([]bool, n)
	indices := make(chan int)

	var wg sync.WaitGroup
	for range min(r.cfg.Concurrency, n) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				if res, ok := r.attempt(ctx, logger, ex, doc, s, m, i); ok {
					results[i] = res
					completed[i] = true
				}
			}
		}()
	}

feed:
	for i := range n {
		select {
		case indices <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(indices)
	wg.Wait()

	out := make([]extract.Result, 0, n)
	for i, ok := range completed {
		if ok {
			out = append(out, results[i])
		}
	}

	logger.Info("batch finished",
		"completed", len(out),
		"failed", countFailed(out),
		"elapsed_ms", time.Since(start).Milliseconds())

	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

// Seq yields the n attempts one at a time, in RunIndex order. Nothing is
// called until the sequence is ranged over, and each range issues a fresh
// batch. It stops early when ctx is cancelled.
func (r *Runner) Seq(ctx context.Context, ex extract.Extractor, doc string, s *schema.Extraction, m extract.ModelConfig, n int) iter.Seq[extract.Result] {
	return func(yield func(extract.Result) bool) {
		if validate(ex, s, n) != nil {
			return
		}
		logger := r.logger.With("extractor", string(ex.Kind()), "model", m.Key)
		for i := range n {
			res, ok := r.attempt(ctx, logger, ex, doc, s, m, i)
			if !ok || !yield(res) {
				return
			}
		}
	}
}

func validate(ex extract.Extractor, s *schema.Extraction, n int) error {
	if n < 1 {
		return fmt.Errorf("run count must be at least 1, got %d", n)
	}
	if ex == nil {
		return errors.New("extractor is required")
	}
	if s == nil {
		return errors.New("schema is required")
	}
	return nil
}

// attempt runs one indexed attempt with transport retries. It reports false
// when ctx was cancelled before the attempt completed.
func (r *Runner) attempt(ctx context.Context, logger *slog.Logger, ex extract.Extractor, doc string, s *schema.Extraction, m extract.ModelConfig, idx int) (extract.Result, bool) {
	if ctx.Err() != nil {
		return extract.Result{}, false
	}

	actx := ctx
	if r.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, r.cfg.AttemptTimeout)
		defer cancel()
	}

	var res extract.Result
	calls := 0
	_ = retry.Do(
		func() error {
			if !r.limiter.TryConsume() {
				logger.Debug("waiting for rate limit", "run", idx)
				if err := r.limiter.Wait(actx); err != nil {
					return retry.Unrecoverable(err)
				}
			}
			if err := actx.Err(); err != nil {
				return retry.Unrecoverable(err)
			}
			calls++
			res = ex.Extract(actx, doc, s, m)
			if res.Err == nil || res.Err.Kind != extract.TransportError || actx.Err() != nil {
				return nil
			}
			if rl, ok := providers.IsRateLimitError(res.Err); ok {
				r.limiter.Record429(rl.RetryAfter)
			}
			return res.Err
		},
		retry.Context(actx),
		retry.Attempts(uint(r.cfg.MaxRetries+1)),
		retry.Delay(r.cfg.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("retrying attempt", "run", idx, "retry", n+1, "error", err)
		}),
	)

	if ctx.Err() != nil {
		return extract.Result{}, false
	}
	if errors.Is(actx.Err(), context.DeadlineExceeded) && (calls == 0 || transportFailed(res)) {
		res = timedOut(res, ex.Kind(), m, r.cfg.AttemptTimeout, actx.Err())
	}
	res.RunIndex = idx
	res.Attempts = calls

	if res.Err != nil {
		logger.Warn("attempt failed", "run", idx, "attempts", calls, "error_kind", res.Err.Kind, "error", res.Err.Message)
	} else {
		logger.Debug("attempt complete", "run", idx, "attempts", calls, "elapsed_ms", res.Duration.Milliseconds())
	}
	if r.cfg.Observer != nil {
		r.cfg.Observer(res)
	}
	return res, true
}

func transportFailed(res extract.Result) bool {
	return res.Err != nil && res.Err.Kind == extract.TransportError
}

func timedOut(res extract.Result, kind extract.Kind, m extract.ModelConfig, d time.Duration, cause error) extract.Result {
	if res.Extractor == "" {
		res.Extractor = kind
		res.Model = m.Key
	}
	res.Values = nil
	res.Err = &extract.Error{
		Kind:    extract.TransportError,
		Message: fmt.Sprintf("timeout after %s", d),
		Cause:   cause,
	}
	return res
}

func countFailed(results []extract.Result) int {
	n := 0
	for _, res := range results {
		if res.Failed() {
			n++
		}
	}
	return n
}
