// Package gateway opens stores and decorates them with per-call timeouts,
// retries of transport failures and an optional client-side rate limit.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adfharrison1/restodb/pkg/domain"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// Defaults for the call policy.
const (
	DefaultTimeout = 10 * time.Second
	DefaultRetries = 3
	DefaultBackoff = 200 * time.Millisecond
)

var _ domain.Gateway = (*Resilient)(nil)

// Resilient bounds every call of the wrapped gateway by a timeout and retries
// connection errors with exponential backoff. When retries are exhausted the
// error matches domain.ErrStoreUnavailable.
type Resilient struct {
	next     domain.Gateway
	timeout  time.Duration
	retries  int
	initial  time.Duration
	maxDelay time.Duration
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// Option configures a Resilient gateway.
type Option func(*Resilient)

// WithTimeout bounds each attempt of a call.
func WithTimeout(d time.Duration) Option {
	return func(r *Resilient) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRetries sets how many times a connection error is retried.
func WithRetries(n int) Option {
	return func(r *Resilient) {
		if n >= 0 {
			r.retries = n
		}
	}
}

// WithBackoff sets the first retry delay; later delays grow exponentially.
func WithBackoff(initial time.Duration) Option {
	return func(r *Resilient) {
		if initial > 0 {
			r.initial = initial
		}
	}
}

// WithRateLimit caps calls per second with the given burst. Zero disables it.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(r *Resilient) {
		if perSecond <= 0 {
			r.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithLogger sets the logger for retries and give-ups.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resilient) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResilient wraps next.
func NewResilient(next domain.Gateway, opts ...Option) *Resilient {
	r := &Resilient{
		next:     next,
		timeout:  DefaultTimeout,
		retries:  DefaultRetries,
		initial:  DefaultBackoff,
		maxDelay: 5 * time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Unwrap returns the decorated gateway.
func (r *Resilient) Unwrap() domain.Gateway {
	return r.next
}

func (r *Resilient) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initial
	b.MaxInterval = r.maxDelay
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.retries)), ctx)
}

// schemaChanges are the calls whose timeout fails the call instead of being
// retried: the server may still be building when the client gives up.
var schemaChanges = map[string]bool{
	"createCollection": true,
	"createIndex":      true,
	"dropIndex":        true,
}

// do runs fn under the call policy. A timed-out schema change is returned as
// domain.ErrTimeout; other timeouts count as connection errors.
func (r *Resilient) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := 0
	operation := func() error {
		attempts++
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(fmt.Errorf("%w: rate limiter: %w", domain.ErrConnection, err))
			}
		}

		start := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := fn(callCtx)
		cancel()
		observeCall(op, err, time.Since(start))

		switch {
		case err == nil:
			return nil
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil && schemaChanges[op]:
			r.logger.Warn("gateway.call.timeout", "op", op, "timeout", r.timeout, "err", err)
			return backoff.Permanent(fmt.Errorf("%w: %s did not finish within %s: %v", domain.ErrTimeout, op, r.timeout, err))
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil && !errors.Is(err, domain.ErrConnection):
			err = fmt.Errorf("%w: %s timed out after %s: %w", domain.ErrConnection, op, r.timeout, err)
		case !domain.IsTransient(err):
			return backoff.Permanent(err)
		}
		r.logger.Warn("gateway.call.retry", "op", op, "attempt", attempts, "err", err)
		RetryCount.WithLabelValues(op).Inc()
		return err
	}

	err := backoff.Retry(operation, r.newBackOff(ctx))
	if err != nil && domain.IsTransient(err) {
		r.logger.Error("gateway.unavailable", "op", op, "attempts", attempts, "err", err)
		return fmt.Errorf("%w: %s failed after %d attempts: %w", domain.ErrStoreUnavailable, op, attempts, err)
	}
	return err
}

func (r *Resilient) ListCollections(ctx context.Context) ([]string, error) {
	var out []string
	err := r.do(ctx, "listCollections", func(ctx context.Context) error {
		var err error
		out, err = r.next.ListCollections(ctx)
		return err
	})
	return out, err
}

func (r *Resilient) CreateCollection(ctx context.Context, name string) error {
	return r.do(ctx, "createCollection", func(ctx context.Context) error {
		return r.next.CreateCollection(ctx, name)
	})
}

func (r *Resilient) ListIndexes(ctx context.Context, collection string) ([]domain.LiveIndexState, error) {
	var out []domain.LiveIndexState
	err := r.do(ctx, "listIndexes", func(ctx context.Context) error {
		var err error
		out, err = r.next.ListIndexes(ctx, collection)
		return err
	})
	return out, err
}

func (r *Resilient) CreateIndex(ctx context.Context, collection string, spec domain.IndexSpec) error {
	return r.do(ctx, "createIndex", func(ctx context.Context) error {
		return r.next.CreateIndex(ctx, collection, spec)
	})
}

func (r *Resilient) DropIndex(ctx context.Context, collection, name string) error {
	return r.do(ctx, "dropIndex", func(ctx context.Context) error {
		return r.next.DropIndex(ctx, collection, name)
	})
}

func (r *Resilient) Find(ctx context.Context, q domain.QuerySpec) ([]domain.Document, error) {
	var out []domain.Document
	err := r.do(ctx, "find", func(ctx context.Context) error {
		var err error
		out, err = r.next.Find(ctx, q)
		return err
	})
	return out, err
}

func (r *Resilient) Explain(ctx context.Context, q domain.QuerySpec) (domain.Document, error) {
	var out domain.Document
	err := r.do(ctx, "explain", func(ctx context.Context) error {
		var err error
		out, err = r.next.Explain(ctx, q)
		return err
	})
	return out, err
}

// Close is not retried.
func (r *Resilient) Close(ctx context.Context) error {
	return r.next.Close(ctx)
}
