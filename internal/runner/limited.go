package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// errBudgetExpired is the cancellation cause set when Limits.Timeout runs out.
var errBudgetExpired = errors.New("run budget expired")

// Limits configures admission control for a LimitedRunner.
type Limits struct {
	// Slots caps concurrently running processes. Runners given the same
	// semaphore share one cap. Nil means unlimited.
	Slots *semaphore.Weighted
	// Limiter throttles process launches. Nil means unlimited.
	Limiter *rate.Limiter
	// Timeout bounds the admission wait and the run together. Zero means
	// the caller's context is the only bound.
	Timeout time.Duration
}

// NewSlots returns a semaphore admitting n processes, or nil when n <= 0.
func NewSlots(n int) *semaphore.Weighted {
	if n <= 0 {
		return nil
	}
	return semaphore.NewWeighted(int64(n))
}

// NewLimiter returns a launch limiter, or nil when rps <= 0.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// LimitedRunner wraps a Runner with admission control: a launch rate limit,
// a cap on concurrently running processes and a deadline covering both the
// wait and the run. Waiting honours ctx.
type LimitedRunner struct {
	next   Runner
	limits Limits
}

func NewLimitedRunner(next Runner, limits Limits) *LimitedRunner {
	return &LimitedRunner{next: next, limits: limits}
}

func (l *LimitedRunner) Run(ctx context.Context, c Command) (Result, error) {
	if l.limits.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, l.limits.Timeout, errBudgetExpired)
		defer cancel()
	}

	if l.limits.Limiter != nil {
		if err := l.limits.Limiter.Wait(ctx); err != nil {
			return Result{}, l.admissionError(ctx, "rate limit wait canceled", err)
		}
	}
	if l.limits.Slots != nil {
		if err := l.limits.Slots.Acquire(ctx, 1); err != nil {
			return Result{}, l.admissionError(ctx, "waiting for a free process slot", err)
		}
		defer l.limits.Slots.Release(1)
	}

	res, err := l.next.Run(ctx, c)
	if err != nil && !errors.Is(err, ErrTimeout) && l.budgetExpired(ctx) {
		err = fmt.Errorf("%s: %w after %s: %w", c.Name, ErrTimeout, l.limits.Timeout, err)
	}
	return res, err
}

func (l *LimitedRunner) admissionError(ctx context.Context, msg string, err error) error {
	if l.budgetExpired(ctx) {
		return fmt.Errorf("%s: %w after %s", msg, ErrTimeout, l.limits.Timeout)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", msg, ctxErr)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func (l *LimitedRunner) budgetExpired(ctx context.Context) bool {
	return l.limits.Timeout > 0 && errors.Is(context.Cause(ctx), errBudgetExpired)
}
