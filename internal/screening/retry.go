package screening

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/mikey/llm-call-screener/internal/core"
	"go.uber.org/zap"
)

// callAdapter runs op with a per-attempt timeout, retrying ProviderErrors with
// exponential backoff. Every other error is returned after the first attempt.
func callAdapter[T any](ctx context.Context, o *Orchestrator, sessionID string, kind core.ProviderKind, provider core.ProviderID, op func(context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.cfg.InitialBackoff
	b.MaxInterval = o.cfg.MaxBackoff

	attempts := 0
	res, err := backoff.Retry(ctx, func() (T, error) {
		attempts++
		start := time.Now()
		res, err := runAttempt(ctx, o.cfg.AdapterTimeout, provider, op)
		o.metrics.RecordAdapterCall(string(kind), string(provider), err, time.Since(start))
		if err == nil {
			return res, nil
		}
		if !core.IsRetriable(err) || ctx.Err() != nil {
			return res, backoff.Permanent(err)
		}
		return res, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(o.cfg.MaxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			o.metrics.RecordRetry(string(kind), string(provider))
			o.logger.Debug("Retrying adapter call",
				zap.String("session_id", sessionID),
				zap.String("kind", string(kind)),
				zap.String("provider", string(provider)),
				zap.Int("attempt", attempts),
				zap.Duration("backoff", next),
				zap.Error(err))
		}),
	)

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	return res, err
}

// runAttempt makes one adapter call and gives up when the timeout expires,
// even if the adapter itself ignores its context
func runAttempt[T any](ctx context.Context, timeout time.Duration, provider core.ProviderID, op func(context.Context) (T, error)) (T, error) {
	var (
		attemptCtx context.Context
		cancel     context.CancelFunc
	)
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		attemptCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		val, err := op(attemptCtx)
		done <- result{val: val, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return r.val, core.NewProviderError(provider, 0, fmt.Errorf("timed out after %s: %w", timeout, r.err))
		}
		return r.val, r.err
	case <-attemptCtx.Done():
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, core.NewProviderError(provider, 0, fmt.Errorf("no response within %s", timeout))
	}
}
