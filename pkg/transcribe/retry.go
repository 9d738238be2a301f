package transcribe

import (
	"context"
	"time"

	mderrors "github.com/minutedapp/minuted/pkg/errors"
	"github.com/minutedapp/minuted/pkg/logging"
)

// MaxAttempts is how many times a single transcription run calls the provider
// before giving up.
const MaxAttempts = 3

// RetryingProvider wraps a Provider with the stage retry policy: rate limits
// wait exponentially longer between attempts, timeouts and connection failures
// retry immediately, everything else fails on the first attempt.
type RetryingProvider struct {
	inner       Provider
	maxAttempts int
	sleep       func(context.Context, time.Duration) error
	logger      logging.Logger
}

// NewRetryingProvider wraps inner with the default retry policy.
func NewRetryingProvider(inner Provider, logger logging.Logger) *RetryingProvider {
	return &RetryingProvider{
		inner:       inner,
		maxAttempts: MaxAttempts,
		sleep:       sleepCtx,
		logger:      logger.With(logging.F("component", "transcriber_retry")),
	}
}

// Name returns the wrapped provider's identifier.
func (r *RetryingProvider) Name() string { return r.inner.Name() }

// Transcribe calls the wrapped provider up to maxAttempts times. Between
// attempts it waits 2^attempt seconds when the failure carries a backoff
// requirement, and not at all otherwise.
func (r *RetryingProvider) Transcribe(ctx context.Context, audio []byte, filename string) (*Result, error) {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		result, err := r.inner.Transcribe(ctx, audio, filename)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !mderrors.IsRetryableError(err) {
			return nil, err
		}
		if attempt == r.maxAttempts {
			break
		}

		se, _ := mderrors.AsStageError(err)
		wait := time.Duration(0)
		if mderrors.NeedsBackoff(se.Code) {
			wait = time.Duration(1<<uint(attempt)) * time.Second
		}

		r.logger.Warn("Transcription attempt failed, retrying",
			logging.F("attempt", attempt),
			logging.F("code", string(se.Code)),
			logging.F("wait", wait.String()))

		if wait > 0 {
			if err := r.sleep(ctx, wait); err != nil {
				return nil, mderrors.Classify(err, "transcription")
			}
		}
	}
	return nil, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
