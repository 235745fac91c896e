package queue

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/reports"
)

// DefaultTransientPatterns are error substrings treated as temporary storage trouble:
// dropped connections, timeouts and pool exhaustion.
var DefaultTransientPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"timeout",
	"timed out",
	"too many clients",
	"pool exhausted",
	"connection pool",
	"deadlock detected",
	"could not serialize",
}

// RetryPolicy retries one storage call while its error looks transient.
type RetryPolicy struct {
	MaxAttempts int           // Total calls including the first one (default: 5)
	BackoffBase time.Duration // Delay after the first failure, doubled each time (default: 50ms)
	Transient   []string      // Error substrings that are worth retrying
}

// DefaultRetryPolicy returns the policy used by the submission queue.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BackoffBase: 50 * time.Millisecond,
		Transient:   DefaultTransientPatterns,
	}
}

// RetryResult contains the outcome of a retried call.
type RetryResult struct {
	Attempts int
	LastErr  error
	Duration time.Duration
}

// Retries is the number of calls made after the first one.
func (r RetryResult) Retries() int {
	if r.Attempts <= 1 {
		return 0
	}
	return r.Attempts - 1
}

// IsTransient reports whether err looks like temporary storage trouble.
// Payload, duplicate and rejected errors are always permanent. Otherwise a
// network timeout is transient, and the policy's patterns are matched against
// the innermost cause only, so text wrapped around it never decides.
func (p RetryPolicy) IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, reports.ErrInvalidPayload) ||
		errors.Is(err, reports.ErrDuplicate) ||
		errors.Is(err, reports.ErrRejected) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	patterns := p.Transient
	if patterns == nil {
		patterns = DefaultTransientPatterns
	}
	msg := strings.ToLower(rootCause(err).Error())
	for _, pattern := range patterns {
		if strings.Contains(msg, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// rootCause follows single-error wrapping down to the innermost error.
func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// IsTransient classifies err with the default patterns.
func IsTransient(err error) bool {
	return DefaultRetryPolicy().IsTransient(err)
}

// backoff returns the delay after the given zero-based failed attempt.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	// Exponential: base * 2^attempt
	return p.BackoffBase * time.Duration(1<<uint(attempt))
}

// Do calls fn until it succeeds, returns a permanent error, or MaxAttempts is
// reached. The last error is returned unchanged so callers can classify it again.
// The logger is taken from ctx.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) (RetryResult, error) {
	logger := zerolog.Ctx(ctx).With().Str("op", op).Logger()
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	start := time.Now()
	result := RetryResult{}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		result.Attempts = attempt + 1

		err := fn(ctx)
		if err == nil {
			result.Duration = time.Since(start)
			return result, nil
		}
		result.LastErr = err

		if !p.IsTransient(err) {
			result.Duration = time.Since(start)
			return result, err
		}
		if attempt == maxAttempts-1 {
			break
		}

		delay := p.backoff(attempt)
		storageRetries.WithLabelValues(op).Inc()
		logger.Warn().Err(err).Int("attempt", attempt+1).Dur("delay", delay).Msg("transient storage error, backing off")

		select {
		case <-ctx.Done():
			result.Duration = time.Since(start)
			return result, ctx.Err()
		case <-time.After(delay):
		}
	}

	result.Duration = time.Since(start)
	logger.Error().Err(result.LastErr).Int("attempts", result.Attempts).Msg("storage retries exhausted")
	return result, result.LastErr
}
