// Package retry runs a single outbound HTTP call with fixed exponential backoff.
//
// A non-2xx response and a transport error are the same kind of failure: each
// consumes one attempt and, if attempts remain, triggers a backoff sleep that
// doubles after every failure. There is no jitter and no circuit breaker.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/austindbirch/realty_relay/internal/logging"
	"github.com/austindbirch/realty_relay/internal/metrics"
	"github.com/austindbirch/realty_relay/internal/tracing"
)

const (
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 300 * time.Millisecond

	// maxErrorBody caps how much of a failed response is kept for error reporting.
	maxErrorBody = 64 << 10
)

// Call performs one attempt. A returned response with a 2xx status is handed
// back to the caller unread; any other response is drained and closed.
type Call func(ctx context.Context) (*http.Response, error)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	// RetryClientErrors keeps retrying 4xx responses. When false a 4xx ends
	// the sequence immediately.
	RetryClientErrors bool
	// Sleep defaults to a context-aware timer.
	Sleep SleepFunc
}

// DefaultPolicy is 3 attempts, 300ms initial backoff, every failure retried.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       DefaultMaxAttempts,
		InitialBackoff:    DefaultInitialBackoff,
		RetryClientErrors: true,
	}
}

// StatusError is a completed exchange that returned a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

// WithRetry calls call up to maxAttempts times, sleeping initialBackoff after
// the first failure and doubling the delay after each subsequent one.
func WithRetry(ctx context.Context, call Call, maxAttempts int, initialBackoff time.Duration) (*http.Response, error) {
	p := Policy{
		MaxAttempts:       maxAttempts,
		InitialBackoff:    initialBackoff,
		RetryClientErrors: true,
	}
	return p.Do(ctx, call)
}

// Delay returns the backoff slept after the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	d := p.InitialBackoff
	if d <= 0 {
		d = DefaultInitialBackoff
	}
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

// Do runs call under the policy and returns the first 2xx response, or the
// last failure wrapped with the number of attempts made.
func (p Policy) Do(ctx context.Context, call Call) (*http.Response, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	logger := logging.Default()

	var lastErr error
	for attempt := 1; ; attempt++ {
		resp, err := call(ctx)
		status := 0
		if err == nil {
			status = resp.StatusCode
			metrics.RecordUpstreamAttempt(status)
			if status >= 200 && status < 300 {
				return resp, nil
			}
			lastErr = newStatusError(resp)
		} else {
			metrics.RecordUpstreamAttempt(0)
			lastErr = err
		}

		if attempt >= maxAttempts || !p.shouldRetry(ctx, status) {
			metrics.RecordRetriesExhausted()
			return nil, fmt.Errorf("request failed after %d attempt(s): %w", attempt, lastErr)
		}

		delay := p.Delay(attempt)
		reason := ClassifyReason(err, status)
		metrics.RecordRetry(reason)
		tracing.AddSpanEvent(ctx, "retry.backoff",
			attribute.Int("attempt", attempt),
			attribute.String("reason", reason),
			attribute.String("delay", delay.String()),
		)
		logger.WithContext(ctx).WithError(lastErr).WithFields(map[string]any{
			"attempt":   attempt,
			"remaining": maxAttempts - attempt,
			"delay":     delay.String(),
			"reason":    reason,
		}).Warn("retrying webhook request")

		if serr := sleep(ctx, delay); serr != nil {
			return nil, fmt.Errorf("retry aborted after %d attempt(s): %w", attempt, errors.Join(serr, lastErr))
		}
	}
}

func (p Policy) shouldRetry(ctx context.Context, status int) bool {
	if ctx.Err() != nil {
		return false
	}
	if status >= 400 && status < 500 && !p.RetryClientErrors {
		return false
	}
	return true
}

// Sleep blocks for d unless ctx ends first.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func newStatusError(resp *http.Response) *StatusError {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}
}

// ClassifyReason labels a failed attempt for metrics and logs.
func ClassifyReason(err error, status int) string {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "timeout"
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "timeout"
		}
		errLower := strings.ToLower(err.Error())
		if strings.Contains(errLower, "timeout") {
			return "timeout"
		}
		if strings.Contains(errLower, "connection refused") {
			return "connection_refused"
		}
		if strings.Contains(errLower, "no such host") || strings.Contains(errLower, "dns") {
			return "dns_error"
		}
		return "network"
	}
	if status >= 500 {
		return "http_5xx"
	}
	if status == http.StatusTooManyRequests {
		return "http_429"
	}
	if status >= 400 {
		return "http_4xx"
	}
	return "other"
}
