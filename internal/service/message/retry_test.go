package message

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"

	"meta-relay/internal/config"
	"meta-relay/internal/graph"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var _ net.Error = timeoutError{}

func newTestRetryHandler() *RetryHandler {
	return NewRetryHandler(config.RetryConfig{MaxAttempts: 3, IntervalSeconds: 0}, zap.NewNop())
}

func TestRetryHandler_Success(t *testing.T) {
	handler := newTestRetryHandler()
	attempts := 0

	err := handler.Retry(context.Background(), func() error {
		attempts++
		return nil
	})

	if err != nil {
		t.Fatalf("Should succeed, got error: %v", err)
	}
	if attempts != 1 {
		t.Fatalf("Should succeed on first attempt, got %d attempts", attempts)
	}
}

func TestRetryHandler_NetworkTimeout(t *testing.T) {
	handler := newTestRetryHandler()
	attempts := 0

	err := handler.Retry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return &net.OpError{Op: "read", Net: "tcp", Err: timeoutError{}}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Should succeed after retries, got error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("Should succeed on 3rd attempt, got %d attempts", attempts)
	}
}

func TestRetryHandler_NonRetryableError(t *testing.T) {
	handler := newTestRetryHandler()
	attempts := 0

	err := handler.Retry(context.Background(), func() error {
		attempts++
		return &graph.APIError{StatusCode: http.StatusBadRequest, Code: 100}
	})

	if err == nil {
		t.Fatal("Should return error for non-retryable error")
	}
	if attempts != 1 {
		t.Fatalf("Should not retry non-retryable error, got %d attempts", attempts)
	}
}

func TestRetryHandler_MaxAttemptsExceeded(t *testing.T) {
	handler := newTestRetryHandler()
	attempts := 0

	err := handler.Retry(context.Background(), func() error {
		attempts++
		return &graph.APIError{StatusCode: http.StatusServiceUnavailable}
	})

	if err == nil {
		t.Fatal("Should return error after max attempts")
	}
	var apiErr *graph.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Wrapped error should still be an APIError, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("Should retry 3 times, got %d attempts", attempts)
	}
}

func TestRetryHandler_429Error(t *testing.T) {
	handler := newTestRetryHandler()
	attempts := 0

	err := handler.Retry(context.Background(), func() error {
		attempts++
		if attempts < 2 {
			return &graph.APIError{StatusCode: http.StatusTooManyRequests}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Should succeed after retrying 429 error, got: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("Should succeed on 2nd attempt, got %d attempts", attempts)
	}
}

func TestRetryHandler_ContextCancelled(t *testing.T) {
	handler := NewRetryHandler(config.RetryConfig{MaxAttempts: 3, IntervalSeconds: 5}, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := handler.Retry(ctx, func() error {
		return &graph.APIError{StatusCode: http.StatusBadGateway}
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected context deadline error, got %v", err)
	}
}
