package message

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"meta-relay/internal/config"
	"meta-relay/internal/graph"
)

// RetryHandler retries idempotent provider reads. Sends are never retried:
// a timed-out send may still have been accepted.
type RetryHandler struct {
	config config.RetryConfig
	logger *zap.Logger
}

func NewRetryHandler(cfg config.RetryConfig, logger *zap.Logger) *RetryHandler {
	return &RetryHandler{
		config: cfg,
		logger: logger,
	}
}

func (rh *RetryHandler) Retry(ctx context.Context, fn func() error) error {
	attempts := rh.config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		err := fn()
		if err == nil {
			if i > 0 {
				rh.logger.Info("Operation succeeded after retries",
					zap.Int("attempt", i+1))
			}
			return nil
		}

		lastErr = err

		if !rh.isRetryableError(err) {
			rh.logger.Warn("Non-retryable error encountered",
				zap.Error(err))
			return err
		}

		if i < attempts-1 {
			rh.logger.Debug("Retrying operation",
				zap.Int("attempt", i+1),
				zap.Int("max_attempts", attempts),
				zap.Error(err))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(rh.config.IntervalSeconds) * time.Second):
			}
		}
	}

	rh.logger.Warn("Max retries exceeded",
		zap.Int("attempts", attempts),
		zap.Error(lastErr))
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (rh *RetryHandler) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *graph.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}
