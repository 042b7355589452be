package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jacentio/lattice/driver"
)

// reconnector rebuilds the shared connection after a retryable failure.
// Reconnection is single-flight per handle: concurrent callers that hit a
// failure at the same moment share one reconnection sequence instead of
// each tearing down and rebuilding the connection.
type reconnector struct {
	group  singleflight.Group
	retry  RetryConfig
	logger *slog.Logger
}

func newReconnector(retry RetryConfig, logger *slog.Logger) *reconnector {
	return &reconnector{retry: retry, logger: logger}
}

// reconnect redials the handle with exponential backoff, up to
// MaxRetries+1 attempts. On exhaustion it returns ErrReconnectFailed
// carrying the last dial failure's message; callers never retry that.
func (r *reconnector) reconnect(ctx context.Context, h *driver.Handle) error {
	key := fmt.Sprintf("%p", h)
	_, err, _ := r.group.Do(key, func() (any, error) {
		reconnectsTotal.Inc()
		return nil, r.run(ctx, h)
	})
	return err
}

func (r *reconnector) run(ctx context.Context, h *driver.Handle) error {
	delay := r.retry.initialDelay()
	maxDelay := r.retry.maxDelay()

	var last error
	for attempt := 0; attempt <= r.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
			delay = time.Duration(float64(delay) * r.retry.BackoffMultiplier)
			if delay > maxDelay {
				delay = maxDelay
			}
		}
		if err := ctx.Err(); err != nil {
			last = err
			break
		}

		// Redial closes the old connection first, ignoring close errors;
		// it may already be gone.
		if err := h.Redial(ctx); err != nil {
			last = err
			r.logger.Warn("reconnect attempt failed",
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}
		r.logger.Info("reconnected", "attempts", attempt+1)
		return nil
	}

	reconnectFailuresTotal.Inc()
	return fmt.Errorf("%w: %v", ErrReconnectFailed, last)
}
