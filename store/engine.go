package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jacentio/lattice/driver"
	"github.com/jacentio/lattice/internal/extjson"
)

// operation is one store call as seen by the engine: the action and
// collection names, the arguments (for cache keying and telemetry), and a
// thunk that performs the real round trip.
type operation struct {
	action     string
	collection string
	args       []any
	thunk      func(ctx context.Context) (*driver.Response, error)
	mutation   bool
	noCache    bool
}

// execute wraps one store call with cache lookup, mutation notification,
// debug telemetry, error classification, and a single reconnect-and-retry.
func (s *Store) execute(ctx context.Context, op *operation) (*driver.Response, error) {
	return s.attempt(ctx, op, false)
}

func (s *Store) attempt(ctx context.Context, op *operation, retried bool) (*driver.Response, error) {
	start := time.Now()

	resp, hit, err := s.dispatch(ctx, op)
	if err == nil {
		operationsTotal.WithLabelValues(op.action, "ok").Inc()
		if op.mutation {
			s.notifyMutation(ctx, op.collection, op.action)
		}
		if s.config.Debug {
			s.logger.Debug("operation complete",
				"action", op.action,
				"collection", op.collection,
				"elapsed", time.Since(start),
				"args", op.args,
				"cacheHit", hit,
				"retried", retried,
			)
		}
		return resp, nil
	}

	class := s.classifier.Classify(err)

	// One reconnect-and-retry per original call. Session-bound calls are
	// never retried: reconnection would invalidate the session.
	if class == ClassRetryable && !retried && s.session == nil {
		if rerr := s.reconnector.reconnect(ctx, s.handle); rerr != nil {
			return nil, s.terminal(op, rerr, class, start)
		}
		return s.attempt(ctx, op, true)
	}

	return nil, s.terminal(op, err, class, start)
}

// dispatch runs the operation directly or through the cache. Session-bound,
// per-call opt-out, globally disabled, unconfigured-cache, and mutating
// calls all bypass the cache.
func (s *Store) dispatch(ctx context.Context, op *operation) (*driver.Response, bool, error) {
	if s.session != nil || op.noCache || op.mutation || s.cache == nil || s.config.DisableCache {
		resp, err := op.thunk(ctx)
		return resp, false, err
	}

	data, hit, err := s.cache.Do(ctx, s.cacheKey(op), []string{op.collection}, func(ctx context.Context) ([]byte, error) {
		resp, err := op.thunk(ctx)
		if err != nil {
			return nil, err
		}
		// The cache holds only the transport-safe encoding, never the
		// store's native identifier type.
		return extjson.Marshal(driver.EncodeResponse(resp))
	})
	if err != nil {
		return nil, false, err
	}
	if hit {
		cacheHitsTotal.Inc()
	} else {
		cacheMissesTotal.Inc()
	}

	raw, err := extjson.Unmarshal(data)
	if err != nil {
		return nil, false, err
	}
	doc, ok := raw.(driver.Document)
	if !ok {
		return nil, false, fmt.Errorf("malformed cache entry for %s.%s", op.collection, op.action)
	}
	return driver.DecodeResponse(doc), hit, nil
}

// cacheKey builds the deterministic key for a cacheable read:
// action, collection, and the transport-safe encoding of every argument.
func (s *Store) cacheKey(op *operation) string {
	parts := make([]string, 0, 3+len(op.args))
	parts = append(parts, s.config.Database, op.collection, op.action)
	for _, arg := range op.args {
		enc, err := extjson.Marshal(arg)
		if err != nil {
			parts = append(parts, fmt.Sprintf("%v", arg))
			continue
		}
		parts = append(parts, string(enc))
	}
	return strings.Join(parts, "\x1f")
}

// notifyMutation runs after every successful mutating call. A configured
// observer replaces the default behavior of invalidating cache entries
// tagged with the collection name.
func (s *Store) notifyMutation(ctx context.Context, collection, action string) {
	if s.onMutation != nil {
		s.onMutation(collection, action)
		return
	}
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, collection); err != nil {
		s.logger.Warn("cache invalidation failed",
			"collection", collection,
			"action", action,
			"error", err,
		)
	}
}

// terminal reports a failure with full detail, then returns the sanitized
// error the caller sees. Raw store error text, codes, and arguments never
// cross this boundary.
func (s *Store) terminal(op *operation, err error, class Class, start time.Time) error {
	failuresTotal.WithLabelValues(className(class)).Inc()
	operationsTotal.WithLabelValues(op.action, "error").Inc()

	s.reporter.ReportError(err, map[string]any{
		"database":   s.config.Database,
		"collection": op.collection,
		"action":     op.action,
		"args":       op.args,
	})
	if s.config.Debug {
		s.logger.Debug("operation failed",
			"action", op.action,
			"collection", op.collection,
			"elapsed", time.Since(start),
			"class", className(class),
		)
	}

	switch {
	case class == ClassDuplicateKey:
		return ErrDuplicateKey
	case errors.Is(err, ErrReconnectFailed):
		return err
	default:
		return ErrOperation
	}
}
