package driver

import (
	"context"
	"sync"
)

// Handle owns the shared connection to the store. It is constructed once by
// the process configuration and shared across all collections; the data
// layer replaces the connection only through Redial, during reconnection.
type Handle struct {
	dial Dialer

	mu   sync.RWMutex
	conn Conn
}

// NewHandle dials the initial connection and returns the owning handle.
func NewHandle(ctx context.Context, dial Dialer) (*Handle, error) {
	conn, err := dial(ctx)
	if err != nil {
		return nil, err
	}
	return &Handle{dial: dial, conn: conn}, nil
}

// Conn returns the current connection.
func (h *Handle) Conn() Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conn
}

// Redial closes the current connection and dials a replacement. The close
// error is ignored: the connection may already be gone, which is exactly
// why Redial is being called. On dial failure the previous (closed)
// connection is left in place and the error is returned.
func (h *Handle) Redial(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	_ = h.conn.Close(ctx)

	conn, err := h.dial(ctx)
	if err != nil {
		return err
	}
	h.conn = conn
	return nil
}

// Close closes the current connection.
func (h *Handle) Close(ctx context.Context) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conn.Close(ctx)
}
