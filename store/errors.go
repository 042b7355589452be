package store

import "errors"

var (
	// ErrNotFound is returned when a findOne matches no document.
	ErrNotFound = errors.New("lattice: document not found")

	// ErrDuplicateKey is returned when a write violates a unique index.
	ErrDuplicateKey = errors.New("lattice: duplicate key")

	// ErrOperation is the sanitized failure surfaced for any store error that
	// has no more specific mapping. The underlying error and its context are
	// routed to the configured Reporter, never to the caller.
	ErrOperation = errors.New("lattice: datastore operation failed")

	// ErrReconnectFailed is returned when reconnection attempts are exhausted.
	// It is terminal: the failed call is not retried again.
	ErrReconnectFailed = errors.New("lattice: reconnect failed")

	// ErrNestedTransaction is returned when WithTransaction is called on a
	// Store that is already bound to a transaction session.
	ErrNestedTransaction = errors.New("lattice: nested transaction")

	// ErrTransactionsDisabled is returned when transactions are disabled by
	// configuration.
	ErrTransactionsDisabled = errors.New("lattice: transactions disabled")

	// ErrTransactionsUnsupported is returned when the configured transport
	// has no session support (the stateless REST transport).
	ErrTransactionsUnsupported = errors.New("lattice: transport does not support transactions")

	// ErrValidation is returned for caller misuse: bad arguments that can be
	// rejected before reaching the store.
	ErrValidation = errors.New("lattice: invalid argument")
)
