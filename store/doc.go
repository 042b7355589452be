// Package store provides a resilient data access layer over a remote
// document store.
//
// Lattice sits between application code and a document-store connection,
// adding caching, identifier normalization, write-default injection, error
// classification, and automatic reconnection without changing the shape of
// the operations themselves.
//
// # Key Features
//
//   - Read-through caching keyed by collection, action, and arguments
//   - Cache invalidation (or a custom observer) on every successful mutation
//   - Hex identifier strings normalized to internal identifiers and back
//   - Hook-composed write defaults on updates and inserts
//   - Error classification with a single reconnect-and-retry for transient
//     failures
//   - Session-bound transactions via [Store.WithTransaction]
//
// # Usage
//
// Build a [driver.Handle] from a dialer, then a Store from the handle:
//
//	handle, err := driver.NewHandle(ctx, func(ctx context.Context) (driver.Conn, error) {
//	    return wire.Dial(ctx, "db.internal:9870")
//	})
//	if err != nil {
//	    return err
//	}
//	st := store.New(handle, store.DefaultConfig())
//	if mem, err := cache.NewMemory(1024); err == nil {
//	    st.SetCache(mem)
//	}
//
//	users := st.Collection("users")
//	doc, err := users.FindOne(ctx, driver.Document{"email": email}, nil)
//
// # Configuration
//
// Use [DefaultConfig] for sensible retry and cache defaults, or
// [LoadConfig] to read a YAML file. Retry backoff is exponential and
// capped:
//
//	cfg := store.DefaultConfig()
//	cfg.Retry.MaxRetries = 5
//
// # Errors
//
// Operations surface a small set of sanitized errors:
//
//   - [ErrNotFound] - no document matched a single-document read
//   - [ErrDuplicateKey] - a unique index rejected the write
//   - [ErrOperation] - the operation failed for any other terminal reason
//   - [ErrReconnectFailed] - reconnection attempts were exhausted
//   - [ErrValidation] - the caller passed invalid arguments
//   - [ErrNestedTransaction] - WithTransaction called inside a transaction
//
// Raw store errors never escape; they are reported through the configured
// [Reporter] instead.
package store
