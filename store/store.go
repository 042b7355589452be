// Package store provides a resilient data access layer over a remote
// document store.
package store

import (
	"log/slog"

	"github.com/jacentio/lattice/cache"
	"github.com/jacentio/lattice/driver"
)

// Store is the root of the data layer. It owns no connection itself: the
// shared driver.Handle is constructed by the process configuration and
// passed in, and the Store replaces its connection only while reconnecting.
type Store struct {
	handle *driver.Handle
	config Config

	cache       cache.Cache
	hooks       Hooks
	classifier  Classifier
	reporter    Reporter
	logger      *slog.Logger
	reconnector *reconnector

	// onMutation, when set, replaces the default cache invalidation.
	onMutation func(collection, action string)

	// session is non-nil on transaction-bound views created by
	// WithTransaction. Session-bound stores bypass the cache and never
	// retry.
	session driver.Session
}

// New creates a Store over the shared connection handle.
func New(handle *driver.Handle, config Config) *Store {
	config.validate()
	logger := slog.Default()
	return &Store{
		handle:      handle,
		config:      config,
		classifier:  DefaultClassifier(),
		reporter:    NewLogReporter(logger),
		logger:      logger,
		reconnector: newReconnector(config.Retry, logger),
	}
}

// SetCache configures the read-through cache. Without one, every read goes
// to the store directly.
func (s *Store) SetCache(c cache.Cache) {
	s.cache = c
}

// SetHooks configures the write-default hooks.
func (s *Store) SetHooks(h Hooks) {
	s.hooks = h
}

// SetClassifier replaces the failure classifier. Alternate stores supply
// their own code-to-bucket mapping here.
func (s *Store) SetClassifier(c Classifier) {
	if c != nil {
		s.classifier = c
	}
}

// SetReporter replaces the error reporter.
func (s *Store) SetReporter(r Reporter) {
	if r != nil {
		s.reporter = r
	}
}

// SetLogger replaces the logger used for debug telemetry and reconnection
// events. Configure before issuing operations.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	s.logger = logger
	s.reconnector.logger = logger
}

// SetMutationObserver replaces the default mutation handling. The observer
// is invoked once per successful mutating call with the collection and
// action names, and is expected to invalidate cache entries tagged with the
// collection.
func (s *Store) SetMutationObserver(fn func(collection, action string)) {
	s.onMutation = fn
}

// Collection returns the operation surface for the named collection.
func (s *Store) Collection(name string) *Collection {
	return &Collection{store: s, name: name}
}

// Database returns the configured database name.
func (s *Store) Database() string {
	return s.config.Database
}

// bound returns a view of the Store tied to a transaction session.
func (s *Store) bound(sess driver.Session) *Store {
	view := *s
	view.session = sess
	return &view
}
