package store

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/jacentio/lattice/driver"
)

// Class is the failure bucket assigned by a Classifier.
type Class int

const (
	// ClassUnknown covers failures with no more specific bucket. Never retried.
	ClassUnknown Class = iota

	// ClassRetryable covers connection-level failures: network, topology,
	// pool, and session-expiry errors. Eligible for one reconnect-and-retry.
	ClassRetryable

	// ClassPermanent covers driver misuse: malformed arguments, query syntax,
	// authentication, version incompatibility, exhausted cursors.
	ClassPermanent

	// ClassDuplicateKey covers unique-index violations.
	ClassDuplicateKey
)

// Classifier assigns a failure to a Class. The default implementation knows
// this store's numeric failure codes; alternate stores can supply their own
// code-to-bucket mapping via Store.SetClassifier without touching the engine.
type Classifier interface {
	Classify(err error) Class
}

// Store failure codes recognized by the default classifier.
var (
	// duplicateKeyCodes are unique-index violation codes. Checked first:
	// a duplicate key is never treated as retryable even when its signature
	// overlaps a connection-error signature.
	duplicateKeyCodes = map[int]bool{
		11000: true,
		11001: true,
		12582: true,
	}

	// permanentCodes indicate caller or driver misuse that no reconnect
	// can fix: bad values, parse failures, auth, unknown commands,
	// incompatible versions, exhausted cursors.
	permanentCodes = map[int]bool{
		2:   true, // bad value
		9:   true, // failed to parse
		13:  true, // unauthorized
		14:  true, // type mismatch
		18:  true, // authentication failed
		43:  true, // cursor not found (exhausted result stream)
		59:  true, // command not found
		241: true, // conversion failure
	}

	// retryableCodes indicate network, topology, pool, or session failures
	// that a fresh connection may resolve.
	retryableCodes = map[int]bool{
		6:     true, // host unreachable
		7:     true, // host not found
		89:    true, // network timeout
		91:    true, // shutdown in progress
		189:   true, // primary stepped down
		228:   true, // transaction/session expired
		9001:  true, // socket exception
		10107: true, // not writable primary
		11600: true, // interrupted at shutdown
		11602: true, // interrupted due to replica state change
		13435: true, // not primary, no secondary ok
		13436: true, // not primary or recovering
	}
)

// codeClassifier is the default Classifier.
type codeClassifier struct{}

// DefaultClassifier returns the classifier for this store's failure codes.
func DefaultClassifier() Classifier {
	return codeClassifier{}
}

// Classify implements Classifier.
func (codeClassifier) Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}

	// Context errors reflect the caller's deadline, not the connection.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassUnknown
	}

	var se *driver.Error
	if errors.As(err, &se) {
		switch {
		case duplicateKeyCodes[se.Code]:
			return ClassDuplicateKey
		case permanentCodes[se.Code]:
			return ClassPermanent
		case retryableCodes[se.Code]:
			return ClassRetryable
		default:
			return ClassUnknown
		}
	}

	// Transport-level failures arrive as raw net or io errors.
	var ne net.Error
	if errors.As(err, &ne) {
		return ClassRetryable
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return ClassRetryable
	}

	return ClassUnknown
}
