// Package driver defines the contract between the data layer and a remote
// document-store transport. One Conn interface, two concrete transports
// (driver/wire for the persistent binary client, driver/rest for the
// stateless HTTP endpoint), selected once at construction.
package driver

import (
	"context"
	"fmt"
)

// Document is an arbitrary store document: string keys to nested values.
type Document = map[string]any

// Request describes one store operation. Only the fields meaningful for the
// given Action are set.
type Request struct {
	// Action is the store operation name, e.g. "find", "insertOne".
	Action string

	// Database and Collection address the target namespace.
	Database   string
	Collection string

	// Filter selects documents for reads, updates, and deletes.
	Filter Document

	// Update is the update specification: a Document of operator buckets,
	// or a []Document pipeline.
	Update any

	// Replacement is the full document for replaceOne.
	Replacement Document

	// Documents carries payloads for insertOne/insertMany.
	Documents []Document

	// Pipeline carries aggregation stages.
	Pipeline []Document

	// Projection, Sort, Skip, and Limit shape read results.
	Projection Document
	Sort       Document
	Skip       int64
	Limit      int64

	// Upsert enables insert-on-no-match for updates.
	Upsert bool

	// SessionID binds the request to an open transaction session.
	// Empty for non-transactional requests.
	SessionID string
}

// Response is the result of one store operation.
type Response struct {
	// Document is the single result of findOne-style actions (nil if no match).
	Document Document

	// Documents are the results of find/aggregate-style actions.
	Documents []Document

	// InsertedIDs are the identifiers assigned by insert actions.
	InsertedIDs []any

	// MatchedCount, ModifiedCount, and DeletedCount report write outcomes.
	MatchedCount  int64
	ModifiedCount int64
	DeletedCount  int64

	// Count is the result of count actions.
	Count int64
}

// Conn is a connection to the document store. Implementations must be safe
// for concurrent use.
type Conn interface {
	// Exec performs one operation against the store.
	Exec(ctx context.Context, req *Request) (*Response, error)

	// Close releases the connection. Closing an already-closed connection
	// is allowed and returns an error that callers may ignore.
	Close(ctx context.Context) error
}

// SessionConn is implemented by transports that support transaction
// sessions. The stateless REST transport does not.
type SessionConn interface {
	Conn

	// StartSession opens a transaction session on the connection.
	StartSession(ctx context.Context) (Session, error)
}

// Session is an open transaction session. All requests carrying the
// session's ID share one atomic unit of work.
type Session interface {
	// ID returns the session identifier to set on Request.SessionID.
	ID() string

	// Commit commits the session's transaction.
	Commit(ctx context.Context) error

	// Abort rolls back the session's transaction.
	Abort(ctx context.Context) error

	// End releases the session. Always called, after Commit or Abort.
	End(ctx context.Context) error
}

// Dialer establishes a new connection to the store.
type Dialer func(ctx context.Context) (Conn, error)

// Error is a failure reported by the store itself, carrying the
// store-specific numeric code used for classification. Transport-level
// failures (dial, reset, EOF) are returned as their raw errors instead.
type Error struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("driver: store error %d: %s", e.Code, e.Message)
}

// EncodeResponse converts a Response to a plain document, the form used for
// transport-safe cache snapshots and REST bodies.
func EncodeResponse(r *Response) Document {
	doc := Document{}
	if r.Document != nil {
		doc["document"] = r.Document
	}
	if r.Documents != nil {
		docs := make([]any, len(r.Documents))
		for i, d := range r.Documents {
			docs[i] = d
		}
		doc["documents"] = docs
	}
	if r.InsertedIDs != nil {
		doc["insertedIds"] = append([]any(nil), r.InsertedIDs...)
	}
	if r.MatchedCount != 0 {
		doc["matchedCount"] = r.MatchedCount
	}
	if r.ModifiedCount != 0 {
		doc["modifiedCount"] = r.ModifiedCount
	}
	if r.DeletedCount != 0 {
		doc["deletedCount"] = r.DeletedCount
	}
	if r.Count != 0 {
		doc["count"] = r.Count
	}
	return doc
}

// DecodeResponse is the inverse of EncodeResponse. Numeric counts may arrive
// as int64 or, after a JSON round trip, float64.
func DecodeResponse(doc Document) *Response {
	r := &Response{}
	if d, ok := doc["document"].(Document); ok {
		r.Document = d
	}
	if ds, ok := doc["documents"].([]any); ok {
		r.Documents = make([]Document, 0, len(ds))
		for _, e := range ds {
			if d, ok := e.(Document); ok {
				r.Documents = append(r.Documents, d)
			}
		}
	}
	if ids, ok := doc["insertedIds"].([]any); ok {
		r.InsertedIDs = append([]any(nil), ids...)
	}
	r.MatchedCount = asInt64(doc["matchedCount"])
	r.ModifiedCount = asInt64(doc["modifiedCount"])
	r.DeletedCount = asInt64(doc["deletedCount"])
	r.Count = asInt64(doc["count"])
	return r
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
