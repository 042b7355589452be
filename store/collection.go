package store

import (
	"context"

	"github.com/jacentio/lattice/driver"
	"github.com/jacentio/lattice/oid"
)

// Collection is the operation surface for one named collection. Identifier
// normalization happens here: hex identifier strings in arguments are
// converted to the store's internal form on the way in, and internal
// identifiers in results are converted back to hex strings on the way out.
type Collection struct {
	store *Store
	name  string
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// FindOptions shape read results.
type FindOptions struct {
	Projection driver.Document
	Sort       driver.Document
	Skip       int64
	Limit      int64

	// NoCache disables the cache for this call only.
	NoCache bool
}

// InsertOptions configure insert behavior.
type InsertOptions struct {
	// SkipHooks suppresses write-default hook composition for this call.
	SkipHooks bool
}

// UpdateOptions configure update behavior.
type UpdateOptions struct {
	// Upsert inserts a new document when the filter matches nothing.
	Upsert bool

	// SkipHooks suppresses write-default hook composition for this call.
	SkipHooks bool
}

// UpdateResult reports an update outcome.
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
}

// FindOne returns the first document matching filter, or ErrNotFound.
func (c *Collection) FindOne(ctx context.Context, filter driver.Document, opts *FindOptions) (driver.Document, error) {
	if opts == nil {
		opts = &FindOptions{}
	}
	f := internalizeDoc(filter)
	req := c.request("findOne")
	req.Filter = f
	req.Projection = opts.Projection
	req.Sort = opts.Sort

	resp, err := c.store.execute(ctx, &operation{
		action:     "findOne",
		collection: c.name,
		args:       []any{f, opts.Projection, opts.Sort},
		thunk:      c.thunk(req),
		noCache:    opts.NoCache,
	})
	if err != nil {
		return nil, err
	}
	if resp.Document == nil {
		return nil, ErrNotFound
	}
	return externalizeDoc(resp.Document), nil
}

// Find returns all documents matching filter.
func (c *Collection) Find(ctx context.Context, filter driver.Document, opts *FindOptions) ([]driver.Document, error) {
	if opts == nil {
		opts = &FindOptions{}
	}
	f := internalizeDoc(filter)
	req := c.request("find")
	req.Filter = f
	req.Projection = opts.Projection
	req.Sort = opts.Sort
	req.Skip = opts.Skip
	req.Limit = opts.Limit

	resp, err := c.store.execute(ctx, &operation{
		action:     "find",
		collection: c.name,
		args:       []any{f, opts.Projection, opts.Sort, opts.Skip, opts.Limit},
		thunk:      c.thunk(req),
		noCache:    opts.NoCache,
	})
	if err != nil {
		return nil, err
	}
	return externalizeDocs(resp.Documents), nil
}

// Count returns the number of documents matching filter.
func (c *Collection) Count(ctx context.Context, filter driver.Document) (int64, error) {
	f := internalizeDoc(filter)
	req := c.request("count")
	req.Filter = f

	resp, err := c.store.execute(ctx, &operation{
		action:     "count",
		collection: c.name,
		args:       []any{f},
		thunk:      c.thunk(req),
	})
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Aggregate runs an aggregation pipeline and returns its result documents.
func (c *Collection) Aggregate(ctx context.Context, pipeline []driver.Document, opts *FindOptions) ([]driver.Document, error) {
	if opts == nil {
		opts = &FindOptions{}
	}
	stages := make([]driver.Document, len(pipeline))
	for i, stage := range pipeline {
		stages[i] = internalizeDoc(stage)
	}
	req := c.request("aggregate")
	req.Pipeline = stages

	resp, err := c.store.execute(ctx, &operation{
		action:     "aggregate",
		collection: c.name,
		args:       []any{stages},
		thunk:      c.thunk(req),
		noCache:    opts.NoCache,
	})
	if err != nil {
		return nil, err
	}
	return externalizeDocs(resp.Documents), nil
}

// InsertOne inserts one document and returns its assigned identifier in
// external form.
func (c *Collection) InsertOne(ctx context.Context, doc driver.Document, opts *InsertOptions) (any, error) {
	if doc == nil {
		return nil, ErrValidation
	}
	if opts == nil {
		opts = &InsertOptions{}
	}
	composed := c.store.hooks.ComposeInsert(c.name, doc, opts.SkipHooks)
	req := c.request("insertOne")
	req.Documents = []driver.Document{internalizeDoc(composed)}

	resp, err := c.store.execute(ctx, &operation{
		action:     "insertOne",
		collection: c.name,
		args:       []any{req.Documents[0]},
		thunk:      c.thunk(req),
		mutation:   true,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.InsertedIDs) == 0 {
		return nil, nil
	}
	return oid.Externalize(resp.InsertedIDs[0]), nil
}

// InsertMany inserts a batch of documents and returns their assigned
// identifiers in external form, in input order.
func (c *Collection) InsertMany(ctx context.Context, docs []driver.Document, opts *InsertOptions) ([]any, error) {
	if len(docs) == 0 {
		return nil, ErrValidation
	}
	if opts == nil {
		opts = &InsertOptions{}
	}
	payload := make([]driver.Document, len(docs))
	for i, doc := range docs {
		if doc == nil {
			return nil, ErrValidation
		}
		payload[i] = internalizeDoc(c.store.hooks.ComposeInsert(c.name, doc, opts.SkipHooks))
	}
	req := c.request("insertMany")
	req.Documents = payload

	resp, err := c.store.execute(ctx, &operation{
		action:     "insertMany",
		collection: c.name,
		args:       []any{payload},
		thunk:      c.thunk(req),
		mutation:   true,
	})
	if err != nil {
		return nil, err
	}
	ids := make([]any, len(resp.InsertedIDs))
	for i, id := range resp.InsertedIDs {
		ids[i] = oid.Externalize(id)
	}
	return ids, nil
}

// UpdateOne applies an update to the first document matching filter.
// The update may be an operator document or a pipeline ([]driver.Document);
// hook composition applies only to the operator form.
func (c *Collection) UpdateOne(ctx context.Context, filter driver.Document, update any, opts *UpdateOptions) (*UpdateResult, error) {
	return c.update(ctx, "updateOne", filter, update, opts)
}

// UpdateMany applies an update to every document matching filter.
func (c *Collection) UpdateMany(ctx context.Context, filter driver.Document, update any, opts *UpdateOptions) (*UpdateResult, error) {
	return c.update(ctx, "updateMany", filter, update, opts)
}

func (c *Collection) update(ctx context.Context, action string, filter driver.Document, update any, opts *UpdateOptions) (*UpdateResult, error) {
	if update == nil {
		return nil, ErrValidation
	}
	if opts == nil {
		opts = &UpdateOptions{}
	}
	f := internalizeDoc(filter)
	composed := oid.Internalize(c.store.hooks.ComposeUpdate(c.name, update, opts.SkipHooks))
	req := c.request(action)
	req.Filter = f
	req.Update = composed
	req.Upsert = opts.Upsert

	resp, err := c.store.execute(ctx, &operation{
		action:     action,
		collection: c.name,
		args:       []any{f, composed, opts.Upsert},
		thunk:      c.thunk(req),
		mutation:   true,
	})
	if err != nil {
		return nil, err
	}
	return &UpdateResult{
		MatchedCount:  resp.MatchedCount,
		ModifiedCount: resp.ModifiedCount,
	}, nil
}

// ReplaceOne replaces the first document matching filter with doc, written
// verbatim: replacement is not an update, so hook composition does not apply.
func (c *Collection) ReplaceOne(ctx context.Context, filter driver.Document, doc driver.Document, opts *UpdateOptions) (*UpdateResult, error) {
	if doc == nil {
		return nil, ErrValidation
	}
	if opts == nil {
		opts = &UpdateOptions{}
	}
	f := internalizeDoc(filter)
	req := c.request("replaceOne")
	req.Filter = f
	req.Replacement = internalizeDoc(doc)
	req.Upsert = opts.Upsert

	resp, err := c.store.execute(ctx, &operation{
		action:     "replaceOne",
		collection: c.name,
		args:       []any{f, req.Replacement, opts.Upsert},
		thunk:      c.thunk(req),
		mutation:   true,
	})
	if err != nil {
		return nil, err
	}
	return &UpdateResult{
		MatchedCount:  resp.MatchedCount,
		ModifiedCount: resp.ModifiedCount,
	}, nil
}

// DeleteOne deletes the first document matching filter and returns the
// deleted count.
func (c *Collection) DeleteOne(ctx context.Context, filter driver.Document) (int64, error) {
	return c.delete(ctx, "deleteOne", filter)
}

// DeleteMany deletes every document matching filter and returns the deleted
// count.
func (c *Collection) DeleteMany(ctx context.Context, filter driver.Document) (int64, error) {
	return c.delete(ctx, "deleteMany", filter)
}

func (c *Collection) delete(ctx context.Context, action string, filter driver.Document) (int64, error) {
	f := internalizeDoc(filter)
	req := c.request(action)
	req.Filter = f

	resp, err := c.store.execute(ctx, &operation{
		action:     action,
		collection: c.name,
		args:       []any{f},
		thunk:      c.thunk(req),
		mutation:   true,
	})
	if err != nil {
		return 0, err
	}
	return resp.DeletedCount, nil
}

// request builds the base request for an action against this collection.
func (c *Collection) request(action string) *driver.Request {
	return &driver.Request{
		Action:     action,
		Database:   c.store.config.Database,
		Collection: c.name,
	}
}

// thunk wraps req into the zero-argument computation the engine runs. The
// connection and session are resolved at invocation time, so a retried
// attempt uses the reconnected handle.
func (c *Collection) thunk(req *driver.Request) func(ctx context.Context) (*driver.Response, error) {
	s := c.store
	return func(ctx context.Context) (*driver.Response, error) {
		r := *req
		if s.session != nil {
			r.SessionID = s.session.ID()
		}
		return s.handle.Conn().Exec(ctx, &r)
	}
}

// internalizeDoc converts identifier strings in d to internal form.
func internalizeDoc(d driver.Document) driver.Document {
	out, _ := oid.Internalize(d).(driver.Document)
	return out
}

// externalizeDoc converts internal identifiers in d to their string form.
func externalizeDoc(d driver.Document) driver.Document {
	out, _ := oid.Externalize(d).(driver.Document)
	return out
}

func externalizeDocs(docs []driver.Document) []driver.Document {
	out := make([]driver.Document, len(docs))
	for i, d := range docs {
		out[i] = externalizeDoc(d)
	}
	return out
}
