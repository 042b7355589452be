package store

import "github.com/jacentio/lattice/driver"

// HookFunc produces default fields for a write against the named collection.
// The payload is the caller's original (uncomposed) update or document.
// Returning nil or an empty map injects nothing.
type HookFunc func(collection string, payload driver.Document) driver.Document

// Hooks holds the externally configured write-default hooks. Both are
// optional. Hooks never fail; they only contribute fields.
type Hooks struct {
	// OnUpdate fields are merged into the update's $set bucket and take
	// precedence over same-named caller fields. This is how centrally
	// controlled fields (an update timestamp, an auditing stamp) are
	// enforced against caller overrides.
	OnUpdate HookFunc

	// OnInsert fields are merged into the update's $setOnInsert bucket,
	// but only for keys not already claimed by the resulting $set bucket.
	// Caller-specified $setOnInsert entries win on collision.
	OnInsert HookFunc
}

// ComposeUpdate returns the update payload with hook defaults applied.
// Pipeline updates ([]driver.Document or []any) pass through untouched:
// per-field merge semantics are undefined for pipeline stages. The input is
// never mutated; a composed copy is returned when anything changes.
func (h Hooks) ComposeUpdate(collection string, update any, skipHooks bool) any {
	if skipHooks {
		return update
	}
	payload, ok := update.(driver.Document)
	if !ok {
		// Pipeline form, or something we don't understand: hands off.
		return update
	}
	if h.OnUpdate == nil && h.OnInsert == nil {
		return update
	}

	var setFields, insertFields driver.Document
	if h.OnUpdate != nil {
		setFields = h.OnUpdate(collection, payload)
	}
	if h.OnInsert != nil {
		insertFields = h.OnInsert(collection, payload)
	}
	if len(setFields) == 0 && len(insertFields) == 0 {
		return update
	}

	composed := copyDoc(payload)

	set := copyDoc(asDoc(composed["$set"]))
	for k, v := range setFields {
		set[k] = v
	}
	if len(set) > 0 {
		composed["$set"] = set
	}

	soi := copyDoc(asDoc(composed["$setOnInsert"]))
	for k, v := range insertFields {
		if _, taken := set[k]; taken {
			continue
		}
		if _, present := soi[k]; present {
			continue
		}
		soi[k] = v
	}
	if len(soi) > 0 {
		composed["$setOnInsert"] = soi
	}

	return composed
}

// ComposeInsert returns the document for an insert with OnInsert defaults
// applied. Caller-provided fields take precedence over hook defaults: hooks
// fill gaps on insert, they do not override an explicit value. The input
// document is never mutated.
func (h Hooks) ComposeInsert(collection string, doc driver.Document, skipHooks bool) driver.Document {
	if skipHooks || h.OnInsert == nil {
		return doc
	}
	defaults := h.OnInsert(collection, doc)
	if len(defaults) == 0 {
		return doc
	}

	composed := make(driver.Document, len(doc)+len(defaults))
	for k, v := range defaults {
		composed[k] = v
	}
	for k, v := range doc {
		composed[k] = v
	}
	return composed
}

// asDoc returns v as a document, or an empty one.
func asDoc(v any) driver.Document {
	if d, ok := v.(driver.Document); ok {
		return d
	}
	return nil
}

// copyDoc returns a shallow copy of d (nil yields an empty document).
func copyDoc(d driver.Document) driver.Document {
	out := make(driver.Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
