// Package extjson implements the transport-safe serialization used for cache
// entries and REST bodies. Plain JSON corrupts identifiers, timestamps, and
// binary data; extjson wraps them in tagged single-key objects so they
// round-trip:
//
//	oid.ID    <-> {"$oid": "64b5f0a1e4b0c83d9c000001"}
//	time.Time <-> {"$date": "2024-06-01T12:00:00Z"}
//	[]byte    <-> {"$binary": "AQID"}
package extjson

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jacentio/lattice/oid"
)

// Marshal encodes v, wrapping identifier, timestamp, and binary values.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(encode(v))
}

// Unmarshal decodes data produced by Marshal, restoring wrapped values.
func Unmarshal(data []byte) (any, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("extjson: %w", err)
	}
	return decode(raw), nil
}

// encode recursively replaces values that plain JSON would corrupt with
// their tagged wrapper form.
func encode(v any) any {
	switch t := v.(type) {
	case oid.ID:
		return map[string]any{"$oid": t.Hex()}
	case *oid.ID:
		if t == nil {
			return nil
		}
		return map[string]any{"$oid": t.Hex()}
	case time.Time:
		return map[string]any{"$date": t.UTC().Format(time.RFC3339Nano)}
	case []byte:
		return map[string]any{"$binary": base64.StdEncoding.EncodeToString(t)}
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = encode(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = encode(e)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = encode(e)
		}
		return out
	default:
		return v
	}
}

// decode recursively restores tagged wrapper objects to native values.
func decode(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 1 {
			if w, ok := unwrap(t); ok {
				return w
			}
		}
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = decode(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = decode(e)
		}
		return out
	default:
		return v
	}
}

// unwrap converts a single-key tagged object back to its native value.
// Malformed wrappers are left alone rather than failing the whole decode.
func unwrap(m map[string]any) (any, bool) {
	if s, ok := m["$oid"].(string); ok {
		if id, err := oid.FromHex(s); err == nil {
			return id, true
		}
		return nil, false
	}
	if s, ok := m["$date"].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return ts, true
		}
		return nil, false
	}
	if s, ok := m["$binary"].(string); ok {
		if b, err := base64.StdEncoding.DecodeString(s); err == nil {
			return b, true
		}
		return nil, false
	}
	return nil, false
}
