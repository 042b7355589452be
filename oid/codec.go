package oid

// Externalize returns a copy of v in which every ID is replaced by its hex
// string form. Maps and slices are walked recursively; empty maps and slices
// are returned unchanged. All other values pass through untouched.
//
// Externalize is pure: v is never mutated.
func Externalize(v any) any {
	switch t := v.(type) {
	case ID:
		return t.Hex()
	case *ID:
		if t == nil {
			return t
		}
		return t.Hex()
	case map[string]any:
		if len(t) == 0 {
			return t
		}
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Externalize(e)
		}
		return out
	case []any:
		if len(t) == 0 {
			return t
		}
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Externalize(e)
		}
		return out
	case []map[string]any:
		if len(t) == 0 {
			return t
		}
		out := make([]map[string]any, len(t))
		for i, e := range t {
			out[i], _ = Externalize(e).(map[string]any)
		}
		return out
	default:
		return v
	}
}

// Internalize is the inverse of Externalize: every string matching the
// identifier grammar is replaced by its ID. Strings that do not match pass
// through unchanged, so the function is total over arbitrary input.
//
// Internalize is pure: v is never mutated.
func Internalize(v any) any {
	switch t := v.(type) {
	case string:
		if !IsValidHex(t) {
			return t
		}
		id, err := FromHex(t)
		if err != nil {
			return t
		}
		return id
	case map[string]any:
		if len(t) == 0 {
			return t
		}
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Internalize(e)
		}
		return out
	case []any:
		if len(t) == 0 {
			return t
		}
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Internalize(e)
		}
		return out
	case []map[string]any:
		if len(t) == 0 {
			return t
		}
		out := make([]map[string]any, len(t))
		for i, e := range t {
			out[i], _ = Internalize(e).(map[string]any)
		}
		return out
	default:
		return v
	}
}
