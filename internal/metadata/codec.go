package metadata

import (
	"encoding/json"
	"strings"
)

// Encode returns the storable form of v. Lists and maps become canonical JSON
// text (nested nulls dropped first), null becomes "", scalars pass through.
func Encode(v Value) Value {
	switch v.kind {
	case KindNull:
		return String("")
	case KindList, KindMap:
		data, err := json.Marshal(DropNulls(v))
		if err != nil {
			return String("")
		}
		return String(string(data))
	default:
		return v
	}
}

// EncodeMap encodes every field of m. The result holds scalars only.
func EncodeMap(m Map) Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = Encode(v)
	}
	return out
}

// Decode reverses Encode for a single value. Strings holding a JSON list or
// object come back in structural form; every other value, including text
// that fails to parse, is returned unchanged.
func Decode(v Value) Value {
	s, ok := v.AsString()
	if !ok {
		return v
	}
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || (trimmed[0] != '[' && trimmed[0] != '{') {
		return v
	}
	var out Value
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return v
	}
	return out
}

// DecodeMap decodes every field of a stored map. Empty strings, which is
// how Encode stores null, are treated as absent fields.
func DecodeMap(m Map) Map {
	out := make(Map, len(m))
	for k, v := range m {
		if v.IsNull() {
			continue
		}
		if s, ok := v.AsString(); ok && s == "" {
			continue
		}
		out[k] = Decode(v)
	}
	return out
}

// DropNulls removes null-valued keys from maps, recursing through nested
// maps and list elements. Non-map scalars are returned unchanged.
func DropNulls(v Value) Value {
	switch v.kind {
	case KindMap:
		return Object(DropNullsMap(v.obj))
	case KindList:
		if v.list == nil {
			return v
		}
		items := make([]Value, len(v.list))
		for i, item := range v.list {
			items[i] = DropNulls(item)
		}
		return List(items...)
	default:
		return v
	}
}

// DropNullsMap is DropNulls for a top-level map.
func DropNullsMap(m Map) Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		if v.IsNull() {
			continue
		}
		out[k] = DropNulls(v)
	}
	return out
}

// Prepare is the write path used before a document is stored: encode, then
// drop whatever nulls remain.
func Prepare(m Map) Map {
	return DropNullsMap(EncodeMap(m))
}
