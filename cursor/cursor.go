// Package cursor implements opaque, round-trippable position markers for
// cursor-based pagination.
//
// A Cursor wraps a field map (name -> scalar) that anchors a position in a
// specific sort order, e.g. {"created_at": "...", "id": "..."} for a keyset
// ordering or {"offset": 42} for an offset ordering. Cursors serialize to a
// transport-safe string (unpadded url-safe base64 of a JSON object) and are
// immutable: WithUpdates returns a new Cursor.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	perr "pagestream/internal/platform/errors"
)

// Cursor is an immutable ordered-result-set position marker.
// The zero value is an empty cursor with no fields.
type Cursor struct {
	fields map[string]any
}

// New builds a Cursor from a field map. Values must be scalars: string, bool,
// nil, or any numeric type. Numerics are normalized to float64 so equality
// survives the JSON round trip
func New(fields map[string]any) (Cursor, error) {
	norm := make(map[string]any, len(fields))
	for k, v := range fields {
		nv, ok := normalize(v)
		if !ok {
			return Cursor{}, perr.WithField(
				perr.InvalidCursorf("field %q: unsupported value type %T", k, v), k)
		}
		norm[k] = nv
	}
	return Cursor{fields: norm}, nil
}

// MustNew is New that panics on invalid input; for literals in tests and stores
func MustNew(fields map[string]any) Cursor {
	c, err := New(fields)
	if err != nil {
		panic(err)
	}
	return c
}

// normalize admits scalar values and folds all numerics into float64
func normalize(v any) (any, bool) {
	switch n := v.(type) {
	case nil, string, bool, float64:
		return v, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return nil, false
	}
}

// Field returns the named field value and whether it is present
func (c Cursor) Field(name string) (any, bool) {
	v, ok := c.fields[name]
	return v, ok
}

// Fields returns a copy of the underlying field map
func (c Cursor) Fields() map[string]any {
	out := make(map[string]any, len(c.fields))
	for k, v := range c.fields {
		out[k] = v
	}
	return out
}

// Len returns the number of fields
func (c Cursor) Len() int { return len(c.fields) }

// IsZero reports whether the cursor carries no fields
func (c Cursor) IsZero() bool { return len(c.fields) == 0 }

// Equal reports field-map equality, independent of field order
func (c Cursor) Equal(o Cursor) bool {
	if len(c.fields) != len(o.fields) {
		return false
	}
	for k, v := range c.fields {
		ov, ok := o.fields[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// WithUpdates merges updates over the cursor's fields and returns a new Cursor.
// The receiver is never modified
func (c Cursor) WithUpdates(updates map[string]any) (Cursor, error) {
	merged := c.Fields()
	for k, v := range updates {
		nv, ok := normalize(v)
		if !ok {
			return Cursor{}, perr.WithField(
				perr.InvalidCursorf("field %q: unsupported value type %T", k, v), k)
		}
		merged[k] = nv
	}
	return Cursor{fields: merged}, nil
}

// Encode serializes the cursor to its opaque transport form.
// encoding/json sorts map keys, so the output is deterministic
func (c Cursor) Encode() string {
	fields := c.fields
	if fields == nil {
		fields = map[string]any{}
	}
	// marshal of a scalar-only map cannot fail
	b, _ := json.Marshal(fields)
	return base64.RawURLEncoding.EncodeToString(b)
}

// String implements fmt.Stringer via Encode
func (c Cursor) String() string { return c.Encode() }

// Decode parses an opaque cursor string produced by Encode.
// Padded standard base64 is also accepted for compatibility with callers that
// re-encode cursors in transit. All failures carry ErrorCodeInvalidCursor
func Decode(s string) (Cursor, error) {
	if s == "" {
		return Cursor{}, perr.InvalidCursorf("empty cursor")
	}

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		if strings.ContainsAny(s, "+/=") {
			raw, err = base64.StdEncoding.DecodeString(s)
		}
		if err != nil {
			return Cursor{}, perr.Wrapf(err, perr.ErrorCodeInvalidCursor, "cursor is not valid base64")
		}
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Cursor{}, perr.Wrapf(err, perr.ErrorCodeInvalidCursor, "cursor payload is not valid JSON")
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return Cursor{}, perr.InvalidCursorf("cursor payload is not a JSON object")
	}

	fields := make(map[string]any, len(obj))
	for k, v := range obj {
		switch v.(type) {
		case nil, string, bool, float64:
			fields[k] = v
		default:
			// nested arrays/objects do not describe a scalar sort anchor
			return Cursor{}, perr.WithField(
				perr.InvalidCursorf("field %q: non-scalar cursor value", k), k)
		}
	}
	return Cursor{fields: fields}, nil
}

// IsInvalid reports whether err is an invalid-cursor error from this package
func IsInvalid(err error) bool { return perr.IsCode(err, perr.ErrorCodeInvalidCursor) }
