package document

import (
	"encoding/json"
	"fmt"
	"time"
)

// Fields holds the field values of a document. Values are restricted to
// JSON-representable types: string, float64, int, int64, bool, time.Time,
// nested map[string]any, and []any.
type Fields map[string]any

// Document is an identified record within a collection of the remote store.
// The access layer treats field contents as opaque; only the ID carries
// identity semantics.
type Document struct {
	ID     string `json:"id"`
	Fields Fields `json:"fields"`
}

// New creates a document with the given ID and a copy of the supplied fields.
func New(id string, fields Fields) Document {
	return Document{ID: id, Fields: cloneFields(fields)}
}

// Get returns the value of a field and whether it was present.
func (d Document) Get(field string) (any, bool) {
	v, ok := d.Fields[field]
	return v, ok
}

// Select returns a copy of the document containing only the requested
// fields. The ID is always retained. Unknown field names are ignored.
func (d Document) Select(fields []string) Document {
	if len(fields) == 0 {
		return d.Clone()
	}
	selected := make(Fields, len(fields))
	for _, f := range fields {
		if v, ok := d.Fields[f]; ok {
			selected[f] = v
		}
	}
	return Document{ID: d.ID, Fields: selected}
}

// Clone returns a deep-enough copy of the document. Top-level fields are
// copied; nested maps and slices are shared, which is acceptable because
// documents handed out by the access layer are treated as read-only.
func (d Document) Clone() Document {
	return Document{ID: d.ID, Fields: cloneFields(d.Fields)}
}

func cloneFields(fields Fields) Fields {
	if fields == nil {
		return Fields{}
	}
	out := make(Fields, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// EstimateSize approximates the in-memory footprint of v in bytes using the
// length of its JSON encoding, doubled to account for boxing and map
// overhead. The approximation is intentional; callers must not rely on it
// being byte-exact.
func EstimateSize(v any) int64 {
	b, err := json.Marshal(v)
	if err != nil {
		return int64(2 * len(fmt.Sprintf("%v", v)))
	}
	return int64(2 * len(b))
}

// ServerTimestamp is the opaque sentinel stores replace with their own
// commit-time clock. Comparing against it is the only supported operation.
type ServerTimestamp struct{}

// IsServerTimestamp reports whether v is the server-timestamp sentinel.
func IsServerTimestamp(v any) bool {
	_, ok := v.(ServerTimestamp)
	return ok
}

// ResolveTimestamps returns a copy of fields with every server-timestamp
// sentinel replaced by now. Used by store implementations at commit time.
func ResolveTimestamps(fields Fields, now time.Time) Fields {
	out := make(Fields, len(fields))
	for k, v := range fields {
		if IsServerTimestamp(v) {
			out[k] = now.UTC()
			continue
		}
		out[k] = v
	}
	return out
}
