package document

import (
	"encoding/json"
	"fmt"
)

// Operator is a comparison operator usable in a where clause.
type Operator string

const (
	OpEqual            Operator = "=="
	OpNotEqual         Operator = "!="
	OpLessThan         Operator = "<"
	OpLessThanOrEqual  Operator = "<="
	OpGreaterThan      Operator = ">"
	OpGreaterThanEqual Operator = ">="
	OpIn               Operator = "in"
	OpArrayContains    Operator = "array-contains"
)

var validOperators = map[Operator]bool{
	OpEqual:            true,
	OpNotEqual:         true,
	OpLessThan:         true,
	OpLessThanOrEqual:  true,
	OpGreaterThan:      true,
	OpGreaterThanEqual: true,
	OpIn:               true,
	OpArrayContains:    true,
}

// Where is a single filter predicate.
type Where struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// Order is a single ordering clause.
type Order struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending,omitempty"`
}

// Query is an immutable description of a read against a collection:
// filter predicates, ordering, a result limit, projection, and opaque
// pagination cursors. Constructing a query never touches the cache or the
// store. The zero value matches every document with no ordering and no
// limit.
type Query struct {
	Wheres     []Where  `json:"where,omitempty"`
	Orders     []Order  `json:"orderBy,omitempty"`
	Limit      int      `json:"limit,omitempty"`
	StartAfter string   `json:"startAfter,omitempty"`
	EndBefore  string   `json:"endBefore,omitempty"`
	Fields     []string `json:"select,omitempty"`
}

// NewQuery returns an empty query.
func NewQuery() Query {
	return Query{}
}

// WithWhere returns a copy of the query with an additional filter clause.
func (q Query) WithWhere(field string, op Operator, value any) Query {
	c := q.clone()
	c.Wheres = append(c.Wheres, Where{Field: field, Operator: op, Value: value})
	return c
}

// WithOrderBy returns a copy of the query with an additional ordering clause.
func (q Query) WithOrderBy(field string, descending bool) Query {
	c := q.clone()
	c.Orders = append(c.Orders, Order{Field: field, Descending: descending})
	return c
}

// WithLimit returns a copy of the query with the given result limit.
func (q Query) WithLimit(n int) Query {
	c := q.clone()
	c.Limit = n
	return c
}

// WithStartAfter returns a copy of the query that resumes after the given
// cursor. Cursors are opaque tokens produced by a previous page.
func (q Query) WithStartAfter(cursor string) Query {
	c := q.clone()
	c.StartAfter = cursor
	return c
}

// WithEndBefore returns a copy of the query that stops before the given
// cursor.
func (q Query) WithEndBefore(cursor string) Query {
	c := q.clone()
	c.EndBefore = cursor
	return c
}

// WithSelect returns a copy of the query projecting only the given fields.
func (q Query) WithSelect(fields ...string) Query {
	c := q.clone()
	c.Fields = append([]string(nil), fields...)
	return c
}

func (q Query) clone() Query {
	c := q
	c.Wheres = append([]Where(nil), q.Wheres...)
	c.Orders = append([]Order(nil), q.Orders...)
	c.Fields = append([]string(nil), q.Fields...)
	return c
}

// Validate checks that every where clause uses a supported operator and
// names a field.
func (q Query) Validate() error {
	for _, w := range q.Wheres {
		if w.Field == "" {
			return fmt.Errorf("where clause has empty field")
		}
		if !validOperators[w.Operator] {
			return fmt.Errorf("unsupported operator %q on field %q", w.Operator, w.Field)
		}
	}
	for _, o := range q.Orders {
		if o.Field == "" {
			return fmt.Errorf("order clause has empty field")
		}
	}
	return nil
}

// Serialize returns a deterministic string form of the query, used for
// cache-key derivation. Clause order is preserved as given: two queries
// with the same clauses in a different order serialize differently and
// cache independently.
func (q Query) Serialize() string {
	b, err := json.Marshal(q)
	if err != nil {
		// Fields values are JSON-representable by contract; this path
		// only triggers on misuse and still yields a usable key.
		return fmt.Sprintf("%+v", q)
	}
	return string(b)
}

// DocumentCacheKey derives the cache key for a single-document read.
func DocumentCacheKey(collection, id string) string {
	return fmt.Sprintf("%s:%s", collection, id)
}

// QueryCacheKey derives the cache key for a query-result read. Distinct
// queries never collide because the full serialized form is embedded.
func QueryCacheKey(collection string, q Query) string {
	return fmt.Sprintf("query:%s:%s", collection, q.Serialize())
}
