package document

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryBuilderIsImmutable(t *testing.T) {
	base := NewQuery().WithWhere("name", OpEqual, "A")

	withLimit := base.WithLimit(10)
	withMore := base.WithWhere("size", OpGreaterThan, 5)

	assert.Zero(t, base.Limit)
	assert.Len(t, base.Wheres, 1)
	assert.Equal(t, 10, withLimit.Limit)
	assert.Len(t, withMore.Wheres, 2)
}

func TestQueryValidate(t *testing.T) {
	assert.NoError(t, NewQuery().Validate())
	assert.NoError(t, NewQuery().WithWhere("a", OpIn, []any{1, 2}).Validate())

	assert.Error(t, NewQuery().WithWhere("a", "~=", 1).Validate())
	assert.Error(t, NewQuery().WithWhere("", OpEqual, 1).Validate())
	assert.Error(t, Query{Orders: []Order{{Field: ""}}}.Validate())
}

func TestSerializeIsDeterministic(t *testing.T) {
	q := NewQuery().
		WithWhere("name", OpEqual, "A").
		WithOrderBy("createdAt", true).
		WithLimit(50)

	assert.Equal(t, q.Serialize(), q.Serialize())
}

func TestClauseOrderAffectsSerialization(t *testing.T) {
	// Raw-serialization keying: logically identical queries with reordered
	// clauses cache independently.
	a := NewQuery().WithWhere("x", OpEqual, 1).WithWhere("y", OpEqual, 2)
	b := NewQuery().WithWhere("y", OpEqual, 2).WithWhere("x", OpEqual, 1)

	assert.NotEqual(t, a.Serialize(), b.Serialize())
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "projects:p1", DocumentCacheKey("projects", "p1"))

	key := QueryCacheKey("projects", NewQuery().WithLimit(100))
	assert.Contains(t, key, "query:projects:")
	assert.Contains(t, key, "100")

	other := QueryCacheKey("projects", NewQuery().WithLimit(50))
	assert.NotEqual(t, key, other)
}

func TestDocumentSelect(t *testing.T) {
	doc := New("p1", Fields{"name": "A", "size": 3, "secret": "x"})

	selected := doc.Select([]string{"name", "unknown"})
	assert.Equal(t, "p1", selected.ID)
	_, ok := selected.Get("name")
	assert.True(t, ok)
	_, ok = selected.Get("secret")
	assert.False(t, ok)

	// Empty selection returns the full document.
	full := doc.Select(nil)
	assert.Len(t, full.Fields, 3)
}

func TestEstimateSize(t *testing.T) {
	small := EstimateSize("ab")
	large := EstimateSize(map[string]any{"a": "a much longer payload than the small one"})

	assert.Positive(t, small)
	assert.Greater(t, large, small)

	// Unmarshalable values still get a usable estimate.
	assert.Positive(t, EstimateSize(make(chan int)))
}

func TestResolveTimestamps(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fields := Fields{"name": "A", "createdAt": ServerTimestamp{}}
	resolved := ResolveTimestamps(fields, now)

	assert.Equal(t, "A", resolved["name"])
	assert.Equal(t, now, resolved["createdAt"])
	assert.True(t, IsServerTimestamp(fields["createdAt"]), "input is untouched")
}

func TestSortByOrders(t *testing.T) {
	docs := []Document{
		New("a", Fields{"n": 2, "s": "x"}),
		New("b", Fields{"n": 1, "s": "y"}),
		New("c", Fields{"n": 2, "s": "w"}),
	}

	SortByOrders(docs, []Order{{Field: "n"}, {Field: "s", Descending: true}})
	require.Len(t, docs, 3)
	assert.Equal(t, "b", docs[0].ID)
	assert.Equal(t, "a", docs[1].ID)
	assert.Equal(t, "c", docs[2].ID)
}

func TestApplyCursorWindow(t *testing.T) {
	docs := []Document{New("a", nil), New("b", nil), New("c", nil), New("d", nil)}

	window := ApplyCursorWindow(docs, "a", "d")
	require.Len(t, window, 2)
	assert.Equal(t, "b", window[0].ID)
	assert.Equal(t, "c", window[1].ID)

	// Unknown cursors leave that edge open.
	open := ApplyCursorWindow(docs, "zzz", "")
	assert.Len(t, open, 4)
}
