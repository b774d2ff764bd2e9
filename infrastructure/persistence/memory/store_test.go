package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hrishnugg/SynDataGen-Rewrite-sub000/application/ports"
	"github.com/Hrishnugg/SynDataGen-Rewrite-sub000/domain/document"
	apperrors "github.com/Hrishnugg/SynDataGen-Rewrite-sub000/pkg/errors"
)

func seedStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	store := NewStore()

	seed := map[string]document.Fields{
		"p1": {"name": "alpha", "size": 1, "tags": []any{"a", "b"}},
		"p2": {"name": "beta", "size": 5, "tags": []any{"b"}},
		"p3": {"name": "gamma", "size": 3, "tags": []any{"c"}},
	}
	for id, fields := range seed {
		require.NoError(t, store.Set(ctx, "projects", id, fields, false))
	}
	return store
}

func ids(docs []document.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestGetAbsent(t *testing.T) {
	store := NewStore()

	_, found, err := store.Get(context.Background(), "projects", "nope")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 1, store.Calls().Get)
}

func TestQueryOperators(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)

	cases := []struct {
		name  string
		query document.Query
		want  []string
	}{
		{
			name:  "equality",
			query: document.NewQuery().WithWhere("name", document.OpEqual, "beta"),
			want:  []string{"p2"},
		},
		{
			name:  "not equal",
			query: document.NewQuery().WithWhere("name", document.OpNotEqual, "beta"),
			want:  []string{"p1", "p3"},
		},
		{
			name:  "range",
			query: document.NewQuery().WithWhere("size", document.OpGreaterThanEqual, 3),
			want:  []string{"p2", "p3"},
		},
		{
			name: "combined clauses",
			query: document.NewQuery().
				WithWhere("size", document.OpGreaterThan, 1).
				WithWhere("size", document.OpLessThan, 5),
			want: []string{"p3"},
		},
		{
			name:  "in",
			query: document.NewQuery().WithWhere("name", document.OpIn, []any{"alpha", "gamma"}),
			want:  []string{"p1", "p3"},
		},
		{
			name:  "array contains",
			query: document.NewQuery().WithWhere("tags", document.OpArrayContains, "b"),
			want:  []string{"p1", "p2"},
		},
		{
			name:  "missing field never matches",
			query: document.NewQuery().WithWhere("owner", document.OpEqual, "x"),
			want:  []string{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			docs, err := store.Query(ctx, "projects", tc.query)
			require.NoError(t, err)
			assert.ElementsMatch(t, tc.want, ids(docs))
		})
	}
}

func TestQueryOrderingAndLimit(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)

	docs, err := store.Query(ctx, "projects", document.NewQuery().WithOrderBy("size", true).WithLimit(2))
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p3"}, ids(docs))
}

func TestQueryCursors(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)

	first, err := store.Query(ctx, "projects", document.NewQuery().WithLimit(2))
	require.NoError(t, err)
	require.Equal(t, []string{"p1", "p2"}, ids(first))

	rest, err := store.Query(ctx, "projects", document.NewQuery().WithStartAfter("p2"))
	require.NoError(t, err)
	assert.Equal(t, []string{"p3"}, ids(rest))

	window, err := store.Query(ctx, "projects", document.NewQuery().WithEndBefore("p3"))
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, ids(window))
}

func TestQueryProjection(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)

	docs, err := store.Query(ctx, "projects", document.NewQuery().WithSelect("name"))
	require.NoError(t, err)
	require.NotEmpty(t, docs)
	for _, doc := range docs {
		_, hasName := doc.Get("name")
		_, hasSize := doc.Get("size")
		assert.True(t, hasName)
		assert.False(t, hasSize)
	}
}

func TestSetMergeSemantics(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.Set(ctx, "projects", "p1", document.Fields{"a": 1, "b": 2}, false))
	require.NoError(t, store.Set(ctx, "projects", "p1", document.Fields{"b": 3}, true))

	doc, found, err := store.Get(ctx, "projects", "p1")
	require.NoError(t, err)
	require.True(t, found)
	a, _ := doc.Get("a")
	b, _ := doc.Get("b")
	assert.Equal(t, 1, a)
	assert.Equal(t, 3, b)

	// Full replace drops unmentioned fields.
	require.NoError(t, store.Set(ctx, "projects", "p1", document.Fields{"c": 4}, false))
	doc, _, err = store.Get(ctx, "projects", "p1")
	require.NoError(t, err)
	_, hasA := doc.Get("a")
	assert.False(t, hasA)
}

func TestSetMergeCreatesMissingDocument(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.Set(ctx, "projects", "p1", document.Fields{"a": 1}, true))

	doc, found, err := store.Get(ctx, "projects", "p1")
	require.NoError(t, err)
	require.True(t, found)
	a, _ := doc.Get("a")
	assert.Equal(t, 1, a)
}

func TestUpdateMissingDocumentFails(t *testing.T) {
	store := NewStore()

	err := store.Update(context.Background(), "projects", "nope", document.Fields{"a": 1})
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestAddGeneratesIDs(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	id1, err := store.Add(ctx, "projects", document.Fields{"n": 1})
	require.NoError(t, err)
	id2, err := store.Add(ctx, "projects", document.Fields{"n": 2})
	require.NoError(t, err)
	assert.NotEmpty(t, id1)
	assert.NotEqual(t, id1, id2)
}

func TestServerTimestampResolution(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.Set(ctx, "projects", "p1", document.Fields{
		"createdAt": store.ServerTimestamp(),
	}, false))

	doc, _, err := store.Get(ctx, "projects", "p1")
	require.NoError(t, err)
	created, _ := doc.Get("createdAt")
	_, isTime := created.(time.Time)
	assert.True(t, isTime)
}

func TestTransactionCommitAndAbort(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	err := store.RunTransaction(ctx, func(tx ports.Transaction) error {
		if err := tx.Set("projects", "p1", document.Fields{"n": 1}, false); err != nil {
			return err
		}
		return tx.Set("projects", "p2", document.Fields{"n": 2}, false)
	})
	require.NoError(t, err)

	_, found, err := store.Get(ctx, "projects", "p2")
	require.NoError(t, err)
	assert.True(t, found)

	abort := errors.New("abort")
	err = store.RunTransaction(ctx, func(tx ports.Transaction) error {
		_ = tx.Delete("projects", "p1")
		return abort
	})
	assert.ErrorIs(t, err, abort)

	_, found, err = store.Get(ctx, "projects", "p1")
	require.NoError(t, err)
	assert.True(t, found, "aborted transaction must not apply buffered writes")
}

func TestCancelledContext(t *testing.T) {
	store := seedStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Query(ctx, "projects", document.NewQuery())
	assert.Error(t, err)
}
