// Package memory provides an in-process implementation of the store port.
// It backs local development and tests, selected at startup by
// configuration the same way the DynamoDB store is.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Hrishnugg/SynDataGen-Rewrite-sub000/application/ports"
	"github.com/Hrishnugg/SynDataGen-Rewrite-sub000/domain/document"
	apperrors "github.com/Hrishnugg/SynDataGen-Rewrite-sub000/pkg/errors"
)

// CallCounts records how many times each store operation ran. Tests use it
// to verify which reads were served from cache.
type CallCounts struct {
	Connect int
	Get     int
	Query   int
	Set     int
	Add     int
	Update  int
	Delete  int
}

// Store is an in-memory document store. All operations are safe for
// concurrent use.
type Store struct {
	mu          sync.Mutex
	collections map[string]map[string]document.Fields
	calls       CallCounts
	now         func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		collections: make(map[string]map[string]document.Fields),
		now:         time.Now,
	}
}

var _ ports.Store = (*Store)(nil)

// Connect is a no-op; the in-memory store is always reachable.
func (s *Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.Connect++
	return nil
}

// Calls returns a snapshot of the per-operation call counters.
func (s *Store) Calls() CallCounts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Get retrieves a document by ID.
func (s *Store) Get(ctx context.Context, collection, id string) (document.Document, bool, error) {
	if err := ctx.Err(); err != nil {
		return document.Document{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.Get++

	fields, ok := s.collections[collection][id]
	if !ok {
		return document.Document{}, false, nil
	}
	return document.New(id, fields), true, nil
}

// Query evaluates q against a collection: where clauses filter, orderBy
// clauses sort (documents are pre-sorted by ID for stable cursors), then
// cursors and the limit trim the result.
func (s *Store) Query(ctx context.Context, collection string, q document.Query) ([]document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.Query++

	docs := make([]document.Document, 0, len(s.collections[collection]))
	for id, fields := range s.collections[collection] {
		doc := document.New(id, fields)
		match, err := matchesAll(doc, q.Wheres)
		if err != nil {
			return nil, err
		}
		if match {
			docs = append(docs, doc)
		}
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	document.SortByOrders(docs, q.Orders)

	docs = document.ApplyCursorWindow(docs, q.StartAfter, q.EndBefore)
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	if len(q.Fields) > 0 {
		for i, doc := range docs {
			docs[i] = doc.Select(q.Fields)
		}
	}
	return docs, nil
}

// Set writes a document under a caller-chosen ID, replacing or merging.
func (s *Store) Set(ctx context.Context, collection, id string, fields document.Fields, merge bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.Set++
	s.setLocked(collection, id, fields, merge)
	return nil
}

// Add writes a document under a generated UUID and returns it.
func (s *Store) Add(ctx context.Context, collection string, fields document.Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.Add++

	id := uuid.NewString()
	s.setLocked(collection, id, fields, false)
	return id, nil
}

// Update applies a partial update to an existing document. Updating a
// missing document fails with a NOT_FOUND error.
func (s *Store) Update(ctx context.Context, collection, id string, fields document.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.Update++

	if _, ok := s.collections[collection][id]; !ok {
		return apperrors.NewNotFoundError(collection, id)
	}
	s.setLocked(collection, id, fields, true)
	return nil
}

// Delete removes a document. Absent documents are ignored.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.Delete++

	delete(s.collections[collection], id)
	return nil
}

// RunTransaction buffers writes issued by fn and applies them atomically
// under the store lock when fn returns nil.
func (s *Store) RunTransaction(ctx context.Context, fn func(tx ports.Transaction) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &transaction{store: s}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range tx.ops {
		op()
	}
	return nil
}

// ServerTimestamp returns the sentinel replaced with the store clock at
// commit time.
func (s *Store) ServerTimestamp() any {
	return document.ServerTimestamp{}
}

func (s *Store) setLocked(collection, id string, fields document.Fields, merge bool) {
	col, ok := s.collections[collection]
	if !ok {
		col = make(map[string]document.Fields)
		s.collections[collection] = col
	}

	resolved := document.ResolveTimestamps(fields, s.now())
	if merge {
		if existing, ok := col[id]; ok {
			merged := make(document.Fields, len(existing)+len(resolved))
			for k, v := range existing {
				merged[k] = v
			}
			for k, v := range resolved {
				merged[k] = v
			}
			col[id] = merged
			return
		}
	}
	col[id] = resolved
}

// transaction buffers mutations until commit. Reads observe committed
// state, not buffered writes.
type transaction struct {
	store *Store
	ops   []func()
}

var _ ports.Transaction = (*transaction)(nil)

func (t *transaction) Get(collection, id string) (document.Document, bool, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	fields, ok := t.store.collections[collection][id]
	if !ok {
		return document.Document{}, false, nil
	}
	return document.New(id, fields), true, nil
}

func (t *transaction) Set(collection, id string, fields document.Fields, merge bool) error {
	t.ops = append(t.ops, func() { t.store.setLocked(collection, id, fields, merge) })
	return nil
}

func (t *transaction) Update(collection, id string, fields document.Fields) error {
	t.ops = append(t.ops, func() { t.store.setLocked(collection, id, fields, true) })
	return nil
}

func (t *transaction) Delete(collection, id string) error {
	t.ops = append(t.ops, func() { delete(t.store.collections[collection], id) })
	return nil
}

// matchesAll reports whether doc satisfies every where clause.
func matchesAll(doc document.Document, wheres []document.Where) (bool, error) {
	for _, w := range wheres {
		ok, err := matches(doc, w)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matches(doc document.Document, w document.Where) (bool, error) {
	value, present := doc.Get(w.Field)

	switch w.Operator {
	case document.OpEqual:
		return present && document.CompareValues(value, w.Value) == 0, nil
	case document.OpNotEqual:
		return present && document.CompareValues(value, w.Value) != 0, nil
	case document.OpLessThan:
		return present && document.CompareValues(value, w.Value) < 0, nil
	case document.OpLessThanOrEqual:
		return present && document.CompareValues(value, w.Value) <= 0, nil
	case document.OpGreaterThan:
		return present && document.CompareValues(value, w.Value) > 0, nil
	case document.OpGreaterThanEqual:
		return present && document.CompareValues(value, w.Value) >= 0, nil
	case document.OpIn:
		candidates, ok := w.Value.([]any)
		if !ok {
			return false, fmt.Errorf("operator %q requires a list value", w.Operator)
		}
		for _, c := range candidates {
			if present && document.CompareValues(value, c) == 0 {
				return true, nil
			}
		}
		return false, nil
	case document.OpArrayContains:
		items, ok := value.([]any)
		if !ok {
			return false, nil
		}
		for _, item := range items {
			if document.CompareValues(item, w.Value) == 0 {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("unsupported operator %q", w.Operator)
	}
}
