// Package documents implements the cached access layer in front of the
// remote document store: reads go through the in-process cache, writes go
// to the store and invalidate the affected cache entries.
package documents

import (
	"context"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Hrishnugg/SynDataGen-Rewrite-sub000/application/ports"
	"github.com/Hrishnugg/SynDataGen-Rewrite-sub000/domain/document"
	apperrors "github.com/Hrishnugg/SynDataGen-Rewrite-sub000/pkg/errors"
	"github.com/Hrishnugg/SynDataGen-Rewrite-sub000/pkg/observability"
)

const (
	// defaultQueryLimit caps unbounded queries.
	defaultQueryLimit = 100

	// preloadPageSize is how many documents per collection are fetched when
	// warming the cache at startup.
	preloadPageSize = 20

	// defaultPageSize applies when a pagination call does not specify one.
	defaultPageSize = 20

	// initRetries is how many times a failed store connection is retried
	// before initialization is declared fatal.
	initRetries = 2

	// initBackoff is the fixed delay between connection attempts.
	initBackoff = 100 * time.Millisecond
)

// Options tune a single read operation.
type Options struct {
	// TTL overrides the cache's default TTL for the entry this read caches.
	TTL time.Duration

	// SkipCache bypasses the cache entirely for this read. The fetched
	// result is still not written back.
	SkipCache bool

	// SelectFields restricts the returned (and cached) document to the ID
	// plus the named fields. Applied after fetch, not pushed to the store.
	SelectFields []string
}

// Page is one page of a paginated query.
type Page struct {
	Items      []document.Document `json:"items"`
	LastCursor string              `json:"lastCursor"`
	HasMore    bool                `json:"hasMore"`
}

// Service is the cached document access layer. One instance shares one
// logical store connection process-wide; initialization happens lazily on
// the first operation and is safe under concurrent first-call races.
//
// A missing or failed cache degrades the service to store-only operation.
// Caching is never a correctness dependency.
type Service struct {
	store   ports.Store
	cache   ports.Cache
	logger  *zap.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer

	initMu sync.Mutex
	ready  atomic.Bool
}

// NewService creates the access layer. cache, metrics, and tracer may be
// nil; a nil cache is reported once as degraded operation.
func NewService(store ports.Store, cache ports.Cache, logger *zap.Logger, metrics *observability.Metrics, tracer *observability.Tracer) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		degraded := apperrors.NewCacheDegradedError("no cache configured, operating store-only", nil)
		logger.Warn("document service degraded", zap.Error(degraded))
	}
	return &Service{
		store:   store,
		cache:   cache,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
	}
}

// ensureReady establishes the store connection on first use. Concurrent
// callers serialize on one in-flight initialization; once ready, the
// service stays ready for the process lifetime.
func (s *Service) ensureReady(ctx context.Context) error {
	if s.ready.Load() {
		return nil
	}

	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.ready.Load() {
		return nil
	}

	var lastErr error
	for attempt := 0; attempt <= initRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return apperrors.NewInitializationError("initialization cancelled", ctx.Err())
			case <-time.After(initBackoff):
			}
		}

		if err := s.store.Connect(ctx); err != nil {
			lastErr = err
			s.logger.Warn("store connection attempt failed",
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			continue
		}

		s.ready.Store(true)
		s.logger.Info("document store connection established")
		return nil
	}

	return apperrors.NewInitializationError("could not connect to document store", lastErr)
}

// GetByID returns a single document, reading through the cache. Absence is
// reported with found=false and is never cached: repeated misses repeat
// the store call.
func (s *Service) GetByID(ctx context.Context, collection, id string, opts *Options) (document.Document, bool, error) {
	if err := s.ensureReady(ctx); err != nil {
		return document.Document{}, false, err
	}
	start := time.Now()
	var opErr error
	defer func() { s.metrics.RecordOperation(ctx, "getById", collection, time.Since(start), opErr) }()

	if opts == nil {
		opts = &Options{}
	}
	key := document.DocumentCacheKey(collection, id)

	if !opts.SkipCache {
		if cached, ok := s.cacheGet(key); ok {
			if doc, ok := cached.(document.Document); ok {
				s.metrics.RecordCacheHit(ctx, collection)
				return doc, true, nil
			}
		}
		s.metrics.RecordCacheMiss(ctx, collection)
	}

	var (
		doc   document.Document
		found bool
	)
	opErr = s.traceStore(ctx, "get", collection, func(ctx context.Context) error {
		var err error
		doc, found, err = s.store.Get(ctx, collection, id)
		return err
	})
	if opErr != nil {
		opErr = apperrors.NewQueryError(collection, opErr).WithOperation(collection, "getById")
		return document.Document{}, false, opErr
	}
	if !found {
		return document.Document{}, false, nil
	}

	if len(opts.SelectFields) > 0 {
		doc = doc.Select(opts.SelectFields)
	}
	if !opts.SkipCache {
		s.cacheSet(key, doc, opts.TTL)
	}
	return doc, true, nil
}

// Query returns all documents matching q, reading through the cache. The
// cache key embeds the full serialized query so distinct queries never
// collide. An unspecified limit defaults to 100 to guard against unbounded
// reads.
func (s *Service) Query(ctx context.Context, collection string, q document.Query, opts *Options) ([]document.Document, error) {
	if err := s.ensureReady(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	var opErr error
	defer func() { s.metrics.RecordOperation(ctx, "query", collection, time.Since(start), opErr) }()

	if opts == nil {
		opts = &Options{}
	}
	if err := q.Validate(); err != nil {
		opErr = apperrors.NewQueryError(collection, err).WithOperation(collection, "query")
		return nil, opErr
	}
	if q.Limit <= 0 {
		q = q.WithLimit(defaultQueryLimit)
	}
	key := document.QueryCacheKey(collection, q)

	if !opts.SkipCache {
		if cached, ok := s.cacheGet(key); ok {
			if docs, ok := cached.([]document.Document); ok {
				s.metrics.RecordCacheHit(ctx, collection)
				return docs, nil
			}
		}
		s.metrics.RecordCacheMiss(ctx, collection)
	}

	var docs []document.Document
	opErr = s.traceStore(ctx, "query", collection, func(ctx context.Context) error {
		var err error
		docs, err = s.store.Query(ctx, collection, q)
		return err
	})
	if opErr != nil {
		opErr = apperrors.NewQueryError(collection, opErr).WithOperation(collection, "query")
		return nil, opErr
	}

	if !opts.SkipCache {
		s.cacheSet(key, docs, opts.TTL)
	}
	return docs, nil
}

// QueryWithPagination returns one page of results plus a cursor for the
// next page. It requests pageSize+1 items so HasMore needs no separate
// count query. Pages are never cached: cursors are request-specific and
// have low reuse value.
func (s *Service) QueryWithPagination(ctx context.Context, collection string, q document.Query, pageSize int) (Page, error) {
	if err := s.ensureReady(ctx); err != nil {
		return Page{}, err
	}
	start := time.Now()
	var opErr error
	defer func() { s.metrics.RecordOperation(ctx, "queryWithPagination", collection, time.Since(start), opErr) }()

	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if err := q.Validate(); err != nil {
		opErr = apperrors.NewQueryError(collection, err).WithOperation(collection, "queryWithPagination")
		return Page{}, opErr
	}

	fetch := q.WithLimit(pageSize + 1)
	var docs []document.Document
	opErr = s.traceStore(ctx, "query", collection, func(ctx context.Context) error {
		var err error
		docs, err = s.store.Query(ctx, collection, fetch)
		return err
	})
	if opErr != nil {
		opErr = apperrors.NewQueryError(collection, opErr).WithOperation(collection, "queryWithPagination")
		return Page{}, opErr
	}

	page := Page{HasMore: len(docs) > pageSize}
	if page.HasMore {
		docs = docs[:pageSize]
	}
	page.Items = docs
	if len(docs) > 0 {
		page.LastCursor = docs[len(docs)-1].ID
	}
	return page, nil
}

// Create writes a new document under a store-generated ID and returns the
// ID. createdAt/updatedAt are stamped with the store's server timestamp
// unless already present. All cached query results for the collection are
// invalidated; no document key can exist yet for the new ID.
func (s *Service) Create(ctx context.Context, collection string, fields document.Fields) (string, error) {
	if err := s.ensureReady(ctx); err != nil {
		return "", err
	}
	start := time.Now()
	var opErr error
	defer func() { s.metrics.RecordOperation(ctx, "create", collection, time.Since(start), opErr) }()

	stamped := s.stampTimestamps(fields, false)
	var id string
	opErr = s.traceStore(ctx, "add", collection, func(ctx context.Context) error {
		var err error
		id, err = s.store.Add(ctx, collection, stamped)
		return err
	})
	if opErr != nil {
		opErr = apperrors.NewWriteError(collection, "create", opErr)
		return "", opErr
	}

	s.invalidateQueries(collection)
	return id, nil
}

// CreateWithID writes a document under a caller-supplied ID, replacing it
// in full or merging per merge. Both the document's cache entry and all
// cached query results for the collection are invalidated.
func (s *Service) CreateWithID(ctx context.Context, collection, id string, fields document.Fields, merge bool) error {
	if err := s.ensureReady(ctx); err != nil {
		return err
	}
	start := time.Now()
	var opErr error
	defer func() { s.metrics.RecordOperation(ctx, "createWithId", collection, time.Since(start), opErr) }()

	stamped := s.stampTimestamps(fields, false)
	opErr = s.traceStore(ctx, "set", collection, func(ctx context.Context) error {
		return s.store.Set(ctx, collection, id, stamped, merge)
	})
	if opErr != nil {
		opErr = apperrors.NewWriteError(collection, "createWithId", opErr)
		return opErr
	}

	s.invalidateDocument(collection, id)
	return nil
}

// Update applies a partial update. updatedAt is always stamped to the
// store's server time. Updating a missing document fails with a NOT_FOUND
// error. Both the document's cache entry and all cached query results for
// the collection are invalidated, since a changed field might affect
// membership or ordering of any cached query.
func (s *Service) Update(ctx context.Context, collection, id string, fields document.Fields) error {
	if err := s.ensureReady(ctx); err != nil {
		return err
	}
	start := time.Now()
	var opErr error
	defer func() { s.metrics.RecordOperation(ctx, "update", collection, time.Since(start), opErr) }()

	stamped := s.stampTimestamps(fields, true)
	opErr = s.traceStore(ctx, "update", collection, func(ctx context.Context) error {
		return s.store.Update(ctx, collection, id, stamped)
	})
	if opErr != nil {
		if !apperrors.IsNotFound(opErr) {
			opErr = apperrors.NewWriteError(collection, "update", opErr)
		}
		return opErr
	}

	s.invalidateDocument(collection, id)
	return nil
}

// Delete removes a document and invalidates its cache entry plus all
// cached query results for the collection.
func (s *Service) Delete(ctx context.Context, collection, id string) error {
	if err := s.ensureReady(ctx); err != nil {
		return err
	}
	start := time.Now()
	var opErr error
	defer func() { s.metrics.RecordOperation(ctx, "delete", collection, time.Since(start), opErr) }()

	opErr = s.traceStore(ctx, "delete", collection, func(ctx context.Context) error {
		return s.store.Delete(ctx, collection, id)
	})
	if opErr != nil {
		opErr = apperrors.NewDeleteError(collection, id, opErr)
		return opErr
	}

	s.invalidateDocument(collection, id)
	return nil
}

// RunInTransaction passes fn through to the store's transaction primitive
// with error wrapping only. The cache is neither consulted nor updated
// inside a transaction; callers must not assume transactional reads are
// cache-backed.
func (s *Service) RunInTransaction(ctx context.Context, fn func(tx ports.Transaction) error) error {
	if err := s.ensureReady(ctx); err != nil {
		return err
	}

	if err := s.store.RunTransaction(ctx, fn); err != nil {
		return apperrors.NewTransactionError(err)
	}
	return nil
}

// PreloadCollections warms the cache for frequently-accessed collections:
// the first documents of each collection are seeded under their document
// keys plus a synthetic first-page query key. Per-collection failures are
// logged and never abort preloading the rest.
func (s *Service) PreloadCollections(ctx context.Context, collections []string) {
	if err := s.ensureReady(ctx); err != nil {
		s.logger.Warn("preload skipped, store not ready", zap.Error(err))
		return
	}
	if s.cache == nil {
		return
	}

	firstPage := document.NewQuery().WithLimit(preloadPageSize)
	for _, collection := range collections {
		var docs []document.Document
		err := s.traceStore(ctx, "query", collection, func(ctx context.Context) error {
			var err error
			docs, err = s.store.Query(ctx, collection, firstPage)
			return err
		})
		if err != nil {
			s.logger.Warn("collection preload failed",
				zap.String("collection", collection),
				zap.Error(err),
			)
			continue
		}

		for _, doc := range docs {
			s.cacheSet(document.DocumentCacheKey(collection, doc.ID), doc, 0)
		}
		s.cacheSet(document.QueryCacheKey(collection, firstPage), docs, 0)
		s.logger.Info("collection preloaded",
			zap.String("collection", collection),
			zap.Int("documents", len(docs)),
		)
	}
}

// stampTimestamps fills createdAt/updatedAt with the store's server
// timestamp. updatedAt is forced when force is set (update paths); both
// are otherwise only added when the caller did not supply them.
func (s *Service) stampTimestamps(fields document.Fields, force bool) document.Fields {
	stamped := make(document.Fields, len(fields)+2)
	for k, v := range fields {
		stamped[k] = v
	}
	if _, ok := stamped["createdAt"]; !ok && !force {
		stamped["createdAt"] = s.store.ServerTimestamp()
	}
	if _, ok := stamped["updatedAt"]; !ok || force {
		stamped["updatedAt"] = s.store.ServerTimestamp()
	}
	return stamped
}

func (s *Service) traceStore(ctx context.Context, operation, collection string, fn func(context.Context) error) error {
	if s.tracer == nil {
		return fn(ctx)
	}
	return s.tracer.TraceStoreCall(ctx, operation, collection, fn)
}

// cacheGet and cacheSet shield the service from a degraded cache; every
// cache failure mode is a miss, never an error.

func (s *Service) cacheGet(key string) (any, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(key)
}

func (s *Service) cacheSet(key string, value any, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	s.cache.Set(key, value, ttl)
}

// invalidateQueries drops every cached query result for a collection.
// Invalidation is best-effort immediate: a concurrent reader may observe a
// stale value during the sub-millisecond window between the store commit
// and this map deletion.
func (s *Service) invalidateQueries(collection string) {
	if s.cache == nil {
		return
	}
	pattern := "^query:" + regexp.QuoteMeta(collection) + ":"
	if _, err := s.cache.InvalidatePattern(pattern); err != nil {
		s.logger.Warn("query invalidation failed",
			zap.String("collection", collection),
			zap.Error(err),
		)
	}
}

// invalidateDocument drops a document's cache entry and every cached query
// result for its collection.
func (s *Service) invalidateDocument(collection, id string) {
	if s.cache == nil {
		return
	}
	s.cache.Delete(document.DocumentCacheKey(collection, id))
	s.invalidateQueries(collection)
}
