// Package cache implements the process-local cache that fronts the remote
// document store: per-entry TTL, approximate size accounting, hybrid
// LRU/LFU eviction bounded by entry count and byte size, pattern-based
// invalidation, and hit/miss statistics.
package cache

import (
	"fmt"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Hrishnugg/SynDataGen-Rewrite-sub000/domain/document"
)

// Config holds cache configuration. It is immutable after Initialize.
type Config struct {
	// Enabled is the master switch. A disabled cache reports every Get as
	// absent and ignores every Set.
	Enabled bool

	// DefaultTTL applies to entries stored without an explicit TTL.
	DefaultTTL time.Duration

	// MaxEntries bounds the number of entries. Zero means unbounded.
	MaxEntries int

	// MaxSizeBytes bounds the approximate total size. Zero means unbounded.
	MaxSizeBytes int64

	// LogHits enables debug logging of individual cache hits.
	LogHits bool
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		DefaultTTL: 5 * time.Minute,
	}
}

// entry is the bookkeeping record for one cached key. Owned exclusively by
// the Service; values are never handed out by reference to internal state.
type entry struct {
	data         any
	expiresAt    time.Time
	createdAt    time.Time
	lastAccessed time.Time
	accessCount  int64
	size         int64
	seq          uint64 // insertion order, breaks eviction-score ties
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"`
	Entries   int     `json:"entries"`
	SizeBytes int64   `json:"sizeBytes"`
	HitRatio  float64 `json:"hitRatio"`
}

// Service is a bounded, expiring, in-process key/value cache. A single
// mutex serializes all operations; every method is memory-bound and safe
// for concurrent use.
//
// Invariant: currentSize always equals the sum of entry sizes, tracked
// incrementally on every insert, overwrite, delete, and eviction.
type Service struct {
	mu          sync.Mutex
	cfg         Config
	entries     map[string]*entry
	currentSize int64
	seq         uint64

	hits      uint64
	misses    uint64
	evictions uint64

	logger *zap.Logger

	// now is swapped out by tests to simulate the clock.
	now func() time.Time
}

// NewService creates a cache with the given configuration.
func NewService(cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:     cfg,
		entries: make(map[string]*entry),
		logger:  logger,
		now:     time.Now,
	}
}

// Initialize resets the configuration. When the new configuration disables
// the cache, existing entries are dropped; lifetime counters survive either
// way.
func (s *Service) Initialize(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg = cfg
	if !cfg.Enabled {
		s.entries = make(map[string]*entry)
		s.currentSize = 0
	}
}

// Get returns the cached value for key. A disabled cache always reports
// absent without touching counters. An expired entry is removed, counted
// as one eviction and one miss. A hit bumps the entry's access count and
// recency.
func (s *Service) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Enabled {
		return nil, false
	}

	e, ok := s.entries[key]
	if !ok {
		s.misses++
		return nil, false
	}

	now := s.now()
	if now.After(e.expiresAt) {
		s.removeLocked(key, e)
		s.evictions++
		s.misses++
		return nil, false
	}

	e.accessCount++
	e.lastAccessed = now
	s.hits++
	if s.cfg.LogHits {
		s.logger.Debug("cache hit", zap.String("key", key), zap.Int64("accessCount", e.accessCount))
	}
	return e.data, true
}

// Set stores value under key with the given TTL (the default TTL when ttl
// is zero). Nil values and a disabled cache make Set a no-op. Capacity is
// enforced before insertion so the bounds in Config hold at all times.
func (s *Service) Set(key string, value any, ttl time.Duration) {
	if value == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Enabled {
		return
	}
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}

	size := document.EstimateSize(value)
	s.ensureCapacityLocked(size)

	now := s.now()
	if old, ok := s.entries[key]; ok {
		s.currentSize -= old.size
	}
	s.seq++
	s.entries[key] = &entry{
		data:         value,
		expiresAt:    now.Add(ttl),
		createdAt:    now,
		lastAccessed: now,
		size:         size,
		seq:          s.seq,
	}
	s.currentSize += size
}

// Delete removes key if present. Idempotent.
func (s *Service) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		s.removeLocked(key, e)
	}
}

// Clear drops all entries and resets the running size. Lifetime hit/miss
// counters are kept; use ResetStats for a full reset.
func (s *Service) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*entry)
	s.currentSize = 0
}

// InvalidatePattern deletes every entry whose key matches pattern,
// interpreted as a regular expression over the whole key, and returns the
// number removed.
func (s *Service) InvalidatePattern(pattern string) (int, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, fmt.Errorf("invalid invalidation pattern %q: %w", pattern, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if re.MatchString(key) {
			s.removeLocked(key, e)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("cache invalidation", zap.String("pattern", pattern), zap.Int("removed", removed))
	}
	return removed, nil
}

// InvalidateCollection removes every entry belonging to a collection: both
// its document keys ("collection:id") and its cached query results
// ("query:collection:...").
func (s *Service) InvalidateCollection(collection string) int {
	pattern := "^(query:)?" + regexp.QuoteMeta(collection) + ":"
	removed, err := s.InvalidatePattern(pattern)
	if err != nil {
		// QuoteMeta guarantees a valid pattern; this is unreachable.
		return 0
	}
	return removed
}

// CleanExpired removes every expired entry, counting each removal as an
// eviction, and returns the number removed.
func (s *Service) CleanExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleanExpiredLocked()
}

func (s *Service) cleanExpiredLocked() int {
	now := s.now()
	removed := 0
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			s.removeLocked(key, e)
			s.evictions++
			removed++
		}
	}
	return removed
}

// ensureCapacityLocked makes room for an entry of newSize bytes: expired
// entries go first, then lowest-value entries until both bounds clear.
// The value score blends frequency and recency, favoring frequency:
// 0.7*accessCount + 0.3*lastAccessedUnixMilli, lowest evicted first, ties
// broken by insertion order.
func (s *Service) ensureCapacityLocked(newSize int64) {
	s.cleanExpiredLocked()

	for len(s.entries) > 0 {
		overEntries := s.cfg.MaxEntries > 0 && len(s.entries) >= s.cfg.MaxEntries
		overSize := s.cfg.MaxSizeBytes > 0 && s.currentSize+newSize > s.cfg.MaxSizeBytes
		if !overEntries && !overSize {
			return
		}

		key, e := s.lowestValueLocked()
		s.removeLocked(key, e)
		s.evictions++
		s.logger.Debug("cache eviction", zap.String("key", key), zap.Int64("size", e.size))
	}
}

func (s *Service) lowestValueLocked() (string, *entry) {
	var (
		victimKey   string
		victim      *entry
		lowestScore float64
	)
	for key, e := range s.entries {
		score := 0.7*float64(e.accessCount) + 0.3*float64(e.lastAccessed.UnixMilli())
		if victim == nil || score < lowestScore || (score == lowestScore && e.seq < victim.seq) {
			victimKey, victim, lowestScore = key, e, score
		}
	}
	return victimKey, victim
}

func (s *Service) removeLocked(key string, e *entry) {
	delete(s.entries, key)
	s.currentSize -= e.size
}

// Preload obtains a key->value map from loader and stores each entry with
// the default TTL. Loader failure is logged and leaves the cache
// unaffected; it never propagates.
func (s *Service) Preload(loader func() (map[string]any, error)) {
	seed, err := loader()
	if err != nil {
		s.logger.Warn("cache preload failed", zap.Error(err))
		return
	}
	for key, value := range seed {
		s.Set(key, value, 0)
	}
	s.logger.Info("cache preloaded", zap.Int("entries", len(seed)))
}

// GetStats returns a snapshot of the running counters. HitRatio is 0 when
// no requests have been recorded yet.
func (s *Service) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{
		Hits:      s.hits,
		Misses:    s.misses,
		Evictions: s.evictions,
		Entries:   len(s.entries),
		SizeBytes: s.currentSize,
	}
	if total := s.hits + s.misses; total > 0 {
		stats.HitRatio = float64(s.hits) / float64(total)
	}
	return stats
}

// ResetStats zeroes the lifetime counters without touching entries.
func (s *Service) ResetStats() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hits, s.misses, s.evictions = 0, 0, 0
}
