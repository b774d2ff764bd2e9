package ports

import "time"

// Cache defines the interface for the in-process cache in front of the
// store. All methods are synchronous and memory-bound; implementations
// must be safe for concurrent use. Caching is an optimization, never a
// correctness dependency - callers treat every miss as a normal outcome.
type Cache interface {
	// Get retrieves a value from cache. Absence (including expiry and a
	// disabled cache) is reported with found=false, never an error.
	Get(key string) (any, bool)

	// Set stores a value with the given TTL. A zero ttl uses the cache's
	// default. Nil values are ignored.
	Set(key string, value any, ttl time.Duration)

	// Delete removes a value. Deleting an absent key is not an error.
	Delete(key string)

	// InvalidatePattern removes every entry whose key matches the regular
	// expression and returns how many were removed.
	InvalidatePattern(pattern string) (int, error)

	// InvalidateCollection removes every entry belonging to a collection:
	// its document keys and all of its cached query results.
	InvalidateCollection(collection string) int

	// Clear removes all entries. Lifetime hit/miss counters survive.
	Clear()
}
