package eventwire

import (
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/eventwire/eventwire/typeref"
)

const (
	defaultRawCacheSize      = 1024
	defaultPresenceCacheSize = 256
)

// typeEntry holds the observer set registered under one observed-type key.
// The set uses pointer identity; registering the same observer twice is a
// no-op.
type typeEntry struct {
	ref       typeref.Ref
	mu        sync.RWMutex
	observers []*Observer
}

func (e *typeEntry) add(observer *Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.observers {
		if existing == observer {
			return
		}
	}
	e.observers = append(e.observers, observer)
}

func (e *typeEntry) snapshot() []*Observer {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Observer, len(e.observers))
	copy(out, e.observers)
	return out
}

// Registry owns the mapping from observed type to registered observers.
// The primary map is written only during bootstrap and read concurrently at
// steady state; the two derived caches are invalidatable and race-tolerant
// (idempotent insert, last write wins).
type Registry struct {
	entries sync.Map // ref key string -> *typeEntry

	// rawCache maps a raw event class to its type-resolved observer set.
	// Consulted only for non-generic declared types.
	rawCache *lru.Cache

	// presenceCache maps a qualifier cache key to whether any observer
	// declares that qualifier.
	presenceCache *lru.Cache

	logger *slog.Logger
}

// NewRegistry creates an observer registry with derived caches of the given
// sizes; zero or negative sizes select defaults.
func NewRegistry(rawCacheSize, presenceCacheSize int, logger *slog.Logger) *Registry {
	if rawCacheSize <= 0 {
		rawCacheSize = defaultRawCacheSize
	}
	if presenceCacheSize <= 0 {
		presenceCacheSize = defaultPresenceCacheSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	rawCache, _ := lru.New(rawCacheSize)
	presenceCache, _ := lru.New(presenceCacheSize)
	return &Registry{
		rawCache:      rawCache,
		presenceCache: presenceCache,
		logger:        logger,
	}
}

// Register inserts an observer under its observed-type key, creating the set
// on first use. Registering the identical observer twice is a no-op.
func (r *Registry) Register(observer *Observer) error {
	if observer == nil {
		return ErrNilObserver
	}
	key := observer.ObservedType().Key()
	entry, _ := r.entries.LoadOrStore(key, &typeEntry{ref: observer.ObservedType()})
	entry.(*typeEntry).add(observer)
	r.logger.Debug("observer registered",
		"observerID", observer.ObserverID(),
		"observedType", key,
		"async", observer.IsAsync(),
		"priority", observer.Priority())
	return nil
}

// AllObservers returns every registered observer across all keys. Order is
// unspecified; callers impose their own ordering downstream.
func (r *Registry) AllObservers() []*Observer {
	var all []*Observer
	r.entries.Range(func(_, value any) bool {
		all = append(all, value.(*typeEntry).snapshot()...)
		return true
	})
	return all
}

// HasLifecycleObserver reports whether any registered observer's qualifier set
// contains the given qualifier. The answer is computed lazily per distinct
// qualifier value and cached; concurrent first computation is safe because the
// recomputed value is identical regardless of which caller wins.
func (r *Registry) HasLifecycleObserver(qualifier Qualifier) bool {
	key := qualifier.cacheKey()
	if cached, ok := r.presenceCache.Get(key); ok {
		return cached.(bool)
	}
	has := false
	for _, observer := range r.AllObservers() {
		if containsQualifier(observer.ObservedQualifiers(), qualifier) {
			has = true
			break
		}
	}
	r.presenceCache.ContainsOrAdd(key, has)
	return has
}

// ClearCaches empties both derived caches without touching the primary
// registry. It must be called exactly once when the runtime transitions from
// bootstrap to steady state, so that lifecycle events fired during bootstrap
// are never incorrectly cached for production traffic.
func (r *Registry) ClearCaches() {
	r.rawCache.Purge()
	r.presenceCache.Purge()
	r.logger.Debug("registry caches cleared")
}

// cachedRawMatch returns the cached type-resolution result for a raw event
// class, if present.
func (r *Registry) cachedRawMatch(eventClass *typeref.Class) ([]*Observer, bool) {
	if cached, ok := r.rawCache.Get(eventClass); ok {
		return cached.([]*Observer), true
	}
	return nil, false
}

// storeRawMatch caches the type-resolution result for a raw event class.
// Insert-if-absent: redundant concurrent computation yields identical values.
func (r *Registry) storeRawMatch(eventClass *typeref.Class, matching []*Observer) {
	r.rawCache.ContainsOrAdd(eventClass, matching)
}

// forEachEntry iterates the registered observed-type keys.
func (r *Registry) forEachEntry(fn func(ref typeref.Ref, observers []*Observer)) {
	r.entries.Range(func(_, value any) bool {
		entry := value.(*typeEntry)
		fn(entry.ref, entry.snapshot())
		return true
	})
}
