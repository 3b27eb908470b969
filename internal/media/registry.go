package media

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrNilOrigin is returned when caching a media without an origin.
	ErrNilOrigin = errors.New("origin media is nil")
)

// Registry is a concurrency-safe index of cached media.
// It uses a Store for persistence; by default that is an InMemoryStore.
type Registry struct {
	mu    sync.RWMutex
	store Store
	now   func() time.Time
}

// NewRegistry constructs a registry with a default in-memory store.
func NewRegistry() *Registry {
	return NewRegistryWithStore(NewInMemoryStore())
}

// NewRegistryWithStore constructs a registry that uses the given Store.
func NewRegistryWithStore(store Store) *Registry {
	return &Registry{store: store, now: time.Now}
}

// Put wraps origin in a CachedMedia and records it with meta.
// An existing entry with the same id is replaced.
func (r *Registry) Put(origin Media, cacheSourceID string, download ResourceLocation, meta CacheMetadata) (*Entry, error) {
	if origin == nil {
		return nil, ErrNilOrigin
	}

	e := &Entry{
		Media:    NewCachedMedia(origin, cacheSourceID, download),
		Metadata: meta,
		CachedAt: r.now().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.store.Set(e)
	return e, nil
}

// Get returns the entry for a cached media id.
func (r *Registry) Get(id string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.Get(id)
}

// Remove deletes the entry for id and reports whether it existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Delete(id)
}

// FindMatching returns the entries whose metadata matches req, in insertion order.
func (r *Registry) FindMatching(req FetchRequest) []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Entry
	for _, e := range r.store.List() {
		if req.Matches(e.Metadata) {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of cached media.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.Len()
}
