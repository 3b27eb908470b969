package media

import "time"

// Entry is a cached media together with the metadata recorded when it was cached.
type Entry struct {
	Media    *CachedMedia
	Metadata CacheMetadata
	CachedAt time.Time
}

// Store is the persistence abstraction for cache entries.
// The Registry uses Store for all reads and writes and does its own locking,
// so implementations need not be safe for concurrent use.
type Store interface {
	Get(id string) (*Entry, bool)
	Set(e *Entry)
	Delete(id string) bool
	// List returns entries in insertion order.
	List() []*Entry
	Len() int
}

// InMemoryStore is an in-memory implementation of Store.
type InMemoryStore struct {
	entries map[string]*Entry
	order   []string
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[string]*Entry),
	}
}

// Get implements Store.Get.
func (s *InMemoryStore) Get(id string) (*Entry, bool) {
	e, ok := s.entries[id]
	return e, ok
}

// Set implements Store.Set. Replacing an entry keeps its original position.
func (s *InMemoryStore) Set(e *Entry) {
	id := e.Media.ID()
	if _, exists := s.entries[id]; !exists {
		s.order = append(s.order, id)
	}
	s.entries[id] = e
}

// Delete implements Store.Delete.
func (s *InMemoryStore) Delete(id string) bool {
	if _, exists := s.entries[id]; !exists {
		return false
	}
	delete(s.entries, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// List implements Store.List.
func (s *InMemoryStore) List() []*Entry {
	out := make([]*Entry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[id])
	}
	return out
}

// Len implements Store.Len.
func (s *InMemoryStore) Len() int {
	return len(s.entries)
}
