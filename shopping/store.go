package shopping

import "sync"

// Store holds the list the client currently believes in. Every write
// replaces the slice, so snapshots handed out earlier stay valid.
type Store struct {
	mu    sync.RWMutex
	items []Item
}

func NewStore(items ...Item) *Store {
	return &Store{items: append([]Item(nil), items...)}
}

func (s *Store) Snapshot() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Item(nil), s.items...)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) Get(id ItemID) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

func (s *Store) Replace(items []Item) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]Item(nil), items...)
	return append([]Item(nil), s.items...)
}

// Apply reconciles one server item and returns the resulting list.
func (s *Store) Apply(item Item) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = Apply(s.items, item)
	return append([]Item(nil), s.items...)
}

// Remove drops id and returns the resulting list.
func (s *Store) Remove(id ItemID) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = RemoveByID(s.items, id)
	return append([]Item(nil), s.items...)
}
