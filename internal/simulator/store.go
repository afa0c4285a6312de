package simulator

import (
	"sort"
	"sync"

	"deckhand/internal/domain"
)

// Store keeps simulated presentations in memory. Every read hands out a deep
// copy, so handlers and the runner can never leak shared mutable state.
type Store struct {
	mu    sync.Mutex
	items map[string]*domain.Presentation
	decks map[string][]byte
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		items: make(map[string]*domain.Presentation),
		decks: make(map[string][]byte),
	}
}

// Put inserts or replaces a presentation.
func (s *Store) Put(p *domain.Presentation) {
	if p == nil || p.ID == "" {
		return
	}
	s.mu.Lock()
	s.items[p.ID] = p.Clone()
	s.mu.Unlock()
}

// Get returns a copy of the presentation with the given id.
func (s *Store) Get(id string) (*domain.Presentation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// List returns copies of all presentations, oldest first.
func (s *Store) List() []*domain.Presentation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Presentation, 0, len(s.items))
	for _, p := range s.items {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Mutate runs fn on the live presentation under the store lock. It reports
// whether the presentation exists. The runner uses this for atomic step
// transitions.
func (s *Store) Mutate(id string, fn func(p *domain.Presentation)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[id]
	if !ok {
		return false
	}
	fn(p)
	return true
}

// Delete removes a presentation and any compiled deck bytes.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	delete(s.decks, id)
	return true
}

// DeleteBatch removes several presentations, skipping unknown ids, and
// returns how many were deleted.
func (s *Store) DeleteBatch(ids []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for _, id := range ids {
		if _, ok := s.items[id]; ok {
			delete(s.items, id)
			delete(s.decks, id)
			deleted++
		}
	}
	return deleted
}

// SetPPTX stores the compiled deck bytes for a presentation.
func (s *Store) SetPPTX(id string, data []byte) {
	s.mu.Lock()
	s.decks[id] = append([]byte(nil), data...)
	s.mu.Unlock()
}

// PPTX returns the compiled deck bytes, if the pptx step has produced them.
func (s *Store) PPTX(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.decks[id]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}
