package memory

import (
	"context"
	"sync"

	"escrowScope/internal/model"
)

// Store is an in-memory materialized view, used by tests and dry runs. It
// mirrors the Postgres store's semantics: deal upserts, insert-if-absent
// users, and event rows keyed by their deterministic id.
type Store struct {
	mu     sync.RWMutex
	deals  map[string]model.Deal
	users  map[string]struct{}
	events map[string]model.EventRecord
}

func NewStore() *Store {
	return &Store{
		deals:  make(map[string]model.Deal),
		users:  make(map[string]struct{}),
		events: make(map[string]model.EventRecord),
	}
}

func (s *Store) GetDeal(ctx context.Context, id string) (model.Deal, bool, error) {
	s.mu.RLock()
	deal, ok := s.deals[id]
	s.mu.RUnlock()
	return deal, ok, nil
}

func (s *Store) PutDeal(ctx context.Context, deal model.Deal) error {
	s.mu.Lock()
	s.deals[deal.ID] = deal
	s.mu.Unlock()
	return nil
}

func (s *Store) EnsureUser(ctx context.Context, address string) error {
	s.mu.Lock()
	s.users[address] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *Store) PutEvent(ctx context.Context, record model.EventRecord) error {
	s.mu.Lock()
	s.events[record.ID] = record
	s.mu.Unlock()
	return nil
}

// DealCount returns the number of deals in the view.
func (s *Store) DealCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.deals)
}

// UserCount returns the number of users in the view.
func (s *Store) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// HasUser reports whether the address has a user row.
func (s *Store) HasUser(address string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[address]
	return ok
}

// Event returns the raw record with the given id.
func (s *Store) Event(id string) (model.EventRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.events[id]
	return record, ok
}

// EventCount returns the number of raw event records.
func (s *Store) EventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
