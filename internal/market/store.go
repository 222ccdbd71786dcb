package market

import (
	"math/big"

	"github.com/google/uuid"
)

// Store is the in-memory market arena. It is not safe for concurrent use;
// the engine serializes all access.
type Store struct {
	markets map[uuid.UUID]*Market
}

func NewStore() *Store {
	return &Store{markets: make(map[uuid.UUID]*Market)}
}

func (s *Store) Add(m *Market) bool {
	if _, exists := s.markets[m.ID]; exists {
		return false
	}
	s.markets[m.ID] = m
	return true
}

func (s *Store) Get(id uuid.UUID) (*Market, bool) {
	m, ok := s.markets[id]
	return m, ok
}

func (s *Store) Count() int {
	return len(s.markets)
}

// All returns markets in byte order of their IDs. Snapshot encoding and
// audit sweeps rely on this ordering being stable.
func (s *Store) All() []*Market {
	ids := make([]uuid.UUID, 0, len(s.markets))
	for id := range s.markets {
		ids = append(ids, id)
	}
	sortUUIDs(ids)
	out := make([]*Market, len(ids))
	for i, id := range ids {
		out[i] = s.markets[id]
	}
	return out
}

// TotalPool sums all market pools, for the audit gauge.
func (s *Store) TotalPool() *big.Int {
	total := new(big.Int)
	for _, m := range s.markets {
		total.Add(total, m.PoolBalance)
	}
	return total
}

// Snapshot returns a deep copy of the arena for state serialization.
// The copy shares nothing with live markets, so the caller may encode it
// after releasing the engine lock.
func (s *Store) Snapshot() map[uuid.UUID]*Market {
	out := make(map[uuid.UUID]*Market, len(s.markets))
	for id, m := range s.markets {
		out[id] = m.Clone()
	}
	return out
}

// Restore replaces the arena contents from a decoded snapshot.
func (s *Store) Restore(markets map[uuid.UUID]*Market) {
	if markets == nil {
		markets = make(map[uuid.UUID]*Market)
	}
	s.markets = markets
}
