package ledger

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store used by tests and replays.
type MemoryStore struct {
	mu   sync.RWMutex
	bets map[string]*BetRecord
	seq  []string // insertion order
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bets: make(map[string]*BetRecord)}
}

// Insert stores a new bet record.
func (s *MemoryStore) Insert(ctx context.Context, bet *BetRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *bet
	s.bets[bet.ID] = &cp
	s.seq = append(s.seq, bet.ID)
	return nil
}

// Get returns a bet by ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*BetRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bet, ok := s.bets[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *bet
	return &cp, nil
}

// ListByStatus returns bets with the given status in placement order.
func (s *MemoryStore) ListByStatus(ctx context.Context, status Status) ([]BetRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]BetRecord, 0)
	for _, id := range s.seq {
		if bet := s.bets[id]; bet.Status == status {
			out = append(out, *bet)
		}
	}
	return out, nil
}

// ListSettled returns settled bets ordered by settlement time.
func (s *MemoryStore) ListSettled(ctx context.Context) ([]BetRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]BetRecord, 0)
	for _, id := range s.seq {
		if bet := s.bets[id]; bet.Status != StatusPending {
			out = append(out, *bet)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SettledAt.Before(out[j].SettledAt)
	})
	return out, nil
}

// ListAll returns every bet in placement order.
func (s *MemoryStore) ListAll(ctx context.Context) ([]BetRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]BetRecord, 0, len(s.seq))
	for _, id := range s.seq {
		out = append(out, *s.bets[id])
	}
	return out, nil
}

// Settle applies the settlement if the bet is still pending.
func (s *MemoryStore) Settle(ctx context.Context, id string, st Settlement) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bet, ok := s.bets[id]
	if !ok {
		return false, ErrNotFound
	}
	if bet.Status != StatusPending {
		return false, nil
	}
	bet.Status = st.Status
	bet.Result = st.Result
	bet.PnL = st.PnL
	bet.ROIPercent = st.ROIPercent
	bet.BankrollAfter = st.BankrollAfter
	bet.SettledAt = st.SettledAt
	return true, nil
}
