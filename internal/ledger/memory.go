package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store with the same transition rules as the
// Postgres implementation. Used by tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[PairKey]Entry
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[PairKey]Entry)}
}

// UpsertDecision records a decision; terminal entries are never overwritten.
func (s *MemoryStore) UpsertDecision(_ context.Context, key PairKey, d Decision) (*Entry, error) {
	if !d.Valid() {
		return nil, &invalidDecisionError{d}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := s.entries[key]
	if ok && existing.Resolved() {
		copied := existing
		return &copied, nil
	}

	e := Entry{
		CanonicalID: key.CanonicalID,
		DuplicateID: key.DuplicateID,
		Score:       d.Score,
		Method:      d.Method,
		Status:      d.Status,
		ReviewerID:  d.ReviewerID,
		CreatedAt:   now,
	}
	if ok {
		e.CreatedAt = existing.CreatedAt
	}
	if d.Status != StatusPending {
		e.ResolvedAt = &now
	}
	s.entries[key] = e

	copied := e
	return &copied, nil
}

// Get returns the entry for a pair.
func (s *MemoryStore) Get(_ context.Context, key PairKey) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	copied := e
	return &copied, nil
}

// IsSuppressed reports whether the pair reached a terminal state.
func (s *MemoryStore) IsSuppressed(_ context.Context, key PairKey) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	return ok && e.Resolved(), nil
}

// SuppressedSet returns counterpart ids resolved against the listing.
func (s *MemoryStore) SuppressedSet(_ context.Context, listingID string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := make(map[string]struct{})
	for key, e := range s.entries {
		if !e.Resolved() {
			continue
		}
		if other := key.Other(listingID); other != "" {
			set[other] = struct{}{}
		}
	}
	return set, nil
}

// ListPending returns unresolved entries, oldest first.
func (s *MemoryStore) ListPending(_ context.Context, f PendingFilter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []Entry
	for key, e := range s.entries {
		if e.Status != StatusPending {
			continue
		}
		if f.ListingID != "" && key.Other(f.ListingID) == "" {
			continue
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		if entries[i].CanonicalID != entries[j].CanonicalID {
			return entries[i].CanonicalID < entries[j].CanonicalID
		}
		return entries[i].DuplicateID < entries[j].DuplicateID
	})

	if f.Limit > 0 && len(entries) > f.Limit {
		entries = entries[:f.Limit]
	}
	return entries, nil
}

// CountByStatus returns how many entries sit in each status.
func (s *MemoryStore) CountByStatus(_ context.Context) (map[Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[Status]int)
	for _, e := range s.entries {
		counts[e.Status]++
	}
	return counts, nil
}

// RemoveSuppression deletes the pair's entry.
func (s *MemoryStore) RemoveSuppression(_ context.Context, key PairKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

type invalidDecisionError struct {
	d Decision
}

func (e *invalidDecisionError) Error() string {
	return "invalid ledger decision: status=" + string(e.d.Status) + " method=" + string(e.d.Method)
}
