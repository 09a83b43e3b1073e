package listing

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryRepository is an in-memory Repository used by tests and local runs.
type MemoryRepository struct {
	mu       sync.RWMutex
	listings map[string]Listing
}

// NewMemoryRepository creates a repository pre-loaded with the given listings.
func NewMemoryRepository(listings ...Listing) *MemoryRepository {
	r := &MemoryRepository{listings: make(map[string]Listing, len(listings))}
	for _, l := range listings {
		r.listings[l.ID] = l
	}
	return r
}

// Put adds or replaces a listing.
func (r *MemoryRepository) Put(l Listing) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listings[l.ID] = l
}

// Get returns an active listing by id.
func (r *MemoryRepository) Get(_ context.Context, id string) (*Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.listings[id]
	if !ok || !l.Active {
		return nil, ErrNotFound
	}
	copied := l
	return &copied, nil
}

// ActiveIDs returns the ids of all active listings, sorted.
func (r *MemoryRepository) ActiveIDs(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, l := range r.listings {
		if l.Active {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// FindCandidates applies the filter criteria over the in-memory corpus.
func (r *MemoryRepository) FindCandidates(_ context.Context, f CandidateFilter) ([]Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Listing
	for id, l := range r.listings {
		if !l.Active || id == f.ExcludeID {
			continue
		}
		if !matchesFilter(l, f) {
			continue
		}
		out = append(out, l)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func matchesFilter(l Listing, f CandidateFilter) bool {
	if f.HasBounds && l.HasCoordinates() {
		lat, lon := *l.Latitude, *l.Longitude
		if lat >= f.MinLat && lat <= f.MaxLat && lon >= f.MinLon && lon <= f.MaxLon {
			return true
		}
	}
	if f.OwnerID != "" && l.OwnerID == f.OwnerID {
		return true
	}
	if f.AddressPrefix != "" && strings.HasPrefix(l.AddressCanonical, f.AddressPrefix) {
		return true
	}
	return false
}
