package listing

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a listing id does not exist or is inactive.
var ErrNotFound = errors.New("listing not found")

// Listing is the read-only view of an apartment listing used by the
// detection engine. The listing repository owns the records; this engine
// never mutates them.
type Listing struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	Address          string    `json:"address"`
	AddressCanonical string    `json:"address_canonical,omitempty"`
	Latitude         *float64  `json:"latitude,omitempty"`
	Longitude        *float64  `json:"longitude,omitempty"`
	OwnerID          string    `json:"owner_id"`
	Amenities        []string  `json:"amenities,omitempty"`
	ImageKeys        []string  `json:"image_keys,omitempty"`
	Active           bool      `json:"active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// HasCoordinates reports whether both latitude and longitude are present.
func (l *Listing) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// CandidateFilter narrows the corpus before any pair scoring happens.
// A candidate is returned when it matches ANY of the enabled criteria
// (geographic bounding box, owner, canonical address prefix); the target
// itself is always excluded. Only active listings are considered.
type CandidateFilter struct {
	ExcludeID string

	// Bounding box in degrees; consulted only when HasBounds is set.
	HasBounds      bool
	MinLat, MaxLat float64
	MinLon, MaxLon float64

	OwnerID       string
	AddressPrefix string

	Limit int
}

// Repository provides read access to the listing corpus.
type Repository interface {
	// Get returns an active listing by id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Listing, error)

	// ActiveIDs returns the ids of all active listings, ordered by id so
	// batch runs are deterministic and restartable.
	ActiveIDs(ctx context.Context) ([]string, error)

	// FindCandidates returns active listings matching the filter.
	FindCandidates(ctx context.Context, f CandidateFilter) ([]Listing, error)
}
