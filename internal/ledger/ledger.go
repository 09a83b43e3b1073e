package ledger

import (
	"context"
	"errors"
	"time"
)

// Status is the moderation state of a duplicate pair.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusDismissed Status = "dismissed"
)

// Method records how a duplicate pair was surfaced.
type Method string

const (
	MethodIncremental Method = "incremental"
	MethodFullScan    Method = "full_scan"
	MethodManual      Method = "manual"
)

// ErrNotFound is returned when no ledger entry exists for a pair.
var ErrNotFound = errors.New("ledger entry not found")

// PairKey identifies a duplicate relationship independent of direction:
// the two listing ids are stored sorted, so (A,B) and (B,A) collide.
type PairKey struct {
	CanonicalID string
	DuplicateID string
}

// NewPairKey canonicalizes the pair by sorting the two ids.
func NewPairKey(a, b string) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{CanonicalID: a, DuplicateID: b}
}

// Other returns the counterpart id for the given listing, or "" when the
// listing is not part of the pair.
func (k PairKey) Other(id string) string {
	switch id {
	case k.CanonicalID:
		return k.DuplicateID
	case k.DuplicateID:
		return k.CanonicalID
	}
	return ""
}

// Entry is one persisted moderation decision about a pair. At most one
// entry exists per canonicalized pair.
type Entry struct {
	CanonicalID string     `json:"canonical_id"`
	DuplicateID string     `json:"duplicate_id"`
	Score       float64    `json:"score"`
	Method      Method     `json:"method"`
	Status      Status     `json:"status"`
	ReviewerID  *string    `json:"reviewer_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// Key returns the entry's canonical pair key.
func (e *Entry) Key() PairKey {
	return PairKey{CanonicalID: e.CanonicalID, DuplicateID: e.DuplicateID}
}

// Resolved reports whether the pair reached a terminal moderation state.
func (e *Entry) Resolved() bool {
	return e.Status == StatusConfirmed || e.Status == StatusDismissed
}

// Decision is the input to an upsert.
type Decision struct {
	Status     Status
	Score      float64
	Method     Method
	ReviewerID *string
}

// Valid reports whether the decision carries a known status and method.
func (d Decision) Valid() bool {
	switch d.Status {
	case StatusPending, StatusConfirmed, StatusDismissed:
	default:
		return false
	}
	switch d.Method {
	case MethodIncremental, MethodFullScan, MethodManual:
	default:
		return false
	}
	return true
}

// PendingFilter narrows ListPending results.
type PendingFilter struct {
	// ListingID restricts results to pairs involving this listing.
	ListingID string
	Limit     int
}

// Store persists moderation decisions about duplicate pairs.
//
// Upserts are keyed by the canonical pair key; a pair in a terminal state
// (confirmed or dismissed) never transitions again except by deleting the
// entry via RemoveSuppression and re-detecting.
type Store interface {
	// UpsertDecision records a decision for the pair. Calling it twice with
	// the same pair and decision produces exactly one row and is a no-op the
	// second time. A decision against a pair already in a different terminal
	// state leaves the stored entry unchanged.
	UpsertDecision(ctx context.Context, key PairKey, d Decision) (*Entry, error)

	// Get returns the entry for a pair, or ErrNotFound.
	Get(ctx context.Context, key PairKey) (*Entry, error)

	// IsSuppressed reports whether the pair was confirmed or dismissed.
	IsSuppressed(ctx context.Context, key PairKey) (bool, error)

	// SuppressedSet returns the ids of all counterparts whose pair with the
	// given listing is in a terminal state. Used to prune candidates in bulk.
	SuppressedSet(ctx context.Context, listingID string) (map[string]struct{}, error)

	// ListPending returns unresolved entries awaiting moderation.
	ListPending(ctx context.Context, f PendingFilter) ([]Entry, error)

	// CountByStatus returns how many entries sit in each status.
	CountByStatus(ctx context.Context) (map[Status]int, error)

	// RemoveSuppression deletes the entry so the pair can resurface on the
	// next scan. Deleting a missing pair is not an error.
	RemoveSuppression(ctx context.Context, key PairKey) error
}
