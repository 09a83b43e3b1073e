package engine

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rentalhub/dupdetect/internal/ledger"
	"github.com/rentalhub/dupdetect/internal/listing"
)

// SelectorConfig tunes candidate pruning.
type SelectorConfig struct {
	// RadiusM is the co-location radius: candidates within this haversine
	// distance are always plausible duplicates of the same building.
	RadiusM float64
	// AddressPrefixLen is how many leading characters of the canonical
	// address must match for the prefix filter.
	AddressPrefixLen int
	// MaxCandidates bounds the repository query.
	MaxCandidates int
}

// DefaultSelectorConfig returns the baseline pruning parameters.
func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		RadiusM:          150,
		AddressPrefixLen: 12,
		MaxCandidates:    200,
	}
}

// Selector produces the bounded set of plausible-duplicate candidates for a
// target listing. Pruning happens in the repository query (bounding box,
// owner, address prefix); the selector then re-checks the coarse bounding
// box against the true radius and drops already-resolved pairs.
type Selector struct {
	repo   listing.Repository
	ledger ledger.Store
	cfg    SelectorConfig
}

// NewSelector creates a candidate selector.
func NewSelector(repo listing.Repository, store ledger.Store, cfg SelectorConfig) *Selector {
	if cfg.RadiusM <= 0 {
		cfg.RadiusM = DefaultSelectorConfig().RadiusM
	}
	if cfg.AddressPrefixLen <= 0 {
		cfg.AddressPrefixLen = DefaultSelectorConfig().AddressPrefixLen
	}
	return &Selector{repo: repo, ledger: store, cfg: cfg}
}

// Select returns the candidates worth scoring against the target. With
// force set, pairs that moderation already resolved are included again.
func (s *Selector) Select(ctx context.Context, target *listing.Listing, force bool) ([]listing.Listing, error) {
	f := listing.CandidateFilter{
		ExcludeID: target.ID,
		OwnerID:   target.OwnerID,
		Limit:     s.cfg.MaxCandidates,
	}

	if target.HasCoordinates() {
		f.HasBounds = true
		f.MinLat, f.MaxLat, f.MinLon, f.MaxLon = boundingBox(*target.Latitude, *target.Longitude, s.cfg.RadiusM)
	}

	if prefix := addressPrefix(target, s.cfg.AddressPrefixLen); prefix != "" {
		f.AddressPrefix = prefix
	}

	found, err := s.repo.FindCandidates(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to select candidates for %s: %w", target.ID, err)
	}

	var suppressed map[string]struct{}
	if !force {
		suppressed, err = s.ledger.SuppressedSet(ctx, target.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load suppressed pairs for %s: %w", target.ID, err)
		}
	}

	candidates := found[:0]
	for _, c := range found {
		if _, done := suppressed[c.ID]; done {
			continue
		}
		if !s.plausible(target, &c, f.AddressPrefix) {
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// plausible re-checks the cheap filters: the bounding box over-selects at
// the corners, so the haversine distance is verified here.
func (s *Selector) plausible(target, c *listing.Listing, prefix string) bool {
	if target.HasCoordinates() && c.HasCoordinates() {
		d := HaversineMeters(*target.Latitude, *target.Longitude, *c.Latitude, *c.Longitude)
		if d <= s.cfg.RadiusM {
			return true
		}
	}
	if target.OwnerID != "" && c.OwnerID == target.OwnerID {
		return true
	}
	if prefix != "" && strings.HasPrefix(canonicalAddressOf(c), prefix) {
		return true
	}
	return false
}

func addressPrefix(l *listing.Listing, n int) string {
	canonical := canonicalAddressOf(l)
	runes := []rune(canonical)
	if len(runes) <= n {
		return canonical
	}
	return string(runes[:n])
}

// boundingBox converts a radius in meters to a lat/lon box around a point.
func boundingBox(lat, lon, radiusM float64) (minLat, maxLat, minLon, maxLon float64) {
	const metersPerDegLat = 111320.0

	dLat := radiusM / metersPerDegLat
	cos := math.Cos(lat * math.Pi / 180.0)
	if cos < 0.01 {
		cos = 0.01 // degenerate near the poles
	}
	dLon := radiusM / (metersPerDegLat * cos)

	return lat - dLat, lat + dLat, lon - dLon, lon + dLon
}
