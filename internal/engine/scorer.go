package engine

import (
	"math"

	"github.com/rentalhub/dupdetect/internal/listing"
	"github.com/rentalhub/dupdetect/internal/normalize"
)

// Scorer computes one similarity signal for a (target, candidate) pair.
// Implementations are pure functions over the two listings: a missing input
// on either side scores 0, never an error.
type Scorer interface {
	Name() string
	Score(target, candidate *listing.Listing) float64
}

// Signal names, used to slot scorer output into a Breakdown.
const (
	SignalAddress     = "address"
	SignalGeography   = "geography"
	SignalTitle       = "title"
	SignalDescription = "description"
	SignalAmenities   = "amenities"
	SignalOwner       = "owner"
)

// DefaultScorers returns the six signal scorers. radiusM is the candidate
// radius the geography signal decays over.
func DefaultScorers(radiusM float64) []Scorer {
	return []Scorer{
		AddressScorer{},
		GeographyScorer{RadiusM: radiusM},
		TitleScorer{},
		DescriptionScorer{},
		AmenityScorer{},
		OwnerScorer{},
	}
}

// AddressScorer scores 1.0 for identical canonical addresses, otherwise the
// token intersection-over-union of the two addresses.
type AddressScorer struct{}

func (AddressScorer) Name() string { return SignalAddress }

func (AddressScorer) Score(target, candidate *listing.Listing) float64 {
	a := canonicalAddressOf(target)
	b := canonicalAddressOf(candidate)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1.0
	}
	return normalize.JaccardText(a, b)
}

func canonicalAddressOf(l *listing.Listing) string {
	if l.AddressCanonical != "" {
		return l.AddressCanonical
	}
	return normalize.CanonicalAddress(l.Address)
}

// GeographyScorer scores 1.0 at zero distance, decaying linearly to 0 at
// RadiusM. Missing coordinates on either side score 0.
type GeographyScorer struct {
	RadiusM float64
}

func (GeographyScorer) Name() string { return SignalGeography }

func (g GeographyScorer) Score(target, candidate *listing.Listing) float64 {
	if g.RadiusM <= 0 || !target.HasCoordinates() || !candidate.HasCoordinates() {
		return 0
	}
	d := HaversineMeters(*target.Latitude, *target.Longitude, *candidate.Latitude, *candidate.Longitude)
	if d >= g.RadiusM {
		return 0
	}
	return 1.0 - d/g.RadiusM
}

// TitleScorer is token-set similarity over normalized titles.
type TitleScorer struct{}

func (TitleScorer) Name() string { return SignalTitle }

func (TitleScorer) Score(target, candidate *listing.Listing) float64 {
	return normalize.JaccardText(target.Title, candidate.Title)
}

// DescriptionScorer is token-set similarity over descriptions; a missing
// description on either side scores 0.
type DescriptionScorer struct{}

func (DescriptionScorer) Name() string { return SignalDescription }

func (DescriptionScorer) Score(target, candidate *listing.Listing) float64 {
	return normalize.JaccardText(target.Description, candidate.Description)
}

// AmenityScorer is Jaccard similarity over the amenity flag sets. Two empty
// sets score 0, not 1.
type AmenityScorer struct{}

func (AmenityScorer) Name() string { return SignalAmenities }

func (AmenityScorer) Score(target, candidate *listing.Listing) float64 {
	return normalize.Jaccard(amenitySet(target.Amenities), amenitySet(candidate.Amenities))
}

func amenitySet(amenities []string) map[string]struct{} {
	if len(amenities) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(amenities))
	for _, a := range amenities {
		for _, tok := range normalize.Tokens(a) {
			set[tok] = struct{}{}
		}
	}
	return set
}

// OwnerScorer is a binary signal: same owner id or nothing.
type OwnerScorer struct{}

func (OwnerScorer) Name() string { return SignalOwner }

func (OwnerScorer) Score(target, candidate *listing.Listing) float64 {
	if target.OwnerID != "" && target.OwnerID == candidate.OwnerID {
		return 1.0
	}
	return 0
}

const earthRadiusM = 6371000.0

// HaversineMeters returns the great-circle distance between two points.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const degToRad = math.Pi / 180.0

	dLat := (lat2 - lat1) * degToRad
	dLon := (lon2 - lon1) * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
