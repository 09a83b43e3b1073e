package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Breakdown holds the six component scores for one (target, candidate) pair.
// Each component is independently computable; a missing input yields 0 for
// that component only.
type Breakdown struct {
	Address     float64 `json:"address"`
	Geography   float64 `json:"geography"`
	Title       float64 `json:"title"`
	Description float64 `json:"description"`
	Amenities   float64 `json:"amenities"`
	Owner       float64 `json:"owner"`
}

// Set assigns a component score by signal name.
func (b *Breakdown) Set(signal string, score float64) {
	switch signal {
	case SignalAddress:
		b.Address = score
	case SignalGeography:
		b.Geography = score
	case SignalTitle:
		b.Title = score
	case SignalDescription:
		b.Description = score
	case SignalAmenities:
		b.Amenities = score
	case SignalOwner:
		b.Owner = score
	}
}

// Tier is the coarse confidence bucket derived from the total score.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
	// TierNone marks pairs below the lowest band; they are never returned.
	TierNone Tier = ""
)

// Weights are the component coefficients of the weighted sum. They must sum
// to 1. Address and geography dominate; owner overlap is a weak signal on
// its own and is weighted lowest.
type Weights struct {
	Address     float64 `json:"address"`
	Geography   float64 `json:"geography"`
	Title       float64 `json:"title"`
	Description float64 `json:"description"`
	Amenities   float64 `json:"amenities"`
	Owner       float64 `json:"owner"`
}

// DefaultWeights returns the baseline coefficients.
func DefaultWeights() Weights {
	return Weights{
		Address:     0.30,
		Geography:   0.25,
		Title:       0.15,
		Description: 0.12,
		Amenities:   0.10,
		Owner:       0.08,
	}
}

// Sum returns the total of all coefficients.
func (w Weights) Sum() float64 {
	return w.Address + w.Geography + w.Title + w.Description + w.Amenities + w.Owner
}

// Tiers are the confidence band cutoffs. Bands are closed on the lower
// bound and open above: total >= High is high, [Medium, High) is medium,
// [Low, Medium) is low, and anything below Low is dropped.
type Tiers struct {
	High   float64 `json:"high"`
	Medium float64 `json:"medium"`
	Low    float64 `json:"low"`
}

// DefaultTiers returns the baseline confidence cutoffs.
func DefaultTiers() Tiers {
	return Tiers{High: 0.75, Medium: 0.50, Low: 0.30}
}

// EvidenceThresholds are per-component disclosure cutoffs: a component score
// strictly above its threshold appends the matching evidence string.
type EvidenceThresholds struct {
	Address     float64 `json:"address"`
	Geography   float64 `json:"geography"`
	Title       float64 `json:"title"`
	Description float64 `json:"description"`
	Amenities   float64 `json:"amenities"`
	Owner       float64 `json:"owner"`
}

// DefaultEvidenceThresholds returns the baseline disclosure cutoffs.
func DefaultEvidenceThresholds() EvidenceThresholds {
	return EvidenceThresholds{
		Address:     0.70,
		Geography:   0.65,
		Title:       0.70,
		Description: 0.60,
		Amenities:   0.60,
		Owner:       0.99,
	}
}

// Evidence strings shown to moderators. Descriptive only: evidence is
// generated from the breakdown and never feeds back into scoring.
const (
	EvidenceMatchingAddress = "Matching address"
	EvidenceNearbyLocation  = "Nearly identical location"
	EvidenceIdenticalTitle  = "Identical title"
	EvidenceSimilarTitle    = "Similar title"
	EvidenceSimilarText     = "Similar description"
	EvidenceSharedAmenities = "Shared amenities profile"
	EvidenceSameOwner       = "Same listing owner"
)

// ScoringConfig bundles the tunable scoring parameters.
type ScoringConfig struct {
	Weights  Weights            `json:"weights"`
	Tiers    Tiers              `json:"tiers"`
	Evidence EvidenceThresholds `json:"evidence"`
}

// DefaultScoringConfig returns the baseline parameters.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		Weights:  DefaultWeights(),
		Tiers:    DefaultTiers(),
		Evidence: DefaultEvidenceThresholds(),
	}
}

// LoadScoringConfig loads parameters from a JSON file over the defaults.
func LoadScoringConfig(path string) (ScoringConfig, error) {
	cfg := DefaultScoringConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read scoring config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal scoring config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the weights sum to 1 and the tier bands are ordered.
func (c ScoringConfig) Validate() error {
	if math.Abs(c.Weights.Sum()-1.0) > 1e-9 {
		return fmt.Errorf("scoring weights must sum to 1, got %.4f", c.Weights.Sum())
	}
	if !(c.Tiers.Low > 0 && c.Tiers.Low < c.Tiers.Medium && c.Tiers.Medium < c.Tiers.High && c.Tiers.High <= 1) {
		return fmt.Errorf("tier cutoffs must satisfy 0 < low < medium < high <= 1")
	}
	return nil
}

// CompositeScorer fuses a breakdown into a total score, a confidence tier
// and moderator-facing evidence strings.
type CompositeScorer struct {
	cfg ScoringConfig
}

// NewCompositeScorer creates a composite scorer with the given parameters.
func NewCompositeScorer(cfg ScoringConfig) *CompositeScorer {
	return &CompositeScorer{cfg: cfg}
}

// Total returns the weighted sum of the component scores, clamped to [0, 1].
func (cs *CompositeScorer) Total(b Breakdown) float64 {
	w := cs.cfg.Weights
	total := w.Address*b.Address +
		w.Geography*b.Geography +
		w.Title*b.Title +
		w.Description*b.Description +
		w.Amenities*b.Amenities +
		w.Owner*b.Owner
	return math.Min(1, math.Max(0, total))
}

// Classify maps a total score onto its confidence tier. Pairs below the low
// cutoff get TierNone and are dropped from results.
func (cs *CompositeScorer) Classify(total float64) Tier {
	t := cs.cfg.Tiers
	switch {
	case total >= t.High:
		return TierHigh
	case total >= t.Medium:
		return TierMedium
	case total >= t.Low:
		return TierLow
	}
	return TierNone
}

// Evidence generates the human-readable explanations for components that
// clear their disclosure threshold, in a fixed component order.
func (cs *CompositeScorer) Evidence(b Breakdown) []string {
	e := cs.cfg.Evidence
	var out []string

	if b.Address > e.Address {
		out = append(out, EvidenceMatchingAddress)
	}
	if b.Geography > e.Geography {
		out = append(out, EvidenceNearbyLocation)
	}
	if b.Title > e.Title {
		if b.Title >= 1.0 {
			out = append(out, EvidenceIdenticalTitle)
		} else {
			out = append(out, EvidenceSimilarTitle)
		}
	}
	if b.Description > e.Description {
		out = append(out, EvidenceSimilarText)
	}
	if b.Amenities > e.Amenities {
		out = append(out, EvidenceSharedAmenities)
	}
	if b.Owner > e.Owner {
		out = append(out, EvidenceSameOwner)
	}
	return out
}
