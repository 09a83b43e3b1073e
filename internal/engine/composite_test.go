package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultWeightsSumToOne(t *testing.T) {
	assert.InDelta(t, 1.0, DefaultWeights().Sum(), 1e-9)
}

func TestCompositeTotal(t *testing.T) {
	cs := NewCompositeScorer(DefaultScoringConfig())

	t.Run("all ones total 1.0", func(t *testing.T) {
		b := Breakdown{Address: 1, Geography: 1, Title: 1, Description: 1, Amenities: 1, Owner: 1}
		assert.InDelta(t, 1.0, cs.Total(b), 1e-9)
	})

	t.Run("all zeros total 0", func(t *testing.T) {
		assert.Equal(t, 0.0, cs.Total(Breakdown{}))
	})

	t.Run("monotone in each component", func(t *testing.T) {
		base := Breakdown{Address: 0.5, Geography: 0.5, Title: 0.5, Description: 0.5, Amenities: 0.5, Owner: 0.5}
		baseTotal := cs.Total(base)

		for _, signal := range []string{SignalAddress, SignalGeography, SignalTitle, SignalDescription, SignalAmenities, SignalOwner} {
			bumped := base
			bumped.Set(signal, 0.9)
			assert.Greater(t, cs.Total(bumped), baseTotal, "raising %s must raise the total", signal)
		}
	})

	t.Run("owner alone stays below the low band", func(t *testing.T) {
		b := Breakdown{Owner: 1}
		total := cs.Total(b)
		assert.InDelta(t, 0.08, total, 1e-9)
		assert.Equal(t, TierNone, cs.Classify(total))
	})
}

func TestClassifyBandBoundaries(t *testing.T) {
	cs := NewCompositeScorer(DefaultScoringConfig())

	cases := []struct {
		total float64
		want  Tier
	}{
		{1.0, TierHigh},
		{0.75, TierHigh},
		{0.7499, TierMedium},
		{0.50, TierMedium},
		{0.4999, TierLow},
		{0.30, TierLow},
		{0.2999, TierNone},
		{0.0, TierNone},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, cs.Classify(tc.total), "total %.4f", tc.total)
	}
}

func TestEvidenceIsDeterministic(t *testing.T) {
	cs := NewCompositeScorer(DefaultScoringConfig())
	b := Breakdown{Address: 0.9, Geography: 0.9, Title: 1.0, Description: 0.7, Amenities: 0.8, Owner: 1.0}

	want := []string{
		EvidenceMatchingAddress,
		EvidenceNearbyLocation,
		EvidenceIdenticalTitle,
		EvidenceSimilarText,
		EvidenceSharedAmenities,
		EvidenceSameOwner,
	}
	for i := 0; i < 5; i++ {
		assert.Equal(t, want, cs.Evidence(b))
	}
}

func TestEvidenceTitleWording(t *testing.T) {
	cs := NewCompositeScorer(DefaultScoringConfig())

	exact := cs.Evidence(Breakdown{Title: 1.0})
	assert.Equal(t, []string{EvidenceIdenticalTitle}, exact)

	similar := cs.Evidence(Breakdown{Title: 0.8})
	assert.Equal(t, []string{EvidenceSimilarTitle}, similar)

	below := cs.Evidence(Breakdown{Title: 0.5})
	assert.Empty(t, below)
}

func TestScoringConfigValidate(t *testing.T) {
	t.Run("default config is valid", func(t *testing.T) {
		assert.NoError(t, DefaultScoringConfig().Validate())
	})

	t.Run("weights must sum to 1", func(t *testing.T) {
		cfg := DefaultScoringConfig()
		cfg.Weights.Address = 0.5
		assert.Error(t, cfg.Validate())
	})

	t.Run("tiers must be ordered", func(t *testing.T) {
		cfg := DefaultScoringConfig()
		cfg.Tiers.Medium = 0.9
		assert.Error(t, cfg.Validate())
	})
}

func TestLoadScoringConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("overrides merge over defaults", func(t *testing.T) {
		path := filepath.Join(dir, "scoring.json")
		data := `{
			"weights": {"address": 0.35, "geography": 0.25, "title": 0.15, "description": 0.12, "amenities": 0.10, "owner": 0.03},
			"tiers": {"high": 0.80, "medium": 0.55, "low": 0.35},
			"evidence": {"address": 0.70, "geography": 0.65, "title": 0.70, "description": 0.60, "amenities": 0.60, "owner": 0.99}
		}`
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

		cfg, err := LoadScoringConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 0.35, cfg.Weights.Address)
		assert.Equal(t, 0.80, cfg.Tiers.High)
	})

	t.Run("invalid weights are rejected", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"weights": {"address": 0.9}}`), 0o644))

		_, err := LoadScoringConfig(path)
		assert.Error(t, err)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := LoadScoringConfig(filepath.Join(dir, "nope.json"))
		assert.Error(t, err)
	})
}
