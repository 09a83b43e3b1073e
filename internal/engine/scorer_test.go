package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rentalhub/dupdetect/internal/listing"
)

func coords(lat, lon float64) (*float64, *float64) {
	return &lat, &lon
}

func TestAddressScorer(t *testing.T) {
	scorer := AddressScorer{}

	t.Run("formatting differences still score 1.0", func(t *testing.T) {
		a := &listing.Listing{Address: "123 Main Street"}
		b := &listing.Listing{Address: "123, MAIN st."}
		assert.Equal(t, 1.0, scorer.Score(a, b))
	})

	t.Run("missing address scores 0", func(t *testing.T) {
		a := &listing.Listing{Address: "123 Main Street"}
		b := &listing.Listing{}
		assert.Equal(t, 0.0, scorer.Score(a, b))
		assert.Equal(t, 0.0, scorer.Score(b, a))
	})

	t.Run("partial overlap scores between 0 and 1", func(t *testing.T) {
		a := &listing.Listing{Address: "123 Main Street"}
		b := &listing.Listing{Address: "125 Main Street"}
		got := scorer.Score(a, b)
		assert.Greater(t, got, 0.0)
		assert.Less(t, got, 1.0)
	})

	t.Run("precomputed canonical form wins over raw", func(t *testing.T) {
		a := &listing.Listing{Address: "irrelevant", AddressCanonical: "9 oak road"}
		b := &listing.Listing{Address: "9 Oak Rd"}
		assert.Equal(t, 1.0, scorer.Score(a, b))
	})
}

func TestGeographyScorer(t *testing.T) {
	scorer := GeographyScorer{RadiusM: 150}

	t.Run("missing coordinates score 0", func(t *testing.T) {
		lat, lon := coords(52.52, 13.405)
		a := &listing.Listing{Latitude: lat, Longitude: lon}
		b := &listing.Listing{}
		assert.Equal(t, 0.0, scorer.Score(a, b))
		assert.Equal(t, 0.0, scorer.Score(b, a))
	})

	t.Run("zero distance scores 1.0", func(t *testing.T) {
		lat, lon := coords(52.52, 13.405)
		a := &listing.Listing{Latitude: lat, Longitude: lon}
		lat2, lon2 := coords(52.52, 13.405)
		b := &listing.Listing{Latitude: lat2, Longitude: lon2}
		assert.Equal(t, 1.0, scorer.Score(a, b))
	})

	t.Run("strictly decreasing in distance", func(t *testing.T) {
		lat, lon := coords(52.5200, 13.4050)
		target := &listing.Listing{Latitude: lat, Longitude: lon}

		prev := 1.0
		// Steps of ~22m north.
		for i := 1; i <= 5; i++ {
			lat2, lon2 := coords(52.5200+float64(i)*0.0002, 13.4050)
			c := &listing.Listing{Latitude: lat2, Longitude: lon2}
			got := scorer.Score(target, c)
			assert.Less(t, got, prev, "step %d", i)
			prev = got
		}
	})

	t.Run("beyond the radius scores 0", func(t *testing.T) {
		lat, lon := coords(52.52, 13.405)
		a := &listing.Listing{Latitude: lat, Longitude: lon}
		lat2, lon2 := coords(52.58, 13.405) // ~6.7km away
		b := &listing.Listing{Latitude: lat2, Longitude: lon2}
		assert.Equal(t, 0.0, scorer.Score(a, b))
	})
}

func TestTitleScorer(t *testing.T) {
	scorer := TitleScorer{}

	a := &listing.Listing{Title: "Sunny 2BR apartment"}
	b := &listing.Listing{Title: "sunny 2br APARTMENT!"}
	assert.Equal(t, 1.0, scorer.Score(a, b))

	c := &listing.Listing{Title: "Dark basement studio"}
	assert.Equal(t, 0.0, scorer.Score(a, c))
}

func TestDescriptionScorerMissingText(t *testing.T) {
	scorer := DescriptionScorer{}

	a := &listing.Listing{Description: "bright and close to the park"}
	b := &listing.Listing{}
	assert.Equal(t, 0.0, scorer.Score(a, b))
}

func TestAmenityScorer(t *testing.T) {
	scorer := AmenityScorer{}

	t.Run("both empty scores 0 not 1", func(t *testing.T) {
		a := &listing.Listing{}
		b := &listing.Listing{}
		assert.Equal(t, 0.0, scorer.Score(a, b))
	})

	t.Run("identical sets score 1.0", func(t *testing.T) {
		a := &listing.Listing{Amenities: []string{"gym", "wifi"}}
		b := &listing.Listing{Amenities: []string{"wifi", "gym"}}
		assert.Equal(t, 1.0, scorer.Score(a, b))
	})

	t.Run("partial overlap", func(t *testing.T) {
		a := &listing.Listing{Amenities: []string{"gym", "wifi"}}
		b := &listing.Listing{Amenities: []string{"wifi", "parking"}}
		assert.InDelta(t, 1.0/3.0, scorer.Score(a, b), 1e-9)
	})
}

func TestOwnerScorerIsBinary(t *testing.T) {
	scorer := OwnerScorer{}

	a := &listing.Listing{OwnerID: "owner-1"}
	b := &listing.Listing{OwnerID: "owner-1"}
	c := &listing.Listing{OwnerID: "owner-2"}
	assert.Equal(t, 1.0, scorer.Score(a, b))
	assert.Equal(t, 0.0, scorer.Score(a, c))

	// Two listings with no owner are not "same owner".
	assert.Equal(t, 0.0, scorer.Score(&listing.Listing{}, &listing.Listing{}))
}

func TestHaversineMeters(t *testing.T) {
	// Berlin Alexanderplatz to Brandenburg Gate, roughly 2.3km.
	d := HaversineMeters(52.5219, 13.4132, 52.5163, 13.3777)
	assert.InDelta(t, 2500, d, 300)

	assert.Equal(t, 0.0, HaversineMeters(52.52, 13.405, 52.52, 13.405))
}
