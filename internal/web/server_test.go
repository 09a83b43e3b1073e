package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentalhub/dupdetect/internal/engine"
	"github.com/rentalhub/dupdetect/internal/ledger"
	"github.com/rentalhub/dupdetect/internal/listing"
)

func ptr(v float64) *float64 { return &v }

func newTestServer(t *testing.T) (*Server, *ledger.MemoryStore) {
	t.Helper()

	repo := listing.NewMemoryRepository(
		listing.Listing{
			ID:               "listing-a",
			Title:            "Sunny 2BR apartment near the park",
			Description:      "Bright two bedroom flat, newly renovated.",
			Address:          "123 Main Street, Springfield",
			AddressCanonical: "123 main street springfield",
			Latitude:         ptr(40.7410),
			Longitude:        ptr(-73.9897),
			OwnerID:          "owner-1",
			Amenities:        []string{"wifi", "gym"},
			Active:           true,
		},
		listing.Listing{
			ID:               "listing-b",
			Title:            "Sunny 2BR apartment near the park",
			Description:      "Bright two bedroom flat, newly renovated.",
			Address:          "123 Main St, Springfield",
			AddressCanonical: "123 main street springfield",
			Latitude:         ptr(40.7410),
			Longitude:        ptr(-73.9897),
			OwnerID:          "owner-1",
			Amenities:        []string{"gym", "wifi"},
			Active:           true,
		},
	)
	store := ledger.NewMemoryStore()

	selCfg := engine.DefaultSelectorConfig()
	detector := engine.NewDetector(
		repo,
		engine.NewSelector(repo, store, selCfg),
		engine.DefaultScorers(selCfg.RadiusM),
		engine.NewCompositeScorer(engine.DefaultScoringConfig()),
		2,
		zerolog.Nop(),
	)

	srv := NewServer(Config{Host: "127.0.0.1", Port: 0, CORSAllowedOrigins: "*"}, detector, store, zerolog.Nop())
	return srv, store
}

func doRequest(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestDetectEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/detect/listing-a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var report engine.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "listing-a", report.TargetID)
	require.Len(t, report.Matches, 1)
	assert.Equal(t, "listing-b", report.Matches[0].ListingID)
	assert.Equal(t, engine.TierHigh, report.Matches[0].Confidence)
}

func TestDetectEndpointUnknownListing(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/detect/listing-z", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDecisionEndpoint(t *testing.T) {
	srv, store := newTestServer(t)

	body := map[string]interface{}{
		"decision":    "confirmed",
		"score":       0.93,
		"reviewer_id": "mod-1",
	}
	rec := doRequest(t, srv, http.MethodPost, "/api/pairs/listing-b/listing-a/decision", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var entry ledger.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	// Ids come back canonicalized regardless of URL order.
	assert.Equal(t, "listing-a", entry.CanonicalID)
	assert.Equal(t, "listing-b", entry.DuplicateID)
	assert.Equal(t, ledger.StatusConfirmed, entry.Status)
	assert.Equal(t, ledger.MethodManual, entry.Method)

	suppressed, err := store.IsSuppressed(context.Background(), ledger.NewPairKey("listing-a", "listing-b"))
	require.NoError(t, err)
	assert.True(t, suppressed)
}

func TestDecisionEndpointRejectsBadInput(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/pairs/listing-a/listing-a/decision", map[string]string{"decision": "confirmed"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/pairs/listing-a/listing-b/decision", map[string]string{"decision": "maybe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/pairs/listing-a/listing-b/decision", bytes.NewBufferString("{not json"))
	raw := httptest.NewRecorder()
	srv.Handler().ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestDecisionSuppressesAndDeleteRestores(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/pairs/listing-a/listing-b/decision", map[string]interface{}{
		"decision": "dismissed",
		"score":    0.9,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/detect/listing-a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report engine.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Empty(t, report.Matches)

	rec = doRequest(t, srv, http.MethodPost, "/api/detect/listing-a?force=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Len(t, report.Matches, 1)

	rec = doRequest(t, srv, http.MethodDelete, "/api/pairs/listing-a/listing-b", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/detect/listing-a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Len(t, report.Matches, 1)
}

func TestPendingEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		key := ledger.NewPairKey("listing-a", fmt.Sprintf("listing-x%d", i))
		_, err := store.UpsertDecision(ctx, key, ledger.Decision{Status: ledger.StatusPending, Score: 0.5, Method: ledger.MethodFullScan})
		require.NoError(t, err)
	}

	rec := doRequest(t, srv, http.MethodGet, "/api/pairs/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []ledger.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Len(t, entries, 3)

	rec = doRequest(t, srv, http.MethodGet, "/api/pairs/pending?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Len(t, entries, 2)

	rec = doRequest(t, srv, http.MethodGet, "/api/pairs/pending?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/pairs/pending?listing_id=listing-q", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Empty(t, entries)
	assert.NotEqual(t, "null", rec.Body.String())
}

func TestStatsEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	_, err := store.UpsertDecision(ctx, ledger.NewPairKey("listing-a", "listing-b"), ledger.Decision{Status: ledger.StatusConfirmed, Score: 0.9, Method: ledger.MethodManual})
	require.NoError(t, err)
	_, err = store.UpsertDecision(ctx, ledger.NewPairKey("listing-a", "listing-c"), ledger.Decision{Status: ledger.StatusPending, Score: 0.5, Method: ledger.MethodFullScan})
	require.NoError(t, err)

	rec := doRequest(t, srv, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, map[string]int{"pending": 1, "confirmed": 1, "dismissed": 0}, stats)
}

func TestHealthzEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCORSHeaders(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/healthz", nil)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
