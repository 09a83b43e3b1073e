package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/rentalhub/dupdetect/internal/ledger"
)

// PairsHandler exposes the duplicate ledger to the moderation frontend.
type PairsHandler struct {
	Ledger ledger.Store
	Log    zerolog.Logger
}

type decisionRequest struct {
	Decision   string  `json:"decision"`
	Score      float64 `json:"score"`
	ReviewerID *string `json:"reviewer_id,omitempty"`
}

// MarkDecision records a moderator decision about a pair; the upsert is
// idempotent and direction-independent.
// POST /api/pairs/{canonicalId}/{duplicateId}/decision
func (h *PairsHandler) MarkDecision(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	key, ok := pairKeyFromVars(vars)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid pair ids")
		return
	}

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	d := ledger.Decision{
		Status:     ledger.Status(req.Decision),
		Score:      req.Score,
		Method:     ledger.MethodManual,
		ReviewerID: req.ReviewerID,
	}
	if !d.Valid() {
		writeError(w, http.StatusBadRequest, "decision must be pending, confirmed or dismissed")
		return
	}

	entry, err := h.Ledger.UpsertDecision(r.Context(), key, d)
	if err != nil {
		h.Log.Error().
			Str("canonical_id", key.CanonicalID).
			Str("duplicate_id", key.DuplicateID).
			Err(err).Msg("ledger upsert failed")
		writeError(w, http.StatusInternalServerError, "failed to record decision")
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// RemoveSuppression deletes a pair's ledger entry so it can resurface.
// DELETE /api/pairs/{canonicalId}/{duplicateId}
func (h *PairsHandler) RemoveSuppression(w http.ResponseWriter, r *http.Request) {
	key, ok := pairKeyFromVars(mux.Vars(r))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid pair ids")
		return
	}

	if err := h.Ledger.RemoveSuppression(r.Context(), key); err != nil {
		h.Log.Error().
			Str("canonical_id", key.CanonicalID).
			Str("duplicate_id", key.DuplicateID).
			Err(err).Msg("ledger delete failed")
		writeError(w, http.StatusInternalServerError, "failed to remove suppression")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListPending returns unresolved pairs awaiting moderation.
// GET /api/pairs/pending?listing_id=...&limit=...
func (h *PairsHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	f := ledger.PendingFilter{ListingID: query.Get("listing_id")}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		f.Limit = limit
	}

	entries, err := h.Ledger.ListPending(r.Context(), f)
	if err != nil {
		h.Log.Error().Err(err).Msg("pending list failed")
		writeError(w, http.StatusInternalServerError, "failed to list pending pairs")
		return
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}

	writeJSON(w, http.StatusOK, entries)
}

func pairKeyFromVars(vars map[string]string) (ledger.PairKey, bool) {
	a := strings.TrimSpace(vars["canonicalId"])
	b := strings.TrimSpace(vars["duplicateId"])
	if a == "" || b == "" || a == b {
		return ledger.PairKey{}, false
	}
	return ledger.NewPairKey(a, b), true
}
