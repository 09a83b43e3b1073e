package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/rentalhub/dupdetect/internal/engine"
	"github.com/rentalhub/dupdetect/internal/ledger"
	"github.com/rentalhub/dupdetect/internal/listing"
)

// DetectHandler exposes the detection pipeline.
type DetectHandler struct {
	Detector *engine.Detector
	Log      zerolog.Logger
}

// Detect runs incremental detection for one listing.
// POST /api/detect/{id}?force=true
func (h *DetectHandler) Detect(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	force := r.URL.Query().Get("force") == "true"

	report, err := h.Detector.Detect(r.Context(), id, engine.Options{
		Method: ledger.MethodIncremental,
		Force:  force,
	})
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrInvalidListingID):
			writeError(w, http.StatusBadRequest, "invalid listing id")
		case errors.Is(err, listing.ErrNotFound):
			writeError(w, http.StatusNotFound, "listing not found")
		default:
			h.Log.Error().Str("listing_id", id).Err(err).Msg("detection failed")
			writeError(w, http.StatusInternalServerError, "detection failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
