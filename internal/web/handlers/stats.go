package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/rentalhub/dupdetect/internal/ledger"
)

// StatsHandler reports ledger moderation statistics.
type StatsHandler struct {
	Ledger ledger.Store
	Log    zerolog.Logger
}

// GetStats returns entry counts per moderation status.
// GET /api/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.Ledger.CountByStatus(r.Context())
	if err != nil {
		h.Log.Error().Err(err).Msg("stats query failed")
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"pending":   counts[ledger.StatusPending],
		"confirmed": counts[ledger.StatusConfirmed],
		"dismissed": counts[ledger.StatusDismissed],
	})
}

// Healthz is a liveness probe.
// GET /api/healthz
func (h *StatsHandler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
