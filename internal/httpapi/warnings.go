package httpapi

import (
	"net/http"

	"github.com/corewire/assistant/internal/chatmodel"
)

// handleWarnings reports the live operator-facing warning list (stale
// entries cleared and replaced on every config reload; see
// internal/reload.RefreshWarnings).
func (s *Server) handleWarnings(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, struct {
		Warnings []chatmodel.Warning `json:"warnings"`
	}{Warnings: s.State.Warnings()})
}
