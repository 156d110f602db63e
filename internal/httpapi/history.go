package httpapi

import (
	"net/http"
	"strconv"

	"github.com/ariavoice/aria/internal/history"
	"github.com/ariavoice/aria/internal/protocol"
)

const defaultHistoryLimit = 20

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondJSON(w, http.StatusBadRequest,
				protocol.Detail{Detail: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	turns, err := s.store.RecentTurns(r.Context(), limit)
	if err != nil {
		s.metrics.ProviderErrors.WithLabelValues("history", "read").Inc()
		respondJSON(w, http.StatusInternalServerError,
			protocol.Detail{Detail: "conversation history is unavailable"})
		return
	}
	if turns == nil {
		turns = []history.Turn{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"turns": turns})
}
