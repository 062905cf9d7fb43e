package api

import (
	"net/http"
	"strconv"

	"github.com/arxon-dev/topicperf/internal/domain/rollup"
)

// handleRanking handles GET /ranking?topic=&view=&min=&limit=. A missing or
// oversized limit is clamped to the server maximum.
func (s *Server) handleRanking(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	view, err := rollup.ParseView(q.Get("view"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	limit := s.maxRankingLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(w, "limit must be a non-negative integer")
			return
		}
		if n > 0 && n < limit {
			limit = n
		}
	}

	var minQuestions uint64
	if raw := q.Get("min"); raw != "" {
		if minQuestions, err = strconv.ParseUint(raw, 10, 64); err != nil {
			badRequest(w, "min must be a non-negative integer")
			return
		}
	}

	entries, err := s.deps.ComputeRanking(r.Context(), rollup.Scope{
		Topic:        q.Get("topic"),
		View:         view,
		MinQuestions: minQuestions,
		Limit:        limit,
	})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
