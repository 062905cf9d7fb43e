package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/arxon-dev/topicperf/internal/domain/model"
)

const defaultTimelineDays = 28

type rebuildRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type rebuildResponse struct {
	SubjectID string `json:"subject_id"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// dateRange reads ?from=&to= or ?days=, defaulting to the last 28 days.
// Spans longer than maxRangeDays are rejected.
func (s *Server) dateRange(r *http.Request, from, to string) (model.DateRange, error) {
	loc := s.deps.Location()
	if from != "" || to != "" {
		rng, err := model.ParseDateRange(from, to, loc)
		if err != nil {
			return model.DateRange{}, err
		}
		return rng, rng.WithinDays(s.maxRangeDays)
	}
	days := defaultTimelineDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return model.DateRange{}, fmt.Errorf("%w: days must be a positive integer", model.ErrInvalidRange)
		}
		if n > s.maxRangeDays {
			return model.DateRange{}, fmt.Errorf("%w: days must be at most %d", model.ErrInvalidRange, s.maxRangeDays)
		}
		days = n
	}
	return model.LastDays(s.clock(), days, loc), nil
}

// handleGetTimeline handles GET /timeline/{subject}?from=&to=.
func (s *Server) handleGetTimeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng, err := s.dateRange(r, q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	rows, err := s.deps.Timeline(r.Context(), r.PathValue("subject"), rng)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleRebuildTimeline handles POST /timeline/{subject}/rebuild with an
// optional {from, to} body or ?days=.
func (s *Server) handleRebuildTimeline(w http.ResponseWriter, r *http.Request) {
	var req rebuildRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	rng, err := s.dateRange(r, req.From, req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	subjectID := r.PathValue("subject")
	if err := s.deps.RebuildTimeline(r.Context(), subjectID, rng); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rebuildResponse{
		SubjectID: subjectID,
		From:      rng.From.Format(model.DateLayout),
		To:        rng.To.Format(model.DateLayout),
	})
}
