package api

import (
	"net/http"

	"github.com/arxon-dev/topicperf/internal/domain/model"
)

type classifyRequest struct {
	Title string `json:"title"`
}

// handleClassify handles POST /classify.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.ClassifyExplain(req.Title))
}

type ackResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

// handlePostOutcome handles POST /outcomes. The outcome is recorded
// asynchronously; 202 only means it was queued.
func (s *Server) handlePostOutcome(w http.ResponseWriter, r *http.Request) {
	var o model.Outcome
	if err := decodeJSON(r, &o); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	queued, err := s.deps.Ingest(r.Context(), o)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", ID: queued.ID})
}
