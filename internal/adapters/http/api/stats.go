package api

import (
	"net/http"

	"github.com/arxon-dev/topicperf/internal/domain/model"
)

type statsResponse struct {
	System  model.SystemStats      `json:"system"`
	Service map[string]interface{} `json:"service"`
}

// handleStats handles GET /stats: aggregate statistics over every record
// plus the ingestion pipeline's runtime state.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	system, err := s.deps.ComputeSystemStats(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{System: system, Service: s.deps.GetStats()})
}
