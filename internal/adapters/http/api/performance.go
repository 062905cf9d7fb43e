package api

import (
	"net/http"
	"strconv"

	"github.com/arxon-dev/topicperf/internal/domain/model"
)

type performanceResponse struct {
	model.PerformanceRecord
	Found bool `json:"found"`
}

type reconcileRequest struct {
	Total   *uint64 `json:"total"`
	Correct *uint64 `json:"correct"`
}

type resetResponse struct {
	SubjectID string `json:"subject_id"`
	Deleted   int64  `json:"deleted"`
}

// handleGetPerformance handles GET /performance/{subject}/{topic}. A key
// never seen is a zeroed record, not a 404.
func (s *Server) handleGetPerformance(w http.ResponseWriter, r *http.Request) {
	rec, found, err := s.deps.GetPerformance(r.Context(), r.PathValue("subject"), r.PathValue("topic"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, performanceResponse{PerformanceRecord: rec, Found: found})
}

// handleListPerformance handles GET /performance/{subject}. With
// ?weak_below=N only topics under N% accuracy are listed, worst first;
// ?min=M sets the questions a topic needs to be judged.
func (s *Server) handleListPerformance(w http.ResponseWriter, r *http.Request) {
	subjectID := r.PathValue("subject")
	q := r.URL.Query()

	if raw := q.Get("weak_below"); raw != "" {
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil || threshold < 0 || threshold > 100 {
			badRequest(w, "weak_below must be a number in [0, 100]")
			return
		}
		var minQuestions uint64
		if m := q.Get("min"); m != "" {
			if minQuestions, err = strconv.ParseUint(m, 10, 64); err != nil {
				badRequest(w, "min must be a non-negative integer")
				return
			}
		}
		recs, err := s.deps.WeakTopics(r.Context(), subjectID, threshold, minQuestions)
		if err != nil {
			s.writeFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, recs)
		return
	}

	recs, err := s.deps.ListPerformance(r.Context(), subjectID)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// handleReconcile handles PUT /performance/{subject}/{topic}.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if req.Total == nil || req.Correct == nil {
		badRequest(w, "total and correct are required")
		return
	}
	rec, err := s.deps.BulkReconcile(r.Context(), r.PathValue("subject"), r.PathValue("topic"), *req.Total, *req.Correct)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, performanceResponse{PerformanceRecord: rec, Found: true})
}

// handleResetSubject handles DELETE /performance/{subject}.
func (s *Server) handleResetSubject(w http.ResponseWriter, r *http.Request) {
	subjectID := r.PathValue("subject")
	n, err := s.deps.ResetSubject(r.Context(), subjectID)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resetResponse{SubjectID: subjectID, Deleted: n})
}
