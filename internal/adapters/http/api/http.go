// Package api exposes the topic performance operations over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/arxon-dev/topicperf/internal/adapters/repository"
	service "github.com/arxon-dev/topicperf/internal/app"
	"github.com/arxon-dev/topicperf/internal/domain/classifier"
	"github.com/arxon-dev/topicperf/internal/domain/model"
	"github.com/arxon-dev/topicperf/internal/domain/rollup"
	"github.com/arxon-dev/topicperf/pkg/logger"
)

const (
	defaultMaxRankingLimit = 500
	defaultMaxRangeDays    = 366
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	ClassifyExplain(title string) classifier.Match
	Ingest(ctx context.Context, o model.Outcome) (model.Outcome, error)

	GetPerformance(ctx context.Context, subjectID, topic string) (model.PerformanceRecord, bool, error)
	ListPerformance(ctx context.Context, subjectID string) ([]model.PerformanceRecord, error)
	WeakTopics(ctx context.Context, subjectID string, threshold float64, minQuestions uint64) ([]model.PerformanceRecord, error)
	BulkReconcile(ctx context.Context, subjectID, topic string, total, correct uint64) (model.PerformanceRecord, error)
	ResetSubject(ctx context.Context, subjectID string) (int64, error)

	RebuildTimeline(ctx context.Context, subjectID string, rng model.DateRange) error
	Timeline(ctx context.Context, subjectID string, rng model.DateRange) ([]model.DailyTimelineEntry, error)
	Location() *time.Location

	ComputeRanking(ctx context.Context, scope rollup.Scope) ([]model.RankingEntry, error)
	ComputeSystemStats(ctx context.Context) (model.SystemStats, error)
	GetStats() map[string]interface{}
}

// Option configures a Server.
type Option func(*Server)

// WithMaxRankingLimit caps GET /ranking?limit.
func WithMaxRankingLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxRankingLimit = n
		}
	}
}

// WithMaxRangeDays caps the days a timeline request may span.
func WithMaxRangeDays(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxRangeDays = n
		}
	}
}

// WithLogger sets the logger used for 5xx responses.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now for default timeline ranges.
func WithClock(c func() time.Time) Option {
	return func(s *Server) {
		if c != nil {
			s.clock = c
		}
	}
}

// Server wires HTTP routes for the API.
type Server struct {
	deps            Dependencies
	maxRankingLimit int
	maxRangeDays    int
	clock           func() time.Time
	logger          logger.Logger
}

// NewServer creates an API server on deps.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:            deps,
		maxRankingLimit: defaultMaxRankingLimit,
		maxRangeDays:    defaultMaxRangeDays,
		clock:           time.Now,
		logger:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.instrument("healthz", s.handleHealth))
	mux.Handle("GET /metrics", metricsHandler())
	mux.HandleFunc("POST /classify", s.instrument("classify", s.handleClassify))
	mux.HandleFunc("POST /outcomes", s.instrument("outcomes", s.handlePostOutcome))
	mux.HandleFunc("GET /performance/{subject}", s.instrument("performance", s.handleListPerformance))
	mux.HandleFunc("DELETE /performance/{subject}", s.instrument("performance", s.handleResetSubject))
	mux.HandleFunc("GET /performance/{subject}/{topic}", s.instrument("performance", s.handleGetPerformance))
	mux.HandleFunc("PUT /performance/{subject}/{topic}", s.instrument("performance", s.handleReconcile))
	mux.HandleFunc("GET /timeline/{subject}", s.instrument("timeline", s.handleGetTimeline))
	mux.HandleFunc("POST /timeline/{subject}/rebuild", s.instrument("timeline_rebuild", s.handleRebuildTimeline))
	mux.HandleFunc("GET /ranking", s.instrument("ranking", s.handleRanking))
	mux.HandleFunc("GET /stats", s.instrument("stats", s.handleStats))
	mux.HandleFunc("/", s.instrument("not_found", s.handleNotFound))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %s", ErrBadRequest, msg))
}

// writeFailure maps service and store errors onto status codes.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, repository.ErrInvalid),
		errors.Is(err, model.ErrInvalidRange),
		errors.Is(err, model.ErrInvalidOutcome),
		errors.Is(err, rollup.ErrInvalidScope),
		errors.Is(err, rollup.ErrInvalidSubject):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, service.ErrDuplicate):
		writeError(w, http.StatusConflict, "duplicate", err)
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, repository.ErrTransient),
		errors.Is(err, rollup.ErrLock),
		errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", fmt.Errorf("try again: %w", err))
	default:
		s.logger.Error(r.Context(), "request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}
