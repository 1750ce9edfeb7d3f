// Package ops serves the operational HTTP surface: liveness and readiness
// probes, Prometheus metrics, ingestion run status lookups, and embedding
// spend reports.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/halcyon-data/docdex/internal/domain"
	"github.com/halcyon-data/docdex/internal/domain/run"
	domusage "github.com/halcyon-data/docdex/internal/domain/usage"
	"github.com/halcyon-data/docdex/internal/metrics"
	healthuc "github.com/halcyon-data/docdex/internal/usecase/health"
	usageuc "github.com/halcyon-data/docdex/internal/usecase/usage"
)

// StatusReader looks up the persisted status of an ingestion run.
type StatusReader interface {
	Get(ctx context.Context, runID string) (*run.Status, error)
}

// Server wires the ops endpoints onto a chi router.
type Server struct {
	health *healthuc.Service
	runs   StatusReader
	usage  *usageuc.Service
	logger *zap.Logger
}

// NewServer creates an ops server.
func NewServer(health *healthuc.Service, runs StatusReader, usage *usageuc.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{health: health, runs: runs, usage: usage, logger: logger}
}

// Handler returns the assembled ops router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(metrics.Middleware())

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/runs/{runID}", s.handleRun)
	r.Get("/usage", s.handleUsage)

	return r
}

// handleHealthz is the liveness probe; it never touches dependencies.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// handleReadyz is the readiness probe; it pings the store and the embedder.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for name, res := range report.Checks {
		checks[name] = string(res)
	}

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, readyResponse{Status: string(report.Status), Checks: checks})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	st, err := s.runs.Get(r.Context(), runID)
	switch {
	case errors.Is(err, domain.ErrRunNotFound):
		writeError(w, http.StatusNotFound, "run_not_found", "run "+runID+" not found")
	case err != nil:
		s.logger.Error("run status lookup failed", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	default:
		writeJSON(w, http.StatusOK, st)
	}
}

type usageResponse struct {
	Period        string       `json:"period"`
	PeriodStartAt *time.Time   `json:"period_start_at,omitempty"`
	PeriodEndAt   *time.Time   `json:"period_end_at,omitempty"`
	Usage         usageMetrics `json:"usage"`
	Budget        budgetStatus `json:"budget"`
}

type usageMetrics struct {
	Tokens           int  `json:"tokens"`
	CostMillidollars *int `json:"cost_millidollars,omitempty"`
}

type budgetStatus struct {
	TokensLimit     int        `json:"tokens_limit"`
	TokensRemaining int        `json:"tokens_remaining"`
	IsExhausted     bool       `json:"is_exhausted"`
	ResetsAt        *time.Time `json:"resets_at,omitempty"`
}

// handleUsage reports embedding token spend for a period (?period=day|month|total).
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	period := domusage.PeriodMonth
	switch r.URL.Query().Get("period") {
	case "day":
		period = domusage.PeriodDay
	case "total":
		period = domusage.PeriodTotal
	}

	report := s.usage.GetReport(r.Context(), period)

	resp := usageResponse{
		Period: string(report.Period()),
		Usage:  usageMetrics{Tokens: report.Metrics().Tokens()},
		Budget: budgetStatus{
			TokensLimit:     report.Budget().TokensLimit(),
			TokensRemaining: report.Budget().TokensRemaining(),
			IsExhausted:     report.Budget().IsExhausted(),
		},
	}

	if cost := report.Metrics().CostMillidollars(); cost > 0 {
		resp.Usage.CostMillidollars = &cost
	}

	if report.PeriodStart() > 0 {
		start := time.UnixMilli(report.PeriodStart()).UTC()
		end := time.UnixMilli(report.PeriodEnd()).UTC()
		resp.PeriodStartAt = &start
		resp.PeriodEndAt = &end
	}

	if report.Budget().ResetsAt() > 0 {
		resetsAt := time.UnixMilli(report.Budget().ResetsAt()).UTC()
		resp.Budget.ResetsAt = &resetsAt
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}

// jsonRecoverer returns JSON instead of a plain text stacktrace on panic.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
