// Package api exposes the fact and KPI operations over HTTP for
// dashboard and orchestrator clients.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/dealfacts-cli/internal/kpi"
	"github.com/sells-group/dealfacts-cli/internal/model"
	"github.com/sells-group/dealfacts-cli/internal/store"
)

// KPIDefaults seeds derivation parameters for requests that omit them.
type KPIDefaults struct {
	RevenueLabel      string
	GrossMarginLabel  string
	EBITDAMarginLabel string
	PeriodsToSum      int
	Approve           bool
	TTLDays           int
}

// Server serves the deal-facts HTTP API.
type Server struct {
	store    store.Store
	engine   *kpi.Engine
	defaults KPIDefaults
}

// NewServer creates a Server over the given store.
func NewServer(s store.Store, defaults KPIDefaults) *Server {
	return &Server{store: s, engine: kpi.NewEngine(s), defaults: defaults}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/deals/{dealID}/compute", s.handleCompute)
		r.Get("/deals/{dealID}/golden", s.handleGolden)
		r.Get("/deals/{dealID}/lineage", s.handleLineage)
		r.Post("/metric-values/{metricValueID}/approve", s.handleApprove)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type computeRequest struct {
	RevenueLabel      string `json:"revenue_label"`
	GrossMarginLabel  string `json:"gross_margin_label"`
	EBITDAMarginLabel string `json:"ebitda_margin_label"`
	PeriodsToSum      int    `json:"periods_to_sum"`
	Approve           *bool  `json:"approve"`
	TTLDays           int    `json:"ttl_days"`
}

func (s *Server) handleCompute(w http.ResponseWriter, r *http.Request) {
	dealID := chi.URLParam(r, "dealID")

	var req computeRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	params := kpi.Params{
		DealID:            dealID,
		RevenueLabel:      orDefault(req.RevenueLabel, s.defaults.RevenueLabel),
		GrossMarginLabel:  orDefault(req.GrossMarginLabel, s.defaults.GrossMarginLabel),
		EBITDAMarginLabel: orDefault(req.EBITDAMarginLabel, s.defaults.EBITDAMarginLabel),
		PeriodsToSum:      req.PeriodsToSum,
		Approve:           s.defaults.Approve,
		TTLDays:           req.TTLDays,
	}
	if req.Approve != nil {
		params.Approve = *req.Approve
	}
	if params.PeriodsToSum == 0 {
		params.PeriodsToSum = s.defaults.PeriodsToSum
	}
	if params.TTLDays == 0 {
		params.TTLDays = s.defaults.TTLDays
	}

	res, err := s.engine.Compute(r.Context(), params)
	if err != nil {
		if kpi.IsInputError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		zap.L().Error("compute failed", zap.String("deal_id", dealID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "computation failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGolden(w http.ResponseWriter, r *http.Request) {
	dealID := chi.URLParam(r, "dealID")
	names := r.URL.Query()["metric"]

	snaps, err := s.engine.GoldenFacts(r.Context(), dealID, names...)
	if err != nil {
		zap.L().Error("golden facts read failed", zap.String("deal_id", dealID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "read failed")
		return
	}
	if snaps == nil {
		snaps = []model.GoldenSnapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleLineage(w http.ResponseWriter, r *http.Request) {
	dealID := chi.URLParam(r, "dealID")
	names := r.URL.Query()["metric"]

	lineage, err := s.engine.Lineage(r.Context(), dealID, names...)
	if err != nil {
		zap.L().Error("lineage read failed", zap.String("deal_id", dealID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "read failed")
		return
	}
	writeJSON(w, http.StatusOK, lineage)
}

type approveRequest struct {
	TTLDays int `json:"ttl_days"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "metricValueID")

	var req approveRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.TTLDays == 0 {
		req.TTLDays = s.defaults.TTLDays
	}

	gf, err := s.engine.Approve(r.Context(), id, req.TTLDays)
	if err != nil {
		zap.L().Error("approve failed", zap.String("metric_value_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "approve failed")
		return
	}
	writeJSON(w, http.StatusCreated, gf)
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
