package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/voltpath/voltpath/engine/domain"
	"github.com/voltpath/voltpath/engine/rag"
	"github.com/voltpath/voltpath/engine/retrieval"
	"github.com/voltpath/voltpath/pkg/metrics"
	"github.com/voltpath/voltpath/pkg/natsutil"
)

// server bundles the handler dependencies.
type server struct {
	rag          *rag.Service
	gateway      *retrieval.Gateway
	nc           *nats.Conn
	tripsSubject string
	logger       *slog.Logger

	mQueries   *metrics.Counter
	mRanges    *metrics.Counter
	mTrips     *metrics.Counter
	mErrors    func(endpoint string) *metrics.Counter
	mAnswerDur *metrics.Histogram
}

func newServer(ragSvc *rag.Service, gateway *retrieval.Gateway, nc *nats.Conn, tripsSubject string, met *metrics.Registry, logger *slog.Logger) *server {
	return &server{
		rag:          ragSvc,
		gateway:      gateway,
		nc:           nc,
		tripsSubject: tripsSubject,
		logger:       logger,
		mQueries:     met.Counter("voltpath_api_queries_total", "Free-text queries answered"),
		mRanges:      met.Counter("voltpath_api_range_predictions_total", "Range predictions answered"),
		mTrips:       met.Counter("voltpath_api_trips_submitted_total", "Trips accepted for indexing"),
		mErrors: func(endpoint string) *metrics.Counter {
			return met.Counter("voltpath_api_errors_total", "Request failures", "endpoint", endpoint)
		},
		mAnswerDur: met.Histogram("voltpath_api_answer_duration_seconds", "End-to-end answer latency", nil),
	}
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// QueryRequest is the JSON body for POST /api/query.
type QueryRequest struct {
	Question string `json:"question"`
	UserID   string `json:"user_id"`
}

func (s *server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := domain.ValidateQuestion(req.Question, req.UserID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	answer, err := s.rag.HandleQuery(r.Context(), req.Question, req.UserID)
	if err != nil {
		s.mErrors("query").Inc()
		s.logger.Error("query failed", "err", err, "user", req.UserID)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	s.mQueries.Inc()
	s.mAnswerDur.Since(start)
	writeJSON(w, http.StatusOK, answer)
}

func (s *server) handleRange(w http.ResponseWriter, r *http.Request) {
	var req rag.RangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := domain.ValidateRangeRequest(req.UserID, req.Origin, req.Destination, req.BatteryPct); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	answer, err := s.rag.HandleRangePrediction(r.Context(), req)
	if err != nil {
		s.mErrors("range").Inc()
		s.logger.Error("range prediction failed", "err", err, "user", req.UserID)
		writeError(w, http.StatusInternalServerError, "range prediction failed")
		return
	}
	s.mRanges.Inc()
	s.mAnswerDur.Since(start)
	writeJSON(w, http.StatusOK, answer)
}

// PerformanceRequest is the JSON body for POST /api/performance.
type PerformanceRequest struct {
	UserID string `json:"user_id"`
}

func (s *server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	var req PerformanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}

	answer, err := s.rag.HandlePerformanceAnalysis(r.Context(), req.UserID)
	if err != nil {
		s.mErrors("performance").Inc()
		s.logger.Error("performance analysis failed", "err", err, "user", req.UserID)
		writeError(w, http.StatusInternalServerError, "performance analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *server) handlePopularRoutes(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	routes, err := s.gateway.GetPopularRoutes(r.Context(), limit)
	if err != nil {
		s.mErrors("routes").Inc()
		writeError(w, http.StatusInternalServerError, "route aggregation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"routes": routes})
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.gateway.GetGlobalStats(r.Context())
	if err != nil {
		s.mErrors("stats").Inc()
		writeError(w, http.StatusInternalServerError, "stats aggregation failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *server) handleProfile(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	profile, err := s.gateway.GetUserProfile(r.Context(), userID)
	if err != nil {
		s.mErrors("profile").Inc()
		writeError(w, http.StatusInternalServerError, "profile lookup failed")
		return
	}
	if profile == nil {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// handleSubmitTrip validates and publishes; indexing happens in the
// consumer. 202 means accepted, not yet searchable.
func (s *server) handleSubmitTrip(w http.ResponseWriter, r *http.Request) {
	var trip domain.TripRecord
	if err := json.NewDecoder(r.Body).Decode(&trip); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := domain.ValidateTrip(trip); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if trip.ID == "" {
		trip.ID = "trip_" + strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	if trip.EfficiencyKWHPer100 == 0 {
		trip.EfficiencyKWHPer100 = domain.Efficiency(trip.DistanceKM, trip.EnergyKWH)
	}
	if trip.Timestamp.IsZero() {
		trip.Timestamp = time.Now().UTC()
	}

	if err := natsutil.Publish(r.Context(), s.nc, s.tripsSubject, trip); err != nil {
		s.mErrors("trips").Inc()
		s.logger.Error("trip publish failed", "err", err, "trip", trip.ID)
		writeError(w, http.StatusServiceUnavailable, "trip submission failed")
		return
	}
	s.mTrips.Inc()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "trip_id": trip.ID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
