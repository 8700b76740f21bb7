// Package rag orchestrates the question-answering pipeline: classify the
// question, retrieve evidence from both indexes, compose an intent-specific
// prompt, call the generation model, and post-process into a structured
// answer. It also owns the two dedicated paths (range prediction and
// performance analysis) that bypass general classification.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/voltpath/voltpath/engine/classify"
	"github.com/voltpath/voltpath/engine/domain"
	"github.com/voltpath/voltpath/engine/prompt"
	"github.com/voltpath/voltpath/engine/retrieval"
	"github.com/voltpath/voltpath/pkg/routenlp"
)

var tracer = otel.Tracer("engine/rag")

// Retriever is the gateway surface the orchestrator needs.
type Retriever interface {
	QueryCombined(ctx context.Context, userID, text string) (retrieval.Combined, error)
	FindExactTrips(ctx context.Context, origin, destination string, k int) ([]domain.TripRecord, error)
	GetUserProfile(ctx context.Context, userID string) (*domain.UserProfile, error)
	GetGlobalStats(ctx context.Context) (domain.GlobalStats, error)
}

// Generator is the text-generation capability. Calls may take seconds;
// failures surface as a single request-level error, never retried here.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error)
}

// RouteEnricher optionally supplies route-network context for
// route_planning questions. Failures are logged and skipped.
type RouteEnricher interface {
	RouteContext(ctx context.Context, origin, destination string) (string, error)
}

// Options configures the orchestrator.
type Options struct {
	MaxTokens        int
	Temperature      float32 // general queries: low, factual
	RangeTemperature float32 // range prediction: lowest, most deterministic
	CoachTemperature float32 // performance coaching: advisory, some variety
	RangeTripK       int     // exact-match trips pulled for range prediction
}

// DefaultOptions returns the tuned production defaults.
func DefaultOptions() Options {
	return Options{
		MaxTokens:        200,
		Temperature:      0.2,
		RangeTemperature: 0.1,
		CoachTemperature: 0.3,
		RangeTripK:       3,
	}
}

// staticConfidence is a placeholder, not a computed score. Clients depend
// on the field being present; a real calibration step would replace it.
const staticConfidence = 0.85

// feasibilityWindow is how many leading characters of the generated text
// are scanned for "yes". Admitted heuristic; see feasibilityFromText.
const feasibilityWindow = 100

// Service is the query orchestrator. Construct once per process.
type Service struct {
	retriever Retriever
	generator Generator
	classify  classify.Classifier
	routes    RouteEnricher
	opts      Options
	logger    *slog.Logger

	// The generation capability is a single loaded model instance;
	// concurrent requests queue for it.
	genMu sync.Mutex
}

// New creates a Service. routes may be nil to disable route enrichment.
func New(retriever Retriever, generator Generator, classifier classify.Classifier, routes RouteEnricher, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if classifier == nil {
		classifier = classify.Classify
	}
	return &Service{
		retriever: retriever,
		generator: generator,
		classify:  classifier,
		routes:    routes,
		opts:      opts,
		logger:    logger,
	}
}

// QueryAnswer is the structured result of HandleQuery.
type QueryAnswer struct {
	Response    string        `json:"response"`
	Intent      domain.Intent `json:"query_type"`
	Confidence  float64       `json:"confidence"`
	SourcesUsed []string      `json:"sources_used"`
}

// HandleQuery answers a free-text question.
func (s *Service) HandleQuery(ctx context.Context, question, userID string) (*QueryAnswer, error) {
	ctx, span := tracer.Start(ctx, "rag.query")
	defer span.End()

	intent := s.classify(question)
	span.SetAttributes(attribute.String("intent", string(intent)))
	s.logger.Info("query start", "intent", intent, "user", userID, "question_len", len(question))

	ev, err := s.retriever.QueryCombined(ctx, userID, question)
	if err != nil {
		return nil, fmt.Errorf("rag: retrieve: %w", err)
	}

	var routeContext string
	if intent == domain.IntentRoutePlanning && s.routes != nil {
		routeContext = s.enrichRoute(ctx, question)
	}

	text := prompt.Compose(intent, question, ev, routeContext)
	raw, err := s.generate(ctx, text, s.opts.MaxTokens, s.opts.Temperature)
	if err != nil {
		return nil, fmt.Errorf("rag: generate: %w", err)
	}

	return &QueryAnswer{
		Response:   strings.TrimSpace(raw),
		Intent:     intent,
		Confidence: staticConfidence,
		// Both indexes are always consulted, so both are always cited,
		// even when one came back empty.
		SourcesUsed: []string{"community", "personal"},
	}, nil
}

// RangeRequest is the input to the dedicated range predictor.
type RangeRequest struct {
	UserID      string  `json:"user_id"`
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
	BatteryPct  float64 `json:"current_battery"`
	Weather     string  `json:"weather"`
	Traffic     string  `json:"traffic"`
}

// RangeAnswer is the structured result of HandleRangePrediction.
// ChargingStops, EnergyEstimateKWH, and Tips are part of the contract but
// always empty: they are reserved for a future structured-extraction step.
type RangeAnswer struct {
	Response          string   `json:"response"`
	CanReach          bool     `json:"can_reach"`
	Confidence        float64  `json:"confidence"`
	ChargingStops     []string `json:"charging_stops"`
	EnergyEstimateKWH *float64 `json:"energy_needed_kwh"`
	Tips              []string `json:"personalized_tips"`
}

// HandleRangePrediction judges trip feasibility from exact-match trip
// records, bypassing the general classifier entirely.
func (s *Service) HandleRangePrediction(ctx context.Context, req RangeRequest) (*RangeAnswer, error) {
	ctx, span := tracer.Start(ctx, "rag.range_prediction")
	defer span.End()

	trips, err := s.retriever.FindExactTrips(ctx, req.Origin, req.Destination, s.opts.RangeTripK)
	if err != nil {
		return nil, fmt.Errorf("rag: find trips: %w", err)
	}
	profile, err := s.retriever.GetUserProfile(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("rag: get profile: %w", err)
	}

	text := prompt.ComposeRangePrediction(req.Origin, req.Destination, req.BatteryPct, req.Weather, req.Traffic, trips, profile)
	raw, err := s.generate(ctx, text, s.opts.MaxTokens, s.opts.RangeTemperature)
	if err != nil {
		return nil, fmt.Errorf("rag: generate: %w", err)
	}

	return &RangeAnswer{
		Response:      raw,
		CanReach:      feasibilityFromText(raw),
		Confidence:    staticConfidence,
		ChargingStops: []string{},
		Tips:          []string{},
	}, nil
}

// PerformanceMetrics compares the user to the community.
type PerformanceMetrics struct {
	UserEfficiency float64 `json:"user_efficiency"`
	CommunityAvg   float64 `json:"community_avg"`
}

// PerformanceAnswer is the structured result of HandlePerformanceAnalysis.
// Recommendations is reserved, same as RangeAnswer's extraction fields.
type PerformanceAnswer struct {
	Response        string              `json:"response"`
	Metrics         *PerformanceMetrics `json:"metrics,omitempty"`
	Recommendations []string            `json:"recommendations"`
}

// HandlePerformanceAnalysis coaches a driver against community aggregates.
// A user with no profile gets a fixed fallback without spending a
// generation call.
func (s *Service) HandlePerformanceAnalysis(ctx context.Context, userID string) (*PerformanceAnswer, error) {
	ctx, span := tracer.Start(ctx, "rag.performance_analysis")
	defer span.End()

	profile, err := s.retriever.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("rag: get profile: %w", err)
	}
	if profile == nil {
		return &PerformanceAnswer{
			Response:        fmt.Sprintf("No driving data found for user %s. Start logging trips to get personalized insights!", userID),
			Recommendations: []string{},
		}, nil
	}

	stats, err := s.retriever.GetGlobalStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("rag: global stats: %w", err)
	}

	text := prompt.ComposeCoaching(*profile, stats)
	raw, err := s.generate(ctx, text, s.opts.MaxTokens, s.opts.CoachTemperature)
	if err != nil {
		return nil, fmt.Errorf("rag: generate: %w", err)
	}

	return &PerformanceAnswer{
		Response: strings.TrimSpace(raw),
		Metrics: &PerformanceMetrics{
			UserEfficiency: profile.AvgEfficiency,
			CommunityAvg:   stats.AvgEfficiency,
		},
		Recommendations: []string{},
	}, nil
}

// generate serializes access to the single loaded model instance.
func (s *Service) generate(ctx context.Context, text string, maxTokens int, temperature float32) (string, error) {
	ctx, span := tracer.Start(ctx, "rag.generate")
	defer span.End()

	s.genMu.Lock()
	defer s.genMu.Unlock()
	out, err := s.generator.Generate(ctx, text, maxTokens, temperature)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

// enrichRoute attempts route-graph context; failures are logged and skipped.
func (s *Service) enrichRoute(ctx context.Context, question string) string {
	route, ok := routenlp.ExtractRoute(question)
	if !ok {
		return ""
	}
	summary, err := s.routes.RouteContext(ctx, route.Origin, route.Destination)
	if err != nil {
		s.logger.Warn("route enrichment failed, continuing without", "err", err)
		return ""
	}
	return summary
}

// feasibilityFromText scans the first feasibilityWindow characters for
// "yes", case-insensitively. A "yes" appearing only later in the text does
// not count. Brittle by construction; kept for compatibility. The natural
// replacement is a structured-output generation call.
func feasibilityFromText(text string) bool {
	window := text
	if len(window) > feasibilityWindow {
		window = window[:feasibilityWindow]
	}
	return strings.Contains(strings.ToLower(window), "yes")
}
