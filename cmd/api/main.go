// Package main implements the Voltpath query API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/voltpath/voltpath/engine/rag"
	"github.com/voltpath/voltpath/engine/retrieval"
	"github.com/voltpath/voltpath/engine/routegraph"
	"github.com/voltpath/voltpath/engine/semantic"
	"github.com/voltpath/voltpath/pkg/metrics"
	"github.com/voltpath/voltpath/pkg/mid"
	"github.com/voltpath/voltpath/pkg/ollama"
)

// Config holds all environment-based configuration.
type Config struct {
	Port           string
	MetricsPort    int
	OllamaURL      string
	EmbedModel     string
	GenerateModel  string
	QdrantURL      string
	CommunityColl  string
	PersonalColl   string
	Neo4jURL       string
	Neo4jUser      string
	Neo4jPass      string
	NATSURL        string
	TripsSubject   string
	CORSOrigin     string
	RateLimitRPS   float64
	RateLimitBurst int
}

func loadConfig() Config {
	return Config{
		Port:           envOr("PORT", "8000"),
		MetricsPort:    envInt("METRICS_PORT", 9090),
		OllamaURL:      envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel:     envOr("EMBED_MODEL", "nomic-embed-text"),
		GenerateModel:  envOr("GENERATE_MODEL", "llama3.2:3b"),
		QdrantURL:      envOr("QDRANT_URL", "localhost:6334"),
		CommunityColl:  envOr("COMMUNITY_COLLECTION", "trips_community"),
		PersonalColl:   envOr("PERSONAL_COLLECTION", "drivers_personal"),
		Neo4jURL:       envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:      envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:      envOr("NEO4J_PASS", "password"),
		NATSURL:        envOr("NATS_URL", nats.DefaultURL),
		TripsSubject:   envOr("TRIPS_SUBJECT", "voltpath.trips"),
		CORSOrigin:     envOr("CORS_ORIGIN", "*"),
		RateLimitRPS:   envFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 20),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func main() {
	godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	met := metrics.New()
	met.CollectRuntime("voltpath_api", 15*time.Second)
	met.ServeAsync(cfg.MetricsPort)

	// --- Ollama: fail fast before accepting requests ---
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err := ollama.Ping(pingCtx, cfg.OllamaURL)
	cancel()
	if err != nil {
		return fmt.Errorf("ollama unavailable: %w", err)
	}
	embedder := ollama.NewEmbedClient(cfg.OllamaURL, cfg.EmbedModel)
	generator := ollama.NewGenerateClient(cfg.OllamaURL, cfg.GenerateModel)

	// --- Qdrant: one store per collection ---
	community, err := semantic.New(cfg.QdrantURL, cfg.CommunityColl)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer community.Close()
	personal, err := semantic.New(cfg.QdrantURL, cfg.PersonalColl)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer personal.Close()

	if err := community.Ping(ctx); err != nil {
		return fmt.Errorf("community collection: %w", err)
	}
	if err := personal.Ping(ctx); err != nil {
		return fmt.Errorf("personal collection: %w", err)
	}

	gateway, err := retrieval.NewGateway(ctx, community, personal, embedder, retrieval.DefaultOptions(), logger)
	if err != nil {
		return err
	}

	// --- Neo4j route graph: optional enrichment, never required ---
	var routes rag.RouteEnricher
	neo4jDriver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err == nil {
		if err := neo4jDriver.VerifyConnectivity(ctx); err == nil {
			routes = routegraph.New(neo4jDriver)
			defer neo4jDriver.Close(ctx)
		} else {
			logger.Warn("neo4j unreachable, route enrichment disabled", "err", err)
			neo4jDriver.Close(ctx)
		}
	} else {
		logger.Warn("neo4j driver init failed, route enrichment disabled", "err", err)
	}

	// --- NATS: trip submissions are published, indexed by the consumer ---
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()

	ragSvc := rag.New(gateway, generator, nil, routes, rag.DefaultOptions(), logger)

	srv := newServer(ragSvc, gateway, nc, cfg.TripsSubject, met, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", srv.handleHealth)
	mux.HandleFunc("POST /api/query", srv.handleQuery)
	mux.HandleFunc("POST /api/range", srv.handleRange)
	mux.HandleFunc("POST /api/performance", srv.handlePerformance)
	mux.HandleFunc("GET /api/routes/popular", srv.handlePopularRoutes)
	mux.HandleFunc("GET /api/stats", srv.handleStats)
	mux.HandleFunc("GET /api/profile/{id}", srv.handleProfile)
	mux.HandleFunc("POST /api/trips", srv.handleSubmitTrip)

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		mid.OTel("voltpath-api"),
	)

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
		// Generation can take tens of seconds on CPU-only hosts.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutCtx)
}
