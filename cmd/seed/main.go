// Command seed performs the one-shot index population: it loads the trip
// and driver datasets from JSON, creates both Qdrant collections, embeds
// and upserts every record, and replays the trips into the route graph.
// Re-running it is safe: point IDs are deterministic, so records are
// overwritten rather than duplicated.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/voltpath/voltpath/engine/domain"
	"github.com/voltpath/voltpath/engine/ingest"
	"github.com/voltpath/voltpath/engine/routegraph"
	"github.com/voltpath/voltpath/engine/semantic"
	"github.com/voltpath/voltpath/pkg/ollama"
)

const vectorDims = 768 // nomic-embed-text

func main() {
	var (
		tripsPath  = flag.String("trips", "data/dataset_trips.json", "trip dataset JSON")
		usersPath  = flag.String("users", "data/dataset_users.json", "driver dataset JSON")
		ollamaURL  = flag.String("ollama", "http://localhost:11434", "Ollama base URL")
		embedModel = flag.String("model", "nomic-embed-text", "Ollama embedding model")
		qdrantAddr = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		community  = flag.String("community", "trips_community", "community collection name")
		personal   = flag.String("personal", "drivers_personal", "personal collection name")
		neo4jURL   = flag.String("neo4j", "neo4j://localhost:7687", "Neo4j bolt URL")
		neo4jUser  = flag.String("neo4j-user", "neo4j", "Neo4j username")
		neo4jPass  = flag.String("neo4j-pass", "password", "Neo4j password")
		workers    = flag.Int("workers", 4, "embedding concurrency")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(context.Background(), seedConfig{
		tripsPath:  *tripsPath,
		usersPath:  *usersPath,
		ollamaURL:  *ollamaURL,
		embedModel: *embedModel,
		qdrantAddr: *qdrantAddr,
		community:  *community,
		personal:   *personal,
		neo4jURL:   *neo4jURL,
		neo4jUser:  *neo4jUser,
		neo4jPass:  *neo4jPass,
		workers:    *workers,
	}, logger); err != nil {
		logger.Error("seed failed", "err", err)
		os.Exit(1)
	}
}

type seedConfig struct {
	tripsPath, usersPath            string
	ollamaURL, embedModel           string
	qdrantAddr, community, personal string
	neo4jURL, neo4jUser, neo4jPass  string
	workers                         int
}

func run(ctx context.Context, cfg seedConfig, logger *slog.Logger) error {
	trips, err := loadJSON[[]domain.TripRecord](cfg.tripsPath)
	if err != nil {
		return fmt.Errorf("load trips: %w", err)
	}
	users, err := loadJSON[[]domain.UserProfile](cfg.usersPath)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	logger.Info("datasets loaded", "trips", len(trips), "users", len(users))

	if err := ollama.Ping(ctx, cfg.ollamaURL); err != nil {
		return err
	}
	embedder := ollama.NewEmbedClient(cfg.ollamaURL, cfg.embedModel)

	communityStore, err := semantic.New(cfg.qdrantAddr, cfg.community)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer communityStore.Close()
	personalStore, err := semantic.New(cfg.qdrantAddr, cfg.personal)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer personalStore.Close()

	if err := communityStore.EnsureCollection(ctx, vectorDims); err != nil {
		return fmt.Errorf("ensure %s: %w", cfg.community, err)
	}
	if err := personalStore.EnsureCollection(ctx, vectorDims); err != nil {
		return fmt.Errorf("ensure %s: %w", cfg.personal, err)
	}

	writer := ingest.NewWriter(communityStore, personalStore, embedder, logger)

	start := time.Now()
	if err := writer.WriteTrips(ctx, trips, cfg.workers); err != nil {
		return err
	}
	logger.Info("community index populated", "trips", len(trips), "took", time.Since(start))

	for _, u := range enrichProfiles(users, trips) {
		if err := writer.WriteProfile(ctx, u); err != nil {
			return err
		}
	}
	logger.Info("personal index populated", "users", len(users))

	// Route graph replay is best effort: seeding succeeds without Neo4j.
	driver, err := neo4j.NewDriverWithContext(cfg.neo4jURL, neo4j.BasicAuth(cfg.neo4jUser, cfg.neo4jPass, ""))
	if err != nil || driver.VerifyConnectivity(ctx) != nil {
		logger.Warn("neo4j unavailable, skipping route graph replay", "err", err)
		return nil
	}
	defer driver.Close(ctx)

	graph := routegraph.New(driver)
	replayed := 0
	for _, t := range trips {
		if err := graph.RecordTrip(ctx, t.Origin, t.Destination, t.DistanceKM); err != nil {
			logger.Warn("route graph replay failed", "err", err, "trip", t.ID)
			continue
		}
		replayed++
	}
	logger.Info("route graph replayed", "edges", replayed)
	return nil
}

// enrichProfiles fills the per-user derived fields that the raw driver
// dataset omits: recent trip summaries and, when absent, the average
// efficiency over the user's trips.
func enrichProfiles(users []domain.UserProfile, trips []domain.TripRecord) []domain.UserProfile {
	byUser := make(map[string][]domain.TripRecord)
	for _, t := range trips {
		byUser[t.UserID] = append(byUser[t.UserID], t)
	}

	out := make([]domain.UserProfile, len(users))
	for i, u := range users {
		own := byUser[u.UserID]
		sort.Slice(own, func(a, b int) bool { return own[a].Timestamp.After(own[b].Timestamp) })

		u.TripsAnalyzed = len(own)
		if u.AvgEfficiency == 0 && len(own) > 0 {
			var sum float64
			for _, t := range own {
				sum += t.EfficiencyKWHPer100
			}
			u.AvgEfficiency = sum / float64(len(own))
		}

		recent := own
		if len(recent) > domain.MaxRecentTrips {
			recent = recent[:domain.MaxRecentTrips]
		}
		u.RecentTrips = u.RecentTrips[:0]
		for _, t := range recent {
			u.RecentTrips = append(u.RecentTrips, domain.TripSummary{
				Route:      t.Origin + " → " + t.Destination,
				Efficiency: t.EfficiencyKWHPer100,
				Date:       t.Timestamp.Format("2006-01-02"),
			})
		}
		out[i] = u
	}
	return out
}

func loadJSON[T any](path string) (T, error) {
	var v T
	data, err := os.ReadFile(path)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}
