// Command ingest consumes submitted trips from NATS and indexes them into
// Qdrant and the Neo4j route graph. It runs as a queue-group consumer, so
// multiple instances share the subject without duplicating work.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/voltpath/voltpath/engine/domain"
	"github.com/voltpath/voltpath/engine/ingest"
	"github.com/voltpath/voltpath/engine/routegraph"
	"github.com/voltpath/voltpath/engine/semantic"
	"github.com/voltpath/voltpath/pkg/metrics"
	"github.com/voltpath/voltpath/pkg/natsutil"
	"github.com/voltpath/voltpath/pkg/ollama"
)

var met = metrics.New()

var (
	mTripsIndexed = met.Counter("voltpath_ingest_trips_indexed_total", "Trips written to the community index")
	mTripsDropped = met.Counter("voltpath_ingest_trips_dropped_total", "Trips rejected by validation")
	mGraphWrites  = met.Counter("voltpath_ingest_graph_writes_total", "Route graph edge updates")
	mGraphErrors  = met.Counter("voltpath_ingest_graph_errors_total", "Route graph write failures")
	mIndexDur     = met.Histogram("voltpath_ingest_index_duration_seconds", "Embed plus upsert time per trip", nil)
)

const vectorDims = 768 // nomic-embed-text

func main() {
	var (
		natsURL     = flag.String("nats", nats.DefaultURL, "NATS server URL")
		subject     = flag.String("subject", "voltpath.trips", "trip submission subject")
		queue       = flag.String("queue", "voltpath-ingest", "NATS queue group")
		ollamaURL   = flag.String("ollama", "http://localhost:11434", "Ollama base URL")
		embedModel  = flag.String("model", "nomic-embed-text", "Ollama embedding model")
		qdrantAddr  = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		community   = flag.String("community", "trips_community", "community collection name")
		neo4jURL    = flag.String("neo4j", "neo4j://localhost:7687", "Neo4j bolt URL")
		neo4jUser   = flag.String("neo4j-user", "neo4j", "Neo4j username")
		neo4jPass   = flag.String("neo4j-pass", "password", "Neo4j password")
		metricsPort = flag.Int("metrics-port", 9091, "metrics listen port")
	)
	flag.Parse()

	met.CollectRuntime("voltpath_ingest", 15*time.Second)
	met.ServeAsync(*metricsPort)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	vs, err := semantic.New(*qdrantAddr, *community)
	if err != nil {
		logger.Error("qdrant connect failed", "err", err)
		os.Exit(1)
	}
	defer vs.Close()
	if err := vs.EnsureCollection(ctx, vectorDims); err != nil {
		logger.Error("qdrant ensure collection failed", "err", err)
		os.Exit(1)
	}
	logger.Info("connected to Qdrant", "collection", *community)

	embedder := ollama.NewEmbedClient(*ollamaURL, *embedModel)
	writer := ingest.NewWriter(vs, nil, embedder, logger)

	// Route graph is best effort: a dead Neo4j never blocks indexing.
	var graph *routegraph.Store
	driver, err := neo4j.NewDriverWithContext(*neo4jURL, neo4j.BasicAuth(*neo4jUser, *neo4jPass, ""))
	if err == nil && driver.VerifyConnectivity(ctx) == nil {
		graph = routegraph.New(driver)
		defer driver.Close(ctx)
		logger.Info("connected to Neo4j")
	} else {
		logger.Warn("neo4j unavailable, route graph updates disabled", "err", err)
	}

	nc, err := nats.Connect(*natsURL)
	if err != nil {
		logger.Error("nats connect failed", "err", err)
		os.Exit(1)
	}
	defer nc.Close()

	sub, err := natsutil.QueueSubscribe(nc, *subject, *queue, func(msgCtx context.Context, trip domain.TripRecord) {
		if err := domain.ValidateTrip(trip); err != nil {
			mTripsDropped.Inc()
			logger.Warn("dropping invalid trip", "err", err, "trip", trip.ID)
			return
		}

		start := time.Now()
		if err := writer.WriteTrip(msgCtx, trip); err != nil {
			logger.Error("trip indexing failed", "err", err, "trip", trip.ID)
			return
		}
		mTripsIndexed.Inc()
		mIndexDur.Since(start)

		if graph != nil {
			if err := graph.RecordTrip(msgCtx, trip.Origin, trip.Destination, trip.DistanceKM); err != nil {
				mGraphErrors.Inc()
				logger.Warn("route graph update failed", "err", err, "trip", trip.ID)
			} else {
				mGraphWrites.Inc()
			}
		}
	})
	if err != nil {
		logger.Error("subscribe failed", "err", err)
		os.Exit(1)
	}
	defer sub.Unsubscribe()

	logger.Info("ingest consumer running", "subject", *subject, "queue", *queue)
	<-ctx.Done()
	logger.Info("shutting down")
}
