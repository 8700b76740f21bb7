// Package ingest writes trips and profiles into the vector indexes. It is
// used by the one-shot seed step and by the queue consumer that indexes
// submitted trips; the query path never writes.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/voltpath/voltpath/engine/domain"
	"github.com/voltpath/voltpath/engine/retrieval"
	"github.com/voltpath/voltpath/engine/semantic"
	"github.com/voltpath/voltpath/pkg/fn"
)

// Upserter is the write surface of one vector collection.
type Upserter interface {
	Upsert(ctx context.Context, records []semantic.VectorRecord) error
}

// Writer embeds documents and upserts them into the right index.
type Writer struct {
	community Upserter
	personal  Upserter
	embed     retrieval.Embedder
	logger    *slog.Logger
}

// NewWriter creates a Writer.
func NewWriter(community, personal Upserter, embed retrieval.Embedder, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{community: community, personal: personal, embed: embed, logger: logger}
}

// WriteTrip indexes a single trip into the community index. The point ID is
// derived from the trip ID, so re-submitting a trip supersedes the earlier
// record instead of duplicating it.
func (w *Writer) WriteTrip(ctx context.Context, t domain.TripRecord) error {
	doc := RenderTripDocument(t)
	vec, err := w.embed.Embed(ctx, doc)
	if err != nil {
		return fmt.Errorf("ingest: embed trip %s: %w", t.ID, err)
	}
	rec := semantic.VectorRecord{
		ID:        semantic.DeterministicID(t.ID),
		Document:  doc,
		Embedding: vec,
		Payload:   t.Payload(),
	}
	if err := w.community.Upsert(ctx, []semantic.VectorRecord{rec}); err != nil {
		return fmt.Errorf("ingest: upsert trip %s: %w", t.ID, err)
	}
	return nil
}

// WriteTrips indexes a batch with bounded embedding concurrency, then a
// single upsert. Returns the first embedding error, if any.
func (w *Writer) WriteTrips(ctx context.Context, trips []domain.TripRecord, workers int) error {
	type embedded struct {
		rec semantic.VectorRecord
		err error
	}
	results := fn.ParMap(trips, workers, func(t domain.TripRecord) embedded {
		doc := RenderTripDocument(t)
		vec, err := w.embed.Embed(ctx, doc)
		if err != nil {
			return embedded{err: fmt.Errorf("ingest: embed trip %s: %w", t.ID, err)}
		}
		return embedded{rec: semantic.VectorRecord{
			ID:        semantic.DeterministicID(t.ID),
			Document:  doc,
			Embedding: vec,
			Payload:   t.Payload(),
		}}
	})

	records := make([]semantic.VectorRecord, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			return r.err
		}
		records = append(records, r.rec)
	}
	if err := w.community.Upsert(ctx, records); err != nil {
		return fmt.Errorf("ingest: upsert %d trips: %w", len(records), err)
	}
	w.logger.Info("trips indexed", "count", len(records))
	return nil
}

// WriteProfile replaces a user's profile in the personal index. The point
// ID is derived from profile_<user_id>, which is what guarantees at most
// one live profile per user.
func (w *Writer) WriteProfile(ctx context.Context, u domain.UserProfile) error {
	doc := RenderProfileDocument(u)
	vec, err := w.embed.Embed(ctx, doc)
	if err != nil {
		return fmt.Errorf("ingest: embed profile %s: %w", u.UserID, err)
	}
	rec := semantic.VectorRecord{
		ID:        semantic.DeterministicID(domain.ProfileID(u.UserID)),
		Document:  doc,
		Embedding: vec,
		Payload:   u.Payload(),
	}
	if err := w.personal.Upsert(ctx, []semantic.VectorRecord{rec}); err != nil {
		return fmt.Errorf("ingest: upsert profile %s: %w", u.UserID, err)
	}
	return nil
}
