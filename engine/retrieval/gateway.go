// Package retrieval wraps the community and personal vector indexes behind
// one gateway. It owns the exact-match fast path, the similarity threshold
// filter, the bounded result cache, and the aggregate statistics derived
// from index samples.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voltpath/voltpath/engine/domain"
	"github.com/voltpath/voltpath/engine/semantic"
	"github.com/voltpath/voltpath/pkg/fn"
	"github.com/voltpath/voltpath/pkg/routenlp"
)

// Embedder turns text into a fixed-length vector. Deterministic for
// identical input.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index abstracts one vector collection.
type Index interface {
	Search(ctx context.Context, embedding []float32, k int, filters map[string]string) ([]semantic.Hit, error)
	Scroll(ctx context.Context, limit int, filters map[string]string) ([]semantic.Hit, error)
	Get(ctx context.Context, id string) (semantic.Hit, bool, error)
	Count(ctx context.Context) (int, error)
}

// Options configures gateway behaviour. The threshold and cache size are
// tunables with no correctness property attached to the specific values.
type Options struct {
	// SimilarityThreshold is the maximum dissimilarity kept by semantic
	// community search.
	SimilarityThreshold float32
	// CacheSize bounds the query result cache; 0 disables caching.
	CacheSize int
	// CommunityK and PersonalK are the per-index result counts used by
	// QueryCombined, sized to keep downstream prompts bounded.
	CommunityK int
	PersonalK  int
}

// DefaultOptions returns the tuned production defaults.
func DefaultOptions() Options {
	return Options{
		SimilarityThreshold: 0.3,
		CacheSize:           50,
		CommunityK:          3,
		PersonalK:           2,
	}
}

// Sample bounds for the aggregate endpoints.
const (
	popularRoutesSample = 1000
	globalStatsSample   = 500
)

// Gateway fronts both indexes. Construct once per process and share.
type Gateway struct {
	community Index
	personal  Index
	embed     Embedder
	opts      Options
	cache     *queryCache
	logger    *slog.Logger
}

// NewGateway builds a Gateway and probes both indexes. An unreachable index
// or missing collection fails here, once, instead of on every query.
func NewGateway(ctx context.Context, community, personal Index, embed Embedder, opts Options, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	trips, err := community.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrieval: community index unavailable: %w", err)
	}
	users, err := personal.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrieval: personal index unavailable: %w", err)
	}
	logger.Info("retrieval gateway ready", "community_trips", trips, "personal_users", users)

	return &Gateway{
		community: community,
		personal:  personal,
		embed:     embed,
		opts:      opts,
		cache:     newQueryCache(opts.CacheSize),
		logger:    logger,
	}, nil
}

// QueryCommunity retrieves community evidence for a question. If an
// origin/destination pair can be parsed out of the text, the exact
// metadata-filter path is tried first; any fast-path failure falls back
// silently to semantic search.
func (g *Gateway) QueryCommunity(ctx context.Context, text string, k int) (Result, error) {
	key := cacheKey("community", "", text, k)
	if r, ok := g.cache.get(key); ok {
		return r, nil
	}

	if route, ok := routenlp.ExtractRoute(text); ok {
		hits, err := g.exactTripHits(ctx, route.Origin, route.Destination, k)
		if err != nil {
			g.logger.Warn("exact-match path failed, falling back to semantic", "err", err)
		} else if len(hits) > 0 {
			r := resultFromHits(hits)
			g.cache.put(key, r)
			return r, nil
		}
	}

	r, err := g.semanticCommunity(ctx, text, k)
	if err != nil {
		return Result{}, err
	}
	g.cache.put(key, r)
	return r, nil
}

// semanticCommunity over-fetches 2k candidates, keeps those within the
// dissimilarity threshold, and truncates to k. If the threshold empties the
// result it falls back to the unfiltered top-k.
func (g *Gateway) semanticCommunity(ctx context.Context, text string, k int) (Result, error) {
	vec, err := g.embed.Embed(ctx, text)
	if err != nil {
		return Result{}, fmt.Errorf("retrieval: embed query: %w", err)
	}
	hits, err := g.community.Search(ctx, vec, 2*k, nil)
	if err != nil {
		return Result{}, fmt.Errorf("retrieval: community search: %w", err)
	}

	kept := make([]semantic.Hit, 0, k)
	for _, h := range hits {
		if h.Distance <= g.opts.SimilarityThreshold {
			kept = append(kept, h)
			if len(kept) == k {
				break
			}
		}
	}
	if len(kept) == 0 {
		if len(hits) > k {
			hits = hits[:k]
		}
		kept = hits
	}
	return resultFromHits(kept), nil
}

// QueryPersonal retrieves the user's own evidence. A user with no indexed
// trips yields an empty Result, not an error.
func (g *Gateway) QueryPersonal(ctx context.Context, userID, text string, k int) (Result, error) {
	key := cacheKey("personal", userID, text, k)
	if r, ok := g.cache.get(key); ok {
		return r, nil
	}

	vec, err := g.embed.Embed(ctx, text)
	if err != nil {
		return Result{}, fmt.Errorf("retrieval: embed query: %w", err)
	}
	hits, err := g.personal.Search(ctx, vec, k, map[string]string{"user_id": userID})
	if err != nil {
		return Result{}, fmt.Errorf("retrieval: personal search: %w", err)
	}

	r := resultFromHits(hits)
	g.cache.put(key, r)
	return r, nil
}

// QueryCombined runs both index lookups concurrently; there is no ordering
// dependency between them.
func (g *Gateway) QueryCombined(ctx context.Context, userID, text string) (Combined, error) {
	type outcome struct {
		r   Result
		err error
	}
	results := fn.FanOut(
		func() outcome {
			r, err := g.QueryCommunity(ctx, text, g.opts.CommunityK)
			return outcome{r, err}
		},
		func() outcome {
			r, err := g.QueryPersonal(ctx, userID, text, g.opts.PersonalK)
			return outcome{r, err}
		},
	)
	for _, o := range results {
		if o.err != nil {
			return Combined{}, o.err
		}
	}
	return Combined{Community: results[0].r, Personal: results[1].r}, nil
}

// FindExactTrips returns up to k trips whose stored origin/destination match
// the given pair, in index-encounter order. The metadata-filter path is
// preferred; if it fails, the semantic path with case-insensitive metadata
// comparison takes over and the filter error is never surfaced.
func (g *Gateway) FindExactTrips(ctx context.Context, origin, destination string, k int) ([]domain.TripRecord, error) {
	hits, err := g.exactTripHits(ctx, origin, destination, k)
	if err != nil {
		g.logger.Warn("metadata filter query failed, using semantic fallback", "err", err)
		hits, err = g.semanticTripFallback(ctx, origin, destination, k)
		if err != nil {
			return nil, err
		}
	}
	trips := make([]domain.TripRecord, len(hits))
	for i, h := range hits {
		trips[i] = domain.TripFromPayload(h.Payload)
	}
	return trips, nil
}

// exactTripHits is the metadata equality filter path. No embedding involved.
func (g *Gateway) exactTripHits(ctx context.Context, origin, destination string, k int) ([]semantic.Hit, error) {
	return g.community.Scroll(ctx, k, map[string]string{
		"origin":      origin,
		"destination": destination,
	})
}

// semanticTripFallback searches for "trip from X to Y" and keeps hits whose
// metadata matches the pair case-insensitively.
func (g *Gateway) semanticTripFallback(ctx context.Context, origin, destination string, k int) ([]semantic.Hit, error) {
	vec, err := g.embed.Embed(ctx, fmt.Sprintf("trip from %s to %s", origin, destination))
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed route query: %w", err)
	}
	hits, err := g.community.Search(ctx, vec, 2*k, nil)
	if err != nil {
		return nil, fmt.Errorf("retrieval: route search: %w", err)
	}
	matched := make([]semantic.Hit, 0, k)
	for _, h := range hits {
		t := domain.TripFromPayload(h.Payload)
		if strings.EqualFold(t.Origin, origin) && strings.EqualFold(t.Destination, destination) {
			matched = append(matched, h)
			if len(matched) == k {
				break
			}
		}
	}
	return matched, nil
}

// GetUserProfile looks up the single profile record for a user. A missing
// profile returns (nil, nil).
func (g *Gateway) GetUserProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	id := semantic.DeterministicID(domain.ProfileID(userID))
	hit, found, err := g.personal.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("retrieval: get profile %s: %w", userID, err)
	}
	if !found {
		return nil, nil
	}
	profile := domain.ProfileFromPayload(hit.Payload)
	return &profile, nil
}

func cacheKey(index, userID, text string, k int) string {
	if userID == "" {
		return fmt.Sprintf("%s|%s|%d", index, text, k)
	}
	return fmt.Sprintf("%s|%s|%s|%d", index, userID, text, k)
}
