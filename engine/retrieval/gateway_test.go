package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/voltpath/voltpath/engine/domain"
	"github.com/voltpath/voltpath/engine/semantic"
)

// fakeEmbedder returns a fixed vector and counts calls.
type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

// fakeIndex serves canned hits and records the filters it saw.
type fakeIndex struct {
	searchHits  []semantic.Hit
	scrollHits  []semantic.Hit
	getHit      semantic.Hit
	getFound    bool
	count       int
	searchErr   error
	scrollErr   error
	countErr    error
	lastFilters map[string]string
	searchCalls int
	scrollCalls int
}

func (f *fakeIndex) Search(_ context.Context, _ []float32, k int, filters map[string]string) ([]semantic.Hit, error) {
	f.searchCalls++
	f.lastFilters = filters
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if len(f.searchHits) > k {
		return f.searchHits[:k], nil
	}
	return f.searchHits, nil
}

func (f *fakeIndex) Scroll(_ context.Context, limit int, filters map[string]string) ([]semantic.Hit, error) {
	f.scrollCalls++
	f.lastFilters = filters
	if f.scrollErr != nil {
		return nil, f.scrollErr
	}
	if len(f.scrollHits) > limit {
		return f.scrollHits[:limit], nil
	}
	return f.scrollHits, nil
}

func (f *fakeIndex) Get(_ context.Context, _ string) (semantic.Hit, bool, error) {
	return f.getHit, f.getFound, nil
}

func (f *fakeIndex) Count(_ context.Context) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.count, nil
}

func tripHit(id, origin, destination string, efficiency float64, distance float32) semantic.Hit {
	t := domain.TripRecord{
		ID: id, UserID: "user_001",
		Origin: origin, Destination: destination,
		DistanceKM: 150, EnergyKWH: efficiency * 1.5,
		EfficiencyKWHPer100: efficiency,
		Weather:             "clear", Traffic: "moderate",
	}
	return semantic.Hit{
		ID:       id,
		Distance: distance,
		Document: fmt.Sprintf("Trip from %s to %s.", origin, destination),
		Payload:  t.Payload(),
	}
}

func newTestGateway(t *testing.T, community, personal *fakeIndex, embed Embedder) *Gateway {
	t.Helper()
	g, err := NewGateway(context.Background(), community, personal, embed, DefaultOptions(), slog.Default())
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	return g
}

func TestNewGatewayFailsWhenIndexUnavailable(t *testing.T) {
	bad := &fakeIndex{countErr: errors.New("collection missing")}
	ok := &fakeIndex{count: 10}
	if _, err := NewGateway(context.Background(), bad, ok, &fakeEmbedder{}, DefaultOptions(), nil); err == nil {
		t.Fatal("expected startup failure for unavailable community index")
	}
	if _, err := NewGateway(context.Background(), ok, bad, &fakeEmbedder{}, DefaultOptions(), nil); err == nil {
		t.Fatal("expected startup failure for unavailable personal index")
	}
}

func TestQueryCommunityThresholdFilter(t *testing.T) {
	community := &fakeIndex{
		count: 3,
		searchHits: []semantic.Hit{
			tripHit("t1", "Mumbai", "Pune", 14, 0.10),
			tripHit("t2", "Mumbai", "Pune", 15, 0.25),
			tripHit("t3", "Thane", "Nashik", 16, 0.55), // beyond threshold
		},
	}
	g := newTestGateway(t, community, &fakeIndex{count: 1}, &fakeEmbedder{})

	r, err := g.QueryCommunity(context.Background(), "typical efficiency on highways", 3)
	if err != nil {
		t.Fatal(err)
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 hits within threshold, got %d", r.Len())
	}
	for _, d := range r.Distances {
		if d > 0.3 {
			t.Fatalf("distance %g exceeds threshold", d)
		}
	}
}

// When the threshold filters out everything, the unfiltered top-k is
// returned rather than an empty result.
func TestQueryCommunityThresholdFallback(t *testing.T) {
	community := &fakeIndex{
		count: 2,
		searchHits: []semantic.Hit{
			tripHit("t1", "Mumbai", "Pune", 14, 0.8),
			tripHit("t2", "Mumbai", "Pune", 15, 0.9),
		},
	}
	g := newTestGateway(t, community, &fakeIndex{count: 1}, &fakeEmbedder{})

	r, err := g.QueryCommunity(context.Background(), "unrelated question", 2)
	if err != nil {
		t.Fatal(err)
	}
	if r.Len() != 2 {
		t.Fatalf("expected unfiltered top-k fallback, got %d hits", r.Len())
	}
}

func TestQueryCommunityAlignment(t *testing.T) {
	community := &fakeIndex{
		count: 2,
		searchHits: []semantic.Hit{
			tripHit("t1", "Mumbai", "Pune", 14, 0.1),
			tripHit("t2", "Pune", "Mumbai", 15, 0.2),
		},
	}
	g := newTestGateway(t, community, &fakeIndex{count: 1}, &fakeEmbedder{})

	r, err := g.QueryCommunity(context.Background(), "efficiency question", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Documents) != len(r.Metadata) || len(r.Metadata) != len(r.Distances) {
		t.Fatalf("result slices misaligned: %d/%d/%d",
			len(r.Documents), len(r.Metadata), len(r.Distances))
	}
}

// A repeated identical query is served from cache without touching the
// embedder or the index again.
func TestQueryCommunityCacheHit(t *testing.T) {
	community := &fakeIndex{
		count:      1,
		searchHits: []semantic.Hit{tripHit("t1", "Mumbai", "Pune", 14, 0.1)},
	}
	embed := &fakeEmbedder{}
	g := newTestGateway(t, community, &fakeIndex{count: 1}, embed)

	first, err := g.QueryCommunity(context.Background(), "best efficiency route", 3)
	if err != nil {
		t.Fatal(err)
	}
	embedsAfterFirst := embed.calls
	searchesAfterFirst := community.searchCalls

	second, err := g.QueryCommunity(context.Background(), "best efficiency route", 3)
	if err != nil {
		t.Fatal(err)
	}
	if embed.calls != embedsAfterFirst || community.searchCalls != searchesAfterFirst {
		t.Fatal("cache hit should not re-embed or re-search")
	}
	if len(second.Documents) != len(first.Documents) || second.Documents[0] != first.Documents[0] {
		t.Fatalf("cached result differs: %+v vs %+v", first, second)
	}
}

// A question with a parseable route takes the exact-match path: no
// embedding, a metadata-filtered scroll instead.
func TestQueryCommunityExactFastPath(t *testing.T) {
	community := &fakeIndex{
		count:      1,
		scrollHits: []semantic.Hit{tripHit("t1", "Mumbai", "Pune", 14, 0)},
	}
	embed := &fakeEmbedder{}
	g := newTestGateway(t, community, &fakeIndex{count: 1}, embed)

	r, err := g.QueryCommunity(context.Background(), "how much energy from mumbai to pune", 3)
	if err != nil {
		t.Fatal(err)
	}
	if r.Empty() {
		t.Fatal("expected fast-path hits")
	}
	if embed.calls != 0 {
		t.Fatalf("fast path must not embed, saw %d calls", embed.calls)
	}
	if community.lastFilters["origin"] != "Mumbai" || community.lastFilters["destination"] != "Pune" {
		t.Fatalf("unexpected filters: %v", community.lastFilters)
	}
}

// A failing fast path falls back to semantic search and surfaces no error.
func TestQueryCommunityFastPathFallsBack(t *testing.T) {
	community := &fakeIndex{
		count:      1,
		scrollErr:  errors.New("filter index missing"),
		searchHits: []semantic.Hit{tripHit("t1", "Mumbai", "Pune", 14, 0.1)},
	}
	g := newTestGateway(t, community, &fakeIndex{count: 1}, &fakeEmbedder{})

	r, err := g.QueryCommunity(context.Background(), "from mumbai to pune cost", 3)
	if err != nil {
		t.Fatalf("fallback should swallow the fast-path error, got %v", err)
	}
	if r.Empty() {
		t.Fatal("expected semantic fallback hits")
	}
}

func TestQueryPersonalFiltersOnUser(t *testing.T) {
	personal := &fakeIndex{
		count:      1,
		searchHits: []semantic.Hit{tripHit("p1", "Mumbai", "Pune", 13, 0.2)},
	}
	g := newTestGateway(t, &fakeIndex{count: 1}, personal, &fakeEmbedder{})

	if _, err := g.QueryPersonal(context.Background(), "user_042", "my efficiency", 2); err != nil {
		t.Fatal(err)
	}
	if personal.lastFilters["user_id"] != "user_042" {
		t.Fatalf("expected user_id filter, got %v", personal.lastFilters)
	}
}

func TestQueryPersonalEmptyIsNotError(t *testing.T) {
	g := newTestGateway(t, &fakeIndex{count: 1}, &fakeIndex{count: 0}, &fakeEmbedder{})

	r, err := g.QueryPersonal(context.Background(), "new_user", "my trips", 2)
	if err != nil {
		t.Fatalf("empty personal history must not error: %v", err)
	}
	if !r.Empty() {
		t.Fatalf("expected empty result, got %d hits", r.Len())
	}
}

func TestQueryCombined(t *testing.T) {
	community := &fakeIndex{
		count:      1,
		searchHits: []semantic.Hit{tripHit("t1", "Mumbai", "Pune", 14, 0.1)},
	}
	personal := &fakeIndex{
		count:      1,
		searchHits: []semantic.Hit{tripHit("p1", "Mumbai", "Thane", 13, 0.2)},
	}
	g := newTestGateway(t, community, personal, &fakeEmbedder{})

	ev, err := g.QueryCombined(context.Background(), "user_001", "typical energy use")
	if err != nil {
		t.Fatal(err)
	}
	if ev.Community.Empty() || ev.Personal.Empty() {
		t.Fatalf("expected evidence from both indexes: %+v", ev)
	}
}

func TestQueryCombinedPropagatesError(t *testing.T) {
	community := &fakeIndex{count: 1, searchErr: errors.New("index down")}
	personal := &fakeIndex{count: 1}
	g := newTestGateway(t, community, personal, &fakeEmbedder{})

	if _, err := g.QueryCombined(context.Background(), "user_001", "anything"); err == nil {
		t.Fatal("expected error from failing community search")
	}
}

func TestFindExactTrips(t *testing.T) {
	community := &fakeIndex{
		count: 3,
		scrollHits: []semantic.Hit{
			tripHit("t1", "Mumbai", "Pune", 14, 0),
			tripHit("t2", "Mumbai", "Pune", 15, 0),
		},
	}
	g := newTestGateway(t, community, &fakeIndex{count: 1}, &fakeEmbedder{})

	trips, err := g.FindExactTrips(context.Background(), "Mumbai", "Pune", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(trips) != 2 {
		t.Fatalf("expected 2 trips, got %d", len(trips))
	}
	if trips[0].ID != "t1" || trips[1].ID != "t2" {
		t.Fatalf("encounter order not preserved: %+v", trips)
	}
}

func TestFindExactTripsRespectsK(t *testing.T) {
	var hits []semantic.Hit
	for i := 0; i < 10; i++ {
		hits = append(hits, tripHit(fmt.Sprintf("t%d", i), "Mumbai", "Pune", 14, 0))
	}
	community := &fakeIndex{count: 10, scrollHits: hits}
	g := newTestGateway(t, community, &fakeIndex{count: 1}, &fakeEmbedder{})

	trips, err := g.FindExactTrips(context.Background(), "Mumbai", "Pune", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(trips) != 3 {
		t.Fatalf("expected k=3 trips, got %d", len(trips))
	}
}

// When the filter path fails, the semantic fallback matches metadata
// case-insensitively and never surfaces the filter error.
func TestFindExactTripsSemanticFallback(t *testing.T) {
	community := &fakeIndex{
		count:     2,
		scrollErr: errors.New("payload index missing"),
		searchHits: []semantic.Hit{
			tripHit("t1", "MUMBAI", "pune", 14, 0.1),
			tripHit("t2", "Thane", "Nashik", 15, 0.2),
		},
	}
	g := newTestGateway(t, community, &fakeIndex{count: 1}, &fakeEmbedder{})

	trips, err := g.FindExactTrips(context.Background(), "Mumbai", "Pune", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(trips) != 1 || trips[0].ID != "t1" {
		t.Fatalf("expected case-insensitive match on t1, got %+v", trips)
	}
}

func TestGetUserProfile(t *testing.T) {
	profile := domain.UserProfile{UserID: "user_007", EVModel: "Nexon EV", AvgEfficiency: 14.2}
	personal := &fakeIndex{
		count:    1,
		getFound: true,
		getHit:   semantic.Hit{ID: "x", Payload: profile.Payload()},
	}
	g := newTestGateway(t, &fakeIndex{count: 1}, personal, &fakeEmbedder{})

	got, err := g.GetUserProfile(context.Background(), "user_007")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.UserID != "user_007" || got.AvgEfficiency != 14.2 {
		t.Fatalf("unexpected profile: %+v", got)
	}
}

func TestGetUserProfileMissing(t *testing.T) {
	g := newTestGateway(t, &fakeIndex{count: 1}, &fakeIndex{count: 1}, &fakeEmbedder{})

	got, err := g.GetUserProfile(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("missing profile must not error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil profile, got %+v", got)
	}
}
