package retrieval

import (
	"context"
	"fmt"
	"testing"

	"github.com/voltpath/voltpath/engine/semantic"
)

func routeSample() []semantic.Hit {
	var hits []semantic.Hit
	add := func(origin, destination string, n int, efficiency float64) {
		for i := 0; i < n; i++ {
			hits = append(hits, tripHit(fmt.Sprintf("%s-%s-%d", origin, destination, i), origin, destination, efficiency, 0))
		}
	}
	add("Mumbai", "Pune", 5, 14)
	add("Pune", "Mumbai", 3, 15)
	add("Thane", "Nashik", 3, 16)
	return hits
}

func TestGetPopularRoutesOrdering(t *testing.T) {
	community := &fakeIndex{count: 11, scrollHits: routeSample()}
	g := newTestGateway(t, community, &fakeIndex{count: 1}, &fakeEmbedder{})

	routes, err := g.GetPopularRoutes(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(routes) != 3 {
		t.Fatalf("expected 3 routes, got %d", len(routes))
	}
	if routes[0].Route != "Mumbai → Pune" || routes[0].Count != 5 {
		t.Fatalf("expected Mumbai → Pune first with count 5, got %+v", routes[0])
	}
	// The two count-3 routes tie; first-seen order breaks the tie.
	if routes[1].Route != "Pune → Mumbai" || routes[2].Route != "Thane → Nashik" {
		t.Fatalf("tie not broken by first-seen order: %+v", routes[1:])
	}
}

func TestGetPopularRoutesLimit(t *testing.T) {
	community := &fakeIndex{count: 11, scrollHits: routeSample()}
	g := newTestGateway(t, community, &fakeIndex{count: 1}, &fakeEmbedder{})

	routes, err := g.GetPopularRoutes(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(routes) != 2 {
		t.Fatalf("expected limit 2, got %d", len(routes))
	}
}

func TestGetPopularRoutesAverages(t *testing.T) {
	community := &fakeIndex{count: 2, scrollHits: []semantic.Hit{
		tripHit("a", "Mumbai", "Pune", 14, 0),
		tripHit("b", "Mumbai", "Pune", 15, 0),
	}}
	g := newTestGateway(t, community, &fakeIndex{count: 1}, &fakeEmbedder{})

	routes, err := g.GetPopularRoutes(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if routes[0].AvgEfficiency != 14.5 {
		t.Fatalf("expected avg efficiency 14.5, got %g", routes[0].AvgEfficiency)
	}
	if routes[0].AvgDistance != 150 {
		t.Fatalf("expected avg distance 150, got %g", routes[0].AvgDistance)
	}
}

// MostEfficient carries the minimum kWh/100km and LeastEfficient the
// maximum. Lower consumption is better, hence the inversion.
func TestGetGlobalStatsInvertedNaming(t *testing.T) {
	community := &fakeIndex{count: 3, scrollHits: []semantic.Hit{
		tripHit("a", "Mumbai", "Pune", 12, 0),
		tripHit("b", "Pune", "Mumbai", 15, 0),
		tripHit("c", "Thane", "Nashik", 18, 0),
	}}
	g := newTestGateway(t, community, &fakeIndex{count: 7}, &fakeEmbedder{})

	stats, err := g.GetGlobalStats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalTrips != 3 || stats.TotalUsers != 7 {
		t.Fatalf("unexpected totals: %+v", stats)
	}
	if stats.AvgEfficiency != 15 {
		t.Fatalf("expected avg 15, got %g", stats.AvgEfficiency)
	}
	if stats.MostEfficient != 12 {
		t.Fatalf("MostEfficient must hold the minimum, got %g", stats.MostEfficient)
	}
	if stats.LeastEfficient != 18 {
		t.Fatalf("LeastEfficient must hold the maximum, got %g", stats.LeastEfficient)
	}
}

func TestGetGlobalStatsEmptyIndex(t *testing.T) {
	g := newTestGateway(t, &fakeIndex{count: 0}, &fakeIndex{count: 0}, &fakeEmbedder{})

	stats, err := g.GetGlobalStats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalTrips != 0 || stats.AvgEfficiency != 0 {
		t.Fatalf("expected zero stats for empty index, got %+v", stats)
	}
}
