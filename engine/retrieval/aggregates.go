package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/voltpath/voltpath/engine/domain"
)

// GetPopularRoutes aggregates a bounded sample of the community index into
// per-route statistics, sorted by descending trip count. Ties keep their
// first-seen order.
func (g *Gateway) GetPopularRoutes(ctx context.Context, limit int) ([]domain.RouteStats, error) {
	hits, err := g.community.Scroll(ctx, popularRoutesSample, nil)
	if err != nil {
		return nil, fmt.Errorf("retrieval: sample community index: %w", err)
	}

	type acc struct {
		stats         domain.RouteStats
		sumDistance   float64
		sumEfficiency float64
	}
	byRoute := make(map[string]*acc)
	var order []string // first-seen order for the stable tie-break

	for _, h := range hits {
		t := domain.TripFromPayload(h.Payload)
		key := t.Origin + " → " + t.Destination
		a, ok := byRoute[key]
		if !ok {
			a = &acc{stats: domain.RouteStats{
				Route:       key,
				Origin:      t.Origin,
				Destination: t.Destination,
			}}
			byRoute[key] = a
			order = append(order, key)
		}
		a.stats.Count++
		a.sumDistance += t.DistanceKM
		a.sumEfficiency += t.EfficiencyKWHPer100
	}

	routes := make([]domain.RouteStats, 0, len(order))
	for _, key := range order {
		a := byRoute[key]
		n := float64(a.stats.Count)
		a.stats.AvgDistance = round1(a.sumDistance / n)
		a.stats.AvgEfficiency = round2(a.sumEfficiency / n)
		routes = append(routes, a.stats)
	}

	sort.SliceStable(routes, func(i, j int) bool {
		return routes[i].Count > routes[j].Count
	})
	if len(routes) > limit {
		routes = routes[:limit]
	}
	return routes, nil
}

// GetGlobalStats aggregates a bounded sample of the community index. See
// domain.GlobalStats for the inverted MostEfficient/LeastEfficient naming.
func (g *Gateway) GetGlobalStats(ctx context.Context) (domain.GlobalStats, error) {
	totalTrips, err := g.community.Count(ctx)
	if err != nil {
		return domain.GlobalStats{}, fmt.Errorf("retrieval: count community index: %w", err)
	}
	totalUsers, err := g.personal.Count(ctx)
	if err != nil {
		return domain.GlobalStats{}, fmt.Errorf("retrieval: count personal index: %w", err)
	}

	hits, err := g.community.Scroll(ctx, globalStatsSample, nil)
	if err != nil {
		return domain.GlobalStats{}, fmt.Errorf("retrieval: sample community index: %w", err)
	}
	if len(hits) == 0 {
		return domain.GlobalStats{TotalTrips: totalTrips, TotalUsers: totalUsers}, nil
	}

	var sumEff, sumDist float64
	minEff, maxEff := math.Inf(1), math.Inf(-1)
	for _, h := range hits {
		t := domain.TripFromPayload(h.Payload)
		sumEff += t.EfficiencyKWHPer100
		sumDist += t.DistanceKM
		minEff = math.Min(minEff, t.EfficiencyKWHPer100)
		maxEff = math.Max(maxEff, t.EfficiencyKWHPer100)
	}

	n := float64(len(hits))
	return domain.GlobalStats{
		TotalTrips:     totalTrips,
		TotalUsers:     totalUsers,
		AvgEfficiency:  round2(sumEff / n),
		AvgDistance:    round1(sumDist / n),
		MostEfficient:  round2(minEff),
		LeastEfficient: round2(maxEff),
	}, nil
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
