// Package routegraph maintains a Neo4j graph of places and travelled routes.
// It is supporting context only: route_planning prompts are enriched with a
// short summary of the route network, and every read failure is logged and
// skipped by the caller, never surfaced to the user.
package routegraph

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Store provides route-graph operations.
type Store struct {
	driver neo4j.DriverWithContext
}

// New creates a Store.
func New(driver neo4j.DriverWithContext) *Store {
	return &Store{driver: driver}
}

// RecordTrip upserts both places and bumps the TRAVELLED edge counters.
func (s *Store) RecordTrip(ctx context.Context, origin, destination string, distanceKM float64) error {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MERGE (a:Place {name: $origin})
MERGE (b:Place {name: $destination})
MERGE (a)-[r:TRAVELLED]->(b)
ON CREATE SET r.count = 0, r.total_km = 0.0
SET r.count = r.count + 1, r.total_km = r.total_km + $km`
	_, err := sess.Run(ctx, cypher, map[string]any{
		"origin":      origin,
		"destination": destination,
		"km":          distanceKM,
	})
	if err != nil {
		return fmt.Errorf("routegraph: record trip %s->%s: %w", origin, destination, err)
	}
	return nil
}

// RouteContext returns a one-paragraph summary of what the graph knows
// about a route: how often it was travelled, the average distance, and
// other destinations reachable from the origin. Returns "" when the graph
// has nothing on this route.
func (s *Store) RouteContext(ctx context.Context, origin, destination string) (string, error) {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MATCH (a:Place {name: $origin})
OPTIONAL MATCH (a)-[r:TRAVELLED]->(b:Place {name: $destination})
OPTIONAL MATCH (a)-[o:TRAVELLED]->(n:Place)
WHERE n.name <> $destination
WITH r, n.name AS other, o.count AS oc
ORDER BY oc DESC
RETURN r.count AS count, r.total_km AS total_km, collect(other)[0..3] AS neighbours`
	result, err := sess.Run(ctx, cypher, map[string]any{
		"origin":      origin,
		"destination": destination,
	})
	if err != nil {
		return "", fmt.Errorf("routegraph: route context %s->%s: %w", origin, destination, err)
	}
	if !result.Next(ctx) {
		return "", nil
	}
	rec := result.Record()

	var b strings.Builder
	if count, ok := asInt(rec, "count"); ok && count > 0 {
		totalKM, _ := asFloat(rec, "total_km")
		fmt.Fprintf(&b, "%s to %s travelled %d times, avg %.0f km.", origin, destination, count, totalKM/float64(count))
	}
	if raw, ok := rec.Get("neighbours"); ok {
		if list, ok := raw.([]any); ok && len(list) > 0 {
			names := make([]string, 0, len(list))
			for _, item := range list {
				if name, ok := item.(string); ok && name != "" {
					names = append(names, name)
				}
			}
			if len(names) > 0 {
				if b.Len() > 0 {
					b.WriteString(" ")
				}
				fmt.Fprintf(&b, "Other common destinations from %s: %s.", origin, strings.Join(names, ", "))
			}
		}
	}
	return b.String(), nil
}

func asInt(rec *neo4j.Record, key string) (int64, bool) {
	raw, ok := rec.Get(key)
	if !ok || raw == nil {
		return 0, false
	}
	v, ok := raw.(int64)
	return v, ok
}

func asFloat(rec *neo4j.Record, key string) (float64, bool) {
	raw, ok := rec.Get(key)
	if !ok || raw == nil {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	}
	return 0, false
}
