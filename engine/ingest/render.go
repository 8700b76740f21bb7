package ingest

import (
	"fmt"
	"strings"

	"github.com/voltpath/voltpath/engine/domain"
)

// RenderTripDocument converts a trip into the searchable text block stored
// in the community index. The embedding is computed over this text, so the
// wording stays stable across re-indexing.
func RenderTripDocument(t domain.TripRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Trip from %s to %s.\n", t.Origin, t.Destination)
	fmt.Fprintf(&b, "Distance: %gkm.\n", t.DistanceKM)
	fmt.Fprintf(&b, "Energy used: %gkWh, Efficiency: %gkWh/100km.\n", t.EnergyKWH, t.EfficiencyKWHPer100)
	fmt.Fprintf(&b, "Weather: %s, Traffic: %s.\n", t.Weather, t.Traffic)
	if t.DrivingStyle != "" {
		fmt.Fprintf(&b, "Driving style: %s, Average speed: %gkm/h.\n", t.DrivingStyle, t.AvgSpeedKMH)
	}
	if t.StartBatteryPct > 0 {
		fmt.Fprintf(&b, "Battery: Started at %g%%, ended at %g%%.\n", t.StartBatteryPct, t.EndBatteryPct)
	}
	if t.ChargingStops > 0 {
		fmt.Fprintf(&b, "Charging stops: %d.\n", t.ChargingStops)
	}
	return strings.TrimSpace(b.String())
}

// RenderProfileDocument converts a user profile into the searchable pattern
// summary stored in the personal index.
func RenderProfileDocument(u domain.UserProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User %s's driving profile based on last %d trips:\n", u.UserID, u.TripsAnalyzed)
	fmt.Fprintf(&b, "EV model: %s\n", u.EVModel)
	fmt.Fprintf(&b, "Average efficiency: %.2f kWh/100km\n", u.AvgEfficiency)
	fmt.Fprintf(&b, "Dominant driving style: %s\n", u.DrivingStyle)
	fmt.Fprintf(&b, "Battery health: %g%%\n", u.BatteryHealthPct)
	if len(u.RecentTrips) > 0 {
		b.WriteString("Recent trip patterns:\n")
		for _, tr := range u.RecentTrips {
			fmt.Fprintf(&b, "- %s: %gkWh/100km\n", tr.Route, tr.Efficiency)
		}
	}
	return strings.TrimSpace(b.String())
}
