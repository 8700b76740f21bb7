package domain

import (
	"fmt"
	"strings"
	"time"
)

// Payload converts a TripRecord into the flat metadata map stored alongside
// its vector. Keys match the dataset generator's JSON field names.
func (t TripRecord) Payload() map[string]any {
	return map[string]any{
		"trip_id":                  t.ID,
		"user_id":                  t.UserID,
		"origin":                   t.Origin,
		"destination":              t.Destination,
		"distance_km":              t.DistanceKM,
		"energy_used_kwh":          t.EnergyKWH,
		"efficiency_kwh_per_100km": t.EfficiencyKWHPer100,
		"weather":                  t.Weather,
		"traffic":                  t.Traffic,
		"num_charging_stops":       t.ChargingStops,
		"driving_style":            t.DrivingStyle,
		"avg_speed_kmh":            t.AvgSpeedKMH,
		"start_battery_percent":    t.StartBatteryPct,
		"end_battery_percent":      t.EndBatteryPct,
		"timestamp":                t.Timestamp.UTC().Format(time.RFC3339),
	}
}

// TripFromPayload rebuilds a TripRecord from index metadata. Unknown or
// missing keys yield zero values rather than errors: index payloads are
// trusted, having been written by our own population step.
func TripFromPayload(p map[string]any) TripRecord {
	t := TripRecord{
		ID:                  str(p, "trip_id"),
		UserID:              str(p, "user_id"),
		Origin:              str(p, "origin"),
		Destination:         str(p, "destination"),
		DistanceKM:          num(p, "distance_km"),
		EnergyKWH:           num(p, "energy_used_kwh"),
		EfficiencyKWHPer100: num(p, "efficiency_kwh_per_100km"),
		Weather:             str(p, "weather"),
		Traffic:             str(p, "traffic"),
		ChargingStops:       int(num(p, "num_charging_stops")),
		DrivingStyle:        str(p, "driving_style"),
		AvgSpeedKMH:         num(p, "avg_speed_kmh"),
		StartBatteryPct:     num(p, "start_battery_percent"),
		EndBatteryPct:       num(p, "end_battery_percent"),
	}
	if ts := str(p, "timestamp"); ts != "" {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			t.Timestamp = parsed
		}
	}
	return t
}

// Payload converts a UserProfile into index metadata. RecentTrips are folded
// into a single pipe-delimited string because the index stores flat scalars.
func (u UserProfile) Payload() map[string]any {
	recent := make([]string, 0, len(u.RecentTrips))
	for _, tr := range u.RecentTrips {
		recent = append(recent, fmt.Sprintf("%s=%g@%s", tr.Route, tr.Efficiency, tr.Date))
	}
	return map[string]any{
		"user_id":              u.UserID,
		"ev_model":             u.EVModel,
		"battery_capacity_kwh": u.BatteryCapacityKWH,
		"driving_style":        u.DrivingStyle,
		"battery_health":       u.BatteryHealthPct,
		"avg_efficiency":       u.AvgEfficiency,
		"num_trips_analyzed":   u.TripsAnalyzed,
		"recent_trips":         strings.Join(recent, "|"),
	}
}

// ProfileFromPayload rebuilds a UserProfile from index metadata.
func ProfileFromPayload(p map[string]any) UserProfile {
	u := UserProfile{
		UserID:             str(p, "user_id"),
		EVModel:            str(p, "ev_model"),
		BatteryCapacityKWH: num(p, "battery_capacity_kwh"),
		DrivingStyle:       str(p, "driving_style"),
		BatteryHealthPct:   num(p, "battery_health"),
		AvgEfficiency:      num(p, "avg_efficiency"),
		TripsAnalyzed:      int(num(p, "num_trips_analyzed")),
	}
	if raw := str(p, "recent_trips"); raw != "" {
		for _, item := range strings.Split(raw, "|") {
			eq := strings.LastIndex(item, "=")
			at := strings.LastIndex(item, "@")
			if eq < 0 || at < eq {
				continue
			}
			var eff float64
			fmt.Sscanf(item[eq+1:at], "%g", &eff)
			u.RecentTrips = append(u.RecentTrips, TripSummary{
				Route:      item[:eq],
				Efficiency: eff,
				Date:       item[at+1:],
			})
		}
	}
	return u
}

func str(p map[string]any, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

func num(p map[string]any, key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}
