// Package domain defines core domain types, constants, and validation for the
// Voltpath query pipeline. It acts as the validation gate at pipeline entry points.
package domain

import "time"

// Intent is the classified category of an incoming question. It drives
// prompt selection in the orchestrator.
type Intent string

const (
	IntentRangePrediction     Intent = "range_prediction"
	IntentRoutePlanning       Intent = "route_planning"
	IntentPerformanceAnalysis Intent = "performance_analysis"
	IntentComparison          Intent = "comparison"
	IntentChargingInfo        Intent = "charging_info"
	IntentGeneral             Intent = "general"
)

// ValidIntents is the closed set of intents the classifier may return.
var ValidIntents = map[Intent]bool{
	IntentRangePrediction: true, IntentRoutePlanning: true,
	IntentPerformanceAnalysis: true, IntentComparison: true,
	IntentChargingInfo: true, IntentGeneral: true,
}

// TripRecord is one completed journey as stored in the community index.
// Records are immutable once indexed; corrections happen by re-indexing.
type TripRecord struct {
	ID                  string    `json:"trip_id"`
	UserID              string    `json:"user_id"`
	Origin              string    `json:"origin"`
	Destination         string    `json:"destination"`
	DistanceKM          float64   `json:"distance_km"`
	EnergyKWH           float64   `json:"energy_used_kwh"`
	EfficiencyKWHPer100 float64   `json:"efficiency_kwh_per_100km"`
	Weather             string    `json:"weather"`
	Traffic             string    `json:"traffic"`
	ChargingStops       int       `json:"num_charging_stops"`
	DrivingStyle        string    `json:"driving_style,omitempty"`
	AvgSpeedKMH         float64   `json:"avg_speed_kmh,omitempty"`
	StartBatteryPct     float64   `json:"start_battery_percent,omitempty"`
	EndBatteryPct       float64   `json:"end_battery_percent,omitempty"`
	Timestamp           time.Time `json:"timestamp"`
}

// TripSummary is a compact trip reference kept on a user profile.
type TripSummary struct {
	Route      string  `json:"route"`
	Efficiency float64 `json:"efficiency"`
	Date       string  `json:"date"`
}

// MaxRecentTrips bounds the trip summaries carried on a profile.
const MaxRecentTrips = 5

// UserProfile is the single per-user record in the personal index, keyed by
// ProfileID(user_id). Rebuilt wholesale by the population step; read-only on
// the query path.
type UserProfile struct {
	UserID             string        `json:"user_id"`
	EVModel            string        `json:"ev_model"`
	BatteryCapacityKWH float64       `json:"battery_capacity_kwh"`
	DrivingStyle       string        `json:"driving_style"`
	BatteryHealthPct   float64       `json:"battery_health"`
	AvgEfficiency      float64       `json:"avg_efficiency"`
	TripsAnalyzed      int           `json:"num_trips_analyzed"`
	RecentTrips        []TripSummary `json:"recent_trips,omitempty"`
}

// ProfileID derives the personal-index point key for a user.
func ProfileID(userID string) string { return "profile_" + userID }

// RouteStats is one aggregated (origin, destination) pair.
type RouteStats struct {
	Route         string  `json:"route"`
	Origin        string  `json:"from"`
	Destination   string  `json:"to"`
	Count         int     `json:"count"`
	AvgDistance   float64 `json:"avg_distance"`
	AvgEfficiency float64 `json:"avg_efficiency"`
}

// GlobalStats aggregates a sample of the community index.
//
// MostEfficient is the minimum efficiency in the sample and LeastEfficient
// the maximum (lower kWh/100km is better). The naming is inverted relative
// to the values on purpose: existing clients depend on these field names.
type GlobalStats struct {
	TotalTrips    int     `json:"total_trips"`
	TotalUsers    int     `json:"total_users"`
	AvgEfficiency float64 `json:"avg_efficiency"`
	AvgDistance   float64 `json:"avg_distance"`
	MostEfficient float64 `json:"most_efficient"`
	LeastEfficient float64 `json:"least_efficient"`
}
