package prompt

import (
	"strings"
	"testing"

	"github.com/voltpath/voltpath/engine/domain"
	"github.com/voltpath/voltpath/engine/retrieval"
)

func evidence(community, personal string) retrieval.Combined {
	ev := retrieval.Combined{}
	if community != "" {
		ev.Community = retrieval.Result{
			Documents: []string{community},
			Metadata:  []map[string]any{{}},
			Distances: []float32{0.1},
		}
	}
	if personal != "" {
		ev.Personal = retrieval.Result{
			Documents: []string{personal},
			Metadata:  []map[string]any{{}},
			Distances: []float32{0.2},
		}
	}
	return ev
}

func TestComposeDeterministic(t *testing.T) {
	ev := evidence("community doc", "personal doc")
	for _, intent := range []domain.Intent{
		domain.IntentRangePrediction, domain.IntentRoutePlanning,
		domain.IntentPerformanceAnalysis, domain.IntentComparison,
		domain.IntentChargingInfo, domain.IntentGeneral,
	} {
		a := Compose(intent, "some question", ev, "")
		b := Compose(intent, "some question", ev, "")
		if a != b {
			t.Fatalf("%s: prompt not deterministic", intent)
		}
	}
}

func TestComposeDistinctTemplates(t *testing.T) {
	ev := evidence("community doc", "personal doc")
	seen := make(map[string]domain.Intent)
	for _, intent := range []domain.Intent{
		domain.IntentRangePrediction, domain.IntentRoutePlanning,
		domain.IntentPerformanceAnalysis, domain.IntentComparison,
		domain.IntentChargingInfo, domain.IntentGeneral,
	} {
		p := Compose(intent, "q", ev, "")
		if prev, dup := seen[p]; dup {
			t.Fatalf("%s and %s share a template", intent, prev)
		}
		seen[p] = intent
	}
}

func TestComposeEmbedsQuestionAndEvidence(t *testing.T) {
	ev := evidence("Trip from Mumbai to Pune used 21kWh.", "User drives aggressively.")
	p := Compose(domain.IntentGeneral, "how much energy for mumbai pune?", ev, "")
	if !strings.Contains(p, "how much energy for mumbai pune?") {
		t.Fatal("question missing from prompt")
	}
	if !strings.Contains(p, "Trip from Mumbai to Pune used 21kWh.") {
		t.Fatal("community evidence missing from prompt")
	}
}

func TestComposeEvidenceBudget(t *testing.T) {
	long := strings.Repeat("x", 2000)
	ev := evidence(long, long)
	p := Compose(domain.IntentRangePrediction, "q", ev, "")
	// The full 2000-char document must never be embedded whole.
	if strings.Contains(p, long) {
		t.Fatal("evidence document embedded beyond its budget")
	}
	if !strings.Contains(p, strings.Repeat("x", 300)) {
		t.Fatal("expected the 300-char community prefix")
	}
}

func TestComposeEmptyEvidenceFallbacks(t *testing.T) {
	p := Compose(domain.IntentRangePrediction, "can I make it?", retrieval.Combined{}, "")
	if !strings.Contains(p, "No similar trip data available.") {
		t.Fatal("missing community fallback sentence")
	}
	if !strings.Contains(p, "No personal driving history.") {
		t.Fatal("missing personal fallback sentence")
	}
}

func TestComposeRefusalInstructions(t *testing.T) {
	ev := evidence("doc", "doc")
	cases := []struct {
		intent  domain.Intent
		refusal string
	}{
		{domain.IntentRangePrediction, "I don't have enough trip data to judge this route."},
		{domain.IntentRoutePlanning, "I don't have data for this route yet."},
		{domain.IntentPerformanceAnalysis, "I don't have any driving history for you yet."},
		{domain.IntentComparison, "I don't have enough data to compare."},
		{domain.IntentChargingInfo, "I don't have charging data for this."},
		{domain.IntentGeneral, "I don't have data on that yet."},
	}
	for _, tc := range cases {
		if p := Compose(tc.intent, "q", ev, ""); !strings.Contains(p, tc.refusal) {
			t.Errorf("%s: refusal sentence missing", tc.intent)
		}
	}
}

func TestComposeRouteContext(t *testing.T) {
	ev := evidence("doc", "doc")
	with := Compose(domain.IntentRoutePlanning, "q", ev, "Mumbai to Pune travelled 40 times.")
	if !strings.Contains(with, "Mumbai to Pune travelled 40 times.") {
		t.Fatal("route context missing from prompt")
	}
	without := Compose(domain.IntentRoutePlanning, "q", ev, "")
	if strings.Contains(without, "Route network context") {
		t.Fatal("empty route context should add no section")
	}
}

func TestComposeRangePredictionLeadsWithYesNo(t *testing.T) {
	trips := []domain.TripRecord{
		{DistanceKM: 150, EnergyKWH: 21, EfficiencyKWHPer100: 14},
		{DistanceKM: 148, EnergyKWH: 22, EfficiencyKWHPer100: 14.9},
		{DistanceKM: 152, EnergyKWH: 23, EfficiencyKWHPer100: 15.1},
	}
	p := ComposeRangePrediction("Mumbai", "Pune", 80, "clear", "moderate", trips, nil)

	if !strings.Contains(p, "Start with YES or NO") {
		t.Fatal("YES/NO instruction missing")
	}
	if !strings.HasSuffix(p, "ANALYSIS:") {
		t.Fatal("prompt must end with the ANALYSIS: cue")
	}
	// At most two trips are embedded.
	if !strings.Contains(p, "Trip 1:") || !strings.Contains(p, "Trip 2:") {
		t.Fatal("expected two embedded trips")
	}
	if strings.Contains(p, "Trip 3:") {
		t.Fatal("more than two trips embedded")
	}
}

func TestComposeRangePredictionNoData(t *testing.T) {
	p := ComposeRangePrediction("Mumbai", "Goa", 50, "rainy", "heavy", nil, nil)
	if !strings.Contains(p, "No similar trip data available. Use general estimates.") {
		t.Fatal("missing no-data fallback")
	}
}

func TestComposeRangePredictionProfileSection(t *testing.T) {
	profile := &domain.UserProfile{AvgEfficiency: 14.2, DrivingStyle: "normal"}
	with := ComposeRangePrediction("Mumbai", "Pune", 80, "clear", "light", nil, profile)
	if !strings.Contains(with, "YOUR DRIVING PROFILE") {
		t.Fatal("profile section missing")
	}
	without := ComposeRangePrediction("Mumbai", "Pune", 80, "clear", "light", nil, nil)
	if strings.Contains(without, "YOUR DRIVING PROFILE") {
		t.Fatal("profile section should be omitted without a profile")
	}
}

func TestComposeCoaching(t *testing.T) {
	profile := domain.UserProfile{AvgEfficiency: 14.2, DrivingStyle: "normal", BatteryHealthPct: 95, TripsAnalyzed: 40}
	stats := domain.GlobalStats{AvgEfficiency: 15, MostEfficient: 12, LeastEfficient: 18}
	p := ComposeCoaching(profile, stats)

	if !strings.Contains(p, "14.2 kWh/100km") {
		t.Fatal("driver efficiency missing")
	}
	// Best is the minimum consumption, worst the maximum.
	if !strings.Contains(p, "Best: 12 kWh/100km") || !strings.Contains(p, "Worst: 18 kWh/100km") {
		t.Fatal("community benchmarks missing or misassigned")
	}
	if !strings.HasSuffix(p, "COACHING ANALYSIS:") {
		t.Fatal("prompt must end with the coaching cue")
	}
}
