// Package prompt builds the instruction text sent to the generation model.
// One template per intent. Composition is pure: identical inputs always
// produce identical prompt text, and inputs are never mutated. Every
// template caps how much of each evidence document is embedded and tells
// the model to refuse gracefully instead of fabricating when the evidence
// is empty or irrelevant.
package prompt

import (
	"fmt"
	"strings"

	"github.com/voltpath/voltpath/engine/domain"
	"github.com/voltpath/voltpath/engine/retrieval"
)

// Per-intent evidence prefix budgets (characters). The generation model has
// a small input window; full documents never go in.
const (
	communityBudget  = 300
	personalBudget   = 150
	generalBudget    = 250
	comparisonBudget = 500
)

const noCommunityData = "No similar trip data available."
const noPersonalData = "No personal driving history."

// Compose renders the prompt for a classified question. routeContext is
// optional extra grounding (route-graph summary) and may be empty.
func Compose(intent domain.Intent, question string, ev retrieval.Combined, routeContext string) string {
	switch intent {
	case domain.IntentRangePrediction:
		return composeRangeIntent(question, ev)
	case domain.IntentRoutePlanning:
		return composeRouteIntent(question, ev, routeContext)
	case domain.IntentPerformanceAnalysis:
		return composePerformanceIntent(question, ev)
	case domain.IntentComparison:
		return composeComparisonIntent(question, ev)
	case domain.IntentChargingInfo:
		return composeChargingIntent(question, ev)
	default:
		return composeGeneralIntent(question, ev)
	}
}

func composeRangeIntent(question string, ev retrieval.Combined) string {
	var b strings.Builder
	b.WriteString("You are an EV range expert. Analyze if the trip is possible.\n\n")
	b.WriteString("Context from similar trips:\n")
	b.WriteString(topDocument(ev.Community, communityBudget, noCommunityData))
	b.WriteString("\n\nUser's driving history:\n")
	b.WriteString(topDocument(ev.Personal, personalBudget, noPersonalData))
	fmt.Fprintf(&b, "\n\nQuestion: %s\n\n", question)
	b.WriteString(`Instructions:
- Answer using ONLY the trip data above
- Give a YES or NO answer first, with a confidence percentage
- State the estimated range needed
- Mention if charging is required
- If the data above is insufficient, reply exactly: "I don't have enough trip data to judge this route."
- Keep response under 100 words
- Be realistic and factual

Answer:`)
	return b.String()
}

func composeRouteIntent(question string, ev retrieval.Combined, routeContext string) string {
	var b strings.Builder
	b.WriteString("You are an EV route planner. Provide practical route advice.\n\n")
	b.WriteString("Similar route data:\n")
	b.WriteString(topDocument(ev.Community, communityBudget, noCommunityData))
	b.WriteString("\n\nUser preferences:\n")
	b.WriteString(topDocument(ev.Personal, personalBudget, noPersonalData))
	if routeContext != "" {
		b.WriteString("\n\nRoute network context:\n")
		b.WriteString(truncate(routeContext, communityBudget))
	}
	fmt.Fprintf(&b, "\n\nQuestion: %s\n\n", question)
	b.WriteString(`Instructions:
- Use ONLY the route data above; do not invent trips or distances
- Estimate realistic distance and travel time
- Suggest at most 1-2 charging stops per 200km
- If the data above does not cover this route, say "I don't have data for this route yet."
- Keep response under 120 words

Answer:`)
	return b.String()
}

func composePerformanceIntent(question string, ev retrieval.Combined) string {
	var b strings.Builder
	b.WriteString("You are an EV driving coach. Analyze this driver's habits.\n\n")
	b.WriteString("Driver's history:\n")
	b.WriteString(topDocument(ev.Personal, comparisonBudget, noPersonalData))
	b.WriteString("\n\nCommunity reference trips:\n")
	b.WriteString(topDocument(ev.Community, communityBudget, noCommunityData))
	fmt.Fprintf(&b, "\n\nQuestion: %s\n\n", question)
	b.WriteString(`Instructions:
- Base every statement on the history above
- Compare the driver to the community trips where possible
- Give 2-3 specific, actionable tips
- If there is no driving history above, reply exactly: "I don't have any driving history for you yet."
- Keep response under 120 words

Answer:`)
	return b.String()
}

func composeComparisonIntent(question string, ev retrieval.Combined) string {
	var b strings.Builder
	b.WriteString("You are an EV data analyst. Compare the following records.\n\n")
	b.WriteString("Community data:\n")
	b.WriteString(evidenceBlock(ev.Community, 3, comparisonBudget, noCommunityData))
	b.WriteString("\n\nUser data:\n")
	b.WriteString(evidenceBlock(ev.Personal, 2, personalBudget, noPersonalData))
	fmt.Fprintf(&b, "\n\nQuestion: %s\n\n", question)
	b.WriteString(`Instructions:
- Compare ONLY what appears in the data above
- Highlight similarities, differences, and the user's standing vs the community
- If either side has no data, reply exactly: "I don't have enough data to compare."
- Keep response under 150 words

Answer:`)
	return b.String()
}

func composeChargingIntent(question string, ev retrieval.Combined) string {
	var b strings.Builder
	b.WriteString("You are an EV charging assistant.\n\n")
	b.WriteString("Relevant trips with charging details:\n")
	b.WriteString(topDocument(ev.Community, communityBudget, noCommunityData))
	fmt.Fprintf(&b, "\n\nQuestion: %s\n\n", question)
	b.WriteString(`Instructions:
- Answer using ONLY the trip data above
- Do not invent charger locations, networks, or prices
- If the data above has no charging information, reply exactly: "I don't have charging data for this."
- Keep response under 80 words

Answer:`)
	return b.String()
}

func composeGeneralIntent(question string, ev retrieval.Combined) string {
	var b strings.Builder
	b.WriteString("You are a helpful EV assistant.\n\n")
	b.WriteString("Relevant information:\n")
	b.WriteString(topDocument(ev.Community, generalBudget, noCommunityData))
	fmt.Fprintf(&b, "\n\nQuestion: %s\n\n", question)
	b.WriteString(`Instructions:
- Provide accurate information grounded in the data above
- Do not make up statistics
- If the data above is not relevant, reply exactly: "I don't have data on that yet."
- Keep response under 100 words
- Be practical

Answer:`)
	return b.String()
}

// ComposeRangePrediction builds the dedicated range-feasibility prompt. At
// most the top two matching trips are embedded; the model is instructed to
// lead with YES/NO because the orchestrator scans for that token afterward.
func ComposeRangePrediction(origin, destination string, batteryPct float64, weather, traffic string, trips []domain.TripRecord, profile *domain.UserProfile) string {
	var b strings.Builder
	b.WriteString("You are an expert EV range analyst. Analyze this trip request.\n\n")
	fmt.Fprintf(&b, "TRIP REQUEST:\nFrom: %s\nTo: %s\nCurrent Battery: %g%%\nWeather: %s\nTraffic: %s\n\n", origin, destination, batteryPct, weather, traffic)

	b.WriteString("COMMUNITY DATA:\n")
	if len(trips) == 0 {
		b.WriteString("No similar trip data available. Use general estimates.\n")
	} else {
		if len(trips) > 2 {
			trips = trips[:2]
		}
		for i, t := range trips {
			fmt.Fprintf(&b, "Trip %d: %gkm used %gkWh (%gkWh/100km)\n", i+1, t.DistanceKM, t.EnergyKWH, t.EfficiencyKWHPer100)
		}
	}

	if profile != nil {
		fmt.Fprintf(&b, "\nYOUR DRIVING PROFILE:\nAverage efficiency: %g kWh/100km\nStyle: %s\n", profile.AvgEfficiency, profile.DrivingStyle)
	}

	b.WriteString(`
PROVIDE ANALYSIS:
1. Can you complete this trip? Start with YES or NO and a confidence %
2. Estimated distance and energy required
3. Charging recommendation (0-2 stops maximum)
4. Key factors to consider

Answer only from the data above. Keep response practical and realistic. Maximum 150 words.

ANALYSIS:`)
	return b.String()
}

// ComposeCoaching builds the performance-coaching prompt contrasting a
// driver's profile against community aggregates.
func ComposeCoaching(profile domain.UserProfile, stats domain.GlobalStats) string {
	var b strings.Builder
	b.WriteString("You are an EV driving coach. Analyze this driver's performance.\n\n")
	fmt.Fprintf(&b, "DRIVER'S METRICS:\n- Efficiency: %g kWh/100km\n- Driving style: %s\n- Battery health: %g%%\n- Trips analyzed: %d\n\n",
		profile.AvgEfficiency, profile.DrivingStyle, profile.BatteryHealthPct, profile.TripsAnalyzed)
	fmt.Fprintf(&b, "COMMUNITY BENCHMARKS:\n- Average efficiency: %g kWh/100km\n- Best: %g kWh/100km\n- Worst: %g kWh/100km\n",
		stats.AvgEfficiency, stats.MostEfficient, stats.LeastEfficient)
	b.WriteString(`
INSTRUCTIONS:
1. Rate performance (Excellent/Good/Average/Needs Improvement)
2. Compare to the community average using only the numbers above
3. Give 2-3 specific actionable tips
4. Be encouraging and constructive
5. Keep under 150 words

COACHING ANALYSIS:`)
	return b.String()
}

// topDocument returns a bounded prefix of the first evidence document, or
// the fallback sentence when there is none.
func topDocument(r retrieval.Result, budget int, fallback string) string {
	if r.Empty() {
		return fallback
	}
	return truncate(r.Documents[0], budget)
}

// evidenceBlock renders up to maxDocs bounded document prefixes.
func evidenceBlock(r retrieval.Result, maxDocs, budget int, fallback string) string {
	if r.Empty() {
		return fallback
	}
	n := min(maxDocs, r.Len())
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("[%d] %s", i+1, truncate(r.Documents[i], budget))
	}
	return strings.Join(parts, "\n")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
