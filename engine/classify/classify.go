// Package classify routes free-text questions to one of six fixed intents
// using ordered keyword containment. It is a coarse router, deliberately
// simple: no scoring, first matching intent wins, general is the default.
// Keep it replaceable — the orchestrator only depends on the Classifier
// func type.
package classify

import (
	"strings"

	"github.com/voltpath/voltpath/engine/domain"
)

// Classifier maps question text to an intent. Implementations must be pure:
// same input, same output, no side effects.
type Classifier func(text string) domain.Intent

// intentKeywords is evaluated in order; earlier intents take priority when
// a question contains keywords from several sets.
var intentKeywords = []struct {
	intent   domain.Intent
	keywords []string
}{
	{domain.IntentRangePrediction, []string{"range", "reach", "how far", "can i go", "predict"}},
	{domain.IntentRoutePlanning, []string{"route", "plan", "trip to", "navigate"}},
	{domain.IntentPerformanceAnalysis, []string{"efficiency", "my driving", "my trips", "performance"}},
	{domain.IntentComparison, []string{"compare", "vs", "better", "community"}},
	{domain.IntentChargingInfo, []string{"charging", "charge", "station", "charger"}},
}

// Classify implements Classifier with keyword heuristics.
func Classify(text string) domain.Intent {
	lower := strings.ToLower(text)
	for _, entry := range intentKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.intent
			}
		}
	}
	return domain.IntentGeneral
}
