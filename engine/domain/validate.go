package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const minQuestionLength = 3

// ValidateQuestion checks free-text question input at the transport boundary.
func ValidateQuestion(text, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return NewValidationError("user_id", userID, ErrMissingUser)
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < minQuestionLength {
		return NewValidationError("question", text, ErrEmptyQuestion)
	}
	return nil
}

// ValidateTrip checks a submitted TripRecord before it is published for
// indexing.
func ValidateTrip(t TripRecord) error {
	if strings.TrimSpace(t.UserID) == "" {
		return NewValidationError("user_id", t.UserID, ErrMissingUser)
	}
	if strings.TrimSpace(t.Origin) == "" || strings.TrimSpace(t.Destination) == "" {
		return NewValidationError("origin/destination", t.Origin+"/"+t.Destination, ErrMissingLocation)
	}
	if t.DistanceKM <= 0 {
		return NewValidationError("distance_km", fmt.Sprintf("%g", t.DistanceKM), ErrBadDistance)
	}
	if t.EnergyKWH <= 0 {
		return NewValidationError("energy_used_kwh", fmt.Sprintf("%g", t.EnergyKWH), ErrBadEnergy)
	}
	return nil
}

// ValidateRangeRequest checks the dedicated range-prediction inputs.
func ValidateRangeRequest(userID, origin, destination string, batteryPct float64) error {
	if strings.TrimSpace(userID) == "" {
		return NewValidationError("user_id", userID, ErrMissingUser)
	}
	if strings.TrimSpace(origin) == "" || strings.TrimSpace(destination) == "" {
		return NewValidationError("origin/destination", origin+"/"+destination, ErrMissingLocation)
	}
	if batteryPct < 0 || batteryPct > 100 {
		return NewValidationError("battery_percent", fmt.Sprintf("%g", batteryPct), ErrBadBattery)
	}
	return nil
}

// Efficiency derives kWh/100km from distance and energy. Returns 0 when the
// distance is non-positive.
func Efficiency(distanceKM, energyKWH float64) float64 {
	if distanceKM <= 0 {
		return 0
	}
	return energyKWH / distanceKM * 100
}
