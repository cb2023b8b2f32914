// Package recommend maps a concentration score and the signals behind it to
// ordered advice strings. Band advice always comes first, signal advice after.
package recommend

import "focus-backend/internal/models"

// Advice strings
const (
	AdviceRest      = "Get adequate rest"
	AdviceMeditate  = "Try meditation or deep breathing"
	AdviceExercise  = "Light exercise to restore energy"
	AdviceHydrate   = "Maintain adequate hydration"
	AdviceGood      = "Current condition is good"
	AdviceRoutine   = "Maintain a regular routine to sustain it"
	AdviceMoreSleep = "Increase sleep duration (recommended: 7–9 hours)"
	AdviceStress    = "Stress management needed; consider yoga or meditation"
	AdviceGeneric   = "Take short breaks and keep a steady routine"
)

const (
	lowBandUpper    = 50.0
	middleBandUpper = 70.0
	shortSleepHours = 6.0
	highStressLevel = 7.0
)

// Generate returns the advice for score and signals. Matching rules append in order;
// duplicates are kept.
func Generate(score float64, s models.Signals) []string {
	recs := make([]string, 0, 4)

	switch {
	case score < lowBandUpper:
		recs = append(recs, AdviceRest, AdviceMeditate)
	case score < middleBandUpper:
		recs = append(recs, AdviceExercise, AdviceHydrate)
	default:
		recs = append(recs, AdviceGood, AdviceRoutine)
	}

	if s.SleepHours < shortSleepHours {
		recs = append(recs, AdviceMoreSleep)
	}
	if s.StressLevel > highStressLevel {
		recs = append(recs, AdviceStress)
	}

	return recs
}
