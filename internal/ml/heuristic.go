package ml

import "focus-backend/internal/models"

// Heuristic scoring constants. The heuristic is the guaranteed fallback, so these
// must not drift.
const (
	heuristicBase       = 75.0
	heuristicConfidence = 0.7

	heartRateIdealMin = 60.0
	heartRateIdealMax = 80.0
	sleepIdealMin     = 7.0
	sleepIdealMax     = 9.0

	heartRateIdealBonus  = 10.0
	heartRateLowPenalty  = -5.0
	heartRateHighPenalty = -10.0
	sleepIdealBonus      = 10.0
	sleepOffPenalty      = -5.0
	stressWeight         = -3.0
)

// ScoreHeuristic computes a bounded concentration score from resolved signals
// using fixed additive adjustments from a base of 75. Confidence is always 0.7.
func ScoreHeuristic(s models.Signals) (score, confidence float64) {
	var heartRateAdj float64
	switch {
	case s.HeartRate >= heartRateIdealMin && s.HeartRate <= heartRateIdealMax:
		heartRateAdj = heartRateIdealBonus
	case s.HeartRate < heartRateIdealMin:
		heartRateAdj = heartRateLowPenalty
	default:
		heartRateAdj = heartRateHighPenalty
	}

	sleepAdj := sleepOffPenalty
	if s.SleepHours >= sleepIdealMin && s.SleepHours <= sleepIdealMax {
		sleepAdj = sleepIdealBonus
	}

	stressAdj := stressWeight * s.StressLevel

	return ClampScore(heuristicBase + heartRateAdj + sleepAdj + stressAdj), heuristicConfidence
}

// ClampScore bounds a score to [0, 100]
func ClampScore(v float64) float64 {
	return clamp(v, 0, 100)
}

// ClampConfidence bounds a confidence to [0, 1]
func ClampConfidence(v float64) float64 {
	return clamp(v, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
