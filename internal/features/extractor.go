// Package features turns raw signal records into the defaulted signal shape
// and the fixed-order feature vector used by predictive models.
package features

import (
	"math"

	"focus-backend/internal/models"
)

// Range is the inclusive valid range of a signal. Max of +Inf means unbounded.
type Range struct {
	Min float64
	Max float64
}

// Ranges holds the valid range of every recognized signal
var Ranges = map[string]Range{
	models.SignalHeartRate:      {Min: 40, Max: 200},
	models.SignalSleepHours:     {Min: 0, Max: 24},
	models.SignalSteps:          {Min: 0, Max: math.Inf(1)},
	models.SignalStressLevel:    {Min: 1, Max: 10},
	models.SignalActivityLevel:  {Min: 1, Max: 10},
	models.SignalCaffeineIntake: {Min: 0, Max: 10},
	models.SignalWaterIntake:    {Min: 0, Max: math.Inf(1)},
}

// StepsScale normalizes the step count into the feature vector
const StepsScale = 1000.0

// Resolve fills missing signals with their defaults and clamps every value into its
// valid range. Non-finite values count as missing.
func Resolve(s models.SignalSet) models.Signals {
	return models.Signals{
		HeartRate:      resolve(s.HeartRate, models.DefaultHeartRate, models.SignalHeartRate),
		SleepHours:     resolve(s.SleepHours, models.DefaultSleepHours, models.SignalSleepHours),
		Steps:          resolve(s.Steps, models.DefaultSteps, models.SignalSteps),
		StressLevel:    resolve(s.StressLevel, models.DefaultStressLevel, models.SignalStressLevel),
		ActivityLevel:  resolve(s.ActivityLevel, models.DefaultActivityLevel, models.SignalActivityLevel),
		CaffeineIntake: resolve(s.CaffeineIntake, models.DefaultCaffeineIntake, models.SignalCaffeineIntake),
		WaterIntake:    resolve(s.WaterIntake, models.DefaultWaterIntake, models.SignalWaterIntake),
	}
}

// Extract builds the model feature vector from a raw signal record.
func Extract(s models.SignalSet) models.FeatureVector {
	return Vector(Resolve(s))
}

// Vector builds the feature vector from already resolved signals.
func Vector(s models.Signals) models.FeatureVector {
	return models.FeatureVector{
		s.HeartRate,
		s.SleepHours,
		s.Steps / StepsScale,
		s.StressLevel,
	}
}

func resolve(v *float64, def float64, name string) float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return def
	}
	r := Ranges[name]
	return Clamp(*v, r.Min, r.Max)
}

// Clamp bounds v to [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
