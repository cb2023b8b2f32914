package models

import "math"

// Signal names as they appear on the wire and in model files.
const (
	SignalHeartRate      = "heart_rate"
	SignalSleepHours     = "sleep_hours"
	SignalSteps          = "steps"
	SignalStressLevel    = "stress_level"
	SignalActivityLevel  = "activity_level"
	SignalCaffeineIntake = "caffeine_intake"
	SignalWaterIntake    = "water_intake"
)

// Defaults applied to missing signals.
const (
	DefaultHeartRate      = 70.0
	DefaultSleepHours     = 7.0
	DefaultSteps          = 5000.0
	DefaultStressLevel    = 3.0
	DefaultActivityLevel  = 3.0
	DefaultCaffeineIntake = 1.0
	DefaultWaterIntake    = 2.0
)

// SignalSet is the raw signal record as received from a client.
// Every field is optional; nil means "not reported".
type SignalSet struct {
	HeartRate      *float64 `json:"heart_rate,omitempty" validate:"omitempty,gte=40,lte=200"`    // beats/min
	SleepHours     *float64 `json:"sleep_hours,omitempty" validate:"omitempty,gte=0,lte=24"`     // hours
	Steps          *float64 `json:"steps,omitempty" validate:"omitempty,gte=0"`                  // count
	StressLevel    *float64 `json:"stress_level,omitempty" validate:"omitempty,gte=1,lte=10"`    // 1-10
	ActivityLevel  *float64 `json:"activity_level,omitempty" validate:"omitempty,gte=1,lte=10"`  // 1-10
	CaffeineIntake *float64 `json:"caffeine_intake,omitempty" validate:"omitempty,gte=0,lte=10"` // servings
	WaterIntake    *float64 `json:"water_intake,omitempty" validate:"omitempty,gte=0"`           // liters
}

// Signals is a SignalSet with every field defaulted and clamped into its valid range.
// Only the feature extractor produces it.
type Signals struct {
	HeartRate      float64 `json:"heart_rate"`
	SleepHours     float64 `json:"sleep_hours"`
	Steps          float64 `json:"steps"`
	StressLevel    float64 `json:"stress_level"`
	ActivityLevel  float64 `json:"activity_level"`
	CaffeineIntake float64 `json:"caffeine_intake"`
	WaterIntake    float64 `json:"water_intake"`
}

// Float returns a pointer to v. Handy for building SignalSets in code.
func Float(v float64) *float64 {
	return &v
}

// SignalSetFromMap builds a SignalSet from a loose name->value mapping.
// Unrecognized keys and non-finite values are ignored.
func SignalSetFromMap(m map[string]float64) SignalSet {
	var s SignalSet
	for name, value := range m {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			continue
		}
		v := value
		switch name {
		case SignalHeartRate:
			s.HeartRate = &v
		case SignalSleepHours:
			s.SleepHours = &v
		case SignalSteps:
			s.Steps = &v
		case SignalStressLevel:
			s.StressLevel = &v
		case SignalActivityLevel:
			s.ActivityLevel = &v
		case SignalCaffeineIntake:
			s.CaffeineIntake = &v
		case SignalWaterIntake:
			s.WaterIntake = &v
		}
	}
	return s
}

// Map returns the reported fields of the SignalSet as a name->value mapping.
func (s SignalSet) Map() map[string]float64 {
	m := make(map[string]float64, 7)
	put := func(name string, v *float64) {
		if v != nil {
			m[name] = *v
		}
	}
	put(SignalHeartRate, s.HeartRate)
	put(SignalSleepHours, s.SleepHours)
	put(SignalSteps, s.Steps)
	put(SignalStressLevel, s.StressLevel)
	put(SignalActivityLevel, s.ActivityLevel)
	put(SignalCaffeineIntake, s.CaffeineIntake)
	put(SignalWaterIntake, s.WaterIntake)
	return m
}
