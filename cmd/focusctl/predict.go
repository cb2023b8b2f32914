package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"focus-backend/internal/cache"
	"focus-backend/internal/ml"
	"focus-backend/internal/models"
	"focus-backend/internal/services"
	"focus-backend/internal/validation"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score one day of signals",
	Long: `Run the prediction pipeline once for a user and day and print the result.
Signals that are not given fall back to their defaults.

Example:
  focusctl predict --user alice --sleep-hours 8 --stress-level 4
  focusctl predict --user alice --date 2024-03-01 --model ./model/concentration_model.json --json`,
	RunE: runPredict,
}

var (
	predictUser      string
	predictDate      string
	predictModelPath string
	predictSignals   = map[string]*float64{}
)

var signalFlags = []struct {
	name   string
	signal string
	usage  string
}{
	{"heart-rate", models.SignalHeartRate, "Resting heart rate, beats/min"},
	{"sleep-hours", models.SignalSleepHours, "Hours slept"},
	{"steps", models.SignalSteps, "Step count"},
	{"stress-level", models.SignalStressLevel, "Stress level, 1-10"},
	{"activity-level", models.SignalActivityLevel, "Activity level, 1-10"},
	{"caffeine-intake", models.SignalCaffeineIntake, "Caffeine servings"},
	{"water-intake", models.SignalWaterIntake, "Water intake, liters"},
}

func init() {
	predictCmd.Flags().StringVar(&predictUser, "user", "", "User identifier (required)")
	predictCmd.Flags().StringVar(&predictDate, "date", "", "Day to score, YYYY-MM-DD (default: today, UTC)")
	predictCmd.Flags().StringVar(&predictModelPath, "model", "", "Model file; heuristic scoring when empty")
	_ = predictCmd.MarkFlagRequired("user")

	for _, f := range signalFlags {
		predictSignals[f.name] = predictCmd.Flags().Float64(f.name, 0, f.usage)
	}
}

func runPredict(cmd *cobra.Command, args []string) error {
	day := time.Now().UTC()
	if predictDate != "" {
		parsed, err := time.Parse(cache.DayLayout, predictDate)
		if err != nil {
			return fmt.Errorf("invalid --date %q: expected YYYY-MM-DD", predictDate)
		}
		day = parsed
	}

	signals := collectSignals(cmd)
	if verr := validation.ValidateStruct(signals); verr != nil {
		return verr
	}

	adapterCfg := ml.DefaultAdapterConfig()
	adapterCfg.ModelPath = predictModelPath
	adapter := ml.LoadAdapter(adapterCfg)

	store := cache.NewMemory(cache.DefaultMemoryConfig())
	defer store.Close()

	engine := services.NewPredictionEngine(store, adapter, services.PredictionEngineConfig{})

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	prediction := engine.Predict(ctx, predictUser, day, signals)
	return printPrediction(cmd.OutOrStdout(), predictUser, cache.NewKey(predictUser, day).DayString(), prediction)
}

// collectSignals keeps only the signal flags that were set explicitly
func collectSignals(cmd *cobra.Command) models.SignalSet {
	values := make(map[string]float64)
	for _, f := range signalFlags {
		if cmd.Flags().Changed(f.name) {
			values[f.signal] = *predictSignals[f.name]
		}
	}
	return models.SignalSetFromMap(values)
}

func printPrediction(w io.Writer, userID, date string, p models.Prediction) error {
	if outputJSON {
		data, err := json.MarshalIndent(models.PredictionMessage{UserID: userID, Date: date, Prediction: p}, "", "  ")
		if err != nil {
			return fmt.Errorf("encode prediction: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	fmt.Fprintf(w, "User:          %s\n", userID)
	fmt.Fprintf(w, "Date:          %s\n", date)
	fmt.Fprintf(w, "Score:         %.1f\n", p.ConcentrationScore)
	fmt.Fprintf(w, "Confidence:    %.2f\n", p.Confidence)
	fmt.Fprintf(w, "Source:        %s\n", p.Source)
	fmt.Fprintf(w, "Advice:\n  - %s\n", strings.Join(p.Recommendations, "\n  - "))
	return nil
}
