package main

import (
	"os"

	"github.com/spf13/cobra"

	"focus-backend/internal/logging"
)

var (
	cfgLogLevel string
	outputJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "focusctl",
	Short: "focusctl - concentration prediction tooling",
	Long: `focusctl scores signal records offline and manages model files
for the focus prediction service.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logging.Config{
			Level:  cfgLogLevel,
			Format: "console",
			Output: os.Stderr,
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgLogLevel, "log-level", envOr("LOG_LEVEL", "warn"), "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Print results as JSON")

	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(modelCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
