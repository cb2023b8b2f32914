package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"focus-backend/internal/ml"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Manage model files",
}

var modelSampleCmd = &cobra.Command{
	Use:   "sample <path>",
	Short: "Write a sample linear model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ml.CreateSampleModel(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample model to %s\n", args[0])
		return nil
	},
}

var modelCheckCmd = &cobra.Command{
	Use:   "check <path>",
	Short: "Load a model file and report whether the server would accept it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		model, err := ml.LoadModel(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "OK: version %s, %d coefficients\n", model.Version, len(model.Coefficients))
		return nil
	},
}

func init() {
	modelCmd.AddCommand(modelSampleCmd)
	modelCmd.AddCommand(modelCheckCmd)
}
