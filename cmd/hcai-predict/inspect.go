package main

import (
	"time"

	"hcai-scorer/internal/model"
	"hcai-scorer/internal/pipeline"

	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <model>",
		Short: "Print the properties of a saved model",
		Long: `Inspect loads a saved model from a file or URL and prints its metrics,
column names, grain column and prediction column.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			timeout, _ := cmd.Flags().GetDuration("timeout")
			m, err := model.LoadSavedModelWithMetrics(args[0], nil, timeout)
			if err != nil {
				return err
			}
			pipeline.Describe(cmd.OutOrStdout(), m)
			return nil
		},
	}
	cmd.Flags().Duration("timeout", 10*time.Second, "timeout for fetching remote models")
	return cmd
}
