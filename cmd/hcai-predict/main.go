// Package main is the entry point for the hcai-predict CLI. It scores patient
// data with a saved model and manages the local model registry.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// version is set at build time via ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hcai-predict",
		Short: "Score clinical data with a saved healthcare.ai model",
		Long: `hcai-predict loads a saved model, scores a CSV file or database query with it
and writes the predictions and their top factors to CSV files and databases.

Models are JSON artifacts with timestamped names such as
2017-05-31T12-36-21_regression_LinearRegression.json. The models subcommand
manages a directory of them.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			setupLogging(level)
			return nil
		},
	}

	root.PersistentFlags().String("config", "", "config file (default: $CONFIG_FILE, else environment only)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(newPredictCmd(), newInspectCmd(), newModelsCmd())
	return root
}

// setupLogging configures the global logger. An empty or unknown level keeps info.
func setupLogging(levelName string) {
	level, err := zerolog.ParseLevel(levelName)
	if err != nil || levelName == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("hcai-predict failed")
		stop()
		os.Exit(1)
	}
}
