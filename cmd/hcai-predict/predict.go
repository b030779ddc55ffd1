package main

import (
	"hcai-scorer/internal/cfg"
	"hcai-scorer/internal/pipeline"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newPredictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score a dataset and export the predictions",
		Long: `Predict loads the input data, drops identifier columns, loads the saved model
and prints the head of the predictions, the top factors, predictions with
factors and the original data with predictions and factors. The predictions
are written to the output CSV and predictions with factors to every configured
database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			if err := applyPredictFlags(cmd, &settings); err != nil {
				return err
			}

			_, err = pipeline.New(settings, nil).Run(cmd.Context(), cmd.OutOrStdout())
			return err
		},
	}

	cmd.Flags().String("input", "", "input CSV file")
	cmd.Flags().String("model", "", "saved model file or URL")
	cmd.Flags().String("model-dir", "", "model registry directory; the active or newest model is used")
	cmd.Flags().String("output", "", "predictions CSV file")
	cmd.Flags().Int("factors", 0, "number of top factors per row")
	cmd.Flags().Int("head", -1, "rows to print from each table")
	cmd.Flags().Bool("catalyst", false, "also build the Health Catalyst EDW output")
	cmd.Flags().Bool("no-index", false, "omit the row index column from the CSV")
	cmd.Flags().StringSlice("drop", nil, "columns to drop before scoring")
	return cmd
}

// loadSettings reads --config when given, otherwise the default config sources.
// A --log-level flag wins over the configured level.
func loadSettings(cmd *cobra.Command) (cfg.Settings, error) {
	var (
		settings cfg.Settings
		err      error
	)
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		settings, err = cfg.LoadFile(path)
	} else {
		settings, err = cfg.Load()
	}
	if err != nil {
		return cfg.Settings{}, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level == "" {
		if l, err := zerolog.ParseLevel(settings.LogLevel); err == nil {
			zerolog.SetGlobalLevel(l)
		}
	}
	log.Debug().Str("input", settings.InputPath).Str("model", settings.ModelPath).Msg("Configuration loaded")
	return settings, nil
}

func applyPredictFlags(cmd *cobra.Command, s *cfg.Settings) error {
	flags := cmd.Flags()
	if v, _ := flags.GetString("input"); v != "" {
		s.InputPath = v
		s.InputDriver, s.InputDSN, s.InputQuery = "", "", ""
	}
	if v, _ := flags.GetString("model"); v != "" {
		s.ModelPath = v
	}
	if v, _ := flags.GetString("model-dir"); v != "" {
		s.ModelDir = v
		if !flags.Changed("model") {
			s.ModelPath = ""
		}
	}
	if v, _ := flags.GetString("output"); v != "" {
		s.OutputPath = v
	}
	if flags.Changed("factors") {
		s.FactorCount, _ = flags.GetInt("factors")
	}
	if flags.Changed("head") {
		s.HeadRows, _ = flags.GetInt("head")
	}
	if flags.Changed("catalyst") {
		s.Catalyst, _ = flags.GetBool("catalyst")
	}
	if v, _ := flags.GetBool("no-index"); v {
		s.IncludeIndex = false
	}
	if flags.Changed("drop") {
		s.DropColumns, _ = flags.GetStringSlice("drop")
	}
	return s.Validate()
}
