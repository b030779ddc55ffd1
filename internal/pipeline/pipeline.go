// Package pipeline runs a complete scoring pass: load the dataset, load the
// saved model, make every kind of prediction output, print the heads of the
// intermediate tables and export the results.
package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	"hcai-scorer/internal/cfg"
	"hcai-scorer/internal/dataset"
	"hcai-scorer/internal/export"
	"hcai-scorer/internal/metrics"
	"hcai-scorer/internal/model"

	"github.com/rs/zerolog/log"
)

// PushJob is the Pushgateway job name used for scoring runs.
const PushJob = "hcai_predict"

// Result summarizes a finished run.
type Result struct {
	ModelPath   string
	Rows        int
	Columns     int
	Predictions int
	Drift       []model.DriftAlert
	Outputs     []string
	RunID       string
	Duration    time.Duration
}

// Runner executes scoring runs with fixed settings.
type Runner struct {
	settings cfg.Settings
	metrics  *metrics.Metrics
	recorder *metrics.Recorder
	now      func() time.Time
}

// New creates a runner. m may be nil, in which case a private registry is used.
func New(settings cfg.Settings, m *metrics.Metrics) *Runner {
	if m == nil {
		m = metrics.New()
	}
	return &Runner{
		settings: settings,
		metrics:  m,
		recorder: metrics.NewRecorder(m),
		now:      time.Now,
	}
}

// Metrics returns the metrics the runner records into.
func (r *Runner) Metrics() *metrics.Metrics {
	return r.metrics
}

// Run scores the configured input and writes the outputs. Progress and the
// head of each intermediate table are printed to out.
func (r *Runner) Run(ctx context.Context, out io.Writer) (Result, error) {
	start := r.now()
	s := r.settings

	data, err := r.loadInput(ctx)
	if err != nil {
		r.metrics.ErrorsTotal.Inc()
		return Result{}, fmt.Errorf("load input: %w", err)
	}
	r.recorder.RowsLoadedAdd(float64(data.Nrow()))

	if len(s.DropColumns) > 0 {
		if data, err = data.Drop(s.DropColumns...); err != nil {
			r.metrics.ErrorsTotal.Inc()
			return Result{}, fmt.Errorf("drop columns: %w", err)
		}
	}

	modelPath, err := ResolveModelPath(s)
	if err != nil {
		r.metrics.ErrorsTotal.Inc()
		return Result{}, err
	}
	trained, err := model.LoadSavedModelWithMetrics(modelPath, r.recorder, s.ModelTimeout)
	if err != nil {
		r.metrics.ErrorsTotal.Inc()
		return Result{}, err
	}

	result := Result{
		ModelPath: modelPath,
		Rows:      data.Nrow(),
		Columns:   data.Ncol(),
	}

	fmt.Fprintln(out, FormatMetrics(trained.Metrics))

	alerts, err := trained.CheckDrift(data, s.DriftThreshold)
	if err != nil {
		r.metrics.ErrorsTotal.Inc()
		return result, fmt.Errorf("drift check: %w", err)
	}
	result.Drift = alerts
	r.recorder.DriftedInputsAdd(float64(len(alerts)))

	// Scored once; every output below is built from the same scores.
	scores, err := trained.Score(data)
	if err != nil {
		return result, err
	}
	result.Predictions = len(scores.Predictions)

	// Only the factors table takes the configured count; the combined
	// outputs use the model's own default.
	k := s.FactorCount

	banner(out, "Predictions")
	predictions, err := trained.PredictionsFrame(data, scores)
	if err != nil {
		return result, err
	}
	r.printHead(out, predictions)

	if err := ctx.Err(); err != nil {
		return result, err
	}

	banner(out, "Factors")
	factors, err := trained.FactorsFrame(data, scores, k)
	if err != nil {
		return result, err
	}
	r.printHead(out, factors)

	banner(out, "Predictions + factors")
	withFactors, err := trained.PredictionsWithFactorsFrame(data, scores, 0)
	if err != nil {
		return result, err
	}
	r.printHead(out, withFactors)

	banner(out, "Original + predictions + factors")
	original, err := trained.OriginalWithPredictionsAndFactorsFrame(data, scores, 0)
	if err != nil {
		return result, err
	}
	r.printHead(out, original)

	var catalyst *dataset.Frame
	if s.Catalyst {
		banner(out, "Catalyst SAM")
		if catalyst, err = trained.CatalystFrame(data, scores, 0, r.now()); err != nil {
			return result, err
		}
		r.printHead(out, catalyst)
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	targets, err := r.buildTargets(trained)
	if err != nil {
		r.metrics.ErrorsTotal.Inc()
		return result, err
	}
	defer func() {
		for _, t := range targets {
			if err := export.CloseAll(t.sinks); err != nil {
				log.Warn().Err(err).Msg("Failed to close sink")
			}
		}
	}()

	frames := map[frameKind]*dataset.Frame{
		framePredictions: predictions,
		frameWithFactors: withFactors,
		frameCatalyst:    catalyst,
	}
	var exportErr error
	for _, t := range targets {
		if err := export.WriteAll(ctx, frames[t.kind], t.sinks, r.recorder); err != nil {
			r.metrics.ErrorsTotal.Inc()
			if exportErr == nil {
				exportErr = err
			}
		}
		for _, sink := range t.sinks {
			result.Outputs = append(result.Outputs, sink.Name())
			if b, ok := sink.(*export.BoltSink); ok {
				result.RunID = b.LastRun()
			}
		}
	}

	if s.SummaryPath != "" {
		if err := r.summarize(trained, scores, k); err != nil {
			log.Warn().Err(err).Str("path", s.SummaryPath).Msg("Failed to save factor summary")
		}
	}

	if err := r.metrics.Push(ctx, s.PushgatewayURL, PushJob); err != nil {
		log.Warn().Err(err).Str("url", s.PushgatewayURL).Msg("Failed to push metrics")
	}

	result.Duration = r.now().Sub(start)
	log.Info().
		Str("model_path", modelPath).
		Int("rows", result.Rows).
		Strs("outputs", result.Outputs).
		Int("drifted_features", len(alerts)).
		Float64("error_rate", r.metrics.GetErrorRate()).
		Dur("duration", result.Duration).
		Msg("Scoring run finished")

	return result, exportErr
}

// ResolveModelPath returns the configured model path, or the latest artifact
// in the model directory.
func ResolveModelPath(s cfg.Settings) (string, error) {
	if s.ModelPath != "" {
		return s.ModelPath, nil
	}
	registry, err := model.NewRegistry(s.ModelDir)
	if err != nil {
		return "", err
	}
	path, err := registry.Latest()
	if err != nil {
		return "", fmt.Errorf("resolve model in %s: %w", s.ModelDir, err)
	}
	return path, nil
}

func (r *Runner) loadInput(ctx context.Context) (*dataset.Frame, error) {
	s := r.settings
	opts := dataset.Options{NAValues: s.NAValues}

	if s.InputDriver == "" {
		return dataset.LoadCSV(s.InputPath, opts)
	}

	db, err := sql.Open(s.InputDriver, s.InputDSN)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	f, err := dataset.LoadSQL(ctx, db, s.InputQuery, opts)
	if err != nil {
		return nil, err
	}
	log.Info().Str("driver", s.InputDriver).Int("rows", f.Nrow()).Msg("Query data loaded successfully")
	return f, nil
}

func (r *Runner) summarize(m *model.TrainedModel, scores *model.Scores, k int) error {
	summary := model.NewFactorSummary(m.FeatureNames, r.settings.SummaryPath)
	summary.Observe(scores.Top(min(k, len(m.FeatureNames))))
	return summary.Save()
}

func (r *Runner) printHead(out io.Writer, f *dataset.Frame) {
	if r.settings.HeadRows == 0 {
		return
	}
	fmt.Fprintln(out, f.Head(r.settings.HeadRows).String())
}

func banner(out io.Writer, title string) {
	fmt.Fprintf(out, "\n\n-------------------[ %s ]%s\n\n", title, strings.Repeat("-", 52))
}
