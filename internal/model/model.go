// Package model holds the trained model artifact and everything that scores a
// dataset with it: predictions, per-row explanatory factors, the combined
// output layouts, drift checks against the training distribution and a small
// on-disk registry of saved model versions.
//
// A saved model is a JSON document describing a standardized linear model
// (regression) or a logistic model (classification). Loading accepts a local
// path or an http(s) URL.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// Model types.
const (
	Regression     = "regression"
	Classification = "classification"
)

// DefaultFactorCount is used when neither the caller nor the artifact set k.
const DefaultFactorCount = 3

var (
	ErrFeatureMismatch = errors.New("feature count mismatch")
	ErrUnknownType     = errors.New("unknown model type")
	ErrInvalidModel    = errors.New("invalid model artifact")
)

// MetricsInterface defines metrics methods needed while scoring.
type MetricsInterface interface {
	PredictionsAdd(float64)
	FailuresInc()
	LatencyObserve(float64)
	ModelAgeSet(float64)
	PredictionValueObserve(float64)
	FactorsAdd(float64)
}

// TrainedModel is a deserialized model ready to score data.
type TrainedModel struct {
	Type             string             `json:"type"`
	Algorithm        string             `json:"algorithm"`
	FeatureNames     []string           `json:"column_names"`
	GrainColumn      string             `json:"grain_column,omitempty"`
	PredictionColumn string             `json:"prediction_column"`
	Metrics          map[string]float64 `json:"metrics"`
	Coefficients     []float64          `json:"coefficients"`
	Intercept        float64            `json:"intercept"`
	Means            []float64          `json:"means"`
	Scales           []float64          `json:"scales"`
	FactorCount      int                `json:"factor_count,omitempty"`
	TrainedAt        time.Time          `json:"trained_at"`

	mu      sync.Mutex
	source  string
	metrics MetricsInterface
}

// LoadSavedModel loads a model from a file path or URL.
func LoadSavedModel(path string) (*TrainedModel, error) {
	return LoadSavedModelWithMetrics(path, nil, 10*time.Second)
}

// LoadSavedModelWithMetrics loads a model and reports scoring activity to metrics.
// The timeout applies to remote artifacts only.
func LoadSavedModelWithMetrics(path string, metrics MetricsInterface, timeout time.Duration) (*TrainedModel, error) {
	var (
		data []byte
		err  error
	)
	if isURL(path) {
		data, err = fetch(path, timeout)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model %s: %w", path, err)
	}

	m, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", path, err)
	}
	m.source = path
	m.metrics = metrics

	if metrics != nil && !m.TrainedAt.IsZero() {
		metrics.ModelAgeSet(time.Since(m.TrainedAt).Seconds())
	}

	log.Info().
		Str("model_path", path).
		Str("type", m.Type).
		Str("algorithm", m.Algorithm).
		Int("features", len(m.FeatureNames)).
		Msg("Saved model loaded successfully")

	return m, nil
}

// Decode parses and validates a JSON model artifact.
func Decode(data []byte) (*TrainedModel, error) {
	var m TrainedModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the artifact is internally consistent.
func (m *TrainedModel) Validate() error {
	switch m.Type {
	case Regression, Classification:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}

	n := len(m.FeatureNames)
	if n == 0 {
		return fmt.Errorf("%w: no feature columns", ErrInvalidModel)
	}
	if len(m.Coefficients) != n {
		return fmt.Errorf("%w: %d coefficients for %d features", ErrFeatureMismatch, len(m.Coefficients), n)
	}
	if len(m.Means) != n || len(m.Scales) != n {
		return fmt.Errorf("%w: means/scales must have %d entries", ErrFeatureMismatch, n)
	}

	seen := make(map[string]bool, n)
	for i, name := range m.FeatureNames {
		if seen[name] {
			return fmt.Errorf("%w: duplicate feature %q", ErrInvalidModel, name)
		}
		seen[name] = true
		if m.Scales[i] == 0 || math.IsNaN(m.Scales[i]) || math.IsInf(m.Scales[i], 0) {
			return fmt.Errorf("%w: feature %q has invalid scale %v", ErrInvalidModel, name, m.Scales[i])
		}
		if !finite(m.Coefficients[i]) || !finite(m.Means[i]) {
			return fmt.Errorf("%w: feature %q has non-finite parameters", ErrInvalidModel, name)
		}
	}
	if !finite(m.Intercept) {
		return fmt.Errorf("%w: non-finite intercept %v", ErrInvalidModel, m.Intercept)
	}
	if m.GrainColumn != "" && seen[m.GrainColumn] {
		return fmt.Errorf("%w: grain column %q cannot be a feature", ErrInvalidModel, m.GrainColumn)
	}
	if m.FactorCount < 0 {
		return fmt.Errorf("%w: negative factor count", ErrInvalidModel)
	}
	return nil
}

// Save writes the artifact as indented JSON.
func (m *TrainedModel) Save(path string) error {
	if err := m.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o600)
}

// Source is the path or URL the model was loaded from.
func (m *TrainedModel) Source() string {
	return m.source
}

// SetMetrics attaches a metrics sink; nil disables reporting.
func (m *TrainedModel) SetMetrics(metrics MetricsInterface) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = metrics
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// IsClassification reports whether predictions are probabilities.
func (m *TrainedModel) IsClassification() bool {
	return m.Type == Classification
}

func (m *TrainedModel) factorCount(k int) int {
	if k <= 0 {
		k = m.FactorCount
	}
	if k <= 0 {
		k = DefaultFactorCount
	}
	if k > len(m.FeatureNames) {
		k = len(m.FeatureNames)
	}
	return k
}

func (m *TrainedModel) metricsSink() MetricsInterface {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metrics
}

func isURL(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

func fetch(url string, timeout time.Duration) ([]byte, error) {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond)

	resp, err := client.R().
		SetHeader("Accept", "application/json").
		Get(url)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}
