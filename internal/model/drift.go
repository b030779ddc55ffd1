package model

import (
	"math"
	"sort"

	"hcai-scorer/internal/dataset"

	"github.com/rs/zerolog/log"
)

// DefaultDriftThreshold is the mean shift, in training standard deviations,
// above which a feature is reported.
const DefaultDriftThreshold = 0.5

// FeatureDistribution summarizes one feature of the scoring data.
type FeatureDistribution struct {
	Name         string  `json:"name"`
	Mean         float64 `json:"mean"`
	StandardDev  float64 `json:"standard_dev"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	MissingRatio float64 `json:"missing_ratio"`
	Shift        float64 `json:"shift"`
}

// DriftAlert flags a feature whose scoring distribution moved away from training.
type DriftAlert struct {
	Feature FeatureDistribution `json:"feature"`
	Reason  string              `json:"reason"`
}

// CheckDrift compares the scoring data with the training means. Alerts are
// ordered by decreasing shift. threshold <= 0 uses DefaultDriftThreshold.
func (m *TrainedModel) CheckDrift(f *dataset.Frame, threshold float64) ([]DriftAlert, error) {
	if threshold <= 0 {
		threshold = DefaultDriftThreshold
	}
	if f.Nrow() == 0 {
		return nil, nil
	}

	var alerts []DriftAlert
	for j, name := range m.FeatureNames {
		values, err := f.Float(name)
		if err != nil {
			return nil, err
		}

		dist := describe(name, values)
		if dist.MissingRatio == 1 {
			alerts = append(alerts, DriftAlert{Feature: dist, Reason: "all values missing"})
			continue
		}
		dist.Shift = math.Abs(dist.Mean-m.Means[j]) / math.Abs(m.Scales[j])

		switch {
		case dist.Shift > threshold:
			alerts = append(alerts, DriftAlert{Feature: dist, Reason: "mean shift"})
		case dist.MissingRatio > 0.5:
			alerts = append(alerts, DriftAlert{Feature: dist, Reason: "mostly missing"})
		}
	}

	sort.SliceStable(alerts, func(a, b int) bool {
		return alerts[a].Feature.Shift > alerts[b].Feature.Shift
	})

	for _, a := range alerts {
		log.Warn().
			Str("feature", a.Feature.Name).
			Str("reason", a.Reason).
			Float64("shift", a.Feature.Shift).
			Float64("missing_ratio", a.Feature.MissingRatio).
			Msg("Feature drift detected")
	}
	return alerts, nil
}

func describe(name string, values []float64) FeatureDistribution {
	d := FeatureDistribution{Name: name, Min: math.Inf(1), Max: math.Inf(-1)}

	var sum, sumSq float64
	n := 0
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		n++
		sum += v
		sumSq += v * v
		d.Min = math.Min(d.Min, v)
		d.Max = math.Max(d.Max, v)
	}

	if len(values) > 0 {
		d.MissingRatio = float64(len(values)-n) / float64(len(values))
	}
	if n == 0 {
		d.Min, d.Max = math.NaN(), math.NaN()
		d.Mean, d.StandardDev = math.NaN(), math.NaN()
		return d
	}

	d.Mean = sum / float64(n)
	variance := sumSq/float64(n) - d.Mean*d.Mean
	if variance > 0 {
		d.StandardDev = math.Sqrt(variance)
	}
	return d
}
