package model

import (
	"fmt"
	"math"
	"sort"
	"time"

	"hcai-scorer/internal/dataset"

	"github.com/go-gota/gota/series"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

// Output column names.
const (
	PredictionColumn     = "Prediction"
	factorColumnTemplate = "Factor%dTXT"
)

// FactorColumn returns the name of the i-th (1-based) factor column.
func FactorColumn(i int) string {
	return fmt.Sprintf(factorColumnTemplate, i)
}

// standardize returns the (rows x features) matrix of z-scores. Missing values
// are imputed with the training mean, which standardizes to zero.
func (m *TrainedModel) standardize(f *dataset.Frame) (*mat.Dense, error) {
	rows, cols := f.Nrow(), len(m.FeatureNames)
	data := make([]float64, rows*cols)
	imputed := 0

	for j, name := range m.FeatureNames {
		values, err := f.Float(name)
		if err != nil {
			return nil, fmt.Errorf("model feature: %w", err)
		}
		for i, v := range values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				imputed++
				continue
			}
			data[i*cols+j] = (v - m.Means[j]) / m.Scales[j]
		}
	}

	if imputed > 0 {
		log.Debug().Int("cells", imputed).Msg("Imputed missing feature values with training means")
	}
	return mat.NewDense(rows, cols, data), nil
}

// scores computes raw model outputs for every row of f.
func (m *TrainedModel) scores(f *dataset.Frame) ([]float64, *mat.Dense, error) {
	if f.Nrow() == 0 {
		for _, name := range m.FeatureNames {
			if !f.Has(name) {
				return nil, nil, fmt.Errorf("model feature: %w: %s", dataset.ErrMissingColumn, name)
			}
		}
		return []float64{}, nil, nil
	}

	z, err := m.standardize(f)
	if err != nil {
		return nil, nil, err
	}

	coef := mat.NewVecDense(len(m.Coefficients), append([]float64(nil), m.Coefficients...))
	var out mat.VecDense
	out.MulVec(z, coef)

	preds := make([]float64, f.Nrow())
	for i := range preds {
		s := out.AtVec(i) + m.Intercept
		if m.IsClassification() {
			s = sigmoid(s)
		}
		preds[i] = s
	}
	return preds, z, nil
}

// Scores holds the predictions and the full per-row factor ranking of one
// scoring pass.
type Scores struct {
	Predictions []float64
	Ranking     [][]string
}

// Predict returns one prediction per row: the regression estimate or, for
// classification, the probability of the positive class.
func (m *TrainedModel) Predict(f *dataset.Frame) ([]float64, error) {
	start := time.Now()
	preds, _, err := m.scores(f)
	m.record(start, preds, -1, err)
	if err != nil {
		return nil, err
	}
	return preds, nil
}

// Score computes predictions and factor rankings once. Metrics are recorded
// once per row.
func (m *TrainedModel) Score(f *dataset.Frame) (*Scores, error) {
	start := time.Now()
	preds, z, err := m.scores(f)
	if err != nil {
		m.record(start, nil, -1, err)
		return nil, err
	}
	ranking := m.rank(z)
	m.record(start, preds, len(ranking), nil)
	return &Scores{Predictions: preds, Ranking: ranking}, nil
}

// Top returns the first k ranked factors of every row. k must already be clamped.
func (s *Scores) Top(k int) [][]string {
	out := make([][]string, len(s.Ranking))
	for i, row := range s.Ranking {
		out[i] = row[:k]
	}
	return out
}

// record reports a scoring call. factorRows < 0 means no factors were computed.
func (m *TrainedModel) record(start time.Time, preds []float64, factorRows int, err error) {
	metrics := m.metricsSink()
	if metrics == nil {
		return
	}
	metrics.LatencyObserve(time.Since(start).Seconds())
	if err != nil {
		metrics.FailuresInc()
		return
	}
	if preds != nil {
		metrics.PredictionsAdd(float64(len(preds)))
		for _, p := range preds {
			metrics.PredictionValueObserve(p)
		}
	}
	if factorRows >= 0 {
		metrics.FactorsAdd(float64(factorRows))
	}
}

// MakePredictions returns the grain column (when present) and the predictions.
func (m *TrainedModel) MakePredictions(f *dataset.Frame) (*dataset.Frame, error) {
	preds, err := m.Predict(f)
	if err != nil {
		return nil, err
	}
	return m.PredictionsFrame(f, &Scores{Predictions: preds})
}

// TopFactors ranks features per row by their contribution to the linear score,
// largest first. k <= 0 uses the model default.
func (m *TrainedModel) TopFactors(f *dataset.Frame, k int) ([][]string, error) {
	start := time.Now()
	_, z, err := m.scores(f)
	if err != nil {
		m.record(start, nil, -1, err)
		return nil, err
	}
	ranking := m.rank(z)
	m.record(start, nil, len(ranking), nil)
	return (&Scores{Ranking: ranking}).Top(m.factorCount(k)), nil
}

// rank orders the features of every row by descending contribution coef*z.
// Ties keep feature order.
func (m *TrainedModel) rank(z *mat.Dense) [][]string {
	if z == nil {
		return [][]string{}
	}

	var contrib mat.Dense
	contrib.Apply(func(_, j int, v float64) float64 {
		return v * m.Coefficients[j]
	}, z)

	rows, cols := contrib.Dims()
	out := make([][]string, rows)
	order := make([]int, cols)
	for i := 0; i < rows; i++ {
		row := contrib.RawRowView(i)
		for j := range order {
			order[j] = j
		}
		sort.SliceStable(order, func(a, b int) bool {
			return row[order[a]] > row[order[b]]
		})

		ranked := make([]string, cols)
		for r, j := range order {
			ranked[r] = m.FeatureNames[j]
		}
		out[i] = ranked
	}
	return out
}

// MakeFactors returns the grain column (when present) and Factor1TXT..FactorkTXT.
func (m *TrainedModel) MakeFactors(f *dataset.Frame, k int) (*dataset.Frame, error) {
	factors, err := m.TopFactors(f, k)
	if err != nil {
		return nil, err
	}
	return m.FactorsFrame(f, &Scores{Ranking: factors}, k)
}

// MakePredictionsWithKFactors returns grain, prediction and the top k factors.
func (m *TrainedModel) MakePredictionsWithKFactors(f *dataset.Frame, k int) (*dataset.Frame, error) {
	s, err := m.Score(f)
	if err != nil {
		return nil, err
	}
	return m.PredictionsWithFactorsFrame(f, s, k)
}

// MakeOriginalWithPredictionsAndFactors returns every input column followed by
// the prediction and the top k factors.
func (m *TrainedModel) MakeOriginalWithPredictionsAndFactors(f *dataset.Frame, k int) (*dataset.Frame, error) {
	s, err := m.Score(f)
	if err != nil {
		return nil, err
	}
	return m.OriginalWithPredictionsAndFactorsFrame(f, s, k)
}

// PredictionsFrame builds [grain?, Prediction] from precomputed scores.
func (m *TrainedModel) PredictionsFrame(f *dataset.Frame, s *Scores) (*dataset.Frame, error) {
	if err := checkRows(f, len(s.Predictions)); err != nil {
		return nil, err
	}
	return m.withGrain(f, series.New(s.Predictions, series.Float, PredictionColumn))
}

// FactorsFrame builds [grain?, Factor1TXT..FactorkTXT] from precomputed scores.
func (m *TrainedModel) FactorsFrame(f *dataset.Frame, s *Scores, k int) (*dataset.Frame, error) {
	if err := checkRows(f, len(s.Ranking)); err != nil {
		return nil, err
	}
	k = m.factorCount(k)
	return m.withGrain(f, factorSeries(s.Top(k), k, f.Nrow())...)
}

// PredictionsWithFactorsFrame builds [grain?, Prediction, factors...] from precomputed scores.
func (m *TrainedModel) PredictionsWithFactorsFrame(f *dataset.Frame, s *Scores, k int) (*dataset.Frame, error) {
	if err := checkRows(f, len(s.Predictions), len(s.Ranking)); err != nil {
		return nil, err
	}
	k = m.factorCount(k)
	cols := []series.Series{series.New(s.Predictions, series.Float, PredictionColumn)}
	cols = append(cols, factorSeries(s.Top(k), k, f.Nrow())...)
	return m.withGrain(f, cols...)
}

// OriginalWithPredictionsAndFactorsFrame appends the prediction and factors to f.
func (m *TrainedModel) OriginalWithPredictionsAndFactorsFrame(f *dataset.Frame, s *Scores, k int) (*dataset.Frame, error) {
	if err := checkRows(f, len(s.Predictions), len(s.Ranking)); err != nil {
		return nil, err
	}
	k = m.factorCount(k)

	out, err := f.WithColumn(series.New(s.Predictions, series.Float, PredictionColumn))
	if err != nil {
		return nil, err
	}
	for _, col := range factorSeries(s.Top(k), k, f.Nrow()) {
		if out, err = out.WithColumn(col); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func checkRows(f *dataset.Frame, counts ...int) error {
	for _, n := range counts {
		if n != f.Nrow() {
			return fmt.Errorf("scores cover %d rows, frame has %d", n, f.Nrow())
		}
	}
	return nil
}

func (m *TrainedModel) withGrain(f *dataset.Frame, cols ...series.Series) (*dataset.Frame, error) {
	if m.GrainColumn != "" && f.Has(m.GrainColumn) {
		grain, err := f.Col(m.GrainColumn)
		if err != nil {
			return nil, err
		}
		cols = append([]series.Series{grain.Copy()}, cols...)
	}
	return dataset.FromColumns(cols...)
}

func factorSeries(factors [][]string, k, rows int) []series.Series {
	out := make([]series.Series, k)
	for r := 0; r < k; r++ {
		values := make([]string, rows)
		for i := range values {
			values[i] = factors[i][r]
		}
		out[r] = series.New(values, series.String, FactorColumn(r+1))
	}
	return out
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
