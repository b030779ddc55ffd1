package model

import (
	"time"

	"hcai-scorer/internal/dataset"

	"github.com/go-gota/gota/series"
)

// Health Catalyst EDW output columns.
const (
	BindingIDColumn      = "BindingID"
	BindingNMColumn      = "BindingNM"
	LastLoadDTSColumn    = "LastLoadDTS"
	PredictedProbColumn  = "PredictedProbNBR"
	PredictedValueColumn = "PredictedValueNBR"

	// BindingName identifies rows written by this tool.
	BindingName = "Go"
	timeLayout  = "2006-01-02 15:04:05.000"
)

// CreateCatalystFrame builds the EDW (SAM) layout: binding columns, load
// timestamp, grain, prediction and the top k factors.
func (m *TrainedModel) CreateCatalystFrame(f *dataset.Frame, k int, now time.Time) (*dataset.Frame, error) {
	s, err := m.Score(f)
	if err != nil {
		return nil, err
	}
	return m.CatalystFrame(f, s, k, now)
}

// CatalystFrame builds the EDW layout from precomputed scores.
func (m *TrainedModel) CatalystFrame(f *dataset.Frame, s *Scores, k int, now time.Time) (*dataset.Frame, error) {
	withFactors, err := m.PredictionsWithFactorsFrame(f, s, k)
	if err != nil {
		return nil, err
	}

	rows := f.Nrow()
	ids := make([]int, rows)
	names := make([]string, rows)
	loaded := make([]string, rows)
	stamp := now.UTC().Format(timeLayout)
	for i := 0; i < rows; i++ {
		names[i] = BindingName
		loaded[i] = stamp
	}

	binding, err := dataset.FromColumns(
		series.New(ids, series.Int, BindingIDColumn),
		series.New(names, series.String, BindingNMColumn),
		series.New(loaded, series.String, LastLoadDTSColumn),
	)
	if err != nil {
		return nil, err
	}

	out, err := binding.Concat(withFactors)
	if err != nil {
		return nil, err
	}

	predicted := PredictedValueColumn
	if m.IsClassification() {
		predicted = PredictedProbColumn
	}
	df := out.DataFrame().Rename(predicted, PredictionColumn)
	return dataset.FromDataFrame(df)
}
