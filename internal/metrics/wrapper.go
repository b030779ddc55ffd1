package metrics

// Recorder adapts Metrics to the narrow interfaces used by the model and
// export packages, so neither has to import Prometheus.
type Recorder struct {
	m *Metrics
}

func NewRecorder(m *Metrics) *Recorder {
	return &Recorder{m: m}
}

func (r *Recorder) PredictionsAdd(v float64) {
	r.m.Predictions.Add(v)
}

func (r *Recorder) FailuresInc() {
	r.m.Failures.Inc()
	r.m.ErrorsTotal.Inc()
}

func (r *Recorder) LatencyObserve(v float64) {
	r.m.Latency.Observe(v)
}

func (r *Recorder) ModelAgeSet(v float64) {
	r.m.ModelAge.Set(v)
}

func (r *Recorder) PredictionValueObserve(v float64) {
	r.m.PredictionValues.Observe(v)
}

func (r *Recorder) FactorsAdd(v float64) {
	r.m.Factors.Add(v)
}

func (r *Recorder) RowsLoadedAdd(v float64) {
	r.m.RowsLoaded.Add(v)
}

func (r *Recorder) DriftedInputsAdd(v float64) {
	r.m.DriftedInputs.Add(v)
}

func (r *Recorder) ExportedRowsAdd(sink string, v float64) {
	r.m.ExportedRows.WithLabelValues(sink).Add(v)
}

func (r *Recorder) ExportErrorsInc(sink string) {
	r.m.ExportErrors.WithLabelValues(sink).Inc()
	r.m.ErrorsTotal.Inc()
}
