package model

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu          sync.Mutex
	predictions float64
	failures    int
	latencySum  float64
	latencyObs  int
	modelAge    float64
	factors     float64
	values      []float64
}

func (m *MockMetrics) PredictionsAdd(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions += v
}

func (m *MockMetrics) FailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) LatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
	m.latencyObs++
}

func (m *MockMetrics) ModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

func (m *MockMetrics) PredictionValueObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = append(m.values, v)
}

func (m *MockMetrics) FactorsAdd(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factors += v
}

// NewTestModel returns a small regression model over three clinical features.
// Means are zero and scales one, so contributions equal coefficient * value.
func NewTestModel() *TrainedModel {
	return &TrainedModel{
		Type:             Regression,
		Algorithm:        "LinearRegression",
		FeatureNames:     []string{"SystolicBPNBR", "LDLNBR", "A1CNBR"},
		GrainColumn:      "PatientEncounterID",
		PredictionColumn: "SystolicBPNBR_next",
		Metrics:          map[string]float64{"mean_squared_error": 12.5, "mean_absolute_error": 2.75},
		Coefficients:     []float64{1, 2, -1},
		Intercept:        10,
		Means:            []float64{0, 0, 0},
		Scales:           []float64{1, 1, 1},
		FactorCount:      2,
	}
}
