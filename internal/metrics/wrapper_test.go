package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecorder(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())
	r := NewRecorder(m)

	require.NotNil(t, r)
	assert.Same(t, m, r.m)
}

func TestRecorder_ModelMetrics(t *testing.T) {
	m := New()
	r := NewRecorder(m)

	r.PredictionsAdd(5)
	r.FactorsAdd(5)
	r.FailuresInc()
	r.ModelAgeSet(120)
	r.LatencyObserve(0.002)
	r.PredictionValueObserve(0.4)

	assert.Equal(t, 5.0, testutil.ToFloat64(m.Predictions))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.Factors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Failures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.ModelAge))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Latency))
}

func TestRecorder_ExportMetrics(t *testing.T) {
	m := New()
	r := NewRecorder(m)

	r.ExportedRowsAdd("csv", 10)
	r.ExportedRowsAdd("sqlite3", 4)
	r.ExportErrorsInc("sqlite3")

	assert.Equal(t, 10.0, testutil.ToFloat64(m.ExportedRows.WithLabelValues("csv")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ExportedRows.WithLabelValues("sqlite3")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExportErrors.WithLabelValues("sqlite3")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal))
}

func TestMetrics_GetErrorRate(t *testing.T) {
	m := New()
	assert.Equal(t, 0.0, m.GetErrorRate())

	r := NewRecorder(m)
	r.PredictionsAdd(8)
	r.FailuresInc()
	r.FailuresInc()
	assert.Equal(t, 0.25, m.GetErrorRate())
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a := New()
	b := New()
	NewRecorder(a).PredictionsAdd(1)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Predictions))
}

func TestRecorder_Concurrent(t *testing.T) {
	m := New()
	r := NewRecorder(m)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.PredictionsAdd(1)
				r.ExportedRowsAdd("csv", 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000.0, testutil.ToFloat64(m.Predictions))
	assert.Equal(t, 1000.0, testutil.ToFloat64(m.ExportedRows.WithLabelValues("csv")))
}

func TestMetrics_Push(t *testing.T) {
	var (
		mu   sync.Mutex
		path string
		body string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		path, body = r.URL.Path, string(data)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New()
	NewRecorder(m).PredictionsAdd(3)
	require.NoError(t, m.Push(context.Background(), srv.URL, "hcai_predict"))

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, strings.HasSuffix(path, "/job/hcai_predict"), "path %s", path)
	assert.NotEmpty(t, body)

	assert.NoError(t, m.Push(context.Background(), "", "ignored"), "empty URL is a no-op")
}
