package export

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"hcai-scorer/internal/dataset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const predictionsCSV = `PatientEncounterID,Prediction,Factor1TXT
1,0.25,A1CNBR
2,None,LDLNBR
3,0.75,
`

func predictionsFrame(t *testing.T) *dataset.Frame {
	t.Helper()
	f, err := dataset.ReadCSV(strings.NewReader(predictionsCSV), dataset.Options{})
	require.NoError(t, err)
	return f
}

type mockMetrics struct {
	mu       sync.Mutex
	exported map[string]float64
	errors   map[string]int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{exported: map[string]float64{}, errors: map[string]int{}}
}

func (m *mockMetrics) ExportedRowsAdd(sink string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exported[sink] += v
}

func (m *mockMetrics) ExportErrorsInc(sink string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[sink]++
}

type failingSink struct{ closed bool }

func (s *failingSink) Name() string { return "failing" }
func (s *failingSink) Write(context.Context, *dataset.Frame) error {
	return errors.New("disk full")
}
func (s *failingSink) Close() error { s.closed = true; return nil }

func TestCSVSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "ClinicalPredictions.csv")
	sink := NewCSVSink(path, true)

	require.NoError(t, sink.Write(context.Background(), predictionsFrame(t)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ",PatientEncounterID,Prediction,Factor1TXT\n0,1,0.25,A1CNBR\n1,2,,LDLNBR\n2,3,0.75,\n", string(data))

	// a second write replaces the file
	require.NoError(t, NewCSVSink(path, false).Write(context.Background(), predictionsFrame(t).Head(1)))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "PatientEncounterID,Prediction,Factor1TXT\n1,0.25,A1CNBR\n", string(data))
}

func TestSQLSink_SQLiteAppend(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "database.db")
	sink, err := NewSQLSink(DriverSQLite, BuildSQLiteDSN(dbPath), "prediction_output", "dbo")
	require.NoError(t, err)
	defer sink.Close()

	ctx := context.Background()
	require.NoError(t, sink.Write(ctx, predictionsFrame(t)))
	require.NoError(t, sink.Write(ctx, predictionsFrame(t)), "second write appends")

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count, nulls int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM prediction_output`).Scan(&count))
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM prediction_output WHERE Prediction IS NULL`).Scan(&nulls))
	assert.Equal(t, 6, count)
	assert.Equal(t, 2, nulls)

	var factor string
	var pred float64
	require.NoError(t, db.QueryRow(
		`SELECT Prediction, Factor1TXT FROM prediction_output WHERE PatientEncounterID = 1 LIMIT 1`,
	).Scan(&pred, &factor))
	assert.Equal(t, 0.25, pred)
	assert.Equal(t, "A1CNBR", factor)

	var storedAs string
	require.NoError(t, db.QueryRow(
		`SELECT typeof(PatientEncounterID) FROM prediction_output LIMIT 1`,
	).Scan(&storedAs))
	assert.Equal(t, "integer", storedAs)
}

func TestSQLSink_ColumnTypes(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "types.db")
	sink, err := NewSQLSink(DriverSQLite, BuildSQLiteDSN(dbPath), "typed", "")
	require.NoError(t, err)
	defer sink.Close()
	require.NoError(t, sink.Write(context.Background(), predictionsFrame(t)))

	var grainType, predType, factorType string
	require.NoError(t, sink.db.QueryRow(`SELECT
		(SELECT type FROM pragma_table_info('typed') WHERE name = 'PatientEncounterID'),
		(SELECT type FROM pragma_table_info('typed') WHERE name = 'Prediction'),
		(SELECT type FROM pragma_table_info('typed') WHERE name = 'Factor1TXT')`,
	).Scan(&grainType, &predType, &factorType))
	assert.Equal(t, "INTEGER", grainType)
	assert.Equal(t, "REAL", predType)
	assert.Equal(t, "TEXT", factorType)

	for driver, want := range map[string]string{DriverMySQL: "BIGINT", DriverSQLServer: "BIGINT"} {
		assert.Equal(t, want, dialects[driver].intType, driver)
	}
}

func TestSQLSink_WithDBLeavesPoolOpen(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "shared.db"))
	require.NoError(t, err)
	defer db.Close()

	sink, err := NewSQLSinkWithDB(db, DriverSQLite, "out", "")
	require.NoError(t, err)
	require.NoError(t, sink.Write(context.Background(), predictionsFrame(t)))
	require.NoError(t, sink.Close())

	assert.NoError(t, db.Ping())
}

func TestNewSQLSink_Validation(t *testing.T) {
	_, err := NewSQLSinkWithDB(nil, "oracle", "t", "")
	assert.Error(t, err)

	_, err = NewSQLSinkWithDB(nil, DriverSQLite, "", "")
	assert.Error(t, err)
}

func TestSQLSink_Dialects(t *testing.T) {
	mssql, err := NewSQLSinkWithDB(nil, DriverSQLServer, "HCAIPredictionRegressionBASE", "dbo")
	require.NoError(t, err)
	assert.Equal(t, "[dbo].[HCAIPredictionRegressionBASE]", mssql.qualifiedTable())
	assert.Equal(t, "@p2", mssql.dialect.placeholder(2))
	assert.Contains(t,
		mssql.dialect.createTable(mssql.qualifiedTable(), "T", "dbo", "[a] FLOAT"),
		"IF OBJECT_ID(N'dbo.T', N'U') IS NULL")

	my, err := NewSQLSinkWithDB(nil, DriverMySQL, "prediction_output", "")
	require.NoError(t, err)
	assert.Equal(t, "`prediction_output`", my.qualifiedTable())
	assert.Equal(t, "?", my.dialect.placeholder(3))
}

func TestBuildDSNs(t *testing.T) {
	ms := BuildMSSQLDSN("localhost", "SAM", "", "")
	assert.True(t, strings.HasPrefix(ms, "sqlserver://localhost?"), ms)
	assert.Contains(t, ms, "database=SAM")

	ms = BuildMSSQLDSN("db:1433", "ClinicalData", "svc", "p@ss")
	assert.Contains(t, ms, "svc:p%40ss@db:1433")

	my := BuildMySQLDSN("localhost:3306", "my_database", "fake_user", "fake_password")
	assert.True(t, strings.HasPrefix(my, "fake_user:fake_password@tcp(localhost:3306)/my_database"), my)

	assert.Equal(t, "x.db?_journal_mode=WAL&_busy_timeout=5000", BuildSQLiteDSN("x.db"))
}

func TestBoltSink(t *testing.T) {
	sink, err := NewBoltSink(t.TempDir(), "model.json")
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Write(context.Background(), predictionsFrame(t)))
	runID := sink.LastRun()
	require.NotEmpty(t, runID)

	run, err := sink.Store().GetRun(runID)
	require.NoError(t, err)
	assert.Equal(t, 3, run.Rows)
	assert.Equal(t, "model.json", run.Model)

	rows, err := sink.Rows(runID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "LDLNBR", rows[1].Values["Factor1TXT"])
	assert.Equal(t, "", rows[1].Values["Prediction"])

	require.NoError(t, sink.Write(context.Background(), predictionsFrame(t).Head(1)))
	runs, err := sink.Runs()
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestWriteAll(t *testing.T) {
	dir := t.TempDir()
	csvSink := NewCSVSink(filepath.Join(dir, "p.csv"), false)
	bad := &failingSink{}
	metrics := newMockMetrics()

	err := WriteAll(context.Background(), predictionsFrame(t), []Sink{bad, csvSink}, metrics)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing")

	_, statErr := os.Stat(filepath.Join(dir, "p.csv"))
	assert.NoError(t, statErr, "later sinks still run after a failure")
	assert.Equal(t, 3.0, metrics.exported["csv"])
	assert.Equal(t, 1, metrics.errors["failing"])

	require.NoError(t, CloseAll([]Sink{bad, csvSink}))
	assert.True(t, bad.closed)
}

func TestWriteAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WriteAll(ctx, predictionsFrame(t), []Sink{NewCSVSink(filepath.Join(t.TempDir(), "p.csv"), false)}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
