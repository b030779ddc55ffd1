package export

import (
	"context"
	"time"

	"hcai-scorer/internal/dataset"
	"hcai-scorer/internal/storage"

	"github.com/google/uuid"
)

// BoltSink stores every written frame as a new run in the local prediction store.
type BoltSink struct {
	store *storage.Store
	model string
	now   func() time.Time

	lastRun string
}

// NewBoltSink opens the prediction store in dataPath. model is recorded with each run.
func NewBoltSink(dataPath, model string) (*BoltSink, error) {
	store, err := storage.New(dataPath)
	if err != nil {
		return nil, err
	}
	return &BoltSink{store: store, model: model, now: time.Now}, nil
}

func (s *BoltSink) Name() string { return "boltdb" }

func (s *BoltSink) Write(ctx context.Context, f *dataset.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	names := f.Names()
	rows := f.Rows()
	records := make([]storage.PredictionRecord, len(rows))
	for i, row := range rows {
		values := make(map[string]string, len(names))
		for j, n := range names {
			values[n] = row[j]
		}
		records[i] = storage.PredictionRecord{Row: i, Values: values}
	}

	run := storage.RunRecord{
		ID:        uuid.NewString(),
		Model:     s.model,
		Rows:      len(rows),
		Columns:   names,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.StoreRun(run, records); err != nil {
		return err
	}
	s.lastRun = run.ID
	return nil
}

// LastRun is the id of the most recently stored run.
func (s *BoltSink) LastRun() string {
	return s.lastRun
}

// Store exposes the underlying prediction store for reads.
func (s *BoltSink) Store() *storage.Store {
	return s.store
}

// Runs lists stored runs, oldest first.
func (s *BoltSink) Runs() ([]storage.RunRecord, error) {
	return s.store.ListRuns()
}

// Rows returns the prediction rows of a run in row order.
func (s *BoltSink) Rows(runID string) ([]storage.PredictionRecord, error) {
	return s.store.GetPredictions(runID)
}

func (s *BoltSink) Close() error {
	return s.store.Close()
}
