// Package storage provides persistent storage of scoring runs and their
// predictions. It uses BoltDB as the underlying storage engine so that scored
// rows can be kept locally and read back by run.
//
// Each run is recorded once in the runs bucket; its rows live in the
// predictions bucket under keys of the form "runID_rowIndex", which keeps a
// run's rows contiguous and ordered for cursor scans.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const (
	runsBucket        = "runs"        // Bucket name for run metadata
	predictionsBucket = "predictions" // Bucket name for scored rows

	// DBFileName is the database file created inside the data path.
	DBFileName = "predictions.db"
)

// RunRecord describes one scoring run.
type RunRecord struct {
	ID        string    `json:"id"`
	Model     string    `json:"model"`
	Rows      int       `json:"rows"`
	Columns   []string  `json:"columns"`
	CreatedAt time.Time `json:"created_at"`
}

// PredictionRecord is a single scored row.
type PredictionRecord struct {
	RunID  string            `json:"run_id"`
	Row    int               `json:"row"`
	Values map[string]string `json:"values"`
}

// Store provides persistent storage for predictions using BoltDB.
type Store struct {
	db *bbolt.DB
}

// New opens (creating if needed) the database in dataPath.
func New(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data path: %w", err)
	}
	dbPath := filepath.Join(dataPath, DBFileName)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return fmt.Errorf("create runs bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection. Closing twice is safe.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StoreRun writes a run and all of its rows in a single transaction.
func (s *Store) StoreRun(run RunRecord, rows []PredictionRecord) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		runs := tx.Bucket([]byte(runsBucket))
		if runs.Get([]byte(run.ID)) != nil {
			return fmt.Errorf("run %s already stored", run.ID)
		}

		data, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("marshal run: %w", err)
		}
		if err := runs.Put([]byte(run.ID), data); err != nil {
			return err
		}

		b := tx.Bucket([]byte(predictionsBucket))
		for _, rec := range rows {
			rec.RunID = run.ID
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("marshal prediction: %w", err)
			}
			if err := b.Put(rowKey(run.ID, rec.Row), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetRun returns a stored run.
func (s *Store) GetRun(id string) (RunRecord, error) {
	var run RunRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(runsBucket)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("run %s not found", id)
		}
		return json.Unmarshal(data, &run)
	})
	return run, err
}

// ListRuns returns all runs, oldest first.
func (s *Store) ListRuns() ([]RunRecord, error) {
	var runs []RunRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).ForEach(func(_, v []byte) error {
			var run RunRecord
			if err := json.Unmarshal(v, &run); err != nil {
				return nil // Skip malformed records
			}
			runs = append(runs, run)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})
	return runs, nil
}

// GetPredictions returns the rows of a run in row order.
func (s *Store) GetPredictions(runID string) ([]PredictionRecord, error) {
	var records []PredictionRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(predictionsBucket)).Cursor()
		prefix := []byte(runID + "_")

		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var rec PredictionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			records = append(records, rec)
		}
		return nil
	})

	return records, err
}

func rowKey(runID string, row int) []byte {
	return []byte(fmt.Sprintf("%s_%010d", runID, row))
}
