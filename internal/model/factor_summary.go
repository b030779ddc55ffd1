package model

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FactorStats aggregates how a feature appeared among the top factors.
type FactorStats struct {
	Name        string    `json:"name"`
	Appearances int64     `json:"appearances"`
	TopCount    int64     `json:"top_count"`
	MeanRank    float64   `json:"mean_rank"`
	LastUpdated time.Time `json:"last_updated"`
}

// FactorSummary tracks top-factor frequencies across one or more scoring runs.
type FactorSummary struct {
	mu       sync.RWMutex
	stats    map[string]*FactorStats
	rows     int64
	savePath string
}

// NewFactorSummary creates a summary for the given feature names. savePath may be empty.
func NewFactorSummary(featureNames []string, savePath string) *FactorSummary {
	fs := &FactorSummary{
		stats:    make(map[string]*FactorStats, len(featureNames)),
		savePath: savePath,
	}
	for _, name := range featureNames {
		fs.stats[name] = &FactorStats{Name: name}
	}
	return fs
}

// Observe records the ranked factors of scored rows.
func (fs *FactorSummary) Observe(factors [][]string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	now := time.Now()
	for _, row := range factors {
		fs.rows++
		for rank, name := range row {
			st, ok := fs.stats[name]
			if !ok {
				st = &FactorStats{Name: name}
				fs.stats[name] = st
			}
			st.Appearances++
			if rank == 0 {
				st.TopCount++
			}
			// incremental mean of the 1-based rank
			st.MeanRank += (float64(rank+1) - st.MeanRank) / float64(st.Appearances)
			st.LastUpdated = now
		}
	}
}

// Rows is the number of scored rows observed.
func (fs *FactorSummary) Rows() int64 {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.rows
}

// Stats returns a copy of the per-feature statistics.
func (fs *FactorSummary) Stats() map[string]FactorStats {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	out := make(map[string]FactorStats, len(fs.stats))
	for name, st := range fs.stats {
		out[name] = *st
	}
	return out
}

// Top returns the n features that appeared most often, ties by lower mean rank then name.
func (fs *FactorSummary) Top(n int) []FactorStats {
	fs.mu.RLock()
	list := make([]FactorStats, 0, len(fs.stats))
	for _, st := range fs.stats {
		if st.Appearances > 0 {
			list = append(list, *st)
		}
	}
	fs.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].Appearances != list[j].Appearances {
			return list[i].Appearances > list[j].Appearances
		}
		if list[i].MeanRank != list[j].MeanRank {
			return list[i].MeanRank < list[j].MeanRank
		}
		return list[i].Name < list[j].Name
	})

	if n > 0 && n < len(list) {
		list = list[:n]
	}
	return list
}

// Save writes the summary to its save path as JSON.
func (fs *FactorSummary) Save() error {
	if fs.savePath == "" {
		return nil
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(fs.savePath), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(struct {
		Rows    int64                   `json:"rows"`
		Factors map[string]*FactorStats `json:"factors"`
	}{fs.rows, fs.stats}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(fs.savePath, data, 0o600)
}

// Reset clears all observations.
func (fs *FactorSummary) Reset() {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for name := range fs.stats {
		fs.stats[name] = &FactorStats{Name: name}
	}
	fs.rows = 0
}
