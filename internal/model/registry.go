package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	versionsFile  = "model_versions.json"
	versionLayout = "2006-01-02T15-04-05"
)

// ModelVersion represents a saved model in the registry.
type ModelVersion struct {
	Version   string             `json:"version"`
	Path      string             `json:"path"`
	Type      string             `json:"type"`
	Algorithm string             `json:"algorithm"`
	CreatedAt time.Time          `json:"created_at"`
	Metrics   map[string]float64 `json:"metrics"`
	IsActive  bool               `json:"is_active"`
}

// Registry stores timestamped model artifacts in a directory and tracks which
// one is active.
type Registry struct {
	dir      string
	versions []ModelVersion
	current  *ModelVersion
	now      func() time.Time
}

// NewRegistry opens (or starts) the registry in dir.
func NewRegistry(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create model directory: %w", err)
	}

	r := &Registry{
		dir:      dir,
		versions: make([]ModelVersion, 0),
		now:      time.Now,
	}
	if err := r.load(); err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("Failed to load model versions, starting fresh")
		r.versions = r.versions[:0]
	}
	return r, nil
}

// FileName returns the timestamped artifact name for a model, e.g.
// 2017-05-31T12-36-21_regression_LinearRegression.json.
func FileName(version string, m *TrainedModel) string {
	algorithm := m.Algorithm
	if algorithm == "" {
		algorithm = "Model"
	}
	return fmt.Sprintf("%s_%s_%s.json", version, m.Type, algorithm)
}

// Register saves m into the registry directory and records a new, inactive version.
func (r *Registry) Register(m *TrainedModel) (ModelVersion, error) {
	created := r.now()
	version := created.Format(versionLayout)
	for i := 1; r.find(version) >= 0; i++ {
		version = fmt.Sprintf("%s-%d", created.Format(versionLayout), i)
	}

	path := filepath.Join(r.dir, FileName(version, m))
	if err := m.Save(path); err != nil {
		return ModelVersion{}, fmt.Errorf("save model: %w", err)
	}

	mv := ModelVersion{
		Version:   version,
		Path:      path,
		Type:      m.Type,
		Algorithm: m.Algorithm,
		CreatedAt: created,
		Metrics:   m.Metrics,
	}
	r.versions = append(r.versions, mv)
	r.sort()

	log.Info().Str("version", version).Str("path", path).Msg("Model registered")
	return mv, r.save()
}

// Activate marks version as the active model.
func (r *Registry) Activate(version string) error {
	if r.find(version) < 0 {
		return fmt.Errorf("version %s not found", version)
	}

	r.current = nil
	for i := range r.versions {
		r.versions[i].IsActive = r.versions[i].Version == version
		if r.versions[i].IsActive {
			r.current = &r.versions[i]
		}
	}
	return r.save()
}

// Rollback activates the version registered before the active one.
func (r *Registry) Rollback() error {
	if len(r.versions) < 2 {
		return fmt.Errorf("no previous version available for rollback")
	}

	idx := -1
	for i, v := range r.versions {
		if v.IsActive {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("no active version found")
	}
	// versions are sorted newest first
	if idx+1 < len(r.versions) {
		return r.Activate(r.versions[idx+1].Version)
	}
	return fmt.Errorf("no previous version available")
}

// Current returns the active version, or nil.
func (r *Registry) Current() *ModelVersion {
	return r.current
}

// List returns all versions, newest first.
func (r *Registry) List() []ModelVersion {
	out := make([]ModelVersion, len(r.versions))
	copy(out, r.versions)
	return out
}

// Latest resolves the artifact to score with: the active version, else the
// newest registered one, else the newest timestamped file in the directory.
func (r *Registry) Latest() (string, error) {
	if r.current != nil {
		return r.current.Path, nil
	}
	if len(r.versions) > 0 {
		return r.versions[0].Path, nil
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return "", err
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == versionsFile || !strings.HasSuffix(name, ".json") {
			continue
		}
		if _, err := time.Parse(versionLayout, strings.SplitN(name, "_", 2)[0]); err != nil {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no saved models in %s", r.dir)
	}
	sort.Strings(names)
	return filepath.Join(r.dir, names[len(names)-1]), nil
}

func (r *Registry) find(version string) int {
	for i, v := range r.versions {
		if v.Version == version {
			return i
		}
	}
	return -1
}

func (r *Registry) sort() {
	active := ""
	if r.current != nil {
		active = r.current.Version
	}
	sort.SliceStable(r.versions, func(i, j int) bool {
		return r.versions[i].CreatedAt.After(r.versions[j].CreatedAt)
	})
	// the slice moved, so re-point current
	r.current = nil
	for i := range r.versions {
		if r.versions[i].Version == active {
			r.current = &r.versions[i]
		}
	}
}

func (r *Registry) load() error {
	data, err := os.ReadFile(filepath.Join(r.dir, versionsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := json.Unmarshal(data, &r.versions); err != nil {
		return err
	}

	for i := range r.versions {
		if r.versions[i].IsActive {
			r.current = &r.versions[i]
			break
		}
	}
	r.sort()
	return nil
}

func (r *Registry) save() error {
	data, err := json.MarshalIndent(r.versions, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(r.dir, versionsFile), data, 0o600)
}
