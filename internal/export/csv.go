package export

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"hcai-scorer/internal/dataset"
)

// CSVSink writes a frame to a CSV file, replacing any previous content.
type CSVSink struct {
	Path string
	// IncludeIndex adds a leading unnamed column with the row number.
	IncludeIndex bool
}

func NewCSVSink(path string, includeIndex bool) *CSVSink {
	return &CSVSink{Path: path, IncludeIndex: includeIndex}
}

func (s *CSVSink) Name() string { return "csv" }

func (s *CSVSink) Write(_ context.Context, f *dataset.Frame) error {
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := os.Create(s.Path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", s.Path, err)
	}

	w := bufio.NewWriter(file)
	if err := f.WriteCSV(w, s.IncludeIndex); err != nil {
		file.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func (s *CSVSink) Close() error { return nil }
