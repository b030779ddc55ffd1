// Package export writes scored frames to their destinations: CSV files,
// relational databases (SQLite, MySQL, SQL Server) and the local BoltDB
// prediction store.
package export

import (
	"context"
	"fmt"

	"hcai-scorer/internal/dataset"

	"github.com/rs/zerolog/log"
)

// Sink is a destination for scored rows.
type Sink interface {
	Name() string
	Write(ctx context.Context, f *dataset.Frame) error
	Close() error
}

// MetricsInterface defines the metrics methods sinks report to.
type MetricsInterface interface {
	ExportedRowsAdd(sink string, v float64)
	ExportErrorsInc(sink string)
}

// WriteAll writes f to every sink, continuing past failures. It returns the
// first error encountered, annotated with the sink name.
func WriteAll(ctx context.Context, f *dataset.Frame, sinks []Sink, metrics MetricsInterface) error {
	var first error
	for _, s := range sinks {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.Write(ctx, f); err != nil {
			log.Error().Err(err).Str("sink", s.Name()).Msg("Export failed")
			if metrics != nil {
				metrics.ExportErrorsInc(s.Name())
			}
			if first == nil {
				first = fmt.Errorf("export to %s: %w", s.Name(), err)
			}
			continue
		}

		if metrics != nil {
			metrics.ExportedRowsAdd(s.Name(), float64(f.Nrow()))
		}
		log.Info().Str("sink", s.Name()).Int("rows", f.Nrow()).Msg("Predictions exported")
	}
	return first
}

// CloseAll closes every sink and returns the first error.
func CloseAll(sinks []Sink) error {
	var first error
	for _, s := range sinks {
		if err := s.Close(); err != nil && first == nil {
			first = fmt.Errorf("close %s: %w", s.Name(), err)
		}
	}
	return first
}
