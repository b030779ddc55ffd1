package dataset

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/rs/zerolog/log"
)

// DefaultNAValues are the cell values treated as missing when none are configured.
var DefaultNAValues = []string{"None", "NA", "NaN", ""}

// ErrEmpty is returned for input that has no header row.
var ErrEmpty = errors.New("dataset is empty")

// Options control how a dataset is parsed.
type Options struct {
	// NAValues are cell values treated as missing.
	NAValues []string
	// Delimiter defaults to ','.
	Delimiter rune
}

func (o Options) naValues() []string {
	if len(o.NAValues) == 0 {
		return DefaultNAValues
	}
	return o.NAValues
}

// LoadCSV reads a CSV file with a header row.
func LoadCSV(path string, opts Options) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	f, err := ReadCSV(bufio.NewReader(file), opts)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	log.Info().
		Str("file", path).
		Int("rows", f.Nrow()).
		Int("columns", f.Ncol()).
		Msg("CSV data loaded successfully")

	return f, nil
}

// ReadCSV parses CSV content from r.
func ReadCSV(r io.Reader, opts Options) (*Frame, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	return fromRecords(records, opts)
}

// LoadSQL runs query against db and loads the result set.
func LoadSQL(ctx context.Context, db *sql.DB, query string, opts Options) (*Frame, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	records := [][]string{cols}
	for rows.Next() {
		values := make([]sql.NullString, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", len(records), err)
		}

		rec := make([]string, len(cols))
		for i, v := range values {
			if v.Valid {
				rec[i] = v.String
			} else {
				rec[i] = "NA"
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	if len(opts.NAValues) > 0 && !contains(opts.NAValues, "NA") {
		opts.NAValues = append(append([]string{}, opts.NAValues...), "NA")
	}

	f, err := fromRecords(records, opts)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("rows", f.Nrow()).
		Int("columns", f.Ncol()).
		Msg("SQL data loaded successfully")

	return f, nil
}

func fromRecords(records [][]string, opts Options) (*Frame, error) {
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, ErrEmpty
	}

	header := records[0]
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			return nil, fmt.Errorf("header column %d is blank", i)
		}
		if seen[h] {
			return nil, fmt.Errorf("duplicate header column %q", h)
		}
		seen[h] = true
		header[i] = h
	}

	// gota refuses a header with no data rows, so build the empty columns directly.
	if len(records) == 1 {
		cols := make([]series.Series, len(header))
		for i, h := range header {
			cols[i] = series.New([]string{}, series.String, h)
		}
		return FromColumns(cols...)
	}

	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.NaNValues(opts.naValues()),
	)
	return FromDataFrame(df)
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
