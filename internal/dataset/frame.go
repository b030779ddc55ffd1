// Package dataset loads and reshapes the tabular patient data that is fed to a
// trained model. It wraps gota dataframes so the rest of the tool can work with
// named columns, missing values and CSV output without caring about the
// underlying representation.
package dataset

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// ErrMissingColumn is returned when an operation names a column the frame does not have.
var ErrMissingColumn = errors.New("column not found")

// Frame is an immutable table of named columns.
type Frame struct {
	df dataframe.DataFrame
}

// FromDataFrame wraps an existing gota dataframe.
func FromDataFrame(df dataframe.DataFrame) (*Frame, error) {
	if df.Err != nil {
		return nil, df.Err
	}
	return &Frame{df: df}, nil
}

// FromColumns builds a frame from series in the given order.
func FromColumns(cols ...series.Series) (*Frame, error) {
	return FromDataFrame(dataframe.New(cols...))
}

// DataFrame exposes the underlying gota dataframe.
func (f *Frame) DataFrame() dataframe.DataFrame {
	return f.df
}

func (f *Frame) Names() []string {
	return f.df.Names()
}

func (f *Frame) Nrow() int {
	return f.df.Nrow()
}

func (f *Frame) Ncol() int {
	return f.df.Ncol()
}

// Has reports whether the frame contains column name.
func (f *Frame) Has(name string) bool {
	for _, n := range f.df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// Col returns a column by name.
func (f *Frame) Col(name string) (series.Series, error) {
	if !f.Has(name) {
		return series.Series{}, fmt.Errorf("%w: %s", ErrMissingColumn, name)
	}
	return f.df.Col(name), nil
}

// Float returns a column as float64 values. Missing or unparsable cells are NaN.
func (f *Frame) Float(name string) ([]float64, error) {
	col, err := f.Col(name)
	if err != nil {
		return nil, err
	}
	if col.Type() == series.Float || col.Type() == series.Int {
		return col.Float(), nil
	}

	// String columns: parse what we can, the rest is missing.
	nan := col.IsNaN()
	out := make([]float64, col.Len())
	for i, s := range col.Records() {
		if nan[i] {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = v
	}
	return out, nil
}

// Strings returns a column formatted as strings. Missing cells are empty.
func (f *Frame) Strings(name string) ([]string, error) {
	col, err := f.Col(name)
	if err != nil {
		return nil, err
	}
	nan := col.IsNaN()
	var out []string
	if col.Type() == series.Float {
		vals := col.Float()
		out = make([]string, len(vals))
		for i, v := range vals {
			out[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	} else {
		out = col.Records()
	}
	for i := range out {
		if nan[i] {
			out[i] = ""
		}
	}
	return out, nil
}

// IsFloat reports whether column name holds numeric values.
func (f *Frame) IsFloat(name string) bool {
	if !f.Has(name) {
		return false
	}
	t := f.df.Col(name).Type()
	return t == series.Float || t == series.Int
}

// IsInt reports whether column name holds integer values.
func (f *Frame) IsInt(name string) bool {
	return f.Has(name) && f.df.Col(name).Type() == series.Int
}

// Drop returns a copy of the frame without the given columns.
func (f *Frame) Drop(columns ...string) (*Frame, error) {
	if len(columns) == 0 {
		return f, nil
	}
	for _, c := range columns {
		if !f.Has(c) {
			return nil, fmt.Errorf("drop: %w: %s", ErrMissingColumn, c)
		}
	}
	return FromDataFrame(f.df.Drop(columns))
}

// Select returns a copy holding only the given columns, in that order.
func (f *Frame) Select(columns ...string) (*Frame, error) {
	for _, c := range columns {
		if !f.Has(c) {
			return nil, fmt.Errorf("select: %w: %s", ErrMissingColumn, c)
		}
	}
	return FromDataFrame(f.df.Select(columns))
}

// WithColumn appends s, replacing an existing column with the same name.
func (f *Frame) WithColumn(s series.Series) (*Frame, error) {
	if s.Len() != f.Nrow() {
		return nil, fmt.Errorf("column %s has %d rows, frame has %d", s.Name, s.Len(), f.Nrow())
	}
	return FromDataFrame(f.df.Mutate(s))
}

// Concat places the columns of other to the right of f. Both frames need the same row count.
func (f *Frame) Concat(other *Frame) (*Frame, error) {
	if other.Nrow() != f.Nrow() {
		return nil, fmt.Errorf("concat: row count mismatch %d != %d", f.Nrow(), other.Nrow())
	}
	return FromDataFrame(f.df.CBind(other.df))
}

// Head returns the first n rows.
func (f *Frame) Head(n int) *Frame {
	if n >= f.Nrow() {
		return f
	}
	if n <= 0 {
		n = 0
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	head, err := FromDataFrame(f.df.Subset(idx))
	if err != nil {
		return f
	}
	return head
}

// Rows returns each row as strings in column order, missing cells empty.
func (f *Frame) Rows() [][]string {
	names := f.Names()
	cols := make([][]string, len(names))
	for j, n := range names {
		cols[j], _ = f.Strings(n)
	}
	rows := make([][]string, f.Nrow())
	for i := range rows {
		row := make([]string, len(names))
		for j := range names {
			row[j] = cols[j][i]
		}
		rows[i] = row
	}
	return rows
}

// WriteCSV writes the frame with a header row. When includeIndex is set a
// leading unnamed column holds the zero-based row number.
func (f *Frame) WriteCSV(w io.Writer, includeIndex bool) error {
	return writeCSV(w, f, includeIndex)
}

// String renders the frame as an aligned text table.
func (f *Frame) String() string {
	return render(f)
}
