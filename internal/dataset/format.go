package dataset

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
)

func writeCSV(w io.Writer, f *Frame, includeIndex bool) error {
	writer := csv.NewWriter(w)

	header := f.Names()
	if includeIndex {
		header = append([]string{""}, header...)
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for i, row := range f.Rows() {
		if includeIndex {
			row = append([]string{strconv.Itoa(i)}, row...)
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func render(f *Frame) string {
	names := f.Names()
	rows := f.Rows()

	widths := make([]int, len(names)+1)
	widths[0] = len(strconv.Itoa(len(rows)))
	for j, n := range names {
		widths[j+1] = len(n)
	}
	for _, row := range rows {
		for j, v := range row {
			if v == "" {
				v = "NaN"
			}
			if len(v) > widths[j+1] {
				widths[j+1] = len(v)
			}
		}
	}

	var b strings.Builder
	writeCells := func(first string, cells []string) {
		b.WriteString(pad(first, widths[0]))
		for j, c := range cells {
			b.WriteString("  ")
			b.WriteString(pad(c, widths[j+1]))
		}
		b.WriteString("\n")
	}

	writeCells("", names)
	for i, row := range rows {
		cells := make([]string, len(row))
		for j, v := range row {
			if v == "" {
				v = "NaN"
			}
			cells[j] = v
		}
		writeCells(strconv.Itoa(i), cells)
	}
	b.WriteString("[")
	b.WriteString(strconv.Itoa(len(rows)))
	b.WriteString(" rows x ")
	b.WriteString(strconv.Itoa(len(names)))
	b.WriteString(" columns]\n")
	return b.String()
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}
