package pipeline

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"hcai-scorer/internal/model"
)

// FormatMetrics renders model metrics as {name: value, ...} sorted by name.
func FormatMetrics(metrics map[string]float64) string {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("'%s': %s", name, strconv.FormatFloat(metrics[name], 'g', -1, 64))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Describe prints the properties of a saved model.
func Describe(w io.Writer, m *model.TrainedModel) {
	fmt.Fprintf(w, "source:            %s\n", m.Source())
	fmt.Fprintf(w, "type:              %s\n", m.Type)
	fmt.Fprintf(w, "algorithm:         %s\n", m.Algorithm)
	if !m.TrainedAt.IsZero() {
		fmt.Fprintf(w, "trained at:        %s\n", m.TrainedAt.UTC().Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(w, "metrics:           %s\n", FormatMetrics(m.Metrics))
	fmt.Fprintf(w, "column names:      %s\n", strings.Join(m.FeatureNames, ", "))
	fmt.Fprintf(w, "grain column:      %s\n", m.GrainColumn)
	fmt.Fprintf(w, "prediction column: %s\n", m.PredictionColumn)
}
