package metrics

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Entity is one class or function row of the export.
type Entity struct {
	Name    string             `json:"name" yaml:"name"`
	Kind    string             `json:"kind" yaml:"kind"`
	File    string             `json:"file,omitempty" yaml:"file,omitempty"`
	Line    int                `json:"line,omitempty" yaml:"line,omitempty"`
	Metrics map[string]float64 `json:"metrics" yaml:"metrics"`
}

// Report groups the exported metrics the way the dashboard consumes them.
type Report struct {
	ProjectMetrics    map[string]float64 `json:"project_metrics" yaml:"project_metrics"`
	ClassMetrics      []Entity           `json:"class_metrics" yaml:"class_metrics"`
	CyclomaticMetrics []Entity           `json:"cyclomatic_metrics" yaml:"cyclomatic_metrics"`
}

// CyclomaticMetric is the per-function complexity column.
const CyclomaticMetric = "Cyclomatic"

var functionKinds = []string{"Function", "Method", "Procedure", "Subroutine", "Task", "Constructor"}

// IsClassKind reports whether an Understand kind name denotes a class.
func IsClassKind(kind string) bool {
	return strings.Contains(kind, "Class")
}

// IsFunctionKind reports whether an Understand kind name denotes a callable.
func IsFunctionKind(kind string) bool {
	for _, k := range functionKinds {
		if strings.Contains(kind, k) {
			return true
		}
	}
	return false
}

// ParseCSV reads an Understand metrics export. Columns named Kind, Name,
// File and Line describe the entity; every other column is a metric. Empty
// cells are skipped.
func ParseCSV(r io.Reader) (*Report, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoOutput
		}
		return nil, fmt.Errorf("reading metrics header: %w", err)
	}

	cols := map[string]int{"kind": -1, "name": -1, "file": -1, "line": -1}
	metricCols := map[int]string{}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, ok := cols[strings.ToLower(h)]; ok {
			cols[strings.ToLower(h)] = i
			continue
		}
		metricCols[i] = h
	}
	if cols["kind"] < 0 || cols["name"] < 0 {
		return nil, fmt.Errorf("metrics export lacks Kind/Name columns: %v", header)
	}

	report := &Report{
		ProjectMetrics:    map[string]float64{},
		ClassMetrics:      []Entity{},
		CyclomaticMetrics: []Entity{},
	}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading metrics row: %w", err)
		}

		values := map[string]float64{}
		for i, name := range metricCols {
			if i >= len(rec) {
				continue
			}
			raw := strings.TrimSpace(rec[i])
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				continue
			}
			values[name] = v
		}

		kind := cell(rec, cols["kind"])
		switch {
		case strings.Contains(kind, "Project"):
			for k, v := range values {
				report.ProjectMetrics[k] = v
			}
		case IsClassKind(kind):
			delete(values, CyclomaticMetric)
			report.ClassMetrics = append(report.ClassMetrics, newEntity(rec, cols, kind, values))
		case IsFunctionKind(kind):
			v, ok := values[CyclomaticMetric]
			if !ok {
				continue
			}
			report.CyclomaticMetrics = append(report.CyclomaticMetrics,
				newEntity(rec, cols, kind, map[string]float64{CyclomaticMetric: v}))
		}
	}
	return report, nil
}

func newEntity(rec []string, cols map[string]int, kind string, values map[string]float64) Entity {
	e := Entity{
		Name:    cell(rec, cols["name"]),
		Kind:    kind,
		File:    cell(rec, cols["file"]),
		Metrics: values,
	}
	if n, err := strconv.Atoi(cell(rec, cols["line"])); err == nil {
		e.Line = n
	}
	return e
}

func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// TopComplex returns up to n functions ordered by descending cyclomatic
// complexity, ties by name.
func (r *Report) TopComplex(n int) []Entity {
	out := append([]Entity(nil), r.CyclomaticMetrics...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Metrics[CyclomaticMetric], out[j].Metrics[CyclomaticMetric]
		if a != b {
			return a > b
		}
		return out[i].Name < out[j].Name
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
