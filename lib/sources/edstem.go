package sources

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"edubag/lib/tabular"
)

// metricColumns are the EdSTEM engagement counters that must be numeric.
var metricColumns = []string{
	"Posts", "Answers", "Reactions", "Questions", "Announcements",
	"Comments", "Accepted Answers", "Hearts", "Endorsements",
}

// Edstem is an EdSTEM analytics export.
type Edstem struct {
	TableSource
}

// ParseEdstem reads an EdSTEM analytics CSV. Non-numeric metric cells are
// coerced to 0 and only rows with the student role are kept.
func ParseEdstem(r io.Reader) (*Edstem, error) {
	data, err := tabular.ReadCSV(r)
	if err != nil {
		return nil, fmt.Errorf("parse edstem csv: %w", err)
	}
	for i, c := range data.Columns {
		data.Columns[i] = strings.TrimSpace(c)
	}

	for _, col := range metricColumns {
		if !data.HasColumn(col) {
			continue
		}
		for i := 0; i < data.NumRows(); i++ {
			if _, err := strconv.ParseFloat(data.Get(i, col), 64); err != nil {
				data.Set(i, col, "0")
			}
		}
	}

	if data.HasColumn("Role") {
		kept := data.Rows[:0]
		roleIdx := data.ColumnIndex("Role")
		for _, row := range data.Rows {
			if roleIdx < len(row) && strings.EqualFold(row[roleIdx], "student") {
				kept = append(kept, row)
			}
		}
		data.Rows = kept
	}

	return &Edstem{TableSource{
		Data: data,
		Meta: map[string]string{"type": "edstem"},
	}}, nil
}

// LoadEdstem reads an analytics export from disk.
func LoadEdstem(path string) (*Edstem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	src, err := ParseEdstem(f)
	if err != nil {
		return nil, err
	}
	src.Meta["source"] = path
	return src, nil
}
