package gradescope

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"edubag/lib/tabular"
)

// Scoresheet holds the per-student scores of one Gradescope assignment.
type Scoresheet struct {
	// Name is derived from the export's filename, "Homework_1_scores.csv"
	// becomes "Homework 1".
	Name   string
	Scores *tabular.Table
}

// ScoresheetName derives an assignment name from a score export filename.
func ScoresheetName(filename string) string {
	base := filepath.Base(filename)
	name := base
	if strings.HasSuffix(base, "_scores.csv") {
		name = strings.TrimSuffix(base, "_scores.csv")
	} else if strings.HasSuffix(base, ".csv") {
		name = strings.TrimSuffix(base, ".csv")
	}
	return strings.ReplaceAll(name, "_", " ")
}

// ParseScoresheet reads a score export CSV. Rows whose Status is "Missing"
// are students who never submitted; dropMissing removes them. The filename
// is only used to derive the assignment name and may be empty.
func ParseScoresheet(r io.Reader, filename string, dropMissing bool) (*Scoresheet, error) {
	scores, err := tabular.ReadCSV(r)
	if err != nil {
		return nil, fmt.Errorf("parse scoresheet csv: %w", err)
	}

	if dropMissing && scores.HasColumn("Status") {
		kept := scores.Rows[:0]
		statusIdx := scores.ColumnIndex("Status")
		for _, row := range scores.Rows {
			if statusIdx < len(row) && row[statusIdx] == "Missing" {
				continue
			}
			kept = append(kept, row)
		}
		scores.Rows = kept
	}

	name := "Scoresheet"
	if filename != "" {
		name = ScoresheetName(filename)
	}
	return &Scoresheet{Name: name, Scores: scores}, nil
}

// ParseScoresheetFile reads a score export from disk, deriving the
// assignment name from the path.
func ParseScoresheetFile(path string, dropMissing bool) (*Scoresheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseScoresheet(f, path, dropMissing)
}

// BySection splits a scoresheet by the Sections column. Students without a
// section assignment are left out.
func (s *Scoresheet) BySection() map[string]*Scoresheet {
	out := map[string]*Scoresheet{}
	if !s.Scores.HasColumn("Sections") {
		return out
	}
	for i := 0; i < s.Scores.NumRows(); i++ {
		section := s.Scores.Get(i, "Sections")
		if section == "" {
			continue
		}
		sheet := out[section]
		if sheet == nil {
			sheet = &Scoresheet{Name: s.Name, Scores: tabular.New(s.Scores.Columns...)}
			out[section] = sheet
		}
		sheet.Scores.Rows = append(sheet.Scores.Rows, s.Scores.Rows[i])
	}
	return out
}
