package brightspace

import (
	"fmt"
	"io"
	"strings"

	"edubag/lib/scrapers/gradescope"
	"edubag/lib/tabular"
)

const (
	UsernameColumn = "Username"
	eolColumn      = "End-of-Line Indicator"
	lineDelimiter  = "#"
)

// StripLineIndicators removes the pound symbol Brightspace prepends to the
// first entry of every row and drops the trailing indicator column.
func StripLineIndicators(t *tabular.Table) {
	if len(t.Columns) == 0 {
		return
	}
	first := t.Columns[0]
	for i := 0; i < t.NumRows(); i++ {
		t.Set(i, first, strings.TrimLeft(t.Get(i, first), lineDelimiter))
	}
	t.DropColumn(eolColumn)
}

// AddLineIndicators restores the format Brightspace expects on import.
func AddLineIndicators(t *tabular.Table) {
	if len(t.Columns) == 0 {
		return
	}
	first := t.Columns[0]
	for i := 0; i < t.NumRows(); i++ {
		t.Set(i, first, lineDelimiter+t.Get(i, first))
	}
	t.AddColumn(eolColumn, lineDelimiter)
}

// Gradebook is a class gradebook exported from Brightspace.
type Gradebook struct {
	Grades *tabular.Table
}

// ParseGradebook reads a Brightspace gradebook CSV export, stripping the
// line indicators.
func ParseGradebook(r io.Reader) (*Gradebook, error) {
	grades, err := tabular.ReadCSV(r)
	if err != nil {
		return nil, fmt.Errorf("parse gradebook csv: %w", err)
	}
	if !grades.HasColumn(UsernameColumn) {
		return nil, fmt.Errorf("gradebook must have a %q column", UsernameColumn)
	}
	StripLineIndicators(grades)
	return &Gradebook{Grades: grades}, nil
}

// ParseGradebookFile reads a gradebook export from disk.
func ParseGradebookFile(path string) (*Gradebook, error) {
	grades, err := tabular.ReadCSVFile(path)
	if err != nil {
		return nil, err
	}
	if !grades.HasColumn(UsernameColumn) {
		return nil, fmt.Errorf("gradebook must have a %q column", UsernameColumn)
	}
	StripLineIndicators(grades)
	return &Gradebook{Grades: grades}, nil
}

// WriteCSV writes a gradebook in the format Brightspace expects on import,
// with the line indicators restored.
func (g *Gradebook) WriteCSV(w io.Writer) error {
	AddLineIndicators(g.Grades)
	defer StripLineIndicators(g.Grades)
	return g.Grades.WriteCSV(w)
}

// FromScoresheet converts a Gradescope scoresheet into a gradebook holding
// a single grade item. Email localparts become Brightspace usernames. If
// itemName is empty a name is derived from the scoresheet name and its max
// score.
func FromScoresheet(sheet *gradescope.Scoresheet, itemName string) (*Gradebook, error) {
	if !sheet.Scores.HasColumn("Email") || !sheet.Scores.HasColumn("Total Score") {
		return nil, fmt.Errorf("scoresheet must have Email and Total Score columns")
	}
	if itemName == "" {
		maxPoints := ""
		if sheet.Scores.HasColumn("Max Points") && sheet.Scores.NumRows() > 0 {
			maxPoints = sheet.Scores.Get(0, "Max Points")
		}
		itemName = fmt.Sprintf("%s Points Grade <MaxScore: %s>", sheet.Name, maxPoints)
	}

	grades := tabular.New(UsernameColumn, itemName)
	for i := 0; i < sheet.Scores.NumRows(); i++ {
		username, _, _ := strings.Cut(sheet.Scores.Get(i, "Email"), "@")
		grades.AppendMap(map[string]string{
			UsernameColumn: username,
			itemName:       sheet.Scores.Get(i, "Total Score"),
		})
	}
	return &Gradebook{Grades: grades}, nil
}
