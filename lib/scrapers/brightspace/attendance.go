package brightspace

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"edubag/lib/tabular"
)

// Statuses a session cell may hold: Present, Remote, Absent, Excused.
var Statuses = []string{"P", "R", "A", "X"}

const scoreColumn = "% Attendance"

var identifierColumns = []string{"First Name", "Last Name", UsernameColumn}

// Attendance is an attendance register exported from Brightspace.
type Attendance struct {
	Data *tabular.Table
	// Sessions are the columns holding per-session statuses, after the
	// unrecorded ones are dropped.
	Sessions []string
}

// ParseAttendance reads a register CSV export. Columns are the student
// identifiers, one column per session, summary counts per status and a
// "% Attendance" score. Session columns that were never recorded (every
// cell "-") are dropped; remaining "-" cells count as absences. The summary
// counts and the score are recomputed rather than trusted.
func ParseAttendance(r io.Reader) (*Attendance, error) {
	data, err := tabular.ReadCSV(r)
	if err != nil {
		return nil, fmt.Errorf("parse attendance csv: %w", err)
	}

	data.DropColumn(eolColumn)
	for i, c := range data.Columns {
		data.Columns[i] = strings.TrimSpace(c)
	}
	if !data.HasColumn(UsernameColumn) {
		return nil, fmt.Errorf("attendance register must have a %q column", UsernameColumn)
	}

	skip := map[string]bool{scoreColumn: true}
	for _, c := range identifierColumns {
		skip[c] = true
	}
	for _, s := range Statuses {
		skip[s] = true
	}

	var unrecorded []string
	for _, col := range data.Columns {
		if skip[col] {
			continue
		}
		allDashes := true
		for i := 0; i < data.NumRows(); i++ {
			if data.Get(i, col) != "-" {
				allDashes = false
				break
			}
		}
		if allDashes {
			unrecorded = append(unrecorded, col)
		}
	}
	for _, col := range unrecorded {
		data.DropColumn(col)
	}

	var sessions []string
	for _, col := range data.Columns {
		if skip[col] {
			continue
		}
		for i := 0; i < data.NumRows(); i++ {
			if data.Get(i, col) == "-" {
				data.Set(i, col, "A")
			}
		}
		sessions = append(sessions, col)
	}

	for _, status := range Statuses {
		data.AddColumn(status, "")
	}
	data.AddColumn(scoreColumn, "")
	for i := 0; i < data.NumRows(); i++ {
		counts := map[string]int{}
		for _, col := range sessions {
			counts[data.Get(i, col)]++
		}
		for _, status := range Statuses {
			data.Set(i, status, strconv.Itoa(counts[status]))
		}
		data.Set(i, scoreColumn, formatScore(counts))
	}

	return &Attendance{Data: data, Sessions: sessions}, nil
}

// formatScore computes (P + 0.5R)/(P + R + A). Excused sessions do not
// count either way.
func formatScore(counts map[string]int) string {
	total := counts["P"] + counts["R"] + counts["A"]
	if total == 0 {
		return "0"
	}
	score := (float64(counts["P"]) + 0.5*float64(counts["R"])) / float64(total)
	return strconv.FormatFloat(score, 'g', -1, 64)
}
