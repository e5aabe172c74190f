// Package aggregator merges engagement sources into a Brightspace
// gradebook. Sources are joined on Username, with a similarity fallback
// for identifiers that do not match exactly, and configured columns are
// computed from the merged data.
package aggregator

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"edubag/lib/linker"
	"edubag/lib/scrapers/brightspace"
	"edubag/lib/sources"
	"edubag/lib/tabular"
)

// FuzzyThreshold is the minimum similarity for a fuzzy username link to be
// trusted during merging.
const FuzzyThreshold = 0.93

// ColumnSpec configures one computed gradebook column.
type ColumnSpec struct {
	// Name of the resulting column.
	Name string `json:"name"`
	// Source and Column select the input cell, e.g. source "attendance"
	// column "% Attendance".
	Source string `json:"source"`
	Column string `json:"column"`
	// Scale multiplies the value; zero means no scaling.
	Scale float64 `json:"scale,omitempty"`
	// ClipUpper and ClipLower bound the scaled value when set.
	ClipUpper *float64 `json:"clip_upper,omitempty"`
	ClipLower *float64 `json:"clip_lower,omitempty"`
}

type namedSource struct {
	name string
	src  sources.Source
}

type Aggregator struct {
	sources []namedSource
	specs   []ColumnSpec
	// base restricts the result to the students of an existing gradebook.
	base   *brightspace.Gradebook
	merged *tabular.Table
	// fuzzyLinks records the inexact username matches used while merging.
	fuzzyLinks []linker.Link
}

func New(base *brightspace.Gradebook, specs []ColumnSpec) *Aggregator {
	return &Aggregator{base: base, specs: specs}
}

// AddSource registers a source under the name the column specs refer to.
// The source must already have a Username column.
func (a *Aggregator) AddSource(name string, src sources.Source) error {
	if !src.Table().HasColumn(sources.UsernameColumn) {
		return fmt.Errorf("source %q has no %s column, call ResolveIdentity first", name, sources.UsernameColumn)
	}
	a.sources = append(a.sources, namedSource{name: name, src: src})
	slog.Info("added aggregation source",
		slog.String("name", name),
		slog.Int("students", src.Table().NumRows()))
	return nil
}

// MergeSources joins every source on Username. With a base gradebook the
// result holds exactly the base's students; source usernames that do not
// match any base student exactly are linked by similarity when it clears
// FuzzyThreshold, and dropped otherwise. Without a base the result is the
// union of all source usernames.
func (a *Aggregator) MergeSources() (*tabular.Table, error) {
	if len(a.sources) == 0 {
		return nil, fmt.Errorf("no sources to merge")
	}

	var merged *tabular.Table
	if a.base != nil {
		merged = tabular.New(a.base.Grades.Columns...)
		for _, row := range a.base.Grades.Rows {
			merged.Rows = append(merged.Rows, append([]string(nil), row...))
		}
	} else {
		merged = tabular.New(sources.UsernameColumn)
		seen := map[string]bool{}
		for _, ns := range a.sources {
			table := ns.src.Table()
			for i := 0; i < table.NumRows(); i++ {
				username := table.Get(i, sources.UsernameColumn)
				if username == "" || seen[username] {
					continue
				}
				seen[username] = true
				merged.AppendMap(map[string]string{sources.UsernameColumn: username})
			}
		}
	}

	rowIndex := map[string]int{}
	for i := 0; i < merged.NumRows(); i++ {
		rowIndex[normalizeUsername(merged.Get(i, sources.UsernameColumn))] = i
	}

	a.fuzzyLinks = nil
	for _, ns := range a.sources {
		table := ns.src.Table()

		links := map[string]string{}
		if a.base != nil {
			var unmatched []string
			for i := 0; i < table.NumRows(); i++ {
				username := normalizeUsername(table.Get(i, sources.UsernameColumn))
				if _, ok := rowIndex[username]; !ok && username != "" {
					unmatched = append(unmatched, username)
				}
			}
			var baseUsernames []string
			for username := range rowIndex {
				baseUsernames = append(baseUsernames, username)
			}
			for _, link := range linker.CreateImplicitLinks(unmatched, baseUsernames) {
				if link.Correlation >= FuzzyThreshold && link.Correlation < 1 {
					links[link.Left] = link.Right
					a.fuzzyLinks = append(a.fuzzyLinks, link)
					slog.Warn("linked username by similarity",
						slog.String("source", ns.name),
						slog.String("from", link.Left),
						slog.String("to", link.Right),
						slog.Float64("correlation", link.Correlation))
				}
			}
		}

		for _, col := range table.Columns {
			if col == sources.UsernameColumn {
				continue
			}
			merged.AddColumn(ns.name+"_"+col, "")
		}
		dropped := 0
		for i := 0; i < table.NumRows(); i++ {
			username := normalizeUsername(table.Get(i, sources.UsernameColumn))
			if mapped, ok := links[username]; ok {
				username = mapped
			}
			row, ok := rowIndex[username]
			if !ok {
				dropped++
				continue
			}
			for _, col := range table.Columns {
				if col == sources.UsernameColumn {
					continue
				}
				merged.Set(row, ns.name+"_"+col, table.Get(i, col))
			}
		}
		if dropped > 0 {
			slog.Info("dropped rows with unknown usernames",
				slog.String("source", ns.name),
				slog.Int("rows", dropped))
		}
	}

	a.merged = merged
	return merged, nil
}

// normalizeUsername strips the Brightspace line indicator some exports
// carry on the username.
func normalizeUsername(username string) string {
	return strings.TrimLeft(username, "#")
}

// ComputeColumns adds the configured columns to the merged table. Cells
// that are empty or non-numeric count as zero.
func (a *Aggregator) ComputeColumns() (*tabular.Table, error) {
	if a.merged == nil {
		if _, err := a.MergeSources(); err != nil {
			return nil, err
		}
	}
	df := a.merged

	for _, spec := range a.specs {
		sourceCol := spec.Source + "_" + spec.Column
		if !df.HasColumn(sourceCol) {
			slog.Warn("configured column has no source data",
				slog.String("column", spec.Name),
				slog.String("wanted", sourceCol))
		}
		df.AddColumn(spec.Name, "")
		for i := 0; i < df.NumRows(); i++ {
			value, err := strconv.ParseFloat(df.Get(i, sourceCol), 64)
			if err != nil {
				value = 0
			}
			if spec.Scale != 0 {
				value *= spec.Scale
			}
			if spec.ClipUpper != nil && value > *spec.ClipUpper {
				value = *spec.ClipUpper
			}
			if spec.ClipLower != nil && value < *spec.ClipLower {
				value = *spec.ClipLower
			}
			df.Set(i, spec.Name, strconv.FormatFloat(value, 'g', -1, 64))
		}
	}
	return df, nil
}

// ColumnStats summarizes one computed column for the validation report.
type ColumnStats struct {
	Count int
	Mean  float64
	Min   float64
	Max   float64
	Zeros int
}

// Report is the validation result of an aggregation run.
type Report struct {
	// MissingStudents are base gradebook students no source had data for.
	MissingStudents []string
	// FuzzyMatches are the inexact username links used while merging.
	FuzzyMatches []linker.Link
	ColumnStats  map[string]ColumnStats
	Warnings     []string
}

// Validate checks the aggregated data and reports per-column statistics,
// students without any source data and suspicious value patterns.
func (a *Aggregator) Validate() (Report, error) {
	report := Report{ColumnStats: map[string]ColumnStats{}, FuzzyMatches: a.fuzzyLinks}
	if a.merged == nil {
		return report, fmt.Errorf("nothing merged yet")
	}
	df := a.merged

	covered := map[string]bool{}
	for _, ns := range a.sources {
		table := ns.src.Table()
		for i := 0; i < table.NumRows(); i++ {
			covered[normalizeUsername(table.Get(i, sources.UsernameColumn))] = true
		}
	}
	for _, link := range a.fuzzyLinks {
		covered[link.Right] = true
	}
	for i := 0; i < df.NumRows(); i++ {
		username := normalizeUsername(df.Get(i, sources.UsernameColumn))
		if !covered[username] {
			report.MissingStudents = append(report.MissingStudents, username)
		}
	}

	for _, spec := range a.specs {
		if !df.HasColumn(spec.Name) {
			continue
		}
		stats := ColumnStats{Min: 0, Max: 0}
		sum := 0.0
		for i := 0; i < df.NumRows(); i++ {
			value, err := strconv.ParseFloat(df.Get(i, spec.Name), 64)
			if err != nil {
				continue
			}
			if stats.Count == 0 || value < stats.Min {
				stats.Min = value
			}
			if stats.Count == 0 || value > stats.Max {
				stats.Max = value
			}
			if value == 0 {
				stats.Zeros++
			}
			sum += value
			stats.Count++
		}
		if stats.Count > 0 {
			stats.Mean = sum / float64(stats.Count)
			if pct := float64(stats.Zeros) / float64(stats.Count) * 100; pct > 50 {
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("%s: %.1f%% of students have zero points", spec.Name, pct))
			}
		}
		report.ColumnStats[spec.Name] = stats
	}
	return report, nil
}

// ToGradebook turns the aggregated data into a gradebook ready for import.
// Unless keepSourceColumns is set, only the base columns and the computed
// columns survive.
func (a *Aggregator) ToGradebook(keepSourceColumns bool) (*brightspace.Gradebook, error) {
	if a.merged == nil {
		if _, err := a.ComputeColumns(); err != nil {
			return nil, err
		}
	}
	df := a.merged

	if keepSourceColumns {
		return &brightspace.Gradebook{Grades: df.Select(df.Columns...)}, nil
	}

	sourcePrefixes := make([]string, len(a.sources))
	for i, ns := range a.sources {
		sourcePrefixes[i] = ns.name + "_"
	}
	var kept []string
	for _, col := range df.Columns {
		fromSource := false
		for _, prefix := range sourcePrefixes {
			if strings.HasPrefix(col, prefix) {
				fromSource = true
				break
			}
		}
		if !fromSource {
			kept = append(kept, col)
		}
	}
	return &brightspace.Gradebook{Grades: df.Select(kept...)}, nil
}
