package aggregator

import (
	"strings"
	"testing"

	"edubag/lib/scrapers/brightspace"
	"edubag/lib/sources"
	"edubag/lib/tabular"

	"github.com/stretchr/testify/require"
)

func baseGradebook(t *testing.T) *brightspace.Gradebook {
	csv := `Username,Email,End-of-Line Indicator
#al123,al123@nyu.edu,#
#cb456,cb456@nyu.edu,#
#gh789,gh789@nyu.edu,#
`
	gb, err := brightspace.ParseGradebook(strings.NewReader(csv))
	require.NoError(t, err)
	return gb
}

func attendanceSource(t *testing.T) sources.Source {
	data := tabular.New("Username", "% Attendance")
	data.AppendMap(map[string]string{"Username": "al123", "% Attendance": "1"})
	data.AppendMap(map[string]string{"Username": "cb456", "% Attendance": "0.25"})
	return sources.FromTable(data, "attendance")
}

func edstemSource(t *testing.T) sources.Source {
	data := tabular.New("Username", "Posts")
	data.AppendMap(map[string]string{"Username": "al123", "Posts": "4"})
	// a typo in the export, close enough for the similarity fallback
	data.AppendMap(map[string]string{"Username": "cb45", "Posts": "2"})
	// an identifier nothing in the gradebook resembles
	data.AppendMap(map[string]string{"Username": "visitor-xyz-0", "Posts": "9"})
	return sources.FromTable(data, "edstem")
}

func specs() []ColumnSpec {
	ten := 10.0
	return []ColumnSpec{
		{Name: "Attendance Points", Source: "attendance", Column: "% Attendance", Scale: 10, ClipUpper: &ten},
		{Name: "EdSTEM Points", Source: "edstem", Column: "Posts", Scale: 3, ClipUpper: &ten},
	}
}

func TestMergeComputeValidate(t *testing.T) {
	agg := New(baseGradebook(t), specs())
	require.NoError(t, agg.AddSource("attendance", attendanceSource(t)))
	require.NoError(t, agg.AddSource("edstem", edstemSource(t)))

	merged, err := agg.MergeSources()
	require.NoError(t, err)
	// the base gradebook decides who is in the result
	require.Equal(t, 3, merged.NumRows())
	require.Equal(t, "1", merged.Get(0, "attendance_% Attendance"))
	require.Equal(t, "4", merged.Get(0, "edstem_Posts"))
	// "cb45" linked to cb456 by similarity
	require.Equal(t, "2", merged.Get(1, "edstem_Posts"))
	// "visitor-xyz-0" was dropped

	df, err := agg.ComputeColumns()
	require.NoError(t, err)
	require.Equal(t, "10", df.Get(0, "Attendance Points"))
	require.Equal(t, "2.5", df.Get(1, "Attendance Points"))
	// 4 posts * 3, clipped at 10
	require.Equal(t, "10", df.Get(0, "EdSTEM Points"))
	require.Equal(t, "6", df.Get(1, "EdSTEM Points"))
	// gh789 has no source data at all
	require.Equal(t, "0", df.Get(2, "Attendance Points"))

	report, err := agg.Validate()
	require.NoError(t, err)
	require.Equal(t, []string{"gh789"}, report.MissingStudents)
	require.Len(t, report.FuzzyMatches, 1)
	require.Equal(t, "cb45", report.FuzzyMatches[0].Left)

	stats := report.ColumnStats["Attendance Points"]
	require.Equal(t, 3, stats.Count)
	require.Equal(t, float64(10), stats.Max)
	require.Equal(t, 1, stats.Zeros)
}

func TestToGradebook(t *testing.T) {
	agg := New(baseGradebook(t), specs())
	require.NoError(t, agg.AddSource("attendance", attendanceSource(t)))
	require.NoError(t, agg.AddSource("edstem", edstemSource(t)))
	_, err := agg.ComputeColumns()
	require.NoError(t, err)

	gb, err := agg.ToGradebook(false)
	require.NoError(t, err)
	require.Equal(t, []string{"Username", "Email", "Attendance Points", "EdSTEM Points"}, gb.Grades.Columns)

	withSources, err := agg.ToGradebook(true)
	require.NoError(t, err)
	require.True(t, withSources.Grades.HasColumn("edstem_Posts"))
}

func TestMergeWithoutBase(t *testing.T) {
	agg := New(nil, nil)
	require.NoError(t, agg.AddSource("attendance", attendanceSource(t)))

	merged, err := agg.MergeSources()
	require.NoError(t, err)
	require.Equal(t, 2, merged.NumRows())
	require.Equal(t, "0.25", merged.Get(1, "attendance_% Attendance"))
}

func TestAddSourceWithoutUsername(t *testing.T) {
	agg := New(nil, nil)
	err := agg.AddSource("bad", sources.FromTable(tabular.New("Email"), "bad"))
	require.Error(t, err)
}

func TestMergeNoSources(t *testing.T) {
	agg := New(nil, nil)
	_, err := agg.MergeSources()
	require.Error(t, err)
}
