package tabular

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestReadWriteRoundTrip(t *testing.T) {
	in := "Username,First Name,Last Name\nmpl123,Matthew,Leingang\nab456,Alice,Baker\n"

	table, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, []string{"Username", "First Name", "Last Name"}, table.Columns)
	require.Equal(t, 2, table.NumRows())
	require.Equal(t, "Alice", table.Get(1, "First Name"))

	var out bytes.Buffer
	err = table.WriteCSV(&out)
	require.NoError(t, err)
	require.Equal(t, in, out.String())
}

func TestRaggedRowsArePadded(t *testing.T) {
	table, err := ReadCSV(strings.NewReader("A,B,C\n1,2\n"))
	require.NoError(t, err)
	require.Equal(t, "", table.Get(0, "C"))
}

func TestColumnOps(t *testing.T) {
	table := New("Username", "Score")
	table.AppendMap(map[string]string{"Username": "ab456", "Score": "10"})
	table.AppendMap(map[string]string{"Username": "cd789"})

	table.AddColumn("Section", "001")
	require.Equal(t, "001", table.Get(1, "Section"))

	table.Set(1, "Score", "8")
	require.Equal(t, "8", table.Get(1, "Score"))

	table.RenameColumn("Score", "Points")
	require.Equal(t, "10", table.Get(0, "Points"))

	table.DropColumn("Section")
	require.False(t, table.HasColumn("Section"))

	selected := table.Select("Points", "Username")
	diff := cmp.Diff(&Table{
		Columns: []string{"Points", "Username"},
		Rows:    [][]string{{"10", "ab456"}, {"8", "cd789"}},
	}, selected)
	require.Empty(t, diff)
}

func TestAppendRowLengthMismatch(t *testing.T) {
	table := New("A", "B")
	require.Error(t, table.AppendRow([]string{"only one"}))
	require.NoError(t, table.AppendRow([]string{"1", "2"}))
}
