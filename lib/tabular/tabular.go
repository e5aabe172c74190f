// Package tabular is a minimal column-labeled table backed by CSV, shared
// by the roster, gradebook and engagement-source code. Cells are strings;
// callers parse numbers where a column is known to be numeric.
package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

type Table struct {
	Columns []string
	Rows    [][]string
}

func New(columns ...string) *Table {
	return &Table{Columns: columns}
}

func (t *Table) NumRows() int {
	return len(t.Rows)
}

func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

func (t *Table) Get(row int, column string) string {
	idx := t.ColumnIndex(column)
	if idx < 0 || row < 0 || row >= len(t.Rows) || idx >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][idx]
}

func (t *Table) Set(row int, column, value string) {
	idx := t.ColumnIndex(column)
	if idx < 0 {
		t.AddColumn(column, "")
		idx = len(t.Columns) - 1
	}
	for len(t.Rows[row]) < len(t.Columns) {
		t.Rows[row] = append(t.Rows[row], "")
	}
	t.Rows[row][idx] = value
}

// AddColumn appends a column filled with `fill` for every existing row.
// Adding a column that already exists is a no-op.
func (t *Table) AddColumn(name, fill string) {
	if t.HasColumn(name) {
		return
	}
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], fill)
	}
}

func (t *Table) DropColumn(name string) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return
	}
	t.Columns = append(t.Columns[:idx], t.Columns[idx+1:]...)
	for i, row := range t.Rows {
		if idx < len(row) {
			t.Rows[i] = append(row[:idx], row[idx+1:]...)
		}
	}
}

func (t *Table) RenameColumn(from, to string) {
	idx := t.ColumnIndex(from)
	if idx >= 0 {
		t.Columns[idx] = to
	}
}

func (t *Table) AppendRow(row []string) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// AppendMap appends a row given as a column name -> value mapping,
// missing columns are filled with the empty string.
func (t *Table) AppendMap(cells map[string]string) {
	row := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		row[i] = cells[c]
	}
	t.Rows = append(t.Rows, row)
}

// Select returns a copy containing only the named columns, in order.
// Columns the table does not have come back empty.
func (t *Table) Select(columns ...string) *Table {
	out := New(columns...)
	for i := range t.Rows {
		row := make([]string, len(columns))
		for j, c := range columns {
			row[j] = t.Get(i, c)
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv has no header row")
	}

	t := &Table{Columns: records[0]}
	for _, rec := range records[1:] {
		for len(rec) < len(t.Columns) {
			rec = append(rec, "")
		}
		t.Rows = append(t.Rows, rec[:len(t.Columns)])
	}
	return t, nil
}

func ReadCSVFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

func (t *Table) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	err := writer.Write(t.Columns)
	if err != nil {
		return err
	}
	err = writer.WriteAll(t.Rows)
	if err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

func (t *Table) WriteCSVFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	err = t.WriteCSV(f)
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
