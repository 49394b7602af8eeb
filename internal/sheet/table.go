// Package sheet holds the in-memory table the batch runs over and reads and
// writes it as xlsx or csv.
package sheet

import (
	"errors"
	"fmt"
)

// ErrColumnNotFound is returned when a named column does not exist.
var ErrColumnNotFound = errors.New("column not found")

// Cell is one table value. Absent values have Valid == false and are written as
// empty cells.
type Cell struct {
	Value string
	Valid bool
}

// String returns a present cell.
func String(v string) Cell {
	return Cell{Value: v, Valid: true}
}

// Null is the absent cell.
var Null = Cell{}

// Optional returns Null for an empty string and a present cell otherwise.
func Optional(v string) Cell {
	if v == "" {
		return Null
	}
	return String(v)
}

// Table is a header row plus data rows. Every row has one cell per column.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]Cell
}

// NewTable returns an empty table with the given header.
func NewTable(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// Len is the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// AppendRow adds a row, padding or truncating it to the header width.
func (t *Table) AppendRow(cells ...Cell) {
	row := make([]Cell, len(t.Columns))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) ([]Cell, error) {
	idx := t.Index(name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	out := make([]Cell, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// SetColumn replaces the named column, or appends it when absent. cells must
// have one entry per row; a table with no columns takes its row count from cells.
func (t *Table) SetColumn(name string, cells []Cell) error {
	if len(t.Columns) == 0 && len(t.Rows) == 0 {
		t.Rows = make([][]Cell, len(cells))
	}
	if len(cells) != len(t.Rows) {
		return fmt.Errorf("column %q has %d cells, table has %d rows", name, len(cells), len(t.Rows))
	}
	idx := t.Index(name)
	if idx < 0 {
		t.Columns = append(t.Columns, name)
		for i := range t.Rows {
			t.Rows[i] = append(t.Rows[i], cells[i])
		}
		return nil
	}
	for i := range t.Rows {
		t.Rows[i][idx] = cells[i]
	}
	return nil
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := &Table{Name: t.Name, Columns: append([]string(nil), t.Columns...)}
	out.Rows = make([][]Cell, len(t.Rows))
	for i, row := range t.Rows {
		out.Rows[i] = append([]Cell(nil), row...)
	}
	return out
}
