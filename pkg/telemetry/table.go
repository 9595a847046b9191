package telemetry

import (
	"errors"
	"fmt"
)

// TimeColumn is the timestamp column name used by every telemetry table.
const TimeColumn = "Time (ns)"

// ErrColumnNotFound reports a lookup of a column the table does not carry.
var ErrColumnNotFound = errors.New("column not found")

// Table is a fully materialized telemetry trace: one nanosecond timestamp per row
// plus a fixed set of named numeric columns.
type Table struct {
	columns []string
	index   map[string]int
	times   []int64
	values  [][]float64
}

// NewTable creates an empty table with the given data columns (the timestamp is implicit).
func NewTable(columns []string) (*Table, error) {
	index := make(map[string]int, len(columns))
	for i, name := range columns {
		if name == "" {
			return nil, fmt.Errorf("column %d has an empty name", i)
		}
		if name == TimeColumn {
			return nil, fmt.Errorf("column %q is reserved for timestamps", name)
		}
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		index[name] = i
	}
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{columns: cols, index: index}, nil
}

// Append adds one row. values must be given in column order.
func (t *Table) Append(timeNS int64, values []float64) error {
	if len(values) != len(t.columns) {
		return fmt.Errorf("row at %d has %d values, want %d", timeNS, len(values), len(t.columns))
	}
	row := make([]float64, len(values))
	copy(row, values)
	t.times = append(t.times, timeNS)
	t.values = append(t.values, row)
	return nil
}

// Columns returns the data column names in table order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// HasColumn reports whether the table carries the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.times)
}

// Time returns the timestamp of row i.
func (t *Table) Time(i int) int64 {
	return t.times[i]
}

// Row returns an accessor for row i.
func (t *Table) Row(i int) Row {
	return Row{table: t, idx: i}
}

// Monotonic reports the first row whose timestamp decreases, or -1 when the
// timestamps are non-decreasing.
func (t *Table) Monotonic() int {
	for i := 1; i < len(t.times); i++ {
		if t.times[i] < t.times[i-1] {
			return i
		}
	}
	return -1
}

// Row is a read-only view of one table row.
type Row struct {
	table *Table
	idx   int
}

// Time returns the row timestamp in nanoseconds.
func (r Row) Time() int64 {
	return r.table.times[r.idx]
}

// Value returns the value of the named column.
func (r Row) Value(column string) (float64, error) {
	col, ok := r.table.index[column]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrColumnNotFound, column)
	}
	return r.table.values[r.idx][col], nil
}
