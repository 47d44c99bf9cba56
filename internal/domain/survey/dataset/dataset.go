// Package dataset holds the schema-less table model shared by every stage of
// the feedback pipeline.
package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Category is the semantic label assigned to a loaded table.
type Category string

const (
	CategoryDelegate Category = "delegate"
	CategoryPartner  Category = "partner"
	CategoryMaster   Category = "master"
)

// Categories returns every category in precedence order.
func Categories() []Category {
	return []Category{CategoryDelegate, CategoryPartner, CategoryMaster}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryDelegate, CategoryPartner, CategoryMaster:
		return true
	}
	return false
}

// Value is a single cell: either a string or the explicit missing marker.
type Value struct {
	text  string
	valid bool
}

// String creates a present cell.
func String(s string) Value {
	return Value{text: s, valid: true}
}

// Missing creates the missing-cell marker.
func Missing() Value {
	return Value{}
}

// Text creates a cell from raw spreadsheet text; blank text becomes missing.
func Text(raw string) Value {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Missing()
	}
	return String(s)
}

// IsMissing reports whether the cell holds no value.
func (v Value) IsMissing() bool {
	return !v.valid
}

// String returns the cell text, or "" for a missing cell.
func (v Value) String() string {
	return v.text
}

// Float coerces the cell to a number. Non-numeric and missing cells report false.
func (v Value) Float() (float64, bool) {
	if !v.valid {
		return 0, false
	}
	s := strings.TrimSpace(v.text)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Key returns the comparison key used for duplicate detection.
// Numeric text collapses to one canonical form so "5" and "5.0" compare equal.
func (v Value) Key() string {
	if !v.valid {
		return "-"
	}
	if f, ok := v.Float(); ok {
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
	}
	return "s:" + v.text
}

// Table is an ordered set of named columns and rows read from one worksheet,
// or the union of several such worksheets.
type Table struct {
	Name    string
	Source  string
	Sheet   string
	Columns []string
	Rows    [][]Value
}

// New creates an empty table with the given columns.
func New(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Width returns the number of columns.
func (t *Table) Width() int {
	if t == nil {
		return 0
	}
	return len(t.Columns)
}

// Empty reports whether the table has no rows or no columns.
func (t *Table) Empty() bool {
	return t.Len() == 0 || t.Width() == 0
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	if t == nil {
		return -1
	}
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Column returns a copy of the named column's cells, or nil when absent.
func (t *Table) Column(name string) []Value {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	out := make([]Value, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = cellAt(row, idx)
	}
	return out
}

// Cell returns the value at row i in the named column.
func (t *Table) Cell(i int, name string) Value {
	idx := t.ColumnIndex(name)
	if idx < 0 || i < 0 || i >= len(t.Rows) {
		return Missing()
	}
	return cellAt(t.Rows[i], idx)
}

// AppendRow adds a row, padding it with missing cells to the table width.
func (t *Table) AppendRow(row []Value) {
	if len(row) < len(t.Columns) {
		padded := make([]Value, len(t.Columns))
		copy(padded, row)
		row = padded
	}
	n := len(t.Columns)
	t.Rows = append(t.Rows, row[:n:n])
}

// AddColumn appends a column, or replaces it when the name already exists.
func (t *Table) AddColumn(name string, values []Value) error {
	if len(values) != len(t.Rows) {
		return fmt.Errorf("column %q has %d values, table has %d rows", name, len(values), len(t.Rows))
	}
	if idx := t.ColumnIndex(name); idx >= 0 {
		for i := range t.Rows {
			t.padRow(i)
			t.Rows[i][idx] = values[i]
		}
		return nil
	}
	for i := range t.Rows {
		t.padRow(i)
	}
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], values[i])
	}
	return nil
}

func (t *Table) padRow(i int) {
	row := t.Rows[i]
	switch {
	case len(row) < len(t.Columns):
		padded := make([]Value, len(t.Columns))
		copy(padded, row)
		t.Rows[i] = padded
	case len(row) > len(t.Columns):
		t.Rows[i] = row[:len(t.Columns):len(t.Columns)]
	}
}

// MissingCount returns the number of missing cells, skipping the named columns.
func (t *Table) MissingCount(skip ...string) int {
	if t == nil {
		return 0
	}
	skipped := make(map[int]bool, len(skip))
	for _, name := range skip {
		if idx := t.ColumnIndex(name); idx >= 0 {
			skipped[idx] = true
		}
	}
	n := 0
	for _, row := range t.Rows {
		for j := range t.Columns {
			if !skipped[j] && cellAt(row, j).IsMissing() {
				n++
			}
		}
	}
	return n
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	c := &Table{
		Name:    t.Name,
		Source:  t.Source,
		Sheet:   t.Sheet,
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([][]Value, len(t.Rows)),
	}
	for i, row := range t.Rows {
		c.Rows[i] = append([]Value(nil), row...)
	}
	return c
}

// Records returns the rows as strings, missing cells rendered as "".
func (t *Table) Records() [][]string {
	out := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		rec := make([]string, len(t.Columns))
		for j := range t.Columns {
			rec[j] = cellAt(row, j).String()
		}
		out[i] = rec
	}
	return out
}

func cellAt(row []Value, idx int) Value {
	if idx < len(row) {
		return row[idx]
	}
	return Missing()
}
