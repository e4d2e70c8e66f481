package sheet

import (
	"math"
	"strconv"
	"strings"

	"gopkg.in/guregu/null.v3"
)

// RecordIDColumn is the join key every table carries.
const RecordIDColumn = "record_id"

// Row maps a column name to a nullable cell. Columns absent from the map are null.
type Row map[string]null.String

// Table is an ordered set of columns over participant rows.
type Table struct {
	Name    string
	columns []string
	index   map[string]int
	Rows    []Row
}

// NewTable creates an empty table with the given column order. Duplicate
// column names are ignored after their first occurrence.
func NewTable(name string, columns ...string) *Table {
	t := &Table{Name: name, index: make(map[string]int)}
	for _, c := range columns {
		t.AddColumn(c)
	}
	return t
}

// NormalizeID trims and upper-cases a participant identifier.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// Columns returns a copy of the column order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// AddColumn appends a column if it is not already present.
func (t *Table) AddColumn(name string) {
	if t.HasColumn(name) {
		return
	}
	t.index[name] = len(t.columns)
	t.columns = append(t.columns, name)
}

// SetColumnOrder replaces the column order. order must be a permutation of
// the current columns; anything else is rejected and the table is unchanged.
func (t *Table) SetColumnOrder(order []string) bool {
	if len(order) != len(t.columns) {
		return false
	}
	seen := make(map[string]bool, len(order))
	for _, c := range order {
		if !t.HasColumn(c) || seen[c] {
			return false
		}
		seen[c] = true
	}
	t.columns = append([]string(nil), order...)
	t.reindex()
	return true
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.columns))
	for i, c := range t.columns {
		t.index[c] = i
	}
}

func (t *Table) Len() int { return len(t.Rows) }

// AppendRow adds a row, registering any columns it introduces.
func (t *Table) AppendRow(r Row) {
	for c := range r {
		t.AddColumn(c)
	}
	t.Rows = append(t.Rows, r)
}

// RecordID returns the row's join key.
func (r Row) RecordID() string {
	return r[RecordIDColumn].ValueOrZero()
}

// Get returns the cell for column; absent columns are null.
func (r Row) Get(column string) null.String {
	return r[column]
}

// Float coerces the cell to a number. Non-numeric values are null.
func (r Row) Float(column string) null.Float {
	return ParseFloat(r[column])
}

// SetString stores a nullable string cell.
func (r Row) SetString(column string, v null.String) {
	r[column] = v
}

// SetFloat stores a nullable number, formatted without trailing zeros.
func (r Row) SetFloat(column string, v null.Float) {
	if !v.Valid {
		r[column] = null.String{}
		return
	}
	r[column] = null.StringFrom(FormatFloat(v.Float64))
}

// SetInt stores a nullable integer.
func (r Row) SetInt(column string, v null.Int) {
	if !v.Valid {
		r[column] = null.String{}
		return
	}
	r[column] = null.StringFrom(strconv.FormatInt(v.Int64, 10))
}

// ParseFloat converts a nullable string cell to a nullable number.
func ParseFloat(v null.String) null.Float {
	if !v.Valid {
		return null.Float{}
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.String), 64)
	if err != nil || math.IsNaN(f) {
		return null.Float{}
	}
	return null.FloatFrom(f)
}

// FormatFloat renders a number the way it is written back to sinks.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Records flattens the table into header + string records; null cells become
// empty strings.
func (t *Table) Records() ([]string, [][]string) {
	header := t.Columns()
	out := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		rec := make([]string, len(header))
		for j, c := range header {
			rec[j] = r[c].ValueOrZero()
		}
		out[i] = rec
	}
	return header, out
}

// Lookup returns the first row with the given record id.
func (t *Table) Lookup(recordID string) (Row, bool) {
	id := NormalizeID(recordID)
	for _, r := range t.Rows {
		if r.RecordID() == id {
			return r, true
		}
	}
	return nil, false
}

// Select returns a new table holding record_id plus the requested columns that
// exist, in the requested order, together with the requested columns that do not.
func (t *Table) Select(name string, columns []string) (*Table, []string) {
	out := NewTable(name, RecordIDColumn)
	var missing []string
	for _, c := range columns {
		if c == RecordIDColumn {
			continue
		}
		if !t.HasColumn(c) {
			missing = append(missing, c)
			continue
		}
		out.AddColumn(c)
	}

	cols := out.Columns()
	out.Rows = make([]Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		nr := make(Row, len(cols))
		for _, c := range cols {
			if v, ok := r[c]; ok {
				nr[c] = v
			}
		}
		out.Rows = append(out.Rows, nr)
	}
	return out, missing
}
