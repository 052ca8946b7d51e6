package model

// Record is one parsed post, a schema-agnostic nested map
type Record map[string]interface{}

// ColumnType is the semantic type of a table column
type ColumnType string

const (
	TypeTimestamp ColumnType = "timestamp"
	TypeText      ColumnType = "text"
	TypeCategory  ColumnType = "category"
	TypeInteger   ColumnType = "integer"
	TypeFloat     ColumnType = "float"
	TypeBoolean   ColumnType = "boolean"
	TypeList      ColumnType = "list"
)

// Numeric reports whether values of the type are numbers after cleaning.
func (t ColumnType) Numeric() bool {
	return t == TypeInteger || t == TypeFloat
}

// Column describes a single column of a table
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Row holds one value per column, nil marks a missing value
type Row []interface{}

// Table is an ordered sequence of rows sharing one column schema.
type Table struct {
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// NewTable creates an empty table with a copy of the given columns.
func NewTable(columns []Column) *Table {
	cols := make([]Column, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols, Rows: make([]Row, 0)}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Index returns the position of the named column or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ColumnNames returns the ordered column names.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Value returns the value of the named column in row i, nil if the column is unknown.
func (t *Table) Value(i int, name string) interface{} {
	idx := t.Index(name)
	if idx < 0 || idx >= len(t.Rows[i]) {
		return nil
	}
	return t.Rows[i][idx]
}

// Clone returns a copy whose rows can be changed without touching t.
func (t *Table) Clone() *Table {
	out := NewTable(t.Columns)
	out.Rows = make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		row := make(Row, len(r))
		copy(row, r)
		out.Rows[i] = row
	}
	return out
}

// Filter returns a new table holding the rows for which keep returns true.
// Rows are shared with t, not copied.
func (t *Table) Filter(keep func(Row) bool) *Table {
	out := NewTable(t.Columns)
	for _, r := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}
