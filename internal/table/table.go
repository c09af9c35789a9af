// Package table defines the in-memory tabular value passed between pipeline
// steps, plus the I/O used to load tables from source URIs and write them to
// destination files.
//
// A Table is column-ordered and row-major. Cell values are the natural Go
// types produced by the source (string for CSV cells, int64/float64/string
// for SQL results); a nil cell represents NULL / missing.
package table

// Table is a named-column, row-major tabular value.
type Table struct {
	Columns []string
	Rows    [][]any
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the position of the named column, or -1 if absent.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns all values of the named column in row order.
// The second return is false when the column does not exist.
func (t *Table) Column(name string) ([]any, bool) {
	ix := t.ColumnIndex(name)
	if ix < 0 {
		return nil, false
	}
	out := make([]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		var v any
		if ix < len(row) {
			v = row[ix]
		}
		out = append(out, v)
	}
	return out, true
}
