package table

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadCSV(t *testing.T) {
	t.Parallel()

	const src = "\ufeffid,name,city\n1,alice,prague\n2,,brno\n3,carol\n"
	tab, err := ReadCSV(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}

	wantCols := []string{"id", "name", "city"}
	if len(tab.Columns) != len(wantCols) {
		t.Fatalf("Columns = %v, want %v", tab.Columns, wantCols)
	}
	for i, c := range wantCols {
		if tab.Columns[i] != c {
			t.Errorf("Columns[%d] = %q, want %q (BOM should be stripped)", i, tab.Columns[i], c)
		}
	}
	if tab.NumRows() != 3 {
		t.Fatalf("NumRows() = %d, want 3", tab.NumRows())
	}

	// Empty cells and missing trailing cells are NULL.
	if tab.Rows[1][1] != nil {
		t.Errorf("Rows[1][1] = %v, want nil for empty cell", tab.Rows[1][1])
	}
	if tab.Rows[2][2] != nil {
		t.Errorf("Rows[2][2] = %v, want nil for short row", tab.Rows[2][2])
	}
	if tab.Rows[0][1] != "alice" {
		t.Errorf("Rows[0][1] = %v, want alice", tab.Rows[0][1])
	}
}

func TestColumn(t *testing.T) {
	t.Parallel()

	tab := &Table{
		Columns: []string{"a", "b"},
		Rows:    [][]any{{"1", "x"}, {"2", nil}},
	}

	col, ok := tab.Column("b")
	if !ok {
		t.Fatalf("Column(b) not found")
	}
	if len(col) != 2 || col[0] != "x" || col[1] != nil {
		t.Fatalf("Column(b) = %v, want [x nil]", col)
	}
	if _, ok := tab.Column("missing"); ok {
		t.Fatalf("Column(missing) found, want absent")
	}
}

func TestWrite_CSVRoundTrip(t *testing.T) {
	t.Parallel()

	tab := &Table{
		Columns: []string{"id", "name"},
		Rows:    [][]any{{int64(1), "alice"}, {int64(2), nil}},
	}

	// Parent directories are created as needed.
	path := filepath.Join(t.TempDir(), "out", "result.csv")
	if err := Write(tab, path, "csv"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	want := "id,name\n1,alice\n2,\n"
	if string(data) != want {
		t.Fatalf("written csv = %q, want %q", data, want)
	}
}

func TestWrite_JSON(t *testing.T) {
	t.Parallel()

	tab := &Table{
		Columns: []string{"id", "name"},
		Rows:    [][]any{{"1", "alice"}},
	}

	path := filepath.Join(t.TempDir(), "result.json")
	if err := Write(tab, path, "json"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(rows) != 1 || rows[0]["name"] != "alice" {
		t.Fatalf("rows = %v, want one row with name=alice", rows)
	}
}

func TestWrite_UnsupportedFormat(t *testing.T) {
	t.Parallel()

	tab := &Table{Columns: []string{"a"}}
	path := filepath.Join(t.TempDir(), "out.xml")
	if err := Write(tab, path, "xml"); err == nil {
		t.Fatalf("Write(xml) error = nil, want unsupported format error")
	}
}

func TestWrite_Parquet(t *testing.T) {
	t.Parallel()

	tab := &Table{
		Columns: []string{"id", "name"},
		Rows:    [][]any{{int64(1), "alice"}, {int64(2), nil}},
	}

	path := filepath.Join(t.TempDir(), "result.parquet")
	if err := Write(tab, path, "parquet"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("parquet file is empty")
	}
}
