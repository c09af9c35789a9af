package transform

import (
	"testing"

	"github.com/LOLA0786/Devlake/internal/table"
)

func TestDedupe(t *testing.T) {
	t.Parallel()

	in := &table.Table{
		Columns: []string{"a", "b"},
		Rows: [][]any{
			{"1", "x"},
			{"2", "y"},
			{"1", "x"}, // duplicate of row 0
			{"ab", "c"},
			{"a", "bc"}, // must stay distinct from ("ab","c")
			{nil, "x"},
			{nil, "x"}, // duplicate
		},
	}

	out, err := Dedupe(in)
	if err != nil {
		t.Fatalf("Dedupe() error = %v", err)
	}
	if got, want := out.NumRows(), 5; got != want {
		t.Fatalf("NumRows() = %d, want %d", got, want)
	}
	if out.Rows[0][0] != "1" || out.Rows[1][0] != "2" {
		t.Fatalf("row order not preserved: %v", out.Rows)
	}
}

func TestNormalizeHeaders(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want string
	}{
		{"User ID", "user_id"},
		{"Počet vozidel", "pocet_vozidel"},
		{"  name.first-part  ", "name_first_part"},
		{"___", "col"},
		{"%%%", "col"},
	}

	for _, tc := range cases {
		in := &table.Table{Columns: []string{tc.in}}
		out, err := NormalizeHeaders(in)
		if err != nil {
			t.Fatalf("NormalizeHeaders(%q) error = %v", tc.in, err)
		}
		if out.Columns[0] != tc.want {
			t.Errorf("NormalizeHeaders(%q) = %q, want %q", tc.in, out.Columns[0], tc.want)
		}
	}
}

func TestTrimSpace(t *testing.T) {
	t.Parallel()

	in := &table.Table{
		Columns: []string{"a", "b"},
		Rows:    [][]any{{"  x  ", "   "}, {int64(3), " y"}},
	}

	out, err := TrimSpace(in)
	if err != nil {
		t.Fatalf("TrimSpace() error = %v", err)
	}
	if out.Rows[0][0] != "x" {
		t.Errorf("Rows[0][0] = %v, want x", out.Rows[0][0])
	}
	if out.Rows[0][1] != nil {
		t.Errorf("Rows[0][1] = %v, want nil for whitespace-only cell", out.Rows[0][1])
	}
	if out.Rows[1][0] != int64(3) {
		t.Errorf("Rows[1][0] = %v, want non-string cells untouched", out.Rows[1][0])
	}
	// Input must not be mutated.
	if in.Rows[0][0] != "  x  " {
		t.Errorf("input mutated: %v", in.Rows[0][0])
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"dedupe", "normalize_headers", "trim_space"} {
		if _, ok := Lookup(name); !ok {
			t.Errorf("Lookup(%q) = false, want built-in transform registered", name)
		}
	}

	if _, err := Apply("no_such_transform", &table.Table{}); err == nil {
		t.Fatalf("Apply(unknown) error = nil, want lookup error")
	}
}
