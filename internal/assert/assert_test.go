package assert

import (
	"testing"

	"github.com/LOLA0786/Devlake/internal/config"
	"github.com/LOLA0786/Devlake/internal/table"
)

func sample(rows ...[]any) *table.Table {
	return &table.Table{Columns: []string{"x", "y"}, Rows: rows}
}

func TestRun_NoNull(t *testing.T) {
	t.Parallel()

	withNull := sample([]any{"1", "a"}, []any{nil, "b"})
	clean := sample([]any{"1", "a"}, []any{"2", "b"})
	tests := []config.Assertion{{Kind: "assert_no_null", Column: "x"}}

	if ok, _ := Run(withNull, tests); ok {
		t.Errorf("Run(table with null) = true, want false")
	}
	if ok, _ := Run(clean, tests); !ok {
		t.Errorf("Run(table without nulls) = false, want true")
	}
}

func TestRun_Unique(t *testing.T) {
	t.Parallel()

	dup := sample([]any{"1", "a"}, []any{"1", "b"})
	uniq := sample([]any{"1", "a"}, []any{"2", "b"})
	tests := []config.Assertion{{Kind: "assert_unique", Column: "x"}}

	if ok, _ := Run(dup, tests); ok {
		t.Errorf("Run(duplicated column) = true, want false")
	}
	if ok, _ := Run(uniq, tests); !ok {
		t.Errorf("Run(unique column) = false, want true")
	}
}

func TestRun_OverallIsAND(t *testing.T) {
	t.Parallel()

	// x is unique but contains a null: no_null fails, unique passes.
	tab := sample([]any{"1", "a"}, []any{nil, "b"})
	tests := []config.Assertion{
		{Kind: "assert_unique", Column: "x"},
		{Kind: "assert_no_null", Column: "x"},
	}

	ok, results := Run(tab, tests)
	if ok {
		t.Errorf("overall = true, want false when any assertion fails")
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if !results[0].Passed || results[1].Passed {
		t.Errorf("results = %+v, want unique pass and no_null fail", results)
	}
}

func TestRun_UnknownKindIgnored(t *testing.T) {
	t.Parallel()

	tab := sample([]any{nil, nil})
	tests := []config.Assertion{{Kind: "assert_positive", Column: "x"}}

	ok, results := Run(tab, tests)
	if !ok {
		t.Errorf("overall = false, want true when only unknown kinds present")
	}
	if len(results) != 0 {
		t.Errorf("results = %v, want unknown kinds excluded", results)
	}
}

func TestRun_MissingColumnFails(t *testing.T) {
	t.Parallel()

	tab := sample([]any{"1", "a"})
	tests := []config.Assertion{{Kind: "assert_no_null", Column: "nope"}}

	ok, results := Run(tab, tests)
	if ok {
		t.Errorf("overall = true, want false for missing column")
	}
	if len(results) != 1 || results[0].Observed != "column not found" {
		t.Errorf("results = %+v, want column-not-found detail", results)
	}
}
