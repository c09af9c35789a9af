// Package assert runs post-execution data-quality checks against the final
// table produced by a pipeline run.
//
// Each assertion independently reports PASS or FAIL and the overall verdict
// is the logical AND. Running assertions never returns an error: a check that
// cannot be evaluated (e.g. the column does not exist) fails rather than
// aborting the report.
package assert

import (
	"fmt"

	"github.com/LOLA0786/Devlake/internal/config"
	"github.com/LOLA0786/Devlake/internal/table"
)

// Result describes the outcome of a single assertion.
type Result struct {
	Kind     string
	Column   string
	Passed   bool
	Observed string // human-readable detail, e.g. "2 null values"
}

// Status returns "PASS" or "FAIL" for display.
func (r Result) Status() string {
	if r.Passed {
		return "PASS"
	}
	return "FAIL"
}

// Run evaluates the given assertions against t and returns the overall
// verdict plus per-assertion results. Unknown assertion kinds are ignored and
// do not count toward the verdict. Callers are expected to skip Run entirely
// when the run produced no final table or declares no tests; an empty
// assertion list here vacuously passes.
func Run(t *table.Table, tests []config.Assertion) (bool, []Result) {
	overall := true
	var results []Result

	for _, a := range tests {
		var r Result
		switch a.Kind {
		case "assert_no_null":
			r = noNull(t, a.Column)
		case "assert_unique":
			r = unique(t, a.Column)
		default:
			continue
		}
		if !r.Passed {
			overall = false
		}
		results = append(results, r)
	}
	return overall, results
}

// noNull passes iff the column exists and contains zero nil cells.
func noNull(t *table.Table, column string) Result {
	r := Result{Kind: "assert_no_null", Column: column}
	col, ok := t.Column(column)
	if !ok {
		r.Observed = "column not found"
		return r
	}
	nulls := 0
	for _, v := range col {
		if v == nil {
			nulls++
		}
	}
	r.Passed = nulls == 0
	r.Observed = fmt.Sprintf("%d null values in %d rows", nulls, len(col))
	return r
}

// unique passes iff the column exists and its distinct-value count equals the
// row count. Nil cells count as a single distinct value.
func unique(t *table.Table, column string) Result {
	r := Result{Kind: "assert_unique", Column: column}
	col, ok := t.Column(column)
	if !ok {
		r.Observed = "column not found"
		return r
	}
	distinct := make(map[string]struct{}, len(col))
	for _, v := range col {
		key := ""
		if v != nil {
			key = "v:" + fmt.Sprint(v)
		}
		distinct[key] = struct{}{}
	}
	r.Passed = len(distinct) == len(col)
	r.Observed = fmt.Sprintf("%d distinct values in %d rows", len(distinct), len(col))
	return r
}
