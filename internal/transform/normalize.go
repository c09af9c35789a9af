package transform

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/LOLA0786/Devlake/internal/table"
)

func init() {
	Register("normalize_headers", NormalizeHeaders)
	Register("trim_space", TrimSpace)
}

// NormalizeHeaders rewrites column names into lowercase ASCII identifiers
// safe to reference from SQL. Row data is unchanged.
func NormalizeHeaders(in *table.Table) (*table.Table, error) {
	cols := make([]string, len(in.Columns))
	for i, c := range in.Columns {
		cols[i] = normalizeFieldName(c)
	}
	return &table.Table{Columns: cols, Rows: in.Rows}, nil
}

// TrimSpace strips leading and trailing whitespace from every string cell.
// Cells that become empty are converted to NULL.
func TrimSpace(in *table.Table) (*table.Table, error) {
	out := &table.Table{Columns: in.Columns, Rows: make([][]any, len(in.Rows))}
	for i, row := range in.Rows {
		nr := make([]any, len(row))
		copy(nr, row)
		for j, v := range nr {
			if s, ok := v.(string); ok {
				s = strings.TrimSpace(s)
				if s == "" {
					nr[j] = nil
				} else {
					nr[j] = s
				}
			}
		}
		out.Rows[i] = nr
	}
	return out, nil
}

// normalizeFieldName converts arbitrary header text into a lowercase ASCII
// identifier suitable for SQL schemas:
//  1. lowercase
//  2. strip accents (NFD → remove Mn → NFC)
//  3. keep [a-z0-9_]; convert space/dash/dot to underscore; drop others
//  4. fallback to "col" if empty
func normalizeFieldName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	// Decompose → remove nonspacing marks (accents) → recompose.
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	ascii, _, _ := transform.String(t, s)

	var b strings.Builder
	prevUnderscore := false
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevUnderscore = false
		case r == '_' || r == ' ' || r == '-' || r == '.':
			if !prevUnderscore {
				b.WriteRune('_')
				prevUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "col"
	}
	return out
}
