package transform

import (
	"bytes"
	"fmt"

	"github.com/zeebo/xxh3"

	"github.com/LOLA0786/Devlake/internal/table"
)

func init() {
	Register("dedupe", Dedupe)
}

// Dedupe drops rows whose full cell content duplicates an earlier row.
// Rows are fingerprinted with xxh3 over a delimited rendering of all cells;
// the first occurrence wins and row order is preserved.
func Dedupe(in *table.Table) (*table.Table, error) {
	out := &table.Table{Columns: in.Columns}
	seen := make(map[uint64]struct{}, len(in.Rows))

	var buf bytes.Buffer
	for _, row := range in.Rows {
		buf.Reset()
		for _, v := range row {
			if v != nil {
				fmt.Fprint(&buf, v)
			}
			// Unit separator keeps ("ab","c") distinct from ("a","bc").
			buf.WriteByte(0x1f)
		}
		h := xxh3.Hash(buf.Bytes())
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}
