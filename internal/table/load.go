package table

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/LOLA0786/Devlake/internal/fetch"
)

// fetchClient is a test hook; tests may replace it to avoid real HTTP.
var fetchClient = fetch.NewClient(fetch.Config{})

// Load reads a CSV table from uri. http:// and https:// URIs are downloaded
// with the retrying fetch client; anything else is treated as a local path.
func Load(ctx context.Context, uri string) (*Table, error) {
	var r io.ReadCloser
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		resp, err := fetchClient.Get(ctx, uri)
		if err != nil {
			return nil, err
		}
		r = resp.Body
	} else {
		f, err := os.Open(uri)
		if err != nil {
			return nil, fmt.Errorf("open source: %w", err)
		}
		r = f
	}
	defer r.Close()

	t, err := ReadCSV(r)
	if err != nil {
		return nil, fmt.Errorf("read csv from %s: %w", uri, err)
	}
	return t, nil
}

// ReadCSV parses CSV from r. The first record is the header; empty cells
// become nil (NULL). Short rows are padded with nil so every row has one cell
// per column.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1 // tolerant by default

	hdr, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := make([]string, len(hdr))
	for i, h := range hdr {
		columns[i] = strings.TrimSpace(stripBOM(h))
	}

	t := &Table{Columns: columns}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make([]any, len(columns))
		for i := range columns {
			if i < len(rec) && rec[i] != "" {
				row[i] = rec[i]
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// stripBOM removes a UTF-8 byte order mark from the first header cell.
func stripBOM(s string) string {
	return strings.TrimPrefix(s, "\ufeff")
}
