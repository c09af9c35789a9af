// Package local implements the embedded execution backend: a SQLite database
// scoped to one (project, branch) pair, plus the in-memory alias registry
// that tracks the tables registered during a run.
//
// Table registration performs batched INSERTs inside a transaction; SQLite
// has no dedicated bulk-load API, but transactions keep performance
// acceptable for the table sizes pipelines move between steps.
package local

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	// Pure-Go SQLite driver; keeps branch state inside a single file that
	// snapshot copies can move around.
	_ "modernc.org/sqlite"

	"github.com/LOLA0786/Devlake/internal/backend"
	"github.com/LOLA0786/Devlake/internal/table"
)

// DBFileName is the engine database file inside a branch data directory.
const DBFileName = "devlake.db"

func init() {
	backend.Register("local", func(ctx context.Context, cfg backend.Config) (backend.Backend, error) {
		return New(ctx, cfg)
	})
}

// Engine is the Local backend implementation.
type Engine struct {
	branch   string
	db       *sql.DB
	registry map[string]*table.Table

	closeOnce sync.Once
	closeErr  error
}

var _ backend.Local = (*Engine)(nil)

// New opens (creating if necessary) the engine database for the branch named
// in cfg. The branch's on-disk directory is created if absent.
func New(ctx context.Context, cfg backend.Config) (*Engine, error) {
	branch := cfg.Branch
	if branch == "" {
		branch = "main"
	}

	dir := filepath.Join(cfg.Project, ".devlake", "data", branch)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("local: create branch directory: %w", err)
	}
	dbPath := filepath.Join(dir, DBFileName)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("local: open engine: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("local: ping engine: %w", err)
	}

	log.Printf("local: engine ready branch=%s db=%s", branch, dbPath)
	return &Engine{
		branch:   branch,
		db:       db,
		registry: map[string]*table.Table{},
	}, nil
}

// Target implements backend.Backend.
func (e *Engine) Target() string { return "local" }

// Branch returns the branch the engine is scoped to.
func (e *Engine) Branch() string { return e.branch }

// RegisterTable materializes t as an engine table named alias and records it
// in the alias registry. An existing table under the same alias is replaced.
func (e *Engine) RegisterTable(ctx context.Context, alias string, t *table.Table) error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("local: register %q: table has no columns", alias)
	}

	ident := quoteIdent(alias)
	if _, err := e.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+ident); err != nil {
		return fmt.Errorf("local: drop %q: %w", alias, err)
	}

	colDefs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		colDefs[i] = quoteIdent(c) + " " + columnAffinity(t, i)
	}
	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", ident, strings.Join(colDefs, ", "))
	if _, err := e.db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("local: create %q: %w", alias, err)
	}

	if len(t.Rows) > 0 {
		if err := e.copyRows(ctx, ident, t); err != nil {
			return fmt.Errorf("local: load %q: %w", alias, err)
		}
	}

	e.registry[alias] = t
	log.Printf("local: registered table %s (%d rows)", alias, len(t.Rows))
	return nil
}

// copyRows inserts all rows in a single transaction with a prepared
// statement.
func (e *Engine) copyRows(ctx context.Context, ident string, t *table.Table) error {
	placeholders := make([]string, len(t.Columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	stmtSQL := fmt.Sprintf("INSERT INTO %s VALUES (%s)", ident, strings.Join(placeholders, ", "))

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(t.Columns))
	for _, row := range t.Rows {
		for i := range args {
			args[i] = nil
			if i < len(row) {
				args[i] = row[i]
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Query runs sql and returns the result table. Engine errors are wrapped
// with backend.ErrQueryFailed.
func (e *Engine) Query(ctx context.Context, query string) (*table.Table, error) {
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrQueryFailed, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrQueryFailed, err)
	}

	result := &table.Table{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: %v", backend.ErrQueryFailed, err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrQueryFailed, err)
	}
	return result, nil
}

// TableByAlias returns the registered table for alias, if any.
func (e *Engine) TableByAlias(alias string) (*table.Table, bool) {
	t, ok := e.registry[alias]
	return t, ok
}

// Schema returns the engine catalog as table -> column -> declared type.
// Used by the CLI for introspection.
func (e *Engine) Schema(ctx context.Context) (map[string]map[string]string, error) {
	rows, err := e.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		return nil, fmt.Errorf("local: list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	schema := make(map[string]map[string]string, len(names))
	for _, name := range names {
		info, err := e.db.QueryContext(ctx, "PRAGMA table_info("+quoteIdent(name)+")")
		if err != nil {
			continue
		}
		cols := map[string]string{}
		for info.Next() {
			var (
				cid        int
				colName    string
				colType    string
				notNull    int
				defaultVal any
				pk         int
			)
			if err := info.Scan(&cid, &colName, &colType, &notNull, &defaultVal, &pk); err != nil {
				break
			}
			cols[colName] = colType
		}
		info.Close()
		schema[name] = cols
	}
	return schema, nil
}

// Close releases the engine handle. Safe to call more than once.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.closeErr = e.db.Close()
		log.Printf("local: engine shut down branch=%s", e.branch)
	})
	return e.closeErr
}

// quoteIdent makes an arbitrary alias safe to splice into DDL/DML.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// columnAffinity picks a column type from the first non-nil value observed in
// the column; everything defaults to TEXT.
func columnAffinity(t *table.Table, col int) string {
	for _, row := range t.Rows {
		if col >= len(row) || row[col] == nil {
			continue
		}
		switch row[col].(type) {
		case int, int64:
			return "INTEGER"
		case float64:
			return "REAL"
		default:
			return "TEXT"
		}
	}
	return "TEXT"
}
