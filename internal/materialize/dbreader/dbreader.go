// Package dbreader implements the DatabaseMaterializer (spec.md §4.5):
// reading a projected set of columns from a Postgres or SQL Server table
// into a Batch via a plain `SELECT <cols> FROM <table>` — the database
// does the storage-layer work, this package only shapes rows into Arrow
// columns.
package dbreader

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/lib/pq"

	"github.com/kontra-dev/kontra/internal/columnar"
)

// Reader materializes a single relational table through a *sql.DB, which
// may be owned (opened by Connect) or externally supplied (BYOC, spec.md
// §4.4) — this package never closes a connection it did not open itself.
type Reader struct {
	db       *sql.DB
	owned    bool
	dialect  string
	tableRef string
	rowsRead int64
}

// New wraps an existing connection (owned or BYOC). dialect is "postgres" or
// "sqlserver"; tableRef is "schema.table".
func New(db *sql.DB, owned bool, dialect, tableRef string) *Reader {
	return &Reader{db: db, owned: owned, dialect: dialect, tableRef: tableRef}
}

// ConnectPostgres opens a new, owned Postgres connection (spec.md §6 PG
// env vars: PGHOST, PGPORT, PGUSER, PGPASSWORD, PGDATABASE, DATABASE_URL),
// mirroring the teacher's Connect()/ping/pool-size pattern.
func ConnectPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("dbreader: open postgres: %w", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("dbreader: ping postgres: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	return db, nil
}

// ConnectSQLServer opens a new, owned SQL Server connection.
func ConnectSQLServer(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("dbreader: open sqlserver: %w", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("dbreader: ping sqlserver: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	return db, nil
}

func (r *Reader) Schema(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s WHERE 1=0", r.tableRef))
	if err != nil {
		return nil, fmt.Errorf("dbreader: probe schema: %w", err)
	}
	defer rows.Close()
	return rows.Columns()
}

// ToColumnar implements materialize.Materializer, honoring column
// projection with an explicit column list in the SELECT (spec.md §8 P8).
func (r *Reader) ToColumnar(ctx context.Context, requiredColumns []string) (*columnar.Batch, error) {
	cols := requiredColumns
	if len(cols) == 0 {
		var err error
		cols, err = r.Schema(ctx)
		if err != nil {
			return nil, err
		}
	}
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c, r.dialect)
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), r.tableRef)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("dbreader: query %s: %w", r.tableRef, err)
	}
	defer rows.Close()

	return scanToColumnar(rows, cols)
}

// scanToColumnar reads every row into generic scan targets and builds one
// Arrow array per column, preserving nulls. Columns are built as strings
// (via fmt.Sprint on non-nil values) since database/sql exposes dialect
// types through driver.Value; numeric rules parse these strings when they
// evaluate them. Unlike the CSV path (internal/columnar.ReadCSV), no column
// type is inferred.
func scanToColumnar(rows *sql.Rows, cols []string) (*columnar.Batch, error) {
	pool := memory.DefaultAllocator
	builders := make([]*array.StringBuilder, len(cols))
	for i := range builders {
		builders[i] = array.NewStringBuilder(pool)
	}

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("dbreader: scan row: %w", err)
		}
		for i, v := range vals {
			if v == nil {
				builders[i].AppendNull()
				continue
			}
			builders[i].Append(stringify(v))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dbreader: row iteration: %w", err)
	}

	order := make([]string, len(cols))
	arrs := make(map[string]arrow.Array, len(cols))
	for i, name := range cols {
		order[i] = name
		arrs[name] = builders[i].NewArray()
	}
	return columnar.NewBatch(order, arrs), nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

func quoteIdent(name, dialect string) string {
	if dialect == "sqlserver" {
		return "[" + name + "]"
	}
	return `"` + name + `"`
}

// IODebug implements materialize.Materializer.
func (r *Reader) IODebug() map[string]any {
	return map[string]any{"dialect": r.dialect, "table_ref": r.tableRef, "rows_read": r.rowsRead}
}

// Close closes the connection only if this Reader opened it (spec.md §4.4
// BYOC: "never closed by the core").
func (r *Reader) Close() error {
	if !r.owned {
		return nil
	}
	return r.db.Close()
}
