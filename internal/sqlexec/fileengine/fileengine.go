// Package fileengine implements the FileSqlExecutor (spec.md §4.6): SQL
// pushdown over Parquet/CSV files (local, S3, HTTP(S)) via an embedded
// DuckDB engine, so a rule can be proven by a single aggregate query
// instead of loading every row into the process.
package fileengine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/kontra-dev/kontra/internal/compile"
	"github.com/kontra-dev/kontra/internal/handle"
	"github.com/kontra-dev/kontra/internal/result"
	"github.com/kontra-dev/kontra/internal/sqlexec"
)

// Executor is the FileSqlExecutor (spec.md §4.6 item 1).
type Executor struct{}

func New() *Executor { return &Executor{} }

func (e *Executor) Dialect() sqlexec.Dialect { return sqlexec.DialectFileEngine }

// Supports reports whether this dialect can push down at least one of
// specs (spec.md §4.6: an unsupported kind falls back to columnar per-rule,
// not per-phase — Pick only needs some overlap, Compile/Execute work on
// whatever FilterSupported hands them).
func (e *Executor) Supports(h *handle.Handle, specs []compile.SqlSpec) bool {
	if !h.IsFileBased() {
		return false
	}
	if h.Format != handle.FormatParquet && h.Format != handle.FormatCSV {
		return false
	}
	supported, _ := sqlexec.FilterSupported(sqlexec.DialectFileEngine, specs)
	return len(supported) > 0
}

// Compile builds the plan with the handle-derived table expression
// (DuckDB's read_parquet/read_csv_auto table function), since the shared
// querybuild helpers take a bare FROM-clause string.
func (e *Executor) Compile(h *handle.Handle, specs []compile.SqlSpec, opts sqlexec.ExecOptions) (*sqlexec.Plan, error) {
	tableExpr := tableExprFor(h)
	exists := sqlexec.BuildExistsQueries(sqlexec.DialectFileEngine, tableExpr, specs, opts.Tally)
	aggSQL, order, messages := sqlexec.BuildAggQuery(sqlexec.DialectFileEngine, tableExpr, specs, opts.Tally)
	return &sqlexec.Plan{
		ExistsQueries: exists, AggSQL: aggSQL, AggRuleOrder: order, AggMessages: messages,
		CustomChecks: customChecksFor(specs),
	}, nil
}

// customChecksFor pulls the CustomSqlCheck specs out of specs; they aren't
// handled by BuildExistsQueries/BuildAggQuery, which skip compile.KindCustomSQL.
func customChecksFor(specs []compile.SqlSpec) []sqlexec.CustomCheckSpec {
	var out []sqlexec.CustomCheckSpec
	for _, s := range specs {
		if s.Kind != compile.KindCustomSQL {
			continue
		}
		out = append(out, sqlexec.CustomCheckSpec{RuleID: s.RuleID, SQL: s.Message})
	}
	return out
}

func (e *Executor) Execute(ctx context.Context, h *handle.Handle, plan *sqlexec.Plan, opts sqlexec.ExecOptions) (*sqlexec.ExecResult, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("fileengine: open duckdb: %w", err)
	}
	defer db.Close()

	if h.Scheme == handle.SchemeS3 || h.Scheme == handle.SchemeHTTP || h.Scheme == handle.SchemeHTTPS {
		if _, err := db.ExecContext(ctx, "INSTALL httpfs; LOAD httpfs;"); err != nil {
			return nil, fmt.Errorf("fileengine: load httpfs extension: %w", err)
		}
		if err := configureS3(ctx, db, h); err != nil {
			return nil, err
		}
	}

	results := map[string]result.RuleResult{}
	for _, eq := range plan.ExistsQueries {
		var violated bool
		if err := db.QueryRowContext(ctx, eq.SQL).Scan(&violated); err != nil {
			return nil, fmt.Errorf("fileengine: exists query for %s: %w", eq.RuleID, err)
		}
		failed := int64(0)
		if violated {
			failed = 1
		}
		results[eq.RuleID] = sqlexec.StampMeta(result.RuleResult{
			RuleID: eq.RuleID, Passed: !violated, FailedCount: failed,
			ExecutionSource: result.SourceSQL,
		}, opts)
	}

	if plan.AggSQL != "" {
		if err := runAggQuery(ctx, db, plan, opts, results); err != nil {
			return nil, err
		}
	}

	if len(plan.CustomChecks) > 0 {
		if err := sqlexec.RunCustomChecks(ctx, db, plan.CustomChecks, opts, results); err != nil {
			return nil, fmt.Errorf("fileengine: %w", err)
		}
	}

	return &sqlexec.ExecResult{Results: results}, nil
}

func runAggQuery(ctx context.Context, db *sql.DB, plan *sqlexec.Plan, opts sqlexec.ExecOptions, results map[string]result.RuleResult) error {
	cols := plan.AggRuleOrder
	dest := make([]any, len(cols))
	vals := make([]int64, len(cols))
	for i := range dest {
		dest[i] = &vals[i]
	}
	row := db.QueryRowContext(ctx, plan.AggSQL)
	if err := row.Scan(dest...); err != nil {
		return fmt.Errorf("fileengine: agg query: %w", err)
	}
	for i, ruleID := range cols {
		failed := vals[i]
		results[ruleID] = sqlexec.StampMeta(result.RuleResult{
			RuleID: ruleID, Passed: failed == 0, FailedCount: failed,
			ExecutionSource: result.SourceSQL, Message: plan.AggMessages[ruleID],
		}, opts)
	}
	return nil
}

func (e *Executor) Introspect(ctx context.Context, h *handle.Handle) (*sqlexec.Introspection, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("fileengine: open duckdb: %w", err)
	}
	defer db.Close()
	tableExpr := tableExprFor(h)

	var rowCount int64
	if err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", tableExpr)).Scan(&rowCount); err != nil {
		return nil, fmt.Errorf("fileengine: introspect row count: %w", err)
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 0", tableExpr))
	if err != nil {
		return nil, fmt.Errorf("fileengine: introspect columns: %w", err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("fileengine: read column names: %w", err)
	}

	return &sqlexec.Introspection{RowCount: rowCount, AvailableCols: cols}, nil
}

// tableExprFor builds a DuckDB table function call for the handle's path
// (spec.md §4.5/§4.6: Parquet/CSV local+S3+HTTP(S)).
func tableExprFor(h *handle.Handle) string {
	path := quoteDuckDBPath(h.Path)
	if h.Format == handle.FormatCSV {
		return fmt.Sprintf("read_csv_auto(%s)", path)
	}
	return fmt.Sprintf("read_parquet(%s)", path)
}

func quoteDuckDBPath(p string) string {
	return "'" + strings.ReplaceAll(p, "'", "''") + "'"
}

// configureS3 sets DuckDB's S3 extension settings from fs_opts captured by
// handle.FromURI (spec.md §6 S3 env vars).
func configureS3(ctx context.Context, db *sql.DB, h *handle.Handle) error {
	set := func(stmt string) error {
		_, err := db.ExecContext(ctx, stmt)
		return err
	}
	if region := h.FsOpts["region"]; region != "" {
		if err := set(fmt.Sprintf("SET s3_region='%s';", region)); err != nil {
			return fmt.Errorf("fileengine: set s3_region: %w", err)
		}
	}
	if ak := h.FsOpts["access_key_id"]; ak != "" {
		if err := set(fmt.Sprintf("SET s3_access_key_id='%s';", ak)); err != nil {
			return fmt.Errorf("fileengine: set s3_access_key_id: %w", err)
		}
	}
	if sk := h.FsOpts["secret_access_key"]; sk != "" {
		if err := set(fmt.Sprintf("SET s3_secret_access_key='%s';", sk)); err != nil {
			return fmt.Errorf("fileengine: set s3_secret_access_key: %w", err)
		}
	}
	if ep := h.FsOpts["endpoint"]; ep != "" {
		if err := set(fmt.Sprintf("SET s3_endpoint='%s';", ep)); err != nil {
			return fmt.Errorf("fileengine: set s3_endpoint: %w", err)
		}
	}
	return nil
}
