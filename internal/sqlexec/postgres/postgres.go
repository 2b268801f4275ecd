// Package postgres implements RelationalDialectA (spec.md §4.6 item 2): SQL
// pushdown against a Postgres-family table, supporting the file-engine base
// set plus unique and allowed_values.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/kontra-dev/kontra/internal/compile"
	"github.com/kontra-dev/kontra/internal/handle"
	"github.com/kontra-dev/kontra/internal/materialize/dbreader"
	"github.com/kontra-dev/kontra/internal/result"
	"github.com/kontra-dev/kontra/internal/sqlexec"
)

type Executor struct{}

func New() *Executor { return &Executor{} }

func (e *Executor) Dialect() sqlexec.Dialect { return sqlexec.DialectPostgres }

// Supports reports whether this dialect can push down at least one of specs
// (spec.md §4.6: an unsupported kind falls back to columnar per-rule, not
// per-phase).
func (e *Executor) Supports(h *handle.Handle, specs []compile.SqlSpec) bool {
	if h.Dialect != "postgres" {
		return false
	}
	supported, _ := sqlexec.FilterSupported(sqlexec.DialectPostgres, specs)
	return len(supported) > 0
}

func (e *Executor) Compile(h *handle.Handle, specs []compile.SqlSpec, opts sqlexec.ExecOptions) (*sqlexec.Plan, error) {
	tableExpr := h.TableRef
	exists := sqlexec.BuildExistsQueries(sqlexec.DialectPostgres, tableExpr, specs, opts.Tally)
	aggSQL, order, messages := sqlexec.BuildAggQuery(sqlexec.DialectPostgres, tableExpr, specs, opts.Tally)
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
	db, owned, err := connectionFor(h)
	if err != nil {
		return nil, err
	}
	if owned {
		defer db.Close()
	}

	results := map[string]result.RuleResult{}
	for _, eq := range plan.ExistsQueries {
		var violated bool
		if err := db.QueryRowContext(ctx, eq.SQL).Scan(&violated); err != nil {
			return nil, fmt.Errorf("sqlexec/postgres: exists query for %s: %w", eq.RuleID, err)
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
		cols := plan.AggRuleOrder
		dest := make([]any, len(cols))
		vals := make([]int64, len(cols))
		for i := range dest {
			dest[i] = &vals[i]
		}
		if err := db.QueryRowContext(ctx, plan.AggSQL).Scan(dest...); err != nil {
			return nil, fmt.Errorf("sqlexec/postgres: agg query: %w", err)
		}
		for i, ruleID := range cols {
			failed := vals[i]
			results[ruleID] = sqlexec.StampMeta(result.RuleResult{
				RuleID: ruleID, Passed: failed == 0, FailedCount: failed,
				ExecutionSource: result.SourceSQL, Message: plan.AggMessages[ruleID],
			}, opts)
		}
	}

	if len(plan.CustomChecks) > 0 {
		if err := sqlexec.RunCustomChecks(ctx, db, plan.CustomChecks, opts, results); err != nil {
			return nil, fmt.Errorf("sqlexec/postgres: %w", err)
		}
	}

	return &sqlexec.ExecResult{Results: results}, nil
}

func (e *Executor) Introspect(ctx context.Context, h *handle.Handle) (*sqlexec.Introspection, error) {
	db, owned, err := connectionFor(h)
	if err != nil {
		return nil, err
	}
	if owned {
		defer db.Close()
	}
	var rowCount int64
	if err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", h.TableRef)).Scan(&rowCount); err != nil {
		return nil, fmt.Errorf("sqlexec/postgres: introspect row count: %w", err)
	}
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 0", h.TableRef))
	if err != nil {
		return nil, fmt.Errorf("sqlexec/postgres: introspect columns: %w", err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sqlexec/postgres: read column names: %w", err)
	}
	return &sqlexec.Introspection{RowCount: rowCount, AvailableCols: cols}, nil
}

// connectionFor returns the handle's BYOC connection unowned, or opens a
// new owned one from DBParams (spec.md §4.4 BYOC: never closed by the
// core).
func connectionFor(h *handle.Handle) (*sql.DB, bool, error) {
	if h.Scheme == handle.SchemeBYOC {
		return h.ExternalConn, false, nil
	}
	p := h.DBParams
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		p["host"], p["port"], p["user"], p["password"], p["database"])
	db, err := dbreader.ConnectPostgres(dsn)
	if err != nil {
		return nil, false, err
	}
	return db, true, nil
}
