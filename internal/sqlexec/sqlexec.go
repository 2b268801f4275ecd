// Package sqlexec implements the SQL Executor Registry (spec.md §4.6, C6):
// dialect-specific executors that push rule checks down into SQL via a
// two-phase EXISTS + AGG plan, instead of reading data into the process.
package sqlexec

import (
	"context"
	"fmt"

	"github.com/kontra-dev/kontra/internal/compile"
	"github.com/kontra-dev/kontra/internal/handle"
	"github.com/kontra-dev/kontra/internal/result"
)

// Dialect names the three registered executors (spec.md §4.6).
type Dialect string

const (
	DialectFileEngine Dialect = "file_engine"
	DialectPostgres   Dialect = "postgres"
	DialectSQLServer  Dialect = "sqlserver"
)

// SupportedKinds is the per-dialect capability gate (spec.md §4.6): the file
// engine and RelationalDialectA (postgres) share a base set, postgres adds
// unique/allowed_values, and RelationalDialectB (sqlserver) is the A-set
// minus regex (regex must fall back to columnar).
var SupportedKinds = map[Dialect]map[string]bool{
	DialectFileEngine: setOf(
		compile.KindNotNull, compile.KindMinRows, compile.KindMaxRows,
		compile.KindFreshness, compile.KindRange, compile.KindRegex,
		compile.KindCompare, compile.KindConditionalNotNull, compile.KindConditionalRange,
		compile.KindCustomSQL,
	),
	DialectPostgres: setOf(
		compile.KindNotNull, compile.KindMinRows, compile.KindMaxRows,
		compile.KindFreshness, compile.KindRange, compile.KindRegex,
		compile.KindCompare, compile.KindConditionalNotNull, compile.KindConditionalRange,
		compile.KindUnique, compile.KindAllowedValues, compile.KindCustomSQL,
	),
	DialectSQLServer: setOf(
		compile.KindNotNull, compile.KindMinRows, compile.KindMaxRows,
		compile.KindFreshness, compile.KindRange,
		compile.KindCompare, compile.KindConditionalNotNull, compile.KindConditionalRange,
		compile.KindUnique, compile.KindAllowedValues, compile.KindCustomSQL,
	),
}

func setOf(kinds ...string) map[string]bool {
	m := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return m
}

// RuleMeta carries the rule-level identity an executor needs to stamp onto
// every RuleResult it produces, but that compile.SqlSpec itself doesn't
// carry (spec.md §3's SqlSpec is dialect-facing and kind-keyed only).
type RuleMeta struct {
	Name     string
	Severity result.Severity
}

// ExecOptions configures a single execute() call (spec.md §9 Open Question
// 1: tally mode).
type ExecOptions struct {
	// Tally switches not_null's EXISTS-based lower-bound result to the
	// exact SUM(CASE ...) form, at the cost of a full-table scan.
	Tally bool

	// Meta maps rule_id to the name/severity every RuleResult an executor
	// builds must carry (result.Summarize switches on Severity to count
	// blocking/warning/info failures; a zero-value Severity silently
	// drops a failing rule from every bucket).
	Meta map[string]RuleMeta
}

// ExistsQuery is one Phase-1 query (spec.md §4.6 Phase 1: EXISTS).
type ExistsQuery struct {
	RuleID string
	SQL    string
}

// CustomCheckSpec is one CustomSqlCheck rule's already-safety-validated SQL
// text, carried in a Plan so Execute() can run it against the same
// connection the rest of the plan uses (spec.md §4.6 CustomSqlCheck).
type CustomCheckSpec struct {
	RuleID  string
	SQL     string
	Message string
}

// Plan is an executor's compiled two-phase query plan.
type Plan struct {
	ExistsQueries []ExistsQuery
	AggSQL        string   // empty if there are no Phase-2 rules
	AggRuleOrder  []string // rule_id per aliased column, in SELECT order
	AggMessages   map[string]string
	CustomChecks  []CustomCheckSpec
}

// StagingInfo describes a CSV→Parquet staging side effect (spec.md §4.5
// csv_mode). The orchestrator owns cleanup of Path.
type StagingInfo struct {
	Path string
}

// ExecResult is what execute() returns (spec.md §4.6).
type ExecResult struct {
	Results map[string]result.RuleResult
	Staging *StagingInfo
}

// Introspection is introspect()'s return value (spec.md §4.6).
type Introspection struct {
	RowCount        int64
	AvailableCols   []string
	Staging         *StagingInfo
}

// Executor is the contract every registered SQL executor implements
// (spec.md §4.6).
type Executor interface {
	Dialect() Dialect
	Supports(h *handle.Handle, specs []compile.SqlSpec) bool
	Compile(h *handle.Handle, specs []compile.SqlSpec, opts ExecOptions) (*Plan, error)
	Execute(ctx context.Context, h *handle.Handle, plan *Plan, opts ExecOptions) (*ExecResult, error)
	Introspect(ctx context.Context, h *handle.Handle) (*Introspection, error)
}

// Pick selects the first registered executor whose Supports() gate accepts
// the handle and the full spec set (spec.md §4.6 registration order:
// FileSqlExecutor, RelationalDialectA, RelationalDialectB). Callers pass in
// the concrete constructors so this package has no import-cycle-prone
// dependency on the three executor sub-packages.
func Pick(executors []Executor, h *handle.Handle, specs []compile.SqlSpec) (Executor, error) {
	for _, ex := range executors {
		if ex.Supports(h, specs) {
			return ex, nil
		}
	}
	return nil, fmt.Errorf("sqlexec: no registered executor supports handle scheme %q dialect %q", h.Scheme, h.Dialect)
}

// StampMeta fills r's Severity and RuleName from opts.Meta, keyed by
// r.RuleID. Every executor's Execute() must route every RuleResult it
// builds through this before adding it to the result map — result.
// Summarize switches on Severity, so a result built with the zero value
// silently fails to count toward blocking/warning/info totals.
func StampMeta(r result.RuleResult, opts ExecOptions) result.RuleResult {
	if m, ok := opts.Meta[r.RuleID]; ok {
		r.Severity = m.Severity
		r.RuleName = m.Name
	}
	return r
}

// FilterSupported returns the subset of specs a dialect's capability gate
// accepts, in their original order, and the dropped set (spec.md §4.6: an
// unsupported kind, e.g. regex on sqlserver, falls back to columnar).
func FilterSupported(d Dialect, specs []compile.SqlSpec) (supported, dropped []compile.SqlSpec) {
	allowed := SupportedKinds[d]
	for _, s := range specs {
		if allowed[s.Kind] {
			supported = append(supported, s)
		} else {
			dropped = append(dropped, s)
		}
	}
	return supported, dropped
}
