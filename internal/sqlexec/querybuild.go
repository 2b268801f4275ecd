package sqlexec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kontra-dev/kontra/internal/compile"
)

// QuoteIdent quotes an identifier for the given dialect (spec.md §4.6 is
// silent on quoting; ANSI double-quotes for Postgres/DuckDB, brackets for
// SQL Server, matching each engine's default identifier-quote character).
func QuoteIdent(d Dialect, name string) string {
	if d == DialectSQLServer {
		return "[" + name + "]"
	}
	return `"` + name + `"`
}

// nowExpr returns the dialect's current-timestamp expression, used by the
// freshness kind (spec.md §4.6 freshness contract).
func nowExpr(d Dialect) string {
	if d == DialectSQLServer {
		return "GETUTCDATE()"
	}
	return "NOW()"
}

// BuildExistsQueries builds Phase 1 (spec.md §4.6): one EXISTS query per
// not_null spec, skipped entirely when opts.Tally is set (tally mode always
// uses the exact SUM(CASE...) form in Phase 2 instead).
func BuildExistsQueries(d Dialect, tableExpr string, specs []compile.SqlSpec, tally bool) []ExistsQuery {
	if tally {
		return nil
	}
	var out []ExistsQuery
	for _, s := range specs {
		if s.Kind != compile.KindNotNull {
			continue
		}
		col := QuoteIdent(d, s.Column)
		sql := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE %s IS NULL) AS violated", tableExpr, col)
		out = append(out, ExistsQuery{RuleID: s.RuleID, SQL: sql})
	}
	return out
}

// BuildAggQuery builds Phase 2 (spec.md §4.6): one aggregate expression per
// non-EXISTS spec (plus not_null itself when tally mode is on), each
// aliased by a safe column alias derived from rule_id.
func BuildAggQuery(d Dialect, tableExpr string, specs []compile.SqlSpec, tally bool) (sql string, order []string, messages map[string]string) {
	var exprs []string
	messages = map[string]string{}
	for _, s := range specs {
		if s.Kind == compile.KindNotNull && !tally {
			continue // handled by Phase 1 EXISTS unless tally mode forces the AGG form
		}
		expr, ok := aggExprFor(d, s)
		if !ok {
			continue
		}
		alias := aliasFor(s.RuleID, len(order))
		exprs = append(exprs, fmt.Sprintf("%s AS %s", expr, alias))
		order = append(order, s.RuleID)
		if s.Message != "" {
			messages[s.RuleID] = s.Message
		}
	}
	if len(exprs) == 0 {
		return "", nil, messages
	}
	sql = fmt.Sprintf("SELECT %s FROM %s", strings.Join(exprs, ", "), tableExpr)
	return sql, order, messages
}

// aggExprFor implements the Phase-2 per-kind contract from spec.md §4.6.
func aggExprFor(d Dialect, s compile.SqlSpec) (string, bool) {
	col := QuoteIdent(d, s.Column)
	switch s.Kind {
	case compile.KindNotNull:
		return fmt.Sprintf("SUM(CASE WHEN %s IS NULL THEN 1 ELSE 0 END)", col), true
	case compile.KindMinRows:
		return fmt.Sprintf("CASE WHEN %d - COUNT(*) > 0 THEN %d - COUNT(*) ELSE 0 END", s.N, s.N), true
	case compile.KindMaxRows:
		return fmt.Sprintf("CASE WHEN COUNT(*) - %d > 0 THEN COUNT(*) - %d ELSE 0 END", s.N, s.N), true
	case compile.KindUnique:
		return fmt.Sprintf("COUNT(CASE WHEN %s IS NOT NULL THEN 1 END) - COUNT(DISTINCT CASE WHEN %s IS NOT NULL THEN %s END)", col, col, col), true
	case compile.KindAllowedValues:
		return fmt.Sprintf("SUM(CASE WHEN %s NOT IN (%s) OR %s IS NULL THEN 1 ELSE 0 END)", col, quoteList(d, s.Values), col), true
	case compile.KindFreshness:
		return fmt.Sprintf("CASE WHEN MAX(%s) < %s - INTERVAL '%d SECONDS' THEN 1 ELSE 0 END", col, nowExpr(d), s.MaxAgeSeconds), true
	case compile.KindRange:
		return rangeExpr(col, s), true
	case compile.KindCompare:
		return compareExpr(d, s), true
	case compile.KindConditionalNotNull:
		gate := whenExpr(d, s)
		return fmt.Sprintf("SUM(CASE WHEN (%s) AND %s IS NULL THEN 1 ELSE 0 END)", gate, col), true
	case compile.KindConditionalRange:
		gate := whenExpr(d, s)
		inner := rangeExprUnwrapped(col, s)
		return fmt.Sprintf("SUM(CASE WHEN (%s) AND (%s) THEN 1 ELSE 0 END)", gate, inner), true
	case compile.KindRegex:
		return regexExpr(d, col, s), true
	default:
		return "", false
	}
}

func rangeExpr(col string, s compile.SqlSpec) string {
	return fmt.Sprintf("SUM(CASE WHEN %s THEN 1 ELSE 0 END)", rangeExprUnwrapped(col, s))
}

// rangeExprUnwrapped returns the bare boolean condition (violation test)
// without the SUM(CASE...) wrapper, reused by conditional_range.
func rangeExprUnwrapped(col string, s compile.SqlSpec) string {
	var parts []string
	if s.Min != nil {
		parts = append(parts, fmt.Sprintf("%s < %s", col, formatNum(*s.Min)))
	}
	if s.Max != nil {
		parts = append(parts, fmt.Sprintf("%s > %s", col, formatNum(*s.Max)))
	}
	parts = append(parts, fmt.Sprintf("%s IS NULL", col))
	return strings.Join(parts, " OR ")
}

func compareExpr(d Dialect, s compile.SqlSpec) string {
	left := QuoteIdent(d, s.LeftCol)
	right := QuoteIdent(d, s.RightCol)
	op := sqlCompareOp(s.CompareOp)
	return fmt.Sprintf("SUM(CASE WHEN NOT (%s %s %s) OR %s IS NULL OR %s IS NULL THEN 1 ELSE 0 END)", left, op, right, left, right)
}

func sqlCompareOp(op string) string {
	switch op {
	case "==":
		return "="
	case "!=":
		return "<>"
	default:
		return op // <, <=, >, >= pass through unchanged
	}
}

func whenExpr(d Dialect, s compile.SqlSpec) string {
	col := QuoteIdent(d, s.WhenCol)
	op := sqlCompareOp(s.WhenOp)
	if op == "not_null" {
		return fmt.Sprintf("%s IS NOT NULL", col)
	}
	return fmt.Sprintf("%s %s %v", col, op, formatLiteral(s.WhenValue))
}

func regexExpr(d Dialect, col string, s compile.SqlSpec) string {
	switch d {
	case DialectPostgres:
		return fmt.Sprintf("SUM(CASE WHEN %s IS NULL OR %s !~ %s THEN 1 ELSE 0 END)", col, col, quoteStr(s.Pattern))
	default: // DuckDB (file engine) supports regexp_matches the same way
		return fmt.Sprintf("SUM(CASE WHEN %s IS NULL OR NOT regexp_matches(%s, %s) THEN 1 ELSE 0 END)", col, col, quoteStr(s.Pattern))
	}
}

func quoteList(d Dialect, vals []string) string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = quoteStr(v)
	}
	return strings.Join(out, ", ")
}

func quoteStr(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func formatNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatLiteral(v any) string {
	switch t := v.(type) {
	case string:
		return quoteStr(t)
	case float64:
		return formatNum(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// aliasFor derives a safe SQL column alias from a rule_id (spec.md §3
// rule_id format "COL:<col>:<rule_name>" or "DATASET:<rule_name>"), replacing
// characters that are not valid in a bare identifier.
func aliasFor(ruleID string, idx int) string {
	repl := strings.NewReplacer(":", "_", ".", "_", "-", "_", " ", "_")
	alias := "r_" + repl.Replace(ruleID)
	if len(alias) > 63 {
		alias = fmt.Sprintf("r_%d", idx)
	}
	return alias
}
