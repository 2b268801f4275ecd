package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kontra-dev/kontra/internal/columnar"
	"github.com/kontra-dev/kontra/internal/compile"
	"github.com/kontra-dev/kontra/internal/result"
)

// --- MinRows / MaxRows -------------------------------------------------

type MinRowsRule struct {
	base
	n int64
}

func newMinRows(spec Spec) (Rule, error) {
	n, ok := intParam(spec.Params, "n")
	if !ok {
		return nil, &ConfigError{RuleName: spec.Name, Param: "n", Msg: "required integer parameter missing"}
	}
	return &MinRowsRule{base: base{name: "min_rows", ruleID: deriveID(spec.ID, "min_rows", ""), severity: severityOf(spec.Severity), params: spec.Params}, n: n}, nil
}

func (r *MinRowsRule) RequiredColumns() []string { return nil }

func (r *MinRowsRule) CompilePredicate() (*compile.Predicate, bool) {
	n := r.n
	return &compile.Predicate{
		RuleID: r.ruleID, Message: fmt.Sprintf("dataset must have at least %d rows", n), ColumnsUsed: map[string]bool{},
		Eval: func(b *columnar.Batch) (int64, error) { return max0(n - b.NumRows()), nil },
	}, true
}

func (r *MinRowsRule) ToSQLSpec() (*compile.SqlSpec, bool) {
	return &compile.SqlSpec{Kind: compile.KindMinRows, RuleID: r.ruleID, N: r.n}, true
}

func (r *MinRowsRule) ToStaticPredicates() []compile.StaticPredicate { return nil }

func (r *MinRowsRule) Validate(b *columnar.Batch) result.RuleResult {
	failed := max0(r.n - b.NumRows())
	res := baseResult(r, b, failed)
	if failed > 0 {
		res.FailureMode = result.FailureRowCountLow
		res.Details = map[string]any{"min_rows": r.n, "actual_rows": b.NumRows()}
	}
	return res
}

type MaxRowsRule struct {
	base
	n int64
}

func newMaxRows(spec Spec) (Rule, error) {
	n, ok := intParam(spec.Params, "n")
	if !ok {
		return nil, &ConfigError{RuleName: spec.Name, Param: "n", Msg: "required integer parameter missing"}
	}
	return &MaxRowsRule{base: base{name: "max_rows", ruleID: deriveID(spec.ID, "max_rows", ""), severity: severityOf(spec.Severity), params: spec.Params}, n: n}, nil
}

func (r *MaxRowsRule) RequiredColumns() []string { return nil }

func (r *MaxRowsRule) CompilePredicate() (*compile.Predicate, bool) {
	n := r.n
	return &compile.Predicate{
		RuleID: r.ruleID, Message: fmt.Sprintf("dataset must have at most %d rows", n), ColumnsUsed: map[string]bool{},
		Eval: func(b *columnar.Batch) (int64, error) { return max0(b.NumRows() - n), nil },
	}, true
}

func (r *MaxRowsRule) ToSQLSpec() (*compile.SqlSpec, bool) {
	return &compile.SqlSpec{Kind: compile.KindMaxRows, RuleID: r.ruleID, N: r.n}, true
}

func (r *MaxRowsRule) ToStaticPredicates() []compile.StaticPredicate { return nil }

func (r *MaxRowsRule) Validate(b *columnar.Batch) result.RuleResult {
	failed := max0(b.NumRows() - r.n)
	res := baseResult(r, b, failed)
	if failed > 0 {
		res.FailureMode = result.FailureRowCountHigh
		res.Details = map[string]any{"max_rows": r.n, "actual_rows": b.NumRows()}
	}
	return res
}

func max0(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// --- Freshness ---------------------------------------------------------

type FreshnessRule struct {
	base
	maxAgeSeconds int64
}

func newFreshness(spec Spec) (Rule, error) {
	col, ok := strParam(spec.Params, "column")
	if !ok || col == "" {
		return nil, &ConfigError{RuleName: spec.Name, Param: "column", Msg: "required string parameter missing"}
	}
	raw, ok := strParam(spec.Params, "max_age_seconds")
	var secs int64
	if ok {
		s, err := parseDurationString(raw)
		if err != nil {
			return nil, &ConfigError{RuleName: spec.Name, Param: "max_age_seconds", Msg: err.Error()}
		}
		secs = s
	} else if n, ok := intParam(spec.Params, "max_age_seconds"); ok {
		secs = n
	} else {
		return nil, &ConfigError{RuleName: spec.Name, Param: "max_age_seconds", Msg: "required parameter missing"}
	}
	return &FreshnessRule{base: base{name: "freshness", ruleID: deriveID(spec.ID, "freshness", col), severity: severityOf(spec.Severity), params: spec.Params, column: col}, maxAgeSeconds: secs}, nil
}

// parseDurationString accepts suffixes s|m|h|d|w (spec.md §4.2).
func parseDurationString(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	unit := s[len(s)-1]
	var mult int64
	numPart := s
	switch unit {
	case 's':
		mult, numPart = 1, s[:len(s)-1]
	case 'm':
		mult, numPart = 60, s[:len(s)-1]
	case 'h':
		mult, numPart = 3600, s[:len(s)-1]
	case 'd':
		mult, numPart = 86400, s[:len(s)-1]
	case 'w':
		mult, numPart = 604800, s[:len(s)-1]
	default:
		mult, numPart = 1, s
	}
	n, err := strconv.ParseInt(numPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return n * mult, nil
}

func (r *FreshnessRule) RequiredColumns() []string { return []string{r.column} }

func (r *FreshnessRule) CompilePredicate() (*compile.Predicate, bool) {
	col := r.column
	threshold := r.maxAgeSeconds
	return &compile.Predicate{
		RuleID: r.ruleID, Message: fmt.Sprintf("column %q must have a recent max timestamp", col), ColumnsUsed: map[string]bool{col: true},
		Eval: func(b *columnar.Batch) (int64, error) {
			stale, _, err := freshnessStale(b, col, threshold)
			if err != nil {
				return 0, err
			}
			if stale {
				return 1, nil
			}
			return 0, nil
		},
	}, true
}

func freshnessStale(b *columnar.Batch, col string, maxAgeSeconds int64) (bool, time.Time, error) {
	arr, ok := b.Column(col)
	if !ok {
		return false, time.Time{}, fmt.Errorf("column %q not present in batch", col)
	}
	var maxTS time.Time
	found := false
	for i := 0; i < arr.Len(); i++ {
		v, err := columnar.At(arr, i)
		if err != nil {
			return false, time.Time{}, err
		}
		if v.Null || !v.HasTime {
			continue
		}
		if !found || v.Time.After(maxTS) {
			maxTS = v.Time
			found = true
		}
	}
	if !found {
		return true, maxTS, nil
	}
	threshold := time.Now().Add(-time.Duration(maxAgeSeconds) * time.Second)
	return maxTS.Before(threshold), maxTS, nil
}

func (r *FreshnessRule) ToSQLSpec() (*compile.SqlSpec, bool) {
	return &compile.SqlSpec{Kind: compile.KindFreshness, RuleID: r.ruleID, Column: r.column, MaxAgeSeconds: r.maxAgeSeconds}, true
}

func (r *FreshnessRule) ToStaticPredicates() []compile.StaticPredicate { return nil }

func (r *FreshnessRule) Validate(b *columnar.Batch) result.RuleResult {
	stale, maxTS, err := freshnessStale(b, r.column, r.maxAgeSeconds)
	if err != nil {
		return configErrorResult(r, b, err)
	}
	var failed int64
	if stale {
		failed = 1
	}
	res := baseResult(r, b, failed)
	if stale {
		res.FailureMode = result.FailureFreshnessLag
		res.Details = map[string]any{"max_timestamp": maxTS, "max_age_seconds": r.maxAgeSeconds}
	}
	res.Column = r.column
	return res
}

// --- Compare -------------------------------------------------------------

type CompareRule struct {
	base
	left, right string
	op          string
}

var compareOps = map[string]bool{"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}

func newCompare(spec Spec) (Rule, error) {
	left, ok := strParam(spec.Params, "left_col")
	if !ok || left == "" {
		return nil, &ConfigError{RuleName: spec.Name, Param: "left_col", Msg: "required string parameter missing"}
	}
	right, ok := strParam(spec.Params, "right_col")
	if !ok || right == "" {
		return nil, &ConfigError{RuleName: spec.Name, Param: "right_col", Msg: "required string parameter missing"}
	}
	op, ok := strParam(spec.Params, "op")
	if !ok || !compareOps[op] {
		return nil, &ConfigError{RuleName: spec.Name, Param: "op", Msg: "must be one of ==, !=, <, <=, >, >="}
	}
	return &CompareRule{base: base{name: "compare", ruleID: deriveID(spec.ID, "compare", ""), severity: severityOf(spec.Severity), params: spec.Params}, left: left, right: right, op: op}, nil
}

func (r *CompareRule) RequiredColumns() []string { return sortedUnique([]string{r.left, r.right}) }

// violates: a null on either side cannot satisfy a comparison, so it
// counts as a violation, consistent with Range/Regex null handling
// (spec.md §4.2); spec.md does not pin this down explicitly for Compare.
func (r *CompareRule) violates(row map[string]columnar.Value) bool {
	l, lok := asFloat(row[r.left])
	rv, rok := asFloat(row[r.right])
	if !lok || !rok {
		return true
	}
	switch r.op {
	case "==":
		return l != rv
	case "!=":
		return l == rv
	case "<":
		return !(l < rv)
	case "<=":
		return !(l <= rv)
	case ">":
		return !(l > rv)
	case ">=":
		return !(l >= rv)
	default:
		return true
	}
}

func (r *CompareRule) CompilePredicate() (*compile.Predicate, bool) {
	cols := []string{r.left, r.right}
	return &compile.Predicate{
		RuleID: r.ruleID, Message: fmt.Sprintf("%s %s %s must hold", r.left, r.op, r.right), ColumnsUsed: map[string]bool{r.left: true, r.right: true},
		Eval: func(b *columnar.Batch) (int64, error) {
			failed, _, err := scanRows(b, cols, r.violates)
			return failed, err
		},
	}, true
}

func (r *CompareRule) ToSQLSpec() (*compile.SqlSpec, bool) {
	return &compile.SqlSpec{Kind: compile.KindCompare, RuleID: r.ruleID, LeftCol: r.left, RightCol: r.right, CompareOp: r.op}, true
}

func (r *CompareRule) ToStaticPredicates() []compile.StaticPredicate { return nil }

func (r *CompareRule) Validate(b *columnar.Batch) result.RuleResult {
	failed, samples, err := scanRows(b, []string{r.left, r.right}, r.violates)
	if err != nil {
		return configErrorResult(r, b, err)
	}
	res := baseResult(r, b, failed)
	if failed > 0 {
		res.FailureMode = result.FailureRangeViolation
		res.Details = map[string]any{"sample_positions": samples}
	}
	return res
}

// --- ConditionalNotNull / ConditionalRange ---------------------------------

func evalWhen(v columnar.Value, whenOp string, whenValue any) bool {
	switch whenOp {
	case "not_null":
		return !v.Null
	}
	f, ok := asFloat(v)
	target, targetIsNum := toFloat(whenValue)
	if ok && targetIsNum {
		switch whenOp {
		case "==":
			return f == target
		case "!=":
			return f != target
		case "<":
			return f < target
		case "<=":
			return f <= target
		case ">":
			return f > target
		case ">=":
			return f >= target
		}
	}
	s := stringOf(v)
	ts := fmt.Sprintf("%v", whenValue)
	switch whenOp {
	case "==":
		return s == ts
	case "!=":
		return s != ts
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

type ConditionalNotNullRule struct {
	base
	whenCol   string
	whenOp    string
	whenValue any
}

func newConditionalNotNull(spec Spec) (Rule, error) {
	col, ok := strParam(spec.Params, "column")
	if !ok || col == "" {
		return nil, &ConfigError{RuleName: spec.Name, Param: "column", Msg: "required string parameter missing"}
	}
	whenCol, ok := strParam(spec.Params, "when_col")
	if !ok || whenCol == "" {
		return nil, &ConfigError{RuleName: spec.Name, Param: "when_col", Msg: "required string parameter missing"}
	}
	whenOp, ok := strParam(spec.Params, "when_op")
	if !ok || whenOp == "" {
		return nil, &ConfigError{RuleName: spec.Name, Param: "when_op", Msg: "required string parameter missing"}
	}
	whenValue := spec.Params["when_value"]
	return &ConditionalNotNullRule{base: base{name: "conditional_not_null", ruleID: deriveID(spec.ID, "conditional_not_null", col), severity: severityOf(spec.Severity), params: spec.Params, column: col}, whenCol: whenCol, whenOp: whenOp, whenValue: whenValue}, nil
}

func (r *ConditionalNotNullRule) RequiredColumns() []string {
	return sortedUnique([]string{r.column, r.whenCol})
}

func (r *ConditionalNotNullRule) violates(row map[string]columnar.Value) bool {
	if !evalWhen(row[r.whenCol], r.whenOp, r.whenValue) {
		return false
	}
	return row[r.column].Null
}

func (r *ConditionalNotNullRule) CompilePredicate() (*compile.Predicate, bool) {
	cols := []string{r.column, r.whenCol}
	return &compile.Predicate{
		RuleID: r.ruleID, Message: fmt.Sprintf("column %q must not be null when condition holds", r.column), ColumnsUsed: map[string]bool{r.column: true, r.whenCol: true},
		Eval: func(b *columnar.Batch) (int64, error) {
			failed, _, err := scanRows(b, cols, r.violates)
			return failed, err
		},
	}, true
}

func (r *ConditionalNotNullRule) ToSQLSpec() (*compile.SqlSpec, bool) {
	return &compile.SqlSpec{Kind: compile.KindConditionalNotNull, RuleID: r.ruleID, Column: r.column, WhenCol: r.whenCol, WhenOp: r.whenOp, WhenValue: r.whenValue}, true
}

func (r *ConditionalNotNullRule) ToStaticPredicates() []compile.StaticPredicate { return nil }

func (r *ConditionalNotNullRule) Validate(b *columnar.Batch) result.RuleResult {
	failed, samples, err := scanRows(b, []string{r.column, r.whenCol}, r.violates)
	if err != nil {
		return configErrorResult(r, b, err)
	}
	res := baseResult(r, b, failed)
	if failed > 0 {
		res.FailureMode = result.FailureNullValues
		res.Details = map[string]any{"sample_positions": samples}
	}
	res.Column = r.column
	return res
}

type ConditionalRangeRule struct {
	base
	whenCol          string
	whenOp           string
	whenValue        any
	min, max         *float64
}

func newConditionalRange(spec Spec) (Rule, error) {
	col, ok := strParam(spec.Params, "column")
	if !ok || col == "" {
		return nil, &ConfigError{RuleName: spec.Name, Param: "column", Msg: "required string parameter missing"}
	}
	whenCol, ok := strParam(spec.Params, "when_col")
	if !ok || whenCol == "" {
		return nil, &ConfigError{RuleName: spec.Name, Param: "when_col", Msg: "required string parameter missing"}
	}
	whenOp, ok := strParam(spec.Params, "when_op")
	if !ok || whenOp == "" {
		return nil, &ConfigError{RuleName: spec.Name, Param: "when_op", Msg: "required string parameter missing"}
	}
	min, hasMin := floatParam(spec.Params, "min")
	max, hasMax := floatParam(spec.Params, "max")
	if !hasMin && !hasMax {
		return nil, &ConfigError{RuleName: spec.Name, Param: "min/max", Msg: "conditional_range requires at least one of min or max"}
	}
	r := &ConditionalRangeRule{base: base{name: "conditional_range", ruleID: deriveID(spec.ID, "conditional_range", col), severity: severityOf(spec.Severity), params: spec.Params, column: col}, whenCol: whenCol, whenOp: whenOp, whenValue: spec.Params["when_value"]}
	if hasMin {
		r.min = &min
	}
	if hasMax {
		r.max = &max
	}
	return r, nil
}

func (r *ConditionalRangeRule) RequiredColumns() []string {
	return sortedUnique([]string{r.column, r.whenCol})
}

func (r *ConditionalRangeRule) violates(row map[string]columnar.Value) bool {
	if !evalWhen(row[r.whenCol], r.whenOp, r.whenValue) {
		return false
	}
	f, ok := asFloat(row[r.column])
	if !ok {
		return true
	}
	if r.min != nil && f < *r.min {
		return true
	}
	if r.max != nil && f > *r.max {
		return true
	}
	return false
}

func (r *ConditionalRangeRule) CompilePredicate() (*compile.Predicate, bool) {
	cols := []string{r.column, r.whenCol}
	return &compile.Predicate{
		RuleID: r.ruleID, Message: fmt.Sprintf("column %q must be in range when condition holds", r.column), ColumnsUsed: map[string]bool{r.column: true, r.whenCol: true},
		Eval: func(b *columnar.Batch) (int64, error) {
			failed, _, err := scanRows(b, cols, r.violates)
			return failed, err
		},
	}, true
}

func (r *ConditionalRangeRule) ToSQLSpec() (*compile.SqlSpec, bool) {
	return &compile.SqlSpec{Kind: compile.KindConditionalRange, RuleID: r.ruleID, Column: r.column, WhenCol: r.whenCol, WhenOp: r.whenOp, WhenValue: r.whenValue, Min: r.min, Max: r.max}, true
}

func (r *ConditionalRangeRule) ToStaticPredicates() []compile.StaticPredicate { return nil }

func (r *ConditionalRangeRule) Validate(b *columnar.Batch) result.RuleResult {
	failed, samples, err := scanRows(b, []string{r.column, r.whenCol}, r.violates)
	if err != nil {
		return configErrorResult(r, b, err)
	}
	res := baseResult(r, b, failed)
	if failed > 0 {
		res.FailureMode = result.FailureRangeViolation
		res.Details = map[string]any{"sample_positions": samples}
	}
	res.Column = r.column
	return res
}

// --- CustomSqlCheck --------------------------------------------------------

// CustomSqlCheckRule carries a user-supplied SQL expression. It is primarily
// an SQL-tier rule (internal/sqlexec validates and wraps it per spec.md
// §4.6); it has no vectorized columnar equivalent because the engine cannot
// know how to evaluate arbitrary SQL against an in-memory frame.
type CustomSqlCheckRule struct {
	base
	sql string
}

func newCustomSQLCheck(spec Spec) (Rule, error) {
	sql, ok := strParam(spec.Params, "sql")
	if !ok || strings.TrimSpace(sql) == "" {
		return nil, &ConfigError{RuleName: spec.Name, Param: "sql", Msg: "required string parameter missing"}
	}
	return &CustomSqlCheckRule{base: base{name: "custom_sql_check", ruleID: deriveID(spec.ID, "custom_sql_check", ""), severity: severityOf(spec.Severity), params: spec.Params}, sql: sql}, nil
}

func (r *CustomSqlCheckRule) SQL() string { return r.sql }

func (r *CustomSqlCheckRule) RequiredColumns() []string { return nil }

func (r *CustomSqlCheckRule) CompilePredicate() (*compile.Predicate, bool) { return nil, false }

func (r *CustomSqlCheckRule) ToSQLSpec() (*compile.SqlSpec, bool) {
	return &compile.SqlSpec{Kind: compile.KindCustomSQL, RuleID: r.ruleID, Message: r.sql}, true
}

func (r *CustomSqlCheckRule) ToStaticPredicates() []compile.StaticPredicate { return nil }

// Validate is reached only if no SQL executor could run this spec (e.g. the
// dataset has no SQL-capable tier at all); there is no columnar equivalent
// of an arbitrary SQL predicate, so this is a config_error, matching
// spec.md §7's "rule execution error" shape.
func (r *CustomSqlCheckRule) Validate(b *columnar.Batch) result.RuleResult {
	return configErrorResult(r, b, fmt.Errorf("custom_sql_check requires a SQL-capable executor; none was available for this dataset"))
}
