package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kontra-dev/kontra/internal/columnar"
	"github.com/kontra-dev/kontra/internal/compile"
	"github.com/kontra-dev/kontra/internal/result"
)

// --- NotNull -----------------------------------------------------------

type NotNullRule struct {
	base
}

func newNotNull(spec Spec) (Rule, error) {
	col, ok := strParam(spec.Params, "column")
	if !ok || col == "" {
		return nil, &ConfigError{RuleName: spec.Name, Param: "column", Msg: "required string parameter missing"}
	}
	return &NotNullRule{base{name: "not_null", ruleID: deriveID(spec.ID, "not_null", col), severity: severityOf(spec.Severity), params: spec.Params, column: col}}, nil
}

func (r *NotNullRule) RequiredColumns() []string { return []string{r.column} }

func (r *NotNullRule) CompilePredicate() (*compile.Predicate, bool) {
	col := r.column
	return &compile.Predicate{
		RuleID:      r.ruleID,
		Message:     fmt.Sprintf("column %q must not contain nulls", col),
		ColumnsUsed: map[string]bool{col: true},
		Eval: func(b *columnar.Batch) (int64, error) {
			failed, _, err := scanColumn(b, col, func(v columnar.Value) bool { return v.Null })
			return failed, err
		},
	}, true
}

func (r *NotNullRule) ToSQLSpec() (*compile.SqlSpec, bool) {
	return &compile.SqlSpec{Kind: compile.KindNotNull, RuleID: r.ruleID, Column: r.column}, true
}

func (r *NotNullRule) ToStaticPredicates() []compile.StaticPredicate {
	return []compile.StaticPredicate{{RuleID: r.ruleID, Column: r.column, Op: compile.NotNull}}
}

func (r *NotNullRule) Validate(b *columnar.Batch) result.RuleResult {
	failed, samples, err := scanColumn(b, r.column, func(v columnar.Value) bool { return v.Null })
	if err != nil {
		return configErrorResult(r, b, err)
	}
	res := baseResult(r, b, failed)
	if failed > 0 {
		res.FailureMode = result.FailureNullValues
		res.Details = map[string]any{
			"null_count":       failed,
			"null_rate":        rate(failed, b.NumRows()),
			"total_rows":       b.NumRows(),
			"sample_positions": samples,
		}
	}
	res.Column = r.column
	return res
}

// --- Unique --------------------------------------------------------------

type UniqueRule struct {
	base
}

func newUnique(spec Spec) (Rule, error) {
	col, ok := strParam(spec.Params, "column")
	if !ok || col == "" {
		return nil, &ConfigError{RuleName: spec.Name, Param: "column", Msg: "required string parameter missing"}
	}
	return &UniqueRule{base{name: "unique", ruleID: deriveID(spec.ID, "unique", col), severity: severityOf(spec.Severity), params: spec.Params, column: col}}, nil
}

func (r *UniqueRule) RequiredColumns() []string { return []string{r.column} }

func (r *UniqueRule) CompilePredicate() (*compile.Predicate, bool) {
	col := r.column
	return &compile.Predicate{
		RuleID:      r.ruleID,
		Message:     fmt.Sprintf("column %q must be unique", col),
		ColumnsUsed: map[string]bool{col: true},
		Eval: func(b *columnar.Batch) (int64, error) {
			counts, _, err := valueCounts(b, col)
			if err != nil {
				return 0, err
			}
			var dupRows int64
			for _, c := range counts {
				if c > 1 {
					dupRows += c
				}
			}
			return dupRows, nil
		},
	}, true
}

// ToSQLSpec: unique requires COUNT(*)-COUNT(DISTINCT col), which the
// file-engine dialect cannot do in EXISTS/AGG phase 1 alone but CAN in
// phase 2 aggregate form; kontra still emits a spec (RelationalDialectA
// supports it directly per spec.md §4.6; FileSqlExecutor does not list
// "unique" in its supported kind set, so it is filtered out there by the
// executor's own supports() gate, not here).
func (r *UniqueRule) ToSQLSpec() (*compile.SqlSpec, bool) {
	return &compile.SqlSpec{Kind: compile.KindUnique, RuleID: r.ruleID, Column: r.column}, true
}

func (r *UniqueRule) ToStaticPredicates() []compile.StaticPredicate { return nil }

func (r *UniqueRule) Validate(b *columnar.Batch) result.RuleResult {
	counts, _, err := valueCounts(b, r.column)
	if err != nil {
		return configErrorResult(r, b, err)
	}
	var dupRows int64
	dupCounts := make(map[string]int64)
	for v, c := range counts {
		if c > 1 {
			dupRows += c
			dupCounts[v] = c
		}
	}
	res := baseResult(r, b, dupRows)
	if dupRows > 0 {
		res.FailureMode = result.FailureDuplicateValues
		top := topN(dupCounts, maxTopValues)
		values := make([]map[string]any, 0, len(top))
		for _, p := range top {
			values = append(values, map[string]any{"value": p.Value, "count": p.Count})
		}
		res.Details = map[string]any{"duplicate_values": values}
	}
	res.Column = r.column
	return res
}

// --- Dtype -----------------------------------------------------------------

type DtypeRule struct {
	base
	expected columnar.DtypeFamily
	mode     string
}

func newDtype(spec Spec) (Rule, error) {
	col, ok := strParam(spec.Params, "column")
	if !ok || col == "" {
		return nil, &ConfigError{RuleName: spec.Name, Param: "column", Msg: "required string parameter missing"}
	}
	exp, ok := strParam(spec.Params, "expected_type")
	if !ok || exp == "" {
		return nil, &ConfigError{RuleName: spec.Name, Param: "expected_type", Msg: "required string parameter missing"}
	}
	mode, _ := strParam(spec.Params, "mode")
	if mode == "" {
		mode = "strict"
	}
	return &DtypeRule{
		base:     base{name: "dtype", ruleID: deriveID(spec.ID, "dtype", col), severity: severityOf(spec.Severity), params: spec.Params, column: col},
		expected: normalizeDtypeAlias(exp),
		mode:     mode,
	}, nil
}

// normalizeDtypeAlias treats Utf8 and String as equivalent (spec.md §4.2).
func normalizeDtypeAlias(s string) columnar.DtypeFamily {
	switch strings.ToLower(s) {
	case "utf8", "string", "str", "text":
		return columnar.DtypeUtf8
	case "integer", "int", "int64", "int32":
		return columnar.DtypeInteger
	case "numeric", "float", "float64", "double", "decimal":
		return columnar.DtypeNumeric
	case "boolean", "bool":
		return columnar.DtypeBoolean
	case "datetime", "timestamp", "date":
		return columnar.DtypeDatetime
	default:
		return columnar.DtypeUnknown
	}
}

func (r *DtypeRule) RequiredColumns() []string { return []string{r.column} }

// CompilePredicate: dtype is not a per-row boolean expression; it is decided
// once from the batch's schema, so no vectorized predicate is produced
// (falls through to Validate).
func (r *DtypeRule) CompilePredicate() (*compile.Predicate, bool) { return nil, false }

func (r *DtypeRule) ToSQLSpec() (*compile.SqlSpec, bool) { return nil, false }

func (r *DtypeRule) ToStaticPredicates() []compile.StaticPredicate {
	return []compile.StaticPredicate{{RuleID: r.ruleID, Column: r.column, Op: compile.DtypeOp, Value: r.expected}}
}

func (r *DtypeRule) Validate(b *columnar.Batch) result.RuleResult {
	arr, ok := b.Column(r.column)
	if !ok {
		return configErrorResult(r, b, fmt.Errorf("column %q not present in batch", r.column))
	}
	actual := columnar.FamilyOf(arr.DataType())
	if actual == r.expected {
		res := baseResult(r, b, 0)
		res.Column = r.column
		return res
	}
	res := baseResult(r, b, b.NumRows())
	res.FailureMode = result.FailureSchemaDrift
	res.Details = map[string]any{"expected": string(r.expected), "actual": string(actual)}
	res.Column = r.column
	return res
}

// --- Range -----------------------------------------------------------------

type RangeRule struct {
	base
	min, max *float64
}

func newRange(spec Spec) (Rule, error) {
	col, ok := strParam(spec.Params, "column")
	if !ok || col == "" {
		return nil, &ConfigError{RuleName: spec.Name, Param: "column", Msg: "required string parameter missing"}
	}
	min, hasMin := floatParam(spec.Params, "min")
	max, hasMax := floatParam(spec.Params, "max")
	if !hasMin && !hasMax {
		return nil, &ConfigError{RuleName: spec.Name, Param: "min/max", Msg: "range requires at least one of min or max"}
	}
	if hasMin && hasMax && min > max {
		return nil, &ConfigError{RuleName: spec.Name, Param: "min/max", Msg: "min must be <= max"}
	}
	r := &RangeRule{base: base{name: "range", ruleID: deriveID(spec.ID, "range", col), severity: severityOf(spec.Severity), params: spec.Params, column: col}}
	if hasMin {
		r.min = &min
	}
	if hasMax {
		r.max = &max
	}
	return r, nil
}

func (r *RangeRule) RequiredColumns() []string { return []string{r.column} }

func (r *RangeRule) violates(v columnar.Value) bool {
	f, ok := asFloat(v)
	if !ok {
		return true // null counted as violation, spec.md §4.2
	}
	if r.min != nil && f < *r.min {
		return true
	}
	if r.max != nil && f > *r.max {
		return true
	}
	return false
}

func (r *RangeRule) CompilePredicate() (*compile.Predicate, bool) {
	col := r.column
	return &compile.Predicate{
		RuleID:      r.ruleID,
		Message:     fmt.Sprintf("column %q must be within range", col),
		ColumnsUsed: map[string]bool{col: true},
		Eval: func(b *columnar.Batch) (int64, error) {
			failed, _, err := scanColumn(b, col, r.violates)
			return failed, err
		},
	}, true
}

func (r *RangeRule) ToSQLSpec() (*compile.SqlSpec, bool) {
	return &compile.SqlSpec{Kind: compile.KindRange, RuleID: r.ruleID, Column: r.column, Min: r.min, Max: r.max}, true
}

func (r *RangeRule) ToStaticPredicates() []compile.StaticPredicate {
	var preds []compile.StaticPredicate
	if r.min != nil {
		preds = append(preds, compile.StaticPredicate{RuleID: r.ruleID, Column: r.column, Op: compile.Ge, Value: *r.min})
	}
	if r.max != nil {
		preds = append(preds, compile.StaticPredicate{RuleID: r.ruleID, Column: r.column, Op: compile.Le, Value: *r.max})
	}
	return preds
}

func (r *RangeRule) Validate(b *columnar.Batch) result.RuleResult {
	failed, samples, err := scanColumn(b, r.column, r.violates)
	if err != nil {
		return configErrorResult(r, b, err)
	}
	res := baseResult(r, b, failed)
	if failed > 0 {
		res.FailureMode = result.FailureRangeViolation
		res.Details = map[string]any{"sample_positions": samples, "min": r.min, "max": r.max}
	}
	res.Column = r.column
	return res
}

// --- AllowedValues / DisallowedValues ---------------------------------------

type AllowedValuesRule struct {
	base
	values map[string]bool
	sorted []string
}

func newAllowedValues(spec Spec) (Rule, error) {
	col, ok := strParam(spec.Params, "column")
	if !ok || col == "" {
		return nil, &ConfigError{RuleName: spec.Name, Param: "column", Msg: "required string parameter missing"}
	}
	vals, ok := strSliceParam(spec.Params, "values")
	if !ok || len(vals) == 0 {
		return nil, &ConfigError{RuleName: spec.Name, Param: "values", Msg: "required non-empty string list"}
	}
	set := make(map[string]bool, len(vals))
	for _, v := range vals {
		set[v] = true
	}
	return &AllowedValuesRule{base: base{name: "allowed_values", ruleID: deriveID(spec.ID, "allowed_values", col), severity: severityOf(spec.Severity), params: spec.Params, column: col}, values: set, sorted: sortedUnique(vals)}, nil
}

func (r *AllowedValuesRule) RequiredColumns() []string { return []string{r.column} }

// violates: null is not in the allowed set, so it counts as a violation
// (spec.md §4.2 null handling), matching
// original_source/src/kontra/rules/builtin/allowed_values.py's fill_null(True).
func (r *AllowedValuesRule) violates(v columnar.Value) bool {
	if v.Null {
		return true
	}
	return !r.values[stringOf(v)]
}

func (r *AllowedValuesRule) CompilePredicate() (*compile.Predicate, bool) {
	col := r.column
	return &compile.Predicate{
		RuleID:      r.ruleID,
		Message:     fmt.Sprintf("column %q has values outside the allowed set", col),
		ColumnsUsed: map[string]bool{col: true},
		Eval: func(b *columnar.Batch) (int64, error) {
			failed, _, err := scanColumn(b, col, r.violates)
			return failed, err
		},
	}, true
}

func (r *AllowedValuesRule) ToSQLSpec() (*compile.SqlSpec, bool) {
	return &compile.SqlSpec{Kind: compile.KindAllowedValues, RuleID: r.ruleID, Column: r.column, Values: r.sorted}, true
}

func (r *AllowedValuesRule) ToStaticPredicates() []compile.StaticPredicate { return nil }

func (r *AllowedValuesRule) Validate(b *columnar.Batch) result.RuleResult {
	counts, _, err := valueCounts(b, r.column)
	if err != nil {
		return configErrorResult(r, b, err)
	}
	failed, _, err := scanColumn(b, r.column, r.violates)
	if err != nil {
		return configErrorResult(r, b, err)
	}
	res := baseResult(r, b, failed)
	if failed > 0 {
		res.FailureMode = result.FailureNovelCategory
		unexpected := make(map[string]int64)
		for v, c := range counts {
			if !r.values[v] {
				unexpected[v] = c
			}
		}
		top := topN(unexpected, maxTopValues)
		uv := make([]map[string]any, 0, len(top))
		for _, p := range top {
			uv = append(uv, map[string]any{"value": p.Value, "count": p.Count})
		}
		res.Details = map[string]any{"expected": r.sorted, "unexpected_values": uv}
	}
	res.Column = r.column
	return res
}

type DisallowedValuesRule struct {
	base
	values map[string]bool
	sorted []string
}

func newDisallowedValues(spec Spec) (Rule, error) {
	col, ok := strParam(spec.Params, "column")
	if !ok || col == "" {
		return nil, &ConfigError{RuleName: spec.Name, Param: "column", Msg: "required string parameter missing"}
	}
	vals, ok := strSliceParam(spec.Params, "values")
	if !ok || len(vals) == 0 {
		return nil, &ConfigError{RuleName: spec.Name, Param: "values", Msg: "required non-empty string list"}
	}
	set := make(map[string]bool, len(vals))
	for _, v := range vals {
		set[v] = true
	}
	return &DisallowedValuesRule{base: base{name: "disallowed_values", ruleID: deriveID(spec.ID, "disallowed_values", col), severity: severityOf(spec.Severity), params: spec.Params, column: col}, values: set, sorted: sortedUnique(vals)}, nil
}

func (r *DisallowedValuesRule) RequiredColumns() []string { return []string{r.column} }

func (r *DisallowedValuesRule) violates(v columnar.Value) bool {
	if v.Null {
		return false
	}
	return r.values[stringOf(v)]
}

func (r *DisallowedValuesRule) CompilePredicate() (*compile.Predicate, bool) {
	col := r.column
	return &compile.Predicate{
		RuleID:      r.ruleID,
		Message:     fmt.Sprintf("column %q contains disallowed values", col),
		ColumnsUsed: map[string]bool{col: true},
		Eval: func(b *columnar.Batch) (int64, error) {
			failed, _, err := scanColumn(b, col, r.violates)
			return failed, err
		},
	}, true
}

// ToSQLSpec: disallowed_values has no SQL kind in spec.md §3/§4.6; always
// runs in the columnar tier.
func (r *DisallowedValuesRule) ToSQLSpec() (*compile.SqlSpec, bool) { return nil, false }

func (r *DisallowedValuesRule) ToStaticPredicates() []compile.StaticPredicate { return nil }

func (r *DisallowedValuesRule) Validate(b *columnar.Batch) result.RuleResult {
	failed, _, err := scanColumn(b, r.column, r.violates)
	if err != nil {
		return configErrorResult(r, b, err)
	}
	res := baseResult(r, b, failed)
	if failed > 0 {
		res.FailureMode = result.FailureNovelCategory
		res.Details = map[string]any{"disallowed": r.sorted}
	}
	res.Column = r.column
	return res
}

// --- Regex -------------------------------------------------------------

type RegexRule struct {
	base
	pattern string
	re      *regexp.Regexp
}

func newRegex(spec Spec) (Rule, error) {
	col, ok := strParam(spec.Params, "column")
	if !ok || col == "" {
		return nil, &ConfigError{RuleName: spec.Name, Param: "column", Msg: "required string parameter missing"}
	}
	pat, ok := strParam(spec.Params, "pattern")
	if !ok || pat == "" {
		return nil, &ConfigError{RuleName: spec.Name, Param: "pattern", Msg: "required string parameter missing"}
	}
	re, err := regexp.Compile(pat)
	if err != nil {
		return nil, &ConfigError{RuleName: spec.Name, Param: "pattern", Msg: err.Error()}
	}
	return &RegexRule{base: base{name: "regex", ruleID: deriveID(spec.ID, "regex", col), severity: severityOf(spec.Severity), params: spec.Params, column: col}, pattern: pat, re: re}, nil
}

func (r *RegexRule) RequiredColumns() []string { return []string{r.column} }

func (r *RegexRule) violates(v columnar.Value) bool {
	if v.Null {
		return true // spec.md §4.2: null -> fail for Regex
	}
	return !r.re.MatchString(stringOf(v))
}

func (r *RegexRule) CompilePredicate() (*compile.Predicate, bool) {
	col := r.column
	return &compile.Predicate{
		RuleID:      r.ruleID,
		Message:     fmt.Sprintf("column %q must match pattern %q", col, r.pattern),
		ColumnsUsed: map[string]bool{col: true},
		Eval: func(b *columnar.Batch) (int64, error) {
			failed, _, err := scanColumn(b, col, r.violates)
			return failed, err
		},
	}, true
}

// ToSQLSpec: regex SQL generation is dialect-dependent (spec.md §4.2, §4.6,
// REDESIGN/open-question on portability); the executor registry decides per
// dialect whether to honor this spec or defer to columnar. The rule itself
// always emits one; RelationalDialectB's executor filters it out.
func (r *RegexRule) ToSQLSpec() (*compile.SqlSpec, bool) {
	return &compile.SqlSpec{Kind: compile.KindRegex, RuleID: r.ruleID, Column: r.column, Pattern: r.pattern}, true
}

func (r *RegexRule) ToStaticPredicates() []compile.StaticPredicate { return nil }

func (r *RegexRule) Validate(b *columnar.Batch) result.RuleResult {
	failed, samples, err := scanColumn(b, r.column, r.violates)
	if err != nil {
		return configErrorResult(r, b, err)
	}
	res := baseResult(r, b, failed)
	if failed > 0 {
		res.FailureMode = result.FailurePatternMismatch
		res.Details = map[string]any{"pattern": r.pattern, "sample_positions": samples}
	}
	res.Column = r.column
	return res
}

// --- Length / Contains / StartsWith / EndsWith -----------------------------

type LengthRule struct {
	base
	min, max *int
}

func newLength(spec Spec) (Rule, error) {
	col, ok := strParam(spec.Params, "column")
	if !ok || col == "" {
		return nil, &ConfigError{RuleName: spec.Name, Param: "column", Msg: "required string parameter missing"}
	}
	minF, hasMin := floatParam(spec.Params, "min")
	maxF, hasMax := floatParam(spec.Params, "max")
	if !hasMin && !hasMax {
		return nil, &ConfigError{RuleName: spec.Name, Param: "min/max", Msg: "length requires at least one of min or max"}
	}
	r := &LengthRule{base: base{name: "length", ruleID: deriveID(spec.ID, "length", col), severity: severityOf(spec.Severity), params: spec.Params, column: col}}
	if hasMin {
		m := int(minF)
		r.min = &m
	}
	if hasMax {
		m := int(maxF)
		r.max = &m
	}
	return r, nil
}

func (r *LengthRule) RequiredColumns() []string { return []string{r.column} }

func (r *LengthRule) violates(v columnar.Value) bool {
	if v.Null {
		return true
	}
	n := len(v.Str)
	if r.min != nil && n < *r.min {
		return true
	}
	if r.max != nil && n > *r.max {
		return true
	}
	return false
}

func (r *LengthRule) CompilePredicate() (*compile.Predicate, bool) {
	col := r.column
	return &compile.Predicate{
		RuleID: r.ruleID, Message: fmt.Sprintf("column %q length out of bounds", col), ColumnsUsed: map[string]bool{col: true},
		Eval: func(b *columnar.Batch) (int64, error) {
			failed, _, err := scanColumn(b, col, r.violates)
			return failed, err
		},
	}, true
}

func (r *LengthRule) ToSQLSpec() (*compile.SqlSpec, bool) { return nil, false }

func (r *LengthRule) ToStaticPredicates() []compile.StaticPredicate { return nil }

func (r *LengthRule) Validate(b *columnar.Batch) result.RuleResult {
	failed, samples, err := scanColumn(b, r.column, r.violates)
	if err != nil {
		return configErrorResult(r, b, err)
	}
	res := baseResult(r, b, failed)
	if failed > 0 {
		res.FailureMode = result.FailurePatternMismatch
		res.Details = map[string]any{"sample_positions": samples}
	}
	res.Column = r.column
	return res
}

type stringMatchRule struct {
	base
	needle string
	kind   string // contains | starts_with | ends_with
}

func newContains(spec Spec) (Rule, error)   { return newStringMatch(spec, "contains", "substring") }
func newStartsWith(spec Spec) (Rule, error) { return newStringMatch(spec, "starts_with", "prefix") }
func newEndsWith(spec Spec) (Rule, error)   { return newStringMatch(spec, "ends_with", "suffix") }

func newStringMatch(spec Spec, name, paramKey string) (Rule, error) {
	col, ok := strParam(spec.Params, "column")
	if !ok || col == "" {
		return nil, &ConfigError{RuleName: spec.Name, Param: "column", Msg: "required string parameter missing"}
	}
	needle, ok := strParam(spec.Params, paramKey)
	if !ok || needle == "" {
		return nil, &ConfigError{RuleName: spec.Name, Param: paramKey, Msg: "required string parameter missing"}
	}
	return &stringMatchRule{base: base{name: name, ruleID: deriveID(spec.ID, name, col), severity: severityOf(spec.Severity), params: spec.Params, column: col}, needle: needle, kind: name}, nil
}

func (r *stringMatchRule) RequiredColumns() []string { return []string{r.column} }

func (r *stringMatchRule) violates(v columnar.Value) bool {
	if v.Null {
		return true
	}
	switch r.kind {
	case "contains":
		return !strings.Contains(v.Str, r.needle)
	case "starts_with":
		return !strings.HasPrefix(v.Str, r.needle)
	case "ends_with":
		return !strings.HasSuffix(v.Str, r.needle)
	default:
		return false
	}
}

func (r *stringMatchRule) CompilePredicate() (*compile.Predicate, bool) {
	col := r.column
	return &compile.Predicate{
		RuleID: r.ruleID, Message: fmt.Sprintf("column %q fails %s check", col, r.kind), ColumnsUsed: map[string]bool{col: true},
		Eval: func(b *columnar.Batch) (int64, error) {
			failed, _, err := scanColumn(b, col, r.violates)
			return failed, err
		},
	}, true
}

func (r *stringMatchRule) ToSQLSpec() (*compile.SqlSpec, bool) { return nil, false }

// ToStaticPredicates: starts_with maps directly onto the ^= prefix static
// predicate op (spec.md §3 StaticPredicate op set), so preplan can prune on
// it; contains/ends_with have no equivalent op.
func (r *stringMatchRule) ToStaticPredicates() []compile.StaticPredicate {
	if r.kind != "starts_with" {
		return nil
	}
	return []compile.StaticPredicate{{RuleID: r.ruleID, Column: r.column, Op: compile.Prefix, Value: r.needle}}
}

func (r *stringMatchRule) Validate(b *columnar.Batch) result.RuleResult {
	failed, samples, err := scanColumn(b, r.column, r.violates)
	if err != nil {
		return configErrorResult(r, b, err)
	}
	res := baseResult(r, b, failed)
	if failed > 0 {
		res.FailureMode = result.FailurePatternMismatch
		res.Details = map[string]any{"sample_positions": samples, "needle": r.needle}
	}
	res.Column = r.column
	return res
}

func rate(failed, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
