// Package compile holds the descriptive, I/O-free types produced by a rule's
// compilation: the vectorizable Predicate, the dialect-agnostic SqlSpec, and
// the metadata-only StaticPredicate. Rules build these; the plan and SQL
// executors consume them.
package compile

import "github.com/kontra-dev/kontra/internal/columnar"

// Op is the closed set of comparison operators used by static predicates and
// several SqlSpec kinds (spec.md §3 StaticPredicate).
type Op string

const (
	Eq       Op = "=="
	Ne       Op = "!="
	Lt       Op = "<"
	Le       Op = "<="
	Gt       Op = ">"
	Ge       Op = ">="
	Prefix   Op = "^="
	NotNull  Op = "not_null"
	DtypeOp  Op = "dtype"
)

// Predicate is a vectorizable boolean column expression. Eval returns the
// number of rows that VIOLATE the rule (the "failed count"), not the number
// that satisfy it; this matches the wire shape's failed_count field directly.
type Predicate struct {
	RuleID      string
	Message     string
	ColumnsUsed map[string]bool
	Eval        func(b *columnar.Batch) (failedCount int64, err error)
}

// StaticPredicate is a (column, op, value) triple usable against Parquet
// column statistics only (spec.md §3, §4.7). Value is nil for NotNull.
type StaticPredicate struct {
	RuleID string
	Column string
	Op     Op
	Value  any
}

// SqlSpec is a minimal, dialect-agnostic descriptor of a rule sufficient for
// an executor to generate SQL (spec.md §3). Only the fields relevant to Kind
// are populated; the rest are zero values.
type SqlSpec struct {
	Kind    string
	RuleID  string
	Column  string

	Min, Max     *float64
	Values       []string
	Pattern      string
	Substring    string
	Prefix       string
	Suffix       string
	LengthMin    *int
	LengthMax    *int
	N            int64
	MaxAgeSeconds int64

	LeftCol, RightCol string
	CompareOp         string

	WhenCol   string
	WhenOp    string
	WhenValue any

	Message string
}

// Kind values for SqlSpec.Kind (spec.md §3).
const (
	KindNotNull            = "not_null"
	KindUnique             = "unique"
	KindMinRows            = "min_rows"
	KindMaxRows            = "max_rows"
	KindAllowedValues      = "allowed_values"
	KindDisallowedValues   = "disallowed_values"
	KindFreshness          = "freshness"
	KindRange              = "range"
	KindRegex              = "regex"
	KindLength             = "length"
	KindContains           = "contains"
	KindStartsWith         = "starts_with"
	KindEndsWith           = "ends_with"
	KindCompare            = "compare"
	KindConditionalNotNull = "conditional_not_null"
	KindConditionalRange   = "conditional_range"
	KindCustomSQL          = "custom_sql_check"
)
