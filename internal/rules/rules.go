// Package rules implements the Rule sum type, its name→constructor registry,
// and parameter validation (spec.md §4.1, C1). Rules are built once per run
// from the contract and are immutable thereafter.
package rules

import (
	"fmt"
	"sort"

	"github.com/kontra-dev/kontra/internal/columnar"
	"github.com/kontra-dev/kontra/internal/compile"
	"github.com/kontra-dev/kontra/internal/result"
)

// Spec is the contract-level description of a rule before construction
// (spec.md §6 contract file `rules[]` entries).
type Spec struct {
	Name     string
	ID       string
	Params   map[string]any
	Severity string
}

// ConfigError reports a problem found while building rules from a contract:
// unknown rule name or a missing/malformed parameter (spec.md §4.1, §7).
type ConfigError struct {
	RuleName string
	Param    string
	Msg      string
}

func (e *ConfigError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("rule %q: parameter %q: %s", e.RuleName, e.Param, e.Msg)
	}
	return fmt.Sprintf("rule %q: %s", e.RuleName, e.Msg)
}

// Rule is the sum type's common interface (spec.md §4.1 contract).
type Rule interface {
	Name() string
	RuleID() string
	Severity() result.Severity
	Params() map[string]any

	RequiredColumns() []string
	CompilePredicate() (*compile.Predicate, bool)
	ToSQLSpec() (*compile.SqlSpec, bool)
	ToStaticPredicates() []compile.StaticPredicate
	Validate(b *columnar.Batch) result.RuleResult
}

// base holds the fields every rule variant carries (spec.md §3: rule_id,
// severity, params) plus the shared identity-derivation logic.
type base struct {
	name     string
	ruleID   string
	severity result.Severity
	params   map[string]any
	column   string
}

func (b *base) Name() string               { return b.name }
func (b *base) RuleID() string              { return b.ruleID }
func (b *base) Severity() result.Severity   { return b.severity }
func (b *base) Params() map[string]any      { return b.params }

// deriveID implements spec.md §3's identity rule: explicit id wins; else
// COL:<col>:<name> if a column is present, else DATASET:<name>.
func deriveID(explicit, name, column string) string {
	if explicit != "" {
		return explicit
	}
	if column != "" {
		return fmt.Sprintf("COL:%s:%s", column, name)
	}
	return fmt.Sprintf("DATASET:%s", name)
}

func severityOf(s string) result.Severity {
	switch result.Severity(s) {
	case result.Warning:
		return result.Warning
	case result.Info:
		return result.Info
	default:
		return result.Blocking
	}
}

// Constructor builds one Rule from a Spec; returns *ConfigError on invalid
// or missing parameters.
type Constructor func(spec Spec) (Rule, error)

// registry is the name→constructor table (spec.md §9: "sum type + a small
// construction table", no runtime subclassing). Populated once at init.
var registry = map[string]Constructor{
	"not_null":              newNotNull,
	"unique":                newUnique,
	"dtype":                 newDtype,
	"range":                 newRange,
	"allowed_values":        newAllowedValues,
	"disallowed_values":     newDisallowedValues,
	"regex":                 newRegex,
	"length":                newLength,
	"contains":              newContains,
	"starts_with":           newStartsWith,
	"ends_with":             newEndsWith,
	"min_rows":              newMinRows,
	"max_rows":              newMaxRows,
	"freshness":             newFreshness,
	"compare":               newCompare,
	"conditional_not_null":  newConditionalNotNull,
	"conditional_range":     newConditionalRange,
	"custom_sql_check":      newCustomSQLCheck,
}

// BuildRules maps contract specs to concrete rules in order, preserving
// contract order (spec.md §4.1 determinism). An unknown rule name is a
// config_error.
func BuildRules(specs []Spec) ([]Rule, error) {
	out := make([]Rule, 0, len(specs))
	for _, s := range specs {
		ctor, ok := registry[s.Name]
		if !ok {
			return nil, &ConfigError{RuleName: s.Name, Msg: "unknown rule name"}
		}
		r, err := ctor(s)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// param helpers shared across variants.

func strParam(p map[string]any, key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func floatParam(p map[string]any, key string) (float64, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
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

func intParam(p map[string]any, key string) (int64, bool) {
	f, ok := floatParam(p, key)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

func strSliceParam(p map[string]any, key string) ([]string, bool) {
	v, ok := p[key]
	if !ok {
		return nil, false
	}
	switch vs := v.(type) {
	case []string:
		return vs, true
	case []any:
		out := make([]string, 0, len(vs))
		for _, x := range vs {
			s, ok := x.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func sortedUnique(cols []string) []string {
	seen := make(map[string]bool, len(cols))
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
