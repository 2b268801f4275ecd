// Package preplan implements the metadata-only tier (spec.md §4.7, C7):
// proving PASS/FAIL for rules from Parquet column statistics alone, and
// pruning the row-group manifest before any data is read.
package preplan

import (
	"fmt"
	"strings"

	"github.com/kontra-dev/kontra/internal/columnar"
	"github.com/kontra-dev/kontra/internal/compile"
)

// Decision is the per-rule metadata-tier verdict (spec.md §3 PrePlan output).
type Decision string

const (
	PassMeta Decision = "pass_meta"
	FailMeta Decision = "fail_meta"
	Unknown  Decision = "unknown"
)

// FailDetail carries the expected/actual pair for a fail_meta decision
// (spec.md §3: "fail_details: rule_id → {expected, actual}").
type FailDetail struct {
	Expected any
	Actual   any
}

// Stats summarizes the preplan run (spec.md §3, §6).
type Stats struct {
	RgTotal   int
	RgKept    int
	TotalRows int64
	Glob      bool
	FirstFile string
}

// Output is the preplan tier's result (spec.md §3 PrePlan output).
type Output struct {
	ManifestColumns   []string
	ManifestRowGroups []int
	RuleDecisions     map[string]Decision
	FailDetails       map[string]FailDetail
	Stats             Stats
	Effective         bool
}

// ColumnStat is one row group's statistics for one column (spec.md §4.7:
// "read {min, max, null_count} from Parquet statistics").
type ColumnStat struct {
	Family    columnar.DtypeFamily
	HasStats  bool
	NullCount int64
	MinNum    float64
	MaxNum    float64
	HasMinNum bool
	HasMaxNum bool
	MinStr    string
	MaxStr    string
	HasMinStr bool
	HasMaxStr bool
}

// RowGroupInfo is one row group's metadata.
type RowGroupInfo struct {
	Index   int
	NumRows int64
	Columns map[string]ColumnStat
}

// Source abstracts "a Parquet file or homogeneous glob of Parquet files"
// so the proving algorithm below is independent of actual file I/O and is
// unit-testable with a fake. ParquetSource (parquet_source.go) is the real
// implementation.
type Source interface {
	// SchemaFamilies returns the dtype family for every column in the
	// source's schema (spec.md §4.7 Dtype decisions).
	SchemaFamilies() (map[string]columnar.DtypeFamily, error)
	RowGroups() ([]RowGroupInfo, error)
	IsGlob() bool
	FirstFile() string
}

// Run executes the preplan tier over required columns and static predicates
// extracted from rules (spec.md §4.7). A nil error with Effective=false
// indicates a benign metadata absence (spec.md §7): the orchestrator must
// continue without aborting.
func Run(src Source, requiredCols []string, preds []compile.StaticPredicate) (*Output, error) {
	families, err := src.SchemaFamilies()
	if err != nil {
		return &Output{Effective: false}, nil
	}

	out := &Output{
		ManifestColumns: requiredCols,
		RuleDecisions:   map[string]Decision{},
		FailDetails:     map[string]FailDetail{},
	}
	out.Stats.Glob = src.IsGlob()
	out.Stats.FirstFile = src.FirstFile()

	// Glob mode restricts decisions to schema-only, dtype predicates
	// (spec.md §9 Open Question 2, preserved exactly).
	if src.IsGlob() {
		for _, p := range preds {
			if p.Op != compile.DtypeOp {
				out.RuleDecisions[p.RuleID] = Unknown
				continue
			}
			applyDtypeDecision(out, p, families)
		}
		out.Effective = true
		out.ManifestRowGroups = nil
		return out, nil
	}

	rgs, err := src.RowGroups()
	if err != nil || len(rgs) == 0 {
		return &Output{Effective: false}, nil
	}
	out.Stats.RgTotal = len(rgs)
	for _, rg := range rgs {
		out.Stats.TotalRows += rg.NumRows
	}

	// Group predicates by rule so a rule's decision aggregates across all
	// of its static predicates (spec.md §4.7 rule_decisions).
	byRule := map[string][]compile.StaticPredicate{}
	for _, p := range preds {
		byRule[p.RuleID] = append(byRule[p.RuleID], p)
	}

	unknownPreds := map[string][]compile.StaticPredicate{}
	for ruleID, rulePreds := range byRule {
		decision, detail := decideRule(rulePreds, rgs, families)
		out.RuleDecisions[ruleID] = decision
		if decision == FailMeta && detail != nil {
			out.FailDetails[ruleID] = *detail
		}
		if decision == Unknown {
			unknownPreds[ruleID] = rulePreds
		}
	}

	out.ManifestRowGroups = pruneRowGroups(rgs, unknownPreds)
	out.Effective = true
	return out, nil
}

func applyDtypeDecision(out *Output, p compile.StaticPredicate, families map[string]columnar.DtypeFamily) {
	expected, _ := p.Value.(columnar.DtypeFamily)
	actual, ok := families[p.Column]
	if !ok {
		out.RuleDecisions[p.RuleID] = Unknown
		return
	}
	if actual == expected {
		out.RuleDecisions[p.RuleID] = PassMeta
		return
	}
	out.RuleDecisions[p.RuleID] = FailMeta
	out.FailDetails[p.RuleID] = FailDetail{Expected: string(expected), Actual: string(actual)}
}

// decideRule computes a single rule's decision from all of its static
// predicates across all row groups (spec.md §4.7: "pass_meta if all...
// prove-pass; fail_meta if any prove-fail; unknown otherwise").
func decideRule(preds []compile.StaticPredicate, rgs []RowGroupInfo, families map[string]columnar.DtypeFamily) (Decision, *FailDetail) {
	allPass := true
	for _, p := range preds {
		if p.Op == compile.DtypeOp {
			expected, _ := p.Value.(columnar.DtypeFamily)
			actual, ok := families[p.Column]
			if !ok {
				allPass = false
				continue
			}
			if actual != expected {
				return FailMeta, &FailDetail{Expected: string(expected), Actual: string(actual)}
			}
			continue
		}
		if provesFailAcrossRowGroups(p, rgs) {
			return FailMeta, &FailDetail{Expected: fmt.Sprintf("%v %v", p.Op, p.Value)}
		}
		if !provesPassAcrossRowGroups(p, rgs) {
			allPass = false
		}
	}
	if allPass {
		return PassMeta, nil
	}
	return Unknown, nil
}

func provesPassAcrossRowGroups(p compile.StaticPredicate, rgs []RowGroupInfo) bool {
	for _, rg := range rgs {
		cs, ok := rg.Columns[p.Column]
		if !ok || !cs.HasStats {
			return false
		}
		if !provePass(p, cs) {
			return false
		}
	}
	return true
}

func provesFailAcrossRowGroups(p compile.StaticPredicate, rgs []RowGroupInfo) bool {
	for _, rg := range rgs {
		cs, ok := rg.Columns[p.Column]
		if !ok || !cs.HasStats {
			continue
		}
		if proveFail(p, cs) {
			return true
		}
	}
	return false
}

// provePass: "every RG's stats imply all rows satisfy it" for one RG
// (spec.md §4.7 examples: >=v with min>=v; not_null with null_count==0;
// ==v with min==max==v).
func provePass(p compile.StaticPredicate, cs ColumnStat) bool {
	if p.Op == compile.NotNull {
		return cs.NullCount == 0
	}
	if cs.NullCount > 0 {
		return false // a null row cannot satisfy a comparison predicate
	}
	val, ok := toNum(p.Value)
	if ok && cs.HasMinNum && cs.HasMaxNum {
		switch p.Op {
		case compile.Ge:
			return cs.MinNum >= val
		case compile.Le:
			return cs.MaxNum <= val
		case compile.Gt:
			return cs.MinNum > val
		case compile.Lt:
			return cs.MaxNum < val
		case compile.Eq:
			return cs.MinNum == val && cs.MaxNum == val
		case compile.Ne:
			return cs.MinNum > val || cs.MaxNum < val
		}
	}
	if p.Op == compile.Prefix && cs.HasMinStr && cs.HasMaxStr {
		prefix, _ := p.Value.(string)
		return strings.HasPrefix(cs.MinStr, prefix) && strings.HasPrefix(cs.MaxStr, prefix)
	}
	return false
}

// proveFail: "some RG proves violations exist" (spec.md §4.7 examples:
// >=v with max<v; not_null with null_count>0).
func proveFail(p compile.StaticPredicate, cs ColumnStat) bool {
	if p.Op == compile.NotNull {
		return cs.NullCount > 0
	}
	val, ok := toNum(p.Value)
	if ok && cs.HasMinNum && cs.HasMaxNum {
		switch p.Op {
		case compile.Ge:
			return cs.MaxNum < val
		case compile.Le:
			return cs.MinNum > val
		case compile.Gt:
			return cs.MaxNum <= val
		case compile.Lt:
			return cs.MinNum >= val
		case compile.Eq:
			return cs.MaxNum < val || cs.MinNum > val
		}
	}
	return false
}

// overlaps reports whether a row group's stats leave the predicate's truth
// value undetermined or possibly-true (spec.md §4.7 overlaps definition);
// used only for row-group pruning, not rule decisions.
func overlaps(p compile.StaticPredicate, cs ColumnStat) string {
	if !cs.HasStats {
		return "unknown"
	}
	if provePass(p, cs) {
		return "true"
	}
	if proveFail(p, cs) {
		return "false"
	}
	return "unknown"
}

// pruneRowGroups keeps an RG iff, for at least one unknown predicate,
// overlaps(...) ∈ {true, unknown}. With no unknown predicates, keep all
// (no pruning); if pruning would yield empty, keep all (safety fallback),
// per spec.md §4.7.
func pruneRowGroups(rgs []RowGroupInfo, unknownByRule map[string][]compile.StaticPredicate) []int {
	var unknownPreds []compile.StaticPredicate
	for _, preds := range unknownByRule {
		unknownPreds = append(unknownPreds, preds...)
	}
	if len(unknownPreds) == 0 {
		return allIndices(rgs)
	}
	var kept []int
	for _, rg := range rgs {
		keep := false
		for _, p := range unknownPreds {
			cs, ok := rg.Columns[p.Column]
			if !ok {
				keep = true
				break
			}
			if o := overlaps(p, cs); o == "true" || o == "unknown" {
				keep = true
				break
			}
		}
		if keep {
			kept = append(kept, rg.Index)
		}
	}
	if len(kept) == 0 {
		return allIndices(rgs)
	}
	return kept
}

func allIndices(rgs []RowGroupInfo) []int {
	out := make([]int, len(rgs))
	for i, rg := range rgs {
		out[i] = rg.Index
	}
	return out
}

func toNum(v any) (float64, bool) {
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
