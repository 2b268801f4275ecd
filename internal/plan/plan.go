// Package plan implements the Execution Plan (Planner) component: grouping
// rules into vectorizable / fallback / SQL-able sets, computing the
// required-columns union, and residual recomputation (spec.md §4.3, C3).
package plan

import (
	"fmt"
	"sort"

	"github.com/kontra-dev/kontra/internal/columnar"
	"github.com/kontra-dev/kontra/internal/compile"
	"github.com/kontra-dev/kontra/internal/result"
	"github.com/kontra-dev/kontra/internal/rules"
)

// PredicateEntry pairs a compiled predicate with the rule that produced it,
// since severity/name/failure classification live on the rule, not the
// predicate (spec.md §3: "tier does not change them").
type PredicateEntry struct {
	Predicate compile.Predicate
	Rule      rules.Rule
}

// CompiledPlan is the planner's output (spec.md §3).
type CompiledPlan struct {
	Predicates    []PredicateEntry
	FallbackRules []rules.Rule
	RequiredCols  []string
	SqlSpecs      []compile.SqlSpec
}

// Compile walks rules in contract order, splitting each into the predicate
// or fallback track, and independently collecting any SQL spec it can
// produce (spec.md §4.3: "a rule may appear in both predicates and
// sql_specs; the orchestrator decides which tier runs it").
func Compile(ruleList []rules.Rule) (*CompiledPlan, error) {
	p := &CompiledPlan{}
	var cols []string
	for _, r := range ruleList {
		if pred, ok := r.CompilePredicate(); ok {
			if pred.RuleID != r.RuleID() {
				return nil, fmt.Errorf("plan: predicate rule_id %q does not match rule %q", pred.RuleID, r.RuleID())
			}
			p.Predicates = append(p.Predicates, PredicateEntry{Predicate: *pred, Rule: r})
			for c := range pred.ColumnsUsed {
				cols = append(cols, c)
			}
		} else {
			p.FallbackRules = append(p.FallbackRules, r)
			cols = append(cols, r.RequiredColumns()...)
		}
		if spec, ok := r.ToSQLSpec(); ok {
			p.SqlSpecs = append(p.SqlSpecs, *spec)
		}
	}
	p.RequiredCols = sortUnique(cols)
	return p, nil
}

func sortUnique(cols []string) []string {
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

// ExecuteCompiled runs the vectorized predicate pass followed by the
// fallback (row-by-row) pass over a materialized batch, tagging every
// result execution_source="columnar" (spec.md §4.3).
func ExecuteCompiled(b *columnar.Batch, p *CompiledPlan) []result.RuleResult {
	out := make([]result.RuleResult, 0, len(p.Predicates)+len(p.FallbackRules))
	for _, entry := range p.Predicates {
		out = append(out, runPredicate(b, entry))
	}
	for _, r := range p.FallbackRules {
		out = append(out, r.Validate(b))
	}
	return out
}

func runPredicate(b *columnar.Batch, entry PredicateEntry) result.RuleResult {
	for col := range entry.Predicate.ColumnsUsed {
		if !b.HasColumn(col) {
			return result.RuleResult{
				RuleID:          entry.Rule.RuleID(),
				RuleName:        entry.Rule.Name(),
				Passed:          false,
				FailedCount:     b.NumRows(),
				Message:         fmt.Sprintf("required column %q missing from materialized batch", col),
				Severity:        entry.Rule.Severity(),
				ExecutionSource: result.SourceColumnar,
				FailureMode:     result.FailureConfigError,
			}
		}
	}
	failed, err := entry.Predicate.Eval(b)
	if err != nil {
		return result.RuleResult{
			RuleID:          entry.Rule.RuleID(),
			RuleName:        entry.Rule.Name(),
			Passed:          false,
			FailedCount:     b.NumRows(),
			Message:         err.Error(),
			Severity:        entry.Rule.Severity(),
			ExecutionSource: result.SourceColumnar,
			FailureMode:     result.FailureConfigError,
		}
	}
	passed := failed == 0
	msg := entry.Predicate.Message
	if passed {
		msg = fmt.Sprintf("%s passed", entry.Rule.Name())
	}
	return result.RuleResult{
		RuleID:          entry.Rule.RuleID(),
		RuleName:        entry.Rule.Name(),
		Passed:          passed,
		FailedCount:     failed,
		Message:         msg,
		Severity:        entry.Rule.Severity(),
		ExecutionSource: result.SourceColumnar,
	}
}

// WithoutIDs drops predicates and fallback rules whose rule_id is in handled,
// recomputing required_cols on the residual (spec.md §4.3, P7, L3). SqlSpecs
// is carried through unchanged: the orchestrator applies its own handled_ids
// filter when selecting specs for the SQL tier (spec.md §4.8 step 5).
func WithoutIDs(p *CompiledPlan, handled map[string]bool) *CompiledPlan {
	out := &CompiledPlan{SqlSpecs: p.SqlSpecs}
	var cols []string
	for _, entry := range p.Predicates {
		if handled[entry.Rule.RuleID()] {
			continue
		}
		out.Predicates = append(out.Predicates, entry)
		for c := range entry.Predicate.ColumnsUsed {
			cols = append(cols, c)
		}
	}
	for _, r := range p.FallbackRules {
		if handled[r.RuleID()] {
			continue
		}
		out.FallbackRules = append(out.FallbackRules, r)
		cols = append(cols, r.RequiredColumns()...)
	}
	out.RequiredCols = sortUnique(cols)
	return out
}

// IsEmpty reports whether a plan has no residual work (used by the
// orchestrator to decide whether to skip materialization, spec.md §4.8
// step 6).
func (p *CompiledPlan) IsEmpty() bool {
	return len(p.Predicates) == 0 && len(p.FallbackRules) == 0
}

// FilterSQLSpecs returns the subset of p.SqlSpecs whose rule_id is not in
// handled (spec.md §4.8 step 5: "SQL specs whose rule_id ∉ handled_ids").
func FilterSQLSpecs(p *CompiledPlan, handled map[string]bool) []compile.SqlSpec {
	out := make([]compile.SqlSpec, 0, len(p.SqlSpecs))
	for _, s := range p.SqlSpecs {
		if !handled[s.RuleID] {
			out = append(out, s)
		}
	}
	return out
}
