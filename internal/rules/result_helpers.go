package rules

import (
	"fmt"

	"github.com/kontra-dev/kontra/internal/columnar"
	"github.com/kontra-dev/kontra/internal/result"
)

// idable is the minimal slice of Rule that result-building helpers need.
type idable interface {
	Name() string
	RuleID() string
	Severity() result.Severity
}

// baseResult builds the common shape of a RuleResult from a fallback/columnar
// validation pass; callers fill in FailureMode/Details/Column as needed.
func baseResult(r idable, b *columnar.Batch, failed int64) result.RuleResult {
	passed := failed == 0
	msg := fmt.Sprintf("%s passed", r.Name())
	if !passed {
		msg = fmt.Sprintf("%s failed: %d row(s) violate the rule", r.Name(), failed)
	}
	return result.RuleResult{
		RuleID:          r.RuleID(),
		RuleName:        r.Name(),
		Passed:          passed,
		FailedCount:     failed,
		Message:         msg,
		Severity:        r.Severity(),
		ExecutionSource: result.SourceColumnar,
	}
}

// configErrorResult implements spec.md §4.3's "missing column" / §7's "rule
// execution error in columnar tier" handling: the whole dataset counts as
// failed and failure_mode is config_error, but the run is not aborted.
func configErrorResult(r idable, b *columnar.Batch, err error) result.RuleResult {
	return result.RuleResult{
		RuleID:          r.RuleID(),
		RuleName:        r.Name(),
		Passed:          false,
		FailedCount:     b.NumRows(),
		Message:         err.Error(),
		Severity:        r.Severity(),
		ExecutionSource: result.SourceColumnar,
		FailureMode:     result.FailureConfigError,
	}
}
