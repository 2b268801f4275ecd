package sqlexec

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kontra-dev/kontra/internal/result"
)

// ExecuteCustomSQLCheck validates and runs a single CustomSqlCheck rule
// (spec.md §4.6 Safety for CustomSqlCheck) against an already-open
// connection, returning the violation count from the wrapped COUNT(*) form.
func ExecuteCustomSQLCheck(ctx context.Context, db *sql.DB, ruleID, userSQL, message string) (result.RuleResult, error) {
	if err := ValidateCustomSQL(userSQL); err != nil {
		return result.RuleResult{
			RuleID: ruleID, Passed: false, ExecutionSource: result.SourceSQL,
			FailureMode: result.FailureConfigError, Message: err.Error(),
		}, nil
	}

	countSQL := ToCountQuery(userSQL)
	var failed int64
	if err := db.QueryRowContext(ctx, countSQL).Scan(&failed); err != nil {
		return result.RuleResult{}, fmt.Errorf("sqlexec: custom_sql_check %s: %w", ruleID, err)
	}
	return result.RuleResult{
		RuleID: ruleID, Passed: failed == 0, FailedCount: failed,
		ExecutionSource: result.SourceSQL, Message: message,
	}, nil
}

// RunCustomChecks executes every CustomSqlCheck in checks against db,
// stamping rule metadata from opts onto each result and adding it to
// results. Shared by all three dialect executors so the CustomSqlCheck
// wiring (spec.md §4.6) lives in one place.
func RunCustomChecks(ctx context.Context, db *sql.DB, checks []CustomCheckSpec, opts ExecOptions, results map[string]result.RuleResult) error {
	for _, c := range checks {
		r, err := ExecuteCustomSQLCheck(ctx, db, c.RuleID, c.SQL, c.Message)
		if err != nil {
			return err
		}
		results[c.RuleID] = StampMeta(r, opts)
	}
	return nil
}
