// Package result defines the uniform per-rule result record and the
// deterministic merge across execution tiers.
package result

// Severity classifies how a failing rule affects the overall run.
type Severity string

const (
	Blocking Severity = "blocking"
	Warning  Severity = "warning"
	Info     Severity = "info"
)

// ExecutionSource identifies which tier produced a RuleResult.
type ExecutionSource string

const (
	SourceMetadata ExecutionSource = "metadata"
	SourceSQL      ExecutionSource = "sql"
	SourceColumnar ExecutionSource = "columnar"
)

// FailureMode is a closed set explaining why a rule failed.
type FailureMode string

const (
	FailureNullValues       FailureMode = "null_values"
	FailureDuplicateValues  FailureMode = "duplicate_values"
	FailureNovelCategory    FailureMode = "novel_category"
	FailureRangeViolation   FailureMode = "range_violation"
	FailureSchemaDrift      FailureMode = "schema_drift"
	FailureFreshnessLag     FailureMode = "freshness_lag"
	FailureRowCountLow      FailureMode = "row_count_low"
	FailureRowCountHigh     FailureMode = "row_count_high"
	FailurePatternMismatch  FailureMode = "pattern_mismatch"
	FailureCustomCheck      FailureMode = "custom_check_failed"
	FailureConfigError      FailureMode = "config_error"
)

// RuleResult is the stable, wire-shaped per-rule verdict (spec.md §6).
type RuleResult struct {
	RuleID          string          `json:"rule_id"`
	RuleName        string          `json:"rule_name"`
	Passed          bool            `json:"passed"`
	FailedCount     int64           `json:"failed_count"`
	Message         string          `json:"message"`
	Severity        Severity        `json:"severity"`
	ExecutionSource ExecutionSource `json:"execution_source"`
	FailureMode     FailureMode     `json:"failure_mode,omitempty"`
	Details         map[string]any  `json:"details,omitempty"`
	Column          string          `json:"column,omitempty"`
}

// RunSummary aggregates pass/fail counts by severity (spec.md §3).
type RunSummary struct {
	Passed           bool   `json:"passed"`
	TotalRules       int    `json:"total_rules"`
	RulesPassed      int    `json:"rules_passed"`
	RulesFailed      int    `json:"rules_failed"`
	BlockingFailures int    `json:"blocking_failures"`
	WarningFailures  int    `json:"warning_failures"`
	InfoFailures     int    `json:"info_failures"`
	RowCount         *int64 `json:"row_count,omitempty"`
	ColumnCount      *int   `json:"column_count,omitempty"`
	DatasetName      string `json:"dataset_name"`
}

// Summarize aggregates a result set into a RunSummary (spec.md invariant 3, 4).
func Summarize(results []RuleResult, datasetName string) RunSummary {
	s := RunSummary{TotalRules: len(results), DatasetName: datasetName}
	for _, r := range results {
		if r.Passed {
			s.RulesPassed++
			continue
		}
		s.RulesFailed++
		switch r.Severity {
		case Blocking:
			s.BlockingFailures++
		case Warning:
			s.WarningFailures++
		case Info:
			s.InfoFailures++
		}
	}
	s.Passed = s.BlockingFailures == 0
	return s
}

// Merge combines results from the three tiers in deterministic precedence:
// metadata wins over sql, which wins over columnar. Output order follows
// ruleOrder (the contract's rule order); any rule_id missing from all three
// tiers is simply absent (callers should have ensured full coverage).
func Merge(ruleOrder []string, metadata, sql, columnar map[string]RuleResult) []RuleResult {
	out := make([]RuleResult, 0, len(ruleOrder))
	for _, id := range ruleOrder {
		if r, ok := metadata[id]; ok {
			out = append(out, r)
			continue
		}
		if r, ok := sql[id]; ok {
			out = append(out, r)
			continue
		}
		if r, ok := columnar[id]; ok {
			out = append(out, r)
			continue
		}
	}
	return out
}

// RunStats is observability-only (spec.md §6): no contract on exact numeric
// values, only keys and monotonic relationships.
type RunStats struct {
	PhasesMS   map[string]int64 `json:"phases_ms"`
	Preplan    PreplanStats     `json:"preplan"`
	Pushdown   PushdownStats    `json:"pushdown"`
	Projection ProjectionStats  `json:"projection"`
	EngineLabel string          `json:"engine_label"`
	IO         map[string]any   `json:"io,omitempty"`
}

type PreplanStats struct {
	Enabled        bool `json:"enabled"`
	Effective      bool `json:"effective"`
	RowGroupsKept  int  `json:"rg_kept"`
	RowGroupsTotal int  `json:"rg_total"`
	RulesPassMeta  int  `json:"rules_pass_meta"`
	RulesFailMeta  int  `json:"rules_fail_meta"`
	RulesUnknown   int  `json:"rules_unknown"`
}

type PushdownStats struct {
	Enabled     bool             `json:"enabled"`
	Effective   bool             `json:"effective"`
	Executor    string           `json:"executor"`
	RulesPushed int              `json:"rules_pushed"`
	BreakdownMS map[string]int64 `json:"breakdown_ms"`
}

type ProjectionStats struct {
	RequiredCount  int  `json:"required_count"`
	LoadedCount    int  `json:"loaded_count"`
	AvailableCount int  `json:"available_count"`
	Effective      bool `json:"effective"`
}

// RunOutput is the top-level value returned by the orchestrator (spec.md §6).
type RunOutput struct {
	Dataset string      `json:"dataset"`
	Results []RuleResult `json:"results"`
	Summary RunSummary   `json:"summary"`
	Stats   *RunStats    `json:"stats,omitempty"`
}

// Status is the run's exit status (spec.md §6); a CLI wrapper maps it to an
// OS exit code (0/1/2/3).
type Status int

const (
	StatusPassed Status = iota
	StatusValidationFailed
	StatusConfigError
	StatusRuntimeError
)
