package result

import "testing"

func TestSummarizePassed(t *testing.T) {
	results := []RuleResult{
		{RuleID: "r1", Passed: true, Severity: Blocking},
		{RuleID: "r2", Passed: true, Severity: Warning},
	}
	s := Summarize(results, "orders")
	if !s.Passed {
		t.Fatalf("expected passed run, got %+v", s)
	}
	if s.RulesPassed != 2 || s.RulesFailed != 0 {
		t.Fatalf("unexpected counts: %+v", s)
	}
}

func TestSummarizeBlockingFailureFailsRun(t *testing.T) {
	results := []RuleResult{
		{RuleID: "r1", Passed: false, Severity: Blocking},
		{RuleID: "r2", Passed: true, Severity: Warning},
	}
	s := Summarize(results, "orders")
	if s.Passed {
		t.Fatalf("expected failed run when a blocking rule fails")
	}
	if s.BlockingFailures != 1 {
		t.Fatalf("expected 1 blocking failure, got %d", s.BlockingFailures)
	}
}

func TestSummarizeWarningOnlyDoesNotFailRun(t *testing.T) {
	results := []RuleResult{
		{RuleID: "r1", Passed: false, Severity: Warning},
	}
	s := Summarize(results, "orders")
	if !s.Passed {
		t.Fatalf("warning-only failures must not fail the overall run")
	}
	if s.WarningFailures != 1 {
		t.Fatalf("expected 1 warning failure, got %d", s.WarningFailures)
	}
}

func TestMergePrecedenceMetadataOverSqlOverColumnar(t *testing.T) {
	order := []string{"r1", "r2", "r3"}
	metadata := map[string]RuleResult{
		"r1": {RuleID: "r1", ExecutionSource: SourceMetadata, Passed: true},
	}
	sql := map[string]RuleResult{
		"r1": {RuleID: "r1", ExecutionSource: SourceSQL, Passed: false},
		"r2": {RuleID: "r2", ExecutionSource: SourceSQL, Passed: true},
	}
	columnar := map[string]RuleResult{
		"r1": {RuleID: "r1", ExecutionSource: SourceColumnar, Passed: false},
		"r2": {RuleID: "r2", ExecutionSource: SourceColumnar, Passed: false},
		"r3": {RuleID: "r3", ExecutionSource: SourceColumnar, Passed: true},
	}

	out := Merge(order, metadata, sql, columnar)
	if len(out) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out))
	}
	if out[0].ExecutionSource != SourceMetadata {
		t.Fatalf("r1 should come from metadata tier, got %s", out[0].ExecutionSource)
	}
	if out[1].ExecutionSource != SourceSQL {
		t.Fatalf("r2 should come from sql tier, got %s", out[1].ExecutionSource)
	}
	if out[2].ExecutionSource != SourceColumnar {
		t.Fatalf("r3 should come from columnar tier, got %s", out[2].ExecutionSource)
	}
}

func TestMergeOrderFollowsRuleOrderNotMapIteration(t *testing.T) {
	order := []string{"z", "a", "m"}
	columnar := map[string]RuleResult{
		"z": {RuleID: "z", ExecutionSource: SourceColumnar, Passed: true},
		"a": {RuleID: "a", ExecutionSource: SourceColumnar, Passed: true},
		"m": {RuleID: "m", ExecutionSource: SourceColumnar, Passed: true},
	}
	out := Merge(order, nil, nil, columnar)
	got := []string{out[0].RuleID, out[1].RuleID, out[2].RuleID}
	want := []string{"z", "a", "m"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected deterministic order %v, got %v", want, got)
		}
	}
}
