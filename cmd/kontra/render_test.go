package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/kontra-dev/kontra/internal/result"
)

func sampleOutput() *result.RunOutput {
	results := []result.RuleResult{
		{RuleID: "r1", RuleName: "not_null", Passed: true, Severity: result.Blocking, ExecutionSource: result.SourceMetadata},
		{RuleID: "r2", RuleName: "range", Passed: false, Severity: result.Blocking, Message: "3 rows out of range", ExecutionSource: result.SourceColumnar, FailureMode: result.FailureRangeViolation},
	}
	return &result.RunOutput{
		Dataset: "orders.parquet",
		Results: results,
		Summary: result.Summarize(results, "orders.parquet"),
	}
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := render(&buf, "json", sampleOutput()); err != nil {
		t.Fatalf("render json: %v", err)
	}

	var decoded result.RunOutput
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decoding rendered json: %v", err)
	}
	if decoded.Dataset != "orders.parquet" {
		t.Errorf("expected dataset orders.parquet, got %q", decoded.Dataset)
	}
	if len(decoded.Results) != 2 {
		t.Errorf("expected 2 results, got %d", len(decoded.Results))
	}
}

func TestRenderRich(t *testing.T) {
	var buf bytes.Buffer
	if err := render(&buf, "rich", sampleOutput()); err != nil {
		t.Fatalf("render rich: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "orders.parquet") {
		t.Error("expected dataset name in rich output")
	}
	if !strings.Contains(out, "r2") {
		t.Error("expected failing rule id in rich output")
	}
	if !strings.Contains(out, "FAILED") {
		t.Error("expected FAILED verdict in rich output")
	}
}

func TestRenderSummaryPassed(t *testing.T) {
	results := []result.RuleResult{
		{RuleID: "r1", Passed: true, Severity: result.Blocking, ExecutionSource: result.SourceMetadata},
	}
	summary := result.Summarize(results, "ok.parquet")
	line := renderSummary(summary)
	if !strings.Contains(line, "PASSED") {
		t.Errorf("expected PASSED in summary line, got %q", line)
	}
}
