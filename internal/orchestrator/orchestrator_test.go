package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kontra-dev/kontra/internal/contract"
	"github.com/kontra-dev/kontra/internal/result"
)

func writeCSV(t *testing.T, dir string, rows string) string {
	t.Helper()
	path := filepath.Join(dir, "orders.csv")
	if err := os.WriteFile(path, []byte(rows), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunContractColumnarOnlyPasses(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeCSV(t, dir, "id,amount\n1,10\n2,20\n3,30\n")

	c, err := contract.Parse([]byte(`
name: orders
datasource: ` + csvPath + `
rules:
  - name: not_null
    params: { column: id }
  - name: min_rows
    params: { n: 2 }
`))
	if err != nil {
		t.Fatal(err)
	}

	opts := RunOptions{PreplanEnabled: false, PushdownEnabled: false}
	out, status := RunContract(context.Background(), c, opts)
	if status != result.StatusPassed {
		t.Fatalf("expected passed, got status=%d results=%+v", status, out.Results)
	}
	if len(out.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out.Results))
	}
	for _, r := range out.Results {
		if !r.Passed {
			t.Fatalf("expected rule %s to pass, got %+v", r.RuleID, r)
		}
		if r.ExecutionSource != result.SourceColumnar {
			t.Fatalf("expected columnar execution source, got %s", r.ExecutionSource)
		}
	}
}

func TestRunContractColumnarOnlyFailsOnNulls(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeCSV(t, dir, "id,amount\n1,10\n,20\n3,30\n")

	c, err := contract.Parse([]byte(`
datasource: ` + csvPath + `
rules:
  - name: not_null
    params: { column: id }
`))
	if err != nil {
		t.Fatal(err)
	}

	out, status := RunContract(context.Background(), c, RunOptions{PreplanEnabled: false, PushdownEnabled: false})
	if status != result.StatusValidationFailed {
		t.Fatalf("expected validation failed, got status=%d", status)
	}
	if out.Summary.BlockingFailures != 1 {
		t.Fatalf("expected 1 blocking failure, got %d", out.Summary.BlockingFailures)
	}
}

func TestRunConfigErrorOnUnknownRule(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeCSV(t, dir, "id\n1\n")

	c, err := contract.Parse([]byte(`
datasource: ` + csvPath + `
rules:
  - name: not_a_real_rule
    params: {}
`))
	if err != nil {
		t.Fatal(err)
	}

	out, status := RunContract(context.Background(), c, RunOptions{})
	if status != result.StatusConfigError {
		t.Fatalf("expected config error status, got %d", status)
	}
	if len(out.Results) != 1 || out.Results[0].FailureMode != result.FailureConfigError {
		t.Fatalf("expected a single config_error result, got %+v", out.Results)
	}
}

func TestRunConfigErrorOnBadDatasource(t *testing.T) {
	c, err := contract.Parse([]byte(`
datasource: "ftp://not-a-real-scheme/x"
rules:
  - name: not_null
    params: { column: id }
`))
	if err != nil {
		t.Fatal(err)
	}
	_, status := RunContract(context.Background(), c, RunOptions{})
	if status != result.StatusConfigError {
		t.Fatalf("expected config error status for unrecognized scheme, got %d", status)
	}
}

func TestDefaultRunOptions(t *testing.T) {
	opts := DefaultRunOptions()
	if !opts.PreplanEnabled || !opts.PushdownEnabled {
		t.Fatal("expected both tiers enabled by default")
	}
}
