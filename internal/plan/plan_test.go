package plan

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/kontra-dev/kontra/internal/columnar"
	"github.com/kontra-dev/kontra/internal/rules"
)

func batchWithColumn(name string, vals []float64, valid []bool) *columnar.Batch {
	mem := memory.NewGoAllocator()
	b := array.NewFloat64Builder(mem)
	defer b.Release()
	b.AppendValues(vals, valid)
	var arr arrow.Array = b.NewFloat64Array()
	return columnar.NewBatch([]string{name}, map[string]arrow.Array{name: arr})
}

func TestCompileRequiredCols(t *testing.T) {
	rs, err := rules.BuildRules([]rules.Spec{
		{Name: "not_null", Params: map[string]any{"column": "id"}},
		{Name: "min_rows", Params: map[string]any{"n": 1}},
	})
	if err != nil {
		t.Fatal(err)
	}
	p, err := Compile(rs)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.RequiredCols) != 1 || p.RequiredCols[0] != "id" {
		t.Fatalf("expected required_cols=[id], got %v", p.RequiredCols)
	}
	if len(p.SqlSpecs) != 2 {
		t.Fatalf("expected both rules to produce sql specs, got %d", len(p.SqlSpecs))
	}
}

func TestWithoutIDsIsIdempotentOnEmptySet(t *testing.T) {
	rs, _ := rules.BuildRules([]rules.Spec{{Name: "not_null", Params: map[string]any{"column": "id"}}})
	p, _ := Compile(rs)
	residual := WithoutIDs(p, map[string]bool{})
	if len(residual.Predicates) != len(p.Predicates) {
		t.Fatalf("without_ids(plan, {}) must equal plan (L3)")
	}
}

func TestWithoutIDsDropsHandled(t *testing.T) {
	rs, _ := rules.BuildRules([]rules.Spec{
		{Name: "not_null", Params: map[string]any{"column": "id"}},
		{Name: "not_null", Params: map[string]any{"column": "email"}},
	})
	p, _ := Compile(rs)
	handled := map[string]bool{"COL:id:not_null": true}
	residual := WithoutIDs(p, handled)
	if len(residual.Predicates) != 1 {
		t.Fatalf("expected 1 residual predicate, got %d", len(residual.Predicates))
	}
	for _, c := range residual.RequiredCols {
		if c == "id" {
			t.Fatalf("required_cols must not include columns of handled rules")
		}
	}
}

func TestExecuteCompiledMissingColumnIsConfigError(t *testing.T) {
	rs, _ := rules.BuildRules([]rules.Spec{{Name: "not_null", Params: map[string]any{"column": "missing_col"}}})
	p, _ := Compile(rs)
	b := batchWithColumn("id", []float64{1, 2, 3}, nil)
	results := ExecuteCompiled(b, p)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].FailureMode != "config_error" {
		t.Fatalf("expected config_error for missing column, got %s", results[0].FailureMode)
	}
	if results[0].FailedCount != b.NumRows() {
		t.Fatalf("config_error must count the whole dataset as failed")
	}
}

func TestExecuteCompiledPassing(t *testing.T) {
	rs, _ := rules.BuildRules([]rules.Spec{{Name: "not_null", Params: map[string]any{"column": "id"}}})
	p, _ := Compile(rs)
	b := batchWithColumn("id", []float64{1, 2, 3}, nil)
	results := ExecuteCompiled(b, p)
	if !results[0].Passed || results[0].ExecutionSource != "columnar" {
		t.Fatalf("expected passing columnar result, got %+v", results[0])
	}
}
