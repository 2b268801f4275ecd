package rules

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/kontra-dev/kontra/internal/columnar"
)

var mem = memory.NewGoAllocator()

func floatColumn(vals []float64, valid []bool) arrow.Array {
	b := array.NewFloat64Builder(mem)
	defer b.Release()
	b.AppendValues(vals, valid)
	return b.NewFloat64Array()
}

func stringColumn(vals []string, valid []bool) arrow.Array {
	b := array.NewStringBuilder(mem)
	defer b.Release()
	for i, v := range vals {
		if valid != nil && !valid[i] {
			b.AppendNull()
			continue
		}
		b.Append(v)
	}
	return b.NewStringArray()
}

// newBatch builds a single-column columnar.Batch named "x" for tests that
// only exercise one column's worth of rule logic.
func newBatch(col arrow.Array) *columnar.Batch {
	return columnar.NewBatch([]string{"x"}, map[string]arrow.Array{"x": col})
}

func TestBuildRulesUnknownName(t *testing.T) {
	_, err := BuildRules([]Spec{{Name: "not_a_rule"}})
	if err == nil {
		t.Fatal("expected config error for unknown rule name")
	}
}

func TestNotNullRuleValidate(t *testing.T) {
	col := stringColumn([]string{"a", "", "c"}, []bool{true, false, true})
	r, err := BuildRules([]Spec{{Name: "not_null", Params: map[string]any{"column": "x"}}})
	if err != nil {
		t.Fatal(err)
	}
	batch := newBatch(col)
	res := r[0].Validate(batch)
	if res.Passed {
		t.Fatal("expected failure due to one null")
	}
	if res.FailedCount != 1 {
		t.Fatalf("expected failed_count=1, got %d", res.FailedCount)
	}
}

func TestRangeAllNullsFails(t *testing.T) {
	col := floatColumn([]float64{0, 0, 0}, []bool{false, false, false})
	r, err := BuildRules([]Spec{{Name: "range", Params: map[string]any{"column": "x", "min": 0.0, "max": 10.0}}})
	if err != nil {
		t.Fatal(err)
	}
	batch := newBatch(col)
	res := r[0].Validate(batch)
	if res.Passed {
		t.Fatal("range over all-null column must fail (B3)")
	}
	if res.FailedCount != 3 {
		t.Fatalf("expected failed_count==row_count (3), got %d", res.FailedCount)
	}
}

func TestUniqueAllNullsPasses(t *testing.T) {
	col := stringColumn([]string{"", "", ""}, []bool{false, false, false})
	r, err := BuildRules([]Spec{{Name: "unique", Params: map[string]any{"column": "x"}}})
	if err != nil {
		t.Fatal(err)
	}
	batch := newBatch(col)
	res := r[0].Validate(batch)
	if !res.Passed {
		t.Fatal("unique over all-null column must pass (B4), nulls are ignored")
	}
}

func TestMinRowsBoundary(t *testing.T) {
	col := floatColumn([]float64{1, 2, 3}, nil)
	r, err := BuildRules([]Spec{{Name: "min_rows", Params: map[string]any{"n": 4}}})
	if err != nil {
		t.Fatal(err)
	}
	batch := newBatch(col)
	res := r[0].Validate(batch)
	if res.Passed || res.FailedCount != 1 {
		t.Fatalf("MinRows(4) with 3 rows must fail with failed_count==1 (B1), got passed=%v failed=%d", res.Passed, res.FailedCount)
	}
}

func TestMaxRowsBoundary(t *testing.T) {
	col := floatColumn([]float64{1, 2, 3, 4}, nil)
	r, err := BuildRules([]Spec{{Name: "max_rows", Params: map[string]any{"n": 3}}})
	if err != nil {
		t.Fatal(err)
	}
	batch := newBatch(col)
	res := r[0].Validate(batch)
	if res.Passed || res.FailedCount != 1 {
		t.Fatalf("MaxRows(3) with 4 rows must fail with failed_count==1 (B2), got passed=%v failed=%d", res.Passed, res.FailedCount)
	}
}

func TestAllowedValuesNullCountsAsViolation(t *testing.T) {
	col := stringColumn([]string{"active", "", "pending"}, []bool{true, false, true})
	r, err := BuildRules([]Spec{{Name: "allowed_values", Params: map[string]any{"column": "x", "values": []any{"active", "pending"}}}})
	if err != nil {
		t.Fatal(err)
	}
	batch := newBatch(col)
	res := r[0].Validate(batch)
	if res.Passed || res.FailedCount != 1 {
		t.Fatalf("expected exactly one failure (the null), got passed=%v failed=%d", res.Passed, res.FailedCount)
	}
}

func TestRangeConfigError(t *testing.T) {
	_, err := BuildRules([]Spec{{Name: "range", Params: map[string]any{"column": "x", "min": 10.0, "max": 1.0}}})
	if err == nil {
		t.Fatal("expected config error when min > max")
	}
}

func TestRuleIDDerivation(t *testing.T) {
	r, err := BuildRules([]Spec{{Name: "not_null", Params: map[string]any{"column": "email"}}})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := r[0].RuleID(), "COL:email:not_null"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestRuleIDExplicitWins(t *testing.T) {
	r, err := BuildRules([]Spec{{Name: "not_null", ID: "custom-id", Params: map[string]any{"column": "email"}}})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := r[0].RuleID(), "custom-id"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
