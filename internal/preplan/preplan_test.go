package preplan

import (
	"testing"

	"github.com/kontra-dev/kontra/internal/columnar"
	"github.com/kontra-dev/kontra/internal/compile"
)

type fakeSource struct {
	families map[string]columnar.DtypeFamily
	rgs      []RowGroupInfo
	isGlob   bool
}

func (f *fakeSource) SchemaFamilies() (map[string]columnar.DtypeFamily, error) { return f.families, nil }
func (f *fakeSource) RowGroups() ([]RowGroupInfo, error)                       { return f.rgs, nil }
func (f *fakeSource) IsGlob() bool                                             { return f.isGlob }
func (f *fakeSource) FirstFile() string                                       { return "fake.parquet" }

// Scenario 1 (spec.md §8): 3 row groups, column id has null_count=0 in
// every RG. NotNull(id) must prove pass.
func TestPreplanProvesPass(t *testing.T) {
	src := &fakeSource{
		families: map[string]columnar.DtypeFamily{"id": columnar.DtypeInteger},
		rgs: []RowGroupInfo{
			{Index: 0, NumRows: 100, Columns: map[string]ColumnStat{"id": {HasStats: true, NullCount: 0}}},
			{Index: 1, NumRows: 100, Columns: map[string]ColumnStat{"id": {HasStats: true, NullCount: 0}}},
			{Index: 2, NumRows: 100, Columns: map[string]ColumnStat{"id": {HasStats: true, NullCount: 0}}},
		},
	}
	preds := []compile.StaticPredicate{{RuleID: "COL:id:not_null", Column: "id", Op: compile.NotNull}}
	out, err := Run(src, []string{"id"}, preds)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Effective {
		t.Fatal("expected preplan to be effective")
	}
	if out.RuleDecisions["COL:id:not_null"] != PassMeta {
		t.Fatalf("expected pass_meta, got %s", out.RuleDecisions["COL:id:not_null"])
	}
}

// Scenario 2 (spec.md §8): one RG has null_count=5 on email.
func TestPreplanProvesFail(t *testing.T) {
	src := &fakeSource{
		families: map[string]columnar.DtypeFamily{"email": columnar.DtypeUtf8},
		rgs: []RowGroupInfo{
			{Index: 0, NumRows: 100, Columns: map[string]ColumnStat{"email": {HasStats: true, NullCount: 0}}},
			{Index: 1, NumRows: 100, Columns: map[string]ColumnStat{"email": {HasStats: true, NullCount: 5}}},
		},
	}
	preds := []compile.StaticPredicate{{RuleID: "COL:email:not_null", Column: "email", Op: compile.NotNull}}
	out, err := Run(src, []string{"email"}, preds)
	if err != nil {
		t.Fatal(err)
	}
	if out.RuleDecisions["COL:email:not_null"] != FailMeta {
		t.Fatalf("expected fail_meta, got %s", out.RuleDecisions["COL:email:not_null"])
	}
}

func TestPreplanRowGroupPruningKeepsAmbiguousRowGroup(t *testing.T) {
	src := &fakeSource{
		families: map[string]columnar.DtypeFamily{"amount": columnar.DtypeNumeric},
		rgs: []RowGroupInfo{
			// RG0 fully satisfies amount >= 100 (min=100): overlaps is true, so it is kept too
			{Index: 0, NumRows: 10, Columns: map[string]ColumnStat{"amount": {HasStats: true, HasMinNum: true, HasMaxNum: true, MinNum: 100, MaxNum: 200}}},
			// RG1 is ambiguous (straddles 100): must be kept
			{Index: 1, NumRows: 10, Columns: map[string]ColumnStat{"amount": {HasStats: true, HasMinNum: true, HasMaxNum: true, MinNum: 50, MaxNum: 150}}},
		},
	}
	preds := []compile.StaticPredicate{{RuleID: "COL:amount:range", Column: "amount", Op: compile.Ge, Value: 100.0}}
	out, err := Run(src, []string{"amount"}, preds)
	if err != nil {
		t.Fatal(err)
	}
	if out.RuleDecisions["COL:amount:range"] != Unknown {
		t.Fatalf("expected unknown (not all RGs prove pass), got %s", out.RuleDecisions["COL:amount:range"])
	}
	found1 := false
	for _, idx := range out.ManifestRowGroups {
		if idx == 1 {
			found1 = true
		}
	}
	if !found1 {
		t.Fatalf("expected RG1 to remain in the manifest, got %v", out.ManifestRowGroups)
	}
}

func TestPreplanGlobRestrictedToDtype(t *testing.T) {
	src := &fakeSource{
		families: map[string]columnar.DtypeFamily{"id": columnar.DtypeInteger},
		isGlob:   true,
	}
	preds := []compile.StaticPredicate{
		{RuleID: "COL:id:dtype", Column: "id", Op: compile.DtypeOp, Value: columnar.DtypeInteger},
		{RuleID: "COL:id:not_null", Column: "id", Op: compile.NotNull},
	}
	out, err := Run(src, []string{"id"}, preds)
	if err != nil {
		t.Fatal(err)
	}
	if out.RuleDecisions["COL:id:dtype"] != PassMeta {
		t.Fatalf("expected dtype decision in glob mode, got %s", out.RuleDecisions["COL:id:dtype"])
	}
	if out.RuleDecisions["COL:id:not_null"] != Unknown {
		t.Fatalf("non-dtype predicates must stay unknown in glob mode (Open Question 2), got %s", out.RuleDecisions["COL:id:not_null"])
	}
}

func TestPreplanBenignAbsenceDegradesGracefully(t *testing.T) {
	src := &fakeSource{families: map[string]columnar.DtypeFamily{"id": columnar.DtypeInteger}, rgs: nil}
	out, err := Run(src, []string{"id"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.Effective {
		t.Fatal("expected effective=false when no row groups are available")
	}
}
