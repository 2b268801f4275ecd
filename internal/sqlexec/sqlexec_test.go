package sqlexec

import (
	"strings"
	"testing"

	"github.com/kontra-dev/kontra/internal/compile"
)

func minPtr(f float64) *float64 { return &f }

func TestBuildExistsQueriesOnlyNotNull(t *testing.T) {
	specs := []compile.SqlSpec{
		{Kind: compile.KindNotNull, RuleID: "COL:id:not_null", Column: "id"},
		{Kind: compile.KindMinRows, RuleID: "DS:min_rows", N: 10},
	}
	eqs := BuildExistsQueries(DialectPostgres, `"orders"`, specs, false)
	if len(eqs) != 1 || eqs[0].RuleID != "COL:id:not_null" {
		t.Fatalf("expected exactly one not_null EXISTS query, got %+v", eqs)
	}
	if !strings.Contains(eqs[0].SQL, "IS NULL") {
		t.Fatalf("expected IS NULL predicate, got %s", eqs[0].SQL)
	}
}

func TestBuildExistsQueriesEmptyInTallyMode(t *testing.T) {
	specs := []compile.SqlSpec{{Kind: compile.KindNotNull, RuleID: "COL:id:not_null", Column: "id"}}
	eqs := BuildExistsQueries(DialectPostgres, `"orders"`, specs, true)
	if len(eqs) != 0 {
		t.Fatalf("expected no EXISTS queries in tally mode, got %+v", eqs)
	}
}

func TestBuildAggQueryRange(t *testing.T) {
	specs := []compile.SqlSpec{
		{Kind: compile.KindRange, RuleID: "COL:amount:range", Column: "amount", Min: minPtr(0), Max: minPtr(1000)},
	}
	sql, order, _ := BuildAggQuery(DialectPostgres, `"orders"`, specs, false)
	if len(order) != 1 || order[0] != "COL:amount:range" {
		t.Fatalf("expected one rule in order, got %v", order)
	}
	if !strings.Contains(sql, "SUM(CASE WHEN") {
		t.Fatalf("expected SUM(CASE...) aggregate, got %s", sql)
	}
}

func TestBuildAggQueryNotNullSkippedUnlessTally(t *testing.T) {
	specs := []compile.SqlSpec{{Kind: compile.KindNotNull, RuleID: "COL:id:not_null", Column: "id"}}
	sql, order, _ := BuildAggQuery(DialectPostgres, `"orders"`, specs, false)
	if sql != "" || len(order) != 0 {
		t.Fatalf("expected not_null to be excluded from AGG phase by default, got sql=%q order=%v", sql, order)
	}
	sql, order, _ = BuildAggQuery(DialectPostgres, `"orders"`, specs, true)
	if sql == "" || len(order) != 1 {
		t.Fatalf("expected not_null to appear in AGG phase under tally mode, got sql=%q order=%v", sql, order)
	}
}

func TestFilterSupportedDropsRegexOnSqlServer(t *testing.T) {
	specs := []compile.SqlSpec{
		{Kind: compile.KindRegex, RuleID: "COL:email:regex"},
		{Kind: compile.KindNotNull, RuleID: "COL:id:not_null"},
	}
	supported, dropped := FilterSupported(DialectSQLServer, specs)
	if len(supported) != 1 || supported[0].RuleID != "COL:id:not_null" {
		t.Fatalf("expected only not_null supported, got %+v", supported)
	}
	if len(dropped) != 1 || dropped[0].Kind != compile.KindRegex {
		t.Fatalf("expected regex dropped, got %+v", dropped)
	}
}

func TestValidateCustomSQLRejectsDDL(t *testing.T) {
	if err := ValidateCustomSQL("DROP TABLE orders"); err == nil {
		t.Fatal("expected DDL to be rejected")
	}
}

func TestValidateCustomSQLRejectsMultiStatement(t *testing.T) {
	if err := ValidateCustomSQL("SELECT 1; DROP TABLE orders;"); err == nil {
		t.Fatal("expected multi-statement input to be rejected")
	}
}

func TestValidateCustomSQLAcceptsPlainSelect(t *testing.T) {
	if err := ValidateCustomSQL("SELECT * FROM orders WHERE amount < 0"); err != nil {
		t.Fatalf("expected a plain SELECT to validate, got %v", err)
	}
}

func TestValidateCustomSQLRejectsDeniedFunction(t *testing.T) {
	if err := ValidateCustomSQL("SELECT pg_sleep(5)"); err == nil {
		t.Fatal("expected denied function call to be rejected")
	}
}

func TestToCountQueryWraps(t *testing.T) {
	q := ToCountQuery("SELECT * FROM orders WHERE amount < 0")
	if !strings.HasPrefix(q, "SELECT COUNT(*) FROM (") {
		t.Fatalf("expected COUNT(*) wrapper, got %s", q)
	}
}
