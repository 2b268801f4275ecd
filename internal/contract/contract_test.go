package contract

import "testing"

func TestParseBasicContract(t *testing.T) {
	data := []byte(`
name: orders_contract
datasource: s3://bucket/orders.parquet
rules:
  - name: not_null
    params: { column: id }
  - name: range
    id: amount_bounds
    params: { column: amount, min: 0, max: 10000 }
    severity: warning
`)
	c, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if c.ResolvedDatasource() != "s3://bucket/orders.parquet" {
		t.Fatalf("unexpected datasource: %s", c.ResolvedDatasource())
	}
	if len(c.Rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(c.Rules))
	}
	if c.Rules[1].Severity != "warning" {
		t.Fatalf("expected warning severity, got %s", c.Rules[1].Severity)
	}
}

func TestParseLegacyDatasetKey(t *testing.T) {
	data := []byte(`
dataset: postgres://user@localhost/db/public.orders
rules:
  - name: not_null
    params: { column: id }
`)
	c, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if c.ResolvedDatasource() != "postgres://user@localhost/db/public.orders" {
		t.Fatalf("expected legacy dataset key to resolve, got %s", c.ResolvedDatasource())
	}
}

func TestParseMissingDatasourceErrors(t *testing.T) {
	data := []byte(`
rules:
  - name: not_null
    params: { column: id }
`)
	if _, err := Parse(data); err == nil {
		t.Fatal("expected error for missing datasource")
	}
}

func TestParseMissingRuleNameErrors(t *testing.T) {
	data := []byte(`
datasource: data/orders.csv
rules:
  - params: { column: id }
`)
	if _, err := Parse(data); err == nil {
		t.Fatal("expected error for rule missing name")
	}
}

func TestParseNoRulesErrors(t *testing.T) {
	data := []byte(`datasource: data/orders.csv
rules: []
`)
	if _, err := Parse(data); err == nil {
		t.Fatal("expected error for empty rules list")
	}
}

func TestToRuleSpecsPreservesOrder(t *testing.T) {
	data := []byte(`
datasource: data/orders.csv
rules:
  - name: not_null
    params: { column: id }
  - name: unique
    params: { column: id }
  - name: min_rows
    params: { n: 10 }
`)
	c, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	specs := c.ToRuleSpecs()
	if len(specs) != 3 || specs[0].Name != "not_null" || specs[2].Name != "min_rows" {
		t.Fatalf("expected order preserved, got %+v", specs)
	}
}
