package materialize

import (
	"testing"

	"github.com/kontra-dev/kontra/internal/handle"
)

func TestPickMaterializerS3UsesFileEngine(t *testing.T) {
	h, err := handle.FromURI("s3://bucket/data.parquet")
	if err != nil {
		t.Fatal(err)
	}
	m, err := PickMaterializer(h, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.(*fileEngineAdapter); !ok {
		t.Fatalf("expected fileEngineAdapter, got %T", m)
	}
}

func TestPickMaterializerLocalFileUsesFallback(t *testing.T) {
	h, err := handle.FromURI("data/orders.parquet")
	if err != nil {
		t.Fatal(err)
	}
	m, err := PickMaterializer(h, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.(*fileEngineAdapter); !ok {
		t.Fatalf("expected fileEngineAdapter (local fallback), got %T", m)
	}
}

func TestPickMaterializerBYOCUsesDatabaseAdapter(t *testing.T) {
	h, err := handle.FromConnection(nil, "postgres", "public.orders")
	if err == nil {
		t.Fatal("expected FromConnection to reject a nil *sql.DB")
	}
	_ = h

	byoc := &handle.Handle{Scheme: handle.SchemeBYOC, Dialect: "postgres", TableRef: "public.orders"}
	m, err := PickMaterializer(byoc, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.(*dbAdapter); !ok {
		t.Fatalf("expected dbAdapter for a BYOC handle, got %T", m)
	}
}

func TestBuildDSNPostgres(t *testing.T) {
	h, err := handle.FromURI("postgres://user:pw@localhost:5432/mydb/public.orders")
	if err != nil {
		t.Fatal(err)
	}
	dsn, err := buildDSN(h)
	if err != nil {
		t.Fatal(err)
	}
	if dsn == "" {
		t.Fatal("expected non-empty DSN")
	}
}

func TestBuildDSNUnsupportedDialect(t *testing.T) {
	h := &handle.Handle{Dialect: "mysql", DBParams: map[string]string{}}
	if _, err := buildDSN(h); err == nil {
		t.Fatal("expected error for unsupported dialect")
	}
}
