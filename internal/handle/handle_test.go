package handle

import "testing"

func TestFromURIBarePath(t *testing.T) {
	h, err := FromURI("data/orders.parquet")
	if err != nil {
		t.Fatal(err)
	}
	if h.Scheme != SchemeFile || h.Format != FormatParquet {
		t.Fatalf("expected file/parquet, got %s/%s", h.Scheme, h.Format)
	}
}

func TestFromURIS3(t *testing.T) {
	h, err := FromURI("s3://bucket/key/orders.csv")
	if err != nil {
		t.Fatal(err)
	}
	if h.Scheme != SchemeS3 || h.Format != FormatCSV {
		t.Fatalf("expected s3/csv, got %s/%s", h.Scheme, h.Format)
	}
}

func TestFromURIPostgres(t *testing.T) {
	h, err := FromURI("postgres://user:pw@localhost:5432/mydb/public.orders")
	if err != nil {
		t.Fatal(err)
	}
	if h.Scheme != SchemePostgres || h.Dialect != "postgres" {
		t.Fatalf("expected postgres handle, got %+v", h)
	}
	if h.TableRef != "public.orders" {
		t.Fatalf("expected table_ref public.orders, got %q", h.TableRef)
	}
	if h.DBParams["database"] != "mydb" {
		t.Fatalf("expected database=mydb, got %+v", h.DBParams)
	}
}

func TestFromURILegacyPostgresqlScheme(t *testing.T) {
	h, err := FromURI("postgresql://user@localhost/db/s.t")
	if err != nil {
		t.Fatal(err)
	}
	if h.Dialect != "postgres" {
		t.Fatalf("expected postgresql:// to map to the postgres dialect")
	}
}

func TestFromURIUnknownScheme(t *testing.T) {
	if _, err := FromURI("ftp://example.com/data.csv"); err == nil {
		t.Fatal("expected error for unrecognized scheme")
	}
}

func TestFromConnectionRejectsNilConn(t *testing.T) {
	if _, err := FromConnection(nil, "postgres", "public.orders"); err == nil {
		t.Fatal("expected error for nil connection")
	}
}

func TestIsGlob(t *testing.T) {
	h, _ := FromURI("data/*.parquet")
	if !h.IsGlob() {
		t.Fatal("expected glob detection on *")
	}
}
