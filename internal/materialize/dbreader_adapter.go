package materialize

import (
	"context"
	"fmt"

	"github.com/kontra-dev/kontra/internal/columnar"
	"github.com/kontra-dev/kontra/internal/handle"
	"github.com/kontra-dev/kontra/internal/materialize/dbreader"
)

// dbAdapter satisfies Materializer by delegating to dbreader.Reader, used
// for postgres/sqlserver sources, owned or BYOC (spec.md §4.5, §4.4).
type dbAdapter struct {
	r *dbreader.Reader
}

func newDatabaseMaterializer(h *handle.Handle) (Materializer, error) {
	if h.Scheme == handle.SchemeBYOC {
		return &dbAdapter{r: dbreader.New(h.ExternalConn, false, h.Dialect, h.TableRef)}, nil
	}

	dsn, err := buildDSN(h)
	if err != nil {
		return nil, err
	}
	switch h.Dialect {
	case "postgres":
		conn, err := dbreader.ConnectPostgres(dsn)
		if err != nil {
			return nil, err
		}
		return &dbAdapter{r: dbreader.New(conn, true, "postgres", h.TableRef)}, nil
	case "sqlserver":
		conn, err := dbreader.ConnectSQLServer(dsn)
		if err != nil {
			return nil, err
		}
		return &dbAdapter{r: dbreader.New(conn, true, "sqlserver", h.TableRef)}, nil
	default:
		return nil, fmt.Errorf("materialize: unsupported relational dialect %q", h.Dialect)
	}
}

// buildDSN assembles a connection string from DBParams (host/port/user/
// password/database) captured by handle.FromURI, mirroring the teacher's
// ConnectionConfig → DSN pattern (internal/mysql/connection.go buildDSN)
// generalized to two dialects instead of one.
func buildDSN(h *handle.Handle) (string, error) {
	p := h.DBParams
	switch h.Dialect {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			p["host"], p["port"], p["user"], p["password"], p["database"],
		), nil
	case "sqlserver":
		return fmt.Sprintf(
			"server=%s;port=%s;user id=%s;password=%s;database=%s",
			p["host"], p["port"], p["user"], p["password"], p["database"],
		), nil
	default:
		return "", fmt.Errorf("materialize: unsupported relational dialect %q", h.Dialect)
	}
}

func (a *dbAdapter) Schema(ctx context.Context) ([]string, error) {
	return a.r.Schema(ctx)
}

func (a *dbAdapter) ToColumnar(ctx context.Context, requiredColumns []string) (*columnar.Batch, error) {
	return a.r.ToColumnar(ctx, requiredColumns)
}

func (a *dbAdapter) IODebug() map[string]any { return a.r.IODebug() }

func (a *dbAdapter) Close() error { return a.r.Close() }
