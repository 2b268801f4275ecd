package materialize

import (
	"context"

	"github.com/kontra-dev/kontra/internal/columnar"
	"github.com/kontra-dev/kontra/internal/handle"
	"github.com/kontra-dev/kontra/internal/materialize/fileengine"
)

// fileEngineAdapter satisfies Materializer by delegating to
// fileengine.Reader, used for s3/http/https sources (spec.md §4.5).
type fileEngineAdapter struct {
	r *fileengine.Reader
}

func newFileEngineMaterializer(h *handle.Handle, opts Options) (Materializer, error) {
	return &fileEngineAdapter{r: fileengine.New(h, opts.RowGroups)}, nil
}

// newLocalFallbackMaterializer also uses the file engine's reader, since
// local parquet/csv reading is the same code path as remote (localize() is
// a no-op for file:// handles); spec.md §4.5 distinguishes the two only by
// selection policy, not by implementation.
func newLocalFallbackMaterializer(h *handle.Handle, opts Options) (Materializer, error) {
	return &fileEngineAdapter{r: fileengine.New(h, opts.RowGroups)}, nil
}

func (a *fileEngineAdapter) Schema(ctx context.Context) ([]string, error) {
	return a.r.Schema(ctx)
}

func (a *fileEngineAdapter) ToColumnar(ctx context.Context, requiredColumns []string) (*columnar.Batch, error) {
	return a.r.ToColumnar(ctx, requiredColumns)
}

func (a *fileEngineAdapter) IODebug() map[string]any { return a.r.IODebug() }

func (a *fileEngineAdapter) Close() error { return a.r.Close() }
