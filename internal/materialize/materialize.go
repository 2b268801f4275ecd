// Package materialize implements the Materializer Registry (spec.md §4.5,
// C5): turning a DatasetHandle plus a required-column list into an in-memory
// columnar batch, with adapters for file readers vs. database readers.
package materialize

import (
	"context"
	"fmt"

	"github.com/kontra-dev/kontra/internal/columnar"
	"github.com/kontra-dev/kontra/internal/handle"
)

// Materializer is the contract every materialize backend implements
// (spec.md §4.5).
type Materializer interface {
	// Schema returns the column names available from the source, in
	// source order.
	Schema(ctx context.Context) ([]string, error)
	// ToColumnar loads data, honoring column projection when
	// requiredColumns is non-empty (spec.md §8 P8).
	ToColumnar(ctx context.Context, requiredColumns []string) (*columnar.Batch, error)
	// IODebug returns optional diagnostics (bytes read, row groups
	// scanned, staged-file path). Implementations always return a map;
	// the orchestrator attaches it to the run stats only when
	// KONTRA_IO_DEBUG is set (spec.md §6).
	IODebug() map[string]any
	// Close releases any resources (open file handles, staged temp
	// files) owned by this materializer instance.
	Close() error
}

// CsvMode names a CSV handling policy (spec.md §4.5). The value is carried
// in Options, but no materializer in this package reads it: CSV sources are
// always read directly and are never staged to Parquet.
type CsvMode string

const (
	CsvModeAuto       CsvMode = "auto"
	CsvModeFileEngine CsvMode = "file_engine"
	CsvModeParquet    CsvMode = "parquet"
)

// Options configures materializer selection (spec.md §4.5, §4.7).
type Options struct {
	CsvMode    CsvMode
	RowGroups  []int // optional preplan-derived row-group manifest (file engine only)
	StagingDir string
}

// PickMaterializer implements the deterministic selection policy (spec.md
// §4.5): FileEngineMaterializer for s3/http/https + parquet/csv,
// DatabaseMaterializer for postgres/sqlserver (owned or BYOC), otherwise
// LocalFallbackMaterializer.
func PickMaterializer(h *handle.Handle, opts Options) (Materializer, error) {
	if h == nil {
		return nil, fmt.Errorf("materialize: nil dataset handle")
	}
	if h.IsRelational() {
		return newDatabaseMaterializer(h)
	}
	switch h.Scheme {
	case handle.SchemeS3, handle.SchemeHTTP, handle.SchemeHTTPS, handle.SchemeAzure:
		return newFileEngineMaterializer(h, opts)
	case handle.SchemeFile:
		return newLocalFallbackMaterializer(h, opts)
	default:
		return nil, fmt.Errorf("materialize: no materializer for scheme %q", h.Scheme)
	}
}
