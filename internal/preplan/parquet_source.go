package preplan

import (
	"fmt"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/kontra-dev/kontra/internal/columnar"
)

// ParquetSource reads schema and per-row-group statistics from a single
// Parquet file or (in glob mode) the first file of a set sharing a schema,
// grounded on the same arrow-go parquet/file stack used by the file-engine
// materializer (internal/materialize/fileengine).
type ParquetSource struct {
	path     string
	isGlob   bool
	allFiles []string
	reader   *file.Reader
}

// NewParquetSource opens path for metadata-only reading. For glob mode,
// files is the full match set and path is files[0] (spec.md §4.7: "stats
// from the first file are not generalized" in glob mode).
func NewParquetSource(path string, files []string) (*ParquetSource, error) {
	r, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("preplan: open parquet file: %w", err)
	}
	return &ParquetSource{path: path, isGlob: files != nil, allFiles: files, reader: r}, nil
}

func (s *ParquetSource) IsGlob() bool    { return s.isGlob }
func (s *ParquetSource) FirstFile() string { return s.path }

func (s *ParquetSource) SchemaFamilies() (map[string]columnar.DtypeFamily, error) {
	arrowSchema, err := pqarrow.FromParquet(s.reader.MetaData().Schema, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("preplan: derive arrow schema: %w", err)
	}
	out := make(map[string]columnar.DtypeFamily, arrowSchema.NumFields())
	for _, f := range arrowSchema.Fields() {
		out[f.Name] = columnar.FamilyOf(f.Type)
	}
	return out, nil
}

// RowGroups reads {min, max, null_count} per column per row group from
// Parquet column-chunk statistics (spec.md §4.7). A row group's column is
// reported HasStats=false when the chunk carries no statistics (common for
// files written without stats collection); the caller treats that as
// "unknown" rather than failing the run (spec.md §7 benign absence).
func (s *ParquetSource) RowGroups() ([]RowGroupInfo, error) {
	if s.isGlob {
		// Glob mode never reads row-group stats (spec.md §9 Open Question 2).
		return nil, nil
	}
	md := s.reader.MetaData()
	n := s.reader.NumRowGroups()
	out := make([]RowGroupInfo, 0, n)
	for i := 0; i < n; i++ {
		rgMeta := md.RowGroup(i)
		info := RowGroupInfo{Index: i, NumRows: rgMeta.NumRows(), Columns: map[string]ColumnStat{}}
		for c := 0; c < rgMeta.NumColumns(); c++ {
			colMeta, err := rgMeta.ColumnChunk(c)
			if err != nil {
				continue
			}
			colName := md.Schema.Column(c).Name()
			cs := ColumnStat{Family: parquetPhysicalFamily(colMeta)}
			stats, err := colMeta.Statistics()
			if err != nil || stats == nil || !stats.HasMinMax() {
				info.Columns[colName] = cs
				continue
			}
			cs.HasStats = true
			cs.NullCount = stats.NullCount()
			populateMinMax(&cs, stats)
			info.Columns[colName] = cs
		}
		out = append(out, info)
	}
	return out, nil
}

func parquetPhysicalFamily(colMeta *file.ColumnChunkMetaData) columnar.DtypeFamily {
	switch colMeta.Type() {
	case parquet.Types.ByteArray, parquet.Types.FixedLenByteArray:
		return columnar.DtypeUtf8
	case parquet.Types.Int32, parquet.Types.Int64:
		return columnar.DtypeInteger
	case parquet.Types.Float, parquet.Types.Double:
		return columnar.DtypeNumeric
	case parquet.Types.Boolean:
		return columnar.DtypeBoolean
	default:
		return columnar.DtypeUnknown
	}
}

// populateMinMax extracts typed min/max from parquet.Statistics, handling
// numeric and byte-array (string) physical types; other types leave
// HasStats true but HasMinNum/HasMinStr false, which degrades the
// predicate to "unknown" rather than erroring.
func populateMinMax(cs *ColumnStat, stats parquet.Statistics) {
	switch typed := stats.(type) {
	case *parquet.Int32Statistics:
		cs.MinNum, cs.MaxNum = float64(typed.Min()), float64(typed.Max())
		cs.HasMinNum, cs.HasMaxNum = true, true
	case *parquet.Int64Statistics:
		cs.MinNum, cs.MaxNum = float64(typed.Min()), float64(typed.Max())
		cs.HasMinNum, cs.HasMaxNum = true, true
	case *parquet.FloatStatistics:
		cs.MinNum, cs.MaxNum = float64(typed.Min()), float64(typed.Max())
		cs.HasMinNum, cs.HasMaxNum = true, true
	case *parquet.DoubleStatistics:
		cs.MinNum, cs.MaxNum = typed.Min(), typed.Max()
		cs.HasMinNum, cs.HasMaxNum = true, true
	case *parquet.ByteArrayStatistics:
		cs.MinStr, cs.MaxStr = string(typed.Min()), string(typed.Max())
		cs.HasMinStr, cs.HasMaxStr = true, true
	}
}

// Close releases the underlying Parquet file reader.
func (s *ParquetSource) Close() error {
	return s.reader.Close()
}
