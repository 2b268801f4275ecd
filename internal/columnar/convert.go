package columnar

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// arrowTable is the subset of arrow.Table used by FromArrowTable, declared
// locally so this file depends only on the arrow package, not on a specific
// table implementation.
type arrowTable interface {
	NumCols() int64
	Column(i int) *arrow.Column
	Schema() *arrow.Schema
}

// FromArrowTable flattens a (possibly chunked) Arrow table into a single
// Batch, concatenating each column's chunks into one contiguous array. Used
// by the file-engine reader after pqarrow.ReadRowGroups, which always
// returns a table rather than a single record batch.
func FromArrowTable(tbl arrowTable) (*Batch, error) {
	order := make([]string, 0, tbl.NumCols())
	columns := make(map[string]arrow.Array, tbl.NumCols())
	pool := memory.DefaultAllocator
	for i := 0; i < int(tbl.NumCols()); i++ {
		col := tbl.Column(i)
		name := tbl.Schema().Field(i).Name
		chunked := col.Data()
		arr, err := concatChunks(pool, chunked.Chunks())
		if err != nil {
			return nil, fmt.Errorf("columnar: concatenate column %q: %w", name, err)
		}
		order = append(order, name)
		columns[name] = arr
	}
	return NewBatch(order, columns), nil
}

func concatChunks(pool memory.Allocator, chunks []arrow.Array) (arrow.Array, error) {
	if len(chunks) == 1 {
		chunks[0].Retain()
		return chunks[0], nil
	}
	out, err := array.Concatenate(chunks, pool)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReadCSV reads a CSV file into a Batch, restricting output columns to
// requiredColumns when non-empty (spec.md §8 P8 projection). Each column's
// dtype is inferred from its non-null values (integer/numeric/boolean/
// datetime/utf8), the same way the ambient stack's own CSV readers
// (DuckDB's read_csv_auto, which `internal/sqlexec/fileengine` already
// uses for pushdown) sniff a column's type instead of treating every cell
// as a string. Rule evaluation (range, compare, freshness, conditional_*)
// needs a numeric or temporal Arrow array to produce a meaningful result;
// a column left as utf8 makes every numeric rule against it fail closed.
func ReadCSV(r io.Reader, requiredColumns []string) (*Batch, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("columnar: read csv header: %w", err)
	}
	for i, name := range header {
		header[i] = strings.TrimSpace(name)
	}

	want := map[string]bool{}
	for _, c := range requiredColumns {
		want[c] = true
	}
	keepAll := len(requiredColumns) == 0

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("columnar: read csv row: %w", err)
		}
		rows = append(rows, rec)
	}

	pool := memory.DefaultAllocator
	order := make([]string, 0, len(header))
	columns := make(map[string]arrow.Array, len(header))
	for col, name := range header {
		if !keepAll && !want[name] {
			continue
		}
		arr, err := buildCSVColumn(pool, rows, col)
		if err != nil {
			return nil, fmt.Errorf("columnar: build csv column %q: %w", name, err)
		}
		order = append(order, name)
		columns[name] = arr
	}
	return NewBatch(order, columns), nil
}

// csvColumnKind is the dtype ReadCSV infers for one CSV column from its
// non-empty cell values, narrowest-first.
type csvColumnKind int

const (
	csvKindString csvColumnKind = iota
	csvKindInt
	csvKindFloat
	csvKindBool
	csvKindTimestamp
)

// csvTimeLayouts are tried in order when sniffing a column as a datetime.
var csvTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseCSVTime(v string) (time.Time, bool) {
	for _, layout := range csvTimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func cellAt(rec []string, col int) string {
	if col >= len(rec) {
		return ""
	}
	return rec[col]
}

// inferCSVColumnKind scans every non-empty cell in column col and returns
// the narrowest kind all of them parse as; a column with no non-empty
// values, or any value that fails every typed parse, stays utf8.
func inferCSVColumnKind(rows [][]string, col int) csvColumnKind {
	sawAny := false
	allInt, allFloat, allBool, allTime := true, true, true, true
	for _, rec := range rows {
		v := strings.TrimSpace(cellAt(rec, col))
		if v == "" {
			continue
		}
		sawAny = true
		if allInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				allFloat = false
			}
		}
		if allBool {
			if _, err := strconv.ParseBool(v); err != nil {
				allBool = false
			}
		}
		if allTime {
			if _, ok := parseCSVTime(v); !ok {
				allTime = false
			}
		}
	}
	switch {
	case !sawAny:
		return csvKindString
	case allInt:
		return csvKindInt
	case allFloat:
		return csvKindFloat
	case allBool:
		return csvKindBool
	case allTime:
		return csvKindTimestamp
	default:
		return csvKindString
	}
}

func buildCSVColumn(pool memory.Allocator, rows [][]string, col int) (arrow.Array, error) {
	switch inferCSVColumnKind(rows, col) {
	case csvKindInt:
		b := array.NewInt64Builder(pool)
		defer b.Release()
		for _, rec := range rows {
			v := strings.TrimSpace(cellAt(rec, col))
			if v == "" {
				b.AppendNull()
				continue
			}
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, err
			}
			b.Append(n)
		}
		return b.NewArray(), nil
	case csvKindFloat:
		b := array.NewFloat64Builder(pool)
		defer b.Release()
		for _, rec := range rows {
			v := strings.TrimSpace(cellAt(rec, col))
			if v == "" {
				b.AppendNull()
				continue
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, err
			}
			b.Append(f)
		}
		return b.NewArray(), nil
	case csvKindBool:
		b := array.NewBooleanBuilder(pool)
		defer b.Release()
		for _, rec := range rows {
			v := strings.TrimSpace(cellAt(rec, col))
			if v == "" {
				b.AppendNull()
				continue
			}
			bv, err := strconv.ParseBool(v)
			if err != nil {
				return nil, err
			}
			b.Append(bv)
		}
		return b.NewArray(), nil
	case csvKindTimestamp:
		dt := &arrow.TimestampType{Unit: arrow.Microsecond}
		b := array.NewTimestampBuilder(pool, dt)
		defer b.Release()
		for _, rec := range rows {
			v := strings.TrimSpace(cellAt(rec, col))
			if v == "" {
				b.AppendNull()
				continue
			}
			t, ok := parseCSVTime(v)
			if !ok {
				return nil, fmt.Errorf("value %q no longer parses as a timestamp", v)
			}
			b.Append(arrow.Timestamp(t.UnixMicro()))
		}
		return b.NewArray(), nil
	default:
		b := array.NewStringBuilder(pool)
		defer b.Release()
		for _, rec := range rows {
			v := cellAt(rec, col)
			if v == "" {
				b.AppendNull()
				continue
			}
			b.Append(v)
		}
		return b.NewArray(), nil
	}
}
