// Package columnar provides the in-memory columnar representation shared by
// the predicate compiler, the execution plan's vectorized pass, and the
// materializers. It is a thin typed wrapper over Arrow arrays so that
// Parquet-sourced and database-sourced batches share exactly one
// representation across the engine.
package columnar

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// Batch is a named set of equal-length Arrow columns.
type Batch struct {
	columns map[string]arrow.Array
	order   []string
	numRows int64
}

// NewBatch builds a Batch from columns in the given order. All columns must
// have the same length; this is the caller's responsibility (materializers
// build batches from a single reader, so it always holds in practice).
func NewBatch(order []string, columns map[string]arrow.Array) *Batch {
	var n int64
	if len(order) > 0 {
		if c, ok := columns[order[0]]; ok {
			n = int64(c.Len())
		}
	}
	return &Batch{columns: columns, order: order, numRows: n}
}

func (b *Batch) NumRows() int64 { return b.numRows }

// Columns returns the projected column names in load order.
func (b *Batch) Columns() []string { return b.order }

func (b *Batch) Column(name string) (arrow.Array, bool) {
	c, ok := b.columns[name]
	return c, ok
}

// HasColumn reports whether name is present in the batch (used by the
// plan's vectorized pass to detect missing-column config errors).
func (b *Batch) HasColumn(name string) bool {
	_, ok := b.columns[name]
	return ok
}

// Release drops the underlying Arrow array references.
func (b *Batch) Release() {
	for _, c := range b.columns {
		c.Release()
	}
}

// Value is a dynamically typed scalar pulled from an Arrow array: exactly one
// of the typed fields is meaningful, selected by whichever of HasFlt, HasStr,
// HasBool or HasTime is set. Null is tracked
// separately so callers distinguish "zero value" from "no value."
type Value struct {
	Null    bool
	Float   float64
	Str     string
	Bool    bool
	Time    time.Time
	HasFlt  bool
	HasStr  bool
	HasBool bool
	HasTime bool
}

// At extracts the value at row i from an Arrow array, normalizing numeric
// families to float64 and temporal families to time.Time so rule predicates
// can compare uniformly regardless of storage width.
func At(col arrow.Array, i int) (Value, error) {
	if col.IsNull(i) {
		return Value{Null: true}, nil
	}
	switch a := col.(type) {
	case *array.Int8:
		return Value{Float: float64(a.Value(i)), HasFlt: true}, nil
	case *array.Int16:
		return Value{Float: float64(a.Value(i)), HasFlt: true}, nil
	case *array.Int32:
		return Value{Float: float64(a.Value(i)), HasFlt: true}, nil
	case *array.Int64:
		return Value{Float: float64(a.Value(i)), HasFlt: true}, nil
	case *array.Uint8:
		return Value{Float: float64(a.Value(i)), HasFlt: true}, nil
	case *array.Uint16:
		return Value{Float: float64(a.Value(i)), HasFlt: true}, nil
	case *array.Uint32:
		return Value{Float: float64(a.Value(i)), HasFlt: true}, nil
	case *array.Uint64:
		return Value{Float: float64(a.Value(i)), HasFlt: true}, nil
	case *array.Float32:
		return Value{Float: float64(a.Value(i)), HasFlt: true}, nil
	case *array.Float64:
		return Value{Float: a.Value(i), HasFlt: true}, nil
	case *array.String:
		return Value{Str: a.Value(i), HasStr: true}, nil
	case *array.LargeString:
		return Value{Str: a.Value(i), HasStr: true}, nil
	case *array.Boolean:
		return Value{Bool: a.Value(i), HasBool: true}, nil
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		t := a.Value(i).ToTime(unit)
		return Value{Time: t, HasTime: true}, nil
	case *array.Date32:
		t := a.Value(i).ToTime()
		return Value{Time: t, HasTime: true}, nil
	default:
		return Value{}, fmt.Errorf("columnar: unsupported arrow array type %T", col)
	}
}

// DtypeFamily is kontra's portable dtype vocabulary (spec.md §4.7 aliases).
type DtypeFamily string

const (
	DtypeUtf8     DtypeFamily = "utf8"
	DtypeInteger  DtypeFamily = "integer"
	DtypeNumeric  DtypeFamily = "numeric"
	DtypeBoolean  DtypeFamily = "boolean"
	DtypeDatetime DtypeFamily = "datetime"
	DtypeUnknown  DtypeFamily = "unknown"
)

// FamilyOf maps an Arrow type to kontra's dtype family; Utf8 and String are
// aliases (spec.md §4.2 Dtype semantics); integer types map to the integer
// family and floating-point/decimal types to the separate numeric family.
func FamilyOf(dt arrow.DataType) DtypeFamily {
	switch dt.ID() {
	case arrow.STRING, arrow.LARGE_STRING, arrow.BINARY:
		return DtypeUtf8
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return DtypeInteger
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64, arrow.DECIMAL128, arrow.DECIMAL256:
		return DtypeNumeric
	case arrow.BOOL:
		return DtypeBoolean
	case arrow.TIMESTAMP, arrow.DATE32, arrow.DATE64:
		return DtypeDatetime
	default:
		return DtypeUnknown
	}
}
