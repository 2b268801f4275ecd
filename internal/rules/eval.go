package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/kontra-dev/kontra/internal/columnar"
)

const maxSamplePositions = 5
const maxTopValues = 10

// scanColumn walks column `col` of batch b and calls violates on each typed
// value, returning the count of rows where violates returned true and up to
// maxSamplePositions row indices, mirroring
// original_source/src/kontra/rules/builtin/not_null.py's sample_positions.
func scanColumn(b *columnar.Batch, col string, violates func(columnar.Value) bool) (failed int64, samples []int64, err error) {
	arr, ok := b.Column(col)
	if !ok {
		return 0, nil, fmt.Errorf("column %q not present in batch", col)
	}
	n := arr.Len()
	for i := 0; i < n; i++ {
		v, err := columnar.At(arr, i)
		if err != nil {
			return 0, nil, err
		}
		if violates(v) {
			failed++
			if len(samples) < maxSamplePositions {
				samples = append(samples, int64(i))
			}
		}
	}
	return failed, samples, nil
}

// valueCounts tallies occurrences of each string representation of a
// column's values, skipping nulls, for "top offending values" details
// (original_source/src/kontra/rules/builtin/unique.py, allowed_values.py).
func valueCounts(b *columnar.Batch, col string) (map[string]int64, int64, error) {
	arr, ok := b.Column(col)
	if !ok {
		return nil, 0, fmt.Errorf("column %q not present in batch", col)
	}
	counts := make(map[string]int64)
	n := int64(arr.Len())
	for i := 0; i < arr.Len(); i++ {
		v, err := columnar.At(arr, i)
		if err != nil {
			return nil, 0, err
		}
		if v.Null {
			continue
		}
		counts[stringOf(v)]++
	}
	return counts, n, nil
}

func stringOf(v columnar.Value) string {
	switch {
	case v.HasStr:
		return v.Str
	case v.HasFlt:
		return fmt.Sprintf("%v", v.Float)
	case v.HasBool:
		return fmt.Sprintf("%v", v.Bool)
	case v.HasTime:
		return v.Time.String()
	default:
		return ""
	}
}

// topN returns the top-n (value, count) pairs sorted by count descending,
// then value ascending for determinism (spec.md L2: byte-identical results).
func topN(counts map[string]int64, n int) []struct {
	Value string
	Count int64
} {
	type pair struct {
		Value string
		Count int64
	}
	pairs := make([]pair, 0, len(counts))
	for k, v := range counts {
		pairs = append(pairs, pair{k, v})
	}
	for i := 1; i < len(pairs); i++ {
		for j := i; j > 0 && (pairs[j].Count > pairs[j-1].Count ||
			(pairs[j].Count == pairs[j-1].Count && pairs[j].Value < pairs[j-1].Value)); j-- {
			pairs[j], pairs[j-1] = pairs[j-1], pairs[j]
		}
	}
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	out := make([]struct {
		Value string
		Count int64
	}, len(pairs))
	for i, p := range pairs {
		out[i] = struct {
			Value string
			Count int64
		}{p.Value, p.Count}
	}
	return out
}

// asFloat returns v as a float64: numeric values directly, and string
// values when they parse as a number (database-sourced columns are strings).
func asFloat(v columnar.Value) (float64, bool) {
	if v.Null {
		return 0, false
	}
	if v.HasFlt {
		return v.Float, true
	}
	if v.HasStr {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// scanRows walks several columns in lockstep (row by row) for predicates
// that span more than one column (Compare, ConditionalNotNull,
// ConditionalRange). cols must all exist in b or an error is returned.
func scanRows(b *columnar.Batch, cols []string, violates func(row map[string]columnar.Value) bool) (failed int64, samples []int64, err error) {
	arrs := make(map[string]arrow.Array, len(cols))
	for _, c := range cols {
		a, ok := b.Column(c)
		if !ok {
			return 0, nil, fmt.Errorf("column %q not present in batch", c)
		}
		arrs[c] = a
	}
	n := b.NumRows()
	for i := int64(0); i < n; i++ {
		row := make(map[string]columnar.Value, len(arrs))
		for name, a := range arrs {
			v, err := columnar.At(a, int(i))
			if err != nil {
				return 0, nil, err
			}
			row[name] = v
		}
		if violates(row) {
			failed++
			if len(samples) < maxSamplePositions {
				samples = append(samples, i)
			}
		}
	}
	return failed, samples, nil
}
