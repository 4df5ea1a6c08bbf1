// Package preview materializes bounded previews of plans and memoizes
// them by plan hash, with single-flight execution so at most one executor
// runs per plan identity at a time.
package preview

import (
	"strconv"

	"github.com/go-dafr/dafr/frame"
)

// ColumnStat summarizes one preview column. Min and max are computed over
// the preview slice, not the whole dataset; nil means the column had no
// non-null preview values.
type ColumnStat struct {
	Name       string
	Dtype      string
	Min        *string
	Max        *string
	NullCount  int64
	ErrorCount int64
}

// Result is a materialized preview: display rows plus per-column summary
type Result struct {
	Headers     []string
	Dtypes      []string
	Rows        [][]string
	TotalRows   int64
	PreviewRows int
	Stats       []ColumnStat

	frame *frame.Frame
}

// Frame returns the materialized preview frame backing this result
func (r *Result) Frame() *frame.Frame { return r.frame }

// NumCachedRows reports the row footprint of this result for cache
// accounting.
func (r *Result) NumCachedRows() int { return r.PreviewRows }

// BuildResult assembles a Result from a collected preview frame, the
// plan's total row yield, and the execution's per-column conversion error
// counters.
func BuildResult(fr *frame.Frame, totalRows int64, convErrors map[string]int64) *Result {
	schema := fr.Schema()
	res := &Result{
		Headers:     schema.ColumnNames(),
		Dtypes:      make([]string, 0, schema.NumColumns()),
		Rows:        fr.DisplayRows(0, fr.NumRows()),
		TotalRows:   totalRows,
		PreviewRows: fr.NumRows(),
		Stats:       make([]ColumnStat, 0, schema.NumColumns()),
		frame:       fr,
	}
	for i := 0; i < schema.NumColumns(); i++ {
		col := fr.ColumnAt(i)
		res.Dtypes = append(res.Dtypes, col.Dtype().String())
		res.Stats = append(res.Stats, columnStat(col, convErrors[col.Name()]))
	}
	return res
}

func columnStat(col *frame.Column, errorCount int64) ColumnStat {
	stat := ColumnStat{
		Name:       col.Name(),
		Dtype:      col.Dtype().String(),
		ErrorCount: errorCount,
	}
	minIdx, maxIdx := -1, -1
	for i := 0; i < col.Len(); i++ {
		if col.IsNull(i) {
			stat.NullCount++
			continue
		}
		if minIdx < 0 {
			minIdx, maxIdx = i, i
			continue
		}
		if col.Compare(i, minIdx) < 0 {
			minIdx = i
		}
		if col.Compare(i, maxIdx) > 0 {
			maxIdx = i
		}
	}
	if minIdx >= 0 {
		min := statDisplay(col, minIdx)
		max := statDisplay(col, maxIdx)
		stat.Min = &min
		stat.Max = &max
	}
	return stat
}

// statDisplay renders a stat bound; floats use a fixed four decimal places
func statDisplay(col *frame.Column, i int) string {
	if col.Dtype().IsFloat() {
		return strconv.FormatFloat(col.Float64At(i), 'f', 4, 64)
	}
	return col.Display(i)
}
