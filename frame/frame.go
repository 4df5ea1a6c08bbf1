// Package frame implements the columnar runtime: materialized batches of
// typed column arrays with validity bitmaps, plus the numeric extracts the
// plotting surface consumes.
package frame

import (
	"fmt"

	"github.com/go-dafr/dafr"
	"github.com/go-dafr/dafr/errors"
)

// Frame is a materialized columnar batch. It holds a schema and one typed
// column array per schema entry, and is used transiently by the preview
// cache and the export runner.
type Frame struct {
	schema dafr.Schema
	cols   []*Column
}

// CreateFrame is a factory for an empty Frame with the given schema
func CreateFrame(schema dafr.Schema) *Frame {
	cols := make([]*Column, schema.NumColumns())
	for i, c := range schema {
		cols[i] = CreateColumn(c.Name, c.Dtype)
	}
	return &Frame{schema: schema.Clone(), cols: cols}
}

// FromColumns assembles a Frame from pre-built columns
func FromColumns(cols []*Column) *Frame {
	schema := make(dafr.Schema, len(cols))
	for i, c := range cols {
		schema[i] = dafr.Column{Name: c.Name(), Dtype: c.Dtype()}
	}
	return &Frame{schema: schema, cols: cols}
}

// Schema returns the schema of this Frame
func (f *Frame) Schema() dafr.Schema { return f.schema }

// NumRows returns the number of rows in this Frame
func (f *Frame) NumRows() int {
	if len(f.cols) == 0 {
		return 0
	}
	return f.cols[0].Len()
}

// NumColumns returns the number of columns in this Frame
func (f *Frame) NumColumns() int { return len(f.cols) }

// Column returns the named column
func (f *Frame) Column(name string) (*Column, error) {
	i, err := f.schema.IndexOf(name)
	if err != nil {
		return nil, errors.SchemaMismatchError{Detail: err.Error()}
	}
	return f.cols[i], nil
}

// ColumnAt returns the column at position i
func (f *Frame) ColumnAt(i int) *Column { return f.cols[i] }

// AppendFrame appends all rows of other, whose schema must equal this
// Frame's schema.
func (f *Frame) AppendFrame(other *Frame) error {
	if !f.schema.Equals(other.schema) {
		return errors.SchemaMismatchError{Detail: "batch schema does not match frame schema"}
	}
	for i, col := range f.cols {
		src := other.cols[i]
		for r := 0; r < src.Len(); r++ {
			col.AppendFromColumn(src, r)
		}
	}
	return nil
}

// Head returns a copy of the first n rows
func (f *Frame) Head(n int) *Frame {
	if n > f.NumRows() {
		n = f.NumRows()
	}
	out := CreateFrame(f.schema)
	for i, col := range f.cols {
		for r := 0; r < n; r++ {
			out.cols[i].AppendFromColumn(col, r)
		}
	}
	return out
}

// TakeIndices returns a copy containing the given rows, in the given order
func (f *Frame) TakeIndices(idx []int) *Frame {
	out := CreateFrame(f.schema)
	for i, col := range f.cols {
		for _, r := range idx {
			out.cols[i].AppendFromColumn(col, r)
		}
	}
	return out
}

// FilterMask returns a copy containing only rows where mask is true
func (f *Frame) FilterMask(mask []bool) *Frame {
	out := CreateFrame(f.schema)
	for i, col := range f.cols {
		for r, keep := range mask {
			if keep {
				out.cols[i].AppendFromColumn(col, r)
			}
		}
	}
	return out
}

// SelectColumns projects the frame to the given columns, in the given order
func (f *Frame) SelectColumns(names []string) (*Frame, error) {
	cols := make([]*Column, 0, len(names))
	for _, name := range names {
		c, err := f.Column(name)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return FromColumns(cols), nil
}

// DropColumn removes the named column
func (f *Frame) DropColumn(name string) (*Frame, error) {
	i, err := f.schema.IndexOf(name)
	if err != nil {
		return nil, errors.SchemaMismatchError{Detail: err.Error()}
	}
	cols := make([]*Column, 0, len(f.cols)-1)
	cols = append(cols, f.cols[:i]...)
	cols = append(cols, f.cols[i+1:]...)
	return FromColumns(cols), nil
}

// RenameColumn renames a column in place, preserving order
func (f *Frame) RenameColumn(from, to string) error {
	i, err := f.schema.IndexOf(from)
	if err != nil {
		return errors.SchemaMismatchError{Detail: err.Error()}
	}
	f.schema[i].Name = to
	f.cols[i].Rename(to)
	return nil
}

// ReplaceColumn swaps the column at position i. The new column's name and
// dtype become part of the frame schema.
func (f *Frame) ReplaceColumn(i int, col *Column) {
	f.cols[i] = col
	f.schema[i] = dafr.Column{Name: col.Name(), Dtype: col.Dtype()}
}

// DisplayRows renders rows [from, to) as display strings, row-major
func (f *Frame) DisplayRows(from, to int) [][]string {
	if to > f.NumRows() {
		to = f.NumRows()
	}
	rows := make([][]string, 0, to-from)
	for r := from; r < to; r++ {
		row := make([]string, len(f.cols))
		for i, col := range f.cols {
			row[i] = col.Display(r)
		}
		rows = append(rows, row)
	}
	return rows
}

// ColumnF64 returns the named numeric column as float64 values plus a
// validity slice.
func (f *Frame) ColumnF64(name string) ([]float64, []bool, error) {
	col, err := f.Column(name)
	if err != nil {
		return nil, nil, err
	}
	if !col.Dtype().IsNumeric() {
		return nil, nil, errors.TypeError{Detail: fmt.Sprintf("column %s is %s, not numeric", name, col.Dtype())}
	}
	vals := make([]float64, col.Len())
	valid := make([]bool, col.Len())
	for i := 0; i < col.Len(); i++ {
		vals[i], valid[i] = col.Float64Value(i)
	}
	return vals, valid, nil
}

// ColumnI64 returns the named integer column as int64 values plus a
// validity slice.
func (f *Frame) ColumnI64(name string) ([]int64, []bool, error) {
	col, err := f.Column(name)
	if err != nil {
		return nil, nil, err
	}
	if !col.Dtype().IsInteger() {
		return nil, nil, errors.TypeError{Detail: fmt.Sprintf("column %s is %s, not integer", name, col.Dtype())}
	}
	vals := make([]int64, col.Len())
	valid := make([]bool, col.Len())
	for i := 0; i < col.Len(); i++ {
		if col.IsNull(i) {
			continue
		}
		vals[i] = col.Int64At(i)
		valid[i] = true
	}
	return vals, valid, nil
}

// ColumnDatetimeUnixSeconds returns the named temporal column as Unix
// seconds plus a validity slice. Date columns convert at day granularity.
func (f *Frame) ColumnDatetimeUnixSeconds(name string) ([]float64, []bool, error) {
	col, err := f.Column(name)
	if err != nil {
		return nil, nil, err
	}
	if !col.Dtype().IsTemporal() {
		return nil, nil, errors.TypeError{Detail: fmt.Sprintf("column %s is %s, not temporal", name, col.Dtype())}
	}
	vals := make([]float64, col.Len())
	valid := make([]bool, col.Len())
	for i := 0; i < col.Len(); i++ {
		vals[i], valid[i] = col.UnixSeconds(i)
	}
	return vals, valid, nil
}

// NumericBounds returns the minimum, maximum and null count of a numeric
// column. hasValues is false when every cell is null.
func (f *Frame) NumericBounds(name string) (min, max float64, nullCount int, hasValues bool, err error) {
	vals, valid, err := f.ColumnF64(name)
	if err != nil {
		return 0, 0, 0, false, err
	}
	for i, v := range vals {
		if !valid[i] {
			nullCount++
			continue
		}
		if !hasValues {
			min, max = v, v
			hasValues = true
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max, nullCount, hasValues, nil
}
