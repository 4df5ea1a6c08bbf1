package parquetfile

import (
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/go-dafr/dafr"
	"github.com/go-dafr/dafr/frame"
)

// DefaultRowGroupSize is the row-group size used for written files
const DefaultRowGroupSize = 65536

// Writer streams frames into a snappy-compressed Parquet file. Core dtypes
// map to standard Parquet logical types: Date becomes DATE and Datetime
// becomes TIMESTAMP in microseconds, UTC.
type Writer struct {
	gw *parquet.GenericWriter[any]
	// parquet groups order fields by name, so row values are mapped from
	// frame column order to the written leaf order
	leafOrder []int
	schema    dafr.Schema
}

// NewWriter creates a Writer targeting w with the given core schema
func NewWriter(w io.Writer, schema dafr.Schema, rowGroupSize int64) *Writer {
	if rowGroupSize <= 0 {
		rowGroupSize = DefaultRowGroupSize
	}
	group := parquet.Group{}
	for _, col := range schema {
		group[col.Name] = parquet.Optional(parquetNode(col.Dtype))
	}
	ps := parquet.NewSchema("dafr", group)
	leafOrder := make([]int, len(ps.Fields()))
	for i, field := range ps.Fields() {
		idx, _ := schema.IndexOf(field.Name())
		leafOrder[i] = idx
	}
	gw := parquet.NewGenericWriter[any](w, ps,
		parquet.Compression(&parquet.Snappy),
		parquet.MaxRowsPerRowGroup(rowGroupSize),
	)
	return &Writer{gw: gw, leafOrder: leafOrder, schema: schema}
}

func parquetNode(dt dafr.Dtype) parquet.Node {
	switch dt {
	case dafr.Int32:
		return parquet.Leaf(parquet.Int32Type)
	case dafr.Int64:
		return parquet.Leaf(parquet.Int64Type)
	case dafr.Float32:
		return parquet.Leaf(parquet.FloatType)
	case dafr.Float64:
		return parquet.Leaf(parquet.DoubleType)
	case dafr.Boolean:
		return parquet.Leaf(parquet.BooleanType)
	case dafr.Date:
		return parquet.Date()
	case dafr.Datetime:
		return parquet.Timestamp(parquet.Microsecond)
	default:
		return parquet.String()
	}
}

// WriteFrame appends every row of fr to the file
func (w *Writer) WriteFrame(fr *frame.Frame) error {
	rows := make([]parquet.Row, 0, fr.NumRows())
	for r := 0; r < fr.NumRows(); r++ {
		row := make(parquet.Row, 0, len(w.leafOrder))
		for leaf, ci := range w.leafOrder {
			col := fr.ColumnAt(ci)
			row = append(row, parquetValue(col, r).Level(0, defLevel(col, r), leaf))
		}
		rows = append(rows, row)
	}
	_, err := w.gw.WriteRows(rows)
	return err
}

func defLevel(col *frame.Column, r int) int {
	if col.IsNull(r) {
		return 0
	}
	return 1
}

func parquetValue(col *frame.Column, r int) parquet.Value {
	if col.IsNull(r) {
		return parquet.ValueOf(nil)
	}
	switch col.Dtype() {
	case dafr.Int32, dafr.Date:
		return parquet.ValueOf(int32(col.Int64At(r)))
	case dafr.Int64, dafr.Datetime:
		return parquet.ValueOf(col.Int64At(r))
	case dafr.Float32:
		return parquet.ValueOf(float32(col.Float64At(r)))
	case dafr.Float64:
		return parquet.ValueOf(col.Float64At(r))
	case dafr.String:
		return parquet.ValueOf(col.StringAt(r))
	case dafr.Boolean:
		return parquet.ValueOf(col.BoolAt(r))
	default:
		return parquet.ValueOf(nil)
	}
}

// Close flushes buffered row groups and writes the footer
func (w *Writer) Close() error {
	return w.gw.Close()
}
