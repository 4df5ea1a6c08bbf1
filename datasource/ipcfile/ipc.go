// Package ipcfile implements the Arrow IPC file source adapter. The
// schema comes from the file metadata; record batches stream through
// unchanged granularity.
package ipcfile

import (
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/go-dafr/dafr"
	"github.com/go-dafr/dafr/datasource"
	"github.com/go-dafr/dafr/errors"
	"github.com/go-dafr/dafr/frame"
)

// Adapter opens Arrow IPC sources
type Adapter struct{}

var _ datasource.Adapter = Adapter{}

// Open yields a lazy scan over an Arrow IPC file, one record batch at a time
func (Adapter) Open(d *datasource.Descriptor) (datasource.Scan, error) {
	return open(d)
}

// ProbeSchema reads the schema from the file metadata
func (Adapter) ProbeSchema(d *datasource.Descriptor) (dafr.Schema, error) {
	s, err := open(d)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.Schema(), nil
}

type scan struct {
	file   *os.File
	reader *ipc.FileReader
	schema dafr.Schema
}

func open(d *datasource.Descriptor) (*scan, error) {
	f, err := os.Open(d.Path)
	if err != nil {
		return nil, errors.IoError{Path: d.Path, Err: err}
	}
	r, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		f.Close()
		return nil, errors.DecodeError{Detail: err.Error()}
	}
	schema, err := coreSchema(r.Schema())
	if err != nil {
		r.Close()
		f.Close()
		return nil, err
	}
	return &scan{file: f, reader: r, schema: schema}, nil
}

func coreSchema(as *arrow.Schema) (dafr.Schema, error) {
	schema := make(dafr.Schema, 0, as.NumFields())
	for i := 0; i < as.NumFields(); i++ {
		field := as.Field(i)
		dt, err := fieldDtype(field.Type)
		if err != nil {
			return nil, err
		}
		schema = append(schema, dafr.Column{Name: field.Name, Dtype: dt})
	}
	return schema, nil
}

func fieldDtype(t arrow.DataType) (dafr.Dtype, error) {
	switch t.ID() {
	case arrow.INT32:
		return dafr.Int32, nil
	case arrow.INT64:
		return dafr.Int64, nil
	case arrow.FLOAT32:
		return dafr.Float32, nil
	case arrow.FLOAT64:
		return dafr.Float64, nil
	case arrow.STRING, arrow.LARGE_STRING:
		return dafr.String, nil
	case arrow.BOOL:
		return dafr.Boolean, nil
	case arrow.DATE32, arrow.DATE64:
		return dafr.Date, nil
	case arrow.TIMESTAMP:
		return dafr.Datetime, nil
	case arrow.NULL:
		return dafr.Null, nil
	default:
		return dafr.Null, errors.DecodeError{Detail: fmt.Sprintf("arrow type %s is not supported", t.Name())}
	}
}

// Schema returns the file schema mapped to core dtypes
func (s *scan) Schema() dafr.Schema { return s.schema }

// Next returns the next record batch as a Frame
func (s *scan) Next() (*frame.Frame, error) {
	rec, err := s.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, errors.DecodeError{Detail: err.Error()}
	}
	batch := frame.CreateFrame(s.schema)
	for ci := 0; ci < batch.NumColumns(); ci++ {
		appendArray(batch.ColumnAt(ci), rec.Column(ci))
	}
	return batch, nil
}

func appendArray(col *frame.Column, arr arrow.Array) {
	n := arr.Len()
	for i := 0; i < n; i++ {
		if arr.IsNull(i) {
			col.AppendNull()
			continue
		}
		switch a := arr.(type) {
		case *array.Int32:
			col.AppendInt64(int64(a.Value(i)))
		case *array.Int64:
			col.AppendInt64(a.Value(i))
		case *array.Float32:
			col.AppendFloat64(float64(a.Value(i)))
		case *array.Float64:
			col.AppendFloat64(a.Value(i))
		case *array.String:
			col.AppendString(a.Value(i))
		case *array.LargeString:
			col.AppendString(a.Value(i))
		case *array.Boolean:
			col.AppendBool(a.Value(i))
		case *array.Date32:
			col.AppendInt64(int64(a.Value(i)))
		case *array.Date64:
			col.AppendInt64(int64(a.Value(i)) / 86400000)
		case *array.Timestamp:
			unit := arr.DataType().(*arrow.TimestampType).Unit
			col.AppendInt64(timestampMicros(unit, int64(a.Value(i))))
		default:
			col.AppendNull()
		}
	}
}

func timestampMicros(unit arrow.TimeUnit, v int64) int64 {
	switch unit {
	case arrow.Second:
		return v * 1e6
	case arrow.Millisecond:
		return v * 1e3
	case arrow.Nanosecond:
		return v / 1e3
	default:
		return v
	}
}

// Close releases the reader and the underlying file
func (s *scan) Close() error {
	err := s.reader.Close()
	if cerr := s.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
