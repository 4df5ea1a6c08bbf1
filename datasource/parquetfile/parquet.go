// Package parquetfile implements the Parquet source adapter and a
// streaming frame writer shared with the export runner and the Excel
// sidecar cache. Schemas come from the file footer; nothing is inferred.
package parquetfile

import (
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"

	"github.com/go-dafr/dafr"
	"github.com/go-dafr/dafr/datasource"
	"github.com/go-dafr/dafr/errors"
	"github.com/go-dafr/dafr/frame"
)

// BatchSize is the maximum number of rows per emitted batch
const BatchSize = 1024

// Adapter opens Parquet sources
type Adapter struct{}

var _ datasource.Adapter = Adapter{}

// Open yields a lazy scan over a Parquet file, one row group at a time
func (Adapter) Open(d *datasource.Descriptor) (datasource.Scan, error) {
	return open(d)
}

// ProbeSchema reads the schema from the file footer
func (Adapter) ProbeSchema(d *datasource.Descriptor) (dafr.Schema, error) {
	s, err := open(d)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.Schema(), nil
}

type scan struct {
	file    *os.File
	schema  dafr.Schema
	groups  []parquet.RowGroup
	rows    parquet.Rows
	buf     []parquet.Row
	current int
}

func open(d *datasource.Descriptor) (*scan, error) {
	f, err := os.Open(d.Path)
	if err != nil {
		return nil, errors.IoError{Path: d.Path, Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.IoError{Path: d.Path, Err: err}
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		f.Close()
		return nil, errors.DecodeError{Detail: err.Error()}
	}
	schema, err := coreSchema(pf.Schema())
	if err != nil {
		f.Close()
		return nil, err
	}
	return &scan{
		file:   f,
		schema: schema,
		groups: pf.RowGroups(),
		buf:    make([]parquet.Row, BatchSize),
	}, nil
}

// coreSchema maps a flat Parquet schema to core dtypes
func coreSchema(ps *parquet.Schema) (dafr.Schema, error) {
	fields := ps.Fields()
	schema := make(dafr.Schema, 0, len(fields))
	for _, field := range fields {
		if !field.Leaf() {
			return nil, errors.DecodeError{Detail: fmt.Sprintf("nested parquet column %s is not supported", field.Name())}
		}
		dt, err := leafDtype(field)
		if err != nil {
			return nil, err
		}
		schema = append(schema, dafr.Column{Name: field.Name(), Dtype: dt})
	}
	return schema, nil
}

func leafDtype(field parquet.Field) (dafr.Dtype, error) {
	logical := field.Type().LogicalType()
	if logical != nil {
		switch {
		case logical.UTF8 != nil:
			return dafr.String, nil
		case logical.Date != nil:
			return dafr.Date, nil
		case logical.Timestamp != nil:
			return dafr.Datetime, nil
		}
	}
	switch field.Type().Kind() {
	case parquet.Boolean:
		return dafr.Boolean, nil
	case parquet.Int32:
		return dafr.Int32, nil
	case parquet.Int64:
		return dafr.Int64, nil
	case parquet.Float:
		return dafr.Float32, nil
	case parquet.Double:
		return dafr.Float64, nil
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return dafr.String, nil
	default:
		return dafr.Null, errors.DecodeError{Detail: fmt.Sprintf("parquet column %s has unsupported physical type", field.Name())}
	}
}

// Schema returns the footer schema mapped to core dtypes
func (s *scan) Schema() dafr.Schema { return s.schema }

// Next returns the next batch of up to BatchSize rows
func (s *scan) Next() (*frame.Frame, error) {
	for {
		if s.rows == nil {
			if s.current >= len(s.groups) {
				return nil, io.EOF
			}
			s.rows = s.groups[s.current].Rows()
			s.current++
		}
		n, err := s.rows.ReadRows(s.buf)
		if n > 0 {
			batch := frame.CreateFrame(s.schema)
			for _, row := range s.buf[:n] {
				s.appendRow(batch, row)
			}
			if err == io.EOF {
				s.rows.Close()
				s.rows = nil
			}
			return batch, nil
		}
		if err != nil && err != io.EOF {
			return nil, errors.DecodeError{Detail: err.Error()}
		}
		s.rows.Close()
		s.rows = nil
	}
}

func (s *scan) appendRow(batch *frame.Frame, row parquet.Row) {
	for _, v := range row {
		ci := v.Column()
		if ci < 0 || ci >= batch.NumColumns() {
			continue
		}
		col := batch.ColumnAt(ci)
		if v.IsNull() {
			col.AppendNull()
			continue
		}
		switch col.Dtype() {
		case dafr.Int32:
			col.AppendInt64(int64(v.Int32()))
		case dafr.Int64:
			col.AppendInt64(v.Int64())
		case dafr.Float32:
			col.AppendFloat64(float64(v.Float()))
		case dafr.Float64:
			col.AppendFloat64(v.Double())
		case dafr.String:
			col.AppendString(v.String())
		case dafr.Boolean:
			col.AppendBool(v.Boolean())
		case dafr.Date:
			col.AppendInt64(int64(v.Int32()))
		case dafr.Datetime:
			col.AppendInt64(timestampMicros(s.timestampUnit(ci), v.Int64()))
		default:
			col.AppendNull()
		}
	}
}

func (s *scan) timestampUnit(column int) format.TimeUnit {
	fields := s.groups[s.current-1].Schema().Fields()
	if column < len(fields) {
		if lt := fields[column].Type().LogicalType(); lt != nil && lt.Timestamp != nil {
			return lt.Timestamp.Unit
		}
	}
	return format.TimeUnit{Micros: &format.MicroSeconds{}}
}

func timestampMicros(unit format.TimeUnit, v int64) int64 {
	switch {
	case unit.Millis != nil:
		return v * 1000
	case unit.Nanos != nil:
		return v / 1000
	default:
		return v
	}
}

// Close releases the underlying file
func (s *scan) Close() error {
	if s.rows != nil {
		s.rows.Close()
		s.rows = nil
	}
	return s.file.Close()
}
