// Package ndjson implements the newline-delimited JSON source adapter.
// Field dtypes are inferred per field over the first InferRows lines and
// unified to the widest common dtype. Fields are accessed lazily by gjson
// path; values missing from a line are null.
package ndjson

import (
	"bufio"
	"io"
	"math"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/tidwall/gjson"

	"github.com/go-dafr/dafr"
	"github.com/go-dafr/dafr/datasource"
	"github.com/go-dafr/dafr/errors"
	"github.com/go-dafr/dafr/frame"
)

const (
	// BatchSize is the maximum number of rows per emitted batch
	BatchSize = 1024
	// MaxLineSize is the maximum size in bytes of a single JSON line
	MaxLineSize = 16 * 1024 * 1024
)

// Adapter opens NDJSON sources
type Adapter struct{}

var _ datasource.Adapter = Adapter{}

// Open yields a lazy scan over an NDJSON file
func (Adapter) Open(d *datasource.Descriptor) (datasource.Scan, error) {
	return open(d)
}

// ProbeSchema infers field dtypes from the first InferRows lines
func (Adapter) ProbeSchema(d *datasource.Descriptor) (dafr.Schema, error) {
	s, err := open(d)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.Schema(), nil
}

type scan struct {
	closers []io.Closer
	scanner *bufio.Scanner
	schema  dafr.Schema
	pending []string
	done    bool
}

func open(d *datasource.Descriptor) (*scan, error) {
	f, err := os.Open(d.Path)
	if err != nil {
		return nil, errors.IoError{Path: d.Path, Err: err}
	}
	var r io.Reader = f
	closers := []io.Closer{f}
	if strings.HasSuffix(strings.ToLower(d.Path), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.DecodeError{Detail: err.Error()}
		}
		r = gz
		closers = append(closers, gz)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), MaxLineSize)
	s := &scan{closers: closers, scanner: scanner}

	if d.SchemaOverride != nil {
		s.schema = d.SchemaOverride.Clone()
		return s, nil
	}

	inferRows := d.Options.InferRows
	if inferRows <= 0 {
		inferRows = 100
	}
	var names []string
	dtypes := map[string]dafr.Dtype{}
	for len(s.pending) < inferRows {
		line, err := s.readLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.Close()
			return nil, err
		}
		s.pending = append(s.pending, line)
		parsed := gjson.Parse(line)
		if !parsed.IsObject() {
			s.Close()
			return nil, errors.DecodeError{Detail: "NDJSON line is not a JSON object"}
		}
		parsed.ForEach(func(key, value gjson.Result) bool {
			name := key.String()
			if _, seen := dtypes[name]; !seen {
				names = append(names, name)
				dtypes[name] = dafr.Null
			}
			dtypes[name] = datasource.Widen(dtypes[name], fieldDtype(value))
			return true
		})
	}
	schema := make(dafr.Schema, len(names))
	for i, name := range names {
		schema[i] = dafr.Column{Name: name, Dtype: dtypes[name]}
	}
	s.schema = schema
	return s, nil
}

// fieldDtype maps a JSON value to a core dtype. Integral numbers infer as
// Int64, other numbers as Float64; nested values stringify.
func fieldDtype(v gjson.Result) dafr.Dtype {
	switch v.Type {
	case gjson.Number:
		f := v.Float()
		if f == math.Trunc(f) && !strings.ContainsAny(v.Raw, ".eE") {
			return dafr.Int64
		}
		return dafr.Float64
	case gjson.True, gjson.False:
		return dafr.Boolean
	case gjson.String:
		return dafr.String
	case gjson.Null:
		return dafr.Null
	default:
		return dafr.String
	}
}

func (s *scan) readLine() (string, error) {
	for {
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return "", errors.DecodeError{Detail: err.Error()}
			}
			s.done = true
			return "", io.EOF
		}
		line := strings.TrimSpace(s.scanner.Text())
		if len(line) > 0 {
			return line, nil
		}
	}
}

// Schema returns the inferred or overridden schema
func (s *scan) Schema() dafr.Schema { return s.schema }

// Next returns the next batch of up to BatchSize rows
func (s *scan) Next() (*frame.Frame, error) {
	batch := frame.CreateFrame(s.schema)
	for batch.NumRows() < BatchSize {
		var line string
		if len(s.pending) > 0 {
			line = s.pending[0]
			s.pending = s.pending[1:]
		} else {
			if s.done {
				break
			}
			l, err := s.readLine()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, err
			}
			line = l
		}
		appendLine(batch, line)
	}
	if batch.NumRows() == 0 {
		return nil, io.EOF
	}
	return batch, nil
}

func appendLine(batch *frame.Frame, line string) {
	parsed := gjson.Parse(line)
	for i := 0; i < batch.NumColumns(); i++ {
		col := batch.ColumnAt(i)
		v := parsed.Get(col.Name())
		if !v.Exists() || v.Type == gjson.Null {
			col.AppendNull()
			continue
		}
		switch col.Dtype() {
		case dafr.Int32, dafr.Int64:
			col.AppendInt64(v.Int())
		case dafr.Float32, dafr.Float64:
			col.AppendFloat64(v.Float())
		case dafr.Boolean:
			col.AppendBool(v.Bool())
		case dafr.String:
			if v.Type == gjson.String {
				col.AppendString(v.String())
			} else {
				col.AppendString(v.Raw)
			}
		case dafr.Date, dafr.Datetime:
			if err := col.AppendParsed(v.String()); err != nil {
				col.AppendNull()
			}
		default:
			col.AppendNull()
		}
	}
}

// Close releases the underlying file
func (s *scan) Close() error {
	var err error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if cerr := s.closers[i].Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
