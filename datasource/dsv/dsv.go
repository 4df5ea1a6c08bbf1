// Package dsv implements the CSV/TSV source adapter. Dtypes are inferred
// from the first InferRows rows unless the descriptor carries a schema
// override; empty fields are null. Files with a .gz suffix are
// decompressed transparently.
package dsv

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/go-dafr/dafr"
	"github.com/go-dafr/dafr/datasource"
	"github.com/go-dafr/dafr/errors"
	"github.com/go-dafr/dafr/frame"
)

// BatchSize is the maximum number of rows per emitted batch
const BatchSize = 1024

// Adapter opens CSV and TSV sources
type Adapter struct{}

var _ datasource.Adapter = Adapter{}

// Open yields a lazy scan over a delimited text file
func (Adapter) Open(d *datasource.Descriptor) (datasource.Scan, error) {
	s, err := open(d)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ProbeSchema infers the schema from the first InferRows rows
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
	reader  *csv.Reader
	schema  dafr.Schema
	pending [][]string
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

	reader := csv.NewReader(r)
	reader.Comma = d.Options.Delimiter
	if reader.Comma == 0 {
		reader.Comma = ','
	}

	s := &scan{closers: closers, reader: reader}

	first, err := reader.Read()
	if err == io.EOF {
		s.done = true
		s.schema = d.SchemaOverride.Clone()
		return s, nil
	}
	if err != nil {
		s.Close()
		return nil, errors.DecodeError{Detail: err.Error()}
	}

	var names []string
	if d.Options.HasHeader {
		names = make([]string, len(first))
		for i, h := range first {
			names[i] = strings.TrimSpace(h)
		}
	} else {
		names = datasource.SyntheticNames(len(first))
		s.pending = append(s.pending, first)
	}

	if d.SchemaOverride != nil {
		s.schema = d.SchemaOverride.Clone()
		return s, nil
	}

	inferRows := d.Options.InferRows
	if inferRows <= 0 {
		inferRows = 100
	}
	for len(s.pending) < inferRows {
		rec, err := reader.Read()
		if err == io.EOF {
			s.done = true
			break
		}
		if err != nil {
			s.Close()
			return nil, errors.DecodeError{Detail: err.Error()}
		}
		s.pending = append(s.pending, append([]string(nil), rec...))
	}
	s.schema = datasource.InferSchema(names, s.pending)
	return s, nil
}

// Schema returns the inferred or overridden schema
func (s *scan) Schema() dafr.Schema { return s.schema }

// Next returns the next batch of up to BatchSize rows
func (s *scan) Next() (*frame.Frame, error) {
	batch := frame.CreateFrame(s.schema)
	for batch.NumRows() < BatchSize {
		var rec []string
		if len(s.pending) > 0 {
			rec = s.pending[0]
			s.pending = s.pending[1:]
		} else {
			if s.done {
				break
			}
			r, err := s.reader.Read()
			if err == io.EOF {
				s.done = true
				break
			}
			if err != nil {
				return nil, errors.DecodeError{Detail: err.Error()}
			}
			rec = r
		}
		appendRecord(batch, rec)
	}
	if batch.NumRows() == 0 {
		return nil, io.EOF
	}
	return batch, nil
}

// appendRecord parses one textual record into the batch. Cells that fail
// to parse as their column dtype become null.
func appendRecord(batch *frame.Frame, rec []string) {
	for i := 0; i < batch.NumColumns(); i++ {
		col := batch.ColumnAt(i)
		if i >= len(rec) {
			col.AppendNull()
			continue
		}
		if err := col.AppendParsed(rec[i]); err != nil {
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
