// Package xlsx implements the Excel source adapter. The selected sheet is
// materialized once into a Parquet sidecar next to the workbook, and later
// opens read the sidecar instead of re-parsing the workbook.
package xlsx

import (
	"fmt"
	"os"

	"github.com/gofrs/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/go-dafr/dafr"
	"github.com/go-dafr/dafr/datasource"
	"github.com/go-dafr/dafr/datasource/parquetfile"
	"github.com/go-dafr/dafr/errors"
	"github.com/go-dafr/dafr/frame"
)

// CacheSuffix is appended to the workbook path to name the Parquet sidecar
const CacheSuffix = ".dfrcache.parquet"

// Adapter opens Excel workbooks
type Adapter struct{}

var _ datasource.Adapter = Adapter{}

// Open materializes the sheet into the sidecar if needed, then scans the sidecar
func (Adapter) Open(d *datasource.Descriptor) (datasource.Scan, error) {
	cache, err := ensureCache(d)
	if err != nil {
		return nil, err
	}
	return parquetfile.Adapter{}.Open(cacheDescriptor(cache))
}

// ProbeSchema reports the sidecar schema, materializing it if needed
func (Adapter) ProbeSchema(d *datasource.Descriptor) (dafr.Schema, error) {
	cache, err := ensureCache(d)
	if err != nil {
		return nil, err
	}
	return parquetfile.Adapter{}.ProbeSchema(cacheDescriptor(cache))
}

func cacheDescriptor(path string) *datasource.Descriptor {
	return &datasource.Descriptor{
		Path:    path,
		Format:  datasource.Parquet,
		Options: datasource.DefaultOptions(datasource.Parquet),
	}
}

// ensureCache returns the sidecar path, rebuilding the sidecar when it is
// missing or older than the workbook.
func ensureCache(d *datasource.Descriptor) (string, error) {
	cache := d.Path + CacheSuffix
	src, err := os.Stat(d.Path)
	if err != nil {
		return "", errors.IoError{Path: d.Path, Err: err}
	}
	if info, err := os.Stat(cache); err == nil && !info.ModTime().Before(src.ModTime()) {
		return cache, nil
	}
	fr, err := materialize(d)
	if err != nil {
		return "", err
	}
	if err := writeCache(cache, fr); err != nil {
		return "", err
	}
	return cache, nil
}

// materialize parses the selected sheet into a single frame, inferring
// dtypes the same way the text adapters do.
func materialize(d *datasource.Descriptor) (*frame.Frame, error) {
	wb, err := excelize.OpenFile(d.Path)
	if err != nil {
		return nil, errors.DecodeError{Detail: err.Error()}
	}
	defer wb.Close()

	sheet := d.Options.Sheet
	if sheet == "" {
		sheets := wb.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.DecodeError{Detail: "workbook contains no sheets"}
		}
		sheet = sheets[0]
	}
	rows, err := wb.GetRows(sheet)
	if err != nil {
		return nil, errors.DecodeError{Detail: fmt.Sprintf("sheet %s: %v", sheet, err)}
	}

	var names []string
	if len(rows) > 0 && d.Options.HasHeader {
		names = rows[0]
		rows = rows[1:]
	} else if len(rows) > 0 {
		names = datasource.SyntheticNames(len(rows[0]))
	}

	schema := d.SchemaOverride
	if schema == nil {
		inferRows := d.Options.InferRows
		if inferRows <= 0 {
			inferRows = 100
		}
		sample := rows
		if len(sample) > inferRows {
			sample = sample[:inferRows]
		}
		schema = datasource.InferSchema(names, sample)
	}

	fr := frame.CreateFrame(schema)
	for _, row := range rows {
		for i := 0; i < fr.NumColumns(); i++ {
			col := fr.ColumnAt(i)
			if i >= len(row) {
				col.AppendNull()
				continue
			}
			if err := col.AppendParsed(row[i]); err != nil {
				col.AppendNull()
			}
		}
	}
	return fr, nil
}

// writeCache writes the sidecar via temp file + rename so a concurrent
// reader never observes a partial file.
func writeCache(path string, fr *frame.Frame) error {
	id, err := uuid.NewV4()
	if err != nil {
		return errors.IoError{Path: path, Err: err}
	}
	tmp := fmt.Sprintf("%s.%s.tmp", path, id)
	f, err := os.Create(tmp)
	if err != nil {
		return errors.IoError{Path: tmp, Err: err}
	}
	w := parquetfile.NewWriter(f, fr.Schema(), 0)
	if err := w.WriteFrame(fr); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.IoError{Path: tmp, Err: err}
	}
	if err := w.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.IoError{Path: tmp, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.IoError{Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.IoError{Path: path, Err: err}
	}
	return nil
}
