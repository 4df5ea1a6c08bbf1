package datasource

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-dafr/dafr"
	"github.com/go-dafr/dafr/errors"
)

// Format tags the file format of a data source
type Format uint8

const (
	// CSV is comma-separated text
	CSV Format = iota
	// TSV is tab-separated text
	TSV
	// Parquet is an Apache Parquet file
	Parquet
	// IPC is an Arrow IPC file
	IPC
	// NDJSON is newline-delimited JSON
	NDJSON
	// XLSX is an Excel workbook
	XLSX
	// SQL is a SQLite database file
	SQL
)

// String returns the display name of a Format
func (f Format) String() string {
	switch f {
	case CSV:
		return "CSV"
	case TSV:
		return "TSV"
	case Parquet:
		return "Parquet"
	case IPC:
		return "Arrow IPC"
	case NDJSON:
		return "NDJSON"
	case XLSX:
		return "Excel"
	case SQL:
		return "SQL"
	default:
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
}

// Options carries format-specific knobs for opening a source
type Options struct {
	Delimiter rune   // column separator for text sources
	HasHeader bool   // whether the first text row is a header
	InferRows int    // number of rows used for dtype inference
	Sheet     string // workbook sheet name; empty means the first sheet
	Query     string // SQL result set; empty means the first table
}

// DefaultOptions returns the option defaults for a format
func DefaultOptions(f Format) Options {
	opts := Options{
		Delimiter: ',',
		HasHeader: true,
		InferRows: 100,
	}
	if f == TSV {
		opts.Delimiter = '\t'
	}
	return opts
}

// Descriptor identifies an input without opening it. It is created by
// open_file, immutable thereafter, and destroyed when the session is
// cleared or replaced.
type Descriptor struct {
	Path           string
	Format         Format
	SchemaOverride dafr.Schema
	Options        Options
}

var extensions = map[string]Format{
	".csv":     CSV,
	".tsv":     TSV,
	".parquet": Parquet,
	".pq":      Parquet,
	".arrow":   IPC,
	".ipc":     IPC,
	".feather": IPC,
	".ndjson":  NDJSON,
	".jsonl":   NDJSON,
	".xlsx":    XLSX,
	".db":      SQL,
	".sqlite":  SQL,
	".sqlite3": SQL,
}

// FromPath creates a Descriptor for a path, probing the format by
// extension first and by magic bytes second.
func FromPath(path string) (*Descriptor, error) {
	f, err := ProbeFormat(path)
	if err != nil {
		return nil, err
	}
	return &Descriptor{Path: path, Format: f, Options: DefaultOptions(f)}, nil
}

// ProbeFormat determines the format of a file by extension, falling back
// to magic bytes for extensions it does not recognize.
func ProbeFormat(path string) (Format, error) {
	name := strings.ToLower(path)
	ext := filepath.Ext(name)
	if ext == ".gz" {
		ext = filepath.Ext(strings.TrimSuffix(name, ".gz"))
		switch ext {
		case ".csv":
			return CSV, nil
		case ".tsv":
			return TSV, nil
		case ".ndjson", ".jsonl":
			return NDJSON, nil
		}
		return 0, errors.UnsupportedFormatError{Path: path}
	}
	if f, ok := extensions[ext]; ok {
		return f, nil
	}
	return probeMagic(path)
}

var (
	magicParquet = []byte("PAR1")
	magicArrow   = []byte("ARROW1")
	magicZip     = []byte{'P', 'K', 0x03, 0x04}
	magicSQLite  = []byte("SQLite format 3\x00")
)

func probeMagic(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.IoError{Path: path, Err: err}
	}
	defer f.Close()
	head := make([]byte, 16)
	n, _ := f.Read(head)
	head = head[:n]
	switch {
	case bytes.HasPrefix(head, magicSQLite):
		return SQL, nil
	case bytes.HasPrefix(head, magicArrow):
		return IPC, nil
	case bytes.HasPrefix(head, magicParquet):
		return Parquet, nil
	case bytes.HasPrefix(head, magicZip):
		return XLSX, nil
	}
	return 0, errors.UnsupportedFormatError{Path: path}
}
