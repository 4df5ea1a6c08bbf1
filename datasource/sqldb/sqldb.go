// Package sqldb implements the SQL source adapter over SQLite database
// files. The descriptor's Query option selects the result set, defaulting
// to the first user table; driver types are cast to core dtypes.
package sqldb

import (
	"database/sql"
	"io"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/go-dafr/dafr"
	"github.com/go-dafr/dafr/datasource"
	"github.com/go-dafr/dafr/errors"
	"github.com/go-dafr/dafr/frame"
)

// BatchSize is the maximum number of rows per emitted batch
const BatchSize = 1024

// Adapter opens SQLite sources
type Adapter struct{}

var _ datasource.Adapter = Adapter{}

// Open yields a lazy scan over the descriptor's result set
func (Adapter) Open(d *datasource.Descriptor) (datasource.Scan, error) {
	return open(d)
}

// ProbeSchema reports the result-set schema without fetching rows
func (Adapter) ProbeSchema(d *datasource.Descriptor) (dafr.Schema, error) {
	s, err := open(d)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.Schema(), nil
}

type scan struct {
	db     *sql.DB
	rows   *sql.Rows
	schema dafr.Schema
	done   bool
}

func open(d *datasource.Descriptor) (*scan, error) {
	db, err := sql.Open("sqlite", d.Path)
	if err != nil {
		return nil, errors.IoError{Path: d.Path, Err: err}
	}
	query := d.Options.Query
	if query == "" {
		query, err = firstTableQuery(db)
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	rows, err := db.Query(query)
	if err != nil {
		db.Close()
		return nil, errors.ExecutionError{Err: err}
	}
	schema, err := resultSchema(rows, d.SchemaOverride)
	if err != nil {
		rows.Close()
		db.Close()
		return nil, err
	}
	return &scan{db: db, rows: rows, schema: schema}, nil
}

func firstTableQuery(db *sql.DB) (string, error) {
	row := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY rowid LIMIT 1`)
	var table string
	if err := row.Scan(&table); err != nil {
		return "", errors.ExecutionError{Err: err}
	}
	return `SELECT * FROM "` + table + `"`, nil
}

func resultSchema(rows *sql.Rows, override dafr.Schema) (dafr.Schema, error) {
	if override != nil {
		return override.Clone(), nil
	}
	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, errors.ExecutionError{Err: err}
	}
	schema := make(dafr.Schema, 0, len(cols))
	for _, ct := range cols {
		dt, err := driverDtype(ct.Name(), ct.DatabaseTypeName())
		if err != nil {
			return nil, err
		}
		schema = append(schema, dafr.Column{Name: ct.Name(), Dtype: dt})
	}
	return schema, nil
}

// driverDtype casts a declared SQLite column type to a core dtype
func driverDtype(column, driverType string) (dafr.Dtype, error) {
	t := strings.ToUpper(driverType)
	switch {
	case strings.Contains(t, "INT"):
		return dafr.Int64, nil
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return dafr.Float64, nil
	case strings.Contains(t, "BOOL"):
		return dafr.Boolean, nil
	case t == "DATE":
		return dafr.Date, nil
	case strings.Contains(t, "DATETIME"), strings.Contains(t, "TIMESTAMP"):
		return dafr.Datetime, nil
	case strings.Contains(t, "CHAR"), strings.Contains(t, "TEXT"), strings.Contains(t, "CLOB"):
		return dafr.String, nil
	default:
		return dafr.Null, errors.UnsupportedDtypeError{Column: column, DriverType: driverType}
	}
}

// Schema returns the result-set schema mapped to core dtypes
func (s *scan) Schema() dafr.Schema { return s.schema }

// Next returns the next batch of up to BatchSize rows
func (s *scan) Next() (*frame.Frame, error) {
	if s.done {
		return nil, io.EOF
	}
	batch := frame.CreateFrame(s.schema)
	dest := make([]any, len(s.schema))
	for batch.NumRows() < BatchSize {
		if !s.rows.Next() {
			s.done = true
			if err := s.rows.Err(); err != nil {
				return nil, errors.ExecutionError{Err: err}
			}
			break
		}
		for i, col := range s.schema {
			dest[i] = scanDest(col.Dtype)
		}
		if err := s.rows.Scan(dest...); err != nil {
			return nil, errors.ExecutionError{Err: err}
		}
		for i := range s.schema {
			appendScanned(batch.ColumnAt(i), dest[i])
		}
	}
	if batch.NumRows() == 0 {
		return nil, io.EOF
	}
	return batch, nil
}

func scanDest(dt dafr.Dtype) any {
	switch dt {
	case dafr.Int32, dafr.Int64:
		return new(sql.NullInt64)
	case dafr.Float32, dafr.Float64:
		return new(sql.NullFloat64)
	case dafr.Boolean:
		return new(sql.NullBool)
	default:
		// dates, datetimes and strings arrive as TEXT
		return new(sql.NullString)
	}
}

func appendScanned(col *frame.Column, dest any) {
	switch v := dest.(type) {
	case *sql.NullInt64:
		if !v.Valid {
			col.AppendNull()
			return
		}
		col.AppendInt64(v.Int64)
	case *sql.NullFloat64:
		if !v.Valid {
			col.AppendNull()
			return
		}
		col.AppendFloat64(v.Float64)
	case *sql.NullBool:
		if !v.Valid {
			col.AppendNull()
			return
		}
		col.AppendBool(v.Bool)
	case *sql.NullString:
		if !v.Valid {
			col.AppendNull()
			return
		}
		if err := col.AppendParsed(v.String); err != nil {
			col.AppendNull()
		}
	default:
		col.AppendNull()
	}
}

// Close releases the result set and the database handle
func (s *scan) Close() error {
	err := s.rows.Close()
	if cerr := s.db.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
