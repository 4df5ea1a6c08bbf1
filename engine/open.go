package engine

import (
	"time"

	"github.com/go-dafr/dafr"
	"github.com/go-dafr/dafr/datasource"
	"github.com/go-dafr/dafr/datasource/dsv"
	"github.com/go-dafr/dafr/datasource/ipcfile"
	"github.com/go-dafr/dafr/datasource/ndjson"
	"github.com/go-dafr/dafr/datasource/parquetfile"
	"github.com/go-dafr/dafr/datasource/sqldb"
	"github.com/go-dafr/dafr/datasource/xlsx"
	"github.com/go-dafr/dafr/errors"
)

// adapterFor dispatches a format tag to its source adapter
func adapterFor(f datasource.Format) datasource.Adapter {
	switch f {
	case datasource.Parquet:
		return parquetfile.Adapter{}
	case datasource.IPC:
		return ipcfile.Adapter{}
	case datasource.NDJSON:
		return ndjson.Adapter{}
	case datasource.XLSX:
		return xlsx.Adapter{}
	case datasource.SQL:
		return sqldb.Adapter{}
	default:
		return dsv.Adapter{}
	}
}

// OpenScan opens the described source as a lazy scan
func OpenScan(d *datasource.Descriptor) (datasource.Scan, error) {
	return adapterFor(d.Format).Open(d)
}

// ProbeSchema reports the source schema without scanning data
func ProbeSchema(d *datasource.Descriptor) (dafr.Schema, error) {
	return adapterFor(d.Format).ProbeSchema(d)
}

// ProbeSchemaTimeout bounds ProbeSchema with a deadline. The probe
// goroutine is not interrupted on timeout; its result is discarded.
func ProbeSchemaTimeout(d *datasource.Descriptor, timeout time.Duration) (dafr.Schema, error) {
	if timeout <= 0 {
		return ProbeSchema(d)
	}
	type result struct {
		schema dafr.Schema
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		schema, err := ProbeSchema(d)
		ch <- result{schema, err}
	}()
	select {
	case r := <-ch:
		return r.schema, r.err
	case <-time.After(timeout):
		return nil, errors.TimeoutError{Op: "source probe"}
	}
}
