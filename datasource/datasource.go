// Package datasource defines the source-descriptor value type and the
// adapter contract every format implements. One adapter exists per format
// tag; all expose Open (a lazy scan) and ProbeSchema.
package datasource

import (
	"github.com/go-dafr/dafr"
	"github.com/go-dafr/dafr/frame"
)

// Scan is a lazy stream of columnar batches read from a source. Next
// returns io.EOF once the source is exhausted.
type Scan interface {
	Schema() dafr.Schema
	Next() (*frame.Frame, error)
	Close() error
}

// Adapter opens descriptors of one particular format
type Adapter interface {
	// Open yields a lazy scan over the described source
	Open(d *Descriptor) (Scan, error)
	// ProbeSchema reports the source schema without scanning data
	ProbeSchema(d *Descriptor) (dafr.Schema, error)
}
