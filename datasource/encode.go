package datasource

import (
	"io"

	"github.com/go-dafr/dafr"
	"github.com/go-dafr/dafr/errors"
	"github.com/go-dafr/dafr/internal/binenc"
)

// AppendBinary appends the canonical encoding of this descriptor: tag byte,
// length-prefixed path, schema override, then format options. The encoding
// is bit-stable and shared by the session codec and the plan fingerprint.
func (d *Descriptor) AppendBinary(b []byte) []byte {
	b = append(b, byte(d.Format))
	b = binenc.AppendString(b, d.Path)
	b = binenc.AppendUint32(b, uint32(len(d.SchemaOverride)))
	for _, col := range d.SchemaOverride {
		b = binenc.AppendString(b, col.Name)
		b = append(b, byte(col.Dtype))
	}
	b = binenc.AppendUint32(b, uint32(d.Options.Delimiter))
	b = binenc.AppendBool(b, d.Options.HasHeader)
	b = binenc.AppendUint32(b, uint32(d.Options.InferRows))
	b = binenc.AppendString(b, d.Options.Sheet)
	b = binenc.AppendString(b, d.Options.Query)
	return b
}

// DecodeBinary reads a descriptor previously written by AppendBinary
func DecodeBinary(r *binenc.Reader) (*Descriptor, error) {
	d := &Descriptor{}
	tag, err := r.Byte()
	if err != nil {
		return nil, decodeErr(err)
	}
	if tag > byte(SQL) {
		return nil, errors.DecodeError{Detail: "unknown source format tag"}
	}
	d.Format = Format(tag)
	if d.Path, err = r.String(); err != nil {
		return nil, decodeErr(err)
	}
	n, err := r.Uint32()
	if err != nil {
		return nil, decodeErr(err)
	}
	for i := uint32(0); i < n; i++ {
		name, err := r.String()
		if err != nil {
			return nil, decodeErr(err)
		}
		dt, err := r.Byte()
		if err != nil {
			return nil, decodeErr(err)
		}
		if dt > byte(dafr.Null) {
			return nil, errors.DecodeError{Detail: "unknown dtype tag"}
		}
		d.SchemaOverride = append(d.SchemaOverride, dafr.Column{Name: name, Dtype: dafr.Dtype(dt)})
	}
	delim, err := r.Uint32()
	if err != nil {
		return nil, decodeErr(err)
	}
	d.Options.Delimiter = rune(delim)
	if d.Options.HasHeader, err = r.Bool(); err != nil {
		return nil, decodeErr(err)
	}
	inferRows, err := r.Uint32()
	if err != nil {
		return nil, decodeErr(err)
	}
	d.Options.InferRows = int(inferRows)
	if d.Options.Sheet, err = r.String(); err != nil {
		return nil, decodeErr(err)
	}
	if d.Options.Query, err = r.String(); err != nil {
		return nil, decodeErr(err)
	}
	return d, nil
}

func decodeErr(err error) error {
	if err == io.ErrUnexpectedEOF {
		return errors.DecodeError{Detail: "truncated source descriptor"}
	}
	return errors.DecodeError{Detail: err.Error()}
}
