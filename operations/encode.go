package operations

import (
	"io"

	"github.com/go-dafr/dafr"
	"github.com/go-dafr/dafr/errors"
	"github.com/go-dafr/dafr/internal/binenc"
)

// AppendBinary appends the canonical encoding of this operation: a tag
// byte followed by the tag's fields in declaration order. Strings are
// length-prefixed UTF-8, booleans single bytes, integers big-endian. The
// encoding is shared by the session codec and the plan fingerprint.
func (o Operation) AppendBinary(b []byte) []byte {
	b = append(b, byte(o.Type))
	switch o.Type {
	case Filter:
		b = binenc.AppendString(b, o.Column)
		b = append(b, byte(o.Filter))
		b = binenc.AppendString(b, o.Value)
	case Sort:
		b = binenc.AppendString(b, o.Column)
		b = binenc.AppendBool(b, o.Descending)
	case DropColumn:
		b = binenc.AppendString(b, o.Column)
	case RenameColumn:
		b = binenc.AppendString(b, o.From)
		b = binenc.AppendString(b, o.To)
	case SelectColumns:
		b = binenc.AppendUint32(b, uint32(len(o.Columns)))
		for _, c := range o.Columns {
			b = binenc.AppendString(b, c)
		}
	case Limit:
		b = binenc.AppendUint32(b, o.N)
	case FillNull:
		b = binenc.AppendString(b, o.Column)
		b = append(b, byte(o.Strategy))
		b = binenc.AppendString(b, o.FillValue)
	case CastColumn:
		b = binenc.AppendString(b, o.Column)
		b = append(b, byte(o.TargetDtype))
	case ParseDatetime:
		b = binenc.AppendString(b, o.Column)
		b = binenc.AppendString(b, o.Format)
	}
	return b
}

// DecodeBinary reads an operation previously written by AppendBinary
func DecodeBinary(r *binenc.Reader) (Operation, error) {
	var o Operation
	tag, err := r.Byte()
	if err != nil {
		return o, decodeErr(err)
	}
	if tag > byte(ParseDatetime) {
		return o, errors.DecodeError{Detail: "unknown operation tag"}
	}
	o.Type = Type(tag)
	switch o.Type {
	case Filter:
		if o.Column, err = r.String(); err != nil {
			return o, decodeErr(err)
		}
		fop, err := r.Byte()
		if err != nil {
			return o, decodeErr(err)
		}
		if fop > byte(IsNotNull) {
			return o, errors.DecodeError{Detail: "unknown filter predicate tag"}
		}
		o.Filter = FilterOp(fop)
		if o.Value, err = r.String(); err != nil {
			return o, decodeErr(err)
		}
	case Sort:
		if o.Column, err = r.String(); err != nil {
			return o, decodeErr(err)
		}
		if o.Descending, err = r.Bool(); err != nil {
			return o, decodeErr(err)
		}
	case DropColumn:
		if o.Column, err = r.String(); err != nil {
			return o, decodeErr(err)
		}
	case RenameColumn:
		if o.From, err = r.String(); err != nil {
			return o, decodeErr(err)
		}
		if o.To, err = r.String(); err != nil {
			return o, decodeErr(err)
		}
	case SelectColumns:
		n, err := r.Uint32()
		if err != nil {
			return o, decodeErr(err)
		}
		for i := uint32(0); i < n; i++ {
			c, err := r.String()
			if err != nil {
				return o, decodeErr(err)
			}
			o.Columns = append(o.Columns, c)
		}
	case Limit:
		if o.N, err = r.Uint32(); err != nil {
			return o, decodeErr(err)
		}
	case FillNull:
		if o.Column, err = r.String(); err != nil {
			return o, decodeErr(err)
		}
		strategy, err := r.Byte()
		if err != nil {
			return o, decodeErr(err)
		}
		if strategy > byte(Max) {
			return o, errors.DecodeError{Detail: "unknown fill strategy tag"}
		}
		o.Strategy = FillStrategy(strategy)
		if o.FillValue, err = r.String(); err != nil {
			return o, decodeErr(err)
		}
	case CastColumn:
		if o.Column, err = r.String(); err != nil {
			return o, decodeErr(err)
		}
		dt, err := r.Byte()
		if err != nil {
			return o, decodeErr(err)
		}
		if dt > byte(dafr.Null) {
			return o, errors.DecodeError{Detail: "unknown dtype tag"}
		}
		o.TargetDtype = dafr.Dtype(dt)
	case ParseDatetime:
		if o.Column, err = r.String(); err != nil {
			return o, decodeErr(err)
		}
		if o.Format, err = r.String(); err != nil {
			return o, decodeErr(err)
		}
	}
	return o, nil
}

func decodeErr(err error) error {
	if err == io.ErrUnexpectedEOF {
		return errors.DecodeError{Detail: "truncated operation"}
	}
	return errors.DecodeError{Detail: err.Error()}
}
