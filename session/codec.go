package session

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"os"
	"sort"

	"github.com/gofrs/uuid"

	"github.com/go-dafr/dafr/datasource"
	"github.com/go-dafr/dafr/errors"
	"github.com/go-dafr/dafr/internal/binenc"
	"github.com/go-dafr/dafr/operations"
)

// Magic identifies a session file
const Magic = "DFRSESS1"

// FormatVersion is the current session format version
const FormatVersion uint32 = 1

// Encode serializes the session into the versioned envelope: magic,
// big-endian version, big-endian payload length, payload, CRC32 of the
// payload. No frames, caches or history stacks are written.
func Encode(s *Session) ([]byte, error) {
	if s.Source == nil {
		return nil, errors.NoSourceError{}
	}
	payload := encodePayload(s)
	out := make([]byte, 0, len(Magic)+16+len(payload)+4)
	out = append(out, Magic...)
	out = binenc.AppendUint32(out, FormatVersion)
	out = binenc.AppendUint64(out, uint64(len(payload)))
	out = append(out, payload...)
	out = binenc.AppendUint32(out, crc32.ChecksumIEEE(payload))
	return out, nil
}

// encodePayload writes the stable structural encoding: source descriptor,
// operation count and tagged operations, then UI hints sorted by key so
// the bytes are bit-stable.
func encodePayload(s *Session) []byte {
	b := s.Source.AppendBinary(nil)
	b = binenc.AppendUint32(b, uint32(len(s.Ops)))
	for _, op := range s.Ops {
		b = op.AppendBinary(b)
	}
	keys := make([]string, 0, len(s.UIHints))
	for k := range s.UIHints {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b = binenc.AppendUint32(b, uint32(len(keys)))
	for _, k := range keys {
		b = binenc.AppendString(b, k)
		b = binenc.AppendString(b, s.UIHints[k])
	}
	return b
}

// Decode parses an envelope produced by Encode. Unknown versions are
// rejected with UnsupportedVersion; any framing or checksum mismatch is a
// DecodeError.
func Decode(data []byte) (*Session, error) {
	if len(data) < len(Magic)+16 || !bytes.HasPrefix(data, []byte(Magic)) {
		return nil, errors.DecodeError{Detail: "not a session file"}
	}
	r := binenc.NewReader(data[len(Magic):])
	version, err := r.Uint32()
	if err != nil {
		return nil, errors.DecodeError{Detail: "truncated session header"}
	}
	if version != FormatVersion {
		return nil, errors.UnsupportedVersionError{Version: version}
	}
	length, err := r.Uint64()
	if err != nil {
		return nil, errors.DecodeError{Detail: "truncated session header"}
	}
	if uint64(r.Remaining()) < length+4 {
		return nil, errors.DecodeError{Detail: "truncated session payload"}
	}
	payloadStart := len(Magic) + 12
	payload := data[payloadStart : payloadStart+int(length)]
	sumReader := binenc.NewReader(data[payloadStart+int(length):])
	sum, err := sumReader.Uint32()
	if err != nil {
		return nil, errors.DecodeError{Detail: "truncated session checksum"}
	}
	if sum != crc32.ChecksumIEEE(payload) {
		return nil, errors.DecodeError{Detail: "session checksum mismatch"}
	}
	return decodePayload(binenc.NewReader(payload))
}

func decodePayload(r *binenc.Reader) (*Session, error) {
	s := CreateSession()
	source, err := datasource.DecodeBinary(r)
	if err != nil {
		return nil, err
	}
	s.Source = source
	opCount, err := r.Uint32()
	if err != nil {
		return nil, errors.DecodeError{Detail: "truncated operation count"}
	}
	for i := uint32(0); i < opCount; i++ {
		op, err := operations.DecodeBinary(r)
		if err != nil {
			return nil, err
		}
		s.Ops = append(s.Ops, op)
	}
	hintCount, err := r.Uint32()
	if err != nil {
		return nil, errors.DecodeError{Detail: "truncated hint count"}
	}
	for i := uint32(0); i < hintCount; i++ {
		k, err := r.String()
		if err != nil {
			return nil, errors.DecodeError{Detail: "truncated hint key"}
		}
		v, err := r.String()
		if err != nil {
			return nil, errors.DecodeError{Detail: "truncated hint value"}
		}
		s.UIHints[k] = v
	}
	return s, nil
}

// Save writes the session to path via a temp file and an atomic rename
func Save(s *Session, path string) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return errors.IoError{Path: path, Err: err}
	}
	tmp := fmt.Sprintf("%s.%s.tmp", path, id)
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.IoError{Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.IoError{Path: path, Err: err}
	}
	return nil
}

// Load reads a session from path. The loaded session has no history.
func Load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.IoError{Path: path, Err: err}
	}
	return Decode(data)
}
