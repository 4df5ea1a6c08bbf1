package errors

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// NoSourceError occurs when a command requires a data source and none is loaded
type NoSourceError struct{}

// Error returns a textual representation of this NoSourceError
func (e NoSourceError) Error() string {
	return "no file loaded"
}

// IoError occurs when reading or writing a file fails
type IoError struct {
	Path string
	Err  error
}

// Error returns a textual representation of this IoError
func (e IoError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e IoError) Unwrap() error { return e.Err }

// DecodeError occurs when a file's contents cannot be decoded
type DecodeError struct {
	Detail string
}

// Error returns a textual representation of this DecodeError
func (e DecodeError) Error() string {
	return e.Detail
}

// UnsupportedFormatError occurs when a path has no recognizable tabular format
type UnsupportedFormatError struct {
	Path string
}

// Error returns a textual representation of this UnsupportedFormatError
func (e UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file: %s", e.Path)
}

// UnsupportedVersionError occurs when a session file declares an unknown format version
type UnsupportedVersionError struct {
	Version uint32
}

// Error returns a textual representation of this UnsupportedVersionError
func (e UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unknown session format version %d", e.Version)
}

// InvalidPlanError occurs when an operation sequence fails schema validation.
// Index is the position of the offending operation within the pipeline.
type InvalidPlanError struct {
	Index  int
	Reason string
}

// Error returns a textual representation of this InvalidPlanError
func (e InvalidPlanError) Error() string {
	return fmt.Sprintf("operation %d: %s", e.Index, e.Reason)
}

// TypeError occurs when an operation's parameters are incompatible with a column's dtype
type TypeError struct {
	Detail string
}

// Error returns a textual representation of this TypeError
func (e TypeError) Error() string {
	return e.Detail
}

// SchemaMismatchError occurs when data does not conform to its declared schema
type SchemaMismatchError struct {
	Detail string
}

// Error returns a textual representation of this SchemaMismatchError
func (e SchemaMismatchError) Error() string {
	return e.Detail
}

// TimeoutError occurs when probing a source exceeds its deadline
type TimeoutError struct {
	Op string
}

// Error returns a textual representation of this TimeoutError
func (e TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out", e.Op)
}

// CancelledError occurs when an export is cancelled cooperatively
type CancelledError struct{}

// Error returns a textual representation of this CancelledError
func (e CancelledError) Error() string {
	return "export cancelled"
}

// ExecutionError occurs when evaluating a plan fails
type ExecutionError struct {
	Err error
}

// Error returns a textual representation of this ExecutionError
func (e ExecutionError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error
func (e ExecutionError) Unwrap() error { return e.Err }

// ExportError occurs when sinking a plan to an output file fails
type ExportError struct {
	Err error
}

// Error returns a textual representation of this ExportError
func (e ExportError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error
func (e ExportError) Unwrap() error { return e.Err }

// UnsupportedDtypeError occurs when a SQL driver type has no core dtype
// equivalent. It classifies as a TypeError.
type UnsupportedDtypeError struct {
	Column     string
	DriverType string
}

// Error returns a textual representation of this UnsupportedDtypeError
func (e UnsupportedDtypeError) Error() string {
	return fmt.Sprintf("column %s has unsupported driver type %s", e.Column, e.DriverType)
}

// Kind returns the error-kind token for an error, suitable as the first
// token of a user-visible message. Unrecognized errors classify as
// ExecutionError.
func Kind(err error) string {
	switch pkgerrors.Cause(err).(type) {
	case NoSourceError:
		return "NoSource"
	case IoError:
		return "IoError"
	case DecodeError:
		return "DecodeError"
	case UnsupportedFormatError:
		return "UnsupportedFormat"
	case UnsupportedVersionError:
		return "UnsupportedVersion"
	case InvalidPlanError:
		return "InvalidPlan"
	case TypeError, UnsupportedDtypeError:
		return "TypeError"
	case SchemaMismatchError:
		return "SchemaMismatch"
	case TimeoutError:
		return "Timeout"
	case CancelledError:
		return "Cancelled"
	case ExecutionError:
		return "ExecutionError"
	case ExportError:
		return "ExportError"
	default:
		return "ExecutionError"
	}
}

// Format renders an error as "<ErrorKind>: <detail>" for display
func Format(err error) string {
	return fmt.Sprintf("%s: %s", Kind(err), err.Error())
}
