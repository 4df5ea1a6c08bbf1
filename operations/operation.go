// Package operations defines the user-intent operation model: a tagged
// value type with structural equality, a stable display grammar, schema
// validation, facade-input parsing and the canonical binary encoding.
package operations

import (
	"fmt"
	"strings"

	"github.com/go-dafr/dafr"
)

// Type tags the variant of an Operation
type Type uint8

const (
	// Filter keeps rows where a predicate holds
	Filter Type = iota
	// Sort stably orders rows by one column, nulls last
	Sort
	// DropColumn removes one column
	DropColumn
	// RenameColumn renames one column in place
	RenameColumn
	// SelectColumns projects to the given columns in the given order
	SelectColumns
	// Limit takes the first n rows of the current order
	Limit
	// FillNull replaces nulls in one column
	FillNull
	// CastColumn converts one column to a target dtype
	CastColumn
	// ParseDatetime parses a string column into Datetime
	ParseDatetime
)

// FilterOp is a filter predicate
type FilterOp uint8

const (
	// Eq keeps rows equal to the value
	Eq FilterOp = iota
	// Neq keeps rows not equal to the value
	Neq
	// Gt keeps rows greater than the value
	Gt
	// Gte keeps rows greater than or equal to the value
	Gte
	// Lt keeps rows less than the value
	Lt
	// Lte keeps rows less than or equal to the value
	Lte
	// Contains keeps string rows containing the value
	Contains
	// IsNull keeps null rows
	IsNull
	// IsNotNull keeps non-null rows
	IsNotNull
)

// NeedsValue returns true if this predicate requires a value input
func (op FilterOp) NeedsValue() bool {
	return op != IsNull && op != IsNotNull
}

// String returns the display form of a predicate
func (op FilterOp) String() string {
	switch op {
	case Eq:
		return "="
	case Neq:
		return "≠"
	case Gt:
		return ">"
	case Gte:
		return "≥"
	case Lt:
		return "<"
	case Lte:
		return "≤"
	case Contains:
		return "contains"
	case IsNull:
		return "is null"
	case IsNotNull:
		return "is not null"
	default:
		return fmt.Sprintf("FilterOp(%d)", uint8(op))
	}
}

// FillStrategy selects how FillNull replaces nulls
type FillStrategy uint8

const (
	// Forward fills nulls with the previous non-null value
	Forward FillStrategy = iota
	// Backward fills nulls with the next non-null value
	Backward
	// WithValue fills nulls with a literal value
	WithValue
	// Mean fills nulls with the column mean
	Mean
	// Min fills nulls with the column minimum
	Min
	// Max fills nulls with the column maximum
	Max
)

// NeedsValue returns true if this strategy requires a value input
func (s FillStrategy) NeedsValue() bool {
	return s == WithValue
}

// String returns the display form of a strategy
func (s FillStrategy) String() string {
	switch s {
	case Forward:
		return "Forward Fill"
	case Backward:
		return "Backward Fill"
	case WithValue:
		return "With Value"
	case Mean:
		return "Mean"
	case Min:
		return "Min"
	case Max:
		return "Max"
	default:
		return fmt.Sprintf("FillStrategy(%d)", uint8(s))
	}
}

// Operation is a single user intent: a tagged variant carrying its
// parameters. Operations are pure values compared structurally; the engine
// folds them into a lazy plan, the codec persists them.
type Operation struct {
	Type Type

	// Filter, Sort, DropColumn, FillNull, CastColumn, ParseDatetime
	Column string
	// Filter
	Filter FilterOp
	Value  string
	// Sort
	Descending bool
	// RenameColumn
	From, To string
	// SelectColumns
	Columns []string
	// Limit
	N uint32
	// FillNull
	Strategy  FillStrategy
	FillValue string
	// CastColumn
	TargetDtype dafr.Dtype
	// ParseDatetime, strftime-style
	Format string
}

// Equals reports structural equality: same tag and equal parameters
func (o Operation) Equals(other Operation) bool {
	if o.Type != other.Type || o.Column != other.Column || o.Filter != other.Filter ||
		o.Value != other.Value || o.Descending != other.Descending ||
		o.From != other.From || o.To != other.To || o.N != other.N ||
		o.Strategy != other.Strategy || o.FillValue != other.FillValue ||
		o.TargetDtype != other.TargetDtype || o.Format != other.Format {
		return false
	}
	if len(o.Columns) != len(other.Columns) {
		return false
	}
	for i := range o.Columns {
		if o.Columns[i] != other.Columns[i] {
			return false
		}
	}
	return true
}

// String returns the canonical human-readable description, stable across
// sessions.
func (o Operation) String() string {
	switch o.Type {
	case Filter:
		if o.Filter.NeedsValue() {
			return fmt.Sprintf("Filter: %s %s %s", o.Column, o.Filter, o.Value)
		}
		return fmt.Sprintf("Filter: %s %s", o.Column, o.Filter)
	case Sort:
		dir := "ASC"
		if o.Descending {
			dir = "DESC"
		}
		return fmt.Sprintf("Sort: %s %s", o.Column, dir)
	case DropColumn:
		return fmt.Sprintf("Drop: %s", o.Column)
	case RenameColumn:
		return fmt.Sprintf("Rename: %s → %s", o.From, o.To)
	case SelectColumns:
		return fmt.Sprintf("Select: %s", strings.Join(o.Columns, ", "))
	case Limit:
		return fmt.Sprintf("Limit: %d", o.N)
	case FillNull:
		return fmt.Sprintf("FillNull: %s (%s)", o.Column, o.Strategy)
	case CastColumn:
		return fmt.Sprintf("Cast: %s → %s", o.Column, o.TargetDtype)
	case ParseDatetime:
		return fmt.Sprintf("ParseDatetime: %s (%s)", o.Column, o.Format)
	default:
		return fmt.Sprintf("Operation(%d)", uint8(o.Type))
	}
}
