package operations

import (
	"fmt"
	"strconv"

	"github.com/go-dafr/dafr"
	"github.com/go-dafr/dafr/errors"
	"github.com/go-dafr/dafr/frame"
)

// Literal is a filter or fill value coerced to a column dtype. The engine
// coerces once at plan-build time, never per row.
type Literal struct {
	Dtype dafr.Dtype
	I     int64
	F     float64
	S     string
	B     bool
}

// CoerceLiteral parses a textual value as the given dtype. Date and
// datetime literals accept every layout of frame.ParseDatetimeText; a date
// literal keeps only the day.
func CoerceLiteral(value string, dt dafr.Dtype) (Literal, error) {
	lit := Literal{Dtype: dt}
	switch dt {
	case dafr.Int32, dafr.Int64:
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return lit, errors.TypeError{Detail: fmt.Sprintf("cannot coerce %q to %s", value, dt)}
		}
		lit.I = v
	case dafr.Float32, dafr.Float64:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return lit, errors.TypeError{Detail: fmt.Sprintf("cannot coerce %q to %s", value, dt)}
		}
		lit.F = v
	case dafr.Boolean:
		v, err := strconv.ParseBool(value)
		if err != nil {
			return lit, errors.TypeError{Detail: fmt.Sprintf("cannot coerce %q to %s", value, dt)}
		}
		lit.B = v
	case dafr.String:
		lit.S = value
	case dafr.Date:
		t, err := frame.ParseDatetimeText(value)
		if err != nil {
			return lit, errors.TypeError{Detail: fmt.Sprintf("cannot coerce %q to %s", value, dt)}
		}
		lit.I = frame.DaysFromTime(t)
	case dafr.Datetime:
		t, err := frame.ParseDatetimeText(value)
		if err != nil {
			return lit, errors.TypeError{Detail: fmt.Sprintf("cannot coerce %q to %s", value, dt)}
		}
		lit.I = t.UnixMicro()
	default:
		return lit, errors.TypeError{Detail: fmt.Sprintf("cannot coerce %q to %s", value, dt)}
	}
	return lit, nil
}

// Validate checks one operation against the schema it would apply to and
// computes the post-operation schema. The session accepts an operation only
// if validation succeeds, so a pipeline of accepted operations always
// builds.
func Validate(op Operation, schema dafr.Schema) (dafr.Schema, error) {
	switch op.Type {
	case Filter:
		dt, err := schema.Dtype(op.Column)
		if err != nil {
			return nil, err
		}
		switch op.Filter {
		case IsNull, IsNotNull:
			return schema, nil
		case Contains:
			if dt != dafr.String {
				return nil, errors.TypeError{Detail: fmt.Sprintf("contains requires a String column, %s is %s", op.Column, dt)}
			}
			return schema, nil
		case Gt, Gte, Lt, Lte:
			if !dt.Orderable() || dt == dafr.Boolean {
				return nil, errors.TypeError{Detail: fmt.Sprintf("%s is not ordered for comparison", dt)}
			}
		}
		if _, err := CoerceLiteral(op.Value, dt); err != nil {
			return nil, err
		}
		return schema, nil

	case Sort:
		dt, err := schema.Dtype(op.Column)
		if err != nil {
			return nil, err
		}
		if !dt.Orderable() {
			return nil, errors.TypeError{Detail: fmt.Sprintf("cannot sort by %s column %s", dt, op.Column)}
		}
		return schema, nil

	case DropColumn:
		if schema.NumColumns() <= 1 {
			return nil, fmt.Errorf("cannot drop all columns")
		}
		return schema.Drop(op.Column)

	case RenameColumn:
		return schema.Rename(op.From, op.To)

	case SelectColumns:
		if len(op.Columns) == 0 {
			return nil, fmt.Errorf("select requires at least one column")
		}
		seen := map[string]bool{}
		for _, name := range op.Columns {
			if seen[name] {
				return nil, fmt.Errorf("duplicate column %s in select", name)
			}
			seen[name] = true
		}
		return schema.Select(op.Columns)

	case Limit:
		if op.N < 1 {
			return nil, fmt.Errorf("limit must be at least 1")
		}
		return schema, nil

	case FillNull:
		dt, err := schema.Dtype(op.Column)
		if err != nil {
			return nil, err
		}
		switch op.Strategy {
		case Mean, Min, Max:
			if !dt.IsNumeric() {
				return nil, errors.TypeError{Detail: fmt.Sprintf("%s fill requires a numeric column, %s is %s", op.Strategy, op.Column, dt)}
			}
		case WithValue:
			if _, err := CoerceLiteral(op.FillValue, dt); err != nil {
				return nil, err
			}
		}
		return schema, nil

	case CastColumn:
		if _, err := schema.Dtype(op.Column); err != nil {
			return nil, err
		}
		if op.TargetDtype == dafr.Null {
			return nil, errors.TypeError{Detail: "cannot cast to Null"}
		}
		return schema.WithDtype(op.Column, op.TargetDtype)

	case ParseDatetime:
		dt, err := schema.Dtype(op.Column)
		if err != nil {
			return nil, err
		}
		if dt != dafr.String {
			return nil, errors.TypeError{Detail: fmt.Sprintf("parse datetime requires a String column, %s is %s", op.Column, dt)}
		}
		return schema.WithDtype(op.Column, dafr.Datetime)

	default:
		return nil, fmt.Errorf("unknown operation type %d", op.Type)
	}
}

// ValidateAll folds Validate over a pipeline, returning the final schema.
// A TypeError is returned as is; any other failure is wrapped as
// InvalidPlan with the offending operation's index.
func ValidateAll(schema dafr.Schema, ops []Operation) (dafr.Schema, error) {
	current := schema
	for i, op := range ops {
		next, err := Validate(op, current)
		if err != nil {
			if _, isType := err.(errors.TypeError); isType {
				return nil, err
			}
			return nil, errors.InvalidPlanError{Index: i, Reason: err.Error()}
		}
		current = next
	}
	return current, nil
}
