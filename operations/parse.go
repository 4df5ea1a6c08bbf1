package operations

import (
	"fmt"

	"github.com/go-dafr/dafr"
)

// Input is the wire form of an operation as collaborators submit it.
// Fields are interpreted according to OpType; unused fields are ignored.
type Input struct {
	OpType         string   `json:"op_type" mapstructure:"op_type"`
	Column         string   `json:"column" mapstructure:"column"`
	FilterOp       string   `json:"filter_op" mapstructure:"filter_op"`
	Value          string   `json:"value" mapstructure:"value"`
	Descending     bool     `json:"descending" mapstructure:"descending"`
	RenameFrom     string   `json:"rename_from" mapstructure:"rename_from"`
	RenameTo       string   `json:"rename_to" mapstructure:"rename_to"`
	Columns        []string `json:"columns" mapstructure:"columns"`
	Limit          int      `json:"limit" mapstructure:"limit"`
	FillStrategy   string   `json:"fill_strategy" mapstructure:"fill_strategy"`
	FillValue      string   `json:"fill_value" mapstructure:"fill_value"`
	CastDtype      string   `json:"cast_dtype" mapstructure:"cast_dtype"`
	DatetimeFormat string   `json:"datetime_format" mapstructure:"datetime_format"`
}

// ParseInput converts collaborator input into an Operation. It accepts
// both symbolic and word forms for filter predicates.
func ParseInput(in Input) (Operation, error) {
	switch in.OpType {
	case "filter":
		if in.Column == "" {
			return Operation{}, fmt.Errorf("missing column")
		}
		fop, err := parseFilterOp(in.FilterOp)
		if err != nil {
			return Operation{}, err
		}
		op := Operation{Type: Filter, Column: in.Column, Filter: fop}
		if fop.NeedsValue() {
			op.Value = in.Value
		}
		return op, nil

	case "sort":
		if in.Column == "" {
			return Operation{}, fmt.Errorf("missing column")
		}
		return Operation{Type: Sort, Column: in.Column, Descending: in.Descending}, nil

	case "drop_column":
		if in.Column == "" {
			return Operation{}, fmt.Errorf("missing column")
		}
		return Operation{Type: DropColumn, Column: in.Column}, nil

	case "rename_column":
		if in.RenameFrom == "" {
			return Operation{}, fmt.Errorf("missing rename_from")
		}
		if in.RenameTo == "" {
			return Operation{}, fmt.Errorf("missing rename_to")
		}
		return Operation{Type: RenameColumn, From: in.RenameFrom, To: in.RenameTo}, nil

	case "select_columns":
		if len(in.Columns) == 0 {
			return Operation{}, fmt.Errorf("missing columns")
		}
		return Operation{Type: SelectColumns, Columns: append([]string(nil), in.Columns...)}, nil

	case "limit":
		if in.Limit < 1 {
			return Operation{}, fmt.Errorf("limit must be a positive integer")
		}
		return Operation{Type: Limit, N: uint32(in.Limit)}, nil

	case "fill_null":
		if in.Column == "" {
			return Operation{}, fmt.Errorf("missing column")
		}
		strategy, err := parseFillStrategy(in.FillStrategy)
		if err != nil {
			return Operation{}, err
		}
		op := Operation{Type: FillNull, Column: in.Column, Strategy: strategy}
		if strategy.NeedsValue() {
			if in.FillValue == "" {
				return Operation{}, fmt.Errorf("fill_value is required for with_value")
			}
			op.FillValue = in.FillValue
		}
		return op, nil

	case "cast_column":
		if in.Column == "" {
			return Operation{}, fmt.Errorf("missing column")
		}
		dt, err := dafr.ParseDtype(in.CastDtype)
		if err != nil {
			return Operation{}, err
		}
		return Operation{Type: CastColumn, Column: in.Column, TargetDtype: dt}, nil

	case "parse_datetime":
		if in.Column == "" {
			return Operation{}, fmt.Errorf("missing column")
		}
		format := in.DatetimeFormat
		if format == "" {
			format = "%Y-%m-%d %H:%M:%S"
		}
		return Operation{Type: ParseDatetime, Column: in.Column, Format: format}, nil

	default:
		return Operation{}, fmt.Errorf("unknown operation type: %s", in.OpType)
	}
}

func parseFilterOp(s string) (FilterOp, error) {
	switch s {
	case "=", "eq":
		return Eq, nil
	case "!=", "neq":
		return Neq, nil
	case ">", "gt":
		return Gt, nil
	case ">=", "gte":
		return Gte, nil
	case "<", "lt":
		return Lt, nil
	case "<=", "lte":
		return Lte, nil
	case "contains":
		return Contains, nil
	case "is_null":
		return IsNull, nil
	case "is_not_null":
		return IsNotNull, nil
	default:
		return Eq, fmt.Errorf("unknown filter op: %s", s)
	}
}

func parseFillStrategy(s string) (FillStrategy, error) {
	switch s {
	case "forward":
		return Forward, nil
	case "backward":
		return Backward, nil
	case "with_value":
		return WithValue, nil
	case "mean":
		return Mean, nil
	case "min":
		return Min, nil
	case "max":
		return Max, nil
	default:
		return Forward, fmt.Errorf("unknown fill strategy: %s", s)
	}
}
