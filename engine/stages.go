package engine

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/atomic"

	"github.com/go-dafr/dafr"
	"github.com/go-dafr/dafr/frame"
	"github.com/go-dafr/dafr/operations"
)

// stageFor wraps src in the execution stage for one operation. inSchema is
// the schema flowing into the stage; the operation has already validated
// against it.
func stageFor(op operations.Operation, inSchema dafr.Schema, src batchIter, state *runState) (batchIter, error) {
	switch op.Type {
	case operations.Filter:
		var lit operations.Literal
		if op.Filter.NeedsValue() {
			dt, err := inSchema.Dtype(op.Column)
			if err != nil {
				return nil, err
			}
			if lit, err = operations.CoerceLiteral(op.Value, dt); err != nil {
				return nil, err
			}
		}
		return &mapIter{src: src, fn: func(fr *frame.Frame) (*frame.Frame, error) {
			col, err := fr.Column(op.Column)
			if err != nil {
				return nil, err
			}
			mask := make([]bool, col.Len())
			for i := range mask {
				mask[i] = matchCell(col, i, op.Filter, lit)
			}
			return fr.FilterMask(mask), nil
		}}, nil

	case operations.Sort:
		return &blockIter{src: src, transform: func(fr *frame.Frame) (*frame.Frame, error) {
			return sortFrame(fr, op.Column, op.Descending)
		}}, nil

	case operations.DropColumn:
		return &mapIter{src: src, fn: func(fr *frame.Frame) (*frame.Frame, error) {
			return fr.DropColumn(op.Column)
		}}, nil

	case operations.RenameColumn:
		return &mapIter{src: src, fn: func(fr *frame.Frame) (*frame.Frame, error) {
			if err := fr.RenameColumn(op.From, op.To); err != nil {
				return nil, err
			}
			return fr, nil
		}}, nil

	case operations.SelectColumns:
		return &mapIter{src: src, fn: func(fr *frame.Frame) (*frame.Frame, error) {
			return fr.SelectColumns(op.Columns)
		}}, nil

	case operations.Limit:
		return &limitIter{src: src, remaining: int(op.N)}, nil

	case operations.FillNull:
		return fillStage(op, inSchema, src)

	case operations.CastColumn:
		counter := state.counter(op.Column)
		return &mapIter{src: src, fn: func(fr *frame.Frame) (*frame.Frame, error) {
			i, err := fr.Schema().IndexOf(op.Column)
			if err != nil {
				return nil, err
			}
			fr.ReplaceColumn(i, castColumn(fr.ColumnAt(i), op.TargetDtype, counter))
			return fr, nil
		}}, nil

	case operations.ParseDatetime:
		layout := strftimeLayout(op.Format)
		counter := state.counter(op.Column)
		return &mapIter{src: src, fn: func(fr *frame.Frame) (*frame.Frame, error) {
			i, err := fr.Schema().IndexOf(op.Column)
			if err != nil {
				return nil, err
			}
			fr.ReplaceColumn(i, parseDatetimeColumn(fr.ColumnAt(i), layout, counter))
			return fr, nil
		}}, nil

	default:
		return src, nil
	}
}

// matchCell evaluates a filter predicate for one cell. Null cells match
// only is_null; comparisons against null are false.
func matchCell(col *frame.Column, i int, pred operations.FilterOp, lit operations.Literal) bool {
	if col.IsNull(i) {
		return pred == operations.IsNull
	}
	switch pred {
	case operations.IsNull:
		return false
	case operations.IsNotNull:
		return true
	case operations.Contains:
		return strings.Contains(col.StringAt(i), lit.S)
	}
	cmp := compareCell(col, i, lit)
	switch pred {
	case operations.Eq:
		return cmp == 0
	case operations.Neq:
		return cmp != 0
	case operations.Gt:
		return cmp > 0
	case operations.Gte:
		return cmp >= 0
	case operations.Lt:
		return cmp < 0
	case operations.Lte:
		return cmp <= 0
	}
	return false
}

func compareCell(col *frame.Column, i int, lit operations.Literal) int {
	switch col.Dtype() {
	case dafr.Int32, dafr.Int64, dafr.Date, dafr.Datetime:
		v := col.Int64At(i)
		switch {
		case v < lit.I:
			return -1
		case v > lit.I:
			return 1
		}
		return 0
	case dafr.Float32, dafr.Float64:
		v := col.Float64At(i)
		switch {
		case v < lit.F:
			return -1
		case v > lit.F:
			return 1
		}
		return 0
	case dafr.String:
		return strings.Compare(col.StringAt(i), lit.S)
	case dafr.Boolean:
		v, w := col.BoolAt(i), lit.B
		switch {
		case v == w:
			return 0
		case !v:
			return -1
		}
		return 1
	default:
		return 0
	}
}

// sortFrame stably orders rows by one column. Nulls sort last regardless
// of direction.
func sortFrame(fr *frame.Frame, column string, descending bool) (*frame.Frame, error) {
	col, err := fr.Column(column)
	if err != nil {
		return nil, err
	}
	idx := make([]int, fr.NumRows())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		i, j := idx[a], idx[b]
		ni, nj := col.IsNull(i), col.IsNull(j)
		switch {
		case ni && nj:
			return false
		case ni:
			return false
		case nj:
			return true
		}
		cmp := col.Compare(i, j)
		if descending {
			cmp = -cmp
		}
		return cmp < 0
	})
	return fr.TakeIndices(idx), nil
}

// fillStage builds the stage for a FillNull operation. with_value and
// forward fills stream; backward and aggregate fills materialize.
func fillStage(op operations.Operation, inSchema dafr.Schema, src batchIter) (batchIter, error) {
	switch op.Strategy {
	case operations.WithValue:
		dt, err := inSchema.Dtype(op.Column)
		if err != nil {
			return nil, err
		}
		lit, err := operations.CoerceLiteral(op.FillValue, dt)
		if err != nil {
			return nil, err
		}
		return &mapIter{src: src, fn: func(fr *frame.Frame) (*frame.Frame, error) {
			return fillWithLiteral(fr, op.Column, lit)
		}}, nil

	case operations.Forward:
		return &forwardFillIter{src: src, column: op.Column}, nil

	case operations.Backward:
		return &blockIter{src: src, transform: func(fr *frame.Frame) (*frame.Frame, error) {
			return backwardFill(fr, op.Column)
		}}, nil

	default: // Mean, Min, Max
		return &blockIter{src: src, transform: func(fr *frame.Frame) (*frame.Frame, error) {
			return aggregateFill(fr, op.Column, op.Strategy)
		}}, nil
	}
}

func fillWithLiteral(fr *frame.Frame, column string, lit operations.Literal) (*frame.Frame, error) {
	i, err := fr.Schema().IndexOf(column)
	if err != nil {
		return nil, err
	}
	src := fr.ColumnAt(i)
	out := frame.CreateColumn(src.Name(), src.Dtype())
	for r := 0; r < src.Len(); r++ {
		if !src.IsNull(r) {
			out.AppendFromColumn(src, r)
			continue
		}
		appendLiteral(out, lit)
	}
	fr.ReplaceColumn(i, out)
	return fr, nil
}

func appendLiteral(col *frame.Column, lit operations.Literal) {
	switch col.Dtype() {
	case dafr.Int32, dafr.Int64, dafr.Date, dafr.Datetime:
		col.AppendInt64(lit.I)
	case dafr.Float32, dafr.Float64:
		col.AppendFloat64(lit.F)
	case dafr.String:
		col.AppendString(lit.S)
	case dafr.Boolean:
		col.AppendBool(lit.B)
	default:
		col.AppendNull()
	}
}

// forwardFillIter fills nulls with the previous non-null value, carrying
// the last seen value across batch boundaries.
type forwardFillIter struct {
	src    batchIter
	column string
	last   *frame.Column // one-cell carry, nil until a value is seen
}

func (f *forwardFillIter) next(ctx context.Context) (*frame.Frame, error) {
	fr, err := f.src.next(ctx)
	if err != nil {
		return nil, err
	}
	i, err := fr.Schema().IndexOf(f.column)
	if err != nil {
		return nil, err
	}
	src := fr.ColumnAt(i)
	out := frame.CreateColumn(src.Name(), src.Dtype())
	for r := 0; r < src.Len(); r++ {
		if !src.IsNull(r) {
			out.AppendFromColumn(src, r)
			f.last = frame.CreateColumn(src.Name(), src.Dtype())
			f.last.AppendFromColumn(src, r)
			continue
		}
		if f.last != nil {
			out.AppendFromColumn(f.last, 0)
		} else {
			out.AppendNull()
		}
	}
	fr.ReplaceColumn(i, out)
	return fr, nil
}

func (f *forwardFillIter) close() error { return f.src.close() }

func backwardFill(fr *frame.Frame, column string) (*frame.Frame, error) {
	i, err := fr.Schema().IndexOf(column)
	if err != nil {
		return nil, err
	}
	src := fr.ColumnAt(i)
	fillFrom := make([]int, src.Len())
	next := -1
	for r := src.Len() - 1; r >= 0; r-- {
		if !src.IsNull(r) {
			next = r
		}
		fillFrom[r] = next
	}
	out := frame.CreateColumn(src.Name(), src.Dtype())
	for r := 0; r < src.Len(); r++ {
		if !src.IsNull(r) {
			out.AppendFromColumn(src, r)
		} else if fillFrom[r] >= 0 {
			out.AppendFromColumn(src, fillFrom[r])
		} else {
			out.AppendNull()
		}
	}
	fr.ReplaceColumn(i, out)
	return fr, nil
}

func aggregateFill(fr *frame.Frame, column string, strategy operations.FillStrategy) (*frame.Frame, error) {
	i, err := fr.Schema().IndexOf(column)
	if err != nil {
		return nil, err
	}
	src := fr.ColumnAt(i)
	var sum, min, max float64
	var count int64
	for r := 0; r < src.Len(); r++ {
		v, ok := src.Float64Value(r)
		if !ok {
			continue
		}
		if count == 0 {
			min, max = v, v
		}
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		count++
	}
	if count == 0 {
		// nothing to fill from; the column stays null-only
		return fr, nil
	}
	var fill float64
	switch strategy {
	case operations.Mean:
		fill = sum / float64(count)
	case operations.Min:
		fill = min
	default:
		fill = max
	}
	out := frame.CreateColumn(src.Name(), src.Dtype())
	for r := 0; r < src.Len(); r++ {
		if !src.IsNull(r) {
			out.AppendFromColumn(src, r)
			continue
		}
		if src.Dtype().IsFloat() {
			out.AppendFloat64(fill)
		} else {
			out.AppendInt64(int64(fill))
		}
	}
	fr.ReplaceColumn(i, out)
	return fr, nil
}

// castColumn converts a column to the target dtype. Values that fail
// coercion become null and increment the conversion counter.
func castColumn(src *frame.Column, target dafr.Dtype, counter *atomic.Int64) *frame.Column {
	out := frame.CreateColumn(src.Name(), target)
	for r := 0; r < src.Len(); r++ {
		if src.IsNull(r) {
			out.AppendNull()
			continue
		}
		if !castCell(out, src, r, target) {
			out.AppendNull()
			counter.Inc()
		}
	}
	return out
}

func castCell(out, src *frame.Column, r int, target dafr.Dtype) bool {
	from := src.Dtype()
	switch target {
	case dafr.String:
		out.AppendString(src.Display(r))
		return true
	case dafr.Int32, dafr.Int64:
		switch {
		case from == dafr.Boolean:
			if src.BoolAt(r) {
				out.AppendInt64(1)
			} else {
				out.AppendInt64(0)
			}
			return true
		case from == dafr.String:
			v, err := strconv.ParseInt(strings.TrimSpace(src.StringAt(r)), 10, 64)
			if err != nil {
				return false
			}
			out.AppendInt64(v)
			return true
		case from.IsFloat():
			f := src.Float64At(r)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return false
			}
			out.AppendInt64(int64(f))
			return true
		default:
			out.AppendInt64(src.Int64At(r))
			return true
		}
	case dafr.Float32, dafr.Float64:
		switch {
		case from == dafr.Boolean:
			if src.BoolAt(r) {
				out.AppendFloat64(1)
			} else {
				out.AppendFloat64(0)
			}
			return true
		case from == dafr.String:
			v, err := strconv.ParseFloat(strings.TrimSpace(src.StringAt(r)), 64)
			if err != nil {
				return false
			}
			out.AppendFloat64(v)
			return true
		case from.IsFloat():
			out.AppendFloat64(src.Float64At(r))
			return true
		default:
			out.AppendFloat64(float64(src.Int64At(r)))
			return true
		}
	case dafr.Boolean:
		switch {
		case from == dafr.Boolean:
			out.AppendBool(src.BoolAt(r))
			return true
		case from == dafr.String:
			v, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(src.StringAt(r))))
			if err != nil {
				return false
			}
			out.AppendBool(v)
			return true
		case from.IsFloat():
			out.AppendBool(src.Float64At(r) != 0)
			return true
		case from.IsInteger():
			out.AppendBool(src.Int64At(r) != 0)
			return true
		default:
			return false
		}
	case dafr.Date:
		switch from {
		case dafr.Date:
			out.AppendInt64(src.Int64At(r))
			return true
		case dafr.Datetime:
			out.AppendInt64(src.Int64At(r) / 86400000000)
			return true
		case dafr.String:
			t, err := frame.ParseDatetimeText(src.StringAt(r))
			if err != nil {
				return false
			}
			out.AppendInt64(frame.DaysFromTime(t))
			return true
		case dafr.Int32, dafr.Int64:
			out.AppendInt64(src.Int64At(r))
			return true
		default:
			return false
		}
	case dafr.Datetime:
		switch from {
		case dafr.Datetime:
			out.AppendInt64(src.Int64At(r))
			return true
		case dafr.Date:
			out.AppendInt64(src.Int64At(r) * 86400000000)
			return true
		case dafr.String:
			t, err := frame.ParseDatetimeText(src.StringAt(r))
			if err != nil {
				return false
			}
			out.AppendInt64(t.UnixMicro())
			return true
		case dafr.Int32, dafr.Int64:
			out.AppendInt64(src.Int64At(r))
			return true
		default:
			return false
		}
	default:
		return false
	}
}

// parseDatetimeColumn parses a string column into Datetime using a Go
// layout derived from the user's strftime format. Failures become null.
func parseDatetimeColumn(src *frame.Column, layout string, counter *atomic.Int64) *frame.Column {
	out := frame.CreateColumn(src.Name(), dafr.Datetime)
	for r := 0; r < src.Len(); r++ {
		if src.IsNull(r) {
			out.AppendNull()
			continue
		}
		t, err := time.Parse(layout, src.StringAt(r))
		if err != nil {
			out.AppendNull()
			counter.Inc()
			continue
		}
		out.AppendInt64(t.UTC().UnixMicro())
	}
	return out
}
