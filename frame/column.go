package frame

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-dafr/dafr"
)

// Column is a typed array of values with a validity bitmap. Integer-backed
// dtypes (Int32, Int64, Date, Datetime) share int64 storage; Date stores
// days since the Unix epoch and Datetime microseconds since the Unix epoch.
type Column struct {
	name   string
	dtype  dafr.Dtype
	ints   []int64
	floats []float64
	strs   []string
	bools  []bool
	valid  []bool
}

// CreateColumn is a factory for an empty Column of the given dtype
func CreateColumn(name string, dtype dafr.Dtype) *Column {
	return &Column{name: name, dtype: dtype}
}

// Name returns the column name
func (c *Column) Name() string { return c.name }

// Dtype returns the column dtype
func (c *Column) Dtype() dafr.Dtype { return c.dtype }

// Len returns the number of cells in the column
func (c *Column) Len() int { return len(c.valid) }

// Rename changes the column name
func (c *Column) Rename(name string) { c.name = name }

// IsNull returns true iff the i-th cell is null
func (c *Column) IsNull(i int) bool { return !c.valid[i] }

// NullCount returns the number of null cells
func (c *Column) NullCount() int {
	n := 0
	for _, v := range c.valid {
		if !v {
			n++
		}
	}
	return n
}

// AppendNull appends a null cell
func (c *Column) AppendNull() {
	c.valid = append(c.valid, false)
	switch c.dtype {
	case dafr.Int32, dafr.Int64, dafr.Date, dafr.Datetime:
		c.ints = append(c.ints, 0)
	case dafr.Float32, dafr.Float64:
		c.floats = append(c.floats, 0)
	case dafr.String:
		c.strs = append(c.strs, "")
	case dafr.Boolean:
		c.bools = append(c.bools, false)
	}
}

// AppendInt64 appends an integer-backed cell (Int32, Int64, Date, Datetime)
func (c *Column) AppendInt64(v int64) {
	c.ints = append(c.ints, v)
	c.valid = append(c.valid, true)
}

// AppendFloat64 appends a float cell
func (c *Column) AppendFloat64(v float64) {
	c.floats = append(c.floats, v)
	c.valid = append(c.valid, true)
}

// AppendString appends a string cell
func (c *Column) AppendString(v string) {
	c.strs = append(c.strs, v)
	c.valid = append(c.valid, true)
}

// AppendBool appends a boolean cell
func (c *Column) AppendBool(v bool) {
	c.bools = append(c.bools, v)
	c.valid = append(c.valid, true)
}

// Int64At returns the raw integer backing of the i-th cell
func (c *Column) Int64At(i int) int64 { return c.ints[i] }

// Float64At returns the raw float backing of the i-th cell
func (c *Column) Float64At(i int) float64 { return c.floats[i] }

// StringAt returns the raw string backing of the i-th cell
func (c *Column) StringAt(i int) string { return c.strs[i] }

// BoolAt returns the raw boolean backing of the i-th cell
func (c *Column) BoolAt(i int) bool { return c.bools[i] }

// Float64Value returns the i-th cell viewed as a float64. The second return
// is false for null cells and for dtypes with no numeric view.
func (c *Column) Float64Value(i int) (float64, bool) {
	if !c.valid[i] {
		return 0, false
	}
	switch c.dtype {
	case dafr.Int32, dafr.Int64:
		return float64(c.ints[i]), true
	case dafr.Float32, dafr.Float64:
		return c.floats[i], true
	default:
		return 0, false
	}
}

// UnixSeconds returns the i-th temporal cell as seconds since the Unix epoch.
func (c *Column) UnixSeconds(i int) (float64, bool) {
	if !c.valid[i] {
		return 0, false
	}
	switch c.dtype {
	case dafr.Date:
		return float64(c.ints[i]) * 86400, true
	case dafr.Datetime:
		return float64(c.ints[i]) / 1e6, true
	default:
		return 0, false
	}
}

// AppendFromColumn appends the i-th cell of src, which must share this
// column's dtype.
func (c *Column) AppendFromColumn(src *Column, i int) {
	if !src.valid[i] {
		c.AppendNull()
		return
	}
	switch c.dtype {
	case dafr.Int32, dafr.Int64, dafr.Date, dafr.Datetime:
		c.AppendInt64(src.ints[i])
	case dafr.Float32, dafr.Float64:
		c.AppendFloat64(src.floats[i])
	case dafr.String:
		c.AppendString(src.strs[i])
	case dafr.Boolean:
		c.AppendBool(src.bools[i])
	default:
		c.AppendNull()
	}
}

// AppendParsed parses a textual cell according to the column dtype and
// appends it. Empty text appends null.
func (c *Column) AppendParsed(s string) error {
	if len(s) == 0 {
		c.AppendNull()
		return nil
	}
	switch c.dtype {
	case dafr.Int32:
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return err
		}
		c.AppendInt64(v)
	case dafr.Int64:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		c.AppendInt64(v)
	case dafr.Float32:
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return err
		}
		c.AppendFloat64(v)
	case dafr.Float64:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		c.AppendFloat64(v)
	case dafr.String:
		c.AppendString(s)
	case dafr.Boolean:
		v, err := strconv.ParseBool(strings.ToLower(s))
		if err != nil {
			return err
		}
		c.AppendBool(v)
	case dafr.Date:
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return err
		}
		c.AppendInt64(DaysFromTime(t))
	case dafr.Datetime:
		t, err := ParseDatetimeText(s)
		if err != nil {
			return err
		}
		c.AppendInt64(t.UnixMicro())
	case dafr.Null:
		c.AppendNull()
	default:
		return fmt.Errorf("cannot parse into column type %s", c.dtype)
	}
	return nil
}

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04:05"
)

var datetimeLayouts = []string{
	datetimeLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	dateLayout,
}

// ParseDatetimeText parses a textual instant, trying a fixed set of
// common layouts.
func ParseDatetimeText(s string) (time.Time, error) {
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as datetime", s)
}

// DaysFromTime converts an instant to days since the Unix epoch
func DaysFromTime(t time.Time) int64 {
	return t.UTC().Unix() / 86400
}

// Display renders the i-th cell for human consumption. Null renders as the
// empty string.
func (c *Column) Display(i int) string {
	if !c.valid[i] {
		return ""
	}
	switch c.dtype {
	case dafr.Int32, dafr.Int64:
		return strconv.FormatInt(c.ints[i], 10)
	case dafr.Float32:
		return strconv.FormatFloat(c.floats[i], 'f', -1, 32)
	case dafr.Float64:
		return strconv.FormatFloat(c.floats[i], 'f', -1, 64)
	case dafr.String:
		return c.strs[i]
	case dafr.Boolean:
		return strconv.FormatBool(c.bools[i])
	case dafr.Date:
		return time.Unix(c.ints[i]*86400, 0).UTC().Format(dateLayout)
	case dafr.Datetime:
		return time.UnixMicro(c.ints[i]).UTC().Format(datetimeLayout)
	default:
		return ""
	}
}

// Compare orders the non-null cells i and j, returning a negative, zero or
// positive result. Both cells must be non-null.
func (c *Column) Compare(i, j int) int {
	switch c.dtype {
	case dafr.Int32, dafr.Int64, dafr.Date, dafr.Datetime:
		switch {
		case c.ints[i] < c.ints[j]:
			return -1
		case c.ints[i] > c.ints[j]:
			return 1
		}
		return 0
	case dafr.Float32, dafr.Float64:
		switch {
		case c.floats[i] < c.floats[j]:
			return -1
		case c.floats[i] > c.floats[j]:
			return 1
		}
		return 0
	case dafr.String:
		return strings.Compare(c.strs[i], c.strs[j])
	case dafr.Boolean:
		switch {
		case !c.bools[i] && c.bools[j]:
			return -1
		case c.bools[i] && !c.bools[j]:
			return 1
		}
		return 0
	default:
		return 0
	}
}
