package datasource

import (
	"fmt"
	"strconv"

	"github.com/go-dafr/dafr"
	"github.com/go-dafr/dafr/frame"
)

// classify reports the narrowest dtype a single textual cell fits
func classify(s string) dafr.Dtype {
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return dafr.Int64
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return dafr.Float64
	}
	if s == "true" || s == "false" || s == "True" || s == "False" {
		return dafr.Boolean
	}
	if len(s) == 10 {
		if _, err := frame.ParseDatetimeText(s); err == nil {
			return dafr.Date
		}
	}
	if _, err := frame.ParseDatetimeText(s); err == nil {
		return dafr.Datetime
	}
	return dafr.String
}

// Widen unifies two observed dtypes to their widest common dtype
func Widen(a, b dafr.Dtype) dafr.Dtype {
	if a == b {
		return a
	}
	if a == dafr.Null {
		return b
	}
	if b == dafr.Null {
		return a
	}
	if a.IsNumeric() && b.IsNumeric() {
		return dafr.Float64
	}
	if a.IsTemporal() && b.IsTemporal() {
		return dafr.Datetime
	}
	return dafr.String
}

// InferSchema infers per-column dtypes from textual sample rows. Empty
// cells are treated as null and do not affect inference; a column with no
// non-empty samples infers as Null.
func InferSchema(names []string, samples [][]string) dafr.Schema {
	dtypes := make([]dafr.Dtype, len(names))
	for i := range dtypes {
		dtypes[i] = dafr.Null
	}
	for _, row := range samples {
		for i := 0; i < len(row) && i < len(names); i++ {
			if len(row[i]) == 0 {
				continue
			}
			dtypes[i] = Widen(dtypes[i], classify(row[i]))
		}
	}
	schema := make(dafr.Schema, len(names))
	for i, name := range names {
		schema[i] = dafr.Column{Name: name, Dtype: dtypes[i]}
	}
	return schema
}

// SyntheticNames produces column_1..column_n header names for headerless
// text sources.
func SyntheticNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("column_%d", i+1)
	}
	return names
}
