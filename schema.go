package dafr

import "fmt"

// Column pairs a column name with its Dtype
type Column struct {
	Name  string
	Dtype Dtype
}

// Schema is an ordered sequence of (name, dtype) pairs. Names are unique
// within a Schema and the ordering is user-visible.
type Schema []Column

// CreateSchema is a factory for Schemas
func CreateSchema(cols ...Column) Schema {
	return Schema(cols)
}

// NumColumns returns the number of columns in this Schema
func (s Schema) NumColumns() int {
	return len(s)
}

// ColumnNames returns the names in the schema, in order
func (s Schema) ColumnNames() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Dtypes returns the dtypes in the schema, in order
func (s Schema) Dtypes() []Dtype {
	types := make([]Dtype, len(s))
	for i, c := range s {
		types[i] = c.Dtype
	}
	return types
}

// HasColumn returns true iff the schema contains a column with the given name
func (s Schema) HasColumn(name string) bool {
	_, err := s.IndexOf(name)
	return err == nil
}

// IndexOf returns the position of the named column
func (s Schema) IndexOf(name string) (int, error) {
	for i, c := range s {
		if c.Name == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("schema does not contain column with name %s", name)
}

// Dtype returns the Dtype of the named column
func (s Schema) Dtype(name string) (Dtype, error) {
	i, err := s.IndexOf(name)
	if err != nil {
		return Null, err
	}
	return s[i].Dtype, nil
}

// Clone returns a copy of this Schema
func (s Schema) Clone() Schema {
	out := make(Schema, len(s))
	copy(out, s)
	return out
}

// Equals returns true iff both schemas contain the same columns in the
// same order with the same dtypes.
func (s Schema) Equals(other Schema) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Rename returns a copy of the schema with one column renamed in place.
func (s Schema) Rename(from, to string) (Schema, error) {
	i, err := s.IndexOf(from)
	if err != nil {
		return nil, err
	}
	if to != from && s.HasColumn(to) {
		return nil, fmt.Errorf("schema already contains column with name %s", to)
	}
	out := s.Clone()
	out[i].Name = to
	return out, nil
}

// Drop returns a copy of the schema without the named column.
func (s Schema) Drop(name string) (Schema, error) {
	i, err := s.IndexOf(name)
	if err != nil {
		return nil, err
	}
	out := make(Schema, 0, len(s)-1)
	out = append(out, s[:i]...)
	out = append(out, s[i+1:]...)
	return out, nil
}

// Select returns a schema projected to the given columns, in the given order.
func (s Schema) Select(names []string) (Schema, error) {
	out := make(Schema, 0, len(names))
	for _, name := range names {
		i, err := s.IndexOf(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s[i])
	}
	return out, nil
}

// WithDtype returns a copy of the schema with the named column's dtype replaced.
func (s Schema) WithDtype(name string, d Dtype) (Schema, error) {
	i, err := s.IndexOf(name)
	if err != nil {
		return nil, err
	}
	out := s.Clone()
	out[i].Dtype = d
	return out, nil
}
