package dafr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDtypeNamesRoundTrip(t *testing.T) {
	for _, dt := range AllDtypes() {
		parsed, err := ParseDtype(dt.String())
		require.Nil(t, err)
		require.Equal(t, dt, parsed)
	}
	_, err := ParseDtype("Decimal")
	require.NotNil(t, err)
}

func TestSchemaLookup(t *testing.T) {
	schema := CreateSchema(
		Column{Name: "age", Dtype: Int64},
		Column{Name: "city", Dtype: String},
	)
	require.Equal(t, 2, schema.NumColumns())
	require.Equal(t, []string{"age", "city"}, schema.ColumnNames())
	require.True(t, schema.HasColumn("age"))
	require.False(t, schema.HasColumn("missing"))

	dt, err := schema.Dtype("city")
	require.Nil(t, err)
	require.Equal(t, String, dt)

	_, err = schema.Dtype("missing")
	require.NotNil(t, err)
}

func TestSchemaRename(t *testing.T) {
	schema := CreateSchema(
		Column{Name: "a", Dtype: Int64},
		Column{Name: "b", Dtype: String},
	)
	renamed, err := schema.Rename("a", "x")
	require.Nil(t, err)
	require.Equal(t, []string{"x", "b"}, renamed.ColumnNames())
	// the original is untouched
	require.Equal(t, []string{"a", "b"}, schema.ColumnNames())

	_, err = schema.Rename("a", "b")
	require.NotNil(t, err)
	_, err = schema.Rename("missing", "c")
	require.NotNil(t, err)

	same, err := schema.Rename("a", "a")
	require.Nil(t, err)
	require.True(t, same.Equals(schema))
}

func TestSchemaDropAndSelect(t *testing.T) {
	schema := CreateSchema(
		Column{Name: "a", Dtype: Int64},
		Column{Name: "b", Dtype: String},
		Column{Name: "c", Dtype: Float64},
	)
	dropped, err := schema.Drop("b")
	require.Nil(t, err)
	require.Equal(t, []string{"a", "c"}, dropped.ColumnNames())

	selected, err := schema.Select([]string{"c", "a"})
	require.Nil(t, err)
	require.Equal(t, []string{"c", "a"}, selected.ColumnNames())
	require.Equal(t, Float64, selected[0].Dtype)

	_, err = schema.Select([]string{"missing"})
	require.NotNil(t, err)
}

func TestSchemaEqualsOrderSensitive(t *testing.T) {
	a := CreateSchema(Column{Name: "x", Dtype: Int64}, Column{Name: "y", Dtype: String})
	b := CreateSchema(Column{Name: "y", Dtype: String}, Column{Name: "x", Dtype: Int64})
	require.False(t, a.Equals(b))
	require.True(t, a.Equals(a.Clone()))
}
