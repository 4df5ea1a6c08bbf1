package operations

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-dafr/dafr"
	"github.com/go-dafr/dafr/errors"
)

func baseSchema() dafr.Schema {
	return dafr.CreateSchema(
		dafr.Column{Name: "age", Dtype: dafr.Int64},
		dafr.Column{Name: "city", Dtype: dafr.String},
		dafr.Column{Name: "score", Dtype: dafr.Float64},
	)
}

func TestValidateFilter(t *testing.T) {
	schema := baseSchema()

	out, err := Validate(Operation{Type: Filter, Column: "age", Filter: Gt, Value: "5"}, schema)
	require.Nil(t, err)
	require.True(t, out.Equals(schema))

	// value must coerce to the column dtype
	_, err = Validate(Operation{Type: Filter, Column: "age", Filter: Eq, Value: "NY"}, schema)
	require.NotNil(t, err)
	require.Equal(t, "TypeError", errors.Kind(err))

	// contains requires a string column
	_, err = Validate(Operation{Type: Filter, Column: "age", Filter: Contains, Value: "1"}, schema)
	require.NotNil(t, err)

	_, err = Validate(Operation{Type: Filter, Column: "missing", Filter: Eq, Value: "x"}, schema)
	require.NotNil(t, err)

	// null predicates take no value and work on any column
	_, err = Validate(Operation{Type: Filter, Column: "age", Filter: IsNull}, schema)
	require.Nil(t, err)
}

func TestValidateProjections(t *testing.T) {
	schema := baseSchema()

	out, err := Validate(Operation{Type: DropColumn, Column: "city"}, schema)
	require.Nil(t, err)
	require.Equal(t, []string{"age", "score"}, out.ColumnNames())

	one := dafr.CreateSchema(dafr.Column{Name: "only", Dtype: dafr.Int64})
	_, err = Validate(Operation{Type: DropColumn, Column: "only"}, one)
	require.NotNil(t, err)

	out, err = Validate(Operation{Type: RenameColumn, From: "age", To: "years"}, schema)
	require.Nil(t, err)
	require.Equal(t, []string{"years", "city", "score"}, out.ColumnNames())

	_, err = Validate(Operation{Type: RenameColumn, From: "age", To: "city"}, schema)
	require.NotNil(t, err)

	out, err = Validate(Operation{Type: SelectColumns, Columns: []string{"score", "age"}}, schema)
	require.Nil(t, err)
	require.Equal(t, []string{"score", "age"}, out.ColumnNames())

	_, err = Validate(Operation{Type: SelectColumns, Columns: []string{"score", "score"}}, schema)
	require.NotNil(t, err)
	_, err = Validate(Operation{Type: SelectColumns, Columns: nil}, schema)
	require.NotNil(t, err)
}

func TestValidateLimit(t *testing.T) {
	_, err := Validate(Operation{Type: Limit, N: 0}, baseSchema())
	require.NotNil(t, err)
	_, err = Validate(Operation{Type: Limit, N: 1}, baseSchema())
	require.Nil(t, err)
}

func TestValidateFillNull(t *testing.T) {
	schema := baseSchema()

	_, err := Validate(Operation{Type: FillNull, Column: "score", Strategy: Mean}, schema)
	require.Nil(t, err)

	// mean on a non-numeric column is a type error
	_, err = Validate(Operation{Type: FillNull, Column: "city", Strategy: Mean}, schema)
	require.NotNil(t, err)
	require.Equal(t, "TypeError", errors.Kind(err))

	_, err = Validate(Operation{Type: FillNull, Column: "city", Strategy: Forward}, schema)
	require.Nil(t, err)

	_, err = Validate(Operation{Type: FillNull, Column: "age", Strategy: WithValue, FillValue: "oops"}, schema)
	require.NotNil(t, err)
}

func TestValidateCastAndParseDatetime(t *testing.T) {
	schema := baseSchema()

	out, err := Validate(Operation{Type: CastColumn, Column: "city", TargetDtype: dafr.Int64}, schema)
	require.Nil(t, err)
	dt, _ := out.Dtype("city")
	require.Equal(t, dafr.Int64, dt)

	_, err = Validate(Operation{Type: CastColumn, Column: "city", TargetDtype: dafr.Null}, schema)
	require.NotNil(t, err)

	out, err = Validate(Operation{Type: ParseDatetime, Column: "city", Format: "%Y-%m-%d"}, schema)
	require.Nil(t, err)
	dt, _ = out.Dtype("city")
	require.Equal(t, dafr.Datetime, dt)

	_, err = Validate(Operation{Type: ParseDatetime, Column: "age", Format: "%Y"}, schema)
	require.NotNil(t, err)
}

func TestValidateAllIndexesFailure(t *testing.T) {
	schema := baseSchema()
	ops := []Operation{
		{Type: DropColumn, Column: "city"},
		// city is gone by now
		{Type: Filter, Column: "city", Filter: Eq, Value: "NY"},
	}
	_, err := ValidateAll(schema, ops)
	require.NotNil(t, err)
	planErr, ok := err.(errors.InvalidPlanError)
	require.True(t, ok)
	require.Equal(t, 1, planErr.Index)

	out, err := ValidateAll(schema, ops[:1])
	require.Nil(t, err)
	require.Equal(t, 2, out.NumColumns())
}

func TestCoerceLiteral(t *testing.T) {
	lit, err := CoerceLiteral("42", dafr.Int64)
	require.Nil(t, err)
	require.Equal(t, int64(42), lit.I)

	lit, err = CoerceLiteral("2024-01-02", dafr.Date)
	require.Nil(t, err)
	require.Equal(t, int64(19724), lit.I)

	_, err = CoerceLiteral("x", dafr.Float64)
	require.NotNil(t, err)
	_, err = CoerceLiteral("x", dafr.Null)
	require.NotNil(t, err)
}
