package frame

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-dafr/dafr"
)

func testFrame(t *testing.T) *Frame {
	t.Helper()
	fr := CreateFrame(dafr.CreateSchema(
		dafr.Column{Name: "age", Dtype: dafr.Int64},
		dafr.Column{Name: "city", Dtype: dafr.String},
	))
	age, err := fr.Column("age")
	require.Nil(t, err)
	city, err := fr.Column("city")
	require.Nil(t, err)
	age.AppendInt64(30)
	city.AppendString("NY")
	age.AppendNull()
	city.AppendString("LA")
	age.AppendInt64(25)
	city.AppendString("NY")
	return fr
}

func TestFrameBasics(t *testing.T) {
	fr := testFrame(t)
	require.Equal(t, 3, fr.NumRows())
	require.Equal(t, 2, fr.NumColumns())

	rows := fr.DisplayRows(0, fr.NumRows())
	require.Equal(t, [][]string{{"30", "NY"}, {"", "LA"}, {"25", "NY"}}, rows)

	_, err := fr.Column("missing")
	require.NotNil(t, err)
}

func TestNumericBounds(t *testing.T) {
	fr := testFrame(t)
	min, max, nulls, has, err := fr.NumericBounds("age")
	require.Nil(t, err)
	require.True(t, has)
	require.Equal(t, float64(25), min)
	require.Equal(t, float64(30), max)
	require.Equal(t, 1, nulls)

	_, _, _, _, err = fr.NumericBounds("city")
	require.NotNil(t, err)
}

func TestNumericBoundsAllNull(t *testing.T) {
	fr := CreateFrame(dafr.CreateSchema(dafr.Column{Name: "v", Dtype: dafr.Float64}))
	col, _ := fr.Column("v")
	col.AppendNull()
	col.AppendNull()
	_, _, nulls, has, err := fr.NumericBounds("v")
	require.Nil(t, err)
	require.False(t, has)
	require.Equal(t, 2, nulls)
}

func TestHeadTakeFilter(t *testing.T) {
	fr := testFrame(t)
	require.Equal(t, 2, fr.Head(2).NumRows())
	require.Equal(t, 3, fr.Head(10).NumRows())

	taken := fr.TakeIndices([]int{2, 0})
	require.Equal(t, [][]string{{"25", "NY"}, {"30", "NY"}}, taken.DisplayRows(0, 2))

	filtered := fr.FilterMask([]bool{true, false, true})
	require.Equal(t, 2, filtered.NumRows())
}

func TestProjection(t *testing.T) {
	fr := testFrame(t)
	sel, err := fr.SelectColumns([]string{"city", "age"})
	require.Nil(t, err)
	require.Equal(t, []string{"city", "age"}, sel.Schema().ColumnNames())

	dropped, err := fr.DropColumn("age")
	require.Nil(t, err)
	require.Equal(t, []string{"city"}, dropped.Schema().ColumnNames())

	require.Nil(t, fr.RenameColumn("age", "years"))
	require.Equal(t, []string{"years", "city"}, fr.Schema().ColumnNames())
	require.NotNil(t, fr.RenameColumn("missing", "x"))
}

func TestAppendFrameSchemaMismatch(t *testing.T) {
	fr := testFrame(t)
	other := CreateFrame(dafr.CreateSchema(dafr.Column{Name: "age", Dtype: dafr.Int64}))
	require.NotNil(t, fr.AppendFrame(other))
}

func TestTemporalColumns(t *testing.T) {
	fr := CreateFrame(dafr.CreateSchema(
		dafr.Column{Name: "d", Dtype: dafr.Date},
		dafr.Column{Name: "ts", Dtype: dafr.Datetime},
	))
	d, _ := fr.Column("d")
	ts, _ := fr.Column("ts")
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	d.AppendInt64(DaysFromTime(day))
	ts.AppendInt64(day.UnixMicro())
	d.AppendNull()
	ts.AppendNull()

	require.Equal(t, "2024-03-01", d.Display(0))
	require.Equal(t, "2024-03-01 00:00:00", ts.Display(0))
	require.Equal(t, "", ts.Display(1))

	secs, valid, err := fr.ColumnDatetimeUnixSeconds("ts")
	require.Nil(t, err)
	require.True(t, valid[0])
	require.False(t, valid[1])
	require.Equal(t, float64(day.Unix()), secs[0])

	dsecs, _, err := fr.ColumnDatetimeUnixSeconds("d")
	require.Nil(t, err)
	require.Equal(t, float64(day.Unix()), dsecs[0])
}

func TestAppendParsed(t *testing.T) {
	col := CreateColumn("v", dafr.Int64)
	require.Nil(t, col.AppendParsed("42"))
	require.Nil(t, col.AppendParsed(""))
	require.NotNil(t, col.AppendParsed("abc"))
	require.Equal(t, 2, col.Len())
	require.True(t, col.IsNull(1))

	b := CreateColumn("b", dafr.Boolean)
	require.Nil(t, b.AppendParsed("True"))
	require.True(t, b.BoolAt(0))
}

func TestColumnCompare(t *testing.T) {
	col := CreateColumn("s", dafr.String)
	col.AppendString("apple")
	col.AppendString("banana")
	require.True(t, col.Compare(0, 1) < 0)
	require.True(t, col.Compare(1, 0) > 0)
	require.Equal(t, 0, col.Compare(0, 0))
}
