package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-dafr/dafr"
	"github.com/go-dafr/dafr/datasource"
	"github.com/go-dafr/dafr/errors"
	"github.com/go-dafr/dafr/operations"
)

func csvSource(t *testing.T, content string) *datasource.Descriptor {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.Nil(t, os.WriteFile(path, []byte(content), 0o644))
	d, err := datasource.FromPath(path)
	require.Nil(t, err)
	return d
}

const peopleCSV = "age,city\n30,NY\n,LA\n25,NY\n"

func TestFillNullWithValue(t *testing.T) {
	d := csvSource(t, peopleCSV)
	plan, err := Build(d, []operations.Operation{
		{Type: operations.FillNull, Column: "age", Strategy: operations.WithValue, FillValue: "0"},
	})
	require.Nil(t, err)

	fr, total, _, err := plan.CollectPreview(context.Background(), 1000)
	require.Nil(t, err)
	require.Equal(t, int64(3), total)
	require.Equal(t, [][]string{{"30", "NY"}, {"0", "LA"}, {"25", "NY"}}, fr.DisplayRows(0, 3))

	min, max, nulls, has, err := fr.NumericBounds("age")
	require.Nil(t, err)
	require.True(t, has)
	require.Equal(t, float64(0), min)
	require.Equal(t, float64(30), max)
	require.Equal(t, 0, nulls)
}

func TestFilterEquals(t *testing.T) {
	d := csvSource(t, peopleCSV)
	plan, err := Build(d, []operations.Operation{
		{Type: operations.Filter, Column: "city", Filter: operations.Eq, Value: "NY"},
	})
	require.Nil(t, err)
	fr, total, _, err := plan.CollectPreview(context.Background(), 1000)
	require.Nil(t, err)
	require.Equal(t, int64(2), total)
	require.Equal(t, [][]string{{"30", "NY"}, {"25", "NY"}}, fr.DisplayRows(0, 2))
}

func TestSortThenLimit(t *testing.T) {
	d := csvSource(t, peopleCSV)
	plan, err := Build(d, []operations.Operation{
		{Type: operations.Sort, Column: "age", Descending: true},
		{Type: operations.Limit, N: 1},
	})
	require.Nil(t, err)
	fr, total, _, err := plan.CollectPreview(context.Background(), 1000)
	require.Nil(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, [][]string{{"30", "NY"}}, fr.DisplayRows(0, 1))
}

func TestSortNullsLastBothDirections(t *testing.T) {
	d := csvSource(t, peopleCSV)
	for _, desc := range []bool{false, true} {
		plan, err := Build(d, []operations.Operation{
			{Type: operations.Sort, Column: "age", Descending: desc},
		})
		require.Nil(t, err)
		fr, _, _, err := plan.CollectPreview(context.Background(), 1000)
		require.Nil(t, err)
		age, err := fr.Column("age")
		require.Nil(t, err)
		require.True(t, age.IsNull(2), "nulls must sort last (descending=%v)", desc)
	}
}

func TestCastErrorsBecomeNull(t *testing.T) {
	d := csvSource(t, peopleCSV)
	plan, err := Build(d, []operations.Operation{
		{Type: operations.CastColumn, Column: "city", TargetDtype: dafr.Int64},
	})
	require.Nil(t, err)
	fr, _, convErrors, err := plan.CollectPreview(context.Background(), 1000)
	require.Nil(t, err)
	city, err := fr.Column("city")
	require.Nil(t, err)
	require.Equal(t, dafr.Int64, city.Dtype())
	// every NY/LA value fails coercion
	require.Equal(t, int64(3), convErrors["city"])
	require.Equal(t, 3, city.NullCount())
}

func TestLimitCapsDownstreamRowCounts(t *testing.T) {
	d := csvSource(t, peopleCSV)
	plan, err := Build(d, []operations.Operation{
		{Type: operations.Limit, N: 2},
		{Type: operations.Filter, Column: "city", Filter: operations.IsNotNull},
	})
	require.Nil(t, err)
	total, err := plan.NumRows(context.Background())
	require.Nil(t, err)
	require.True(t, total <= 2)
}

func TestBuildRejectsInvalidPipelines(t *testing.T) {
	d := csvSource(t, peopleCSV)
	_, err := Build(d, []operations.Operation{
		{Type: operations.DropColumn, Column: "city"},
		{Type: operations.Filter, Column: "city", Filter: operations.Eq, Value: "NY"},
	})
	require.NotNil(t, err)
	planErr, ok := err.(errors.InvalidPlanError)
	require.True(t, ok)
	require.Equal(t, 1, planErr.Index)
	require.Equal(t, "InvalidPlan", errors.Kind(err))
}

func TestForwardAndBackwardFill(t *testing.T) {
	// blank lines are skipped by the CSV reader, so nulls are written as
	// quoted empty fields
	d := csvSource(t, "v\n1\n\"\"\n3\n\"\"\n")
	plan, err := Build(d, []operations.Operation{
		{Type: operations.FillNull, Column: "v", Strategy: operations.Forward},
	})
	require.Nil(t, err)
	fr, _, _, err := plan.CollectPreview(context.Background(), 1000)
	require.Nil(t, err)
	v, _ := fr.Column("v")
	require.Equal(t, int64(1), v.Int64At(1))
	require.Equal(t, int64(3), v.Int64At(3))

	plan, err = Build(d, []operations.Operation{
		{Type: operations.FillNull, Column: "v", Strategy: operations.Backward},
	})
	require.Nil(t, err)
	fr, _, _, err = plan.CollectPreview(context.Background(), 1000)
	require.Nil(t, err)
	v, _ = fr.Column("v")
	require.Equal(t, int64(3), v.Int64At(1))
	// nothing after the trailing null
	require.True(t, v.IsNull(3))
}

func TestAggregateFill(t *testing.T) {
	d := csvSource(t, "v\n10\n\"\"\n20\n")
	for _, c := range []struct {
		strategy operations.FillStrategy
		want     int64
	}{
		{operations.Mean, 15},
		{operations.Min, 10},
		{operations.Max, 20},
	} {
		plan, err := Build(d, []operations.Operation{
			{Type: operations.FillNull, Column: "v", Strategy: c.strategy},
		})
		require.Nil(t, err)
		fr, _, _, err := plan.CollectPreview(context.Background(), 1000)
		require.Nil(t, err)
		v, _ := fr.Column("v")
		require.Equal(t, c.want, v.Int64At(1))
	}
}

func TestAggregateFillAllNullStaysNull(t *testing.T) {
	d := csvSource(t, "v,w\n,1\n,2\n")
	d.SchemaOverride = dafr.CreateSchema(
		dafr.Column{Name: "v", Dtype: dafr.Float64},
		dafr.Column{Name: "w", Dtype: dafr.Int64},
	)
	plan, err := Build(d, []operations.Operation{
		{Type: operations.FillNull, Column: "v", Strategy: operations.Mean},
	})
	require.Nil(t, err)
	fr, _, _, err := plan.CollectPreview(context.Background(), 1000)
	require.Nil(t, err)
	v, _ := fr.Column("v")
	require.Equal(t, 2, v.NullCount())
}

func TestParseDatetimeStage(t *testing.T) {
	d := csvSource(t, "ts,v\n2024-01-02,1\nnot-a-date,2\n")
	d.SchemaOverride = dafr.CreateSchema(
		dafr.Column{Name: "ts", Dtype: dafr.String},
		dafr.Column{Name: "v", Dtype: dafr.Int64},
	)
	plan, err := Build(d, []operations.Operation{
		{Type: operations.ParseDatetime, Column: "ts", Format: "%Y-%m-%d"},
	})
	require.Nil(t, err)
	fr, _, convErrors, err := plan.CollectPreview(context.Background(), 1000)
	require.Nil(t, err)
	ts, _ := fr.Column("ts")
	require.Equal(t, dafr.Datetime, ts.Dtype())
	require.Equal(t, "2024-01-02 00:00:00", ts.Display(0))
	require.True(t, ts.IsNull(1))
	require.Equal(t, int64(1), convErrors["ts"])
}

func TestHashIsPureAndDiscriminating(t *testing.T) {
	d := csvSource(t, peopleCSV)
	ops := []operations.Operation{
		{Type: operations.Filter, Column: "city", Filter: operations.Eq, Value: "NY"},
	}
	require.Equal(t, Hash(d, ops), Hash(d, ops))

	other := []operations.Operation{
		{Type: operations.Filter, Column: "city", Filter: operations.Eq, Value: "LA"},
	}
	require.NotEqual(t, Hash(d, ops), Hash(d, other))
	require.NotEqual(t, Hash(d, ops), Hash(d, nil))

	// identity depends on the descriptor's value, not its address
	d2 := *d
	require.Equal(t, Hash(d, ops), Hash(&d2, ops))
}

func TestPreviewLimitCapsMaterialization(t *testing.T) {
	content := "v\n"
	for i := 0; i < 50; i++ {
		content += "1\n"
	}
	d := csvSource(t, content)
	plan, err := Build(d, nil)
	require.Nil(t, err)
	fr, total, _, err := plan.CollectPreview(context.Background(), 10)
	require.Nil(t, err)
	require.Equal(t, 10, fr.NumRows())
	require.Equal(t, int64(50), total)
}

func TestStrftimeLayout(t *testing.T) {
	require.Equal(t, "2006-01-02 15:04:05", strftimeLayout("%Y-%m-%d %H:%M:%S"))
	require.Equal(t, "02 Jan 2006", strftimeLayout("%d %b %Y"))
	require.Equal(t, "100%", strftimeLayout("100%%"))
}

func TestEmptySourcePreview(t *testing.T) {
	d := csvSource(t, "age,city\n")
	plan, err := Build(d, nil)
	require.Nil(t, err)
	fr, total, _, err := plan.CollectPreview(context.Background(), 1000)
	require.Nil(t, err)
	require.Equal(t, int64(0), total)
	require.Equal(t, 0, fr.NumRows())
	require.Equal(t, 2, fr.Schema().NumColumns())
}
