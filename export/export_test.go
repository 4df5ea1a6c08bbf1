package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-dafr/dafr"
	"github.com/go-dafr/dafr/datasource"
	"github.com/go-dafr/dafr/datasource/parquetfile"
	"github.com/go-dafr/dafr/engine"
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

func buildPlan(t *testing.T, d *datasource.Descriptor, ops []operations.Operation) *engine.Plan {
	t.Helper()
	plan, err := engine.Build(d, ops)
	require.Nil(t, err)
	return plan
}

const peopleCSV = "age,city\n30,NY\n,LA\n25,NY\n"

func TestExportCSV(t *testing.T) {
	plan := buildPlan(t, csvSource(t, peopleCSV), nil)
	out := filepath.Join(t.TempDir(), "out.csv")
	runner := NewRunner(0, nil, nil)
	rows, err := runner.Run(context.Background(), plan, out, CSV, nil)
	require.Nil(t, err)
	require.Equal(t, int64(3), rows)

	data, err := os.ReadFile(out)
	require.Nil(t, err)
	// LF newlines, header row, nulls as empty fields
	require.Equal(t, "age,city\n30,NY\n,LA\n25,NY\n", string(data))
}

func TestExportCSVQuoting(t *testing.T) {
	plan := buildPlan(t, csvSource(t, "v\n\"a,b\"\n"), nil)
	out := filepath.Join(t.TempDir(), "out.csv")
	rows, err := NewRunner(0, nil, nil).Run(context.Background(), plan, out, CSV, nil)
	require.Nil(t, err)
	require.Equal(t, int64(1), rows)
	data, err := os.ReadFile(out)
	require.Nil(t, err)
	require.Equal(t, "v\n\"a,b\"\n", string(data))
}

func TestExportRowCountMatchesPlan(t *testing.T) {
	d := csvSource(t, peopleCSV)
	ops := []operations.Operation{
		{Type: operations.Filter, Column: "city", Filter: operations.Eq, Value: "NY"},
	}
	plan := buildPlan(t, d, ops)
	want, err := plan.NumRows(context.Background())
	require.Nil(t, err)

	out := filepath.Join(t.TempDir(), "out.csv")
	rows, err := NewRunner(0, nil, nil).Run(context.Background(), plan, out, CSV, nil)
	require.Nil(t, err)
	require.Equal(t, want, rows)
}

func TestExportParquetRoundTrip(t *testing.T) {
	d := csvSource(t, peopleCSV)
	ops := []operations.Operation{
		{Type: operations.Sort, Column: "age", Descending: true},
		{Type: operations.Limit, N: 1},
	}
	plan := buildPlan(t, d, ops)
	out := filepath.Join(t.TempDir(), "out.pq")
	rows, err := NewRunner(0, nil, nil).Run(context.Background(), plan, out, Parquet, nil)
	require.Nil(t, err)
	require.Equal(t, int64(1), rows)

	// the exported file opens as a fresh source with the same dtypes
	reopened, err := datasource.FromPath(out)
	require.Nil(t, err)
	schema, err := parquetfile.Adapter{}.ProbeSchema(reopened)
	require.Nil(t, err)
	require.True(t, schema.Equals(dafr.CreateSchema(
		dafr.Column{Name: "age", Dtype: dafr.Int64},
		dafr.Column{Name: "city", Dtype: dafr.String},
	)))

	replan, err := engine.Build(reopened, nil)
	require.Nil(t, err)
	total, err := replan.NumRows(context.Background())
	require.Nil(t, err)
	require.Equal(t, int64(1), total)
}

func TestProgressAbortDeletesPartialFile(t *testing.T) {
	plan := buildPlan(t, csvSource(t, peopleCSV), nil)
	out := filepath.Join(t.TempDir(), "out.csv")
	_, err := NewRunner(0, nil, nil).Run(context.Background(), plan, out, CSV, func(int64) bool {
		return false
	})
	require.NotNil(t, err)
	require.Equal(t, "Cancelled", errors.Kind(err))
	_, statErr := os.Stat(out)
	require.True(t, os.IsNotExist(statErr))
}

func TestCancelledContextDeletesPartialFile(t *testing.T) {
	plan := buildPlan(t, csvSource(t, peopleCSV), nil)
	out := filepath.Join(t.TempDir(), "out.csv")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRunner(0, nil, nil).Run(ctx, plan, out, CSV, nil)
	require.NotNil(t, err)
	require.Equal(t, "Cancelled", errors.Kind(err))
	_, statErr := os.Stat(out)
	require.True(t, os.IsNotExist(statErr))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("csv")
	require.Nil(t, err)
	require.Equal(t, CSV, f)
	f, err = ParseFormat("Parquet")
	require.Nil(t, err)
	require.Equal(t, Parquet, f)
	_, err = ParseFormat("xml")
	require.NotNil(t, err)
}
