package dsv

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/go-dafr/dafr"
	"github.com/go-dafr/dafr/datasource"
	"github.com/go-dafr/dafr/frame"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.Nil(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func collect(t *testing.T, scan datasource.Scan) *frame.Frame {
	t.Helper()
	acc := frame.CreateFrame(scan.Schema())
	for {
		batch, err := scan.Next()
		if err == io.EOF {
			break
		}
		require.Nil(t, err)
		require.Nil(t, acc.AppendFrame(batch))
	}
	require.Nil(t, scan.Close())
	return acc
}

func TestCSVInferenceAndNulls(t *testing.T) {
	path := writeFile(t, "people.csv", "age,city\n30,NY\n,LA\n25,NY\n")
	d, err := datasource.FromPath(path)
	require.Nil(t, err)

	schema, err := Adapter{}.ProbeSchema(d)
	require.Nil(t, err)
	require.True(t, schema.Equals(dafr.CreateSchema(
		dafr.Column{Name: "age", Dtype: dafr.Int64},
		dafr.Column{Name: "city", Dtype: dafr.String},
	)))

	scan, err := Adapter{}.Open(d)
	require.Nil(t, err)
	fr := collect(t, scan)
	require.Equal(t, 3, fr.NumRows())
	require.Equal(t, [][]string{{"30", "NY"}, {"", "LA"}, {"25", "NY"}}, fr.DisplayRows(0, 3))

	age, err := fr.Column("age")
	require.Nil(t, err)
	require.True(t, age.IsNull(1))
}

func TestTSVDelimiter(t *testing.T) {
	path := writeFile(t, "data.tsv", "a\tb\n1\tx\n2\ty\n")
	d, err := datasource.FromPath(path)
	require.Nil(t, err)
	scan, err := Adapter{}.Open(d)
	require.Nil(t, err)
	fr := collect(t, scan)
	require.Equal(t, 2, fr.NumRows())
	require.Equal(t, []string{"a", "b"}, fr.Schema().ColumnNames())
}

func TestHeaderlessSyntheticNames(t *testing.T) {
	path := writeFile(t, "raw.csv", "1,x\n2,y\n")
	d, err := datasource.FromPath(path)
	require.Nil(t, err)
	d.Options.HasHeader = false
	scan, err := Adapter{}.Open(d)
	require.Nil(t, err)
	fr := collect(t, scan)
	require.Equal(t, []string{"column_1", "column_2"}, fr.Schema().ColumnNames())
	require.Equal(t, 2, fr.NumRows())
}

func TestSchemaOverrideSkipsInference(t *testing.T) {
	path := writeFile(t, "data.csv", "v\n1\n2\n")
	d, err := datasource.FromPath(path)
	require.Nil(t, err)
	d.SchemaOverride = dafr.CreateSchema(dafr.Column{Name: "v", Dtype: dafr.Float64})
	scan, err := Adapter{}.Open(d)
	require.Nil(t, err)
	fr := collect(t, scan)
	require.Equal(t, dafr.Float64, fr.Schema()[0].Dtype)
}

func TestEmptySource(t *testing.T) {
	path := writeFile(t, "empty.csv", "age,city\n")
	d, err := datasource.FromPath(path)
	require.Nil(t, err)
	scan, err := Adapter{}.Open(d)
	require.Nil(t, err)
	fr := collect(t, scan)
	require.Equal(t, 0, fr.NumRows())
	require.Equal(t, 2, fr.Schema().NumColumns())
}

func TestUnparseableBeyondInferenceBecomesNull(t *testing.T) {
	path := writeFile(t, "late.csv", "v\n1\n2\nnot-a-number\n")
	d, err := datasource.FromPath(path)
	require.Nil(t, err)
	d.Options.InferRows = 2
	scan, err := Adapter{}.Open(d)
	require.Nil(t, err)
	fr := collect(t, scan)
	require.Equal(t, 3, fr.NumRows())
	v, err := fr.Column("v")
	require.Nil(t, err)
	require.Equal(t, dafr.Int64, v.Dtype())
	require.True(t, v.IsNull(2))
}

func TestGzipInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.csv.gz")
	f, err := os.Create(path)
	require.Nil(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte("age,city\n30,NY\n25,LA\n"))
	require.Nil(t, err)
	require.Nil(t, gz.Close())
	require.Nil(t, f.Close())

	d, err := datasource.FromPath(path)
	require.Nil(t, err)
	scan, err := Adapter{}.Open(d)
	require.Nil(t, err)
	fr := collect(t, scan)
	require.Equal(t, 2, fr.NumRows())
	require.Equal(t, []string{"age", "city"}, fr.Schema().ColumnNames())
}
