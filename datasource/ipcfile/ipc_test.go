package ipcfile

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/go-dafr/dafr"
	"github.com/go-dafr/dafr/datasource"
	"github.com/go-dafr/dafr/frame"
)

func writeIPC(t *testing.T) string {
	t.Helper()
	alloc := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "age", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "city", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)

	b := array.NewRecordBuilder(alloc, schema)
	defer b.Release()
	b.Field(0).(*array.Int64Builder).AppendValues([]int64{30, 0, 25}, []bool{true, false, true})
	b.Field(1).(*array.StringBuilder).AppendValues([]string{"NY", "LA", "NY"}, nil)
	rec := b.NewRecord()
	defer rec.Release()

	path := filepath.Join(t.TempDir(), "data.arrow")
	f, err := os.Create(path)
	require.Nil(t, err)
	w, err := ipc.NewFileWriter(f, ipc.WithSchema(schema), ipc.WithAllocator(alloc))
	require.Nil(t, err)
	require.Nil(t, w.Write(rec))
	require.Nil(t, w.Close())
	require.Nil(t, f.Close())
	return path
}

func TestScanIPCFile(t *testing.T) {
	path := writeIPC(t)
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

	require.Equal(t, 3, acc.NumRows())
	require.Equal(t, [][]string{{"30", "NY"}, {"", "LA"}, {"25", "NY"}}, acc.DisplayRows(0, 3))
}
