package xlsx

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/go-dafr/dafr"
	"github.com/go-dafr/dafr/datasource"
	"github.com/go-dafr/dafr/frame"
)

func writeWorkbook(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "book.xlsx")
	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	cells := [][]interface{}{
		{"age", "city"},
		{30, "NY"},
		{nil, "LA"},
		{25, "NY"},
	}
	for r, row := range cells {
		for c, v := range row {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.Nil(t, err)
			require.Nil(t, wb.SetCellValue(sheet, cell, v))
		}
	}
	require.Nil(t, wb.SaveAs(path))
	require.Nil(t, wb.Close())
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

func TestOpenMaterializesSidecar(t *testing.T) {
	path := writeWorkbook(t)
	d, err := datasource.FromPath(path)
	require.Nil(t, err)

	scan, err := Adapter{}.Open(d)
	require.Nil(t, err)
	fr := collect(t, scan)
	require.Equal(t, 3, fr.NumRows())
	require.Equal(t, []string{"age", "city"}, fr.Schema().ColumnNames())

	age, err := fr.Column("age")
	require.Nil(t, err)
	require.Equal(t, dafr.Int64, age.Dtype())
	require.True(t, age.IsNull(1))

	// the sidecar is cached next to the workbook
	_, err = os.Stat(path + CacheSuffix)
	require.Nil(t, err)
}

func TestReopenUsesSidecar(t *testing.T) {
	path := writeWorkbook(t)
	d, err := datasource.FromPath(path)
	require.Nil(t, err)

	_, err = Adapter{}.ProbeSchema(d)
	require.Nil(t, err)
	first, err := os.Stat(path + CacheSuffix)
	require.Nil(t, err)

	// a second open leaves the sidecar untouched
	scan, err := Adapter{}.Open(d)
	require.Nil(t, err)
	collect(t, scan)
	second, err := os.Stat(path + CacheSuffix)
	require.Nil(t, err)
	require.Equal(t, first.ModTime(), second.ModTime())
}
