package query

import (
	"fmt"

	"github.com/go-dafr/dafr/errors"
	"github.com/go-dafr/dafr/frame"
)

// PlotSeries is one numeric series extracted for plotting
type PlotSeries struct {
	Name string
	X    []float64
	Y    []float64
}

// PlotData is the numeric extract the plotting collaborator consumes
type PlotData struct {
	XIsDatetime bool
	Series      []PlotSeries
}

// HistogramSeries is one column's non-null numeric values
type HistogramSeries struct {
	Name   string
	Values []float64
}

// HistogramData is the histogram extract
type HistogramData struct {
	Series []HistogramSeries
}

// GetPlotData extracts x/y series from the materialized preview frame in
// one pass. Datetime x-axes convert to Unix seconds; rows where either
// selected column is null are dropped pairwise per series. Non-numeric y
// columns are skipped.
func (e *Engine) GetPlotData(xCol string, yCols []string) (PlotData, error) {
	fr, err := e.previewFrame()
	if err != nil {
		return PlotData{}, err
	}
	xc, err := fr.Column(xCol)
	if err != nil {
		return PlotData{}, err
	}
	var (
		xVals  []float64
		xValid []bool
	)
	data := PlotData{}
	if xc.Dtype().IsTemporal() {
		data.XIsDatetime = true
		xVals, xValid, err = fr.ColumnDatetimeUnixSeconds(xCol)
	} else {
		xVals, xValid, err = fr.ColumnF64(xCol)
	}
	if err != nil {
		return PlotData{}, err
	}
	for _, name := range yCols {
		yVals, yValid, err := fr.ColumnF64(name)
		if err != nil {
			continue
		}
		series := PlotSeries{Name: name}
		for i := range yVals {
			if !xValid[i] || !yValid[i] {
				continue
			}
			series.X = append(series.X, xVals[i])
			series.Y = append(series.Y, yVals[i])
		}
		if len(series.X) > 0 {
			data.Series = append(data.Series, series)
		}
	}
	return data, nil
}

// GetHistogramData extracts the non-null values of numeric columns from
// the materialized preview frame. Non-numeric columns are skipped.
func (e *Engine) GetHistogramData(columns []string) (HistogramData, error) {
	fr, err := e.previewFrame()
	if err != nil {
		return HistogramData{}, err
	}
	data := HistogramData{}
	for _, name := range columns {
		vals, valid, err := fr.ColumnF64(name)
		if err != nil {
			continue
		}
		series := HistogramSeries{Name: name}
		for i, v := range vals {
			if valid[i] {
				series.Values = append(series.Values, v)
			}
		}
		if len(series.Values) > 0 {
			data.Series = append(data.Series, series)
		}
	}
	return data, nil
}

// previewFrame returns the materialized frame of the current plan's
// preview, computing it if necessary.
func (e *Engine) previewFrame() (*frame.Frame, error) {
	res, computing, err := e.GetPreview()
	if err != nil {
		return nil, err
	}
	if computing {
		return nil, errors.ExecutionError{Err: fmt.Errorf("preview still computing")}
	}
	return res.Frame(), nil
}
