// Package export sinks fully applied plans to CSV or Parquet files with
// streaming semantics: batches are pumped from the plan's collector into
// the sink without materializing the whole result. Aborts and failures
// delete the partial output file.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	multierror "github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/go-dafr/dafr/datasource/parquetfile"
	"github.com/go-dafr/dafr/engine"
	"github.com/go-dafr/dafr/errors"
	"github.com/go-dafr/dafr/frame"
)

// Format selects the output sink
type Format uint8

const (
	// CSV writes RFC 4180 text with a header row, LF newlines and empty
	// fields for nulls
	CSV Format = iota
	// Parquet writes snappy-compressed Parquet preserving core dtypes
	Parquet
)

// ParseFormat recognizes the collaborator's format strings
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "csv":
		return CSV, nil
	case "parquet", "pq":
		return Parquet, nil
	default:
		return CSV, fmt.Errorf("unknown export format: %s", s)
	}
}

// Progress is invoked after every written batch with the cumulative row
// count. Returning false aborts the export cleanly.
type Progress func(rowsWritten int64) bool

// Runner streams plans into output files
type Runner struct {
	logger       log.Logger
	rowGroupSize int64
	rowsWritten  prometheus.Counter
}

// NewRunner creates a Runner. reg may be nil to skip metric registration.
func NewRunner(rowGroupSize int64, logger log.Logger, reg prometheus.Registerer) *Runner {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Runner{
		logger:       logger,
		rowGroupSize: rowGroupSize,
		rowsWritten: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "dafr", Subsystem: "export", Name: "rows_written_total",
			Help: "Rows written across all exports.",
		}),
	}
}

// sink abstracts the per-format writer
type sink interface {
	writeFrame(fr *frame.Frame) error
	close() error
}

// Run re-executes the plan with no row cap and pumps its batches into the
// output file. On cancellation, abort or error the partial file is
// removed.
func (r *Runner) Run(ctx context.Context, plan *engine.Plan, path string, format Format, progress Progress) (int64, error) {
	stream, err := plan.Stream(ctx)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	f, err := os.Create(path)
	if err != nil {
		return 0, errors.IoError{Path: path, Err: err}
	}
	var out sink
	switch format {
	case Parquet:
		out = &parquetSink{w: parquetfile.NewWriter(f, plan.Schema(), r.rowGroupSize)}
	default:
		out = newCSVSink(f, plan.Schema().ColumnNames())
	}

	level.Debug(r.logger).Log("msg", "export started", "path", path)
	rows, err := r.pump(ctx, stream, out, progress)
	if err != nil {
		abortErr := r.abort(out, f, path)
		if abortErr != nil {
			level.Warn(r.logger).Log("msg", "export cleanup failed", "path", path, "err", abortErr)
		}
		return 0, err
	}
	if err := out.close(); err != nil {
		r.abort(nil, f, path)
		return 0, errors.IoError{Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return 0, errors.IoError{Path: path, Err: err}
	}
	level.Debug(r.logger).Log("msg", "export finished", "path", path, "rows", rows)
	return rows, nil
}

func (r *Runner) pump(ctx context.Context, stream *engine.BatchStream, out sink, progress Progress) (int64, error) {
	var rows int64
	for {
		if err := ctx.Err(); err != nil {
			return rows, errors.CancelledError{}
		}
		batch, err := stream.Next()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		if err := out.writeFrame(batch); err != nil {
			return rows, errors.IoError{Path: "export sink", Err: err}
		}
		rows += int64(batch.NumRows())
		r.rowsWritten.Add(float64(batch.NumRows()))
		if progress != nil && !progress(rows) {
			return rows, errors.CancelledError{}
		}
	}
}

// abort closes the sink and deletes the partial file, aggregating cleanup
// failures.
func (r *Runner) abort(out sink, f *os.File, path string) error {
	var errs *multierror.Error
	if out != nil {
		if err := out.close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if err := f.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := os.Remove(path); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

type csvSink struct {
	w           *csv.Writer
	header      []string
	wroteHeader bool
}

func newCSVSink(f *os.File, header []string) *csvSink {
	return &csvSink{w: csv.NewWriter(f), header: header}
}

func (s *csvSink) writeHeader() error {
	if s.wroteHeader {
		return nil
	}
	s.wroteHeader = true
	return s.w.Write(s.header)
}

func (s *csvSink) writeFrame(fr *frame.Frame) error {
	if err := s.writeHeader(); err != nil {
		return err
	}
	for _, row := range fr.DisplayRows(0, fr.NumRows()) {
		if err := s.w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func (s *csvSink) close() error {
	if err := s.writeHeader(); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

type parquetSink struct {
	w *parquetfile.Writer
}

func (s *parquetSink) writeFrame(fr *frame.Frame) error {
	return s.w.WriteFrame(fr)
}

func (s *parquetSink) close() error {
	return s.w.Close()
}
