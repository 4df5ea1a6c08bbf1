package engine

import (
	"context"
	"io"

	"go.uber.org/atomic"

	"github.com/go-dafr/dafr/datasource"
	"github.com/go-dafr/dafr/errors"
	"github.com/go-dafr/dafr/frame"
	"github.com/go-dafr/dafr/operations"
)

// blockEmitSize is the batch size re-emitted by materializing stages
const blockEmitSize = 1024

// runState carries per-execution counters. Conversion failures (casts and
// datetime parses) count per column.
type runState struct {
	convErrors map[string]*atomic.Int64
}

func newRunState() *runState {
	return &runState{convErrors: map[string]*atomic.Int64{}}
}

func (s *runState) counter(column string) *atomic.Int64 {
	c, ok := s.convErrors[column]
	if !ok {
		c = atomic.NewInt64(0)
		s.convErrors[column] = c
	}
	return c
}

func (s *runState) snapshot() map[string]int64 {
	out := make(map[string]int64, len(s.convErrors))
	for k, v := range s.convErrors {
		out[k] = v.Load()
	}
	return out
}

// batchIter is a pull stage in the execution pipeline. next returns io.EOF
// once the stage is exhausted.
type batchIter interface {
	next(ctx context.Context) (*frame.Frame, error)
	close() error
}

// Stream opens the plan for streaming consumption, as used by the export
// runner. The returned stream must be closed.
func (p *Plan) Stream(ctx context.Context) (*BatchStream, error) {
	it, _, err := p.compile()
	if err != nil {
		return nil, err
	}
	return &BatchStream{ctx: ctx, it: it}, nil
}

// BatchStream is the public face of a compiled pipeline
type BatchStream struct {
	ctx context.Context
	it  batchIter
}

// Next returns the next batch, or io.EOF when the plan is exhausted
func (s *BatchStream) Next() (*frame.Frame, error) {
	return s.it.next(s.ctx)
}

// Close releases the underlying scan
func (s *BatchStream) Close() error {
	return s.it.close()
}

// Collect fully materializes the plan
func (p *Plan) Collect(ctx context.Context) (*frame.Frame, error) {
	fr, _, _, err := p.collect(ctx, -1, false)
	return fr, err
}

// CollectPreview materializes at most limit rows, then keeps streaming to
// count the total row yield of the plan without materializing it. It
// returns the preview frame, the total row count and the per-column
// conversion error counters.
func (p *Plan) CollectPreview(ctx context.Context, limit int) (*frame.Frame, int64, map[string]int64, error) {
	return p.collect(ctx, limit, true)
}

// NumRows streams the plan and counts its rows
func (p *Plan) NumRows(ctx context.Context) (int64, error) {
	_, total, _, err := p.collect(ctx, 0, true)
	return total, err
}

func (p *Plan) collect(ctx context.Context, limit int, drain bool) (*frame.Frame, int64, map[string]int64, error) {
	it, state, err := p.compile()
	if err != nil {
		return nil, 0, nil, err
	}
	defer it.close()

	acc := frame.CreateFrame(p.schema)
	var total int64
	for {
		batch, err := it.next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, nil, err
		}
		total += int64(batch.NumRows())
		if limit < 0 || acc.NumRows() < limit {
			take := batch
			if limit >= 0 && acc.NumRows()+batch.NumRows() > limit {
				take = batch.Head(limit - acc.NumRows())
			}
			if err := acc.AppendFrame(take); err != nil {
				return nil, 0, nil, err
			}
		} else if !drain {
			break
		}
	}
	return acc, total, state.snapshot(), nil
}

// compile opens the scan and wraps it in one stage per operation
func (p *Plan) compile() (batchIter, *runState, error) {
	scan, err := OpenScan(p.desc)
	if err != nil {
		return nil, nil, err
	}
	state := newRunState()
	var it batchIter = &scanIter{scan: scan}
	schema := p.initial
	for i, op := range p.ops {
		next, err := operations.Validate(op, schema)
		if err != nil {
			scan.Close()
			return nil, nil, errors.InvalidPlanError{Index: i, Reason: err.Error()}
		}
		it, err = stageFor(op, schema, it, state)
		if err != nil {
			scan.Close()
			return nil, nil, err
		}
		schema = next
	}
	return it, state, nil
}

// scanIter adapts a datasource scan to the stage interface
type scanIter struct {
	scan datasource.Scan
}

func (s *scanIter) next(ctx context.Context) (*frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.CancelledError{}
	}
	fr, err := s.scan.Next()
	if err != nil && err != io.EOF {
		return nil, err
	}
	return fr, err
}

func (s *scanIter) close() error { return s.scan.Close() }

// mapIter applies a per-batch transform
type mapIter struct {
	src batchIter
	fn  func(*frame.Frame) (*frame.Frame, error)
}

func (m *mapIter) next(ctx context.Context) (*frame.Frame, error) {
	fr, err := m.src.next(ctx)
	if err != nil {
		return nil, err
	}
	return m.fn(fr)
}

func (m *mapIter) close() error { return m.src.close() }

// limitIter stops pulling from upstream once n rows have been emitted
type limitIter struct {
	src       batchIter
	remaining int
}

func (l *limitIter) next(ctx context.Context) (*frame.Frame, error) {
	if l.remaining <= 0 {
		return nil, io.EOF
	}
	fr, err := l.src.next(ctx)
	if err != nil {
		return nil, err
	}
	if fr.NumRows() > l.remaining {
		fr = fr.Head(l.remaining)
	}
	l.remaining -= fr.NumRows()
	return fr, nil
}

func (l *limitIter) close() error { return l.src.close() }

// blockIter drains its upstream into one frame, applies a whole-frame
// transform, then re-emits the result in batches. Sorts and
// whole-column fills require it.
type blockIter struct {
	src       batchIter
	transform func(*frame.Frame) (*frame.Frame, error)
	out       *frame.Frame
	offset    int
	ran       bool
}

func (b *blockIter) next(ctx context.Context) (*frame.Frame, error) {
	if !b.ran {
		acc := (*frame.Frame)(nil)
		for {
			fr, err := b.src.next(ctx)
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, err
			}
			if acc == nil {
				acc = frame.CreateFrame(fr.Schema())
			}
			if err := acc.AppendFrame(fr); err != nil {
				return nil, err
			}
		}
		if acc == nil {
			b.ran = true
			b.out = nil
			return nil, io.EOF
		}
		out, err := b.transform(acc)
		if err != nil {
			return nil, err
		}
		b.out = out
		b.ran = true
	}
	if b.out == nil || b.offset >= b.out.NumRows() {
		return nil, io.EOF
	}
	end := b.offset + blockEmitSize
	if end > b.out.NumRows() {
		end = b.out.NumRows()
	}
	idx := make([]int, 0, end-b.offset)
	for i := b.offset; i < end; i++ {
		idx = append(idx, i)
	}
	b.offset = end
	return b.out.TakeIndices(idx), nil
}

func (b *blockIter) close() error { return b.src.close() }
