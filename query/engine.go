// Package query implements the public command surface of the engine. A
// dedicated worker goroutine owns the session and the preview cache;
// every command is posted to it and processed in submission order, so
// state transitions are totally ordered without locks. Long-running work
// (preview execution, export) runs on an execution pool and never blocks
// the command queue.
package query

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/go-dafr/dafr"
	"github.com/go-dafr/dafr/config"
	"github.com/go-dafr/dafr/datasource"
	"github.com/go-dafr/dafr/engine"
	"github.com/go-dafr/dafr/errors"
	"github.com/go-dafr/dafr/export"
	"github.com/go-dafr/dafr/operations"
	"github.com/go-dafr/dafr/preview"
	"github.com/go-dafr/dafr/session"
)

// FileDialogs is the external file-chooser collaborator
type FileDialogs interface {
	PickDataFile() (string, bool)
	PickSavePath(ext string) (string, bool)
}

// Engine is the query facade. All methods are safe to call from any
// goroutine; each is atomic with respect to session state.
type Engine struct {
	cfg     config.Config
	logger  log.Logger
	pool    *ants.Pool
	cache   *preview.Cache
	runner  *export.Runner
	dialogs FileDialogs

	cmds chan func()
	quit chan struct{}
	done chan struct{}

	// worker-owned; touched only from the worker goroutine
	sess         *session.Session
	sourceSchema dafr.Schema
}

// Option customizes an Engine
type Option func(*Engine)

// WithLogger installs a structured logger
func WithLogger(l log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithDialogs installs the file-chooser collaborator
func WithDialogs(d FileDialogs) Option {
	return func(e *Engine) { e.dialogs = d }
}

// New starts an Engine: the session worker plus an execution pool. reg
// may be nil to skip metric registration.
func New(cfg config.Config, reg prometheus.Registerer, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:    cfg,
		logger: log.NewNopLogger(),
		cmds:   make(chan func(), 64),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		sess:   session.CreateSession(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = config.Default().PoolSize
	}
	pool, err := ants.NewPool(cfg.PoolSize)
	if err != nil {
		return nil, err
	}
	e.pool = pool
	cache, err := preview.NewCache(cfg.CacheEntries, cfg.CacheRowBudget, reg)
	if err != nil {
		pool.Release()
		return nil, err
	}
	e.cache = cache
	e.runner = export.NewRunner(cfg.ExportRowGroupSize, e.logger, reg)
	go e.run()
	return e, nil
}

// run is the session worker loop
func (e *Engine) run() {
	defer close(e.done)
	for {
		select {
		case fn := <-e.cmds:
			fn()
		case <-e.quit:
			return
		}
	}
}

// Close stops the worker and releases the execution pool
func (e *Engine) Close() error {
	close(e.quit)
	<-e.done
	e.pool.Release()
	return nil
}

var errClosed = errors.ExecutionError{Err: fmt.Errorf("engine is closed")}

// do posts a command to the worker and waits for its reply
func do[T any](e *Engine, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	select {
	case e.cmds <- func() {
		v, err := fn()
		ch <- result{v, err}
	}:
	case <-e.quit:
		var zero T
		return zero, errClosed
	}
	select {
	case r := <-ch:
		return r.v, r.err
	case <-e.done:
		var zero T
		return zero, errClosed
	}
}

// postAsync enqueues a command without waiting for it
func (e *Engine) postAsync(fn func()) {
	select {
	case e.cmds <- fn:
	case <-e.quit:
	}
}

// OpenFile probes the format and schema of path and installs it as the
// session source with an empty pipeline. When the first preview finishes
// within the preview timeout, the message carries the row count.
func (e *Engine) OpenFile(path string) (string, error) {
	cols, err := do(e, func() (int, error) {
		desc, err := datasource.FromPath(path)
		if err != nil {
			return 0, err
		}
		schema, err := engine.ProbeSchemaTimeout(desc, e.cfg.ProbeTimeout)
		if err != nil {
			return 0, err
		}
		e.sess.Reset(desc)
		e.sourceSchema = schema
		e.cache.Purge()
		return schema.NumColumns(), nil
	})
	if err != nil {
		return "", err
	}
	level.Info(e.logger).Log("msg", "opened source", "path", path, "columns", cols)
	if res, computing, err := e.GetPreview(); err == nil && !computing {
		return fmt.Sprintf("Loaded %s rows × %s columns",
			humanize.Comma(res.TotalRows), humanize.Comma(int64(cols))), nil
	}
	return fmt.Sprintf("Loaded %s (%s columns); preview computing",
		path, humanize.Comma(int64(cols))), nil
}

// previewReply is the worker's answer to a preview request: either the
// cached result or the in-flight execution to attach to.
type previewReply struct {
	res *preview.Result
	ch  <-chan singleflight.Result
}

// GetPreview returns the preview for the current plan. It blocks up to
// the configured preview timeout; if execution is still running it
// returns computing=true and the caller may poll again.
func (e *Engine) GetPreview() (*preview.Result, bool, error) {
	reply, err := do(e, e.requestPreview)
	if err != nil {
		return nil, false, err
	}
	if reply.res != nil {
		return reply.res, false, nil
	}
	select {
	case r := <-reply.ch:
		if r.Err != nil {
			return nil, false, r.Err
		}
		return r.Val.(*preview.Result), false, nil
	case <-time.After(e.cfg.PreviewTimeout):
		return nil, true, nil
	}
}

// requestPreview runs on the worker: answer from cache or schedule a
// single-flight execution on the pool.
func (e *Engine) requestPreview() (previewReply, error) {
	if e.sess.Source == nil {
		return previewReply{}, errors.NoSourceError{}
	}
	hash := engine.Hash(e.sess.Source, e.sess.Ops)
	if res, ok := e.cache.Get(hash); ok {
		return previewReply{res: res}, nil
	}
	desc := e.sess.Source
	ops := append([]operations.Operation(nil), e.sess.Ops...)
	schema := e.sourceSchema
	limit := e.cfg.PreviewRows
	ch := e.cache.Execute(hash, func() (*preview.Result, error) {
		res, err := e.executePreview(desc, schema, ops, limit)
		if err != nil {
			return nil, err
		}
		// install from the worker so the cache stays worker-owned
		e.postAsync(func() { e.cache.Add(hash, res) })
		return res, nil
	})
	return previewReply{ch: ch}, nil
}

// executePreview runs the plan on the execution pool and blocks until the
// pool job completes.
func (e *Engine) executePreview(desc *datasource.Descriptor, schema dafr.Schema, ops []operations.Operation, limit int) (*preview.Result, error) {
	var (
		res  *preview.Result
		err  error
		done = make(chan struct{})
	)
	start := time.Now()
	submitErr := e.pool.Submit(func() {
		defer close(done)
		plan, buildErr := engine.BuildWithSchema(desc, schema, ops)
		if buildErr != nil {
			err = buildErr
			return
		}
		fr, total, convErrors, execErr := plan.CollectPreview(context.Background(), limit)
		if execErr != nil {
			err = execErr
			return
		}
		res = preview.BuildResult(fr, total, convErrors)
	})
	if submitErr != nil {
		return nil, errors.ExecutionError{Err: submitErr}
	}
	<-done
	if err != nil {
		return nil, err
	}
	level.Debug(e.logger).Log("msg", "preview computed", "rows", res.PreviewRows,
		"total", res.TotalRows, "took", time.Since(start))
	return res, nil
}

// AddOperation parses and validates collaborator input, appends it to the
// pipeline on success and returns its description. Failure leaves the
// session unchanged.
func (e *Engine) AddOperation(in operations.Input) (string, error) {
	return do(e, func() (string, error) {
		if e.sess.Source == nil {
			return "", errors.NoSourceError{}
		}
		op, err := operations.ParseInput(in)
		if err != nil {
			return "", errors.InvalidPlanError{Index: len(e.sess.Ops), Reason: err.Error()}
		}
		if _, err := operations.ValidateAll(e.sourceSchema, append(append([]operations.Operation(nil), e.sess.Ops...), op)); err != nil {
			return "", err
		}
		e.sess.Append(op)
		level.Debug(e.logger).Log("msg", "operation added", "op", op.String())
		return op.String(), nil
	})
}

// RemoveOperation splices out the operation at index. The remaining
// pipeline is re-validated; failure leaves the session unchanged.
func (e *Engine) RemoveOperation(index int) error {
	_, err := do(e, func() (struct{}, error) {
		if index < 0 || index >= len(e.sess.Ops) {
			return struct{}{}, errors.InvalidPlanError{Index: index, Reason: "no such operation"}
		}
		candidate := append([]operations.Operation(nil), e.sess.Ops[:index]...)
		candidate = append(candidate, e.sess.Ops[index+1:]...)
		if _, err := operations.ValidateAll(e.sourceSchema, candidate); err != nil {
			return struct{}{}, err
		}
		e.sess.Remove(index)
		return struct{}{}, nil
	})
	return err
}

// UndoOperation pops the last operation. It returns false when the
// pipeline is empty.
func (e *Engine) UndoOperation() bool {
	ok, _ := do(e, func() (bool, error) {
		_, ok := e.sess.Undo()
		return ok, nil
	})
	return ok
}

// RedoOperation reapplies the most recently undone operation,
// re-validating it first. It returns false when there is nothing to redo
// or validation fails.
func (e *Engine) RedoOperation() bool {
	ok, _ := do(e, func() (bool, error) {
		op, ok := e.sess.PeekRedo()
		if !ok {
			return false, nil
		}
		if _, err := operations.ValidateAll(e.sourceSchema, append(append([]operations.Operation(nil), e.sess.Ops...), op)); err != nil {
			return false, nil
		}
		e.sess.Redo()
		return true, nil
	})
	return ok
}

// ClearPipeline empties the pipeline and the undo history
func (e *Engine) ClearPipeline() {
	do(e, func() (struct{}, error) {
		e.sess.ClearPipeline()
		return struct{}{}, nil
	})
}

// GetOperations returns the pipeline's description strings in order
func (e *Engine) GetOperations() []string {
	descs, _ := do(e, func() ([]string, error) {
		return e.sess.Descriptions(), nil
	})
	return descs
}

// SaveState persists (source, ops, ui_hints) to path
func (e *Engine) SaveState(path string) (string, error) {
	return do(e, func() (string, error) {
		if err := session.Save(e.sess, path); err != nil {
			return "", err
		}
		return "State saved", nil
	})
}

// LoadState restores a persisted session, clearing history and cache
func (e *Engine) LoadState(path string) (string, error) {
	return do(e, func() (string, error) {
		loaded, err := session.Load(path)
		if err != nil {
			return "", err
		}
		schema, err := engine.ProbeSchemaTimeout(loaded.Source, e.cfg.ProbeTimeout)
		if err != nil {
			return "", err
		}
		if _, err := operations.ValidateAll(schema, loaded.Ops); err != nil {
			return "", err
		}
		loaded.ClearHistory()
		e.sess = loaded
		e.sourceSchema = schema
		e.cache.Purge()
		return "State loaded", nil
	})
}

// exportJob is the immutable snapshot an export runs against
type exportJob struct {
	desc   *datasource.Descriptor
	schema dafr.Schema
	ops    []operations.Operation
}

// ExportData re-builds the plan without a row cap and streams it to path.
// The context is the cooperative cancel token; progress may be nil.
func (e *Engine) ExportData(ctx context.Context, path, format string, progress export.Progress) (string, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return "", errors.ExportError{Err: err}
	}
	job, err := do(e, func() (exportJob, error) {
		if e.sess.Source == nil {
			return exportJob{}, errors.NoSourceError{}
		}
		return exportJob{
			desc:   e.sess.Source,
			schema: e.sourceSchema,
			ops:    append([]operations.Operation(nil), e.sess.Ops...),
		}, nil
	})
	if err != nil {
		return "", err
	}
	plan, err := engine.BuildWithSchema(job.desc, job.schema, job.ops)
	if err != nil {
		return "", err
	}
	var (
		rows    int64
		runErr  error
		runDone = make(chan struct{})
	)
	if submitErr := e.pool.Submit(func() {
		defer close(runDone)
		rows, runErr = e.runner.Run(ctx, plan, path, f, progress)
	}); submitErr != nil {
		return "", errors.ExecutionError{Err: submitErr}
	}
	<-runDone
	if runErr != nil {
		return "", runErr
	}
	level.Info(e.logger).Log("msg", "exported", "path", path, "rows", rows)
	return fmt.Sprintf("Exported to %s", path), nil
}

// Metadata describes the current source file
type Metadata struct {
	Path       string
	SourceType string
	Size       string
}

// GetFileMetadata reports the current source's path, type and size
func (e *Engine) GetFileMetadata() (Metadata, error) {
	return do(e, func() (Metadata, error) {
		if e.sess.Source == nil {
			return Metadata{}, errors.NoSourceError{}
		}
		info, err := os.Stat(e.sess.Source.Path)
		if err != nil {
			return Metadata{}, errors.IoError{Path: e.sess.Source.Path, Err: err}
		}
		return Metadata{
			Path:       e.sess.Source.Path,
			SourceType: e.sess.Source.Format.String(),
			Size:       humanize.Bytes(uint64(info.Size())),
		}, nil
	})
}

// SetUIHint records an opaque collaborator hint on the session
func (e *Engine) SetUIHint(key, value string) {
	do(e, func() (struct{}, error) {
		e.sess.UIHints[key] = value
		return struct{}{}, nil
	})
}

// PickDataFile delegates to the file-chooser collaborator
func (e *Engine) PickDataFile() (string, bool) {
	if e.dialogs == nil {
		return "", false
	}
	return e.dialogs.PickDataFile()
}

// PickSavePath delegates to the file-chooser collaborator
func (e *Engine) PickSavePath(ext string) (string, bool) {
	if e.dialogs == nil {
		return "", false
	}
	return e.dialogs.PickSavePath(ext)
}
