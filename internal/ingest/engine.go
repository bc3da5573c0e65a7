// Package ingest runs report files through the pipeline: read, verify,
// canonicalize, validate, ensure the table and sync.
package ingest

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/reportsync/internal/canon"
	"github.com/sells-group/reportsync/internal/grid"
	"github.com/sells-group/reportsync/internal/report"
	"github.com/sells-group/reportsync/internal/resilience"
	"github.com/sells-group/reportsync/internal/store"
	"github.com/sells-group/reportsync/internal/tablesync"
)

// Status is the result class of one ingestion.
type Status string

const (
	StatusRunning  Status = "running"
	StatusSynced   Status = "synced"
	StatusMismatch Status = "mismatch" // file is not the expected report; nothing loaded
	StatusRejected Status = "rejected" // strict mode and at least one row failed coercion
	StatusFailed   Status = "failed"
)

// Outcome describes what happened to one file.
type Outcome struct {
	Report   string        `json:"report"`
	File     string        `json:"file"`
	Status   Status        `json:"status"`
	Rows     int           `json:"rows"`
	Rejects  int           `json:"rejects"`
	Skipped  int           `json:"skipped"`
	Deleted  int64         `json:"deleted"`
	Inserted int64         `json:"inserted"`
	Elapsed  time.Duration `json:"elapsed"`

	err error
}

// Err is nil for synced files and otherwise the reason the file was not loaded.
// Mismatches match report.ErrSignatureMismatch; strict rejects match canon.ErrStrictRejects.
func (o *Outcome) Err() error {
	return o.err
}

// Options configures an Engine.
type Options struct {
	Strict   bool   // abort a file on the first coercion reject
	Encoding string // default encoding of delimited files when a report does not set one
	TempDir  string // zip extraction directory when a report does not set one

	ChunkSize    int // key tuples per DELETE; 0 uses tablesync.DefaultChunkSize
	SyncAttempts int // tries of a sync that fails on a busy store; 0 uses the retry default
}

// Job is one file to ingest as one report type.
type Job struct {
	Report string `json:"report"`
	File   string `json:"file"`
}

// Engine ingests files into one store. The store is owned by the caller.
type Engine struct {
	st      store.Store
	catalog *report.Catalog
	log     *Log
	sync    *tablesync.Engine
	opts    Options
}

// NewEngine creates an ingestion engine. log may be nil to skip the ingest log.
func NewEngine(st store.Store, catalog *report.Catalog, log *Log, opts Options) *Engine {
	return &Engine{
		st:      st,
		catalog: catalog,
		log:     log,
		sync:    tablesync.NewEngine(st).WithChunkSize(opts.ChunkSize),
		opts:    opts,
	}
}

// Ingest runs one file through the pipeline. A mismatch or a strict reject is
// reported in the Outcome with a nil error; read, schema and sync failures return
// both a failed Outcome and the error.
func (e *Engine) Ingest(ctx context.Context, reportID, path string) (*Outcome, error) {
	def, err := e.catalog.Get(reportID)
	if err != nil {
		return &Outcome{Report: reportID, File: path, Status: StatusFailed, err: err}, err
	}

	log := zap.L().With(
		zap.String("component", "ingest"),
		zap.String("report", def.ID),
		zap.String("subsystem", def.Subsystem.String()),
		zap.String("file", path),
	)

	var logID string
	if e.log != nil {
		logID, err = e.log.Start(ctx, def.ID, path)
		if err != nil {
			return &Outcome{Report: def.ID, File: path, Status: StatusFailed, err: err}, err
		}
	}

	start := time.Now()
	out := e.run(ctx, def, path)
	out.Elapsed = time.Since(start)

	fields := []zap.Field{
		zap.String("status", string(out.Status)),
		zap.Int("rows", out.Rows),
		zap.Int("rejects", out.Rejects),
		zap.Int("skipped", out.Skipped),
		zap.Duration("elapsed", out.Elapsed),
	}
	switch out.Status {
	case StatusSynced:
		log.Info("ingest complete", append(fields, zap.Int64("deleted", out.Deleted), zap.Int64("inserted", out.Inserted))...)
	case StatusMismatch, StatusRejected:
		log.Warn("file not loaded", append(fields, zap.Error(out.err))...)
	default:
		log.Error("ingest failed", append(fields, zap.Error(out.err))...)
	}

	if e.log != nil {
		var logErr error
		if out.Status == StatusFailed {
			logErr = e.log.Fail(ctx, logID, out.err.Error())
		} else {
			logErr = e.log.Complete(ctx, logID, out)
		}
		if logErr != nil {
			log.Error("failed to record ingest outcome", zap.Error(logErr))
		}
	}

	if out.Status == StatusFailed {
		return out, out.err
	}
	return out, nil
}

func (e *Engine) run(ctx context.Context, def report.Definition, path string) *Outcome {
	out := &Outcome{Report: def.ID, File: path}
	fail := func(status Status, err error) *Outcome {
		out.Status = status
		out.err = err
		return out
	}

	opts := def.Read
	if opts.Encoding == "" {
		opts.Encoding = e.opts.Encoding
	}
	if opts.TempDir == "" {
		opts.TempDir = e.opts.TempDir
	}
	res, err := grid.ReadFile(ctx, path, opts)
	if err != nil {
		return fail(StatusFailed, eris.Wrapf(err, "ingest: read %s", path))
	}
	out.Skipped = res.Skipped

	if err := report.Check(res.Grid, def.Signature); err != nil {
		return fail(StatusMismatch, err)
	}

	rs, err := canon.Apply(res.Grid, def.Rule, canon.Options{Report: def.ID, Strict: e.opts.Strict})
	if err != nil {
		if eris.Is(err, canon.ErrStrictRejects) {
			return fail(StatusRejected, err)
		}
		return fail(StatusFailed, err)
	}
	rs.Skipped = res.Skipped
	out.Rows = rs.Len()
	out.Rejects = len(rs.Rejects)

	if err := e.catalog.Tables().EnsureCreated(ctx, e.st, def.Table.Name); err != nil {
		return fail(StatusFailed, err)
	}

	// A sync runs in one transaction, so a busy store leaves nothing behind and the
	// whole sync can run again.
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = e.opts.SyncAttempts
	retry.OnRetry = resilience.RetryLogger("ingest", "sync "+def.ID)
	var synced *tablesync.Result
	err = resilience.Do(ctx, retry, func(ctx context.Context) error {
		var err error
		synced, err = e.sync.Sync(ctx, rs, def.Table, def.Policy)
		return err
	})
	if err != nil {
		return fail(StatusFailed, err)
	}
	out.Deleted = synced.Deleted
	out.Inserted = synced.Inserted
	out.Status = StatusSynced
	return out
}

// Run ingests jobs one at a time. Jobs are reordered so that dimension tables load
// before the fact tables that reference them; a failed job is recorded and the run
// continues. The returned error is only set when the run itself cannot proceed.
func (e *Engine) Run(ctx context.Context, jobs []Job) ([]*Outcome, error) {
	log := zap.L().With(zap.String("component", "ingest.run"))

	ordered, err := e.order(jobs)
	if err != nil {
		return nil, err
	}
	log.Info("selected files", zap.Int("count", len(ordered)))

	var outcomes []*Outcome
	var synced, notLoaded, failed int
	for _, job := range ordered {
		select {
		case <-ctx.Done():
			return outcomes, ctx.Err()
		default:
		}

		out, _ := e.Ingest(ctx, job.Report, job.File)
		outcomes = append(outcomes, out)
		switch out.Status {
		case StatusSynced:
			synced++
		case StatusFailed:
			failed++
		default:
			notLoaded++
		}
	}

	log.Info("ingest run complete",
		zap.Int("synced", synced),
		zap.Int("not_loaded", notLoaded),
		zap.Int("failed", failed),
	)
	return outcomes, nil
}

// order sorts jobs by the dependency rank of their tables. Unknown reports keep
// their relative position at the end and fail when ingested.
func (e *Engine) order(jobs []Job) ([]Job, error) {
	var (
		known   []report.Definition
		byID    = map[string][]Job{}
		unknown []Job
	)
	for _, j := range jobs {
		def, err := e.catalog.Get(j.Report)
		if err != nil {
			unknown = append(unknown, j)
			continue
		}
		if _, seen := byID[def.ID]; !seen {
			known = append(known, def)
		}
		byID[def.ID] = append(byID[def.ID], j)
	}

	sorted, err := e.catalog.Ordered(known)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: order jobs")
	}
	out := make([]Job, 0, len(jobs))
	for _, def := range sorted {
		out = append(out, byID[def.ID]...)
	}
	return append(out, unknown...), nil
}
