// Package ingest normalizes stored marketplace exports into unified metric
// facts and keeps workspace snapshots current.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/marketlens/internal/fetcher"
	"github.com/sells-group/marketlens/internal/mapping"
	"github.com/sells-group/marketlens/internal/model"
	"github.com/sells-group/marketlens/internal/normalize"
	"github.com/sells-group/marketlens/internal/snapshot"
	"github.com/sells-group/marketlens/internal/store"
	"github.com/sells-group/marketlens/internal/validation"
)

// Hard-abort errors. No facts are written when one is returned.
var (
	ErrUploadNotFound = errors.New("upload not found")
	ErrUnknownContext = errors.New("unknown platform or report type")
	ErrNoMappingTable = mapping.ErrNoMappingTable
)

// DefaultBatchSize is the number of facts written per insert.
const DefaultBatchSize = 500

// SnapshotBuilder rebuilds a workspace's snapshots.
type SnapshotBuilder interface {
	Build(ctx context.Context, workspaceID string, date *time.Time) (*snapshot.Result, error)
}

// Config tunes the engine.
type Config struct {
	BatchSize   int
	Concurrency int
	StorageDir  string
}

// Engine runs normalization and snapshot rebuilds. Work on one workspace is
// serialized; different workspaces run in parallel.
type Engine struct {
	store     store.Store
	dict      mapping.Dictionary
	snapshots SnapshotBuilder
	cfg       Config
	locks     *workspaceLocks
	now       func() time.Time
}

// NewEngine creates an Engine. A nil dictionary uses mapping.Default and a
// nil builder uses snapshot.NewBuilder over st.
func NewEngine(st store.Store, dict mapping.Dictionary, snapshots SnapshotBuilder, cfg Config) *Engine {
	if dict == nil {
		dict = mapping.Default()
	}
	if snapshots == nil {
		snapshots = snapshot.NewBuilder(st, nil)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Engine{
		store:     st,
		dict:      dict,
		snapshots: snapshots,
		cfg:       cfg,
		locks:     newWorkspaceLocks(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RebuildSnapshots rebuilds snapshots under the workspace lock.
func (e *Engine) RebuildSnapshots(ctx context.Context, workspaceID string, date *time.Time) (*snapshot.Result, error) {
	unlock := e.locks.lock(workspaceID)
	defer unlock()
	return e.snapshots.Build(ctx, workspaceID, date)
}

// job is the resolved plan for one upload.
type job struct {
	upload  *model.Upload
	guess   model.FileContextGuess
	mapping *mapping.Mapping
	source  string
}

func (e *Engine) plan(ctx context.Context, uploadID string) (*job, error) {
	u, err := e.store.GetUpload(ctx, uploadID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, eris.Wrapf(ErrUploadNotFound, "ingest: upload %s", uploadID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: load upload %s", uploadID)
	}

	guess := u.Context
	if guess.Platform == "" {
		guess.Platform = u.Platform
	}
	if guess.ReportType == "" {
		guess.ReportType = u.ReportType
	}
	if !guess.IsKnown() {
		return nil, eris.Wrapf(ErrUnknownContext, "ingest: upload %s is %s/%s", uploadID, guess.Platform, guess.ReportType)
	}

	headers, err := fetcher.ReadHeaders(u.StoragePath, u.FileType)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read headers of upload %s", uploadID)
	}
	m, err := e.dict.Resolve(headers, guess.Platform, guess.ReportType)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: upload %s", uploadID)
	}

	source := model.SourceBlended
	if guess.ReportType == model.ReportTypeAds {
		source = model.SourceAds
	}
	return &job{upload: u, guess: guess, mapping: m, source: source}, nil
}

// NormalizeUpload streams an upload's rows into unified metric facts, records
// the validation result and rebuilds the workspace's snapshots. Re-running it
// replaces the facts of any earlier attempt.
func (e *Engine) NormalizeUpload(ctx context.Context, uploadID string) (*model.NormalizationSummary, error) {
	j, err := e.plan(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	u := j.upload
	log := zap.L().With(
		zap.String("upload_id", u.ID),
		zap.String("workspace_id", u.WorkspaceID),
		zap.String("platform", string(j.guess.Platform)),
		zap.String("report_type", string(j.guess.ReportType)),
		zap.String("granularity", string(j.guess.Granularity)),
	)

	unlock := e.locks.lock(u.WorkspaceID)
	defer unlock()

	deleted, err := e.store.DeleteFactsByUpload(ctx, u.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: clear previous facts of upload %s", u.ID)
	}
	if deleted > 0 {
		log.Info("ingest: replaced facts from previous attempt", zap.Int64("deleted", deleted))
	}
	if err := e.store.UpdateUpload(ctx, u.ID, model.UploadUpdate{Status: model.UploadStatusProcessing}); err != nil {
		return nil, eris.Wrapf(err, "ingest: mark upload %s processing", u.ID)
	}

	log.Info("ingest: normalizing")
	run := newRowProcessor(j, e.cfg.BatchSize)

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	rows, errc := fetcher.StreamRows(streamCtx, u.StoragePath, u.FileType)

	var flushErr error
	for row := range rows {
		if ctx.Err() != nil {
			break
		}
		if run.process(row) {
			if flushErr = e.flush(ctx, run); flushErr != nil {
				break
			}
		}
	}
	cancel()
	streamErr := <-errc

	switch {
	case ctx.Err() != nil:
		run.discard()
		e.finish(ctx, u.ID, run, model.UploadStatusPartial, ctx.Err())
		log.Warn("ingest: cancelled", zap.Int("stored_rows", run.stored))
		return run.summary(model.UploadStatusPartial), eris.Wrapf(ctx.Err(), "ingest: upload %s cancelled", u.ID)
	case flushErr != nil:
		e.finish(ctx, u.ID, run, model.UploadStatusFailed, flushErr)
		log.Error("ingest: batch insert failed", zap.Error(flushErr), zap.Int("stored_rows", run.stored))
		return run.summary(model.UploadStatusFailed), flushErr
	case streamErr != nil:
		run.discard()
		e.finish(ctx, u.ID, run, model.UploadStatusFailed, streamErr)
		log.Error("ingest: read rows failed", zap.Error(streamErr), zap.Int("stored_rows", run.stored))
		return run.summary(model.UploadStatusFailed), eris.Wrapf(streamErr, "ingest: upload %s", u.ID)
	}

	if err := e.flush(ctx, run); err != nil {
		e.finish(ctx, u.ID, run, model.UploadStatusFailed, err)
		log.Error("ingest: batch insert failed", zap.Error(err), zap.Int("stored_rows", run.stored))
		return run.summary(model.UploadStatusFailed), err
	}

	run.complete()
	if err := e.finish(ctx, u.ID, run, model.UploadStatusProcessed, nil); err != nil {
		return nil, err
	}

	summary := run.summary(model.UploadStatusProcessed)
	if _, err := e.snapshots.Build(ctx, u.WorkspaceID, nil); err != nil {
		log.Error("ingest: snapshot rebuild failed", zap.Error(err))
		summary.SnapshotError = err.Error()
	}

	log.Info("ingest: normalized",
		zap.Int("total_rows", summary.TotalRows),
		zap.Int("stored_rows", summary.StoredRows),
		zap.Int("suppressed_rows", summary.SuppressedRows),
		zap.Bool("valid", summary.Validation.IsValid),
	)
	return summary, nil
}

// flush writes the pending batch.
func (e *Engine) flush(ctx context.Context, run *rowProcessor) error {
	if len(run.batch) == 0 {
		return nil
	}
	n, err := e.store.InsertFacts(ctx, run.batch)
	if err != nil {
		return eris.Wrapf(err, "ingest: insert batch of %d facts", len(run.batch))
	}
	run.stored += int(n)
	run.batch = run.batch[:0]
	return nil
}

// finish records the outcome on the upload. It uses a context detached from
// cancellation so a cancelled run can still be marked PARTIAL.
func (e *Engine) finish(ctx context.Context, uploadID string, run *rowProcessor, status model.UploadStatus, cause error) error {
	now := e.now()
	upd := model.UploadUpdate{
		Status:      status,
		RowCount:    run.total,
		StoredRows:  run.stored,
		ProcessedAt: &now,
	}
	if run.result != nil {
		upd.Validation = run.result
	}
	if cause != nil {
		upd.Error = cause.Error()
	}
	if err := e.store.UpdateUpload(context.WithoutCancel(ctx), uploadID, upd); err != nil {
		zap.L().Error("ingest: record upload status",
			zap.String("upload_id", uploadID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return eris.Wrapf(err, "ingest: update upload %s", uploadID)
	}
	return nil
}

// rowProcessor turns raw rows into facts for one upload.
type rowProcessor struct {
	job       *job
	batchSize int
	dateCol   *mapping.Column
	dims      []mapping.Column

	temporal *validation.TemporalChecker
	warnings *validation.Accumulator
	result   *model.ValidationResult

	batch      []model.UnifiedMetricFact
	total      int
	stored     int
	suppressed int
	mapped     int
	scoreSum   float64
	scored     int
}

func newRowProcessor(j *job, batchSize int) *rowProcessor {
	p := &rowProcessor{
		job:       j,
		batchSize: batchSize,
		temporal:  validation.NewTemporalChecker(j.guess.Granularity),
		warnings:  validation.NewAccumulator(),
		batch:     make([]model.UnifiedMetricFact, 0, batchSize),
	}
	if c, ok := j.mapping.Dimension(model.DimDate); ok {
		p.dateCol = &c
	}
	for _, c := range j.mapping.Dimensions {
		if c.Name != model.DimDate {
			p.dims = append(p.dims, c)
		}
	}
	return p
}

// process handles one row and reports whether the batch is full.
func (p *rowProcessor) process(row []string) bool {
	p.total++
	u := p.job.upload
	granularity := p.job.guess.Granularity

	date, ok := time.Time{}, false
	if p.dateCol != nil {
		date, ok = normalize.Date(cell(row, p.dateCol.Index))
	}
	p.temporal.Observe(date, ok)

	if !ok {
		if granularity == model.GranularityDaily {
			p.suppressed++
			return false
		}
		date = normalize.Day(u.CreatedAt)
	}

	dims := make(map[string]string, len(p.dims))
	for _, c := range p.dims {
		if c.Index < len(row) {
			dims[c.Name] = row[c.Index]
		}
	}

	metrics := make(map[string]float64, len(p.job.mapping.Metrics))
	for _, c := range p.job.mapping.Metrics {
		if v, ok := normalize.Number(cell(row, c.Index)); ok {
			metrics[c.Name] = v
			p.mapped++
		}
	}

	warnings := validation.CheckSchema(metrics, dims, granularity)
	p.warnings.Add(warnings...)
	if len(metrics) == 0 {
		p.suppressed++
		return false
	}

	confidence := validation.RowConfidence(p.job.guess.ReportTypeConfidence, warnings)
	p.scoreSum += confidence.Score()
	p.scored++

	p.batch = append(p.batch, model.UnifiedMetricFact{
		WorkspaceID: u.WorkspaceID,
		UploadID:    u.ID,
		RowNumber:   p.total,
		Date:        date,
		Platform:    p.job.guess.Platform,
		Granularity: granularity,
		Context: model.MetricContext{
			Source:     p.job.source,
			ReportType: reportTypeLabel(p.job.guess.ReportType),
			Confidence: confidence,
		},
		Metrics:    metrics,
		Dimensions: dims,
	})
	return len(p.batch) >= p.batchSize
}

// discard drops facts that were never flushed.
func (p *rowProcessor) discard() {
	p.batch = p.batch[:0]
}

// complete runs the end-of-stream temporal pass and freezes the result.
func (p *rowProcessor) complete() {
	p.warnings.Add(p.temporal.Warnings()...)
	res := validation.NewResult(p.warnings.Warnings())
	p.result = &res
}

func (p *rowProcessor) summary(status model.UploadStatus) *model.NormalizationSummary {
	s := &model.NormalizationSummary{
		UploadID:         p.job.upload.ID,
		Status:           status,
		TotalRows:        p.total,
		StoredRows:       p.stored,
		MappedMetrics:    p.mapped,
		SuppressedRows:   p.suppressed,
		ReportConfidence: p.job.guess.ReportTypeConfidence,
		Validation:       p.result,
	}
	if p.scored > 0 {
		s.AvgConfidence = p.scoreSum / float64(p.scored)
	}
	if s.Validation == nil {
		res := validation.NewResult(p.warnings.Warnings())
		s.Validation = &res
	}
	return s
}

func reportTypeLabel(rt model.ReportType) string {
	if rt == model.ReportTypeAds {
		return "ads"
	}
	return "overview"
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
