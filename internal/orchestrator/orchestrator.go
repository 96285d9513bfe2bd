package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/docuglot/docuglot/constants"
	"github.com/docuglot/docuglot/internal/analysis"
	"github.com/docuglot/docuglot/internal/entity"
	"github.com/docuglot/docuglot/internal/ocr"
	"github.com/docuglot/docuglot/internal/repository"
	"github.com/docuglot/docuglot/internal/storage"
	"github.com/docuglot/docuglot/internal/translate"
)

// Config tunes one Orchestrator instance.
type Config struct {
	MaxConcurrentJobs int           // admission cap, default 3
	JobTimeout        time.Duration // per-job pipeline budget, default 3m
	DefaultSourceLang string        // fallback when "auto" detection fails
}

// Orchestrator sequences OCR, translation, assembly, validation and
// persistence for translation jobs. It owns the only in-process shared
// mutable state: the bounded set of active job ids.
type Orchestrator struct {
	cfg        Config
	logger     *slog.Logger
	jobs       repository.JobRepository
	assets     repository.AssetRepository
	results    repository.ResultRepository
	blobs      storage.BlobStore
	extractor  ocr.Extractor
	translator translate.Translator
	validator  *analysis.Validator
	sources    []JobSource

	mu     sync.Mutex
	active map[uuid.UUID]struct{}
	wg     sync.WaitGroup
}

func New(
	cfg Config,
	logger *slog.Logger,
	jobs repository.JobRepository,
	assets repository.AssetRepository,
	results repository.ResultRepository,
	blobs storage.BlobStore,
	extractor ocr.Extractor,
	translator translate.Translator,
	validator *analysis.Validator,
	sources ...JobSource,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = 3
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 3 * time.Minute
	}
	if cfg.DefaultSourceLang == "" {
		cfg.DefaultSourceLang = constants.DefaultSourceLanguage
	}
	return &Orchestrator{
		cfg:        cfg,
		logger:     logger,
		jobs:       jobs,
		assets:     assets,
		results:    results,
		blobs:      blobs,
		extractor:  extractor,
		translator: translator,
		validator:  validator,
		sources:    sources,
		active:     make(map[uuid.UUID]struct{}),
	}
}

// Run sweeps pending jobs once (crash recovery), then serves all job sources
// until ctx is cancelled, and finally drains in-flight jobs. Jobs already
// running when ctx is cancelled finish on their own timeout.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("orchestrator started", "max_concurrent_jobs", o.cfg.MaxConcurrentJobs)
	o.SweepPending(ctx)

	var srcWG sync.WaitGroup
	for _, src := range o.sources {
		srcWG.Add(1)
		go func(s JobSource) {
			defer srcWG.Done()
			// Sources don't care whether an id was admitted; deferred ids
			// come back on the next delivery.
			emit := func(id uuid.UUID) { o.Dispatch(id) }
			if err := s.Run(ctx, emit); err != nil && ctx.Err() == nil {
				o.logger.Error("job source stopped", "error", err)
			}
		}(src)
	}
	srcWG.Wait()

	o.logger.Info("orchestrator stopping, draining active jobs")
	o.wg.Wait()
	o.logger.Info("orchestrator stopped")
	return ctx.Err()
}

// SweepPending re-delivers every pending job. Called at startup so jobs left
// pending by a previous run are resumed.
func (o *Orchestrator) SweepPending(ctx context.Context) {
	pending, err := o.jobs.ListByStatus(ctx, constants.JobStatusPending)
	if err != nil {
		o.logger.Error("startup sweep failed", "error", err)
		return
	}
	o.logger.Info("sweeping pending jobs", "count", len(pending))
	for _, j := range pending {
		o.Dispatch(j.ID)
	}
}

// RequeueStale returns long-running processing jobs (crashed worker) to
// pending and dispatches them again.
func (o *Orchestrator) RequeueStale(ctx context.Context, staleAfter time.Duration) {
	n, err := o.jobs.RequeueStale(ctx, staleAfter)
	if err != nil {
		o.logger.Error("stale requeue failed", "error", err)
		return
	}
	if n > 0 {
		o.SweepPending(ctx)
	}
}

// Dispatch admits a discovered job. The active set is the single source of
// truth for at-most-once processing: duplicates of in-flight ids are ignored,
// and discoveries beyond capacity are dropped here and re-delivered by the
// next poll tick. Returns true when a pipeline was started.
func (o *Orchestrator) Dispatch(id uuid.UUID) bool {
	o.mu.Lock()
	if _, running := o.active[id]; running {
		o.mu.Unlock()
		o.logger.Debug("job already active, ignoring duplicate delivery", "job_id", id)
		return false
	}
	if len(o.active) >= o.cfg.MaxConcurrentJobs {
		o.mu.Unlock()
		o.logger.Debug("at capacity, deferring job", "job_id", id)
		return false
	}
	o.active[id] = struct{}{}
	o.mu.Unlock()

	o.wg.Add(1)
	go o.run(id)
	return true
}

// ActiveCount reports the size of the active set.
func (o *Orchestrator) ActiveCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.active)
}

// Wait blocks until all in-flight jobs have finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) release(id uuid.UUID) {
	o.mu.Lock()
	delete(o.active, id)
	o.mu.Unlock()
	o.wg.Done()
}

// run executes one job end to end. The slot release is deferred so capacity
// is returned even when the final status write fails.
func (o *Orchestrator) run(id uuid.UUID) {
	defer o.release(id)

	// Detached from the server context: an in-flight job is bounded by its
	// own timeout, not by shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.JobTimeout)
	defer cancel()

	job, err := o.jobs.GetByID(ctx, id)
	if err != nil {
		o.logger.Error("job lookup failed", "job_id", id, "error", err)
		return
	}
	if job.Status != constants.JobStatusPending {
		o.logger.Debug("job no longer pending, skipping", "job_id", id, "status", job.Status)
		return
	}

	// Parse-don't-validate: a malformed config blob fails the job before the
	// pipeline performs any side effect.
	cfg, err := entity.ParseJobConfig(job.Config)
	if err != nil {
		o.fail(id, err)
		return
	}

	claimed, err := o.jobs.MarkProcessing(ctx, id)
	if err != nil || !claimed {
		if err != nil {
			o.logger.Error("job claim failed", "job_id", id, "error", err)
		}
		return
	}

	// A previous run may have persisted the result and died before the
	// completion write; the result is write-once, so finish the status
	// transition instead of re-running the pipeline.
	if existing, err := o.results.GetByJobID(ctx, id); err == nil && existing != nil {
		o.logger.Warn("job already has a result, completing without rerun", "job_id", id)
		if err := o.jobs.MarkCompleted(ctx, id); err != nil {
			o.logger.Error("job completion write failed", "job_id", id, "error", err)
		}
		return
	}

	start := time.Now()
	res, err := o.pipeline(ctx, job, cfg)
	if err != nil {
		o.fail(id, err)
		return
	}
	if err := o.results.Insert(ctx, res); err != nil {
		o.fail(id, err)
		return
	}
	if err := o.jobs.MarkCompleted(ctx, id); err != nil {
		o.logger.Error("job completion write failed", "job_id", id, "error", err)
		return
	}
	o.logger.Info("job completed",
		"job_id", id,
		"blocks", len(res.Blocks),
		"source", res.SourceLanguage,
		"target", res.TargetLanguage,
		"confidence", res.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}

// fail records a terminal failure. A fresh context is used so the write goes
// through even when the job's own context has expired.
func (o *Orchestrator) fail(id uuid.UUID, cause error) {
	o.logger.Error("job failed", "job_id", id, "error", cause)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.jobs.MarkFailed(ctx, id, cause.Error()); err != nil {
		o.logger.Error("job failure write failed", "job_id", id, "error", err)
	}
}

func (o *Orchestrator) pipeline(ctx context.Context, job *entity.Job, cfg entity.JobConfig) (*entity.AnalysisResult, error) {
	start := time.Now()

	asset, err := o.assets.GetByID(ctx, job.AssetID)
	if err != nil {
		return nil, fmt.Errorf("fetch asset %s: %w", job.AssetID, err)
	}

	data, err := o.blobs.Download(ctx, asset.StoragePath)
	if err != nil {
		return nil, err
	}

	ocrRes, err := o.extractor.Extract(ctx, ocr.Input{
		Data:     data,
		MIMEType: asset.ContentType,
		Filename: asset.Filename,
	})
	if err != nil {
		return nil, err
	}

	source := o.resolveSourceLanguage(cfg, ocrRes)

	// All block translations run concurrently; the first error cancels the
	// rest and fails the job.
	translations := make([]translate.Result, len(ocrRes.Blocks))
	g, gctx := errgroup.WithContext(ctx)
	for i, block := range ocrRes.Blocks {
		i, block := i, block
		g.Go(func() error {
			res, err := o.translator.Translate(gctx, translate.Request{
				Text:           block.Text,
				SourceLanguage: source,
				TargetLanguage: cfg.TargetLanguage,
			})
			if err != nil {
				return fmt.Errorf("translate %s: %w", block.ID, err)
			}
			translations[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	docType := constants.MapMIMEToDocumentType(asset.ContentType)
	res := analysis.Assemble(analysis.AssembleInput{
		Job:          job,
		Config:       cfg,
		OCR:          ocrRes,
		Translations: translations,
		Engine:       o.translator.Name(),
		DocumentType: docType,
		Filename:     asset.Filename,
		Elapsed:      time.Since(start),
	})
	if err := o.validator.Validate(res); err != nil {
		return nil, err
	}
	return res, nil
}

// resolveSourceLanguage picks the effective source for an "auto" job:
// OCR-detected language first, then the configured default.
func (o *Orchestrator) resolveSourceLanguage(cfg entity.JobConfig, ocrRes ocr.Result) string {
	if cfg.SourceLanguage != "" && cfg.SourceLanguage != constants.LanguageAuto {
		return cfg.SourceLanguage
	}
	if ocrRes.Language != "" {
		return ocrRes.Language
	}
	o.logger.Debug("language detection failed, using default", "default", o.cfg.DefaultSourceLang)
	return o.cfg.DefaultSourceLang
}
