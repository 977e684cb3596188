// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sigil-dev/tome/internal/store"
	"github.com/sigil-dev/tome/internal/walker"
	tomeerr "github.com/sigil-dev/tome/pkg/errors"
	"github.com/sigil-dev/tome/pkg/health"
	"github.com/sigil-dev/tome/pkg/types"
)

// Defaults for Config.
const (
	DefaultWorkers = 1
	DefaultDelay   = 500 * time.Millisecond
)

// Config tunes how a plan is applied.
type Config struct {
	// FileLimit caps additions per run; 0 means no cap.
	FileLimit int
	// Workers bounds concurrent additions and updates; 0 means DefaultWorkers.
	Workers int
	// Delay is the minimum spacing between starting two additions or updates.
	Delay time.Duration
	// NoDelay disables pacing entirely.
	NoDelay bool
}

// DefaultConfig returns sequential, paced application with no file limit.
func DefaultConfig() Config {
	return Config{Workers: DefaultWorkers, Delay: DefaultDelay}
}

// MetricsSource exposes embedding bookkeeping for inclusion in reports.
type MetricsSource interface {
	Metrics() health.Metrics
}

// Engine keeps one KnowledgeStore in line with one directory.
type Engine struct {
	store    store.KnowledgeStore
	walker   *walker.Walker
	filter   *walker.Filter
	cfg      Config
	logger   *slog.Logger
	observer Observer
	metrics  MetricsSource
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver registers a progress observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithEmbeddingMetrics attaches an embedding metrics snapshot to every report.
func WithEmbeddingMetrics(m MetricsSource) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an Engine. The walker and filter must share the same root.
func New(ks store.KnowledgeStore, w *walker.Walker, f *walker.Filter, cfg Config, opts ...Option) (*Engine, error) {
	if ks == nil || w == nil || f == nil {
		return nil, tomeerr.New(tomeerr.CodeSyncInvalidInput, "engine requires a store, walker, and filter")
	}
	if w.Root() != f.Root() {
		return nil, tomeerr.Errorf(tomeerr.CodeSyncInvalidInput,
			"walker root %s does not match filter root %s", w.Root(), f.Root())
	}
	if cfg.FileLimit < 0 {
		return nil, tomeerr.Errorf(tomeerr.CodeSyncInvalidInput, "file_limit must not be negative, got %d", cfg.FileLimit)
	}
	if cfg.Workers < 0 {
		return nil, tomeerr.Errorf(tomeerr.CodeSyncInvalidInput, "workers must not be negative, got %d", cfg.Workers)
	}
	if cfg.Delay < 0 {
		return nil, tomeerr.Errorf(tomeerr.CodeSyncInvalidInput, "delay must not be negative, got %s", cfg.Delay)
	}
	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers
	}

	e := &Engine{
		store:  ks,
		walker: w,
		filter: f,
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Sync applies the minimal set of deletions, additions, and updates.
// Per-file failures are recorded in the report and do not stop the run.
// On cancellation the partial report is returned with the context error.
func (e *Engine) Sync(ctx context.Context) (*Report, error) {
	return e.run(ctx, ModeSync)
}

// Build resets the store and adds every eligible file.
func (e *Engine) Build(ctx context.Context) (*Report, error) {
	return e.run(ctx, ModeBuild)
}

func (e *Engine) run(ctx context.Context, mode Mode) (report *Report, err error) {
	report = &Report{
		RunID:     uuid.NewString(),
		Mode:      mode,
		StartedAt: time.Now(),
	}
	rec := &recorder{report: report, observer: e.observer}
	logger := e.logger.With("run_id", report.RunID, "mode", string(mode))

	ctx, span := tracer.Start(ctx, "reconcile."+string(mode),
		trace.WithAttributes(attribute.String("tome.run_id", report.RunID)))
	defer func() {
		report.FinishedAt = time.Now()
		if e.metrics != nil {
			report.Embedding = e.metrics.Metrics()
		}
		syncRunDuration.WithLabelValues(string(mode)).Observe(report.Duration().Seconds())
		if err != nil {
			span.RecordError(err)
		}
		span.SetAttributes(
			attribute.Int("tome.deleted", report.Deleted),
			attribute.Int("tome.added", report.Added),
			attribute.Int("tome.updated", report.Updated),
			attribute.Int("tome.failed", report.Failed),
		)
		span.End()
	}()

	if mode == ModeBuild {
		if err := e.store.Reset(ctx); err != nil {
			return report, err
		}
	}

	plan, err := e.plan(ctx, mode)
	if err != nil {
		return report, err
	}

	report.Unchanged = plan.Unchanged
	for _, s := range plan.Skips {
		report.Skipped++
		report.Skips = append(report.Skips, s)
		syncFilesTotal.WithLabelValues(string(s.Op), string(OutcomeSkipped)).Inc()
	}

	logger.Info("plan ready",
		"deletions", len(plan.Deletions),
		"additions", len(plan.Additions),
		"updates", len(plan.Updates),
		"unchanged", plan.Unchanged,
		"skipped", len(plan.Skips),
		"deferred", plan.Deferred)
	rec.planned(plan.Total())

	err = e.apply(ctx, plan, rec)

	logger.Info("run finished",
		"deleted", report.Deleted,
		"added", report.Added,
		"updated", report.Updated,
		"skipped", report.Skipped,
		"failed", report.Failed)
	return report, err
}

// apply runs every deletion before any addition or update starts.
func (e *Engine) apply(ctx context.Context, plan *Plan, rec *recorder) error {
	if err := e.applyDeletions(ctx, plan.Deletions, rec); err != nil {
		return err
	}

	ctx, span := tracer.Start(ctx, "reconcile.apply",
		trace.WithAttributes(attribute.Int("tome.workers", e.cfg.Workers)))
	defer span.End()

	var limiter *rate.Limiter
	if !e.cfg.NoDelay && e.cfg.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(e.cfg.Delay), 1)
	}

	jobs := make([]func(context.Context), 0, len(plan.Additions)+len(plan.Updates))
	for _, rel := range plan.Additions {
		jobs = append(jobs, func(ctx context.Context) { e.add(ctx, rel, rec) })
	}
	for _, u := range plan.Updates {
		jobs = append(jobs, func(ctx context.Context) { e.update(ctx, u, rec) })
	}

	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
		}
		g.Go(func() error {
			if ctx.Err() == nil {
				job(ctx)
			}
			return nil
		})
	}
	_ = g.Wait()

	return ctx.Err()
}

func (e *Engine) applyDeletions(ctx context.Context, deletions []*store.Entry, rec *recorder) error {
	ctx, span := tracer.Start(ctx, "reconcile.delete",
		trace.WithAttributes(attribute.Int("tome.deletions", len(deletions))))
	defer span.End()

	for _, entry := range deletions {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := e.store.Delete(ctx, entry.ID)
		if err != nil && tomeerr.IsNotFound(err) {
			// Already gone; the goal state holds.
			err = nil
		}
		if canceled(ctx, err) {
			return ctx.Err()
		}
		e.finish(OpDelete, entry.Path, err, rec)
	}
	return nil
}

func (e *Engine) add(ctx context.Context, rel string, rec *recorder) {
	data, err := walker.ReadFile(e.walker.Root(), rel)
	if err != nil {
		e.logger.Warn("skipping unreadable file", "path", rel, "error", err)
		rec.record(OpAdd, rel, OutcomeSkipped, err)
		return
	}
	if len(data) == 0 {
		rec.record(OpAdd, rel, OutcomeSkipped, ErrEmptyFile)
		return
	}

	_, err = e.store.Insert(ctx, rel, Title(rel), string(data), FileType(rel))
	if canceled(ctx, err) {
		return
	}
	e.finish(OpAdd, rel, err, rec)
}

func (e *Engine) update(ctx context.Context, u Update, rec *recorder) {
	err := e.store.Update(ctx, u.Entry.ID, Title(u.Entry.Path), u.Content)
	if canceled(ctx, err) {
		return
	}
	e.finish(OpUpdate, u.Entry.Path, err, rec)
}

func (e *Engine) finish(op Op, rel string, err error, rec *recorder) {
	if err == nil {
		e.logger.Debug("file applied", "op", string(op), "path", rel)
		rec.record(op, rel, OutcomeApplied, nil)
		return
	}
	e.logger.Error("file failed", "op", string(op), "path", rel, "error", err)
	rec.record(op, rel, OutcomeFailed, err)
}

// canceled reports whether err is the run's own cancellation rather than a
// failure of the file being processed.
func canceled(ctx context.Context, err error) bool {
	ctxErr := ctx.Err()
	return err != nil && ctxErr != nil && errors.Is(err, ctxErr)
}

// Title derives an entry title from its path: the file name without extension.
func Title(rel string) string {
	base := path.Base(rel)
	return strings.TrimSuffix(base, path.Ext(base))
}

// FileType maps a path's extension to the stored file type. Extensions
// without a dedicated type are stored as text.
func FileType(rel string) types.FileType {
	if ft, ok := types.FileTypeFromPath(rel); ok {
		return ft
	}
	return types.FileTypeText
}
