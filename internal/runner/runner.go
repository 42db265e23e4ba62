// Package runner executes a single scrape task from start to terminal state.
package runner

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/Dev-pucci/webscraping-app/internal/scrape"
)

// TaskStore is the slice of the task store the runner needs. Every call is
// fire-and-forget from the runner's perspective; the store decides whether an
// update still applies.
type TaskStore interface {
	UpdateProgress(ctx context.Context, id string, pct int, message string, records []scrape.Record)
	Complete(ctx context.Context, id string, records []scrape.Record, status scrape.TaskStatus, errText string)
	StopRequested(id string) bool
}

// Config bounds per-page work and pacing between pages.
type Config struct {
	// PageTimeout caps a single page fetch, including its retry.
	PageTimeout time.Duration
	// PageRetries is the number of additional attempts after a failed fetch.
	PageRetries int
	// DelayMin and DelayMax bound the randomized pause between pages.
	DelayMin time.Duration
	DelayMax time.Duration
}

const (
	defaultPageTimeout = 20 * time.Second
	defaultPageRetries = 1
	defaultDelayMin    = time.Second
	defaultDelayMax    = 4 * time.Second

	// Page progress is scaled into this band; the edges are reserved for
	// setup and result processing.
	progressFloor = 10
	progressCeil  = 90
)

// Runner drives one task at a time through its extractor. It is stateless
// across tasks and safe to share between goroutines.
type Runner struct {
	factory scrape.ExtractorFactory
	store   TaskStore
	cfg     Config
	logger  *zap.Logger
}

// New builds a Runner. Zero config values fall back to the defaults above.
func New(factory scrape.ExtractorFactory, store TaskStore, cfg Config, logger *zap.Logger) *Runner {
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = defaultPageTimeout
	}
	if cfg.PageRetries < 0 {
		cfg.PageRetries = defaultPageRetries
	}
	if cfg.DelayMin <= 0 {
		cfg.DelayMin = defaultDelayMin
	}
	if cfg.DelayMax < cfg.DelayMin {
		cfg.DelayMax = defaultDelayMax
	}
	if cfg.DelayMax < cfg.DelayMin {
		cfg.DelayMax = cfg.DelayMin
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{factory: factory, store: store, cfg: cfg, logger: logger}
}

// Run executes the task to a terminal state. It always reaches Complete, even
// on panic, so a task never sticks in running. Page failures are transient:
// the failed page is skipped and the task carries on with what it has.
func (r *Runner) Run(ctx context.Context, taskID string, kind scrape.TaskKind, params scrape.TaskParams) {
	var records []scrape.Record
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("task panicked",
				zap.String("task_id", taskID),
				zap.Any("panic", rec))
			r.store.Complete(ctx, taskID, records, scrape.StatusFailed, fmt.Sprintf("internal error: %v", rec))
		}
	}()

	r.store.UpdateProgress(ctx, taskID, 5, "Initializing extractor", nil)

	extractor, err := r.factory.New(ctx)
	if err != nil {
		r.logger.Error("extractor setup failed", zap.String("task_id", taskID), zap.Error(err))
		r.store.Complete(ctx, taskID, nil, scrape.StatusFailed, "extractor setup failed: "+err.Error())
		return
	}
	defer func() {
		if err := extractor.Close(); err != nil {
			r.logger.Warn("extractor close failed", zap.String("task_id", taskID), zap.Error(err))
		}
	}()

	r.store.UpdateProgress(ctx, taskID, progressFloor, "Starting scrape", nil)

	totalPages := params.MaxPages
	for page := 1; page <= totalPages; page++ {
		if r.store.StopRequested(taskID) {
			r.logger.Info("task stopped, exiting early",
				zap.String("task_id", taskID),
				zap.Int("page", page))
			return
		}
		if ctx.Err() != nil {
			r.store.Complete(ctx, taskID, records, scrape.StatusFailed, "task cancelled: "+ctx.Err().Error())
			return
		}

		pageRecords, err := r.fetchPage(ctx, extractor, scrape.PageRequest{
			Kind:        kind,
			Query:       params.Query,
			CategoryURL: params.CategoryURL,
			Page:        page,
		})
		if err != nil {
			r.logger.Warn("page fetch failed, skipping",
				zap.String("task_id", taskID),
				zap.Int("page", page),
				zap.Error(err))
		} else {
			records = append(records, pageRecords...)
		}

		pct := pageProgress(page, totalPages)
		msg := fmt.Sprintf("Scraped page %d of %d (%d records)", page, totalPages, len(records))
		r.store.UpdateProgress(ctx, taskID, pct, msg, records)

		if page < totalPages {
			if !r.pause(ctx) {
				r.store.Complete(ctx, taskID, records, scrape.StatusFailed, "task cancelled: "+ctx.Err().Error())
				return
			}
		}
	}

	r.store.UpdateProgress(ctx, taskID, 95, "Processing results", records)
	r.store.Complete(ctx, taskID, records, scrape.StatusCompleted, "")
}

// fetchPage runs one page fetch with a per-attempt timeout and bounded retry.
func (r *Runner) fetchPage(ctx context.Context, extractor scrape.Extractor, req scrape.PageRequest) ([]scrape.Record, error) {
	var lastErr error
	for attempt := 0; attempt <= r.cfg.PageRetries; attempt++ {
		pageCtx, cancel := context.WithTimeout(ctx, r.cfg.PageTimeout)
		records, err := extractor.FetchPage(pageCtx, req)
		cancel()
		if err == nil {
			return records, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// pause sleeps a random duration in [DelayMin, DelayMax]. Returns false when
// the context is cancelled first.
func (r *Runner) pause(ctx context.Context) bool {
	delay := r.cfg.DelayMin
	if span := r.cfg.DelayMax - r.cfg.DelayMin; span > 0 {
		delay += time.Duration(rand.Int63n(int64(span)))
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// pageProgress scales page completion into the 10-90 band.
func pageProgress(page, total int) int {
	if total <= 0 {
		return progressCeil
	}
	return progressFloor + (progressCeil-progressFloor)*page/total
}
