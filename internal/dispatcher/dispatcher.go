// Package dispatcher validates submissions and launches task runners.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Dev-pucci/webscraping-app/internal/scrape"
)

// ErrInvalidRequest signals a submission with no usable locator.
var ErrInvalidRequest = errors.New("invalid scrape request")

// ErrShuttingDown signals that the dispatcher no longer accepts work.
var ErrShuttingDown = errors.New("dispatcher shutting down")

// TaskCreator is the slice of the task store the dispatcher needs.
type TaskCreator interface {
	Create(ctx context.Context, kind scrape.TaskKind, params scrape.TaskParams) (string, error)
}

// TaskRunner executes one task to completion.
type TaskRunner interface {
	Run(ctx context.Context, taskID string, kind scrape.TaskKind, params scrape.TaskParams)
}

// SubmitRequest is a client submission before validation. Kind may be empty;
// it is inferred from which locator is present.
type SubmitRequest struct {
	Kind        string
	Query       string
	CategoryURL string
	Pages       int
}

// Config bounds accepted submissions.
type Config struct {
	// MaxPagesCap clamps the requested page count (default 50).
	MaxPagesCap int
	// DefaultPages is used when the request omits a page count (default 5).
	DefaultPages int
}

const (
	defaultMaxPagesCap  = 50
	defaultDefaultPages = 5
)

// Dispatcher turns submissions into tracked runner goroutines. Shutdown
// waits for in-flight tasks so process exit never abandons a running task
// without its terminal transition.
type Dispatcher struct {
	store  TaskCreator
	runner TaskRunner
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup

	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// New builds a Dispatcher. Runner goroutines inherit a context detached from
// individual requests so an HTTP disconnect never cancels a task.
func New(store TaskCreator, runner TaskRunner, cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.MaxPagesCap <= 0 {
		cfg.MaxPagesCap = defaultMaxPagesCap
	}
	if cfg.DefaultPages <= 0 {
		cfg.DefaultPages = defaultDefaultPages
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		store:      store,
		runner:     runner,
		cfg:        cfg,
		logger:     logger,
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
}

// Submit validates the request, creates the task, and starts its runner. The
// returned id is immediately pollable.
func (d *Dispatcher) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	kind, params, err := normalize(req, d.cfg)
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	if d.draining {
		d.mu.Unlock()
		return "", ErrShuttingDown
	}
	d.wg.Add(1)
	d.mu.Unlock()

	id, err := d.store.Create(ctx, kind, params)
	if err != nil {
		d.wg.Done()
		return "", err
	}

	d.logger.Info("task submitted",
		zap.String("task_id", id),
		zap.String("kind", string(kind)),
		zap.Int("pages", params.MaxPages))

	go func() {
		defer d.wg.Done()
		d.runner.Run(d.baseCtx, id, kind, params)
	}()
	return id, nil
}

// Shutdown stops accepting submissions and waits for in-flight runners, up
// to the context deadline. Runners are cancelled if the deadline passes.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.draining = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.cancelBase()
		return nil
	case <-ctx.Done():
		d.cancelBase()
		return fmt.Errorf("dispatcher drain: %w", ctx.Err())
	}
}

// normalize infers the task kind, validates locators, and clamps pages.
func normalize(req SubmitRequest, cfg Config) (scrape.TaskKind, scrape.TaskParams, error) {
	kind := scrape.TaskKind(req.Kind)
	if kind == "" {
		if req.CategoryURL != "" {
			kind = scrape.KindCategory
		} else {
			kind = scrape.KindSearch
		}
	}
	params := scrape.TaskParams{
		Query:       req.Query,
		CategoryURL: req.CategoryURL,
		MaxPages:    req.Pages,
	}
	switch kind {
	case scrape.KindSearch:
		if params.Query == "" {
			return "", scrape.TaskParams{}, fmt.Errorf("%w: search requires a query", ErrInvalidRequest)
		}
	case scrape.KindCategory:
		if params.CategoryURL == "" {
			return "", scrape.TaskParams{}, fmt.Errorf("%w: category requires a URL", ErrInvalidRequest)
		}
	default:
		return "", scrape.TaskParams{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, req.Kind)
	}
	if params.MaxPages <= 0 {
		params.MaxPages = cfg.DefaultPages
	}
	if params.MaxPages > cfg.MaxPagesCap {
		params.MaxPages = cfg.MaxPagesCap
	}
	return kind, params, nil
}
