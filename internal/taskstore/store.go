// Package taskstore holds the authoritative in-memory state of scrape tasks.
package taskstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Dev-pucci/webscraping-app/internal/progress"
	"github.com/Dev-pucci/webscraping-app/internal/scrape"
)

// ErrNotFound signals that the requested task does not exist (never created
// or already evicted from the active index).
var ErrNotFound = errors.New("task not found")

// ErrInvalidParams signals that a task submission is missing its locator.
var ErrInvalidParams = errors.New("invalid task parameters")

// Config controls retention and history bounds.
type Config struct {
	// Retention is how long a terminal task stays queryable by id before the
	// janitor evicts it from the active index (default 1h).
	Retention time.Duration
	// SweepInterval is how often the janitor scans for evictable tasks
	// (default Retention/4).
	SweepInterval time.Duration
	// HistoryLimit bounds the listing history (default 50).
	HistoryLimit int
	// ArchivePrefix prefixes result-archive object keys.
	ArchivePrefix string
	// PublishTopic is the completion-event topic; empty disables publishing.
	PublishTopic string
}

const (
	defaultRetention    = time.Hour
	defaultHistoryLimit = 50
)

// Store is the single owner of all mutable task state. Every mutation happens
// under one lock; reads return deep-copied snapshots so callers never hold
// the lock while serializing a response. Best-effort side effects (session
// mirror, archive, publish, progress events) always run outside the lock.
type Store struct {
	mu         sync.RWMutex
	active     map[string]*scrape.Task
	history    []scrape.TaskSummary
	historyIdx map[string]int

	totalTasks     int
	completedTasks int
	failedTasks    int
	stoppedTasks   int
	totalRecords   int

	cfg       Config
	sessions  scrape.SessionStore
	archive   scrape.ResultArchive
	publisher scrape.Publisher
	emitter   progress.Emitter
	hasher    scrape.Hasher
	clock     scrape.Clock
	idGen     scrape.IDGenerator
	logger    *zap.Logger

	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

// New constructs a Store and starts its retention janitor. The sessions,
// archive, publisher, and emitter collaborators may be nil; the matching side
// effect is skipped.
func New(
	cfg Config,
	sessions scrape.SessionStore,
	archive scrape.ResultArchive,
	publisher scrape.Publisher,
	emitter progress.Emitter,
	hasher scrape.Hasher,
	clock scrape.Clock,
	idGen scrape.IDGenerator,
	logger *zap.Logger,
) *Store {
	if cfg.Retention <= 0 {
		cfg.Retention = defaultRetention
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = cfg.Retention / 4
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		active:     make(map[string]*scrape.Task),
		historyIdx: make(map[string]int),
		cfg:        cfg,
		sessions:   sessions,
		archive:    archive,
		publisher:  publisher,
		emitter:    emitter,
		hasher:     hasher,
		clock:      clock,
		idGen:      idGen,
		logger:     logger,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	go s.janitor()
	return s
}

// Close stops the retention janitor.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.stopCh)
	})
	<-s.doneCh
}

// Create allocates a task id, inserts the task in running status with
// progress 0, and records a history summary. The session mirror is
// best-effort. The task is visible to Get before Create returns, so a client
// polling immediately after submission never sees not-found.
func (s *Store) Create(ctx context.Context, kind scrape.TaskKind, params scrape.TaskParams) (string, error) {
	if err := validateParams(kind, params); err != nil {
		return "", err
	}
	id, err := s.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate task id: %w", err)
	}
	now := s.clock.Now()
	task := &scrape.Task{
		ID:        id,
		Kind:      kind,
		Params:    params,
		Status:    scrape.StatusRunning,
		Progress:  0,
		Message:   "Initializing scraper",
		Records:   []scrape.Record{},
		StartedAt: now,
	}

	s.mu.Lock()
	if _, exists := s.active[id]; exists {
		s.mu.Unlock()
		return "", fmt.Errorf("task id collision: %s", id)
	}
	s.active[id] = task
	s.appendHistoryLocked(task.Summary())
	s.totalTasks++
	snapshot := copyTask(task)
	s.mu.Unlock()

	if s.sessions != nil {
		if err := s.sessions.CreateSession(ctx, sessionSummary(snapshot)); err != nil {
			s.logger.Warn("session create failed", zap.String("task_id", id), zap.Error(err))
		}
	}
	s.emit(snapshot, progress.StageTaskStart, "")
	return id, nil
}

// UpdateProgress applies a single atomic snapshot replace of progress,
// message, and (optionally) the records collected so far. Progress never
// decreases. Updates to unknown or already-terminal tasks are dropped.
func (s *Store) UpdateProgress(ctx context.Context, id string, pct int, message string, records []scrape.Record) {
	s.mu.Lock()
	task, ok := s.active[id]
	if !ok {
		s.mu.Unlock()
		s.logger.Debug("progress update for unknown task dropped", zap.String("task_id", id))
		return
	}
	if task.Status.Terminal() {
		s.mu.Unlock()
		s.logger.Debug("late progress update dropped",
			zap.String("task_id", id),
			zap.String("status", string(task.Status)))
		return
	}
	if pct < task.Progress {
		pct = task.Progress
	}
	if pct > 100 {
		pct = 100
	}
	task.Progress = pct
	task.Message = message
	if records != nil {
		task.Records = scrape.CloneRecords(records)
	}
	s.refreshHistoryLocked(task.Summary())
	snapshot := copyTask(task)
	s.mu.Unlock()

	if s.sessions != nil {
		if err := s.sessions.UpdateSession(ctx, sessionSummary(snapshot)); err != nil {
			s.logger.Warn("session update failed", zap.String("task_id", id), zap.Error(err))
		}
	}
	s.emit(snapshot, progress.StageTaskProgress, "")
}

// Complete transitions the task to a terminal status exactly once. A second
// call, or a call after Stop, is a no-op. Progress becomes 100 only for
// completed tasks. Session mirror, result archival, and completion publishing
// are best-effort and never fail the task.
func (s *Store) Complete(ctx context.Context, id string, records []scrape.Record, status scrape.TaskStatus, errText string) {
	if !status.Terminal() {
		s.logger.Error("complete called with non-terminal status",
			zap.String("task_id", id),
			zap.String("status", string(status)))
		return
	}
	s.mu.Lock()
	task, ok := s.active[id]
	if !ok {
		s.mu.Unlock()
		s.logger.Debug("complete for unknown task dropped", zap.String("task_id", id))
		return
	}
	if task.Status.Terminal() {
		s.mu.Unlock()
		return
	}
	now := s.clock.Now()
	task.Status = status
	task.CompletedAt = &now
	task.Records = scrape.CloneRecords(records)
	if records == nil {
		task.Records = []scrape.Record{}
	}
	switch status {
	case scrape.StatusCompleted:
		task.Progress = 100
		task.Message = fmt.Sprintf("Scraping completed: found %d records", len(task.Records))
	case scrape.StatusFailed:
		task.ErrorText = errText
		task.Message = "Scraping failed: " + errText
	case scrape.StatusStopped:
		task.Message = "Task stopped by user"
	}
	s.countTerminalLocked(task)
	s.refreshHistoryLocked(task.Summary())
	snapshot := copyTask(task)
	s.mu.Unlock()

	s.finalize(ctx, snapshot)
}

// Get returns a deep-copied snapshot of the task or ErrNotFound.
func (s *Store) Get(id string) (scrape.Task, error) {
	s.mu.RLock()
	task, ok := s.active[id]
	if !ok {
		s.mu.RUnlock()
		return scrape.Task{}, ErrNotFound
	}
	snapshot := copyTask(task)
	s.mu.RUnlock()
	return snapshot, nil
}

// Stop requests cooperative cancellation. A running task becomes stopped
// (terminal) immediately; the runner notices at the next page boundary and
// its remaining updates are dropped. Stopping an already-terminal task is a
// success no-op, so the endpoint stays idempotent for clients.
func (s *Store) Stop(ctx context.Context, id string) error {
	s.mu.Lock()
	task, ok := s.active[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if task.Status.Terminal() {
		s.mu.Unlock()
		return nil
	}
	now := s.clock.Now()
	task.Status = scrape.StatusStopped
	task.CompletedAt = &now
	task.Message = "Task stopped by user"
	s.countTerminalLocked(task)
	s.refreshHistoryLocked(task.Summary())
	snapshot := copyTask(task)
	s.mu.Unlock()

	s.finalize(ctx, snapshot)
	return nil
}

// StopRequested reports whether the task has left the running state. Runners
// poll this between pages.
func (s *Store) StopRequested(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.active[id]
	if !ok {
		return true
	}
	return task.Status.Terminal()
}

// ListRecent merges active tasks over the bounded history, de-duplicated by
// id with the active entry winning, ordered by start time descending.
func (s *Store) ListRecent(limit int) []scrape.TaskSummary {
	s.mu.RLock()
	merged := make(map[string]scrape.TaskSummary, len(s.history)+len(s.active))
	for _, summary := range s.history {
		merged[summary.ID] = summary
	}
	for id, task := range s.active {
		merged[id] = task.Summary()
	}
	s.mu.RUnlock()

	out := make([]scrape.TaskSummary, 0, len(merged))
	for _, summary := range merged {
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Stats returns aggregate counters. They are monotonic and survive both
// eviction and history trimming.
func (s *Store) Stats() scrape.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	activeCount := 0
	for _, task := range s.active {
		if task.Status == scrape.StatusRunning {
			activeCount++
		}
	}
	stats := scrape.Stats{
		TotalTasks:     s.totalTasks,
		CompletedTasks: s.completedTasks,
		FailedTasks:    s.failedTasks,
		StoppedTasks:   s.stoppedTasks,
		ActiveTasks:    activeCount,
		TotalRecords:   s.totalRecords,
	}
	if s.totalTasks > 0 {
		stats.SuccessRate = float64(s.completedTasks) / float64(s.totalTasks) * 100
	}
	return stats
}

// janitor periodically evicts terminal tasks older than the retention window
// from the active index. History summaries and stats counters are untouched.
func (s *Store) janitor() {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	cutoff := s.clock.Now().Add(-s.cfg.Retention)
	s.mu.Lock()
	for id, task := range s.active {
		if task.Status.Terminal() && task.CompletedAt != nil && task.CompletedAt.Before(cutoff) {
			delete(s.active, id)
			s.logger.Debug("task evicted after retention window", zap.String("task_id", id))
		}
	}
	s.mu.Unlock()
}

// finalize runs the best-effort terminal side effects outside the lock.
func (s *Store) finalize(ctx context.Context, task scrape.Task) {
	if s.sessions != nil {
		if err := s.sessions.CompleteSession(ctx, sessionSummary(task)); err != nil {
			s.logger.Warn("session complete failed", zap.String("task_id", task.ID), zap.Error(err))
		}
	}
	uri := s.archiveResults(ctx, task)
	s.publishCompletion(ctx, task, uri)
	switch task.Status {
	case scrape.StatusCompleted:
		s.emit(task, progress.StageTaskDone, "")
	case scrape.StatusFailed:
		s.emit(task, progress.StageTaskError, task.ErrorText)
	case scrape.StatusStopped:
		s.emit(task, progress.StageTaskStop, "")
	}
}

func (s *Store) archiveResults(ctx context.Context, task scrape.Task) string {
	if s.archive == nil || s.hasher == nil || len(task.Records) == 0 {
		return ""
	}
	data, err := json.Marshal(task.Records)
	if err != nil {
		s.logger.Warn("marshal records for archive failed", zap.String("task_id", task.ID), zap.Error(err))
		return ""
	}
	hash, err := s.hasher.Hash(data)
	if err != nil {
		s.logger.Warn("hash records for archive failed", zap.String("task_id", task.ID), zap.Error(err))
		return ""
	}
	path := buildArchivePath(s.cfg.ArchivePrefix, task.ID, hash)
	uri, err := s.archive.PutObject(ctx, path, "application/json", data)
	if err != nil {
		s.logger.Warn("archive results failed", zap.String("task_id", task.ID), zap.Error(err))
		return ""
	}
	return uri
}

func (s *Store) publishCompletion(ctx context.Context, task scrape.Task, archiveURI string) {
	if s.publisher == nil || s.cfg.PublishTopic == "" {
		return
	}
	payload := map[string]any{
		"task_id":      task.ID,
		"kind":         string(task.Kind),
		"status":       string(task.Status),
		"record_count": len(task.Records),
		"started_at":   task.StartedAt.Format(time.RFC3339),
	}
	if task.CompletedAt != nil {
		payload["completed_at"] = task.CompletedAt.Format(time.RFC3339)
	}
	if archiveURI != "" {
		payload["archive_uri"] = archiveURI
	}
	if task.ErrorText != "" {
		payload["error"] = task.ErrorText
	}
	if _, err := s.publisher.Publish(ctx, s.cfg.PublishTopic, payload); err != nil {
		s.logger.Warn("publish completion failed", zap.String("task_id", task.ID), zap.Error(err))
	}
}

func (s *Store) emit(task scrape.Task, stage progress.Stage, note string) {
	if s.emitter == nil {
		return
	}
	parsed, err := uuid.Parse(task.ID)
	if err != nil {
		return
	}
	evt := progress.Event{
		TaskID:   progress.UUIDToBytes(parsed),
		TS:       s.clock.Now(),
		Stage:    stage,
		Kind:     task.Kind,
		Progress: task.Progress,
		Records:  int64(len(task.Records)),
		Note:     note,
	}
	if task.CompletedAt != nil {
		evt.Dur = task.CompletedAt.Sub(task.StartedAt)
	}
	s.emitter.Emit(evt)
}

func (s *Store) countTerminalLocked(task *scrape.Task) {
	switch task.Status {
	case scrape.StatusCompleted:
		s.completedTasks++
	case scrape.StatusFailed:
		s.failedTasks++
	case scrape.StatusStopped:
		s.stoppedTasks++
	}
	s.totalRecords += len(task.Records)
}

// appendHistoryLocked adds a summary, dropping the oldest entry past the cap.
func (s *Store) appendHistoryLocked(summary scrape.TaskSummary) {
	if len(s.history) >= s.cfg.HistoryLimit {
		evicted := s.history[0]
		s.history = s.history[1:]
		delete(s.historyIdx, evicted.ID)
		for id, idx := range s.historyIdx {
			s.historyIdx[id] = idx - 1
		}
	}
	s.historyIdx[summary.ID] = len(s.history)
	s.history = append(s.history, summary)
}

// refreshHistoryLocked overwrites the task's history entry, if still present.
func (s *Store) refreshHistoryLocked(summary scrape.TaskSummary) {
	if idx, ok := s.historyIdx[summary.ID]; ok {
		s.history[idx] = summary
	}
}

func validateParams(kind scrape.TaskKind, params scrape.TaskParams) error {
	switch kind {
	case scrape.KindSearch:
		if params.Query == "" {
			return fmt.Errorf("%w: search task requires a query", ErrInvalidParams)
		}
	case scrape.KindCategory:
		if params.CategoryURL == "" {
			return fmt.Errorf("%w: category task requires a category URL", ErrInvalidParams)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidParams, kind)
	}
	if params.MaxPages <= 0 {
		return fmt.Errorf("%w: max pages must be > 0", ErrInvalidParams)
	}
	return nil
}

func copyTask(task *scrape.Task) scrape.Task {
	snapshot := *task
	snapshot.Records = scrape.CloneRecords(task.Records)
	if task.CompletedAt != nil {
		completed := *task.CompletedAt
		snapshot.CompletedAt = &completed
	}
	return snapshot
}

func sessionSummary(task scrape.Task) scrape.SessionSummary {
	return scrape.SessionSummary{
		TaskID:      task.ID,
		Kind:        task.Kind,
		Query:       task.Params.Query,
		CategoryURL: task.Params.CategoryURL,
		Status:      task.Status,
		Progress:    task.Progress,
		Message:     task.Message,
		Pages:       task.Params.MaxPages,
		RecordCount: len(task.Records),
		ErrorText:   task.ErrorText,
		StartedAt:   task.StartedAt,
		CompletedAt: task.CompletedAt,
	}
}

func buildArchivePath(prefix, taskID, hash string) string {
	if prefix == "" {
		return fmt.Sprintf("%s/%s.json", taskID, hash)
	}
	return fmt.Sprintf("%s/%s/%s.json", prefix, taskID, hash)
}
