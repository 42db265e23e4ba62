package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Dev-pucci/webscraping-app/internal/progress"
)

// PrometheusSink exports scrape-task progress metrics via Prometheus. It owns
// all collectors for tasks started/completed/running plus record throughput.
type PrometheusSink struct {
	tasksStarted   *prometheus.CounterVec
	tasksCompleted *prometheus.CounterVec
	tasksRunning   prometheus.Gauge
	taskRuntime    *prometheus.HistogramVec
	recordsScraped *prometheus.CounterVec

	tracker *taskTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		tasksStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_tasks_started_total",
			Help: "Total scrape tasks that have started, partitioned by kind.",
		}, []string{"kind"}),
		tasksCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_tasks_completed_total",
			Help: "Total scrape tasks finished, partitioned by kind and result.",
		}, []string{"kind", "result"}),
		tasksRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scraper_tasks_running",
			Help: "Current number of running scrape tasks.",
		}),
		taskRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scraper_task_runtime_seconds",
			Help:    "Wall time per finished scrape task.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"result"}),
		recordsScraped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_records_total",
			Help: "Records produced by finished tasks, partitioned by kind.",
		}, []string{"kind"}),
		tracker: newTaskTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.tasksStarted,
		s.tasksCompleted,
		s.tasksRunning,
		s.taskRuntime,
		s.recordsScraped,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageTaskStart:
		s.tasksStarted.WithLabelValues(string(evt.Kind)).Inc()
		if s.tracker.start(evt.TaskID) {
			s.tasksRunning.Inc()
		}
	case progress.StageTaskDone:
		s.finish(evt, "completed")
	case progress.StageTaskError:
		s.finish(evt, "failed")
	case progress.StageTaskStop:
		s.finish(evt, "stopped")
	}
}

func (s *PrometheusSink) finish(evt progress.Event, result string) {
	s.tasksCompleted.WithLabelValues(string(evt.Kind), result).Inc()
	if evt.Dur > 0 {
		s.taskRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
	if evt.Records > 0 {
		s.recordsScraped.WithLabelValues(string(evt.Kind)).Add(float64(evt.Records))
	}
	if s.tracker.complete(evt.TaskID) {
		s.tasksRunning.Dec()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

// taskTracker keeps completion idempotent so the running gauge never drifts
// when a terminal event is duplicated.
type taskTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newTaskTracker() *taskTracker {
	return &taskTracker{running: make(map[[16]byte]struct{})}
}

func (t *taskTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *taskTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
