package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/Dev-pucci/webscraping-app/internal/progress"
	"github.com/Dev-pucci/webscraping-app/internal/scrape"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms are incremented from events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	taskID := progress.UUIDToBytes(uuid.New())
	batch := []progress.Event{
		{TaskID: taskID, TS: time.Now(), Stage: progress.StageTaskStart, Kind: scrape.KindSearch},
		{
			TaskID:   taskID,
			TS:       time.Now().Add(5 * time.Second),
			Stage:    progress.StageTaskProgress,
			Kind:     scrape.KindSearch,
			Progress: 40,
			Records:  8,
		},
		{
			TaskID:  taskID,
			TS:      time.Now().Add(15 * time.Second),
			Stage:   progress.StageTaskDone,
			Kind:    scrape.KindSearch,
			Records: 24,
			Dur:     15 * time.Second,
		},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.tasksStarted.WithLabelValues("search")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.tasksCompleted.WithLabelValues("search", "completed")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.tasksCompleted.WithLabelValues("search", "failed")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.tasksRunning))
	require.InDelta(t, 24.0, testutil.ToFloat64(sink.recordsScraped.WithLabelValues("search")), 1e-9)
	require.Equal(t, 1, testutil.CollectAndCount(sink.taskRuntime, "scraper_task_runtime_seconds"))
}

// TestPrometheusSinkRunningGaugeIdempotent verifies duplicate terminal events
// never drive the running gauge negative.
func TestPrometheusSinkRunningGaugeIdempotent(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	taskID := progress.UUIDToBytes(uuid.New())
	start := progress.Event{TaskID: taskID, TS: time.Now(), Stage: progress.StageTaskStart, Kind: scrape.KindCategory}
	done := progress.Event{TaskID: taskID, TS: time.Now(), Stage: progress.StageTaskDone, Kind: scrape.KindCategory}

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{start}))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.tasksRunning))

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{done, done}))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.tasksRunning))

	// Duplicate start for the same task does not double-count either.
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{start, start}))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.tasksRunning))
}

// TestPrometheusSinkResultLabels checks each terminal stage maps to its result label.
func TestPrometheusSinkResultLabels(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	events := []progress.Event{
		{TaskID: progress.UUIDToBytes(uuid.New()), TS: time.Now(), Stage: progress.StageTaskError, Kind: scrape.KindSearch},
		{TaskID: progress.UUIDToBytes(uuid.New()), TS: time.Now(), Stage: progress.StageTaskStop, Kind: scrape.KindSearch},
	}
	require.NoError(t, sink.Consume(context.Background(), events))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.tasksCompleted.WithLabelValues("search", "failed")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.tasksCompleted.WithLabelValues("search", "stopped")))
}
