// Package progress defines the event structures emitted by the task store.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Dev-pucci/webscraping-app/internal/scrape"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageTaskStart    Stage = "TASK_START"
	StageTaskProgress Stage = "TASK_PROGRESS"
	StageTaskDone     Stage = "TASK_DONE"
	StageTaskError    Stage = "TASK_ERROR"
	StageTaskStop     Stage = "TASK_STOP"
)

// Event captures a single milestone in a scrape task's lifecycle.
type Event struct {
	// TaskID uniquely identifies a task using the 16-byte UUID form.
	TaskID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle milestone occurred.
	Stage Stage
	// Kind is the task's job kind (search or category).
	Kind scrape.TaskKind
	// Progress carries the 0-100 completion estimate.
	Progress int
	// Records carries the cumulative record count at this milestone.
	Records int64
	// Dur captures wall time for terminal events.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.TaskID == [16]byte{} {
		return errors.New("task id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageTaskStart, StageTaskProgress, StageTaskDone, StageTaskError, StageTaskStop:
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Progress < 0 || e.Progress > 100 {
		return fmt.Errorf("progress %d out of range", e.Progress)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// TaskUUID converts the binary task ID to uuid.UUID for repositories.
func (e Event) TaskUUID() uuid.UUID {
	return uuid.UUID(e.TaskID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
