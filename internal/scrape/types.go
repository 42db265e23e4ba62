// Package scrape defines core types shared across subsystems.
package scrape

import (
	"time"
)

// TaskStatus represents the lifecycle state of a scrape task.
type TaskStatus string

// Task status values held in the task store.
const (
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
	StatusStopped   TaskStatus = "stopped"
)

// Terminal reports whether no further transitions are possible.
func (s TaskStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusStopped:
		return true
	default:
		return false
	}
}

// TaskKind selects which scrape plan a task executes.
type TaskKind string

// Supported task kinds.
const (
	KindSearch   TaskKind = "search"
	KindCategory TaskKind = "category"
)

// TaskParams captures the client-supplied inputs for one task.
type TaskParams struct {
	Query       string `json:"query,omitempty"`
	CategoryURL string `json:"category_url,omitempty"`
	MaxPages    int    `json:"max_pages"`
}

// Unknown marks a record field the extractor could not populate. Readers can
// rely on every string field carrying either a value or this marker, never an
// empty string with field-specific meaning.
const Unknown = "N/A"

// Record is one structured item extracted from a listing page.
type Record struct {
	Name          string   `json:"name"`
	Price         string   `json:"price"`
	OriginalPrice string   `json:"original_price"`
	Discount      string   `json:"discount"`
	Rating        string   `json:"rating"`
	ReviewsCount  string   `json:"reviews_count"`
	ImageURL      string   `json:"image_url"`
	ProductURL    string   `json:"product_url"`
	Brand         string   `json:"brand"`
	Category      string   `json:"category"`
	ShippingInfo  string   `json:"shipping_info"`
	Badges        []string `json:"badges"`
}

// NewRecord returns a Record with every field set to the Unknown marker.
func NewRecord() Record {
	return Record{
		Name:          Unknown,
		Price:         Unknown,
		OriginalPrice: Unknown,
		Discount:      Unknown,
		Rating:        Unknown,
		ReviewsCount:  Unknown,
		ImageURL:      Unknown,
		ProductURL:    Unknown,
		Brand:         Unknown,
		Category:      Unknown,
		ShippingInfo:  Unknown,
		Badges:        []string{},
	}
}

// Task is the unit of work and its observable state. Snapshots returned by
// the task store are deep copies; mutating one never affects stored state.
type Task struct {
	ID          string     `json:"task_id"`
	Kind        TaskKind   `json:"kind"`
	Params      TaskParams `json:"params"`
	Status      TaskStatus `json:"status"`
	Progress    int        `json:"progress"`
	Message     string     `json:"message"`
	Records     []Record   `json:"records"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ErrorText   string     `json:"error,omitempty"`
}

// Summary returns the bounded-history shape of the task.
func (t Task) Summary() TaskSummary {
	return TaskSummary{
		ID:          t.ID,
		Kind:        t.Kind,
		Query:       t.Params.Query,
		CategoryURL: t.Params.CategoryURL,
		Status:      t.Status,
		Progress:    t.Progress,
		Message:     t.Message,
		RecordCount: len(t.Records),
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
	}
}

// TaskSummary is the listing/history projection of a task. It drops the full
// record slice so history stays bounded.
type TaskSummary struct {
	ID          string     `json:"task_id"`
	Kind        TaskKind   `json:"kind"`
	Query       string     `json:"query,omitempty"`
	CategoryURL string     `json:"category_url,omitempty"`
	Status      TaskStatus `json:"status"`
	Progress    int        `json:"progress"`
	Message     string     `json:"message"`
	RecordCount int        `json:"record_count"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// PageRequest describes one listing page for an Extractor.
type PageRequest struct {
	Kind        TaskKind
	Query       string
	CategoryURL string
	Page        int
}

// Stats aggregates task outcomes. Counters are monotonic and independent of
// the bounded listing history.
type Stats struct {
	TotalTasks     int     `json:"total_tasks"`
	CompletedTasks int     `json:"completed_tasks"`
	FailedTasks    int     `json:"failed_tasks"`
	StoppedTasks   int     `json:"stopped_tasks"`
	ActiveTasks    int     `json:"active_tasks"`
	TotalRecords   int     `json:"total_records"`
	SuccessRate    float64 `json:"success_rate"`
}

// SessionSummary is the durable projection written to a SessionStore.
type SessionSummary struct {
	TaskID      string
	Kind        TaskKind
	Query       string
	CategoryURL string
	Status      TaskStatus
	Progress    int
	Message     string
	Pages       int
	RecordCount int
	ErrorText   string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// CloneRecords deep-copies a record slice, including each badge list, so
// callers never share backing arrays across the store boundary.
func CloneRecords(src []Record) []Record {
	if src == nil {
		return nil
	}
	out := make([]Record, len(src))
	copy(out, src)
	for i := range out {
		if src[i].Badges != nil {
			out[i].Badges = append([]string(nil), src[i].Badges...)
		}
	}
	return out
}
