package scrape

import (
	"context"
	"time"
)

// Extractor converts one listing page into structured records. FetchPage may
// fail transiently per page; callers decide whether to retry or skip.
type Extractor interface {
	FetchPage(ctx context.Context, request PageRequest) ([]Record, error)
	Close() error
}

// ExtractorFactory builds a fresh Extractor per task. A returned error is a
// setup failure and aborts the whole task.
type ExtractorFactory interface {
	New(ctx context.Context) (Extractor, error)
}

// SessionStore durably records task outcome summaries. Every method is
// best-effort from the caller's perspective: a failure is logged, never
// surfaced as a task failure.
type SessionStore interface {
	CreateSession(ctx context.Context, summary SessionSummary) error
	UpdateSession(ctx context.Context, summary SessionSummary) error
	CompleteSession(ctx context.Context, summary SessionSummary) error
}

// ResultArchive writes a finished task's records somewhere durable and
// returns a URI for the stored object.
type ResultArchive interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for archive object keys.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces task IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
