package session

import (
	"context"

	"github.com/Dev-pucci/webscraping-app/internal/scrape"
)

// NoOpStore discards every session write. Used when durable session history
// is disabled.
type NoOpStore struct{}

// NewNoOpStore builds the store.
func NewNoOpStore() *NoOpStore { return &NoOpStore{} }

// CreateSession discards the row.
func (*NoOpStore) CreateSession(context.Context, scrape.SessionSummary) error { return nil }

// UpdateSession discards the row.
func (*NoOpStore) UpdateSession(context.Context, scrape.SessionSummary) error { return nil }

// CompleteSession discards the row.
func (*NoOpStore) CompleteSession(context.Context, scrape.SessionSummary) error { return nil }
