package session

import (
	"context"
	"sync"

	"github.com/Dev-pucci/webscraping-app/internal/scrape"
)

// MemoryStore keeps session rows in a map. Used in standalone mode and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]scrape.SessionSummary
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]scrape.SessionSummary)}
}

// CreateSession stores the row, keeping an existing row intact like the
// Postgres store's ON CONFLICT DO NOTHING.
func (s *MemoryStore) CreateSession(_ context.Context, summary scrape.SessionSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[summary.TaskID]; !exists {
		s.sessions[summary.TaskID] = summary
	}
	return nil
}

// UpdateSession overwrites the mutable fields of an existing row.
func (s *MemoryStore) UpdateSession(_ context.Context, summary scrape.SessionSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, exists := s.sessions[summary.TaskID]
	if !exists {
		return nil
	}
	row.Status = summary.Status
	row.Progress = summary.Progress
	row.Message = summary.Message
	row.RecordCount = summary.RecordCount
	s.sessions[summary.TaskID] = row
	return nil
}

// CompleteSession writes the terminal fields of an existing row.
func (s *MemoryStore) CompleteSession(_ context.Context, summary scrape.SessionSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, exists := s.sessions[summary.TaskID]
	if !exists {
		return nil
	}
	row.Status = summary.Status
	row.Progress = summary.Progress
	row.Message = summary.Message
	row.RecordCount = summary.RecordCount
	row.ErrorText = summary.ErrorText
	row.CompletedAt = summary.CompletedAt
	s.sessions[summary.TaskID] = row
	return nil
}

// Get returns the stored row, if any.
func (s *MemoryStore) Get(taskID string) (scrape.SessionSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.sessions[taskID]
	return row, ok
}

// Len reports the number of stored rows.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
