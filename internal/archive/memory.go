package archive

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemoryArchive keeps objects in a map. Used in standalone mode and tests.
type MemoryArchive struct {
	mu      sync.RWMutex
	objects map[string][]byte
	types   map[string]string
}

// NewMemoryArchive builds an empty archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

// PutObject stores a copy of data and returns a mem:// URI.
func (a *MemoryArchive) PutObject(_ context.Context, path string, contentType string, data []byte) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	a.mu.Lock()
	a.objects[path] = append([]byte(nil), data...)
	a.types[path] = contentType
	a.mu.Unlock()
	return "mem://" + path, nil
}

// Object returns the stored bytes and content type for a path.
func (a *MemoryArchive) Object(path string) ([]byte, string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	data, ok := a.objects[path]
	if !ok {
		return nil, "", false
	}
	return append([]byte(nil), data...), a.types[path], true
}

// Len reports the number of stored objects.
func (a *MemoryArchive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.objects)
}
