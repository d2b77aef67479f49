package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryBackend is an in-memory implementation of Backend for testing.
type MemoryBackend struct {
	mu      sync.RWMutex
	results map[string]*Entry // sha256 -> entry
	paths   map[string]string // path -> sha256
}

// NewMemoryBackend creates a new in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		results: make(map[string]*Entry),
		paths:   make(map[string]string),
	}
}

// Initialize implements Backend.
func (m *MemoryBackend) Initialize(path string, readOnly bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.results == nil {
		m.results = make(map[string]*Entry)
		m.paths = make(map[string]string)
	}
	return nil
}

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = nil
	m.paths = nil
	return nil
}

// SaveResult implements Backend.
func (m *MemoryBackend) SaveResult(ctx context.Context, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.results == nil {
		return ErrNotInitialized
	}

	stored := *entry
	m.results[entry.SHA256] = &stored
	m.paths[entry.Path] = entry.SHA256
	return nil
}

// LoadResult implements Backend.
func (m *MemoryBackend) LoadResult(ctx context.Context, sha256 string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.results == nil {
		return nil, ErrNotInitialized
	}

	entry, ok := m.results[sha256]
	if !ok {
		return nil, nil
	}
	out := *entry
	return &out, nil
}

// ListResults implements Backend.
func (m *MemoryBackend) ListResults(ctx context.Context) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.results == nil {
		return nil, ErrNotInitialized
	}

	var entries []*Entry
	for path, sha := range m.paths {
		entry, ok := m.results[sha]
		if !ok {
			continue
		}
		out := *entry
		out.Path = path
		entries = append(entries, &out)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// RemoveResult implements Backend.
func (m *MemoryBackend) RemoveResult(ctx context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.results == nil {
		return false, ErrNotInitialized
	}

	sha, ok := m.paths[path]
	if !ok {
		return false, nil
	}
	delete(m.paths, path)
	delete(m.results, sha)
	return true, nil
}

// Clear implements Backend.
func (m *MemoryBackend) Clear(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.results == nil {
		return 0, ErrNotInitialized
	}

	n := len(m.paths)
	m.results = make(map[string]*Entry)
	m.paths = make(map[string]string)
	return n, nil
}
