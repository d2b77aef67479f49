// Package storage caches analysis results keyed by the SHA-256 of the
// analyzed source.
//
// It defines the Backend interface that cache implementations satisfy,
// along with the Entry type they store.
package storage

import (
	"context"
	"encoding/json"
	"time"

	"gitlab.com/tozd/go/errors"
)

// ErrNotInitialized is returned by backends used before Initialize.
var ErrNotInitialized = errors.Base("storage backend not initialized")

// Entry is one cached analysis.
type Entry struct {
	// Path is the file the result was computed for.
	Path string `json:"path"`

	// SHA256 is the hex digest of the analyzed source.
	SHA256 string `json:"sha256"`

	// SavedAt is when the entry was written.
	SavedAt time.Time `json:"saved_at"`

	// Result is the JSON-encoded analysis result.
	Result json.RawMessage `json:"result"`
}

// Size returns the byte size of the encoded result.
func (e *Entry) Size() int {
	return len(e.Result)
}

// Backend defines the interface for cache implementations.
//
// Implementations must be thread-safe and support concurrent access.
type Backend interface {
	// Initialize opens or creates the cache at the given path.
	// If readOnly is true, the backend is opened in read-only mode.
	Initialize(path string, readOnly bool) error

	// Close releases all resources held by the backend.
	Close() error

	// SaveResult stores an entry under its digest and indexes it by path.
	SaveResult(ctx context.Context, entry *Entry) error

	// LoadResult returns the entry for a digest, or nil if none is cached.
	LoadResult(ctx context.Context, sha256 string) (*Entry, error)

	// ListResults returns the latest entry per path, ordered by path.
	ListResults(ctx context.Context) ([]*Entry, error)

	// RemoveResult drops the entry indexed under path. It reports whether
	// anything was removed.
	RemoveResult(ctx context.Context, path string) (bool, error)

	// Clear drops every entry and returns how many paths were indexed.
	Clear(ctx context.Context) (int, error)
}
