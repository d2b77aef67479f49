package storage

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"gitlab.com/tozd/go/errors"
)

// Key prefixes for different data types
const (
	prefixResult = "r:" // sha256 -> entry JSON
	prefixPath   = "p:" // path -> sha256
)

// BadgerBackend is a BadgerDB-backed cache.
type BadgerBackend struct {
	db          *badger.DB
	initialized bool
	mu          sync.RWMutex
	now         func() time.Time
}

// NewBadgerBackend creates a new BadgerDB backend.
func NewBadgerBackend() *BadgerBackend {
	return &BadgerBackend{now: time.Now}
}

// Initialize opens or creates the BadgerDB database at the given path.
func (b *BadgerBackend) Initialize(path string, readOnly bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithLoggingLevel(badger.ERROR) // Suppress INFO/WARNING logs

	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	var err error
	b.db, err = badger.Open(opts)
	if err != nil {
		return errors.Errorf("opening badger DB: %w", err)
	}

	b.initialized = true
	return nil
}

// Close releases all resources held by the backend.
func (b *BadgerBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}

	err := b.db.Close()
	b.db = nil
	b.initialized = false
	return err
}

// SaveResult stores the entry and points the path index at it.
func (b *BadgerBackend) SaveResult(ctx context.Context, entry *Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return ErrNotInitialized
	}

	stored := *entry
	if stored.SavedAt.IsZero() {
		stored.SavedAt = b.now().UTC()
	}

	data, err := json.Marshal(&stored)
	if err != nil {
		return errors.Errorf("marshaling entry: %w", err)
	}

	txn := b.db.NewTransaction(true)
	defer txn.Discard()

	if err := txn.Set(resultKey(stored.SHA256), data); err != nil {
		return errors.Errorf("setting result: %w", err)
	}
	if err := txn.Set(pathKey(stored.Path), []byte(stored.SHA256)); err != nil {
		return errors.Errorf("setting path index: %w", err)
	}

	return txn.Commit()
}

// LoadResult returns the entry for a digest, or nil if it is not cached.
func (b *BadgerBackend) LoadResult(ctx context.Context, sha256 string) (*Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.initialized {
		return nil, ErrNotInitialized
	}

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	return getEntry(txn, sha256)
}

func getEntry(txn *badger.Txn, sha256 string) (*Entry, error) {
	item, err := txn.Get(resultKey(sha256))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Errorf("getting result: %w", err)
	}

	var entry Entry
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &entry)
	}); err != nil {
		return nil, errors.Errorf("unmarshaling result: %w", err)
	}
	return &entry, nil
}

// ListResults walks the path index. Paths whose result is gone are skipped.
func (b *BadgerBackend) ListResults(ctx context.Context) ([]*Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.initialized {
		return nil, ErrNotInitialized
	}

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	index, err := b.pathIndex(txn)
	if err != nil {
		return nil, err
	}

	var entries []*Entry
	for path, sha := range index {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, err := getEntry(txn, sha)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			continue
		}
		entry.Path = path
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// pathIndex reads every p: key into a path -> sha256 map.
func (b *BadgerBackend) pathIndex(txn *badger.Txn) (map[string]string, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixPath)
	it := txn.NewIterator(opts)
	defer it.Close()

	index := make(map[string]string)
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		path := strings.TrimPrefix(string(item.Key()), prefixPath)
		val, err := item.ValueCopy(nil)
		if err != nil {
			return nil, errors.Errorf("reading path index: %w", err)
		}
		index[path] = string(val)
	}
	return index, nil
}

// RemoveResult deletes the path index entry and the result it points to.
func (b *BadgerBackend) RemoveResult(ctx context.Context, path string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return false, ErrNotInitialized
	}

	txn := b.db.NewTransaction(true)
	defer txn.Discard()

	item, err := txn.Get(pathKey(path))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Errorf("getting path index: %w", err)
	}
	sha, err := item.ValueCopy(nil)
	if err != nil {
		return false, errors.Errorf("reading path index: %w", err)
	}

	if err := txn.Delete(pathKey(path)); err != nil {
		return false, errors.Errorf("deleting path index: %w", err)
	}
	if err := txn.Delete(resultKey(string(sha))); err != nil {
		return false, errors.Errorf("deleting result: %w", err)
	}

	return true, txn.Commit()
}

// Clear drops all data.
func (b *BadgerBackend) Clear(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return 0, ErrNotInitialized
	}

	txn := b.db.NewTransaction(false)
	index, err := b.pathIndex(txn)
	txn.Discard()
	if err != nil {
		return 0, err
	}

	if err := b.db.DropAll(); err != nil {
		return 0, errors.Errorf("dropping cache: %w", err)
	}
	return len(index), nil
}

func resultKey(sha256 string) []byte {
	return []byte(prefixResult + sha256)
}

func pathKey(path string) []byte {
	return []byte(prefixPath + path)
}
