// Package history persists the list of recently loaded archives across
// sessions, so a browsing session can offer the files the previous one
// worked on.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/firnlab/firn/internal/logger"
)

var log = logger.WithScope("history")

// Entry records one loaded archive. FileName is the backing path exactly
// as it was loaded, which also serves as the entry's identity: touching
// the same path again refreshes the timestamp instead of duplicating.
type Entry struct {
	FileName string    `json:"file_name"`
	Format   string    `json:"format"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Keys are namespaced with the "r:" prefix so other record types can share
// the database later without colliding.
const recentPrefix = "r:"

// Store is a BadgerDB-backed recent-files list, capped to a fixed number
// of entries. Writes beyond the cap evict the oldest entries.
type Store struct {
	db    *badger.DB
	limit int
}

// Open opens (or creates) the history database at dir. An empty dir opens
// a purely in-memory store, used by tests and by sessions that disable
// persistence. limit caps how many entries List returns and Touch keeps.
func Open(dir string, limit int) (*Store, error) {
	if limit < 1 {
		return nil, fmt.Errorf("history limit must be positive, got %d", limit)
	}

	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	// History entries are tiny; skip compression and keep badger quiet.
	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithCompression(options.None)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening history database at %s: %w", dir, err)
	}
	log.Debug("history database open at %q (limit %d)", dir, limit)
	return &Store{db: db, limit: limit}, nil
}

// Touch records that fileName was loaded as format just now, refreshing
// the entry if the path is already present, and evicts the oldest entries
// beyond the store's limit.
func (s *Store) Touch(fileName, format string) error {
	if fileName == "" {
		return errors.New("history entry needs a file name")
	}
	entry := Entry{FileName: fileName, Format: format, LoadedAt: time.Now().UTC()}
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding history entry for %s: %w", fileName, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(recentPrefix+fileName), value); err != nil {
			return err
		}
		return s.evictLocked(txn)
	})
	if err != nil {
		return fmt.Errorf("recording %s: %w", fileName, err)
	}
	return nil
}

// List returns the recorded entries, most recently loaded first, capped at
// the store's limit.
func (s *Store) List() ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		entries, err = scanEntries(txn)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LoadedAt.After(entries[j].LoadedAt)
	})
	if len(entries) > s.limit {
		entries = entries[:s.limit]
	}
	return entries, nil
}

// Remove drops the entry for fileName. Removing an absent entry is not an
// error.
func (s *Store) Remove(fileName string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(recentPrefix + fileName))
	})
	if err != nil {
		return fmt.Errorf("removing %s from history: %w", fileName, err)
	}
	return nil
}

// Close releases the database. The store is unusable afterwards.
func (s *Store) Close() error {
	return s.db.Close()
}

// evictLocked deletes the oldest entries beyond the limit. Runs inside the
// caller's update transaction.
func (s *Store) evictLocked(txn *badger.Txn) error {
	entries, err := scanEntries(txn)
	if err != nil {
		return err
	}
	if len(entries) <= s.limit {
		return nil
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LoadedAt.After(entries[j].LoadedAt)
	})
	for _, stale := range entries[s.limit:] {
		if err := txn.Delete([]byte(recentPrefix + stale.FileName)); err != nil {
			return err
		}
		log.Debug("evicted %s from history", stale.FileName)
	}
	return nil
}

// scanEntries reads every recent-file record in the transaction.
func scanEntries(txn *badger.Txn) ([]Entry, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(recentPrefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	var entries []Entry
	for it.Rewind(); it.Valid(); it.Next() {
		var entry Entry
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
		if err != nil {
			return nil, fmt.Errorf("decoding history entry %q: %w", it.Item().Key(), err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
