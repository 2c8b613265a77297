// Package badger implements persistence.Store on an embedded BadgerDB.
//
// Records are stored as JSON under slash separated keys:
//
//	poll/<id>                               poll record
//	openpoll/<channel>                      id of the channel's open poll
//	chanpoll/<channel>/<created>/<id>       creation index per channel
//	resp/<poll>/<participant>               response record
//	cfg/<guild>                             guild configuration
//	pref/<guild>/<participant>              timezone preference
//	mark/<poll>/<participant>/<interval>    reminder mark
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/example/weekend-scheduler/internal/persistence"
)

const maxConflictRetries = 8

// Store is a BadgerDB backed persistence.Store.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ persistence.Store = (*Store)(nil)

// Open opens or creates a database in dataDir.
func Open(dataDir string, logger *slog.Logger) (*Store, error) {
	absPath, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("badger: failed to get absolute path: %w", err)
	}
	opts := badger.DefaultOptions(absPath)
	opts.Logger = nil
	return open(opts, logger)
}

// OpenInMemory opens a database that lives only in memory.
func OpenInMemory(logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts, logger)
}

func open(opts badger.Options, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: failed to open: %w", err)
	}
	return &Store{db: db, logger: logger.With("component", "badger")}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports whether the database is usable.
func (s *Store) Ping(context.Context) error {
	if s.db == nil || s.db.IsClosed() {
		return errors.New("badger: database closed")
	}
	return nil
}

// RunGC runs value log garbage collection once.
func (s *Store) RunGC() error {
	err := s.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}

// StartGC runs garbage collection every interval until ctx is cancelled.
func (s *Store) StartGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.db.Opts().InMemory {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.RunGC(); err != nil {
					s.logger.ErrorContext(ctx, "badger gc failed", "error", err)
				}
			}
		}
	}()
}

// update runs fn in a read-write transaction, retrying on write conflicts
// so concurrent writers serialise.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.db.Update(fn)
		if errors.Is(err, badger.ErrConflict) && attempt < maxConflictRetries {
			continue
		}
		return err
	}
}

func (s *Store) view(fn func(txn *badger.Txn) error) error {
	return s.db.View(fn)
}

func getJSON(txn *badger.Txn, key string, value any) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return persistence.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, value)
	})
}

func setJSON(txn *badger.Txn, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("badger: failed to marshal %s: %w", key, err)
	}
	return txn.Set([]byte(key), data)
}

func exists(txn *badger.Txn, key string) (bool, error) {
	_, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// scanPrefix calls fn with the key and value of every entry under prefix.
func scanPrefix(txn *badger.Txn, prefix string, fn func(key string, val []byte) error) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	p := []byte(prefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(string(item.KeyCopy(nil)), val); err != nil {
			return err
		}
	}
	return nil
}

// keysWithPrefix lists keys under prefix without fetching values.
func keysWithPrefix(txn *badger.Txn, prefix string) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	p := []byte(prefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

func pollKey(id string) string { return "poll/" + id }

func openPollKey(channelID string) string { return "openpoll/" + channelID }

func channelIndexPrefix(channelID string) string { return "chanpoll/" + channelID + "/" }

func channelIndexKey(channelID string, createdAt time.Time, id string) string {
	return fmt.Sprintf("%s%020d/%s", channelIndexPrefix(channelID), createdAt.UTC().UnixNano(), id)
}

func responsePrefix(pollID string) string { return "resp/" + pollID + "/" }

func responseKey(pollID, participantID string) string { return responsePrefix(pollID) + participantID }

func configKey(guildID string) string { return "cfg/" + guildID }

func preferencePrefix(guildID string) string { return "pref/" + guildID + "/" }

func preferenceKey(guildID, participantID string) string {
	return preferencePrefix(guildID) + participantID
}

func markPrefix(pollID string) string { return "mark/" + pollID + "/" }

func markKey(pollID, participantID string, interval int) string {
	return fmt.Sprintf("%s%s/%06d", markPrefix(pollID), participantID, interval)
}
