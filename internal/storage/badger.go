/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Seednode/gamenight/internal/models"
	badger "github.com/dgraph-io/badger/v4"
)

var badgerStateKey = []byte("gamenight:state")

// BadgerStore keeps the snapshot under one key of an embedded badger
// database. Badger's serializable transactions reject a commit whose read set
// was modified concurrently, which is mapped onto ErrConflict.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewBadgerStore opens the database in dir, creating it if needed. An empty
// dir runs badger in memory.
func NewBadgerStore(dir string, logger *slog.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	opts := badger.DefaultOptions(dir).
		WithLogger(&badgerLogger{logger: logger}).
		// The default INFO logging is a bit verbose
		WithLoggingLevel(badger.WARNING)

	if dir == "" {
		opts = opts.WithInMemory(true)
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &BadgerStore{db: db, logger: logger}, nil
}

func readBadgerState(txn *badger.Txn) (*models.Snapshot, error) {
	item, err := txn.Get(badgerStateKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return &models.Snapshot{}, nil
	}
	if err != nil {
		return nil, err
	}

	var snap *models.Snapshot
	err = item.Value(func(val []byte) error {
		snap, err = decodeSnapshot(val)
		return err
	})

	return snap, err
}

func (s *BadgerStore) Load(ctx context.Context) (*models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("badger load", err)
	}

	var snap *models.Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		snap, err = readBadgerState(txn)
		return err
	})
	if err != nil {
		return nil, unavailable("badger load", err)
	}

	return snap, nil
}

func (s *BadgerStore) Commit(ctx context.Context, expected uint64, next *models.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return unavailable("badger commit", err)
	}

	stored := next.Clone()
	stored.Version = expected + 1

	data, err := encodeSnapshot(stored)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		current, err := readBadgerState(txn)
		if err != nil {
			return err
		}
		if current.Version != expected {
			return ErrConflict
		}
		return txn.Set(badgerStateKey, data)
	})

	switch {
	case err == nil:
		next.Version = stored.Version
		return nil
	case errors.Is(err, ErrConflict), errors.Is(err, badger.ErrConflict):
		return ErrConflict
	default:
		return unavailable("badger commit", err)
	}
}

func (s *BadgerStore) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return unavailable("badger ping", errors.New("database closed"))
	}
	return nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// badgerLogger forwards badger's printf-style logging to slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "badger")
}
