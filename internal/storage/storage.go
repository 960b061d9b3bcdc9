/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/Seednode/gamenight/internal/models"
)

var (
	// ErrConflict is returned by Commit when the stored version no longer
	// matches the version the caller read.
	ErrConflict = errors.New("snapshot version conflict")

	// ErrUnavailable wraps every backend fault: unreachable, corrupt or
	// otherwise unusable storage.
	ErrUnavailable = errors.New("storage unavailable")
)

// DefaultAttempts bounds the optimistic retry loop in Update.
const DefaultAttempts = 5

// Store persists the cycle record and the slot list together.
//
// Load returns an empty snapshot with version 0 when nothing has been stored.
// Commit replaces the whole snapshot atomically, but only if the stored
// version still equals expected; on success the stored version (and
// next.Version) becomes expected+1, otherwise ErrConflict is returned and
// nothing is written.
type Store interface {
	Load(ctx context.Context) (*models.Snapshot, error)
	Commit(ctx context.Context, expected uint64, next *models.Snapshot) error
	Ping(ctx context.Context) error
	Close() error
}

func ensureCtx(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// Update reads the current snapshot, lets fn modify a private copy, and
// commits it. On ErrConflict the whole sequence is retried from a fresh read,
// up to attempts times. fn reports whether it changed anything; unchanged
// snapshots are not written. Errors returned by fn abort the update as-is.
func Update(ctx context.Context, st Store, attempts int, fn func(snap *models.Snapshot) (bool, error)) error {
	ctx = ensureCtx(ctx)
	if attempts < 1 {
		attempts = DefaultAttempts
	}

	for attempt := 1; ; attempt++ {
		current, err := st.Load(ctx)
		if err != nil {
			return err
		}

		next := current.Clone()

		changed, err := fn(next)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		err = st.Commit(ctx, current.Version, next)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrConflict) && attempt < attempts {
			continue
		}

		return err
	}
}

func ReadSlotList(ctx context.Context, st Store) (models.SlotList, error) {
	snap, err := st.Load(ensureCtx(ctx))
	if err != nil {
		return nil, err
	}

	return snap.Slots, nil
}

// WriteSlotList replaces the stored slot list, leaving the cycle record alone.
func WriteSlotList(ctx context.Context, st Store, slots models.SlotList) error {
	return Update(ctx, st, DefaultAttempts, func(snap *models.Snapshot) (bool, error) {
		snap.Slots = slots.Clone()
		return true, nil
	})
}

func ReadCycleRecord(ctx context.Context, st Store) (models.CycleRecord, error) {
	snap, err := st.Load(ensureCtx(ctx))
	if err != nil {
		return models.CycleRecord{}, err
	}

	return snap.Cycle, nil
}

// WriteCycleRecord replaces the stored cycle record, leaving the slot list alone.
func WriteCycleRecord(ctx context.Context, st Store, rec models.CycleRecord) error {
	return Update(ctx, st, DefaultAttempts, func(snap *models.Snapshot) (bool, error) {
		snap.Cycle = models.CycleRecord{
			LastReset:     rec.LastReset,
			PreviousNames: append([]string(nil), rec.PreviousNames...),
		}
		return true, nil
	})
}
