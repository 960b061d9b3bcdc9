/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Seednode/gamenight/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const cycleRowID = 1

// CycleRow is the single-row table holding the cycle record and the snapshot
// version used for optimistic concurrency.
type CycleRow struct {
	ID        uint `gorm:"primarykey"`
	Version   uint64
	LastReset int64
}

func (CycleRow) TableName() string {
	return "cycle"
}

// SlotRow is one seat of the current cycle.
type SlotRow struct {
	Position int    `gorm:"primarykey;autoIncrement:false"`
	Name     string `gorm:"uniqueIndex"`
	JoinedAt int64
}

func (SlotRow) TableName() string {
	return "slots"
}

// PreviousRow is one name from the previous cycle's final slot list.
type PreviousRow struct {
	Position int    `gorm:"primarykey;autoIncrement:false"`
	Name     string `gorm:"uniqueIndex"`
}

func (PreviousRow) TableName() string {
	return "previous_cycle"
}

// SQLiteStore persists the snapshot relationally. Commit bumps the cycle
// row's version with a conditional UPDATE and rewrites both name tables in the
// same transaction.
type SQLiteStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the database at path. An empty path uses
// a private in-memory database.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	dsn := ":memory:"
	if path != "" {
		dir := filepath.Dir(path)
		if _, err := os.Stat(dir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// One connection keeps an in-memory database alive and serializes
	// writers instead of surfacing SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)

	for _, model := range []any{&CycleRow{}, &SlotRow{}, &PreviousRow{}} {
		logger.Debug(fmt.Sprintf("creating table: %T", model), "component", "storage")
		if err := db.AutoMigrate(model); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func (s *SQLiteStore) Load(ctx context.Context) (*models.Snapshot, error) {
	ctx = ensureCtx(ctx)

	snap := &models.Snapshot{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cycle CycleRow
		result := tx.First(&cycle, cycleRowID)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil
		}
		if result.Error != nil {
			return result.Error
		}

		var slots []SlotRow
		if err := tx.Order("position").Find(&slots).Error; err != nil {
			return err
		}

		var previous []PreviousRow
		if err := tx.Order("position").Find(&previous).Error; err != nil {
			return err
		}

		snap.Version = cycle.Version
		snap.Cycle.LastReset = fromUnix(cycle.LastReset)
		for _, p := range previous {
			snap.Cycle.PreviousNames = append(snap.Cycle.PreviousNames, p.Name)
		}
		for _, row := range slots {
			snap.Slots = append(snap.Slots, models.SlotEntry{Name: row.Name, JoinedAt: fromUnix(row.JoinedAt)})
		}

		return nil
	})
	if err != nil {
		return nil, unavailable("sqlite load", err)
	}

	return snap, nil
}

func (s *SQLiteStore) Commit(ctx context.Context, expected uint64, next *models.Snapshot) error {
	ctx = ensureCtx(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var result *gorm.DB
		if expected == 0 {
			var count int64
			if err := tx.Model(&CycleRow{}).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return ErrConflict
			}
			result = tx.Create(&CycleRow{
				ID:        cycleRowID,
				Version:   1,
				LastReset: toUnix(next.Cycle.LastReset),
			})
		} else {
			result = tx.Model(&CycleRow{}).
				Where("id = ? AND version = ?", cycleRowID, expected).
				Updates(map[string]any{
					"version":    expected + 1,
					"last_reset": toUnix(next.Cycle.LastReset),
				})
		}
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrConflict
		}

		if err := tx.Where("1 = 1").Delete(&SlotRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&PreviousRow{}).Error; err != nil {
			return err
		}

		if len(next.Slots) > 0 {
			rows := make([]SlotRow, len(next.Slots))
			for i, e := range next.Slots {
				rows[i] = SlotRow{Position: i + 1, Name: e.Name, JoinedAt: toUnix(e.JoinedAt)}
			}
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}

		if len(next.Cycle.PreviousNames) > 0 {
			rows := make([]PreviousRow, len(next.Cycle.PreviousNames))
			for i, name := range next.Cycle.PreviousNames {
				rows[i] = PreviousRow{Position: i + 1, Name: name}
			}
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}

		return nil
	})

	switch {
	case err == nil:
		next.Version = expected + 1
		return nil
	case errors.Is(err, ErrConflict):
		return ErrConflict
	default:
		return unavailable("sqlite commit", err)
	}
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return unavailable("sqlite ping", err)
	}
	if err := sqlDB.PingContext(ensureCtx(ctx)); err != nil {
		return unavailable("sqlite ping", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
