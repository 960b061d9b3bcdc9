/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Seednode/gamenight/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the snapshot as a single JSON value and commits it inside
// a WATCH/MULTI transaction, so concurrent writers from any number of
// processes are serialized by version.
type RedisStore struct {
	rdb       redis.UniversalClient
	keyPrefix string
}

func NewRedisStore(rdb redis.UniversalClient, keyPrefix string) *RedisStore {
	return &RedisStore{rdb: rdb, keyPrefix: keyPrefix}
}

func (s *RedisStore) key(parts ...string) string {
	if s.keyPrefix == "" {
		return fmt.Sprintf("gamenight:%s", strings.Join(parts, ":"))
	}
	return fmt.Sprintf("%s:%s", s.keyPrefix, strings.Join(parts, ":"))
}

func encodeSnapshot(snap *models.Snapshot) ([]byte, error) {
	return json.Marshal(snap)
}

func decodeSnapshot(raw []byte) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

func (s *RedisStore) Load(ctx context.Context) (*models.Snapshot, error) {
	ctx = ensureCtx(ctx)

	raw, err := s.rdb.Get(ctx, s.key("state")).Bytes()
	if errors.Is(err, redis.Nil) {
		return &models.Snapshot{}, nil
	}
	if err != nil {
		return nil, unavailable("redis load", err)
	}

	snap, err := decodeSnapshot(raw)
	if err != nil {
		return nil, unavailable("redis load", err)
	}

	return snap, nil
}

func (s *RedisStore) Commit(ctx context.Context, expected uint64, next *models.Snapshot) error {
	ctx = ensureCtx(ctx)

	key := s.key("state")

	stored := next.Clone()
	stored.Version = expected + 1

	data, err := encodeSnapshot(stored)
	if err != nil {
		return err
	}

	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		var current uint64

		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			snap, err := decodeSnapshot(raw)
			if err != nil {
				return err
			}
			current = snap.Version
		}

		if current != expected {
			return ErrConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return pipe.Set(ctx, key, data, 0).Err()
		})
		return err
	}, key)

	switch {
	case err == nil:
		next.Version = stored.Version
		return nil
	case errors.Is(err, ErrConflict), errors.Is(err, redis.TxFailedErr):
		return ErrConflict
	default:
		return unavailable("redis commit", err)
	}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ensureCtx(ctx)).Err(); err != nil {
		return unavailable("redis ping", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
