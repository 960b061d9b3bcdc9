/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Seednode/gamenight/internal/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
)

// openStore returns the backend selected by --store.
func openStore(cfg *Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.store {
	case "memory":
		return storage.NewInMemoryStore(), nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		return storage.NewRedisStore(rdb, cfg.redisPrefix), nil
	case "sqlite":
		return storage.NewSQLiteStore(cfg.sqlitePath, logger)
	case "badger":
		return storage.NewBadgerStore(cfg.badgerDir, logger)
	case "s3":
		return storage.NewS3Store(newS3Client(cfg), cfg.s3Bucket, cfg.s3Key), nil
	}

	return nil, fmt.Errorf("unknown store: %s", cfg.store)
}

func newS3Client(cfg *Config) *s3.Client {
	opts := s3.Options{
		Region:      cfg.s3Region,
		Credentials: aws.AnonymousCredentials{},
	}

	if cfg.s3AccessKey != "" {
		accessKey, secretKey := cfg.s3AccessKey, cfg.s3SecretKey
		opts.Credentials = aws.NewCredentialsCache(aws.CredentialsProviderFunc(
			func(context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     accessKey,
					SecretAccessKey: secretKey,
					Source:          "gamenight",
				}, nil
			}))
	}

	// Self-hosted s3-compatible services rarely support virtual-hosted buckets.
	if cfg.s3Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.s3Endpoint)
		opts.UsePathStyle = true
	}

	return s3.New(opts)
}

func storeDescription(cfg *Config) string {
	switch cfg.store {
	case "redis":
		return "redis at " + cfg.redisAddr
	case "sqlite":
		return "sqlite at " + cfg.sqlitePath
	case "badger":
		return "badger at " + cfg.badgerDir
	case "s3":
		return "s3 bucket " + cfg.s3Bucket
	}
	return "memory"
}
