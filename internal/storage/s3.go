/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package storage

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/Seednode/gamenight/internal/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Client captures the subset of the AWS SDK client used by S3Store.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Store keeps the snapshot as one JSON object in an S3-compatible bucket.
// Commits are conditional writes: If-Match on the ETag that was read, or
// If-None-Match for the very first write.
type S3Store struct {
	client S3Client
	bucket string
	key    string
}

func NewS3Store(client S3Client, bucket, key string) *S3Store {
	if key == "" {
		key = "gamenight/state.json"
	}
	return &S3Store{client: client, bucket: bucket, key: key}
}

// fetch returns the stored snapshot and its ETag; a missing object yields an
// empty snapshot and an empty ETag.
func (s *S3Store) fetch(ctx context.Context) (*models.Snapshot, string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &s.key,
	})
	if err != nil {
		var notFound *types.NoSuchKey
		if errors.As(err, &notFound) {
			return &models.Snapshot{}, "", nil
		}
		return nil, "", err
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", err
	}

	snap, err := decodeSnapshot(raw)
	if err != nil {
		return nil, "", err
	}

	return snap, aws.ToString(out.ETag), nil
}

func (s *S3Store) Load(ctx context.Context) (*models.Snapshot, error) {
	snap, _, err := s.fetch(ensureCtx(ctx))
	if err != nil {
		return nil, unavailable("s3 load", err)
	}
	return snap, nil
}

func (s *S3Store) Commit(ctx context.Context, expected uint64, next *models.Snapshot) error {
	ctx = ensureCtx(ctx)

	current, etag, err := s.fetch(ctx)
	if err != nil {
		return unavailable("s3 commit", err)
	}
	if current.Version != expected {
		return ErrConflict
	}

	stored := next.Clone()
	stored.Version = expected + 1

	data, err := encodeSnapshot(stored)
	if err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &s.key,
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}
	if etag == "" {
		input.IfNoneMatch = aws.String("*")
	} else {
		input.IfMatch = aws.String(etag)
	}

	_, err = s.client.PutObject(ctx, input)
	if err != nil {
		if isPreconditionFailure(err) {
			return ErrConflict
		}
		return unavailable("s3 commit", err)
	}

	next.Version = stored.Version

	return nil
}

func isPreconditionFailure(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	switch apiErr.ErrorCode() {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	}

	return false
}

func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ensureCtx(ctx), &s3.HeadBucketInput{Bucket: &s.bucket})
	if err != nil {
		return unavailable("s3 ping", err)
	}
	return nil
}

func (s *S3Store) Close() error {
	return nil
}
