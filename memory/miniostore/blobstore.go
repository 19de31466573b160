// Package miniostore keeps memory media in an S3-compatible bucket.
package miniostore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"github.com/aschepis/backscratcher/lifelog/memory"
)

// Options configures a BlobStore.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Secure    bool
}

func (o Options) validate() error {
	if o.Endpoint == "" {
		return errors.New("minio endpoint is required")
	}
	if o.Bucket == "" {
		return errors.New("minio bucket is required")
	}
	return nil
}

// BlobStore implements memory.BlobStore on top of MinIO.
type BlobStore struct {
	client *minio.Client
	bucket string
	logger zerolog.Logger
}

var _ memory.BlobStore = (*BlobStore)(nil)

// New connects to the endpoint and creates the bucket when it is missing.
func New(ctx context.Context, opts Options, logger zerolog.Logger) (*BlobStore, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", opts.Bucket, err)
		}
		logger.Info().Str("bucket", opts.Bucket).Msg("created media bucket")
	}

	return &BlobStore{client: client, bucket: opts.Bucket, logger: logger}, nil
}

// Put uploads data under key.
func (b *BlobStore) Put(ctx context.Context, key, mimeType string, data []byte) error {
	_, err := b.client.PutObject(ctx, b.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: mimeType})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	b.logger.Debug().Str("key", key).Int("bytes", len(data)).Msg("media uploaded")
	return nil
}

// Open streams an object. The returned handle must be closed.
func (b *BlobStore) Open(ctx context.Context, key string) (*memory.MediaHandle, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapError(key, err)
	}
	// GetObject is lazy; Stat surfaces a missing key.
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, mapError(key, err)
	}
	return &memory.MediaHandle{
		ReadCloser: obj,
		MIMEType:   info.ContentType,
		Size:       info.Size,
	}, nil
}

// Delete removes an object. Removing a missing key is not an error.
func (b *BlobStore) Delete(ctx context.Context, key string) error {
	if err := b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

func mapError(key string, err error) error {
	if isNotFound(err) {
		return memory.ErrNotFound
	}
	return fmt.Errorf("get object %s: %w", key, err)
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}
