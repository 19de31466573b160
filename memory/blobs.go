package memory

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// BlobStore persists media payloads by key.
type BlobStore interface {
	Put(ctx context.Context, key, mimeType string, data []byte) error
	Open(ctx context.Context, key string) (*MediaHandle, error)
	Delete(ctx context.Context, key string) error
}

// MediaHandle is a scoped reader over one media payload. Callers must Close
// it on every path, typically with defer.
type MediaHandle struct {
	io.ReadCloser
	MIMEType string
	Size     int64
}

// SQLBlobStore keeps media in the media_blobs table of the record database.
type SQLBlobStore struct {
	db *sql.DB
}

// NewSQLBlobStore creates a SQLBlobStore.
func NewSQLBlobStore(db *sql.DB) *SQLBlobStore {
	return &SQLBlobStore{db: db}
}

// Put inserts or replaces a blob.
func (b *SQLBlobStore) Put(ctx context.Context, key, mimeType string, data []byte) error {
	query, args, err := StatementBuilder().
		Insert("media_blobs").
		Columns("key", "mime_type", "data", "created_at").
		Values(key, mimeType, data, time.Now().UnixMilli()).
		Suffix("ON CONFLICT(key) DO UPDATE SET mime_type = excluded.mime_type, data = excluded.data").
		ToSql()
	if err != nil {
		return fmt.Errorf("build blob insert: %w", err)
	}
	if _, err := b.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert blob: %w", err)
	}
	return nil
}

// Open loads a blob into memory and returns a handle over it.
func (b *SQLBlobStore) Open(ctx context.Context, key string) (*MediaHandle, error) {
	query, args, err := StatementBuilder().
		Select("mime_type", "data").
		From("media_blobs").
		Where(sq.Eq{"key": key}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build blob select: %w", err)
	}

	var mimeType string
	var data []byte
	if err := b.db.QueryRowContext(ctx, query, args...).Scan(&mimeType, &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select blob: %w", err)
	}
	return &MediaHandle{
		ReadCloser: io.NopCloser(bytes.NewReader(data)),
		MIMEType:   mimeType,
		Size:       int64(len(data)),
	}, nil
}

// Delete removes a blob. Missing keys are not an error.
func (b *SQLBlobStore) Delete(ctx context.Context, key string) error {
	query, args, err := StatementBuilder().
		Delete("media_blobs").
		Where(sq.Eq{"key": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build blob delete: %w", err)
	}
	if _, err := b.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

var _ BlobStore = (*SQLBlobStore)(nil)
