package miniostore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aschepis/backscratcher/lifelog/memory"
)

func TestNewRequiresEndpointAndBucket(t *testing.T) {
	_, err := New(context.Background(), Options{Bucket: "media"}, zerolog.Nop())
	assert.ErrorContains(t, err, "endpoint")

	_, err = New(context.Background(), Options{Endpoint: "localhost:9000"}, zerolog.Nop())
	assert.ErrorContains(t, err, "bucket")
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.True(t, isNotFound(minio.ErrorResponse{StatusCode: http.StatusNotFound}))
	assert.False(t, isNotFound(minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}))
	assert.False(t, isNotFound(errors.New("dial tcp: refused")))
}

func TestMapErrorNotFound(t *testing.T) {
	err := mapError("k", minio.ErrorResponse{Code: "NoSuchKey"})
	assert.ErrorIs(t, err, memory.ErrNotFound)

	err = mapError("k", errors.New("boom"))
	assert.NotErrorIs(t, err, memory.ErrNotFound)
	assert.ErrorContains(t, err, "boom")
}

// TestBlobStoreRoundTrip runs against a live server, e.g.
// LIFELOG_TEST_MINIO_ENDPOINT=localhost:9000 with minioadmin credentials.
func TestBlobStoreRoundTrip(t *testing.T) {
	endpoint := os.Getenv("LIFELOG_TEST_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("LIFELOG_TEST_MINIO_ENDPOINT not set")
	}
	ctx := context.Background()
	store, err := New(ctx, Options{
		Endpoint:  endpoint,
		AccessKey: envOr("LIFELOG_TEST_MINIO_ACCESS_KEY", "minioadmin"),
		SecretKey: envOr("LIFELOG_TEST_MINIO_SECRET_KEY", "minioadmin"),
		Bucket:    "lifelog-test",
	}, zerolog.Nop())
	require.NoError(t, err)

	key := uuid.NewString()
	require.NoError(t, store.Put(ctx, key, "audio/webm", []byte("webm-bytes")))

	h, err := store.Open(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(h)
	require.NoError(t, err)
	require.NoError(t, h.Close())
	assert.Equal(t, "webm-bytes", string(data))
	assert.Equal(t, "audio/webm", h.MIMEType)
	assert.EqualValues(t, len(data), h.Size)

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Open(ctx, key)
	assert.ErrorIs(t, err, memory.ErrNotFound)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
