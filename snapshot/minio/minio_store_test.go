package minio

import (
	"context"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pathgo/snapshot"
)

// TestMinioStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestMinioStore_Integration(t *testing.T) {
	endpoint := "localhost:9000"
	accessKey := "minioadmin"
	secretKey := "minioadmin"
	bucket := "test-pathgo"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()

	// Check if MinIO is reachable
	_, err = client.ListBuckets(ctx)
	if err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	// Ensure bucket exists
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		err = client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
		require.NoError(t, err)
	}

	store := NewStore(client, bucket, "test-prefix/")

	// Put and Get
	data := []byte("hello minio world")
	err = store.Put(ctx, "snapshots/000001.snap", data)
	require.NoError(t, err)

	got, err := store.Get(ctx, "snapshots/000001.snap")
	require.NoError(t, err)
	require.Equal(t, data, got)

	// List sees the object under its logical name
	names, err := store.List(ctx, "snapshots/")
	require.NoError(t, err)
	assert.Contains(t, names, "snapshots/000001.snap")

	// Overwrite
	err = store.Put(ctx, "snapshots/000001.snap", []byte("v2"))
	require.NoError(t, err)

	got, err = store.Get(ctx, "snapshots/000001.snap")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	// Delete; a second delete is a no-op
	require.NoError(t, store.Delete(ctx, "snapshots/000001.snap"))
	require.NoError(t, store.Delete(ctx, "snapshots/000001.snap"))

	// Get after delete reports not found
	_, err = store.Get(ctx, "snapshots/000001.snap")
	assert.ErrorIs(t, err, snapshot.ErrNotFound)
}
