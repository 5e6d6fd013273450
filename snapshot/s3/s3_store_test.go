package s3

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pathgo/snapshot"
)

func TestIntegration_S3Store(t *testing.T) {
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		t.Skip("Skipping S3 integration test: S3_BUCKET not set")
	}

	ctx := context.Background()
	cfg, err := config.LoadDefaultConfig(ctx)
	require.NoError(t, err)

	client := s3.NewFromConfig(cfg)

	// Create a unique prefix for this test run
	prefix := fmt.Sprintf("test-pathgo-%d/", time.Now().UnixNano())
	store := NewStore(client, bucket, prefix)

	t.Run("Put and Get", func(t *testing.T) {
		name := "snapshots/000001.snap"
		data := make([]byte, 1024*1024) // 1MB
		rand.Read(data)

		require.NoError(t, store.Put(ctx, name, data))

		// List
		names, err := store.List(ctx, "snapshots/")
		require.NoError(t, err)
		assert.Contains(t, names, name)

		// Get
		got, err := store.Get(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, data, got)

		// Clean up
		require.NoError(t, store.Delete(ctx, name))
	})

	t.Run("Overwrite", func(t *testing.T) {
		name := "CURRENT"
		require.NoError(t, store.Put(ctx, name, []byte("000001.snap")))
		require.NoError(t, store.Put(ctx, name, []byte("000002.snap")))

		got, err := store.Get(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, "000002.snap", string(got))

		require.NoError(t, store.Delete(ctx, name))
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := store.Get(ctx, "nonexistent")
		assert.ErrorIs(t, err, snapshot.ErrNotFound)
	})
}
