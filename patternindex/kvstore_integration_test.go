//go:build integration

package patternindex

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comploplo/canopy-sub003/errors"
	"github.com/comploplo/canopy-sub003/natsclient"
)

func TestKVStoreRoundTrip(t *testing.T) {
	tc := natsclient.NewTestClient(t, natsclient.WithKVBuckets("canopy_patterns"))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bucket, err := tc.Client.Bucket(ctx, "canopy_patterns")
	require.NoError(t, err)
	store := NewKVStore(bucket, WithConcurrency(4))

	idx := sampleIndex()
	require.NoError(t, store.Save(ctx, idx))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(idx.Ranked(), loaded.Ranked()); diff != "" {
		t.Errorf("patterns (-want +got):\n%s", diff)
	}
	assert.Equal(t, idx.Metadata().BuildID, loaded.Metadata().BuildID)

	// Saving a smaller index removes entries that are gone.
	smaller := FromEntries(NewMetadata(), idx.TopPatterns(2))
	require.NoError(t, store.Save(ctx, smaller))

	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
	assert.Equal(t, smaller.Metadata().BuildID, loaded.Metadata().BuildID)
}

func TestKVStoreEmptyBucket(t *testing.T) {
	tc := natsclient.NewTestClient(t, natsclient.WithKVBuckets("canopy_empty"))
	ctx := context.Background()

	bucket, err := tc.Client.Bucket(ctx, "canopy_empty")
	require.NoError(t, err)

	_, err = NewKVStore(bucket).Load(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrIndexUnavailable)
}

func TestKVStoreCorruptEntry(t *testing.T) {
	tc := natsclient.NewTestClient(t, natsclient.WithKVBuckets("canopy_corrupt"))
	ctx := context.Background()

	bucket, err := tc.Client.Bucket(ctx, "canopy_corrupt")
	require.NoError(t, err)
	store := NewKVStore(bucket)
	require.NoError(t, store.Save(ctx, sampleIndex()))

	_, err = bucket.Put(ctx, storageKey("broken"), []byte("{not json"))
	require.NoError(t, err)

	_, err = store.Load(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDataCorrupted)
}
