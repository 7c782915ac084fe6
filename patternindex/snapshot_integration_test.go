//go:build integration

package patternindex

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comploplo/canopy-sub003/errors"
	"github.com/comploplo/canopy-sub003/natsclient"
)

func TestSnapshotStoreRoundTrip(t *testing.T) {
	tc := natsclient.NewTestClient(t, natsclient.WithJetStream())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	objects, err := tc.Client.ObjectStore(ctx, jetstream.ObjectStoreConfig{Bucket: "canopy_snapshots"})
	require.NoError(t, err)

	for _, name := range []string{"patterns.json", "patterns.yaml"} {
		t.Run(name, func(t *testing.T) {
			store, err := NewSnapshotStore(objects, name, nil)
			require.NoError(t, err)

			idx := sampleIndex()
			require.NoError(t, store.Save(ctx, idx))

			loaded, err := store.Load(ctx)
			require.NoError(t, err)
			if diff := cmp.Diff(idx.Ranked(), loaded.Ranked()); diff != "" {
				t.Errorf("patterns (-want +got):\n%s", diff)
			}
			assert.Equal(t, idx.Metadata().BuildID, loaded.Metadata().BuildID)
		})
	}

	reopened, err := tc.Client.OpenObjectStore(ctx, "canopy_snapshots")
	require.NoError(t, err)
	missing, err := NewSnapshotStore(reopened, "absent.json", nil)
	require.NoError(t, err)
	_, err = missing.Load(ctx)
	assert.ErrorIs(t, err, errors.ErrIndexUnavailable)

	_, err = tc.Client.OpenObjectStore(ctx, "no_such_store")
	assert.ErrorIs(t, err, errors.ErrBucketNotFound)
}
