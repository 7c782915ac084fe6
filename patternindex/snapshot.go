package patternindex

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/comploplo/canopy-sub003/errors"
	"github.com/comploplo/canopy-sub003/pkg/retry"
)

// SnapshotStore keeps a whole index as one object in a JetStream object
// store, encoded like an index file. It suits indexes too large for
// per-key storage.
type SnapshotStore struct {
	store  jetstream.ObjectStore
	name   string
	format Format
	logger *slog.Logger
	retry  retry.Config
}

// NewSnapshotStore stores the index under name. The encoding follows the
// name's extension.
func NewSnapshotStore(store jetstream.ObjectStore, name string, logger *slog.Logger) (*SnapshotStore, error) {
	format, err := FormatFromPath(name)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotStore{
		store:  store,
		name:   name,
		format: format,
		logger: logger.With("component", "patternindex.snapshot", "object", name),
		retry:  errors.DefaultRetryConfig().ToRetryConfig(),
	}, nil
}

// Save replaces the stored snapshot with idx.
func (s *SnapshotStore) Save(ctx context.Context, idx *Index) error {
	var buf bytes.Buffer
	if err := idx.Encode(&buf, s.format); err != nil {
		return err
	}
	info, err := s.store.PutBytes(ctx, s.name, buf.Bytes())
	if err != nil {
		return errors.WrapTransient(err, "SnapshotStore", "Save", "put snapshot")
	}
	s.logger.Info("saved pattern index snapshot", "patterns", idx.Len(), "bytes", info.Size)
	return nil
}

// Load reads the snapshot back. A missing object is ErrIndexUnavailable.
func (s *SnapshotStore) Load(ctx context.Context) (*Index, error) {
	data, err := retry.DoWithResult(ctx, s.retry, func() ([]byte, error) {
		data, err := s.store.GetBytes(ctx, s.name)
		if stderrors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, retry.NonRetryable(err)
		}
		return data, err
	})
	if err != nil {
		return nil, errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrIndexUnavailable, err),
			"SnapshotStore", "Load", "get snapshot")
	}
	if int64(len(data)) > maxIndexFileSize {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %d bytes exceeds %d", errors.ErrInvalidData, len(data), maxIndexFileSize),
			"SnapshotStore", "Load", "check snapshot")
	}

	idx, err := Decode(bytes.NewReader(data), s.format)
	if err != nil {
		return nil, err
	}
	s.logger.Info("loaded pattern index snapshot", "patterns", idx.Len())
	return idx, nil
}
