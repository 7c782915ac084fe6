package patternindex

import (
	"context"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/sync/errgroup"

	"github.com/comploplo/canopy-sub003/errors"
	"github.com/comploplo/canopy-sub003/pkg/retry"
)

const (
	metaKey         = "_meta"
	patternKeyStart = "p."
)

// KVStore persists an index in a JetStream key-value bucket, one JSON
// entry per pattern plus a metadata entry.
type KVStore struct {
	bucket      jetstream.KeyValue
	logger      *slog.Logger
	retry       retry.Config
	concurrency int
}

// KVOption configures a KVStore.
type KVOption func(*KVStore)

// WithKVLogger sets the logger.
func WithKVLogger(logger *slog.Logger) KVOption {
	return func(s *KVStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithKVRetry sets the retry policy for individual bucket reads.
func WithKVRetry(cfg retry.Config) KVOption {
	return func(s *KVStore) { s.retry = cfg }
}

// WithConcurrency bounds the number of parallel reads during Load.
func WithConcurrency(n int) KVOption {
	return func(s *KVStore) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewKVStore wraps bucket.
func NewKVStore(bucket jetstream.KeyValue, opts ...KVOption) *KVStore {
	s := &KVStore{
		bucket:      bucket,
		logger:      slog.Default(),
		retry:       errors.DefaultRetryConfig().ToRetryConfig(),
		concurrency: 16,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "patternindex.kv", "bucket", bucket.Bucket())
	return s
}

// storageKey maps a lookup key onto the restricted NATS key alphabet.
func storageKey(key string) string {
	return patternKeyStart + base64.RawURLEncoding.EncodeToString([]byte(key))
}

// Save writes every pattern and the metadata, then deletes pattern entries
// that are no longer part of the index.
func (s *KVStore) Save(ctx context.Context, idx *Index) error {
	keep := make(map[string]struct{}, idx.Len())
	for _, e := range idx.Ranked() {
		data, err := json.Marshal(e)
		if err != nil {
			return errors.WrapInvalid(err, "KVStore", "Save", "encode pattern "+e.Key)
		}
		k := storageKey(e.Key)
		if _, err := s.bucket.Put(ctx, k, data); err != nil {
			return errors.WrapTransient(err, "KVStore", "Save", "put pattern "+e.Key)
		}
		keep[k] = struct{}{}
	}

	stale, err := s.keys(ctx)
	if err != nil {
		return err
	}
	var removed int
	for _, k := range stale {
		if _, ok := keep[k]; ok {
			continue
		}
		if err := s.bucket.Delete(ctx, k); err != nil && !stderrors.Is(err, jetstream.ErrKeyNotFound) {
			return errors.WrapTransient(err, "KVStore", "Save", "delete stale pattern")
		}
		removed++
	}

	meta, err := json.Marshal(idx.Metadata())
	if err != nil {
		return errors.WrapInvalid(err, "KVStore", "Save", "encode metadata")
	}
	if _, err := s.bucket.Put(ctx, metaKey, meta); err != nil {
		return errors.WrapTransient(err, "KVStore", "Save", "put metadata")
	}

	s.logger.Info("saved pattern index", "patterns", len(keep), "removed", removed)
	return nil
}

// keys lists the pattern entries in the bucket.
func (s *KVStore) keys(ctx context.Context) ([]string, error) {
	lister, err := s.bucket.ListKeys(ctx)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, errors.WrapTransient(err, "KVStore", "keys", "list keys")
	}
	defer func() { _ = lister.Stop() }()

	var out []string
	for k := range lister.Keys() {
		if strings.HasPrefix(k, patternKeyStart) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *KVStore) get(ctx context.Context, key string) ([]byte, error) {
	return retry.DoWithResult(ctx, s.retry, func() ([]byte, error) {
		entry, err := s.bucket.Get(ctx, key)
		if err != nil {
			if stderrors.Is(err, jetstream.ErrKeyNotFound) {
				return nil, retry.NonRetryable(fmt.Errorf("%w: %s", errors.ErrKeyNotFound, key))
			}
			return nil, err
		}
		return entry.Value(), nil
	})
}

// Load reads the whole index back. A bucket without a metadata entry is
// reported as ErrIndexUnavailable.
func (s *KVStore) Load(ctx context.Context) (*Index, error) {
	rawMeta, err := s.get(ctx, metaKey)
	if err != nil {
		return nil, errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrIndexUnavailable, err),
			"KVStore", "Load", "read metadata")
	}
	var meta Metadata
	if err := json.Unmarshal(rawMeta, &meta); err != nil {
		return nil, errors.WrapFatal(fmt.Errorf("%w: metadata: %v", errors.ErrDataCorrupted, err),
			"KVStore", "Load", "decode metadata")
	}

	keys, err := s.keys(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for n, k := range keys {
		g.Go(func() error {
			raw, err := s.get(gctx, k)
			if stderrors.Is(err, errors.ErrKeyNotFound) {
				// deleted since listing
				return nil
			}
			if err != nil {
				return errors.WrapTransient(err, "KVStore", "Load", "read pattern "+k)
			}
			if err := json.Unmarshal(raw, &entries[n]); err != nil {
				return errors.WrapFatal(fmt.Errorf("%w: %s: %v", errors.ErrDataCorrupted, k, err),
					"KVStore", "Load", "decode pattern")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	entries = slices.DeleteFunc(entries, func(e Entry) bool { return e.Key == "" })

	if err := validateDocument(document{Metadata: meta, Patterns: entries}); err != nil {
		return nil, err
	}
	idx := FromEntries(meta, entries)
	s.logger.Info("loaded pattern index", "patterns", idx.Len(), "build_id", meta.BuildID)
	return idx, nil
}
