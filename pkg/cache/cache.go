package cache

import (
	"github.com/comploplo/canopy-sub003/errors"
)

// Cache is the generic key/value cache contract. Keys are the string lookup
// keys produced by signature.Key.
type Cache[V any] interface {
	// Get retrieves a value and marks it as recently used.
	Get(key string) (V, bool)

	// Set stores a value. It reports true when a new entry was created and
	// false when an existing one was updated.
	Set(key string, value V) (bool, error)

	// Delete removes an entry and reports whether it existed.
	Delete(key string) (bool, error)

	// Clear removes all entries.
	Clear() error

	Size() int

	// Keys returns keys from most to least recently used.
	Keys() []string

	Stats() *Statistics

	Close() error
}

// EvictCallback is called with the key and value of every entry that leaves
// the cache through eviction, deletion or Clear. It runs outside the cache
// lock and may call back into the cache.
type EvictCallback[V any] func(key string, value V)

func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}
