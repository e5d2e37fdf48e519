// Package taillog implements an in-memory, append-only record store with a
// lock-free append path, substring search over an n-gram inverted index,
// logical deletes and updates, and reader snapshots that run concurrently
// with writers without locks.
package taillog

import (
	"github.com/CVDpl/go-taillog/internal/common"
)

// Store is the main interface for the record store.
type Store interface {
	// Close releases the data log and marks the store unusable.
	Close() error

	// Append adds a payload and returns its assigned internal key.
	Append(payload []byte) (uint32, error)

	// Get returns the payload stored under the internal key.
	Get(key uint32) ([]byte, error)

	// Search returns the keys of live records containing query as a
	// substring, in ascending key order with duplicates suppressed.
	Search(query []byte) []uint32

	// ColSearch is the column-value variant of Search: same matching, but
	// results come back in first-match insertion order.
	ColSearch(colValue []byte) []uint32

	// Delete logically removes a key. Returns false if the key was already
	// deleted or not yet assigned.
	Delete(key uint32) bool

	// Update appends the new payload and invalidates the old key.
	// Returns the new internal key.
	Update(key uint32, payload []byte) (uint32, error)

	// NumKeys returns the number of published keys.
	NumKeys() uint32

	// Size returns the number of published log bytes.
	Size() uint32

	// Gap returns the distance between the reservation and publication
	// cursors. Not atomic; diagnostic only.
	Gap() uint64

	// Fingerprint returns a BLAKE3 hex digest of the published log prefix.
	Fingerprint() string

	// Stats returns current statistics for the store.
	Stats() Stats

	// RefreshStats forces a refresh of derived statistics.
	RefreshStats()
}

// Options configures the store behavior.
type Options struct {
	// MaxKeys caps the number of records the store will accept.
	MaxKeys uint32

	// LogSize caps the data log in bytes. On Linux the log is an anonymous
	// no-reserve mapping, so a large capacity costs address space only.
	LogSize uint32

	// Logger provides structured logging.
	Logger common.Logger

	// Metrics receives operation counters and latencies. Nil disables
	// metric collection.
	Metrics *Metrics

	// DisableTrigramFilter turns off the trigram pre-filter consulted
	// before index probes.
	DisableTrigramFilter bool
}

// DefaultOptions returns options with default values.
func DefaultOptions() *Options {
	return &Options{
		MaxKeys: common.DefaultMaxKeys,
		LogSize: common.DefaultLogSize,
		Logger:  NewDefaultLogger(),
	}
}
