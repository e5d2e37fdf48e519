package taillog

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/CVDpl/go-taillog/internal/common"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	opts := DefaultOptions()
	opts.MaxKeys = 1 << 16
	opts.LogSize = 1 << 20
	opts.Logger = common.NewNullLogger()
	store, err := New(opts)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func mustAppend(t *testing.T, s Store, payload string) uint32 {
	t.Helper()
	key, err := s.Append([]byte(payload))
	if err != nil {
		t.Fatalf("Failed to append %q: %v", payload, err)
	}
	return key
}

func keysEqual(a []uint32, b ...uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestStoreBasicOperations(t *testing.T) {
	store := newTestStore(t)

	for i, payload := range []string{"hello", "world", "help"} {
		key := mustAppend(t, store, payload)
		if key != uint32(i) {
			t.Errorf("Expected key %d for %q, got %d", i, payload, key)
		}
	}

	if n := store.NumKeys(); n != 3 {
		t.Errorf("Expected 3 keys, got %d", n)
	}
	if sz := store.Size(); sz != 14 {
		t.Errorf("Expected size 14, got %d", sz)
	}

	if keys := store.Search([]byte("hel")); !keysEqual(keys, 0, 2) {
		t.Errorf("search(hel): expected [0 2], got %v", keys)
	}
	if keys := store.Search([]byte("orl")); !keysEqual(keys, 1) {
		t.Errorf("search(orl): expected [1], got %v", keys)
	}

	value, err := store.Get(1)
	if err != nil {
		t.Fatalf("Failed to get key 1: %v", err)
	}
	if !bytes.Equal(value, []byte("world")) {
		t.Errorf("get(1): expected %q, got %q", "world", value)
	}
}

func TestStoreDelete(t *testing.T) {
	store := newTestStore(t)

	key := mustAppend(t, store, "alpha")
	if key != 0 {
		t.Fatalf("Expected key 0, got %d", key)
	}

	if !store.Delete(0) {
		t.Fatal("Expected first delete to succeed")
	}
	if _, err := store.Get(0); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("get(0) after delete: expected ErrNotFound, got %v", err)
	}
	if keys := store.Search([]byte("alp")); len(keys) != 0 {
		t.Errorf("search after delete: expected no results, got %v", keys)
	}
	if store.Delete(0) {
		t.Error("Expected second delete to fail")
	}
}

func TestStoreDeleteUnassignedKey(t *testing.T) {
	store := newTestStore(t)

	if store.Delete(5) {
		t.Error("Expected delete of unassigned key to fail")
	}

	// The failed delete still consumed a sentinel byte.
	if sz := store.Size(); sz != 1 {
		t.Errorf("Expected size 1 after failed delete, got %d", sz)
	}
	if n := store.NumKeys(); n != 0 {
		t.Errorf("Expected 0 keys after failed delete, got %d", n)
	}
}

func TestStoreUpdate(t *testing.T) {
	store := newTestStore(t)

	key := mustAppend(t, store, "foo")
	if key != 0 {
		t.Fatalf("Expected key 0, got %d", key)
	}

	newKey, err := store.Update(0, []byte("foobar"))
	if err != nil {
		t.Fatalf("Failed to update: %v", err)
	}
	if newKey != 1 {
		t.Errorf("Expected new key 1, got %d", newKey)
	}

	if _, err := store.Get(0); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("get(0) after update: expected ErrNotFound, got %v", err)
	}
	value, err := store.Get(1)
	if err != nil {
		t.Fatalf("Failed to get key 1: %v", err)
	}
	if !bytes.Equal(value, []byte("foobar")) {
		t.Errorf("get(1): expected %q, got %q", "foobar", value)
	}
	if keys := store.Search([]byte("foo")); !keysEqual(keys, 1) {
		t.Errorf("search(foo): expected [1], got %v", keys)
	}
}

func TestStoreSearchLifecycle(t *testing.T) {
	store := newTestStore(t)

	if keys := store.Search([]byte("xyz")); len(keys) != 0 {
		t.Errorf("search on empty store: expected no results, got %v", keys)
	}

	key := mustAppend(t, store, "xyz")
	if keys := store.Search([]byte("xyz")); !keysEqual(keys, key) {
		t.Errorf("search(xyz): expected [%d], got %v", key, keys)
	}

	if !store.Delete(key) {
		t.Fatal("Expected delete to succeed")
	}
	if keys := store.Search([]byte("xyz")); len(keys) != 0 {
		t.Errorf("search after delete: expected no results, got %v", keys)
	}
}

func TestStorePayloadRoundTrip(t *testing.T) {
	store := newTestStore(t)

	payloads := []string{
		"a",
		"ab",
		"abc",
		"a longer payload with spaces and 1234567890",
		"trailing-n-gram-boundary..",
	}
	keys := make([]uint32, len(payloads))
	for i, p := range payloads {
		keys[i] = mustAppend(t, store, p)
	}

	for i, p := range payloads {
		value, err := store.Get(keys[i])
		if err != nil {
			t.Fatalf("Failed to get key %d: %v", keys[i], err)
		}
		if !bytes.Equal(value, []byte(p)) {
			t.Errorf("get(%d): expected %q, got %q", keys[i], p, value)
		}
	}
}

func TestStoreRoundTripAfterInterleavedDelete(t *testing.T) {
	store := newTestStore(t)

	k0 := mustAppend(t, store, "first")
	mustAppend(t, store, "second")
	if !store.Delete(1) {
		t.Fatal("Expected delete to succeed")
	}
	// The delete sentinel byte sits between key 1 and key 2.
	k2 := mustAppend(t, store, "third")

	for key, want := range map[uint32]string{k0: "first", k2: "third"} {
		value, err := store.Get(key)
		if err != nil {
			t.Fatalf("Failed to get key %d: %v", key, err)
		}
		if !bytes.Equal(value, []byte(want)) {
			t.Errorf("get(%d): expected %q, got %q", key, want, value)
		}
	}
	// Key 1's extent now includes the sentinel; the record must come back
	// without it once un-deleted reads are impossible, so just confirm the
	// neighbours are clean and key 1 is gone.
	if _, err := store.Get(1); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("get(1): expected ErrNotFound, got %v", err)
	}
}

func TestStoreShortQueryFallback(t *testing.T) {
	store := newTestStore(t)

	k0 := mustAppend(t, store, "abc")
	k1 := mustAppend(t, store, "bcd")
	mustAppend(t, store, "xyz")

	if keys := store.Search([]byte("b")); !keysEqual(keys, k0, k1) {
		t.Errorf("search(b): expected [%d %d], got %v", k0, k1, keys)
	}
	if keys := store.Search([]byte("bc")); !keysEqual(keys, k0, k1) {
		t.Errorf("search(bc): expected [%d %d], got %v", k0, k1, keys)
	}
	if keys := store.Search([]byte("q")); len(keys) != 0 {
		t.Errorf("search(q): expected no results, got %v", keys)
	}
}

func TestStoreSearchDoesNotMatchAcrossRecords(t *testing.T) {
	store := newTestStore(t)

	mustAppend(t, store, "abcd")
	mustAppend(t, store, "efgh")

	// "cdef" only exists across the record boundary.
	if keys := store.Search([]byte("cdef")); len(keys) != 0 {
		t.Errorf("search(cdef): expected no results, got %v", keys)
	}
	if keys := store.Search([]byte("def")); len(keys) != 0 {
		t.Errorf("search(def): expected no results, got %v", keys)
	}
}

func TestStoreColSearchInsertionOrder(t *testing.T) {
	store := newTestStore(t)

	for _, p := range []string{"tag:red", "tag:blue", "tag:red-ish"} {
		mustAppend(t, store, p)
	}

	keys := store.ColSearch([]byte("tag:"))
	if len(keys) != 3 {
		t.Fatalf("col_search(tag:): expected 3 results, got %v", keys)
	}
	// Single writer, so the posting list, and with it the first-match
	// order, follows append order.
	if !keysEqual(keys, 0, 1, 2) {
		t.Errorf("col_search(tag:): expected [0 1 2], got %v", keys)
	}
	seen := make(map[uint32]bool)
	for _, k := range keys {
		if seen[k] {
			t.Errorf("col_search returned duplicate key %d", k)
		}
		seen[k] = true
	}
}

func TestStorePayloadValidation(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Append(nil); !errors.Is(err, common.ErrEmptyPayload) {
		t.Errorf("append(nil): expected ErrEmptyPayload, got %v", err)
	}
	if _, err := store.Append([]byte{}); !errors.Is(err, common.ErrEmptyPayload) {
		t.Errorf("append(empty): expected ErrEmptyPayload, got %v", err)
	}
	if _, err := store.Append([]byte("a\x00b")); !errors.Is(err, common.ErrInvalidPayload) {
		t.Errorf("append(NUL): expected ErrInvalidPayload, got %v", err)
	}
	big := make([]byte, common.MaxPayloadSize+1)
	for i := range big {
		big[i] = 'x'
	}
	if _, err := store.Append(big); !errors.Is(err, common.ErrPayloadTooLarge) {
		t.Errorf("append(big): expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestStoreKeyCapacity(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxKeys = 2
	opts.LogSize = 1 << 20
	opts.Logger = common.NewNullLogger()
	store, err := New(opts)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	mustAppend(t, store, "one")
	mustAppend(t, store, "two")

	if _, err := store.Append([]byte("three")); !errors.Is(err, common.ErrCapacityExceeded) {
		t.Fatalf("Expected ErrCapacityExceeded, got %v", err)
	}

	// The failed reservation consumed a key and published it as a
	// tombstoned hole.
	if n := store.NumKeys(); n != 3 {
		t.Errorf("Expected 3 published keys, got %d", n)
	}
	if _, err := store.Get(2); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("get(hole): expected ErrNotFound, got %v", err)
	}

	// Earlier records stay readable.
	value, err := store.Get(0)
	if err != nil || !bytes.Equal(value, []byte("one")) {
		t.Errorf("get(0): expected %q, got %q (err=%v)", "one", value, err)
	}
}

func TestStoreLogCapacity(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxKeys = 1 << 10
	opts.LogSize = 10
	opts.Logger = common.NewNullLogger()
	store, err := New(opts)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	mustAppend(t, store, "hello")
	mustAppend(t, store, "worl")

	if _, err := store.Append([]byte("ab")); !errors.Is(err, common.ErrCapacityExceeded) {
		t.Fatalf("Expected ErrCapacityExceeded, got %v", err)
	}
	// Once the byte space is exhausted, every later reservation fails too.
	if _, err := store.Append([]byte("c")); !errors.Is(err, common.ErrCapacityExceeded) {
		t.Fatalf("Expected ErrCapacityExceeded on follow-up, got %v", err)
	}

	value, err := store.Get(1)
	if err != nil || !bytes.Equal(value, []byte("worl")) {
		t.Errorf("get(1): expected %q, got %q (err=%v)", "worl", value, err)
	}
}

func TestStoreDenseKeys(t *testing.T) {
	store := newTestStore(t)

	const n = 200
	for i := 0; i < n; i++ {
		key := mustAppend(t, store, fmt.Sprintf("record-%04d", i))
		if key != uint32(i) {
			t.Fatalf("Expected key %d, got %d", i, key)
		}
	}
	if got := store.NumKeys(); got != n {
		t.Errorf("Expected %d keys, got %d", n, got)
	}
	if store.Gap() != 0 {
		t.Errorf("Expected zero gap on quiescent store, got %d", store.Gap())
	}
}

func TestStoreSearchCompleteness(t *testing.T) {
	store := newTestStore(t)

	const n = 100
	for i := 0; i < n; i++ {
		mustAppend(t, store, fmt.Sprintf("payload-%04d-suffix", i))
	}

	for i := 0; i < n; i++ {
		q := fmt.Sprintf("payload-%04d", i)
		keys := store.Search([]byte(q))
		if !keysEqual(keys, uint32(i)) {
			t.Fatalf("search(%q): expected [%d], got %v", q, i, keys)
		}
	}

	// A query every record contains returns all of them.
	keys := store.Search([]byte("-suffix"))
	if len(keys) != n {
		t.Errorf("search(-suffix): expected %d results, got %d", n, len(keys))
	}
}

func TestStoreFingerprint(t *testing.T) {
	store := newTestStore(t)

	empty := store.Fingerprint()
	mustAppend(t, store, "fingerprint me")
	after := store.Fingerprint()
	if empty == after {
		t.Error("Expected fingerprint to change after append")
	}
	if after != store.Fingerprint() {
		t.Error("Expected fingerprint to be stable on quiescent store")
	}
}

func TestStoreStats(t *testing.T) {
	store := newTestStore(t)

	mustAppend(t, store, "stat-record-a")
	mustAppend(t, store, "stat-record-b")
	store.Search([]byte("stat-record"))
	store.Search([]byte("stat-record"))
	if !store.Delete(0) {
		t.Fatal("Expected delete to succeed")
	}

	store.RefreshStats()
	stats := store.Stats()
	if stats.Appends != 2 {
		t.Errorf("Expected 2 appends, got %d", stats.Appends)
	}
	if stats.Searches != 2 {
		t.Errorf("Expected 2 searches, got %d", stats.Searches)
	}
	if stats.Deletes != 1 {
		t.Errorf("Expected 1 delete, got %d", stats.Deletes)
	}
	if stats.NumKeys != 2 {
		t.Errorf("Expected 2 keys, got %d", stats.NumKeys)
	}
	if len(stats.HotQueries) == 0 || stats.HotQueries[0].Count != 2 {
		t.Errorf("Expected hot query with count 2, got %+v", stats.HotQueries)
	}
}

func TestStoreClosed(t *testing.T) {
	store := newTestStore(t)
	if err := store.Close(); err != nil {
		t.Fatalf("Failed to close store: %v", err)
	}

	if _, err := store.Append([]byte("late")); !errors.Is(err, common.ErrClosed) {
		t.Errorf("append after close: expected ErrClosed, got %v", err)
	}
	if _, err := store.Get(0); !errors.Is(err, common.ErrClosed) {
		t.Errorf("get after close: expected ErrClosed, got %v", err)
	}
	if keys := store.Search([]byte("late")); len(keys) != 0 {
		t.Errorf("search after close: expected no results, got %v", keys)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Expected double close to be a no-op, got %v", err)
	}
}
