package taillog

import (
	"bytes"
	"fmt"
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"github.com/CVDpl/go-taillog/internal/common"
	"github.com/CVDpl/go-taillog/internal/filters"
	"github.com/CVDpl/go-taillog/internal/ngram"
	"github.com/CVDpl/go-taillog/internal/paged"
	"github.com/CVDpl/go-taillog/pkg/taillog/utils"
)

// store is the concrete Store implementation.
type store struct {
	opts    Options
	logger  common.Logger
	metrics *Metrics
	stats   *StatsCollector

	log *dataLog

	// writeTail is the reservation cursor, readTail the publication cursor.
	// Both pack (key:32, offset:32); see tail.go.
	writeTail atomic.Uint64
	readTail  atomic.Uint64

	// offsets[k] is the byte offset where key k's payload starts; written
	// exactly once by the owning writer before publication, immutable after.
	offsets *paged.Uint32Array

	// tombstones[k] is zero while k is live, else the write-tail offset
	// observed at deletion plus one.
	tombstones *paged.Uint32Array

	index  *ngram.Index
	filter *filters.TrigramFilter

	closed atomic.Bool
}

// New creates a store with the given options. Nil options or zero fields
// fall back to defaults.
func New(opts *Options) (Store, error) {
	resolved := Options{}
	if opts != nil {
		resolved = *opts
	}
	if resolved.MaxKeys == 0 {
		resolved.MaxKeys = common.DefaultMaxKeys
	}
	if resolved.LogSize == 0 {
		resolved.LogSize = common.DefaultLogSize
	}
	if resolved.Logger == nil {
		resolved.Logger = NewDefaultLogger()
	}

	log, err := newDataLog(resolved.LogSize, resolved.Logger)
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}

	s := &store{
		opts:       resolved,
		logger:     resolved.Logger,
		metrics:    resolved.Metrics,
		stats:      NewStatsCollector(),
		log:        log,
		offsets:    paged.NewUint32Array(),
		tombstones: paged.NewUint32Array(),
		index:      ngram.New(),
	}
	if !resolved.DisableTrigramFilter {
		s.filter = filters.NewTrigramFilter()
	}

	s.logger.Info("store opened", "maxKeys", resolved.MaxKeys, "logSize", resolved.LogSize)
	return s, nil
}

func (s *store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.logger.Info("store closed", "numKeys", s.NumKeys(), "size", s.Size())
	return s.log.close()
}

// advanceReadTail publishes a reservation. Writers publish strictly in
// reservation order: a writer that finished early spins until all earlier
// reservations have been published, bounded by the slowest preceding writer.
func (s *store) advanceReadTail(expected, increment uint64) {
	for !s.readTail.CompareAndSwap(expected, expected+increment) {
		runtime.Gosched()
	}
}

// internalAppend reserves a key and byte range, copies the payload, and
// updates the index. On success it does not publish; the caller advances the read tail
// with tailIncrement(len(payload)) once its remaining bookkeeping is done.
//
// A reservation that fails the bounds check cannot be rolled back without
// giving up lock freedom, so the consumed key is published as a tombstoned
// hole instead; subsequent reservations will fail the same way.
func (s *store) internalAppend(payload []byte) (uint64, error) {
	length := uint32(len(payload))
	increment := tailIncrement(length)
	reserved := s.writeTail.Add(increment) - increment
	key, offset := tailKey(reserved), tailOffset(reserved)

	if key >= s.opts.MaxKeys || uint64(offset)+uint64(length) >= uint64(s.opts.LogSize) {
		tomb := offset + 1
		if tomb == 0 {
			tomb = ^uint32(0)
		}
		s.offsets.Set(key, offset)
		s.tombstones.Set(key, tomb)
		s.advanceReadTail(reserved, increment)
		s.metrics.IncCapacityFailure()
		s.logger.Warn("append rejected: capacity exceeded",
			"key", key, "offset", offset, "length", length)
		return 0, common.ErrCapacityExceeded
	}

	// This writer has exclusive ownership of the internal key and the byte range
	// [offset, offset+length), so plain writes suffice until publication.
	s.offsets.Set(key, offset)
	s.tombstones.Set(key, 0)
	copy(s.log.buf[offset:offset+length], payload)

	if length >= common.NGramN {
		last := offset + length - common.NGramN
		for o := offset; o <= last; o++ {
			s.index.AddOffset(s.log.buf[o:o+common.NGramN], o)
		}
	}
	if s.filter != nil {
		s.filter.Add(payload)
	}

	return reserved, nil
}

func (s *store) validatePayload(payload []byte) error {
	if s.closed.Load() {
		return common.ErrClosed
	}
	if len(payload) == 0 {
		return common.ErrEmptyPayload
	}
	if len(payload) > common.MaxPayloadSize {
		return common.ErrPayloadTooLarge
	}
	if bytes.IndexByte(payload, 0) >= 0 {
		return common.ErrInvalidPayload
	}
	return nil
}

func (s *store) Append(payload []byte) (uint32, error) {
	if err := s.validatePayload(payload); err != nil {
		return 0, err
	}
	start := time.Now()

	reserved, err := s.internalAppend(payload)
	if err != nil {
		return 0, err
	}
	s.advanceReadTail(reserved, tailIncrement(uint32(len(payload))))

	s.stats.RecordAppend(len(payload))
	s.metrics.ObserveAppend(time.Since(start))
	return tailKey(reserved), nil
}

func (s *store) Get(key uint32) ([]byte, error) {
	if s.closed.Load() {
		return nil, common.ErrClosed
	}
	tail := s.readTail.Load()
	maxKey, maxOff := tailKey(tail), tailOffset(tail)
	if key >= maxKey {
		return nil, common.ErrNotFound
	}
	if d := s.tombstones.Get(key); d != 0 && maxOff >= d {
		return nil, common.ErrNotFound
	}

	start := s.offsets.Get(key)
	end := maxOff
	if key+1 < maxKey {
		end = s.offsets.Get(key + 1)
	}
	if end > uint32(len(s.log.buf)) {
		end = uint32(len(s.log.buf))
	}

	// Delete sentinels can pad the extent with unwritten (zero) bytes;
	// payloads are NUL-free, so the first NUL ends the record.
	region := s.log.buf[start:end]
	if i := bytes.IndexByte(region, 0); i >= 0 {
		region = region[:i]
	}
	out := make([]byte, len(region))
	copy(out, region)

	s.stats.RecordGet()
	return out, nil
}

func (s *store) Delete(key uint32) bool {
	if s.closed.Load() {
		return false
	}
	reserved := s.writeTail.Add(deleteIncrement) - deleteIncrement
	offset := tailOffset(reserved)

	deleted := false
	if key < tailKey(reserved) {
		deleted = s.tombstones.CompareAndSwap(key, 0, offset+1)
	}

	// The reserved sentinel byte is always published, even when the logical
	// delete fails; otherwise a failed delete would stall publication of
	// every later reservation.
	s.advanceReadTail(reserved, deleteIncrement)

	if deleted {
		s.stats.RecordDelete()
		s.metrics.IncDelete()
	}
	return deleted
}

func (s *store) Update(key uint32, payload []byte) (uint32, error) {
	if err := s.validatePayload(payload); err != nil {
		return 0, err
	}
	start := time.Now()

	reserved, err := s.internalAppend(payload)
	if err != nil {
		return 0, err
	}

	// Invalidate the old key with the new payload's start offset plus one.
	// The outcome does not matter: losing the race means the key was
	// already deleted.
	s.tombstones.CompareAndSwap(key, 0, tailOffset(reserved)+1)

	s.advanceReadTail(reserved, tailIncrement(uint32(len(payload))))

	s.stats.RecordUpdate()
	s.metrics.ObserveUpdate(time.Since(start))
	return tailKey(reserved), nil
}

// Search returns matching keys in ascending order, deduplicated.
func (s *store) Search(query []byte) []uint32 {
	seen := make(map[uint32]struct{})
	s.searchInto(query, func(key uint32) {
		seen[key] = struct{}{}
	})
	out := make([]uint32, 0, len(seen))
	for key := range seen {
		out = append(out, key)
	}
	slices.Sort(out)
	return out
}

// ColSearch returns matching keys in first-match insertion order,
// deduplicated.
func (s *store) ColSearch(colValue []byte) []uint32 {
	seen := make(map[uint32]struct{})
	var out []uint32
	s.searchInto(colValue, func(key uint32) {
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, key)
	})
	return out
}

// searchInto runs the substring search against the current snapshot,
// emitting each candidate key (possibly more than once) to the collector.
// The two public variants differ only in their collectors.
func (s *store) searchInto(query []byte, emit func(uint32)) {
	if s.closed.Load() || len(query) == 0 {
		return
	}
	if bytes.IndexByte(query, 0) >= 0 {
		return
	}
	started := time.Now()
	defer func() {
		s.stats.RecordSearch(query)
		s.metrics.ObserveSearch(time.Since(started))
	}()

	tail := s.readTail.Load()
	maxKey, maxOff := tailKey(tail), tailOffset(tail)
	if maxKey == 0 {
		return
	}

	if len(query) < common.NGramN {
		s.scanSearch(query, maxKey, maxOff, emit)
		return
	}
	if s.filter != nil && !s.filter.MayContain(query) {
		return
	}

	qlen := uint32(len(query))
	prefixList := s.index.Offsets(query[:common.NGramN])
	suffixList := s.index.Offsets(query[qlen-common.NGramN:])
	if prefixList == nil || suffixList == nil {
		return
	}

	// Drive on the shorter posting list to minimise candidates. Offsets at
	// or past the snapshot belong to writes that were incomplete when the
	// search started and are skipped.
	prefixSize, suffixSize := prefixList.Size(), suffixList.Size()
	if prefixSize <= suffixSize {
		rest := query[common.NGramN:]
		for i := uint32(0); i < prefixSize; i++ {
			off := prefixList.At(i)
			end := uint64(off) + uint64(qlen)
			if end > uint64(maxOff) || end > uint64(len(s.log.buf)) {
				continue
			}
			if bytes.Equal(s.log.buf[off+common.NGramN:end], rest) {
				s.resolveKey(off, qlen, maxKey, maxOff, emit)
			}
		}
	} else {
		lead := query[:qlen-common.NGramN]
		leadLen := uint32(len(lead))
		for i := uint32(0); i < suffixSize; i++ {
			off := suffixList.At(i)
			if off < leadLen {
				continue
			}
			end := uint64(off) + uint64(common.NGramN)
			if end > uint64(maxOff) || end > uint64(len(s.log.buf)) {
				continue
			}
			match := off - leadLen
			if bytes.Equal(s.log.buf[match:off], lead) {
				s.resolveKey(match, qlen, maxKey, maxOff, emit)
			}
		}
	}
}

// scanSearch is the fallback for queries shorter than the n-gram width: a
// full scan of the published log prefix.
func (s *store) scanSearch(query []byte, maxKey, maxOff uint32, emit func(uint32)) {
	limit := maxOff
	if limit > uint32(len(s.log.buf)) {
		limit = uint32(len(s.log.buf))
	}
	region := s.log.buf[:limit]
	qlen := uint32(len(query))
	base := uint32(0)
	for {
		i := bytes.Index(region, query)
		if i < 0 {
			return
		}
		s.resolveKey(base+uint32(i), qlen, maxKey, maxOff, emit)
		region = region[i+1:]
		base += uint32(i) + 1
	}
}

// resolveKey maps a match at [off, off+length) to its internal key by
// binary-searching the value offsets, drops tombstoned keys and matches
// spanning a record boundary, and emits the rest.
func (s *store) resolveKey(off, length, maxKey, maxOff uint32, emit func(uint32)) {
	lo, hi := uint32(0), maxKey
	for lo < hi {
		mid := lo + (hi-lo)/2
		if s.offsets.Get(mid) <= off {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	key := lo - 1

	if d := s.tombstones.Get(key); d != 0 && maxOff >= d {
		return
	}

	end := maxOff
	if key+1 < maxKey {
		end = s.offsets.Get(key + 1)
	}
	if uint64(off)+uint64(length) > uint64(end) {
		return
	}
	emit(key)
}

func (s *store) NumKeys() uint32 {
	return tailKey(s.readTail.Load())
}

func (s *store) Size() uint32 {
	return tailOffset(s.readTail.Load())
}

// Gap reports write tail minus read tail. The two loads are not a single
// atomic snapshot; use for approximate measurements only.
func (s *store) Gap() uint64 {
	return s.writeTail.Load() - s.readTail.Load()
}

func (s *store) Fingerprint() string {
	limit := s.Size()
	if limit > uint32(len(s.log.buf)) {
		limit = uint32(len(s.log.buf))
	}
	return utils.Checksum(s.log.buf[:limit])
}

func (s *store) Stats() Stats {
	return s.stats.Snapshot(s)
}

func (s *store) RefreshStats() {
	s.stats.Refresh()
}
