package paged

import (
	"math/bits"
	"runtime"
	"sync/atomic"
)

const (
	listBaseBits  = 4
	listFirstSize = 1 << listBaseBits
	listBuckets   = 29
)

// OffsetList is a grow-only list of byte offsets. Storage is a sequence of
// exponentially sized buckets installed with CAS, so elements are never
// moved once written. Appends mirror the store's tail protocol: a writer
// reserves a slot with fetch-add, writes it, then publishes the size counter
// in reservation order. Readers snapshot Size and may then read any index
// below it without synchronisation.
type OffsetList struct {
	reserved atomic.Uint32
	size     atomic.Uint32
	buckets  [listBuckets]atomic.Pointer[[]uint32]
}

// NewOffsetList creates an empty list.
func NewOffsetList() *OffsetList {
	return &OffsetList{}
}

func locate(i uint32) (bucket int, idx uint32) {
	pos := uint64(i) + listFirstSize
	hi := bits.Len64(pos) - 1
	return hi - listBaseBits, uint32(pos - 1<<uint(hi))
}

func (l *OffsetList) bucket(b int) []uint32 {
	slot := &l.buckets[b]
	p := slot.Load()
	if p == nil {
		fresh := make([]uint32, listFirstSize<<uint(b))
		if slot.CompareAndSwap(nil, &fresh) {
			return fresh
		}
		p = slot.Load()
	}
	return *p
}

// Append adds off to the list and publishes it. Returns the index the
// offset was stored at.
func (l *OffsetList) Append(off uint32) uint32 {
	i := l.reserved.Add(1) - 1
	b, idx := locate(i)
	atomic.StoreUint32(&l.bucket(b)[idx], off)

	// Publish strictly in reservation order so readers below Size never
	// observe an unwritten slot.
	for !l.size.CompareAndSwap(i, i+1) {
		runtime.Gosched()
	}
	return i
}

// Size returns the number of published elements.
func (l *OffsetList) Size() uint32 {
	return l.size.Load()
}

// At returns the element at index i. The caller must have observed
// Size() > i.
func (l *OffsetList) At(i uint32) uint32 {
	b, idx := locate(i)
	return atomic.LoadUint32(&l.bucket(b)[idx])
}
