// Package ngram implements the inverted index mapping every fixed-width
// n-gram occurring in the data log to the list of byte offsets where it
// occurs. The keyspace is the full 24-bit trigram space, addressed directly
// rather than hashed, so lookups never collide and never rebalance.
package ngram

import (
	"sync/atomic"

	"github.com/CVDpl/go-taillog/internal/common"
	"github.com/CVDpl/go-taillog/internal/paged"
)

const (
	keyBits  = 8 * common.NGramN
	pageBits = 12
	pageSize = 1 << pageBits
	pageMask = pageSize - 1
	numPages = 1 << (keyBits - pageBits)
)

type bucketPage [pageSize]atomic.Pointer[paged.OffsetList]

// Index is the n-gram inverted index. Bucket pages and buckets are created
// lazily and installed with CAS (one winner, losers discard their
// allocation), so concurrent writers indexing different records never block
// each other, and readers resolve a bucket with two pointer loads.
type Index struct {
	pages []atomic.Pointer[bucketPage]
}

// New creates an empty index.
func New() *Index {
	return &Index{pages: make([]atomic.Pointer[bucketPage], numPages)}
}

// Key packs an n-gram into its bucket number.
func Key(gram []byte) uint32 {
	return uint32(gram[0])<<16 | uint32(gram[1])<<8 | uint32(gram[2])
}

func (ix *Index) page(key uint32) *bucketPage {
	slot := &ix.pages[key>>pageBits]
	p := slot.Load()
	if p == nil {
		fresh := new(bucketPage)
		if slot.CompareAndSwap(nil, fresh) {
			return fresh
		}
		p = slot.Load()
	}
	return p
}

// AddOffset records that the n-gram gram occurs at byte offset off.
func (ix *Index) AddOffset(gram []byte, off uint32) {
	key := Key(gram)
	slot := &ix.page(key)[key&pageMask]
	list := slot.Load()
	if list == nil {
		fresh := paged.NewOffsetList()
		if slot.CompareAndSwap(nil, fresh) {
			list = fresh
		} else {
			list = slot.Load()
		}
	}
	list.Append(off)
}

// Offsets returns the posting list for gram, or nil if the n-gram has never
// been indexed. The returned list is live; callers snapshot its Size and
// read below it.
func (ix *Index) Offsets(gram []byte) *paged.OffsetList {
	key := Key(gram)
	p := ix.pages[key>>pageBits].Load()
	if p == nil {
		return nil
	}
	return p[key&pageMask].Load()
}
