package filters

import (
	"sync/atomic"

	"github.com/CVDpl/go-taillog/internal/common"
)

// TrigramFilter is a bitset over all possible byte trigrams (2MB). It gives
// searches a cheap may-contain check before probing the inverted index.
// Bits are set with atomic OR so concurrent appenders can update it without
// coordination; a set bit is never cleared.
type TrigramFilter struct {
	words []atomic.Uint32 // 1<<19 words = 1<<24 bits
}

const trigramWords = 1 << (8*common.NGramN - 5)

// NewTrigramFilter creates an empty trigram filter bitset.
func NewTrigramFilter() *TrigramFilter {
	return &TrigramFilter{words: make([]atomic.Uint32, trigramWords)}
}

// Add sets the bits for all trigrams of s.
func (t *TrigramFilter) Add(s []byte) {
	if len(s) < common.NGramN {
		return
	}
	for i := 0; i+common.NGramN-1 < len(s); i++ {
		tri := uint32(s[i])<<16 | uint32(s[i+1])<<8 | uint32(s[i+2])
		t.words[tri>>5].Or(1 << (tri & 31))
	}
}

// MayContain returns true if all trigrams of the literal are present.
// Returns true for literals shorter than the trigram width.
func (t *TrigramFilter) MayContain(lit []byte) bool {
	if t == nil || len(t.words) == 0 {
		return true
	}
	if len(lit) < common.NGramN {
		return true
	}
	for i := 0; i+common.NGramN-1 < len(lit); i++ {
		tri := uint32(lit[i])<<16 | uint32(lit[i+1])<<8 | uint32(lit[i+2])
		if t.words[tri>>5].Load()&(1<<(tri&31)) == 0 {
			return false
		}
	}
	return true
}
