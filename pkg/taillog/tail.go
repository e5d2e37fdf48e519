package taillog

// A tail word packs (next internal key : high 32, next byte offset : low 32)
// into a single 64-bit value so one fetch-add binds key assignment and byte
// allocation atomically.
//
// The store keeps two tail words: the write tail is the reservation cursor,
// advanced exclusively by fetch-add; the read tail is the publication
// cursor, advanced by CAS strictly in reservation order. Readers observe
// only state below the read tail.
const (
	// keyIncrement is the internal key component of the tail increment for
	// appends and updates.
	keyIncrement = uint64(1) << 32

	// deleteIncrement advances only the offset, by one sentinel byte; a
	// delete consumes no key but still needs a monotonically growing
	// read-tail offset to use as its tombstone timestamp.
	deleteIncrement = uint64(1)
)

func tailKey(t uint64) uint32 { return uint32(t >> 32) }

func tailOffset(t uint64) uint32 { return uint32(t) }

// tailIncrement returns the tail increment for a payload of the given
// length: one key and length bytes.
func tailIncrement(length uint32) uint64 {
	return keyIncrement | uint64(length)
}
