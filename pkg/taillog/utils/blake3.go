package utils

import (
	"fmt"

	blake3 "lukechampine.com/blake3"
)

// Checksum computes the BLAKE3 hash of the given bytes and returns a hex
// string.
func Checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return fmt.Sprintf("%x", sum[:])
}
