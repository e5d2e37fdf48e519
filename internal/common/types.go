package common

import "errors"

// NGramN is the width of the n-grams maintained by the inverted index.
// The index keyspace and the trigram pre-filter are both sized for this
// width, so it is a package constant rather than an option.
const NGramN = 3

// Size limits
const (
	MaxPayloadSize         = 1024 * 1024 // 1MB max payload size
	RecommendedPayloadSize = 64 * 1024   // 64KB recommended max
)

// Default configuration values
const (
	DefaultMaxKeys        uint32 = 1 << 27   // maximum number of records
	DefaultLogSize        uint32 = 1<<32 - 1 // maximum log bytes
	DefaultMaxConcurrency        = 64        // aggregate worker slots
)

// Common errors
var (
	ErrClosed           = errors.New("store is closed")
	ErrCapacityExceeded = errors.New("log capacity exceeded")
	ErrNotFound         = errors.New("key not found")
	ErrEmptyPayload     = errors.New("empty payload not allowed")
	ErrPayloadTooLarge  = errors.New("payload exceeds maximum size")
	ErrInvalidPayload   = errors.New("payload must not contain NUL bytes")
)
