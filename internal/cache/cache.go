package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// SummaryCache maps a document's content hash to a previously generated
// summary so byte-identical re-uploads never trigger a second generation.
type SummaryCache interface {
	// Lookup returns the cached summary for hash, or ok=false on a miss.
	// A miss is always a valid path; entries may be evicted externally.
	Lookup(hash string) (summary string, ok bool, err error)
	// Store records the summary for hash. Storing the same hash again is
	// a no-op, never an error.
	Store(hash string, summary string) error
}

// HashBytes derives the cache key for a document's raw bytes.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
