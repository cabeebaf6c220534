package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// ContentStore persists original images addressed by the sha256 of their
// bytes. Put is idempotent: re-storing identical bytes returns the same hash
// and leaves exactly one stored object.
type ContentStore interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, hash string) ([]byte, error)
}

// HashBytes renders the content identity of data as lowercase hex.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ValidHash reports whether s looks like a sha256 hex digest. Store
// implementations use it to keep request-supplied hashes out of path and
// object-key construction.
func ValidHash(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}
