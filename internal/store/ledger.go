package store

import (
	"context"
	"time"
)

// ImageRecord is the ledger entry written once per ingested original.
type ImageRecord struct {
	Hash        string
	SizeBytes   int64
	ContentType string
	CreatedAt   time.Time
}

// Ledger records ingested originals for audit and retention tooling. Writes
// are best-effort from the upload path: a ledger failure never fails an
// upload.
type Ledger interface {
	Record(ctx context.Context, rec ImageRecord) error
	Get(ctx context.Context, hash string) (ImageRecord, bool, error)
}
