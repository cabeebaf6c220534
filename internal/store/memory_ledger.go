package store

import (
	"context"
	"sync"
)

type MemoryLedger struct {
	mu      sync.RWMutex
	records map[string]ImageRecord
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		records: make(map[string]ImageRecord),
	}
}

func (l *MemoryLedger) Record(_ context.Context, rec ImageRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	// First ingest wins; re-uploads of identical bytes keep the original
	// timestamp.
	if _, ok := l.records[rec.Hash]; !ok {
		l.records[rec.Hash] = rec
	}
	return nil
}

func (l *MemoryLedger) Get(_ context.Context, hash string) (ImageRecord, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[hash]
	return rec, ok, nil
}
