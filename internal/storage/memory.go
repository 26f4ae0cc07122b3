package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// MemoryMetadataStore keeps records in process memory. It backs tests and
// single-shot CLI runs where no database is configured.
type MemoryMetadataStore struct {
	mu      sync.RWMutex
	images  map[string][]ImageRecord
	batches map[string]BatchSummary
}

func NewMemoryMetadataStore() *MemoryMetadataStore {
	return &MemoryMetadataStore{
		images:  make(map[string][]ImageRecord),
		batches: make(map[string]BatchSummary),
	}
}

func (s *MemoryMetadataStore) SaveImage(ctx context.Context, rec ImageRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.images[rec.BatchID]
	for i := range recs {
		if recs[i].ImageID == rec.ImageID {
			recs[i] = rec
			return nil
		}
	}
	s.images[rec.BatchID] = append(recs, rec)
	return nil
}

func (s *MemoryMetadataStore) SaveBatch(ctx context.Context, sum BatchSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[sum.BatchID] = sum
	return nil
}

// Images returns a copy of the per-image records for a batch.
func (s *MemoryMetadataStore) Images(batchID string) []ImageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.images[batchID]
	out := make([]ImageRecord, len(recs))
	copy(out, recs)
	return out
}

// Batch returns the stored summary, if any.
func (s *MemoryMetadataStore) Batch(batchID string) (BatchSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, ok := s.batches[batchID]
	return sum, ok
}

// MemoryBlobStore keeps blobs in a map, for tests.
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func (s *MemoryBlobStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.blobs[key] = cp
	return nil
}

func (s *MemoryBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, fmt.Errorf("blob not found: %s", key)
	}
	return data, nil
}

// Len reports the number of stored blobs.
func (s *MemoryBlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// LogNotifier announces batch completion via structured logging. Production
// deployments replace this with a queue publisher.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) BatchFinished(ctx context.Context, sum BatchSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("batch finished",
		"batch_id", sum.BatchID,
		"listing_id", sum.ListingID,
		"status", sum.Status,
		"total", sum.Total,
		"accepted", sum.Accepted,
		"rejected", sum.Rejected,
		"errored", sum.Errored,
		"elapsed", sum.Elapsed,
	)
	return nil
}
