// Package storage holds the persistence and notification collaborators the
// batch orchestrator talks to. The interfaces are narrow so production
// deployments can back them with object storage and a queue while tests use
// the in-memory implementations below.
package storage

import (
	"context"
	"time"

	"github.com/propfoto/propfoto/internal/enhance"
	"github.com/propfoto/propfoto/internal/quality"
)

// ImageRecord is the per-image outcome persisted after processing. An image
// is identified by (listing id, batch id, image id); all three come from the
// upload collaborator or the orchestrator.
type ImageRecord struct {
	ListingID  string          `json:"listing_id" yaml:"listing_id"`
	BatchID    string          `json:"batch_id" yaml:"batch_id"`
	ImageID    string          `json:"image_id" yaml:"image_id"`
	SourceName string          `json:"source_name" yaml:"source_name"`
	State      enhance.State   `json:"state" yaml:"state"`
	Verdict    quality.Verdict `json:"verdict" yaml:"verdict"`
	Width      int             `json:"width" yaml:"width"`
	Height     int             `json:"height" yaml:"height"`
	BlobKey    string          `json:"blob_key,omitempty" yaml:"blob_key,omitempty"`
	Error      string          `json:"error,omitempty" yaml:"error,omitempty"`
	Attempts   int             `json:"attempts" yaml:"attempts"`
	FinishedAt time.Time       `json:"finished_at" yaml:"finished_at"`
}

// BatchSummary is the terminal record written once a batch settles.
type BatchSummary struct {
	BatchID    string        `json:"batch_id" yaml:"batch_id"`
	ListingID  string        `json:"listing_id" yaml:"listing_id"`
	Status     string        `json:"status" yaml:"status"`
	Total      int           `json:"total" yaml:"total"`
	Accepted   int           `json:"accepted" yaml:"accepted"`
	Rejected   int           `json:"rejected" yaml:"rejected"`
	Errored    int           `json:"errored" yaml:"errored"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time     `json:"finished_at" yaml:"finished_at"`
	Elapsed    time.Duration `json:"elapsed" yaml:"elapsed"`
}

// BlobStore persists enhanced image bytes under opaque keys.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// MetadataStore records per-image outcomes and batch summaries.
type MetadataStore interface {
	SaveImage(ctx context.Context, rec ImageRecord) error
	SaveBatch(ctx context.Context, sum BatchSummary) error
}

// Notifier announces batch completion to downstream consumers.
type Notifier interface {
	BatchFinished(ctx context.Context, sum BatchSummary) error
}
