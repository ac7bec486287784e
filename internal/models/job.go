package models

import (
	"time"

	"github.com/google/uuid"
)

// MergeStatus represents merge job lifecycle.
const (
	MergeStatusPending    = "pending"
	MergeStatusProcessing = "processing"
	MergeStatusCompleted  = "completed"
	MergeStatusFailed     = "failed"
)

// MergeJob is one request to stitch a video's recording slices into a
// single HLS VOD manifest set (webhook → queue → worker → S3).
type MergeJob struct {
	ID          uuid.UUID        `json:"id"`
	VideoID     uuid.UUID        `json:"video_id"`
	Environment string           `json:"environment"`
	Stamp       string           `json:"stamp"`
	Status      string           `json:"status"`
	SliceCount  int              `json:"slice_count"`
	Slices      []RecordingSlice `json:"slices,omitempty"`
	ManifestURL string           `json:"manifest_url,omitempty"`
	ErrorDetail string           `json:"error_detail,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}
