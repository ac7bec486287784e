package jobs

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vodstitch/backend/internal/models"
	"github.com/vodstitch/backend/pkg/metrics"
	"github.com/vodstitch/backend/pkg/queue"
	"github.com/vodstitch/backend/pkg/response"
	"github.com/vodstitch/backend/pkg/storage"
)

// JobStore is the persistence surface the handlers need.
type JobStore interface {
	Create(ctx context.Context, job *models.MergeJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.MergeJob, error)
	GetByVideoStamp(ctx context.Context, videoID uuid.UUID, stamp string) (*models.MergeJob, error)
	ListByVideo(ctx context.Context, videoID uuid.UUID) ([]models.MergeJob, error)
}

// Enqueuer pushes merge jobs onto the work queue.
type Enqueuer interface {
	EnqueueMerge(ctx context.Context, payload queue.MergePayload) error
}

// ManifestSigner issues pre-signed URLs for stored manifests. Optional; nil
// disables the download-url endpoint.
type ManifestSigner interface {
	PresignedManifestURL(ctx context.Context, key string, expires time.Duration) (string, error)
	PresignExpire() time.Duration
}

// SlicesHarvestedPayload is the body of the harvester's completion webhook.
type SlicesHarvestedPayload struct {
	Environment  string                  `json:"environment"`
	VideoID      string                  `json:"video_id"`
	Stamp        string                  `json:"stamp"`
	RecordSlices []models.RecordingSlice `json:"record_slices"`
}

// Handler handles merge job HTTP endpoints.
type Handler struct {
	repo          JobStore
	queue         Enqueuer
	signer        ManifestSigner
	metrics       *metrics.Metrics
	webhookSecret string
	logger        *zap.Logger
}

// NewHandler creates a merge jobs handler. Metrics and signer may be nil;
// an empty webhookSecret disables signature verification.
func NewHandler(repo JobStore, q Enqueuer, signer ManifestSigner, m *metrics.Metrics, webhookSecret string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, queue: q, signer: signer, metrics: m, webhookSecret: webhookSecret, logger: logger}
}

// SlicesHarvested handles POST /webhooks/slices-harvested. Validates the
// payload, records a merge job, and enqueues it for the worker. A job that
// already completed for the same (video, stamp) short-circuits with its
// existing manifest URL: the output keys are deterministic, so re-running an
// unchanged request only overwrites identical objects.
func (h *Handler) SlicesHarvested(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}
	if h.webhookSecret != "" && !h.verifySignature(raw, c.GetHeader("X-Webhook-Signature")) {
		response.Unauthorized(c, "invalid signature")
		return
	}

	var body SlicesHarvestedPayload
	if err := json.Unmarshal(raw, &body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	videoID, err := uuid.Parse(body.VideoID)
	if err != nil {
		response.BadRequest(c, "invalid video_id")
		return
	}
	if body.Stamp == "" {
		response.BadRequest(c, "stamp required")
		return
	}
	if body.Environment == "" {
		response.BadRequest(c, "environment required")
		return
	}
	if len(body.RecordSlices) == 0 {
		response.BadRequest(c, "at least one recording slice required")
		return
	}
	for _, slice := range body.RecordSlices {
		if slice.ManifestKey == "" || slice.HarvestedDirectory == "" {
			response.BadRequest(c, "each slice requires manifest_key and harvested_directory")
			return
		}
	}

	ctx := c.Request.Context()
	if existing, err := h.repo.GetByVideoStamp(ctx, videoID, body.Stamp); err == nil && existing != nil {
		switch existing.Status {
		case models.MergeStatusCompleted:
			response.OK(c, existing)
			return
		case models.MergeStatusPending, models.MergeStatusProcessing:
			response.Conflict(c, "merge already in progress for this stamp")
			return
		}
		// The row is unique per (video, stamp), so a failed job is
		// re-enqueued rather than recreated.
		if err := h.enqueue(ctx, existing, body.RecordSlices); err != nil {
			response.Internal(c, "failed to enqueue merge")
			return
		}
		response.Accepted(c, existing)
		return
	}

	job := &models.MergeJob{
		VideoID:     videoID,
		Environment: body.Environment,
		Stamp:       body.Stamp,
		Status:      models.MergeStatusPending,
		SliceCount:  len(body.RecordSlices),
		Slices:      body.RecordSlices,
	}
	if err := h.repo.Create(ctx, job); err != nil {
		h.logger.Error("create merge job failed", zap.Error(err), zap.String("video_id", body.VideoID))
		response.Internal(c, "failed to create merge job")
		return
	}
	if err := h.enqueue(ctx, job, body.RecordSlices); err != nil {
		response.Internal(c, "failed to enqueue merge")
		return
	}

	h.logger.Info("slices-harvested webhook processed",
		zap.String("job_id", job.ID.String()),
		zap.String("video_id", body.VideoID),
		zap.String("stamp", body.Stamp),
		zap.Int("slices", len(body.RecordSlices)))
	response.Accepted(c, job)
}

// GetJob handles GET /jobs/:id.
func (h *Handler) GetJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid job id")
		return
	}
	job, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get merge job failed", zap.Error(err), zap.String("job_id", id.String()))
		response.Internal(c, "failed to load job")
		return
	}
	if job == nil {
		response.NotFound(c, "job not found")
		return
	}
	response.OK(c, job)
}

// ListByVideo handles GET /videos/:id/jobs.
func (h *Handler) ListByVideo(c *gin.Context) {
	videoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid video id")
		return
	}
	list, err := h.repo.ListByVideo(c.Request.Context(), videoID)
	if err != nil {
		h.logger.Error("list merge jobs failed", zap.Error(err), zap.String("video_id", videoID.String()))
		response.Internal(c, "failed to list jobs")
		return
	}
	response.OK(c, list)
}

// GenerateDownloadURL handles GET /jobs/:id/download-url. Returns a
// pre-signed URL for the merged master manifest of a completed job.
func (h *Handler) GenerateDownloadURL(c *gin.Context) {
	if h.signer == nil {
		response.Internal(c, "S3 not configured")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid job id")
		return
	}
	job, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil || job == nil {
		response.NotFound(c, "job not found")
		return
	}
	if job.Status != models.MergeStatusCompleted {
		response.BadRequest(c, "merge not completed")
		return
	}

	expire := h.signer.PresignExpire()
	key := storage.MasterManifestKey(job.VideoID.String(), job.Stamp)
	url, err := h.signer.PresignedManifestURL(c.Request.Context(), key, expire)
	if err != nil {
		h.logger.Error("presign manifest failed", zap.Error(err), zap.String("job_id", id.String()))
		response.Internal(c, "failed to generate download URL")
		return
	}
	response.OK(c, gin.H{"download_url": url, "expires_in": int(expire.Seconds())})
}

func (h *Handler) enqueue(ctx context.Context, job *models.MergeJob, slices []models.RecordingSlice) error {
	err := h.queue.EnqueueMerge(ctx, queue.MergePayload{
		JobID:       job.ID,
		VideoID:     job.VideoID,
		Environment: job.Environment,
		Stamp:       job.Stamp,
		Slices:      slices,
	})
	if err != nil {
		h.logger.Error("enqueue merge failed", zap.Error(err), zap.String("job_id", job.ID.String()))
		return err
	}
	if h.metrics != nil {
		h.metrics.IncMergesEnqueued()
	}
	return nil
}

// verifySignature checks the hex HMAC-SHA256 of the raw body against the
// X-Webhook-Signature header.
func (h *Handler) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
