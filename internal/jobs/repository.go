package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vodstitch/backend/internal/models"
)

// Repository handles merge job persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a merge jobs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new merge job (status pending) with its slice list.
func (r *Repository) Create(ctx context.Context, job *models.MergeJob) error {
	slices, err := json.Marshal(job.Slices)
	if err != nil {
		return fmt.Errorf("marshal slices: %w", err)
	}
	const q = `INSERT INTO merge_jobs (id, video_id, environment, stamp, status, slice_count, slices)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, job.VideoID, job.Environment, job.Stamp, job.Status, job.SliceCount, slices).
		Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
}

// GetByID returns a merge job by ID, or nil when not found.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.MergeJob, error) {
	const q = `SELECT id, video_id, environment, stamp, status, slice_count, slices, COALESCE(manifest_url,''), COALESCE(error_detail,''), created_at, updated_at
		FROM merge_jobs WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, q, id))
}

// GetByVideoStamp returns the merge job for a (video, stamp) pair, or nil when none exists.
func (r *Repository) GetByVideoStamp(ctx context.Context, videoID uuid.UUID, stamp string) (*models.MergeJob, error) {
	const q = `SELECT id, video_id, environment, stamp, status, slice_count, slices, COALESCE(manifest_url,''), COALESCE(error_detail,''), created_at, updated_at
		FROM merge_jobs WHERE video_id = $1 AND stamp = $2`
	return r.scanOne(r.pool.QueryRow(ctx, q, videoID, stamp))
}

// ListByVideo returns all merge jobs for a video, newest first.
func (r *Repository) ListByVideo(ctx context.Context, videoID uuid.UUID) ([]models.MergeJob, error) {
	const q = `SELECT id, video_id, environment, stamp, status, slice_count, slices, COALESCE(manifest_url,''), COALESCE(error_detail,''), created_at, updated_at
		FROM merge_jobs WHERE video_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.MergeJob
	for rows.Next() {
		var job models.MergeJob
		var slices []byte
		if err := rows.Scan(&job.ID, &job.VideoID, &job.Environment, &job.Stamp, &job.Status, &job.SliceCount, &slices, &job.ManifestURL, &job.ErrorDetail, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(slices, &job.Slices); err != nil {
			return nil, fmt.Errorf("unmarshal slices: %w", err)
		}
		list = append(list, job)
	}
	return list, rows.Err()
}

// MarkProcessing sets job status to processing.
func (r *Repository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE merge_jobs SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, models.MergeStatusProcessing, id)
	return err
}

// MarkCompleted sets job status to completed with the merged master URL.
func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID, manifestURL string) error {
	const q = `UPDATE merge_jobs SET status = $1, manifest_url = $2, error_detail = '', updated_at = NOW() WHERE id = $3`
	_, err := r.pool.Exec(ctx, q, models.MergeStatusCompleted, manifestURL, id)
	return err
}

// MarkFailed sets job status to failed with the failure detail.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, detail string) error {
	const q = `UPDATE merge_jobs SET status = $1, error_detail = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.pool.Exec(ctx, q, models.MergeStatusFailed, detail, id)
	return err
}

func (r *Repository) scanOne(row pgx.Row) (*models.MergeJob, error) {
	var job models.MergeJob
	var slices []byte
	err := row.Scan(&job.ID, &job.VideoID, &job.Environment, &job.Stamp, &job.Status, &job.SliceCount, &slices, &job.ManifestURL, &job.ErrorDetail, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(slices, &job.Slices); err != nil {
		return nil, fmt.Errorf("unmarshal slices: %w", err)
	}
	return &job, nil
}
