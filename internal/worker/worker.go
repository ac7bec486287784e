package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vodstitch/backend/internal/jobs"
	"github.com/vodstitch/backend/internal/merge"
	"github.com/vodstitch/backend/internal/models"
	"github.com/vodstitch/backend/pkg/metrics"
	"github.com/vodstitch/backend/pkg/queue"
)

// MergeProcessor consumes manifest merge jobs: run the merge pipeline,
// record the merged master URL on the job row.
type MergeProcessor struct {
	jobRepo *jobs.Repository
	merger  *merge.Merger
	queue   *queue.Queue
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewMergeProcessor creates a merge job processor. Metrics may be nil.
func NewMergeProcessor(jobRepo *jobs.Repository, merger *merge.Merger, q *queue.Queue, m *metrics.Metrics, logger *zap.Logger) *MergeProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MergeProcessor{jobRepo: jobRepo, merger: merger, queue: q, metrics: m, logger: logger}
}

// Process executes one merge job.
func (p *MergeProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeManifestMerge {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.MergePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	row, err := p.jobRepo.GetByID(ctx, payload.JobID)
	if err != nil || row == nil {
		return fmt.Errorf("merge job not found: %s", payload.JobID)
	}
	if row.Status == models.MergeStatusCompleted {
		p.logger.Info("merge already completed", zap.String("job_id", row.ID.String()))
		return nil
	}
	if err := p.jobRepo.MarkProcessing(ctx, payload.JobID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	start := time.Now()
	manifestURL, err := p.merger.Merge(ctx, merge.Request{
		Environment: payload.Environment,
		PK:          payload.VideoID.String(),
		Stamp:       payload.Stamp,
		Slices:      payload.Slices,
	})
	if err != nil {
		if p.metrics != nil {
			p.metrics.IncMergesFailed()
		}
		if dbErr := p.jobRepo.MarkFailed(ctx, payload.JobID, err.Error()); dbErr != nil {
			p.logger.Error("mark failed errored", zap.Error(dbErr), zap.String("job_id", payload.JobID.String()))
		}
		return fmt.Errorf("merge: %w", err)
	}

	if err := p.jobRepo.MarkCompleted(ctx, payload.JobID, manifestURL); err != nil {
		p.logger.Error("mark completed errored", zap.Error(err), zap.String("job_id", payload.JobID.String()))
		return fmt.Errorf("update db: %w", err)
	}
	if p.metrics != nil {
		p.metrics.IncMergesCompleted()
		p.metrics.ObserveMergeDuration(time.Since(start))
	}

	p.logger.Info("merge job completed",
		zap.String("job_id", payload.JobID.String()),
		zap.String("manifest_url", manifestURL),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *MergeProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("merge worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
