// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for image-processing
// jobs, including the guarded status updates the transition engine builds on.
//
// Functions:
//
//   - CreateJobs(ctx, db, jobs) -> error
//     Inserts a job batch in a single statement; all-or-nothing when run
//     inside a transaction.
//
//   - GetJob(ctx, db, id) -> *domain.ImageProcessingJob, error
//     Fetches a single job, or ErrNotFound if missing.
//
//   - ListPendingJobs(ctx, db, limit) -> []domain.ImageProcessingJob, error
//     FIFO read-side view for worker polling; never mutates status.
//
//   - TransitionJob(ctx, db, id, fromStatuses, updates) -> (int64, error)
//     Single guarded UPDATE: the row changes only if its current status is in
//     fromStatuses. The affected-row count lets the caller distinguish a won
//     race from a lost one.
//
//   - CountJobsByStatus / ListJobsByRequest / ListCompletedJobs
//     Rollup queries scoped to one processing request.
//
//   - RequeueStaleJobs(ctx, db, cutoff) -> (int64, error)
//     Operator reclaim of processing rows untouched since cutoff.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/menupix/menupix-backend/internal/domain"
)

// CreateJobs inserts the given jobs as one batch. Callers that need the
// batch to be invisible until fully written must run this inside a
// transaction (the service layer does). Unique-key violations propagate as
// the raw driver error for the caller to classify.
func CreateJobs(ctx context.Context, db *gorm.DB, jobs []domain.ImageProcessingJob) error {
	if len(jobs) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&jobs).Error
}

// GetJob fetches a single job by its ID. If the record does not exist, it
// returns ErrNotFound. On other DB errors, the raw error is returned.
func GetJob(ctx context.Context, db *gorm.DB, id string) (*domain.ImageProcessingJob, error) {
	var j domain.ImageProcessingJob
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&j).Error
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// ListPendingJobs returns up to limit jobs in pending status, oldest first.
// The ID tiebreak keeps ordering deterministic for rows created in the same
// clock tick. This is a pure read; claiming is a separate transition.
func ListPendingJobs(ctx context.Context, db *gorm.DB, limit int) ([]domain.ImageProcessingJob, error) {
	var out []domain.ImageProcessingJob
	err := db.WithContext(ctx).
		Where("status = ?", domain.JobStatusPending).
		Order("created_at asc, id asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// TransitionJob performs the atomic read-modify-write at the heart of the
// state machine: a single UPDATE guarded by the set of admissible current
// statuses. Two concurrent callers racing on the same row see exactly one
// RowsAffected == 1 and one RowsAffected == 0.
func TransitionJob(ctx context.Context, db *gorm.DB, id string, fromStatuses []string, updates map[string]any) (int64, error) {
	if updates == nil {
		updates = map[string]any{}
	}
	updates["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.ImageProcessingJob{}).
		Where("id = ? AND status IN ?", id, fromStatuses).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// CountJobsByStatus returns a status → row count map for the jobs owned by
// requestID. Statuses with no rows are absent from the map.
func CountJobsByStatus(ctx context.Context, db *gorm.DB, requestID string) (map[string]int64, error) {
	var rows []struct {
		Status string
		N      int64
	}
	err := db.WithContext(ctx).
		Model(&domain.ImageProcessingJob{}).
		Select("status, COUNT(*) as n").
		Where("request_id = ?", requestID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}

// ListJobsByRequest returns every job owned by requestID, oldest first.
func ListJobsByRequest(ctx context.Context, db *gorm.DB, requestID string) ([]domain.ImageProcessingJob, error) {
	var out []domain.ImageProcessingJob
	err := db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, err
}

// ListCompletedJobs returns the completed jobs owned by requestID with their
// result URLs, ordered by product name for stable download listings.
func ListCompletedJobs(ctx context.Context, db *gorm.DB, requestID string) ([]domain.ImageProcessingJob, error) {
	var out []domain.ImageProcessingJob
	err := db.WithContext(ctx).
		Where("request_id = ? AND status = ?", requestID, domain.JobStatusCompleted).
		Order("product_name asc").
		Find(&out).Error
	return out, err
}

// RequeueStaleJobs resets processing jobs whose last update predates cutoff
// back to pending, clearing any recorded worker callback. Returns the number
// of rows reclaimed.
func RequeueStaleJobs(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.ImageProcessingJob{}).
		Where("status = ? AND updated_at < ?", domain.JobStatusProcessing, cutoff).
		Updates(map[string]any{
			"status":              domain.JobStatusPending,
			"worker_callback_url": nil,
			"updated_at":          time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}
