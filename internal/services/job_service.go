// Job lifecycle operations and the status state machine.
//
// This file implements the JobService, covering three concerns of the image
// pipeline:
//
//   - the job factory: one pending job per product image, created as an
//     all-or-nothing batch stamped with the owning request ID;
//   - the worker queue view: a bounded FIFO read of pending jobs that never
//     claims anything;
//   - the status transition engine: Start, Complete, Fail and the operator
//     requeue, each an atomic guarded update on a single job row.
//
// Two concurrent Start calls on the same job yield exactly one success and
// one ErrInvalidTransition; a lost update is not possible because the guard
// and the write are a single statement.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/menupix/menupix-backend/internal/domain"
	"github.com/menupix/menupix-backend/internal/repo"
)

// jobTransitions counts state-machine transitions by outcome, for dashboards
// tracking worker throughput and failure rates.
var jobTransitions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "image_job_transitions_total",
		Help: "Total number of image job status transitions.",
	},
	[]string{"to_status"},
)

func init() {
	prometheus.MustRegister(jobTransitions)
}

// Notifier receives best-effort notifications about request completion.
// Implementations must not block for long and must swallow their own errors.
type Notifier interface {
	// RequestFinished is invoked once every job of a request has reached a
	// terminal status.
	RequestFinished(ctx context.Context, req *domain.ProcessingRequest, completed, failed int)
}

// JobService implements job creation, the pending queue view, and the job
// state machine. All mutating operations are safe under concurrent callers.
type JobService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// DefaultPollLimit is used when a worker polls without a limit.
	DefaultPollLimit int
	// MaxPollLimit caps the limit a single poll may request, so one poller
	// cannot starve others.
	MaxPollLimit int
	// Notifier, when set, is told about finished requests. Optional.
	Notifier Notifier
}

// NewJobService constructs a JobService with the given poll bounds.
func NewJobService(db *gorm.DB, defaultLimit, maxLimit int) *JobService {
	return &JobService{DB: db, DefaultPollLimit: defaultLimit, MaxPollLimit: maxLimit}
}

// CreateJobs builds one pending job per product carrying a non-empty image
// URL and persists the batch atomically; a partial batch is never visible to
// the queue view. Products without an image are silently skipped. Each job
// gets a fresh UUID; a collision aborts the whole batch with
// ErrDuplicateJobID.
func (s *JobService) CreateJobs(ctx context.Context, requestID, restaurantURL string, products []domain.Product) ([]domain.ImageProcessingJob, error) {
	now := time.Now().UTC()
	jobs := make([]domain.ImageProcessingJob, 0, len(products))
	for _, p := range products {
		if p.ImageURL == "" {
			continue
		}
		jobs = append(jobs, domain.ImageProcessingJob{
			ID:               uuid.NewString(),
			RequestID:        requestID,
			RestaurantURL:    restaurantURL,
			RestaurantName:   p.RestaurantName,
			ProductName:      p.Name,
			OriginalImageURL: p.ImageURL,
			Status:           domain.JobStatusPending,
			CreatedAt:        now,
		})
	}
	if len(jobs) == 0 {
		return []domain.ImageProcessingJob{}, nil
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return repo.CreateJobs(ctx, tx, jobs)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicateKey(err) {
			return nil, ErrDuplicateJobID
		}
		return nil, err
	}
	return jobs, nil
}

// ListPending returns up to limit pending jobs, oldest first. A zero or
// negative limit falls back to the configured default; limits above the cap
// are clamped. The read never claims jobs: a worker that polls and crashes
// leaves them pending for the next poll.
func (s *JobService) ListPending(ctx context.Context, limit int) ([]domain.ImageProcessingJob, error) {
	if limit <= 0 {
		limit = s.DefaultPollLimit
	}
	if s.MaxPollLimit > 0 && limit > s.MaxPollLimit {
		limit = s.MaxPollLimit
	}
	return repo.ListPendingJobs(ctx, s.DB, limit)
}

// Get fetches a single job by ID, mapping missing rows to ErrJobNotFound.
func (s *JobService) Get(ctx context.Context, jobID string) (*domain.ImageProcessingJob, error) {
	j, err := repo.GetJob(ctx, s.DB, jobID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return j, nil
}

// Start claims a pending job for the worker (pending → processing). The
// worker may record its own callback URL on the row. Returns
// ErrInvalidTransition when the job is not currently pending, or
// ErrJobNotFound for an unknown ID.
func (s *JobService) Start(ctx context.Context, jobID, workerCallbackURL string) error {
	updates := map[string]any{"status": domain.JobStatusProcessing}
	if workerCallbackURL != "" {
		updates["worker_callback_url"] = workerCallbackURL
	}
	err := s.transition(ctx, jobID, []string{domain.JobStatusPending}, updates)
	if err == nil {
		jobTransitions.WithLabelValues(domain.JobStatusProcessing).Inc()
	}
	return err
}

// Complete finishes a processing job (processing → completed), storing the
// two result URLs delivered by the worker webhook. Completing a job that was
// never started fails with ErrInvalidTransition. When the owning request has
// no unfinished jobs left afterwards, the notifier is informed.
func (s *JobService) Complete(ctx context.Context, jobID, processedURL, watermarkedURL string) error {
	err := s.transition(ctx, jobID, []string{domain.JobStatusProcessing}, map[string]any{
		"status":                domain.JobStatusCompleted,
		"processed_image_url":   processedURL,
		"watermarked_image_url": watermarkedURL,
	})
	if err != nil {
		return err
	}
	jobTransitions.WithLabelValues(domain.JobStatusCompleted).Inc()
	s.notifyIfFinished(ctx, jobID)
	return nil
}

// Fail marks a job failed, allowed from pending or processing. Result URLs
// are discarded and the reason recorded. Failed jobs are terminal; there is
// no automatic retry.
func (s *JobService) Fail(ctx context.Context, jobID, reason string) error {
	err := s.transition(ctx, jobID, []string{domain.JobStatusPending, domain.JobStatusProcessing}, map[string]any{
		"status":                domain.JobStatusFailed,
		"processed_image_url":   nil,
		"watermarked_image_url": nil,
		"failure_reason":        reason,
	})
	if err != nil {
		return err
	}
	jobTransitions.WithLabelValues(domain.JobStatusFailed).Inc()
	s.notifyIfFinished(ctx, jobID)
	return nil
}

// RequeueStale resets processing jobs untouched for longer than olderThan
// back to pending and returns how many rows were reclaimed. This is an
// explicit operator action, never run automatically: by default a job stuck
// in processing stays there, matching the accepted limitation of the
// polling contract.
func (s *JobService) RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, ErrInvalidRequeueAge
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	n, err := repo.RequeueStaleJobs(ctx, s.DB, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Warn().Int64("requeued", n).Dur("older_than", olderThan).Msg("stale processing jobs reset to pending")
	}
	return n, nil
}

// transition runs a guarded single-row update inside a transaction. When the
// guard misses, the row is re-read to distinguish an unknown job from a
// state-machine violation.
func (s *JobService) transition(ctx context.Context, jobID string, from []string, updates map[string]any) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := repo.TransitionJob(ctx, tx, jobID, from, updates)
		if err != nil {
			return err
		}
		if n == 0 {
			if _, err := repo.GetJob(ctx, tx, jobID); err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					return ErrJobNotFound
				}
				return err
			}
			return ErrInvalidTransition
		}
		return nil
	})
}

// notifyIfFinished checks whether the request owning jobID has any
// unfinished jobs left and, if not, informs the notifier. Best effort: any
// error here is logged and dropped, it must not fail the transition that
// triggered it.
func (s *JobService) notifyIfFinished(ctx context.Context, jobID string) {
	if s.Notifier == nil {
		return
	}
	job, err := repo.GetJob(ctx, s.DB, jobID)
	if err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Msg("completion check: load job")
		return
	}
	counts, err := repo.CountJobsByStatus(ctx, s.DB, job.RequestID)
	if err != nil {
		log.Warn().Err(err).Str("request_id", job.RequestID).Msg("completion check: count jobs")
		return
	}
	if counts[domain.JobStatusPending] > 0 || counts[domain.JobStatusProcessing] > 0 {
		return
	}
	// Two final transitions can race to this point; only the one that claims
	// the flag on the request row sends the email.
	claimed, err := repo.MarkRequestNotified(ctx, s.DB, job.RequestID)
	if err != nil {
		log.Warn().Err(err).Str("request_id", job.RequestID).Msg("completion check: claim notification")
		return
	}
	if !claimed {
		return
	}
	req, err := repo.GetRequest(ctx, s.DB, job.RequestID)
	if err != nil {
		// Jobs created outside a request (tests, backfills) have no one to notify.
		return
	}
	s.Notifier.RequestFinished(ctx, req,
		int(counts[domain.JobStatusCompleted]), int(counts[domain.JobStatusFailed]))
}

// isDuplicateKey detects unique-constraint violations across drivers that
// may not map to gorm.ErrDuplicatedKey.
func isDuplicateKey(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
