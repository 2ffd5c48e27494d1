// Worker-facing HTTP handlers.
//
// This file exposes the endpoints consumed by the external image-enhancement
// worker fleet:
//   - GET  /worker/pending-jobs              (poll for work, oldest first)
//   - POST /worker/jobs/{id}/start           (claim a pending job)
//   - POST /worker/jobs/{id}/fail            (report an unrecoverable failure)
//   - POST /webhook/job-complete/{id}        (report results, success or failure)
//
// Polling is read-only and does not claim jobs; two workers may observe the
// same pending job, and the start endpoint arbitrates. Exactly one of two
// concurrent start calls succeeds, the other receives 409 with the
// invalid_transition code.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/menupix/menupix-backend/internal/domain"
	"github.com/menupix/menupix-backend/internal/http/middleware"
	"github.com/menupix/menupix-backend/internal/services"
	"github.com/menupix/menupix-backend/internal/utils"
)

//
// DTOs
//

// PendingJob is one unit of work offered to a polling worker. WebhookURL is
// the absolute URL the worker must call to report the outcome for this job.
type PendingJob struct {
	JobID            string `json:"job_id"`
	RestaurantName   string `json:"restaurant_name"`
	ProductName      string `json:"product_name"`
	OriginalImageURL string `json:"original_image_url"`
	WebhookURL       string `json:"webhook_url"`
}

// PendingJobsResponse is the poll envelope.
type PendingJobsResponse struct {
	Jobs  []PendingJob `json:"jobs"`
	Count int          `json:"count"`
}

// StartJobRequest is the JSON payload for claiming a job. The callback URL
// is optional; when present it is recorded so a stale claim can be traced
// back to the worker that took it.
type StartJobRequest struct {
	WorkerCallbackURL string `json:"worker_callback_url" binding:"omitempty,url"`
}

// CompleteJobRequest is the webhook payload reporting a job outcome.
// Status must be "completed" or "failed". Result URLs are required for a
// completion, the failure reason for a failure.
type CompleteJobRequest struct {
	Status              string `json:"status" binding:"required,oneof=completed failed"`
	ProcessedImageURL   string `json:"processed_image_url" binding:"omitempty,url"`
	WatermarkedImageURL string `json:"watermarked_image_url" binding:"omitempty,url"`
	FailureReason       string `json:"failure_reason"`
}

// FailJobRequest is the JSON payload for marking a job failed directly.
type FailJobRequest struct {
	Reason string `json:"reason" binding:"required,min=1"`
}

// JobStatusResponse echoes a job's identity and status after a transition.
type JobStatusResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

//
// Handlers
//

// ListPendingJobs returns the oldest pending jobs, capped by the limit query
// parameter. The read claims nothing; jobs stay pending until a worker
// starts them.
func (h *Handlers) ListPendingJobs(c *gin.Context) {
	ctx := c.Request.Context()

	limit := utils.AtoiDefault(c.Query("limit"), 0)
	if c.Query("limit") != "" && limit <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "limit must be a positive integer")
		return
	}

	jobs, err := h.jobSvc.ListPending(ctx, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	out := make([]PendingJob, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, PendingJob{
			JobID:            j.ID,
			RestaurantName:   j.RestaurantName,
			ProductName:      j.ProductName,
			OriginalImageURL: j.OriginalImageURL,
			WebhookURL:       h.webhookBase + "/webhook/job-complete/" + j.ID,
		})
	}

	ok(c, http.StatusOK, PendingJobsResponse{Jobs: out, Count: len(out)})
}

// StartJob claims a pending job for the calling worker. The transition is a
// single guarded update, so under concurrent claims exactly one caller
// succeeds; the rest get 409.
func (h *Handlers) StartJob(c *gin.Context) {
	ctx := c.Request.Context()
	jobID := c.Param("id")

	if _, err := uuid.Parse(jobID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "job id must be a UUID")
		return
	}

	var req StartJobRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "worker_callback_url must be a valid URL")
			return
		}
	}

	if err := h.jobSvc.Start(ctx, jobID, strings.TrimSpace(req.WorkerCallbackURL)); err != nil {
		failJobTransition(c, err)
		return
	}

	middleware.LoggerFrom(c).Info().Str("job_id", jobID).Msg("job claimed")
	ok(c, http.StatusOK, JobStatusResponse{JobID: jobID, Status: domain.JobStatusProcessing})
}

// CompleteJob is the webhook workers call when a job finishes. A "completed"
// status requires the processed image URL; a "failed" status records the
// failure reason. Only processing jobs can complete; failure is also
// accepted for jobs still pending, so a worker can reject work it never
// started.
func (h *Handlers) CompleteJob(c *gin.Context) {
	ctx := c.Request.Context()
	jobID := c.Param("id")

	if _, err := uuid.Parse(jobID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "job id must be a UUID")
		return
	}

	var req CompleteJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status must be completed or failed")
		return
	}

	var err error
	switch req.Status {
	case domain.JobStatusCompleted:
		if req.ProcessedImageURL == "" {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "processed_image_url required for completion")
			return
		}
		err = h.jobSvc.Complete(ctx, jobID, req.ProcessedImageURL, req.WatermarkedImageURL)
	case domain.JobStatusFailed:
		reason := strings.TrimSpace(req.FailureReason)
		if reason == "" {
			reason = "worker reported failure"
		}
		err = h.jobSvc.Fail(ctx, jobID, reason)
	}
	if err != nil {
		failJobTransition(c, err)
		return
	}

	middleware.LoggerFrom(c).Info().
		Str("job_id", jobID).
		Str("status", req.Status).
		Msg("job outcome recorded")
	ok(c, http.StatusOK, JobStatusResponse{JobID: jobID, Status: req.Status})
}

// FailJob marks a job failed with an operator- or worker-supplied reason.
// Accepted from pending or processing.
func (h *Handlers) FailJob(c *gin.Context) {
	ctx := c.Request.Context()
	jobID := c.Param("id")

	if _, err := uuid.Parse(jobID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "job id must be a UUID")
		return
	}

	var req FailJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "reason required")
		return
	}

	if err := h.jobSvc.Fail(ctx, jobID, strings.TrimSpace(req.Reason)); err != nil {
		failJobTransition(c, err)
		return
	}

	ok(c, http.StatusOK, JobStatusResponse{JobID: jobID, Status: domain.JobStatusFailed})
}

// failJobTransition translates job state machine errors into HTTP responses.
func failJobTransition(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrJobNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "job not found")
	case errors.Is(err, services.ErrInvalidTransition):
		fail(c, http.StatusConflict, ErrCodeInvalidTransition, "job is not in a status that allows this transition")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
