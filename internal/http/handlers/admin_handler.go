// Operator HTTP handlers.
package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/menupix/menupix-backend/internal/http/middleware"
)

// RequeueStaleRequest is the JSON payload for the operator requeue action.
type RequeueStaleRequest struct {
	// OlderThanMinutes selects processing jobs whose last update is at
	// least this old.
	OlderThanMinutes int `json:"older_than_minutes" binding:"required,min=1"`
}

// RequeueStaleResponse reports how many jobs went back to pending.
type RequeueStaleResponse struct {
	Requeued int64 `json:"requeued"`
}

// RequeueStale returns long-stuck processing jobs to the pending queue so
// workers can pick them up again. This is an explicit operator decision, not
// an automatic recovery: jobs claimed by a crashed worker stay processing
// until someone invokes it. A floor on older_than keeps a typo from
// recycling jobs that are still legitimately in flight.
func (h *Handlers) RequeueStale(c *gin.Context) {
	ctx := c.Request.Context()

	var req RequeueStaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "older_than_minutes required and must be positive")
		return
	}

	olderThan := time.Duration(req.OlderThanMinutes) * time.Minute
	if olderThan < h.requeueMinAge {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest,
			fmt.Sprintf("older_than_minutes must be at least %d", int(h.requeueMinAge.Minutes())))
		return
	}

	n, err := h.jobSvc.RequeueStale(ctx, olderThan)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	middleware.LoggerFrom(c).Warn().
		Int64("requeued", n).
		Int("older_than_minutes", req.OlderThanMinutes).
		Msg("stale jobs requeued by operator")

	ok(c, http.StatusOK, RequeueStaleResponse{Requeued: n})
}
