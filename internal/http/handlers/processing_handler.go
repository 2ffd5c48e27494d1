// Restaurant processing HTTP handlers.
//
// This file exposes the user-facing entry points of the pipeline:
//   - POST /process-restaurant   (resolve, scrape if needed, create jobs)
//   - GET  /restaurants/resolve  (read-only catalog lookup for a URL)
//   - GET  /requests/{id}        (aggregate status of one request)
//
// Handlers are transport-thin: they validate input, call the application
// services, and translate service errors into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/menupix/menupix-backend/internal/domain"
	"github.com/menupix/menupix-backend/internal/http/middleware"
	"github.com/menupix/menupix-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// ProcessorService defines the orchestration operations consumed by the
// handlers. Implementations must honor the provided context.
type ProcessorService interface {
	// ProcessRestaurant runs one end-to-end processing action and returns
	// the resulting request summary.
	ProcessRestaurant(ctx context.Context, restaurantURL, userEmail string) (*services.RequestSummary, error)
	// Resolve performs the read-only known-vs-new check.
	Resolve(ctx context.Context, restaurantURL string) (*services.Resolution, error)
}

// JobService defines the job lifecycle operations consumed by the worker
// and webhook endpoints.
type JobService interface {
	ListPending(ctx context.Context, limit int) ([]domain.ImageProcessingJob, error)
	Get(ctx context.Context, jobID string) (*domain.ImageProcessingJob, error)
	Start(ctx context.Context, jobID, workerCallbackURL string) error
	Complete(ctx context.Context, jobID, processedURL, watermarkedURL string) error
	Fail(ctx context.Context, jobID, reason string) error
	RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// RequestService defines the request aggregation, payment, and download
// operations consumed by the handlers.
type RequestService interface {
	Status(ctx context.Context, requestID string) (*services.RequestStatus, error)
	SetPaymentStatus(ctx context.Context, requestID, status string) error
	Download(ctx context.Context, requestID, downloadType string) (*services.DownloadPackage, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints of the API. It depends on abstract
// service interfaces to keep transport concerns separate from business
// logic. webhookBase is the externally reachable prefix (scheme, host, and
// API base path) used to build per-job completion webhook URLs.
type Handlers struct {
	procSvc     ProcessorService
	jobSvc      JobService
	reqSvc      RequestService
	webhookBase string

	// requeueMinAge is the smallest older_than accepted by the requeue
	// endpoint, so an operator typo cannot recycle jobs still in flight.
	requeueMinAge time.Duration
}

// New constructs a Handlers instance bound to the given services.
func New(procSvc ProcessorService, jobSvc JobService, reqSvc RequestService, webhookBase string, requeueMinAge time.Duration) *Handlers {
	return &Handlers{
		procSvc:       procSvc,
		jobSvc:        jobSvc,
		reqSvc:        reqSvc,
		webhookBase:   strings.TrimRight(webhookBase, "/"),
		requeueMinAge: requeueMinAge,
	}
}

//
// DTOs
//

// ProcessRestaurantRequest is the JSON payload for starting a processing run.
type ProcessRestaurantRequest struct {
	// RestaurantURL is the menu page to process. It must belong to the
	// configured source platform.
	RestaurantURL string `json:"restaurant_url" binding:"required,min=1"`
	// UserEmail optionally receives the completion notification.
	UserEmail string `json:"user_email" binding:"omitempty,email"`
}

// ProcessRestaurantResponse wraps the request summary returned on success.
type ProcessRestaurantResponse struct {
	Summary *services.RequestSummary `json:"summary"`
}

// ResolveRestaurantResponse reports what the catalog already knows about a
// restaurant URL, without triggering a scrape.
type ResolveRestaurantResponse struct {
	IsNew              bool   `json:"is_new"`
	Stale              bool   `json:"stale"`
	RestaurantName     string `json:"restaurant_name,omitempty"`
	TotalProducts      int    `json:"total_products"`
	ProductsWithImages int    `json:"products_with_images"`
}

//
// Handlers
//

// ProcessRestaurant starts an end-to-end processing run for a restaurant
// URL: resolve against the catalog, scrape when new or stale, create one
// pending job per product image, and register the processing request.
//
// Responses:
//   - 201 with the request summary (request id, counts, cost, estimate)
//   - 400 invalid or off-platform URL, or malformed payload
//   - 404 no products could be extracted for the restaurant
//   - 502 the platform page could not be fetched or parsed
func (h *Handlers) ProcessRestaurant(c *gin.Context) {
	ctx := c.Request.Context()

	var req ProcessRestaurantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "restaurant_url required")
		return
	}

	restaurantURL := strings.TrimSpace(req.RestaurantURL)

	summary, err := h.procSvc.ProcessRestaurant(ctx, restaurantURL, strings.TrimSpace(req.UserEmail))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidRestaurantURL):
			fail(c, http.StatusBadRequest, ErrCodeInvalidURL, "restaurant url must belong to the supported platform")
		case errors.Is(err, services.ErrNoProducts):
			fail(c, http.StatusNotFound, ErrCodeNoProducts, "no products found for restaurant")
		case errors.Is(err, services.ErrScrapeFailed):
			fail(c, http.StatusBadGateway, ErrCodeScrapeFailed, "could not fetch restaurant menu")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	middleware.LoggerFrom(c).Info().
		Str("processing_request_id", summary.RequestID).
		Int("images_to_process", summary.ImagesToProcess).
		Msg("processing request created")

	ok(c, http.StatusCreated, ProcessRestaurantResponse{Summary: summary})
}

// ResolveRestaurant answers the read-only known-vs-new check for a
// restaurant URL passed in the url query parameter. Callers can use it to
// show existing data or a cost preview before committing to a processing
// run; no scrape and no writes happen here.
func (h *Handlers) ResolveRestaurant(c *gin.Context) {
	ctx := c.Request.Context()

	restaurantURL := strings.TrimSpace(c.Query("url"))
	res, err := h.procSvc.Resolve(ctx, restaurantURL)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidRestaurantURL):
			fail(c, http.StatusBadRequest, ErrCodeInvalidURL, "restaurant url must belong to the supported platform")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	resp := ResolveRestaurantResponse{
		IsNew:         res.IsNew,
		Stale:         res.Stale,
		TotalProducts: len(res.Products),
	}
	if res.Restaurant != nil {
		resp.RestaurantName = res.Restaurant.Name
	}
	for _, p := range res.Products {
		if p.ImageURL != "" {
			resp.ProductsWithImages++
		}
	}

	ok(c, http.StatusOK, resp)
}

// GetRequestStatus returns the aggregate view of one processing request:
// per-status job counts, progress percentage, and the completed images so
// far. The rollup is recomputed from job rows on every call, so it is always
// current even while workers are reporting results.
func (h *Handlers) GetRequestStatus(c *gin.Context) {
	ctx := c.Request.Context()
	requestID := c.Param("id")

	if _, err := uuid.Parse(requestID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "request id must be a UUID")
		return
	}

	st, err := h.reqSvc.Status(ctx, requestID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRequestNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "processing request not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, st)
}
