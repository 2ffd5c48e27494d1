// Request aggregation, payment, and download packaging.
//
// This file implements the RequestService, the aggregation layer over image
// jobs: it creates the processing request that owns a job batch, derives
// pricing from the configured unit price, reports rollup progress recomputed
// from live job rows on every read, applies payment-status changes from the
// payment collaborator, and assembles the download package once processing
// has finished.
package services

import (
	"context"
	"errors"
	"math"
	"regexp"
	"time"

	"gorm.io/gorm"

	"github.com/menupix/menupix-backend/internal/domain"
	"github.com/menupix/menupix-backend/internal/repo"
)

// DownloadTypeWatermarked and DownloadTypePremium select which result URL a
// download package references. Premium (un-watermarked) downloads require the
// watermark-removal payment.
const (
	DownloadTypeWatermarked = "watermarked"
	DownloadTypePremium     = "premium"
)

// RequestStatus is the aggregate view of one processing request, recomputed
// from current job rows on every call.
type RequestStatus struct {
	Request            *domain.ProcessingRequest `json:"request"`
	JobStatusCounts    map[string]int64          `json:"job_status"`
	CompletedCount     int                       `json:"completed_count"`
	FailedCount        int                       `json:"failed_count"`
	TotalCount         int                       `json:"total_count"`
	ProgressPercentage float64                   `json:"progress_percentage"`
	CompletedImages    []CompletedImage          `json:"completed_images"`
}

// CompletedImage pairs a product with its enhancement results.
type CompletedImage struct {
	ProductName         string `json:"product_name"`
	ProcessedImageURL   string `json:"processed_url"`
	WatermarkedImageURL string `json:"watermarked_url"`
}

// DownloadPackage is the per-request download listing handed to the user
// once every job is terminal.
type DownloadPackage struct {
	RequestID    string          `json:"request_id"`
	DownloadType string          `json:"download_type"`
	TotalImages  int             `json:"total_images"`
	Images       []DownloadEntry `json:"images"`
}

// DownloadEntry is one downloadable image with a filesystem-safe name.
type DownloadEntry struct {
	ProductName string `json:"product_name"`
	DownloadURL string `json:"download_url"`
	Filename    string `json:"filename"`
}

// RequestService implements the use-cases around processing requests.
type RequestService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// PricePerImage is the configured unit price; pricing is always derived
	// as total_images x PricePerImage, never stored.
	PricePerImage float64
	// MinutesPerImage sizes the processing-time estimate.
	MinutesPerImage int
}

// NewRequestService constructs a RequestService with the given pricing knobs.
func NewRequestService(db *gorm.DB, pricePerImage float64, minutesPerImage int) *RequestService {
	return &RequestService{DB: db, PricePerImage: pricePerImage, MinutesPerImage: minutesPerImage}
}

// Create registers the processing request owning the given job batch.
// total_images equals the batch size; payment starts pending with the
// watermark-removal flag unset. The request ID must match the one stamped on
// the jobs at creation.
func (s *RequestService) Create(ctx context.Context, requestID, restaurantURL, userEmail string, totalImages int) (*domain.ProcessingRequest, error) {
	req := &domain.ProcessingRequest{
		ID:                   requestID,
		RestaurantURL:        restaurantURL,
		UserEmail:            userEmail,
		PaymentStatus:        domain.PaymentStatusPending,
		WatermarkRemovalPaid: false,
		TotalImages:          totalImages,
		CreatedAt:            time.Now().UTC(),
	}
	if err := repo.CreateRequest(ctx, s.DB, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Price derives the charge for n images at the configured unit price.
func (s *RequestService) Price(n int) float64 {
	return float64(n) * s.PricePerImage
}

// EstimatedMinutes derives the processing-time estimate for n images.
func (s *RequestService) EstimatedMinutes(n int) int {
	return n * s.MinutesPerImage
}

// Status returns the aggregate status of a request. Counts are recomputed
// from the job rows on every call; nothing is cached, so the rollup can
// never go stale relative to transitions that already committed.
func (s *RequestService) Status(ctx context.Context, requestID string) (*RequestStatus, error) {
	req, err := repo.GetRequest(ctx, s.DB, requestID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	counts, err := repo.CountJobsByStatus(ctx, s.DB, requestID)
	if err != nil {
		return nil, err
	}
	completed, err := repo.ListCompletedJobs(ctx, s.DB, requestID)
	if err != nil {
		return nil, err
	}

	images := make([]CompletedImage, 0, len(completed))
	for _, j := range completed {
		ci := CompletedImage{ProductName: j.ProductName}
		if j.ProcessedImageURL != nil {
			ci.ProcessedImageURL = *j.ProcessedImageURL
		}
		if j.WatermarkedImageURL != nil {
			ci.WatermarkedImageURL = *j.WatermarkedImageURL
		}
		images = append(images, ci)
	}

	st := &RequestStatus{
		Request:         req,
		JobStatusCounts: counts,
		CompletedCount:  int(counts[domain.JobStatusCompleted]),
		FailedCount:     int(counts[domain.JobStatusFailed]),
		TotalCount:      req.TotalImages,
		CompletedImages: images,
	}
	if req.TotalImages > 0 {
		pct := float64(st.CompletedCount) / float64(req.TotalImages) * 100
		st.ProgressPercentage = math.Round(pct*10) / 10
	}
	return st, nil
}

// SetPaymentStatus applies a payment-collaborator decision to a request.
// "paid" also grants watermark removal. Unknown statuses are rejected with
// ErrInvalidPaymentStatus; unknown requests with ErrRequestNotFound.
func (s *RequestService) SetPaymentStatus(ctx context.Context, requestID, status string) error {
	switch status {
	case domain.PaymentStatusPending, domain.PaymentStatusPaid, domain.PaymentStatusFree:
	default:
		return ErrInvalidPaymentStatus
	}
	err := repo.UpdatePaymentStatus(ctx, s.DB, requestID, status)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrRequestNotFound
	}
	return err
}

// Download assembles the download package for a finished request.
// Every job must be terminal (completed or failed); otherwise
// ErrProcessingIncomplete. downloadType selects watermarked or premium URLs;
// premium requires the watermark-removal payment. Failed jobs simply have no
// entry in the package.
func (s *RequestService) Download(ctx context.Context, requestID, downloadType string) (*DownloadPackage, error) {
	if downloadType == "" {
		downloadType = DownloadTypeWatermarked
	}
	if downloadType != DownloadTypeWatermarked && downloadType != DownloadTypePremium {
		return nil, ErrInvalidDownloadType
	}

	st, err := s.Status(ctx, requestID)
	if err != nil {
		return nil, err
	}
	unfinished := st.JobStatusCounts[domain.JobStatusPending] + st.JobStatusCounts[domain.JobStatusProcessing]
	if unfinished > 0 {
		return nil, ErrProcessingIncomplete
	}
	if downloadType == DownloadTypePremium && !st.Request.WatermarkRemovalPaid {
		return nil, ErrWatermarkNotPaid
	}

	entries := make([]DownloadEntry, 0, len(st.CompletedImages))
	for _, img := range st.CompletedImages {
		url := img.WatermarkedImageURL
		if downloadType == DownloadTypePremium {
			url = img.ProcessedImageURL
		}
		entries = append(entries, DownloadEntry{
			ProductName: img.ProductName,
			DownloadURL: url,
			Filename:    sanitizeFilename(img.ProductName) + ".jpg",
		})
	}
	return &DownloadPackage{
		RequestID:    requestID,
		DownloadType: downloadType,
		TotalImages:  len(entries),
		Images:       entries,
	}, nil
}

// unsafeFilenameRE matches runs of characters replaced when deriving a
// download filename from a product name.
var unsafeFilenameRE = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

// sanitizeFilename converts a product name to a filesystem-safe base name.
func sanitizeFilename(name string) string {
	out := unsafeFilenameRE.ReplaceAllString(name, "_")
	if out == "" {
		return "image"
	}
	return out
}
