// Payment and download HTTP handlers.
//
// This file exposes:
//   - POST /payments/{request_id}   (record a payment outcome)
//   - GET  /download/{request_id}   (download package once processing is done)
//
// Payments are recorded as a fact, not processed here; the payment provider
// calls this endpoint after settlement. A "paid" status also unlocks
// watermark-free downloads for the request.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/menupix/menupix-backend/internal/http/middleware"
	"github.com/menupix/menupix-backend/internal/services"
)

// UpdatePaymentRequest is the JSON payload for recording a payment outcome.
type UpdatePaymentRequest struct {
	PaymentStatus string `json:"payment_status" binding:"required,oneof=pending paid free"`
}

// PaymentResponse echoes the recorded payment state.
type PaymentResponse struct {
	RequestID     string `json:"request_id"`
	PaymentStatus string `json:"payment_status"`
}

// UpdatePayment records the payment outcome for a processing request.
// Setting "paid" also marks watermark removal as purchased.
func (h *Handlers) UpdatePayment(c *gin.Context) {
	ctx := c.Request.Context()
	requestID := c.Param("request_id")

	if _, err := uuid.Parse(requestID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "request id must be a UUID")
		return
	}

	var req UpdatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "payment_status must be pending, paid, or free")
		return
	}

	if err := h.reqSvc.SetPaymentStatus(ctx, requestID, req.PaymentStatus); err != nil {
		switch {
		case errors.Is(err, services.ErrRequestNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "processing request not found")
		case errors.Is(err, services.ErrInvalidPaymentStatus):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "payment_status must be pending, paid, or free")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	middleware.LoggerFrom(c).Info().
		Str("processing_request_id", requestID).
		Str("payment_status", req.PaymentStatus).
		Msg("payment recorded")

	ok(c, http.StatusOK, PaymentResponse{RequestID: requestID, PaymentStatus: req.PaymentStatus})
}

// Download returns the download package for a finished request. The type
// query selects "watermarked" (default) or "premium"; premium requires the
// watermark-removal payment. Requests with jobs still pending or processing
// get 409 until every job is terminal.
func (h *Handlers) Download(c *gin.Context) {
	ctx := c.Request.Context()
	requestID := c.Param("request_id")

	if _, err := uuid.Parse(requestID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "request id must be a UUID")
		return
	}

	downloadType := c.DefaultQuery("type", services.DownloadTypeWatermarked)

	pkg, err := h.reqSvc.Download(ctx, requestID, downloadType)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRequestNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "processing request not found")
		case errors.Is(err, services.ErrInvalidDownloadType):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "type must be watermarked or premium")
		case errors.Is(err, services.ErrProcessingIncomplete):
			fail(c, http.StatusConflict, ErrCodeProcessingIncomplete, "processing not yet complete")
		case errors.Is(err, services.ErrWatermarkNotPaid):
			fail(c, http.StatusPaymentRequired, ErrCodePaymentRequired, "watermark removal has not been paid for")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, pkg)
}
