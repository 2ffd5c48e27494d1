// HTTP-layer error codes shared by all API endpoints.
//
// The codes form a stable, machine-readable taxonomy that supplements the
// human-readable message in the error envelope. Generic codes mirror common
// HTTP status semantics; domain codes carry outcomes a status alone cannot
// (for example a rejected job status transition, which is a 409 with its own
// code so workers can distinguish it from other conflicts).

package handlers

const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeConflict    = "conflict"
	ErrCodeRateLimited = "rate_limited"
	ErrCodeInternal    = "internal_error"

	// Domain-specific:
	ErrCodeInvalidURL           = "invalid_restaurant_url"
	ErrCodeNoProducts           = "no_products_found"
	ErrCodeScrapeFailed         = "scrape_failed"
	ErrCodeInvalidTransition    = "invalid_transition"
	ErrCodeProcessingIncomplete = "processing_incomplete"
	ErrCodePaymentRequired      = "watermark_removal_not_paid"
	ErrCodeMethodNotAllowed     = "method_not_allowed"
)
