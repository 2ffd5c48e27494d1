// Package services defines the business logic of the image pipeline: menu
// resolution and ingestion, job creation, the job state machine, and request
// aggregation. This file centralizes common service-level error values so that
// they can be consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the
// handler layer.
package services

import "errors"

var (
	// ErrInvalidRestaurantURL is returned when a restaurant URL is empty or
	// does not belong to the configured source platform.
	ErrInvalidRestaurantURL = errors.New("invalid restaurant url")

	// ErrNoProducts is returned when a restaurant yields zero products after
	// scraping, so there is nothing to process.
	ErrNoProducts = errors.New("no products extracted for restaurant")

	// ErrScrapeFailed wraps a fetch or parse failure for a restaurant that
	// has no stored data to fall back on.
	ErrScrapeFailed = errors.New("restaurant menu could not be scraped")

	// ErrJobNotFound indicates that the requested job does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrRequestNotFound indicates that the requested processing request
	// does not exist.
	ErrRequestNotFound = errors.New("processing request not found")

	// ErrInvalidTransition is returned when a job status change violates the
	// state machine (e.g. starting a job twice, or completing a job that was
	// never started). It is an expected, recoverable condition for callers.
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrDuplicateJobID signals an identifier-generator collision during job
	// creation. It indicates a programming or environment defect; the batch
	// is aborted and nothing is persisted.
	ErrDuplicateJobID = errors.New("duplicate job identifier")

	// ErrInvalidPaymentStatus is returned when a payment status is outside
	// the allowed set (pending, paid, free).
	ErrInvalidPaymentStatus = errors.New("payment status must be pending, paid, or free")

	// ErrProcessingIncomplete is returned when a download package is
	// requested before every job of the request reached a terminal status.
	ErrProcessingIncomplete = errors.New("processing not yet complete")

	// ErrWatermarkNotPaid is returned when un-watermarked downloads are
	// requested without the watermark-removal payment.
	ErrWatermarkNotPaid = errors.New("watermark removal not paid")

	// ErrInvalidDownloadType is returned when a download type is neither
	// "watermarked" nor "premium".
	ErrInvalidDownloadType = errors.New("download type must be watermarked or premium")

	// ErrInvalidRequeueAge is returned when the operator requeue is invoked
	// with a zero or negative age.
	ErrInvalidRequeueAge = errors.New("requeue age must be positive")
)
