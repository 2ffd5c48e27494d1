// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for processing
// requests (the user-facing batch aggregate over image jobs).
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/menupix/menupix-backend/internal/domain"
)

// CreateRequest inserts a new ProcessingRequest row. The identifier is chosen
// by the caller so it can be stamped onto the job batch created in the same
// ingestion. CreatedAt is set to UTC.
func CreateRequest(ctx context.Context, db *gorm.DB, req *domain.ProcessingRequest) error {
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(req).Error
}

// GetRequest fetches a processing request by its ID, or ErrNotFound.
func GetRequest(ctx context.Context, db *gorm.DB, id string) (*domain.ProcessingRequest, error) {
	var r domain.ProcessingRequest
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpdatePaymentStatus sets the payment status on a request. When the new
// status is "paid", the watermark-removal flag is set in the same statement.
// Returns ErrNotFound when the request does not exist.
func UpdatePaymentStatus(ctx context.Context, db *gorm.DB, id, status string) error {
	updates := map[string]any{
		"payment_status": status,
		"updated_at":     time.Now().UTC(),
	}
	if status == domain.PaymentStatusPaid {
		updates["watermark_removal_paid"] = true
	}
	res := db.WithContext(ctx).
		Model(&domain.ProcessingRequest{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkRequestNotified claims the one-shot completion-notification flag on a
// request. Reports true only for the caller that flips the flag; concurrent
// callers racing on the same request see false and must not notify.
func MarkRequestNotified(ctx context.Context, db *gorm.DB, id string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.ProcessingRequest{}).
		Where("id = ? AND completion_notified = ?", id, false).
		Updates(map[string]any{
			"completion_notified": true,
			"updated_at":          time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListRequestsByRestaurant returns the requests created for restaurantURL,
// most recent first. Used by operators to disambiguate concurrent
// reprocessings of the same restaurant.
func ListRequestsByRestaurant(ctx context.Context, db *gorm.DB, restaurantURL string) ([]domain.ProcessingRequest, error) {
	var out []domain.ProcessingRequest
	err := db.WithContext(ctx).
		Where("restaurant_url = ?", restaurantURL).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}
