// Package domain defines the persistence models for scraped restaurant menus,
// image-processing jobs, and user processing requests. These types are mapped
// with GORM and form the core data layer of the image pipeline.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Job lifecycle statuses. Transitions are monotonic along
// pending → processing → {completed, failed}; there is no path back to pending
// other than an explicit operator requeue of a stale processing row.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Payment statuses for a processing request.
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFree    = "free"
)

// Restaurant is the per-restaurant scrape summary, keyed by the restaurant's
// source-platform URL. It is upserted on every ingest and lets the resolver
// answer "known vs new" and "stale vs fresh" without scanning product rows.
type Restaurant struct {
	URL                string    `json:"url"                  gorm:"type:varchar(512);primaryKey"`
	Name               string    `json:"name"                 gorm:"type:varchar(255)"`
	LastScraped        time.Time `json:"last_scraped"`
	TotalProducts      int       `json:"total_products"`
	ProductsWithImages int       `json:"products_with_images"`
}

// TableName returns the database table name for Restaurant.
func (Restaurant) TableName() string { return "restaurants" }

// Product represents one menu item observed during a scrape.
//
// (restaurant_url, name) is the natural dedup key: a later scrape of the same
// restaurant updates the existing row instead of duplicating it. Rows are
// never deleted; they may be superseded by a later scrape.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - RestaurantURL / RestaurantName: owning restaurant.
//   - Name / Description / Category: menu item fields as scraped.
//   - Price: numeric price parsed from the display string.
//   - PriceDisplay: raw price text, may include promotional formatting.
//   - ImageURL: empty when the menu item has no photo.
//   - HasPromotion / PromotionDiscount: promotion badge info, when present.
//   - ScrapedAt: time of the scrape that produced or last updated this row.
type Product struct {
	ID                string         `json:"id"                 gorm:"type:char(36);primaryKey"`
	RestaurantURL     string         `json:"restaurant_url"     gorm:"type:varchar(512);not null;index;uniqueIndex:ux_products_rest_name,priority:1"`
	RestaurantName    string         `json:"restaurant_name"    gorm:"type:varchar(255)"`
	Name              string         `json:"name"               gorm:"type:varchar(255);not null;uniqueIndex:ux_products_rest_name,priority:2"`
	Description       string         `json:"description"        gorm:"type:text"`
	Price             float64        `json:"price"`
	PriceDisplay      string         `json:"price_display"      gorm:"type:varchar(64)"`
	Category          string         `json:"category"           gorm:"type:varchar(128)"`
	ImageURL          string         `json:"image_url,omitempty" gorm:"type:varchar(1024)"`
	HasPromotion      bool           `json:"has_promotion"`
	PromotionDiscount *float64       `json:"promotion_discount,omitempty"`
	ScrapedAt         time.Time      `json:"scraped_at"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `json:"-"                  gorm:"index"`
}

// TableName returns the database table name for Product.
func (Product) TableName() string { return "products" }

// ImageProcessingJob is the unit of work handed to the external worker: one
// product image to enhance. The ID is a generated UUID so it can double as an
// unguessable webhook path segment.
//
// A job is mutated only by the status transition operations and is never
// physically deleted (kept for audit and billing). RequestID links the job to
// the processing request whose ingestion batch created it.
type ImageProcessingJob struct {
	ID                  string         `json:"id"                    gorm:"type:char(36);primaryKey"`
	RequestID           string         `json:"request_id"            gorm:"type:char(36);not null;index"`
	RestaurantURL       string         `json:"restaurant_url"        gorm:"type:varchar(512);not null;index"`
	RestaurantName      string         `json:"restaurant_name"       gorm:"type:varchar(255)"`
	ProductName         string         `json:"product_name"          gorm:"type:varchar(255)"`
	OriginalImageURL    string         `json:"original_image_url"    gorm:"type:varchar(1024);not null"`
	Status              string         `json:"status"                gorm:"type:varchar(16);not null;default:'pending';index;check:status IN ('pending','processing','completed','failed')"`
	ProcessedImageURL   *string        `json:"processed_image_url,omitempty"   gorm:"type:varchar(1024)"`
	WatermarkedImageURL *string        `json:"watermarked_image_url,omitempty" gorm:"type:varchar(1024)"`
	WorkerCallbackURL   *string        `json:"worker_callback_url,omitempty"   gorm:"type:varchar(1024)"`
	FailureReason       *string        `json:"failure_reason,omitempty"        gorm:"type:text"`
	CreatedAt           time.Time      `json:"created_at" gorm:"index"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for ImageProcessingJob.
func (ImageProcessingJob) TableName() string { return "image_processing_jobs" }

// Terminal reports whether the job has reached a terminal status.
func (j *ImageProcessingJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// ProcessingRequest aggregates the set of jobs created for one user-initiated
// restaurant-processing action. TotalImages equals the number of jobs created
// in the same ingestion batch; request-level completion is never stored, only
// recomputed from job rows at read time.
type ProcessingRequest struct {
	ID                   string         `json:"request_id"     gorm:"type:char(36);primaryKey"`
	RestaurantURL        string         `json:"restaurant_url" gorm:"type:varchar(512);not null;index"`
	UserEmail            string         `json:"user_email,omitempty" gorm:"type:varchar(255)"`
	PaymentStatus        string         `json:"payment_status" gorm:"type:varchar(16);not null;default:'pending';check:payment_status IN ('pending','paid','free')"`
	WatermarkRemovalPaid bool           `json:"watermark_removal_paid" gorm:"not null;default:false"`
	CompletionNotified   bool           `json:"-"              gorm:"not null;default:false"`
	TotalImages          int            `json:"total_images"   gorm:"not null"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	DeletedAt            gorm.DeletedAt `json:"-"              gorm:"index"`
}

// TableName returns the database table name for ProcessingRequest.
func (ProcessingRequest) TableName() string { return "processing_requests" }
