// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for scraped
// restaurants and products.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a restaurant is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/menupix/menupix-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// GetRestaurant fetches the scrape summary row for restaurantURL.
// Returns ErrNotFound when the restaurant has never been ingested.
func GetRestaurant(ctx context.Context, db *gorm.DB, restaurantURL string) (*domain.Restaurant, error) {
	var r domain.Restaurant
	err := db.WithContext(ctx).
		Where("url = ?", restaurantURL).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpsertRestaurant inserts or replaces the scrape summary row keyed by URL.
func UpsertRestaurant(ctx context.Context, db *gorm.DB, r *domain.Restaurant) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "url"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "last_scraped", "total_products", "products_with_images"}),
		}).
		Create(r).Error
}

// UpsertProducts persists a scraped product batch. Rows conflict on the
// natural dedup key (restaurant_url, name): a later scrape updates the stored
// fields in place instead of inserting a duplicate. Missing IDs are filled in
// with fresh UUIDs; the existing row keeps its original ID on conflict.
func UpsertProducts(ctx context.Context, db *gorm.DB, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range products {
		if products[i].ID == "" {
			products[i].ID = uuid.NewString()
		}
		if products[i].ScrapedAt.IsZero() {
			products[i].ScrapedAt = now
		}
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "restaurant_url"}, {Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"restaurant_name", "description", "price", "price_display",
				"category", "image_url", "has_promotion", "promotion_discount",
				"scraped_at", "updated_at",
			}),
		}).
		Create(&products).Error
}

// ListProducts returns all stored products for restaurantURL, ordered by
// name for stable output. It returns an empty slice when none exist.
func ListProducts(ctx context.Context, db *gorm.DB, restaurantURL string) ([]domain.Product, error) {
	var out []domain.Product
	err := db.WithContext(ctx).
		Where("restaurant_url = ?", restaurantURL).
		Order("name asc").
		Find(&out).Error
	return out, err
}

// ListProductsWithImages returns the subset of a restaurant's products that
// carry a non-empty image URL, ordered by name.
func ListProductsWithImages(ctx context.Context, db *gorm.DB, restaurantURL string) ([]domain.Product, error) {
	var out []domain.Product
	err := db.WithContext(ctx).
		Where("restaurant_url = ? AND image_url <> ''", restaurantURL).
		Order("name asc").
		Find(&out).Error
	return out, err
}

// CountProducts returns the number of stored products for restaurantURL.
func CountProducts(ctx context.Context, db *gorm.DB, restaurantURL string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Product{}).
		Where("restaurant_url = ?", restaurantURL).
		Count(&total).Error
	return total, err
}
