// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// by the /info surface. Each function is context-aware and safe to call from
// services or handlers.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/menupix/menupix-backend/internal/domain"
)

// CatalogStats summarizes the scraped catalog across all restaurants.
type CatalogStats struct {
	TotalProducts      int64 `json:"total_products"`
	ProductsWithImages int64 `json:"products_with_images"`
	TotalRestaurants   int64 `json:"total_restaurants"`
	TotalCategories    int64 `json:"total_categories"`
}

// GetCatalogStats returns catalog-wide counts: products, products carrying an
// image URL, distinct restaurants, and distinct categories. Executes four
// lightweight queries; zero values are returned for an empty catalog.
func GetCatalogStats(ctx context.Context, db *gorm.DB) (CatalogStats, error) {
	var s CatalogStats

	if err := db.WithContext(ctx).Model(&domain.Product{}).Count(&s.TotalProducts).Error; err != nil {
		return s, err
	}
	if err := db.WithContext(ctx).Model(&domain.Product{}).Where("image_url <> ''").Count(&s.ProductsWithImages).Error; err != nil {
		return s, err
	}
	if err := db.WithContext(ctx).Model(&domain.Product{}).Distinct("restaurant_url").Count(&s.TotalRestaurants).Error; err != nil {
		return s, err
	}
	if err := db.WithContext(ctx).Model(&domain.Product{}).Distinct("category").Count(&s.TotalCategories).Error; err != nil {
		return s, err
	}
	return s, nil
}

// JobStats returns global job counts per status, independent of request
// scoping. Used for operational visibility on /info.
func JobStats(ctx context.Context, db *gorm.DB) (map[string]int64, error) {
	var rows []struct {
		Status string
		N      int64
	}
	err := db.WithContext(ctx).
		Model(&domain.ImageProcessingJob{}).
		Select("status, COUNT(*) as n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}
