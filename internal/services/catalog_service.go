// Catalog resolution and ingestion.
//
// This file implements the CatalogService, which owns the scraped menu
// catalog: it decides whether a restaurant is known or new, whether stored
// data is stale, and it reconciles freshly scraped products against the rows
// already persisted (deduplicated on restaurant URL + product name).
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/menupix/menupix-backend/internal/domain"
	"github.com/menupix/menupix-backend/internal/repo"
)

// Resolution is the outcome of resolving a restaurant URL against the store.
type Resolution struct {
	// IsNew is true when the restaurant has no stored products.
	IsNew bool
	// Stale is true when the restaurant is known but its last scrape is
	// older than the configured TTL. Always false when IsNew.
	Stale bool
	// Restaurant is the stored summary row, nil when IsNew.
	Restaurant *domain.Restaurant
	// Products are the stored products, empty when IsNew.
	Products []domain.Product
}

// CatalogService resolves restaurants and ingests scraped product batches.
type CatalogService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// ScrapeTTL is the maximum age of a scrape before the catalog entry is
	// considered stale and worth refreshing.
	ScrapeTTL time.Duration
	// PlatformHost is the host fragment a restaurant URL must contain.
	PlatformHost string
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(db *gorm.DB, scrapeTTL time.Duration, platformHost string) *CatalogService {
	return &CatalogService{DB: db, ScrapeTTL: scrapeTTL, PlatformHost: platformHost}
}

// ValidateURL checks that a restaurant URL is non-empty and belongs to the
// source platform. Deeper syntactic validation is the scraping collaborator's
// concern.
func (s *CatalogService) ValidateURL(restaurantURL string) error {
	u := strings.TrimSpace(restaurantURL)
	if u == "" || !strings.Contains(u, s.PlatformHost) {
		return ErrInvalidRestaurantURL
	}
	return nil
}

// Resolve reports whether restaurantURL is known to the store and returns the
// stored products when it is. A restaurant with zero stored products is new.
// This is a read-only operation.
func (s *CatalogService) Resolve(ctx context.Context, restaurantURL string) (*Resolution, error) {
	if err := s.ValidateURL(restaurantURL); err != nil {
		return nil, err
	}

	products, err := repo.ListProducts(ctx, s.DB, restaurantURL)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return &Resolution{IsNew: true, Products: []domain.Product{}}, nil
	}

	res := &Resolution{Products: products}
	rest, err := repo.GetRestaurant(ctx, s.DB, restaurantURL)
	switch {
	case err == nil:
		res.Restaurant = rest
		res.Stale = time.Since(rest.LastScraped) > s.ScrapeTTL
	case errors.Is(err, repo.ErrNotFound):
		// Products without a summary row (partial legacy ingest): treat as
		// stale so the next request rebuilds the summary.
		res.Stale = true
	default:
		return nil, err
	}
	return res, nil
}

// Ingest persists a scraped product batch and refreshes the restaurant
// summary row. Products are upserted on (restaurant_url, name); the summary
// counts reflect exactly this batch. The whole ingest runs in one
// transaction so readers never observe products without their summary.
func (s *CatalogService) Ingest(ctx context.Context, restaurantURL string, products []domain.Product) error {
	if len(products) == 0 {
		return ErrNoProducts
	}

	name := products[0].RestaurantName
	withImages := 0
	for i := range products {
		products[i].RestaurantURL = restaurantURL
		if products[i].ImageURL != "" {
			withImages++
		}
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.UpsertProducts(ctx, tx, products); err != nil {
			return err
		}
		return repo.UpsertRestaurant(ctx, tx, &domain.Restaurant{
			URL:                restaurantURL,
			Name:               name,
			LastScraped:        time.Now().UTC(),
			TotalProducts:      len(products),
			ProductsWithImages: withImages,
		})
	})
}

// Stats returns catalog-wide counts for the info surface.
func (s *CatalogService) Stats(ctx context.Context) (repo.CatalogStats, error) {
	return repo.GetCatalogStats(ctx, s.DB)
}
