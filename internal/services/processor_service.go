// End-to-end processing orchestration.
//
// This file implements the ProcessorService, the entry point of the pipeline:
// it turns a user's restaurant URL into a durable processing request. It
// resolves the restaurant against the catalog, invokes the scraping
// collaborator only when the catalog is new or stale, creates the job batch
// for every product image, and registers the owning request, returning a
// summary with derived pricing and a processing-time estimate.
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/menupix/menupix-backend/internal/domain"
	"github.com/menupix/menupix-backend/internal/repo"
)

// MenuScraper is the page-scraping collaborator: given a restaurant URL it
// returns the product records found on the page. Implementations live
// outside this package (see internal/scrape).
type MenuScraper interface {
	ExtractProducts(ctx context.Context, restaurantURL string) ([]domain.Product, error)
}

// RequestSummary is returned from ProcessRestaurant: what was found, what
// will be processed, and what it will cost.
type RequestSummary struct {
	RequestID         string  `json:"request_id"`
	RestaurantName    string  `json:"restaurant_name"`
	TotalProducts     int     `json:"total_products"`
	ImagesToProcess   int     `json:"images_to_process"`
	EstimatedCost     float64 `json:"estimated_cost"`
	ProcessingMinutes int     `json:"processing_time_minutes"`
}

// ProcessorService orchestrates resolve → scrape → ingest → jobs → request.
type ProcessorService struct {
	DB       *gorm.DB
	Catalog  *CatalogService
	Jobs     *JobService
	Requests *RequestService
	Scraper  MenuScraper
}

// NewProcessorService wires the orchestrator from its collaborators.
func NewProcessorService(db *gorm.DB, catalog *CatalogService, jobs *JobService, requests *RequestService, scraper MenuScraper) *ProcessorService {
	return &ProcessorService{DB: db, Catalog: catalog, Jobs: jobs, Requests: requests, Scraper: scraper}
}

// Resolve is the read-only known-vs-new check exposed to the presentation
// layer, so a caller can short-circuit to existing data without triggering a
// scrape.
func (s *ProcessorService) Resolve(ctx context.Context, restaurantURL string) (*Resolution, error) {
	return s.Catalog.Resolve(ctx, restaurantURL)
}

// ProcessRestaurant handles one user-initiated processing action end to end:
//
//  1. resolve the restaurant; scrape and ingest when it is new or its data
//     is older than the catalog TTL;
//  2. create one pending job per stored product image, stamped with a fresh
//     request ID so the batch association is explicit;
//  3. register the processing request with payment pending.
//
// The returned summary carries derived pricing (images x unit price) and the
// processing-time estimate. A restaurant with no extractable products yields
// ErrNoProducts.
func (s *ProcessorService) ProcessRestaurant(ctx context.Context, restaurantURL, userEmail string) (*RequestSummary, error) {
	res, err := s.Catalog.Resolve(ctx, restaurantURL)
	if err != nil {
		return nil, err
	}

	if res.IsNew || res.Stale {
		log.Info().Str("restaurant_url", restaurantURL).Bool("is_new", res.IsNew).Msg("scraping restaurant")
		scraped, err := s.Scraper.ExtractProducts(ctx, restaurantURL)
		switch {
		case err != nil:
			// A failed refresh of known data is tolerable; a failed first
			// scrape is not.
			if res.IsNew {
				return nil, fmt.Errorf("%w: %v", ErrScrapeFailed, err)
			}
			log.Warn().Err(err).Str("restaurant_url", restaurantURL).Msg("refresh scrape failed, using stored data")
		case len(scraped) == 0:
			// Same rule for an empty page: a known catalog is never replaced
			// or invalidated by a refresh that found nothing.
			if res.IsNew {
				return nil, ErrNoProducts
			}
			log.Warn().Str("restaurant_url", restaurantURL).Msg("refresh scrape returned no products, using stored data")
		default:
			if err := s.Catalog.Ingest(ctx, restaurantURL, scraped); err != nil {
				return nil, err
			}
			res, err = s.Catalog.Resolve(ctx, restaurantURL)
			if err != nil {
				return nil, err
			}
		}
	}
	if len(res.Products) == 0 {
		return nil, ErrNoProducts
	}

	requestID := uuid.NewString()
	withImages, err := repo.ListProductsWithImages(ctx, s.DB, restaurantURL)
	if err != nil {
		return nil, err
	}
	jobs, err := s.Jobs.CreateJobs(ctx, requestID, restaurantURL, withImages)
	if err != nil {
		return nil, err
	}
	if _, err := s.Requests.Create(ctx, requestID, restaurantURL, userEmail, len(jobs)); err != nil {
		return nil, err
	}

	name := ""
	if res.Restaurant != nil {
		name = res.Restaurant.Name
	}
	log.Info().
		Str("request_id", requestID).
		Str("restaurant_url", restaurantURL).
		Int("images", len(jobs)).
		Msg("processing request created")

	return &RequestSummary{
		RequestID:         requestID,
		RestaurantName:    name,
		TotalProducts:     len(res.Products),
		ImagesToProcess:   len(jobs),
		EstimatedCost:     s.Requests.Price(len(jobs)),
		ProcessingMinutes: s.Requests.EstimatedMinutes(len(jobs)),
	}, nil
}
