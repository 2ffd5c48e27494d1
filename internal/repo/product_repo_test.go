package repo

import (
	"context"
	"testing"
	"time"

	"github.com/menupix/menupix-backend/internal/domain"
)

const testRestaurantURL = "https://glovoapp.com/es/en/madrid/trattoria-roma"

func TestUpsertProducts_DeduplicatesOnRestaurantAndName(t *testing.T) {
	db := newTestDB(t, &domain.Product{})
	ctx := context.Background()

	first := []domain.Product{{
		RestaurantURL:  testRestaurantURL,
		RestaurantName: "Trattoria Roma",
		Name:           "Carbonara",
		Price:          9.5,
		PriceDisplay:   "9,50 €",
		ImageURL:       "https://images.example.com/carbonara.jpg",
	}}
	if err := UpsertProducts(ctx, db, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if first[0].ID == "" {
		t.Fatal("upsert must assign an ID")
	}

	// Re-scrape with a new price; same (restaurant_url, name) key.
	second := []domain.Product{{
		RestaurantURL:  testRestaurantURL,
		RestaurantName: "Trattoria Roma",
		Name:           "Carbonara",
		Price:          10.0,
		PriceDisplay:   "10,00 €",
		ImageURL:       "https://images.example.com/carbonara-v2.jpg",
	}}
	if err := UpsertProducts(ctx, db, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	total, err := CountProducts(ctx, db, testRestaurantURL)
	if err != nil {
		t.Fatalf("CountProducts: %v", err)
	}
	if total != 1 {
		t.Fatalf("want 1 row after re-scrape, got %d", total)
	}

	stored, err := ListProducts(ctx, db, testRestaurantURL)
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if stored[0].Price != 10.0 || stored[0].ImageURL != "https://images.example.com/carbonara-v2.jpg" {
		t.Fatalf("row not updated in place: %+v", stored[0])
	}
	if stored[0].ID != first[0].ID {
		t.Fatalf("existing row must keep its original ID")
	}
}

func TestListProductsWithImages_SkipsImageless(t *testing.T) {
	db := newTestDB(t, &domain.Product{})
	ctx := context.Background()

	batch := []domain.Product{
		{RestaurantURL: testRestaurantURL, Name: "Bruschetta", ImageURL: "https://images.example.com/b.jpg"},
		{RestaurantURL: testRestaurantURL, Name: "Tap Water"},
		{RestaurantURL: testRestaurantURL, Name: "Amatriciana", ImageURL: "https://images.example.com/a.jpg"},
	}
	if err := UpsertProducts(ctx, db, batch); err != nil {
		t.Fatalf("UpsertProducts: %v", err)
	}

	got, err := ListProductsWithImages(ctx, db, testRestaurantURL)
	if err != nil {
		t.Fatalf("ListProductsWithImages: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 products with images, got %d", len(got))
	}
	if got[0].Name != "Amatriciana" || got[1].Name != "Bruschetta" {
		t.Fatalf("unexpected order: %s, %s", got[0].Name, got[1].Name)
	}
}

func TestUpsertRestaurant_ReplacesSummary(t *testing.T) {
	db := newTestDB(t, &domain.Restaurant{})
	ctx := context.Background()

	r := &domain.Restaurant{
		URL:                testRestaurantURL,
		Name:               "Trattoria Roma",
		LastScraped:        time.Now().UTC().Add(-48 * time.Hour),
		TotalProducts:      10,
		ProductsWithImages: 7,
	}
	if err := UpsertRestaurant(ctx, db, r); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	r2 := &domain.Restaurant{
		URL:                testRestaurantURL,
		Name:               "Trattoria Roma",
		LastScraped:        time.Now().UTC(),
		TotalProducts:      12,
		ProductsWithImages: 9,
	}
	if err := UpsertRestaurant(ctx, db, r2); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := GetRestaurant(ctx, db, testRestaurantURL)
	if err != nil {
		t.Fatalf("GetRestaurant: %v", err)
	}
	if got.TotalProducts != 12 || got.ProductsWithImages != 9 {
		t.Fatalf("summary not replaced: %+v", got)
	}
	if !got.LastScraped.After(r.LastScraped) {
		t.Fatal("last_scraped must advance on re-ingest")
	}
}

func TestGetRestaurant_NotFound(t *testing.T) {
	db := newTestDB(t, &domain.Restaurant{})
	if _, err := GetRestaurant(context.Background(), db, "https://glovoapp.com/unknown"); err != ErrNotFound {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
