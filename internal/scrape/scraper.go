// Package scrape implements the menu-page scraping collaborator: it fetches a
// restaurant page from the delivery platform and maps its DOM to product
// records. Pages are server-rendered, so a plain HTTP GET plus goquery
// selectors is enough; no headless browser is involved.
package scrape

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/menupix/menupix-backend/internal/domain"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"

// MenuScraper extracts product records from restaurant menu pages.
type MenuScraper struct {
	client    *http.Client
	userAgent string
}

// New returns a MenuScraper with a bounded-timeout HTTP client.
func New() *MenuScraper {
	return &MenuScraper{
		client:    &http.Client{Timeout: 30 * time.Second},
		userAgent: defaultUserAgent,
	}
}

// ExtractProducts fetches restaurantURL and returns the products found on the
// page. Menu items without a photo are returned with an empty ImageURL; the
// caller decides what to do with them.
func (s *MenuScraper) ExtractProducts(ctx context.Context, restaurantURL string) ([]domain.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, restaurantURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-GB,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", restaurantURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}
	products := ParseMenu(doc, restaurantURL)
	log.Info().
		Str("restaurant_url", restaurantURL).
		Int("products", len(products)).
		Msg("menu page scraped")
	return products, nil
}

// ParseMenu maps an already-parsed menu document to product records. Split
// from the fetch so fixtures can exercise the selectors directly.
func ParseMenu(doc *goquery.Document, restaurantURL string) []domain.Product {
	restaurantName := extractRestaurantName(doc)
	now := time.Now().UTC()

	var products []domain.Product
	doc.Find(`[data-test-id="product-row-content"]`).Each(func(i int, row *goquery.Selection) {
		name := strings.TrimSpace(row.Find(`[data-test-id="product-row-name__highlighter"]`).Text())
		if name == "" {
			return
		}
		description := strings.TrimSpace(row.Find(`[data-test-id="product-row-description__highlighter"]`).Text())
		priceDisplay := strings.TrimSpace(row.Find(`[data-test-id="product-row-price"]`).Text())

		imageURL := ""
		if src, ok := row.Find(`img[data-test-id="img-formats"]`).First().Attr("src"); ok && src != "" {
			imageURL = ImproveImageURL(src)
		}

		hasPromotion := false
		var discount *float64
		if promo := row.Find(`[data-test-id="product-row-promotion"]`); promo.Length() > 0 {
			hasPromotion = true
			if d, ok := parseDiscount(promo.Text()); ok {
				discount = &d
			}
		}

		category := categoryFor(row)
		products = append(products, domain.Product{
			RestaurantURL:     restaurantURL,
			RestaurantName:    restaurantName,
			Name:              name,
			Description:       description,
			Price:             ParsePrice(priceDisplay),
			PriceDisplay:      priceDisplay,
			Category:          category,
			ImageURL:          imageURL,
			HasPromotion:      hasPromotion,
			PromotionDiscount: discount,
			ScrapedAt:         now,
		})
	})
	return products
}

// titleSeparators delimit the restaurant name inside the page title across
// the platform's locales.
var titleSeparators = []string{" delivery", " a domicilio"}

// extractRestaurantName pulls the restaurant name from the page title or the
// title meta tag, falling back to a placeholder.
func extractRestaurantName(doc *goquery.Document) string {
	candidates := []string{
		doc.Find("title").First().Text(),
		doc.Find(`meta[name="title"]`).AttrOr("content", ""),
	}
	for _, c := range candidates {
		for _, sep := range titleSeparators {
			if idx := strings.Index(c, sep); idx >= 0 {
				if name := strings.TrimSpace(c[:idx]); name != "" {
					return name
				}
			}
		}
	}
	return "Unknown Restaurant"
}

// categoryFor finds the section heading preceding a product row, when the
// page exposes one.
func categoryFor(row *goquery.Selection) string {
	heading := row.Closest("section").Find(`[data-test-id="list-title"]`).First().Text()
	if h := strings.TrimSpace(heading); h != "" {
		return h
	}
	return "Unknown Category"
}

// priceRE matches the numeric part of a display price after currency and
// comma-decimal normalization.
var priceRE = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ParsePrice extracts the numeric price from a display string such as
// "12,50 €" or "€3.95". Unparseable input yields 0.
func ParsePrice(display string) float64 {
	normalized := strings.ReplaceAll(strings.ReplaceAll(display, "€", ""), ",", ".")
	m := priceRE.FindString(normalized)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return v
}

// discountRE matches "-NN%" promotion badges.
var discountRE = regexp.MustCompile(`-(\d+)%`)

// parseDiscount extracts the percentage from a promotion badge text.
func parseDiscount(text string) (float64, bool) {
	m := discountRE.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var (
	qualityRE = regexp.MustCompile(`q_auto[^,/]*`)
	widthRE   = regexp.MustCompile(`w_\d+`)
	heightRE  = regexp.MustCompile(`h_\d+`)
)

// ImproveImageURL upgrades Cloudinary transformation parameters to the best
// quality at 800x800. Non-Cloudinary URLs pass through unchanged.
func ImproveImageURL(imageURL string) string {
	if !strings.Contains(imageURL, "cloudinary.com") {
		return imageURL
	}
	out := qualityRE.ReplaceAllString(imageURL, "q_auto:best")
	out = widthRE.ReplaceAllString(out, "w_800")
	return heightRE.ReplaceAllString(out, "h_800")
}
