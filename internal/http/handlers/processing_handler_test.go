package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/menupix/menupix-backend/internal/domain"
	"github.com/menupix/menupix-backend/internal/services"
)

func TestProcessRestaurant_Created(t *testing.T) {
	proc := &stubProcessor{summary: &services.RequestSummary{
		RequestID:         uuid.NewString(),
		RestaurantName:    "Trattoria Roma",
		TotalProducts:     3,
		ImagesToProcess:   2,
		EstimatedCost:     1.00,
		ProcessingMinutes: 4,
	}}
	r := newTestRouter(proc, &stubJobs{}, &stubRequests{})

	w := doJSON(t, r, http.MethodPost, "/process-restaurant", gin.H{
		"restaurant_url": "  https://glovoapp.com/it/en/roma/trattoria-roma  ",
		"user_email":     "owner@example.com",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if proc.gotURL != "https://glovoapp.com/it/en/roma/trattoria-roma" {
		t.Fatalf("url not trimmed before the service call: %q", proc.gotURL)
	}
	if proc.gotEmail != "owner@example.com" {
		t.Fatalf("email = %q", proc.gotEmail)
	}

	var resp ProcessRestaurantResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Summary == nil || resp.Summary.ImagesToProcess != 2 {
		t.Fatalf("summary not echoed: %+v", resp.Summary)
	}
}

func TestProcessRestaurant_Validation(t *testing.T) {
	r := newTestRouter(&stubProcessor{}, &stubJobs{}, &stubRequests{})

	w := doJSON(t, r, http.MethodPost, "/process-restaurant", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing url: status = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/process-restaurant", gin.H{
		"restaurant_url": "https://glovoapp.com/r",
		"user_email":     "not-an-email",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad email: status = %d", w.Code)
	}
}

func TestProcessRestaurant_ErrorMapping(t *testing.T) {
	cases := []struct {
		err      error
		status   int
		code     string
	}{
		{services.ErrInvalidRestaurantURL, http.StatusBadRequest, ErrCodeInvalidURL},
		{services.ErrNoProducts, http.StatusNotFound, ErrCodeNoProducts},
		{services.ErrScrapeFailed, http.StatusBadGateway, ErrCodeScrapeFailed},
	}
	for _, c := range cases {
		r := newTestRouter(&stubProcessor{err: c.err}, &stubJobs{}, &stubRequests{})
		w := doJSON(t, r, http.MethodPost, "/process-restaurant", gin.H{
			"restaurant_url": "https://glovoapp.com/r",
		})
		if w.Code != c.status {
			t.Errorf("%v: status = %d, want %d", c.err, w.Code, c.status)
			continue
		}
		if e := decodeErr(t, w); e.Code != c.code {
			t.Errorf("%v: code = %q, want %q", c.err, e.Code, c.code)
		}
	}
}

func TestResolveRestaurant(t *testing.T) {
	proc := &stubProcessor{resolution: &services.Resolution{
		Stale:      true,
		Restaurant: &domain.Restaurant{Name: "Trattoria Roma"},
		Products: []domain.Product{
			{Name: "Margherita", ImageURL: "https://images.example.com/m.jpg"},
			{Name: "Acqua Naturale"},
		},
	}}
	r := newTestRouter(proc, &stubJobs{}, &stubRequests{})

	w := doJSON(t, r, http.MethodGet, "/restaurants/resolve?url=https://glovoapp.com/it/en/roma/trattoria-roma", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp ResolveRestaurantResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.IsNew || !resp.Stale {
		t.Fatalf("is_new=%v stale=%v", resp.IsNew, resp.Stale)
	}
	if resp.RestaurantName != "Trattoria Roma" {
		t.Fatalf("restaurant name = %q", resp.RestaurantName)
	}
	if resp.TotalProducts != 2 || resp.ProductsWithImages != 1 {
		t.Fatalf("counts: total=%d withImages=%d", resp.TotalProducts, resp.ProductsWithImages)
	}
}

func TestResolveRestaurant_InvalidURL(t *testing.T) {
	r := newTestRouter(&stubProcessor{err: services.ErrInvalidRestaurantURL}, &stubJobs{}, &stubRequests{})

	w := doJSON(t, r, http.MethodGet, "/restaurants/resolve?url=https://example.com/x", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if e := decodeErr(t, w); e.Code != ErrCodeInvalidURL {
		t.Fatalf("code = %q", e.Code)
	}
}

func TestGetRequestStatus(t *testing.T) {
	reqs := &stubRequests{status: &services.RequestStatus{
		CompletedCount:     1,
		FailedCount:        0,
		TotalCount:         2,
		ProgressPercentage: 50,
	}}
	r := newTestRouter(&stubProcessor{}, &stubJobs{}, reqs)

	w := doJSON(t, r, http.MethodGet, "/requests/"+uuid.NewString(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	// Non-UUID ids never reach the service.
	w = doJSON(t, r, http.MethodGet, "/requests/not-a-uuid", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status = %d", w.Code)
	}

	r = newTestRouter(&stubProcessor{}, &stubJobs{}, &stubRequests{err: services.ErrRequestNotFound})
	w = doJSON(t, r, http.MethodGet, "/requests/"+uuid.NewString(), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown request: status = %d", w.Code)
	}
	if e := decodeErr(t, w); e.Code != ErrCodeNotFound {
		t.Fatalf("code = %q", e.Code)
	}
}
