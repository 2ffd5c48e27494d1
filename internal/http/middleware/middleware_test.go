package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID_GeneratedAndEchoed(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	id := w.Header().Get("X-Request-ID")
	if id == "" {
		t.Fatal("X-Request-ID must be set on the response")
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("generated id is not a UUID: %q", id)
	}
}

func TestRequestID_ReusesCallerID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "caller-supplied-id")
	w := serve(r, req)
	if got := w.Header().Get("X-Request-ID"); got != "caller-supplied-id" {
		t.Fatalf("caller id not echoed, got %q", got)
	}
}

func TestRecovery_TurnsPanicInto500(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Logger(), Recovery())
	r.GET("/boom", func(_ *gin.Context) { panic("kaboom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v (%s)", err, w.Body.String())
	}
	if body["request_id"] == "" {
		t.Fatal("panic response must carry the request id")
	}
}

func TestRateLimiter_BurstExhaustion(t *testing.T) {
	r := gin.New()
	rl := NewRateLimiter(0.001, 2, KeyByClientOrIP())
	r.GET("/", rl.Handler(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 2; i++ {
		if w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil)); w.Code != http.StatusNoContent {
			t.Fatalf("request %d: status = %d", i, w.Code)
		}
	}

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("429 must carry Retry-After")
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["code"] != "rate_limited" {
		t.Fatalf("code = %v", body["code"])
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	r := gin.New()
	rl := NewRateLimiter(0.001, 1, KeyByClientOrIP())
	r.GET("/", rl.Handler(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	reqA := httptest.NewRequest(http.MethodGet, "/", nil)
	reqA.Header.Set("X-Client-ID", "worker-a")
	reqB := httptest.NewRequest(http.MethodGet, "/", nil)
	reqB.Header.Set("X-Client-ID", "worker-b")

	if w := serve(r, reqA); w.Code != http.StatusNoContent {
		t.Fatalf("worker-a: status = %d", w.Code)
	}
	// worker-a exhausted its bucket; worker-b still has one token.
	reqA2 := httptest.NewRequest(http.MethodGet, "/", nil)
	reqA2.Header.Set("X-Client-ID", "worker-a")
	if w := serve(r, reqA2); w.Code != http.StatusTooManyRequests {
		t.Fatalf("worker-a second: status = %d", w.Code)
	}
	if w := serve(r, reqB); w.Code != http.StatusNoContent {
		t.Fatalf("worker-b: status = %d", w.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(SecurityOptions{EnablePolicy: true}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options = %q", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options = %q", got)
	}
	if w.Header().Get("Permissions-Policy") == "" {
		t.Fatal("Permissions-Policy must be set when enabled")
	}
	// Plain HTTP request: no HSTS.
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Fatal("HSTS must not be sent over plain HTTP")
	}
}
