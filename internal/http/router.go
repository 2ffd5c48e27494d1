// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, CORS,
// security headers, compression, and rate limiting.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/menupix/menupix-backend/internal/config"
	"github.com/menupix/menupix-backend/internal/http/handlers"
	"github.com/menupix/menupix-backend/internal/http/middleware"
	"github.com/menupix/menupix-backend/internal/notify"
	"github.com/menupix/menupix-backend/internal/repo"
	"github.com/menupix/menupix-backend/internal/scrape"
	"github.com/menupix/menupix-backend/internal/services"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine, builds the service graph around db, and mounts the versioned API
// under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (creation endpoint only; worker traffic is not limited)
//  8. CORS, gzip, and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured access logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB); payloads here are small JSON
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Client-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Client-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health with a DB ping
	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Dependency injection: services, repo/db, collaborators
	catalogSvc := services.NewCatalogService(db, cfg.ScrapeTTL, cfg.PlatformHost)
	jobSvc := services.NewJobService(db, cfg.PendingJobsLimit, cfg.PendingJobsMaxCap)
	jobSvc.Notifier = notify.NewEmailNotifier(cfg.Notify)
	reqSvc := services.NewRequestService(db, cfg.PricePerImage, cfg.MinutesPerImage)
	procSvc := services.NewProcessorService(db, catalogSvc, jobSvc, reqSvc, scrape.New())

	h := handlers.New(procSvc, jobSvc, reqSvc, cfg.WebhookBaseURL+cfg.APIBasePath, cfg.RequeueMinAge)

	// 7) Token-bucket limiter, applied to the expensive creation endpoint
	rl := middleware.NewRateLimiter(cfg.RatePerMinute/60.0, cfg.RateBurst, middleware.KeyByClientOrIP())

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// User-facing
		api.POST("/process-restaurant", rl.Handler(), h.ProcessRestaurant)
		api.GET("/restaurants/resolve", h.ResolveRestaurant)
		api.GET("/requests/:id", h.GetRequestStatus)
		api.GET("/download/:request_id", h.Download)
		api.POST("/payments/:request_id", h.UpdatePayment)

		// Worker-facing
		api.GET("/worker/pending-jobs", h.ListPendingJobs)
		api.POST("/worker/jobs/:id/start", h.StartJob)
		api.POST("/worker/jobs/:id/fail", h.FailJob)
		api.POST("/webhook/job-complete/:id", h.CompleteJob)

		// Operator
		api.POST("/admin/requeue-stale", h.RequeueStale)

		// Service info: catalog and queue statistics
		api.GET("/info", func(c *gin.Context) {
			ctx := c.Request.Context()
			catalog, err := catalogSvc.Stats(ctx)
			if err != nil {
				handlers.Fail(c, http.StatusInternalServerError, handlers.ErrCodeInternal, err.Error())
				return
			}
			jobStats, err := repo.JobStats(ctx, db)
			if err != nil {
				handlers.Fail(c, http.StatusInternalServerError, handlers.ErrCodeInternal, err.Error())
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"service": cfg.OTEL.ServiceName,
				"catalog": catalog,
				"jobs":    jobStats,
			})
		})
	}
}

// limitBody caps the request body for all endpoints using http.MaxBytesReader.
// Requests exceeding the cap cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
