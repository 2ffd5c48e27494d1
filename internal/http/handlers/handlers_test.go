package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/menupix/menupix-backend/internal/domain"
	"github.com/menupix/menupix-backend/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

//
// Service stubs
//

type stubProcessor struct {
	summary    *services.RequestSummary
	resolution *services.Resolution
	err        error

	gotURL   string
	gotEmail string
}

func (s *stubProcessor) ProcessRestaurant(_ context.Context, restaurantURL, userEmail string) (*services.RequestSummary, error) {
	s.gotURL = restaurantURL
	s.gotEmail = userEmail
	if s.err != nil {
		return nil, s.err
	}
	return s.summary, nil
}

func (s *stubProcessor) Resolve(_ context.Context, _ string) (*services.Resolution, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.resolution, nil
}

type stubJobs struct {
	pending []domain.ImageProcessingJob
	job     *domain.ImageProcessingJob
	err     error

	startedID   string
	callbackURL string
	completedID string
	failedID    string
	failReason  string
	requeued    int64
	requeueAge  time.Duration
}

func (s *stubJobs) ListPending(_ context.Context, _ int) ([]domain.ImageProcessingJob, error) {
	return s.pending, s.err
}

func (s *stubJobs) Get(_ context.Context, _ string) (*domain.ImageProcessingJob, error) {
	return s.job, s.err
}

func (s *stubJobs) Start(_ context.Context, jobID, workerCallbackURL string) error {
	s.startedID = jobID
	s.callbackURL = workerCallbackURL
	return s.err
}

func (s *stubJobs) Complete(_ context.Context, jobID, _, _ string) error {
	s.completedID = jobID
	return s.err
}

func (s *stubJobs) Fail(_ context.Context, jobID, reason string) error {
	s.failedID = jobID
	s.failReason = reason
	return s.err
}

func (s *stubJobs) RequeueStale(_ context.Context, olderThan time.Duration) (int64, error) {
	s.requeueAge = olderThan
	return s.requeued, s.err
}

type stubRequests struct {
	status *services.RequestStatus
	pkg    *services.DownloadPackage
	err    error

	paymentID     string
	paymentStatus string
}

func (s *stubRequests) Status(_ context.Context, _ string) (*services.RequestStatus, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.status, nil
}

func (s *stubRequests) SetPaymentStatus(_ context.Context, requestID, status string) error {
	s.paymentID = requestID
	s.paymentStatus = status
	return s.err
}

func (s *stubRequests) Download(_ context.Context, _, _ string) (*services.DownloadPackage, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.pkg, nil
}

//
// Harness
//

const testWebhookBase = "https://api.menupix.example.com/api/v1"

// newTestRouter wires the handlers under the same paths the real router uses.
func newTestRouter(proc ProcessorService, jobs JobService, reqs RequestService) *gin.Engine {
	h := New(proc, jobs, reqs, testWebhookBase, 10*time.Minute)
	r := gin.New()
	r.POST("/process-restaurant", h.ProcessRestaurant)
	r.GET("/restaurants/resolve", h.ResolveRestaurant)
	r.GET("/requests/:id", h.GetRequestStatus)
	r.GET("/download/:request_id", h.Download)
	r.POST("/payments/:request_id", h.UpdatePayment)
	r.GET("/worker/pending-jobs", h.ListPendingJobs)
	r.POST("/worker/jobs/:id/start", h.StartJob)
	r.POST("/worker/jobs/:id/fail", h.FailJob)
	r.POST("/webhook/job-complete/:id", h.CompleteJob)
	r.POST("/admin/requeue-stale", h.RequeueStale)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeErr(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, w.Body.String())
	}
	return e
}
