package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRequeueStale(t *testing.T) {
	jobs := &stubJobs{requeued: 3}
	r := newTestRouter(&stubProcessor{}, jobs, &stubRequests{})

	w := doJSON(t, r, http.MethodPost, "/admin/requeue-stale", gin.H{
		"older_than_minutes": 30,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if jobs.requeueAge != 30*time.Minute {
		t.Fatalf("age = %v", jobs.requeueAge)
	}

	var resp RequeueStaleResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Requeued != 3 {
		t.Fatalf("requeued = %d", resp.Requeued)
	}
}

func TestRequeueStale_MinimumAge(t *testing.T) {
	jobs := &stubJobs{}
	r := newTestRouter(&stubProcessor{}, jobs, &stubRequests{})

	// The test router configures a 10 minute floor.
	w := doJSON(t, r, http.MethodPost, "/admin/requeue-stale", gin.H{
		"older_than_minutes": 5,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("below floor: status = %d", w.Code)
	}
	if jobs.requeueAge != 0 {
		t.Fatal("service must not be called for a rejected age")
	}

	w = doJSON(t, r, http.MethodPost, "/admin/requeue-stale", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing age: status = %d", w.Code)
	}
}
