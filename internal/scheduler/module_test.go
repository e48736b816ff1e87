package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apphttp "localpros_backend/internal/http"

	"github.com/gin-gonic/gin"
)

type fakeEnqueuer struct {
	err      error
	payloads []PendingDeliveryDigestPayload
}

func (f *fakeEnqueuer) EnqueuePendingDeliveryDigest(ctx context.Context, payload PendingDeliveryDigestPayload) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func newDigestRouter(enq *fakeEnqueuer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	NewModule(enq, nil).RegisterRoutes(&apphttp.RouterContext{Admin: engine.Group("/admin")})
	return engine
}

func TestRunPendingDigestUsesDefaultCutoff(t *testing.T) {
	enq := &fakeEnqueuer{}
	engine := newDigestRouter(enq)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/tasks/pending-digest", nil)
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(enq.payloads) != 1 || enq.payloads[0].OlderThanMinutes != DefaultOlderThanMinutes {
		t.Fatalf("expected default cutoff enqueued, got %+v", enq.payloads)
	}
}

func TestRunPendingDigestHonorsCutoffOverride(t *testing.T) {
	enq := &fakeEnqueuer{}
	engine := newDigestRouter(enq)

	body, err := json.Marshal(runDigestRequest{OlderThanMinutes: 90})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/tasks/pending-digest", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(enq.payloads) != 1 || enq.payloads[0].OlderThanMinutes != 90 {
		t.Fatalf("expected 90 minute cutoff enqueued, got %+v", enq.payloads)
	}
}

func TestRunPendingDigestEnqueueFailure(t *testing.T) {
	enq := &fakeEnqueuer{err: errors.New("redis down")}
	engine := newDigestRouter(enq)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/tasks/pending-digest", nil)
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
