package scheduler

import (
	"context"
	"net/http"

	apphttp "localpros_backend/internal/http"
	"localpros_backend/platform/httpkit"
	"localpros_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// DigestEnqueuer queues an immediate digest run.
type DigestEnqueuer interface {
	EnqueuePendingDeliveryDigest(ctx context.Context, payload PendingDeliveryDigestPayload) error
}

// Module exposes manual job controls to admins. It is only mounted when the
// API process has a redis connection to enqueue on.
type Module struct {
	enqueuer DigestEnqueuer
	log      *logger.Logger
}

// NewModule creates the scheduler HTTP module.
func NewModule(enqueuer DigestEnqueuer, log *logger.Logger) *Module {
	return &Module{enqueuer: enqueuer, log: log}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "scheduler"
}

// RegisterRoutes mounts the manual job routes on the admin group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Admin.POST("/tasks/pending-digest", m.RunPendingDigest)
}

type runDigestRequest struct {
	OlderThanMinutes int `json:"olderThanMinutes"`
}

// RunPendingDigest queues an immediate pending-delivery digest run. The body
// is optional; a missing or non-positive cutoff falls back to the default.
func (m *Module) RunPendingDigest(c *gin.Context) {
	var req runDigestRequest
	_ = c.ShouldBindJSON(&req)
	if req.OlderThanMinutes < 1 {
		req.OlderThanMinutes = DefaultOlderThanMinutes
	}

	payload := PendingDeliveryDigestPayload{OlderThanMinutes: req.OlderThanMinutes}
	if err := m.enqueuer.EnqueuePendingDeliveryDigest(c.Request.Context(), payload); err != nil {
		if m.log != nil {
			m.log.Error("failed to enqueue pending delivery digest", "error", err)
		}
		httpkit.Error(c, http.StatusServiceUnavailable, "failed to queue digest", nil)
		return
	}

	httpkit.OK(c, gin.H{"queued": true, "olderThanMinutes": req.OlderThanMinutes})
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
