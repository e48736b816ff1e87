// Package leads provides the lead lifecycle bounded context module: intake,
// rotation assignment, delivery and lifecycle management.
package leads

import (
	"context"
	"time"

	"localpros_backend/internal/email"
	"localpros_backend/internal/events"
	apphttp "localpros_backend/internal/http"
	"localpros_backend/internal/leads/audit"
	"localpros_backend/internal/leads/delivery"
	"localpros_backend/internal/leads/handler"
	"localpros_backend/internal/leads/intake"
	"localpros_backend/internal/leads/lifecycle"
	"localpros_backend/internal/leads/ports"
	"localpros_backend/internal/leads/repository"
	"localpros_backend/internal/leads/rotation"
	"localpros_backend/platform/config"
	"localpros_backend/platform/logger"
	"localpros_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	repo          *repository.Repository
	deliverer     *delivery.Service
	assigner      *rotation.Assigner
	lifecycle     *lifecycle.Controller
	intake        *intake.Service
	handler       *handler.Handler
	publicHandler *handler.PublicHandler
}

// NewModule creates and wires the leads module. The provider directory is an
// adapter over the providers module, injected to keep the contexts decoupled.
func NewModule(
	pool *pgxpool.Pool,
	directory ports.ProviderDirectory,
	sender email.Sender,
	emailCfg config.EmailConfig,
	bus events.Bus,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	repo := repository.New(pool)
	auditRec := audit.New(repo, log)

	deliverer := delivery.New(repo, directory, sender, emailCfg, auditRec, bus, log)
	assigner := rotation.New(repo, directory, deliverer, auditRec, bus, log)
	lc := lifecycle.New(repo, directory, assigner, deliverer, auditRec, bus, log)
	intakeSvc := intake.New(repo, directory, deliverer, assigner, bus)

	return &Module{
		repo:          repo,
		deliverer:     deliverer,
		assigner:      assigner,
		lifecycle:     lc,
		intake:        intakeSvc,
		handler:       handler.New(lc, assigner, deliverer, val),
		publicHandler: handler.NewPublic(intakeSvc, val),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Repository returns the lead repository for the scheduler's digest query.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// ListUndelivered exposes the stuck-delivery query for the digest worker.
func (m *Module) ListUndelivered(ctx context.Context, olderThan time.Time) ([]repository.Lead, error) {
	return m.repo.ListUndelivered(ctx, olderThan)
}

// RegisterRoutes mounts lead routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterProtectedRoutes(ctx.Protected.Group("/leads"))
	m.handler.RegisterAdminRoutes(ctx.Admin)
	m.publicHandler.RegisterPublicRoutes(ctx.Public.Group("", ctx.SubmissionLimiter.RateLimit()))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
