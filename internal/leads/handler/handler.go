// Package handler exposes the leads module over HTTP.
package handler

import (
	"net/http"

	"localpros_backend/internal/leads/delivery"
	"localpros_backend/internal/leads/domain"
	"localpros_backend/internal/leads/lifecycle"
	"localpros_backend/internal/leads/rotation"
	"localpros_backend/internal/leads/transport"
	"localpros_backend/platform/httpkit"
	"localpros_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid id"
)

// Handler handles authenticated lead routes for providers and admins.
type Handler struct {
	lifecycle *lifecycle.Controller
	assigner  *rotation.Assigner
	deliverer *delivery.Service
	val       *validator.Validator
}

// New creates a new leads handler.
func New(lc *lifecycle.Controller, assigner *rotation.Assigner, deliverer *delivery.Service, val *validator.Validator) *Handler {
	return &Handler{lifecycle: lc, assigner: assigner, deliverer: deliverer, val: val}
}

// RegisterProtectedRoutes registers routes for any authenticated caller;
// per-lead authorization happens in the lifecycle controller.
func (h *Handler) RegisterProtectedRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.ListMine)
	rg.GET("/:id", h.Get)
	rg.GET("/:id/timeline", h.Timeline)
	rg.POST("/:id/view", h.MarkViewed)
	rg.POST("/:id/contact", h.MarkContacted)
	rg.POST("/:id/resolve", h.Resolve)
	rg.POST("/:id/decline", h.Decline)
	rg.PATCH("/:id/board", h.SetBoardFields)
}

// RegisterAdminRoutes registers admin-only lead and rotation routes.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/leads/:id/escalate", h.Escalate)
	rg.POST("/leads/:id/reassign", h.Reassign)
	rg.POST("/leads/:id/return-to-pool", h.ReturnToPool)
	rg.POST("/leads/:id/deliver", h.Redeliver)
	rg.GET("/metros/:metroId/rotation", h.GetRotation)
	rg.POST("/metros/:metroId/rotation/reset", h.ResetRotation)
}

// actorFrom maps the authenticated identity to a lifecycle actor. Admin role
// wins when a user carries both.
func actorFrom(id httpkit.Identity) domain.Actor {
	userID := id.UserID()
	if id.IsAdmin() {
		return domain.Actor{Type: domain.ActorAdmin, UserID: &userID}
	}
	return domain.Actor{Type: domain.ActorProvider, UserID: &userID}
}

func leadID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) ListMine(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	leads, err := h.lifecycle.ListForProvider(c.Request.Context(), actorFrom(identity))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.FromLeads(leads))
}

func (h *Handler) Get(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := leadID(c)
	if !ok {
		return
	}

	lead, err := h.lifecycle.Get(c.Request.Context(), id, actorFrom(identity))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.FromLead(lead))
}

func (h *Handler) Timeline(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := leadID(c)
	if !ok {
		return
	}

	items, err := h.lifecycle.Timeline(c.Request.Context(), id, actorFrom(identity))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.FromLeadEvents(items))
}

func (h *Handler) MarkViewed(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := leadID(c)
	if !ok {
		return
	}

	lead, err := h.lifecycle.MarkViewed(c.Request.Context(), id, actorFrom(identity))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.FromLead(lead))
}

func (h *Handler) MarkContacted(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := leadID(c)
	if !ok {
		return
	}

	lead, err := h.lifecycle.MarkContacted(c.Request.Context(), id, actorFrom(identity))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.FromLead(lead))
}

func (h *Handler) Resolve(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := leadID(c)
	if !ok {
		return
	}

	var req transport.ResolveLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.lifecycle.Resolve(c.Request.Context(), id, actorFrom(identity), req.ResolutionStatus)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.FromLead(lead))
}

func (h *Handler) Decline(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := leadID(c)
	if !ok {
		return
	}

	var req transport.DeclineLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.lifecycle.Decline(c.Request.Context(), id, actorFrom(identity), req.Reason, req.Note)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{
		"lead":       transport.FromLead(result.Lead),
		"reassigned": result.Reassigned,
	})
}

func (h *Handler) SetBoardFields(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := leadID(c)
	if !ok {
		return
	}

	var req transport.BoardFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.lifecycle.SetBoardFields(c.Request.Context(), id, actorFrom(identity), req.FollowUpAt, req.NextAction)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.FromLead(lead))
}

func (h *Handler) Escalate(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := leadID(c)
	if !ok {
		return
	}

	var req transport.EscalateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.lifecycle.Escalate(c.Request.Context(), id, actorFrom(identity), req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.FromLead(lead))
}

func (h *Handler) Reassign(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := leadID(c)
	if !ok {
		return
	}

	var req transport.ReassignLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	providerID, err := uuid.Parse(req.ProviderID)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	lead, err := h.lifecycle.Reassign(c.Request.Context(), id, providerID, actorFrom(identity))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.FromLead(lead))
}

func (h *Handler) ReturnToPool(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := leadID(c)
	if !ok {
		return
	}

	result, err := h.lifecycle.ReturnToPool(c.Request.Context(), id, actorFrom(identity))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// Redeliver re-runs delivery for a lead, admin-only. This is the manual
// retry path: delivery failures are never retried automatically.
func (h *Handler) Redeliver(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := leadID(c)
	if !ok {
		return
	}

	result, err := h.deliverer.Deliver(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

func (h *Handler) GetRotation(c *gin.Context) {
	metroID, err := uuid.Parse(c.Param("metroId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	rot, err := h.assigner.Rotation(c.Request.Context(), metroID)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.RotationResponse{MetroID: metroID}
	if rot != nil {
		resp.LastProviderID = rot.LastProviderID
		resp.LastAssignedAt = rot.LastAssignedAt
	}
	httpkit.OK(c, resp)
}

func (h *Handler) ResetRotation(c *gin.Context) {
	metroID, err := uuid.Parse(c.Param("metroId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	if err := h.assigner.ResetRotation(c.Request.Context(), metroID); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"ok": true})
}
