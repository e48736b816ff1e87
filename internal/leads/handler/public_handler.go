package handler

import (
	"net/http"

	"localpros_backend/internal/leads/intake"
	"localpros_backend/internal/leads/transport"
	"localpros_backend/platform/httpkit"
	"localpros_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PublicHandler handles the unauthenticated quote-request submission.
type PublicHandler struct {
	intake *intake.Service
	val    *validator.Validator
}

// NewPublic creates a new public leads handler.
func NewPublic(svc *intake.Service, val *validator.Validator) *PublicHandler {
	return &PublicHandler{intake: svc, val: val}
}

// RegisterPublicRoutes registers the public submission route. The caller is
// expected to mount the submission rate limiter on the group.
func (h *PublicHandler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/leads", h.Submit)
}

func (h *PublicHandler) Submit(c *gin.Context) {
	var req transport.SubmitLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	params := intake.SubmitParams{
		RequesterName:  req.Name,
		RequesterEmail: req.Email,
		RequesterPhone: req.Phone,
		Message:        req.Message,
	}

	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}
	params.CategoryID = categoryID

	if req.ProviderID != nil {
		id, err := uuid.Parse(*req.ProviderID)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
			return
		}
		params.ProviderID = &id
	}
	if req.MetroID != nil {
		id, err := uuid.Parse(*req.MetroID)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
			return
		}
		params.MetroID = &id
	}

	result, err := h.intake.Submit(c.Request.Context(), params)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.SubmitLeadResponse{
		LeadID:  result.Lead.ID,
		Message: result.Message,
	})
}
