package recurrence

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/trawell/rides-service/pkg/common"
	"github.com/trawell/rides-service/pkg/middleware"
	"github.com/trawell/rides-service/pkg/models"
	"github.com/trawell/rides-service/pkg/pagination"
)

// ServiceInterface is the service contract the handler depends on.
type ServiceInterface interface {
	CreateTemplate(ctx context.Context, actor models.Actor, req *models.CreateTemplateRequest) (*models.RideTemplate, []*models.Ride, error)
	GetTemplate(ctx context.Context, id uuid.UUID) (*models.RideTemplate, error)
	MyTemplates(ctx context.Context, driverID uuid.UUID, limit, offset int) ([]models.RideTemplate, int64, error)
	UpdateTemplate(ctx context.Context, actor models.Actor, templateID uuid.UUID, req *models.UpdateTemplateRequest) (*UpdateResult, error)
	CancelTemplate(ctx context.Context, actor models.Actor, templateID uuid.UUID) error
}

// Handler handles HTTP requests for ride templates
type Handler struct {
	service ServiceInterface
}

// NewHandler creates a new recurrence handler
func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the template endpoints on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/templates", h.CreateTemplate)
	rg.GET("/templates/mine", h.MyTemplates)
	rg.GET("/templates/:id", h.GetTemplate)
	rg.PATCH("/templates/:id", h.UpdateTemplate)
	rg.DELETE("/templates/:id", h.CancelTemplate)
}

// CreateTemplate creates a recurring template and its ride occurrences
func (h *Handler) CreateTemplate(c *gin.Context) {
	actor, err := middleware.GetActor(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	var req models.CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	tpl, rides, err := h.service.CreateTemplate(c.Request.Context(), actor, &req)
	if common.HandleServiceError(c, err, "failed to create template") {
		return
	}

	common.CreatedResponse(c, gin.H{
		"template":      tpl,
		"rides_created": len(rides),
	})
}

// GetTemplate returns a template
func (h *Handler) GetTemplate(c *gin.Context) {
	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid template ID")
		return
	}

	tpl, err := h.service.GetTemplate(c.Request.Context(), templateID)
	if common.HandleServiceError(c, err, "failed to get template") {
		return
	}

	common.SuccessResponse(c, tpl)
}

// MyTemplates returns the caller's templates
func (h *Handler) MyTemplates(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	params := pagination.ParseParams(c)

	templates, total, err := h.service.MyTemplates(c.Request.Context(), userID, params.Limit, params.Offset)
	if common.HandleServiceError(c, err, "failed to list templates") {
		return
	}

	common.SuccessResponseWithMeta(c, templates, pagination.BuildMeta(params.Limit, params.Offset, total))
}

// UpdateTemplate edits a template and cascades the change
func (h *Handler) UpdateTemplate(c *gin.Context) {
	actor, err := middleware.GetActor(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid template ID")
		return
	}

	var req models.UpdateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.UpdateTemplate(c.Request.Context(), actor, templateID, &req)
	if common.HandleServiceError(c, err, "failed to update template") {
		return
	}

	common.SuccessResponse(c, result)
}

// CancelTemplate cancels a template and its future rides
func (h *Handler) CancelTemplate(c *gin.Context) {
	actor, err := middleware.GetActor(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid template ID")
		return
	}

	if common.HandleServiceError(c, h.service.CancelTemplate(c.Request.Context(), actor, templateID), "failed to cancel template") {
		return
	}

	common.SuccessResponse(c, gin.H{"cancelled": true})
}
