package participations

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
	SendJoinRequest(ctx context.Context, actor models.Actor, req *models.JoinRequest) (*models.Participation, error)
	Decide(ctx context.Context, actor models.Actor, participationID uuid.UUID, decision models.Decision) (*models.Participation, error)
	Cancel(ctx context.Context, actor models.Actor, participationID uuid.UUID) (*models.Participation, error)
	MyRequests(ctx context.Context, userID uuid.UUID, decision string, limit, offset int) ([]models.Participation, int64, error)
	RideRequests(ctx context.Context, actor models.Actor, rideID uuid.UUID, decision string, limit, offset int) ([]models.Participation, int64, error)
}

// Handler handles HTTP requests for participations
type Handler struct {
	service ServiceInterface
}

// NewHandler creates a new participations handler
func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the participation endpoints on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/requests", h.SendJoinRequest)
	rg.GET("/requests/mine", h.MyRequests)
	rg.PUT("/requests/:id/decision", h.Decide)
	rg.DELETE("/requests/:id", h.Cancel)
	rg.GET("/rides/:id/requests", h.RideRequests)
}

// SendJoinRequest asks for seats on a ride
func (h *Handler) SendJoinRequest(c *gin.Context) {
	actor, err := middleware.GetActor(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	var req models.JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.service.SendJoinRequest(c.Request.Context(), actor, &req)
	if common.HandleServiceError(c, err, "failed to send join request") {
		return
	}

	common.CreatedResponse(c, p)
}

// MyRequests returns the caller's seat requests
func (h *Handler) MyRequests(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	var filter models.ParticipationFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	params := pagination.ParseParams(c)

	requests, total, err := h.service.MyRequests(c.Request.Context(), userID, filter.Decision, params.Limit, params.Offset)
	if common.HandleServiceError(c, err, "failed to list requests") {
		return
	}

	common.SuccessResponseWithMeta(c, requests, pagination.BuildMeta(params.Limit, params.Offset, total))
}

// Decide accepts or declines a pending request
func (h *Handler) Decide(c *gin.Context) {
	actor, err := middleware.GetActor(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	participationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request ID")
		return
	}

	var req models.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.service.Decide(c.Request.Context(), actor, participationID, req.Decision)
	if common.HandleServiceError(c, err, "failed to decide request") {
		return
	}

	common.SuccessResponse(c, p)
}

// Cancel withdraws an active request
func (h *Handler) Cancel(c *gin.Context) {
	actor, err := middleware.GetActor(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	participationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request ID")
		return
	}

	p, err := h.service.Cancel(c.Request.Context(), actor, participationID)
	if common.HandleServiceError(c, err, "failed to cancel request") {
		return
	}

	common.SuccessResponse(c, p)
}

// RideRequests lists the requests against one of the caller's rides
func (h *Handler) RideRequests(c *gin.Context) {
	actor, err := middleware.GetActor(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	rideID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid ride ID")
		return
	}

	var filter models.ParticipationFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	params := pagination.ParseParams(c)

	requests, total, err := h.service.RideRequests(c.Request.Context(), actor, rideID, filter.Decision, params.Limit, params.Offset)
	if common.HandleServiceError(c, err, "failed to list ride requests") {
		return
	}

	common.SuccessResponseWithMeta(c, requests, pagination.BuildMeta(params.Limit, params.Offset, total))
}
