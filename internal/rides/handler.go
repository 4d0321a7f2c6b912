package rides

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
	CreateRide(ctx context.Context, actor models.Actor, req *models.CreateRideRequest) (*models.Ride, error)
	GetRide(ctx context.Context, id uuid.UUID) (*models.Ride, error)
	ListRides(ctx context.Context, filter *models.RideFilter, limit, offset int) ([]models.Ride, int64, error)
	UserRides(ctx context.Context, driverID uuid.UUID, limit, offset int) ([]models.Ride, int64, error)
	UpdateRide(ctx context.Context, actor models.Actor, rideID uuid.UUID, req *models.UpdateRideRequest) (*models.Ride, error)
	CancelRide(ctx context.Context, actor models.Actor, rideID uuid.UUID) error
}

// Handler handles HTTP requests for rides
type Handler struct {
	service ServiceInterface
}

// NewHandler creates a new rides handler
func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the ride endpoints on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/rides", h.CreateRide)
	rg.GET("/rides", h.ListRides)
	rg.GET("/rides/mine", h.MyRides)
	rg.GET("/rides/:id", h.GetRide)
	rg.PATCH("/rides/:id", h.UpdateRide)
	rg.DELETE("/rides/:id", h.CancelRide)
}

// CreateRide creates a new ride
func (h *Handler) CreateRide(c *gin.Context) {
	actor, err := middleware.GetActor(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	var req models.CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ride, err := h.service.CreateRide(c.Request.Context(), actor, &req)
	if common.HandleServiceError(c, err, "failed to create ride") {
		return
	}

	common.CreatedResponse(c, ride)
}

// ListRides returns rides matching the query filter
func (h *Handler) ListRides(c *gin.Context) {
	var filter models.RideFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	params := pagination.ParseParams(c)

	rides, total, err := h.service.ListRides(c.Request.Context(), &filter, params.Limit, params.Offset)
	if common.HandleServiceError(c, err, "failed to list rides") {
		return
	}

	common.SuccessResponseWithMeta(c, rides, pagination.BuildMeta(params.Limit, params.Offset, total))
}

// MyRides returns the caller's own rides as a driver
func (h *Handler) MyRides(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	params := pagination.ParseParams(c)

	rides, total, err := h.service.UserRides(c.Request.Context(), userID, params.Limit, params.Offset)
	if common.HandleServiceError(c, err, "failed to list rides") {
		return
	}

	common.SuccessResponseWithMeta(c, rides, pagination.BuildMeta(params.Limit, params.Offset, total))
}

// GetRide returns a single ride
func (h *Handler) GetRide(c *gin.Context) {
	rideID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid ride ID")
		return
	}

	ride, err := h.service.GetRide(c.Request.Context(), rideID)
	if common.HandleServiceError(c, err, "failed to get ride") {
		return
	}

	common.SuccessResponse(c, ride)
}

// UpdateRide applies a partial edit to a ride
func (h *Handler) UpdateRide(c *gin.Context) {
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

	var req models.UpdateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ride, err := h.service.UpdateRide(c.Request.Context(), actor, rideID, &req)
	if common.HandleServiceError(c, err, "failed to update ride") {
		return
	}

	common.SuccessResponse(c, ride)
}

// CancelRide cancels a ride
func (h *Handler) CancelRide(c *gin.Context) {
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

	if common.HandleServiceError(c, h.service.CancelRide(c.Request.Context(), actor, rideID), "failed to cancel ride") {
		return
	}

	common.SuccessResponse(c, gin.H{"cancelled": true})
}
