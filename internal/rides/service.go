package rides

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/trawell/rides-service/pkg/common"
	"github.com/trawell/rides-service/pkg/eventbus"
	"github.com/trawell/rides-service/pkg/logger"
	"github.com/trawell/rides-service/pkg/models"
	"github.com/trawell/rides-service/pkg/tracing"
	"go.uber.org/zap"
)

const tracerName = "rides-service"

// maxEditAttempts bounds the optimistic-lock retry loop on ride edits.
const maxEditAttempts = 3

// RepositoryInterface is the storage contract the service depends on.
type RepositoryInterface interface {
	Create(ctx context.Context, ride *models.Ride) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Ride, error)
	List(ctx context.Context, filter *models.RideFilter, limit, offset int) ([]models.Ride, int64, error)
	ListByDriver(ctx context.Context, driverID uuid.UUID, limit, offset int) ([]models.Ride, int64, error)
	UpdateVersioned(ctx context.Context, ride *models.Ride) (bool, error)
	Cancel(ctx context.Context, id uuid.UUID) (bool, error)
}

// Service handles ride business logic
type Service struct {
	repo      RepositoryInterface
	publisher eventbus.Publisher
	now       func() time.Time
}

// NewService creates a new rides service
func NewService(repo RepositoryInterface, publisher eventbus.Publisher) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		now:       time.Now,
	}
}

// CreateRide creates a single ride owned by the calling driver.
func (s *Service) CreateRide(ctx context.Context, actor models.Actor, req *models.CreateRideRequest) (*models.Ride, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "CreateRide")
	defer span.End()

	tracing.AddSpanAttributes(ctx,
		tracing.UserIDKey.String(actor.ID.String()),
		tracing.SeatsKey.Int(req.Seats),
	)

	if err := req.Duration.Validate(); err != nil {
		return nil, common.NewValidationError(err.Error())
	}
	if req.StartDate.Before(s.now()) {
		return nil, common.NewValidationError("start date must be in the future")
	}
	if req.AutomaticConfirm && actor.AccountType.IsPrivate() {
		return nil, common.NewValidationError("private drivers cannot enable automatic confirmation")
	}

	ride := &models.Ride{
		ID:               uuid.New(),
		DriverID:         actor.ID,
		VehicleID:        req.VehicleID,
		CityFrom:         req.CityFrom,
		CityTo:           req.CityTo,
		AreaFrom:         req.AreaFrom,
		AreaTo:           req.AreaTo,
		StartDate:        req.StartDate,
		Duration:         req.Duration,
		Price:            req.Price,
		Seats:            req.Seats,
		AvailableSeats:   req.Seats,
		AutomaticConfirm: req.AutomaticConfirm,
		Description:      req.Description,
		Coordinates:      req.Coordinates,
	}

	if err := s.repo.Create(ctx, ride); err != nil {
		tracing.RecordError(ctx, err)
		return nil, common.NewInternalError("failed to create ride", err)
	}

	s.publish(ctx, eventbus.SubjectRideCreated, eventbus.RideCreatedData{
		Ride:      eventbus.SnapshotRide(ride),
		CreatedAt: ride.CreatedAt,
	})

	return ride, nil
}

// GetRide returns a single ride by ID.
func (s *Service) GetRide(ctx context.Context, id uuid.UUID) (*models.Ride, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "GetRide")
	defer span.End()

	tracing.AddSpanAttributes(ctx, tracing.RideIDKey.String(id.String()))

	return s.repo.GetByID(ctx, id)
}

// ListRides returns rides matching the filter.
func (s *Service) ListRides(ctx context.Context, filter *models.RideFilter, limit, offset int) ([]models.Ride, int64, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "ListRides")
	defer span.End()

	return s.repo.List(ctx, filter, limit, offset)
}

// UserRides returns the caller's own rides as a driver.
func (s *Service) UserRides(ctx context.Context, driverID uuid.UUID, limit, offset int) ([]models.Ride, int64, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "UserRides")
	defer span.End()

	tracing.AddSpanAttributes(ctx, tracing.UserIDKey.String(driverID.String()))

	return s.repo.ListByDriver(ctx, driverID, limit, offset)
}

// UpdateRide applies a partial edit to a ride. Edits are validated against
// the current participation load and written with an optimistic version
// check, retrying a bounded number of times when a concurrent seat change
// invalidates the read.
func (s *Service) UpdateRide(ctx context.Context, actor models.Actor, rideID uuid.UUID, req *models.UpdateRideRequest) (*models.Ride, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "UpdateRide")
	defer span.End()

	tracing.AddSpanAttributes(ctx,
		tracing.UserIDKey.String(actor.ID.String()),
		tracing.RideIDKey.String(rideID.String()),
	)

	if req.Duration != nil {
		if err := req.Duration.Validate(); err != nil {
			return nil, common.NewValidationError(err.Error())
		}
	}
	if req.StartDate != nil && req.StartDate.Before(s.now()) {
		return nil, common.NewValidationError("start date must be in the future")
	}

	for attempt := 0; attempt < maxEditAttempts; attempt++ {
		ride, err := s.repo.GetByID(ctx, rideID)
		if err != nil {
			return nil, err
		}

		if err := ValidateEdit(ride, actor, req, s.now()); err != nil {
			return nil, err
		}

		ok, err := s.repo.UpdateVersioned(ctx, ride)
		if err != nil {
			tracing.RecordError(ctx, err)
			return nil, common.NewInternalError("failed to update ride", err)
		}
		if !ok {
			// Lost the version race, validate again against fresh state.
			continue
		}

		ride.Version++
		s.publish(ctx, eventbus.SubjectRideUpdated, eventbus.RideUpdatedData{
			Ride:      eventbus.SnapshotRide(ride),
			UpdatedAt: s.now().UTC(),
		})

		return ride, nil
	}

	return nil, common.NewStateError("ride was modified concurrently, please retry")
}

// CancelRide cancels a ride that has not departed yet. Cancelling twice is an
// error; cancellation is terminal.
func (s *Service) CancelRide(ctx context.Context, actor models.Actor, rideID uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, tracerName, "CancelRide")
	defer span.End()

	tracing.AddSpanAttributes(ctx,
		tracing.UserIDKey.String(actor.ID.String()),
		tracing.RideIDKey.String(rideID.String()),
	)

	ride, err := s.repo.GetByID(ctx, rideID)
	if err != nil {
		return err
	}

	if ride.DriverID != actor.ID {
		return common.NewPermissionError("only the ride owner can cancel it")
	}
	if ride.IsCancelled {
		return common.NewStateError("ride is already cancelled")
	}
	if ride.HasStarted(s.now()) {
		return common.NewStateError("rides that already departed cannot be cancelled")
	}

	ok, err := s.repo.Cancel(ctx, rideID)
	if err != nil {
		tracing.RecordError(ctx, err)
		return common.NewInternalError("failed to cancel ride", err)
	}
	if !ok {
		return common.NewStateError("ride is already cancelled")
	}

	ride.IsCancelled = true
	s.publish(ctx, eventbus.SubjectRideCancelled, eventbus.RideCancelledData{
		Ride:        eventbus.SnapshotRide(ride),
		CancelledAt: s.now().UTC(),
	})

	return nil
}

// publish sends an event and logs delivery failures. Event delivery never
// fails the request: the write already committed.
func (s *Service) publish(ctx context.Context, subject string, data interface{}) {
	if s.publisher == nil {
		return
	}

	event, err := eventbus.NewEvent(subject, tracerName, data)
	if err != nil {
		logger.WithContext(ctx).Error("failed to build event", zap.String("subject", subject), zap.Error(err))
		return
	}

	if err := s.publisher.Publish(ctx, subject, event); err != nil {
		logger.WithContext(ctx).Warn("failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}
