package participations

import (
	"context"
	"fmt"
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

// RepositoryInterface is the storage contract the service depends on.
type RepositoryInterface interface {
	CreateWithReservation(ctx context.Context, p *models.Participation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Participation, error)
	UpdateDecision(ctx context.Context, id uuid.UUID, from, to models.Decision) (*models.Participation, error)
	ListByUser(ctx context.Context, userID uuid.UUID, decision string, limit, offset int) ([]models.Participation, int64, error)
	ListByRide(ctx context.Context, rideID uuid.UUID, decision string, limit, offset int) ([]models.Participation, int64, error)
}

// RideGetter provides read access to rides for guard checks.
type RideGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Ride, error)
}

// Service handles participation business logic
type Service struct {
	repo      RepositoryInterface
	rides     RideGetter
	publisher eventbus.Publisher
	now       func() time.Time
}

// NewService creates a new participations service
func NewService(repo RepositoryInterface, rides RideGetter, publisher eventbus.Publisher) *Service {
	return &Service{
		repo:      repo,
		rides:     rides,
		publisher: publisher,
		now:       time.Now,
	}
}

// SendJoinRequest asks for seats on a ride. The request starts pending, or
// accepted right away when the ride confirms automatically. Seats are
// reserved in both cases; a pending request already holds its seats.
func (s *Service) SendJoinRequest(ctx context.Context, actor models.Actor, req *models.JoinRequest) (*models.Participation, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "SendJoinRequest")
	defer span.End()

	tracing.AddSpanAttributes(ctx,
		tracing.UserIDKey.String(actor.ID.String()),
		tracing.RideIDKey.String(req.RideID.String()),
		tracing.SeatsKey.Int(req.Seats),
	)

	if !actor.AccountType.IsPrivate() {
		return nil, common.NewPermissionError("company accounts cannot join rides")
	}
	if req.Seats < 1 {
		return nil, common.NewCapacityError(common.CodeInvalidSeatAmount, "seat amount must be positive")
	}

	ride, err := s.rides.GetByID(ctx, req.RideID)
	if err != nil {
		return nil, err
	}

	if ride.DriverID == actor.ID {
		return nil, common.NewPermissionError("you cannot join your own ride")
	}
	if ride.IsCancelled {
		return nil, common.NewStateError("ride is cancelled")
	}
	if ride.HasStarted(s.now()) {
		return nil, common.NewStateError("ride has already departed")
	}

	decision := models.DecisionPending
	if ride.AutomaticConfirm {
		decision = models.DecisionAccepted
	}

	p := &models.Participation{
		ID:            uuid.New(),
		RideID:        req.RideID,
		UserID:        actor.ID,
		ReservedSeats: req.Seats,
		Decision:      decision,
	}

	if err := s.repo.CreateWithReservation(ctx, p); err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	ride.AvailableSeats -= req.Seats
	s.publishChange(ctx, p, ride)

	return p, nil
}

// Decide lets the ride's driver accept or decline a pending request.
// Accepting keeps the seats that the pending request already held; declining
// returns them, atomically with the decision write.
func (s *Service) Decide(ctx context.Context, actor models.Actor, participationID uuid.UUID, decision models.Decision) (*models.Participation, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "Decide")
	defer span.End()

	tracing.AddSpanAttributes(ctx,
		tracing.UserIDKey.String(actor.ID.String()),
		tracing.ParticipationIDKey.String(participationID.String()),
		tracing.DecisionKey.String(string(decision)),
	)

	if decision != models.DecisionAccepted && decision != models.DecisionDeclined {
		return nil, common.NewValidationError(
			fmt.Sprintf("decision must be %s or %s", models.DecisionAccepted, models.DecisionDeclined))
	}

	p, err := s.repo.GetByID(ctx, participationID)
	if err != nil {
		return nil, err
	}

	ride, err := s.rides.GetByID(ctx, p.RideID)
	if err != nil {
		return nil, err
	}

	if ride.DriverID != actor.ID {
		return nil, common.NewPermissionError("only the ride owner can decide requests")
	}

	updated, err := s.repo.UpdateDecision(ctx, participationID, models.DecisionPending, decision)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	if decision == models.DecisionDeclined {
		ride.AvailableSeats += p.ReservedSeats
	}
	s.publishChange(ctx, updated, ride)

	return updated, nil
}

// Cancel lets a passenger withdraw an active request. Cancellation is
// terminal and always frees the held seats.
func (s *Service) Cancel(ctx context.Context, actor models.Actor, participationID uuid.UUID) (*models.Participation, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "Cancel")
	defer span.End()

	tracing.AddSpanAttributes(ctx,
		tracing.UserIDKey.String(actor.ID.String()),
		tracing.ParticipationIDKey.String(participationID.String()),
	)

	p, err := s.repo.GetByID(ctx, participationID)
	if err != nil {
		return nil, err
	}

	if p.UserID != actor.ID {
		return nil, common.NewPermissionError("only the request owner can cancel it")
	}
	if !p.Decision.Active() {
		return nil, common.NewStateError(fmt.Sprintf("request is already %s", p.Decision))
	}

	updated, err := s.repo.UpdateDecision(ctx, participationID, p.Decision, models.DecisionCancelled)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	ride, err := s.rides.GetByID(ctx, p.RideID)
	if err != nil {
		// The cancellation committed, the event just loses its snapshot.
		logger.WithContext(ctx).Warn("failed to load ride for event", zap.Error(err))
		ride = &models.Ride{ID: p.RideID}
	}
	s.publishChange(ctx, updated, ride)

	return updated, nil
}

// MyRequests returns the caller's own seat requests.
func (s *Service) MyRequests(ctx context.Context, userID uuid.UUID, decision string, limit, offset int) ([]models.Participation, int64, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "MyRequests")
	defer span.End()

	return s.repo.ListByUser(ctx, userID, decision, limit, offset)
}

// RideRequests returns the requests against one of the caller's rides.
func (s *Service) RideRequests(ctx context.Context, actor models.Actor, rideID uuid.UUID, decision string, limit, offset int) ([]models.Participation, int64, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "RideRequests")
	defer span.End()

	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, 0, err
	}

	if ride.DriverID != actor.ID {
		return nil, 0, common.NewPermissionError("only the ride owner can list its requests")
	}

	return s.repo.ListByRide(ctx, rideID, decision, limit, offset)
}

func (s *Service) publishChange(ctx context.Context, p *models.Participation, ride *models.Ride) {
	if s.publisher == nil {
		return
	}

	event, err := eventbus.NewEvent(eventbus.SubjectParticipationChanged, tracerName, eventbus.ParticipationChangedData{
		ParticipationID: p.ID,
		UserID:          p.UserID,
		ReservedSeats:   p.ReservedSeats,
		Decision:        p.Decision,
		Ride:            eventbus.SnapshotRide(ride),
		ChangedAt:       s.now().UTC(),
	})
	if err != nil {
		logger.WithContext(ctx).Error("failed to build event", zap.Error(err))
		return
	}

	if err := s.publisher.Publish(ctx, eventbus.SubjectParticipationChanged, event); err != nil {
		logger.WithContext(ctx).Warn("failed to publish event", zap.Error(err))
	}
}
