package recurrence

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

// RepositoryInterface is the storage contract the service depends on.
type RepositoryInterface interface {
	CreateWithRides(ctx context.Context, tpl *models.RideTemplate, rides []*models.Ride) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.RideTemplate, error)
	ListByDriver(ctx context.Context, driverID uuid.UUID, limit, offset int) ([]models.RideTemplate, int64, error)
	UpdateCascade(ctx context.Context, tpl *models.RideTemplate, now time.Time) ([]uuid.UUID, error)
	RegenerateRides(ctx context.Context, tpl *models.RideTemplate, rides []*models.Ride, now time.Time) ([]models.Ride, error)
	CancelCascade(ctx context.Context, templateID uuid.UUID, now time.Time) ([]models.Ride, error)
}

// UpdateResult reports the outcome of a template edit.
type UpdateResult struct {
	Template *models.RideTemplate `json:"template"`
	// SkippedRideIDs are future occurrences that kept their old capacity
	// because they already carry more passengers than the new seat count.
	SkippedRideIDs []uuid.UUID `json:"skipped_ride_ids,omitempty"`
	// RidesCreated counts the fresh occurrences when the edit discarded and
	// regenerated an unbooked schedule.
	RidesCreated int `json:"rides_created,omitempty"`
}

// Service handles recurring-ride business logic
type Service struct {
	repo      RepositoryInterface
	publisher eventbus.Publisher
	now       func() time.Time
}

// NewService creates a new recurrence service
func NewService(repo RepositoryInterface, publisher eventbus.Publisher) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		now:       time.Now,
	}
}

// CreateTemplate creates a recurring template and materializes every
// occurrence as a concrete ride in one atomic write.
func (s *Service) CreateTemplate(ctx context.Context, actor models.Actor, req *models.CreateTemplateRequest) (*models.RideTemplate, []*models.Ride, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "CreateTemplate")
	defer span.End()

	tracing.AddSpanAttributes(ctx,
		tracing.UserIDKey.String(actor.ID.String()),
		tracing.FrequencyTypeKey.String(req.FrequencyType),
	)

	if err := req.Duration.Validate(); err != nil {
		return nil, nil, common.NewValidationError(err.Error())
	}
	if req.StartDate.Before(s.now()) {
		return nil, nil, common.NewValidationError("start date must be in the future")
	}
	if req.AutomaticConfirm && actor.AccountType.IsPrivate() {
		return nil, nil, common.NewValidationError("private drivers cannot enable automatic confirmation")
	}

	frequencyType := models.FrequencyType(req.FrequencyType)
	if !frequencyType.Valid() {
		return nil, nil, common.NewValidationError("unknown frequency type")
	}

	tpl := &models.RideTemplate{
		ID:               uuid.New(),
		DriverID:         actor.ID,
		VehicleID:        req.VehicleID,
		CityFrom:         req.CityFrom,
		CityTo:           req.CityTo,
		AreaFrom:         req.AreaFrom,
		AreaTo:           req.AreaTo,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		FrequencyType:    frequencyType,
		Frequence:        req.Frequence,
		Occurrences:      req.Occurrences,
		Duration:         req.Duration,
		Price:            req.Price,
		Seats:            req.Seats,
		AutomaticConfirm: req.AutomaticConfirm,
		Description:      req.Description,
	}

	departures, err := Expand(tpl)
	if err != nil {
		return nil, nil, err
	}

	tracing.AddSpanAttributes(ctx, tracing.OccurrenceCountKey.Int(len(departures)))

	rides := make([]*models.Ride, 0, len(departures))
	for _, departure := range departures {
		rides = append(rides, &models.Ride{
			ID:               uuid.New(),
			DriverID:         tpl.DriverID,
			VehicleID:        tpl.VehicleID,
			CityFrom:         tpl.CityFrom,
			CityTo:           tpl.CityTo,
			AreaFrom:         tpl.AreaFrom,
			AreaTo:           tpl.AreaTo,
			StartDate:        departure,
			Duration:         tpl.Duration,
			Price:            tpl.Price,
			Seats:            tpl.Seats,
			AvailableSeats:   tpl.Seats,
			AutomaticConfirm: tpl.AutomaticConfirm,
			Description:      tpl.Description,
			TemplateID:       &tpl.ID,
		})
	}

	if err := s.repo.CreateWithRides(ctx, tpl, rides); err != nil {
		tracing.RecordError(ctx, err)
		return nil, nil, common.NewInternalError("failed to create template", err)
	}

	for _, ride := range rides {
		s.publish(ctx, eventbus.SubjectRideCreated, eventbus.RideCreatedData{
			Ride:      eventbus.SnapshotRide(ride),
			CreatedAt: ride.CreatedAt,
		})
	}

	return tpl, rides, nil
}

// GetTemplate returns a template by ID.
func (s *Service) GetTemplate(ctx context.Context, id uuid.UUID) (*models.RideTemplate, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "GetTemplate")
	defer span.End()

	tracing.AddSpanAttributes(ctx, tracing.TemplateIDKey.String(id.String()))

	return s.repo.GetByID(ctx, id)
}

// MyTemplates returns the caller's templates.
func (s *Service) MyTemplates(ctx context.Context, driverID uuid.UUID, limit, offset int) ([]models.RideTemplate, int64, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "MyTemplates")
	defer span.End()

	return s.repo.ListByDriver(ctx, driverID, limit, offset)
}

// UpdateTemplate edits a template. While no occurrence has active
// participations, any field may change and the unbooked schedule is
// discarded and regenerated. Once passengers are booked, only the safe
// fields cascade onto the future occurrences in place.
func (s *Service) UpdateTemplate(ctx context.Context, actor models.Actor, templateID uuid.UUID, req *models.UpdateTemplateRequest) (*UpdateResult, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "UpdateTemplate")
	defer span.End()

	tracing.AddSpanAttributes(ctx,
		tracing.UserIDKey.String(actor.ID.String()),
		tracing.TemplateIDKey.String(templateID.String()),
	)

	tpl, err := s.repo.GetByID(ctx, templateID)
	if err != nil {
		return nil, err
	}

	if tpl.DriverID != actor.ID {
		return nil, common.NewPermissionError("only the template owner can edit it")
	}
	if tpl.IsCancelled {
		return nil, common.NewStateError("cancelled templates cannot be edited")
	}

	if req.Seats != nil {
		if *req.Seats < 1 {
			return nil, common.NewCapacityError(common.CodeInvalidSeatAmount, "seats must be at least 1")
		}
		tpl.Seats = *req.Seats
	}
	if req.VehicleID != nil {
		tpl.VehicleID = req.VehicleID
	}
	if req.AutomaticConfirm != nil {
		if *req.AutomaticConfirm && actor.AccountType.IsPrivate() {
			return nil, common.NewValidationError("private drivers cannot enable automatic confirmation")
		}
		tpl.AutomaticConfirm = *req.AutomaticConfirm
	}
	if req.Description != nil {
		tpl.Description = *req.Description
	}

	if req.RequestsRegeneration() {
		return s.regenerate(ctx, tpl, req)
	}

	skipped, err := s.repo.UpdateCascade(ctx, tpl, s.now())
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	return &UpdateResult{Template: tpl, SkippedRideIDs: skipped}, nil
}

// regenerate applies a full template edit by discarding the future unbooked
// occurrences and expanding the edited schedule from scratch. The repository
// rejects it when any occurrence has a pending or accepted request.
func (s *Service) regenerate(ctx context.Context, tpl *models.RideTemplate, req *models.UpdateTemplateRequest) (*UpdateResult, error) {
	if req.CityFrom != nil {
		tpl.CityFrom = *req.CityFrom
	}
	if req.CityTo != nil {
		tpl.CityTo = *req.CityTo
	}
	if req.AreaFrom != nil {
		tpl.AreaFrom = *req.AreaFrom
	}
	if req.AreaTo != nil {
		tpl.AreaTo = *req.AreaTo
	}
	if req.StartDate != nil {
		if req.StartDate.Before(s.now()) {
			return nil, common.NewValidationError("start date must be in the future")
		}
		tpl.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		tpl.EndDate = *req.EndDate
	}
	if req.FrequencyType != nil {
		frequencyType := models.FrequencyType(*req.FrequencyType)
		if !frequencyType.Valid() {
			return nil, common.NewValidationError("unknown frequency type")
		}
		tpl.FrequencyType = frequencyType
	}
	if req.Frequence != nil {
		tpl.Frequence = *req.Frequence
	}
	if len(req.Occurrences) > 0 {
		tpl.Occurrences = req.Occurrences
	}
	if req.Duration != nil {
		if err := req.Duration.Validate(); err != nil {
			return nil, common.NewValidationError(err.Error())
		}
		tpl.Duration = *req.Duration
	}
	if req.Price != nil {
		tpl.Price = *req.Price
	}

	departures, err := Expand(tpl)
	if err != nil {
		return nil, err
	}

	tracing.AddSpanAttributes(ctx, tracing.OccurrenceCountKey.Int(len(departures)))

	rides := make([]*models.Ride, 0, len(departures))
	for _, departure := range departures {
		rides = append(rides, &models.Ride{
			ID:               uuid.New(),
			DriverID:         tpl.DriverID,
			VehicleID:        tpl.VehicleID,
			CityFrom:         tpl.CityFrom,
			CityTo:           tpl.CityTo,
			AreaFrom:         tpl.AreaFrom,
			AreaTo:           tpl.AreaTo,
			StartDate:        departure,
			Duration:         tpl.Duration,
			Price:            tpl.Price,
			Seats:            tpl.Seats,
			AvailableSeats:   tpl.Seats,
			AutomaticConfirm: tpl.AutomaticConfirm,
			Description:      tpl.Description,
			TemplateID:       &tpl.ID,
		})
	}

	removed, err := s.repo.RegenerateRides(ctx, tpl, rides, s.now())
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	cancelledAt := s.now().UTC()
	for i := range removed {
		s.publish(ctx, eventbus.SubjectRideCancelled, eventbus.RideCancelledData{
			Ride:        eventbus.SnapshotRide(&removed[i]),
			CancelledAt: cancelledAt,
		})
	}
	for _, ride := range rides {
		s.publish(ctx, eventbus.SubjectRideCreated, eventbus.RideCreatedData{
			Ride:      eventbus.SnapshotRide(ride),
			CreatedAt: ride.CreatedAt,
		})
	}

	return &UpdateResult{Template: tpl, RidesCreated: len(rides)}, nil
}

// CancelTemplate cancels the template and every future occurrence. Rides
// that already departed keep their history.
func (s *Service) CancelTemplate(ctx context.Context, actor models.Actor, templateID uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, tracerName, "CancelTemplate")
	defer span.End()

	tracing.AddSpanAttributes(ctx,
		tracing.UserIDKey.String(actor.ID.String()),
		tracing.TemplateIDKey.String(templateID.String()),
	)

	tpl, err := s.repo.GetByID(ctx, templateID)
	if err != nil {
		return err
	}

	if tpl.DriverID != actor.ID {
		return common.NewPermissionError("only the template owner can cancel it")
	}
	if tpl.IsCancelled {
		return common.NewStateError("template is already cancelled")
	}

	cancelled, err := s.repo.CancelCascade(ctx, templateID, s.now())
	if err != nil {
		tracing.RecordError(ctx, err)
		return err
	}

	cancelledAt := s.now().UTC()
	for i := range cancelled {
		s.publish(ctx, eventbus.SubjectRideCancelled, eventbus.RideCancelledData{
			Ride:        eventbus.SnapshotRide(&cancelled[i]),
			CancelledAt: cancelledAt,
		})
	}

	return nil
}

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
