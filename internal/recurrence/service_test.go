package recurrence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trawell/rides-service/pkg/common"
	"github.com/trawell/rides-service/pkg/eventbus"
	"github.com/trawell/rides-service/pkg/models"
)

// mockRepository keeps templates and their generated rides in memory with
// the same cascade semantics as the SQL implementation.
type mockRepository struct {
	mu        sync.Mutex
	templates map[uuid.UUID]*models.RideTemplate
	rides     map[uuid.UUID]*models.Ride
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		templates: make(map[uuid.UUID]*models.RideTemplate),
		rides:     make(map[uuid.UUID]*models.Ride),
	}
}

func (m *mockRepository) CreateWithRides(_ context.Context, tpl *models.RideTemplate, rides []*models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tpl.CreatedAt = time.Now()
	tpl.UpdatedAt = tpl.CreatedAt
	cp := *tpl
	m.templates[tpl.ID] = &cp
	for _, ride := range rides {
		ride.CreatedAt = time.Now()
		rcp := *ride
		m.rides[ride.ID] = &rcp
	}
	return nil
}

func (m *mockRepository) GetByID(_ context.Context, id uuid.UUID) (*models.RideTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tpl, ok := m.templates[id]
	if !ok {
		return nil, common.NewNotFoundError("template not found")
	}
	cp := *tpl
	return &cp, nil
}

func (m *mockRepository) ListByDriver(_ context.Context, driverID uuid.UUID, _, _ int) ([]models.RideTemplate, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.RideTemplate
	for _, tpl := range m.templates {
		if tpl.DriverID == driverID {
			out = append(out, *tpl)
		}
	}
	return out, int64(len(out)), nil
}

func (m *mockRepository) UpdateCascade(_ context.Context, tpl *models.RideTemplate, now time.Time) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.templates[tpl.ID]
	if !ok || stored.IsCancelled {
		return nil, common.NewStateError("template is cancelled or no longer exists")
	}

	cp := *tpl
	cp.UpdatedAt = time.Now()
	m.templates[tpl.ID] = &cp

	var skipped []uuid.UUID
	for _, ride := range m.rides {
		if ride.TemplateID == nil || *ride.TemplateID != tpl.ID || ride.IsCancelled || !ride.StartDate.After(now) {
			continue
		}

		ride.VehicleID = tpl.VehicleID
		ride.AutomaticConfirm = tpl.AutomaticConfirm
		ride.Description = tpl.Description

		committed := ride.Seats - ride.AvailableSeats
		if committed > tpl.Seats {
			skipped = append(skipped, ride.ID)
			continue
		}
		ride.Seats = tpl.Seats
		ride.AvailableSeats = tpl.Seats - committed
	}

	return skipped, nil
}

func (m *mockRepository) RegenerateRides(_ context.Context, tpl *models.RideTemplate, rides []*models.Ride, now time.Time) ([]models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.templates[tpl.ID]
	if !ok || stored.IsCancelled {
		return nil, common.NewStateError("template is cancelled or no longer exists")
	}

	for _, ride := range m.rides {
		if ride.TemplateID != nil && *ride.TemplateID == tpl.ID && !ride.IsCancelled && ride.AvailableSeats < ride.Seats {
			return nil, common.NewEditError(common.CodeInvalidState,
				"template occurrences already have passengers, only seats, vehicle, description and automatic confirmation can change")
		}
	}

	cp := *tpl
	cp.UpdatedAt = time.Now()
	m.templates[tpl.ID] = &cp

	var removed []models.Ride
	for id, ride := range m.rides {
		if ride.TemplateID != nil && *ride.TemplateID == tpl.ID && !ride.IsCancelled && ride.StartDate.After(now) {
			removed = append(removed, *ride)
			delete(m.rides, id)
		}
	}

	for _, ride := range rides {
		ride.CreatedAt = time.Now()
		rcp := *ride
		m.rides[ride.ID] = &rcp
	}

	return removed, nil
}

func (m *mockRepository) CancelCascade(_ context.Context, templateID uuid.UUID, now time.Time) ([]models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tpl, ok := m.templates[templateID]
	if !ok || tpl.IsCancelled {
		return nil, common.NewStateError("template is already cancelled or does not exist")
	}
	tpl.IsCancelled = true

	var cancelled []models.Ride
	for _, ride := range m.rides {
		if ride.TemplateID != nil && *ride.TemplateID == templateID && !ride.IsCancelled && ride.StartDate.After(now) {
			ride.IsCancelled = true
			cancelled = append(cancelled, *ride)
		}
	}

	return cancelled, nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []*eventbus.Event
}

func (m *mockPublisher) Publish(_ context.Context, _ string, event *eventbus.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockPublisher) Close() {}

func (m *mockPublisher) countOf(eventType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func newTestService() (*Service, *mockRepository, *mockPublisher) {
	repo := newMockRepository()
	pub := &mockPublisher{}
	return NewService(repo, pub), repo, pub
}

func validTemplateRequest() *models.CreateTemplateRequest {
	start := time.Now().Add(48 * time.Hour).Truncate(time.Hour)
	return &models.CreateTemplateRequest{
		CityFrom:      "Warsaw",
		CityTo:        "Krakow",
		StartDate:     start,
		EndDate:       start.AddDate(0, 0, 4),
		FrequencyType: string(models.FrequencyDaily),
		Frequence:     1,
		Duration:      models.Duration{Hours: 3},
		Price:         25,
		Seats:         4,
	}
}

func TestCreateTemplate(t *testing.T) {
	svc, repo, pub := newTestService()
	actor := models.Actor{ID: uuid.New(), AccountType: models.AccountPrivate}

	tpl, rides, err := svc.CreateTemplate(context.Background(), actor, validTemplateRequest())

	require.NoError(t, err)
	assert.Len(t, rides, 5, "daily over five days yields five rides")
	assert.Equal(t, 5, pub.countOf(eventbus.SubjectRideCreated))

	for _, ride := range rides {
		assert.Equal(t, tpl.ID, *ride.TemplateID)
		assert.Equal(t, 4, ride.AvailableSeats)
	}
	assert.Len(t, repo.rides, 5)
}

func TestCreateTemplate_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	private := models.Actor{ID: uuid.New(), AccountType: models.AccountPrivate}

	t.Run("past start", func(t *testing.T) {
		req := validTemplateRequest()
		req.StartDate = time.Now().Add(-time.Hour)

		_, _, err := svc.CreateTemplate(context.Background(), private, req)

		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("private auto confirm", func(t *testing.T) {
		req := validTemplateRequest()
		req.AutomaticConfirm = true

		_, _, err := svc.CreateTemplate(context.Background(), private, req)

		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("unknown frequency", func(t *testing.T) {
		req := validTemplateRequest()
		req.FrequencyType = "fortnightly"

		_, _, err := svc.CreateTemplate(context.Background(), private, req)

		assert.ErrorIs(t, err, common.ErrValidation)
	})
}

func TestUpdateTemplate_Cascades(t *testing.T) {
	svc, repo, _ := newTestService()
	actor := models.Actor{ID: uuid.New(), AccountType: models.AccountPrivate}

	tpl, rides, err := svc.CreateTemplate(context.Background(), actor, validTemplateRequest())
	require.NoError(t, err)

	newSeats := 6
	description := "bigger car"
	result, err := svc.UpdateTemplate(context.Background(), actor, tpl.ID, &models.UpdateTemplateRequest{
		Seats:       &newSeats,
		Description: &description,
	})

	require.NoError(t, err)
	assert.Empty(t, result.SkippedRideIDs)
	assert.Equal(t, 6, result.Template.Seats)

	for _, ride := range rides {
		stored := repo.rides[ride.ID]
		assert.Equal(t, 6, stored.Seats)
		assert.Equal(t, 6, stored.AvailableSeats)
		assert.Equal(t, "bigger car", stored.Description)
	}
}

func TestUpdateTemplate_SeatFloorSkipsLoadedRides(t *testing.T) {
	svc, repo, _ := newTestService()
	actor := models.Actor{ID: uuid.New(), AccountType: models.AccountPrivate}

	tpl, rides, err := svc.CreateTemplate(context.Background(), actor, validTemplateRequest())
	require.NoError(t, err)

	// One occurrence already has three of its four seats committed.
	loaded := repo.rides[rides[0].ID]
	loaded.AvailableSeats = 1

	newSeats := 2
	result, err := svc.UpdateTemplate(context.Background(), actor, tpl.ID, &models.UpdateTemplateRequest{Seats: &newSeats})

	require.NoError(t, err)
	require.Len(t, result.SkippedRideIDs, 1)
	assert.Equal(t, rides[0].ID, result.SkippedRideIDs[0])

	assert.Equal(t, 4, repo.rides[rides[0].ID].Seats, "loaded ride keeps its capacity")
	assert.Equal(t, 2, repo.rides[rides[1].ID].Seats)
}

func TestUpdateTemplate_RegeneratesUnbookedSchedule(t *testing.T) {
	svc, repo, pub := newTestService()
	actor := models.Actor{ID: uuid.New(), AccountType: models.AccountPrivate}

	tpl, rides, err := svc.CreateTemplate(context.Background(), actor, validTemplateRequest())
	require.NoError(t, err)
	require.Len(t, rides, 5)

	// Shift the whole schedule a week out and stretch it to a week of rides.
	newStart := tpl.StartDate.AddDate(0, 0, 7)
	newEnd := newStart.AddDate(0, 0, 6)
	result, err := svc.UpdateTemplate(context.Background(), actor, tpl.ID, &models.UpdateTemplateRequest{
		StartDate: &newStart,
		EndDate:   &newEnd,
	})

	require.NoError(t, err)
	assert.Equal(t, 7, result.RidesCreated)
	assert.Equal(t, newStart, result.Template.StartDate)

	for _, ride := range rides {
		_, still := repo.rides[ride.ID]
		assert.False(t, still, "old occurrences must be discarded")
	}
	assert.Len(t, repo.rides, 7)
	for _, ride := range repo.rides {
		assert.False(t, ride.StartDate.Before(newStart))
	}

	assert.Equal(t, 5, pub.countOf(eventbus.SubjectRideCancelled))
	assert.Equal(t, 5+7, pub.countOf(eventbus.SubjectRideCreated))
}

func TestUpdateTemplate_RegenerationBlockedByPassengers(t *testing.T) {
	svc, repo, _ := newTestService()
	actor := models.Actor{ID: uuid.New(), AccountType: models.AccountPrivate}

	tpl, rides, err := svc.CreateTemplate(context.Background(), actor, validTemplateRequest())
	require.NoError(t, err)

	// One occurrence already carries a passenger.
	repo.rides[rides[0].ID].AvailableSeats = 3

	newStart := tpl.StartDate.AddDate(0, 0, 7)
	_, err = svc.UpdateTemplate(context.Background(), actor, tpl.ID, &models.UpdateTemplateRequest{
		StartDate: &newStart,
	})

	require.ErrorIs(t, err, common.ErrEdit)
	assert.Len(t, repo.rides, len(rides), "blocked edit must not discard anything")
}

func TestUpdateTemplate_RegenerationValidation(t *testing.T) {
	svc, _, _ := newTestService()
	actor := models.Actor{ID: uuid.New(), AccountType: models.AccountPrivate}

	tpl, _, err := svc.CreateTemplate(context.Background(), actor, validTemplateRequest())
	require.NoError(t, err)

	t.Run("past start", func(t *testing.T) {
		past := time.Now().Add(-time.Hour)
		_, err := svc.UpdateTemplate(context.Background(), actor, tpl.ID, &models.UpdateTemplateRequest{StartDate: &past})

		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("end before start", func(t *testing.T) {
		end := tpl.StartDate.Add(-time.Hour)
		_, err := svc.UpdateTemplate(context.Background(), actor, tpl.ID, &models.UpdateTemplateRequest{EndDate: &end})

		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("unknown frequency", func(t *testing.T) {
		frequency := "fortnightly"
		_, err := svc.UpdateTemplate(context.Background(), actor, tpl.ID, &models.UpdateTemplateRequest{FrequencyType: &frequency})

		assert.ErrorIs(t, err, common.ErrValidation)
	})
}

func TestUpdateTemplate_Guards(t *testing.T) {
	svc, _, _ := newTestService()
	owner := models.Actor{ID: uuid.New(), AccountType: models.AccountPrivate}

	tpl, _, err := svc.CreateTemplate(context.Background(), owner, validTemplateRequest())
	require.NoError(t, err)

	t.Run("not the owner", func(t *testing.T) {
		seats := 5
		_, err := svc.UpdateTemplate(context.Background(), models.Actor{ID: uuid.New()}, tpl.ID, &models.UpdateTemplateRequest{Seats: &seats})

		assert.ErrorIs(t, err, common.ErrPermission)
	})

	t.Run("zero seats", func(t *testing.T) {
		seats := 0
		_, err := svc.UpdateTemplate(context.Background(), owner, tpl.ID, &models.UpdateTemplateRequest{Seats: &seats})

		assert.ErrorIs(t, err, common.ErrCapacity)
	})

	t.Run("private auto confirm", func(t *testing.T) {
		confirm := true
		_, err := svc.UpdateTemplate(context.Background(), owner, tpl.ID, &models.UpdateTemplateRequest{AutomaticConfirm: &confirm})

		assert.ErrorIs(t, err, common.ErrValidation)
	})
}

func TestCancelTemplate_Cascades(t *testing.T) {
	svc, repo, pub := newTestService()
	actor := models.Actor{ID: uuid.New(), AccountType: models.AccountPrivate}

	tpl, rides, err := svc.CreateTemplate(context.Background(), actor, validTemplateRequest())
	require.NoError(t, err)

	require.NoError(t, svc.CancelTemplate(context.Background(), actor, tpl.ID))

	for _, ride := range rides {
		assert.True(t, repo.rides[ride.ID].IsCancelled)
	}
	assert.Equal(t, len(rides), pub.countOf(eventbus.SubjectRideCancelled))

	// Cancellation is terminal.
	err = svc.CancelTemplate(context.Background(), actor, tpl.ID)
	assert.ErrorIs(t, err, common.ErrState)
}

func TestCancelTemplate_NotOwner(t *testing.T) {
	svc, _, _ := newTestService()
	owner := models.Actor{ID: uuid.New(), AccountType: models.AccountPrivate}

	tpl, _, err := svc.CreateTemplate(context.Background(), owner, validTemplateRequest())
	require.NoError(t, err)

	err = svc.CancelTemplate(context.Background(), models.Actor{ID: uuid.New()}, tpl.ID)

	assert.ErrorIs(t, err, common.ErrPermission)
}
