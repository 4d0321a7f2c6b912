package rides

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

// mockRepository is an in-memory RepositoryInterface with version semantics
// matching the SQL implementation.
type mockRepository struct {
	mu    sync.Mutex
	rides map[uuid.UUID]*models.Ride
}

func newMockRepository() *mockRepository {
	return &mockRepository{rides: make(map[uuid.UUID]*models.Ride)}
}

func (m *mockRepository) Create(_ context.Context, ride *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride.CreatedAt = time.Now()
	ride.UpdatedAt = ride.CreatedAt
	cp := *ride
	m.rides[ride.ID] = &cp
	return nil
}

func (m *mockRepository) GetByID(_ context.Context, id uuid.UUID) (*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil, common.NewNotFoundError("ride not found")
	}
	cp := *ride
	return &cp, nil
}

func (m *mockRepository) List(_ context.Context, _ *models.RideFilter, _, _ int) ([]models.Ride, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Ride
	for _, r := range m.rides {
		out = append(out, *r)
	}
	return out, int64(len(out)), nil
}

func (m *mockRepository) ListByDriver(_ context.Context, driverID uuid.UUID, _, _ int) ([]models.Ride, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Ride
	for _, r := range m.rides {
		if r.DriverID == driverID {
			out = append(out, *r)
		}
	}
	return out, int64(len(out)), nil
}

func (m *mockRepository) UpdateVersioned(_ context.Context, ride *models.Ride) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.rides[ride.ID]
	if !ok || current.IsCancelled || current.Version != ride.Version {
		return false, nil
	}
	cp := *ride
	cp.Version++
	cp.UpdatedAt = time.Now()
	m.rides[ride.ID] = &cp
	return true, nil
}

func (m *mockRepository) Cancel(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[id]
	if !ok || ride.IsCancelled {
		return false, nil
	}
	ride.IsCancelled = true
	ride.Version++
	return true, nil
}

// mockPublisher records published events.
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

func (m *mockPublisher) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestService() (*Service, *mockRepository, *mockPublisher) {
	repo := newMockRepository()
	pub := &mockPublisher{}
	return NewService(repo, pub), repo, pub
}

func validCreateRequest() *models.CreateRideRequest {
	return &models.CreateRideRequest{
		CityFrom:  "Warsaw",
		CityTo:    "Krakow",
		StartDate: time.Now().Add(48 * time.Hour),
		Duration:  models.Duration{Hours: 3, Minutes: 30},
		Price:     25,
		Seats:     4,
	}
}

func TestService_CreateRide(t *testing.T) {
	svc, _, pub := newTestService()
	actor := models.Actor{ID: uuid.New(), AccountType: models.AccountPrivate}

	ride, err := svc.CreateRide(context.Background(), actor, validCreateRequest())

	require.NoError(t, err)
	assert.Equal(t, actor.ID, ride.DriverID)
	assert.Equal(t, 4, ride.Seats)
	assert.Equal(t, 4, ride.AvailableSeats, "a fresh ride starts fully available")
	assert.False(t, ride.AutomaticConfirm)
	assert.Equal(t, []string{eventbus.SubjectRideCreated}, pub.types())
}

func TestService_CreateRideValidation(t *testing.T) {
	svc, _, _ := newTestService()
	private := models.Actor{ID: uuid.New(), AccountType: models.AccountPrivate}

	t.Run("past start date", func(t *testing.T) {
		req := validCreateRequest()
		req.StartDate = time.Now().Add(-time.Hour)

		_, err := svc.CreateRide(context.Background(), private, req)

		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("private driver cannot auto confirm", func(t *testing.T) {
		req := validCreateRequest()
		req.AutomaticConfirm = true

		_, err := svc.CreateRide(context.Background(), private, req)

		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("company driver can auto confirm", func(t *testing.T) {
		req := validCreateRequest()
		req.AutomaticConfirm = true
		company := models.Actor{ID: uuid.New(), AccountType: models.AccountCompany}

		ride, err := svc.CreateRide(context.Background(), company, req)

		require.NoError(t, err)
		assert.True(t, ride.AutomaticConfirm)
	})

	t.Run("invalid duration", func(t *testing.T) {
		req := validCreateRequest()
		req.Duration = models.Duration{Hours: 1, Minutes: 75}

		_, err := svc.CreateRide(context.Background(), private, req)

		assert.ErrorIs(t, err, common.ErrValidation)
	})
}

func TestService_UpdateRide(t *testing.T) {
	svc, _, pub := newTestService()
	actor := models.Actor{ID: uuid.New(), AccountType: models.AccountPrivate}

	ride, err := svc.CreateRide(context.Background(), actor, validCreateRequest())
	require.NoError(t, err)

	newPrice := 30.0
	updated, err := svc.UpdateRide(context.Background(), actor, ride.ID, &models.UpdateRideRequest{Price: &newPrice})

	require.NoError(t, err)
	assert.Equal(t, 30.0, updated.Price)
	assert.Contains(t, pub.types(), eventbus.SubjectRideUpdated)
}

// conflictingRepository rejects the first N versioned writes, simulating a
// concurrent writer landing between read and update.
type conflictingRepository struct {
	*mockRepository
	conflicts int
}

func (c *conflictingRepository) UpdateVersioned(ctx context.Context, ride *models.Ride) (bool, error) {
	if c.conflicts > 0 {
		c.conflicts--
		return false, nil
	}
	return c.mockRepository.UpdateVersioned(ctx, ride)
}

func TestService_UpdateRideRetriesOnVersionConflict(t *testing.T) {
	repo := &conflictingRepository{mockRepository: newMockRepository(), conflicts: 1}
	svc := NewService(repo, &mockPublisher{})
	actor := models.Actor{ID: uuid.New(), AccountType: models.AccountPrivate}

	ride, err := svc.CreateRide(context.Background(), actor, validCreateRequest())
	require.NoError(t, err)

	newPrice := 42.0
	updated, err := svc.UpdateRide(context.Background(), actor, ride.ID, &models.UpdateRideRequest{Price: &newPrice})

	require.NoError(t, err)
	assert.Equal(t, 42.0, updated.Price)
}

func TestService_UpdateRideGivesUpAfterRepeatedConflicts(t *testing.T) {
	repo := &conflictingRepository{mockRepository: newMockRepository(), conflicts: maxEditAttempts}
	svc := NewService(repo, &mockPublisher{})
	actor := models.Actor{ID: uuid.New(), AccountType: models.AccountPrivate}

	ride, err := svc.CreateRide(context.Background(), actor, validCreateRequest())
	require.NoError(t, err)

	newPrice := 42.0
	_, err = svc.UpdateRide(context.Background(), actor, ride.ID, &models.UpdateRideRequest{Price: &newPrice})

	assert.ErrorIs(t, err, common.ErrState)
}

func TestService_UpdateRideNotOwner(t *testing.T) {
	svc, _, _ := newTestService()
	owner := models.Actor{ID: uuid.New(), AccountType: models.AccountPrivate}
	stranger := models.Actor{ID: uuid.New(), AccountType: models.AccountPrivate}

	ride, err := svc.CreateRide(context.Background(), owner, validCreateRequest())
	require.NoError(t, err)

	price := 1.0
	_, err = svc.UpdateRide(context.Background(), stranger, ride.ID, &models.UpdateRideRequest{Price: &price})

	assert.ErrorIs(t, err, common.ErrPermission)
}

func TestService_CancelRide(t *testing.T) {
	svc, _, pub := newTestService()
	actor := models.Actor{ID: uuid.New(), AccountType: models.AccountPrivate}

	ride, err := svc.CreateRide(context.Background(), actor, validCreateRequest())
	require.NoError(t, err)

	require.NoError(t, svc.CancelRide(context.Background(), actor, ride.ID))
	assert.Contains(t, pub.types(), eventbus.SubjectRideCancelled)

	// Cancellation is terminal.
	err = svc.CancelRide(context.Background(), actor, ride.ID)
	assert.ErrorIs(t, err, common.ErrState)
}

func TestService_CancelRideNotOwner(t *testing.T) {
	svc, _, _ := newTestService()
	owner := models.Actor{ID: uuid.New(), AccountType: models.AccountPrivate}

	ride, err := svc.CreateRide(context.Background(), owner, validCreateRequest())
	require.NoError(t, err)

	err = svc.CancelRide(context.Background(), models.Actor{ID: uuid.New()}, ride.ID)

	assert.ErrorIs(t, err, common.ErrPermission)
}

func TestService_GetRideNotFound(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.GetRide(context.Background(), uuid.New())

	assert.ErrorIs(t, err, common.ErrNotFound)
}
