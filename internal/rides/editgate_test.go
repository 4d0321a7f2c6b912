package rides

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trawell/rides-service/pkg/common"
	"github.com/trawell/rides-service/pkg/models"
)

func testRide(driverID uuid.UUID, seats, available int) *models.Ride {
	return &models.Ride{
		ID:             uuid.New(),
		DriverID:       driverID,
		CityFrom:       "Warsaw",
		CityTo:         "Krakow",
		StartDate:      time.Now().Add(48 * time.Hour),
		Price:          25,
		Seats:          seats,
		AvailableSeats: available,
	}
}

func strPtr(s string) *string        { return &s }
func intPtr(i int) *int              { return &i }
func boolPtr(b bool) *bool           { return &b }
func floatPtr(f float64) *float64    { return &f }
func timePtr(t time.Time) *time.Time { return &t }

func TestValidateEdit_FullEditWithoutPassengers(t *testing.T) {
	driverID := uuid.New()
	ride := testRide(driverID, 4, 4)
	actor := models.Actor{ID: driverID, AccountType: models.AccountPrivate}

	newStart := time.Now().Add(72 * time.Hour)
	req := &models.UpdateRideRequest{
		CityFrom:  strPtr("Gdansk"),
		Price:     floatPtr(30),
		StartDate: timePtr(newStart),
	}

	err := ValidateEdit(ride, actor, req, time.Now())

	require.NoError(t, err)
	assert.Equal(t, "Gdansk", ride.CityFrom)
	assert.Equal(t, 30.0, ride.Price)
	assert.True(t, ride.StartDate.Equal(newStart))
}

func TestValidateEdit_FullEditFrozenWithPassengers(t *testing.T) {
	driverID := uuid.New()
	actor := models.Actor{ID: driverID, AccountType: models.AccountPrivate}

	frozen := []struct {
		name string
		req  *models.UpdateRideRequest
	}{
		{name: "route", req: &models.UpdateRideRequest{CityTo: strPtr("Berlin")}},
		{name: "schedule", req: &models.UpdateRideRequest{StartDate: timePtr(time.Now().Add(96 * time.Hour))}},
		{name: "price", req: &models.UpdateRideRequest{Price: floatPtr(99)}},
		{name: "duration", req: &models.UpdateRideRequest{Duration: &models.Duration{Hours: 5}}},
	}

	for _, tt := range frozen {
		t.Run(tt.name, func(t *testing.T) {
			ride := testRide(driverID, 4, 2) // two seats committed

			err := ValidateEdit(ride, actor, tt.req, time.Now())

			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrEdit)
		})
	}
}

func TestValidateEdit_NarrowFieldsStayMutable(t *testing.T) {
	driverID := uuid.New()
	ride := testRide(driverID, 4, 2)
	actor := models.Actor{ID: driverID, AccountType: models.AccountPrivate}
	vehicleID := uuid.New()

	req := &models.UpdateRideRequest{
		VehicleID:   &vehicleID,
		Description: strPtr("new car, more legroom"),
	}

	err := ValidateEdit(ride, actor, req, time.Now())

	require.NoError(t, err)
	assert.Equal(t, &vehicleID, ride.VehicleID)
	assert.Equal(t, "new car, more legroom", ride.Description)
}

func TestValidateEdit_SeatFloor(t *testing.T) {
	driverID := uuid.New()
	actor := models.Actor{ID: driverID, AccountType: models.AccountPrivate}

	tests := []struct {
		name          string
		seats         int
		available     int
		newSeats      int
		wantErr       error
		wantErrCode   string
		wantAvailable int
	}{
		{name: "shrink below reserved rejected", seats: 4, available: 1, newSeats: 2, wantErr: common.ErrEdit, wantErrCode: common.CodeSeatsBelowReserved},
		{name: "shrink to exactly reserved allowed", seats: 4, available: 1, newSeats: 3, wantAvailable: 0},
		{name: "grow capacity", seats: 4, available: 1, newSeats: 6, wantAvailable: 3},
		{name: "zero seats rejected", seats: 4, available: 4, newSeats: 0, wantErr: common.ErrCapacity, wantErrCode: common.CodeInvalidSeatAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ride := testRide(driverID, tt.seats, tt.available)

			err := ValidateEdit(ride, actor, &models.UpdateRideRequest{Seats: intPtr(tt.newSeats)}, time.Now())

			if tt.wantErrCode != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				var appErr *common.AppError
				require.True(t, errors.As(err, &appErr))
				assert.Equal(t, tt.wantErrCode, appErr.ErrorCode)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.newSeats, ride.Seats)
			assert.Equal(t, tt.wantAvailable, ride.AvailableSeats)
		})
	}
}

func TestValidateEdit_Permissions(t *testing.T) {
	driverID := uuid.New()
	stranger := models.Actor{ID: uuid.New(), AccountType: models.AccountPrivate}
	ride := testRide(driverID, 4, 4)

	err := ValidateEdit(ride, stranger, &models.UpdateRideRequest{Price: floatPtr(10)}, time.Now())

	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrPermission)
}

func TestValidateEdit_CancelledAndStartedRides(t *testing.T) {
	driverID := uuid.New()
	actor := models.Actor{ID: driverID, AccountType: models.AccountPrivate}

	t.Run("cancelled", func(t *testing.T) {
		ride := testRide(driverID, 4, 4)
		ride.IsCancelled = true

		err := ValidateEdit(ride, actor, &models.UpdateRideRequest{Price: floatPtr(10)}, time.Now())

		assert.ErrorIs(t, err, common.ErrState)
	})

	t.Run("already departed", func(t *testing.T) {
		ride := testRide(driverID, 4, 4)
		ride.StartDate = time.Now().Add(-time.Hour)

		err := ValidateEdit(ride, actor, &models.UpdateRideRequest{Price: floatPtr(10)}, time.Now())

		assert.ErrorIs(t, err, common.ErrState)
	})
}

func TestValidateEdit_PrivateDriverAutomaticConfirm(t *testing.T) {
	driverID := uuid.New()
	ride := testRide(driverID, 4, 4)

	t.Run("private rejected", func(t *testing.T) {
		actor := models.Actor{ID: driverID, AccountType: models.AccountPrivate}

		err := ValidateEdit(ride, actor, &models.UpdateRideRequest{AutomaticConfirm: boolPtr(true)}, time.Now())

		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("company allowed", func(t *testing.T) {
		actor := models.Actor{ID: driverID, AccountType: models.AccountCompany}

		err := ValidateEdit(ride, actor, &models.UpdateRideRequest{AutomaticConfirm: boolPtr(true)}, time.Now())

		require.NoError(t, err)
		assert.True(t, ride.AutomaticConfirm)
	})
}
