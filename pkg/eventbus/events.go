package eventbus

import (
	"time"

	"github.com/google/uuid"
	"github.com/trawell/rides-service/pkg/models"
)

// RideSnapshot is the ride state carried on every ride event. Consumers
// (notifications, ride history, reviews) never read our database; the
// snapshot is all they get.
type RideSnapshot struct {
	RideID         uuid.UUID       `json:"ride_id"`
	DriverID       uuid.UUID       `json:"driver_id"`
	TemplateID     *uuid.UUID      `json:"template_id,omitempty"`
	CityFrom       string          `json:"city_from"`
	CityTo         string          `json:"city_to"`
	AreaFrom       string          `json:"area_from,omitempty"`
	AreaTo         string          `json:"area_to,omitempty"`
	StartDate      time.Time       `json:"start_date"`
	Duration       models.Duration `json:"duration"`
	Price          float64         `json:"price"`
	Seats          int             `json:"seats"`
	AvailableSeats int             `json:"available_seats"`
	IsCancelled    bool            `json:"is_cancelled"`
}

// SnapshotRide builds a snapshot from a ride.
func SnapshotRide(r *models.Ride) RideSnapshot {
	return RideSnapshot{
		RideID:         r.ID,
		DriverID:       r.DriverID,
		TemplateID:     r.TemplateID,
		CityFrom:       r.CityFrom,
		CityTo:         r.CityTo,
		AreaFrom:       r.AreaFrom,
		AreaTo:         r.AreaTo,
		StartDate:      r.StartDate,
		Duration:       r.Duration,
		Price:          r.Price,
		Seats:          r.Seats,
		AvailableSeats: r.AvailableSeats,
		IsCancelled:    r.IsCancelled,
	}
}

// RideCreatedData is emitted for every new ride instance, whether created
// directly or generated from a template.
type RideCreatedData struct {
	Ride      RideSnapshot `json:"ride"`
	CreatedAt time.Time    `json:"created_at"`
}

// RideUpdatedData is emitted after a successful ride edit.
type RideUpdatedData struct {
	Ride      RideSnapshot `json:"ride"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// RideCancelledData is emitted when a driver cancels a ride or a whole
// template.
type RideCancelledData struct {
	Ride        RideSnapshot `json:"ride"`
	CancelledAt time.Time    `json:"cancelled_at"`
}

// ParticipationChangedData is emitted on every participation transition:
// create, driver decision, passenger cancel.
type ParticipationChangedData struct {
	ParticipationID uuid.UUID       `json:"participation_id"`
	UserID          uuid.UUID       `json:"user_id"`
	ReservedSeats   int             `json:"reserved_seats"`
	Decision        models.Decision `json:"decision"`
	Ride            RideSnapshot    `json:"ride"`
	ChangedAt       time.Time       `json:"changed_at"`
}
