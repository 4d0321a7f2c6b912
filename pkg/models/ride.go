package models

import (
	"time"

	"github.com/google/uuid"
)

// Ride represents one concrete, dated ride a passenger can join. It is either
// created directly by a driver or generated from a RideTemplate, in which case
// TemplateID points back at the template.
type Ride struct {
	ID               uuid.UUID    `json:"id" db:"id"`
	DriverID         uuid.UUID    `json:"driver_id" db:"driver_id"`
	VehicleID        *uuid.UUID   `json:"vehicle_id,omitempty" db:"vehicle_id"`
	CityFrom         string       `json:"city_from" db:"city_from"`
	CityTo           string       `json:"city_to" db:"city_to"`
	AreaFrom         string       `json:"area_from" db:"area_from"`
	AreaTo           string       `json:"area_to" db:"area_to"`
	StartDate        time.Time    `json:"start_date" db:"start_date"`
	Duration         Duration     `json:"duration"`
	Price            float64      `json:"price" db:"price"`
	Seats            int          `json:"seats" db:"seats"`
	AvailableSeats   int          `json:"available_seats" db:"available_seats"`
	AutomaticConfirm bool         `json:"automatic_confirm" db:"automatic_confirm"`
	Description      string       `json:"description" db:"description"`
	IsCancelled      bool         `json:"is_cancelled" db:"is_cancelled"`
	TemplateID       *uuid.UUID   `json:"template_id,omitempty" db:"template_id"`
	Coordinates      []Coordinate `json:"coordinates,omitempty"`
	// Version increments on every seat-affecting write. All conditional
	// updates against the ride row are guarded by it.
	Version   int64     `json:"-" db:"version"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CommittedSeats returns the number of seats currently held by active
// participations, derived from the denormalized counter.
func (r *Ride) CommittedSeats() int {
	return r.Seats - r.AvailableSeats
}

// HasStarted reports whether the ride's departure time has passed.
func (r *Ride) HasStarted(now time.Time) bool {
	return !now.Before(r.StartDate)
}

// Coordinate is a single route point owned by a ride.
type Coordinate struct {
	Lat        float64 `json:"lat" db:"lat"`
	Lng        float64 `json:"lng" db:"lng"`
	SequenceNo int     `json:"sequence_no" db:"sequence_no"`
}

// CreateRideRequest is the payload for creating a single ride.
type CreateRideRequest struct {
	VehicleID        *uuid.UUID   `json:"vehicle_id,omitempty"`
	CityFrom         string       `json:"city_from" binding:"required"`
	CityTo           string       `json:"city_to" binding:"required"`
	AreaFrom         string       `json:"area_from,omitempty"`
	AreaTo           string       `json:"area_to,omitempty"`
	StartDate        time.Time    `json:"start_date" binding:"required"`
	Duration         Duration     `json:"duration"`
	Price            float64      `json:"price" binding:"min=0"`
	Seats            int          `json:"seats" binding:"required,min=1"`
	AutomaticConfirm bool         `json:"automatic_confirm,omitempty"`
	Description      string       `json:"description,omitempty"`
	Coordinates      []Coordinate `json:"coordinates,omitempty"`
}

// UpdateRideRequest is a partial patch against a ride. Nil fields are left
// untouched. Which fields may actually change depends on the edit gate: once
// a ride has active participations only seats, vehicle, description and (for
// company accounts) automatic_confirm are mutable.
type UpdateRideRequest struct {
	CityFrom         *string    `json:"city_from,omitempty"`
	CityTo           *string    `json:"city_to,omitempty"`
	AreaFrom         *string    `json:"area_from,omitempty"`
	AreaTo           *string    `json:"area_to,omitempty"`
	StartDate        *time.Time `json:"start_date,omitempty"`
	Duration         *Duration  `json:"duration,omitempty"`
	Price            *float64   `json:"price,omitempty"`
	Seats            *int       `json:"seats,omitempty"`
	VehicleID        *uuid.UUID `json:"vehicle_id,omitempty"`
	AutomaticConfirm *bool      `json:"automatic_confirm,omitempty"`
	Description      *string    `json:"description,omitempty"`
}

// RideFilter narrows ride listings.
type RideFilter struct {
	CityFrom      string     `form:"city_from"`
	CityTo        string     `form:"city_to"`
	MinPrice      *float64   `form:"min_price"`
	MaxPrice      *float64   `form:"max_price"`
	StartAfter    *time.Time `form:"start_after"`
	OnlyAvailable bool       `form:"only_available"`
	OrderBy       string     `form:"order_by"`
}
