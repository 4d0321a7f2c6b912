package models

import (
	"time"

	"github.com/google/uuid"
)

// Decision is the lifecycle state of a seat request.
type Decision string

const (
	DecisionPending   Decision = "pending"
	DecisionAccepted  Decision = "accepted"
	DecisionDeclined  Decision = "declined"
	DecisionCancelled Decision = "cancelled"
)

// Valid reports whether the decision is one of the known states.
func (d Decision) Valid() bool {
	switch d {
	case DecisionPending, DecisionAccepted, DecisionDeclined, DecisionCancelled:
		return true
	}
	return false
}

// Active reports whether the participation currently holds seats. Pending
// requests reserve seats the moment they are created, so both pending and
// accepted count against capacity.
func (d Decision) Active() bool {
	return d == DecisionPending || d == DecisionAccepted
}

// Terminal reports whether the state admits no further transitions.
func (d Decision) Terminal() bool {
	return d == DecisionCancelled
}

// Participation is a passenger's seat request against a ride. It is never
// deleted; cancellation is a terminal decision.
type Participation struct {
	ID            uuid.UUID `json:"id" db:"id"`
	RideID        uuid.UUID `json:"ride_id" db:"ride_id"`
	UserID        uuid.UUID `json:"user_id" db:"user_id"`
	ReservedSeats int       `json:"reserved_seats" db:"reserved_seats"`
	Decision      Decision  `json:"decision" db:"decision"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// JoinRequest is the payload for requesting seats on a ride.
type JoinRequest struct {
	RideID uuid.UUID `json:"ride_id" binding:"required"`
	Seats  int       `json:"seats" binding:"required,min=1"`
}

// DecisionRequest is the payload for a driver deciding a pending request.
type DecisionRequest struct {
	Decision Decision `json:"decision" binding:"required,decision"`
}

// ParticipationFilter narrows request listings.
type ParticipationFilter struct {
	Decision string `form:"decision"`
}
