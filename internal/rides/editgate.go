package rides

import (
	"time"

	"github.com/trawell/rides-service/pkg/common"
	"github.com/trawell/rides-service/pkg/models"
)

// ValidateEdit checks an edit request against the ride's current state and
// applies the allowed changes to the ride in place. Rides that already carry
// active participations are frozen except for seats, vehicle, description and
// automatic confirmation; any other field in the patch is rejected, nothing
// is silently dropped.
func ValidateEdit(ride *models.Ride, actor models.Actor, req *models.UpdateRideRequest, now time.Time) error {
	if ride.DriverID != actor.ID {
		return common.NewPermissionError("only the ride owner can edit it")
	}
	if ride.IsCancelled {
		return common.NewStateError("cancelled rides cannot be edited")
	}
	if ride.HasStarted(now) {
		return common.NewStateError("rides that already departed cannot be edited")
	}

	committed := ride.CommittedSeats()

	if committed > 0 && requestsFullEdit(req) {
		return common.NewEditError(common.CodeInvalidState,
			"ride already has passengers, only seats, vehicle, description and automatic confirmation can change")
	}

	if req.Seats != nil {
		if *req.Seats < 1 {
			return common.NewCapacityError(common.CodeInvalidSeatAmount, "seats must be at least 1")
		}
		// Equality is fine: shrinking to exactly the committed count leaves
		// zero seats available but strands nobody.
		if *req.Seats < committed {
			return common.NewEditError(common.CodeSeatsBelowReserved,
				"seats cannot drop below the number already reserved")
		}
	}

	if req.AutomaticConfirm != nil && *req.AutomaticConfirm && actor.AccountType.IsPrivate() {
		return common.NewValidationError("private drivers cannot enable automatic confirmation")
	}

	applyPatch(ride, req, committed)
	return nil
}

// requestsFullEdit reports whether the patch touches any of the frozen
// fields: route, schedule or price.
func requestsFullEdit(req *models.UpdateRideRequest) bool {
	return req.CityFrom != nil ||
		req.CityTo != nil ||
		req.AreaFrom != nil ||
		req.AreaTo != nil ||
		req.StartDate != nil ||
		req.Duration != nil ||
		req.Price != nil
}

func applyPatch(ride *models.Ride, req *models.UpdateRideRequest, committed int) {
	if req.CityFrom != nil {
		ride.CityFrom = *req.CityFrom
	}
	if req.CityTo != nil {
		ride.CityTo = *req.CityTo
	}
	if req.AreaFrom != nil {
		ride.AreaFrom = *req.AreaFrom
	}
	if req.AreaTo != nil {
		ride.AreaTo = *req.AreaTo
	}
	if req.StartDate != nil {
		ride.StartDate = *req.StartDate
	}
	if req.Duration != nil {
		ride.Duration = *req.Duration
	}
	if req.Price != nil {
		ride.Price = *req.Price
	}
	if req.VehicleID != nil {
		ride.VehicleID = req.VehicleID
	}
	if req.AutomaticConfirm != nil {
		ride.AutomaticConfirm = *req.AutomaticConfirm
	}
	if req.Description != nil {
		ride.Description = *req.Description
	}
	if req.Seats != nil {
		// Capacity changes preserve the committed count; the free pool is
		// whatever the new capacity leaves over.
		ride.Seats = *req.Seats
		ride.AvailableSeats = *req.Seats - committed
	}
}
