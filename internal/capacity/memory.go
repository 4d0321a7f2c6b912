package capacity

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type memoryRide struct {
	mu        sync.Mutex
	seats     int
	reserved  int
	cancelled bool
}

// MemoryLedger is an in-memory Ledger with a mutex per ride. It mirrors the
// semantics of PostgresLedger and backs tests that exercise concurrent
// reservations without a database.
type MemoryLedger struct {
	mu    sync.RWMutex
	rides map[uuid.UUID]*memoryRide
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{rides: make(map[uuid.UUID]*memoryRide)}
}

// AddRide registers a ride with the given seat capacity.
func (l *MemoryLedger) AddRide(rideID uuid.UUID, seats int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rides[rideID] = &memoryRide{seats: seats}
}

// CancelRide marks a ride cancelled; further reservations fail.
func (l *MemoryLedger) CancelRide(rideID uuid.UUID) {
	l.mu.RLock()
	ride, ok := l.rides[rideID]
	l.mu.RUnlock()
	if !ok {
		return
	}

	ride.mu.Lock()
	ride.cancelled = true
	ride.mu.Unlock()
}

// Available returns the current available seat count.
func (l *MemoryLedger) Available(rideID uuid.UUID) (int, bool) {
	l.mu.RLock()
	ride, ok := l.rides[rideID]
	l.mu.RUnlock()
	if !ok {
		return 0, false
	}

	ride.mu.Lock()
	defer ride.mu.Unlock()
	return ride.seats - ride.reserved, true
}

// Reserve implements Ledger.
func (l *MemoryLedger) Reserve(_ context.Context, rideID uuid.UUID, seats int) error {
	if seats <= 0 {
		return ErrInvalidSeatAmount
	}

	l.mu.RLock()
	ride, ok := l.rides[rideID]
	l.mu.RUnlock()
	if !ok {
		return ErrRideUnavailable
	}

	ride.mu.Lock()
	defer ride.mu.Unlock()

	if ride.cancelled {
		return ErrRideUnavailable
	}
	if ride.seats-ride.reserved < seats {
		return ErrInsufficientSeats
	}

	ride.reserved += seats
	return nil
}

// Release implements Ledger.
func (l *MemoryLedger) Release(_ context.Context, rideID uuid.UUID, seats int) error {
	if seats <= 0 {
		return ErrInvalidSeatAmount
	}

	l.mu.RLock()
	ride, ok := l.rides[rideID]
	l.mu.RUnlock()
	if !ok {
		return ErrRideUnavailable
	}

	ride.mu.Lock()
	defer ride.mu.Unlock()

	ride.reserved -= seats
	if ride.reserved < 0 {
		ride.reserved = 0
	}
	return nil
}

// Recompute implements Ledger. The in-memory ledger tracks reservations
// directly, so recomputing just reports the derived value.
func (l *MemoryLedger) Recompute(_ context.Context, rideID uuid.UUID) (int, error) {
	l.mu.RLock()
	ride, ok := l.rides[rideID]
	l.mu.RUnlock()
	if !ok {
		return 0, ErrRideUnavailable
	}

	ride.mu.Lock()
	defer ride.mu.Unlock()
	return ride.seats - ride.reserved, nil
}

var _ Ledger = (*MemoryLedger)(nil)
