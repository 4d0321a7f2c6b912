package capacity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Ledger errors. Callers translate these into API errors; none of them
// implies a partial write.
var (
	// ErrInvalidSeatAmount is returned when the requested seat count is not positive.
	ErrInvalidSeatAmount = errors.New("seat amount must be positive")
	// ErrInsufficientSeats is returned when a reservation asks for more seats than remain.
	ErrInsufficientSeats = errors.New("not enough available seats")
	// ErrRideUnavailable is returned when the ride does not exist or is cancelled.
	ErrRideUnavailable = errors.New("ride is not available")
)

// Ledger maintains the denormalized available-seat count of rides. All
// adjustments are atomic with respect to concurrent adjustments on the same
// ride.
type Ledger interface {
	// Reserve atomically decrements the available seats of a ride. It fails
	// without any change when fewer than n seats remain or the ride is
	// cancelled.
	Reserve(ctx context.Context, rideID uuid.UUID, seats int) error
	// Release atomically returns previously reserved seats to a ride. The
	// available count never exceeds the ride capacity.
	Release(ctx context.Context, rideID uuid.UUID, seats int) error
	// Recompute rebuilds the available count from the active participations
	// and returns the new value. Used to repair drift.
	Recompute(ctx context.Context, rideID uuid.UUID) (int, error)
}

// Querier is the subset of pgx operations the ledger needs. Both
// *pgxpool.Pool and pgx.Tx satisfy it, so ledger adjustments can run inside
// a caller-owned transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresLedger implements Ledger with single-statement conditional updates,
// so per-ride atomicity comes from the database row lock rather than any
// in-process lock.
type PostgresLedger struct {
	q Querier
}

// NewPostgresLedger creates a ledger over the given pool or transaction.
func NewPostgresLedger(q Querier) *PostgresLedger {
	return &PostgresLedger{q: q}
}

// Reserve decrements available_seats only when enough seats remain and the
// ride is still active. The WHERE clause is the whole concurrency story: two
// racing reservations serialize on the row, and the loser of the last seat
// matches zero rows.
func (l *PostgresLedger) Reserve(ctx context.Context, rideID uuid.UUID, seats int) error {
	if seats <= 0 {
		return ErrInvalidSeatAmount
	}

	tag, err := l.q.Exec(ctx, `
		UPDATE rides
		SET available_seats = available_seats - $2,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		  AND NOT is_cancelled
		  AND available_seats >= $2
	`, rideID, seats)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return l.classifyFailure(ctx, rideID)
	}

	return nil
}

// Release returns seats to the pool, clamped at the ride capacity.
func (l *PostgresLedger) Release(ctx context.Context, rideID uuid.UUID, seats int) error {
	if seats <= 0 {
		return ErrInvalidSeatAmount
	}

	tag, err := l.q.Exec(ctx, `
		UPDATE rides
		SET available_seats = LEAST(seats, available_seats + $2),
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
	`, rideID, seats)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrRideUnavailable
	}

	return nil
}

// Recompute derives available_seats from the sum of active participation
// seats and returns the corrected value.
func (l *PostgresLedger) Recompute(ctx context.Context, rideID uuid.UUID) (int, error) {
	var available int
	err := l.q.QueryRow(ctx, `
		UPDATE rides r
		SET available_seats = r.seats - COALESCE((
		        SELECT SUM(p.reserved_seats)
		        FROM participations p
		        WHERE p.ride_id = r.id
		          AND p.decision IN ('pending', 'accepted')
		    ), 0),
		    version = version + 1,
		    updated_at = now()
		WHERE r.id = $1
		RETURNING r.available_seats
	`, rideID).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrRideUnavailable
		}
		return 0, err
	}

	return available, nil
}

// classifyFailure tells a full ride apart from a missing or cancelled one
// after a conditional update matched zero rows.
func (l *PostgresLedger) classifyFailure(ctx context.Context, rideID uuid.UUID) error {
	var isCancelled bool
	err := l.q.QueryRow(ctx,
		`SELECT is_cancelled FROM rides WHERE id = $1`, rideID,
	).Scan(&isCancelled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrRideUnavailable
		}
		return err
	}

	if isCancelled {
		return ErrRideUnavailable
	}

	return ErrInsufficientSeats
}
