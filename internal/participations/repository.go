package participations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/trawell/rides-service/internal/capacity"
	"github.com/trawell/rides-service/pkg/common"
	"github.com/trawell/rides-service/pkg/database"
	"github.com/trawell/rides-service/pkg/models"
)

// Repository handles database operations for participations. Writes that
// touch both a participation row and the ride's seat counter happen inside
// one transaction, retried on transient failures.
type Repository struct {
	db    *pgxpool.Pool
	retry database.RetryConfig
}

// NewRepository creates a new participations repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db, retry: database.DefaultRetryConfig()}
}

const participationColumns = `
	id, ride_id, user_id, reserved_seats, decision, created_at, updated_at
`

// CreateWithReservation inserts a participation and reserves its seats
// atomically. Either both happen or neither does; a full ride or a duplicate
// active request leaves no trace.
func (r *Repository) CreateWithReservation(ctx context.Context, p *models.Participation) error {
	return database.WithinTransaction(ctx, r.db, r.retry, func(tx pgx.Tx) error {
		ledger := capacity.NewPostgresLedger(tx)
		if err := ledger.Reserve(ctx, p.RideID, p.ReservedSeats); err != nil {
			return translateLedgerError(err)
		}

		err := tx.QueryRow(ctx, `
			INSERT INTO participations (id, ride_id, user_id, reserved_seats, decision)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at, updated_at
		`, p.ID, p.RideID, p.UserID, p.ReservedSeats, p.Decision,
		).Scan(&p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return common.NewAppError(409, common.CodeDuplicateRequest,
					"you already have an active request for this ride", common.ErrState)
			}
			return fmt.Errorf("failed to create participation: %w", err)
		}

		return nil
	})
}

// GetByID retrieves a participation.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Participation, error) {
	row := r.db.QueryRow(ctx,
		`SELECT`+participationColumns+`FROM participations WHERE id = $1`, id)

	p, err := scanParticipation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("participation not found")
		}
		return nil, fmt.Errorf("failed to get participation: %w", err)
	}

	return p, nil
}

// UpdateDecision moves a participation from one decision to another and, when
// the new state no longer holds seats, releases them. The from-state guard
// runs inside the transaction, so two racing decisions on the same request
// serialize and the second one fails cleanly.
func (r *Repository) UpdateDecision(ctx context.Context, id uuid.UUID, from, to models.Decision) (*models.Participation, error) {
	var updated *models.Participation

	err := database.WithinTransaction(ctx, r.db, r.retry, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT`+participationColumns+`
			FROM participations
			WHERE id = $1
			FOR UPDATE
		`, id)

		p, err := scanParticipation(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return common.NewNotFoundError("participation not found")
			}
			return fmt.Errorf("failed to lock participation: %w", err)
		}

		if p.Decision != from {
			return common.NewStateError(
				fmt.Sprintf("request is %s, expected %s", p.Decision, from))
		}

		err = tx.QueryRow(ctx, `
			UPDATE participations
			SET decision = $2, updated_at = now()
			WHERE id = $1
			RETURNING updated_at
		`, id, to).Scan(&p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to update decision: %w", err)
		}
		p.Decision = to

		// Seats flow back only on the active -> inactive edge.
		if from.Active() && !to.Active() {
			ledger := capacity.NewPostgresLedger(tx)
			if err := ledger.Release(ctx, p.RideID, p.ReservedSeats); err != nil {
				return translateLedgerError(err)
			}
		}

		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// ListByUser returns the user's own participations, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, decision string, limit, offset int) ([]models.Participation, int64, error) {
	return r.list(ctx, "user_id", userID, decision, limit, offset)
}

// ListByRide returns the participations against a ride, oldest first so
// drivers see requests in arrival order.
func (r *Repository) ListByRide(ctx context.Context, rideID uuid.UUID, decision string, limit, offset int) ([]models.Participation, int64, error) {
	return r.list(ctx, "ride_id", rideID, decision, limit, offset)
}

func (r *Repository) list(ctx context.Context, column string, id uuid.UUID, decision string, limit, offset int) ([]models.Participation, int64, error) {
	where := fmt.Sprintf("%s = $1", column)
	args := []any{id}
	if decision != "" {
		where += " AND decision = $2"
		args = append(args, decision)
	}

	var total int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM participations WHERE `+where, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count participations: %w", err)
	}

	order := "created_at DESC"
	if column == "ride_id" {
		order = "created_at ASC"
	}

	query := fmt.Sprintf(
		`SELECT %s FROM participations WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		participationColumns, where, order, len(args)+1, len(args)+2,
	)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list participations: %w", err)
	}
	defer rows.Close()

	var out []models.Participation
	for rows.Next() {
		p, err := scanParticipation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan participation: %w", err)
		}
		out = append(out, *p)
	}

	return out, total, rows.Err()
}

func scanParticipation(row pgx.Row) (*models.Participation, error) {
	var p models.Participation
	err := row.Scan(
		&p.ID,
		&p.RideID,
		&p.UserID,
		&p.ReservedSeats,
		&p.Decision,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func translateLedgerError(err error) error {
	switch {
	case errors.Is(err, capacity.ErrInsufficientSeats):
		return common.NewCapacityError(common.CodeInsufficientSeats, "not enough available seats")
	case errors.Is(err, capacity.ErrInvalidSeatAmount):
		return common.NewCapacityError(common.CodeInvalidSeatAmount, "seat amount must be positive")
	case errors.Is(err, capacity.ErrRideUnavailable):
		return common.NewStateError("ride is cancelled or no longer exists")
	default:
		return err
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
