package recurrence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/trawell/rides-service/pkg/common"
	"github.com/trawell/rides-service/pkg/database"
	"github.com/trawell/rides-service/pkg/models"
)

// Repository handles database operations for ride templates and their
// generated occurrences.
type Repository struct {
	db    *pgxpool.Pool
	retry database.RetryConfig
}

// NewRepository creates a new recurrence repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db, retry: database.DefaultRetryConfig()}
}

const templateColumns = `
	id, driver_id, vehicle_id, city_from, city_to, area_from, area_to,
	start_date, end_date, frequency_type, frequence, occurrences,
	duration_hours, duration_minutes, price, seats, automatic_confirm,
	description, is_cancelled, created_at, updated_at
`

// CreateWithRides inserts a template together with all its generated ride
// rows in one transaction. Either the whole schedule materializes or none
// of it does.
func (r *Repository) CreateWithRides(ctx context.Context, tpl *models.RideTemplate, rides []*models.Ride) error {
	return database.WithinTransaction(ctx, r.db, r.retry, func(tx pgx.Tx) error {
		occurrences := weekdayStrings(tpl.Occurrences)

		err := tx.QueryRow(ctx, `
			INSERT INTO ride_templates (
				id, driver_id, vehicle_id, city_from, city_to, area_from, area_to,
				start_date, end_date, frequency_type, frequence, occurrences,
				duration_hours, duration_minutes, price, seats, automatic_confirm,
				description
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
			RETURNING created_at, updated_at
		`,
			tpl.ID, tpl.DriverID, tpl.VehicleID, tpl.CityFrom, tpl.CityTo,
			tpl.AreaFrom, tpl.AreaTo, tpl.StartDate, tpl.EndDate,
			tpl.FrequencyType, tpl.Frequence, occurrences,
			tpl.Duration.Hours, tpl.Duration.Minutes, tpl.Price, tpl.Seats,
			tpl.AutomaticConfirm, tpl.Description,
		).Scan(&tpl.CreatedAt, &tpl.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create template: %w", err)
		}

		for _, ride := range rides {
			err := tx.QueryRow(ctx, `
				INSERT INTO rides (
					id, driver_id, vehicle_id, city_from, city_to, area_from, area_to,
					start_date, duration_hours, duration_minutes, price, seats,
					available_seats, automatic_confirm, description, template_id
				)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
				RETURNING version, created_at, updated_at
			`,
				ride.ID, ride.DriverID, ride.VehicleID, ride.CityFrom, ride.CityTo,
				ride.AreaFrom, ride.AreaTo, ride.StartDate,
				ride.Duration.Hours, ride.Duration.Minutes, ride.Price, ride.Seats,
				ride.AvailableSeats, ride.AutomaticConfirm, ride.Description, ride.TemplateID,
			).Scan(&ride.Version, &ride.CreatedAt, &ride.UpdatedAt)
			if err != nil {
				return fmt.Errorf("failed to create template ride: %w", err)
			}
		}

		return nil
	})
}

// GetByID retrieves a template.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.RideTemplate, error) {
	row := r.db.QueryRow(ctx,
		`SELECT`+templateColumns+`FROM ride_templates WHERE id = $1`, id)

	tpl, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("template not found")
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	return tpl, nil
}

// ListByDriver returns the driver's templates, newest first.
func (r *Repository) ListByDriver(ctx context.Context, driverID uuid.UUID, limit, offset int) ([]models.RideTemplate, int64, error) {
	var total int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM ride_templates WHERE driver_id = $1`, driverID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count templates: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT`+templateColumns+`
		FROM ride_templates
		WHERE driver_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, driverID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var out []models.RideTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan template: %w", err)
		}
		out = append(out, *tpl)
	}

	return out, total, rows.Err()
}

// UpdateCascade writes the template's mutable fields and pushes them onto
// every future, non-cancelled occurrence. A seat change skips occurrences
// whose committed seats exceed the new capacity and reports their IDs; the
// rest of the cascade still applies to them.
func (r *Repository) UpdateCascade(ctx context.Context, tpl *models.RideTemplate, now time.Time) ([]uuid.UUID, error) {
	var skipped []uuid.UUID

	err := database.WithinTransaction(ctx, r.db, r.retry, func(tx pgx.Tx) error {
		skipped = skipped[:0]

		err := tx.QueryRow(ctx, `
			UPDATE ride_templates
			SET vehicle_id = $2,
			    seats = $3,
			    automatic_confirm = $4,
			    description = $5,
			    updated_at = now()
			WHERE id = $1
			  AND NOT is_cancelled
			RETURNING updated_at
		`, tpl.ID, tpl.VehicleID, tpl.Seats, tpl.AutomaticConfirm, tpl.Description,
		).Scan(&tpl.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return common.NewStateError("template is cancelled or no longer exists")
			}
			return fmt.Errorf("failed to update template: %w", err)
		}

		// Fields that never conflict cascade unconditionally.
		_, err = tx.Exec(ctx, `
			UPDATE rides
			SET vehicle_id = $2,
			    automatic_confirm = $3,
			    description = $4,
			    version = version + 1,
			    updated_at = now()
			WHERE template_id = $1
			  AND NOT is_cancelled
			  AND start_date > $5
		`, tpl.ID, tpl.VehicleID, tpl.AutomaticConfirm, tpl.Description, now)
		if err != nil {
			return fmt.Errorf("failed to cascade template fields: %w", err)
		}

		// Occurrences already holding more seats than the new capacity keep
		// their current capacity.
		rows, err := tx.Query(ctx, `
			SELECT id FROM rides
			WHERE template_id = $1
			  AND NOT is_cancelled
			  AND start_date > $2
			  AND (seats - available_seats) > $3
		`, tpl.ID, now, tpl.Seats)
		if err != nil {
			return fmt.Errorf("failed to find conflicting rides: %w", err)
		}
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan conflicting ride: %w", err)
			}
			skipped = append(skipped, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE rides
			SET available_seats = $3 - (seats - available_seats),
			    seats = $3,
			    version = version + 1,
			    updated_at = now()
			WHERE template_id = $1
			  AND NOT is_cancelled
			  AND start_date > $2
			  AND (seats - available_seats) <= $3
		`, tpl.ID, now, tpl.Seats)
		if err != nil {
			return fmt.Errorf("failed to cascade seat change: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return skipped, nil
}

// RegenerateRides rewrites the whole template and replaces its future,
// non-cancelled occurrences with a freshly expanded set, returning the
// discarded rides so the caller can emit events. It refuses when any
// occurrence still has a pending or accepted request; those passengers
// booked a specific timetable.
func (r *Repository) RegenerateRides(ctx context.Context, tpl *models.RideTemplate, rides []*models.Ride, now time.Time) ([]models.Ride, error) {
	var removed []models.Ride

	err := database.WithinTransaction(ctx, r.db, r.retry, func(tx pgx.Tx) error {
		removed = removed[:0]

		// Lock the occurrences first so a join request racing this edit
		// either lands before the check or fails against deleted rows.
		_, err := tx.Exec(ctx, `
			SELECT id FROM rides WHERE template_id = $1 FOR UPDATE
		`, tpl.ID)
		if err != nil {
			return fmt.Errorf("failed to lock template rides: %w", err)
		}

		var booked bool
		err = tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1
				FROM participations p
				JOIN rides rd ON rd.id = p.ride_id
				WHERE rd.template_id = $1
				  AND p.decision IN ('pending', 'accepted')
			)
		`, tpl.ID).Scan(&booked)
		if err != nil {
			return fmt.Errorf("failed to check template participations: %w", err)
		}
		if booked {
			return common.NewEditError(common.CodeInvalidState,
				"template occurrences already have passengers, only seats, vehicle, description and automatic confirmation can change")
		}

		err = tx.QueryRow(ctx, `
			UPDATE ride_templates
			SET vehicle_id = $2,
			    city_from = $3,
			    city_to = $4,
			    area_from = $5,
			    area_to = $6,
			    start_date = $7,
			    end_date = $8,
			    frequency_type = $9,
			    frequence = $10,
			    occurrences = $11,
			    duration_hours = $12,
			    duration_minutes = $13,
			    price = $14,
			    seats = $15,
			    automatic_confirm = $16,
			    description = $17,
			    updated_at = now()
			WHERE id = $1
			  AND NOT is_cancelled
			RETURNING updated_at
		`, tpl.ID, tpl.VehicleID, tpl.CityFrom, tpl.CityTo, tpl.AreaFrom, tpl.AreaTo,
			tpl.StartDate, tpl.EndDate, tpl.FrequencyType, tpl.Frequence,
			weekdayStrings(tpl.Occurrences), tpl.Duration.Hours, tpl.Duration.Minutes,
			tpl.Price, tpl.Seats, tpl.AutomaticConfirm, tpl.Description,
		).Scan(&tpl.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return common.NewStateError("template is cancelled or no longer exists")
			}
			return fmt.Errorf("failed to update template: %w", err)
		}

		// Declined and cancelled requests may still reference the rows.
		_, err = tx.Exec(ctx, `
			DELETE FROM participations
			WHERE ride_id IN (
				SELECT id FROM rides
				WHERE template_id = $1
				  AND NOT is_cancelled
				  AND start_date > $2
			)
		`, tpl.ID, now)
		if err != nil {
			return fmt.Errorf("failed to clear stale participations: %w", err)
		}

		rows, err := tx.Query(ctx, `
			DELETE FROM rides
			WHERE template_id = $1
			  AND NOT is_cancelled
			  AND start_date > $2
			RETURNING id, driver_id, vehicle_id, city_from, city_to, area_from, area_to,
			          start_date, duration_hours, duration_minutes, price, seats,
			          available_seats, automatic_confirm, description, is_cancelled,
			          template_id, version, created_at, updated_at
		`, tpl.ID, now)
		if err != nil {
			return fmt.Errorf("failed to discard template rides: %w", err)
		}
		for rows.Next() {
			var ride models.Ride
			err := rows.Scan(
				&ride.ID, &ride.DriverID, &ride.VehicleID, &ride.CityFrom, &ride.CityTo,
				&ride.AreaFrom, &ride.AreaTo, &ride.StartDate,
				&ride.Duration.Hours, &ride.Duration.Minutes, &ride.Price, &ride.Seats,
				&ride.AvailableSeats, &ride.AutomaticConfirm, &ride.Description,
				&ride.IsCancelled, &ride.TemplateID, &ride.Version,
				&ride.CreatedAt, &ride.UpdatedAt,
			)
			if err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan discarded ride: %w", err)
			}
			removed = append(removed, ride)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, ride := range rides {
			err := tx.QueryRow(ctx, `
				INSERT INTO rides (
					id, driver_id, vehicle_id, city_from, city_to, area_from, area_to,
					start_date, duration_hours, duration_minutes, price, seats,
					available_seats, automatic_confirm, description, template_id
				)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
				RETURNING version, created_at, updated_at
			`,
				ride.ID, ride.DriverID, ride.VehicleID, ride.CityFrom, ride.CityTo,
				ride.AreaFrom, ride.AreaTo, ride.StartDate,
				ride.Duration.Hours, ride.Duration.Minutes, ride.Price, ride.Seats,
				ride.AvailableSeats, ride.AutomaticConfirm, ride.Description, ride.TemplateID,
			).Scan(&ride.Version, &ride.CreatedAt, &ride.UpdatedAt)
			if err != nil {
				return fmt.Errorf("failed to create template ride: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return removed, nil
}

// CancelCascade cancels the template and every future, not yet departed
// occurrence, returning the cancelled rides so the caller can emit events.
func (r *Repository) CancelCascade(ctx context.Context, templateID uuid.UUID, now time.Time) ([]models.Ride, error) {
	var cancelled []models.Ride

	err := database.WithinTransaction(ctx, r.db, r.retry, func(tx pgx.Tx) error {
		cancelled = cancelled[:0]

		tag, err := tx.Exec(ctx, `
			UPDATE ride_templates
			SET is_cancelled = TRUE, updated_at = now()
			WHERE id = $1
			  AND NOT is_cancelled
		`, templateID)
		if err != nil {
			return fmt.Errorf("failed to cancel template: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return common.NewStateError("template is already cancelled or does not exist")
		}

		rows, err := tx.Query(ctx, `
			UPDATE rides
			SET is_cancelled = TRUE,
			    version = version + 1,
			    updated_at = now()
			WHERE template_id = $1
			  AND NOT is_cancelled
			  AND start_date > $2
			RETURNING id, driver_id, vehicle_id, city_from, city_to, area_from, area_to,
			          start_date, duration_hours, duration_minutes, price, seats,
			          available_seats, automatic_confirm, description, is_cancelled,
			          template_id, version, created_at, updated_at
		`, templateID, now)
		if err != nil {
			return fmt.Errorf("failed to cancel template rides: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var ride models.Ride
			err := rows.Scan(
				&ride.ID, &ride.DriverID, &ride.VehicleID, &ride.CityFrom, &ride.CityTo,
				&ride.AreaFrom, &ride.AreaTo, &ride.StartDate,
				&ride.Duration.Hours, &ride.Duration.Minutes, &ride.Price, &ride.Seats,
				&ride.AvailableSeats, &ride.AutomaticConfirm, &ride.Description,
				&ride.IsCancelled, &ride.TemplateID, &ride.Version,
				&ride.CreatedAt, &ride.UpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to scan cancelled ride: %w", err)
			}
			cancelled = append(cancelled, ride)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return cancelled, nil
}

func scanTemplate(row pgx.Row) (*models.RideTemplate, error) {
	var (
		tpl         models.RideTemplate
		occurrences []string
	)
	err := row.Scan(
		&tpl.ID, &tpl.DriverID, &tpl.VehicleID, &tpl.CityFrom, &tpl.CityTo,
		&tpl.AreaFrom, &tpl.AreaTo, &tpl.StartDate, &tpl.EndDate,
		&tpl.FrequencyType, &tpl.Frequence, &occurrences,
		&tpl.Duration.Hours, &tpl.Duration.Minutes, &tpl.Price, &tpl.Seats,
		&tpl.AutomaticConfirm, &tpl.Description, &tpl.IsCancelled,
		&tpl.CreatedAt, &tpl.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	for _, code := range occurrences {
		tpl.Occurrences = append(tpl.Occurrences, models.Weekday(code))
	}

	return &tpl, nil
}

func weekdayStrings(days []models.Weekday) []string {
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = string(d)
	}
	return out
}
