package rides

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/trawell/rides-service/pkg/common"
	"github.com/trawell/rides-service/pkg/models"
)

// Repository handles database operations for rides
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new rides repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const rideColumns = `
	id, driver_id, vehicle_id, city_from, city_to, area_from, area_to,
	start_date, duration_hours, duration_minutes, price, seats,
	available_seats, automatic_confirm, description, is_cancelled,
	template_id, version, created_at, updated_at
`

// Create inserts a ride together with its route coordinates.
func (r *Repository) Create(ctx context.Context, ride *models.Ride) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO rides (
			id, driver_id, vehicle_id, city_from, city_to, area_from, area_to,
			start_date, duration_hours, duration_minutes, price, seats,
			available_seats, automatic_confirm, description, template_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING version, created_at, updated_at
	`,
		ride.ID,
		ride.DriverID,
		ride.VehicleID,
		ride.CityFrom,
		ride.CityTo,
		ride.AreaFrom,
		ride.AreaTo,
		ride.StartDate,
		ride.Duration.Hours,
		ride.Duration.Minutes,
		ride.Price,
		ride.Seats,
		ride.AvailableSeats,
		ride.AutomaticConfirm,
		ride.Description,
		ride.TemplateID,
	).Scan(&ride.Version, &ride.CreatedAt, &ride.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ride: %w", err)
	}

	if err := insertCoordinates(ctx, tx, ride.ID, ride.Coordinates); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit ride creation: %w", err)
	}

	return nil
}

func insertCoordinates(ctx context.Context, tx pgx.Tx, rideID uuid.UUID, coords []models.Coordinate) error {
	for i, coord := range coords {
		_, err := tx.Exec(ctx, `
			INSERT INTO ride_coordinates (ride_id, lat, lng, sequence_no)
			VALUES ($1, $2, $3, $4)
		`, rideID, coord.Lat, coord.Lng, i)
		if err != nil {
			return fmt.Errorf("failed to insert coordinate: %w", err)
		}
	}
	return nil
}

// GetByID retrieves a ride and its coordinates.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Ride, error) {
	row := r.db.QueryRow(ctx, `SELECT`+rideColumns+`FROM rides WHERE id = $1`, id)

	ride, err := scanRide(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, common.NewNotFoundError("ride not found")
		}
		return nil, fmt.Errorf("failed to get ride: %w", err)
	}

	coords, err := r.coordinates(ctx, id)
	if err != nil {
		return nil, err
	}
	ride.Coordinates = coords

	return ride, nil
}

func (r *Repository) coordinates(ctx context.Context, rideID uuid.UUID) ([]models.Coordinate, error) {
	rows, err := r.db.Query(ctx, `
		SELECT lat, lng, sequence_no
		FROM ride_coordinates
		WHERE ride_id = $1
		ORDER BY sequence_no
	`, rideID)
	if err != nil {
		return nil, fmt.Errorf("failed to get coordinates: %w", err)
	}
	defer rows.Close()

	var coords []models.Coordinate
	for rows.Next() {
		var c models.Coordinate
		if err := rows.Scan(&c.Lat, &c.Lng, &c.SequenceNo); err != nil {
			return nil, fmt.Errorf("failed to scan coordinate: %w", err)
		}
		coords = append(coords, c)
	}

	return coords, rows.Err()
}

// List returns rides matching the filter, newest departure first by default,
// together with the total match count.
func (r *Repository) List(ctx context.Context, filter *models.RideFilter, limit, offset int) ([]models.Ride, int64, error) {
	where := []string{"NOT is_cancelled"}
	args := []any{}
	argPos := 1

	addArg := func(clause string, value any) {
		where = append(where, fmt.Sprintf(clause, argPos))
		args = append(args, value)
		argPos++
	}

	if filter.CityFrom != "" {
		addArg("city_from ILIKE $%d", filter.CityFrom)
	}
	if filter.CityTo != "" {
		addArg("city_to ILIKE $%d", filter.CityTo)
	}
	if filter.MinPrice != nil {
		addArg("price >= $%d", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		addArg("price <= $%d", *filter.MaxPrice)
	}
	if filter.StartAfter != nil {
		addArg("start_date >= $%d", *filter.StartAfter)
	}
	if filter.OnlyAvailable {
		where = append(where, "available_seats > 0")
	}

	whereClause := strings.Join(where, " AND ")

	var total int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM rides WHERE `+whereClause, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count rides: %w", err)
	}

	orderBy := "start_date ASC"
	switch filter.OrderBy {
	case "price":
		orderBy = "price ASC"
	case "-price":
		orderBy = "price DESC"
	case "-start_date":
		orderBy = "start_date DESC"
	}

	query := fmt.Sprintf(
		`SELECT %s FROM rides WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		rideColumns, whereClause, orderBy, argPos, argPos+1,
	)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list rides: %w", err)
	}
	defer rows.Close()

	rides, err := scanRides(rows)
	if err != nil {
		return nil, 0, err
	}

	return rides, total, nil
}

// ListByDriver returns the driver's rides, most recent departure first.
func (r *Repository) ListByDriver(ctx context.Context, driverID uuid.UUID, limit, offset int) ([]models.Ride, int64, error) {
	var total int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM rides WHERE driver_id = $1`, driverID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count driver rides: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT`+rideColumns+`
		FROM rides
		WHERE driver_id = $1
		ORDER BY start_date DESC
		LIMIT $2 OFFSET $3
	`, driverID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list driver rides: %w", err)
	}
	defer rows.Close()

	rides, err := scanRides(rows)
	if err != nil {
		return nil, 0, err
	}

	return rides, total, nil
}

// UpdateVersioned writes the mutable ride fields guarded by the version the
// caller read. It reports false when another writer got there first, in which
// case the caller re-reads and retries.
func (r *Repository) UpdateVersioned(ctx context.Context, ride *models.Ride) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE rides
		SET vehicle_id = $1,
		    city_from = $2,
		    city_to = $3,
		    area_from = $4,
		    area_to = $5,
		    start_date = $6,
		    duration_hours = $7,
		    duration_minutes = $8,
		    price = $9,
		    seats = $10,
		    available_seats = $11,
		    automatic_confirm = $12,
		    description = $13,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $14
		  AND version = $15
		  AND NOT is_cancelled
	`,
		ride.VehicleID,
		ride.CityFrom,
		ride.CityTo,
		ride.AreaFrom,
		ride.AreaTo,
		ride.StartDate,
		ride.Duration.Hours,
		ride.Duration.Minutes,
		ride.Price,
		ride.Seats,
		ride.AvailableSeats,
		ride.AutomaticConfirm,
		ride.Description,
		ride.ID,
		ride.Version,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update ride: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// Cancel marks a ride cancelled. It reports false when the ride was already
// cancelled or does not exist.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE rides
		SET is_cancelled = TRUE,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		  AND NOT is_cancelled
	`, id)
	if err != nil {
		return false, fmt.Errorf("failed to cancel ride: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func scanRide(row pgx.Row) (*models.Ride, error) {
	var ride models.Ride
	err := row.Scan(
		&ride.ID,
		&ride.DriverID,
		&ride.VehicleID,
		&ride.CityFrom,
		&ride.CityTo,
		&ride.AreaFrom,
		&ride.AreaTo,
		&ride.StartDate,
		&ride.Duration.Hours,
		&ride.Duration.Minutes,
		&ride.Price,
		&ride.Seats,
		&ride.AvailableSeats,
		&ride.AutomaticConfirm,
		&ride.Description,
		&ride.IsCancelled,
		&ride.TemplateID,
		&ride.Version,
		&ride.CreatedAt,
		&ride.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ride, nil
}

func scanRides(rows pgx.Rows) ([]models.Ride, error) {
	var rides []models.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ride: %w", err)
		}
		rides = append(rides, *ride)
	}
	return rides, rows.Err()
}
