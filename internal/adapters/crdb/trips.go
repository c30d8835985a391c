package crdb

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
)

const tripColumns = `id, name, owner_id, org_id, start_date, end_date, booking_ids, version, created_at`

func (r *Repository) CreateTrip(ctx context.Context, t domain.Trip) error {
	ids := t.BookingIDs
	if ids == nil {
		ids = []uuid.UUID{}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO trips (id, name, owner_id, org_id, start_date, end_date, booking_ids, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, t.ID, t.Name, t.OwnerID, t.OrgID, t.StartDate, t.EndDate, ids, t.Version, t.CreatedAt)
	return mapPgError(err)
}

func (r *Repository) GetTrip(ctx context.Context, id uuid.UUID) (*domain.Trip, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1`, id)
	t, err := scanTrip(row)
	if err != nil {
		return nil, notFound(err, "trip "+id.String())
	}
	return t, nil
}

func (r *Repository) ListTrips(ctx context.Context, ownerID uuid.UUID) ([]domain.Trip, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+tripColumns+` FROM trips WHERE owner_id = $1 ORDER BY start_date ASC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trips := []domain.Trip{}
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, *t)
	}
	return trips, rows.Err()
}

// UpdateTripBookings replaces the booking list if the stored version still equals
// expectedVersion, bumping the version. A stale version yields ErrConflict.
func (r *Repository) UpdateTripBookings(ctx context.Context, id uuid.UUID, bookingIDs []uuid.UUID, expectedVersion int64) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE trips SET booking_ids = $2, version = version + 1 WHERE id = $1 AND version = $3
	`, id, bookingIDs, expectedVersion)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errors.Wrapf(domain.ErrConflict, "trip %s changed since version %d", id, expectedVersion)
	}
	return nil
}

func scanTrip(row pgx.Row) (*domain.Trip, error) {
	var t domain.Trip
	err := row.Scan(&t.ID, &t.Name, &t.OwnerID, &t.OrgID, &t.StartDate, &t.EndDate, &t.BookingIDs, &t.Version, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
