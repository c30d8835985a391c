package crdb

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
)

func (r *Repository) InsertJournal(ctx context.Context, e domain.JournalEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reservation_journal (id, reservation_id, booking_id, offer_id, trip_id, user_id, org_id, status,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, e.ID, e.ReservationID, e.BookingID, e.OfferID, e.TripID, e.UserID, e.OrgID, string(e.Status), e.CreatedAt)
	return mapPgError(err)
}

func (r *Repository) MarkJournal(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.JournalStatus) error {
	result, err := tx.Exec(ctx, `
		UPDATE reservation_journal SET status = $3, updated_at = now() WHERE id = $1 AND status = $2
	`, id, string(from), string(to))
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errors.Wrapf(domain.ErrConflict, "journal entry %s is not %s", id, from)
	}
	return nil
}

// StaleJournal lists RESERVED entries created before cutoff, oldest first.
func (r *Repository) StaleJournal(ctx context.Context, cutoff time.Time, limit int) ([]domain.JournalEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, reservation_id, booking_id, offer_id, trip_id, user_id, org_id, status, created_at
		FROM reservation_journal WHERE status = 'RESERVED' AND created_at < $1
		ORDER BY created_at ASC LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.JournalEntry
	for rows.Next() {
		var (
			e      domain.JournalEntry
			status string
		)
		if err := rows.Scan(&e.ID, &e.ReservationID, &e.BookingID, &e.OfferID, &e.TripID, &e.UserID, &e.OrgID, &status, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Status = domain.JournalStatus(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *Repository) OrphanJournal(ctx context.Context, e domain.JournalEntry, events ...domain.Event) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		if err := r.MarkJournal(ctx, tx, e.ID, domain.JournalReserved, domain.JournalOrphaned); err != nil {
			return err
		}
		return r.insertEvents(ctx, tx, events)
	})
}
