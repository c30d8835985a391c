package crdb

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
	"github.com/shopspring/decimal"
)

const bookingColumns = `id, reservation_id, trip_id, user_id, org_id, offer_id, total_amount::STRING, currency, status,
	passengers, trips, price_breakdown, approval_request_id, delivery_option, confirmation_number, ticket_url,
	collection_reference, created_at, updated_at`

type bookingDocs struct {
	passengers, trips, breakdown []byte
}

func marshalBookingDocs(b domain.Booking) (bookingDocs, error) {
	var (
		docs bookingDocs
		err  error
	)
	if docs.passengers, err = json.Marshal(b.Passengers); err != nil {
		return docs, errors.Wrap(err, "marshal passengers")
	}
	if docs.trips, err = json.Marshal(b.Trips); err != nil {
		return docs, errors.Wrap(err, "marshal trips")
	}
	if docs.breakdown, err = json.Marshal(b.PriceBreakdown); err != nil {
		return docs, errors.Wrap(err, "marshal price breakdown")
	}
	return docs, nil
}

func (r *Repository) CreateBooking(ctx context.Context, tx pgx.Tx, b domain.Booking) error {
	docs, err := marshalBookingDocs(b)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO bookings (id, reservation_id, trip_id, user_id, org_id, offer_id, total_amount, currency, status,
			passengers, trips, price_breakdown, approval_request_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::DECIMAL, $8, $9, $10, $11, $12, $13, $14, $14)
	`, b.ID, b.ReservationID, b.TripID, b.UserID, b.OrgID, b.OfferID, b.Total.Amount.String(), b.Total.Currency,
		string(b.Status), docs.passengers, docs.trips, docs.breakdown, b.ApprovalRequestID, b.CreatedAt)
	return err
}

// UpdateBooking writes status and fulfillment data only if the stored status still
// equals from.
func (r *Repository) UpdateBooking(ctx context.Context, tx pgx.Tx, b domain.Booking, from domain.BookingStatus) error {
	result, err := tx.Exec(ctx, `
		UPDATE bookings SET status = $3, approval_request_id = $4, delivery_option = $5, confirmation_number = $6,
			ticket_url = $7, collection_reference = $8, updated_at = $9
		WHERE id = $1 AND status = $2
	`, b.ID, string(from), string(b.Status), b.ApprovalRequestID, b.Fulfillment.DeliveryOption,
		b.Fulfillment.ConfirmationNumber, b.Fulfillment.TicketURL, b.Fulfillment.CollectionReference, b.UpdatedAt)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errors.Wrapf(domain.ErrConflict, "booking %s is no longer %s", b.ID, from)
	}
	return nil
}

// SaveNewBooking inserts the booking, marks its journal entry persisted and writes
// the events in one transaction.
func (r *Repository) SaveNewBooking(ctx context.Context, b domain.Booking, journalID uuid.UUID, events ...domain.Event) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		if err := r.CreateBooking(ctx, tx, b); err != nil {
			return errors.Wrap(err, "insert booking")
		}
		if journalID != uuid.Nil {
			if err := r.MarkJournal(ctx, tx, journalID, domain.JournalReserved, domain.JournalPersisted); err != nil {
				return err
			}
		}
		return r.insertEvents(ctx, tx, events)
	})
}

func (r *Repository) SaveBooking(ctx context.Context, b domain.Booking, from domain.BookingStatus, events ...domain.Event) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		if err := r.UpdateBooking(ctx, tx, b, from); err != nil {
			return err
		}
		return r.insertEvents(ctx, tx, events)
	})
}

func (r *Repository) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	b, err := scanBooking(row)
	if err != nil {
		return nil, notFound(err, "booking "+id.String())
	}
	return b, nil
}

func (r *Repository) ListBookings(ctx context.Context, f domain.BookingFilter) ([]domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE true`
	var args []interface{}
	if f.TripID != nil {
		args = append(args, *f.TripID)
		query += ` AND trip_id = $` + strconv.Itoa(len(args))
	}
	if f.UserID != nil {
		args = append(args, *f.UserID)
		query += ` AND user_id = $` + strconv.Itoa(len(args))
	}
	if f.OfferID != "" {
		args = append(args, f.OfferID)
		query += ` AND offer_id = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var (
		b                            domain.Booking
		amount, status               string
		passengers, trips, breakdown []byte
		createdAt, updatedAt         time.Time
	)
	err := row.Scan(&b.ID, &b.ReservationID, &b.TripID, &b.UserID, &b.OrgID, &b.OfferID, &amount, &b.Total.Currency,
		&status, &passengers, &trips, &breakdown, &b.ApprovalRequestID, &b.Fulfillment.DeliveryOption,
		&b.Fulfillment.ConfirmationNumber, &b.Fulfillment.TicketURL, &b.Fulfillment.CollectionReference,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if b.Total.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, errors.Wrapf(err, "booking %s amount", b.ID)
	}
	b.Status = domain.BookingStatus(status)
	b.CreatedAt, b.UpdatedAt = createdAt, updatedAt
	if err := json.Unmarshal(passengers, &b.Passengers); err != nil {
		return nil, errors.Wrap(err, "passengers")
	}
	if err := json.Unmarshal(trips, &b.Trips); err != nil {
		return nil, errors.Wrap(err, "trips")
	}
	if err := json.Unmarshal(breakdown, &b.PriceBreakdown); err != nil {
		return nil, errors.Wrap(err, "price breakdown")
	}
	return &b, nil
}
