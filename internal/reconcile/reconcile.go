package reconcile

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
	"github.com/robertarktes/corporate-rail-bookings/internal/observability"
)

type Store interface {
	StaleJournal(ctx context.Context, cutoff time.Time, limit int) ([]domain.JournalEntry, error)
	OrphanJournal(ctx context.Context, e domain.JournalEntry, events ...domain.Event) error
}

// Sweeper finds provider reservations that were journaled but never got a booking
// row and marks them ORPHANED. The reservation.orphaned event goes out through the
// outbox in the same transaction.
type Sweeper struct {
	store  Store
	grace  time.Duration
	batch  int
	now    func() time.Time
	logger observability.Logger
}

func NewSweeper(store Store, grace time.Duration, batch int, logger observability.Logger) *Sweeper {
	return &Sweeper{store: store, grace: grace, batch: batch, now: time.Now, logger: logger}
}

func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Sweep orphans every RESERVED entry older than the grace period and returns how
// many were marked.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.grace)
	entries, err := s.store.StaleJournal(ctx, cutoff, s.batch)
	if err != nil {
		return 0, errors.Wrap(err, "list stale journal entries")
	}

	orphaned := 0
	for _, e := range entries {
		fields := map[string]interface{}{
			"journal_id":     e.ID,
			"reservation_id": e.ReservationID,
			"offer_id":       e.OfferID,
			"user_id":        e.UserID,
			"created_at":     e.CreatedAt,
		}
		ev := domain.NewEvent(domain.EventReservationOrphaned, domain.AggregateReservation, e.ID, e)
		err := s.store.OrphanJournal(ctx, e, ev)
		if errors.Is(err, domain.ErrConflict) {
			// persisted between listing and marking
			s.logger.WithFields(fields).Debug("journal entry no longer reserved")
			continue
		}
		if err != nil {
			s.logger.WithFields(fields).WithError(err).Warn("failed to orphan journal entry")
			continue
		}
		orphaned++
		observability.ReservationsOrphaned.Inc()
		s.logger.WithFields(fields).Error("provider reservation has no booking record")
	}
	return orphaned, nil
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				s.logger.WithError(err).Error("reconcile sweep failed")
				continue
			}
			if n > 0 {
				s.logger.WithField("orphaned", n).Info("reconcile sweep done")
			}
		}
	}
}
