package booking

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
	"github.com/robertarktes/corporate-rail-bookings/internal/observability"
)

type Provider interface {
	Reserve(ctx context.Context, offerID string, passengers []domain.Passenger) (*domain.Reservation, error)
	Confirm(ctx context.Context, reservationID string, choices []domain.DeliveryChoice) (*domain.Confirmation, error)
	Booking(ctx context.Context, reservationID string) (*domain.Confirmation, error)
}

type Store interface {
	InsertJournal(ctx context.Context, e domain.JournalEntry) error
	SaveNewBooking(ctx context.Context, b domain.Booking, journalID uuid.UUID, events ...domain.Event) error
	SaveBooking(ctx context.Context, b domain.Booking, from domain.BookingStatus, events ...domain.Event) error
	GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	ListBookings(ctx context.Context, f domain.BookingFilter) ([]domain.Booking, error)
}

type Approvals interface {
	Create(ctx context.Context, orgID, userID uuid.UUID, td domain.TravelData, verdict domain.PolicyVerdict) (*domain.ApprovalRequest, error)
	Resolve(ctx context.Context, id uuid.UUID, action domain.ApprovalAction, approverID uuid.UUID, reason string) (*domain.ApprovalRequest, error)
}

type Trips interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Trip, error)
	Attach(ctx context.Context, tripID, bookingID uuid.UUID) error
}

type Auditor interface {
	LogEvent(ctx context.Context, action string, aggregateID, userID uuid.UUID, data map[string]interface{}) error
}

type Orchestrator struct {
	provider  Provider
	store     Store
	approvals Approvals
	trips     Trips
	audit     Auditor
	validator *Validator
	now       func() time.Time
	logger    observability.Logger
}

func NewOrchestrator(provider Provider, store Store, approvals Approvals, trips Trips, audit Auditor, logger observability.Logger) *Orchestrator {
	return &Orchestrator{
		provider:  provider,
		store:     store,
		approvals: approvals,
		trips:     trips,
		audit:     audit,
		validator: NewValidator(),
		now:       time.Now,
		logger:    logger,
	}
}

func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

type CreateRequest struct {
	Offer       domain.Offer          `validate:"-"`
	Passengers  []domain.Passenger    `validate:"required,min=1,dive"`
	TripID      uuid.UUID             `validate:"required"`
	UserID      uuid.UUID             `validate:"required"`
	OrgID       uuid.UUID             `validate:"required"`
	Verdict     *domain.PolicyVerdict `validate:"-"`
	Origin      string
	Destination string
}

// CreateResult is a persisted booking. ApprovalError is set when the verdict asked
// for approval but the request could not be opened; the booking is then still
// PENDING_PAYMENT.
type CreateResult struct {
	Booking       *domain.Booking
	Approval      *domain.ApprovalRequest
	ApprovalError error
}

type confirmRequest struct {
	Choices []domain.DeliveryChoice `validate:"required,min=1,dive"`
}

// Create reserves the offer upstream and records the booking locally. Once the
// provider has accepted the reservation a local failure is reported as
// ErrPersistenceFailed and never swallowed.
func (o *Orchestrator) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	logger := observability.LoggerFromContext(ctx, o.logger)

	if err := o.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.Offer.ID == "" {
		return nil, errors.Wrap(domain.ErrInvalidInput, "offer is required")
	}
	if _, err := o.trips.Get(ctx, req.TripID); err != nil {
		return nil, errors.Wrapf(err, "trip %s", req.TripID)
	}
	if req.Verdict != nil && !req.Verdict.Purchasable() {
		return nil, errors.Wrapf(domain.ErrBookingBlocked, "offer %s is %s", req.Offer.ID, req.Verdict.Result)
	}
	now := o.now().UTC()
	if req.Offer.Expired(now) {
		return nil, errors.Mark(
			errors.Wrapf(domain.ErrOfferExpired, "offer %s expired at %s", req.Offer.ID, req.Offer.ExpiresAt.Format(time.RFC3339)),
			domain.ErrReservationFailed,
		)
	}

	// once the provider is contacted the flow runs to completion even if the caller
	// goes away
	ctx = context.WithoutCancel(ctx)

	res, err := o.provider.Reserve(ctx, req.Offer.ID, req.Passengers)
	if errors.Is(err, domain.ErrOutcomeUnknown) {
		o.journalUnknownReservation(ctx, req, now, err)
		return nil, errors.Mark(errors.Wrapf(err, "reserve offer %s", req.Offer.ID), domain.ErrReservationFailed)
	}
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "reserve offer %s", req.Offer.ID), domain.ErrReservationFailed)
	}

	b := o.newBooking(req, res, now)
	fields := map[string]interface{}{
		"booking_id":     b.ID,
		"reservation_id": b.ReservationID,
		"offer_id":       b.OfferID,
		"user_id":        b.UserID,
	}

	journalID := uuid.New()
	err = o.store.InsertJournal(ctx, domain.JournalEntry{
		ID:            journalID,
		ReservationID: b.ReservationID,
		BookingID:     b.ID,
		OfferID:       b.OfferID,
		TripID:        b.TripID,
		UserID:        b.UserID,
		OrgID:         b.OrgID,
		Status:        domain.JournalReserved,
		CreatedAt:     now,
	})
	if err != nil {
		logger.WithFields(fields).WithError(err).Warn("reservation journal write failed")
		journalID = uuid.Nil
	}

	created := domain.NewEvent(domain.EventBookingCreated, domain.AggregateBooking, b.ID, b)
	if err := o.store.SaveNewBooking(ctx, b, journalID, created); err != nil {
		observability.ReconciliationCandidates.Inc()
		logger.WithFields(fields).WithError(err).Error("reservation made upstream but booking not persisted")
		return nil, errors.Mark(errors.Wrapf(err, "persist booking for reservation %s", b.ReservationID), domain.ErrPersistenceFailed)
	}
	observability.BookingTransitions.WithLabelValues(string(b.Status)).Inc()
	logger.WithFields(fields).Info("booking created")

	result := &CreateResult{Booking: &b}
	if req.Verdict != nil && req.Verdict.NeedsApproval() {
		approval, err := o.requestApproval(ctx, &b, req)
		if err != nil {
			entry := logger.WithFields(fields).WithError(err)
			if approval != nil {
				// The approval exists but is not linked to the booking.
				entry = entry.WithField("approval_id", approval.ID)
			}
			entry.Error("approval request failed, booking left awaiting payment")
			result.ApprovalError = err
		} else {
			result.Approval = approval
		}
	}

	o.record(ctx, domain.EventBookingCreated, b, map[string]interface{}{
		"reservation_id": b.ReservationID,
		"status":         b.Status,
		"total":          b.Total.String(),
	})
	return result, nil
}

// journalUnknownReservation records a reserve call whose outcome is unknown. The
// entry has no provider reference yet; the reconcile sweep reports it once it is
// older than the grace period.
func (o *Orchestrator) journalUnknownReservation(ctx context.Context, req CreateRequest, now time.Time, cause error) {
	logger := observability.LoggerFromContext(ctx, o.logger)
	journalID := uuid.New()
	fields := map[string]interface{}{
		"journal_id": journalID,
		"offer_id":   req.Offer.ID,
		"user_id":    req.UserID,
		"trip_id":    req.TripID,
	}
	observability.ReconciliationCandidates.Inc()
	logger.WithFields(fields).WithError(cause).Error("reservation outcome unknown")

	err := o.store.InsertJournal(ctx, domain.JournalEntry{
		ID:            journalID,
		ReservationID: domain.UnknownReservationPrefix + journalID.String(),
		BookingID:     uuid.New(),
		OfferID:       req.Offer.ID,
		TripID:        req.TripID,
		UserID:        req.UserID,
		OrgID:         req.OrgID,
		Status:        domain.JournalReserved,
		CreatedAt:     now,
	})
	if err != nil {
		logger.WithFields(fields).WithError(err).Error("reservation journal write failed")
	}
}

func (o *Orchestrator) newBooking(req CreateRequest, res *domain.Reservation, now time.Time) domain.Booking {
	price, breakdown := res.Price, res.PriceBreakdown
	if price.Currency == "" {
		price = req.Offer.Price
	}
	if len(breakdown) == 0 {
		breakdown = req.Offer.PriceBreakdown
	}
	legs := res.Trips
	if len(legs) == 0 {
		legs = req.Offer.Trips
	}
	passengers := res.Passengers
	if len(passengers) == 0 {
		passengers = req.Passengers
	}
	return domain.Booking{
		ID:             uuid.New(),
		ReservationID:  res.ID,
		TripID:         req.TripID,
		UserID:         req.UserID,
		OrgID:          req.OrgID,
		OfferID:        req.Offer.ID,
		Total:          domain.BookingAmount(price, breakdown),
		Status:         domain.StatusPendingPayment,
		Passengers:     passengers,
		Trips:          legs,
		PriceBreakdown: breakdown,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (o *Orchestrator) requestApproval(ctx context.Context, b *domain.Booking, req CreateRequest) (*domain.ApprovalRequest, error) {
	td := domain.NewTravelData(req.Offer, req.Origin, req.Destination)
	td.BookingID = &b.ID
	approval, err := o.approvals.Create(ctx, b.OrgID, b.UserID, td, *req.Verdict)
	if err != nil {
		return nil, err
	}

	next := *b
	if err := next.Transition(domain.StatusPendingApproval, o.now().UTC()); err != nil {
		return approval, err
	}
	next.ApprovalRequestID = &approval.ID
	if err := o.store.SaveBooking(ctx, next, b.Status); err != nil {
		return approval, errors.Wrapf(err, "link approval %s to booking %s", approval.ID, b.ID)
	}
	observability.BookingTransitions.WithLabelValues(string(next.Status)).Inc()
	*b = next
	return approval, nil
}

// Confirm pays for a PENDING_PAYMENT booking and moves it to PAID.
func (o *Orchestrator) Confirm(ctx context.Context, id uuid.UUID, choices []domain.DeliveryChoice) (*domain.Booking, error) {
	logger := observability.LoggerFromContext(ctx, o.logger).WithField("booking_id", id)

	if err := o.validator.Validate(confirmRequest{Choices: choices}); err != nil {
		return nil, err
	}
	b, err := o.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	switch b.Status {
	case domain.StatusPendingPayment:
	case domain.StatusPendingApproval:
		return nil, errors.Mark(errors.Wrapf(domain.ErrApprovalPending, "booking %s", id), domain.ErrInvalidState)
	default:
		return nil, errors.Wrapf(domain.ErrInvalidState, "booking %s is %s", id, b.Status)
	}

	ctx = context.WithoutCancel(ctx)
	conf, err := o.provider.Confirm(ctx, b.ReservationID, choices)
	if err != nil {
		if errors.Is(err, domain.ErrOutcomeUnknown) {
			observability.ReconciliationCandidates.Inc()
			logger.WithField("reservation_id", b.ReservationID).WithError(err).Error("confirmation outcome unknown")
		}
		return nil, errors.Mark(errors.Wrapf(err, "confirm reservation %s", b.ReservationID), domain.ErrConfirmationFailed)
	}

	from := b.Status
	if err := b.Transition(domain.StatusPaid, o.now().UTC()); err != nil {
		return nil, err
	}
	ticket := conf.FirstTicket()
	b.Fulfillment = domain.Fulfillment{
		DeliveryOption:      choices[0].DeliveryOption,
		ConfirmationNumber:  conf.ConfirmationNumber,
		TicketURL:           ticket.URL,
		CollectionReference: ticket.CollectionReference,
	}

	paid := domain.NewEvent(domain.EventBookingPaid, domain.AggregateBooking, b.ID, b)
	if err := o.store.SaveBooking(ctx, *b, from, paid); err != nil {
		observability.ReconciliationCandidates.Inc()
		logger.WithFields(map[string]interface{}{
			"reservation_id":      b.ReservationID,
			"confirmation_number": conf.ConfirmationNumber,
			"user_id":             b.UserID,
		}).WithError(err).Error("payment confirmed upstream but booking not updated")
		return nil, errors.Mark(errors.Wrapf(err, "persist payment of booking %s", id), domain.ErrPersistenceFailed)
	}
	observability.BookingTransitions.WithLabelValues(string(b.Status)).Inc()

	if err := o.trips.Attach(ctx, b.TripID, b.ID); err != nil {
		logger.WithField("trip_id", b.TripID).WithError(err).Warn("could not attach paid booking to trip")
	}

	o.record(ctx, domain.EventBookingPaid, *b, map[string]interface{}{
		"confirmation_number": conf.ConfirmationNumber,
		"delivery_option":     b.Fulfillment.DeliveryOption,
	})
	return b, nil
}

type Resolution struct {
	Approval *domain.ApprovalRequest
	Booking  *domain.Booking
}

// ResolveApproval resolves the request and, when approved, releases the linked
// booking for payment. A rejected booking stays PENDING_APPROVAL.
func (o *Orchestrator) ResolveApproval(ctx context.Context, requestID uuid.UUID, action domain.ApprovalAction, approverID uuid.UUID, reason string) (*Resolution, error) {
	logger := observability.LoggerFromContext(ctx, o.logger).WithField("approval_id", requestID)

	approval, err := o.approvals.Resolve(ctx, requestID, action, approverID, reason)
	if err != nil {
		return nil, err
	}
	out := &Resolution{Approval: approval}
	if approval.TravelData.BookingID == nil {
		return out, nil
	}

	b, err := o.store.GetBooking(ctx, *approval.TravelData.BookingID)
	if err != nil {
		return nil, errors.Wrapf(err, "booking of approval %s", requestID)
	}
	out.Booking = b
	logger = logger.WithField("booking_id", b.ID)

	if approval.Status == domain.ApprovalRejected {
		logger.WithField("reason", reason).Warn("approval rejected, booking needs manual intervention")
		o.record(ctx, domain.EventApprovalResolved, *b, map[string]interface{}{"status": approval.Status, "reason": reason})
		return out, nil
	}
	if b.Status != domain.StatusPendingApproval {
		logger.WithField("status", b.Status).Warn("approved booking is no longer awaiting approval")
		return out, nil
	}

	from := b.Status
	if err := b.Transition(domain.StatusPendingPayment, o.now().UTC()); err != nil {
		return nil, err
	}
	if err := o.store.SaveBooking(ctx, *b, from); err != nil {
		return nil, errors.Wrapf(err, "release booking %s for payment", b.ID)
	}
	observability.BookingTransitions.WithLabelValues(string(b.Status)).Inc()
	logger.Info("approval granted, booking awaiting payment")
	o.record(ctx, domain.EventApprovalResolved, *b, map[string]interface{}{"status": approval.Status})
	return out, nil
}

// RefreshFulfillment asks the provider for ticket information of a PAID booking and
// moves it to CONFIRMED once tickets are issued.
func (o *Orchestrator) RefreshFulfillment(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	b, err := o.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status == domain.StatusConfirmed {
		return b, nil
	}
	if b.Status != domain.StatusPaid {
		return nil, errors.Wrapf(domain.ErrInvalidState, "booking %s is %s", id, b.Status)
	}

	conf, err := o.provider.Booking(ctx, b.ReservationID)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch reservation %s", b.ReservationID)
	}
	if !conf.Ticketed() && conf.Status != "fulfilled" {
		return b, nil
	}

	from := b.Status
	if err := b.Transition(domain.StatusConfirmed, o.now().UTC()); err != nil {
		return nil, err
	}
	if conf.ConfirmationNumber != "" {
		b.Fulfillment.ConfirmationNumber = conf.ConfirmationNumber
	}
	if ticket := conf.FirstTicket(); ticket != (domain.TicketRef{}) {
		b.Fulfillment.TicketURL = ticket.URL
		b.Fulfillment.CollectionReference = ticket.CollectionReference
	}
	confirmed := domain.NewEvent(domain.EventBookingConfirmed, domain.AggregateBooking, b.ID, b)
	if err := o.store.SaveBooking(ctx, *b, from, confirmed); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "persist fulfillment of booking %s", id), domain.ErrPersistenceFailed)
	}
	observability.BookingTransitions.WithLabelValues(string(b.Status)).Inc()
	o.record(ctx, domain.EventBookingConfirmed, *b, map[string]interface{}{"ticket_url": b.Fulfillment.TicketURL})
	return b, nil
}

// Cancel cancels the local record only; the provider reservation is left alone.
func (o *Orchestrator) Cancel(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	b, err := o.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	from := b.Status
	if err := b.Transition(domain.StatusCancelled, o.now().UTC()); err != nil {
		return nil, err
	}
	cancelled := domain.NewEvent(domain.EventBookingCancelled, domain.AggregateBooking, b.ID, b)
	if err := o.store.SaveBooking(ctx, *b, from, cancelled); err != nil {
		return nil, err
	}
	observability.BookingTransitions.WithLabelValues(string(b.Status)).Inc()
	o.record(ctx, domain.EventBookingCancelled, *b, map[string]interface{}{"from": from})
	return b, nil
}

func (o *Orchestrator) Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return o.store.GetBooking(ctx, id)
}

func (o *Orchestrator) ListByTrip(ctx context.Context, tripID uuid.UUID) ([]domain.Booking, error) {
	return o.store.ListBookings(ctx, domain.BookingFilter{TripID: &tripID})
}

func (o *Orchestrator) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error) {
	return o.store.ListBookings(ctx, domain.BookingFilter{UserID: &userID})
}

func (o *Orchestrator) record(ctx context.Context, action string, b domain.Booking, data map[string]interface{}) {
	if o.audit == nil {
		return
	}
	if err := o.audit.LogEvent(ctx, action, b.ID, b.UserID, data); err != nil {
		observability.LoggerFromContext(ctx, o.logger).WithError(err).WithField("booking_id", b.ID).Warn("audit log write failed")
	}
}
