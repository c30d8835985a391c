package session

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
	"github.com/robertarktes/corporate-rail-bookings/internal/observability"
)

const (
	AdvisorySearchTimeout = "Search timed out, please try again"
	AdvisoryReturnTimeout = "Return search timed out, please try again"
)

type Provider interface {
	CreateSearch(ctx context.Context, q domain.SearchQuery) (string, error)
	Offers(ctx context.Context, searchID, outboundOfferID string, maxWait time.Duration) ([]domain.Offer, error)
}

type Store interface {
	Save(ctx context.Context, sess domain.OfferSession) error
	Get(ctx context.Context, id string) (*domain.OfferSession, error)
	Activate(ctx context.Context, userID uuid.UUID, sessionID string) (string, error)
	// Update applies fn to the current stored copy and saves the result unless the
	// session changed meanwhile. Errors from fn are returned as is.
	Update(ctx context.Context, id string, fn func(*domain.OfferSession) error) error
}

type Options struct {
	SearchWait time.Duration
	ReturnWait time.Duration
}

type Service struct {
	provider Provider
	store    Store
	opts     Options
	now      func() time.Time
	logger   observability.Logger
}

func NewService(provider Provider, store Store, opts Options, logger observability.Logger) *Service {
	return &Service{provider: provider, store: store, opts: opts, now: time.Now, logger: logger}
}

// WithClock replaces the time source. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type SearchRequest struct {
	Origin        string
	Destination   string
	DepartureDate time.Time
	ReturnDate    *time.Time
	Passengers    int
	UserID        uuid.UUID
	OrgID         uuid.UUID
}

type SearchResult struct {
	SessionID       string         `json:"session_id"`
	Offers          []domain.Offer `json:"offers"`
	AdvisoryMessage string         `json:"advisory_message,omitempty"`
}

type ReturnResult struct {
	ReturnOffers    []domain.Offer `json:"return_offers"`
	AdvisoryMessage string         `json:"advisory_message,omitempty"`
}

func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Service) validate(req SearchRequest) error {
	origin, destination := strings.TrimSpace(req.Origin), strings.TrimSpace(req.Destination)
	switch {
	case origin == "" || destination == "":
		return invalidSearch("origin and destination are required")
	case origin == destination:
		return invalidSearch("origin and destination must differ")
	case req.DepartureDate.IsZero():
		return invalidSearch("departure date is required")
	case day(req.DepartureDate).Before(day(s.now())):
		return invalidSearch("departure date %s is in the past", req.DepartureDate.Format(time.DateOnly))
	case req.ReturnDate != nil && day(*req.ReturnDate).Before(day(req.DepartureDate)):
		return invalidSearch("return date is before departure date")
	case req.Passengers < 1:
		return invalidSearch("at least one passenger is required")
	case req.UserID == uuid.Nil:
		return invalidSearch("user is required")
	case req.OrgID == uuid.Nil:
		return invalidSearch("organization is required")
	}
	return nil
}

// invalidSearch reports a search the provider was never asked to run.
func invalidSearch(format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(domain.ErrSearch, format, args...), domain.ErrInvalidInput)
}

// Search runs a fare search and opens a session for it. The user's previous session
// is superseded. A provider that produced no offers in time is not an error: the
// result is empty and carries an advisory message.
func (s *Service) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	logger := observability.LoggerFromContext(ctx, s.logger)

	q := domain.SearchQuery{
		Origin:        strings.TrimSpace(req.Origin),
		Destination:   strings.TrimSpace(req.Destination),
		DepartureDate: req.DepartureDate,
		ReturnDate:    req.ReturnDate,
		Passengers:    req.Passengers,
	}
	searchID, err := s.provider.CreateSearch(ctx, q)
	if err != nil {
		logger.WithError(err).Error("failed to create search")
		return nil, errors.Mark(errors.Wrap(err, "create search"), domain.ErrSearch)
	}

	result := &SearchResult{SessionID: searchID, Offers: []domain.Offer{}}
	offers, err := s.provider.Offers(ctx, searchID, "", s.opts.SearchWait)
	switch {
	case errors.Is(err, domain.ErrOffersNotReady):
		result.AdvisoryMessage = AdvisorySearchTimeout
	case err != nil:
		logger.WithError(err).WithField("search_id", searchID).Error("failed to fetch offers")
		return nil, errors.Mark(errors.Wrap(err, "fetch offers"), domain.ErrSearch)
	default:
		result.Offers = offers
	}

	sess := domain.OfferSession{
		ID:            searchID,
		UserID:        req.UserID,
		OrgID:         req.OrgID,
		Origin:        q.Origin,
		Destination:   q.Destination,
		DepartureDate: q.DepartureDate,
		ReturnDate:    q.ReturnDate,
		Passengers:    q.Passengers,
		Outbound:      result.Offers,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, errors.Wrap(err, "save session")
	}
	prev, err := s.store.Activate(ctx, req.UserID, searchID)
	if err != nil {
		return nil, errors.Wrap(err, "activate session")
	}
	if prev != "" && prev != searchID {
		if err := s.supersede(ctx, prev); err != nil {
			logger.WithError(err).WithField("session_id", prev).Warn("failed to supersede previous session")
		}
	}
	return result, nil
}

func (s *Service) supersede(ctx context.Context, id string) error {
	err := s.store.Update(ctx, id, func(sess *domain.OfferSession) error {
		sess.Supersede()
		return nil
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

// load returns a session that still accepts selections.
func (s *Service) load(ctx context.Context, id string) (*domain.OfferSession, error) {
	sess, err := s.store.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, errors.Mark(errors.Wrapf(err, "session %s expired or unknown", id), domain.ErrInvalidSessionState)
	}
	if err != nil {
		return nil, err
	}
	if sess.Superseded {
		return nil, errors.Wrapf(domain.ErrInvalidSessionState, "session %s was replaced by a newer search", id)
	}
	return sess, nil
}

// SelectOutboundForReturn records the chosen outbound offer and fetches the matching
// return offers.
func (s *Service) SelectOutboundForReturn(ctx context.Context, sessionID, outboundOfferID string) (*ReturnResult, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.RoundTrip() {
		return nil, errors.Wrapf(domain.ErrInvalidSessionState, "session %s has no return date", sessionID)
	}
	if _, ok := sess.OutboundOffer(outboundOfferID); !ok {
		return nil, errors.Wrapf(domain.ErrInvalidSessionState, "offer %s is not an outbound offer of session %s", outboundOfferID, sessionID)
	}

	result := &ReturnResult{ReturnOffers: []domain.Offer{}}
	offers, err := s.provider.Offers(ctx, sessionID, outboundOfferID, s.opts.ReturnWait)
	switch {
	case errors.Is(err, domain.ErrOffersNotReady):
		result.AdvisoryMessage = AdvisoryReturnTimeout
	case err != nil:
		observability.LoggerFromContext(ctx, s.logger).WithError(err).WithField("session_id", sessionID).Error("failed to fetch return offers")
		return nil, errors.Mark(errors.Wrap(err, "fetch return offers"), domain.ErrSearch)
	default:
		result.ReturnOffers = offers
	}

	err = s.store.Update(ctx, sessionID, func(cur *domain.OfferSession) error {
		if cur.Superseded {
			return errors.Wrapf(domain.ErrInvalidSessionState, "session %s was replaced by a newer search", sessionID)
		}
		cur.SelectedOutboundID = outboundOfferID
		cur.Return = result.ReturnOffers
		return nil
	})
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil, errors.Mark(errors.Wrapf(err, "session %s expired", sessionID), domain.ErrInvalidSessionState)
	case errors.Is(err, domain.ErrInvalidSessionState):
		return nil, err
	case err != nil:
		return nil, errors.Wrap(err, "save session")
	}
	return result, nil
}

// Offer resolves an outbound or return offer of a live session for booking.
func (s *Service) Offer(ctx context.Context, sessionID, offerID string) (*domain.OfferSession, domain.Offer, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, domain.Offer{}, err
	}
	offer, ok := sess.Offer(offerID)
	if !ok {
		return nil, domain.Offer{}, errors.Wrapf(domain.ErrInvalidSessionState, "offer %s is not part of session %s", offerID, sessionID)
	}
	return sess, offer, nil
}
