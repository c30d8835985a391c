package junction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
	"github.com/robertarktes/corporate-rail-bookings/internal/observability"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ProviderError is a non-2xx answer from the fare provider.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying the same call may succeed.
func (e *ProviderError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

var (
	errNoOffersYet = errors.New("no offers yet")
	// errNoAnswer marks calls that were sent but got no usable answer: transport
	// failures, cancelled contexts and unreadable success bodies.
	errNoAnswer = errors.New("no answer from provider")
)

type Options struct {
	BaseURL string
	APIKey  string
	// LookupTimeout bounds searches, offer polls and booking lookups. Reserve and
	// Confirm are bounded only by the caller's context.
	LookupTimeout time.Duration
	PollInterval  time.Duration
}

type Client struct {
	baseURL       string
	apiKey        string
	http          *http.Client
	lookupTimeout time.Duration
	pollInterval  time.Duration
	logger        observability.Logger
}

func NewClient(opts Options, logger observability.Logger) *Client {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		lookupTimeout: opts.LookupTimeout,
		pollInterval:  opts.PollInterval,
		logger:        logger,
	}
}

func (c *Client) lookup(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.lookupTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.lookupTimeout)
}

// unsettled marks an unanswered write as having an unknown outcome: the provider
// may have applied it.
func unsettled(err error) error {
	if errors.Is(err, errNoAnswer) {
		return errors.Mark(err, domain.ErrOutcomeUnknown)
	}
	return err
}

type passengerAge struct {
	DateOfBirth string `json:"dateOfBirth"`
}

type searchRequest struct {
	OriginID             string         `json:"originId"`
	DestinationID        string         `json:"destinationId"`
	DepartureAfter       string         `json:"departureAfter"`
	ReturnDepartureAfter string         `json:"returnDepartureAfter,omitempty"`
	PassengerAges        []passengerAge `json:"passengerAges"`
}

// noonUTC is how searches anchor a travel date.
func noonUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02") + "T12:00:00.000Z"
}

// CreateSearch starts an asynchronous fare search and returns its id.
func (c *Client) CreateSearch(ctx context.Context, q domain.SearchQuery) (string, error) {
	req := searchRequest{
		OriginID:       q.Origin,
		DestinationID:  q.Destination,
		DepartureAfter: noonUTC(q.DepartureDate),
	}
	if q.ReturnDate != nil {
		req.ReturnDepartureAfter = noonUTC(*q.ReturnDate)
	}
	for i := 0; i < q.Passengers; i++ {
		req.PassengerAges = append(req.PassengerAges, passengerAge{DateOfBirth: "1990-01-01"})
	}

	ctx, cancel := c.lookup(ctx)
	defer cancel()
	resp, err := c.do(ctx, "create_search", http.MethodPost, "/train-searches", req, nil)
	if err != nil {
		return "", err
	}
	location := strings.TrimRight(resp.Header.Get("Location"), "/")
	if location == "" {
		return "", errors.New("search created without Location header")
	}
	return location[strings.LastIndex(location, "/")+1:], nil
}

type offersResponse struct {
	Items []domain.Offer `json:"items"`
}

// Offers polls the offers of a search until some arrive or maxWait elapses. A search
// that produced nothing in time yields domain.ErrOffersNotReady. With a non-empty
// outboundOfferID the return offers matching that outbound offer are fetched.
func (c *Client) Offers(ctx context.Context, searchID, outboundOfferID string, maxWait time.Duration) ([]domain.Offer, error) {
	path := "/train-searches/" + searchID + "/offers"
	if outboundOfferID != "" {
		path += "?trainOfferId=" + outboundOfferID
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.pollInterval
	b.MaxInterval = 4 * c.pollInterval
	b.MaxElapsedTime = maxWait

	var offers []domain.Offer
	attempt := 0
	op := func() error {
		attempt++
		var body offersResponse
		pollCtx, cancel := c.lookup(ctx)
		_, err := c.do(pollCtx, "poll_offers", http.MethodGet, path, nil, &body)
		cancel()
		if err != nil {
			var perr *ProviderError
			if errors.As(err, &perr) && !perr.Temporary() {
				return backoff.Permanent(err)
			}
			return err
		}
		if len(body.Items) == 0 {
			return errNoOffersYet
		}
		offers = body.Items
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(b, ctx))
	if errors.Is(err, errNoOffersYet) {
		c.logger.WithFields(map[string]interface{}{
			"search_id": searchID,
			"attempts":  attempt,
		}).Warn("offers not ready before poll deadline")
		return nil, errors.Wrapf(domain.ErrOffersNotReady, "search %s after %d polls", searchID, attempt)
	}
	if err != nil {
		return nil, err
	}
	return offers, nil
}

type address struct {
	StreetAddress string `json:"streetAddress"`
	PostalCode    string `json:"postalCode"`
	City          string `json:"city"`
	CountryCode   string `json:"countryCode"`
}

type bookingPassenger struct {
	DateOfBirth         string    `json:"dateOfBirth"`
	FirstName           string    `json:"firstName"`
	LastName            string    `json:"lastName"`
	Gender              string    `json:"gender"`
	Email               string    `json:"email"`
	PhoneNumber         string    `json:"phoneNumber"`
	PassportInformation *struct{} `json:"passportInformation"`
	ResidentialAddress  address   `json:"residentialAddress"`
}

type reserveRequest struct {
	OfferID    string             `json:"offerId"`
	Passengers []bookingPassenger `json:"passengers"`
}

type ticketInformation struct {
	TicketURL           string `json:"ticketUrl"`
	CollectionReference string `json:"collectionReference"`
}

type bookingHeader struct {
	ID                 string     `json:"id"`
	Status             string     `json:"status"`
	ConfirmationNumber string     `json:"confirmationNumber"`
	ExpiresAt          *time.Time `json:"expiresAt"`
}

// bookingResponse covers both shapes the provider answers with: the booking fields at
// the top level, or nested under "booking" next to price and trips.
type bookingResponse struct {
	bookingHeader
	Booking           *bookingHeader          `json:"booking"`
	Price             domain.Money            `json:"price"`
	PriceBreakdown    []domain.PriceBreakdown `json:"priceBreakdown"`
	Passengers        []domain.Passenger      `json:"passengers"`
	Trips             []domain.Leg            `json:"trips"`
	TicketInformation []ticketInformation     `json:"ticketInformation"`
}

func (r bookingResponse) header() bookingHeader {
	h := r.bookingHeader
	if r.Booking != nil {
		if r.Booking.ID != "" {
			h.ID = r.Booking.ID
		}
		if r.Booking.Status != "" {
			h.Status = r.Booking.Status
		}
		if r.Booking.ConfirmationNumber != "" {
			h.ConfirmationNumber = r.Booking.ConfirmationNumber
		}
		if r.Booking.ExpiresAt != nil {
			h.ExpiresAt = r.Booking.ExpiresAt
		}
	}
	return h
}

func (r bookingResponse) confirmation() *domain.Confirmation {
	h := r.header()
	conf := &domain.Confirmation{Status: h.Status, ConfirmationNumber: h.ConfirmationNumber}
	for _, t := range r.TicketInformation {
		conf.Tickets = append(conf.Tickets, domain.TicketRef{URL: t.TicketURL, CollectionReference: t.CollectionReference})
	}
	return conf
}

// Reserve holds offerID for the passengers. The reservation is not paid for yet.
func (c *Client) Reserve(ctx context.Context, offerID string, passengers []domain.Passenger) (*domain.Reservation, error) {
	req := reserveRequest{OfferID: offerID}
	for _, p := range passengers {
		req.Passengers = append(req.Passengers, bookingPassenger{
			DateOfBirth: p.DateOfBirth,
			FirstName:   p.FirstName,
			LastName:    p.LastName,
			Gender:      p.Gender,
			Email:       p.Email,
			PhoneNumber: p.PhoneNumber,
			ResidentialAddress: address{
				StreetAddress: p.ResidentialAddress.StreetAddress,
				PostalCode:    p.ResidentialAddress.PostalCode,
				City:          p.ResidentialAddress.City,
				CountryCode:   p.ResidentialAddress.CountryCode,
			},
		})
	}

	var body bookingResponse
	resp, err := c.do(ctx, "reserve", http.MethodPost, "/bookings", req, &body)
	if err != nil {
		return nil, unsettled(err)
	}
	h := body.header()
	if h.ID == "" {
		h.ID = idFromLocation(resp.Header.Get("Location"), "bookings")
	}
	if h.ID == "" {
		return nil, errors.Mark(errors.New("reservation created without an id"), domain.ErrOutcomeUnknown)
	}
	return &domain.Reservation{
		ID:             h.ID,
		Status:         h.Status,
		ExpiresAt:      h.ExpiresAt,
		Price:          body.Price,
		PriceBreakdown: body.PriceBreakdown,
		Passengers:     body.Passengers,
		Trips:          body.Trips,
	}, nil
}

type confirmRequest struct {
	FulfillmentChoices []domain.DeliveryChoice `json:"fulfillmentChoices"`
}

func (c *Client) Confirm(ctx context.Context, reservationID string, choices []domain.DeliveryChoice) (*domain.Confirmation, error) {
	var body bookingResponse
	if _, err := c.do(ctx, "confirm", http.MethodPost, "/bookings/"+reservationID+"/confirm", confirmRequest{FulfillmentChoices: choices}, &body); err != nil {
		return nil, unsettled(err)
	}
	return body.confirmation(), nil
}

func (c *Client) Booking(ctx context.Context, reservationID string) (*domain.Confirmation, error) {
	ctx, cancel := c.lookup(ctx)
	defer cancel()
	var body bookingResponse
	if _, err := c.do(ctx, "get_booking", http.MethodGet, "/bookings/"+reservationID, nil, &body); err != nil {
		return nil, err
	}
	return body.confirmation(), nil
}

func idFromLocation(location, collection string) string {
	parts := strings.Split(strings.Trim(location, "/"), "/")
	if len(parts) >= 2 && parts[len(parts)-2] == collection {
		return parts[len(parts)-1]
	}
	return ""
}

func (c *Client) do(ctx context.Context, operation, method, path string, in, out interface{}) (*http.Response, error) {
	start := time.Now()
	outcome := "error"
	defer func() {
		observability.ProviderCallDuration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
	}()

	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, errors.Wrapf(err, "marshal %s request", operation)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, errors.Wrapf(err, "build %s request", operation)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "%s request", operation), errNoAnswer)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "read %s response", operation), errNoAnswer)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.WithFields(map[string]interface{}{
			"operation": operation,
			"status":    resp.StatusCode,
		}).Warn("provider call failed")
		return nil, errors.WithStack(&ProviderError{StatusCode: resp.StatusCode, Body: string(data)})
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "decode %s response", operation), errNoAnswer)
		}
	}
	outcome = "ok"
	return resp, nil
}
