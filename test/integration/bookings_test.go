package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/robertarktes/corporate-rail-bookings/internal/adapters/crdb"
	"github.com/robertarktes/corporate-rail-bookings/internal/adapters/junction"
	mongoadapter "github.com/robertarktes/corporate-rail-bookings/internal/adapters/mongo"
	"github.com/robertarktes/corporate-rail-bookings/internal/adapters/rabbit"
	redisadapter "github.com/robertarktes/corporate-rail-bookings/internal/adapters/redis"
	"github.com/robertarktes/corporate-rail-bookings/internal/approval"
	"github.com/robertarktes/corporate-rail-bookings/internal/booking"
	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
	httphandler "github.com/robertarktes/corporate-rail-bookings/internal/http"
	"github.com/robertarktes/corporate-rail-bookings/internal/idempotency"
	"github.com/robertarktes/corporate-rail-bookings/internal/observability"
	"github.com/robertarktes/corporate-rail-bookings/internal/outbox"
	"github.com/robertarktes/corporate-rail-bookings/internal/policy"
	"github.com/robertarktes/corporate-rail-bookings/internal/policy/rules"
	"github.com/robertarktes/corporate-rail-bookings/internal/profile"
	"github.com/robertarktes/corporate-rail-bookings/internal/rateLimit"
	"github.com/robertarktes/corporate-rail-bookings/internal/session"
	"github.com/robertarktes/corporate-rail-bookings/internal/trip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func startContainer(t *testing.T, ctx context.Context, req testcontainers.ContainerRequest, port string) string {
	t.Helper()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	mapped, err := c.MappedPort(ctx, nat.Port(port))
	require.NoError(t, err)
	return host + ":" + mapped.Port()
}

type env struct {
	server   *httptest.Server
	repo     *crdb.Repository
	audit    *mongoadapter.AuditLogger
	rabbit   *amqp.Connection
	userID   uuid.UUID
	orgID    uuid.UUID
	approver uuid.UUID
}

func setup(t *testing.T) *env {
	if testing.Short() {
		t.Skip("integration test")
	}
	ctx := context.Background()

	crdbAddr := startContainer(t, ctx, testcontainers.ContainerRequest{
		Image:        "cockroachdb/cockroach:v24.1.1",
		Cmd:          []string{"start-single-node", "--insecure"},
		ExposedPorts: []string{"26257/tcp", "8080/tcp"},
		WaitingFor:   wait.ForHTTP("/health?ready=1").WithPort("8080"),
	}, "26257")
	mongoAddr := startContainer(t, ctx, testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForLog("Waiting for connections"),
	}, "27017")
	redisAddr := startContainer(t, ctx, testcontainers.ContainerRequest{
		Image:        "redis:7",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForExec([]string{"redis-cli", "ping"}),
	}, "6379")
	rabbitAddr := startContainer(t, ctx, testcontainers.ContainerRequest{
		Image:        "rabbitmq:3.13-management",
		ExposedPorts: []string{"5672/tcp", "15672/tcp"},
		WaitingFor:   wait.ForHTTP("/api/health/checks/alarms").WithPort("15672").WithBasicAuth("guest", "guest"),
	}, "5672")

	logger := observability.NewNopLogger()

	pool, err := pgxpool.New(ctx, "postgresql://root@"+crdbAddr+"/defaultdb?sslmode=disable")
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	repo := crdb.NewRepository(pool)
	require.NoError(t, repo.Migrate(ctx))

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://"+mongoAddr))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mongoClient.Disconnect(context.Background()) })
	db := mongoClient.Database("rail")

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: redisAddr})
	cache := redisadapter.NewCache(redisClient)

	conn, err := amqp.Dial("amqp://guest:guest@" + rabbitAddr + "/")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	e := &env{
		repo:     repo,
		audit:    mongoadapter.NewAuditLogger(db, logger),
		rabbit:   conn,
		userID:   uuid.New(),
		orgID:    uuid.New(),
		approver: uuid.New(),
	}

	directory := mongoadapter.NewDirectory(db, logger)
	require.NoError(t, directory.UpsertOrganization(ctx, domain.Organization{ID: e.orgID, Name: "Acme"}))
	require.NoError(t, directory.UpsertUser(ctx, domain.User{
		ID: e.userID, Email: "ada@acme.test", FirstName: "Ada", LastName: "Lovelace", OrgIDs: []uuid.UUID{e.orgID},
	}))

	policies := mongoadapter.NewPolicyRepository(db, logger)
	require.NoError(t, policies.Upsert(ctx, domain.Policy{
		ID:        uuid.New(),
		OrgID:     e.orgID,
		Label:     "Standard class only",
		Active:    true,
		Action:    domain.ActionRequire,
		Approvers: []uuid.UUID{e.approver},
		Rules: []domain.PolicyRule{{
			ID:     uuid.New(),
			Code:   rules.CodeClassMax,
			Vars:   domain.RuleVars{MaxClass: "STANDARD"},
			Active: true,
		}},
	}))

	fares := junction.NewMock()
	approvals := approval.NewService(repo, logger)
	trips := trip.NewService(repo, 5, logger)
	handlers := httphandler.NewHandlers(httphandler.Services{
		Sessions: session.NewService(fares, redisadapter.NewSessionStore(cache, 30*time.Minute), session.Options{
			SearchWait: 5 * time.Second,
			ReturnWait: 5 * time.Second,
		}, logger),
		Policies:  policy.NewClient(rules.NewEngine(policies, logger), logger),
		Bookings:  booking.NewOrchestrator(fares, repo, approvals, trips, e.audit, logger),
		Approvals: approvals,
		Trips:     trips,
		Profiles:  profile.NewService(directory, 5*time.Second, logger),
		Checks: map[string]httphandler.Check{
			"crdb":  repo.Ping,
			"redis": cache.Ping,
		},
	}, logger)

	limits := httphandler.RateLimits{
		PerUser: rateLimit.Rule{Rate: 1000, Period: time.Minute},
		PerIP:   rateLimit.Rule{Rate: 1000, Period: time.Minute},
	}
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), time.Hour)
	e.server = httptest.NewServer(httphandler.SetupRouter(handlers, logger, rateLimit.NewRateLimiter(cache), limits, idemp))
	t.Cleanup(e.server.Close)
	return e
}

func (e *env) do(t *testing.T, method, path string, body interface{}, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(httphandler.HeaderUserID, e.userID.String())
	if method == http.MethodPost && path == "/v1/bookings" {
		req.Header.Set(httphandler.HeaderIdempotencyKey, uuid.NewString())
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type bookingResponse struct {
	Booking  domain.Booking          `json:"booking"`
	Policy   domain.PolicyVerdict    `json:"policy"`
	Approval *domain.ApprovalRequest `json:"approval"`
}

func passengers() []domain.Passenger {
	return []domain.Passenger{{
		FirstName:   "Ada",
		LastName:    "Lovelace",
		DateOfBirth: "1990-12-10",
		Gender:      "female",
		Email:       "ada@acme.test",
		PhoneNumber: "+33123456789",
		ResidentialAddress: domain.Address{
			StreetAddress: "1 Rue de Rivoli",
			PostalCode:    "75001",
			City:          "Paris",
			CountryCode:   "FR",
		},
	}}
}

func TestIntegration_SearchBookConfirmAndAudit(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	var created domain.Trip
	code := e.do(t, http.MethodPost, "/v1/trips", map[string]interface{}{
		"name": "Lyon offsite", "owner_id": e.userID, "org_id": e.orgID,
	}, &created)
	require.Equal(t, http.StatusCreated, code)

	var search struct {
		SessionID string             `json:"session_id"`
		Offers    []policy.Evaluated `json:"offers"`
	}
	code = e.do(t, http.MethodPost, "/v1/searches", map[string]interface{}{
		"origin":         "Paris",
		"destination":    "Lyon",
		"departure_date": time.Now().AddDate(0, 0, 14).Format(time.DateOnly),
		"passengers":     1,
		"user_id":        e.userID,
		"org_id":         e.orgID,
	}, &search)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, search.Offers, 2)
	assert.Equal(t, domain.VerdictInPolicy, search.Offers[0].Policy.Result)
	assert.Equal(t, domain.VerdictApprovalRequired, search.Offers[1].Policy.Result)

	// in policy: straight to payment, then confirmed once tickets are issued
	var standard bookingResponse
	code = e.do(t, http.MethodPost, "/v1/bookings", map[string]interface{}{
		"session_id": search.SessionID,
		"offer_id":   search.Offers[0].ID,
		"trip_id":    created.ID,
		"user_id":    e.userID,
		"org_id":     e.orgID,
		"passengers": passengers(),
	}, &standard)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, domain.StatusPendingPayment, standard.Booking.Status)
	assert.Nil(t, standard.Approval)

	bookingPath := "/v1/bookings/" + standard.Booking.ID.String()
	var paid domain.Booking
	code = e.do(t, http.MethodPost, bookingPath+"/confirm", map[string]interface{}{
		"delivery_choices": []domain.DeliveryChoice{{DeliveryOption: "electronic-ticket", SegmentSequence: 1}},
	}, &paid)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, domain.StatusPaid, paid.Status)
	assert.NotEmpty(t, paid.Fulfillment.ConfirmationNumber)

	var confirmed domain.Booking
	code = e.do(t, http.MethodPost, bookingPath+"/fulfillment", nil, &confirmed)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, domain.StatusConfirmed, confirmed.Status)

	var withBooking domain.Trip
	code = e.do(t, http.MethodGet, "/v1/trips/"+created.ID.String(), nil, &withBooking)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, withBooking.BookingIDs, standard.Booking.ID)

	// first class needs a manager
	var first bookingResponse
	code = e.do(t, http.MethodPost, "/v1/bookings", map[string]interface{}{
		"session_id": search.SessionID,
		"offer_id":   search.Offers[1].ID,
		"trip_id":    created.ID,
		"user_id":    e.userID,
		"org_id":     e.orgID,
		"passengers": passengers(),
	}, &first)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, domain.StatusPendingApproval, first.Booking.Status)
	require.NotNil(t, first.Approval)

	code = e.do(t, http.MethodPost, "/v1/bookings/"+first.Booking.ID.String()+"/confirm", map[string]interface{}{
		"delivery_choices": []domain.DeliveryChoice{{DeliveryOption: "electronic-ticket", SegmentSequence: 1}},
	}, nil)
	assert.Equal(t, http.StatusConflict, code)

	code = e.do(t, http.MethodPost, "/v1/approvals/"+first.Approval.ID.String()+"/resolve", map[string]interface{}{
		"action": domain.ActionApprove, "approver_id": e.approver, "reason": "client meeting",
	}, nil)
	require.Equal(t, http.StatusOK, code)

	var approved domain.Booking
	code = e.do(t, http.MethodGet, "/v1/bookings/"+first.Booking.ID.String(), nil, &approved)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, domain.StatusPendingPayment, approved.Status)

	// domain events reach the audit log through the outbox and the broker
	pub, err := rabbit.NewPublisher(e.rabbit)
	require.NoError(t, err)
	defer pub.Close()
	consumer, err := rabbit.NewConsumer(e.rabbit, "rail.audit.test", "#")
	require.NoError(t, err)
	defer consumer.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	deliveries, err := consumer.Consume(runCtx)
	require.NoError(t, err)
	go outbox.NewAuditConsumer(e.audit, observability.NewNopLogger()).Run(runCtx, deliveries)

	publisher := outbox.NewPublisher(e.repo, pub, 100, observability.NewNopLogger())
	n, err := publisher.PublishBatch(ctx)
	require.NoError(t, err)
	assert.Positive(t, n)

	require.Eventually(t, func() bool {
		logs, err := e.audit.ListByAggregate(ctx, standard.Booking.ID)
		if err != nil {
			return false
		}
		actions := map[string]bool{}
		for _, l := range logs {
			actions[l.Action] = true
		}
		return actions["booking.created"] && actions["booking.paid"] && actions["booking.confirmed"]
	}, 10*time.Second, 200*time.Millisecond)
}
