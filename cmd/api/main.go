package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/robertarktes/corporate-rail-bookings/internal/adapters/crdb"
	"github.com/robertarktes/corporate-rail-bookings/internal/adapters/junction"
	mongoadapter "github.com/robertarktes/corporate-rail-bookings/internal/adapters/mongo"
	"github.com/robertarktes/corporate-rail-bookings/internal/adapters/policyengine"
	redisadapter "github.com/robertarktes/corporate-rail-bookings/internal/adapters/redis"
	"github.com/robertarktes/corporate-rail-bookings/internal/approval"
	"github.com/robertarktes/corporate-rail-bookings/internal/booking"
	"github.com/robertarktes/corporate-rail-bookings/internal/config"
	httphandler "github.com/robertarktes/corporate-rail-bookings/internal/http"
	"github.com/robertarktes/corporate-rail-bookings/internal/idempotency"
	"github.com/robertarktes/corporate-rail-bookings/internal/observability"
	"github.com/robertarktes/corporate-rail-bookings/internal/policy"
	"github.com/robertarktes/corporate-rail-bookings/internal/policy/rules"
	"github.com/robertarktes/corporate-rail-bookings/internal/profile"
	"github.com/robertarktes/corporate-rail-bookings/internal/rateLimit"
	"github.com/robertarktes/corporate-rail-bookings/internal/session"
	"github.com/robertarktes/corporate-rail-bookings/internal/trip"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type provider interface {
	session.Provider
	booking.Provider
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg, "rail-api")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	crdbRepo := crdb.NewRepository(pool)
	if err := crdbRepo.Migrate(context.Background()); err != nil {
		log.Fatalf("failed to migrate crdb: %v", err)
	}

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database(cfg.MongoDB)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisCache := redisadapter.NewCache(redisClient)
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), cfg.IdempotencyTTL)
	rl := rateLimit.NewRateLimiter(redisCache)

	var fares provider
	if cfg.ProviderMode == "mock" {
		logger.Warn("using in-memory fare provider")
		fares = junction.NewMock()
	} else {
		fares = junction.NewClient(junction.Options{
			BaseURL:       cfg.ProviderBaseURL,
			APIKey:        cfg.ProviderAPIKey,
			LookupTimeout: cfg.ProviderLookupTimeout,
			PollInterval:  cfg.ProviderPollInterval,
		}, logger)
	}

	var engine policy.Engine
	if cfg.PolicyMode == "remote" {
		engine = policyengine.NewClient(cfg.PolicyEngineURL, cfg.PolicyTimeout)
	} else {
		engine = rules.NewEngine(mongoadapter.NewPolicyRepository(mongoDB, logger), logger)
	}

	sessions := session.NewService(fares, redisadapter.NewSessionStore(redisCache, cfg.SessionTTL), session.Options{
		SearchWait: cfg.SearchPollTimeout,
		ReturnWait: cfg.ReturnPollTimeout,
	}, logger)
	approvals := approval.NewService(crdbRepo, logger)
	trips := trip.NewService(crdbRepo, cfg.TripAttachTries, logger)
	orchestrator := booking.NewOrchestrator(fares, crdbRepo, approvals, trips, mongoadapter.NewAuditLogger(mongoDB, logger), logger)

	handlers := httphandler.NewHandlers(httphandler.Services{
		Sessions:  sessions,
		Policies:  policy.NewClient(engine, logger),
		Bookings:  orchestrator,
		Approvals: approvals,
		Trips:     trips,
		Profiles:  profile.NewService(mongoadapter.NewDirectory(mongoDB, logger), cfg.ProfileTimeout, logger),
		Checks: map[string]httphandler.Check{
			"crdb":  crdbRepo.Ping,
			"redis": redisCache.Ping,
			"mongo": func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
		},
	}, logger)

	limits := httphandler.RateLimits{
		PerUser: rateLimit.Rule{Rate: cfg.RateLimitPerUser, Period: time.Minute},
		PerIP:   rateLimit.Rule{Rate: cfg.RateLimitPerIP, Period: time.Minute},
	}
	r := httphandler.SetupRouter(handlers, logger, rl, limits, idemp)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()
	logger.WithField("addr", cfg.HTTPAddr).Info("Server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
