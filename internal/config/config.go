package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr     string
	CRDBDSN      string
	MongoURI     string
	MongoDB      string
	RedisAddr    string
	RabbitURL    string
	OTLPEndpoint string

	ProviderBaseURL       string
	ProviderAPIKey        string
	ProviderMode          string
	ProviderLookupTimeout time.Duration
	ProviderPollInterval  time.Duration
	SearchPollTimeout     time.Duration
	ReturnPollTimeout     time.Duration

	PolicyEngineURL string
	PolicyMode      string
	PolicyTimeout   time.Duration

	SessionTTL      time.Duration
	IdempotencyTTL  time.Duration
	ProfileTimeout  time.Duration
	ReconcileGrace  time.Duration
	ReconcileEvery  time.Duration
	OutboxBatchSize int
	OutboxInterval  time.Duration
	TripAttachTries int

	RateLimitPerUser int
	RateLimitPerIP   int
	AuditQueue       string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		CRDBDSN:      os.Getenv("CRDB_DSN"),
		MongoURI:     os.Getenv("MONGO_URI"),
		MongoDB:      getEnv("MONGO_DB", "rail"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		RabbitURL:    os.Getenv("RABBIT_URL"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),

		ProviderBaseURL:       getEnv("PROVIDER_BASE_URL", "https://content-api.sandbox.junction.dev"),
		ProviderAPIKey:        os.Getenv("PROVIDER_API_KEY"),
		ProviderMode:          getEnv("PROVIDER_MODE", "live"),
		ProviderLookupTimeout: getDuration("PROVIDER_LOOKUP_TIMEOUT", 30*time.Second),
		ProviderPollInterval:  getDuration("PROVIDER_POLL_INTERVAL", time.Second),
		SearchPollTimeout:     getDuration("SEARCH_POLL_TIMEOUT", 30*time.Second),
		ReturnPollTimeout:     getDuration("RETURN_POLL_TIMEOUT", 50*time.Second),

		PolicyEngineURL: os.Getenv("POLICY_ENGINE_URL"),
		PolicyMode:      getEnv("POLICY_MODE", "local"),
		PolicyTimeout:   getDuration("POLICY_TIMEOUT", 10*time.Second),

		SessionTTL:      getDuration("SESSION_TTL", 30*time.Minute),
		IdempotencyTTL:  getDuration("IDEMPOTENCY_TTL", time.Hour),
		ProfileTimeout:  getDuration("PROFILE_TIMEOUT", 10*time.Second),
		ReconcileGrace:  getDuration("RECONCILE_GRACE", 2*time.Minute),
		ReconcileEvery:  getDuration("RECONCILE_INTERVAL", time.Minute),
		OutboxBatchSize: getInt("OUTBOX_BATCH_SIZE", 10),
		OutboxInterval:  getDuration("OUTBOX_INTERVAL", 5*time.Second),
		TripAttachTries: getInt("TRIP_ATTACH_TRIES", 5),

		RateLimitPerUser: getInt("RATE_LIMIT_PER_USER", 10),
		RateLimitPerIP:   getInt("RATE_LIMIT_PER_IP", 100),
		AuditQueue:       getEnv("AUDIT_QUEUE", "rail.audit"),
	}, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	d, _ := time.ParseDuration(os.Getenv(key))
	if d <= 0 {
		return def
	}
	return d
}

func getInt(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
