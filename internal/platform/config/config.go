package config

import (
	"os"
	"time"
)

// Config captures process-level configuration. The Accredible token and the
// region flag live here so nothing reads them from globals at call sites.
type Config struct {
	Addr          string
	JWTSigningKey string

	// Issuer API settings.
	APIKey      string
	EURegion    bool
	EndpointDev string // ACCREDIBLE_DEV_API_ENDPOINT, bypasses region selection

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	// HostBaseURL is the public base URL of the host LMS, used to build
	// course links on groups and legacy issuances.
	HostBaseURL string

	PostgresDSN string
	RedisURL    string

	KafkaBrokers string
	KafkaTopic   string
}

// GroupCacheTTL bounds how long the cached group directory may be served.
var GroupCacheTTL = 5 * time.Minute

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	addr := os.Getenv("CREDBRIDGE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	topic := os.Getenv("KAFKA_EVENTS_TOPIC")
	if topic == "" {
		topic = "credbridge.credential-events"
	}

	return Config{
		Addr:           addr,
		JWTSigningKey:  jwtSigningKey,
		APIKey:         os.Getenv("ACCREDIBLE_API_KEY"),
		EURegion:       os.Getenv("ACCREDIBLE_EU_REGION") == "true",
		EndpointDev:    os.Getenv("ACCREDIBLE_DEV_API_ENDPOINT"),
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    30 * time.Second,
		HostBaseURL:    os.Getenv("CREDBRIDGE_HOST_BASE_URL"),
		PostgresDSN:    os.Getenv("POSTGRES_DSN"),
		RedisURL:       os.Getenv("REDIS_URL"),
		KafkaBrokers:   os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:     topic,
	}
}
