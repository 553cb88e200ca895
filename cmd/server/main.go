package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/lib/pq"

	"credbridge/internal/directory"
	"credbridge/internal/engine"
	"credbridge/internal/event"
	"credbridge/internal/formhelper"
	"credbridge/internal/hoststore"
	"credbridge/internal/instance"
	"credbridge/internal/issuer"
	jwttoken "credbridge/internal/jwt_token"
	"credbridge/internal/platform/config"
	"credbridge/internal/platform/events"
	"credbridge/internal/platform/httpserver"
	"credbridge/internal/platform/logger"
	"credbridge/internal/platform/metrics"
	platformredis "credbridge/internal/platform/redis"
	"credbridge/internal/resolver"
	httptransport "credbridge/internal/transport/http"
)

// tokenIssuer and tokenAudience pin the JWT claims the host must present.
const (
	tokenIssuer   = "credbridge"
	tokenAudience = "credbridge-api"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	var (
		host      hostReader
		instStore instance.Store
		checks    = map[string]httptransport.HealthChecker{}
	)
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(context.Background()); err != nil {
			log.Error("ping postgres", "error", err)
			os.Exit(1)
		}
		host = hoststore.NewPostgres(db)
		instStore = instance.NewPostgres(db)
		checks["postgres"] = dbHealth{db: db}
	} else {
		log.Warn("POSTGRES_DSN not set, using in-memory stores")
		host = hoststore.NewMemoryStore()
		instStore = instance.NewMemoryStore()
	}

	cache, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if cache != nil {
		defer cache.Close()
		checks["redis"] = cache
	}

	var sink event.Sink
	kafka, err := events.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, log)
	if err != nil {
		log.Error("connect kafka", "error", err)
		os.Exit(1)
	}
	if kafka != nil {
		defer kafka.Close()
		sink = kafka
	}

	issuerClient := issuer.New(issuer.Config{
		APIKey:         cfg.APIKey,
		EURegion:       cfg.EURegion,
		Endpoint:       cfg.EndpointDev,
		ConnectTimeout: cfg.ConnectTimeout,
		ReadTimeout:    cfg.ReadTimeout,
	}, log, m)

	instances := instance.NewService(instStore, log)
	groups := directory.NewGroups(issuerClient, instances, cache, config.GroupCacheTTL, log, m)
	creds := directory.NewCredentials(issuerClient, sink, log, m)
	attrs := resolver.New(host, log)
	eng := engine.New(host, instances, creds, groups, issuerClient, attrs, sink, cfg.HostBaseURL, log, m)
	forms := formhelper.New(host, issuerClient, log)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, tokenIssuer, tokenAudience)
	validator := jwttoken.NewJWTServiceAdapter(jwtService)

	eventsHandler := httptransport.NewEventsHandler(eng, validator, log, m)
	adminHandler := httptransport.NewAdminHandler(instances, groups, forms, issuerClient, host,
		cfg.HostBaseURL, validator, log)

	router := httptransport.NewRouter(eventsHandler, adminHandler, checks)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting credbridge", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

type dbHealth struct {
	db *sql.DB
}

func (h dbHealth) Health(ctx context.Context) error {
	return h.db.PingContext(ctx)
}
