package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/normanwashere/patient-portal-prototype-sub005/internal/config"
	"github.com/normanwashere/patient-portal-prototype-sub005/internal/httpapi"
	"github.com/normanwashere/patient-portal-prototype-sub005/internal/logging"
	"github.com/normanwashere/patient-portal-prototype-sub005/internal/seed"
	"github.com/normanwashere/patient-portal-prototype-sub005/internal/store"
	"github.com/normanwashere/patient-portal-prototype-sub005/internal/store/memory"
	"github.com/normanwashere/patient-portal-prototype-sub005/internal/store/postgres"
	"github.com/normanwashere/patient-portal-prototype-sub005/internal/telemetry"
	"github.com/normanwashere/patient-portal-prototype-sub005/internal/visits"
)

const serviceName = "visit-service"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run serves until ctx is cancelled or the server fails. Every resource it
// opens is released before it returns.
func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := logging.New(cfg.LogLevel)
	log := logging.WithService(logger, serviceName)

	shutdownTracing := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: serviceName,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
	}, log)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.WithError(err).Warn("tracing shutdown")
		}
	}()

	steps, err := seed.Load(cfg.SeedFile)
	if err != nil {
		return fmt.Errorf("load seed %q: %w", cfg.SeedFile, err)
	}

	var visitStore store.VisitStore
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer pool.Close()
		visitStore = postgres.NewStore(pool)
		log.Info("using postgres visit store")
	} else {
		visitStore = memory.NewStore()
		log.Info("using in-memory visit store")
	}

	registry := visits.NewRegistry(visitStore, visits.Options{
		Seed:        steps,
		DefaultMode: cfg.QueueMode,
		Logger:      log,
	})
	handler := httpapi.NewHandler(registry)
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:    cfg.RateLimitPerMinute,
		IPBurst:        cfg.RateLimitBurst,
		VisitPerMinute: cfg.VisitRateLimitPerMin,
		VisitBurst:     cfg.VisitRateLimitBurst,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(httpapi.LoggingMiddleware(log)(limiter.Middleware(handler.Routes())), serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go registry.RunAutoAdvance(ctx, cfg.AutoAdvanceInterval, cfg.AutoAdvanceBatchSize)

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("visit-service listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("visit-service stopped")
	return nil
}
