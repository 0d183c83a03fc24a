package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	amqpadapter "github.com/clinicops/wa-adapter/internal/adapter/driven/amqp"
	sqliteadapter "github.com/clinicops/wa-adapter/internal/adapter/driven/sqlite"
	waadapter "github.com/clinicops/wa-adapter/internal/adapter/driven/whatsmeow"
	"github.com/clinicops/wa-adapter/internal/adapter/driven/webhook"
	httphandler "github.com/clinicops/wa-adapter/internal/adapter/driving/http"
	"github.com/clinicops/wa-adapter/internal/application"
	"github.com/clinicops/wa-adapter/internal/config"
	"github.com/clinicops/wa-adapter/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on malformed env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"relay_enabled", cfg.RelayEnabled(),
		"amqp_enabled", cfg.AMQPEnabled(),
	)
	if cfg.SharedSecret == "" {
		slog.Warn("WA_SHARED_SECRET is empty; send endpoints accept unauthenticated requests")
	}

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode) and migrate.
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("database ready", "path", cfg.DBPath)

	// 4. Wire driven adapters.
	credentialStore := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)

	transport, err := waadapter.NewTransport(ctx, sqliteadapter.DSN(cfg.DBPath), slog.Default())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := transport.Close(); closeErr != nil {
			slog.Error("error closing transport", "error", closeErr)
		}
	}()

	var sinks []driven.InboundSink
	if cfg.RelayEnabled() {
		sinks = append(sinks, webhook.NewClient(cfg.WebhookURL, cfg.SharedSecret))
	}
	if cfg.AMQPEnabled() {
		pub, err := amqpadapter.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, slog.Default())
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := pub.Close(); closeErr != nil {
				slog.Error("error closing amqp publisher", "error", closeErr)
			}
		}()
		sinks = append(sinks, pub)
	}
	if len(sinks) == 0 {
		slog.Info("inbound relay disabled; no webhook or broker configured")
	}

	// 5. Application services.
	relay := application.NewRelay(sinks, cfg.RelayMaxInFlight, cfg.RelayTimeout, slog.Default())

	policy := application.DefaultReconnectPolicy()
	policy.MaxAttempts = cfg.ReconnectMaxAttempts

	supervisor := application.NewSupervisor(transport, credentialStore, relay, policy, slog.Default())
	go func() {
		if err := supervisor.Run(ctx); err != nil {
			slog.Error("supervisor stopped", "error", err)
		}
	}()

	gateway := application.NewGateway(supervisor, cfg.SendTimeout, cfg.YesLabel, cfg.NoLabel, slog.Default())

	// 6. HTTP surface.
	apiHandler := httphandler.NewHandler(supervisor, gateway, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, cfg.SharedSecret, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("wa-adapter started", "listen_addr", cfg.ListenAddr)

	// 7. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	// Let in-flight webhook deliveries drain before closing the sinks.
	relay.Wait()

	slog.Info("shutdown complete")
	return nil
}
