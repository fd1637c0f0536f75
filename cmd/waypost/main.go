package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/waypost-systems/waypost/internal/config"
	"github.com/waypost-systems/waypost/internal/dispatch"
	"github.com/waypost-systems/waypost/internal/handlers"
	"github.com/waypost-systems/waypost/internal/journal"
	"github.com/waypost-systems/waypost/internal/ledger"
	"github.com/waypost-systems/waypost/internal/logging"
	natsclient "github.com/waypost-systems/waypost/internal/messaging/nats"
	"github.com/waypost-systems/waypost/internal/ratelimit"
	"github.com/waypost-systems/waypost/internal/server"
	"github.com/waypost-systems/waypost/internal/service"
	"github.com/waypost-systems/waypost/internal/sink"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("waypost"))
	logging.SetDefault(logger)

	slog.Info("Starting waypost ingestion service",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Run database migrations
	connString := cfg.Database.ConnString()
	m, err := migrate.New("file://migrations", connString)
	if err != nil {
		log.Fatalf("Failed to initialize migrations: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	// Durability log and delivery ledger share one pool
	ctx := context.Background()
	eventJournal, err := journal.NewPostgresJournal(ctx, connString)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer eventJournal.Close()

	statusLedger := ledger.NewPostgresLedger(eventJournal.Pool())

	// Assemble the enabled sink set
	var sinks []sink.Sink
	var archive *sink.ArchiveSink

	if cfg.Sinks.Lookup.Enabled {
		lookup, err := sink.NewLookupSink(cfg.Redis.URL, cfg.Sinks.Lookup.TTL)
		if err != nil {
			log.Fatalf("Failed to connect lookup sink: %v", err)
		}
		defer lookup.Close()
		sinks = append(sinks, lookup)
		log.Printf("Lookup sink enabled (redis: %s)", cfg.Redis.URL)
	}

	if cfg.Sinks.Archive.Enabled {
		archive, err = sink.NewArchiveSink(ctx, sink.ArchiveConfig{
			Bucket:          cfg.Sinks.Archive.Bucket,
			Region:          cfg.Sinks.Archive.Region,
			AccessKeyID:     cfg.Sinks.Archive.AccessKeyID,
			SecretAccessKey: cfg.Sinks.Archive.SecretAccessKey,
			Endpoint:        cfg.Sinks.Archive.Endpoint,
			UsePathStyle:    cfg.Sinks.Archive.UsePathStyle,
		})
		if err != nil {
			log.Fatalf("Failed to create archive sink: %v", err)
		}
		sinks = append(sinks, archive)
		log.Printf("Archive sink enabled (bucket: %s)", cfg.Sinks.Archive.Bucket)
	}

	if cfg.Sinks.Stream.Enabled {
		natsCfg := natsclient.DefaultConfig()
		natsCfg.URL = cfg.Sinks.Stream.NatsURL
		natsCfg.Username = cfg.Sinks.Stream.Username
		natsCfg.Password = cfg.Sinks.Stream.Password
		js, err := natsclient.NewJetStreamClient(natsCfg)
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer js.Close()

		stream, err := sink.NewStreamSink(ctx, js)
		if err != nil {
			log.Fatalf("Failed to create stream sink: %v", err)
		}
		sinks = append(sinks, stream)
		log.Printf("Stream sink enabled (nats: %s)", cfg.Sinks.Stream.NatsURL)
	}

	if cfg.Sinks.Warehouse.Enabled {
		warehouse, err := sink.NewWarehouseSink(sink.WarehouseConfig{
			URL:           cfg.Sinks.Warehouse.URL,
			Username:      cfg.Sinks.Warehouse.Username,
			Password:      cfg.Sinks.Warehouse.Password,
			TLSSkipVerify: cfg.Sinks.Warehouse.TLSSkipVerify,
			Index:         cfg.Sinks.Warehouse.Index,
		})
		if err != nil {
			log.Fatalf("Failed to create warehouse sink: %v", err)
		}
		sinks = append(sinks, warehouse)
		log.Printf("Warehouse sink enabled (index: %s)", cfg.Sinks.Warehouse.Index)
	} else {
		log.Println("Warehouse sink disabled")
	}

	// Dispatcher with the configured retry policy
	dispatcher := dispatch.New(sinks, statusLedger, dispatch.Config{
		MaxAttempts:    cfg.Dispatch.MaxAttempts,
		BackoffBase:    cfg.Dispatch.BackoffBase,
		BackoffCap:     cfg.Dispatch.BackoffCap,
		AttemptTimeout: cfg.Dispatch.AttemptTimeout,
	}, logger)

	// Ingestion service
	ingestService := service.NewIngestService(eventJournal, dispatcher, logger)
	if cfg.Ingestion.ArchiveOnReject && archive != nil {
		ingestService.SetRejectArchiver(archive)
		log.Println("Archive-on-reject enabled")
	}

	// Rate limiter
	var limiter ratelimit.RateLimiter = &ratelimit.NoOpRateLimiter{}
	if cfg.Ingestion.RateLimitEnabled {
		rl, err := ratelimit.NewRedisRateLimiter(
			cfg.Redis.URL, cfg.Ingestion.RateLimitRequests, cfg.Ingestion.RateLimitWindow)
		if err != nil {
			log.Printf("WARNING: Failed to initialize rate limiter: %v", err)
			log.Println("Continuing without rate limiting")
		} else {
			limiter = rl
			log.Printf("Rate limiting enabled: %d requests per %s",
				cfg.Ingestion.RateLimitRequests, cfg.Ingestion.RateLimitWindow)
		}
	}
	defer limiter.Close()

	// HTTP surface
	handler := handlers.NewWebhookHandler(ingestService, limiter, cfg.Ingestion.MaxEventSize, logger)
	router := server.NewRouter(handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("Waypost listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// Let in-flight dispatches drain before the sinks close.
	ingestService.Stop()

	log.Println("Server stopped")
}
