package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/expense-tracker/internal/analytics"
	"github.com/dvloznov/expense-tracker/internal/api"
	"github.com/dvloznov/expense-tracker/internal/archive"
	"github.com/dvloznov/expense-tracker/internal/config"
	"github.com/dvloznov/expense-tracker/internal/importer"
	"github.com/dvloznov/expense-tracker/internal/ingest"
	"github.com/dvloznov/expense-tracker/internal/logger"
	"github.com/dvloznov/expense-tracker/internal/plaid"
	"github.com/dvloznov/expense-tracker/internal/store"
)

func main() {
	var (
		port   = flag.String("port", "", "HTTP server port (overrides PORT env)")
		bucket = flag.String("bucket", "", "GCS bucket for upload archival (overrides GCS_BUCKET env)")
	)
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if *port != "" {
		cfg.Port = *port
	}
	if *bucket != "" {
		cfg.GCSBucket = *bucket
	}

	ctx := context.Background()

	db, err := store.NewMongo(ctx, cfg.MongoURI(), cfg.DBName, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer func() {
		if err := db.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("Failed to close MongoDB connection")
		}
	}()

	if err := db.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to create indexes")
	}

	archiver, err := archive.New(ctx, cfg.GCSBucket, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize upload archival")
	}
	defer archiver.Close()

	client := plaid.New(plaid.Config{
		ClientID:    cfg.PlaidClientID,
		Secret:      cfg.PlaidSecret,
		Environment: cfg.PlaidEnv,
		RedirectURI: cfg.PlaidRedirectURI,
	}, log)

	engine := ingest.New(db, log)
	imp := importer.New(engine, log)
	reporter := analytics.New(db, log)

	handler := api.NewRouter(
		client,
		engine,
		imp,
		archiver,
		reporter,
		api.Stores{Transactions: db, Credentials: db.Credentials()},
		db,
		cfg.MaxUploadBytes,
		log,
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("plaid_env", cfg.PlaidEnv).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
