package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/walletrank/walletrank/internal/cache"
	"github.com/walletrank/walletrank/internal/config"
	"github.com/walletrank/walletrank/internal/httpapi"
	"github.com/walletrank/walletrank/internal/nansen"
	"github.com/walletrank/walletrank/internal/processor"
	"github.com/walletrank/walletrank/internal/storage"
)

func main() {
	// Initialize logger
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(logrus.InfoLevel)

	log.Info("Starting walletrank service...")

	// Load .env when present (local development)
	if err := godotenv.Load(); err == nil {
		log.Info("Loaded environment from .env file")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	log.WithFields(logrus.Fields{
		"environment":        cfg.Environment,
		"cache_ttl":      cfg.DatasetCacheTTL.String(),
		"purge_interval": cfg.CachePurgeInterval.String(),
		"http_port":          cfg.HTTPPort,
		"redis":              cfg.RedisAddr != "",
	}).Info("Configuration loaded")

	// Initialize database
	db, err := storage.New(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	log.Info("Database connected")

	// Run auto-migration
	if err := db.AutoMigrate(); err != nil {
		log.WithError(err).Fatal("Failed to run database migrations")
	}

	log.Info("Database migrations complete")

	// Initialize provider client and dataset cache
	provider := nansen.NewClient(cfg)
	datasets := cache.NewAuto(cfg.RedisAddr)

	log.Info("Provider client initialized")

	// Initialize processor
	proc := processor.New(cfg, db, provider, datasets, log)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Seed invite codes so the first users can join
	if err := proc.EnsureSeedInviteCodes(ctx); err != nil {
		log.WithError(err).Fatal("Failed to seed invite codes")
	}

	// Start HTTP server
	server := httpapi.NewServer(cfg.HTTPPort, proc, log)
	go func() {
		if err := server.ListenAndServe(); err != nil {
			log.WithError(err).Error("HTTP server failed")
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Sweep expired cache entries periodically
	purgeTicker := time.NewTicker(cfg.CachePurgeInterval)
	defer purgeTicker.Stop()

	log.Info("Service ready")

	for {
		select {
		case <-purgeTicker.C:
			proc.PurgeDatasetCache(ctx)
		case sig := <-sigChan:
			log.WithField("signal", sig).Info("Received shutdown signal")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Error("HTTP server shutdown failed")
			}
			shutdownCancel()
			cancel()
			log.Info("Graceful shutdown complete")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, shutting down")
			return
		}
	}
}
