/**
 * @description
 * Main entry point for the Stocky rewards API.
 * Loads configuration, connects to Postgres and Redis, builds the price
 * provider chain and serves the HTTP routes.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2: Web framework
 * - github.com/stocky-project/backend/internal/config: Config loader
 * - github.com/stocky-project/backend/internal/db: Database connections
 * - github.com/stocky-project/backend/internal/pricing: Price lookups
 *
 * @notes
 * - Redis is optional. Without it prices are read straight from Postgres.
 * - SIGINT/SIGTERM drain in-flight requests before exiting.
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stocky-project/backend/internal/api"
	"github.com/stocky-project/backend/internal/api/middleware"
	"github.com/stocky-project/backend/internal/calendar"
	"github.com/stocky-project/backend/internal/config"
	"github.com/stocky-project/backend/internal/db"
	"github.com/stocky-project/backend/internal/logger"
	"github.com/stocky-project/backend/internal/pricing"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}
	logger.SetLevel(cfg.Log.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Initialize Database Connections
	pgDB, err := db.ConnectPostgres(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to Postgres: %v", err)
	}
	if err := db.Migrate(pgDB); err != nil {
		logger.Fatal("Failed to migrate database: %v", err)
	}

	redisClient, err := db.ConnectRedis(ctx, cfg)
	if err != nil {
		logger.Warn("Redis unavailable, serving prices from Postgres only: %v", err)
		redisClient = nil
	}

	// 3. Price provider chain: store -> cache -> live quotes -> timeout
	cal := calendar.New(cfg.Rewards.Location)
	priceStore := pricing.NewStore(pgDB, cal)
	var prices pricing.Provider = priceStore
	if redisClient != nil {
		cache := pricing.NewCache(prices, redisClient, cal, cfg.Pricing.CacheTTL)
		live := pricing.NewLive(redisClient, cache, cal, cfg.Pricing.StaleAfter)
		go live.Run(ctx)
		prices = live
	}
	prices = pricing.WithTimeout(prices, cfg.Pricing.LookupTimeout)

	// 4. Auth
	auth, err := middleware.NewAuthenticator(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize auth: %v", err)
	}
	defer auth.Close()

	// 5. HTTP server
	app := api.NewServer(cfg)
	api.SetupRoutes(app, api.Dependencies{
		DB:       pgDB,
		Redis:    redisClient,
		Config:   cfg,
		Calendar: cal,
		Prices:   prices,
		Closes:   priceStore,
		Auth:     auth,
	})

	go func() {
		logger.Info("🚀 Starting Stocky API on port %s (reward timezone %s)", cfg.Server.Port, cfg.Rewards.Timezone)
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	// 6. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down API...")
	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("Error during shutdown: %v", err)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if sqlDB, err := pgDB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Info("API exited.")
}
