/**
 * @description
 * API Route definitions.
 * Sets up the router groups and assigns handlers.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - backend/internal/api/handlers
 * - backend/internal/api/middleware
 * - backend/internal/services
 */

package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stocky-project/backend/internal/api/handlers"
	"github.com/stocky-project/backend/internal/api/middleware"
	"github.com/stocky-project/backend/internal/calendar"
	"github.com/stocky-project/backend/internal/config"
	"github.com/stocky-project/backend/internal/ledger"
	"github.com/stocky-project/backend/internal/pricing"
	"github.com/stocky-project/backend/internal/services"
	"gorm.io/gorm"
)

// Dependencies are the long-lived collaborators shared by every route.
type Dependencies struct {
	DB       *gorm.DB
	Redis    *redis.Client // optional
	Config   *config.Config
	Calendar *calendar.Calendar
	Prices   pricing.Provider
	Closes   pricing.CloseSource // optional
	Auth     *middleware.Authenticator
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, deps Dependencies) {
	// 1. Initialize Services
	store := ledger.NewGormStore(deps.DB)
	rewardService := services.NewRewardService(store, deps.Prices)
	valuationService := services.NewValuationService(store, deps.Prices, deps.Calendar)
	if deps.Closes != nil {
		valuationService.WithCloses(deps.Closes)
	}
	queryService := services.NewQueryService(store, valuationService, deps.Calendar)

	// 2. Initialize Handlers
	rewardHandler := handlers.NewRewardHandler(rewardService, queryService)
	portfolioHandler := handlers.NewPortfolioHandler(queryService)
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Redis)

	// 3. Define Routes
	app.Get("/health", healthHandler.Check)

	api := app.Group("/api")
	v1 := api.Group("/v1")

	// Public Routes
	v1.Get("/health", healthHandler.Check)
	v1.Get("/today-stocks/:userId", rewardHandler.GetTodayStocks)
	v1.Get("/portfolio/:userId", portfolioHandler.GetPortfolio)
	v1.Get("/stats/:userId", portfolioHandler.GetStats)
	v1.Get("/historical-inr/:userId", portfolioHandler.GetHistoricalINR)

	// Protected when AUTH_JWKS_URL is configured
	v1.Post("/reward", deps.Auth.Protected(), rewardHandler.CreateReward)
}
