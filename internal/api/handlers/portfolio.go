/**
 * @description
 * Portfolio API Handlers.
 * Current holdings, stats and the historical INR series for a user.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - backend/internal/services
 *
 * @notes
 * - Unknown users get empty holdings and zero values, never 404.
 */

package handlers

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stocky-project/backend/internal/services"
)

// PortfolioHandler handles portfolio-related requests
type PortfolioHandler struct {
	queries *services.QueryService
}

// NewPortfolioHandler creates a new PortfolioHandler
func NewPortfolioHandler(queries *services.QueryService) *PortfolioHandler {
	return &PortfolioHandler{queries: queries}
}

// HoldingResponse is one row of the portfolio. Price is null when unavailable.
type HoldingResponse struct {
	StockSymbol    string       `json:"stock_symbol"`
	Quantity       json.Number  `json:"quantity"`
	Price          *json.Number `json:"price"`
	CurrentValue   json.Number  `json:"current_value"`
	LastUpdated    time.Time    `json:"last_updated"`
	PriceAvailable bool         `json:"price_available"`
}

// HistoricalValue is one point of the historical series
type HistoricalValue struct {
	Date  string      `json:"date"`
	Value json.Number `json:"value"`
}

// GetPortfolio returns current holdings with their INR value
// GET /api/v1/portfolio/:userId
func (h *PortfolioHandler) GetPortfolio(c *fiber.Ctx) error {
	userID, err := userIDParam(c)
	if err != nil {
		return respondError(c, err)
	}

	v, err := h.queries.Portfolio(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}

	holdings := make([]HoldingResponse, 0, len(v.Holdings))
	for _, hv := range v.Holdings {
		row := HoldingResponse{
			StockSymbol:    hv.Symbol,
			Quantity:       quantityNumber(hv.Quantity),
			CurrentValue:   moneyNumber(hv.Value),
			LastUpdated:    hv.LastUpdated.UTC(),
			PriceAvailable: hv.PriceAvailable,
		}
		if hv.PriceAvailable {
			price := moneyNumber(hv.Price)
			row.Price = &price
		}
		holdings = append(holdings, row)
	}

	body := fiber.Map{
		"user_id":     userID,
		"holdings":    holdings,
		"total_value": moneyNumber(v.Total),
	}
	if len(v.Warnings) > 0 {
		body["warnings"] = v.Warnings
	}
	return c.JSON(body)
}

// GetStats returns today's grants by symbol and the current portfolio value
// GET /api/v1/stats/:userId
func (h *PortfolioHandler) GetStats(c *fiber.Ctx) error {
	userID, err := userIDParam(c)
	if err != nil {
		return respondError(c, err)
	}

	stats, err := h.queries.Stats(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}

	today := make(map[string]json.Number, len(stats.TodayStocks))
	for symbol, q := range stats.TodayStocks {
		today[symbol] = quantityNumber(q)
	}
	return c.JSON(fiber.Map{
		"user_id": userID,
		"stats": fiber.Map{
			"today_stocks":                today,
			"current_portfolio_value_inr": moneyNumber(stats.CurrentValue),
		},
	})
}

// GetHistoricalINR returns the end-of-day portfolio value for every day since the first reward
// GET /api/v1/historical-inr/:userId
func (h *PortfolioHandler) GetHistoricalINR(c *fiber.Ctx) error {
	userID, err := userIDParam(c)
	if err != nil {
		return respondError(c, err)
	}

	points, err := h.queries.History(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}

	values := make([]HistoricalValue, 0, len(points))
	for _, p := range points {
		values = append(values, HistoricalValue{Date: p.Date.String(), Value: moneyNumber(p.Value)})
	}
	return c.JSON(fiber.Map{
		"user_id":           userID,
		"historical_values": values,
	})
}
