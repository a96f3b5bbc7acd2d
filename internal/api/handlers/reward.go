/**
 * @description
 * Reward API Handlers.
 * Accepts reward grants and lists today's grants for a user.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - backend/internal/services
 */

package handlers

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stocky-project/backend/internal/api/middleware"
	"github.com/stocky-project/backend/internal/apperr"
	"github.com/stocky-project/backend/internal/logger"
	"github.com/stocky-project/backend/internal/models"
	"github.com/stocky-project/backend/internal/services"
)

// RewardHandler handles reward-related requests
type RewardHandler struct {
	rewards *services.RewardService
	queries *services.QueryService
}

// NewRewardHandler creates a new RewardHandler
func NewRewardHandler(rewards *services.RewardService, queries *services.QueryService) *RewardHandler {
	return &RewardHandler{rewards: rewards, queries: queries}
}

// CreateRewardRequest is the POST /reward body. Quantity accepts a JSON number
// or a numeric string and is parsed without going through float64.
type CreateRewardRequest struct {
	UserID          string          `json:"user_id"`
	StockSymbol     string          `json:"stock_symbol"`
	Quantity        decimal.Decimal `json:"quantity"`
	RewardTimestamp string          `json:"reward_timestamp"`
	EventType       string          `json:"event_type"`
	ReferenceID     string          `json:"reference_id"`
}

// RewardResponse is the wire form of a RewardEvent
type RewardResponse struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id"`
	StockSymbol     string      `json:"stock_symbol"`
	Quantity        json.Number `json:"quantity"`
	RewardTimestamp time.Time   `json:"reward_timestamp"`
	EventType       string      `json:"event_type"`
	ReferenceID     string      `json:"reference_id"`
	CreatedAt       time.Time   `json:"created_at"`
}

func newRewardResponse(e *models.RewardEvent) RewardResponse {
	return RewardResponse{
		ID:              e.ID.String(),
		UserID:          e.UserID,
		StockSymbol:     e.StockSymbol,
		Quantity:        quantityNumber(e.Quantity),
		RewardTimestamp: e.RewardTimestamp.UTC(),
		EventType:       string(e.EventType),
		ReferenceID:     e.ReferenceID,
		CreatedAt:       e.CreatedAt.UTC(),
	}
}

// CreateReward records a reward grant
// POST /api/v1/reward
func (h *RewardHandler) CreateReward(c *fiber.Ctx) error {
	var req CreateRewardRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
	}

	ts, err := parseTimestamp(req.RewardTimestamp)
	if err != nil {
		return respondError(c, apperr.Validation("invalid reward event",
			apperr.Detail{Field: "reward_timestamp", Message: err.Error()}))
	}

	reward, created, err := h.rewards.Submit(c.UserContext(), services.RewardRequest{
		UserID:          req.UserID,
		StockSymbol:     req.StockSymbol,
		Quantity:        req.Quantity,
		RewardTimestamp: ts,
		EventType:       req.EventType,
		ReferenceID:     req.ReferenceID,
	})
	if err != nil {
		return respondError(c, err)
	}

	if !created {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Reward already recorded",
			"reward":  newRewardResponse(reward),
		})
	}

	if sub, err := middleware.GetSubject(c); err == nil {
		logger.WithFields(logger.Fields{"reference_id": reward.ReferenceID, "granted_by": sub}).Info("Reward granted")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Reward created successfully",
		"reward":  newRewardResponse(reward),
	})
}

// GetTodayStocks lists today's rewards for a user, newest first
// GET /api/v1/today-stocks/:userId
func (h *RewardHandler) GetTodayStocks(c *fiber.Ctx) error {
	userID, err := userIDParam(c)
	if err != nil {
		return respondError(c, err)
	}

	events, err := h.queries.TodayRewards(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}

	rewards := make([]RewardResponse, 0, len(events))
	for i := range events {
		rewards = append(rewards, newRewardResponse(&events[i]))
	}
	return c.JSON(fiber.Map{
		"user_id": userID,
		"rewards": rewards,
	})
}
