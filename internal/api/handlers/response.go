package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stocky-project/backend/internal/apperr"
	"github.com/stocky-project/backend/internal/logger"
	"github.com/stocky-project/backend/internal/models"
)

const maxUserIDLength = 64

// respondError maps err onto an HTTP status and the {error, details} body.
func respondError(c *fiber.Ctx, err error) error {
	if e, ok := apperr.As(err); ok {
		status := fiber.StatusInternalServerError
		switch e.Kind {
		case apperr.KindValidation:
			status = fiber.StatusBadRequest
		case apperr.KindConflict:
			status = fiber.StatusConflict
		case apperr.KindNotFound:
			status = fiber.StatusNotFound
		}
		body := fiber.Map{"error": e.Message}
		if d := e.DetailString(); d != "" {
			body["details"] = d
		}
		return c.Status(status).JSON(body)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("%s %s timed out: %v", c.Method(), c.Path(), err)
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": "Request timed out"})
	}

	logger.Error("%s %s failed: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
}

// userIDParam returns the :userId path parameter or a ValidationError.
func userIDParam(c *fiber.Ctx) (string, error) {
	userID := strings.TrimSpace(c.Params("userId"))
	if userID == "" || len(userID) > maxUserIDLength {
		return "", apperr.Validation("Invalid user ID",
			apperr.Detail{Field: "userId", Message: "must be 1-64 characters"})
	}
	return userID, nil
}

// Numbers are rendered as JSON numbers with a fixed scale, never through float64.

func quantityNumber(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(models.QuantityPlaces))
}

func moneyNumber(d decimal.Decimal) json.Number {
	return json.Number(models.RoundMoney(d).StringFixed(models.MoneyPlaces))
}

// Accepted reward_timestamp layouts. Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.New("must be an ISO-8601 timestamp")
}
