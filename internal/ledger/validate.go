package ledger

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stocky-project/backend/internal/apperr"
	"github.com/stocky-project/backend/internal/models"
)

var (
	symbolPattern    = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.&-]{0,19}$`)
	eventTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,31}$`)

	// numeric(24,6) leaves 18 integer digits.
	maxQuantity = decimal.New(1, 18)
)

// Normalize canonicalizes caller-supplied fields in place: trimmed ids,
// upper-case symbol, lower-case event type, UTC timestamp at microsecond
// precision and a quantity rounded to the stored precision.
func Normalize(e *models.RewardEvent) {
	e.UserID = strings.TrimSpace(e.UserID)
	e.StockSymbol = strings.ToUpper(strings.TrimSpace(e.StockSymbol))
	e.EventType = models.EventType(strings.ToLower(strings.TrimSpace(string(e.EventType))))
	e.ReferenceID = strings.TrimSpace(e.ReferenceID)
	e.Quantity = models.RoundQuantity(e.Quantity)
	if !e.RewardTimestamp.IsZero() {
		// timestamptz keeps microseconds
		e.RewardTimestamp = e.RewardTimestamp.UTC().Truncate(time.Microsecond)
	}
}

// Validate returns a ValidationError listing every malformed field of e.
func Validate(e *models.RewardEvent) error {
	var details []apperr.Detail
	add := func(field, msg string) {
		details = append(details, apperr.Detail{Field: field, Message: msg})
	}

	if e.UserID == "" {
		add("user_id", "is required")
	} else if len(e.UserID) > 64 {
		add("user_id", "must be at most 64 characters")
	}

	if e.StockSymbol == "" {
		add("stock_symbol", "is required")
	} else if !symbolPattern.MatchString(e.StockSymbol) {
		add("stock_symbol", "must be an uppercase ticker")
	}

	if !e.Quantity.IsPositive() {
		add("quantity", "must be greater than zero")
	} else if e.Quantity.GreaterThanOrEqual(maxQuantity) {
		add("quantity", "is too large")
	}

	if e.RewardTimestamp.IsZero() {
		add("reward_timestamp", "is required")
	}

	if !eventTypePattern.MatchString(string(e.EventType)) {
		add("event_type", "must be a lowercase tag such as onboarding or referral")
	}

	if e.ReferenceID == "" {
		add("reference_id", "is required")
	} else if len(e.ReferenceID) > 128 {
		add("reference_id", "must be at most 128 characters")
	}

	if len(details) > 0 {
		return apperr.Validation("invalid reward event", details...)
	}
	return nil
}
