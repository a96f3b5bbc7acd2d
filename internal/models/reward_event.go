/**
 * @description
 * Reward event database model.
 * Maps to the append-only 'reward_events' table in PostgreSQL.
 *
 * @dependencies
 * - gorm.io/gorm
 * - github.com/google/uuid
 * - github.com/shopspring/decimal
 *
 * @notes
 * - Rows are never updated or deleted once inserted.
 * - Seq records insertion order and breaks ties between equal reward timestamps.
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EventType tags the cause of a reward. The set is open; these are the known values.
type EventType string

const (
	EventTypeOnboarding       EventType = "onboarding"
	EventTypeReferral         EventType = "referral"
	EventTypeTradingMilestone EventType = "trading_milestone"
	EventTypeDailyBonus       EventType = "daily_bonus"
	EventTypeSpecialPromotion EventType = "special_promotion"
)

// KnownEventTypes lists the event types the client offers.
var KnownEventTypes = []EventType{
	EventTypeOnboarding,
	EventTypeReferral,
	EventTypeTradingMilestone,
	EventTypeDailyBonus,
	EventTypeSpecialPromotion,
}

// RewardEvent is an immutable grant of shares to a user
type RewardEvent struct {
	Seq             uint64          `gorm:"primaryKey;autoIncrement" json:"-"`
	ID              uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null" json:"id"`
	UserID          string          `gorm:"column:user_id;type:varchar(64);not null;index:idx_reward_events_user_time,priority:1" json:"user_id"`
	StockSymbol     string          `gorm:"column:stock_symbol;type:varchar(20);not null;index" json:"stock_symbol"`
	Quantity        decimal.Decimal `gorm:"column:quantity;type:numeric(24,6);not null" json:"quantity"`
	RewardTimestamp time.Time       `gorm:"column:reward_timestamp;not null;index:idx_reward_events_user_time,priority:2" json:"reward_timestamp"`
	EventType       EventType       `gorm:"column:event_type;type:varchar(32);not null" json:"event_type"`
	ReferenceID     string          `gorm:"column:reference_id;type:varchar(128);uniqueIndex;not null" json:"reference_id"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// TableName overrides the table name used by RewardEvent to `reward_events`
func (RewardEvent) TableName() string {
	return "reward_events"
}

// BeforeCreate ensures UUID is generated if not present
func (e *RewardEvent) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return
}

// SamePayload reports whether other describes the same grant. Server-assigned
// fields (ID, Seq, CreatedAt) are ignored.
func (e *RewardEvent) SamePayload(other *RewardEvent) bool {
	return e.UserID == other.UserID &&
		e.StockSymbol == other.StockSymbol &&
		e.Quantity.Equal(other.Quantity) &&
		e.RewardTimestamp.Equal(other.RewardTimestamp) &&
		e.EventType == other.EventType &&
		e.ReferenceID == other.ReferenceID
}
