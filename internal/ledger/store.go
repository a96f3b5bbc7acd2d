/**
 * @description
 * Event Store for reward grants.
 * Append-only persistence of RewardEvent rows plus the holdings projection and
 * the acquisition journal, written in a single database transaction.
 *
 * @dependencies
 * - gorm.io/gorm
 * - github.com/jackc/pgx/v5/pgconn: SQLSTATE classification for retries
 *
 * @notes
 * - Idempotency is enforced by the unique reference_id index together with
 *   INSERT ... ON CONFLICT DO NOTHING, never by check-then-insert.
 * - The holdings projection is a cache. RebuildHoldings rewrites it from the log.
 * - Append and RebuildHoldings hold a per-user advisory lock on Postgres so a
 *   rebuild never drops an append that commits while it runs.
 */

package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stocky-project/backend/internal/apperr"
	"github.com/stocky-project/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxAppendAttempts = 5

// Store is the append-only event log.
type Store interface {
	// Append persists e (and its journal) unless an event with the same
	// reference_id already exists. appended is false for the duplicate case.
	Append(ctx context.Context, e *models.RewardEvent, journal []models.LedgerEntry) (appended bool, err error)
	GetByReference(ctx context.Context, referenceID string) (*models.RewardEvent, error)
	ListByUser(ctx context.Context, userID string) ([]models.RewardEvent, error)
	ListByUserBetween(ctx context.Context, userID string, from, to time.Time) ([]models.RewardEvent, error)
	ListHoldings(ctx context.Context, userID string) ([]models.UserHolding, error)
	RebuildHoldings(ctx context.Context, userID string) ([]models.UserHolding, error)
	DistinctSymbols(ctx context.Context) ([]string, error)
	DistinctUsers(ctx context.Context) ([]string, error)
}

// GormStore implements Store on PostgreSQL (or SQLite in tests).
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GormStore
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Append validates e and inserts it atomically with its journal and the
// holdings projection update. On success e carries the stored ID, Seq and CreatedAt.
func (s *GormStore) Append(ctx context.Context, e *models.RewardEvent, journal []models.LedgerEntry) (bool, error) {
	Normalize(e)
	if err := Validate(e); err != nil {
		return false, err
	}

	var (
		appended bool
		stored   models.RewardEvent
		err      error
	)
	for attempt := 1; attempt <= maxAppendAttempts; attempt++ {
		stored = *e
		appended, err = s.appendOnce(ctx, &stored, journal)
		if err == nil || !isRetryable(err) {
			break
		}

		backoff := time.Duration(attempt*50+rand.Intn(50)) * time.Millisecond
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(backoff):
		}
	}
	if err != nil {
		return false, fmt.Errorf("append reward event: %w", err)
	}

	if appended {
		*e = stored
	}
	return appended, nil
}

func (s *GormStore) appendOnce(ctx context.Context, e *models.RewardEvent, journal []models.LedgerEntry) (bool, error) {
	appended := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockUser(tx, e.UserID); err != nil {
			return err
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "reference_id"}},
			DoNothing: true,
		}).Create(e)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Another submission owns this reference_id.
			return nil
		}
		appended = true

		if len(journal) > 0 {
			entries := make([]models.LedgerEntry, len(journal))
			copy(entries, journal)
			for i := range entries {
				entries[i].RewardEventID = e.ID
				entries[i].ReferenceID = e.ReferenceID
			}
			if err := tx.Create(&entries).Error; err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		holding := models.UserHolding{
			UserID:      e.UserID,
			StockSymbol: e.StockSymbol,
			Quantity:    e.Quantity,
			LastUpdated: now,
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "stock_symbol"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"quantity":     gorm.Expr("user_holdings.quantity + excluded.quantity"),
				"last_updated": gorm.Expr("excluded.last_updated"),
				"updated_at":   now,
			}),
		}).Create(&holding).Error
	})
	if err != nil {
		return false, err
	}
	return appended, nil
}

// GetByReference returns the event stored under referenceID.
func (s *GormStore) GetByReference(ctx context.Context, referenceID string) (*models.RewardEvent, error) {
	var e models.RewardEvent
	err := s.db.WithContext(ctx).Where("reference_id = ?", referenceID).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("reward event not found")
		}
		return nil, err
	}
	return &e, nil
}

// ListByUser returns every event of userID in timestamp order, ties broken by insertion order.
func (s *GormStore) ListByUser(ctx context.Context, userID string) ([]models.RewardEvent, error) {
	var events []models.RewardEvent
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("reward_timestamp ASC, seq ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ListByUserBetween returns the events of userID with from <= reward_timestamp < to.
func (s *GormStore) ListByUserBetween(ctx context.Context, userID string, from, to time.Time) ([]models.RewardEvent, error) {
	var events []models.RewardEvent
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND reward_timestamp >= ? AND reward_timestamp < ?", userID, from.UTC(), to.UTC()).
		Order("reward_timestamp ASC, seq ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ListHoldings returns the projected holdings of userID ordered by symbol.
func (s *GormStore) ListHoldings(ctx context.Context, userID string) ([]models.UserHolding, error) {
	var holdings []models.UserHolding
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("stock_symbol ASC").
		Find(&holdings).Error
	if err != nil {
		return nil, err
	}
	return holdings, nil
}

// RebuildHoldings recomputes the projection of userID from its events and
// replaces the stored rows in one transaction. Every event counts, including
// those dated in the future, exactly as Append credits them.
func (s *GormStore) RebuildHoldings(ctx context.Context, userID string) ([]models.UserHolding, error) {
	var rows []models.UserHolding
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockUser(tx, userID); err != nil {
			return err
		}

		var events []models.RewardEvent
		if err := tx.Where("user_id = ?", userID).Order("reward_timestamp ASC, seq ASC").Find(&events).Error; err != nil {
			return err
		}
		rows = sumHoldings(userID, events)

		if err := tx.Where("user_id = ?", userID).Delete(&models.UserHolding{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("rebuild holdings of %s: %w", userID, err)
	}
	return rows, nil
}

// sumHoldings folds events into one row per symbol with a non-zero balance,
// ordered by symbol. LastUpdated is the newest contributing event's CreatedAt.
func sumHoldings(userID string, events []models.RewardEvent) []models.UserHolding {
	bySymbol := make(map[string]*models.UserHolding)
	var symbols []string
	for _, e := range events {
		h, ok := bySymbol[e.StockSymbol]
		if !ok {
			h = &models.UserHolding{UserID: userID, StockSymbol: e.StockSymbol}
			bySymbol[e.StockSymbol] = h
			symbols = append(symbols, e.StockSymbol)
		}
		h.Quantity = h.Quantity.Add(e.Quantity)
		if e.CreatedAt.After(h.LastUpdated) {
			h.LastUpdated = e.CreatedAt.UTC()
		}
	}
	sort.Strings(symbols)

	rows := make([]models.UserHolding, 0, len(symbols))
	for _, symbol := range symbols {
		if h := bySymbol[symbol]; !h.Quantity.IsZero() {
			rows = append(rows, *h)
		}
	}
	return rows
}

// lockUser serializes projection writes of one user until tx ends. SQLite
// already serializes writers, so only Postgres takes the advisory lock.
func lockUser(tx *gorm.DB, userID string) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", userID).Error
}

// DistinctSymbols returns every symbol that has ever been rewarded.
func (s *GormStore) DistinctSymbols(ctx context.Context) ([]string, error) {
	var symbols []string
	err := s.db.WithContext(ctx).
		Model(&models.RewardEvent{}).
		Distinct().
		Order("stock_symbol").
		Pluck("stock_symbol", &symbols).Error
	return symbols, err
}

// DistinctUsers returns every user with at least one event.
func (s *GormStore) DistinctUsers(ctx context.Context) ([]string, error) {
	var users []string
	err := s.db.WithContext(ctx).
		Model(&models.RewardEvent{}).
		Distinct().
		Order("user_id").
		Pluck("user_id", &users).Error
	return users, err
}

// isRetryable reports serialization failures and deadlocks.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
