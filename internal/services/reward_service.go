/**
 * @description
 * Reward submission with idempotency.
 * Validates a grant, records it with its acquisition journal and answers
 * replays of the same reference_id with the originally stored event.
 *
 * @dependencies
 * - golang.org/x/sync/singleflight: collapses concurrent submissions of one key
 * - github.com/google/uuid: reference ids for callers that omit one
 * - backend/internal/ledger
 * - backend/internal/pricing
 *
 * @notes
 * - The unique reference_id constraint decides which submission wins; singleflight
 *   only saves round trips inside one process.
 * - A replay whose payload differs from the stored event is a ConflictError.
 * - The shared submission runs detached from any one caller's context, bounded
 *   by submitTimeout. A caller that gives up does not fail the others.
 */

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stocky-project/backend/internal/apperr"
	"github.com/stocky-project/backend/internal/ledger"
	"github.com/stocky-project/backend/internal/logger"
	"github.com/stocky-project/backend/internal/models"
	"github.com/stocky-project/backend/internal/pricing"
	"golang.org/x/sync/singleflight"
)

// RewardRequest is a grant as submitted by a caller.
type RewardRequest struct {
	UserID          string
	StockSymbol     string
	Quantity        decimal.Decimal
	RewardTimestamp time.Time
	EventType       string
	ReferenceID     string // optional; generated when empty
}

const submitTimeout = 10 * time.Second

type submitResult struct {
	event   *models.RewardEvent
	owner   *models.RewardEvent
	created bool
}

// RewardService handles reward submission
type RewardService struct {
	store  ledger.Store
	prices pricing.Provider
	fees   ledger.FeeSchedule
	group  singleflight.Group
}

// NewRewardService creates a new RewardService. prices may be nil, in which
// case journals are recorded unpriced.
func NewRewardService(store ledger.Store, prices pricing.Provider) *RewardService {
	return &RewardService{
		store:  store,
		prices: prices,
		fees:   ledger.DefaultFees,
	}
}

// Submit records req unless its reference_id was already used. created is true
// only for the call that stored the event.
func (s *RewardService) Submit(ctx context.Context, req RewardRequest) (*models.RewardEvent, bool, error) {
	e := &models.RewardEvent{
		UserID:          req.UserID,
		StockSymbol:     req.StockSymbol,
		Quantity:        req.Quantity,
		RewardTimestamp: req.RewardTimestamp,
		EventType:       models.EventType(req.EventType),
		ReferenceID:     req.ReferenceID,
	}
	if strings.TrimSpace(e.ReferenceID) == "" {
		e.ReferenceID = uuid.NewString()
	}
	ledger.Normalize(e)
	if err := ledger.Validate(e); err != nil {
		return nil, false, err
	}

	ch := s.group.DoChan(e.ReferenceID, func() (interface{}, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), submitTimeout)
		defer cancel()
		return s.submit(flightCtx, e)
	})
	var shared singleflight.Result
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case shared = <-ch:
	}
	if shared.Err != nil {
		return nil, false, shared.Err
	}
	res := shared.Val.(*submitResult)

	stored := *res.event
	if res.owner == e && res.created {
		return &stored, true, nil
	}
	if !stored.SamePayload(e) {
		return nil, false, apperr.Conflict("reference_id already used for a different reward",
			apperr.Detail{Field: "reference_id", Message: fmt.Sprintf("%q belongs to event %s", e.ReferenceID, stored.ID)})
	}
	return &stored, false, nil
}

func (s *RewardService) submit(ctx context.Context, e *models.RewardEvent) (*submitResult, error) {
	// Fast path for replays; the insert below still decides races.
	existing, err := s.store.GetByReference(ctx, e.ReferenceID)
	if err == nil {
		return &submitResult{event: existing, owner: e}, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	pending := *e
	journal := ledger.BuildJournal(&pending, s.priceAtGrant(ctx, &pending), s.fees)
	appended, err := s.store.Append(ctx, &pending, journal)
	if err != nil {
		return nil, err
	}
	if appended {
		logger.WithFields(logger.Fields{
			"event_id":     pending.ID.String(),
			"user_id":      pending.UserID,
			"stock_symbol": pending.StockSymbol,
			"quantity":     pending.Quantity.String(),
			"reference_id": pending.ReferenceID,
		}).Info("Reward created")
		return &submitResult{event: &pending, owner: e, created: true}, nil
	}

	// Lost the race to a concurrent submission of the same key.
	existing, err = s.store.GetByReference(ctx, e.ReferenceID)
	if err != nil {
		return nil, fmt.Errorf("load winning reward for %s: %w", e.ReferenceID, err)
	}
	return &submitResult{event: existing, owner: e}, nil
}

// priceAtGrant returns the price used to journal the acquisition, or nil
// when none is available. The grant is recorded either way.
func (s *RewardService) priceAtGrant(ctx context.Context, e *models.RewardEvent) *decimal.Decimal {
	if s.prices == nil {
		return nil
	}
	q, err := s.prices.PriceAt(ctx, e.StockSymbol, e.RewardTimestamp)
	if err != nil {
		logger.Warn("journaling %s unpriced: %v", e.ReferenceID, err)
		return nil
	}
	return &q.Price
}
