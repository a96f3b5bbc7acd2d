package pricing

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stocky-project/backend/internal/models"
)

// BasePrices are the reference INR prices the simulator oscillates around.
var BasePrices = map[string]decimal.Decimal{
	"RELIANCE":   decimal.NewFromInt(2500),
	"TCS":        decimal.NewFromInt(3500),
	"INFY":       decimal.NewFromInt(1500),
	"HDFCBANK":   decimal.NewFromInt(1700),
	"ICICIBANK":  decimal.NewFromInt(950),
	"BHARTIARTL": decimal.NewFromInt(1200),
	"SBIN":       decimal.NewFromInt(600),
	"BAJFINANCE": decimal.NewFromInt(7000),
	"WIPRO":      decimal.NewFromInt(450),
	"HINDUNILVR": decimal.NewFromInt(2500),
}

// DefaultBasePrice is used for symbols missing from BasePrices.
var DefaultBasePrice = decimal.NewFromInt(1000)

// variation is expressed in units of 1/100000, so 5000 is 5%.
const maxVariation = 5000

// Simulator produces hypothetical quotes within ±5% of a base price.
// It stands in for an external market-data vendor.
type Simulator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewSimulator creates a Simulator seeded with seed.
func NewSimulator(seed int64) *Simulator {
	return &Simulator{
		rng: rand.New(rand.NewSource(seed)),
		now: time.Now,
	}
}

// Quote returns a fresh simulated quote for symbol, rounded to paise.
func (s *Simulator) Quote(_ context.Context, symbol string) (Quote, error) {
	base, ok := BasePrices[symbol]
	if !ok {
		base = DefaultBasePrice
	}

	s.mu.Lock()
	n := s.rng.Int63n(2*maxVariation+1) - maxVariation
	s.mu.Unlock()

	factor := decimal.NewFromInt(1).Add(decimal.New(n, -5))
	return Quote{
		Symbol: symbol,
		Price:  models.RoundMoney(base.Mul(factor)),
		AsOf:   s.now().UTC(),
	}, nil
}
