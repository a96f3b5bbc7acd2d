package pricing

import (
	"context"
	"time"
)

type timeoutProvider struct {
	next    Provider
	timeout time.Duration
}

// WithTimeout bounds every lookup of next by d. A lookup still running at the
// deadline is abandoned and reported as a *PriceUnavailableError.
func WithTimeout(next Provider, d time.Duration) Provider {
	return &timeoutProvider{next: next, timeout: d}
}

func (p *timeoutProvider) PriceAt(ctx context.Context, symbol string, asOf time.Time) (Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type result struct {
		q   Quote
		err error
	}
	done := make(chan result, 1)
	go func() {
		q, err := p.next.PriceAt(ctx, symbol, asOf)
		done <- result{q, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() != nil {
			return Quote{}, Unavailable(symbol, asOf, ctx.Err())
		}
		return r.q, r.err
	case <-ctx.Done():
		return Quote{}, Unavailable(symbol, asOf, ctx.Err())
	}
}
