/**
 * @description
 * In-memory latest quotes fed by Redis pub/sub.
 * The worker publishes every recorded quote on UpdatesChannel; each API
 * process keeps one subscription and answers current-day lookups from memory.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9
 *
 * @notes
 * - Quotes older than maxAge, and lookups for past days, go to the next Provider.
 */

package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stocky-project/backend/internal/calendar"
	"github.com/stocky-project/backend/internal/logger"
)

// UpdatesChannel carries JSON-encoded Quotes.
const UpdatesChannel = "stock:price_updates"

// Live serves the freshest quotes seen on UpdatesChannel.
type Live struct {
	redis   *redis.Client
	channel string
	next    Provider
	cal     *calendar.Calendar
	maxAge  time.Duration

	mu     sync.RWMutex
	quotes map[string]Quote
}

// NewLive creates a Live provider in front of next. Call Run to start consuming updates.
func NewLive(rdb *redis.Client, next Provider, cal *calendar.Calendar, maxAge time.Duration) *Live {
	return &Live{
		redis:   rdb,
		channel: UpdatesChannel,
		next:    next,
		cal:     cal,
		maxAge:  maxAge,
		quotes:  make(map[string]Quote),
	}
}

// Run subscribes to the updates channel until ctx is done, resubscribing
// after connection loss.
func (l *Live) Run(ctx context.Context) {
	for {
		pubsub := l.redis.Subscribe(ctx, l.channel)
		stop := context.AfterFunc(ctx, func() { _ = pubsub.Close() })
		ch := pubsub.Channel(redis.WithChannelSize(1024))

		for msg := range ch {
			if err := l.apply([]byte(msg.Payload)); err != nil {
				logger.Warn("ignoring price update: %v", err)
			}
		}

		stop()
		_ = pubsub.Close()

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
			// Avoid tight loop if Redis connection drops
		}
	}
}

func (l *Live) apply(payload []byte) error {
	var q Quote
	if err := json.Unmarshal(payload, &q); err != nil {
		return fmt.Errorf("decode quote: %w", err)
	}
	q.Symbol = strings.ToUpper(strings.TrimSpace(q.Symbol))
	if q.Symbol == "" || !q.Price.IsPositive() || q.AsOf.IsZero() {
		return fmt.Errorf("malformed quote %q", payload)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.quotes[q.Symbol]; ok && cur.AsOf.After(q.AsOf) {
		return nil
	}
	l.quotes[q.Symbol] = q
	return nil
}

// PriceAt implements Provider.
func (l *Live) PriceAt(ctx context.Context, symbol string, asOf time.Time) (Quote, error) {
	if !l.cal.DateOf(asOf).Before(l.cal.Today()) {
		l.mu.RLock()
		q, ok := l.quotes[symbol]
		l.mu.RUnlock()
		if ok && l.cal.Now().Sub(q.AsOf) <= l.maxAge {
			return q, nil
		}
	}
	return l.next.PriceAt(ctx, symbol, asOf)
}

// Publish announces q to every Live subscriber.
func Publish(ctx context.Context, rdb *redis.Client, q Quote) error {
	data, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return rdb.Publish(ctx, UpdatesChannel, data).Err()
}
