// Package rediscache cachea en Redis las quotes activas de un QuoteSource.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/alejandrodnm/valuebot/internal/ports"
)

const defaultTTL = 30 * time.Second

// Config son los parámetros de conexión.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewClient crea un cliente go-redis y verifica la conexión con PING.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("rediscache.NewClient: ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// QuoteCache implementa ports.QuoteSource delante de otro QuoteSource.
// Redis es best-effort: si falla, se consulta la fuente y se registra un warning.
//
// Key schema:
//
//	quotes:active:{marketID} - JSON []cachedQuote, TTL corto
type QuoteCache struct {
	rdb    redis.Cmdable
	source ports.QuoteSource
	ttl    time.Duration
}

// NewQuoteCache envuelve source con la caché.
func NewQuoteCache(rdb redis.Cmdable, source ports.QuoteSource, ttl time.Duration) *QuoteCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &QuoteCache{rdb: rdb, source: source, ttl: ttl}
}

func quotesKey(marketID string) string { return "quotes:active:" + marketID }

// cachedQuote es la forma serializada; domain.Quote no lleva tags JSON.
// Solo se cachean quotes activas.
type cachedQuote struct {
	Platform   string    `json:"platform"`
	Selection  string    `json:"selection"`
	Odds       float64   `json:"odds"`
	ObservedAt time.Time `json:"observed_at"`
}

func encodeQuotes(quotes []domain.Quote) ([]byte, error) {
	out := make([]cachedQuote, 0, len(quotes))
	for _, q := range quotes {
		if !q.Active {
			continue
		}
		out = append(out, cachedQuote{
			Platform:   q.Platform,
			Selection:  q.Selection,
			Odds:       q.DecimalOdds,
			ObservedAt: q.ObservedAt,
		})
	}
	return json.Marshal(out)
}

func decodeQuotes(data []byte) ([]domain.Quote, error) {
	var raw []cachedQuote
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	quotes := make([]domain.Quote, 0, len(raw))
	for _, r := range raw {
		quotes = append(quotes, domain.Quote{
			Platform:    r.Platform,
			Selection:   r.Selection,
			DecimalOdds: r.Odds,
			ObservedAt:  r.ObservedAt.UTC(),
			Active:      true,
		})
	}
	return quotes, nil
}

// ListActiveQuotes devuelve la copia cacheada o consulta la fuente y la guarda.
func (c *QuoteCache) ListActiveQuotes(ctx context.Context, marketID string) ([]domain.Quote, error) {
	key := quotesKey(marketID)

	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		quotes, derr := decodeQuotes(data)
		if derr == nil {
			return quotes, nil
		}
		slog.Warn("discarding corrupt cache entry", "key", key, "err", derr)
	case errors.Is(err, redis.Nil):
	case ctx.Err() != nil:
		return nil, fmt.Errorf("rediscache.ListActiveQuotes: %w", ctx.Err())
	default:
		slog.Warn("quote cache unavailable, reading source", "key", key, "err", err)
	}

	quotes, err := c.source.ListActiveQuotes(ctx, marketID)
	if err != nil {
		return nil, err
	}

	if data, err := encodeQuotes(quotes); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			slog.Debug("quote cache write failed", "key", key, "err", err)
		}
	}
	return quotes, nil
}

// Invalidate borra la entrada de un mercado.
func (c *QuoteCache) Invalidate(ctx context.Context, marketID string) error {
	if err := c.rdb.Del(ctx, quotesKey(marketID)).Err(); err != nil {
		return fmt.Errorf("rediscache.Invalidate: %s: %w", marketID, err)
	}
	return nil
}
