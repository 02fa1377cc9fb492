// Package feed lee eventos, cuotas y predicciones de un servicio HTTP/JSON.
// Implementa ports.EventSource, ports.QuoteSource y ports.PredictionSource.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/valuebot/internal/domain"
)

const (
	defaultRatePerSec = 20
	defaultBurst      = 10

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Options configura el cliente. Los ceros toman los valores por defecto.
type Options struct {
	RatePerSec float64
	Burst      int
	Timeout    time.Duration
	RetryWait  time.Duration
	APIKey     string
}

// Client es el HTTP client del feed con rate limiting y retries.
type Client struct {
	http    *http.Client
	base    string
	apiKey  string
	limiter *rate.Limiter
	retry   time.Duration
}

// NewClient crea un Client contra baseURL.
func NewClient(baseURL string, opts Options) *Client {
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = defaultRatePerSec
	}
	if opts.Burst <= 0 {
		opts.Burst = defaultBurst
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = baseRetryWait
	}
	return &Client{
		http:    &http.Client{Timeout: opts.Timeout},
		base:    baseURL,
		apiKey:  opts.APIKey,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.Burst),
		retry:   opts.RetryWait,
	}
}

// statusError es una respuesta no-2xx del feed.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}

// get hace un GET con rate limiting y retries y decodifica el JSON en out.
// 404 se traduce a domain.ErrNotFound; el resto de fallos a domain.ErrUpstreamUnavailable.
func (c *Client) get(ctx context.Context, url string, out any) error {
	err := c.doWithRetry(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		return c.http.Do(req)
	}, out)
	if err == nil {
		return nil
	}

	var se *statusError
	switch {
	case ctx.Err() != nil:
		return err
	case errors.As(err, &se) && se.code == http.StatusNotFound:
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
	}
}

// doWithRetry ejecuta la función con backoff exponencial, respetando el contexto.
func (c *Client) doWithRetry(ctx context.Context, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if attempt == maxRetries || ctx.Err() != nil {
				return fmt.Errorf("request failed after %d retries: %w", attempt, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return &statusError{code: resp.StatusCode, body: "retries exhausted"}
			}
			if resp.StatusCode == http.StatusTooManyRequests {
				slog.Warn("rate limited by feed", "attempt", attempt+1)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return &statusError{code: resp.StatusCode, body: string(body)}
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * c.retry
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
