package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"time"

	"github.com/alejandrodnm/valuebot/internal/domain"
)

// ListUpcoming implementa ports.EventSource: eventos con StartTime en (from, to].
func (c *Client) ListUpcoming(ctx context.Context, sportKey string, from, to time.Time) ([]domain.Event, error) {
	q := url.Values{}
	if sportKey != "" {
		q.Set("sport", sportKey)
	}
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("to", to.UTC().Format(time.RFC3339))

	var resp eventsResponse
	if err := c.get(ctx, c.base+"/v1/events?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("feed.ListUpcoming: %s: %w", sportKey, err)
	}

	events := make([]domain.Event, 0, len(resp.Events))
	for _, r := range resp.Events {
		ev := mapEvent(r)
		// el feed puede devolver bordes inclusivos; se normaliza a (from, to]
		if !ev.StartTime.After(from) || ev.StartTime.After(to) {
			continue
		}
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].StartTime.Equal(events[j].StartTime) {
			return events[i].StartTime.Before(events[j].StartTime)
		}
		return events[i].ID < events[j].ID
	})

	slog.Debug("feed events fetched", "sport", sportKey, "raw", len(resp.Events), "kept", len(events))
	return events, nil
}

// GetMarket implementa ports.EventSource.
func (c *Client) GetMarket(ctx context.Context, marketID string) (domain.Event, domain.Market, error) {
	var resp marketResponse
	if err := c.get(ctx, c.base+"/v1/markets/"+url.PathEscape(marketID), &resp); err != nil {
		return domain.Event{}, domain.Market{}, fmt.Errorf("feed.GetMarket: %s: %w", marketID, err)
	}
	ev := mapEvent(resp.Event)
	return ev, mapMarket(ev.ID, resp.Market), nil
}

// ListActiveQuotes implementa ports.QuoteSource.
func (c *Client) ListActiveQuotes(ctx context.Context, marketID string) ([]domain.Quote, error) {
	var resp quotesResponse
	if err := c.get(ctx, c.base+"/v1/markets/"+url.PathEscape(marketID)+"/quotes", &resp); err != nil {
		return nil, fmt.Errorf("feed.ListActiveQuotes: %s: %w", marketID, err)
	}
	return mapQuotes(resp.Quotes), nil
}

// ListUnresolved implementa ports.PredictionSource.
func (c *Client) ListUnresolved(ctx context.Context, eventID string) ([]domain.Prediction, error) {
	var resp predictionsResponse
	if err := c.get(ctx, c.base+"/v1/events/"+url.PathEscape(eventID)+"/predictions", &resp); err != nil {
		return nil, fmt.Errorf("feed.ListUnresolved: %s: %w", eventID, err)
	}
	return mapPredictions(resp.Predictions), nil
}
