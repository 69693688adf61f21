package md

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
)

type clockClient interface {
	GetClock() (*alpaca.Clock, error)
}

// MarketClock reports whether the exchange is open, using the Alpaca trading API.
type MarketClock struct {
	client clockClient
}

func NewMarketClock(apiKey, apiSecret, baseURL string) *MarketClock {
	opts := alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	}
	return &MarketClock{client: alpaca.NewClient(opts)}
}

func (m *MarketClock) IsOpen(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	clock, err := m.client.GetClock()
	if err != nil {
		slog.Error("get market clock failed", "error", err)
		return false, fmt.Errorf("get market clock: %w", err)
	}
	slog.Debug("market clock", "open", clock.IsOpen, "next_open", clock.NextOpen, "next_close", clock.NextClose)
	return clock.IsOpen, nil
}
