package md

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata/stream"
)

// Bar is one streamed minute bar. Timestamp is milliseconds since epoch.
type Bar struct {
	Symbol    string
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

type BarHandler func(Bar)

// StartStream subscribes to minute bars for symbols and blocks until ctx ends.
func StartStream(ctx context.Context, apiKey, apiSecret, feed string, symbols []string, handler BarHandler) error {
	if len(symbols) == 0 {
		return fmt.Errorf("start stream: no symbols")
	}
	client := stream.NewStocksClient(
		parseFeed(feed),
		stream.WithCredentials(apiKey, apiSecret),
	)

	// Connect must be called before subscribing in this SDK version
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect market data stream: %w", err)
	}
	slog.Debug("connected to stream", "symbols", symbols)

	if err := client.SubscribeToBars(func(bar stream.Bar) {
		slog.Debug("received bar", "symbol", bar.Symbol, "time", bar.Timestamp, "close", bar.Close)
		handler(Bar{
			Symbol:    bar.Symbol,
			Timestamp: bar.Timestamp.UnixMilli(),
			Open:      bar.Open,
			High:      bar.High,
			Low:       bar.Low,
			Close:     bar.Close,
			Volume:    int64(bar.Volume),
		})
	}, symbols...); err != nil {
		return fmt.Errorf("subscribe to bars: %w", err)
	}
	slog.Info("subscribed to bars", "symbols", symbols)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-client.Terminated():
		return fmt.Errorf("market data stream terminated")
	}
}
