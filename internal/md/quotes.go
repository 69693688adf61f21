package md

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"papertrader/internal/series"
)

var ErrNoData = errors.New("no_market_data")

// minLookback covers a long weekend for intraday intervals.
const minLookback = 96 * time.Hour

// barsClient is the slice of the Alpaca market data client the source uses.
type barsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
	GetLatestTrade(symbol string, req marketdata.GetLatestTradeRequest) (*marketdata.Trade, error)
}

// AlpacaSource serves historical series and latest prices from Alpaca.
type AlpacaSource struct {
	client barsClient
	feed   marketdata.Feed
	now    func() time.Time
}

func NewAlpacaSource(apiKey, apiSecret, baseURL, feed string) *AlpacaSource {
	client := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})
	return newAlpacaSource(client, feed, time.Now)
}

func newAlpacaSource(client barsClient, feed string, now func() time.Time) *AlpacaSource {
	return &AlpacaSource{client: client, feed: parseFeed(feed), now: now}
}

// History returns up to count samples at interval, oldest first.
func (a *AlpacaSource) History(ctx context.Context, symbol string, interval series.Interval, count int) (series.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tf, err := TimeFrame(interval)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		count = 1
	}
	end := a.now().UTC()
	lookback := time.Duration(count) * interval.Duration() * 5
	if lookback < minLookback {
		lookback = minLookback
	}

	bars, err := a.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: tf,
		Start:     end.Add(-lookback),
		End:       end,
		Feed:      a.feed,
	})
	if err != nil {
		return nil, fmt.Errorf("get bars %s %s: %w", symbol, interval, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("get bars %s %s: %w", symbol, interval, ErrNoData)
	}

	samples := make([]series.Sample, 0, len(bars))
	for _, b := range bars {
		samples = append(samples, fromBar(b))
	}
	return series.Sorted(samples).Tail(count), nil
}

// LatestPrice is the last trade price and its time.
func (a *AlpacaSource) LatestPrice(ctx context.Context, symbol string) (float64, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return 0, time.Time{}, err
	}
	trade, err := a.client.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{Feed: a.feed})
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("get latest trade %s: %w", symbol, err)
	}
	if trade == nil || trade.Price <= 0 {
		return 0, time.Time{}, fmt.Errorf("get latest trade %s: %w", symbol, ErrNoData)
	}
	return trade.Price, trade.Timestamp.UTC(), nil
}

// TimeFrame maps a chart interval onto an Alpaca bar timeframe.
func TimeFrame(interval series.Interval) (marketdata.TimeFrame, error) {
	switch interval {
	case series.Interval1Min:
		return marketdata.NewTimeFrame(1, marketdata.Min), nil
	case series.Interval5Min:
		return marketdata.NewTimeFrame(5, marketdata.Min), nil
	case series.Interval15Min:
		return marketdata.NewTimeFrame(15, marketdata.Min), nil
	case series.Interval30Min:
		return marketdata.NewTimeFrame(30, marketdata.Min), nil
	case series.Interval45Min:
		return marketdata.NewTimeFrame(45, marketdata.Min), nil
	case series.Interval1Hour:
		return marketdata.NewTimeFrame(1, marketdata.Hour), nil
	case series.Interval2Hour:
		return marketdata.NewTimeFrame(2, marketdata.Hour), nil
	case series.Interval4Hour:
		return marketdata.NewTimeFrame(4, marketdata.Hour), nil
	case series.Interval1Day:
		return marketdata.NewTimeFrame(1, marketdata.Day), nil
	case series.Interval1Week:
		return marketdata.NewTimeFrame(1, marketdata.Week), nil
	case series.Interval1Month:
		return marketdata.NewTimeFrame(1, marketdata.Month), nil
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("unsupported interval: %q", interval)
	}
}

func fromBar(b marketdata.Bar) series.Sample {
	open, high, low, close := b.Open, b.High, b.Low, b.Close
	return series.Sample{
		Timestamp: b.Timestamp.UnixMilli(),
		Price:     b.Close,
		Volume:    int64(b.Volume),
		Open:      &open,
		High:      &high,
		Low:       &low,
		Close:     &close,
	}
}

func parseFeed(feed string) marketdata.Feed {
	switch feed {
	case "iex":
		return marketdata.IEX
	case "sip":
		return marketdata.SIP
	default:
		return marketdata.IEX
	}
}
