package md

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"papertrader/internal/series"
)

const DefaultCacheCapacity = 500

// HistorySource is anything that serves series and latest prices.
type HistorySource interface {
	History(ctx context.Context, symbol string, interval series.Interval, count int) (series.Series, error)
	LatestPrice(ctx context.Context, symbol string) (float64, time.Time, error)
}

// Cache keeps the newest streamed minute bars per symbol. Requests it cannot
// answer from memory go to the fallback source when one is set.
type Cache struct {
	mu       sync.RWMutex
	capacity int
	bars     map[string]series.Series
	fallback HistorySource
}

func NewCache(capacity int, fallback HistorySource) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &Cache{
		capacity: capacity,
		bars:     map[string]series.Series{},
		fallback: fallback,
	}
}

// Add records a bar. A bar with the same timestamp as the newest one replaces it.
func (c *Cache) Add(bar Bar) {
	symbol := strings.ToUpper(bar.Symbol)
	open, high, low, close := bar.Open, bar.High, bar.Low, bar.Close
	sample := series.Sample{
		Timestamp: bar.Timestamp,
		Price:     bar.Close,
		Volume:    bar.Volume,
		Open:      &open,
		High:      &high,
		Low:       &low,
		Close:     &close,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.bars[symbol]
	if last, ok := s.Last(); ok && last.Timestamp >= sample.Timestamp {
		if last.Timestamp == sample.Timestamp {
			s[len(s)-1] = sample
			return
		}
		s = series.Sorted(append(s, sample))
	} else {
		s = append(s, sample)
	}
	if len(s) > c.capacity {
		s = append(series.Series(nil), s[len(s)-c.capacity:]...)
	}
	c.bars[symbol] = s
}

func (c *Cache) History(ctx context.Context, symbol string, interval series.Interval, count int) (series.Series, error) {
	if interval == series.Interval1Min {
		c.mu.RLock()
		s := c.bars[strings.ToUpper(symbol)]
		out := append(series.Series(nil), s.Tail(count)...)
		c.mu.RUnlock()
		if len(out) > 0 {
			return out, nil
		}
	}
	if c.fallback == nil {
		return nil, fmt.Errorf("history %s %s: %w", symbol, interval, ErrNoData)
	}
	return c.fallback.History(ctx, symbol, interval, count)
}

func (c *Cache) LatestPrice(ctx context.Context, symbol string) (float64, time.Time, error) {
	c.mu.RLock()
	last, ok := c.bars[strings.ToUpper(symbol)].Last()
	c.mu.RUnlock()
	if ok {
		return last.Price, last.Time(), nil
	}
	if c.fallback == nil {
		return 0, time.Time{}, fmt.Errorf("latest price %s: %w", symbol, ErrNoData)
	}
	return c.fallback.LatestPrice(ctx, symbol)
}
