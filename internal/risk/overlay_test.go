package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrader/internal/series"
	"papertrader/internal/strategy"
)

var t0 = time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)

func TestProtectionDisabled(t *testing.T) {
	p := Protection{SellAtBuyPrice: true}
	_, ok := p.Evaluate(Holding{BuyPrice: 20, Shares: 1}, series.FromPrices(t0, 20, 19), 19)
	assert.False(t, ok)
}

func TestProtectionSellAtBuyPrice(t *testing.T) {
	p := Protection{Enabled: true, SellAtBuyPrice: true}

	v, ok := p.Evaluate(Holding{BuyPrice: 20, Shares: 5}, series.FromPrices(t0, 20.5, 19.99), 19.99)
	require.True(t, ok)
	assert.Equal(t, strategy.Sell, v.Action)
	assert.Contains(t, v.Reason, "19.99 <= buy price 20.00")

	_, ok = p.Evaluate(Holding{BuyPrice: 20, Shares: 5}, series.FromPrices(t0, 20.5, 20.01), 20.01)
	assert.False(t, ok)
}

func TestProtectionProfitTakingNeedsTriggerDrop(t *testing.T) {
	p := Protection{Enabled: true, ProfitTaking: ProfitTaking{Enabled: true}}
	h := Holding{BuyPrice: 10, Shares: 10}

	v, ok := p.Evaluate(h, series.FromPrices(t0, 11.2, 11.1), 11.1)
	require.True(t, ok)
	assert.Equal(t, strategy.Sell, v.Action)
	assert.Contains(t, v.Reason, "Profit taking")

	// profit reached but still rising
	_, ok = p.Evaluate(h, series.FromPrices(t0, 11.1, 11.2), 11.2)
	assert.False(t, ok)

	// drop without enough profit
	_, ok = p.Evaluate(h, series.FromPrices(t0, 10.6, 10.4), 10.4)
	assert.False(t, ok)
}

func TestProtectionProfitTakingDollarTarget(t *testing.T) {
	p := Protection{Enabled: true, ProfitTaking: ProfitTaking{Enabled: true, Percent: 50, Dollars: 20}}
	h := Holding{BuyPrice: 10, Shares: 100}

	v, ok := p.Evaluate(h, series.FromPrices(t0, 10.5, 10.3), 10.3)
	require.True(t, ok)
	assert.Equal(t, strategy.Sell, v.Action)
}

func TestProtectionProfitTakingWinsOverSellAtBuyPrice(t *testing.T) {
	p := Protection{Enabled: true, SellAtBuyPrice: true, ProfitTaking: ProfitTaking{Enabled: true}}
	v, ok := p.Evaluate(Holding{BuyPrice: 10, Shares: 1}, series.FromPrices(t0, 11.5, 11.2), 11.2)
	require.True(t, ok)
	assert.Contains(t, v.Reason, "Profit taking")
}

func TestProtectionConsecutiveFallsTracksThenSells(t *testing.T) {
	p := Protection{Enabled: true, ConsecutiveFalls: ConsecutiveFalls{Enabled: true, Count: 3}}
	h := Holding{BuyPrice: 50, Shares: 1, PriceHistory: []float64{55, 54}}

	v, ok := p.Evaluate(h, series.FromPrices(t0, 54, 53), 53)
	require.True(t, ok)
	assert.Equal(t, strategy.Hold, v.Action)
	require.NotNil(t, v.Update)
	assert.Equal(t, 2, v.Update.ConsecutiveFalls)
	assert.Equal(t, []float64{55, 54, 53}, v.Update.PriceHistory)

	h.PriceHistory = v.Update.PriceHistory
	v, ok = p.Evaluate(h, series.FromPrices(t0, 53, 52), 52)
	require.True(t, ok)
	assert.Equal(t, strategy.Sell, v.Action)
	require.NotNil(t, v.Update)
	assert.Equal(t, 0, v.Update.ConsecutiveFalls)
	assert.Equal(t, []float64{52}, v.Update.PriceHistory)
}

func TestProtectionConsecutiveFallsHistoryIsCapped(t *testing.T) {
	history := make([]float64, 0, 25)
	for i := 0; i < 25; i++ {
		history = append(history, 100+float64(i))
	}
	p := Protection{Enabled: true, ConsecutiveFalls: ConsecutiveFalls{Enabled: true}}
	v, ok := p.Evaluate(Holding{BuyPrice: 50, PriceHistory: history}, nil, 200)
	require.True(t, ok)
	assert.Len(t, v.Update.PriceHistory, series.DefaultHistoryCapacity)
	assert.Equal(t, 200.0, v.Update.PriceHistory[len(v.Update.PriceHistory)-1])
}
