package decision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrader/internal/bot"
	"papertrader/internal/risk"
	"papertrader/internal/series"
	"papertrader/internal/strategy"
)

var t0 = time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)

func newBot(method strategy.Method) bot.TradingBot {
	settings := bot.DefaultSettings()
	settings.Method = method
	return bot.TradingBot{ID: "bot-1", Name: "test", StockSymbol: "AAPL", IsActive: true, Settings: settings}
}

func intPtr(v int) *int { return &v }

func TestDecideInactiveBotHolds(t *testing.T) {
	b := newBot(strategy.PriceComparison{})
	b.IsActive = false

	d := Decide(b, series.FromPrices(t0, 10, 11), 11)
	assert.Equal(t, strategy.Hold, d.Action)
	assert.Equal(t, "Bot is inactive", d.Reason)
}

func TestDecidePriceComparisonBuy(t *testing.T) {
	b := newBot(strategy.PriceComparison{})

	d := Decide(b, series.FromPrices(t0, 9, 9.5, 10, 10.5), 10.5)
	assert.Equal(t, strategy.Buy, d.Action)
	assert.Contains(t, d.Reason, "10.50 > 10.00")
	assert.Equal(t, strategy.TagPriceComparison, d.Method)
}

func TestDecideOverlaySellsRegardlessOfMethod(t *testing.T) {
	methods := []strategy.Method{
		strategy.TrendReversal{},
		strategy.DirectionChangeReference{DollarDropThreshold: 5},
		strategy.DirectionChangeBuy{},
		strategy.PriceComparison{},
		strategy.SlopeAnalysis{},
		strategy.NewConfirmedRecovery(0, 0, false),
	}
	for _, m := range methods {
		t.Run(string(m.Tag()), func(t *testing.T) {
			b := newBot(m)
			b.Settings.Protection = risk.Protection{Enabled: true, SellAtBuyPrice: true}
			b.CurrentPosition = &bot.Position{BuyPrice: 20, Shares: 10}

			d := Decide(b, series.FromPrices(t0, 19.5, 20.5, 19.99), 19.99)
			assert.Equal(t, strategy.Sell, d.Action)
			assert.True(t, d.Overlay)
		})
	}
}

func TestDecideOverlayTrackingHoldIsTerminal(t *testing.T) {
	b := newBot(strategy.PriceComparison{})
	b.Settings.Protection = risk.Protection{Enabled: true, ConsecutiveFalls: risk.ConsecutiveFalls{Enabled: true, Count: 3}}
	b.CurrentPosition = &bot.Position{BuyPrice: 10, Shares: 1, PriceHistory: []float64{12}}

	// price fell, so price_comparison alone would sell
	d := Decide(b, series.FromPrices(t0, 12, 11), 11)
	assert.Equal(t, strategy.Hold, d.Action)
	require.NotNil(t, d.UpdatePosition)
	assert.Equal(t, 1, d.UpdatePosition.ConsecutiveFalls)
	assert.Equal(t, []float64{12, 11}, d.UpdatePosition.PriceHistory)
}

func TestDecideOverlayFallsThroughToMethod(t *testing.T) {
	b := newBot(strategy.PriceComparison{})
	b.Settings.Protection = risk.Protection{Enabled: true, SellAtBuyPrice: true}
	b.CurrentPosition = &bot.Position{BuyPrice: 10, Shares: 1}

	d := Decide(b, series.FromPrices(t0, 12, 11), 11)
	assert.Equal(t, strategy.Sell, d.Action)
	assert.False(t, d.Overlay)
	assert.Contains(t, d.Reason, "11.00 < 12.00")
}

func TestDecideDirectionChangeBuyRespectsProcessedIndex(t *testing.T) {
	b := newBot(strategy.DirectionChangeBuy{})
	b.LastProcessedIndex = intPtr(5)

	// newest valley at index 5
	d := Decide(b, series.FromPrices(t0, 10, 11, 12, 11, 10, 9, 10), 10)
	assert.Equal(t, strategy.Hold, d.Action)
	assert.Nil(t, d.NewDirectionChange)

	// newest valley at index 7
	d = Decide(b, series.FromPrices(t0, 10, 11, 12, 11, 10, 9, 10, 8, 9), 9)
	require.Equal(t, strategy.Buy, d.Action)
	require.NotNil(t, d.NewDirectionChange)
	assert.Equal(t, 7, d.NewDirectionChange.Index)
}

func TestDecideDirectionChangeReferenceSell(t *testing.T) {
	b := newBot(strategy.DirectionChangeReference{DollarDropThreshold: 5})
	b.CurrentPosition = &bot.Position{BuyPrice: 100, Shares: 1}

	d := Decide(b, series.FromPrices(t0, 99, 96, 94.5), 94.5)
	assert.Equal(t, strategy.Sell, d.Action)
	assert.Contains(t, d.Reason, "$5.50")
}

func TestDecideNilMethodFallsBackToTrendReversal(t *testing.T) {
	b := newBot(nil)
	d := Decide(b, series.FromPrices(t0, 10, 9, 10), 10)
	assert.Equal(t, strategy.Buy, d.Action)
	assert.Equal(t, strategy.TagTrendReversal, d.Method)
}

func TestDecideIsDeterministic(t *testing.T) {
	b := newBot(strategy.NewConfirmedRecovery(0, 0, true))
	s := series.FromPrices(t0, 10, 11, 10.5)

	first := Decide(b, s, 10.5)
	second := Decide(b, s, 10.5)
	assert.Equal(t, first, second)
}

func TestDecideConfirmedRecoveryUsesClock(t *testing.T) {
	b := newBot(strategy.NewConfirmedRecovery(15, 30, false))
	s := series.FromPrices(t0, 10, 11, 10.5)

	d := DecideAt(b, s, 10.5, t0.Add(time.Hour))
	require.NotNil(t, d.UpdateRecovery)
	assert.Equal(t, strategy.AwaitingFirstConfirmation, d.UpdateRecovery.Phase)
	assert.Equal(t, t0.Add(time.Hour+15*time.Second), d.UpdateRecovery.CheckAt)

	b.Recovery = *d.UpdateRecovery
	d = DecideAt(b, s, 10.4, t0.Add(time.Hour+15*time.Second))
	require.NotNil(t, d.UpdateRecovery)
	assert.Equal(t, strategy.AwaitingSecondConfirmation, d.UpdateRecovery.Phase)
}
