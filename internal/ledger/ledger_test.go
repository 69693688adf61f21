package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrader/internal/bot"
	"papertrader/internal/decision"
	"papertrader/internal/pattern"
	"papertrader/internal/risk"
	"papertrader/internal/strategy"
)

var now = time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)

func testBot() *bot.TradingBot {
	settings := bot.DefaultSettings()
	settings.Sizing = risk.Sizing{MaxPerTrade: 500, Type: risk.InvestDollars}
	return &bot.TradingBot{ID: "b1", StockSymbol: "AAPL", IsActive: true, Settings: settings}
}

func TestApplyBuyOpensPosition(t *testing.T) {
	p := &Portfolio{Cash: 1000}
	b := testBot()
	b.Recovery = strategy.RecoveryState{Phase: strategy.RecoveryConfirmed}
	valley := pattern.DirectionChangePoint{Index: 7, Price: 48, Kind: pattern.Valley}

	trade, err := Apply(p, b, decision.Decision{Action: strategy.Buy, Reason: "r", NewDirectionChange: &valley}, 49, now, Options{})
	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.NotEmpty(t, trade.ID)
	assert.Equal(t, 10.0, trade.Shares)
	assert.Equal(t, 510.0, p.Cash)

	require.NotNil(t, b.CurrentPosition)
	assert.Equal(t, 49.0, b.CurrentPosition.BuyPrice)
	assert.Equal(t, []float64{49}, b.CurrentPosition.PriceHistory)
	assert.Equal(t, strategy.RecoveryIdle, b.Recovery.Phase)
	require.NotNil(t, b.LastProcessedIndex)
	assert.Equal(t, 7, *b.LastProcessedIndex)
}

func TestApplySellClosesPositionAndRecordsStats(t *testing.T) {
	p := &Portfolio{Cash: 100}
	b := testBot()
	b.CurrentPosition = &bot.Position{BuyPrice: 10, Shares: 5}

	trade, err := Apply(p, b, decision.Decision{Action: strategy.Sell}, 12, now, Options{})
	require.NoError(t, err)
	assert.Equal(t, 10.0, trade.Profit)
	assert.Equal(t, 160.0, p.Cash)
	assert.Nil(t, b.CurrentPosition)
	assert.Equal(t, bot.Stats{TotalTrades: 1, WinningTrades: 1, RealizedProfit: 10}, b.Stats)

	b.CurrentPosition = &bot.Position{BuyPrice: 10, Shares: 5}
	_, err = Apply(p, b, decision.Decision{Action: strategy.Sell}, 9, now, Options{})
	require.NoError(t, err)
	assert.Equal(t, bot.Stats{TotalTrades: 2, WinningTrades: 1, LosingTrades: 1, RealizedProfit: 5}, b.Stats)
}

func TestApplyHoldPersistsDeltasOnly(t *testing.T) {
	p := &Portfolio{Cash: 100}
	b := testBot()
	b.CurrentPosition = &bot.Position{BuyPrice: 10, Shares: 5}

	d := decision.Decision{
		Action:         strategy.Hold,
		UpdatePosition: &risk.PositionUpdate{ConsecutiveFalls: 2, LastPrice: 9, PriceHistory: []float64{11, 10, 9}},
	}
	trade, err := Apply(p, b, d, 9, now, Options{})
	require.NoError(t, err)
	assert.Nil(t, trade)
	assert.Equal(t, 100.0, p.Cash)
	assert.Equal(t, 2, b.CurrentPosition.ConsecutiveFalls)
	assert.Equal(t, []float64{11, 10, 9}, b.CurrentPosition.PriceHistory)
}

func TestApplyRejectionKeepsDeltas(t *testing.T) {
	p := &Portfolio{Cash: 5}
	b := testBot()
	pending := strategy.RecoveryState{Phase: strategy.RecoveryConfirmed}

	_, err := Apply(p, b, decision.Decision{Action: strategy.Buy, UpdateRecovery: &pending}, 10, now, Options{})
	assert.ErrorIs(t, err, risk.ErrInsufficientCash)
	assert.Nil(t, b.CurrentPosition)
	assert.Equal(t, strategy.RecoveryConfirmed, b.Recovery.Phase)
}

func TestProcessedIndexNeverRegresses(t *testing.T) {
	b := testBot()
	advance(b, 9)
	advance(b, 4)
	require.NotNil(t, b.LastProcessedIndex)
	assert.Equal(t, 9, *b.LastProcessedIndex)
}
