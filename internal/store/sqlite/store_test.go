package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrader/internal/bot"
	"papertrader/internal/decision"
	"papertrader/internal/ledger"
	"papertrader/internal/pattern"
	"papertrader/internal/risk"
	"papertrader/internal/strategy"
)

var now = time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, cash float64) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "papertrader.db")
	s, err := NewStore(path, cash, ledger.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	settings := bot.DefaultSettings()
	settings.Method = strategy.DirectionChangeBuy{}
	settings.Protection = risk.Protection{Enabled: true, SellAtBuyPrice: true}
	require.NoError(t, s.Seed(context.Background(), bot.TradingBot{
		ID: "b1", Name: "one", StockSymbol: "AAPL", IsActive: true, Settings: settings,
	}))
	return s, path
}

func TestStoreBuyThenSell(t *testing.T) {
	s, _ := newTestStore(t, 2000)
	ctx := context.Background()

	valley := pattern.DirectionChangePoint{Index: 4, Price: 99, Kind: pattern.Valley}
	trade, err := s.Commit(ctx, "b1", decision.Decision{Action: strategy.Buy, NewDirectionChange: &valley}, 100, now)
	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.Equal(t, 10.0, trade.Shares)

	b, err := s.Bot(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, b.CurrentPosition)
	require.NotNil(t, b.LastProcessedIndex)
	assert.Equal(t, 4, *b.LastProcessedIndex)
	assert.Equal(t, strategy.TagDirectionChangeBuy, b.Settings.Method.Tag())
	assert.True(t, b.Settings.Protection.SellAtBuyPrice)

	_, err = s.Commit(ctx, "b1", decision.Decision{Action: strategy.Sell}, 110, now.Add(time.Minute))
	require.NoError(t, err)

	b, err = s.Bot(ctx, "b1")
	require.NoError(t, err)
	assert.Nil(t, b.CurrentPosition)
	assert.Equal(t, bot.Stats{TotalTrades: 1, WinningTrades: 1, RealizedProfit: 100}, b.Stats)

	p, err := s.Portfolio(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2100.0, p.Cash)

	trades, err := s.Trades(ctx, "b1", 0)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, strategy.Sell, trades[0].Action)
	assert.Equal(t, 100.0, trades[0].Profit)
}

func TestStoreRejectionPersistsDeltas(t *testing.T) {
	s, _ := newTestStore(t, 1)
	ctx := context.Background()

	recovery := strategy.RecoveryState{Phase: strategy.AwaitingSecondConfirmation, AnchorPrice: 50, CheckAt: now}
	_, err := s.Commit(ctx, "b1", decision.Decision{Action: strategy.Buy, UpdateRecovery: &recovery}, 100, now)
	assert.ErrorIs(t, err, risk.ErrInsufficientCash)

	b, err := s.Bot(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, strategy.AwaitingSecondConfirmation, b.Recovery.Phase)
	assert.True(t, b.Recovery.CheckAt.Equal(now))
}

func TestStoreReopenKeepsState(t *testing.T) {
	s, path := newTestStore(t, 1000)
	ctx := context.Background()
	_, err := s.Commit(ctx, "b1", decision.Decision{Action: strategy.Buy}, 100, now)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := NewStore(path, 5000, ledger.Options{})
	require.NoError(t, err)
	defer reopened.Close()

	p, err := reopened.Portfolio(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.Cash)

	bots, err := reopened.Bots(ctx)
	require.NoError(t, err)
	require.Len(t, bots, 1)
	require.NotNil(t, bots[0].CurrentPosition)
	assert.Equal(t, []float64{100}, bots[0].CurrentPosition.PriceHistory)
}

func TestStoreUnknownBot(t *testing.T) {
	s, _ := newTestStore(t, 10)
	_, err := s.Bot(context.Background(), "missing")
	assert.ErrorIs(t, err, ledger.ErrBotNotFound)
	_, err = s.Commit(context.Background(), "missing", decision.Decision{}, 1, now)
	assert.ErrorIs(t, err, ledger.ErrBotNotFound)
}
