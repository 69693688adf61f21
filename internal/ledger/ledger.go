package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"papertrader/internal/bot"
	"papertrader/internal/decision"
	"papertrader/internal/risk"
	"papertrader/internal/strategy"
)

var ErrBotNotFound = errors.New("bot_not_found")

// Portfolio is the shared cash account all bots trade from.
type Portfolio struct {
	Cash float64 `json:"cash"`
}

type Trade struct {
	ID        string          `json:"id"`
	BotID     string          `json:"botId"`
	Symbol    string          `json:"symbol"`
	Action    strategy.Action `json:"action"`
	Shares    float64         `json:"shares"`
	Price     float64         `json:"price"`
	Notional  float64         `json:"notional"`
	Profit    float64         `json:"profit,omitempty"`
	Reason    string          `json:"reason"`
	Timestamp time.Time       `json:"timestamp"`
}

type Options struct {
	Gate       risk.Gate
	KillSwitch bool
}

// Apply folds a decision into the bot and portfolio. State deltas are always
// applied; a BUY or SELL additionally moves cash and shares at price. A gate
// rejection is returned as the error with the deltas already applied.
func Apply(p *Portfolio, b *bot.TradingBot, d decision.Decision, price float64, now time.Time, opts Options) (*Trade, error) {
	if d.UpdatePosition != nil && b.CurrentPosition != nil {
		b.CurrentPosition.Apply(*d.UpdatePosition)
	}
	if d.UpdateRecovery != nil {
		b.Recovery = *d.UpdateRecovery
	}
	if d.Action != strategy.Buy && d.Action != strategy.Sell {
		return nil, nil
	}

	var held float64
	if b.CurrentPosition != nil {
		held = b.CurrentPosition.Shares
	}
	order, err := opts.Gate.Evaluate(d.Action, risk.RiskContext{
		Price:          price,
		AvailableCash:  p.Cash,
		PositionShares: held,
		Sizing:         b.Settings.Sizing,
		KillSwitch:     opts.KillSwitch,
	})
	if err != nil {
		return nil, err
	}

	trade := &Trade{
		ID:        uuid.NewString(),
		BotID:     b.ID,
		Symbol:    b.StockSymbol,
		Action:    order.Action,
		Shares:    order.Shares,
		Price:     order.Price,
		Notional:  order.Notional,
		Reason:    d.Reason,
		Timestamp: now.UTC(),
	}
	cash := decimal.NewFromFloat(p.Cash)
	notional := decimal.NewFromFloat(order.Notional)

	switch order.Action {
	case strategy.Buy:
		p.Cash = cash.Sub(notional).InexactFloat64()
		b.CurrentPosition = &bot.Position{
			BuyPrice:     price,
			Shares:       order.Shares,
			Timestamp:    now.UnixMilli(),
			LastPrice:    price,
			PriceHistory: []float64{price},
		}
		b.Recovery = strategy.RecoveryState{Phase: strategy.RecoveryIdle}
		if d.NewDirectionChange != nil {
			advance(b, d.NewDirectionChange.Index)
		}
	case strategy.Sell:
		buy := decimal.NewFromFloat(b.CurrentPosition.BuyPrice)
		profit := decimal.NewFromFloat(price).Sub(buy).Mul(decimal.NewFromFloat(order.Shares))
		p.Cash = cash.Add(notional).InexactFloat64()
		trade.Profit = profit.InexactFloat64()
		record(&b.Stats, profit)
		b.CurrentPosition = nil
	}
	return trade, nil
}

// advance moves the processed index forward only.
func advance(b *bot.TradingBot, index int) {
	if b.LastProcessedIndex != nil && index <= *b.LastProcessedIndex {
		return
	}
	b.LastProcessedIndex = &index
}

func record(s *bot.Stats, profit decimal.Decimal) {
	s.TotalTrades++
	switch {
	case profit.IsPositive():
		s.WinningTrades++
	case profit.IsNegative():
		s.LosingTrades++
	}
	s.RealizedProfit = decimal.NewFromFloat(s.RealizedProfit).Add(profit).InexactFloat64()
}
