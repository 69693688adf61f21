package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"papertrader/internal/series"
	"papertrader/internal/strategy"
)

const (
	DefaultProfitPercent    = 10.0
	DefaultProfitTrigger    = 0.10
	DefaultConsecutiveFalls = 3
)

// Protection is the dollar-drop overlay. It runs ahead of the trading method
// whenever it is enabled and the bot holds a position.
type Protection struct {
	Enabled          bool             `json:"enabled" mapstructure:"enabled"`
	ProfitTaking     ProfitTaking     `json:"profitTaking" mapstructure:"profitTaking"`
	SellAtBuyPrice   bool             `json:"sellAtBuyPrice" mapstructure:"sellAtBuyPrice"`
	ConsecutiveFalls ConsecutiveFalls `json:"consecutiveFalls" mapstructure:"consecutiveFalls"`
}

type ProfitTaking struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	// Percent and Dollars are alternative targets; Dollars <= 0 disables it.
	Percent float64 `json:"percent,omitempty" mapstructure:"percent"`
	Dollars float64 `json:"dollars,omitempty" mapstructure:"dollars"`
	// TriggerDrop is the newest two-sample drop that releases the sale.
	TriggerDrop float64 `json:"triggerDrop,omitempty" mapstructure:"triggerDrop"`
}

type ConsecutiveFalls struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	Count   int  `json:"count,omitempty" mapstructure:"count"`
}

// Holding is the part of an open position the overlay reads.
type Holding struct {
	BuyPrice     float64
	Shares       float64
	PriceHistory []float64
}

// PositionUpdate is tracking state to write back onto the open position.
type PositionUpdate struct {
	ConsecutiveFalls int       `json:"consecutiveFalls"`
	LastPrice        float64   `json:"lastPrice"`
	PriceHistory     []float64 `json:"priceHistory"`
}

type Verdict struct {
	Action strategy.Action
	Reason string
	Update *PositionUpdate
}

func (p Protection) normalized() Protection {
	if p.ProfitTaking.Percent <= 0 {
		p.ProfitTaking.Percent = DefaultProfitPercent
	}
	if p.ProfitTaking.TriggerDrop <= 0 {
		p.ProfitTaking.TriggerDrop = DefaultProfitTrigger
	}
	if p.ConsecutiveFalls.Count <= 0 {
		p.ConsecutiveFalls.Count = DefaultConsecutiveFalls
	}
	return p
}

// Evaluate applies profit-taking, sell-at-buy-price and consecutive-falls in
// that order; the first to fire wins. ok is false when nothing fired and
// there is no tracking state to persist.
func (p Protection) Evaluate(h Holding, s series.Series, price float64) (Verdict, bool) {
	if !p.Enabled {
		return Verdict{}, false
	}
	p = p.normalized()

	if p.ProfitTaking.Enabled {
		if v, ok := p.profitTaking(h, s, price); ok {
			return v, true
		}
	}
	if p.SellAtBuyPrice && price <= h.BuyPrice {
		return Verdict{
			Action: strategy.Sell,
			Reason: fmt.Sprintf("Sell at buy price: %.2f <= buy price %.2f", price, h.BuyPrice),
		}, true
	}
	if p.ConsecutiveFalls.Enabled {
		return p.consecutiveFalls(h, price), true
	}
	return Verdict{}, false
}

func (p Protection) profitTaking(h Holding, s series.Series, price float64) (Verdict, bool) {
	if len(s) < 2 || h.BuyPrice <= 0 {
		return Verdict{}, false
	}
	buy := decimal.NewFromFloat(h.BuyPrice)
	cur := decimal.NewFromFloat(price)
	profit := cur.Sub(buy)
	profitPct := profit.Div(buy).Mul(decimal.NewFromInt(100))
	profitUSD := profit.Mul(decimal.NewFromFloat(h.Shares))

	hitPct := profitPct.GreaterThanOrEqual(decimal.NewFromFloat(p.ProfitTaking.Percent))
	hitUSD := p.ProfitTaking.Dollars > 0 && profitUSD.GreaterThanOrEqual(decimal.NewFromFloat(p.ProfitTaking.Dollars))
	if !hitPct && !hitUSD {
		return Verdict{}, false
	}

	prev := decimal.NewFromFloat(s[len(s)-2].Price)
	last := decimal.NewFromFloat(s[len(s)-1].Price)
	drop := prev.Sub(last)
	if drop.LessThan(decimal.NewFromFloat(p.ProfitTaking.TriggerDrop)) {
		return Verdict{}, false
	}
	return Verdict{
		Action: strategy.Sell,
		Reason: fmt.Sprintf("Profit taking: profit %s%% ($%s) with drop $%s >= $%.2f",
			profitPct.StringFixed(2), profitUSD.StringFixed(2), drop.StringFixed(2), p.ProfitTaking.TriggerDrop),
	}, true
}

func (p Protection) consecutiveFalls(h Holding, price float64) Verdict {
	history := series.RingBufferFrom(series.DefaultHistoryCapacity, h.PriceHistory)
	history.Add(price)
	streak := history.TrailingFalls()

	if streak >= p.ConsecutiveFalls.Count {
		history.Reset(price)
		return Verdict{
			Action: strategy.Sell,
			Reason: fmt.Sprintf("Consecutive falls: %d in a row (limit %d), price %.2f", streak, p.ConsecutiveFalls.Count, price),
			Update: &PositionUpdate{
				ConsecutiveFalls: 0,
				LastPrice:        price,
				PriceHistory:     history.Values(),
			},
		}
	}
	return Verdict{
		Action: strategy.Hold,
		Reason: fmt.Sprintf("Tracking falls: %d of %d, price %.2f", streak, p.ConsecutiveFalls.Count, price),
		Update: &PositionUpdate{
			ConsecutiveFalls: streak,
			LastPrice:        price,
			PriceHistory:     history.Values(),
		},
	}
}
