package risk

import (
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"papertrader/internal/strategy"
)

var (
	ErrKillSwitch       = errors.New("kill_switch_enabled")
	ErrInvalidPrice     = errors.New("invalid_price")
	ErrInsufficientCash = errors.New("insufficient_cash")
	ErrPositionOpen     = errors.New("position_already_open")
	ErrNoPosition       = errors.New("no_position_to_sell")
)

type InvestmentType string

const (
	InvestDollars InvestmentType = "dollars"
	InvestShares  InvestmentType = "shares"
)

// Sizing caps a single purchase, either in dollars or in shares.
// MaxPerTrade <= 0 means the available cash is the only cap.
type Sizing struct {
	MaxPerTrade float64        `json:"maxInvestmentPerTrade" mapstructure:"maxInvestmentPerTrade"`
	Type        InvestmentType `json:"investmentType" mapstructure:"investmentType"`
}

type RiskContext struct {
	Price          float64
	AvailableCash  float64
	PositionShares float64
	Sizing         Sizing
	KillSwitch     bool
}

// Order is an approved action translated into a share quantity.
type Order struct {
	Action   strategy.Action
	Shares   float64
	Price    float64
	Notional float64
}

type Gate struct{}

// Evaluate turns a BUY or SELL into an order. HOLD passes through with zero shares.
func (g Gate) Evaluate(action strategy.Action, ctx RiskContext) (Order, error) {
	if action == strategy.Hold {
		return Order{Action: strategy.Hold, Price: ctx.Price}, nil
	}

	slog.Debug("risk evaluation", "intent", action, "position", ctx.PositionShares, "price", ctx.Price, "cash", ctx.AvailableCash)

	if ctx.KillSwitch {
		slog.Info("risk rejected", "reason", ErrKillSwitch)
		return Order{}, ErrKillSwitch
	}
	if ctx.Price <= 0 {
		slog.Info("risk rejected", "reason", ErrInvalidPrice, "price", ctx.Price)
		return Order{}, ErrInvalidPrice
	}

	switch action {
	case strategy.Buy:
		if ctx.PositionShares > 0 {
			slog.Info("risk rejected", "reason", ErrPositionOpen, "position", ctx.PositionShares)
			return Order{}, ErrPositionOpen
		}
		shares := SharesToBuy(ctx.Sizing, ctx.AvailableCash, ctx.Price)
		if shares <= 0 {
			slog.Info("risk rejected", "reason", ErrInsufficientCash, "cash", ctx.AvailableCash, "price", ctx.Price)
			return Order{}, ErrInsufficientCash
		}
		return newOrder(action, shares, ctx.Price), nil
	case strategy.Sell:
		if ctx.PositionShares <= 0 {
			slog.Info("risk rejected", "reason", ErrNoPosition)
			return Order{}, ErrNoPosition
		}
		return newOrder(action, ctx.PositionShares, ctx.Price), nil
	}
	return Order{Action: strategy.Hold, Price: ctx.Price}, nil
}

func newOrder(action strategy.Action, shares, price float64) Order {
	notional := decimal.NewFromFloat(shares).Mul(decimal.NewFromFloat(price))
	return Order{
		Action:   action,
		Shares:   shares,
		Price:    price,
		Notional: notional.InexactFloat64(),
	}
}

// SharesToBuy is floor(min(max, cash)/price) for dollar sizing and
// min(max, floor(cash/price)) for share sizing.
func SharesToBuy(s Sizing, cash, price float64) float64 {
	if price <= 0 || cash <= 0 {
		return 0
	}
	p := decimal.NewFromFloat(price)
	available := decimal.NewFromFloat(cash)
	affordable := available.Div(p).Floor()

	if s.Type == InvestShares {
		if s.MaxPerTrade > 0 {
			affordable = decimal.Min(affordable, decimal.NewFromFloat(s.MaxPerTrade).Floor())
		}
		return affordable.InexactFloat64()
	}

	budget := available
	if s.MaxPerTrade > 0 {
		budget = decimal.Min(budget, decimal.NewFromFloat(s.MaxPerTrade))
	}
	return budget.Div(p).Floor().InexactFloat64()
}
