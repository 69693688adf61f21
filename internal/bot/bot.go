package bot

import (
	"encoding/json"
	"fmt"

	"papertrader/internal/risk"
	"papertrader/internal/series"
	"papertrader/internal/strategy"
)

// TradingBot is one automated trader bound to a symbol.
type TradingBot struct {
	ID                 string                 `json:"id"`
	Name               string                 `json:"name"`
	StockSymbol        string                 `json:"stockSymbol"`
	IsActive           bool                   `json:"isActive"`
	Settings           Settings               `json:"settings"`
	LastProcessedIndex *int                   `json:"lastProcessedIndex,omitempty"`
	Stats              Stats                  `json:"stats"`
	CurrentPosition    *Position              `json:"currentPosition,omitempty"`
	Recovery           strategy.RecoveryState `json:"recovery"`
}

// Clone returns a copy that shares no pointers or slices with b.
func (b TradingBot) Clone() TradingBot {
	out := b
	if b.LastProcessedIndex != nil {
		idx := *b.LastProcessedIndex
		out.LastProcessedIndex = &idx
	}
	if b.CurrentPosition != nil {
		pos := *b.CurrentPosition
		pos.PriceHistory = append([]float64(nil), b.CurrentPosition.PriceHistory...)
		out.CurrentPosition = &pos
	}
	return out
}

// Position is present only while the bot holds shares.
type Position struct {
	BuyPrice         float64   `json:"buyPrice"`
	Shares           float64   `json:"shares"`
	Timestamp        int64     `json:"timestamp"`
	ConsecutiveFalls int       `json:"consecutiveFalls,omitempty"`
	LastPrice        float64   `json:"lastPrice,omitempty"`
	PriceHistory     []float64 `json:"priceHistory,omitempty"`
}

func (p *Position) Holding() risk.Holding {
	return risk.Holding{
		BuyPrice:     p.BuyPrice,
		Shares:       p.Shares,
		PriceHistory: p.PriceHistory,
	}
}

// Apply merges overlay tracking state into the position.
func (p *Position) Apply(u risk.PositionUpdate) {
	p.ConsecutiveFalls = u.ConsecutiveFalls
	p.LastPrice = u.LastPrice
	p.PriceHistory = append([]float64(nil), u.PriceHistory...)
}

type Stats struct {
	TotalTrades    int     `json:"totalTrades"`
	WinningTrades  int     `json:"winningTrades"`
	LosingTrades   int     `json:"losingTrades"`
	RealizedProfit float64 `json:"realizedProfit"`
}

// Settings selects a trading method and carries sizing and overlay options.
type Settings struct {
	Method      strategy.Method
	Sizing      risk.Sizing
	Protection  risk.Protection
	ChartPeriod series.Interval
}

// DefaultSettings trades trend reversal on 5-minute bars with no overlay.
func DefaultSettings() Settings {
	return Settings{
		Method:      strategy.TrendReversal{},
		Sizing:      risk.Sizing{MaxPerTrade: 1000, Type: risk.InvestDollars},
		ChartPeriod: series.Interval5Min,
	}
}

// MethodOrDefault never returns nil.
func (s Settings) MethodOrDefault() strategy.Method {
	if s.Method == nil {
		return strategy.TrendReversal{}
	}
	return s.Method
}

type settingsWire struct {
	TradingMethod string `json:"tradingMethod"`
	strategy.Params
	risk.Sizing
	DollarDrop  risk.Protection `json:"dollarDrop"`
	ChartPeriod series.Interval `json:"chartPeriod"`
}

func (s Settings) MarshalJSON() ([]byte, error) {
	method := s.MethodOrDefault()
	return json.Marshal(settingsWire{
		TradingMethod: string(method.Tag()),
		Params:        strategy.ParamsOf(method),
		Sizing:        s.Sizing,
		DollarDrop:    s.Protection,
		ChartPeriod:   s.ChartPeriod,
	})
}

func (s *Settings) UnmarshalJSON(data []byte) error {
	var w settingsWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode settings: %w", err)
	}
	s.Method = strategy.New(w.TradingMethod, w.Params)
	s.Sizing = w.Sizing
	s.Protection = w.DollarDrop
	s.ChartPeriod = w.ChartPeriod
	if s.ChartPeriod == "" {
		s.ChartPeriod = series.Interval5Min
	}
	return nil
}
