package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"papertrader/internal/bot"
	"papertrader/internal/ledger"
	"papertrader/internal/strategy"
)

type BotModel struct {
	ID                 string         `gorm:"column:id;primaryKey"`
	Name               string         `gorm:"column:name"`
	Symbol             string         `gorm:"column:symbol;index"`
	IsActive           bool           `gorm:"column:is_active"`
	SettingsJSON       datatypes.JSON `gorm:"column:settings_json;type:TEXT"`
	LastProcessedIndex *int           `gorm:"column:last_processed_index"`
	TotalTrades        int            `gorm:"column:total_trades"`
	WinningTrades      int            `gorm:"column:winning_trades"`
	LosingTrades       int            `gorm:"column:losing_trades"`
	RealizedProfit     float64        `gorm:"column:realized_profit"`
	PositionJSON       datatypes.JSON `gorm:"column:position_json;type:TEXT"`
	RecoveryJSON       datatypes.JSON `gorm:"column:recovery_json;type:TEXT"`
	UpdatedAtUnix      int64          `gorm:"column:updated_at"`
}

func (BotModel) TableName() string { return "bots" }

// PortfolioModel holds the single shared cash row.
type PortfolioModel struct {
	ID   int     `gorm:"column:id;primaryKey"`
	Cash float64 `gorm:"column:cash"`
}

func (PortfolioModel) TableName() string { return "portfolio" }

type TradeModel struct {
	ID            string  `gorm:"column:id;primaryKey"`
	BotID         string  `gorm:"column:bot_id;index"`
	Symbol        string  `gorm:"column:symbol"`
	Action        string  `gorm:"column:action"`
	Shares        float64 `gorm:"column:shares"`
	Price         float64 `gorm:"column:price"`
	Notional      float64 `gorm:"column:notional"`
	Profit        float64 `gorm:"column:profit"`
	Reason        string  `gorm:"column:reason"`
	TimestampUnix int64   `gorm:"column:timestamp;index"`
}

func (TradeModel) TableName() string { return "trades" }

func toBotModel(b bot.TradingBot, now time.Time) (BotModel, error) {
	settings, err := json.Marshal(b.Settings)
	if err != nil {
		return BotModel{}, fmt.Errorf("encode settings: %w", err)
	}
	recovery, err := json.Marshal(b.Recovery)
	if err != nil {
		return BotModel{}, fmt.Errorf("encode recovery: %w", err)
	}
	m := BotModel{
		ID:                 b.ID,
		Name:               b.Name,
		Symbol:             b.StockSymbol,
		IsActive:           b.IsActive,
		SettingsJSON:       settings,
		LastProcessedIndex: b.LastProcessedIndex,
		TotalTrades:        b.Stats.TotalTrades,
		WinningTrades:      b.Stats.WinningTrades,
		LosingTrades:       b.Stats.LosingTrades,
		RealizedProfit:     b.Stats.RealizedProfit,
		RecoveryJSON:       recovery,
		UpdatedAtUnix:      now.UnixMilli(),
	}
	if b.CurrentPosition != nil {
		pos, err := json.Marshal(b.CurrentPosition)
		if err != nil {
			return BotModel{}, fmt.Errorf("encode position: %w", err)
		}
		m.PositionJSON = pos
	}
	return m, nil
}

func (m BotModel) toBot() (bot.TradingBot, error) {
	b := bot.TradingBot{
		ID:                 m.ID,
		Name:               m.Name,
		StockSymbol:        m.Symbol,
		IsActive:           m.IsActive,
		LastProcessedIndex: m.LastProcessedIndex,
		Stats: bot.Stats{
			TotalTrades:    m.TotalTrades,
			WinningTrades:  m.WinningTrades,
			LosingTrades:   m.LosingTrades,
			RealizedProfit: m.RealizedProfit,
		},
	}
	if err := json.Unmarshal(m.SettingsJSON, &b.Settings); err != nil {
		return bot.TradingBot{}, fmt.Errorf("decode settings for %s: %w", m.ID, err)
	}
	if len(m.RecoveryJSON) > 0 {
		if err := json.Unmarshal(m.RecoveryJSON, &b.Recovery); err != nil {
			return bot.TradingBot{}, fmt.Errorf("decode recovery for %s: %w", m.ID, err)
		}
	}
	if len(m.PositionJSON) > 0 && string(m.PositionJSON) != "null" {
		var pos bot.Position
		if err := json.Unmarshal(m.PositionJSON, &pos); err != nil {
			return bot.TradingBot{}, fmt.Errorf("decode position for %s: %w", m.ID, err)
		}
		b.CurrentPosition = &pos
	}
	return b, nil
}

func toTradeModel(t ledger.Trade) TradeModel {
	return TradeModel{
		ID:            t.ID,
		BotID:         t.BotID,
		Symbol:        t.Symbol,
		Action:        string(t.Action),
		Shares:        t.Shares,
		Price:         t.Price,
		Notional:      t.Notional,
		Profit:        t.Profit,
		Reason:        t.Reason,
		TimestampUnix: t.Timestamp.UnixMilli(),
	}
}

func (m TradeModel) toTrade() ledger.Trade {
	return ledger.Trade{
		ID:        m.ID,
		BotID:     m.BotID,
		Symbol:    m.Symbol,
		Action:    strategy.Action(m.Action),
		Shares:    m.Shares,
		Price:     m.Price,
		Notional:  m.Notional,
		Profit:    m.Profit,
		Reason:    m.Reason,
		Timestamp: time.UnixMilli(m.TimestampUnix).UTC(),
	}
}
