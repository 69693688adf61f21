// Package decision turns a bot's configuration, open position and the latest
// prices into one action per tick. It reads bot state and proposes changes;
// persisting them is left to the caller.
package decision

import (
	"time"

	"papertrader/internal/bot"
	"papertrader/internal/pattern"
	"papertrader/internal/risk"
	"papertrader/internal/series"
	"papertrader/internal/strategy"
)

const reasonInactive = "Bot is inactive"

// Decision is the dispatcher output. The pointer fields are deltas for the
// state store and are nil when nothing should change.
type Decision struct {
	Action             strategy.Action               `json:"action"`
	Reason             string                        `json:"reason"`
	Method             strategy.MethodTag            `json:"method,omitempty"`
	Overlay            bool                          `json:"overlay,omitempty"`
	ReferencePoint     *pattern.DirectionChangePoint `json:"referencePoint,omitempty"`
	NewDirectionChange *pattern.DirectionChangePoint `json:"newDirectionChange,omitempty"`
	UpdatePosition     *risk.PositionUpdate          `json:"updatePosition,omitempty"`
	UpdateRecovery     *strategy.RecoveryState       `json:"updateRecovery,omitempty"`
}

// Decide evaluates b at the time of the newest sample.
func Decide(b bot.TradingBot, s series.Series, currentPrice float64) Decision {
	return DecideAt(b, s, currentPrice, s.LastTime())
}

// DecideAt evaluates b with an explicit clock reading. Given equal inputs it
// returns equal decisions.
func DecideAt(b bot.TradingBot, s series.Series, currentPrice float64, now time.Time) Decision {
	if !b.IsActive {
		return Decision{Action: strategy.Hold, Reason: reasonInactive}
	}

	pos := b.CurrentPosition
	if pos != nil && b.Settings.Protection.Enabled {
		if v, ok := b.Settings.Protection.Evaluate(pos.Holding(), s, currentPrice); ok {
			return Decision{
				Action:         v.Action,
				Reason:         v.Reason,
				Overlay:        true,
				UpdatePosition: v.Update,
			}
		}
	}

	method := b.Settings.MethodOrDefault()
	in := strategy.Input{
		BotID:              b.ID,
		Series:             s,
		Price:              currentPrice,
		LastProcessedIndex: b.LastProcessedIndex,
		Recovery:           b.Recovery,
		Now:                now,
	}

	var sig strategy.Signal
	if pos == nil {
		sig = method.Buy(in)
	} else {
		in.BuyPrice = pos.BuyPrice
		sig = method.Sell(in)
	}

	return Decision{
		Action:             sig.Action,
		Reason:             sig.Reason,
		Method:             method.Tag(),
		ReferencePoint:     sig.ReferencePoint,
		NewDirectionChange: sig.NewDirectionChange,
		UpdateRecovery:     sig.Recovery,
	}
}
