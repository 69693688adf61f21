package strategy

import (
	"fmt"
	"strings"
	"time"

	"papertrader/internal/pattern"
	"papertrader/internal/series"
)

type Action string

const (
	Hold Action = "HOLD"
	Buy  Action = "BUY"
	Sell Action = "SELL"
)

type MethodTag string

const (
	TagTrendReversal            MethodTag = "trend_reversal"
	TagDirectionChangeReference MethodTag = "direction_change_reference"
	TagDirectionChangeBuy       MethodTag = "direction_change_buy"
	TagPriceComparison          MethodTag = "price_comparison"
	TagSlopeAnalysis            MethodTag = "slope_analysis"
	TagConfirmedRecovery        MethodTag = "confirmed_recovery"
)

// Input is everything an evaluator may look at for one tick.
type Input struct {
	BotID              string
	Series             series.Series
	Price              float64
	BuyPrice           float64
	LastProcessedIndex *int
	Recovery           RecoveryState
	Now                time.Time
}

// Signal is an evaluator's verdict plus any state it wants persisted.
type Signal struct {
	Action             Action
	Reason             string
	ReferencePoint     *pattern.DirectionChangePoint
	NewDirectionChange *pattern.DirectionChangePoint
	Recovery           *RecoveryState
}

// Method is one trading method with its own parameters. Buy is evaluated
// when the bot is flat, Sell when it holds a position.
type Method interface {
	Tag() MethodTag
	Buy(in Input) Signal
	Sell(in Input) Signal
}

// Params is the flat configuration surface shared by all methods.
type Params struct {
	DollarDropThreshold float64 `json:"dollarDropThreshold,omitempty" mapstructure:"dollarDropThreshold"`
	FirstDelaySeconds   int     `json:"confirmedRecoveryFirstDelay,omitempty" mapstructure:"confirmedRecoveryFirstDelay"`
	SecondDelaySeconds  int     `json:"confirmedRecoverySecondDelay,omitempty" mapstructure:"confirmedRecoverySecondDelay"`
	SimulateRecovery    bool    `json:"confirmedRecoverySimulate,omitempty" mapstructure:"confirmedRecoverySimulate"`
}

// New builds the method named by tag. Unknown or empty tags fall back to
// trend reversal.
func New(tag string, p Params) Method {
	switch MethodTag(strings.TrimSpace(tag)) {
	case TagDirectionChangeReference:
		threshold := p.DollarDropThreshold
		if threshold <= 0 {
			threshold = DefaultDollarDropThreshold
		}
		return DirectionChangeReference{DollarDropThreshold: threshold}
	case TagDirectionChangeBuy:
		return DirectionChangeBuy{}
	case TagPriceComparison:
		return PriceComparison{}
	case TagSlopeAnalysis:
		return SlopeAnalysis{}
	case TagConfirmedRecovery:
		return NewConfirmedRecovery(p.FirstDelaySeconds, p.SecondDelaySeconds, p.SimulateRecovery)
	default:
		return TrendReversal{}
	}
}

// ParamsOf is the inverse of New for serialization.
func ParamsOf(m Method) Params {
	switch v := m.(type) {
	case DirectionChangeReference:
		return Params{DollarDropThreshold: v.DollarDropThreshold}
	case ConfirmedRecovery:
		return Params{
			FirstDelaySeconds:  int(v.FirstDelay / time.Second),
			SecondDelaySeconds: int(v.SecondDelay / time.Second),
			SimulateRecovery:   v.Simulate,
		}
	default:
		return Params{}
	}
}

func hold(format string, args ...any) Signal {
	return Signal{Action: Hold, Reason: fmt.Sprintf(format, args...)}
}

func insufficient(need, have int) Signal {
	return hold("Insufficient data: need %d samples, have %d", need, have)
}
