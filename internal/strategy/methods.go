package strategy

import (
	"fmt"

	"papertrader/internal/pattern"
	"papertrader/internal/series"
)

const DefaultDollarDropThreshold = 5.0

// TrendReversalBuy reports whether the last direction change is a valley.
func TrendReversalBuy(s series.Series) (pattern.DirectionChangePoint, bool) {
	last, ok := pattern.LastDirectionChange(s)
	return last, ok && last.Kind == pattern.Valley
}

// TrendReversalSell reports whether the last direction change is a peak.
func TrendReversalSell(s series.Series) (pattern.DirectionChangePoint, bool) {
	last, ok := pattern.LastDirectionChange(s)
	return last, ok && last.Kind == pattern.Peak
}

// PriceRose compares the two newest samples.
func PriceRose(s series.Series) bool {
	return len(s) >= 2 && s[len(s)-1].Price > s[len(s)-2].Price
}

func PriceFell(s series.Series) bool {
	return len(s) >= 2 && s[len(s)-1].Price < s[len(s)-2].Price
}

// LastSlope is the price change per interval across the two newest samples.
func LastSlope(s series.Series) float64 {
	if len(s) < 2 {
		return 0
	}
	return s[len(s)-1].Price - s[len(s)-2].Price
}

type TrendReversal struct{}

func (TrendReversal) Tag() MethodTag { return TagTrendReversal }

func (TrendReversal) Buy(in Input) Signal {
	if len(in.Series) < 3 {
		return insufficient(3, len(in.Series))
	}
	point, ok := TrendReversalBuy(in.Series)
	if !ok {
		return noReversal(in.Series, pattern.Valley)
	}
	return Signal{
		Action: Buy,
		Reason: fmt.Sprintf("Trend reversal: valley at %.2f (index %d), current price %.2f", point.Price, point.Index, in.Price),
	}
}

func (TrendReversal) Sell(in Input) Signal {
	return trendReversalSell(in)
}

func trendReversalSell(in Input) Signal {
	if len(in.Series) < 3 {
		return insufficient(3, len(in.Series))
	}
	point, ok := TrendReversalSell(in.Series)
	if !ok {
		return noReversal(in.Series, pattern.Peak)
	}
	return Signal{
		Action: Sell,
		Reason: fmt.Sprintf("Trend reversal: peak at %.2f (index %d), current price %.2f", point.Price, point.Index, in.Price),
	}
}

func noReversal(s series.Series, want pattern.PointKind) Signal {
	last, ok := pattern.LastDirectionChange(s)
	if !ok {
		return hold("No direction change detected")
	}
	return hold("Waiting for %s: last direction change is %s at %.2f (index %d)", want, last.Kind, last.Price, last.Index)
}

// DirectionChangeReference buys above the last direction-change price and
// sells once price falls DollarDropThreshold below the buy price.
type DirectionChangeReference struct {
	DollarDropThreshold float64
}

func (DirectionChangeReference) Tag() MethodTag { return TagDirectionChangeReference }

func (DirectionChangeReference) Buy(in Input) Signal {
	if len(in.Series) < 3 {
		return insufficient(3, len(in.Series))
	}
	ref, ok := pattern.LastDirectionChange(in.Series)
	if !ok {
		return hold("No direction change reference point")
	}
	if in.Price > ref.Price {
		return Signal{
			Action:         Buy,
			Reason:         fmt.Sprintf("Price %.2f above direction change reference %.2f (%s, index %d)", in.Price, ref.Price, ref.Kind, ref.Index),
			ReferencePoint: &ref,
		}
	}
	sig := hold("Price %.2f not above direction change reference %.2f", in.Price, ref.Price)
	sig.ReferencePoint = &ref
	return sig
}

func (m DirectionChangeReference) Sell(in Input) Signal {
	threshold := m.DollarDropThreshold
	if threshold <= 0 {
		threshold = DefaultDollarDropThreshold
	}
	drop := in.BuyPrice - in.Price
	if drop >= threshold {
		return Signal{
			Action: Sell,
			Reason: fmt.Sprintf("Price dropped $%.2f from buy price %.2f to %.2f (threshold $%.2f)", drop, in.BuyPrice, in.Price, threshold),
		}
	}
	return hold("Drop $%.2f from buy price %.2f below threshold $%.2f", drop, in.BuyPrice, threshold)
}

// DirectionChangeBuy buys on a fresh valley, one not at or before the last
// processed index.
type DirectionChangeBuy struct{}

func (DirectionChangeBuy) Tag() MethodTag { return TagDirectionChangeBuy }

func (DirectionChangeBuy) Buy(in Input) Signal {
	if len(in.Series) < 3 {
		return insufficient(3, len(in.Series))
	}
	last, ok := pattern.LastDirectionChange(in.Series)
	if !ok {
		return hold("No direction change detected")
	}
	if last.Kind != pattern.Valley {
		return hold("Newest direction change is a %s at %.2f (index %d)", last.Kind, last.Price, last.Index)
	}
	if in.LastProcessedIndex != nil && last.Index <= *in.LastProcessedIndex {
		return hold("Valley at index %d already processed (last processed %d)", last.Index, *in.LastProcessedIndex)
	}
	return Signal{
		Action:             Buy,
		Reason:             fmt.Sprintf("New valley at %.2f (index %d), current price %.2f", last.Price, last.Index, in.Price),
		ReferencePoint:     &last,
		NewDirectionChange: &last,
	}
}

func (DirectionChangeBuy) Sell(in Input) Signal {
	return trendReversalSell(in)
}

type PriceComparison struct{}

func (PriceComparison) Tag() MethodTag { return TagPriceComparison }

func (PriceComparison) Buy(in Input) Signal {
	if len(in.Series) < 2 {
		return insufficient(2, len(in.Series))
	}
	cur, prev := lastTwo(in.Series)
	if PriceRose(in.Series) {
		return Signal{Action: Buy, Reason: fmt.Sprintf("Price increased: %.2f > %.2f", cur, prev)}
	}
	return hold("Price not increasing: %.2f <= %.2f", cur, prev)
}

func (PriceComparison) Sell(in Input) Signal {
	if len(in.Series) < 2 {
		return insufficient(2, len(in.Series))
	}
	cur, prev := lastTwo(in.Series)
	if PriceFell(in.Series) {
		return Signal{Action: Sell, Reason: fmt.Sprintf("Price decreased: %.2f < %.2f", cur, prev)}
	}
	return hold("Price not decreasing: %.2f >= %.2f", cur, prev)
}

type SlopeAnalysis struct{}

func (SlopeAnalysis) Tag() MethodTag { return TagSlopeAnalysis }

func (SlopeAnalysis) Buy(in Input) Signal {
	if len(in.Series) < 2 {
		return insufficient(2, len(in.Series))
	}
	slope := LastSlope(in.Series)
	if slope > 0 {
		return Signal{Action: Buy, Reason: fmt.Sprintf("Positive slope %.4f", slope)}
	}
	return hold("Slope %.4f not positive", slope)
}

func (SlopeAnalysis) Sell(in Input) Signal {
	if len(in.Series) < 2 {
		return insufficient(2, len(in.Series))
	}
	slope := LastSlope(in.Series)
	if slope < 0 {
		return Signal{Action: Sell, Reason: fmt.Sprintf("Negative slope %.4f", slope)}
	}
	return hold("Slope %.4f not negative", slope)
}

func lastTwo(s series.Series) (cur, prev float64) {
	return s[len(s)-1].Price, s[len(s)-2].Price
}
