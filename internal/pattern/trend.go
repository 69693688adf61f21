package pattern

import (
	"math"

	"github.com/markcheno/go-talib"

	"papertrader/internal/series"
)

type Direction string

const (
	Up      Direction = "up"
	Down    Direction = "down"
	Neutral Direction = "neutral"
)

type Strength string

const (
	Strong   Strength = "strong"
	Moderate Strength = "moderate"
	Weak     Strength = "weak"
)

const (
	DefaultSensitivity = 0.5
	trendWindow        = 10
	recentWindow       = 3
	movementThreshold  = 0.05
)

type Trend struct {
	Direction  Direction `json:"direction"`
	Percentage float64   `json:"percentage"`
	Strength   Strength  `json:"strength"`
	Slope      float64   `json:"slope"`
}

// EstimateTrend fits a least-squares line over the last ten samples and
// weighs it against the change over the last three. Thresholds scale with
// sensitivity; sensitivity <= 0 uses DefaultSensitivity.
func EstimateTrend(s series.Series, sensitivity float64) Trend {
	if len(s) < 3 {
		return Trend{Direction: Neutral, Strength: Weak}
	}
	if sensitivity <= 0 {
		sensitivity = DefaultSensitivity
	}
	threshold := sensitivity * 0.05

	window := s.Tail(trendWindow).Prices()
	recent := s.Tail(recentWindow).Prices()

	slope := regressionSlope(window)
	overall := changePercent(window)
	recentPct := changePercent(recent)

	recentUp := recentPct > threshold
	recentDown := recentPct < -threshold
	overallUp := slope > threshold && overall > threshold
	overallDown := slope < -threshold && overall < -threshold

	direction := Neutral
	switch {
	case recentUp || (overallUp && !recentDown):
		direction = Up
	case recentDown || (overallDown && !recentUp):
		direction = Down
	}

	absOverall, absRecent, absSlope := math.Abs(overall), math.Abs(recentPct), math.Abs(slope)
	strength := Weak
	switch {
	case (absOverall > 1.0 && absRecent > 0.3) || absSlope > 0.3:
		strength = Strong
	case (absOverall > 0.3 && absRecent > 0.1) || absSlope > 0.1:
		strength = Moderate
	}

	pct := overall
	if absRecent > absOverall {
		pct = recentPct
	}
	return Trend{
		Direction:  direction,
		Percentage: round2(pct),
		Strength:   strength,
		Slope:      slope,
	}
}

func regressionSlope(prices []float64) float64 {
	if len(prices) < 2 {
		return 0
	}
	out := talib.LinearRegSlope(prices, len(prices))
	slope := out[len(out)-1]
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		return 0
	}
	return slope
}

func changePercent(prices []float64) float64 {
	if len(prices) < 2 || prices[0] == 0 {
		return 0
	}
	first, last := prices[0], prices[len(prices)-1]
	return (last - first) / first * 100
}

// LastIntervalMovement compares the newest sample with the one periods
// samples earlier (or the first sample when the series is shorter) using a
// fixed 0.05% band.
func LastIntervalMovement(s series.Series, periods int) Trend {
	if periods <= 0 {
		periods = 3
	}
	if len(s) < 2 {
		return Trend{Direction: Neutral, Strength: Weak}
	}
	from := len(s) - 1 - periods
	if from < 0 {
		from = 0
	}
	pct := changePercent([]float64{s[from].Price, s[len(s)-1].Price})
	direction := Neutral
	switch {
	case pct > movementThreshold:
		direction = Up
	case pct < -movementThreshold:
		direction = Down
	}
	return Trend{Direction: direction, Percentage: round2(pct), Strength: Weak}
}
