package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrader/internal/pattern"
	"papertrader/internal/series"
)

var t0 = time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)

func input(price float64, p ...float64) Input {
	return Input{Series: series.FromPrices(t0, p...), Price: price, Now: t0}
}

func intPtr(v int) *int { return &v }

func TestNewFallsBackToTrendReversal(t *testing.T) {
	assert.Equal(t, TagTrendReversal, New("", Params{}).Tag())
	assert.Equal(t, TagTrendReversal, New("moon_shot", Params{}).Tag())
	assert.Equal(t, TagPriceComparison, New("price_comparison", Params{}).Tag())
}

func TestNewAppliesDefaults(t *testing.T) {
	ref := New(string(TagDirectionChangeReference), Params{}).(DirectionChangeReference)
	assert.Equal(t, DefaultDollarDropThreshold, ref.DollarDropThreshold)

	rec := New(string(TagConfirmedRecovery), Params{}).(ConfirmedRecovery)
	assert.Equal(t, DefaultFirstDelay, rec.FirstDelay)
	assert.Equal(t, DefaultSecondDelay, rec.SecondDelay)
}

func TestParamsRoundTrip(t *testing.T) {
	p := Params{FirstDelaySeconds: 5, SecondDelaySeconds: 9, SimulateRecovery: true}
	assert.Equal(t, p, ParamsOf(New(string(TagConfirmedRecovery), p)))

	p = Params{DollarDropThreshold: 2.5}
	assert.Equal(t, p, ParamsOf(New(string(TagDirectionChangeReference), p)))
}

func TestTrendReversal(t *testing.T) {
	m := TrendReversal{}

	sig := m.Buy(input(11, 10, 9, 11))
	assert.Equal(t, Buy, sig.Action)
	assert.Contains(t, sig.Reason, "valley at 9.00")

	assert.Equal(t, Hold, m.Buy(input(11, 10, 12, 11)).Action)
	assert.Equal(t, Sell, m.Sell(input(11, 10, 12, 11)).Action)
	assert.Equal(t, Hold, m.Sell(input(11, 10, 9, 11)).Action)
}

func TestMinimumSamplesHold(t *testing.T) {
	methods := []Method{TrendReversal{}, DirectionChangeReference{}, DirectionChangeBuy{}, PriceComparison{}, SlopeAnalysis{}, NewConfirmedRecovery(0, 0, false)}
	for _, m := range methods {
		t.Run(string(m.Tag()), func(t *testing.T) {
			sig := m.Buy(input(10, 10))
			assert.Equal(t, Hold, sig.Action)
			assert.Contains(t, sig.Reason, "Insufficient data")
		})
	}
}

func TestDirectionChangeReference(t *testing.T) {
	m := DirectionChangeReference{DollarDropThreshold: 5}

	sig := m.Buy(input(10.5, 11, 10, 10.2))
	require.Equal(t, Buy, sig.Action)
	require.NotNil(t, sig.ReferencePoint)
	assert.Equal(t, 10.0, sig.ReferencePoint.Price)

	sig = m.Buy(input(9.5, 11, 10, 10.2))
	assert.Equal(t, Hold, sig.Action)
	assert.NotNil(t, sig.ReferencePoint)

	in := input(95, 100, 99)
	in.BuyPrice = 100
	assert.Equal(t, Sell, m.Sell(in).Action)

	in.Price = 95.01
	assert.Equal(t, Hold, m.Sell(in).Action)
}

func TestDirectionChangeBuySkipsProcessedValley(t *testing.T) {
	// valley at index 5
	s := []float64{10, 11, 12, 11, 10, 9, 10}
	in := input(10, s...)
	in.LastProcessedIndex = intPtr(5)
	assert.Equal(t, Hold, DirectionChangeBuy{}.Buy(in).Action)

	// a later valley at index 8
	in = input(10, append(s, 9.5, 8, 9)...)
	in.LastProcessedIndex = intPtr(5)
	sig := DirectionChangeBuy{}.Buy(in)
	require.Equal(t, Buy, sig.Action)
	require.NotNil(t, sig.NewDirectionChange)
	assert.Equal(t, 8, sig.NewDirectionChange.Index)
}

func TestDirectionChangeBuyWithoutProcessedIndex(t *testing.T) {
	sig := DirectionChangeBuy{}.Buy(input(10, 10, 9, 10))
	require.Equal(t, Buy, sig.Action)
	assert.Equal(t, pattern.Valley, sig.NewDirectionChange.Kind)
}

func TestPriceComparison(t *testing.T) {
	sig := PriceComparison{}.Buy(input(10.5, 9, 10, 10.5))
	assert.Equal(t, Buy, sig.Action)
	assert.Contains(t, sig.Reason, "10.50 > 10.00")

	assert.Equal(t, Hold, PriceComparison{}.Buy(input(10, 10, 10)).Action)
	assert.Equal(t, Sell, PriceComparison{}.Sell(input(9, 10, 9)).Action)
}

func TestSlopeAnalysis(t *testing.T) {
	assert.Equal(t, Buy, SlopeAnalysis{}.Buy(input(11, 10, 11)).Action)
	assert.Equal(t, Hold, SlopeAnalysis{}.Buy(input(10, 11, 10)).Action)
	assert.Equal(t, Sell, SlopeAnalysis{}.Sell(input(10, 11, 10)).Action)
	assert.Equal(t, Hold, SlopeAnalysis{}.Sell(input(10, 10, 10)).Action)
}
