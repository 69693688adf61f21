package pattern

import (
	"fmt"

	"papertrader/internal/series"
)

// DefaultMinRun is the minimum run length, counted in samples including the
// pre-rise baseline, for a rise to qualify as a beat sequence.
const DefaultMinRun = 4

// MinRunFloor is the smallest run length a caller may ask for.
const MinRunFloor = 2

// BeatSequence is a maximal run of strictly rising intervals. StartIndex is the
// baseline sample just before the first rise; EndIndex is the last rising sample.
type BeatSequence struct {
	ID               string          `json:"id"`
	StartIndex       int             `json:"startIndex"`
	EndIndex         int             `json:"endIndex"`
	StartTime        int64           `json:"startTime"`
	EndTime          int64           `json:"endTime"`
	StartPrice       float64         `json:"startPrice"`
	EndPrice         float64         `json:"endPrice"`
	DollarGain       float64         `json:"dollarGain"`
	PercentageChange float64         `json:"percentageChange"`
	DataPoints       []series.Sample `json:"dataPoints"`
}

// PotentialProfitSequence is a beat sequence without its entry and exit samples.
type PotentialProfitSequence struct {
	ID               string          `json:"id"`
	StartIndex       int             `json:"startIndex"`
	EndIndex         int             `json:"endIndex"`
	StartTime        int64           `json:"startTime"`
	EndTime          int64           `json:"endTime"`
	StartPrice       float64         `json:"startPrice"`
	EndPrice         float64         `json:"endPrice"`
	DollarGain       float64         `json:"dollarGain"`
	PercentageChange float64         `json:"percentageChange"`
	DataPoints       []series.Sample `json:"dataPoints"`
	ExcludedBeats    int             `json:"excludedBeats"`
	Original         BeatSequence    `json:"originalSequence"`
}

// DetectBeats scans left to right for runs of strictly positive slope. A zero
// slope always ends a run. minRun counts the run's samples including its
// baseline; values below MinRunFloor fall back to DefaultMinRun. A series
// shorter than minRun+1 has no beats.
func DetectBeats(s series.Series, minRun int) []BeatSequence {
	if minRun < MinRunFloor {
		minRun = DefaultMinRun
	}
	if len(s) < minRun+1 {
		return nil
	}

	var out []BeatSequence
	rises := 0
	flush := func(end int) {
		if rises+1 < minRun {
			return
		}
		out = append(out, newBeatSequence(s, end-rises, end))
	}

	for i := 1; i < len(s); i++ {
		if s[i].Price > s[i-1].Price {
			rises++
			continue
		}
		flush(i - 1)
		rises = 0
	}
	// a run reaching the last sample has no breaking interval
	flush(len(s) - 1)
	return out
}

func newBeatSequence(s series.Series, start, end int) BeatSequence {
	points := make([]series.Sample, end-start+1)
	copy(points, s[start:end+1])
	gain := s[end].Price - s[start].Price
	return BeatSequence{
		ID:               fmt.Sprintf("beat-%d-%d", start, end),
		StartIndex:       start,
		EndIndex:         end,
		StartTime:        s[start].Timestamp,
		EndTime:          s[end].Timestamp,
		StartPrice:       s[start].Price,
		EndPrice:         s[end].Price,
		DollarGain:       round2(gain),
		PercentageChange: percentOf(gain, s[start].Price),
		DataPoints:       points,
	}
}

// TrimForPotentialProfit drops the first and last sample of every sequence
// with at least three samples. Shorter sequences are dropped.
func TrimForPotentialProfit(sequences []BeatSequence) []PotentialProfitSequence {
	out := make([]PotentialProfitSequence, 0, len(sequences))
	for _, seq := range sequences {
		if len(seq.DataPoints) < 3 {
			continue
		}
		trimmed := seq.DataPoints[1 : len(seq.DataPoints)-1]
		points := make([]series.Sample, len(trimmed))
		copy(points, trimmed)
		first, last := points[0], points[len(points)-1]
		gain := last.Price - first.Price
		out = append(out, PotentialProfitSequence{
			ID:               fmt.Sprintf("profit-%d-%d", seq.StartIndex+1, seq.EndIndex-1),
			StartIndex:       seq.StartIndex + 1,
			EndIndex:         seq.EndIndex - 1,
			StartTime:        first.Timestamp,
			EndTime:          last.Timestamp,
			StartPrice:       first.Price,
			EndPrice:         last.Price,
			DollarGain:       round2(gain),
			PercentageChange: percentOf(gain, first.Price),
			DataPoints:       points,
			ExcludedBeats:    2,
			Original:         seq,
		})
	}
	return out
}
