package pattern

import (
	"fmt"

	"papertrader/internal/series"
)

// PotentialLossSequence is a down-up-down window: a fall into Before, a
// false recovery into Reversal, then a fall into After.
type PotentialLossSequence struct {
	ID               string          `json:"id"`
	BeforeIndex      int             `json:"beforeIndex"`
	ReversalIndex    int             `json:"reversalIndex"`
	AfterIndex       int             `json:"afterIndex"`
	BeforePrice      float64         `json:"beforePrice"`
	ReversalPrice    float64         `json:"reversalPrice"`
	AfterPrice       float64         `json:"afterPrice"`
	BeforeTime       int64           `json:"beforeTime"`
	ReversalTime     int64           `json:"reversalTime"`
	AfterTime        int64           `json:"afterTime"`
	DollarLoss       float64         `json:"dollarLoss"`
	PercentageChange float64         `json:"percentageChange"`
	DataPoints       []series.Sample `json:"dataPoints"`
}

// DetectDownUpDown slides a four-sample window over the series. Overlapping
// windows are each reported; there is no suppression between matches.
func DetectDownUpDown(s series.Series) []PotentialLossSequence {
	if len(s) < 4 {
		return nil
	}
	var out []PotentialLossSequence
	for i := 2; i < len(s)-1; i++ {
		fellIn := s[i-1].Price < s[i-2].Price
		rose := s[i].Price > s[i-1].Price
		fellOut := s[i+1].Price < s[i].Price
		if !fellIn || !rose || !fellOut {
			continue
		}
		points := make([]series.Sample, 4)
		copy(points, s[i-2:i+2])
		loss := s[i].Price - s[i+1].Price
		out = append(out, PotentialLossSequence{
			ID:               fmt.Sprintf("loss-%d", i),
			BeforeIndex:      i - 1,
			ReversalIndex:    i,
			AfterIndex:       i + 1,
			BeforePrice:      s[i-1].Price,
			ReversalPrice:    s[i].Price,
			AfterPrice:       s[i+1].Price,
			BeforeTime:       s[i-1].Timestamp,
			ReversalTime:     s[i].Timestamp,
			AfterTime:        s[i+1].Timestamp,
			DollarLoss:       round2(loss),
			PercentageChange: percentOf(-loss, s[i].Price),
			DataPoints:       points,
		})
	}
	return out
}
