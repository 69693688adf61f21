package series

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Sample is one timestamped price observation. Timestamp is milliseconds since epoch.
type Sample struct {
	Timestamp int64    `json:"timestamp"`
	Price     float64  `json:"price"`
	Volume    int64    `json:"volume"`
	Open      *float64 `json:"open,omitempty"`
	High      *float64 `json:"high,omitempty"`
	Low       *float64 `json:"low,omitempty"`
	Close     *float64 `json:"close,omitempty"`
}

func (s Sample) Time() time.Time {
	return time.UnixMilli(s.Timestamp).UTC()
}

// Series is a chronologically ascending run of samples. Callers own the ordering.
type Series []Sample

func (s Series) Len() int {
	return len(s)
}

// Last returns the newest sample. ok is false for an empty series.
func (s Series) Last() (Sample, bool) {
	if len(s) == 0 {
		return Sample{}, false
	}
	return s[len(s)-1], true
}

// LastTime is the newest sample time, or the zero time for an empty series.
func (s Series) LastTime() time.Time {
	last, ok := s.Last()
	if !ok {
		return time.Time{}
	}
	return last.Time()
}

func (s Series) Prices() []float64 {
	prices := make([]float64, len(s))
	for i, sample := range s {
		prices[i] = sample.Price
	}
	return prices
}

// Tail returns the last n samples, or the whole series when it is shorter.
func (s Series) Tail(n int) Series {
	if n <= 0 {
		return Series{}
	}
	if n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

// Sorted returns an ascending copy; the input is left untouched.
func Sorted(samples []Sample) Series {
	out := make(Series, len(samples))
	copy(out, samples)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}

// FromPrices builds a series with one-minute spacing starting at start.
func FromPrices(start time.Time, prices ...float64) Series {
	out := make(Series, len(prices))
	for i, p := range prices {
		out[i] = Sample{
			Timestamp: start.Add(time.Duration(i) * time.Minute).UnixMilli(),
			Price:     p,
		}
	}
	return out
}

// Interval is the granularity of a historical series.
type Interval string

const (
	Interval1Min   Interval = "1min"
	Interval5Min   Interval = "5min"
	Interval15Min  Interval = "15min"
	Interval30Min  Interval = "30min"
	Interval45Min  Interval = "45min"
	Interval1Hour  Interval = "1h"
	Interval2Hour  Interval = "2h"
	Interval4Hour  Interval = "4h"
	Interval1Day   Interval = "1day"
	Interval1Week  Interval = "1week"
	Interval1Month Interval = "1month"
)

var intervals = []Interval{
	Interval1Min, Interval5Min, Interval15Min, Interval30Min, Interval45Min,
	Interval1Hour, Interval2Hour, Interval4Hour,
	Interval1Day, Interval1Week, Interval1Month,
}

func Intervals() []Interval {
	out := make([]Interval, len(intervals))
	copy(out, intervals)
	return out
}

func ParseInterval(value string) (Interval, error) {
	v := Interval(strings.ToLower(strings.TrimSpace(value)))
	for _, iv := range intervals {
		if iv == v {
			return iv, nil
		}
	}
	return "", fmt.Errorf("unsupported interval: %q", value)
}

// Duration is the nominal span of one sample. Months count as 30 days.
func (i Interval) Duration() time.Duration {
	switch i {
	case Interval1Min:
		return time.Minute
	case Interval5Min:
		return 5 * time.Minute
	case Interval15Min:
		return 15 * time.Minute
	case Interval30Min:
		return 30 * time.Minute
	case Interval45Min:
		return 45 * time.Minute
	case Interval1Hour:
		return time.Hour
	case Interval2Hour:
		return 2 * time.Hour
	case Interval4Hour:
		return 4 * time.Hour
	case Interval1Day:
		return 24 * time.Hour
	case Interval1Week:
		return 7 * 24 * time.Hour
	case Interval1Month:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}
