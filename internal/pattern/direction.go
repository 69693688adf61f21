package pattern

import "papertrader/internal/series"

type PointKind string

const (
	Peak   PointKind = "peak"
	Valley PointKind = "valley"
)

// DirectionChangePoint is a local extreme of the series at Index.
type DirectionChangePoint struct {
	Index     int       `json:"index"`
	Timestamp int64     `json:"timestamp"`
	Price     float64   `json:"price"`
	Kind      PointKind `json:"kind"`
}

// DetectDirectionChanges returns every strict local peak and valley in order.
// Equal neighbours produce no point. Series shorter than three samples yield nothing.
func DetectDirectionChanges(s series.Series) []DirectionChangePoint {
	if len(s) < 3 {
		return nil
	}
	points := make([]DirectionChangePoint, 0, len(s)/2)
	for i := 1; i < len(s)-1; i++ {
		prev, cur, next := s[i-1].Price, s[i].Price, s[i+1].Price
		var kind PointKind
		switch {
		case prev > cur && cur < next:
			kind = Valley
		case prev < cur && cur > next:
			kind = Peak
		default:
			continue
		}
		points = append(points, DirectionChangePoint{
			Index:     i,
			Timestamp: s[i].Timestamp,
			Price:     cur,
			Kind:      kind,
		})
	}
	return points
}

// LastDirectionChange returns the most recent peak or valley.
func LastDirectionChange(s series.Series) (DirectionChangePoint, bool) {
	points := DetectDirectionChanges(s)
	if len(points) == 0 {
		return DirectionChangePoint{}, false
	}
	return points[len(points)-1], true
}
