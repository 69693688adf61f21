package series

// DefaultHistoryCapacity bounds the per-position price history.
const DefaultHistoryCapacity = 20

// RingBuffer keeps the most recent prices in a fixed-capacity buffer.
// Adding to a full buffer evicts the oldest value.
type RingBuffer struct {
	values []float64
	size   int
	index  int
	filled bool
}

func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = DefaultHistoryCapacity
	}
	return &RingBuffer{
		values: make([]float64, size),
		size:   size,
	}
}

// RingBufferFrom seeds a buffer with values (oldest first). Only the newest
// size values are retained.
func RingBufferFrom(size int, values []float64) *RingBuffer {
	r := NewRingBuffer(size)
	for _, v := range values {
		r.Add(v)
	}
	return r
}

func (r *RingBuffer) Add(value float64) {
	r.values[r.index] = value
	r.index = (r.index + 1) % r.size
	if r.index == 0 {
		r.filled = true
	}
}

func (r *RingBuffer) Len() int {
	if r.filled {
		return r.size
	}
	return r.index
}

// Values returns a copy ordered oldest to newest.
func (r *RingBuffer) Values() []float64 {
	length := r.Len()
	result := make([]float64, 0, length)
	if length == 0 {
		return result
	}
	if r.filled {
		result = append(result, r.values[r.index:]...)
	}
	result = append(result, r.values[:r.index]...)
	return result
}

// TrailingFalls counts how many of the newest values are each strictly below
// their predecessor.
func (r *RingBuffer) TrailingFalls() int {
	values := r.Values()
	streak := 0
	for i := len(values) - 1; i > 0; i-- {
		if values[i] >= values[i-1] {
			break
		}
		streak++
	}
	return streak
}

// Reset empties the buffer and adds values in order.
func (r *RingBuffer) Reset(values ...float64) {
	r.index = 0
	r.filled = false
	for _, v := range values {
		r.Add(v)
	}
}
