package stats

import "sync"

// TimeSeries is a bounded, thread-safe ring buffer of (value, timestamp)
// pairs. runtimestore.Store embeds one per tracked instrument to hold the
// mid-price history the market-regime classifier reads; timestamps are
// whatever unit the caller ticks in (the daemon uses epoch seconds off
// broker ticks, not wall-clock nanoseconds).
type TimeSeries struct {
	Name       string
	Data       []float64
	Timestamps []float64
	MaxLength  int
	mu         sync.RWMutex
}

// NewTimeSeries creates a series capped at maxLength points.
func NewTimeSeries(name string, maxLength int) *TimeSeries {
	return &TimeSeries{
		Name:       name,
		Data:       make([]float64, 0, maxLength),
		Timestamps: make([]float64, 0, maxLength),
		MaxLength:  maxLength,
	}
}

// Append records a new point, dropping the oldest once MaxLength is exceeded.
func (ts *TimeSeries) Append(value, timestamp float64) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ts.Data = append(ts.Data, value)
	ts.Timestamps = append(ts.Timestamps, timestamp)

	if len(ts.Data) > ts.MaxLength {
		ts.Data = ts.Data[1:]
		ts.Timestamps = ts.Timestamps[1:]
	}
}

// GetAll returns a copy of all buffered values, oldest first.
func (ts *TimeSeries) GetAll() []float64 {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	result := make([]float64, len(ts.Data))
	copy(result, ts.Data)
	return result
}

// Len returns the current number of buffered points.
func (ts *TimeSeries) Len() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.Data)
}
