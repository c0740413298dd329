package snapshot

import "math"

// GreeksSnapshot is an immutable read of the portfolio's option Greeks.
type GreeksSnapshot struct {
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
	Valid bool
}

// IsFinite reports whether delta/gamma/theta/vega are all finite.
func (g GreeksSnapshot) IsFinite() bool {
	return isFinite(g.Delta) && isFinite(g.Gamma) && isFinite(g.Theta) && isFinite(g.Vega)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
