package scoring

import "math"

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func clamp100(x float64) float64 { return clip(x, 0, 100) }

func round1(x float64) float64 { return math.Round(x*10) / 10 }

func isFinite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }
