package opportunity

import "math"

// Finite coerces NaN and ±Inf to 0.
func Finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// LogNorm maps v into [0,1] as ln(v+1)/ln(p+1). The ceiling p is usually a
// high percentile of the population, so values above it saturate at 1.
// A non-positive ceiling yields 0.
func LogNorm(v, p float64) float64 {
	if !(p > 0) {
		return 0
	}
	return clamp(Finite(math.Log1p(v)/math.Log1p(p)), 0, 1)
}

// LinearNorm maps v into [0,1] as v/ceiling, saturating at 1.
func LinearNorm(v, ceiling float64) float64 {
	if !(ceiling > 0) {
		return 0
	}
	return clamp(Finite(v/ceiling), 0, 1)
}

// RatingNorm maps a 0-5 rating into [0,1].
func RatingNorm(rating float64) float64 {
	return clamp(Finite(rating/maxRating), 0, 1)
}

// UnderservedIndex flags categories with high demand and weak quality.
func UnderservedIndex(totalUsers, usersCeiling, avgRating float64) float64 {
	return Finite(LogNorm(totalUsers, usersCeiling) * (1 - RatingNorm(avgRating)))
}
