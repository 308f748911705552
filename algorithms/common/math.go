package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic statistical functions used across algorithms using gonum for robustness

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// PeakAmplitude returns the largest absolute sample value (the L-inf norm)
func PeakAmplitude(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Norm(data, math.Inf(1))
}

// IntMode returns the most frequent value in data and how often it occurs.
// Ties resolve to the smallest value. An empty slice returns (0, 0).
func IntMode(data []int) (value int, count int) {
	counts := make(map[int]int, len(data))
	for _, v := range data {
		counts[v]++
	}

	for v, c := range counts {
		if c > count || (c == count && v < value) {
			value, count = v, c
		}
	}
	return value, count
}

// Fraction returns part/whole, or 0 when whole is zero
func Fraction(part, whole int) float64 {
	if whole == 0 {
		return 0.0
	}
	return float64(part) / float64(whole)
}
