package climatetools

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// AggFunc reduces a set of samples to a single value.
type AggFunc func(...float64) float64

// NanSum sums the non-NaN samples. An empty or all-NaN input sums to 0,
// which is what the experiment-version collapse relies on: at most one
// version is populated per grid cell, the rest are missing.
func NanSum(inData ...float64) float64 {
	var sum float64
	for _, val := range inData {
		if !math.IsNaN(val) {
			sum += val
		}
	}
	return sum
}

// NanMean averages the non-NaN samples, NaN when there are none.
func NanMean(inData ...float64) float64 {
	valid := dropNaN(inData)
	if len(valid) == 0 {
		return math.NaN()
	}
	return stat.Mean(valid, nil)
}

// NanStdDev is the sample standard deviation of the non-NaN samples, NaN
// when there are fewer than two.
func NanStdDev(inData ...float64) float64 {
	valid := dropNaN(inData)
	if len(valid) < 2 {
		return math.NaN()
	}
	return stat.StdDev(valid, nil)
}

// NanMax returns the largest non-NaN sample, NaN when there are none.
func NanMax(inData ...float64) float64 {
	max := math.NaN()
	for _, val := range inData {
		if math.IsNaN(val) {
			continue
		}
		if math.IsNaN(max) || val > max {
			max = val
		}
	}
	return max
}

// NanMin returns the smallest non-NaN sample, NaN when there are none.
func NanMin(inData ...float64) float64 {
	min := math.NaN()
	for _, val := range inData {
		if math.IsNaN(val) {
			continue
		}
		if math.IsNaN(min) || val < min {
			min = val
		}
	}
	return min
}

func dropNaN(in []float64) []float64 {
	valid := make([]float64, 0, len(in))
	for _, val := range in {
		if !math.IsNaN(val) {
			valid = append(valid, val)
		}
	}
	return valid
}
