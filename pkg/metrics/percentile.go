package metrics

import (
	"math"
	"sort"
)

// Percentile computes the p-th percentile (0..100) of values using
// continuous linear interpolation between adjacent ranks, matching
// Postgres percentile_cont. The input is not modified. An empty input
// returns 0.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	frac := rank - float64(lower)
	if frac == 0 {
		return sorted[lower]
	}
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}

// RoundMetric rounds a metric value for presentation: CLS keeps three
// decimal places, duration-based vitals round to whole milliseconds.
func RoundMetric(name string, value float64) float64 {
	if name == "cls" {
		return math.Round(value*1000) / 1000
	}
	return math.Round(value)
}
