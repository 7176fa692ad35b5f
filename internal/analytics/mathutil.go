package analytics

import "math"

func round(value float64, places int) float64 {
	factor := math.Pow10(places)
	return math.Round(value*factor) / factor
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

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// coefficientOfVariation returns stddev/mean (population), or false when
// the mean is zero.
func coefficientOfVariation(values []float64) (float64, bool) {
	mean := average(values)
	if mean == 0 {
		return 0, false
	}
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss/float64(len(values))) / mean, true
}

// percent returns part/total as a percentage with one decimal; 0 when
// total is 0.
func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round(float64(part)/float64(total)*100, 1)
}

// percentChange returns (current-prior)/prior as a percentage with one
// decimal. An empty prior bucket yields exactly 0, never NaN or Inf.
func percentChange(current, prior int) float64 {
	if prior == 0 {
		return 0
	}
	return round(float64(current-prior)/float64(prior)*100, 1)
}

func direction(delta float64) string {
	switch {
	case delta > 0:
		return "up"
	case delta < 0:
		return "down"
	default:
		return "flat"
	}
}
