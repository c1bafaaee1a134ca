package stt

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Confidence maps per-segment average log-probabilities to a score in [0, 1]
// by averaging exp(avg_logprob). It is a heuristic, not a calibrated
// probability. No segments yields 0.
func Confidence(segments []ResponseSegment) float64 {
	if len(segments) == 0 {
		return 0
	}

	values := make([]float64, len(segments))
	for i, segment := range segments {
		values[i] = math.Exp(segment.AvgLogprob)
	}

	return clamp01(stat.Mean(values, nil))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
