package stt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// Confidence is exp(avg_logprob) averaged over sub-segments. It is an
// approximation used for ranking, not a calibrated probability.
func TestConfidenceIsMeanOfExponentiatedLogprobs(t *testing.T) {
	t.Parallel()

	got := Confidence([]ResponseSegment{{AvgLogprob: 0}, {AvgLogprob: math.Log(0.5)}})
	require.InDelta(t, 0.75, got, 1e-9)
}

func TestConfidenceWithoutSegmentsIsZero(t *testing.T) {
	t.Parallel()

	require.Zero(t, Confidence(nil))
	require.Zero(t, Confidence([]ResponseSegment{}))
}

func TestConfidenceStaysWithinUnitInterval(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		logprobs []float64
	}{
		{name: "certain", logprobs: []float64{0, 0}},
		{name: "very unsure", logprobs: []float64{-50, -1e6}},
		{name: "negative infinity", logprobs: []float64{math.Inf(-1)}},
		{name: "positive values from a sloppy provider", logprobs: []float64{0.4, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			segments := make([]ResponseSegment, len(tt.logprobs))
			for i, lp := range tt.logprobs {
				segments[i].AvgLogprob = lp
			}
			got := Confidence(segments)
			require.GreaterOrEqual(t, got, 0.0)
			require.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestResponseValidate(t *testing.T) {
	t.Parallel()

	negative := -1.0
	nan := math.NaN()
	ok := 12.5

	require.NoError(t, Response{Duration: &ok, Segments: []ResponseSegment{{AvgLogprob: -0.2}}}.Validate())
	require.NoError(t, Response{}.Validate())
	require.ErrorIs(t, Response{Duration: &negative}.Validate(), ErrMalformedResponse)
	require.ErrorIs(t, Response{Duration: &nan}.Validate(), ErrMalformedResponse)
	require.ErrorIs(t, Response{Segments: []ResponseSegment{{AvgLogprob: math.NaN()}}}.Validate(), ErrMalformedResponse)
}
