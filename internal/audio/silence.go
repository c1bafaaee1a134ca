package audio

import (
	"math"
)

type SilenceMetrics struct {
	RMSdBFS  float64
	PeakdBFS float64
	Samples  int64
}

// IsSilentWAV reports whether the PCM WAV at path stays under thresholdDBFS.
// The peak gate sits 6 dB above the RMS threshold so a single click does not
// count as speech.
func IsSilentWAV(path string, thresholdDBFS float64) (bool, SilenceMetrics, error) {
	buf, err := decodePCM(path)
	if err != nil {
		return false, SilenceMetrics{}, err
	}

	metrics := SilenceMetrics{RMSdBFS: math.Inf(-1), PeakdBFS: math.Inf(-1)}
	if buf == nil || len(buf.Data) == 0 {
		return true, metrics, nil
	}

	var peak, sumSquares float64
	for _, raw := range buf.Data {
		value := normalizeSample(raw, buf.SourceBitDepth)
		peak = math.Max(peak, math.Abs(value))
		sumSquares += value * value
	}

	metrics.Samples = int64(len(buf.Data))
	metrics.RMSdBFS = amplitudeToDBFS(math.Sqrt(sumSquares / float64(len(buf.Data))))
	metrics.PeakdBFS = amplitudeToDBFS(peak)

	if math.IsInf(metrics.RMSdBFS, -1) && math.IsInf(metrics.PeakdBFS, -1) {
		return true, metrics, nil
	}

	peakGate := thresholdDBFS + 6
	return metrics.RMSdBFS <= thresholdDBFS && metrics.PeakdBFS <= peakGate, metrics, nil
}

func amplitudeToDBFS(amplitude float64) float64 {
	if amplitude <= 0 {
		return math.Inf(-1)
	}
	return 20.0 * math.Log10(amplitude)
}
