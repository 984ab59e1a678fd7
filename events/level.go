package events

import "math"

// silenceFloor is the RMS reported for digital silence, -80 dBFS.
const silenceFloor = 0.0001

// mixdown averages interleaved frames into a single channel.
func mixdown(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	frames := len(in) / channels
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			sum += in[channels*i+ch]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// calculateRMS calculates the Root Mean Square of a slice of audio samples.
func calculateRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSquare float64
	for _, sample := range samples {
		sumSquare += float64(sample) * float64(sample)
	}
	return math.Sqrt(sumSquare / float64(len(samples)))
}

// rmsToDB converts an RMS value (0.0-1.0) to dBFS.
func rmsToDB(rms float64) float64 {
	return 20 * math.Log10(max(silenceFloor, rms))
}
