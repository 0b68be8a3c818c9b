package audio

import "math"

// VolumeStride is the sampling stride of StrideVolume
const VolumeStride = 10

// StrideVolume estimates chunk loudness as the mean absolute value of every
// 10th sample. The sum is divided by len/10 (not the number of visited
// samples), matching the visualizer contract; the result is clamped to [0,1].
func StrideVolume(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}

	sum := 0.0
	for i := 0; i < len(samples); i += VolumeStride {
		sum += math.Abs(float64(samples[i]))
	}

	avg := sum / (float64(len(samples)) / VolumeStride)
	if avg > 1 {
		return 1
	}
	return avg
}
