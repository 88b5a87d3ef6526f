// Package dsp provides the planar-stereo conversion and the fixed-size
// center-padded STFT/iSTFT pair used by the inference pipeline.
package dsp

// ToPlanarStereo converts interleaved samples into planar left/right
// channels. Mono input is duplicated into both sides; stereo input is
// de-interleaved. A trailing odd sample of a stereo stream is dropped.
func ToPlanarStereo(samples []float32, channels int) (left, right []float32) {
	if channels == 1 {
		left = make([]float32, len(samples))
		right = make([]float32, len(samples))
		copy(left, samples)
		copy(right, samples)
		return left, right
	}

	frames := len(samples) / 2
	left = make([]float32, frames)
	right = make([]float32, frames)
	for i := 0; i < frames; i++ {
		left[i] = samples[2*i]
		right[i] = samples[2*i+1]
	}
	return left, right
}
