package dsp

import "fmt"

// STFT computes the complex-as-channels spectrogram of a stereo signal with
// center padding (n_fft/2 zeros on both sides of each channel).
//
// The result is a flat buffer laid out as [4, fBins, frames] with channel
// order L.re, L.im, R.re, R.im and index c*fBins*frames + f*frames + t.
// fBins is nFFT/2 (the Nyquist bin is dropped) and frames is 1 + T/hop.
func STFT(left, right []float32, nFFT, hop int) (spec []float32, fBins, frames int, err error) {
	if len(left) != len(right) {
		return nil, 0, 0, fmt.Errorf("dsp: stft channel length mismatch: %d vs %d", len(left), len(right))
	}
	if nFFT <= 0 || hop <= 0 {
		return nil, 0, 0, fmt.Errorf("dsp: stft invalid n_fft %d / hop %d", nFFT, hop)
	}

	t := len(left)
	pad := nFFT / 2
	padded := func(src []float32) []float64 {
		out := make([]float64, pad+t+pad)
		for i, v := range src {
			out[pad+i] = float64(v)
		}
		return out
	}
	lSig := padded(left)
	rSig := padded(right)

	fBins = nFFT / 2
	frames = 1 + t/hop
	window := Hann(nFFT)

	fft := getFFT(nFFT)
	defer putFFT(nFFT, fft)

	spec = make([]float32, 4*fBins*frames)
	frame := make([]float64, nFFT)
	coeff := make([]complex128, nFFT/2+1)

	plane := fBins * frames
	for fr := 0; fr < frames; fr++ {
		start := fr * hop
		for ch := 0; ch < 2; ch++ {
			sig := lSig
			if ch == 1 {
				sig = rSig
			}
			for i := 0; i < nFFT; i++ {
				frame[i] = sig[start+i] * float64(window[i])
			}
			fft.Coefficients(coeff, frame)
			for f := 0; f < fBins; f++ {
				idx := f*frames + fr
				spec[(2*ch+0)*plane+idx] = float32(real(coeff[f]))
				spec[(2*ch+1)*plane+idx] = float32(imag(coeff[f]))
			}
		}
	}

	return spec, fBins, frames, nil
}
