package dsp

import (
	"fmt"
	"sync"
)

// windowSumFloor guards the per-sample window-energy division at the padding
// edges, where accumulated Hann weight approaches zero.
const windowSumFloor = 1e-10

// StereoPair holds one reconstructed stereo signal.
type StereoPair struct {
	Left  []float32
	Right []float32
}

// ISTFT inverts a complex-as-channels spectrogram produced by STFT back into
// a stereo time signal of length targetLen.
//
// Per frame it restores the full nFFT-bin spectrum from the fBins kept
// positive-frequency bins (DC and Nyquist imaginary parts forced to zero),
// inverse-transforms, and overlap-adds the Hann-weighted result scaled by
// 1/nFFT. The accumulated squared-window energy normalizes the output before
// the nFFT/2 center padding is stripped from each end.
func ISTFT(spec []float32, fBins, frames, nFFT, hop, targetLen int) (left, right []float32, err error) {
	if fBins != nFFT/2 {
		return nil, nil, fmt.Errorf("dsp: istft expects %d bins, got %d", nFFT/2, fBins)
	}
	if want := 4 * fBins * frames; len(spec) != want {
		return nil, nil, fmt.Errorf("dsp: istft buffer length %d, want %d", len(spec), want)
	}

	pad := nFFT / 2
	paddedLen := targetLen + 2*pad
	if need := (frames-1)*hop + nFFT; need > paddedLen {
		paddedLen = need
	}

	window := Hann(nFFT)
	fft := getFFT(nFFT)
	defer putFFT(nFFT, fft)

	out := [2][]float64{make([]float64, paddedLen), make([]float64, paddedLen)}
	windowSum := make([]float64, paddedLen)

	coeff := make([]complex128, nFFT/2+1)
	seq := make([]float64, nFFT)
	scale := 1.0 / float64(nFFT)

	plane := fBins * frames
	for fr := 0; fr < frames; fr++ {
		start := fr * hop
		for ch := 0; ch < 2; ch++ {
			for f := 0; f < fBins; f++ {
				idx := f*frames + fr
				coeff[f] = complex(
					float64(spec[(2*ch+0)*plane+idx]),
					float64(spec[(2*ch+1)*plane+idx]),
				)
			}
			coeff[0] = complex(real(coeff[0]), 0)
			coeff[nFFT/2] = 0
			fft.Sequence(seq, coeff)

			dst := out[ch]
			for i := 0; i < nFFT; i++ {
				w := float64(window[i])
				dst[start+i] += seq[i] * scale * w
				if ch == 0 {
					windowSum[start+i] += w * w
				}
			}
		}
	}

	for i := range windowSum {
		s := windowSum[i]
		if s < windowSumFloor {
			s = windowSumFloor
		}
		out[0][i] /= s
		out[1][i] /= s
	}

	left = make([]float32, targetLen)
	right = make([]float32, targetLen)
	for i := 0; i < targetLen; i++ {
		left[i] = float32(out[0][pad+i])
		right[i] = float32(out[1][pad+i])
	}
	return left, right, nil
}

// ParallelISTFT inverts one spectrogram per source concurrently. Each iSTFT
// is independent; the slowest source bounds the wall time.
func ParallelISTFT(specs [][]float32, fBins, frames, nFFT, hop, targetLen int) ([]StereoPair, error) {
	pairs := make([]StereoPair, len(specs))
	errs := make([]error, len(specs))

	var wg sync.WaitGroup
	for s := range specs {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			l, r, err := ISTFT(specs[s], fBins, frames, nFFT, hop, targetLen)
			if err != nil {
				errs[s] = err
				return
			}
			pairs[s] = StereoPair{Left: l, Right: r}
		}(s)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return pairs, nil
}
