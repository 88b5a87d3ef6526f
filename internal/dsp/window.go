package dsp

import (
	"math"
	"sync"
)

// Windows are immutable after first construction and shared process-wide.
var (
	windowMu    sync.Mutex
	hannCache   = map[int][]float32{}
	hannSqCache = map[int][]float32{}
)

// Hann returns the classic Hann window of length n:
// w[i] = 0.5 - 0.5*cos(2*pi*i/(n-1)). The returned slice is shared; callers
// must not mutate it.
func Hann(n int) []float32 {
	windowMu.Lock()
	defer windowMu.Unlock()
	if w, ok := hannCache[n]; ok {
		return w
	}
	w := make([]float32, n)
	if n == 1 {
		w[0] = 1.0
	} else {
		denom := float64(n - 1)
		for i := range w {
			w[i] = float32(0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/denom))
		}
	}
	hannCache[n] = w
	return w
}

// HannSq returns the Hann-squared window sin²(pi*i/(n-1)) used by the
// overlap-add path. Since sin²(x) = 0.5 - 0.5*cos(2x), its values equal those
// of Hann(n). The returned slice is shared; callers must not mutate it.
func HannSq(n int) []float32 {
	windowMu.Lock()
	defer windowMu.Unlock()
	if w, ok := hannSqCache[n]; ok {
		return w
	}
	w := make([]float32, n)
	if n == 1 {
		w[0] = 1.0
	} else {
		denom := float64(n - 1)
		for i := range w {
			s := math.Sin(math.Pi * float64(i) / denom)
			w[i] = float32(s * s)
		}
	}
	hannSqCache[n] = w
	return w
}
