package dsp

import (
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// FFT plans are pooled per size. A fourier.FFT is not safe for concurrent
// use, so the parallel iSTFT checks one out per goroutine.
var (
	planMu sync.Mutex
	plans  = map[int]*sync.Pool{}
)

func getFFT(n int) *fourier.FFT {
	planMu.Lock()
	pool, ok := plans[n]
	if !ok {
		pool = &sync.Pool{New: func() any { return fourier.NewFFT(n) }}
		plans[n] = pool
	}
	planMu.Unlock()
	return pool.Get().(*fourier.FFT)
}

func putFFT(n int, f *fourier.FFT) {
	planMu.Lock()
	pool := plans[n]
	planMu.Unlock()
	if pool != nil {
		pool.Put(f)
	}
}
