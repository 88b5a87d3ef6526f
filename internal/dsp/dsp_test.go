package dsp

import (
	"math"
	"testing"
)

func TestToPlanarStereo_MonoDuplicatesChannel(t *testing.T) {
	mono := []float32{0.1, -0.2, 0.3, -0.4}
	left, right := ToPlanarStereo(mono, 1)
	if len(left) != len(mono) || len(right) != len(mono) {
		t.Fatalf("planar lengths %d/%d, want %d", len(left), len(right), len(mono))
	}
	for i := range mono {
		if left[i] != mono[i] || right[i] != mono[i] {
			t.Fatalf("frame %d = (%v, %v), want both %v", i, left[i], right[i], mono[i])
		}
	}
}

func TestToPlanarStereo_DeinterleavesStereo(t *testing.T) {
	inter := []float32{0.1, 0.2, -0.3, -0.4, 1.0, 0.5, 0.0, -1.0}
	left, right := ToPlanarStereo(inter, 2)
	if len(left) != len(inter)/2 {
		t.Fatalf("frame count %d, want %d", len(left), len(inter)/2)
	}
	for i := range left {
		if left[i] != inter[2*i] {
			t.Errorf("left[%d] = %v, want %v", i, left[i], inter[2*i])
		}
		if right[i] != inter[2*i+1] {
			t.Errorf("right[%d] = %v, want %v", i, right[i], inter[2*i+1])
		}
	}
}

func TestHann_Endpoints(t *testing.T) {
	w := Hann(1024)
	if w[0] != 0 {
		t.Errorf("w[0] = %v, want 0", w[0])
	}
	if w[1023] > 1e-7 {
		t.Errorf("w[n-1] = %v, want ~0", w[1023])
	}
	mid := w[511]
	if mid < 0.99 || mid > 1.0 {
		t.Errorf("w[mid] = %v, want ~1", mid)
	}
}

func TestHannSq_MatchesSineSquared(t *testing.T) {
	n := 512
	hs := HannSq(n)
	for i := 0; i < n; i++ {
		s := math.Sin(math.Pi * float64(i) / float64(n-1))
		want := s * s
		if diff := math.Abs(float64(hs[i]) - want); diff > 1e-6 {
			t.Fatalf("hannSq[%d] = %v, sin² = %v (diff %v)", i, hs[i], want, diff)
		}
	}
}

func TestSTFT_DemucsDimensions(t *testing.T) {
	const (
		nFFT = 4096
		hop  = 1024
		tLen = 343_980
	)
	left := make([]float32, tLen)
	right := make([]float32, tLen)

	_, fBins, frames, err := STFT(left, right, nFFT, hop)
	if err != nil {
		t.Fatal(err)
	}
	if fBins != 2048 {
		t.Errorf("fBins = %d, want 2048", fBins)
	}
	if frames != 336 {
		t.Errorf("frames = %d, want 336", frames)
	}
}

func TestSTFT_RejectsLengthMismatch(t *testing.T) {
	if _, _, _, err := STFT(make([]float32, 100), make([]float32, 99), 64, 16); err == nil {
		t.Fatal("expected error for mismatched channel lengths")
	}
}

func TestSTFT_ISTFT_RoundTrip(t *testing.T) {
	const (
		nFFT = 1024
		hop  = 256
		tLen = 4096
	)

	left := make([]float32, tLen)
	right := make([]float32, tLen)
	left[100] = 1.0
	right[200] = -1.0
	for i := 0; i < tLen; i++ {
		left[i] += float32(math.Cos(float64(i)*0.01)) * 0.1
		right[i] += float32(math.Sin(float64(i)*0.02)) * 0.1
	}

	spec, fBins, frames, err := STFT(left, right, nFFT, hop)
	if err != nil {
		t.Fatal(err)
	}

	l2, r2, err := ISTFT(spec, fBins, frames, nFFT, hop, tLen)
	if err != nil {
		t.Fatal(err)
	}
	if len(l2) != tLen || len(r2) != tLen {
		t.Fatalf("output lengths %d/%d, want %d", len(l2), len(r2), tLen)
	}

	for i := nFFT; i < tLen-nFFT; i++ {
		if diff := math.Abs(float64(l2[i] - left[i])); diff > 1e-3 {
			t.Fatalf("left[%d] error %v exceeds 1e-3", i, diff)
		}
		if diff := math.Abs(float64(r2[i] - right[i])); diff > 1e-3 {
			t.Fatalf("right[%d] error %v exceeds 1e-3", i, diff)
		}
	}
}

func TestISTFT_RejectsBadGeometry(t *testing.T) {
	if _, _, err := ISTFT(make([]float32, 16), 2, 2, 64, 16, 32); err == nil {
		t.Fatal("expected error for fBins != nFFT/2")
	}
	if _, _, err := ISTFT(make([]float32, 16), 32, 2, 64, 16, 32); err == nil {
		t.Fatal("expected error for wrong buffer length")
	}
}

func TestParallelISTFT_MatchesSequential(t *testing.T) {
	const (
		nFFT = 256
		hop  = 64
		tLen = 1024
	)

	specs := make([][]float32, 3)
	var want []StereoPair
	for s := range specs {
		left := make([]float32, tLen)
		right := make([]float32, tLen)
		for i := range left {
			left[i] = float32(math.Sin(float64(i)*0.03*float64(s+1))) * 0.3
			right[i] = float32(math.Cos(float64(i)*0.05*float64(s+1))) * 0.3
		}
		spec, fBins, frames, err := STFT(left, right, nFFT, hop)
		if err != nil {
			t.Fatal(err)
		}
		specs[s] = spec
		l, r, err := ISTFT(spec, fBins, frames, nFFT, hop, tLen)
		if err != nil {
			t.Fatal(err)
		}
		want = append(want, StereoPair{Left: l, Right: r})
	}

	got, err := ParallelISTFT(specs, nFFT/2, 1+tLen/hop, nFFT, hop, tLen)
	if err != nil {
		t.Fatal(err)
	}
	for s := range got {
		for i := 0; i < tLen; i++ {
			if got[s].Left[i] != want[s].Left[i] || got[s].Right[i] != want[s].Right[i] {
				t.Fatalf("source %d sample %d differs from sequential result", s, i)
			}
		}
	}
}
