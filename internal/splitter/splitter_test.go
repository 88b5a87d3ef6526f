package splitter

import (
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gentij/stem-splitter-core/internal/audio"
	"github.com/gentij/stem-splitter-core/internal/model"
)

// identityOutput replays the input chunk as every source.
type identityOutput struct {
	sources int
	left    []float32
	right   []float32
}

func (o *identityOutput) Sources() int { return o.sources }
func (o *identityOutput) Samples() int { return len(o.left) }
func (o *identityOutput) Channel(_, channel int) []float32 {
	if channel == 0 {
		return o.left
	}
	return o.right
}

// identityInference returns the window unchanged for each of its sources.
type identityInference struct {
	sources int
	calls   int
}

func (f *identityInference) RunWindow(left, right []float32) (Output, error) {
	f.calls++
	l := make([]float32, len(left))
	r := make([]float32, len(right))
	copy(l, left)
	copy(r, right)
	return &identityOutput{sources: f.sources, left: l, right: r}, nil
}

func testManifest(window, hop int) model.Manifest {
	return model.Manifest{
		Name:         "mock",
		Version:      "1.0.0",
		Backend:      "onnx",
		SampleRate:   44100,
		Window:       window,
		Hop:          hop,
		Stems:        []string{"vocals", "drums", "bass", "other"},
		InputLayout:  "BCT",
		OutputLayout: "BSCT",
	}
}

func sineInput(frames int) *audio.Buffer {
	samples := make([]float32, frames*2)
	for i := 0; i < frames; i++ {
		tm := float64(i) / 44100.0
		samples[2*i] = float32(math.Sin(2*math.Pi*440*tm)) * 0.2
		samples[2*i+1] = float32(math.Sin(2*math.Pi*660*tm)) * 0.2
	}
	return &audio.Buffer{Samples: samples, SampleRate: 44100, Channels: 2}
}

func TestRun_ProducesFourStems(t *testing.T) {
	outDir := t.TempDir()
	in := sineInput(8000)
	inf := &identityInference{sources: 4}

	res, err := Run(in, "/music/song.wav", inf, testManifest(4096, 2048), outDir)
	if err != nil {
		t.Fatal(err)
	}

	paths := map[string]string{
		"vocals": res.VocalsPath,
		"drums":  res.DrumsPath,
		"bass":   res.BassPath,
		"other":  res.OtherPath,
	}
	for stem, p := range paths {
		if want := filepath.Join(outDir, "song_"+stem+".wav"); p != want {
			t.Errorf("%s path = %q, want %q", stem, p, want)
		}
		buf, err := audio.ReadWAV(p)
		if err != nil {
			t.Fatalf("read %s stem: %v", stem, err)
		}
		if buf.Channels != 2 {
			t.Errorf("%s stem channels = %d, want 2", stem, buf.Channels)
		}
		if buf.SampleRate != 44100 {
			t.Errorf("%s stem rate = %d, want 44100", stem, buf.SampleRate)
		}
		if buf.FrameCount() < 1 {
			t.Errorf("%s stem is empty", stem)
		}
	}

	// Four windows for 8000 frames at hop 2048: 0, 2048, 4096, 6144.
	if inf.calls != 4 {
		t.Errorf("inference calls = %d, want 4", inf.calls)
	}
}

func TestRun_IdentityReconstructsInput(t *testing.T) {
	outDir := t.TempDir()
	in := sineInput(8000)

	res, err := Run(in, "in.wav", &identityInference{sources: 4}, testManifest(1024, 256), outDir)
	if err != nil {
		t.Fatal(err)
	}

	out, err := audio.ReadWAV(res.VocalsPath)
	if err != nil {
		t.Fatal(err)
	}
	// Interior samples survive the overlap-add and 16-bit quantization.
	for i := 1024; i < 7000; i++ {
		want := float64(in.Samples[2*i])
		got := float64(out.Samples[2*i])
		if diff := math.Abs(got - want); diff > 1e-3 {
			t.Fatalf("sample %d error %v exceeds 1e-3", i, diff)
		}
	}
}

func TestInferLoop_UnityEnvelope(t *testing.T) {
	const (
		n   = 10_000
		win = 1024
		hop = 256 // W/4
	)
	left := make([]float32, n)
	right := make([]float32, n)
	for i := range left {
		left[i] = 1.0
		right[i] = 1.0
	}

	acc, windowSum, err := inferLoop(left, right, &identityInference{sources: 1}, win, hop)
	if err != nil {
		t.Fatal(err)
	}
	normalize(acc, windowSum, n)

	// Post-normalization gain is unity except at the very first sample,
	// where the Hann² weight is exactly zero.
	for i := 1; i < n-1; i++ {
		if diff := math.Abs(acc[0].left[i] - 1.0); diff > 1e-6 {
			t.Fatalf("envelope at %d = %v, want 1.0", i, acc[0].left[i])
		}
	}
}

func TestRun_StemNameFallbackIsPositional(t *testing.T) {
	outDir := t.TempDir()
	mf := testManifest(1024, 512)
	mf.Stems = []string{"one", "two", "three", "four"}

	res, err := Run(sineInput(3000), "x.wav", &identityInference{sources: 4}, mf, outDir)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(res.VocalsPath, "x_vocals.wav") {
		t.Errorf("vocals path = %q", res.VocalsPath)
	}
	if !strings.HasSuffix(res.OtherPath, "x_other.wav") {
		t.Errorf("other path = %q", res.OtherPath)
	}
}

func TestRun_FewerSourcesThanCanonicalStems(t *testing.T) {
	outDir := t.TempDir()
	mf := testManifest(1024, 512)
	mf.Stems = []string{"vocals", "accompaniment"}

	res, err := Run(sineInput(3000), "duo.wav", &identityInference{sources: 2}, mf, outDir)
	if err != nil {
		t.Fatal(err)
	}
	// All four canonical files are written; missing stems clamp to the
	// last available source.
	for _, p := range []string{res.VocalsPath, res.DrumsPath, res.BassPath, res.OtherPath} {
		if _, err := audio.ReadWAV(p); err != nil {
			t.Errorf("stem %q unreadable: %v", p, err)
		}
	}
}

func TestRun_RejectsWrongSampleRate(t *testing.T) {
	mf := testManifest(1024, 256)

	in := sineInput(2000)
	in.SampleRate = 48000
	if _, err := Run(in, "x.wav", &identityInference{sources: 4}, mf, t.TempDir()); !errors.Is(err, ErrSampleRateUnsupported) {
		t.Errorf("input 48k: got %v, want ErrSampleRateUnsupported", err)
	}

	mf.SampleRate = 48000
	if _, err := Run(sineInput(2000), "x.wav", &identityInference{sources: 4}, mf, t.TempDir()); !errors.Is(err, ErrSampleRateUnsupported) {
		t.Errorf("model 48k: got %v, want ErrSampleRateUnsupported", err)
	}
}

func TestRun_RejectsEmptyAudio(t *testing.T) {
	in := &audio.Buffer{Samples: nil, SampleRate: 44100, Channels: 2}
	_, err := Run(in, "x.wav", &identityInference{sources: 4}, testManifest(1024, 256), t.TempDir())
	if !errors.Is(err, audio.ErrEmptyAudio) {
		t.Errorf("got %v, want ErrEmptyAudio", err)
	}
}

func TestRun_WidensMonoInput(t *testing.T) {
	frames := 3000
	samples := make([]float32, frames)
	for i := range samples {
		samples[i] = float32(math.Sin(float64(i)*0.05)) * 0.3
	}
	in := &audio.Buffer{Samples: samples, SampleRate: 44100, Channels: 1}

	res, err := Run(in, "mono.wav", &identityInference{sources: 4}, testManifest(1024, 512), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	out, err := audio.ReadWAV(res.VocalsPath)
	if err != nil {
		t.Fatal(err)
	}
	if out.Channels != 2 {
		t.Fatalf("mono input produced %d-channel stem, want 2", out.Channels)
	}
	// Both sides carry the duplicated mono signal.
	for i := 100; i < 200; i++ {
		if out.Samples[2*i] != out.Samples[2*i+1] {
			t.Fatalf("L/R differ at frame %d for mono input", i)
		}
	}
}

// failingInference errors on the second window.
type failingInference struct{ calls int }

func (f *failingInference) RunWindow(left, right []float32) (Output, error) {
	f.calls++
	if f.calls > 1 {
		return nil, errors.New("backend exploded")
	}
	l := make([]float32, len(left))
	r := make([]float32, len(right))
	return &identityOutput{sources: 4, left: l, right: r}, nil
}

func TestRun_PropagatesInferenceError(t *testing.T) {
	_, err := Run(sineInput(4000), "x.wav", &failingInference{}, testManifest(1024, 256), t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "backend exploded") {
		t.Fatalf("got %v, want propagated inference error", err)
	}
}
