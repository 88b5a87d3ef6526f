package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func sineBuffer(frames, channels, rate int) *Buffer {
	samples := make([]float32, frames*channels)
	for i := 0; i < frames; i++ {
		v := float32(math.Sin(2*math.Pi*440*float64(i)/float64(rate))) * 0.5
		for c := 0; c < channels; c++ {
			samples[i*channels+c] = v
		}
	}
	return &Buffer{Samples: samples, SampleRate: rate, Channels: channels}
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	in := sineBuffer(2000, 2, 44100)

	if err := WriteWAV(path, in, nil); err != nil {
		t.Fatal(err)
	}

	out, err := ReadWAV(path)
	if err != nil {
		t.Fatal(err)
	}
	if out.Channels != 2 || out.SampleRate != 44100 {
		t.Fatalf("format = %d ch @ %d Hz, want 2 ch @ 44100 Hz", out.Channels, out.SampleRate)
	}
	if out.FrameCount() != in.FrameCount() {
		t.Fatalf("frame count = %d, want %d", out.FrameCount(), in.FrameCount())
	}

	// 16-bit quantization bounds the round-trip error.
	for i := range in.Samples {
		if diff := math.Abs(float64(out.Samples[i] - in.Samples[i])); diff > 1.0/32000 {
			t.Fatalf("sample %d error %v exceeds quantization bound", i, diff)
		}
	}
}

func TestWriteWAV_SaturatesOutOfRangeSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	in := &Buffer{
		Samples:    []float32{2.0, -2.0, 0.0, 0.5},
		SampleRate: 44100,
		Channels:   2,
	}
	if err := WriteWAV(path, in, nil); err != nil {
		t.Fatal(err)
	}

	out, err := ReadWAV(path)
	if err != nil {
		t.Fatal(err)
	}
	if out.Samples[0] < 0.99 {
		t.Errorf("positive overdrive read back as %v, want ~1.0", out.Samples[0])
	}
	if out.Samples[1] > -0.99 {
		t.Errorf("negative overdrive read back as %v, want ~-1.0", out.Samples[1])
	}
}

func TestWriteWAV_ReportsProgress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	in := sineBuffer(200_000, 2, 44100) // several write blocks

	var calls int
	var lastDone, total int
	err := WriteWAV(path, in, func(done, tot int) {
		calls++
		if done < lastDone {
			t.Errorf("progress went backwards: %d after %d", done, lastDone)
		}
		lastDone, total = done, tot
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls < 2 {
		t.Errorf("progress calls = %d, want several blocks", calls)
	}
	if lastDone != total || total != in.FrameCount() {
		t.Errorf("final progress %d/%d, want %d/%d", lastDone, total, in.FrameCount(), in.FrameCount())
	}
}

func TestReadWAV_MonoAndErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono.wav")
	if err := WriteWAV(path, sineBuffer(500, 1, 44100), nil); err != nil {
		t.Fatal(err)
	}
	out, err := ReadWAV(path)
	if err != nil {
		t.Fatal(err)
	}
	if out.Channels != 1 || out.FrameCount() != 500 {
		t.Errorf("mono read = %d ch, %d frames", out.Channels, out.FrameCount())
	}

	if _, err := ReadWAV(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Error("expected error for missing file")
	}

	notWav := filepath.Join(t.TempDir(), "not.wav")
	if err := os.WriteFile(notWav, []byte("definitely not a RIFF container"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadWAV(notWav); err == nil {
		t.Error("expected error for non-WAV bytes")
	}
}
