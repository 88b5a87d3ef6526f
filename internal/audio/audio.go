// Package audio reads and writes WAV files as normalized float32 buffers.
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrEmptyAudio indicates a decoded file with zero samples.
var ErrEmptyAudio = errors.New("audio: empty audio")

// Buffer holds interleaved floating-point samples normalized to [-1, 1].
type Buffer struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// FrameCount returns the number of sample frames.
func (b *Buffer) FrameCount() int {
	if b.Channels == 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// ReadWAV decodes a PCM WAV file into a normalized Buffer.
func ReadWAV(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("audio: %s is not a valid WAV file", path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("audio: decode %s: %w", path, err)
	}
	if len(buf.Data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyAudio, path)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}
	scale := float32(int64(1) << (bitDepth - 1))

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / scale
	}

	return &Buffer{
		Samples:    samples,
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
	}, nil
}

// writeBlockFrames is the number of frames encoded per progress step.
const writeBlockFrames = 65536

// WriteWAV encodes buf as 16-bit signed PCM with saturation clamping. The
// optional onProgress callback receives (framesDone, framesTotal) after each
// encoded block.
func WriteWAV(path string, buf *Buffer, onProgress func(done, total int)) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audio: create %s: %w", path, err)
	}

	enc := wav.NewEncoder(f, buf.SampleRate, 16, buf.Channels, 1)

	total := buf.FrameCount()
	block := &gaudio.IntBuffer{
		Format: &gaudio.Format{
			NumChannels: buf.Channels,
			SampleRate:  buf.SampleRate,
		},
		SourceBitDepth: 16,
	}

	for done := 0; done < total; {
		frames := writeBlockFrames
		if done+frames > total {
			frames = total - done
		}
		n := frames * buf.Channels
		if cap(block.Data) < n {
			block.Data = make([]int, n)
		}
		block.Data = block.Data[:n]

		off := done * buf.Channels
		for i := 0; i < n; i++ {
			block.Data[i] = clampPCM16(buf.Samples[off+i])
		}
		if err := enc.Write(block); err != nil {
			f.Close()
			return fmt.Errorf("audio: write %s: %w", path, err)
		}

		done += frames
		if onProgress != nil {
			onProgress(done, total)
		}
	}

	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("audio: finalize %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("audio: close %s: %w", path, err)
	}
	return nil
}

func clampPCM16(s float32) int {
	v := s * 32767.0
	if v > 32767.0 {
		return 32767
	}
	if v < -32768.0 {
		return -32768
	}
	return int(math.Round(float64(v)))
}
