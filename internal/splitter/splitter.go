// Package splitter slides the inference window across an input recording,
// overlap-adds the per-window model outputs into per-stem streams, and
// serializes them as WAV files.
package splitter

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gentij/stem-splitter-core/internal/audio"
	"github.com/gentij/stem-splitter-core/internal/dsp"
	"github.com/gentij/stem-splitter-core/internal/model"
	"github.com/gentij/stem-splitter-core/progress"
)

// ErrSampleRateUnsupported indicates an input whose sample rate differs from
// the model's native rate.
var ErrSampleRateUnsupported = errors.New("splitter: unsupported sample rate")

// supportedSampleRate is the only model rate currently handled; resampling
// is out of scope, so the input must already match.
const supportedSampleRate = 44_100

// windowSumFloor keeps the overlap-add normalization away from division by
// zero at the zero-padded edges.
const windowSumFloor = 1e-8

// Inference runs one model window. The process-wide engine session satisfies
// this through a thin adapter; tests substitute deterministic fakes.
type Inference interface {
	RunWindow(left, right []float32) (Output, error)
}

// Output is one window's per-source stereo result.
type Output interface {
	Sources() int
	Samples() int
	Channel(source, channel int) []float32
}

// Result holds the four written stem paths.
type Result struct {
	VocalsPath string
	DrumsPath  string
	BassPath   string
	OtherPath  string
}

// canonicalStems is the output order; the manifest's stem list is matched
// against these names case-insensitively, with the position as fallback.
var canonicalStems = []string{"vocals", "drums", "bass", "other"}

// Run splits one decoded recording into four stem WAVs under outputDir. The
// input path only contributes the output file name prefix.
func Run(buf *audio.Buffer, inputPath string, inf Inference, mf model.Manifest, outputDir string) (*Result, error) {
	if mf.SampleRate != supportedSampleRate {
		return nil, fmt.Errorf("%w: model rate %d, expected %d", ErrSampleRateUnsupported, mf.SampleRate, supportedSampleRate)
	}
	if buf.SampleRate != mf.SampleRate {
		return nil, fmt.Errorf("%w: input rate %d, model rate %d", ErrSampleRateUnsupported, buf.SampleRate, mf.SampleRate)
	}

	left, right := dsp.ToPlanarStereo(buf.Samples, buf.Channels)
	n := len(left)
	if n == 0 {
		return nil, audio.ErrEmptyAudio
	}

	win, hop := mf.Window, mf.Hop
	if win <= 0 || hop <= 0 || hop > win {
		return nil, fmt.Errorf("%w: window %d / hop %d", model.ErrManifestInvalid, win, hop)
	}

	acc, windowSum, err := inferLoop(left, right, inf, win, hop)
	if err != nil {
		return nil, err
	}
	normalize(acc, windowSum, n)

	return writeStems(acc, n, inputPath, outputDir, mf)
}

// stemAccumulator collects one stem's weighted window contributions. Buffers
// run n+win long so the zero-padded tail window never indexes out of range.
type stemAccumulator struct {
	left  []float64
	right []float64
}

// inferLoop slides the window by hop, runs inference per chunk, and
// overlap-adds each output weighted by the Hann² envelope. The accumulators
// are allocated after the first window, when the source count is known.
func inferLoop(left, right []float32, inf Inference, win, hop int) ([]stemAccumulator, []float64, error) {
	n := len(left)
	hannSq := dsp.HannSq(win)

	lChunk := make([]float32, win)
	rChunk := make([]float32, win)

	var acc []stemAccumulator
	var windowSum []float64

	totalChunks := (n + hop - 1) / hop
	done := 0

	progress.Stage(progress.StageInfer)

	pos := 0
	for {
		for i := 0; i < win; i++ {
			if idx := pos + i; idx < n {
				lChunk[i] = left[idx]
				rChunk[i] = right[idx]
			} else {
				lChunk[i] = 0
				rChunk[i] = 0
			}
		}

		out, err := inf.RunWindow(lChunk, rChunk)
		if err != nil {
			return nil, nil, err
		}

		if acc == nil {
			sources := out.Sources()
			if sources < 1 {
				return nil, nil, fmt.Errorf("splitter: model reported %d sources", sources)
			}
			acc = make([]stemAccumulator, sources)
			for s := range acc {
				acc[s] = stemAccumulator{
					left:  make([]float64, n+win),
					right: make([]float64, n+win),
				}
			}
			windowSum = make([]float64, n+win)
		}

		copyLen := win
		if out.Samples() < copyLen {
			copyLen = out.Samples()
		}
		for s := range acc {
			outL := out.Channel(s, 0)
			outR := out.Channel(s, 1)
			for i := 0; i < copyLen; i++ {
				w := float64(hannSq[i])
				acc[s].left[pos+i] += float64(outL[i]) * w
				acc[s].right[pos+i] += float64(outR[i]) * w
			}
		}
		// Model outputs are unwindowed, so unity gain needs the accumulated
		// weights themselves, not their squares as in the iSTFT.
		for i := 0; i < copyLen; i++ {
			windowSum[pos+i] += float64(hannSq[i])
		}

		done++
		progress.Chunks(done, totalChunks)

		if pos+hop >= n {
			break
		}
		pos += hop
	}

	return acc, windowSum, nil
}

// normalize removes the accumulated Hann² envelope so every sample carries
// unity effective gain.
func normalize(acc []stemAccumulator, windowSum []float64, n int) {
	for i := 0; i < n; i++ {
		w := windowSum[i]
		if w < windowSumFloor {
			w = windowSumFloor
		}
		for s := range acc {
			acc[s].left[i] /= w
			acc[s].right[i] /= w
		}
	}
}

// writeStems serializes each canonical stem into a scratch directory, then
// copies it to its final path. The scratch directory is removed on all exit
// paths.
func writeStems(acc []stemAccumulator, n int, inputPath, outputDir string, mf model.Manifest) (*Result, error) {
	progress.Stage(progress.StageWriteStems)

	tmpDir, err := os.MkdirTemp("", "stem-splitter-*")
	if err != nil {
		return nil, fmt.Errorf("splitter: create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("splitter: create output dir: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	if base == "" {
		base = "output"
	}

	paths := make([]string, len(canonicalStems))
	for fallback, stem := range canonicalStems {
		idx := mf.StemIndex(stem, fallback, len(acc))

		interleaved := make([]float32, n*2)
		for i := 0; i < n; i++ {
			interleaved[2*i] = float32(acc[idx].left[i])
			interleaved[2*i+1] = float32(acc[idx].right[i])
		}
		stemBuf := &audio.Buffer{
			Samples:    interleaved,
			SampleRate: mf.SampleRate,
			Channels:   2,
		}

		tmpPath := filepath.Join(tmpDir, stem+".wav")
		stemName := stem
		err := audio.WriteWAV(tmpPath, stemBuf, func(done, total int) {
			progress.Writing(stemName, done, total)
		})
		if err != nil {
			return nil, err
		}

		finalPath := filepath.Join(outputDir, base+"_"+stem+".wav")
		if err := copyFile(tmpPath, finalPath); err != nil {
			return nil, err
		}
		paths[fallback] = finalPath
	}

	progress.Stage(progress.StageFinalize)

	return &Result{
		VocalsPath: paths[0],
		DrumsPath:  paths[1],
		BassPath:   paths[2],
		OtherPath:  paths[3],
	}, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("splitter: open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("splitter: create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("splitter: copy to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("splitter: close %s: %w", dst, err)
	}
	return nil
}
