// Package engine runs the hybrid time/frequency demixing model through ONNX
// Runtime. A single session exists per process; it is loaded once by Preload
// and never hot-swapped.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/gentij/stem-splitter-core/internal/config"
	"github.com/gentij/stem-splitter-core/internal/dsp"
	"github.com/gentij/stem-splitter-core/internal/model"
)

const (
	// nFFT and hopSize are the fixed STFT geometry the exported model was
	// traced with.
	nFFT    = 4096
	hopSize = 1024

	// WindowSamples is the exact per-window input length the model accepts.
	WindowSamples = 343_980

	// freqBins and specFrames are the spectrogram dims implied by
	// WindowSamples: nFFT/2 kept bins and 1 + T/hop frames.
	freqBins   = 2048
	specFrames = 336
)

// Model input and output names of the two-branch signature.
const (
	inputNameTime = "input"
	inputNameSpec = "x"

	outputNameSpec = "output"
	outputNameTime = "add_67"
)

var (
	// ErrNotLoaded indicates RunWindow was called before Preload.
	ErrNotLoaded = errors.New("engine: model not loaded, call Preload first")
	// ErrInputInvalid indicates mismatched channel lengths or a wrong window size.
	ErrInputInvalid = errors.New("engine: invalid input")
	// ErrShapeMismatch indicates runtime tensor dims disagreeing with the
	// spectrogram constants.
	ErrShapeMismatch = errors.New("engine: shape mismatch")
	// ErrModelInterface indicates a loaded model missing a named input or output.
	ErrModelInterface = errors.New("engine: model interface mismatch")
	// ErrInference wraps runtime errors reported during a run.
	ErrInference = errors.New("engine: inference failed")
)

// ortInitOnce ensures the ONNX Runtime environment is initialized exactly
// once. ortInitErr is kept at package scope so later Preload calls surface
// the failure instead of proceeding with an uninitialized environment.
var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// Session is the process-wide inference session. RunWindow serializes calls
// through an internal mutex.
type Session struct {
	mu       sync.Mutex
	sess     *ort.DynamicAdvancedSession
	manifest model.Manifest
	provider string
	log      *slog.Logger
}

var (
	sessionMu sync.Mutex
	session   *Session
)

// Preload initializes the process-wide session from a verified model handle.
// Subsequent calls are a no-op returning the existing session: the model is
// not hot-swapped.
func Preload(h *model.Handle, cfg config.Config, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "engine")

	sessionMu.Lock()
	defer sessionMu.Unlock()
	if session != nil {
		return session, nil
	}

	ortInitOnce.Do(func() {
		if libPath, err := resolveORTLibPath(); err == nil {
			ort.SetSharedLibraryPath(libPath)
		} else {
			logger.Debug("no bundled onnxruntime library, relying on system loader", "error", err)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("engine: initialize onnxruntime: %w", ortInitErr)
	}

	if err := checkModelInterface(h.LocalPath); err != nil {
		return nil, err
	}

	sess, provider, err := newSessionWithProviders(h.LocalPath, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("model loaded", "model", h.Manifest.Name, "provider", provider)

	session = &Session{
		sess:     sess,
		manifest: h.Manifest,
		provider: provider,
		log:      logger,
	}
	return session, nil
}

// Manifest returns the manifest of the loaded model.
func (s *Session) Manifest() model.Manifest {
	return s.manifest
}

// WindowOutput holds per-source stereo time-domain samples for one window,
// laid out [sources][2][samples].
type WindowOutput struct {
	sources int
	samples int
	data    []float32
}

// Sources returns the source count declared by the model.
func (o *WindowOutput) Sources() int { return o.sources }

// Samples returns the per-channel sample count of the window.
func (o *WindowOutput) Samples() int { return o.samples }

// Channel returns the time samples for one source and channel (0 = left,
// 1 = right). The slice aliases the output buffer; callers must not mutate it.
func (o *WindowOutput) Channel(source, channel int) []float32 {
	off := (source*2 + channel) * o.samples
	return o.data[off : off+o.samples]
}

// RunWindow runs one inference window. Both channels must be exactly
// WindowSamples long. The returned output is the sample-wise sum of the
// model's time-domain branch and the inverse STFT of its frequency branch.
func (s *Session) RunWindow(left, right []float32) (*WindowOutput, error) {
	t := len(left)
	if t != len(right) {
		return nil, fmt.Errorf("%w: channel lengths %d vs %d", ErrInputInvalid, t, len(right))
	}
	if t != WindowSamples {
		return nil, fmt.Errorf("%w: window must be %d samples, got %d", ErrInputInvalid, WindowSamples, t)
	}
	if s == nil || s.sess == nil {
		return nil, ErrNotLoaded
	}

	spec, fBins, frames, err := dsp.STFT(left, right, nFFT, hopSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInputInvalid, err)
	}
	if fBins != freqBins || frames != specFrames {
		return nil, fmt.Errorf("%w: spectrogram dims (%d, %d), want (%d, %d)",
			ErrShapeMismatch, fBins, frames, freqBins, specFrames)
	}

	planar := make([]float32, 2*t)
	copy(planar[:t], left)
	copy(planar[t:], right)

	timeIn, err := ort.NewTensor(ort.NewShape(1, 2, int64(t)), planar)
	if err != nil {
		return nil, fmt.Errorf("engine: create time input tensor: %w", err)
	}
	defer timeIn.Destroy()

	specIn, err := ort.NewTensor(ort.NewShape(1, 4, int64(fBins), int64(frames)), spec)
	if err != nil {
		return nil, fmt.Errorf("engine: create spectrogram input tensor: %w", err)
	}
	defer specIn.Destroy()

	outputs := make([]ort.Value, 2)
	s.mu.Lock()
	err = s.sess.Run([]ort.Value{timeIn, specIn}, outputs)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	for _, out := range outputs {
		if out != nil {
			defer out.Destroy()
		}
	}

	specOut, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("%w: output %q is not a float32 tensor", ErrModelInterface, outputNameSpec)
	}
	timeOut, ok := outputs[1].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("%w: output %q is not a float32 tensor", ErrModelInterface, outputNameTime)
	}

	sources, err := validateOutputShapes(specOut.GetShape(), timeOut.GetShape(), t)
	if err != nil {
		return nil, err
	}

	return combineBranches(specOut.GetData(), timeOut.GetData(), sources, t)
}

// validateOutputShapes checks [1,S,4,F,Frames] and [1,S,2,T] against the
// fixed constants and returns the shared source count S.
func validateOutputShapes(specShape, timeShape ort.Shape, t int) (int, error) {
	if len(specShape) != 5 || specShape[0] != 1 || specShape[2] != 4 ||
		specShape[3] != freqBins || specShape[4] != specFrames {
		return 0, fmt.Errorf("%w: frequency output shape %v", ErrShapeMismatch, specShape)
	}
	if len(timeShape) != 4 || timeShape[0] != 1 || timeShape[2] != 2 || timeShape[3] != int64(t) {
		return 0, fmt.Errorf("%w: time output shape %v", ErrShapeMismatch, timeShape)
	}
	if specShape[1] != timeShape[1] || specShape[1] < 1 {
		return 0, fmt.Errorf("%w: source counts %d vs %d", ErrShapeMismatch, specShape[1], timeShape[1])
	}
	return int(specShape[1]), nil
}

// combineBranches inverse-transforms each source's frequency residual in
// parallel and adds the time-domain residual sample-wise.
func combineBranches(specData, timeData []float32, sources, t int) (*WindowOutput, error) {
	perSource := 4 * freqBins * specFrames
	specs := make([][]float32, sources)
	for src := 0; src < sources; src++ {
		specs[src] = specData[src*perSource : (src+1)*perSource]
	}

	pairs, err := dsp.ParallelISTFT(specs, freqBins, specFrames, nFFT, hopSize, t)
	if err != nil {
		return nil, fmt.Errorf("%w: inverse stft: %v", ErrInference, err)
	}

	out := &WindowOutput{
		sources: sources,
		samples: t,
		data:    make([]float32, sources*2*t),
	}
	for src := 0; src < sources; src++ {
		for ch := 0; ch < 2; ch++ {
			freq := pairs[src].Left
			if ch == 1 {
				freq = pairs[src].Right
			}
			off := (src*2 + ch) * t
			branch := timeData[off : off+t]
			dst := out.data[off : off+t]
			for i := 0; i < t; i++ {
				dst[i] = branch[i] + freq[i]
			}
		}
	}
	return out, nil
}

// checkModelInterface verifies the loaded model exposes the two-input,
// two-output hybrid signature by name.
func checkModelInterface(modelPath string) error {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return fmt.Errorf("engine: inspect model: %w", err)
	}
	for _, want := range []string{inputNameTime, inputNameSpec} {
		if !hasName(inputs, want) {
			return fmt.Errorf("%w: missing input %q", ErrModelInterface, want)
		}
	}
	for _, want := range []string{outputNameSpec, outputNameTime} {
		if !hasName(outputs, want) {
			return fmt.Errorf("%w: missing output %q", ErrModelInterface, want)
		}
	}
	return nil
}

func hasName(infos []ort.InputOutputInfo, name string) bool {
	for _, info := range infos {
		if info.Name == name {
			return true
		}
	}
	return false
}
