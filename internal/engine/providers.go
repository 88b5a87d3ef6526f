package engine

import (
	"fmt"
	"log/slog"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/gentij/stem-splitter-core/internal/config"
)

// providerAttempt is one entry of the accelerator cascade: a provider name
// and a hook that appends it to freshly built session options.
type providerAttempt struct {
	name   string
	append func(*ort.SessionOptions) error
}

// candidateProviders builds the ordered accelerator cascade: CUDA, CoreML,
// DirectML, then plain CPU. Entries are gated by platform and the
// environment toggles; CPU is always last and always present.
func candidateProviders(cfg config.Config) []providerAttempt {
	var attempts []providerAttempt

	if !cfg.ForceCPU {
		if runtime.GOOS == "linux" || runtime.GOOS == "windows" {
			attempts = append(attempts, providerAttempt{
				name: "cuda",
				append: func(opts *ort.SessionOptions) error {
					cudaOpts, err := ort.NewCUDAProviderOptions()
					if err != nil {
						return err
					}
					defer cudaOpts.Destroy()
					return opts.AppendExecutionProviderCUDA(cudaOpts)
				},
			})
		}
		if runtime.GOOS == "darwin" && cfg.EnableCoreML {
			attempts = append(attempts, providerAttempt{
				name: "coreml",
				append: func(opts *ort.SessionOptions) error {
					return opts.AppendExecutionProviderCoreML(0)
				},
			})
		}
		if runtime.GOOS == "windows" && cfg.EnableDirectML {
			attempts = append(attempts, providerAttempt{
				name: "directml",
				append: func(opts *ort.SessionOptions) error {
					return opts.AppendExecutionProviderDirectML(0)
				},
			})
		}
	}

	attempts = append(attempts, providerAttempt{name: "cpu"})
	return attempts
}

// newSessionWithProviders walks the cascade, returning the first session
// that loads. Per-provider initialization failures fall through to the next
// candidate; only total failure surfaces.
func newSessionWithProviders(modelPath string, cfg config.Config, logger *slog.Logger) (*ort.DynamicAdvancedSession, string, error) {
	var lastErr error
	for _, attempt := range candidateProviders(cfg) {
		sess, err := newSession(modelPath, attempt)
		if err != nil {
			logger.Debug("execution provider unavailable", "provider", attempt.name, "error", err)
			lastErr = err
			continue
		}
		return sess, attempt.name, nil
	}
	return nil, "", fmt.Errorf("engine: no execution provider could load the model: %w", lastErr)
}

// newSession builds fresh options for one attempt. Options cannot be shared
// across attempts: appending a provider mutates them irreversibly.
func newSession(modelPath string, attempt providerAttempt) (*ort.DynamicAdvancedSession, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, err
	}
	defer opts.Destroy()

	if err := opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return nil, err
	}
	if err := opts.SetIntraOpNumThreads(runtime.NumCPU()); err != nil {
		return nil, err
	}
	if err := opts.SetInterOpNumThreads(runtime.NumCPU()); err != nil {
		return nil, err
	}
	if attempt.append != nil {
		if err := attempt.append(opts); err != nil {
			return nil, err
		}
	}

	return ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{inputNameTime, inputNameSpec},
		[]string{outputNameSpec, outputNameTime},
		opts,
	)
}
