// Package stemsplitter separates a stereo recording into four time-aligned
// source stems (vocals, drums, bass, other) with a pre-trained hybrid
// time/frequency model, materializing the model artifact on first use.
package stemsplitter

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gentij/stem-splitter-core/internal/audio"
	"github.com/gentij/stem-splitter-core/internal/config"
	"github.com/gentij/stem-splitter-core/internal/engine"
	"github.com/gentij/stem-splitter-core/internal/fetch"
	"github.com/gentij/stem-splitter-core/internal/model"
	"github.com/gentij/stem-splitter-core/internal/splitter"
	"github.com/gentij/stem-splitter-core/progress"
)

// DefaultModel is the registry entry used when no model name is given.
const DefaultModel = "htdemucs_ort_v1"

// SplitOptions configures one split run.
type SplitOptions struct {
	// OutputDir receives the four stem WAVs. Defaults to ".".
	OutputDir string
	// ModelName selects a registry entry. Defaults to DefaultModel.
	ModelName string
	// ManifestURL, when set, bypasses the registry lookup.
	ManifestURL string
}

// SplitResult holds the paths of the four written stems.
type SplitResult struct {
	VocalsPath string
	DrumsPath  string
	BassPath   string
	OtherPath  string
}

// SetDownloadProgressCallback registers a process-wide observer for model
// download progress. The first registration wins.
func SetDownloadProgressCallback(cb func(downloaded, total uint64)) {
	progress.SetDownloadCallback(cb)
}

// SetSplitProgressCallback registers a process-wide observer for split
// progress events. The first registration wins.
func SetSplitProgressCallback(cb func(progress.SplitEvent)) {
	progress.SetSplitCallback(cb)
}

// Split runs the whole pipeline for one file: ensure the model is cached,
// preload the engine, read the input, split, and write the stems. It blocks
// the calling goroutine for the duration.
func Split(inputPath string, opts SplitOptions) (*SplitResult, error) {
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if opts.ModelName == "" {
		opts.ModelName = DefaultModel
	}

	cfg := config.Loader{}.Load()
	logger := newLogger(cfg.Debug)

	progress.Stage(progress.StageResolveModel)
	client := fetch.NewClient()
	handle, err := model.EnsureModel(client, opts.ModelName, opts.ManifestURL, logger)
	if err != nil {
		return nil, err
	}

	progress.Stage(progress.StageEnginePreload)
	sess, err := engine.Preload(handle, cfg, logger)
	if err != nil {
		return nil, err
	}

	progress.Stage(progress.StageReadAudio)
	buf, err := audio.ReadWAV(inputPath)
	if err != nil {
		return nil, err
	}

	res, err := splitter.Run(buf, inputPath, engineInference{sess}, sess.Manifest(), opts.OutputDir)
	if err != nil {
		return nil, err
	}

	progress.Finished()
	return &SplitResult{
		VocalsPath: res.VocalsPath,
		DrumsPath:  res.DrumsPath,
		BassPath:   res.BassPath,
		OtherPath:  res.OtherPath,
	}, nil
}

// PrepareModel ensures the model artifact is cached and the engine is
// loaded, without splitting anything.
func PrepareModel(modelName, manifestURL string) error {
	if modelName == "" {
		modelName = DefaultModel
	}
	cfg := config.Loader{}.Load()
	logger := newLogger(cfg.Debug)

	handle, err := model.EnsureModel(fetch.NewClient(), modelName, manifestURL, logger)
	if err != nil {
		return err
	}
	if _, err := engine.Preload(handle, cfg, logger); err != nil {
		return err
	}
	return nil
}

// ListModels returns the bundled registry: the model names and which one is
// the default.
func ListModels() (names []string, defaultName string, err error) {
	reg, err := model.LoadRegistry()
	if err != nil {
		return nil, "", err
	}
	for _, entry := range reg.Models {
		names = append(names, entry.Name)
	}
	return names, reg.Default, nil
}

// engineInference adapts the engine session to the splitter's Inference
// interface.
type engineInference struct {
	sess *engine.Session
}

func (e engineInference) RunWindow(left, right []float32) (splitter.Output, error) {
	out, err := e.sess.RunWindow(left, right)
	if err != nil {
		return nil, fmt.Errorf("run window: %w", err)
	}
	return out, nil
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
