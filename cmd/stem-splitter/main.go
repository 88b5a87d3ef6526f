// Command stem-splitter separates a stereo recording into vocals, drums,
// bass, and other stems.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	stemsplitter "github.com/gentij/stem-splitter-core"
	"github.com/gentij/stem-splitter-core/progress"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "stem-splitter",
		Short:         "AI-powered audio stem separation tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newSplitCmd(), newPrepareCmd(), newListCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newSplitCmd() *cobra.Command {
	var (
		input       string
		output      string
		modelName   string
		manifestURL string
		quiet       bool
	)

	cmd := &cobra.Command{
		Use:   "split",
		Short: "Split an audio file into four stems",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(input); err != nil {
				return fmt.Errorf("input file not found: %s", input)
			}

			if !quiet {
				setupProgress()
				fmt.Fprintln(os.Stderr, "Stem Splitter")
				fmt.Fprintln(os.Stderr, "Input: ", input)
				fmt.Fprintln(os.Stderr, "Output:", output)
				fmt.Fprintln(os.Stderr, "Model: ", modelName)
				fmt.Fprintln(os.Stderr)
			}

			res, err := stemsplitter.Split(input, stemsplitter.SplitOptions{
				OutputDir:   output,
				ModelName:   modelName,
				ManifestURL: manifestURL,
			})
			if err != nil {
				return err
			}

			if quiet {
				fmt.Println(res.VocalsPath)
				fmt.Println(res.DrumsPath)
				fmt.Println(res.BassPath)
				fmt.Println(res.OtherPath)
			} else {
				fmt.Fprintln(os.Stderr)
				fmt.Fprintln(os.Stderr, "Split completed:")
				fmt.Fprintln(os.Stderr, "  vocals:", res.VocalsPath)
				fmt.Fprintln(os.Stderr, "  drums: ", res.DrumsPath)
				fmt.Fprintln(os.Stderr, "  bass:  ", res.BassPath)
				fmt.Fprintln(os.Stderr, "  other: ", res.OtherPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "input audio file (required)")
	cmd.Flags().StringVarP(&output, "output", "o", ".", "output directory")
	cmd.Flags().StringVarP(&modelName, "model", "m", stemsplitter.DefaultModel, "model name from the registry")
	cmd.Flags().StringVar(&manifestURL, "manifest-url", "", "override the registry manifest URL")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print only output paths")
	cmd.MarkFlagRequired("input")

	return cmd
}

func newPrepareCmd() *cobra.Command {
	var (
		modelName   string
		manifestURL string
		quiet       bool
	)

	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Download and load a model without splitting",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !quiet {
				setupProgress()
				fmt.Fprintln(os.Stderr, "Preparing model:", modelName)
			}
			if err := stemsplitter.PrepareModel(modelName, manifestURL); err != nil {
				return err
			}
			if !quiet {
				fmt.Fprintln(os.Stderr, "Model prepared successfully")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&modelName, "model", "m", stemsplitter.DefaultModel, "model name from the registry")
	cmd.Flags().StringVar(&manifestURL, "manifest-url", "", "override the registry manifest URL")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")

	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available models",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, defaultName, err := stemsplitter.ListModels()
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "Available models:")
			for _, name := range names {
				marker := ""
				if name == defaultName {
					marker = " (default)"
				}
				fmt.Fprintf(os.Stderr, "  - %s%s\n", name, marker)
			}
			fmt.Fprintln(os.Stderr)
			fmt.Fprintln(os.Stderr, "Use --model <name> to select one")
			return nil
		},
	}
}

// setupProgress wires terminal progress rendering to the library callbacks.
func setupProgress() {
	stemsplitter.SetDownloadProgressCallback(func(downloaded, total uint64) {
		if total > 0 {
			pct := float64(downloaded) / float64(total) * 100.0
			fmt.Fprintf(os.Stderr, "\rDownloading model: %3.0f%% (%.2f MB / %.2f MB)",
				pct, float64(downloaded)/1e6, float64(total)/1e6)
			if downloaded >= total {
				fmt.Fprintln(os.Stderr)
			}
		} else {
			fmt.Fprintf(os.Stderr, "\rDownloading model: %.2f MB", float64(downloaded)/1e6)
		}
	})

	stemsplitter.SetSplitProgressCallback(func(ev progress.SplitEvent) {
		switch ev.Kind {
		case progress.KindStage:
			fmt.Fprintln(os.Stderr, stageLabel(ev.Stage))
		case progress.KindChunks:
			fmt.Fprintf(os.Stderr, "\rProcessing: %d/%d chunks (%.0f%%)", ev.Done, ev.Total, ev.Percent)
			if ev.Done >= ev.Total {
				fmt.Fprintln(os.Stderr)
			}
		case progress.KindWriting:
			fmt.Fprintf(os.Stderr, "\rWriting %s: %d/%d (%.0f%%)", ev.Stem, ev.Done, ev.Total, ev.Percent)
			if ev.Done >= ev.Total {
				fmt.Fprintln(os.Stderr)
			}
		case progress.KindFinished:
			// Completion summary is printed by the command itself.
		}
	})
}

func stageLabel(s progress.SplitStage) string {
	switch s {
	case progress.StageResolveModel:
		return "Resolving model"
	case progress.StageEnginePreload:
		return "Loading model"
	case progress.StageReadAudio:
		return "Reading audio file"
	case progress.StageInfer:
		return "Processing audio"
	case progress.StageWriteStems:
		return "Writing stems"
	case progress.StageFinalize:
		return "Finalizing"
	default:
		return string(s)
	}
}
