package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Concat merges the input files into one output via the concat demuxer,
// copying streams without re-encoding. Input order is preserved exactly. The
// scratch manifest is removed whether or not the run succeeds. The output
// must exist with non-zero size afterwards or the call fails.
func (e *Executor) Concat(ctx context.Context, opts ConcatOptions) error {
	if len(opts.Inputs) == 0 {
		return fmt.Errorf("no input files provided")
	}
	if opts.Output == "" {
		return fmt.Errorf("output path is required")
	}

	e.logger.Info().
		Int("inputs", len(opts.Inputs)).
		Str("output", opts.Output).
		Msg("concatenating")

	manifest, err := writeManifest(opts.ManifestDir, opts.Inputs)
	if err != nil {
		return fmt.Errorf("failed to write concat manifest: %w", err)
	}
	defer os.Remove(manifest)

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", manifest,
		"-c", "copy",
		opts.Output,
	}

	runOpts := RunOptions{
		Args:            args,
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("concat")
		},
	}
	if err := e.Run(ctx, runOpts); err != nil {
		return err
	}

	stat, err := os.Stat(opts.Output)
	if err != nil {
		return &MediaToolError{Tool: "ffmpeg", Err: fmt.Errorf("concat output missing: %w", err)}
	}
	if stat.Size() == 0 {
		return &MediaToolError{Tool: "ffmpeg", Err: fmt.Errorf("concat output %s is empty", opts.Output)}
	}
	return nil
}

// writeManifest writes the concat demuxer file list, one quoted absolute
// path per line. Single quotes in paths are escaped for the demuxer.
func writeManifest(dir string, inputs []string) (string, error) {
	tmpFile, err := os.CreateTemp(dir, "gopromix-concat-*.txt")
	if err != nil {
		return "", err
	}
	defer tmpFile.Close()

	for _, input := range inputs {
		absPath, err := filepath.Abs(input)
		if err != nil {
			os.Remove(tmpFile.Name())
			return "", err
		}
		escaped := strings.ReplaceAll(absPath, "'", `'\''`)
		if _, err := fmt.Fprintf(tmpFile, "file '%s'\n", escaped); err != nil {
			os.Remove(tmpFile.Name())
			return "", err
		}
	}
	return tmpFile.Name(), nil
}
