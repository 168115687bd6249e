package clips

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/dylix/gopromix/internal/ffmpeg"
	"github.com/dylix/gopromix/pkg/util"
)

// Merger concatenates ordered clip lists into merged videos
type Merger struct {
	logger          zerolog.Logger
	ffmpeg          *ffmpeg.Executor
	deleteOriginals bool
}

// NewMerger creates a merger
func NewMerger(logger zerolog.Logger, exec *ffmpeg.Executor, deleteOriginals bool) *Merger {
	return &Merger{
		logger:          logger.With().Str("component", "merger").Logger(),
		ffmpeg:          exec,
		deleteOriginals: deleteOriginals,
	}
}

// Merge losslessly concatenates files (in the given order) into a new file
// named output inside dir. Name collisions get an incrementing numeric
// suffix, never an overwrite. On success the merged video is probed for its
// real duration and audio presence, and the inputs are deleted when the
// merger is configured to do so.
func (m *Merger) Merge(ctx context.Context, dir string, files []ClipFile, output string) (*MergedVideo, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to merge")
	}

	outputPath := util.UniqueFilename(filepath.Join(dir, output))

	inputs := make([]string, len(files))
	for i, f := range files {
		inputs[i] = f.Path
	}

	err := m.ffmpeg.Concat(ctx, ffmpeg.ConcatOptions{
		Inputs:      inputs,
		Output:      outputPath,
		ManifestDir: dir,
	})
	if err != nil {
		return nil, fmt.Errorf("concatenate %s: %w", output, err)
	}

	duration, err := m.ffmpeg.Duration(ctx, outputPath)
	if err != nil {
		return nil, fmt.Errorf("probe merged video: %w", err)
	}
	info, err := m.ffmpeg.ProbeVideo(ctx, outputPath)
	if err != nil {
		return nil, fmt.Errorf("probe merged video: %w", err)
	}

	m.logger.Info().
		Str("output", outputPath).
		Float64("duration", duration).
		Int("inputs", len(inputs)).
		Msg("merged session")

	if m.deleteOriginals {
		for _, f := range files {
			m.removeIfExists(f.Path)
		}
	}

	return &MergedVideo{
		Path:     outputPath,
		Duration: duration,
		HasAudio: info.HasAudio,
	}, nil
}

// removeIfExists deletes a file, logging (not failing) when it is already
// gone.
func (m *Merger) removeIfExists(path string) {
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			m.logger.Debug().Str("file", path).Msg("already gone")
			return
		}
		m.logger.Warn().Err(err).Str("file", path).Msg("failed to delete input")
		return
	}
	m.logger.Debug().Str("file", path).Msg("deleted input")
}
