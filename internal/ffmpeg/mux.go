package ffmpeg

import (
	"context"
	"fmt"
)

// Mix lays the soundtrack under the video. The video stream is copied; both
// audio inputs are trimmed to the video's measured duration and mixed with a
// shortest-wins policy. A video without an audio stream gets synthesized
// silence as its side of the mix.
func (e *Executor) Mix(ctx context.Context, opts MixOptions) error {
	if opts.Video == "" || opts.Soundtrack == "" || opts.Output == "" {
		return fmt.Errorf("video, soundtrack and output paths are required")
	}
	if opts.Duration <= 0 {
		return fmt.Errorf("video duration must be positive")
	}

	e.logger.Info().
		Str("video", opts.Video).
		Str("soundtrack", opts.Soundtrack).
		Str("output", opts.Output).
		Float64("duration", opts.Duration).
		Bool("video_has_audio", opts.VideoHasAudio).
		Msg("mixing soundtrack under video")

	args := []string{
		"-i", opts.Video,
		"-i", opts.Soundtrack,
		"-filter_complex", BuildMixFilter(opts.Duration, opts.VideoHasAudio),
		"-map", "0:v",
		"-map", "[aout]",
		"-c:v", "copy",
		"-c:a", DefaultAudioCodec,
		opts.Output,
	}

	runOpts := RunOptions{
		Args:            args,
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("mix")
		},
	}
	return e.Run(ctx, runOpts)
}

// BuildMixFilter constructs the amix filter graph. Input 0 is the video's
// own audio trimmed to duration, or synthesized stereo silence when the
// video carries no audio stream; input 1 is the soundtrack.
func BuildMixFilter(duration float64, videoHasAudio bool) string {
	if videoHasAudio {
		return fmt.Sprintf(
			"[0:a]atrim=duration=%[1]g[a0];"+
				"[1:a]atrim=duration=%[1]g[a1];"+
				"[a0][a1]amix=inputs=2:duration=shortest:dropout_transition=2[aout]",
			duration)
	}
	return fmt.Sprintf(
		"anullsrc=channel_layout=stereo:sample_rate=44100[a0];"+
			"[1:a]atrim=duration=%g[a1];"+
			"[a0][a1]amix=inputs=2:duration=shortest:dropout_transition=2[aout]",
		duration)
}
