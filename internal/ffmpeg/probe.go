package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ProbeVideo extracts metadata from a media file
func (e *Executor) ProbeVideo(ctx context.Context, filePath string) (*VideoInfo, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path is required")
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	}

	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, &MediaToolError{Tool: "ffprobe", Err: err, Output: strings.TrimSpace(string(output))}
	}

	var probe probeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &VideoInfo{FilePath: filePath}

	if dur, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		info.Duration = time.Duration(dur * float64(time.Second))
	}
	if br, err := strconv.ParseInt(probe.Format.BitRate, 10, 64); err == nil {
		info.Bitrate = br
	}

	for _, stream := range probe.Streams {
		switch stream.CodecType {
		case "video":
			info.Width = stream.Width
			info.Height = stream.Height
			info.Codec = stream.CodecName
		case "audio":
			info.HasAudio = true
		}
	}
	return info, nil
}

// Duration returns a media file's duration in seconds. The stream-level
// value is preferred; if absent or implausible (under one second) the
// container-level value is used instead.
func (e *Executor) Duration(ctx context.Context, filePath string) (float64, error) {
	streamArgs := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		filePath,
	}
	dur, streamErr := e.probeFloat(ctx, streamArgs)

	if streamErr != nil || dur < 1 {
		formatArgs := []string{
			"-v", "error",
			"-show_entries", "format=duration",
			"-of", "default=noprint_wrappers=1:nokey=1",
			filePath,
		}
		var formatErr error
		dur, formatErr = e.probeFloat(ctx, formatArgs)
		if formatErr != nil {
			return 0, fmt.Errorf("could not determine duration of %s: %w", filePath, formatErr)
		}
	}
	return dur, nil
}

// AudioDuration returns an audio file's duration in seconds from container
// metadata. Failures return 0 with the error, so callers can treat a broken
// download as contributing nothing.
func (e *Executor) AudioDuration(ctx context.Context, filePath string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		filePath,
	}
	return e.probeFloat(ctx, args)
}

// Validate runs an integrity probe over a file. A non-zero ffprobe exit
// means the file is corrupt or truncated.
func (e *Executor) Validate(ctx context.Context, filePath string) error {
	args := []string{
		"-v", "error",
		"-i", filePath,
		"-show_format",
		"-show_streams",
	}
	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return &MediaToolError{Tool: "ffprobe", Err: err, Output: strings.TrimSpace(string(output))}
	}
	return nil
}

func (e *Executor) probeFloat(ctx context.Context, args []string) (float64, error) {
	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return 0, &MediaToolError{Tool: "ffprobe", Err: err, Output: strings.TrimSpace(string(output))}
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable ffprobe value %q: %w", strings.TrimSpace(string(output)), err)
	}
	return value, nil
}

// probeResult matches ffprobe JSON output structure
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}
