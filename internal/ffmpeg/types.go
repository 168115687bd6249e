package ffmpeg

import "time"

// VideoInfo contains metadata about a media file
type VideoInfo struct {
	FilePath string
	Duration time.Duration
	Width    int
	Height   int
	Bitrate  int64
	Codec    string
	HasAudio bool
}

// Progress represents ffmpeg progress data
type Progress struct {
	Frame   int
	FPS     float64
	Bitrate string
	Time    string
	Speed   string
}

// ProgressFunc receives progress updates during an ffmpeg run
type ProgressFunc func(*Progress)

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args            []string
	ProgressHandler ProgressFunc
	LogHandler      func(line string)
}

// ConcatOptions defines concat demuxer parameters. Inputs are written to a
// scratch manifest in manifest order; streams are copied, never re-encoded.
type ConcatOptions struct {
	Inputs       []string
	Output       string
	ManifestDir  string
	ProgressFunc ProgressFunc
}

// MixOptions defines soundtrack mixing parameters. Duration is the measured
// video duration in seconds; both audio inputs are trimmed to it.
type MixOptions struct {
	Video         string
	Soundtrack    string
	Output        string
	Duration      float64
	VideoHasAudio bool
	ProgressFunc  ProgressFunc
}

// Audio re-encode defaults for mixing
const (
	DefaultAudioCodec = "aac"
)
