package download

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dylix/gopromix/internal/ffmpeg"
	"github.com/dylix/gopromix/internal/playlist"
)

// archiveFile is kept next to the audio files so re-runs skip anything
// yt-dlp already fetched.
const archiveFile = ".download-archive.txt"

// Config tunes the yt-dlp wrapper
type Config struct {
	BinaryPath     string
	AudioFormat    string // e.g. "mp3"
	AudioQuality   string // e.g. "192K"
	UseArchive     bool
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Client shells out to yt-dlp for playlist listings and audio extraction.
// It implements playlist.Downloader.
type Client struct {
	logger zerolog.Logger
	path   string
	cfg    Config
}

// New resolves the yt-dlp binary and returns a client
func New(logger zerolog.Logger, cfg Config) (*Client, error) {
	binary := cfg.BinaryPath
	if binary == "" {
		binary = "yt-dlp"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp not found at %s: %w", binary, err)
	}
	if cfg.AudioFormat == "" {
		cfg.AudioFormat = "mp3"
	}
	if cfg.AudioQuality == "" {
		cfg.AudioQuality = "192K"
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 2 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	return &Client{
		logger: logger.With().Str("component", "yt-dlp").Logger(),
		path:   path,
		cfg:    cfg,
	}, nil
}

// FlatEntries lists a playlist's members without resolving each video,
// using yt-dlp's flat JSON dump.
func (c *Client) FlatEntries(ctx context.Context, playlistURL string) ([]playlist.TrackEntry, error) {
	args := []string{"--flat-playlist", "-J", "--no-warnings", playlistURL}
	c.logger.Debug().Str("url", playlistURL).Msg("listing playlist")

	cmd := exec.CommandContext(ctx, c.path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ffmpeg.MediaToolError{Tool: "yt-dlp", Err: err, Output: stderr.String()}
	}
	return parseFlatListing(stdout.Bytes())
}

// parseFlatListing decodes a yt-dlp --flat-playlist -J dump into track
// entries. Members without a usable duration still come through; the
// caller decides whether to skip them.
func parseFlatListing(data []byte) ([]playlist.TrackEntry, error) {
	var listing struct {
		Entries []struct {
			ID       string  `json:"id"`
			URL      string  `json:"url"`
			Title    string  `json:"title"`
			Duration float64 `json:"duration"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, fmt.Errorf("parse playlist listing: %w", err)
	}

	entries := make([]playlist.TrackEntry, 0, len(listing.Entries))
	for _, e := range listing.Entries {
		url := e.URL
		if url == "" && e.ID != "" {
			url = "https://www.youtube.com/watch?v=" + e.ID
		}
		entries = append(entries, playlist.TrackEntry{
			ID:       e.ID,
			URL:      url,
			Title:    e.Title,
			Duration: int(e.Duration),
		})
	}
	return entries, nil
}

// DownloadAudio extracts a single video's audio to outputPath, retrying
// transient failures with exponential backoff.
func (c *Client) DownloadAudio(ctx context.Context, url, outputPath string) error {
	args := c.downloadArgs(url, outputPath)

	var lastErr error
	backoff := c.cfg.InitialBackoff
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		cmd := exec.CommandContext(ctx, c.path, args...)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		err := cmd.Run()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = &ffmpeg.MediaToolError{Tool: "yt-dlp", Err: err, Output: stderr.String()}
		c.logger.Warn().
			Err(err).
			Str("url", url).
			Int("attempt", attempt).
			Msg("download attempt failed")

		if attempt == c.cfg.MaxRetries {
			break
		}
		select {
		case <-time.After(withJitter(backoff)):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = nextBackoff(backoff, c.cfg.MaxBackoff)
	}
	return fmt.Errorf("download %s after %d attempts: %w", url, c.cfg.MaxRetries, lastErr)
}

// downloadArgs builds the yt-dlp invocation for one audio extraction
func (c *Client) downloadArgs(url, outputPath string) []string {
	args := []string{
		"-x",
		"--audio-format", c.cfg.AudioFormat,
		"--audio-quality", c.cfg.AudioQuality,
		"--no-playlist",
		"--no-warnings",
		"-o", outputTemplate(outputPath),
	}
	if c.cfg.UseArchive {
		args = append(args, "--download-archive", filepath.Join(filepath.Dir(outputPath), archiveFile))
	}
	return append(args, url)
}

// outputTemplate strips the extension so yt-dlp's post-processor can append
// the converted one without doubling it.
func outputTemplate(outputPath string) string {
	ext := filepath.Ext(outputPath)
	return strings.TrimSuffix(outputPath, ext) + ".%(ext)s"
}

// nextBackoff doubles the delay up to the cap
func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}

// withJitter spreads the delay by up to 25% so parallel workers do not
// retry in lockstep.
func withJitter(d time.Duration) time.Duration {
	return d + time.Duration(rand.Int63n(int64(d)/4+1))
}
