package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	// Core settings
	VideoDir        string `yaml:"video_dir"`
	MusicDir        string `yaml:"music_dir"`
	CacheFile       string `yaml:"cache_file"`
	DeleteOriginals bool   `yaml:"delete_originals"`
	ValidateInputs  bool   `yaml:"validate_inputs"`

	// Per-collaborator settings
	FFmpeg     FFmpegConfig     `yaml:"ffmpeg"`
	YouTube    YouTubeConfig    `yaml:"youtube"`
	Downloader DownloaderConfig `yaml:"downloader"`
	Selection  SelectionConfig  `yaml:"selection"`
	Watch      WatchConfig      `yaml:"watch"`
	Upload     UploadConfig     `yaml:"upload"`
}

// FFmpegConfig covers the media tool and its probe companion.
type FFmpegConfig struct {
	BinaryPath string `yaml:"binary_path"`
	ProbePath  string `yaml:"probe_path"`
	Threads    int    `yaml:"threads"`
}

// YouTubeConfig covers the playlist/track metadata provider.
type YouTubeConfig struct {
	APIKey            string  `yaml:"api_key" env:"GOPROMIX_API_KEY"`
	SearchQuery       string  `yaml:"search_query"`
	MaxResults        int64   `yaml:"max_results"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// DownloaderConfig covers the yt-dlp invocation.
type DownloaderConfig struct {
	BinaryPath     string        `yaml:"binary_path"`
	AudioFormat    string        `yaml:"audio_format"`
	AudioQuality   string        `yaml:"audio_quality"`
	UseArchive     bool          `yaml:"use_archive"`
	Workers        int           `yaml:"workers"`
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// SelectionConfig tunes duration matching and top-up behavior.
type SelectionConfig struct {
	BufferSeconds float64       `yaml:"buffer_seconds"`
	MaxTopUps     int           `yaml:"max_top_ups"`
	ProbeWorkers  int           `yaml:"probe_workers"`
	PromptTimeout time.Duration `yaml:"prompt_timeout"`
	Auto          bool          `yaml:"auto"`
}

// WatchConfig tunes the settle watcher.
type WatchConfig struct {
	Extensions    []string      `yaml:"extensions"`
	SettleTime    time.Duration `yaml:"settle_time"`
	CheckInterval time.Duration `yaml:"check_interval"`
}

// UploadConfig covers the publisher.
type UploadConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ClientSecrets string `yaml:"client_secrets"`
	TokenFile     string `yaml:"token_file"`
	Category      string `yaml:"category"`
	Privacy       string `yaml:"privacy"`
}

// Load reads configuration from file or returns defaults. An empty path
// searches the usual locations. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}
	if path == "" {
		cfg.applyEnv()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, cfg.validate()
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) applyEnv() {
	if key := os.Getenv("GOPROMIX_API_KEY"); key != "" {
		c.YouTube.APIKey = key
	}
}

func (c *Config) validate() error {
	if c.Selection.BufferSeconds < 0 {
		return fmt.Errorf("selection.buffer_seconds must be >= 0")
	}
	if c.Selection.MaxTopUps < 1 {
		return fmt.Errorf("selection.max_top_ups must be >= 1")
	}
	if c.Downloader.Workers < 1 {
		return fmt.Errorf("downloader.workers must be >= 1")
	}
	if strings.Contains(c.YouTube.APIKey, "YOUR_API_KEY") {
		return fmt.Errorf("youtube.api_key is a placeholder")
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		VideoDir:        "./videos",
		MusicDir:        "./music",
		CacheFile:       "./playlist_cache.json",
		DeleteOriginals: true,
		ValidateInputs:  true,
		FFmpeg: FFmpegConfig{
			BinaryPath: "ffmpeg",
			ProbePath:  "ffprobe",
			Threads:    0,
		},
		YouTube: YouTubeConfig{
			SearchQuery:       "royalty free edm",
			MaxResults:        49,
			RequestsPerSecond: 8,
		},
		Downloader: DownloaderConfig{
			BinaryPath:     "yt-dlp",
			AudioFormat:    "mp3",
			AudioQuality:   "192",
			UseArchive:     true,
			Workers:        4,
			MaxRetries:     3,
			InitialBackoff: 2 * time.Second,
			MaxBackoff:     30 * time.Second,
		},
		Selection: SelectionConfig{
			BufferSeconds: 30,
			MaxTopUps:     3,
			ProbeWorkers:  8,
			PromptTimeout: 60 * time.Second,
			Auto:          false,
		},
		Watch: WatchConfig{
			Extensions:    []string{".mp4"},
			SettleTime:    5 * time.Minute,
			CheckInterval: 10 * time.Second,
		},
		Upload: UploadConfig{
			Enabled:       false,
			ClientSecrets: "./client_secrets.json",
			TokenFile:     "./token.json",
			Category:      "22",
			Privacy:       "unlisted",
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./gopromix.yaml",
		"./gopromix.yml",
		filepath.Join(os.Getenv("HOME"), ".gopromix", "config.yaml"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
