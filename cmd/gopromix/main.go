package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dylix/gopromix/internal/clips"
	"github.com/dylix/gopromix/internal/config"
	"github.com/dylix/gopromix/internal/download"
	"github.com/dylix/gopromix/internal/ffmpeg"
	"github.com/dylix/gopromix/internal/logging"
	"github.com/dylix/gopromix/internal/pipeline"
	"github.com/dylix/gopromix/internal/playlist"
	"github.com/dylix/gopromix/internal/prompt"
	"github.com/dylix/gopromix/internal/upload"
	"github.com/dylix/gopromix/internal/watch"
)

var (
	cfgFile string
	verbose bool
	yes     bool
)

func main() {
	ctx := context.Background()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gopromix",
	Short: "gopromix - GoPro footage merger with auto-matched soundtracks",
	Long:  "Merges chaptered GoPro recordings into session videos and muxes in a soundtrack built from a duration-matched YouTube playlist.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(verbose)

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./gopromix.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&yes, "yes", "y", false, "never prompt, pick playlists automatically")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(musicCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(authorizeCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline once",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		pipe, err := buildPipeline(cmd.Context(), cfg, withMusic|withPublisher)
		if err != nil {
			return err
		}
		return pipe.Run(cmd.Context())
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the footage directory and run on every settled batch",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		pipe, err := buildPipeline(cmd.Context(), cfg, withMusic|withPublisher)
		if err != nil {
			return err
		}

		w := watch.New(log.Logger, watch.Config{
			Dir:           cfg.VideoDir,
			Extensions:    cfg.Watch.Extensions,
			SettleTime:    cfg.Watch.SettleTime,
			CheckInterval: cfg.Watch.CheckInterval,
		}, pipe.Run)
		return w.Run(cmd.Context())
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge camera angles and sessions, skip music and upload",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		pipe, err := buildPipeline(cmd.Context(), cfg, 0)
		if err != nil {
			return err
		}
		if cfg.ValidateInputs {
			if err := pipe.ValidateInputs(cmd.Context()); err != nil {
				return err
			}
		}
		if err := pipe.MergeAngles(cmd.Context()); err != nil {
			return err
		}
		return pipe.MergeSessions(cmd.Context())
	},
}

var musicCmd = &cobra.Command{
	Use:   "music [video]",
	Short: "Add soundtracks to already-merged videos",
	Long:  "Adds a soundtrack to the given video, or to every merged video in the footage directory still lacking one.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		pipe, cache, err := buildPipelineWithCache(cmd.Context(), cfg, withMusic)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			err = pipe.AddMusicFile(cmd.Context(), args[0])
		} else {
			err = pipe.AddMusic(cmd.Context())
		}
		if err != nil {
			return err
		}
		return cache.Save()
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload [video]",
	Short: "Publish finished soundtrack videos",
	Long:  "Publishes the given video, or every -music video in the footage directory.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		pipe, err := buildPipeline(cmd.Context(), cfg, withPublisherAlways)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			return pipe.PublishFile(cmd.Context(), args[0])
		}
		return pipe.Publish(cmd.Context())
	},
}

var authorizeCmd = &cobra.Command{
	Use:   "authorize",
	Short: "Run the one-time OAuth flow for uploading",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		err := upload.Authorize(cmd.Context(), upload.Config{
			ClientSecrets: cfg.Upload.ClientSecrets,
			TokenFile:     cfg.Upload.TokenFile,
		}, func(authURL string) (string, error) {
			fmt.Printf("Open this URL in a browser and paste the code back:\n\n  %s\n\ncode: ", authURL)
			reader := bufio.NewReader(os.Stdin)
			line, err := reader.ReadString('\n')
			if err != nil {
				return "", err
			}
			return strings.TrimSpace(line), nil
		})
		if err != nil {
			return err
		}
		log.Info().Str("token_file", cfg.Upload.TokenFile).Msg("authorized")
		return nil
	},
}

type buildFlags int

const (
	withMusic buildFlags = 1 << iota
	withPublisher
	withPublisherAlways
)

func buildPipeline(ctx context.Context, cfg *config.Config, flags buildFlags) (*pipeline.Pipeline, error) {
	pipe, _, err := buildPipelineWithCache(ctx, cfg, flags)
	return pipe, err
}

// buildPipelineWithCache wires the collaborators a command needs. Network
// surfaces (YouTube API, yt-dlp, OAuth publisher) are only constructed for
// commands that will use them.
func buildPipelineWithCache(ctx context.Context, cfg *config.Config, flags buildFlags) (*pipeline.Pipeline, *playlist.Cache, error) {
	exec, err := ffmpeg.New(log.Logger, cfg.FFmpeg.BinaryPath, cfg.FFmpeg.ProbePath, cfg.FFmpeg.Threads)
	if err != nil {
		return nil, nil, err
	}
	cache, err := playlist.LoadCache(cfg.CacheFile)
	if err != nil {
		return nil, nil, err
	}

	deps := pipeline.Deps{
		FFmpeg:  exec,
		Grouper: clips.NewGrouper(log.Logger),
		Merger:  clips.NewMerger(log.Logger, exec, cfg.DeleteOriginals),
		Cache:   cache,
	}

	if flags&withMusic != 0 {
		provider, err := playlist.NewYouTubeProvider(ctx, log.Logger, cfg.YouTube.APIKey, cfg.YouTube.RequestsPerSecond)
		if err != nil {
			return nil, nil, err
		}
		downloader, err := download.New(log.Logger, download.Config{
			BinaryPath:     cfg.Downloader.BinaryPath,
			AudioFormat:    cfg.Downloader.AudioFormat,
			AudioQuality:   cfg.Downloader.AudioQuality,
			UseArchive:     cfg.Downloader.UseArchive,
			MaxRetries:     cfg.Downloader.MaxRetries,
			InitialBackoff: cfg.Downloader.InitialBackoff,
			MaxBackoff:     cfg.Downloader.MaxBackoff,
		})
		if err != nil {
			return nil, nil, err
		}

		deps.Matcher = playlist.NewMatcher(log.Logger, provider, cache)
		deps.Selector = playlist.NewSelector(log.Logger, provider, cache, downloader, exec, playlist.SelectorConfig{
			BufferSeconds:   cfg.Selection.BufferSeconds,
			MaxTopUps:       cfg.Selection.MaxTopUps,
			DownloadWorkers: cfg.Downloader.Workers,
			ProbeWorkers:    cfg.Selection.ProbeWorkers,
			AudioExt:        "." + cfg.Downloader.AudioFormat,
		})
		deps.Chooser = buildChooser(cfg)
	}

	if flags&withPublisherAlways != 0 || (flags&withPublisher != 0 && cfg.Upload.Enabled) {
		publisher, err := upload.NewPublisher(ctx, log.Logger, upload.Config{
			ClientSecrets: cfg.Upload.ClientSecrets,
			TokenFile:     cfg.Upload.TokenFile,
			Category:      cfg.Upload.Category,
			Privacy:       cfg.Upload.Privacy,
		})
		if err != nil {
			return nil, nil, err
		}
		deps.Publisher = publisher
	}

	return pipeline.New(log.Logger, cfg, deps), cache, nil
}

func buildChooser(cfg *config.Config) prompt.Chooser {
	auto := prompt.NewAutoChooser(log.Logger, 0)
	if yes || cfg.Selection.Auto {
		return auto
	}
	return prompt.NewConsoleChooser(log.Logger, os.Stdin, os.Stderr, cfg.Selection.PromptTimeout, auto)
}
