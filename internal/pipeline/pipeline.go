package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dylix/gopromix/internal/clips"
	"github.com/dylix/gopromix/internal/config"
	"github.com/dylix/gopromix/internal/ffmpeg"
	"github.com/dylix/gopromix/internal/playlist"
	"github.com/dylix/gopromix/internal/prompt"
	"github.com/dylix/gopromix/internal/upload"
	"github.com/dylix/gopromix/pkg/util"
)

// Publisher is the upload surface the pipeline needs. *upload.Publisher
// satisfies it.
type Publisher interface {
	Upload(ctx context.Context, path, title, description string) (string, error)
}

// Deps are the collaborators a pipeline run needs. Publisher may be nil
// when uploading is disabled.
type Deps struct {
	FFmpeg    *ffmpeg.Executor
	Grouper   *clips.Grouper
	Merger    *clips.Merger
	Matcher   *playlist.Matcher
	Selector  *playlist.Selector
	Chooser   prompt.Chooser
	Publisher Publisher
	Cache     *playlist.Cache
}

// Pipeline drives footage from raw camera clips to published videos with
// soundtracks. It remembers which playlist scored each -music output so the
// publish stage can credit it in the video description.
type Pipeline struct {
	logger      zerolog.Logger
	cfg         *config.Config
	deps        Deps
	soundtracks map[string]playlist.Candidate
}

// New creates a pipeline
func New(logger zerolog.Logger, cfg *config.Config, deps Deps) *Pipeline {
	return &Pipeline{
		logger:      logger.With().Str("component", "pipeline").Logger(),
		cfg:         cfg,
		deps:        deps,
		soundtracks: make(map[string]playlist.Candidate),
	}
}

// withLogger returns a shallow copy logging through logger. The copy shares
// the soundtrack record with the original.
func (p *Pipeline) withLogger(logger zerolog.Logger) *Pipeline {
	clone := *p
	clone.logger = logger
	return &clone
}

// Run executes the full flow: validate, merge camera angles, merge
// sessions, add soundtracks, publish. Every stage logs with the run ID so
// overlapping watch cycles stay distinguishable. The duration cache is
// saved once at the end of a successful run.
func (p *Pipeline) Run(ctx context.Context) error {
	runID := uuid.NewString()[:8]
	run := p.withLogger(p.logger.With().Str("run", runID).Logger())
	run.logger.Info().Str("dir", run.cfg.VideoDir).Msg("starting run")

	if run.cfg.ValidateInputs {
		if err := run.ValidateInputs(ctx); err != nil {
			return err
		}
	}
	if err := run.MergeAngles(ctx); err != nil {
		return err
	}
	if err := run.MergeSessions(ctx); err != nil {
		return err
	}
	if err := run.AddMusic(ctx); err != nil {
		return err
	}
	if run.cfg.Upload.Enabled {
		if err := run.Publish(ctx); err != nil {
			return err
		}
	}
	if err := run.deps.Cache.Save(); err != nil {
		run.logger.Warn().Err(err).Msg("failed to save duration cache")
	}
	run.logger.Info().Msg("run complete")
	return nil
}

// ValidateInputs probes every raw clip and deletes the ones ffprobe cannot
// read, so a truncated copy never poisons a concat.
func (p *Pipeline) ValidateInputs(ctx context.Context) error {
	files, err := clips.Scan(p.cfg.VideoDir, ".mp4")
	if err != nil {
		return err
	}
	for _, f := range files {
		if clips.IsProduct(f.Name) {
			continue
		}
		if err := p.deps.FFmpeg.Validate(ctx, f.Path); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn().Err(err).Str("file", f.Name).Msg("removing unreadable clip")
			if err := os.Remove(f.Path); err != nil {
				return fmt.Errorf("remove corrupt clip %s: %w", f.Path, err)
			}
		}
	}
	return nil
}

// MergeAngles concatenates each camera angle's chaptered recordings into
// one continuous file per angle.
func (p *Pipeline) MergeAngles(ctx context.Context) error {
	files, err := clips.Scan(p.cfg.VideoDir, ".mp4")
	if err != nil {
		return err
	}
	groups := p.deps.Grouper.AngleGroups(files)
	if len(groups) == 0 {
		p.logger.Info().Msg("no angle groups to merge")
		return nil
	}

	for _, group := range groups {
		p.logger.Info().
			Str("pattern", group.Pattern).
			Int("chapters", len(group.Files)).
			Str("output", group.Output).
			Msg("merging angle")
		if _, err := p.deps.Merger.Merge(ctx, p.cfg.VideoDir, group.Files, group.Output); err != nil {
			return err
		}
	}
	return nil
}

// MergeSessions joins the same day's merged angles, ordered by time of
// day, into one session video.
func (p *Pipeline) MergeSessions(ctx context.Context) error {
	files, err := clips.Scan(p.cfg.VideoDir, ".mp4")
	if err != nil {
		return err
	}
	sessions := p.deps.Grouper.Sessions(files)
	if len(sessions) == 0 {
		p.logger.Info().Msg("no sessions to merge")
		return nil
	}

	for _, session := range sessions {
		p.logger.Info().
			Str("date", session.Date).
			Int("parts", len(session.Files)).
			Str("output", session.Output).
			Msg("merging session")
		if _, err := p.deps.Merger.Merge(ctx, p.cfg.VideoDir, session.Files, session.Output); err != nil {
			return err
		}
	}
	return nil
}

// AddMusic gives every merged video that still lacks one a soundtrack
// version. Videos that already have a -music sibling are skipped, which
// makes re-runs cheap.
func (p *Pipeline) AddMusic(ctx context.Context) error {
	targets, err := p.musicTargets()
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		p.logger.Info().Msg("no videos need music")
		return nil
	}

	for _, target := range targets {
		if err := p.addMusicTo(ctx, target); err != nil {
			return fmt.Errorf("add music to %s: %w", filepath.Base(target), err)
		}
	}
	return nil
}

// musicTargets lists merged videos without a -music sibling
func (p *Pipeline) musicTargets() ([]string, error) {
	files, err := clips.Scan(p.cfg.VideoDir, ".mp4")
	if err != nil {
		return nil, err
	}
	var targets []string
	for _, f := range files {
		if !strings.HasPrefix(f.Name, clips.MergedPrefix) {
			continue
		}
		if strings.Contains(f.Name, clips.MusicMarker) {
			continue
		}
		if util.HasMusicVersion(f.Path) {
			p.logger.Debug().Str("file", f.Name).Msg("music version exists, skipping")
			continue
		}
		targets = append(targets, f.Path)
	}
	return targets, nil
}

func (p *Pipeline) addMusicTo(ctx context.Context, videoPath string) error {
	info, err := p.deps.FFmpeg.ProbeVideo(ctx, videoPath)
	if err != nil {
		return err
	}
	target := info.Duration.Seconds()
	p.logger.Info().
		Str("video", filepath.Base(videoPath)).
		Str("length", util.FormatDuration(info.Duration)).
		Bool("has_audio", info.HasAudio).
		Msg("building soundtrack")

	candidates, err := p.deps.Matcher.Rank(ctx, p.cfg.YouTube.SearchQuery, p.cfg.YouTube.MaxResults, target)
	if err != nil {
		return err
	}
	chosen, err := p.choosePlaylist(ctx, candidates)
	if err != nil {
		return err
	}
	p.logger.Info().Str("playlist", chosen.Title).Str("url", chosen.URL).Msg("playlist selected")

	if _, err := p.deps.Selector.Build(ctx, chosen.URL, p.cfg.MusicDir, target); err != nil {
		return err
	}

	soundtrack, err := p.buildSoundtrack(ctx)
	if err != nil {
		return err
	}
	defer os.Remove(soundtrack)

	output := util.MusicVersionPath(videoPath)
	err = p.deps.FFmpeg.Mix(ctx, ffmpeg.MixOptions{
		Video:         videoPath,
		Soundtrack:    soundtrack,
		Output:        output,
		Duration:      target,
		VideoHasAudio: info.HasAudio,
	})
	if err != nil {
		return err
	}
	p.soundtracks[output] = chosen
	p.logger.Info().Str("output", filepath.Base(output)).Msg("soundtrack added")
	return nil
}

// AddMusicFile runs the soundtrack flow for one video. A video that already
// has a -music sibling, or that is itself a music version, is left alone.
func (p *Pipeline) AddMusicFile(ctx context.Context, videoPath string) error {
	name := filepath.Base(videoPath)
	if strings.Contains(name, clips.MusicMarker) {
		p.logger.Info().Str("file", name).Msg("already a music version, skipping")
		return nil
	}
	if util.HasMusicVersion(videoPath) {
		p.logger.Info().Str("file", name).Msg("music version exists, skipping")
		return nil
	}
	if err := p.addMusicTo(ctx, videoPath); err != nil {
		return fmt.Errorf("add music to %s: %w", name, err)
	}
	return nil
}

// choosePlaylist presents ranked candidates through the configured chooser
func (p *Pipeline) choosePlaylist(ctx context.Context, candidates []playlist.Candidate) (playlist.Candidate, error) {
	options := make([]string, len(candidates))
	for i, c := range candidates {
		options[i] = fmt.Sprintf("%s (%s, +%s over target)",
			c.Title, util.FormatSeconds(float64(c.Duration)), util.FormatSeconds(c.Diff))
	}
	idx, err := p.deps.Chooser.Choose(ctx, "Matching playlists:", options)
	if err != nil {
		return playlist.Candidate{}, err
	}
	return candidates[idx], nil
}

// buildSoundtrack concatenates the audio pool, shuffled, into one
// throwaway file for muxing.
func (p *Pipeline) buildSoundtrack(ctx context.Context) (string, error) {
	pool, err := p.deps.Selector.PoolFiles(p.cfg.MusicDir)
	if err != nil {
		return "", err
	}
	if len(pool) == 0 {
		return "", fmt.Errorf("audio pool %s is empty", p.cfg.MusicDir)
	}

	soundtrack := filepath.Join(os.TempDir(), "soundtrack-"+uuid.NewString()[:8]+".mp3")
	err = p.deps.FFmpeg.Concat(ctx, ffmpeg.ConcatOptions{
		Inputs:      p.deps.Selector.Shuffled(pool),
		Output:      soundtrack,
		ManifestDir: os.TempDir(),
	})
	if err != nil {
		return "", fmt.Errorf("concatenate soundtrack: %w", err)
	}
	return soundtrack, nil
}

// Publish uploads every -music video in the footage directory
func (p *Pipeline) Publish(ctx context.Context) error {
	if p.deps.Publisher == nil {
		return fmt.Errorf("uploading enabled but no publisher configured")
	}
	files, err := clips.Scan(p.cfg.VideoDir, ".mp4")
	if err != nil {
		return err
	}

	uploaded := 0
	for _, f := range files {
		if !strings.Contains(f.Name, clips.MusicMarker) {
			continue
		}
		if err := p.publishOne(ctx, f.Path); err != nil {
			return err
		}
		uploaded++
	}
	if uploaded == 0 {
		p.logger.Info().Msg("nothing to publish")
	}
	return nil
}

// PublishFile uploads one video
func (p *Pipeline) PublishFile(ctx context.Context, videoPath string) error {
	if p.deps.Publisher == nil {
		return fmt.Errorf("uploading enabled but no publisher configured")
	}
	return p.publishOne(ctx, videoPath)
}

func (p *Pipeline) publishOne(ctx context.Context, videoPath string) error {
	name := filepath.Base(videoPath)
	title := strings.TrimSuffix(name, filepath.Ext(name))

	// Credit the playlist that scored this video when this process built
	// it; a standalone upload of an older file has no playlist to name.
	description := upload.DefaultDescription
	if chosen, ok := p.soundtracks[videoPath]; ok {
		description = upload.Description(chosen.Title, chosen.URL)
	}

	id, err := p.deps.Publisher.Upload(ctx, videoPath, title, description)
	if err != nil {
		return fmt.Errorf("publish %s: %w", name, err)
	}
	p.logger.Info().Str("file", name).Str("video_id", id).Msg("published")
	return nil
}
