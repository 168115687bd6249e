package playlist

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dylix/gopromix/pkg/util"
)

// ErrInsufficientMaterial is returned when the playlist cannot supply
// enough audio within the allowed number of top-up rounds.
var ErrInsufficientMaterial = errors.New("playlist exhausted before covering target duration")

// TrackEntry is one member of a flat playlist listing
type TrackEntry struct {
	ID       string
	URL      string
	Title    string
	Duration int // seconds, filled from the cache
}

// Downloader fetches playlist listings and audio files (yt-dlp behind an
// interface so tests can fake it).
type Downloader interface {
	FlatEntries(ctx context.Context, playlistURL string) ([]TrackEntry, error)
	DownloadAudio(ctx context.Context, url, outputPath string) error
}

// AudioProber measures the real duration of a local audio file
type AudioProber interface {
	AudioDuration(ctx context.Context, path string) (float64, error)
}

// SelectorConfig tunes track selection and top-up
type SelectorConfig struct {
	BufferSeconds   float64
	MaxTopUps       int
	DownloadWorkers int
	ProbeWorkers    int
	AudioExt        string // e.g. ".mp3"
	Seed            int64  // 0 seeds from the clock
}

// Selector builds a pool of downloaded audio whose measured duration covers
// a video, topping up from the same playlist while it falls short.
type Selector struct {
	logger     zerolog.Logger
	provider   Provider
	cache      *Cache
	downloader Downloader
	prober     AudioProber
	cfg        SelectorConfig
	rng        *rand.Rand
}

// NewSelector creates a selector
func NewSelector(logger zerolog.Logger, provider Provider, cache *Cache, downloader Downloader, prober AudioProber, cfg SelectorConfig) *Selector {
	if cfg.BufferSeconds <= 0 {
		cfg.BufferSeconds = 30
	}
	if cfg.MaxTopUps < 1 {
		cfg.MaxTopUps = 3
	}
	if cfg.DownloadWorkers < 1 {
		cfg.DownloadWorkers = 4
	}
	if cfg.ProbeWorkers < 1 {
		cfg.ProbeWorkers = 8
	}
	if cfg.AudioExt == "" {
		cfg.AudioExt = ".mp3"
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Selector{
		logger:     logger.With().Str("component", "selector").Logger(),
		provider:   provider,
		cache:      cache,
		downloader: downloader,
		prober:     prober,
		cfg:        cfg,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Build ensures the download directory holds audio whose measured total
// duration (plus buffer) covers videoDuration, fetching more tracks from
// playlistURL while it falls short. Each round measures the actual files on
// disk, not API-reported durations. A pool that is already sufficient is a
// no-op beyond the measurement pass. Returns the final measured total.
func (s *Selector) Build(ctx context.Context, playlistURL, dir string, videoDuration float64) (float64, error) {
	if err := util.EnsureDir(dir); err != nil {
		return 0, err
	}

	for round := 0; ; round++ {
		total, err := s.MeasurePool(ctx, dir)
		if err != nil {
			return 0, err
		}
		if total+s.cfg.BufferSeconds >= videoDuration {
			s.logger.Info().
				Float64("pool", total).
				Float64("video", videoDuration).
				Int("rounds", round).
				Msg("audio pool sufficient")
			return total, nil
		}
		if round >= s.cfg.MaxTopUps {
			s.logger.Error().
				Float64("pool", total).
				Float64("video", videoDuration).
				Int("rounds", round).
				Msg("giving up on top-up")
			return total, ErrInsufficientMaterial
		}

		shortfall := videoDuration - total
		s.logger.Info().
			Float64("shortfall", shortfall).
			Int("round", round+1).
			Msg("audio pool short, fetching more tracks")
		if err := s.selectAndDownload(ctx, playlistURL, dir, shortfall); err != nil {
			return 0, err
		}
	}
}

// selectAndDownload performs one greedy selection round: shuffle the flat
// playlist listing, resolve uncached durations in batches, then walk the
// list accumulating tracks until the API-reported total exceeds
// target+buffer. Already-present files count but are not re-downloaded;
// new files are fetched on the worker pool.
func (s *Selector) selectAndDownload(ctx context.Context, playlistURL, dir string, target float64) error {
	entries, err := s.downloader.FlatEntries(ctx, playlistURL)
	if err != nil {
		return err
	}
	s.rng.Shuffle(len(entries), func(i, j int) {
		entries[i], entries[j] = entries[j], entries[i]
	})
	s.logger.Debug().Int("entries", len(entries)).Msg("flat playlist listing")

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.ID != "" {
			ids = append(ids, e.ID)
		}
	}
	durations, err := resolveTrackDurations(ctx, s.provider, s.cache, ids)
	if err != nil {
		return err
	}

	goal := target + s.cfg.BufferSeconds
	accumulated := 0.0
	var toDownload []downloadJob

	for _, entry := range entries {
		duration := durations[entry.ID]
		if entry.URL == "" || duration == 0 {
			s.logger.Warn().
				Str("track", entry.Title).
				Str("id", entry.ID).
				Msg("skipping track without URL or duration")
			continue
		}

		outPath := filepath.Join(dir, util.SanitizeFilename(entry.Title+s.cfg.AudioExt, ""))
		if util.FileExists(outPath) {
			s.logger.Debug().Str("file", outPath).Msg("already downloaded")
		} else {
			toDownload = append(toDownload, downloadJob{entry: entry, outPath: outPath})
		}

		accumulated += float64(duration)
		s.logger.Debug().
			Str("track", entry.Title).
			Int("duration", duration).
			Float64("running_total", accumulated).
			Msg("selected track")

		if accumulated > goal {
			break
		}
	}

	if accumulated <= goal {
		s.logger.Warn().
			Float64("accumulated", accumulated).
			Float64("goal", goal).
			Msg("playlist listing exhausted below goal")
	}

	s.download(ctx, toDownload)
	return nil
}

type downloadJob struct {
	entry   TrackEntry
	outPath string
}

// download runs jobs on a fixed-size worker pool. A failed track is
// reported and simply contributes nothing to the pool.
func (s *Selector) download(ctx context.Context, jobs []downloadJob) {
	if len(jobs) == 0 {
		return
	}
	s.logger.Info().Int("tracks", len(jobs)).Int("workers", s.cfg.DownloadWorkers).Msg("downloading")

	jobCh := make(chan downloadJob)
	var wg sync.WaitGroup

	for i := 0; i < s.cfg.DownloadWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				if err := s.downloader.DownloadAudio(ctx, job.entry.URL, job.outPath); err != nil {
					s.logger.Warn().
						Err(err).
						Str("track", job.entry.Title).
						Str("url", job.entry.URL).
						Msg("download failed")
					continue
				}
				s.logger.Info().Str("file", job.outPath).Msg("downloaded")
			}
		}()
	}

	for _, job := range jobs {
		select {
		case jobCh <- job:
		case <-ctx.Done():
			close(jobCh)
			wg.Wait()
			return
		}
	}
	close(jobCh)
	wg.Wait()
}

// MeasurePool sums the real durations of the audio files in dir, probing in
// parallel. Unreadable files count as zero. Completion order is irrelevant
// because only the sum survives.
func (s *Selector) MeasurePool(ctx context.Context, dir string) (float64, error) {
	files, err := s.poolFiles(dir)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, nil
	}

	fileCh := make(chan string)
	results := make(chan float64, len(files))
	var wg sync.WaitGroup

	for i := 0; i < s.cfg.ProbeWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range fileCh {
				d, err := s.prober.AudioDuration(ctx, path)
				if err != nil {
					s.logger.Warn().Err(err).Str("file", path).Msg("failed to probe audio")
					continue
				}
				results <- d
			}
		}()
	}

	for _, f := range files {
		fileCh <- f
	}
	close(fileCh)
	wg.Wait()
	close(results)

	total := 0.0
	for d := range results {
		total += d
	}
	s.logger.Debug().Int("files", len(files)).Float64("total", total).Msg("measured audio pool")
	return total, nil
}

// PoolFiles lists the pool's audio files in stable name order
func (s *Selector) PoolFiles(dir string) ([]string, error) {
	return s.poolFiles(dir)
}

func (s *Selector) poolFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), s.cfg.AudioExt) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files, nil
}

// Shuffled returns a copy of files in randomized order, for soundtrack
// sequencing.
func (s *Selector) Shuffled(files []string) []string {
	shuffled := append([]string(nil), files...)
	s.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled
}
