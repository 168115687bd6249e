package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Config tunes the directory watcher
type Config struct {
	Dir           string
	Extensions    []string // e.g. [".mp4"]
	SettleTime    time.Duration
	CheckInterval time.Duration
}

// Watcher waits for a directory to go quiet before firing its callback.
// New files arriving from a camera copy trickle in over minutes, so a raw
// create event is too early to start processing: the watcher requires both
// an idle window and two identical size snapshots.
type Watcher struct {
	logger   zerolog.Logger
	cfg      Config
	onSettle func(context.Context) error
}

// New creates a watcher that calls onSettle once the directory has been
// quiet for the configured settle time.
func New(logger zerolog.Logger, cfg Config, onSettle func(context.Context) error) *Watcher {
	if cfg.SettleTime <= 0 {
		cfg.SettleTime = 5 * time.Minute
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 10 * time.Second
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = []string{".mp4"}
	}
	return &Watcher{
		logger:   logger.With().Str("component", "watcher").Logger(),
		cfg:      cfg,
		onSettle: onSettle,
	}
}

// Run watches until the context is cancelled. A callback error is logged,
// not fatal: the watcher keeps waiting for the next batch.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.cfg.Dir, err)
	}
	w.logger.Info().
		Str("dir", w.cfg.Dir).
		Dur("settle", w.cfg.SettleTime).
		Msg("watching for new footage")

	lastActivity := time.Now()
	lastSizes, err := w.snapshot()
	if err != nil {
		return err
	}
	// Process any backlog that was already on disk when we started.
	pending := len(lastSizes) > 0

	ticker := time.NewTicker(w.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !matchesExt(event.Name, w.cfg.Extensions) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				w.logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("activity")
				lastActivity = time.Now()
				pending = true
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("watch error")

		case <-ticker.C:
			if !pending || time.Since(lastActivity) < w.cfg.SettleTime {
				continue
			}
			sizes, err := w.snapshot()
			if err != nil {
				w.logger.Warn().Err(err).Msg("failed to snapshot directory")
				continue
			}
			if !sizesEqual(lastSizes, sizes) {
				// Still growing even without events (network copies).
				lastSizes = sizes
				lastActivity = time.Now()
				continue
			}

			w.logger.Info().Msg("directory settled, starting run")
			if err := w.onSettle(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.logger.Error().Err(err).Msg("run failed")
			}
			pending = false
			if lastSizes, err = w.snapshot(); err != nil {
				w.logger.Warn().Err(err).Msg("failed to snapshot directory")
			}
		}
	}
}

func (w *Watcher) snapshot() (map[string]int64, error) {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		return nil, err
	}
	sizes := make(map[string]int64)
	for _, entry := range entries {
		if entry.IsDir() || !matchesExt(entry.Name(), w.cfg.Extensions) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		sizes[entry.Name()] = info.Size()
	}
	return sizes, nil
}

func matchesExt(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

func sizesEqual(a, b map[string]int64) bool {
	if len(a) != len(b) {
		return false
	}
	for name, size := range a {
		if b[name] != size {
			return false
		}
	}
	return true
}
