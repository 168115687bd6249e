package playlist

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/rs/zerolog"
)

// ErrNoSuitablePlaylist is returned when every found playlist is shorter
// than the target duration.
var ErrNoSuitablePlaylist = errors.New("no playlist long enough for target duration")

// Candidate is a ranked playlist candidate
type Candidate struct {
	ID       string
	Title    string
	URL      string
	Duration int     // total seconds
	Diff     float64 // absolute difference from target
}

// Matcher ranks playlists by how closely their total duration matches a
// target.
type Matcher struct {
	logger   zerolog.Logger
	provider Provider
	cache    *Cache
}

// NewMatcher creates a matcher
func NewMatcher(logger zerolog.Logger, provider Provider, cache *Cache) *Matcher {
	return &Matcher{
		logger:   logger.With().Str("component", "matcher").Logger(),
		provider: provider,
		cache:    cache,
	}
}

// Rank searches for candidate playlists and returns those with a total
// duration of at least target seconds, ordered ascending by absolute
// difference from target. Ties keep original API order. Playlists that are
// provably too short are never offered. Returns ErrNoSuitablePlaylist when
// no candidate qualifies.
func (m *Matcher) Rank(ctx context.Context, query string, maxResults int64, target float64) ([]Candidate, error) {
	refs, err := m.provider.SearchPlaylists(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(refs))
	for _, ref := range refs {
		duration, err := m.playlistDuration(ctx, ref)
		if err != nil {
			// One unreadable playlist must not sink the batch.
			m.logger.Warn().Err(err).Str("playlist", ref.ID).Msg("skipping playlist")
			continue
		}
		if float64(duration) < target {
			m.logger.Debug().
				Str("playlist", ref.ID).
				Int("duration", duration).
				Float64("target", target).
				Msg("too short, excluded")
			continue
		}
		candidates = append(candidates, Candidate{
			ID:       ref.ID,
			Title:    ref.Title,
			URL:      PlaylistURL(ref.ID),
			Duration: duration,
			Diff:     math.Abs(float64(duration) - target),
		})
	}

	if len(candidates) == 0 {
		return nil, ErrNoSuitablePlaylist
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Diff < candidates[j].Diff
	})
	return candidates, nil
}

// playlistDuration resolves a playlist's total duration, cache-first. An
// uncached playlist is enumerated and its member durations fetched in
// batches before the sum is cached.
func (m *Matcher) playlistDuration(ctx context.Context, ref PlaylistRef) (int, error) {
	if d, ok := m.cache.PlaylistDuration(ref.ID); ok {
		return d, nil
	}

	ids, err := m.provider.PlaylistItemIDs(ctx, ref.ID)
	if err != nil {
		return 0, err
	}
	durations, err := resolveTrackDurations(ctx, m.provider, m.cache, ids)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, d := range durations {
		total += d
	}
	m.cache.SetPlaylistDuration(ref.ID, ref.Title, total)
	return total, nil
}
