package playlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	youtube "google.golang.org/api/youtube/v3"
)

// maxIDsPerBatch is the provider's hard cap on identifiers per duration
// lookup round-trip.
const maxIDsPerBatch = 50

// PlaylistRef identifies a playlist returned by search
type PlaylistRef struct {
	ID    string
	Title string
}

// Provider is the playlist/track metadata surface the matcher and selector
// consume.
type Provider interface {
	SearchPlaylists(ctx context.Context, query string, maxResults int64) ([]PlaylistRef, error)
	PlaylistItemIDs(ctx context.Context, playlistID string) ([]string, error)
	VideoDurations(ctx context.Context, ids []string) (map[string]int, error)
}

// YouTubeProvider implements Provider against the YouTube Data API v3
type YouTubeProvider struct {
	logger  zerolog.Logger
	svc     *youtube.Service
	limiter *rate.Limiter
}

// NewYouTubeProvider builds an API-key-authenticated provider. Requests are
// rate limited client-side to stay under quota bursts.
func NewYouTubeProvider(ctx context.Context, logger zerolog.Logger, apiKey string, requestsPerSecond float64) (*YouTubeProvider, error) {
	if apiKey == "" {
		return nil, errors.New("youtube api key is required")
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 8
	}

	svc, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	return &YouTubeProvider{
		logger:  logger.With().Str("component", "youtube").Logger(),
		svc:     svc,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}, nil
}

// SearchPlaylists queries the search endpoint for playlists matching query
func (p *YouTubeProvider) SearchPlaylists(ctx context.Context, query string, maxResults int64) ([]PlaylistRef, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := p.svc.Search.List([]string{"snippet"}).
		Q(query).
		Type("playlist").
		MaxResults(maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("playlist search %q: %w", query, err)
	}

	refs := make([]PlaylistRef, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.PlaylistId == "" {
			continue
		}
		title := ""
		if item.Snippet != nil {
			title = item.Snippet.Title
		}
		refs = append(refs, PlaylistRef{ID: item.Id.PlaylistId, Title: title})
	}
	p.logger.Debug().Str("query", query).Int("results", len(refs)).Msg("playlist search")
	return refs, nil
}

// PlaylistItemIDs enumerates all member video IDs of a playlist, following
// page tokens at the fixed page size.
func (p *YouTubeProvider) PlaylistItemIDs(ctx context.Context, playlistID string) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		call := p.svc.PlaylistItems.List([]string{"contentDetails"}).
			PlaylistId(playlistID).
			MaxResults(maxIDsPerBatch).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list playlist %s items: %w", playlistID, err)
		}

		for _, item := range resp.Items {
			if item.ContentDetails != nil && item.ContentDetails.VideoId != "" {
				ids = append(ids, item.ContentDetails.VideoId)
			}
		}
		if resp.NextPageToken == "" {
			return ids, nil
		}
		pageToken = resp.NextPageToken
	}
}

// VideoDurations resolves durations (in seconds) for up to 50 video IDs in
// one round-trip. Unparseable durations come back as 0 so callers can skip
// them.
func (p *YouTubeProvider) VideoDurations(ctx context.Context, ids []string) (map[string]int, error) {
	if len(ids) > maxIDsPerBatch {
		return nil, fmt.Errorf("at most %d ids per batch, got %d", maxIDsPerBatch, len(ids))
	}
	if len(ids) == 0 {
		return map[string]int{}, nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := p.svc.Videos.List([]string{"contentDetails"}).
		Id(ids...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("fetch video durations: %w", err)
	}

	durations := make(map[string]int, len(resp.Items))
	for _, item := range resp.Items {
		if item.ContentDetails == nil {
			continue
		}
		durations[item.Id] = ParseISO8601Duration(item.ContentDetails.Duration)
	}
	return durations, nil
}

// resolveTrackDurations returns id→seconds for every id, consulting the
// cache first and fetching the rest in batches of up to 50. New values are
// written into the cache by this (single) goroutine.
func resolveTrackDurations(ctx context.Context, provider Provider, cache *Cache, ids []string) (map[string]int, error) {
	durations := make(map[string]int, len(ids))

	var uncached []string
	for _, id := range ids {
		if d, ok := cache.TrackDuration(id); ok {
			durations[id] = d
		} else {
			uncached = append(uncached, id)
		}
	}

	for start := 0; start < len(uncached); start += maxIDsPerBatch {
		end := start + maxIDsPerBatch
		if end > len(uncached) {
			end = len(uncached)
		}
		batch, err := provider.VideoDurations(ctx, uncached[start:end])
		if err != nil {
			return nil, err
		}
		for id, d := range batch {
			cache.SetTrackDuration(id, d)
			durations[id] = d
		}
	}
	return durations, nil
}

// PlaylistURL renders the canonical watch URL for a playlist ID
func PlaylistURL(id string) string {
	return "https://www.youtube.com/playlist?list=" + id
}
