package playlist

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// PlaylistEntry is the cached duration record for a whole playlist
type PlaylistEntry struct {
	Title    string    `json:"title"`
	Duration int       `json:"duration"`
	CachedAt time.Time `json:"cached_at"`
}

// Cache is the persistent identifier-to-duration store. Track entries are
// bare integer seconds; playlist entries carry a title and timestamp. Once
// present, a value is treated as immutable truth (no expiry).
//
// Cache is not safe for concurrent writes: workers return durations to the
// coordinating goroutine, which is the only writer.
type Cache struct {
	path      string
	tracks    map[string]int
	playlists map[string]PlaylistEntry
}

// LoadCache reads the cache file at path. A missing file is a clean start;
// an unreadable or unparseable file is a structural failure.
func LoadCache(path string) (*Cache, error) {
	c := &Cache{
		path:      path,
		tracks:    make(map[string]int),
		playlists: make(map[string]PlaylistEntry),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("read cache %s: %w", path, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse cache %s: %w", path, err)
	}

	for id, msg := range raw {
		var seconds int
		if err := json.Unmarshal(msg, &seconds); err == nil {
			c.tracks[id] = seconds
			continue
		}
		var entry PlaylistEntry
		if err := json.Unmarshal(msg, &entry); err != nil {
			return nil, fmt.Errorf("cache %s: entry %q has unknown shape", path, id)
		}
		c.playlists[id] = entry
	}
	return c, nil
}

// Save overwrites the cache file wholesale
func (c *Cache) Save() error {
	merged := make(map[string]any, len(c.tracks)+len(c.playlists))
	for id, seconds := range c.tracks {
		merged[id] = seconds
	}
	for id, entry := range c.playlists {
		merged[id] = entry
	}

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0644)
}

// TrackDuration returns the cached seconds for a track identifier
func (c *Cache) TrackDuration(id string) (int, bool) {
	d, ok := c.tracks[id]
	return d, ok
}

// SetTrackDuration records a track duration
func (c *Cache) SetTrackDuration(id string, seconds int) {
	c.tracks[id] = seconds
}

// PlaylistDuration returns the cached total seconds for a playlist
func (c *Cache) PlaylistDuration(id string) (int, bool) {
	entry, ok := c.playlists[id]
	return entry.Duration, ok
}

// SetPlaylistDuration records a playlist's total duration
func (c *Cache) SetPlaylistDuration(id, title string, seconds int) {
	c.playlists[id] = PlaylistEntry{
		Title:    title,
		Duration: seconds,
		CachedAt: time.Now().UTC(),
	}
}

// Len returns the number of cached entries of both kinds
func (c *Cache) Len() int {
	return len(c.tracks) + len(c.playlists)
}
