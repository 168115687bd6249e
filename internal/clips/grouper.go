package clips

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Grouper assembles raw clip files into logical recording sessions
type Grouper struct {
	logger zerolog.Logger
}

// NewGrouper creates a grouper
func NewGrouper(logger zerolog.Logger) *Grouper {
	return &Grouper{logger: logger.With().Str("component", "grouper").Logger()}
}

// AngleGroups finds chapter/retake sets that belong to one camera angle.
// Files sharing a session key are sorted newest-first; entries beyond the
// first carry the trailing pattern of a retaken angle. Each distinct pattern
// is processed once, and all non-product files matching it form one merge
// unit. Product files (already-merged or muxed output) never re-enter.
func (g *Grouper) AngleGroups(files []ClipFile) []AngleGroup {
	raw := make([]ClipFile, 0, len(files))
	for _, f := range files {
		if IsProduct(f.Name) {
			g.logger.Debug().Str("file", f.Name).Msg("skipping pipeline product")
			continue
		}
		raw = append(raw, f)
	}

	byKey := make(map[string][]ClipFile)
	keys := make([]string, 0)
	for _, f := range raw {
		key := SessionKey(f.Name)
		if _, ok := byKey[key]; !ok {
			keys = append(keys, key)
		}
		byKey[key] = append(byKey[key], f)
	}
	sort.Strings(keys)

	processed := make(map[string]bool)
	groups := make([]AngleGroup, 0)

	for _, key := range keys {
		group := byKey[key]
		sort.Slice(group, func(i, j int) bool {
			if !group[i].ModTime.Equal(group[j].ModTime) {
				return group[i].ModTime.After(group[j].ModTime)
			}
			return group[i].Name < group[j].Name
		})

		for _, f := range group[1:] {
			pattern := AnglePattern(f.Name)
			if pattern == "" {
				continue
			}
			if processed[pattern] {
				g.logger.Debug().Str("pattern", pattern).Msg("pattern already processed")
				continue
			}
			processed[pattern] = true

			var members []ClipFile
			for _, candidate := range raw {
				if strings.Contains(candidate.Name, pattern) {
					members = append(members, candidate)
				}
			}
			if len(members) == 0 {
				continue
			}
			sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })

			groups = append(groups, AngleGroup{
				Pattern: pattern,
				Files:   members,
				Output:  MergedPrefix + members[0].Name,
			})
		}
	}
	return groups
}

// Sessions groups files by date key for the final cross-camera merge. Files
// carrying the music marker are excluded; groups with fewer than two files
// have nothing to merge and are skipped. Within a session, files are ordered
// by their time-of-day key, and the session output name carries the earliest
// time.
func (g *Grouper) Sessions(files []ClipFile) []Session {
	byDate := make(map[string][]ClipFile)
	dates := make([]string, 0)
	for _, f := range files {
		if strings.Contains(strings.ToLower(f.Name), MusicMarker) {
			g.logger.Debug().Str("file", f.Name).Msg("skipping muxed output")
			continue
		}
		date := DateKey(f.Name)
		if _, ok := byDate[date]; !ok {
			dates = append(dates, date)
		}
		byDate[date] = append(byDate[date], f)
	}
	sort.Strings(dates)

	sessions := make([]Session, 0, len(dates))
	for _, date := range dates {
		group := byDate[date]
		if len(group) < 2 {
			g.logger.Debug().Str("date", date).Int("files", len(group)).Msg("nothing to merge")
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			ti, tj := TimeKey(group[i].Name), TimeKey(group[j].Name)
			if ti != tj {
				return ti < tj
			}
			return group[i].Name < group[j].Name
		})

		sessions = append(sessions, Session{
			Date:   date,
			Files:  group,
			Output: MergedPrefix + date + "-" + TimeKey(group[0].Name) + ".mp4",
		})
	}
	return sessions
}
