package clips

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Markers identifying files that are pipeline products rather than raw
// camera output. Merge products carry the combined prefix; final muxed
// videos carry the music suffix.
const (
	MergedPrefix = "combined-"
	MusicMarker  = "-music"
)

// ClipFile is a single raw camera recording
type ClipFile struct {
	Path    string
	Name    string
	ModTime time.Time
	Size    int64
}

// AngleGroup is a set of chaptered files from one camera angle that belong
// to the same take and get merged into a single file.
type AngleGroup struct {
	Pattern string // trailing filename pattern shared by the angle's chapters
	Files   []ClipFile
	Output  string // output filename (not yet collision-resolved)
}

// Session is a set of merged takes recorded on the same date, ordered by
// their time-of-day key, destined for one cross-camera concatenation.
type Session struct {
	Date   string
	Files  []ClipFile
	Output string
}

// MergedVideo is the product of concatenating a session
type MergedVideo struct {
	Path     string
	Duration float64 // seconds, measured by the probe tool
	HasAudio bool
}

// IsProduct reports whether name carries a pipeline product marker and must
// be excluded from re-grouping.
func IsProduct(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasPrefix(lower, MergedPrefix) || strings.Contains(lower, MusicMarker)
}

// SessionKey extracts the shared timestamp key from a clip filename like
// "2025-08-18-05-55-12-GX010731.MP4". Files that don't match the pattern
// fall back to the raw filename, which degrades them to singleton groups.
func SessionKey(name string) string {
	if idx := strings.Index(name, "-GX"); idx > 0 {
		return name[:idx]
	}
	return name
}

// AnglePattern returns the trailing pattern (last three characters of the
// stem) that chapters of one camera angle share, or "" when the name is too
// short to carry one.
func AnglePattern(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if len(stem) < 3 {
		return ""
	}
	return stem[len(stem)-3:]
}

// DateKey returns the fixed-width date portion of a (possibly merged) clip
// name: the combined prefix is stripped and the first ten characters taken.
func DateKey(name string) string {
	trimmed := strings.TrimPrefix(name, MergedPrefix)
	if len(trimmed) < 10 {
		return trimmed
	}
	return trimmed[:10]
}

// TimeKey returns the time-of-day substring used to order files within a
// session ("" when the name is too short).
func TimeKey(name string) string {
	trimmed := strings.TrimPrefix(name, MergedPrefix)
	if len(trimmed) < 16 {
		return ""
	}
	return trimmed[11:16]
}

// Scan lists clip files with the given extension (case-insensitive) in dir,
// non-recursively.
func Scan(dir, ext string) ([]ClipFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := make([]ClipFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(entry.Name()), ext) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, ClipFile{
			Path:    filepath.Join(dir, entry.Name()),
			Name:    entry.Name(),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}
