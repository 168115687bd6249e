package util

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// CleanupFiles removes multiple files, ignoring errors
func CleanupFiles(paths ...string) {
	for _, path := range paths {
		_ = os.Remove(path)
	}
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9 _-]`)

// SanitizeFilename strips characters outside [A-Za-z0-9 _-] from the stem of
// filename, keeping the extension. With a non-empty replacement the stem's
// runs of the replacement are collapsed and leading/trailing separators
// trimmed. An all-unsafe stem becomes "untitled".
func SanitizeFilename(filename, replacement string) string {
	ext := filepath.Ext(filename)
	name := strings.TrimSuffix(filename, ext)

	name = unsafeFilenameChars.ReplaceAllString(name, replacement)
	if replacement != "" {
		collapse := regexp.MustCompile(regexp.QuoteMeta(replacement) + `+`)
		name = collapse.ReplaceAllString(name, replacement)
		name = strings.Trim(name, " _-")
	} else {
		name = strings.TrimSpace(name)
	}

	if name == "" {
		name = "untitled"
	}
	return name + ext
}

// UniqueFilename returns path if it is free, otherwise appends an
// incrementing numeric suffix (-1, -2, ...) to the stem until a free name is
// found. Never overwrites an existing file.
func UniqueFilename(path string) string {
	if !FileExists(path) {
		return path
	}

	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", stem, i, ext)
		if !FileExists(candidate) {
			return candidate
		}
	}
}

// MusicVersionPath returns the "<stem>-music<ext>" sibling name for path.
func MusicVersionPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-music" + ext
}

// HasMusicVersion reports whether the "<stem>-music<ext>" sibling of path
// already exists on disk.
func HasMusicVersion(path string) bool {
	return FileExists(MusicVersionPath(path))
}
