// Package cache stores raw feed snapshots (playlists, XMLTV guides) on
// disk so the most recent successful fetch per source survives restarts
// and can be re-indexed offline.
package cache

import (
	"os"
	"path/filepath"
	"strings"
)

// FeedPath returns the snapshot path for a source's feed. Stable: the same
// sourceID always maps to the same path.
func FeedPath(cacheDir, sourceID, ext string) string {
	safe := sanitizeID(sourceID)
	return filepath.Join(cacheDir, "feeds", safe+"."+ext)
}

// partialPath is used while writing; WriteFeed renames it into place when done.
func partialPath(cacheDir, sourceID, ext string) string {
	safe := sanitizeID(sourceID)
	return filepath.Join(cacheDir, "feeds", safe+"."+ext+".partial")
}

// WriteFeed atomically replaces the snapshot for a source. A crash mid-write
// leaves the previous snapshot intact.
func WriteFeed(cacheDir, sourceID, ext string, data []byte) error {
	dir := filepath.Join(cacheDir, "feeds")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := partialPath(cacheDir, sourceID, ext)
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, FeedPath(cacheDir, sourceID, ext))
}

// ReadFeed returns the last snapshot for a source, or os.ErrNotExist.
func ReadFeed(cacheDir, sourceID, ext string) ([]byte, error) {
	return os.ReadFile(FeedPath(cacheDir, sourceID, ext))
}

func sanitizeID(id string) string {
	s := strings.ReplaceAll(id, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, "\x00", "_")
	if s == "" {
		s = "unknown"
	}
	return s
}
