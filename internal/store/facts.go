package store

import (
	"database/sql"
	"fmt"
	"time"
)

// The fact tables are the authoritative inputs to denormalization. Raw watch
// progress is stored exactly as reported by the player, even out of [0,1];
// clamping happens at derivation time so the source of truth is never
// rewritten.

// SetFavorite adds or removes a favorite for one profile and item.
func (s *Store) SetFavorite(profileID, itemID string, fav bool) error {
	var err error
	if fav {
		_, err = s.db.Exec(
			`INSERT OR IGNORE INTO favorites (profile_id, item_id, created_at) VALUES (?, ?, ?)`,
			profileID, itemID, time.Now().Unix())
	} else {
		_, err = s.db.Exec(`DELETE FROM favorites WHERE profile_id = ? AND item_id = ?`, profileID, itemID)
	}
	if err != nil {
		return fmt.Errorf("set favorite: %w", err)
	}
	return nil
}

// IsFavorite reports whether the item is favorited by the profile.
func (s *Store) IsFavorite(profileID, itemID string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM favorites WHERE profile_id = ? AND item_id = ?`,
		profileID, itemID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetWatchProgress records raw playback progress (0.0–1.0 nominally) for an
// item. at becomes the item's last-watched timestamp.
func (s *Store) SetWatchProgress(profileID, itemID string, progress float64, at time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO watch_history (profile_id, item_id, progress, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(profile_id, item_id) DO UPDATE SET
			progress = excluded.progress, updated_at = excluded.updated_at`,
		profileID, itemID, progress, at.Unix())
	if err != nil {
		return fmt.Errorf("set watch progress: %w", err)
	}
	return nil
}

// WatchProgress returns the raw recorded progress and its timestamp, or
// ok=false when the profile has never watched the item.
func (s *Store) WatchProgress(profileID, itemID string) (progress float64, at time.Time, ok bool, err error) {
	var unix int64
	err = s.db.QueryRow(
		`SELECT progress, updated_at FROM watch_history WHERE profile_id = ? AND item_id = ?`,
		profileID, itemID).Scan(&progress, &unix)
	if err == sql.ErrNoRows {
		return 0, time.Time{}, false, nil
	}
	if err != nil {
		return 0, time.Time{}, false, err
	}
	return progress, time.Unix(unix, 0).UTC(), true, nil
}

// WatchedEpisodeCount counts a series' episodes the profile has finished,
// using the same completion threshold the denorm engine applies to movies.
func (s *Store) WatchedEpisodeCount(profileID, seriesID string, threshold float64) (int, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM episodes e
		JOIN watch_history w ON w.item_id = e.id AND w.profile_id = ?
		WHERE e.series_id = ? AND w.progress >= ?`,
		profileID, seriesID, threshold).Scan(&n)
	return n, err
}

// LastWatchedEpisode returns the most recent watch event across a series'
// episodes, or ok=false when none exist.
func (s *Store) LastWatchedEpisode(profileID, seriesID string) (progress float64, at time.Time, ok bool, err error) {
	var unix int64
	err = s.db.QueryRow(`
		SELECT w.progress, w.updated_at FROM watch_history w
		JOIN episodes e ON e.id = w.item_id
		WHERE w.profile_id = ? AND e.series_id = ?
		ORDER BY w.updated_at DESC, e.rowid DESC LIMIT 1`,
		profileID, seriesID).Scan(&progress, &unix)
	if err == sql.ErrNoRows {
		return 0, time.Time{}, false, nil
	}
	if err != nil {
		return 0, time.Time{}, false, err
	}
	return progress, time.Unix(unix, 0).UTC(), true, nil
}
