package store

import (
	"fmt"

	"github.com/streamhaven/streamhaven/internal/catalog"
)

// Derived-column writers. Only the denorm engine calls these; each is a
// single UPDATE so a reader sees either the old derived set or the new one,
// never a mix.

// WriteMovieDerived replaces the cached derived fields of one movie.
func (s *Store) WriteMovieDerived(id string, d catalog.Derived) error {
	res, err := s.db.Exec(`
		UPDATE movies SET
			is_favorite = ?, has_been_watched = ?, watch_progress_percent = ?, last_watched_at = ?
		WHERE id = ?`,
		boolInt(d.IsFavorite), boolInt(d.HasBeenWatched), d.WatchProgressPercent, unixOrNil(d.LastWatchedAt), id)
	if err != nil {
		return fmt.Errorf("write movie derived: %w", err)
	}
	return requireRow(res, "movie", id)
}

// WriteSeriesDerived replaces the cached derived fields of one series.
func (s *Store) WriteSeriesDerived(id string, d catalog.Derived) error {
	res, err := s.db.Exec(`
		UPDATE series SET
			is_favorite = ?, has_been_watched = ?, watch_progress_percent = ?, last_watched_at = ?,
			unwatched_episode_count = ?, total_episode_count = ?
		WHERE id = ?`,
		boolInt(d.IsFavorite), boolInt(d.HasBeenWatched), d.WatchProgressPercent, unixOrNil(d.LastWatchedAt),
		d.UnwatchedEpisodeCount, d.TotalEpisodeCount, id)
	if err != nil {
		return fmt.Errorf("write series derived: %w", err)
	}
	return requireRow(res, "series", id)
}

// WriteChannelDerived replaces the cached derived fields of one channel.
func (s *Store) WriteChannelDerived(id string, d catalog.Derived) error {
	res, err := s.db.Exec(`
		UPDATE channels SET
			is_favorite = ?, has_epg = ?, current_program_title = ?, epg_last_updated = ?
		WHERE id = ?`,
		boolInt(d.IsFavorite), boolInt(d.HasEPG), d.CurrentProgramTitle, unixOrNil(d.EPGLastUpdated), id)
	if err != nil {
		return fmt.Errorf("write channel derived: %w", err)
	}
	return requireRow(res, "channel", id)
}

func requireRow(res interface{ RowsAffected() (int64, error) }, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("write derived: unknown %s %s", kind, id)
	}
	return nil
}
