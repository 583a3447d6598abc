package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/streamhaven/streamhaven/internal/catalog"
)

// UpsertMovies writes a parsed batch for one source. On conflict the identity
// fields are refreshed and the cached derived columns are left alone — they
// belong to the denorm engine.
func (s *Store) UpsertMovies(movies []catalog.Movie) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO movies (id, source_id, title, year, stream_url, logo_url, rating, category, container, plot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, year = excluded.year,
			stream_url = excluded.stream_url, logo_url = excluded.logo_url,
			rating = excluded.rating, category = excluded.category,
			container = excluded.container, plot = excluded.plot`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range movies {
		if _, err := stmt.Exec(m.ID, m.SourceID, m.Title, m.Year, m.StreamURL, m.LogoURL, m.Rating, m.Category, m.Container, m.Plot); err != nil {
			return fmt.Errorf("upsert movie %s: %w", m.ID, err)
		}
	}
	return tx.Commit()
}

// UpsertSeries writes series and replaces their episode lists. Episodes are
// identity data from the provider, so a full replace per series is correct;
// watch history is keyed by episode id and survives as long as ids are stable.
func (s *Store) UpsertSeries(series []catalog.Series) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	seriesStmt, err := tx.Prepare(`
		INSERT INTO series (id, source_id, title, year, logo_url, rating, category, plot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, year = excluded.year,
			logo_url = excluded.logo_url, rating = excluded.rating,
			category = excluded.category, plot = excluded.plot`)
	if err != nil {
		return err
	}
	defer seriesStmt.Close()

	epStmt, err := tx.Prepare(`
		INSERT INTO episodes (id, series_id, season_num, episode_num, title, stream_url)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer epStmt.Close()

	for _, sr := range series {
		if _, err := seriesStmt.Exec(sr.ID, sr.SourceID, sr.Title, sr.Year, sr.LogoURL, sr.Rating, sr.Category, sr.Plot); err != nil {
			return fmt.Errorf("upsert series %s: %w", sr.ID, err)
		}
		if _, err := tx.Exec(`DELETE FROM episodes WHERE series_id = ?`, sr.ID); err != nil {
			return err
		}
		for _, season := range sr.Seasons {
			for _, ep := range season.Episodes {
				if _, err := epStmt.Exec(ep.ID, sr.ID, ep.SeasonNum, ep.EpisodeNum, ep.Title, ep.StreamURL); err != nil {
					return fmt.Errorf("upsert episode %s: %w", ep.ID, err)
				}
			}
		}
	}
	return tx.Commit()
}

// UpsertChannels writes a parsed channel batch, preserving derived columns.
func (s *Store) UpsertChannels(channels []catalog.Channel) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO channels (id, source_id, name, tvg_id, group_title, stream_url, logo_url)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, tvg_id = excluded.tvg_id,
			group_title = excluded.group_title,
			stream_url = excluded.stream_url, logo_url = excluded.logo_url`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range channels {
		if _, err := stmt.Exec(c.ID, c.SourceID, c.Name, c.TVGID, c.GroupTitle, c.StreamURL, c.LogoURL); err != nil {
			return fmt.Errorf("upsert channel %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

const activeMovieQuery = `
	SELECT m.id, m.source_id, m.title, m.year, m.stream_url, m.logo_url,
	       m.rating, m.category, m.container, m.plot,
	       m.is_favorite, m.has_been_watched, m.watch_progress_percent, m.last_watched_at
	FROM movies m JOIN sources s ON m.source_id = s.id`

// ActiveMovies returns every movie belonging to an active source, in stable
// insertion order. This is the grouping input for the movies surface.
func (s *Store) ActiveMovies() ([]catalog.Movie, error) {
	return s.queryMovies(activeMovieQuery + ` WHERE s.active = 1 ORDER BY m.rowid`)
}

func (s *Store) queryMovies(q string, args ...any) ([]catalog.Movie, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []catalog.Movie
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMovie(rows *sql.Rows) (catalog.Movie, error) {
	var m catalog.Movie
	var fav, watched int
	var lastWatched sql.NullInt64
	err := rows.Scan(&m.ID, &m.SourceID, &m.Title, &m.Year, &m.StreamURL, &m.LogoURL,
		&m.Rating, &m.Category, &m.Container, &m.Plot,
		&fav, &watched, &m.Derived.WatchProgressPercent, &lastWatched)
	if err != nil {
		return catalog.Movie{}, err
	}
	m.Derived.IsFavorite = fav != 0
	m.Derived.HasBeenWatched = watched != 0
	m.Derived.LastWatchedAt = unixPtr(lastWatched)
	return m, nil
}

// MovieByID returns one movie or sql.ErrNoRows.
func (s *Store) MovieByID(id string) (catalog.Movie, error) {
	movies, err := s.queryMovies(activeMovieQuery+` WHERE m.id = ?`, id)
	if err != nil {
		return catalog.Movie{}, err
	}
	if len(movies) == 0 {
		return catalog.Movie{}, sql.ErrNoRows
	}
	return movies[0], nil
}

const seriesQuery = `
	SELECT sr.id, sr.source_id, sr.title, sr.year, sr.logo_url, sr.rating, sr.category, sr.plot,
	       sr.is_favorite, sr.has_been_watched, sr.watch_progress_percent, sr.last_watched_at,
	       sr.unwatched_episode_count, sr.total_episode_count
	FROM series sr JOIN sources s ON sr.source_id = s.id`

// ActiveSeries returns every series of an active source, with seasons and
// episodes attached, in stable insertion order.
func (s *Store) ActiveSeries() ([]catalog.Series, error) {
	return s.querySeries(seriesQuery + ` WHERE s.active = 1 ORDER BY sr.rowid`)
}

// SeriesByID returns one series (episodes included) or sql.ErrNoRows.
func (s *Store) SeriesByID(id string) (catalog.Series, error) {
	out, err := s.querySeries(seriesQuery+` WHERE sr.id = ?`, id)
	if err != nil {
		return catalog.Series{}, err
	}
	if len(out) == 0 {
		return catalog.Series{}, sql.ErrNoRows
	}
	return out[0], nil
}

func (s *Store) querySeries(q string, args ...any) ([]catalog.Series, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	var out []catalog.Series
	for rows.Next() {
		var sr catalog.Series
		var fav, watched int
		var lastWatched sql.NullInt64
		err := rows.Scan(&sr.ID, &sr.SourceID, &sr.Title, &sr.Year, &sr.LogoURL, &sr.Rating, &sr.Category, &sr.Plot,
			&fav, &watched, &sr.Derived.WatchProgressPercent, &lastWatched,
			&sr.Derived.UnwatchedEpisodeCount, &sr.Derived.TotalEpisodeCount)
		if err != nil {
			rows.Close()
			return nil, err
		}
		sr.Derived.IsFavorite = fav != 0
		sr.Derived.HasBeenWatched = watched != 0
		sr.Derived.LastWatchedAt = unixPtr(lastWatched)
		out = append(out, sr)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range out {
		seasons, err := s.seriesSeasons(out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Seasons = seasons
	}
	return out, nil
}

func (s *Store) seriesSeasons(seriesID string) ([]catalog.Season, error) {
	rows, err := s.db.Query(`
		SELECT id, season_num, episode_num, title, stream_url
		FROM episodes WHERE series_id = ? ORDER BY season_num, episode_num`, seriesID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seasons []catalog.Season
	for rows.Next() {
		var ep catalog.Episode
		if err := rows.Scan(&ep.ID, &ep.SeasonNum, &ep.EpisodeNum, &ep.Title, &ep.StreamURL); err != nil {
			return nil, err
		}
		if len(seasons) == 0 || seasons[len(seasons)-1].Number != ep.SeasonNum {
			seasons = append(seasons, catalog.Season{Number: ep.SeasonNum})
		}
		last := &seasons[len(seasons)-1]
		last.Episodes = append(last.Episodes, ep)
	}
	return seasons, rows.Err()
}

const channelQuery = `
	SELECT c.id, c.source_id, c.name, c.tvg_id, c.group_title, c.stream_url, c.logo_url,
	       c.is_favorite, c.has_epg, c.current_program_title, c.epg_last_updated
	FROM channels c JOIN sources s ON c.source_id = s.id`

// ActiveChannels returns every channel of an active source in stable order.
func (s *Store) ActiveChannels() ([]catalog.Channel, error) {
	return s.queryChannels(channelQuery + ` WHERE s.active = 1 ORDER BY c.rowid`)
}

// ChannelByID returns one channel or sql.ErrNoRows.
func (s *Store) ChannelByID(id string) (catalog.Channel, error) {
	out, err := s.queryChannels(channelQuery+` WHERE c.id = ?`, id)
	if err != nil {
		return catalog.Channel{}, err
	}
	if len(out) == 0 {
		return catalog.Channel{}, sql.ErrNoRows
	}
	return out[0], nil
}

func (s *Store) queryChannels(q string, args ...any) ([]catalog.Channel, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []catalog.Channel
	for rows.Next() {
		var c catalog.Channel
		var fav, hasEPG int
		var epgUpdated sql.NullInt64
		err := rows.Scan(&c.ID, &c.SourceID, &c.Name, &c.TVGID, &c.GroupTitle, &c.StreamURL, &c.LogoURL,
			&fav, &hasEPG, &c.Derived.CurrentProgramTitle, &epgUpdated)
		if err != nil {
			return nil, err
		}
		c.Derived.IsFavorite = fav != 0
		c.Derived.HasEPG = hasEPG != 0
		c.Derived.EPGLastUpdated = unixPtr(epgUpdated)
		out = append(out, c)
	}
	return out, rows.Err()
}

// AllMovieIDs, AllSeriesIDs, and AllChannelIDs feed the full rebuild.
func (s *Store) AllMovieIDs() ([]string, error)   { return s.idColumn(`SELECT id FROM movies ORDER BY rowid`) }
func (s *Store) AllSeriesIDs() ([]string, error)  { return s.idColumn(`SELECT id FROM series ORDER BY rowid`) }
func (s *Store) AllChannelIDs() ([]string, error) { return s.idColumn(`SELECT id FROM channels ORDER BY rowid`) }

func (s *Store) idColumn(q string) ([]string, error) {
	rows, err := s.db.Query(q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ItemKind reports which table a content id lives in: "movie", "series",
// "channel", or "episode". Empty string when the id is unknown.
func (s *Store) ItemKind(id string) (string, error) {
	for _, probe := range []struct{ kind, q string }{
		{"movie", `SELECT 1 FROM movies WHERE id = ?`},
		{"series", `SELECT 1 FROM series WHERE id = ?`},
		{"channel", `SELECT 1 FROM channels WHERE id = ?`},
		{"episode", `SELECT 1 FROM episodes WHERE id = ?`},
	} {
		var one int
		err := s.db.QueryRow(probe.q, id).Scan(&one)
		if err == nil {
			return probe.kind, nil
		}
		if err != sql.ErrNoRows {
			return "", err
		}
	}
	return "", nil
}

// SeriesIDForEpisode resolves an episode id to its series, or sql.ErrNoRows.
func (s *Store) SeriesIDForEpisode(episodeID string) (string, error) {
	var seriesID string
	err := s.db.QueryRow(`SELECT series_id FROM episodes WHERE id = ?`, episodeID).Scan(&seriesID)
	return seriesID, err
}

func unixPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}
