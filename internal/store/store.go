// Package store is the durable content store: playlist sources, their
// content items (movies, series with episodes, channels), the authoritative
// fact tables (watch history, favorites, EPG entries), and the cached
// denormalized fields the denorm engine maintains on each item.
//
// Grouping never happens here — ContentGroups are computed per query from
// snapshots read out of this store (see catalog.GroupItems). The store's job
// is filtered bulk reads ("all movies of active sources") and per-record
// atomic writes.
package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/streamhaven/streamhaven/internal/catalog"
)

// Store wraps one sqlite database. Safe for concurrent use; sqlite serializes
// writers and database/sql pools connections.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// modernc sqlite allows one writer; a single connection avoids
	// SQLITE_BUSY under concurrent denorm updates.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

const schema = `
CREATE TABLE IF NOT EXISTS sources (
	id     TEXT PRIMARY KEY,
	name   TEXT NOT NULL,
	kind   TEXT NOT NULL,
	url    TEXT NOT NULL,
	user   TEXT NOT NULL DEFAULT '',
	pass   TEXT NOT NULL DEFAULT '',
	active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS movies (
	id         TEXT PRIMARY KEY,
	source_id  TEXT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
	title      TEXT NOT NULL,
	year       INTEGER NOT NULL DEFAULT 0,
	stream_url TEXT NOT NULL,
	logo_url   TEXT NOT NULL DEFAULT '',
	rating     TEXT NOT NULL DEFAULT '',
	category   TEXT NOT NULL DEFAULT '',
	container  TEXT NOT NULL DEFAULT '',
	plot       TEXT NOT NULL DEFAULT '',
	is_favorite            INTEGER NOT NULL DEFAULT 0,
	has_been_watched       INTEGER NOT NULL DEFAULT 0,
	watch_progress_percent INTEGER NOT NULL DEFAULT 0,
	last_watched_at        INTEGER
);
CREATE INDEX IF NOT EXISTS idx_movies_source ON movies(source_id);

CREATE TABLE IF NOT EXISTS series (
	id        TEXT PRIMARY KEY,
	source_id TEXT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
	title     TEXT NOT NULL,
	year      INTEGER NOT NULL DEFAULT 0,
	logo_url  TEXT NOT NULL DEFAULT '',
	rating    TEXT NOT NULL DEFAULT '',
	category  TEXT NOT NULL DEFAULT '',
	plot      TEXT NOT NULL DEFAULT '',
	is_favorite             INTEGER NOT NULL DEFAULT 0,
	has_been_watched        INTEGER NOT NULL DEFAULT 0,
	watch_progress_percent  INTEGER NOT NULL DEFAULT 0,
	last_watched_at         INTEGER,
	unwatched_episode_count INTEGER NOT NULL DEFAULT 0,
	total_episode_count     INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_series_source ON series(source_id);

CREATE TABLE IF NOT EXISTS episodes (
	id          TEXT PRIMARY KEY,
	series_id   TEXT NOT NULL REFERENCES series(id) ON DELETE CASCADE,
	season_num  INTEGER NOT NULL,
	episode_num INTEGER NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	stream_url  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_episodes_series ON episodes(series_id);

CREATE TABLE IF NOT EXISTS channels (
	id          TEXT PRIMARY KEY,
	source_id   TEXT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	tvg_id      TEXT NOT NULL DEFAULT '',
	group_title TEXT NOT NULL DEFAULT '',
	stream_url  TEXT NOT NULL,
	logo_url    TEXT NOT NULL DEFAULT '',
	is_favorite           INTEGER NOT NULL DEFAULT 0,
	has_epg               INTEGER NOT NULL DEFAULT 0,
	current_program_title TEXT NOT NULL DEFAULT '',
	epg_last_updated      INTEGER
);
CREATE INDEX IF NOT EXISTS idx_channels_source ON channels(source_id);

CREATE TABLE IF NOT EXISTS favorites (
	profile_id TEXT NOT NULL,
	item_id    TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (profile_id, item_id)
);

CREATE TABLE IF NOT EXISTS watch_history (
	profile_id TEXT NOT NULL,
	item_id    TEXT NOT NULL,
	progress   REAL NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (profile_id, item_id)
);

CREATE TABLE IF NOT EXISTS epg_entries (
	channel_id  TEXT NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category    TEXT NOT NULL DEFAULT '',
	start       INTEGER NOT NULL,
	stop        INTEGER NOT NULL,
	UNIQUE (channel_id, start, title)
);
CREATE INDEX IF NOT EXISTS idx_epg_channel_start ON epg_entries(channel_id, start);
`

// AddSource registers a new playlist source with a fresh opaque id.
func (s *Store) AddSource(name string, kind catalog.SourceKind, url, user, pass string) (catalog.Source, error) {
	src := catalog.Source{
		ID:     uuid.NewString(),
		Name:   name,
		Kind:   kind,
		URL:    url,
		User:   user,
		Pass:   pass,
		Active: true,
	}
	_, err := s.db.Exec(
		`INSERT INTO sources (id, name, kind, url, user, pass, active) VALUES (?, ?, ?, ?, ?, ?, 1)`,
		src.ID, src.Name, string(src.Kind), src.URL, src.User, src.Pass)
	if err != nil {
		return catalog.Source{}, fmt.Errorf("add source: %w", err)
	}
	return src, nil
}

// SetSourceActive toggles a source. Inactive sources keep their content but
// it is excluded from every grouped read.
func (s *Store) SetSourceActive(id string, active bool) error {
	res, err := s.db.Exec(`UPDATE sources SET active = ? WHERE id = ?`, boolInt(active), id)
	if err != nil {
		return fmt.Errorf("set source active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set source active: unknown source %s", id)
	}
	return nil
}

// RemoveSource deletes a source, its content items, and the per-source
// derived artifacts (watch history and favorites rows referencing those
// items). Content cascades via foreign keys; fact rows are keyed by opaque
// item id and cleaned up explicitly in the same transaction.
func (s *Store) RemoveSource(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM watch_history WHERE item_id IN (SELECT id FROM movies WHERE source_id = ?)`,
		`DELETE FROM watch_history WHERE item_id IN (SELECT e.id FROM episodes e JOIN series s ON e.series_id = s.id WHERE s.source_id = ?)`,
		`DELETE FROM favorites WHERE item_id IN (SELECT id FROM movies WHERE source_id = ?)`,
		`DELETE FROM favorites WHERE item_id IN (SELECT id FROM series WHERE source_id = ?)`,
		`DELETE FROM favorites WHERE item_id IN (SELECT id FROM channels WHERE source_id = ?)`,
		`DELETE FROM sources WHERE id = ?`,
	} {
		if _, err := tx.Exec(q, id); err != nil {
			return fmt.Errorf("remove source: %w", err)
		}
	}
	return tx.Commit()
}

// Sources returns all configured sources.
func (s *Store) Sources() ([]catalog.Source, error) {
	rows, err := s.db.Query(`SELECT id, name, kind, url, user, pass, active FROM sources ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []catalog.Source
	for rows.Next() {
		var src catalog.Source
		var kind string
		var active int
		if err := rows.Scan(&src.ID, &src.Name, &kind, &src.URL, &src.User, &src.Pass, &active); err != nil {
			return nil, err
		}
		src.Kind = catalog.SourceKind(kind)
		src.Active = active != 0
		out = append(out, src)
	}
	return out, rows.Err()
}

// SourceMetadata returns the display projection for one source, or nil when
// the id is unknown. Inactive sources still resolve (groups may reference
// them historically).
func (s *Store) SourceMetadata(id string) (*catalog.SourceMetadata, error) {
	var meta catalog.SourceMetadata
	var active int
	err := s.db.QueryRow(`SELECT id, name, active FROM sources WHERE id = ?`, id).
		Scan(&meta.SourceID, &meta.SourceName, &active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	meta.IsActive = active != 0
	return &meta, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
