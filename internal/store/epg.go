package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/streamhaven/streamhaven/internal/catalog"
	"github.com/streamhaven/streamhaven/internal/metrics"
)

// UpsertEPG inserts guide entries, silently skipping exact duplicates
// (same channel, start, and title), so re-ingesting the same XMLTV feed is
// idempotent. Returns the number of rows actually added.
func (s *Store) UpsertEPG(entries []catalog.EPGEntry) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO epg_entries (channel_id, title, description, category, start, stop)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	added := 0
	for _, e := range entries {
		res, err := stmt.Exec(e.ChannelID, e.Title, e.Description, e.Category, e.Start.Unix(), e.Stop.Unix())
		if err != nil {
			return 0, fmt.Errorf("upsert epg entry %q: %w", e.Title, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return added, nil
}

// PurgeEPGBefore deletes every entry that ended before cutoff.
func (s *Store) PurgeEPGBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM epg_entries WHERE stop < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("purge epg: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	metrics.EPGPurged.Add(float64(n))
	return n, nil
}

// EPGCountForChannel returns how many guide entries a channel has.
func (s *Store) EPGCountForChannel(channelID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM epg_entries WHERE channel_id = ?`, channelID).Scan(&n)
	return n, err
}

// CurrentProgramme returns the programme airing on the channel at the given
// instant, or nil when the guide has a gap there. When ingested feeds overlap
// the earliest-starting covering entry wins, which keeps the answer stable
// across rebuilds.
func (s *Store) CurrentProgramme(channelID string, at time.Time) (*catalog.EPGEntry, error) {
	return s.epgRow(`
		SELECT channel_id, title, description, category, start, stop
		FROM epg_entries
		WHERE channel_id = ? AND start <= ? AND stop > ?
		ORDER BY start LIMIT 1`,
		channelID, at.Unix(), at.Unix())
}

// NextProgramme returns the first programme starting after the given instant.
func (s *Store) NextProgramme(channelID string, at time.Time) (*catalog.EPGEntry, error) {
	return s.epgRow(`
		SELECT channel_id, title, description, category, start, stop
		FROM epg_entries
		WHERE channel_id = ? AND start > ?
		ORDER BY start LIMIT 1`,
		channelID, at.Unix())
}

// NowAndNext is the guide surface for one channel: what airs now and what
// follows. Either may be nil on guide gaps.
func (s *Store) NowAndNext(channelID string, at time.Time) (now, next *catalog.EPGEntry, err error) {
	now, err = s.CurrentProgramme(channelID, at)
	if err != nil {
		return nil, nil, err
	}
	next, err = s.NextProgramme(channelID, at)
	if err != nil {
		return nil, nil, err
	}
	return now, next, nil
}

// ChannelGuide returns a channel's entries ordered by start time, bounded to
// those ending after from.
func (s *Store) ChannelGuide(channelID string, from time.Time) ([]catalog.EPGEntry, error) {
	rows, err := s.db.Query(`
		SELECT channel_id, title, description, category, start, stop
		FROM epg_entries
		WHERE channel_id = ? AND stop > ?
		ORDER BY start`,
		channelID, from.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []catalog.EPGEntry
	for rows.Next() {
		e, err := scanEPG(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) epgRow(q string, args ...any) (*catalog.EPGEntry, error) {
	e, err := scanEPG(s.db.QueryRow(q, args...).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanEPG(scan func(...any) error) (catalog.EPGEntry, error) {
	var e catalog.EPGEntry
	var start, stop int64
	if err := scan(&e.ChannelID, &e.Title, &e.Description, &e.Category, &start, &stop); err != nil {
		return catalog.EPGEntry{}, err
	}
	e.Start = time.Unix(start, 0).UTC()
	e.Stop = time.Unix(stop, 0).UTC()
	return e, nil
}

func unixOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}
