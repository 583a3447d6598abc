// Package catalog holds the content model shared by the parsers, the
// multi-source grouper, and the denormalization engine: movies, series with
// seasons and episodes, and live channels, each attributed to exactly one
// playlist source. Everything in this package is pure — grouping and
// franchise clustering are functions over a snapshot of items, never
// stateful objects with their own lifecycle.
package catalog

import "time"

// SourceKind says how a source's content is fetched and parsed.
type SourceKind string

const (
	SourceM3U    SourceKind = "m3u"
	SourceXtream SourceKind = "xtream"
)

// Source is one configured playlist/provider contributing content items.
// ID is opaque and stable; items carry it as SourceID for the life of the item.
type Source struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Kind   SourceKind `json:"kind"`
	URL    string     `json:"url"`
	User   string     `json:"user,omitempty"`
	Pass   string     `json:"pass,omitempty"`
	Active bool       `json:"active"`
}

// SourceMetadata is the read-only projection of a Source used to annotate
// groups for display.
type SourceMetadata struct {
	SourceID   string `json:"source_id"`
	SourceName string `json:"source_name"`
	IsActive   bool   `json:"is_active"`
}

// Derived holds the cached, recomputable fields the denormalization engine
// maintains on every content item. They are write-only outputs of that
// engine and read-only everywhere else; nothing else may mutate them.
type Derived struct {
	IsFavorite           bool       `json:"is_favorite,omitempty"`
	HasBeenWatched       bool       `json:"has_been_watched,omitempty"`
	WatchProgressPercent int        `json:"watch_progress_percent,omitempty"` // 0–100, clamped for display
	LastWatchedAt        *time.Time `json:"last_watched_at,omitempty"`

	// Series only.
	UnwatchedEpisodeCount int `json:"unwatched_episode_count,omitempty"`
	TotalEpisodeCount     int `json:"total_episode_count,omitempty"`

	// Channel only.
	HasEPG              bool       `json:"has_epg,omitempty"`
	CurrentProgramTitle string     `json:"current_program_title,omitempty"`
	EPGLastUpdated      *time.Time `json:"epg_last_updated,omitempty"`
}

// Movie is a single movie attributed to one source.
type Movie struct {
	ID        string  `json:"id"` // stable ID (provider stream_id or content hash)
	SourceID  string  `json:"source_id"`
	Title     string  `json:"title"`
	Year      int     `json:"year,omitempty"`
	StreamURL string  `json:"stream_url"`
	LogoURL   string  `json:"logo_url,omitempty"`
	Rating    string  `json:"rating,omitempty"`
	Category  string  `json:"category,omitempty"` // provider category id (e.g. Xtream category_id)
	Container string  `json:"container,omitempty"`
	Plot      string  `json:"plot,omitempty"`
	Derived   Derived `json:"derived,omitempty"`
}

// Series is a show with seasons and episodes, attributed to one source.
type Series struct {
	ID       string   `json:"id"`
	SourceID string   `json:"source_id"`
	Title    string   `json:"title"`
	Year     int      `json:"year,omitempty"`
	LogoURL  string   `json:"logo_url,omitempty"`
	Rating   string   `json:"rating,omitempty"`
	Category string   `json:"category,omitempty"`
	Plot     string   `json:"plot,omitempty"`
	Seasons  []Season `json:"seasons,omitempty"`
	Derived  Derived  `json:"derived,omitempty"`
}

// Season holds episodes for one season.
type Season struct {
	Number   int       `json:"number"`
	Episodes []Episode `json:"episodes"`
}

// Episode is a single episode with SxxEyy and stream URL.
type Episode struct {
	ID         string `json:"id"`
	SeasonNum  int    `json:"season_num"`
	EpisodeNum int    `json:"episode_num"`
	Title      string `json:"title"`
	StreamURL  string `json:"stream_url"`
}

// Channel is a live TV channel attributed to one source. TVGID links the
// channel to EPG programme data when the provider supplies one.
type Channel struct {
	ID         string  `json:"id"`
	SourceID   string  `json:"source_id"`
	Name       string  `json:"name"`
	TVGID      string  `json:"tvg_id,omitempty"`
	GroupTitle string  `json:"group_title,omitempty"` // M3U group-title attribute
	StreamURL  string  `json:"stream_url"`
	LogoURL    string  `json:"logo_url,omitempty"`
	Derived    Derived `json:"derived,omitempty"`
}

// EPGEntry is one programme in a channel's guide.
type EPGEntry struct {
	ChannelID   string    `json:"channel_id"` // local channel ID (not the raw XMLTV id)
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Start       time.Time `json:"start"`
	Stop        time.Time `json:"stop"`
}

// ContentTitle / ContentSource implement the grouping contract (see group.go).

func (m Movie) ContentTitle() string    { return m.Title }
func (m Movie) ContentSource() string   { return m.SourceID }
func (s Series) ContentTitle() string   { return s.Title }
func (s Series) ContentSource() string  { return s.SourceID }
func (c Channel) ContentTitle() string  { return c.Name }
func (c Channel) ContentSource() string { return c.SourceID }

// EpisodeCount returns the total number of episodes across all seasons.
func (s Series) EpisodeCount() int {
	n := 0
	for _, season := range s.Seasons {
		n += len(season.Episodes)
	}
	return n
}
