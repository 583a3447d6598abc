// Package indexer converts external playlist and guide formats (M3U, Xtream
// Codes player_api, XMLTV) into catalog records attributed to a source.
// Parsing is streaming and per-entry fault isolated: one bad entry is
// dropped, the rest of the parse continues.
package indexer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/streamhaven/streamhaven/internal/catalog"
	"github.com/streamhaven/streamhaven/internal/httpclient"
	"github.com/streamhaven/streamhaven/internal/metrics"
)

const maxLineSize = 1 << 20 // 1 MiB per line

// ErrNotM3U is returned when a payload contains no recognizable M3U
// directives at all (completely unparseable, not merely empty).
var ErrNotM3U = errors.New("payload is not an M3U playlist")

// M3UResult is the outcome of one M3U parse: entries classified into
// movies, series episodes, and live channels, all tagged with the source.
type M3UResult struct {
	Movies   []catalog.Movie
	Series   []catalog.Series
	Channels []catalog.Channel
	Dropped  int // dangling or malformed entries skipped
}

// FetchM3U downloads and parses the M3U playlist at m3uURL, attributing all
// records to sourceID. If client is nil, httpclient.Default() is used.
func FetchM3U(ctx context.Context, m3uURL, sourceID string, client *http.Client) (M3UResult, error) {
	if client == nil {
		client = httpclient.Default()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m3uURL, nil)
	if err != nil {
		return M3UResult{}, err
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	resp, err := httpclient.DoWithRetry(ctx, client, req, httpclient.DefaultRetryPolicy)
	if err != nil {
		return M3UResult{}, fmt.Errorf("fetch m3u: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return M3UResult{}, fmt.Errorf("fetch m3u: %s", resp.Status)
	}
	return ParseM3U(resp.Body, sourceID)
}

// ParseM3UBytes parses an in-memory M3U payload. Used by tests and file-based
// sources.
func ParseM3UBytes(data []byte, sourceID string) (M3UResult, error) {
	return ParseM3U(bytes.NewReader(data), sourceID)
}

// ParseM3U parses an M3U playlist line by line. Each entry is an #EXTINF
// directive followed by a URL line; an entry is committed only once both
// have been seen. A dangling #EXTINF (EOF or another directive before any
// URL) is silently dropped, never partially recorded. Malformed directive
// lines are skipped without aborting the parse. The parse as a whole fails
// only when the payload contains content but no M3U directives at all.
func ParseM3U(r io.Reader, sourceID string) (M3UResult, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, maxLineSize)

	var res M3UResult
	var pending *extinf
	sawDirective := false
	sawContent := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		sawContent = true
		switch {
		case strings.HasPrefix(line, "#EXTM3U"):
			sawDirective = true
		case strings.HasPrefix(line, "#EXTINF:"):
			sawDirective = true
			if pending != nil {
				res.Dropped++ // previous directive never got its URL
			}
			pending = parseEXTINF(line)
			if pending == nil {
				res.Dropped++
			}
		case strings.HasPrefix(line, "#"):
			// other directives (#EXTGRP etc.) ignored
		case pending != nil && isStreamLocation(line):
			commitEntry(&res, pending, line, sourceID)
			pending = nil
		default:
			// garbage between entries; a pending directive is now orphaned
			if pending != nil {
				res.Dropped++
				pending = nil
			}
		}
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("read m3u: %w", err)
	}
	if pending != nil {
		res.Dropped++ // EOF before URL line
	}
	if sawContent && !sawDirective {
		return M3UResult{}, ErrNotM3U
	}
	metrics.EntriesParsed.WithLabelValues("m3u").Add(float64(len(res.Movies) + len(res.Channels) + seriesEpisodeCount(res.Series)))
	metrics.EntriesDropped.WithLabelValues("m3u").Add(float64(res.Dropped))
	return res, nil
}

func seriesEpisodeCount(series []catalog.Series) int {
	n := 0
	for _, s := range series {
		n += s.EpisodeCount()
	}
	return n
}

// extinf is one parsed #EXTINF directive awaiting its URL line.
type extinf struct {
	name       string
	tvgID      string
	tvgName    string
	tvgLogo    string
	groupTitle string
}

// parseEXTINF parses `#EXTINF:<duration>[ attrs],<display name>`. Returns nil
// for directives with no comma (no display name position) — those are
// malformed and skipped.
func parseEXTINF(line string) *extinf {
	body := strings.TrimPrefix(line, "#EXTINF:")
	comma := displayNameComma(body)
	if comma < 0 {
		return nil
	}
	e := &extinf{name: strings.TrimSpace(body[comma+1:])}
	attrs := body[:comma]
	e.tvgID = attrValue(attrs, "tvg-id")
	e.tvgName = attrValue(attrs, "tvg-name")
	e.tvgLogo = attrValue(attrs, "tvg-logo")
	e.groupTitle = attrValue(attrs, "group-title")
	if e.name == "" {
		e.name = e.tvgName
	}
	return e
}

// displayNameComma finds the first comma outside quoted attribute values;
// it separates the attribute run from the display name. Display names may
// themselves contain commas, so the first unquoted one wins.
func displayNameComma(s string) int {
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuote = !inQuote
		case ',':
			if !inQuote {
				return i
			}
		}
	}
	return -1
}

// attrValue extracts key="value" from an EXTINF attribute run.
func attrValue(attrs, key string) string {
	prefix := key + `="`
	i := strings.Index(attrs, prefix)
	if i < 0 {
		return ""
	}
	i += len(prefix)
	j := strings.Index(attrs[i:], `"`)
	if j < 0 {
		return ""
	}
	return attrs[i : i+j]
}

// isStreamLocation accepts absolute http(s) URLs and absolute paths (some
// providers emit relative locations resolved against the playlist host).
func isStreamLocation(line string) bool {
	return strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") || strings.HasPrefix(line, "/")
}

// commitEntry classifies a completed entry and appends it to the result.
// Entries that look like a series episode (SxxEyy in the name) become
// episodes of a Series; entries with a (year) suffix or a movie/VOD group
// become Movies; everything else is a live Channel.
func commitEntry(res *M3UResult, e *extinf, streamURL, sourceID string) {
	title, year := parseTitleYear(e.name)
	id := stableID(streamURL, e.name)
	if show, season, episode, ok := parseSeasonEpisode(e.name); ok {
		res.Series = appendSeriesEpisode(res.Series, sourceID, show, season, episode, streamURL, id)
		return
	}
	group := strings.ToLower(e.groupTitle)
	if year > 0 || strings.Contains(group, "movie") || strings.Contains(group, "vod") {
		res.Movies = append(res.Movies, catalog.Movie{
			ID:        id,
			SourceID:  sourceID,
			Title:     title,
			Year:      year,
			StreamURL: streamURL,
			LogoURL:   e.tvgLogo,
			Category:  e.groupTitle,
		})
		return
	}
	res.Channels = append(res.Channels, catalog.Channel{
		ID:         id,
		SourceID:   sourceID,
		Name:       title,
		TVGID:      e.tvgID,
		GroupTitle: e.groupTitle,
		StreamURL:  streamURL,
		LogoURL:    e.tvgLogo,
	})
}

// parseTitleYear splits "Title (2020)" into ("Title", 2020); returns year 0
// when no plausible trailing year is present.
func parseTitleYear(s string) (string, int) {
	s = strings.TrimSpace(s)
	if len(s) < 6 || s[len(s)-1] != ')' {
		return s, 0
	}
	i := strings.LastIndex(s, "(")
	if i < 0 {
		return s, 0
	}
	y := strings.TrimSpace(s[i+1 : len(s)-1])
	if len(y) != 4 {
		return s, 0
	}
	year := 0
	for _, c := range y {
		if c < '0' || c > '9' {
			return s, 0
		}
		year = year*10 + int(c-'0')
	}
	if year < 1900 || year > 2100 {
		return s, 0
	}
	return strings.TrimSpace(s[:i]), year
}

// parseSeasonEpisode finds a SxxEyy marker and returns the show name (text
// before the marker), season, and episode.
func parseSeasonEpisode(name string) (show string, season, episode int, ok bool) {
	lower := strings.ToLower(name)
	for i := 0; i+5 < len(lower); i++ {
		if lower[i] != 's' || !isDigit(lower[i+1]) || !isDigit(lower[i+2]) ||
			lower[i+3] != 'e' || !isDigit(lower[i+4]) || !isDigit(lower[i+5]) {
			continue
		}
		season = int(lower[i+1]-'0')*10 + int(lower[i+2]-'0')
		episode = int(lower[i+4]-'0')*10 + int(lower[i+5]-'0')
		show = strings.Trim(strings.TrimSpace(name[:i]), "-– ")
		if show == "" || season == 0 {
			return "", 0, 0, false
		}
		return show, season, episode, true
	}
	return "", 0, 0, false
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// appendSeriesEpisode files an episode under its show and season, creating
// either as needed. Shows are matched by exact title within one parse.
func appendSeriesEpisode(series []catalog.Series, sourceID, show string, season, episode int, streamURL, id string) []catalog.Series {
	ep := catalog.Episode{
		ID:         id,
		SeasonNum:  season,
		EpisodeNum: episode,
		Title:      fmt.Sprintf("%s S%02dE%02d", show, season, episode),
		StreamURL:  streamURL,
	}
	for i := range series {
		if series[i].Title != show {
			continue
		}
		for j := range series[i].Seasons {
			if series[i].Seasons[j].Number == season {
				series[i].Seasons[j].Episodes = append(series[i].Seasons[j].Episodes, ep)
				return series
			}
		}
		series[i].Seasons = append(series[i].Seasons, catalog.Season{Number: season, Episodes: []catalog.Episode{ep}})
		return series
	}
	return append(series, catalog.Series{
		ID:       "series_" + stableID(show, sourceID),
		SourceID: sourceID,
		Title:    show,
		Seasons:  []catalog.Season{{Number: season, Episodes: []catalog.Episode{ep}}},
	})
}

// stableID derives a stable content id from the stream URL and name so
// re-parsing the same playlist yields the same ids (idempotent ingest).
func stableID(url, name string) string {
	h := uint64(1469598103934665603) // FNV-1a
	for i := 0; i < len(url); i++ {
		h ^= uint64(url[i])
		h *= 1099511628211
	}
	for i := 0; i < len(name); i++ {
		h ^= uint64(name[i])
		h *= 1099511628211
	}
	return fmt.Sprintf("id_%016x", h)
}
