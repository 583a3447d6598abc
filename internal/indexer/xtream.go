package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/streamhaven/streamhaven/internal/catalog"
	"github.com/streamhaven/streamhaven/internal/httpclient"
	"github.com/streamhaven/streamhaven/internal/metrics"
)

// XtreamResult is the outcome of one portal index. Categories fail
// independently: a network or decode error on one call lands in
// CategoryErrors and the other categories still populate. The import as a
// whole fails only when every category fails.
type XtreamResult struct {
	Channels []catalog.Channel
	Movies   []catalog.Movie
	Series   []catalog.Series

	// CategoryErrors maps "live"/"vod"/"series" to that category's failure.
	CategoryErrors map[string]error
}

// Partial reports whether some categories failed while others succeeded.
func (r XtreamResult) Partial() bool {
	return len(r.CategoryErrors) > 0 && len(r.CategoryErrors) < 3
}

// FetchXtream indexes an Xtream Codes portal: get_live_streams,
// get_vod_streams, and get_series under player_api.php, each decoded
// tolerantly (absent fields default, mixed-type ids accepted) and mapped to
// catalog records tagged with src.ID. limiter, when non-nil, paces the
// category calls; portals commonly rate-limit player_api.
func FetchXtream(ctx context.Context, src catalog.Source, client *http.Client, limiter *rate.Limiter) (XtreamResult, error) {
	if client == nil {
		client = httpclient.Default()
	}
	base := strings.TrimSuffix(src.URL, "/") +
		"/player_api.php?username=" + url.QueryEscape(src.User) +
		"&password=" + url.QueryEscape(src.Pass)

	res := XtreamResult{CategoryErrors: map[string]error{}}

	fetch := func(category, action string) []byte {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				res.CategoryErrors[category] = err
				return nil
			}
		}
		body, err := portalGet(ctx, client, base+"&action="+action)
		if err != nil {
			res.CategoryErrors[category] = err
			return nil
		}
		return body
	}

	if body := fetch("live", "get_live_streams"); body != nil {
		channels, err := decodeLiveStreams(body, src)
		if err != nil {
			res.CategoryErrors["live"] = err
		} else {
			res.Channels = channels
		}
	}
	if body := fetch("vod", "get_vod_streams"); body != nil {
		movies, err := decodeVODStreams(body, src)
		if err != nil {
			res.CategoryErrors["vod"] = err
		} else {
			res.Movies = movies
		}
	}
	if body := fetch("series", "get_series"); body != nil {
		series, err := decodeSeriesList(body, src)
		if err != nil {
			res.CategoryErrors["series"] = err
		} else {
			res.Series = series
		}
	}

	if len(res.CategoryErrors) == 3 {
		return res, fmt.Errorf("xtream %s: all categories failed: live: %v; vod: %v; series: %v",
			src.Name, res.CategoryErrors["live"], res.CategoryErrors["vod"], res.CategoryErrors["series"])
	}
	metrics.EntriesParsed.WithLabelValues("xtream").Add(float64(len(res.Channels) + len(res.Movies) + len(res.Series)))
	return res, nil
}

// portalGet fetches one player_api call with retry. Credentials live in the
// query string, so errors carry the redacted URL only.
func portalGet(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	resp, err := httpclient.DoWithRetry(ctx, client, req, httpclient.DefaultRetryPolicy)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("portal: %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("portal read: %w", err)
	}
	return body, nil
}

// flexString decodes JSON fields that portals emit inconsistently as string
// or number ("stream_id": 42 vs "stream_id": "42").
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	// Integer-valued floats print without the trailing ".0".
	if i, err := n.Int64(); err == nil {
		*f = flexString(strconv.FormatInt(i, 10))
	} else {
		*f = flexString(n.String())
	}
	return nil
}

func (f flexString) String() string { return string(f) }

type xtreamLiveStream struct {
	StreamID     flexString `json:"stream_id"`
	Name         string     `json:"name"`
	EPGChannelID flexString `json:"epg_channel_id"`
	StreamIcon   string     `json:"stream_icon"`
	CategoryID   flexString `json:"category_id"`
}

func decodeLiveStreams(body []byte, src catalog.Source) ([]catalog.Channel, error) {
	var streams []xtreamLiveStream
	if err := json.Unmarshal(body, &streams); err != nil {
		return nil, fmt.Errorf("decode live streams: %w", err)
	}
	base := strings.TrimSuffix(src.URL, "/")
	channels := make([]catalog.Channel, 0, len(streams))
	for _, s := range streams {
		id := s.StreamID.String()
		if id == "" {
			metrics.EntriesDropped.WithLabelValues("xtream").Inc()
			continue
		}
		name := strings.TrimSpace(s.Name)
		if name == "" {
			name = "Channel " + id
		}
		channels = append(channels, catalog.Channel{
			ID:        "live_" + id,
			SourceID:  src.ID,
			Name:      name,
			TVGID:     s.EPGChannelID.String(),
			StreamURL: fmt.Sprintf("%s/live/%s/%s/%s.m3u8", base, url.PathEscape(src.User), url.PathEscape(src.Pass), url.PathEscape(id)),
			LogoURL:   s.StreamIcon,
		})
	}
	return channels, nil
}

type xtreamVODStream struct {
	StreamID           flexString `json:"stream_id"`
	Name               string     `json:"name"`
	Rating             flexString `json:"rating"`
	CategoryID         flexString `json:"category_id"`
	ContainerExtension string     `json:"container_extension"`
	StreamIcon         string     `json:"stream_icon"`
	Plot               string     `json:"plot"`
}

func decodeVODStreams(body []byte, src catalog.Source) ([]catalog.Movie, error) {
	var streams []xtreamVODStream
	if err := json.Unmarshal(body, &streams); err != nil {
		return nil, fmt.Errorf("decode vod streams: %w", err)
	}
	base := strings.TrimSuffix(src.URL, "/")
	movies := make([]catalog.Movie, 0, len(streams))
	for _, s := range streams {
		id := s.StreamID.String()
		if id == "" {
			metrics.EntriesDropped.WithLabelValues("xtream").Inc()
			continue
		}
		ext := s.ContainerExtension
		if ext == "" {
			ext = "mp4"
		}
		title, year := parseTitleYear(s.Name)
		movies = append(movies, catalog.Movie{
			ID:        "vod_" + id,
			SourceID:  src.ID,
			Title:     title,
			Year:      year,
			StreamURL: fmt.Sprintf("%s/movie/%s/%s/%s.%s", base, url.PathEscape(src.User), url.PathEscape(src.Pass), url.PathEscape(id), ext),
			LogoURL:   s.StreamIcon,
			Rating:    s.Rating.String(),
			Category:  s.CategoryID.String(),
			Container: ext,
			Plot:      s.Plot,
		})
	}
	return movies, nil
}

type xtreamSeries struct {
	SeriesID   flexString `json:"series_id"`
	Name       string     `json:"name"`
	Rating     flexString `json:"rating"`
	CategoryID flexString `json:"category_id"`
	Cover      string     `json:"cover"`
	Plot       string     `json:"plot"`
}

func decodeSeriesList(body []byte, src catalog.Source) ([]catalog.Series, error) {
	var list []xtreamSeries
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("decode series: %w", err)
	}
	series := make([]catalog.Series, 0, len(list))
	for _, s := range list {
		id := s.SeriesID.String()
		if id == "" {
			metrics.EntriesDropped.WithLabelValues("xtream").Inc()
			continue
		}
		title, year := parseTitleYear(s.Name)
		series = append(series, catalog.Series{
			ID:       "series_" + id,
			SourceID: src.ID,
			Title:    title,
			Year:     year,
			LogoURL:  s.Cover,
			Rating:   s.Rating.String(),
			Category: s.CategoryID.String(),
			Plot:     s.Plot,
		})
	}
	return series, nil
}
