package indexer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/streamhaven/streamhaven/internal/catalog"
)

func xtreamSource(url string) catalog.Source {
	return catalog.Source{
		ID:     "src-x",
		Name:   "portal",
		Kind:   catalog.SourceXtream,
		URL:    url,
		User:   "u",
		Pass:   "p",
		Active: true,
	}
}

func TestFetchXtream_allCategories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/player_api.php" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("username") != "u" || r.URL.Query().Get("password") != "p" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		switch r.URL.Query().Get("action") {
		case "get_live_streams":
			// stream_id as number, epg_channel_id as string
			w.Write([]byte(`[{"stream_id":7,"name":"News 24","epg_channel_id":"news.uk","stream_icon":"http://logo/n.png","category_id":"3"}]`))
		case "get_vod_streams":
			// stream_id as string, rating as number, no container_extension
			w.Write([]byte(`[{"stream_id":"55","name":"Heat (1995)","rating":7.9,"category_id":12,"stream_icon":"","plot":"A heist."}]`))
		case "get_series":
			w.Write([]byte(`[{"series_id":9,"name":"Breaking Bad","rating":"9.5","category_id":"4","cover":"http://logo/bb.png","plot":"Chemistry."}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	res, err := FetchXtream(context.Background(), xtreamSource(srv.URL), srv.Client(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.CategoryErrors) != 0 {
		t.Fatalf("category errors: %v", res.CategoryErrors)
	}

	if len(res.Channels) != 1 {
		t.Fatalf("channels = %+v", res.Channels)
	}
	ch := res.Channels[0]
	if ch.ID != "live_7" || ch.Name != "News 24" || ch.TVGID != "news.uk" || ch.SourceID != "src-x" {
		t.Errorf("channel = %+v", ch)
	}
	if !strings.HasSuffix(ch.StreamURL, "/live/u/p/7.m3u8") {
		t.Errorf("channel stream URL = %s", ch.StreamURL)
	}

	if len(res.Movies) != 1 {
		t.Fatalf("movies = %+v", res.Movies)
	}
	m := res.Movies[0]
	if m.ID != "vod_55" || m.Title != "Heat" || m.Year != 1995 || m.Rating != "7.9" || m.Category != "12" {
		t.Errorf("movie = %+v", m)
	}
	if m.Container != "mp4" || !strings.HasSuffix(m.StreamURL, "/movie/u/p/55.mp4") {
		t.Errorf("movie container/url = %s / %s", m.Container, m.StreamURL)
	}

	if len(res.Series) != 1 {
		t.Fatalf("series = %+v", res.Series)
	}
	s := res.Series[0]
	if s.ID != "series_9" || s.Title != "Breaking Bad" || s.Rating != "9.5" || s.Plot != "Chemistry." {
		t.Errorf("series = %+v", s)
	}
}

func TestFetchXtream_categoryIsolation(t *testing.T) {
	// VOD fails; live and series still import. 404 is not retried.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case "get_live_streams":
			w.Write([]byte(`[{"stream_id":1,"name":"One"}]`))
		case "get_vod_streams":
			http.NotFound(w, r)
		case "get_series":
			w.Write([]byte(`[{"series_id":2,"name":"Two"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	res, err := FetchXtream(context.Background(), xtreamSource(srv.URL), srv.Client(), nil)
	if err != nil {
		t.Fatalf("partial import should not fail the whole fetch: %v", err)
	}
	if !res.Partial() {
		t.Errorf("expected partial result; errors = %v", res.CategoryErrors)
	}
	if _, ok := res.CategoryErrors["vod"]; !ok {
		t.Errorf("missing vod error: %v", res.CategoryErrors)
	}
	if len(res.Channels) != 1 || len(res.Series) != 1 || len(res.Movies) != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestFetchXtream_allCategoriesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := FetchXtream(context.Background(), xtreamSource(srv.URL), srv.Client(), nil)
	if err == nil {
		t.Fatal("expected error when every category fails")
	}
}

func TestFetchXtream_tolerantDecode(t *testing.T) {
	// Entries without a stream_id are dropped, not fatal; absent optional
	// fields default.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case "get_live_streams":
			w.Write([]byte(`[{"name":"No ID"},{"stream_id":3,"name":""}]`))
		case "get_vod_streams", "get_series":
			w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	res, err := FetchXtream(context.Background(), xtreamSource(srv.URL), srv.Client(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Channels) != 1 {
		t.Fatalf("channels = %+v", res.Channels)
	}
	if res.Channels[0].Name != "Channel 3" {
		t.Errorf("fallback name = %q", res.Channels[0].Name)
	}
}
