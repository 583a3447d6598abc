package store

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/streamhaven/streamhaven/internal/catalog"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func addTestSource(t *testing.T, s *Store, name string) catalog.Source {
	t.Helper()
	src, err := s.AddSource(name, catalog.SourceM3U, "http://example.com/list.m3u", "", "")
	if err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	return src
}

func TestAddSource_assignsUniqueIDs(t *testing.T) {
	s := openTestStore(t)
	a := addTestSource(t, s, "one")
	b := addTestSource(t, s, "two")
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("want distinct non-empty ids, got %q and %q", a.ID, b.ID)
	}
	if !a.Active {
		t.Error("new source should start active")
	}
}

func TestSourceMetadata_unknownIsNil(t *testing.T) {
	s := openTestStore(t)
	meta, err := s.SourceMetadata("nope")
	if err != nil {
		t.Fatalf("SourceMetadata: %v", err)
	}
	if meta != nil {
		t.Fatalf("want nil for unknown source, got %+v", meta)
	}
}

func TestSourceMetadata_reflectsActiveFlag(t *testing.T) {
	s := openTestStore(t)
	src := addTestSource(t, s, "primary")
	if err := s.SetSourceActive(src.ID, false); err != nil {
		t.Fatalf("SetSourceActive: %v", err)
	}
	meta, err := s.SourceMetadata(src.ID)
	if err != nil {
		t.Fatalf("SourceMetadata: %v", err)
	}
	if meta == nil || meta.IsActive {
		t.Fatalf("want inactive metadata, got %+v", meta)
	}
	if meta.SourceName != "primary" {
		t.Errorf("SourceName = %q, want primary", meta.SourceName)
	}
}

func TestActiveMovies_filtersInactiveSources(t *testing.T) {
	s := openTestStore(t)
	a := addTestSource(t, s, "a")
	b := addTestSource(t, s, "b")
	movies := []catalog.Movie{
		{ID: "m1", SourceID: a.ID, Title: "Heat", StreamURL: "http://a/1"},
		{ID: "m2", SourceID: b.ID, Title: "Ronin", StreamURL: "http://b/2"},
	}
	if err := s.UpsertMovies(movies); err != nil {
		t.Fatalf("UpsertMovies: %v", err)
	}
	if err := s.SetSourceActive(b.ID, false); err != nil {
		t.Fatalf("SetSourceActive: %v", err)
	}
	got, err := s.ActiveMovies()
	if err != nil {
		t.Fatalf("ActiveMovies: %v", err)
	}
	if len(got) != 1 || got[0].ID != "m1" {
		t.Fatalf("want only m1, got %+v", got)
	}
}

func TestActiveMovies_deactivationShrinksGroups(t *testing.T) {
	s := openTestStore(t)
	a := addTestSource(t, s, "a")
	b := addTestSource(t, s, "b")
	movies := []catalog.Movie{
		{ID: "m1", SourceID: a.ID, Title: "Inception", StreamURL: "http://a/1"},
		{ID: "m2", SourceID: b.ID, Title: "INCEPTION", StreamURL: "http://b/2"},
	}
	if err := s.UpsertMovies(movies); err != nil {
		t.Fatalf("UpsertMovies: %v", err)
	}

	active, err := s.ActiveMovies()
	if err != nil {
		t.Fatalf("ActiveMovies: %v", err)
	}
	groups := catalog.GroupItems(active, catalog.SourceModeCombined)
	if len(groups) != 1 || groups[0].ItemCount() != 2 {
		t.Fatalf("want one merged group of 2, got %+v", groups)
	}

	if err := s.SetSourceActive(b.ID, false); err != nil {
		t.Fatalf("SetSourceActive: %v", err)
	}
	active, err = s.ActiveMovies()
	if err != nil {
		t.Fatalf("ActiveMovies: %v", err)
	}
	groups = catalog.GroupItems(active, catalog.SourceModeCombined)
	if len(groups) != 1 || groups[0].ItemCount() != 1 {
		t.Fatalf("want one singleton group after deactivation, got %+v", groups)
	}
}

func TestUpsertMovies_refreshKeepsDerived(t *testing.T) {
	s := openTestStore(t)
	src := addTestSource(t, s, "a")
	m := catalog.Movie{ID: "m1", SourceID: src.ID, Title: "Heat", StreamURL: "http://a/1"}
	if err := s.UpsertMovies([]catalog.Movie{m}); err != nil {
		t.Fatalf("UpsertMovies: %v", err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	if err := s.WriteMovieDerived("m1", catalog.Derived{HasBeenWatched: true, WatchProgressPercent: 95, LastWatchedAt: &now}); err != nil {
		t.Fatalf("WriteMovieDerived: %v", err)
	}

	m.Title = "Heat (Director's Cut)"
	if err := s.UpsertMovies([]catalog.Movie{m}); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	got, err := s.MovieByID("m1")
	if err != nil {
		t.Fatalf("MovieByID: %v", err)
	}
	if got.Title != "Heat (Director's Cut)" {
		t.Errorf("title not refreshed: %q", got.Title)
	}
	if !got.Derived.HasBeenWatched || got.Derived.WatchProgressPercent != 95 {
		t.Errorf("derived fields lost on re-upsert: %+v", got.Derived)
	}
	if got.Derived.LastWatchedAt == nil || !got.Derived.LastWatchedAt.Equal(now) {
		t.Errorf("LastWatchedAt = %v, want %v", got.Derived.LastWatchedAt, now)
	}
}

func TestUpsertSeries_replacesEpisodes(t *testing.T) {
	s := openTestStore(t)
	src := addTestSource(t, s, "a")
	sr := catalog.Series{
		ID: "s1", SourceID: src.ID, Title: "The Wire",
		Seasons: []catalog.Season{{Number: 1, Episodes: []catalog.Episode{
			{ID: "e1", SeasonNum: 1, EpisodeNum: 1, Title: "The Target"},
			{ID: "e2", SeasonNum: 1, EpisodeNum: 2, Title: "The Detail"},
		}}},
	}
	if err := s.UpsertSeries([]catalog.Series{sr}); err != nil {
		t.Fatalf("UpsertSeries: %v", err)
	}

	sr.Seasons[0].Episodes = sr.Seasons[0].Episodes[:1]
	if err := s.UpsertSeries([]catalog.Series{sr}); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	got, err := s.SeriesByID("s1")
	if err != nil {
		t.Fatalf("SeriesByID: %v", err)
	}
	if got.EpisodeCount() != 1 {
		t.Fatalf("EpisodeCount = %d, want 1 after replace", got.EpisodeCount())
	}
}

func TestRemoveSource_cascades(t *testing.T) {
	s := openTestStore(t)
	src := addTestSource(t, s, "doomed")
	if err := s.UpsertMovies([]catalog.Movie{{ID: "m1", SourceID: src.ID, Title: "Heat", StreamURL: "u"}}); err != nil {
		t.Fatalf("UpsertMovies: %v", err)
	}
	if err := s.UpsertChannels([]catalog.Channel{{ID: "c1", SourceID: src.ID, Name: "News", StreamURL: "u"}}); err != nil {
		t.Fatalf("UpsertChannels: %v", err)
	}
	if _, err := s.UpsertEPG([]catalog.EPGEntry{{
		ChannelID: "c1", Title: "Morning", Start: time.Now(), Stop: time.Now().Add(time.Hour),
	}}); err != nil {
		t.Fatalf("UpsertEPG: %v", err)
	}
	if err := s.SetFavorite("p1", "m1", true); err != nil {
		t.Fatalf("SetFavorite: %v", err)
	}
	if err := s.SetWatchProgress("p1", "m1", 0.5, time.Now()); err != nil {
		t.Fatalf("SetWatchProgress: %v", err)
	}

	if err := s.RemoveSource(src.ID); err != nil {
		t.Fatalf("RemoveSource: %v", err)
	}
	if _, err := s.MovieByID("m1"); err != sql.ErrNoRows {
		t.Errorf("movie survived source removal: %v", err)
	}
	if _, err := s.ChannelByID("c1"); err != sql.ErrNoRows {
		t.Errorf("channel survived source removal: %v", err)
	}
	if n, err := s.EPGCountForChannel("c1"); err != nil || n != 0 {
		t.Errorf("epg entries survived: n=%d err=%v", n, err)
	}
	if fav, err := s.IsFavorite("p1", "m1"); err != nil || fav {
		t.Errorf("favorite survived: fav=%v err=%v", fav, err)
	}
	if _, _, ok, err := s.WatchProgress("p1", "m1"); err != nil || ok {
		t.Errorf("watch history survived: ok=%v err=%v", ok, err)
	}
}

func TestWatchProgress_storesRawValue(t *testing.T) {
	s := openTestStore(t)
	src := addTestSource(t, s, "a")
	if err := s.UpsertMovies([]catalog.Movie{{ID: "m1", SourceID: src.ID, Title: "Heat", StreamURL: "u"}}); err != nil {
		t.Fatalf("UpsertMovies: %v", err)
	}
	at := time.Date(2026, 8, 29, 21, 0, 0, 0, time.UTC)
	if err := s.SetWatchProgress("p1", "m1", 1.07, at); err != nil {
		t.Fatalf("SetWatchProgress: %v", err)
	}
	progress, when, ok, err := s.WatchProgress("p1", "m1")
	if err != nil || !ok {
		t.Fatalf("WatchProgress: ok=%v err=%v", ok, err)
	}
	if progress != 1.07 {
		t.Errorf("progress = %v, want raw 1.07", progress)
	}
	if !when.Equal(at) {
		t.Errorf("updated_at = %v, want %v", when, at)
	}
}

func TestSetFavorite_isIdempotent(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 2; i++ {
		if err := s.SetFavorite("p1", "m1", true); err != nil {
			t.Fatalf("SetFavorite #%d: %v", i, err)
		}
	}
	fav, err := s.IsFavorite("p1", "m1")
	if err != nil || !fav {
		t.Fatalf("IsFavorite: fav=%v err=%v", fav, err)
	}
	if err := s.SetFavorite("p1", "m1", false); err != nil {
		t.Fatalf("unfavorite: %v", err)
	}
	if fav, _ := s.IsFavorite("p1", "m1"); fav {
		t.Error("still favorited after removal")
	}
}
