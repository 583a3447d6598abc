package epglink

import (
	"testing"

	"github.com/streamhaven/streamhaven/internal/catalog"
)

func TestResolver_tvgIDExact(t *testing.T) {
	r := NewResolver([]catalog.Channel{
		{ID: "ch1", Name: "News 24", TVGID: "news.uk"},
	})
	id, ok := r.Resolve("news.uk")
	if !ok || id != "ch1" {
		t.Errorf("Resolve(news.uk) = %q, %v", id, ok)
	}
}

func TestResolver_nameFallback(t *testing.T) {
	r := NewResolver([]catalog.Channel{
		{ID: "ch1", Name: "The Sports Channel"}, // no tvg-id
	})
	// XMLTV id used as a display name; article and case are normalized away.
	id, ok := r.Resolve("SPORTS CHANNEL")
	if !ok || id != "ch1" {
		t.Errorf("Resolve = %q, %v", id, ok)
	}
}

func TestResolver_unknown(t *testing.T) {
	r := NewResolver([]catalog.Channel{{ID: "ch1", Name: "One", TVGID: "one"}})
	if _, ok := r.Resolve("nope"); ok {
		t.Error("unknown id resolved")
	}
	if _, ok := r.Resolve(""); ok {
		t.Error("empty id resolved")
	}
}

func TestResolver_ambiguousNamesDisabled(t *testing.T) {
	// Two sources carry a channel with the same name; matching by that name
	// would be a guess, so it is disabled. tvg-id still works.
	r := NewResolver([]catalog.Channel{
		{ID: "ch1", SourceID: "a", Name: "News 24", TVGID: "news.a"},
		{ID: "ch2", SourceID: "b", Name: "News 24", TVGID: "news.b"},
	})
	if _, ok := r.Resolve("News 24"); ok {
		t.Error("ambiguous name resolved")
	}
	if id, ok := r.Resolve("news.b"); !ok || id != "ch2" {
		t.Errorf("Resolve(news.b) = %q, %v", id, ok)
	}
}

func TestResolver_linkedCount(t *testing.T) {
	r := NewResolver([]catalog.Channel{
		{ID: "ch1", Name: "One", TVGID: "one"},
		{ID: "ch2", Name: "Two"},
	})
	if got := r.Linked(); got != 2 {
		t.Errorf("Linked() = %d; want 2", got)
	}
}
