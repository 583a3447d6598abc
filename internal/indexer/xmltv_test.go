package indexer

import (
	"strings"
	"testing"
	"time"

	"github.com/streamhaven/streamhaven/internal/catalog"
	"github.com/streamhaven/streamhaven/internal/epglink"
)

func testResolver() *epglink.Resolver {
	return epglink.NewResolver([]catalog.Channel{
		{ID: "ch1", SourceID: "src", Name: "News 24", TVGID: "news.uk"},
		{ID: "ch2", SourceID: "src", Name: "Sports One", TVGID: "sports.uk"},
	})
}

const sampleXMLTV = `<?xml version="1.0" encoding="UTF-8"?>
<tv>
  <channel id="news.uk"><display-name>News 24</display-name></channel>
  <programme start="20250110120000 +0000" stop="20250110130000 +0000" channel="news.uk">
    <title>Midday Report</title>
    <desc>The news at noon.</desc>
    <category>News</category>
  </programme>
  <programme start="20250110130000 +0100" stop="20250110140000 +0100" channel="sports.uk">
    <title>Match of the Day</title>
  </programme>
  <programme start="20250110120000 +0000" stop="20250110130000 +0000" channel="unknown.id">
    <title>Ghost Programme</title>
  </programme>
</tv>`

func TestParseXMLTV(t *testing.T) {
	res, err := ParseXMLTV(strings.NewReader(sampleXMLTV), testResolver())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("entries = %+v", res.Entries)
	}
	if res.Dropped != 1 {
		t.Errorf("dropped = %d; want 1 (unknown channel)", res.Dropped)
	}

	e := res.Entries[0]
	if e.ChannelID != "ch1" || e.Title != "Midday Report" || e.Description != "The news at noon." || e.Category != "News" {
		t.Errorf("entry = %+v", e)
	}
	want := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	if !e.Start.Equal(want) {
		t.Errorf("start = %v; want %v", e.Start, want)
	}

	// +0100 offset is authoritative: 13:00+0100 is 12:00 UTC.
	second := res.Entries[1]
	if second.ChannelID != "ch2" {
		t.Errorf("second entry channel = %s", second.ChannelID)
	}
	if !second.Start.Equal(want) {
		t.Errorf("offset not honored: start = %v; want %v", second.Start, want)
	}
}

func TestParseXMLTV_badTimestampsDropped(t *testing.T) {
	doc := `<tv>
<programme start="not-a-time" stop="20250110130000 +0000" channel="news.uk"><title>X</title></programme>
<programme start="20250110140000 +0000" stop="20250110130000 +0000" channel="news.uk"><title>Ends before it starts</title></programme>
<programme start="20250110120000 +0000" stop="20250110130000 +0000" channel="news.uk"><title>OK</title></programme>
</tv>`
	res, err := ParseXMLTV(strings.NewReader(doc), testResolver())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Entries) != 1 || res.Entries[0].Title != "OK" {
		t.Errorf("entries = %+v", res.Entries)
	}
	if res.Dropped != 2 {
		t.Errorf("dropped = %d; want 2", res.Dropped)
	}
}

func TestParseXMLTV_unparseable(t *testing.T) {
	if _, err := ParseXMLTV(strings.NewReader("{not xml at all"), testResolver()); err == nil {
		t.Fatal("expected error for unparseable payload")
	}
}

func TestParseXMLTV_truncatedFeedKeepsPrefix(t *testing.T) {
	doc := `<tv>
<programme start="20250110120000 +0000" stop="20250110130000 +0000" channel="news.uk"><title>Kept</title></programme>
<programme start="20250110130000 +0000" sto`
	res, err := ParseXMLTV(strings.NewReader(doc), testResolver())
	if err != nil {
		t.Fatalf("truncated feed should keep the intact prefix: %v", err)
	}
	if len(res.Entries) != 1 || res.Entries[0].Title != "Kept" {
		t.Errorf("entries = %+v", res.Entries)
	}
}

func TestParseXMLTV_zoneLessTimestampIsUTC(t *testing.T) {
	doc := `<tv>
<programme start="20250110120000" stop="20250110130000" channel="news.uk"><title>Zoneless</title></programme>
</tv>`
	res, err := ParseXMLTV(strings.NewReader(doc), testResolver())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Entries) != 1 {
		t.Fatalf("entries = %+v", res.Entries)
	}
	want := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	if !res.Entries[0].Start.Equal(want) {
		t.Errorf("start = %v; want %v", res.Entries[0].Start, want)
	}
}
