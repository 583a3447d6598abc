package indexer

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/streamhaven/streamhaven/internal/catalog"
	"github.com/streamhaven/streamhaven/internal/httpclient"
	"github.com/streamhaven/streamhaven/internal/metrics"
)

// xmltvTimeLayout is the XMLTV timestamp format with explicit UTC offset:
// "20060102150405 -0700". The offset is authoritative — local time is never
// assumed. Some feeds omit it; those parse as UTC.
const (
	xmltvTimeLayout       = "20060102150405 -0700"
	xmltvTimeLayoutNoZone = "20060102150405"
)

// ChannelResolver maps an XMLTV channel id to a local channel id. Programmes
// whose id does not resolve are dropped (routine with independently-updated
// feeds, not an error). See epglink.Resolver.
type ChannelResolver interface {
	Resolve(xmltvID string) (channelID string, ok bool)
}

// XMLTVResult is the outcome of one guide parse.
type XMLTVResult struct {
	Entries []catalog.EPGEntry
	Dropped int // unknown channel, missing attrs, or bad timestamps
}

// FetchXMLTV downloads and parses the XMLTV guide at guideURL.
func FetchXMLTV(ctx context.Context, guideURL string, resolver ChannelResolver, client *http.Client) (XMLTVResult, error) {
	if client == nil {
		client = httpclient.Default()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, guideURL, nil)
	if err != nil {
		return XMLTVResult{}, err
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	resp, err := httpclient.DoWithRetry(ctx, client, req, httpclient.DefaultRetryPolicy)
	if err != nil {
		return XMLTVResult{}, fmt.Errorf("fetch xmltv: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return XMLTVResult{}, fmt.Errorf("fetch xmltv: %s", resp.Status)
	}
	return ParseXMLTV(resp.Body, resolver)
}

// xmltvProgramme mirrors one <programme> element.
type xmltvProgramme struct {
	Start    string   `xml:"start,attr"`
	Stop     string   `xml:"stop,attr"`
	Channel  string   `xml:"channel,attr"`
	Titles   []string `xml:"title"`
	Descs    []string `xml:"desc"`
	Category []string `xml:"category"`
}

// ParseXMLTV streams <programme> elements out of an XMLTV document, one
// element at a time so multi-hundred-MB guides never load whole. Programmes
// with a missing/unresolvable channel, missing title, or unparseable
// timestamps are dropped individually. A decode error surfaces only when
// nothing at all was parsed; a truncated feed still yields what was read.
func ParseXMLTV(r io.Reader, resolver ChannelResolver) (XMLTVResult, error) {
	var res XMLTVResult
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			if len(res.Entries) == 0 {
				return XMLTVResult{}, fmt.Errorf("parse xmltv: %w", err)
			}
			break // keep entries from the intact prefix
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "programme" {
			continue
		}
		var p xmltvProgramme
		if err := dec.DecodeElement(&p, &start); err != nil {
			res.Dropped++
			continue
		}
		entry, ok := programmeToEntry(p, resolver)
		if !ok {
			res.Dropped++
			continue
		}
		res.Entries = append(res.Entries, entry)
	}
	metrics.EntriesParsed.WithLabelValues("xmltv").Add(float64(len(res.Entries)))
	metrics.EntriesDropped.WithLabelValues("xmltv").Add(float64(res.Dropped))
	return res, nil
}

func programmeToEntry(p xmltvProgramme, resolver ChannelResolver) (catalog.EPGEntry, bool) {
	if p.Channel == "" || len(p.Titles) == 0 || strings.TrimSpace(p.Titles[0]) == "" {
		return catalog.EPGEntry{}, false
	}
	channelID, ok := resolver.Resolve(p.Channel)
	if !ok {
		return catalog.EPGEntry{}, false
	}
	start, err := parseXMLTVTime(p.Start)
	if err != nil {
		return catalog.EPGEntry{}, false
	}
	stop, err := parseXMLTVTime(p.Stop)
	if err != nil || !stop.After(start) {
		return catalog.EPGEntry{}, false
	}
	entry := catalog.EPGEntry{
		ChannelID: channelID,
		Title:     strings.TrimSpace(p.Titles[0]),
		Start:     start,
		Stop:      stop,
	}
	if len(p.Descs) > 0 {
		entry.Description = strings.TrimSpace(p.Descs[0])
	}
	if len(p.Category) > 0 {
		entry.Category = strings.TrimSpace(p.Category[0])
	}
	return entry, true
}

func parseXMLTVTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(xmltvTimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(xmltvTimeLayoutNoZone, s)
}
