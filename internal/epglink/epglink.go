// Package epglink matches XMLTV channel ids to local channels so guide
// programmes can be attributed to stored content. Matching is exact on
// tvg-id first, then on normalized channel name; programmes that match
// nothing are dropped by the caller (expected with independently-updated
// feeds).
package epglink

import (
	"github.com/streamhaven/streamhaven/internal/catalog"
)

// Resolver maps XMLTV channel ids onto local channel ids. Build one from the
// current channel snapshot before each guide parse; it is immutable and safe
// for concurrent use afterwards.
type Resolver struct {
	byTVGID map[string]string // tvg-id → channel ID
	byName  map[string]string // normalized name → channel ID (unique names only)

	ambiguous map[string]bool // normalized names shared by several channels
}

// NewResolver indexes channels by tvg-id and by normalized display name.
// When two channels share a normalized name, name matching for that name is
// disabled rather than guessing (a wrong link is worse than a dropped
// programme).
func NewResolver(channels []catalog.Channel) *Resolver {
	r := &Resolver{
		byTVGID:   make(map[string]string, len(channels)),
		byName:    make(map[string]string, len(channels)),
		ambiguous: make(map[string]bool),
	}
	for _, ch := range channels {
		if ch.TVGID != "" {
			if _, taken := r.byTVGID[ch.TVGID]; !taken {
				r.byTVGID[ch.TVGID] = ch.ID
			}
		}
		name := catalog.NormalizeTitle(ch.Name)
		if name == "" {
			continue
		}
		if _, taken := r.byName[name]; taken {
			r.ambiguous[name] = true
			continue
		}
		r.byName[name] = ch.ID
	}
	for name := range r.ambiguous {
		delete(r.byName, name)
	}
	return r
}

// Resolve returns the local channel id for an XMLTV channel id: tvg-id exact
// match first, then the id treated as a display name and matched normalized.
func (r *Resolver) Resolve(xmltvID string) (string, bool) {
	if id, ok := r.byTVGID[xmltvID]; ok {
		return id, true
	}
	name := catalog.NormalizeTitle(xmltvID)
	if name == "" {
		return "", false
	}
	id, ok := r.byName[name]
	return id, ok
}

// Linked reports how many distinct local channels the resolver can reach,
// for ingest logging.
func (r *Resolver) Linked() int {
	seen := make(map[string]bool, len(r.byTVGID)+len(r.byName))
	for _, id := range r.byTVGID {
		seen[id] = true
	}
	for _, id := range r.byName {
		seen[id] = true
	}
	return len(seen)
}
