package catalog

// SourceMode controls how content from multiple sources is presented.
type SourceMode string

const (
	// SourceModeCombined merges items sharing a normalized title across all
	// active sources into one ContentGroup.
	SourceModeCombined SourceMode = "combined"
	// SourceModeSingle disables merging: every item is its own singleton
	// group, even when duplicates exist.
	SourceModeSingle SourceMode = "single"
)

// GroupItem is the contract a content item must satisfy to be groupable.
// Movie, Series, and Channel all implement it.
type GroupItem interface {
	ContentTitle() string
	ContentSource() string
}

// ContentGroup is one logical piece of content as seen across sources.
// It is ephemeral: recomputed per query from stable-identity items and never
// persisted. Primary is the first item encountered in input order; the rest
// are Alternatives in encountered order.
type ContentGroup[T GroupItem] struct {
	Primary      T
	Alternatives []T
	SourceIDs    []string // distinct, in first-seen order
}

// ItemCount is 1 (primary) plus the number of alternatives.
func (g ContentGroup[T]) ItemCount() int { return 1 + len(g.Alternatives) }

// Items returns primary followed by alternatives.
func (g ContentGroup[T]) Items() []T {
	out := make([]T, 0, g.ItemCount())
	out = append(out, g.Primary)
	return append(out, g.Alternatives...)
}

// GroupItems buckets items by normalized title. The caller is expected to
// pass a snapshot of active-source items only; inactive sources are excluded
// at the store read, not here. Deterministic for a given input order: groups
// appear in order of their first member, and members keep input order within
// a group.
//
// The primary is always the first item added to its group. That is a
// deliberate, documented tie-break — quality-ranked selection (AssessQuality)
// is the intended future direction, but first-encountered is the behavior
// consumers rely on today.
//
// Items whose title normalizes to "" never merge with each other: each gets
// its own singleton group, so a feed full of blank titles cannot collapse
// into one bogus group.
func GroupItems[T GroupItem](items []T, mode SourceMode) []ContentGroup[T] {
	if len(items) == 0 {
		return nil
	}
	if mode == SourceModeSingle {
		groups := make([]ContentGroup[T], 0, len(items))
		for _, it := range items {
			groups = append(groups, ContentGroup[T]{
				Primary:   it,
				SourceIDs: []string{it.ContentSource()},
			})
		}
		return groups
	}

	var groups []ContentGroup[T]
	index := make(map[string]int, len(items))
	for _, it := range items {
		key := NormalizeTitle(it.ContentTitle())
		if key == "" {
			groups = append(groups, ContentGroup[T]{
				Primary:   it,
				SourceIDs: []string{it.ContentSource()},
			})
			continue
		}
		if gi, ok := index[key]; ok {
			g := &groups[gi]
			g.Alternatives = append(g.Alternatives, it)
			g.SourceIDs = appendSourceID(g.SourceIDs, it.ContentSource())
			continue
		}
		index[key] = len(groups)
		groups = append(groups, ContentGroup[T]{
			Primary:   it,
			SourceIDs: []string{it.ContentSource()},
		})
	}
	return groups
}

// SelectBestItem returns the group's primary. Kept as an explicit function so
// the tie-break policy has one home; see the GroupItems doc for why this is
// first-encountered rather than quality-ranked.
func SelectBestItem[T GroupItem](g ContentGroup[T]) T {
	return g.Primary
}

func appendSourceID(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
