package catalog

import "testing"

func movie(id, source, title string) Movie {
	return Movie{ID: id, SourceID: source, Title: title, StreamURL: "http://host/" + id}
}

func TestGroupItems_combined(t *testing.T) {
	items := []Movie{
		movie("m1", "src-a", "Inception"),
		movie("m2", "src-b", "INCEPTION"),
		movie("m3", "src-a", "The Godfather"),
		movie("m4", "src-b", "Godfather"),
		movie("m5", "src-a", "Heat"),
	}
	groups := GroupItems(items, SourceModeCombined)
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups; got %d", len(groups))
	}
	if groups[0].Primary.ID != "m1" || len(groups[0].Alternatives) != 1 || groups[0].Alternatives[0].ID != "m2" {
		t.Errorf("inception group: %+v", groups[0])
	}
	if len(groups[0].SourceIDs) != 2 {
		t.Errorf("inception sources: %v", groups[0].SourceIDs)
	}
	if groups[1].Primary.ID != "m3" || groups[1].ItemCount() != 2 {
		t.Errorf("godfather group: %+v", groups[1])
	}
	if groups[2].Primary.ID != "m5" || groups[2].ItemCount() != 1 {
		t.Errorf("heat group: %+v", groups[2])
	}
}

func TestGroupItems_partition(t *testing.T) {
	items := []Movie{
		movie("m1", "a", "X"), movie("m2", "b", "x"), movie("m3", "a", "Y"),
		movie("m4", "c", "the x"), movie("m5", "b", "Z"), movie("m6", "a", ""),
	}
	groups := GroupItems(items, SourceModeCombined)
	total := 0
	seen := map[string]bool{}
	for _, g := range groups {
		total += g.ItemCount()
		for _, it := range g.Items() {
			if seen[it.ID] {
				t.Errorf("item %s appears in more than one group", it.ID)
			}
			seen[it.ID] = true
		}
	}
	if total != len(items) {
		t.Errorf("sum of group sizes = %d; want %d", total, len(items))
	}
}

func TestGroupItems_single(t *testing.T) {
	items := []Movie{
		movie("m1", "a", "Inception"),
		movie("m2", "b", "Inception"),
	}
	groups := GroupItems(items, SourceModeSingle)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups; got %d", len(groups))
	}
	for i, g := range groups {
		if g.ItemCount() != 1 || len(g.Alternatives) != 0 {
			t.Errorf("group %d not a singleton: %+v", i, g)
		}
	}
}

func TestGroupItems_emptyTitlesNeverMerge(t *testing.T) {
	items := []Movie{
		movie("m1", "a", ""),
		movie("m2", "b", "   "),
		movie("m3", "a", "!!!"),
	}
	groups := GroupItems(items, SourceModeCombined)
	if len(groups) != 3 {
		t.Fatalf("blank titles merged: got %d groups; want 3", len(groups))
	}
}

func TestGroupItems_empty(t *testing.T) {
	if groups := GroupItems([]Movie(nil), SourceModeCombined); len(groups) != 0 {
		t.Errorf("expected no groups; got %d", len(groups))
	}
}

func TestGroupItems_channels(t *testing.T) {
	chans := []Channel{
		{ID: "c1", SourceID: "a", Name: "News 24"},
		{ID: "c2", SourceID: "b", Name: "NEWS 24"},
	}
	groups := GroupItems(chans, SourceModeCombined)
	if len(groups) != 1 || groups[0].ItemCount() != 2 {
		t.Fatalf("groups: %+v", groups)
	}
	if SelectBestItem(groups[0]).ID != "c1" {
		t.Errorf("primary = %s; want c1", SelectBestItem(groups[0]).ID)
	}
}

func TestGroupItems_deterministic(t *testing.T) {
	items := []Movie{
		movie("m1", "a", "B Movie"), movie("m2", "b", "A Movie"),
		movie("m3", "a", "b movie"), movie("m4", "b", "a movie"),
	}
	first := GroupItems(items, SourceModeCombined)
	for i := 0; i < 10; i++ {
		again := GroupItems(items, SourceModeCombined)
		if len(again) != len(first) {
			t.Fatalf("group count changed between runs")
		}
		for j := range again {
			if again[j].Primary.ID != first[j].Primary.ID {
				t.Fatalf("primary changed between runs: %s vs %s", again[j].Primary.ID, first[j].Primary.ID)
			}
		}
	}
}
