package catalog

import "testing"

func titles(ts ...string) []Movie {
	out := make([]Movie, 0, len(ts))
	for i, title := range ts {
		out = append(out, Movie{ID: "m" + string(rune('a'+i)), Title: title})
	}
	return out
}

func TestGroupFranchises_trailingNumbers(t *testing.T) {
	clusters := GroupFranchises(titles("Scream", "Scream 2", "Scream 3"))
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster; got %d: %v", len(clusters), clusterKeys(clusters))
	}
	members, ok := clusters["scream"]
	if !ok {
		t.Fatalf("missing scream cluster: %v", clusterKeys(clusters))
	}
	if len(members) != 3 {
		t.Errorf("scream cluster size = %d; want 3", len(members))
	}
}

func TestGroupFranchises_colonSubtitle(t *testing.T) {
	clusters := GroupFranchises(titles("Mad Max", "Mad Max: Fury Road"))
	members, ok := clusters["mad max"]
	if !ok {
		t.Fatalf("missing mad max cluster: %v", clusterKeys(clusters))
	}
	if len(members) < 2 {
		t.Errorf("mad max cluster size = %d; want >= 2", len(members))
	}
}

func TestGroupFranchises_sequelWords(t *testing.T) {
	clusters := GroupFranchises(titles("The Matrix", "The Matrix Reloaded", "The Matrix Revolutions"))
	members, ok := clusters["the matrix"]
	if !ok {
		t.Fatalf("missing matrix cluster: %v", clusterKeys(clusters))
	}
	if len(members) != 3 {
		t.Errorf("matrix cluster size = %d; want 3", len(members))
	}
}

func TestGroupFranchises_romanNumerals(t *testing.T) {
	clusters := GroupFranchises(titles("Rocky", "Rocky II", "Rocky III"))
	members, ok := clusters["rocky"]
	if !ok {
		t.Fatalf("missing rocky cluster: %v", clusterKeys(clusters))
	}
	if len(members) != 3 {
		t.Errorf("rocky cluster size = %d; want 3", len(members))
	}
}

func TestGroupFranchises_singletonsExcluded(t *testing.T) {
	clusters := GroupFranchises(titles("Inception", "Toy Story", "Toy Story 2"))
	for base, members := range clusters {
		for _, m := range members {
			if m.Title == "Inception" {
				t.Errorf("lone movie reported in cluster %q", base)
			}
		}
	}
	if _, ok := clusters["toy story"]; !ok {
		t.Errorf("missing toy story cluster: %v", clusterKeys(clusters))
	}
	if len(clusters) != 1 {
		t.Errorf("expected only the toy story cluster; got %v", clusterKeys(clusters))
	}
}

func TestGroupFranchises_ordinaryWordsNotRoman(t *testing.T) {
	// "Mix" is roman letters but not an uppercase numeral; no cluster.
	clusters := GroupFranchises(titles("Magic Mix", "Magic"))
	if len(clusters) != 0 {
		t.Errorf("unexpected clusters: %v", clusterKeys(clusters))
	}
}

func TestGroupFranchises_caseInsensitiveBases(t *testing.T) {
	clusters := GroupFranchises(titles("matrix", "Matrix Reloaded"))
	if _, ok := clusters["matrix"]; !ok {
		t.Fatalf("case-normalized bases did not merge: %v", clusterKeys(clusters))
	}
}

func TestGroupFranchises_empty(t *testing.T) {
	if clusters := GroupFranchises(nil); len(clusters) != 0 {
		t.Errorf("expected no clusters; got %d", len(clusters))
	}
}

func clusterKeys(m map[string][]Movie) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
