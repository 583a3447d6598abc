package catalog

import "testing"

func TestAssessQuality_tiers(t *testing.T) {
	cases := []struct {
		url  string
		name string
		want int
	}{
		{"http://host/stream_4k.m3u8", "", 5},
		{"http://host/movie.2160p.mkv", "", 5},
		{"http://host/stream_1080p.m3u8", "", 4},
		{"", "Channel FHD", 4},
		{"http://host/stream_720p.m3u8", "", 3},
		{"", "HD Channel", 3},
		{"http://host/stream_480p.m3u8", "", 2},
		{"", "SD Feed", 2},
		{"http://host/stream.m3u8", "Unknown", 1},
		{"", "", 1},
	}
	for _, c := range cases {
		if got := AssessQuality(c.url, c.name); got != c.want {
			t.Errorf("AssessQuality(%q, %q) = %d; want %d", c.url, c.name, got, c.want)
		}
	}
}

func TestAssessQuality_higherTierWins(t *testing.T) {
	// Fields disagree: URL says 480p, name says 4K. UHD wins.
	if got := AssessQuality("http://host/stream_480p.m3u8", "Movie 4K"); got != 5 {
		t.Errorf("got %d; want 5", got)
	}
	// One string carries two tokens: the higher one wins.
	if got := AssessQuality("http://host/hd/stream_1080p.m3u8", ""); got != 4 {
		t.Errorf("got %d; want 4", got)
	}
}

func TestAssessQuality_tokenBoundaries(t *testing.T) {
	// "hd" inside a word never matches; "fhd" is its own tier.
	if got := AssessQuality("", "Shadow Theatre"); got != 1 {
		t.Errorf("Shadow: got %d; want 1", got)
	}
	if got := AssessQuality("", "fhd"); got != 4 {
		t.Errorf("fhd: got %d; want 4", got)
	}
	if got := AssessQuality("http://host/shdt/x.m3u8", ""); got != 1 {
		t.Errorf("shdt: got %d; want 1", got)
	}
}
