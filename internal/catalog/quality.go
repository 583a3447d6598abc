package catalog

import "strings"

// Quality tiers for AssessQuality. Higher is better; QualityUnknown means no
// resolution token was found in either the URL or the display name.
const (
	QualityUnknown = 1 // no token matched
	QualitySD      = 2 // 480p / sd
	QualityHD      = 3 // 720p / hd
	QualityFHD     = 4 // 1080p / fhd
	QualityUHD     = 5 // 4k / 2160p
)

// qualityTokens maps resolution tokens to tiers, checked from highest tier
// down so the best match wins when a string carries several tokens.
var qualityTokens = []struct {
	token string
	score int
}{
	{"4k", QualityUHD},
	{"2160p", QualityUHD},
	{"1080p", QualityFHD},
	{"fhd", QualityFHD},
	{"720p", QualityHD},
	{"hd", QualityHD},
	{"480p", QualitySD},
	{"sd", QualitySD},
}

// AssessQuality scores a stream's perceived quality from resolution tokens in
// its URL and display name, case-insensitively. A match in either field is
// sufficient; when the fields disagree the higher tier wins. Returns a score
// in [1,5] with 1 meaning no token matched.
//
// Tokens only count when bounded by non-alphanumeric characters (or the ends
// of the string), so "hd" matches "HD Channel" and "stream_hd.m3u8" but not
// "shadow" or "fhd" (which is its own, higher tier).
func AssessQuality(streamURL, name string) int {
	best := QualityUnknown
	for _, field := range []string{streamURL, name} {
		if field == "" {
			continue
		}
		if score := scanQualityTokens(field); score > best {
			best = score
		}
	}
	return best
}

func scanQualityTokens(s string) int {
	lower := asciiLower(s)
	for _, qt := range qualityTokens {
		if containsToken(lower, qt.token) {
			return qt.score
		}
	}
	return QualityUnknown
}

// containsToken reports whether token occurs in s bounded by non-alphanumeric
// characters. s and token must already be lowercase.
func containsToken(s, token string) bool {
	for start := 0; start+len(token) <= len(s); {
		i := strings.Index(s[start:], token)
		if i < 0 {
			return false
		}
		i += start
		before := i == 0 || !isAlnum(s[i-1])
		after := i+len(token) == len(s) || !isAlnum(s[i+len(token)])
		if before && after {
			return true
		}
		start = i + 1
	}
	return false
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
