package catalog

import "strings"

// NormalizeTitle canonicalizes a raw title into the key used for cross-source
// grouping. Steps, in order: lowercase, collapse whitespace runs to one space
// and trim, strip ASCII punctuation (removed, not replaced), then strip a
// single leading article ("the ", "a ", "an ").
// Idempotent: NormalizeTitle(NormalizeTitle(s)) == NormalizeTitle(s).
//
// Non-ASCII runes pass through the punctuation strip untouched, so accented
// and non-Latin titles keep a usable grouping key.
func NormalizeTitle(title string) string {
	lower := strings.ToLower(title)

	var b strings.Builder
	b.Grow(len(lower))
	space := true // swallow leading whitespace
	for _, r := range lower {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if !space {
				b.WriteByte(' ')
				space = true
			}
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r > 127:
			b.WriteRune(r)
			space = false
		default:
			// ASCII punctuation: dropped outright
		}
	}
	s := strings.TrimRight(b.String(), " ")

	for _, article := range []string{"the ", "a ", "an "} {
		if strings.HasPrefix(s, article) {
			s = s[len(article):]
			break
		}
	}
	return s
}
