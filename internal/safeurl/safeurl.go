package safeurl

import "net/url"

// IsHTTPOrHTTPS returns true if u is a valid URL with scheme http or https.
// Used to reject file://, ftp://, and other schemes when sources are added.
func IsHTTPOrHTTPS(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	s := parsed.Scheme
	return s == "http" || s == "https"
}

// Redact returns u with Xtream-style credential query parameters masked, for
// logging. Unparseable input is fully masked rather than leaked.
func Redact(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return "<invalid url>"
	}
	q := parsed.Query()
	changed := false
	for _, key := range []string{"username", "password", "token"} {
		if q.Has(key) {
			q.Set(key, "xxx")
			changed = true
		}
	}
	if changed {
		parsed.RawQuery = q.Encode()
	}
	return parsed.Redacted()
}
