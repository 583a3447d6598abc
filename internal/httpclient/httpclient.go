// Package httpclient provides the shared tuned HTTP client used for all
// playlist, portal, and guide fetches: connection pooling, brotli/gzip
// response decoding, and bounded retry with Retry-After support.
package httpclient

import (
	"net/http"
	"time"
)

const (
	DefaultTimeout         = 90 * time.Second // XMLTV feeds can be tens of MB
	DefaultIdleConnTimeout = 90 * time.Second
	MaxIdleConnsPerHost    = 8

	// UserAgent identifies us to providers; some portals reject the Go
	// default agent outright.
	UserAgent = "StreamHaven/1.0"
)

var defaultClient *http.Client

func init() {
	defaultClient = &http.Client{
		Timeout: DefaultTimeout,
		Transport: &decodingTransport{base: &http.Transport{
			MaxIdleConns:        64,
			MaxIdleConnsPerHost: MaxIdleConnsPerHost,
			IdleConnTimeout:     DefaultIdleConnTimeout,
		}},
	}
}

// Default returns the shared client. Responses are transparently decoded
// when the server compresses them (see decodingTransport).
func Default() *http.Client {
	return defaultClient
}

// WithTimeout returns a client sharing Default's transport but with its own
// timeout, for callers with slower upstreams (full VOD catalogs).
func WithTimeout(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: defaultClient.Transport,
	}
}
