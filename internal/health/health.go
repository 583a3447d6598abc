// Package health runs preflight reachability checks against configured
// sources before an index pass, so a dead provider is reported up front
// instead of as a mid-ingest parse failure.
package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/streamhaven/streamhaven/internal/catalog"
	"github.com/streamhaven/streamhaven/internal/safeurl"
)

// CheckSource verifies the source answers HTTP 200 at its entry point: the
// playlist URL for M3U sources, the player_api endpoint for Xtream ones.
// Some providers don't support HEAD, so GET with an immediately discarded
// body is used.
func CheckSource(ctx context.Context, src catalog.Source) error {
	target, err := probeURL(src)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("source %q unreachable: %w", src.Name, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("source %q: %s returned HTTP %d", src.Name, safeurl.Redact(target), resp.StatusCode)
	}
	return nil
}

func probeURL(src catalog.Source) (string, error) {
	switch src.Kind {
	case catalog.SourceM3U:
		if src.URL == "" {
			return "", fmt.Errorf("source %q: no URL configured", src.Name)
		}
		return src.URL, nil
	case catalog.SourceXtream:
		if src.URL == "" || src.User == "" || src.Pass == "" {
			return "", fmt.Errorf("source %q: incomplete xtream credentials", src.Name)
		}
		return fmt.Sprintf("%s/player_api.php?username=%s&password=%s",
			src.URL, url.QueryEscape(src.User), url.QueryEscape(src.Pass)), nil
	default:
		return "", fmt.Errorf("source %q: unknown kind %q", src.Name, src.Kind)
	}
}
