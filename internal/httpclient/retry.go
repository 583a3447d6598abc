package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// RetryPolicy bounds the retry loop in DoWithRetry.
type RetryPolicy struct {
	MaxAttempts    int           // total attempts including the first
	InitialBackoff time.Duration // doubled after each retry
	MaxBackoff     time.Duration // cap on backoff and on honored Retry-After
}

// DefaultRetryPolicy suits portal indexing: a few attempts with exponential
// backoff, capped waits. Streaming paths should not retry at all.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:    4,
	InitialBackoff: 2 * time.Second,
	MaxBackoff:     60 * time.Second,
}

// DoWithRetry performs req, retrying transport errors and retryable statuses
// (408, 423, 429, 5xx) with exponential backoff. A Retry-After header is
// honored up to policy.MaxBackoff. Non-retryable statuses are returned to
// the caller as-is. Caller must close resp.Body when err == nil.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, policy RetryPolicy) (*http.Response, error) {
	if client == nil {
		client = Default()
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	backoff := policy.InitialBackoff
	var lastErr error
	for attempt := 1; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		switch {
		case err != nil:
			lastErr = err
		case !retryableStatus(resp.StatusCode):
			return resp, nil
		case attempt >= policy.MaxAttempts:
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("get %s: %s after %d attempts", req.URL.Redacted(), resp.Status, attempt)
		default:
			lastErr = fmt.Errorf("%s", resp.Status)
			if wait := retryAfter(resp, policy.MaxBackoff); wait > 0 {
				backoff = wait
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		if attempt >= policy.MaxAttempts {
			return nil, fmt.Errorf("get %s: %w", req.URL.Redacted(), lastErr)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > policy.MaxBackoff {
			backoff = policy.MaxBackoff
		}
	}
}

// retryableStatus: 429, 423, 408, and 5xx may succeed after backoff.
func retryableStatus(code int) bool {
	return code == 429 || code == 423 || code == 408 || (code >= 500 && code < 600)
}

// retryAfter parses Retry-After (seconds or HTTP-date), capped at max.
// Returns 0 when absent or invalid.
func retryAfter(resp *http.Response, max time.Duration) time.Duration {
	s := resp.Header.Get("Retry-After")
	if s == "" {
		return 0
	}
	if sec, err := strconv.Atoi(s); err == nil && sec > 0 {
		return minDuration(time.Duration(sec)*time.Second, max)
	}
	if t, err := http.ParseTime(s); err == nil {
		if d := time.Until(t); d > 0 {
			return minDuration(d, max)
		}
	}
	return 0
}

func minDuration(d, max time.Duration) time.Duration {
	if d > max {
		return max
	}
	return d
}
