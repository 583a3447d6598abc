package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds catalog, ingest, and guide settings.
// Load from env; call LoadEnvFile(".env") before Load() to use a .env file.
type Config struct {
	// Storage
	DBPath   string // sqlite database, e.g. /var/lib/streamhaven/catalog.db
	CacheDir string // raw feed snapshots; empty disables snapshotting

	// Profile whose watch history and favorites drive denormalization.
	ProfileID string

	// Grouping
	SourceMode string // "combined" merges same-title items across sources; "single" keeps them apart

	// Denormalization
	WatchedThreshold float64 // raw progress at which an item counts as finished

	// EPG
	EPGRetention time.Duration // entries ending more than this far in the past are purged
	XMLTVURL     string        // optional default XMLTV feed for the epg subcommand

	// Ingest
	HTTPTimeout      time.Duration
	FetchConcurrency int     // sources fetched in parallel during index
	XtreamRate       float64 // portal API calls per second per source
	XtreamBurst      int

	// Bootstrap provider: when set, index registers this source on first run
	// so a fresh install needs nothing but a .env file.
	ProviderBaseURL string // Xtream portal, e.g. http://provider:8080
	ProviderUser    string
	ProviderPass    string
	M3UURL          string // full playlist URL; overrides the Xtream get.php form

	// Observability
	MetricsAddr string // e.g. :9102; empty disables the /metrics listener
}

// Load reads config from environment with defaults suitable for a local run.
func Load() *Config {
	c := &Config{
		DBPath:           getEnv("STREAMHAVEN_DB", "./streamhaven.db"),
		CacheDir:         os.Getenv("STREAMHAVEN_CACHE"),
		ProfileID:        getEnv("STREAMHAVEN_PROFILE", "default"),
		SourceMode:       getEnvSourceMode("STREAMHAVEN_SOURCE_MODE", "combined"),
		WatchedThreshold: getEnvFloat("STREAMHAVEN_WATCHED_THRESHOLD", 0.9),
		EPGRetention:     getEnvDuration("STREAMHAVEN_EPG_RETENTION", 24*time.Hour),
		XMLTVURL:         os.Getenv("STREAMHAVEN_XMLTV_URL"),
		HTTPTimeout:      getEnvDuration("STREAMHAVEN_HTTP_TIMEOUT", 90*time.Second),
		FetchConcurrency: getEnvInt("STREAMHAVEN_FETCH_CONCURRENCY", 4),
		XtreamRate:       getEnvFloat("STREAMHAVEN_XTREAM_RATE", 4),
		XtreamBurst:      getEnvInt("STREAMHAVEN_XTREAM_BURST", 2),
		ProviderBaseURL:  os.Getenv("STREAMHAVEN_PROVIDER_URL"),
		ProviderUser:     os.Getenv("STREAMHAVEN_PROVIDER_USER"),
		ProviderPass:     os.Getenv("STREAMHAVEN_PROVIDER_PASS"),
		M3UURL:           os.Getenv("STREAMHAVEN_M3U_URL"),
		MetricsAddr:      os.Getenv("STREAMHAVEN_METRICS_ADDR"),
	}
	if c.WatchedThreshold <= 0 || c.WatchedThreshold > 1 {
		c.WatchedThreshold = 0.9
	}
	if c.EPGRetention <= 0 {
		c.EPGRetention = 24 * time.Hour
	}
	if c.FetchConcurrency <= 0 {
		c.FetchConcurrency = 4
	}
	if c.XtreamRate <= 0 {
		c.XtreamRate = 4
	}
	if c.XtreamBurst <= 0 {
		c.XtreamBurst = 2
	}
	return c
}

// BootstrapM3UURL returns the playlist URL for the bootstrap provider:
// M3UURL if set, otherwise the Xtream get.php form built from base URL and
// credentials. Empty when no bootstrap provider is configured.
func (c *Config) BootstrapM3UURL() string {
	if c.M3UURL != "" {
		return c.M3UURL
	}
	if c.ProviderBaseURL == "" || c.ProviderUser == "" || c.ProviderPass == "" {
		return ""
	}
	base := strings.TrimSuffix(c.ProviderBaseURL, "/")
	return base + "/get.php?username=" + url.QueryEscape(c.ProviderUser) +
		"&password=" + url.QueryEscape(c.ProviderPass) + "&type=m3u_plus&output=ts"
}

// HasBootstrapXtream reports whether the env describes a usable Xtream portal.
func (c *Config) HasBootstrapXtream() bool {
	return c.ProviderBaseURL != "" && c.ProviderUser != "" && c.ProviderPass != ""
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, _ := strconv.Atoi(v)
		return n
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

// getEnvSourceMode normalizes STREAMHAVEN_SOURCE_MODE to "combined" or "single".
func getEnvSourceMode(key, defaultVal string) string {
	switch strings.TrimSpace(strings.ToLower(os.Getenv(key))) {
	case "single":
		return "single"
	case "combined":
		return "combined"
	case "":
		return defaultVal
	default:
		return defaultVal
	}
}
