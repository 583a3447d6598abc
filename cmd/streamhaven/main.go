// Command streamhaven: multi-source IPTV catalog reconciliation.
//
//	source      Manage playlist sources (add / list / remove / enable / disable)
//	index       Fetch and parse every active source, upsert content, refresh derived fields
//	epg         Ingest an XMLTV guide, link programmes to channels, purge stale entries
//	groups      Print the cross-source content groups for one content kind
//	franchises  Print detected movie franchises
//	rebuild     Recompute every item's denormalized fields from the fact tables
//	watched     Record watch progress for an item
//	favorite    Mark or unmark an item as a favorite
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/streamhaven/streamhaven/internal/cache"
	"github.com/streamhaven/streamhaven/internal/catalog"
	"github.com/streamhaven/streamhaven/internal/config"
	"github.com/streamhaven/streamhaven/internal/denorm"
	"github.com/streamhaven/streamhaven/internal/epglink"
	"github.com/streamhaven/streamhaven/internal/health"
	"github.com/streamhaven/streamhaven/internal/httpclient"
	"github.com/streamhaven/streamhaven/internal/indexer"
	"github.com/streamhaven/streamhaven/internal/metrics"
	"github.com/streamhaven/streamhaven/internal/safeurl"
	"github.com/streamhaven/streamhaven/internal/store"
)

func main() {
	_ = config.LoadEnvFile(".env")
	log.SetFlags(log.LstdFlags)
	log.SetPrefix("[streamhaven] ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg := config.Load()

	var err error
	switch os.Args[1] {
	case "source":
		err = cmdSource(cfg, os.Args[2:])
	case "index":
		err = cmdIndex(cfg, os.Args[2:])
	case "epg":
		err = cmdEPG(cfg, os.Args[2:])
	case "groups":
		err = cmdGroups(cfg, os.Args[2:])
	case "franchises":
		err = cmdFranchises(cfg, os.Args[2:])
	case "rebuild":
		err = cmdRebuild(cfg, os.Args[2:])
	case "watched":
		err = cmdWatched(cfg, os.Args[2:])
	case "favorite":
		err = cmdFavorite(cfg, os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		log.Printf("%s failed: %v", os.Args[1], err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <source|index|epg|groups|franchises|rebuild|watched|favorite> [flags]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  source      Manage playlist sources (add/list/remove/enable/disable)\n")
	fmt.Fprintf(os.Stderr, "  index       Fetch all active sources, upsert content, refresh derived fields\n")
	fmt.Fprintf(os.Stderr, "  epg         Ingest an XMLTV guide and purge entries past retention\n")
	fmt.Fprintf(os.Stderr, "  groups      Print cross-source content groups (-kind movies|series|channels)\n")
	fmt.Fprintf(os.Stderr, "  franchises  Print detected movie franchises\n")
	fmt.Fprintf(os.Stderr, "  rebuild     Recompute denormalized fields from the fact tables\n")
	fmt.Fprintf(os.Stderr, "  watched     Record watch progress (-item ID -progress 0.95)\n")
	fmt.Fprintf(os.Stderr, "  favorite    Mark an item as favorite (-item ID, -remove to clear)\n")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// maybeServeMetrics starts the /metrics listener when configured. Long-lived
// subcommands call this; it returns immediately.
func maybeServeMetrics(cfg *config.Config) {
	if cfg.MetricsAddr == "" {
		return
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			log.Printf("metrics listener: %v", err)
		}
	}()
}

func cmdSource(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("source", flag.ExitOnError)
	name := fs.String("name", "", "Display name for the source (add)")
	kind := fs.String("kind", "m3u", "Source kind: m3u or xtream (add)")
	srcURL := fs.String("url", "", "Playlist URL or Xtream portal base URL (add)")
	user := fs.String("user", "", "Xtream username (add)")
	pass := fs.String("pass", "", "Xtream password (add)")
	id := fs.String("id", "", "Source id (remove/enable/disable)")
	if len(args) < 1 {
		return errors.New("usage: source <add|list|remove|enable|disable> [flags]")
	}
	verb := args[0]
	_ = fs.Parse(args[1:])

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	switch verb {
	case "add":
		if *name == "" || *srcURL == "" {
			return errors.New("source add: -name and -url are required")
		}
		if !safeurl.IsHTTPOrHTTPS(*srcURL) {
			return fmt.Errorf("source add: %q is not an http(s) URL", *srcURL)
		}
		k := catalog.SourceKind(strings.ToLower(*kind))
		if k != catalog.SourceM3U && k != catalog.SourceXtream {
			return fmt.Errorf("source add: unknown kind %q", *kind)
		}
		if k == catalog.SourceXtream && (*user == "" || *pass == "") {
			return errors.New("source add: xtream sources need -user and -pass")
		}
		src, err := st.AddSource(*name, k, *srcURL, *user, *pass)
		if err != nil {
			return err
		}
		log.Printf("Added %s source %q (%s)", src.Kind, src.Name, src.ID)
		return nil
	case "list":
		sources, err := st.Sources()
		if err != nil {
			return err
		}
		if len(sources) == 0 {
			fmt.Println("no sources configured")
			return nil
		}
		for _, src := range sources {
			state := "active"
			if !src.Active {
				state = "inactive"
			}
			fmt.Printf("%s  %-8s %-8s %-24s %s\n", src.ID, src.Kind, state, src.Name, safeurl.Redact(src.URL))
		}
		return nil
	case "remove":
		if *id == "" {
			return errors.New("source remove: -id is required")
		}
		if err := st.RemoveSource(*id); err != nil {
			return err
		}
		log.Printf("Removed source %s and its content", *id)
		return nil
	case "enable", "disable":
		if *id == "" {
			return fmt.Errorf("source %s: -id is required", verb)
		}
		return st.SetSourceActive(*id, verb == "enable")
	default:
		return fmt.Errorf("source: unknown verb %q", verb)
	}
}

func cmdIndex(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	skipHealth := fs.Bool("skip-health", false, "Skip the per-source reachability preflight")
	skipRebuild := fs.Bool("skip-rebuild", false, "Skip the derived-field refresh after ingest")
	_ = fs.Parse(args)

	ctx, cancel := signalContext()
	defer cancel()
	maybeServeMetrics(cfg)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := bootstrapSources(st, cfg); err != nil {
		return err
	}
	sources, err := st.Sources()
	if err != nil {
		return err
	}
	var active []catalog.Source
	for _, src := range sources {
		if src.Active {
			active = append(active, src)
		}
	}
	if len(active) == 0 {
		return errors.New("no active sources; add one with `streamhaven source add`")
	}

	client := httpclient.WithTimeout(cfg.HTTPTimeout)
	sem := make(chan struct{}, cfg.FetchConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var failures []string

	for _, src := range active {
		wg.Add(1)
		go func(src catalog.Source) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			if err := indexSource(ctx, cfg, st, client, src, *skipHealth); err != nil {
				log.Printf("Source %q: %v", src.Name, err)
				mu.Lock()
				failures = append(failures, src.Name)
				mu.Unlock()
			}
		}(src)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(failures) == len(active) {
		return fmt.Errorf("all %d sources failed", len(active))
	}
	if len(failures) > 0 {
		log.Printf("Index finished with %d/%d sources failed: %s", len(failures), len(active), strings.Join(failures, ", "))
	}

	if *skipRebuild {
		return nil
	}
	eng := denorm.New(st, cfg.WatchedThreshold)
	return eng.RebuildAll(ctx, cfg.ProfileID)
}

// bootstrapSources registers the provider described by the environment when
// the store has no sources yet, so a fresh install indexes from a .env alone.
func bootstrapSources(st *store.Store, cfg *config.Config) error {
	sources, err := st.Sources()
	if err != nil || len(sources) > 0 {
		return err
	}
	if cfg.HasBootstrapXtream() {
		src, err := st.AddSource("bootstrap", catalog.SourceXtream, cfg.ProviderBaseURL, cfg.ProviderUser, cfg.ProviderPass)
		if err != nil {
			return err
		}
		log.Printf("Bootstrapped xtream source %s from environment", src.ID)
		return nil
	}
	if m3u := cfg.BootstrapM3UURL(); m3u != "" {
		src, err := st.AddSource("bootstrap", catalog.SourceM3U, m3u, "", "")
		if err != nil {
			return err
		}
		log.Printf("Bootstrapped m3u source %s from environment", src.ID)
	}
	return nil
}

func indexSource(ctx context.Context, cfg *config.Config, st *store.Store, client *http.Client, src catalog.Source, skipHealth bool) error {
	if !skipHealth {
		if err := health.CheckSource(ctx, src); err != nil {
			return err
		}
	}
	switch src.Kind {
	case catalog.SourceM3U:
		res, err := fetchM3USnapshot(ctx, cfg, client, src)
		if err != nil {
			return err
		}
		if err := st.UpsertChannels(res.Channels); err != nil {
			return err
		}
		if err := st.UpsertMovies(res.Movies); err != nil {
			return err
		}
		if err := st.UpsertSeries(res.Series); err != nil {
			return err
		}
		log.Printf("Source %q: %d channels, %d movies, %d series (%d dropped)",
			src.Name, len(res.Channels), len(res.Movies), len(res.Series), res.Dropped)
		return nil
	case catalog.SourceXtream:
		limiter := rate.NewLimiter(rate.Limit(cfg.XtreamRate), cfg.XtreamBurst)
		res, err := indexer.FetchXtream(ctx, src, client, limiter)
		if err != nil {
			return err
		}
		for _, cerr := range res.CategoryErrors {
			log.Printf("Source %q: %v", src.Name, cerr)
		}
		if err := st.UpsertChannels(res.Channels); err != nil {
			return err
		}
		if err := st.UpsertMovies(res.Movies); err != nil {
			return err
		}
		if err := st.UpsertSeries(res.Series); err != nil {
			return err
		}
		note := ""
		if res.Partial() {
			note = " (partial)"
		}
		log.Printf("Source %q: %d channels, %d movies, %d series%s",
			src.Name, len(res.Channels), len(res.Movies), len(res.Series), note)
		return nil
	default:
		return fmt.Errorf("unknown source kind %q", src.Kind)
	}
}

// fetchM3USnapshot fetches a playlist, snapshotting the raw bytes to the
// cache dir when one is configured so the last good feed can be inspected
// or re-parsed offline.
func fetchM3USnapshot(ctx context.Context, cfg *config.Config, client *http.Client, src catalog.Source) (indexer.M3UResult, error) {
	if cfg.CacheDir == "" {
		return indexer.FetchM3U(ctx, src.URL, src.ID, client)
	}
	raw, err := fetchRaw(ctx, client, src.URL)
	if err != nil {
		return indexer.M3UResult{}, err
	}
	if err := cache.WriteFeed(cfg.CacheDir, src.ID, "m3u", raw); err != nil {
		log.Printf("Source %q: snapshot not written: %v", src.Name, err)
	}
	return indexer.ParseM3UBytes(raw, src.ID)
}

func fetchRaw(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	resp, err := httpclient.DoWithRetry(ctx, client, req, httpclient.DefaultRetryPolicy)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func cmdEPG(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("epg", flag.ExitOnError)
	guideURL := fs.String("url", "", "XMLTV guide URL (default: STREAMHAVEN_XMLTV_URL)")
	_ = fs.Parse(args)

	target := *guideURL
	if target == "" {
		target = cfg.XMLTVURL
	}
	if target == "" {
		return errors.New("epg: no guide URL; pass -url or set STREAMHAVEN_XMLTV_URL")
	}

	ctx, cancel := signalContext()
	defer cancel()
	maybeServeMetrics(cfg)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	channels, err := st.ActiveChannels()
	if err != nil {
		return err
	}
	if len(channels) == 0 {
		return errors.New("epg: no active channels; run `streamhaven index` first")
	}
	resolver := epglink.NewResolver(channels)
	log.Printf("EPG linking against %d channels (%d resolvable)", len(channels), resolver.Linked())

	client := httpclient.WithTimeout(cfg.HTTPTimeout)
	var res indexer.XMLTVResult
	if cfg.CacheDir != "" {
		raw, err := fetchRaw(ctx, client, target)
		if err != nil {
			return err
		}
		if err := cache.WriteFeed(cfg.CacheDir, "xmltv", "xml", raw); err != nil {
			log.Printf("Guide snapshot not written: %v", err)
		}
		res, err = indexer.ParseXMLTV(bytes.NewReader(raw), resolver)
		if err != nil {
			return err
		}
	} else {
		res, err = indexer.FetchXMLTV(ctx, target, resolver, client)
		if err != nil {
			return err
		}
	}

	added, err := st.UpsertEPG(res.Entries)
	if err != nil {
		return err
	}
	purged, err := st.PurgeEPGBefore(time.Now().Add(-cfg.EPGRetention))
	if err != nil {
		return err
	}
	log.Printf("Guide ingested: %d entries parsed (%d new, %d dropped), %d purged past retention",
		len(res.Entries), added, res.Dropped, purged)

	// Refresh each channel's guide snapshot fields.
	eng := denorm.New(st, cfg.WatchedThreshold)
	for _, ch := range channels {
		if err := eng.UpdateChannel(ctx, cfg.ProfileID, ch.ID); err != nil {
			if ctx.Err() != nil {
				return err
			}
			log.Printf("Channel %s: derived update failed: %v", ch.ID, err)
		}
	}
	return nil
}

func cmdGroups(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("groups", flag.ExitOnError)
	kind := fs.String("kind", "movies", "Content kind: movies, series, or channels")
	mode := fs.String("mode", "", "Source mode: combined or single (default: STREAMHAVEN_SOURCE_MODE)")
	verbose := fs.Bool("v", false, "Print every group, not just merged ones")
	_ = fs.Parse(args)

	m := catalog.SourceMode(cfg.SourceMode)
	if *mode != "" {
		m = catalog.SourceMode(strings.ToLower(*mode))
	}
	if m != catalog.SourceModeCombined && m != catalog.SourceModeSingle {
		return fmt.Errorf("groups: unknown mode %q", m)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	names, err := sourceNames(st)
	if err != nil {
		return err
	}

	switch *kind {
	case "movies":
		movies, err := st.ActiveMovies()
		if err != nil {
			return err
		}
		quality := func(m catalog.Movie) int { return catalog.AssessQuality(m.StreamURL, m.Title) }
		return printGroups(catalog.GroupItems(movies, m), "movies", names, quality, *verbose)
	case "series":
		series, err := st.ActiveSeries()
		if err != nil {
			return err
		}
		return printGroups(catalog.GroupItems(series, m), "series", names, nil, *verbose)
	case "channels":
		channels, err := st.ActiveChannels()
		if err != nil {
			return err
		}
		quality := func(c catalog.Channel) int { return catalog.AssessQuality(c.StreamURL, c.Name) }
		return printGroups(catalog.GroupItems(channels, m), "channels", names, quality, *verbose)
	default:
		return fmt.Errorf("groups: unknown kind %q", *kind)
	}
}

// sourceNames maps source ids to display names for group annotation.
func sourceNames(st *store.Store) (map[string]string, error) {
	sources, err := st.Sources()
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(sources))
	for _, src := range sources {
		names[src.ID] = src.Name
	}
	return names, nil
}

// printGroups lists groups with their source annotations and, when a quality
// function is given, the best stream quality tier seen across the group.
func printGroups[T catalog.GroupItem](groups []catalog.ContentGroup[T], kind string, names map[string]string, quality func(T) int, verbose bool) error {
	metrics.GroupsComputed.WithLabelValues(kind).Set(float64(len(groups)))
	merged := 0
	for _, g := range groups {
		if g.ItemCount() > 1 {
			merged++
		}
		if !verbose && g.ItemCount() == 1 {
			continue
		}
		labels := make([]string, 0, len(g.SourceIDs))
		for _, id := range g.SourceIDs {
			if name, ok := names[id]; ok {
				labels = append(labels, name)
			} else {
				labels = append(labels, id)
			}
		}
		tier := ""
		if quality != nil {
			best := 0
			for _, it := range g.Items() {
				if q := quality(it); q > best {
					best = q
				}
			}
			tier = fmt.Sprintf("  q%d", best)
		}
		fmt.Printf("%-50s %d item(s) [%s]%s\n",
			g.Primary.ContentTitle(), g.ItemCount(), strings.Join(labels, ", "), tier)
	}
	log.Printf("%d %s groups (%d merged across sources)", len(groups), kind, merged)
	return nil
}

func cmdFranchises(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("franchises", flag.ExitOnError)
	_ = fs.Parse(args)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	movies, err := st.ActiveMovies()
	if err != nil {
		return err
	}
	franchises := catalog.GroupFranchises(movies)
	names := make([]string, 0, len(franchises))
	for name := range franchises {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		members := franchises[name]
		fmt.Printf("%s (%d):\n", name, len(members))
		for _, m := range members {
			fmt.Printf("  %s\n", m.Title)
		}
	}
	log.Printf("%d franchises across %d movies", len(franchises), len(movies))
	return nil
}

func cmdRebuild(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("rebuild", flag.ExitOnError)
	_ = fs.Parse(args)

	ctx, cancel := signalContext()
	defer cancel()
	maybeServeMetrics(cfg)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	started := time.Now()
	eng := denorm.New(st, cfg.WatchedThreshold)
	if err := eng.RebuildAll(ctx, cfg.ProfileID); err != nil {
		return err
	}
	log.Printf("Rebuild finished in %s", time.Since(started).Round(time.Millisecond))
	return nil
}

func cmdWatched(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("watched", flag.ExitOnError)
	item := fs.String("item", "", "Movie or episode id")
	progress := fs.Float64("progress", 1.0, "Playback progress, 0.0-1.0")
	_ = fs.Parse(args)
	if *item == "" {
		return errors.New("watched: -item is required")
	}

	ctx, cancel := signalContext()
	defer cancel()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.SetWatchProgress(cfg.ProfileID, *item, *progress, time.Now()); err != nil {
		return err
	}
	return updateItemDerived(ctx, cfg, st, *item)
}

func cmdFavorite(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("favorite", flag.ExitOnError)
	item := fs.String("item", "", "Movie, series, or channel id")
	remove := fs.Bool("remove", false, "Remove instead of add")
	_ = fs.Parse(args)
	if *item == "" {
		return errors.New("favorite: -item is required")
	}

	ctx, cancel := signalContext()
	defer cancel()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.SetFavorite(cfg.ProfileID, *item, !*remove); err != nil {
		return err
	}
	return updateItemDerived(ctx, cfg, st, *item)
}

// updateItemDerived refreshes the derived fields of whichever item the id
// names; an episode id refreshes its series.
func updateItemDerived(ctx context.Context, cfg *config.Config, st *store.Store, itemID string) error {
	eng := denorm.New(st, cfg.WatchedThreshold)
	kind, err := st.ItemKind(itemID)
	if err != nil {
		return err
	}
	switch kind {
	case "movie":
		return eng.UpdateMovie(ctx, cfg.ProfileID, itemID)
	case "series":
		return eng.UpdateSeries(ctx, cfg.ProfileID, itemID)
	case "channel":
		return eng.UpdateChannel(ctx, cfg.ProfileID, itemID)
	case "episode":
		seriesID, err := st.SeriesIDForEpisode(itemID)
		if err != nil {
			return err
		}
		return eng.UpdateSeries(ctx, cfg.ProfileID, seriesID)
	default:
		return fmt.Errorf("unknown item %s", itemID)
	}
}
