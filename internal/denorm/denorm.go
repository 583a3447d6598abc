// Package denorm maintains the cached derived fields on content items:
// watch state and favorite flags for movies and series, episode counters,
// and the EPG presence snapshot on channels. The fact tables in the store
// stay authoritative; everything computed here can be thrown away and
// rebuilt from them at any time.
package denorm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/streamhaven/streamhaven/internal/catalog"
	"github.com/streamhaven/streamhaven/internal/metrics"
	"github.com/streamhaven/streamhaven/internal/store"
)

// DefaultWatchedThreshold is the raw progress at or above which an item
// counts as finished.
const DefaultWatchedThreshold = 0.9

// Engine recomputes derived fields. Updates to different items run
// concurrently; updates to the same item are serialized by a per-item lock
// so the last writer cannot interleave with a concurrent recompute.
type Engine struct {
	store     *store.Store
	threshold float64
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New builds an engine over the store. threshold <= 0 selects the default.
func New(st *store.Store, threshold float64) *Engine {
	if threshold <= 0 {
		threshold = DefaultWatchedThreshold
	}
	return &Engine{
		store:     st,
		threshold: threshold,
		now:       time.Now,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (e *Engine) itemLock(id string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	return l
}

// UpdateMovie recomputes a movie's derived fields for one profile.
func (e *Engine) UpdateMovie(ctx context.Context, profileID, movieID string) error {
	l := e.itemLock(movieID)
	l.Lock()
	defer l.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	d, err := e.movieDerived(profileID, movieID)
	if err != nil {
		return fmt.Errorf("derive movie %s: %w", movieID, err)
	}
	return e.store.WriteMovieDerived(movieID, d)
}

func (e *Engine) movieDerived(profileID, movieID string) (catalog.Derived, error) {
	var d catalog.Derived
	fav, err := e.store.IsFavorite(profileID, movieID)
	if err != nil {
		return d, err
	}
	d.IsFavorite = fav

	progress, at, ok, err := e.store.WatchProgress(profileID, movieID)
	if err != nil {
		return d, err
	}
	if ok {
		d.WatchProgressPercent = clampPercent(progress)
		d.HasBeenWatched = progress >= e.threshold
		t := at
		d.LastWatchedAt = &t
	}
	return d, nil
}

// UpdateSeries recomputes a series' derived fields, including the episode
// counters shown on the shelf.
func (e *Engine) UpdateSeries(ctx context.Context, profileID, seriesID string) error {
	l := e.itemLock(seriesID)
	l.Lock()
	defer l.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	sr, err := e.store.SeriesByID(seriesID)
	if err != nil {
		return fmt.Errorf("derive series %s: %w", seriesID, err)
	}
	var d catalog.Derived
	d.IsFavorite, err = e.store.IsFavorite(profileID, seriesID)
	if err != nil {
		return err
	}

	total := sr.EpisodeCount()
	watched, err := e.store.WatchedEpisodeCount(profileID, seriesID, e.threshold)
	if err != nil {
		return err
	}
	d.TotalEpisodeCount = total
	d.UnwatchedEpisodeCount = total - watched
	d.HasBeenWatched = total > 0 && watched == total
	if total > 0 {
		d.WatchProgressPercent = clampPercent(float64(watched) / float64(total))
	}

	if _, at, ok, err := e.store.LastWatchedEpisode(profileID, seriesID); err != nil {
		return err
	} else if ok {
		t := at
		d.LastWatchedAt = &t
	}
	return e.store.WriteSeriesDerived(seriesID, d)
}

// UpdateChannel recomputes a channel's EPG snapshot: whether any guide data
// exists, what airs right now, and when the snapshot was taken.
func (e *Engine) UpdateChannel(ctx context.Context, profileID, channelID string) error {
	l := e.itemLock(channelID)
	l.Lock()
	defer l.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	var d catalog.Derived
	fav, err := e.store.IsFavorite(profileID, channelID)
	if err != nil {
		return err
	}
	d.IsFavorite = fav

	n, err := e.store.EPGCountForChannel(channelID)
	if err != nil {
		return fmt.Errorf("derive channel %s: %w", channelID, err)
	}
	now := e.now().UTC()
	if n > 0 {
		d.HasEPG = true
		cur, err := e.store.CurrentProgramme(channelID, now)
		if err != nil {
			return err
		}
		if cur != nil {
			d.CurrentProgramTitle = cur.Title
		}
	}
	d.EPGLastUpdated = &now
	return e.store.WriteChannelDerived(channelID, d)
}

// RebuildAll walks every stored item and recomputes its derived fields.
// Individual item failures are logged and skipped so one torn record cannot
// wedge the whole rebuild; cancellation is honored between items.
func (e *Engine) RebuildAll(ctx context.Context, profileID string) error {
	started := e.now()
	defer func() {
		metrics.RebuildDuration.Observe(time.Since(started).Seconds())
	}()

	movieIDs, err := e.store.AllMovieIDs()
	if err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}
	seriesIDs, err := e.store.AllSeriesIDs()
	if err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}
	channelIDs, err := e.store.AllChannelIDs()
	if err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}

	skipped := 0
	step := func(kind, id string, update func(context.Context, string, string) error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := update(ctx, profileID, id); err != nil {
			if ctx.Err() != nil {
				return err
			}
			// Torn or freshly deleted record; the next rebuild catches it.
			if !errors.Is(err, sql.ErrNoRows) {
				log.Printf("denorm: skipping %s %s: %v", kind, id, err)
			}
			skipped++
		}
		return nil
	}

	for _, id := range movieIDs {
		if err := step("movie", id, e.UpdateMovie); err != nil {
			return err
		}
	}
	for _, id := range seriesIDs {
		if err := step("series", id, e.UpdateSeries); err != nil {
			return err
		}
	}
	for _, id := range channelIDs {
		if err := step("channel", id, e.UpdateChannel); err != nil {
			return err
		}
	}
	if skipped > 0 {
		log.Printf("denorm: rebuild finished with %d item(s) skipped", skipped)
	}
	return nil
}

// clampPercent converts raw progress to a display percentage in [0,100].
func clampPercent(progress float64) int {
	pct := int(math.Round(progress * 100))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
