package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/polygon-dashboard/internal/domain"
	"github.com/couchcryptid/storm-data-shared/retry"
)

// asyncRefreshTimeout bounds a fire-and-forget refresh.
const asyncRefreshTimeout = 30 * time.Second

// FeedStatus describes the feed currently loaded into the timeline.
type FeedStatus struct {
	SourceID string
	Field    string
	Location domain.Point
	Start    time.Time
	End      time.Time
	Points   int
	LoadedAt time.Time
}

// Feed returns the loaded feed, or false before the first successful load.
func (d *Dashboard) Feed() (FeedStatus, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.feed == nil {
		return FeedStatus{}, false
	}
	return *d.feed, true
}

// CheckReadiness returns nil once a feed has been loaded, or an error
// describing why the service is not yet ready.
func (d *Dashboard) CheckReadiness(_ context.Context) error {
	if !d.ready.Load() {
		return errors.New("no temperature feed has been loaded yet")
	}
	return nil
}

// Refresh fetches a fresh feed and swaps it into the timeline. The fetch runs
// without holding the lock. On failure the prior timeline stays in place.
func (d *Dashboard) Refresh(ctx context.Context) error {
	d.mu.Lock()
	src, req := d.feedTargetLocked()
	d.mu.Unlock()

	start := time.Now()
	feed, err := src.Fetcher.FetchFeed(ctx, req)
	d.metrics.FeedFetchDuration.WithLabelValues(src.ID).Observe(time.Since(start).Seconds())
	if err == nil {
		feed.SourceID = src.ID
		var tl *domain.Timeline
		if tl, err = feed.Timeline(); err == nil {
			d.load(src, req, tl)
			return nil
		}
	}

	d.metrics.FeedFetches.WithLabelValues(src.ID, "error").Inc()
	d.logger.Error("feed fetch failed",
		"error", err,
		"data_source", src.ID,
		"field", req.Field,
		"lat", req.Lat,
		"lon", req.Lon,
	)
	return fmt.Errorf("refresh from %s: %w", src.ID, err)
}

// RefreshAsync starts a refresh and returns immediately. Overlapping
// refreshes are not deduplicated; the last one to complete wins.
func (d *Dashboard) RefreshAsync() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), asyncRefreshTimeout)
		defer cancel()
		_ = d.Refresh(ctx) // logged by Refresh
	}()
}

// Run loads the feed, retrying with backoff until it succeeds, then refreshes
// on the configured interval until the context is cancelled. With no interval
// it returns after the first successful load.
func (d *Dashboard) Run(ctx context.Context) error {
	d.logger.Info("feed refresher started", "interval", d.refreshInterval, "days", d.feedDays)

	backoff := d.initialBackoff
	for {
		if ctx.Err() != nil {
			d.logger.Info("feed refresher stopping", "reason", ctx.Err())
			return nil
		}

		if err := d.Refresh(ctx); err != nil {
			if ctx.Err() != nil || !retry.SleepWithContext(ctx, backoff) {
				return nil
			}
			backoff = retry.NextBackoff(backoff, d.maxBackoff)
			continue
		}
		backoff = d.initialBackoff

		if d.refreshInterval <= 0 {
			return nil
		}
		if !retry.SleepWithContext(ctx, d.refreshInterval) {
			d.logger.Info("feed refresher stopping", "reason", ctx.Err())
			return nil
		}
	}
}

func (d *Dashboard) load(src Source, req domain.FeedRequest, tl *domain.Timeline) {
	d.mu.Lock()
	d.timeline = tl
	d.feed = &FeedStatus{
		SourceID: src.ID,
		Field:    req.Field,
		Location: domain.Point{Lat: req.Lat, Lon: req.Lon},
		Start:    req.Start,
		End:      req.End,
		Points:   tl.Len(),
		LoadedAt: domain.Now(),
	}
	snaps, _ := d.broadcastLocked(tl.CurrentValue())
	d.mu.Unlock()

	d.ready.Store(true)
	d.metrics.FeedFetches.WithLabelValues(src.ID, "success").Inc()
	d.metrics.FeedLoaded.Set(1)
	d.metrics.FeedPoints.Set(float64(tl.Len()))
	d.logger.Info("feed loaded",
		"data_source", src.ID,
		"field", req.Field,
		"points", tl.Len(),
	)

	d.publish(snaps)
}

// feedTargetLocked picks where and what to fetch: the first polygon's first
// vertex, source and field, or the map center with the first source and the
// default field while no polygon exists.
func (d *Dashboard) feedTargetLocked() (Source, domain.FeedRequest) {
	recs := d.store.List()
	if len(recs) == 0 || len(recs[0].Points) == 0 {
		return d.sources[0], domain.NewFeedRequest(d.center, d.defaultField, d.feedDays)
	}
	first := recs[0]
	src, ok := d.source(first.DataSourceID)
	if !ok {
		src = d.sources[0]
	}
	return src, domain.NewFeedRequest(first.Points[0], first.Field, d.feedDays)
}
