// Package dashboard wires the polygon store, drawing state machine and
// timeline into one state container and keeps polygon colors reconciled with
// the selected timeline value.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/polygon-dashboard/internal/domain"
	"github.com/couchcryptid/polygon-dashboard/internal/observability"
)

// publishTimeout bounds a single snapshot publish.
const publishTimeout = 5 * time.Second

// Source is a configured data source and the fetcher that serves it.
type Source struct {
	domain.DataSource
	Fetcher domain.FeedFetcher
}

// Publisher receives color snapshots after polygon colors change.
type Publisher interface {
	PublishSnapshots(ctx context.Context, snaps []domain.ColorSnapshot) error
}

// Option configures a Dashboard.
type Option func(*Dashboard)

// WithStore replaces the default empty polygon store.
func WithStore(s *domain.PolygonStore) Option {
	return func(d *Dashboard) { d.store = s }
}

// WithPublisher adds a snapshot publisher. It may be given more than once;
// publishers run in the order they were added.
func WithPublisher(p Publisher) Option {
	return func(d *Dashboard) { d.publishers = append(d.publishers, p) }
}

// WithMapCenter sets the fetch location used while no polygon exists.
func WithMapCenter(p domain.Point) Option {
	return func(d *Dashboard) { d.center = p }
}

// WithDefaultField sets the field fetched while no polygon exists.
func WithDefaultField(field string) Option {
	return func(d *Dashboard) { d.defaultField = field }
}

// WithFeedDays sets how many days before today a feed covers.
func WithFeedDays(days int) Option {
	return func(d *Dashboard) { d.feedDays = days }
}

// WithRefreshInterval enables periodic refresh in Run. Zero loads once.
func WithRefreshInterval(interval time.Duration) Option {
	return func(d *Dashboard) { d.refreshInterval = interval }
}

// WithBackoff overrides the retry backoff used by Run after a failed fetch.
func WithBackoff(initial, maxBackoff time.Duration) Option {
	return func(d *Dashboard) {
		d.initialBackoff = initial
		d.maxBackoff = maxBackoff
	}
}

// Dashboard is the single owner of dashboard state. Every exported method is
// safe for concurrent use; one mutex serializes them.
type Dashboard struct {
	mu       sync.Mutex
	store    *domain.PolygonStore
	drawer   domain.Drawer
	timeline *domain.Timeline
	feed     *FeedStatus

	sources    []Source
	publishers []Publisher
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool

	center          domain.Point
	defaultField    string
	feedDays        int
	refreshInterval time.Duration
	initialBackoff  time.Duration
	maxBackoff      time.Duration
}

// New creates a Dashboard over the given sources, in display order.
func New(sources []Source, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) (*Dashboard, error) {
	if len(sources) == 0 {
		return nil, errors.New("dashboard needs at least one data source")
	}
	seen := make(map[string]bool, len(sources))
	for _, s := range sources {
		if s.ID == "" || s.Fetcher == nil {
			return nil, fmt.Errorf("data source %q is incomplete", s.ID)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("duplicate data source %q", s.ID)
		}
		seen[s.ID] = true
	}

	d := &Dashboard{
		store:          domain.NewPolygonStore(),
		timeline:       domain.EmptyTimeline(),
		sources:        slices.Clone(sources),
		logger:         logger,
		metrics:        metrics,
		defaultField:   domain.DefaultField,
		feedDays:       domain.DefaultFeedDays,
		initialBackoff: time.Second,
		maxBackoff:     time.Minute,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.metrics.Polygons.Set(float64(d.store.Len()))
	return d, nil
}

// Sources lists the configured data sources.
func (d *Dashboard) Sources() []domain.DataSource {
	out := make([]domain.DataSource, len(d.sources))
	for i, s := range d.sources {
		out[i] = s.DataSource
	}
	return out
}

// --- drawing ---

// StartDrawing begins a new outline, discarding any unfinished one.
func (d *Dashboard) StartDrawing() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drawer.Start()
}

// AddPoint appends a vertex to the outline being drawn.
func (d *Dashboard) AddPoint(p domain.Point) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.drawer.AddPoint(p)
}

// FinishResult reports what FinishDrawing did.
type FinishResult struct {
	Accepted bool
	State    domain.DrawState
	Polygon  *domain.PolygonRecord // set when the polygon was created
}

// FinishDrawing closes the outline. With a single configured source the
// polygon is created at once; otherwise the dashboard waits for
// ConfirmSource.
func (d *Dashboard) FinishDrawing() FinishResult {
	d.mu.Lock()
	if !d.drawer.Finish() {
		res := FinishResult{State: d.drawer.State()}
		d.mu.Unlock()
		return res
	}
	if len(d.sources) > 1 {
		res := FinishResult{Accepted: true, State: d.drawer.State()}
		d.mu.Unlock()
		return res
	}
	rec, snaps := d.completeLocked(d.sources[0])
	res := FinishResult{Accepted: true, State: d.drawer.State(), Polygon: &rec}
	d.mu.Unlock()

	d.publish(snaps)
	return res
}

// ConfirmSource binds the finished outline to a data source and creates the
// polygon. It reports false when no outline is awaiting a source.
func (d *Dashboard) ConfirmSource(sourceID string) (domain.PolygonRecord, bool, error) {
	src, ok := d.source(sourceID)
	if !ok {
		return domain.PolygonRecord{}, false, fmt.Errorf("confirm %q: %w", sourceID, domain.ErrUnknownDataSource)
	}

	d.mu.Lock()
	if d.drawer.State() != domain.DrawAwaitingSource {
		d.mu.Unlock()
		return domain.PolygonRecord{}, false, nil
	}
	rec, snaps := d.completeLocked(src)
	d.mu.Unlock()

	d.publish(snaps)
	return rec, true, nil
}

// CancelDrawing backs the drawing gesture out by one step.
func (d *Dashboard) CancelDrawing() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drawer.Cancel()
}

func (d *Dashboard) completeLocked(src Source) (domain.PolygonRecord, []domain.ColorSnapshot) {
	points, _ := d.drawer.Complete()
	rec := d.store.Add(points, src.ID, d.defaultField, d.timeline.CurrentValue())
	d.metrics.Polygons.Set(float64(d.store.Len()))

	d.logger.Info("polygon created",
		"polygon_id", rec.ID,
		"data_source", rec.DataSourceID,
		"points", len(rec.Points),
	)
	return rec, d.snapshotLocked(rec.ID)
}

// --- polygons and rules ---

// Polygons lists every polygon in creation order.
func (d *Dashboard) Polygons() []domain.PolygonRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.List()
}

// Polygon returns one polygon by id.
func (d *Dashboard) Polygon(id string) (domain.PolygonRecord, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.Get(id)
}

// DeletePolygon removes a polygon and publishes a tombstone for it. Unknown
// ids are a no-op.
func (d *Dashboard) DeletePolygon(id string) bool {
	d.mu.Lock()
	rec, ok := d.store.Get(id)
	if !ok {
		d.mu.Unlock()
		return false
	}
	d.store.Delete(id)
	d.metrics.Polygons.Set(float64(d.store.Len()))
	var snaps []domain.ColorSnapshot
	if len(d.publishers) > 0 {
		snaps = []domain.ColorSnapshot{domain.NewTombstone(rec, domain.Now())}
	}
	d.mu.Unlock()

	d.logger.Info("polygon deleted", "polygon_id", id)
	d.publish(snaps)
	return true
}

// SetField changes the hourly variable a polygon measures.
func (d *Dashboard) SetField(id, field string) error {
	d.mu.Lock()
	if err := d.store.SetField(id, field); err != nil {
		d.mu.Unlock()
		return err
	}
	snaps := d.snapshotLocked(id)
	d.mu.Unlock()

	d.publish(snaps)
	return nil
}

// AddRule appends a rule to a polygon.
func (d *Dashboard) AddRule(id string, rule domain.ThresholdRule) ([]domain.ThresholdRule, error) {
	return d.editRules(id, func(s *domain.PolygonStore) ([]domain.ThresholdRule, error) {
		return s.AddRule(id, rule)
	})
}

// UpdateRule replaces the rule at index.
func (d *Dashboard) UpdateRule(id string, index int, rule domain.ThresholdRule) ([]domain.ThresholdRule, error) {
	return d.editRules(id, func(s *domain.PolygonStore) ([]domain.ThresholdRule, error) {
		return s.UpdateRule(id, index, rule)
	})
}

// DeleteRule removes the rule at index.
func (d *Dashboard) DeleteRule(id string, index int) ([]domain.ThresholdRule, error) {
	return d.editRules(id, func(s *domain.PolygonStore) ([]domain.ThresholdRule, error) {
		return s.DeleteRule(id, index)
	})
}

func (d *Dashboard) editRules(id string, edit func(*domain.PolygonStore) ([]domain.ThresholdRule, error)) ([]domain.ThresholdRule, error) {
	d.mu.Lock()
	rules, err := edit(d.store)
	if err != nil {
		d.mu.Unlock()
		return nil, err
	}
	snaps := d.snapshotLocked(id)
	d.mu.Unlock()

	d.publish(snaps)
	return rules, nil
}

// --- timeline ---

// Timeline reports the current timeline window, zoom and selection.
func (d *Dashboard) Timeline() domain.TimelineView {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timeline.View()
}

// SelectIndex moves the slider and broadcasts the selected value.
func (d *Dashboard) SelectIndex(i int) domain.TimelineView {
	return d.moveTimeline(func(t *domain.Timeline) error {
		t.SelectIndex(i)
		return nil
	})
}

// ApplyPreset moves the timeline window and broadcasts the selected value.
func (d *Dashboard) ApplyPreset(p domain.Preset) (domain.TimelineView, error) {
	var err error
	view := d.moveTimeline(func(t *domain.Timeline) error {
		err = t.ApplyPreset(p)
		return err
	})
	return view, err
}

// ZoomIn narrows the visible prefix and broadcasts the selected value.
func (d *Dashboard) ZoomIn() domain.TimelineView {
	return d.moveTimeline(func(t *domain.Timeline) error {
		t.ZoomIn()
		return nil
	})
}

// ZoomOut widens the visible prefix and broadcasts the selected value.
func (d *Dashboard) ZoomOut() domain.TimelineView {
	return d.moveTimeline(func(t *domain.Timeline) error {
		t.ZoomOut()
		return nil
	})
}

// CurrentValue returns the selected timeline value, NaN when nothing is
// visible.
func (d *Dashboard) CurrentValue() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timeline.CurrentValue()
}

// Average returns the mean over absolute indices [start, end] of the loaded
// series, NaN when the range is empty.
func (d *Dashboard) Average(start, end int) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timeline.Average(start, end)
}

func (d *Dashboard) moveTimeline(move func(*domain.Timeline) error) domain.TimelineView {
	d.mu.Lock()
	if err := move(d.timeline); err != nil {
		view := d.timeline.View()
		d.mu.Unlock()
		return view
	}
	snaps, _ := d.broadcastLocked(d.timeline.CurrentValue())
	view := d.timeline.View()
	d.mu.Unlock()

	d.publish(snaps)
	return view
}

// --- reconciliation ---

// OnTimelineValueChange broadcasts v to every polygon. A non-finite v is
// ignored and reported as false.
func (d *Dashboard) OnTimelineValueChange(v float64) bool {
	d.mu.Lock()
	snaps, applied := d.broadcastLocked(v)
	d.mu.Unlock()

	d.publish(snaps)
	return applied
}

func (d *Dashboard) broadcastLocked(v float64) ([]domain.ColorSnapshot, bool) {
	if !d.store.ApplyValue(v) {
		d.metrics.ValueBroadcasts.WithLabelValues("skipped").Inc()
		return nil, false
	}
	d.metrics.ValueBroadcasts.WithLabelValues("applied").Inc()
	return d.snapshotLocked(""), true
}

// snapshotLocked captures one polygon, or all of them when id is empty. It
// returns nil when publishing is disabled.
func (d *Dashboard) snapshotLocked(id string) []domain.ColorSnapshot {
	if len(d.publishers) == 0 {
		return nil
	}
	now := domain.Now()
	if id != "" {
		rec, ok := d.store.Get(id)
		if !ok {
			return nil
		}
		return []domain.ColorSnapshot{domain.NewColorSnapshot(rec, now)}
	}
	recs := d.store.List()
	snaps := make([]domain.ColorSnapshot, len(recs))
	for i, r := range recs {
		snaps[i] = domain.NewColorSnapshot(r, now)
	}
	return snaps
}

// publish runs outside the lock. Failures are logged and counted only, and
// one failing publisher does not stop the rest.
func (d *Dashboard) publish(snaps []domain.ColorSnapshot) {
	if len(snaps) == 0 {
		return
	}
	for _, p := range d.publishers {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := p.PublishSnapshots(ctx, snaps)
		cancel()
		if err != nil {
			d.metrics.PublishErrors.Inc()
			d.logger.Error("publish snapshots failed", "error", err, "snapshots", len(snaps))
			continue
		}
		d.metrics.SnapshotsPublished.Add(float64(len(snaps)))
	}
}

func (d *Dashboard) source(id string) (Source, bool) {
	i := slices.IndexFunc(d.sources, func(s Source) bool { return s.ID == id })
	if i < 0 {
		return Source{}, false
	}
	return d.sources[i], true
}
