package dashboard

import (
	"time"

	"github.com/couchcryptid/polygon-dashboard/internal/domain"
)

// View is the render model: everything a map surface needs to draw the
// current frame. Non-finite values are nil so they encode as JSON null.
type View struct {
	Polygons     []PolygonView       `json:"polygons"`
	Drawing      DrawingView         `json:"drawing"`
	CurrentValue *float64            `json:"current_value"`
	Timeline     domain.TimelineView `json:"timeline"`
	Feed         *FeedView           `json:"feed,omitempty"`
}

// PolygonView is one polygon with its resolved fill color.
type PolygonView struct {
	ID           string                 `json:"id"`
	Points       []domain.Point         `json:"points"`
	DataSourceID string                 `json:"data_source_id"`
	Field        string                 `json:"field"`
	Rules        []domain.ThresholdRule `json:"rules"`
	Value        *float64               `json:"value"`
	Color        string                 `json:"color"`
	CreatedAt    time.Time              `json:"created_at"`
}

// DrawingView is the in-progress outline.
type DrawingView struct {
	State     string         `json:"state"`
	Points    []domain.Point `json:"points"`
	CanFinish bool           `json:"can_finish"`
}

// FeedView describes the loaded feed.
type FeedView struct {
	DataSourceID string       `json:"data_source_id"`
	Field        string       `json:"field"`
	Location     domain.Point `json:"location"`
	StartDate    string       `json:"start_date"`
	EndDate      string       `json:"end_date"`
	Points       int          `json:"points"`
	LoadedAt     time.Time    `json:"loaded_at"`
}

// NewPolygonView renders one record.
func NewPolygonView(r domain.PolygonRecord) PolygonView {
	points := r.Points
	if points == nil {
		points = []domain.Point{}
	}
	rules := r.Rules
	if rules == nil {
		rules = []domain.ThresholdRule{}
	}
	return PolygonView{
		ID:           r.ID,
		Points:       points,
		DataSourceID: r.DataSourceID,
		Field:        r.Field,
		Rules:        rules,
		Value:        domain.FiniteOrNil(r.Value),
		Color:        r.Color(),
		CreatedAt:    r.CreatedAt,
	}
}

// View snapshots the whole dashboard under one lock acquisition.
func (d *Dashboard) View() View {
	d.mu.Lock()
	defer d.mu.Unlock()

	recs := d.store.List()
	v := View{
		Polygons: make([]PolygonView, len(recs)),
		Drawing: DrawingView{
			State:     d.drawer.State().String(),
			Points:    d.drawer.Points(),
			CanFinish: d.drawer.CanFinish(),
		},
		CurrentValue: domain.FiniteOrNil(d.timeline.CurrentValue()),
		Timeline:     d.timeline.View(),
	}
	if v.Drawing.Points == nil {
		v.Drawing.Points = []domain.Point{}
	}
	for i, r := range recs {
		v.Polygons[i] = NewPolygonView(r)
	}
	if d.feed != nil {
		v.Feed = &FeedView{
			DataSourceID: d.feed.SourceID,
			Field:        d.feed.Field,
			Location:     d.feed.Location,
			StartDate:    d.feed.Start.Format(time.DateOnly),
			EndDate:      d.feed.End.Format(time.DateOnly),
			Points:       d.feed.Points,
			LoadedAt:     d.feed.LoadedAt,
		}
	}
	return v
}
