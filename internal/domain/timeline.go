package domain

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// Zoom bounds for the visible timeline prefix.
const (
	MinZoom = 1
	MaxZoom = 4
)

// Preset names a window over the timeline.
type Preset string

const (
	PresetLast24h  Preset = "last-24h"
	PresetPastWeek Preset = "past-week"
	PresetFull     Preset = "full"
)

// Presets lists the presets in display order.
func Presets() []Preset {
	return []Preset{PresetLast24h, PresetPastWeek, PresetFull}
}

// presetPoints is the trailing point count per preset; 0 means the whole series.
var presetPoints = map[Preset]int{
	PresetLast24h:  24,
	PresetPastWeek: 168,
	PresetFull:     0,
}

// TimelineView describes what the slider currently shows. Start and Length
// address the visible points in absolute indices; Selected is relative to Start.
type TimelineView struct {
	Total       int       `json:"total"`
	WindowStart int       `json:"window_start"`
	WindowEnd   int       `json:"window_end"`
	Zoom        int       `json:"zoom"`
	Start       int       `json:"start"`
	Length      int       `json:"length"`
	Selected    int       `json:"selected"`
	SelectedAt  time.Time `json:"selected_at,omitzero"`
}

// Timeline is an hourly series with a movable window, a zoom factor and a
// selected index. The series itself never changes after construction.
type Timeline struct {
	timestamps []time.Time
	values     []float64

	start, end int // inclusive window bounds; end < start when empty
	zoom       int
	selected   int // relative to start
}

// NewTimeline builds a timeline over parallel timestamp and value slices. The
// full range is visible and the last point is selected.
func NewTimeline(timestamps []time.Time, values []float64) (*Timeline, error) {
	if len(timestamps) != len(values) {
		return nil, fmt.Errorf("%w: %d timestamps, %d values", ErrTimelineMismatch, len(timestamps), len(values))
	}
	t := &Timeline{
		timestamps: slices.Clone(timestamps),
		values:     slices.Clone(values),
		zoom:       MinZoom,
	}
	t.start, t.end = 0, len(values)-1
	t.selected = t.viewLen() - 1
	t.clampSelection()
	return t, nil
}

// EmptyTimeline returns a timeline with no points.
func EmptyTimeline() *Timeline {
	t, _ := NewTimeline(nil, nil)
	return t
}

// Len returns the number of points in the underlying series.
func (t *Timeline) Len() int { return len(t.values) }

// Values returns a copy of the whole series.
func (t *Timeline) Values() []float64 { return slices.Clone(t.values) }

// Timestamps returns a copy of the whole series' timestamps.
func (t *Timeline) Timestamps() []time.Time { return slices.Clone(t.timestamps) }

// Zoom returns the current zoom factor.
func (t *Timeline) Zoom() int { return t.zoom }

// ApplyPreset moves the window. Windows longer than the series clamp to it.
func (t *Timeline) ApplyPreset(p Preset) error {
	n, ok := presetPoints[p]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPreset, p)
	}
	t.end = len(t.values) - 1
	t.start = 0
	if n > 0 {
		t.start = max(0, len(t.values)-n)
	}
	t.clampSelection()
	return nil
}

// SetZoom sets the zoom factor, clamped to [MinZoom, MaxZoom].
func (t *Timeline) SetZoom(factor int) {
	t.zoom = min(max(factor, MinZoom), MaxZoom)
	t.clampSelection()
}

// ZoomIn narrows the visible prefix by one zoom step.
func (t *Timeline) ZoomIn() { t.SetZoom(t.zoom + 1) }

// ZoomOut widens the visible prefix by one zoom step.
func (t *Timeline) ZoomOut() { t.SetZoom(t.zoom - 1) }

// SelectIndex selects the i-th visible point and returns its value. Indexes
// outside the view are clamped. An empty view yields NaN.
func (t *Timeline) SelectIndex(i int) float64 {
	t.selected = i
	t.clampSelection()
	return t.CurrentValue()
}

// CurrentValue returns the value at the selection, or NaN if nothing is visible.
func (t *Timeline) CurrentValue() float64 {
	if t.viewLen() == 0 {
		return math.NaN()
	}
	abs := t.start + t.selected
	return t.Average(abs, abs)
}

// Average returns the arithmetic mean of values[start..end], inclusive, on
// absolute indices clamped to the series. An empty range yields NaN.
func (t *Timeline) Average(start, end int) float64 {
	return Average(t.values, start, end)
}

// View reports the window, zoom and selection.
func (t *Timeline) View() TimelineView {
	v := TimelineView{
		Total:       len(t.values),
		WindowStart: t.start,
		WindowEnd:   t.end,
		Zoom:        t.zoom,
		Start:       t.start,
		Length:      t.viewLen(),
		Selected:    t.selected,
	}
	if v.Length > 0 {
		v.SelectedAt = t.timestamps[t.start+t.selected]
	}
	return v
}

func (t *Timeline) viewLen() int {
	window := t.end - t.start + 1
	if window <= 0 {
		return 0
	}
	return window / t.zoom
}

func (t *Timeline) clampSelection() {
	n := t.viewLen()
	if n == 0 {
		t.selected = 0
		return
	}
	t.selected = min(max(t.selected, 0), n-1)
}

// Average returns the mean of values[start..end] inclusive, clamping both
// bounds to the slice. It yields NaN for an empty slice or start > end.
func Average(values []float64, start, end int) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	start = max(start, 0)
	end = min(end, len(values)-1)
	if start > end {
		return math.NaN()
	}
	var sum float64
	for _, v := range values[start : end+1] {
		sum += v
	}
	return sum / float64(end-start+1)
}
