package domain

import "slices"

// DrawState is the phase of the polygon drawing gesture.
type DrawState int

const (
	DrawIdle DrawState = iota
	DrawDrawing
	DrawAwaitingSource
)

func (s DrawState) String() string {
	switch s {
	case DrawIdle:
		return "idle"
	case DrawDrawing:
		return "drawing"
	case DrawAwaitingSource:
		return "awaiting_source"
	default:
		return "unknown"
	}
}

// Drawer buffers map clicks into a polygon outline. Invalid transitions are
// rejected by returning false; nothing here returns an error.
type Drawer struct {
	state  DrawState
	points []Point
}

// State returns the current drawing phase.
func (d *Drawer) State() DrawState { return d.state }

// Points returns a copy of the in-progress buffer.
func (d *Drawer) Points() []Point { return slices.Clone(d.points) }

// Start begins a new outline, discarding any buffered points.
func (d *Drawer) Start() {
	d.state = DrawDrawing
	d.points = nil
}

// AddPoint appends p while drawing. It is a no-op once the buffer holds
// MaxPolygonPoints, outside the drawing phase, or for an invalid point.
func (d *Drawer) AddPoint(p Point) bool {
	if d.state != DrawDrawing || len(d.points) >= MaxPolygonPoints || !p.Valid() {
		return false
	}
	d.points = append(d.points, p)
	return true
}

// CanFinish reports whether Finish would be accepted.
func (d *Drawer) CanFinish() bool {
	return d.state == DrawDrawing && len(d.points) >= MinPolygonPoints
}

// Finish closes the outline and waits for a data source choice.
func (d *Drawer) Finish() bool {
	if !d.CanFinish() {
		return false
	}
	d.state = DrawAwaitingSource
	return true
}

// Complete hands the finished outline to the caller and returns to idle.
func (d *Drawer) Complete() ([]Point, bool) {
	if d.state != DrawAwaitingSource {
		return nil, false
	}
	pts := d.points
	d.points = nil
	d.state = DrawIdle
	return pts, true
}

// Cancel backs out one step: a pending source choice returns to drawing with
// the buffer intact, and drawing returns to idle with the buffer cleared.
func (d *Drawer) Cancel() {
	switch d.state {
	case DrawAwaitingSource:
		d.state = DrawDrawing
	case DrawDrawing:
		d.state = DrawIdle
		d.points = nil
	}
}
