package domain

import (
	"math"
	"time"
)

// ColorSnapshot is the published state of one polygon after reconciliation.
type ColorSnapshot struct {
	PolygonID    string    `json:"polygon_id"`
	DataSourceID string    `json:"data_source"`
	Field        string    `json:"field"`
	Value        *float64  `json:"value"`
	Color        string    `json:"color"`
	PublishedAt  time.Time `json:"published_at"`
	Deleted      bool      `json:"deleted,omitempty"`
}

// NewColorSnapshot captures r's current value and resolved color.
func NewColorSnapshot(r PolygonRecord, at time.Time) ColorSnapshot {
	return ColorSnapshot{
		PolygonID:    r.ID,
		DataSourceID: r.DataSourceID,
		Field:        r.Field,
		Value:        FiniteOrNil(r.Value),
		Color:        r.Color(),
		PublishedAt:  at,
	}
}

// NewTombstone marks r as removed. It carries no value or color.
func NewTombstone(r PolygonRecord, at time.Time) ColorSnapshot {
	return ColorSnapshot{
		PolygonID:    r.ID,
		DataSourceID: r.DataSourceID,
		Field:        r.Field,
		PublishedAt:  at,
		Deleted:      true,
	}
}

// FiniteOrNil returns a pointer to v, or nil when v is NaN or infinite. JSON
// has no NaN, so encoders use this to emit null.
func FiniteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
