package domain

import (
	"math"
	"slices"
	"time"
)

const (
	// MinPolygonPoints is the fewest vertices a finished polygon may have.
	MinPolygonPoints = 3
	// MaxPolygonPoints caps the vertices accepted while drawing.
	MaxPolygonPoints = 12
)

// DefaultField is the hourly variable a new polygon measures.
const DefaultField = "temperature_2m"

// Point is a WGS-84 latitude/longitude vertex.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the point is finite and inside latitude/longitude bounds.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// DataSource identifies an external provider a polygon is bound to. The core
// treats it as opaque.
type DataSource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PolygonRecord is a finished polygon bound to a data source, a measured
// field and an ordered rule set. Value is the scalar it is currently colored by;
// it is NaN until a timeline value has been applied.
type PolygonRecord struct {
	ID           string
	Points       []Point
	DataSourceID string
	Field        string
	Rules        []ThresholdRule
	Value        float64
	CreatedAt    time.Time
}

// Color resolves the record's fill from its current value and rules.
func (r PolygonRecord) Color() string {
	return ResolveColor(r.Value, r.Rules)
}

// clone returns a copy that shares no slices with r.
func (r PolygonRecord) clone() PolygonRecord {
	r.Points = slices.Clone(r.Points)
	r.Rules = slices.Clone(r.Rules)
	return r
}
