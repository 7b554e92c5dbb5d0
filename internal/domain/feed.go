package domain

import (
	"context"
	"time"
)

// DefaultFeedDays is how many days before today a feed covers.
const DefaultFeedDays = 15

// FeedRequest asks a provider for an hourly series at one location.
type FeedRequest struct {
	Lat   float64
	Lon   float64
	Field string
	Start time.Time // first calendar day, inclusive
	End   time.Time // last calendar day, inclusive
}

// Feed is an hourly series returned by a provider. Missing hours are NaN.
type Feed struct {
	SourceID   string
	Field      string
	Timestamps []time.Time
	Values     []float64
}

// Timeline builds a fresh timeline over the feed.
func (f Feed) Timeline() (*Timeline, error) {
	return NewTimeline(f.Timestamps, f.Values)
}

// FeedFetcher retrieves temperature-style hourly feeds.
type FeedFetcher interface {
	FetchFeed(ctx context.Context, req FeedRequest) (Feed, error)
}

// FeedWindow returns the calendar days [today-days, today] in UTC, both
// truncated to midnight.
func FeedWindow(now time.Time, days int) (start, end time.Time) {
	now = now.UTC()
	end = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start = end.AddDate(0, 0, -days)
	return start, end
}

// NewFeedRequest builds a request for the standard window ending today.
func NewFeedRequest(p Point, field string, days int) FeedRequest {
	start, end := FeedWindow(Now(), days)
	return FeedRequest{Lat: p.Lat, Lon: p.Lon, Field: field, Start: start, End: end}
}
