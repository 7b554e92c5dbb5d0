package openmeteo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/couchcryptid/polygon-dashboard/internal/domain"
)

// Open-Meteo API response types.

type response struct {
	Latitude    float64                    `json:"latitude"`
	Longitude   float64                    `json:"longitude"`
	HourlyUnits map[string]string          `json:"hourly_units,omitempty"`
	Hourly      map[string]json.RawMessage `json:"hourly"`
}

// DecodeArchive reads an archive API body, live or from a fixture, and
// extracts the hourly series for field.
func DecodeArchive(r io.Reader, field string) (domain.Feed, error) {
	var archive response
	if err := json.NewDecoder(r).Decode(&archive); err != nil {
		return domain.Feed{}, fmt.Errorf("decode response: %w", err)
	}
	return parseHourly(archive.Hourly, field)
}

// EncodeArchive writes feed in the archive API's response shape. NaN readings
// are written as null.
func EncodeArchive(w io.Writer, p domain.Point, feed domain.Feed) error {
	times := make([]string, len(feed.Timestamps))
	for i, ts := range feed.Timestamps {
		times[i] = ts.UTC().Format(timeLayout)
	}
	readings := make([]*float64, len(feed.Values))
	for i, v := range feed.Values {
		readings[i] = domain.FiniteOrNil(v)
	}

	rawTimes, err := json.Marshal(times)
	if err != nil {
		return fmt.Errorf("encode hourly.time: %w", err)
	}
	rawValues, err := json.Marshal(readings)
	if err != nil {
		return fmt.Errorf("encode hourly.%s: %w", feed.Field, err)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(response{
		Latitude:    p.Lat,
		Longitude:   p.Lon,
		HourlyUnits: map[string]string{"time": "iso8601"},
		Hourly: map[string]json.RawMessage{
			"time":     rawTimes,
			feed.Field: rawValues,
		},
	})
}

// parseHourly aligns hourly.time with hourly.<field>. Null readings become NaN.
func parseHourly(hourly map[string]json.RawMessage, field string) (domain.Feed, error) {
	rawTimes, ok := hourly["time"]
	if !ok {
		return domain.Feed{}, errors.New("response missing hourly.time")
	}
	rawValues, ok := hourly[field]
	if !ok {
		return domain.Feed{}, fmt.Errorf("response missing hourly.%s", field)
	}

	var times []string
	if err := json.Unmarshal(rawTimes, &times); err != nil {
		return domain.Feed{}, fmt.Errorf("decode hourly.time: %w", err)
	}
	var readings []*float64
	if err := json.Unmarshal(rawValues, &readings); err != nil {
		return domain.Feed{}, fmt.Errorf("decode hourly.%s: %w", field, err)
	}
	if len(times) != len(readings) {
		return domain.Feed{}, fmt.Errorf("hourly.%s has %d values for %d timestamps: %w",
			field, len(readings), len(times), domain.ErrTimelineMismatch)
	}

	feed := domain.Feed{
		Field:      field,
		Timestamps: make([]time.Time, len(times)),
		Values:     make([]float64, len(readings)),
	}
	for i, s := range times {
		ts, err := time.Parse(timeLayout, s)
		if err != nil {
			return domain.Feed{}, fmt.Errorf("parse hourly.time[%d]: %w", i, err)
		}
		feed.Timestamps[i] = ts
		if readings[i] == nil {
			feed.Values[i] = math.NaN()
			continue
		}
		feed.Values[i] = *readings[i]
	}
	return feed, nil
}
