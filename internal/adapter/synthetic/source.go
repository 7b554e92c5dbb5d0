// Package synthetic provides a deterministic hourly feed for the mock data
// source. The same location, field and window always yield the same series.
package synthetic

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/couchcryptid/polygon-dashboard/internal/domain"
)

const (
	diurnalAmplitude = 5.0
	noiseAmplitude   = 1.5
	// warmestHour is the local hour (UTC here) the diurnal curve peaks at.
	warmestHour = 14
)

// Generator implements domain.FeedFetcher without any network access.
type Generator struct {
	logger *slog.Logger
}

// NewGenerator creates a synthetic feed generator.
func NewGenerator(logger *slog.Logger) *Generator {
	return &Generator{logger: logger}
}

// FetchFeed returns one reading per hour from req.Start through the last hour
// of req.End, the same shape the archive API returns for that window.
func (g *Generator) FetchFeed(ctx context.Context, req domain.FeedRequest) (domain.Feed, error) {
	if err := ctx.Err(); err != nil {
		return domain.Feed{}, err
	}
	if req.End.Before(req.Start) {
		return domain.Feed{}, fmt.Errorf("synthetic feed: end %s before start %s",
			req.End.Format(time.DateOnly), req.Start.Format(time.DateOnly))
	}

	start := req.Start.UTC()
	hours := int(req.End.UTC().AddDate(0, 0, 1).Sub(start) / time.Hour)

	rng := rand.New(rand.NewPCG(seed(req.Lat, req.Lon, req.Field), uint64(start.Unix())))
	base := baseline(req.Lat)

	feed := domain.Feed{
		Field:      req.Field,
		Timestamps: make([]time.Time, hours),
		Values:     make([]float64, hours),
	}
	for i := range hours {
		ts := start.Add(time.Duration(i) * time.Hour)
		phase := 2 * math.Pi * float64(ts.Hour()-warmestHour) / 24
		noise := (rng.Float64()*2 - 1) * noiseAmplitude
		feed.Timestamps[i] = ts
		feed.Values[i] = round1(base + diurnalAmplitude*math.Cos(phase) + noise)
	}

	g.logger.Debug("synthetic feed generated",
		"lat", req.Lat,
		"lon", req.Lon,
		"field", req.Field,
		"points", hours,
	)
	return feed, nil
}

// baseline cools linearly from 28 at the equator to -8 at the poles.
func baseline(lat float64) float64 {
	return 28 - 36*math.Abs(lat)/90
}

func seed(lat, lon float64, field string) uint64 {
	h := fnv.New64a()
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], math.Float64bits(lat))
	binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(lon))
	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte(field))
	return h.Sum64()
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
