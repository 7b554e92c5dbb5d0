// Command genfeed writes an Open-Meteo archive-shaped JSON fixture from the
// synthetic mock source. A fixed clock pins the date window, so the same
// flags always produce the same file.
//
// Usage:
//
//	go run ./cmd/genfeed \
//	  -lat 12.9716 -lon 77.5946 \
//	  -today 2024-04-26 -days 15 \
//	  -out data/mock/feed_240426.json
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/polygon-dashboard/internal/adapter/openmeteo"
	"github.com/couchcryptid/polygon-dashboard/internal/adapter/synthetic"
	"github.com/couchcryptid/polygon-dashboard/internal/domain"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	lat := flag.Float64("lat", 12.9716, "latitude of the feed location")
	lon := flag.Float64("lon", 77.5946, "longitude of the feed location")
	field := flag.String("field", domain.DefaultField, "hourly variable name")
	days := flag.Int("days", domain.DefaultFeedDays, "days before -today to cover")
	today := flag.String("today", "2024-04-26", "last calendar day of the window (YYYY-MM-DD)")
	out := flag.String("out", "", "output path for the JSON fixture")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	day, err := time.Parse(time.DateOnly, *today)
	if err != nil {
		return fmt.Errorf("invalid -today: %w", err)
	}
	p := domain.Point{Lat: *lat, Lon: *lon}
	if !p.Valid() {
		return fmt.Errorf("invalid location %v,%v", *lat, *lon)
	}

	domain.SetClock(clockwork.NewFakeClockAt(day.Add(12 * time.Hour)))
	defer domain.SetClock(nil)

	gen := synthetic.NewGenerator(slog.New(slog.NewTextHandler(io.Discard, nil)))
	feed, err := gen.FetchFeed(context.Background(), domain.NewFeedRequest(p, *field, *days))
	if err != nil {
		return fmt.Errorf("generate feed: %w", err)
	}

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}
	defer f.Close()

	if err := openmeteo.EncodeArchive(f, p, feed); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}
	log.Printf("wrote %d hourly %s readings to %s", len(feed.Values), *field, *out)

	printStats(feed)
	return nil
}

func printStats(feed domain.Feed) {
	if len(feed.Values) == 0 {
		return
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range feed.Values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	first := feed.Timestamps[0].Format(time.DateOnly)
	last := feed.Timestamps[len(feed.Timestamps)-1].Format(time.DateOnly)
	fmt.Printf("window: %s .. %s\n", first, last)
	fmt.Printf("min: %.1f  max: %.1f  mean: %.2f\n", lo, hi, domain.Average(feed.Values, 0, len(feed.Values)-1))
}
