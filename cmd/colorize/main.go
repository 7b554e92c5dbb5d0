// Command colorize replays a feed fixture through a rule set and prints the
// color a polygon would take for each block of hours in the chosen window.
// It exercises the same timeline and rule evaluation the dashboard uses.
//
// Usage:
//
//	go run ./cmd/colorize \
//	  -feed data/mock/feed_240426.json \
//	  -rules rules.json \
//	  -preset past-week -bucket 24
//
// The rules file holds a JSON array such as
// [{"operator": ">=", "value": 25, "color": "green"}]. Without -rules the
// default rule set is used.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/couchcryptid/polygon-dashboard/internal/adapter/openmeteo"
	"github.com/couchcryptid/polygon-dashboard/internal/domain"
)

func main() {
	feedPath := flag.String("feed", "", "path to an Open-Meteo archive JSON fixture")
	rulesPath := flag.String("rules", "", "path to a JSON array of threshold rules (optional)")
	field := flag.String("field", domain.DefaultField, "hourly variable to read from the fixture")
	preset := flag.String("preset", string(domain.PresetFull), "timeline window: last-24h, past-week or full")
	bucket := flag.Int("bucket", 24, "hours averaged per output row")
	flag.Parse()

	if *feedPath == "" || *bucket < 1 {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(os.Stdout, *feedPath, *rulesPath, *field, domain.Preset(*preset), *bucket); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}

func run(w io.Writer, feedPath, rulesPath, field string, preset domain.Preset, bucket int) error {
	feed, err := loadFeed(feedPath, field)
	if err != nil {
		return err
	}
	rules := domain.DefaultRules()
	if rulesPath != "" {
		if rules, err = loadRules(rulesPath); err != nil {
			return err
		}
	}

	tl, err := feed.Timeline()
	if err != nil {
		return err
	}
	if err := tl.ApplyPreset(preset); err != nil {
		return err
	}

	rows := colorize(tl, rules, bucket)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FROM\tTO\tHOURS\tAVERAGE\tCOLOR")
	for _, r := range rows {
		avg := "n/a"
		if r.avg != nil {
			avg = fmt.Sprintf("%.2f", *r.avg)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			r.from.Format(time.DateTime), r.to.Format(time.DateTime), r.hours, avg, r.color)
	}
	return tw.Flush()
}

type row struct {
	from, to time.Time
	hours    int
	avg      *float64
	color    string
}

// colorize averages consecutive blocks of the visible window and resolves
// each block's color.
func colorize(tl *domain.Timeline, rules []domain.ThresholdRule, bucket int) []row {
	view := tl.View()
	ts := tl.Timestamps()
	var rows []row
	for start := view.Start; start < view.Start+view.Length; start += bucket {
		end := min(start+bucket, view.Start+view.Length) - 1
		avg := tl.Average(start, end)
		rows = append(rows, row{
			from:  ts[start],
			to:    ts[end],
			hours: end - start + 1,
			avg:   domain.FiniteOrNil(avg),
			color: domain.ResolveColor(avg, rules),
		})
	}
	return rows
}

func loadFeed(path, field string) (domain.Feed, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Feed{}, fmt.Errorf("open feed: %w", err)
	}
	defer f.Close()

	feed, err := openmeteo.DecodeArchive(f, field)
	if err != nil {
		return domain.Feed{}, fmt.Errorf("load feed %s: %w", path, err)
	}
	return feed, nil
}

func loadRules(path string) ([]domain.ThresholdRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	var rules []domain.ThresholdRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse rules %s: %w", path, err)
	}
	return rules, nil
}
