package analyze

import (
	"sort"
	"time"

	"github.com/driftwatch/driftwatch/pkg/report"
	"github.com/driftwatch/driftwatch/pkg/sources"
)

// recentDays caps the Recent Activity listing.
const recentDays = 7

// Activity buckets items by calendar day (UTC) and computes the date
// range and posting frequency. Items without a date are skipped; if no
// item is dated the range is zero and the activity nil.
func Activity(items []sources.Item) (report.DateRange, *report.Activity) {
	days := make(map[time.Time]int)
	var start, end time.Time
	dated := 0
	engagement := 0

	for _, it := range items {
		engagement += it.Engagement
		if it.PublishedAt.IsZero() {
			continue
		}
		y, m, d := it.PublishedAt.UTC().Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		days[day]++
		dated++
		if start.IsZero() || day.Before(start) {
			start = day
		}
		if day.After(end) {
			end = day
		}
	}
	if dated == 0 {
		return report.DateRange{}, nil
	}

	coverage := int(end.Sub(start).Hours()/24) + 1
	peak := 0
	for _, n := range days {
		if n > peak {
			peak = n
		}
	}

	ordered := make([]time.Time, 0, len(days))
	for day := range days {
		ordered = append(ordered, day)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Before(ordered[j]) })
	if len(ordered) > recentDays {
		ordered = ordered[len(ordered)-recentDays:]
	}
	recent := make([]report.DayCount, 0, len(ordered))
	for _, day := range ordered {
		recent = append(recent, report.DayCount{Date: day, Count: days[day]})
	}

	return report.DateRange{Start: start, End: end}, &report.Activity{
		Average:       float64(dated) / float64(coverage),
		Peak:          peak,
		Coverage:      coverage,
		AvgEngagement: float64(engagement) / float64(len(items)),
		Recent:        recent,
	}
}
