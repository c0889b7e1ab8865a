// Package analyze turns collected items into the report document model:
// VADER sentiment scoring, RAKE topic extraction and posting-frequency
// trends. Everything here is pure and deterministic for a fixed item set.
package analyze

import (
	"github.com/driftwatch/driftwatch/pkg/report"
	"github.com/driftwatch/driftwatch/pkg/sources"
)

// Summary is the full analysis of one run's items.
type Summary struct {
	Snapshot     report.Snapshot
	Distribution report.Distribution
	Activity     *report.Activity
}

// Summarize scores every item once and assembles the snapshot the
// renderer and the comparison engine consume.
func Summarize(items []sources.Item, topicLimit int) Summary {
	scores := scoreItems(items)
	sent := overallSentiment(scores)
	dateRange, activity := Activity(items)
	return Summary{
		Snapshot: report.Snapshot{
			Topics:    topicsFromScores(scores, topicLimit),
			Sentiment: sent.Overall,
			DateRange: dateRange,
			ItemCount: len(items),
		},
		Distribution: sent.Distribution,
		Activity:     activity,
	}
}
