package analyze

import (
	"strings"

	"github.com/jonreiter/govader"

	"github.com/driftwatch/driftwatch/pkg/report"
	"github.com/driftwatch/driftwatch/pkg/sources"
)

var vader = govader.NewSentimentIntensityAnalyzer()

// scored is one item with its sentiment attached. The lowered text is kept
// so topic labeling does not re-lower the corpus per topic.
type scored struct {
	item     sources.Item
	lower    string
	compound float64
	label    string
}

func scoreItems(items []sources.Item) []scored {
	out := make([]scored, 0, len(items))
	for _, it := range items {
		text := it.Text()
		s := scored{item: it, lower: strings.ToLower(text), label: report.LabelNeutral}
		if strings.TrimSpace(text) != "" {
			s.compound = vader.PolarityScores(text).Compound
			s.label = Label(s.compound)
		}
		out = append(out, s)
	}
	return out
}

// Label maps a compound score to its sentiment label using the
// conventional VADER cutoffs.
func Label(compound float64) string {
	switch {
	case compound >= 0.05:
		return report.LabelPositive
	case compound <= -0.05:
		return report.LabelNegative
	default:
		return report.LabelNeutral
	}
}

// SentimentSummary is the corpus-level sentiment.
type SentimentSummary struct {
	Overall      report.Sentiment
	Distribution report.Distribution
}

// Sentiment scores every item and aggregates. An empty corpus reads
// Unknown with a zero compound.
func Sentiment(items []sources.Item) SentimentSummary {
	return overallSentiment(scoreItems(items))
}

func overallSentiment(scores []scored) SentimentSummary {
	if len(scores) == 0 {
		return SentimentSummary{Overall: report.Sentiment{Label: report.LabelUnknown}}
	}
	var sum float64
	var dist report.Distribution
	for _, s := range scores {
		sum += s.compound
		switch s.label {
		case report.LabelPositive:
			dist.Positive++
		case report.LabelNegative:
			dist.Negative++
		default:
			dist.Neutral++
		}
	}
	mean := sum / float64(len(scores))
	return SentimentSummary{
		Overall:      report.Sentiment{Label: Label(mean), Compound: mean},
		Distribution: dist,
	}
}
