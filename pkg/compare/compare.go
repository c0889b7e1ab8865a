// Package compare diffs two report snapshots: which topics appeared since
// the last report, which declined, how the overall sentiment moved, and a
// single overall trend call.
package compare

import (
	"math"
	"sort"

	"github.com/driftwatch/driftwatch/pkg/report"
)

// Trend is the overall direction call for a comparison.
type Trend string

const (
	TrendImproving Trend = "Improving"
	TrendDeclining Trend = "Declining"
	TrendStable    Trend = "Stable"
	TrendMixed     Trend = "Mixed"
)

const (
	defaultDeclineThreshold = 0.50
	defaultEpsilon          = 0.05
	defaultStableChurnMax   = 2
)

// Opts tune the comparison. Zero values take the defaults.
type Opts struct {
	// DeclineThreshold is the relative importance drop that marks a topic
	// declining even though it is still present. 0.5 reads as "lost more
	// than half its importance".
	DeclineThreshold float64
	// Epsilon is the compound delta below which sentiment counts as flat.
	Epsilon float64
	// StableChurnMax is the most combined topic churn (new + declining)
	// a Stable call tolerates.
	StableChurnMax int
}

func (o Opts) withDefaults() Opts {
	if o.DeclineThreshold == 0 {
		o.DeclineThreshold = defaultDeclineThreshold
	}
	if o.Epsilon == 0 {
		o.Epsilon = defaultEpsilon
	}
	if o.StableChurnMax == 0 {
		o.StableChurnMax = defaultStableChurnMax
	}
	return o
}

// Shift is the sentiment movement between two reports. Always populated,
// even when nothing moved.
type Shift struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Result of comparing a current snapshot against a historical one.
// Never persisted by this package.
type Result struct {
	NewTopics       []report.Topic `json:"new_topics"`
	DecliningTopics []report.Topic `json:"declining_topics"`
	SentimentShift  Shift          `json:"sentiment_shift"`
	Delta           float64        `json:"delta"`
	Trend           Trend          `json:"trend"`
}

// Changes converts the result into the renderer's form.
func (r Result) Changes() *report.Changes {
	c := &report.Changes{
		PreviousLabel: r.SentimentShift.From,
		CurrentLabel:  r.SentimentShift.To,
		Trend:         string(r.Trend),
	}
	for _, t := range r.NewTopics {
		c.NewTopics = append(c.NewTopics, t.Name)
	}
	for _, t := range r.DecliningTopics {
		c.DecliningTopics = append(c.DecliningTopics, t.Name)
	}
	return c
}

// Snapshots compares current against historical. Topic identity is the
// normalized name only; "uniswap v4" and "uniswap v4 hooks" are distinct
// topics. Deterministic: equal inputs always produce an equal Result.
func Snapshots(current, historical report.Snapshot, opts Opts) Result {
	opts = opts.withDefaults()

	currByName := indexTopics(current.Topics)
	histByName := indexTopics(historical.Topics)

	var fresh []report.Topic
	for _, t := range current.Topics {
		if _, ok := histByName[report.NormalizeName(t.Name)]; !ok {
			fresh = append(fresh, t)
		}
	}
	sort.SliceStable(fresh, func(i, j int) bool {
		return fresh[i].Importance > fresh[j].Importance
	})

	var declining []report.Topic
	for _, t := range historical.Topics {
		curr, ok := currByName[report.NormalizeName(t.Name)]
		if !ok {
			declining = append(declining, t)
			continue
		}
		if t.Importance > 0 && (t.Importance-curr.Importance)/t.Importance > opts.DeclineThreshold {
			declining = append(declining, t)
		}
	}
	sort.SliceStable(declining, func(i, j int) bool {
		return declining[i].Importance > declining[j].Importance
	})

	delta := current.Sentiment.Compound - historical.Sentiment.Compound
	return Result{
		NewTopics:       fresh,
		DecliningTopics: declining,
		SentimentShift:  Shift{From: historical.Sentiment.Label, To: current.Sentiment.Label},
		Delta:           delta,
		Trend:           trend(delta, opts, len(fresh), len(declining)),
	}
}

// indexTopics keys topics by normalized name. The first occurrence wins
// when a snapshot carries duplicate names.
func indexTopics(topics []report.Topic) map[string]report.Topic {
	m := make(map[string]report.Topic, len(topics))
	for _, t := range topics {
		key := report.NormalizeName(t.Name)
		if _, ok := m[key]; !ok {
			m[key] = t
		}
	}
	return m
}

// trend is total: every (delta, churn) combination maps to exactly one
// call, with Mixed as the catch-all.
func trend(delta float64, opts Opts, nNew, nDeclining int) Trend {
	switch {
	case delta > opts.Epsilon && nNew >= nDeclining:
		return TrendImproving
	case delta < -opts.Epsilon && nDeclining > nNew:
		return TrendDeclining
	case math.Abs(delta) <= opts.Epsilon && nNew+nDeclining <= opts.StableChurnMax:
		return TrendStable
	default:
		return TrendMixed
	}
}
