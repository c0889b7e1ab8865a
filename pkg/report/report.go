// Package report defines the research report document model, renders it to
// markdown and parses it back. Render and Parse are inverses on the snapshot
// fields (topics, overall sentiment, date range) at the rendered precision,
// which is what lets archived reports feed the comparison engine.
package report

import (
	"strings"
	"time"
)

// Sentiment labels used across rendering, parsing and comparison.
const (
	LabelPositive = "Positive"
	LabelNeutral  = "Neutral"
	LabelNegative = "Negative"
	LabelUnknown  = "Unknown"
)

// Topic is one extracted topic with its normalized importance in (0, 1].
type Topic struct {
	Name       string  `json:"name"`
	Importance float64 `json:"importance"`
	Label      string  `json:"label,omitempty"`
}

// Sentiment is the overall sentiment of a report.
type Sentiment struct {
	Label    string  `json:"label"`
	Compound float64 `json:"compound"`
}

// DateRange spans the earliest and latest item dates in a report.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// IsZero reports whether no dated items contributed to the range.
func (r DateRange) IsZero() bool { return r.Start.IsZero() && r.End.IsZero() }

// Snapshot is the comparable core of a report: what the comparison engine
// consumes and what survives a render/parse round trip.
type Snapshot struct {
	Topics    []Topic   `json:"topics"`
	Sentiment Sentiment `json:"sentiment"`
	DateRange DateRange `json:"date_range"`
	ItemCount int       `json:"item_count"`
}

// TopTopic returns the name of the highest-ranked topic, or "".
func (s Snapshot) TopTopic() string {
	if len(s.Topics) == 0 {
		return ""
	}
	return s.Topics[0].Name
}

// Distribution counts items per sentiment label.
type Distribution struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

func (d Distribution) Total() int { return d.Positive + d.Neutral + d.Negative }

// DayCount is the item count for one calendar day.
type DayCount struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// Activity describes posting frequency over the report's date range.
type Activity struct {
	Average       float64    `json:"average"`
	Peak          int        `json:"peak"`
	Coverage      int        `json:"coverage"`
	AvgEngagement float64    `json:"avg_engagement,omitempty"`
	Recent        []DayCount `json:"recent,omitempty"`
}

// Changes is the rendered form of a comparison against the previous report.
type Changes struct {
	NewTopics       []string `json:"new_topics"`
	DecliningTopics []string `json:"declining_topics"`
	PreviousLabel   string   `json:"previous_label"`
	CurrentLabel    string   `json:"current_label"`
	Trend           string   `json:"trend"`
}

// SourceCount is one source's contribution to a report.
type SourceCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Meta is the report preamble: when it was generated, by which model, and
// how many items each source contributed.
type Meta struct {
	GeneratedAt  time.Time     `json:"generated_at"`
	Model        string        `json:"model,omitempty"`
	SourceCounts []SourceCount `json:"source_counts,omitempty"`
	TotalItems   int           `json:"total_items"`
}

// NormalizeName is the topic identity used by parsing and comparison:
// lowercase with runs of whitespace collapsed to single spaces. There is
// no fuzzy matching, so "uniswap v4" and "uniswap v4 hooks" stay distinct.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
