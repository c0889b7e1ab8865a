package report

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrUnparsableReport means the text contains no recognizable section
// headers at all. Anything less broken than that parses with defaults
// filling the gaps.
var ErrUnparsableReport = errors.New("no recognizable report sections")

const footerLine = "*Report generated by driftwatch*"

// Parsed is the result of reading a rendered report back.
type Parsed struct {
	Topic        string
	Snapshot     Snapshot
	Distribution Distribution
	Meta         Meta
	Analysis     string
	// Raw holds unrecognized lines keyed by the section they appeared in.
	Raw map[string][]string
}

// Parse reads a markdown report produced by Render. Pure: the same text
// always yields a deeply equal result. Malformed sections degrade to an
// empty topic set and an Unknown sentiment instead of failing.
func Parse(text string) (*Parsed, error) {
	ps := &parser{
		out: &Parsed{
			Snapshot: Snapshot{Sentiment: Sentiment{Label: LabelUnknown}},
			Raw:      make(map[string][]string),
		},
	}
	for _, ln := range ClassifyLines(text) {
		ps.line(ln)
	}
	return ps.finish()
}

type parser struct {
	out           *Parsed
	analysis      []string
	headerCounts  []SourceCount
	quick         *Sentiment
	sentimentSeen bool
	headers       int
}

func (ps *parser) line(ln Line) {
	switch ln.Kind {
	case HeaderLine:
		ps.headers++
		if ln.Level == 1 {
			ps.out.Topic = titleTopic(ln.Text)
		}
	case DataLine:
		ps.data(ln)
	case OtherLine:
		t := strings.TrimSpace(ln.Text)
		if t == "---" || t == footerLine {
			return
		}
		if ln.Section == SectionAnalysis {
			ps.analysis = append(ps.analysis, ln.Text)
			return
		}
		if t != "" {
			ps.out.Raw[ln.Section] = append(ps.out.Raw[ln.Section], ln.Text)
		}
	}
}

func (ps *parser) data(ln Line) {
	trimmed := strings.TrimSpace(ln.Text)
	switch ln.Section {
	case "":
		ps.preamble(trimmed)
	case SectionQuickStats:
		if m := reBoldLabel.FindStringSubmatch(trimmed); m != nil && m[1] == "Overall Sentiment" {
			if q := reQuickSent.FindStringSubmatch(m[2]); q != nil {
				ps.quick = &Sentiment{Label: canonicalLabel(q[1]), Compound: parseFloat(q[2])}
			}
		}
	case SectionSentiment:
		ps.sentiment(trimmed)
	case SectionTopics:
		ps.topic(trimmed)
	case SectionTrends:
		ps.trend(trimmed)
	case SectionSources:
		if m := reHeader.FindStringSubmatch(trimmed); m != nil {
			if h := reSourceHeader.FindStringSubmatch(stripDecoration(m[2])); h != nil {
				ps.headerCounts = append(ps.headerCounts, SourceCount{Name: h[1], Count: atoi(h[2])})
			}
		}
	}
}

func (ps *parser) preamble(trimmed string) {
	m := reBoldLabel.FindStringSubmatch(trimmed)
	if m == nil {
		return
	}
	switch m[1] {
	case "Generated":
		if t, err := time.Parse(timeLayout, strings.TrimSpace(m[2])); err == nil {
			ps.out.Meta.GeneratedAt = t
		}
	case "Analysis Model":
		ps.out.Meta.Model = strings.TrimSpace(m[2])
	case "Data Sources":
		for _, sc := range reSourceCount.FindAllStringSubmatch(m[2], -1) {
			ps.out.Meta.SourceCounts = append(ps.out.Meta.SourceCounts,
				SourceCount{Name: sc[1], Count: atoi(sc[2])})
		}
		if t := reTotalCount.FindStringSubmatch(m[2]); t != nil {
			ps.out.Meta.TotalItems = atoi(t[1])
		}
	}
}

func (ps *parser) sentiment(trimmed string) {
	if m := reBoldLabel.FindStringSubmatch(trimmed); m != nil {
		if m[1] != "Overall Sentiment" {
			return
		}
		if c := reCompound.FindStringSubmatch(m[2]); c != nil {
			ps.out.Snapshot.Sentiment = Sentiment{Label: canonicalLabel(c[1]), Compound: parseFloat(c[2])}
			ps.sentimentSeen = true
		}
		return
	}
	if m := reAnalyzed.FindStringSubmatch(trimmed); m != nil {
		ps.out.Snapshot.ItemCount = atoi(m[1])
		return
	}
	if m := reDistribution.FindStringSubmatch(stripBullet(trimmed)); m != nil {
		n := atoi(m[3])
		switch m[1] {
		case LabelPositive:
			ps.out.Distribution.Positive = n
		case LabelNeutral:
			ps.out.Distribution.Neutral = n
		case LabelNegative:
			ps.out.Distribution.Negative = n
		}
	}
}

func (ps *parser) topic(trimmed string) {
	if reBoldLabel.MatchString(trimmed) || reExtracted.MatchString(trimmed) {
		return
	}
	if m := reTopicLine.FindStringSubmatch(stripBullet(trimmed)); m != nil {
		t := Topic{Name: strings.TrimSpace(m[1]), Importance: parseFloat(m[2])}
		if m[3] != "" {
			t.Label = canonicalLabel(m[3])
		}
		ps.out.Snapshot.Topics = append(ps.out.Snapshot.Topics, t)
	}
}

func (ps *parser) trend(trimmed string) {
	m := reBoldLabel.FindStringSubmatch(trimmed)
	if m == nil || m[1] != "Date Range" {
		return
	}
	d := reDateRange.FindStringSubmatch(strings.TrimSpace(m[2]))
	if d == nil {
		return
	}
	start, err1 := time.Parse(dateLayout, d[1])
	end, err2 := time.Parse(dateLayout, d[2])
	if err1 == nil && err2 == nil {
		ps.out.Snapshot.DateRange = DateRange{Start: start, End: end}
	}
}

func (ps *parser) finish() (*Parsed, error) {
	if ps.headers == 0 {
		return nil, ErrUnparsableReport
	}
	if !ps.sentimentSeen && ps.quick != nil {
		ps.out.Snapshot.Sentiment = *ps.quick
	}
	if len(ps.out.Meta.SourceCounts) == 0 && len(ps.headerCounts) > 0 {
		ps.out.Meta.SourceCounts = ps.headerCounts
		total := 0
		for _, sc := range ps.headerCounts {
			total += sc.Count
		}
		ps.out.Meta.TotalItems = total
	}
	if ps.out.Snapshot.ItemCount == 0 {
		ps.out.Snapshot.ItemCount = ps.out.Meta.TotalItems
	}
	ps.out.Analysis = strings.TrimSpace(strings.Join(ps.analysis, "\n"))
	return ps.out, nil
}

func titleTopic(raw string) string {
	m := reHeader.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return ""
	}
	label := stripDecoration(m[2])
	return strings.TrimSpace(strings.TrimSuffix(label, titleSuffix))
}

func canonicalLabel(s string) string {
	for _, label := range []string{LabelPositive, LabelNeutral, LabelNegative, LabelUnknown} {
		if strings.EqualFold(s, label) {
			return label
		}
	}
	return LabelUnknown
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
