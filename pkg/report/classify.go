package report

import (
	"regexp"
	"strings"
)

// LineKind tags one line of a report document.
type LineKind int

const (
	// OtherLine is anything unrecognized. It is preserved verbatim in the
	// parsed result's raw text for its section and never corrupts later
	// sections.
	OtherLine LineKind = iota
	// HeaderLine is a markdown header whose decoration-stripped text is a
	// known section label (or the report title).
	HeaderLine
	// DataLine matches the data pattern of the section it appears in.
	DataLine
)

// Line is one classified line with the section it belongs to. Section is
// "" for the preamble before the first known header.
type Line struct {
	Kind    LineKind
	Section string
	Level   int
	Text    string
}

// Canonical section labels. Raw text in Parsed.Raw is keyed by these.
const (
	SectionQuickStats = "Quick Stats"
	SectionChanges    = "Changes Since Last Report"
	SectionSentiment  = "Sentiment Analysis"
	SectionTopics     = "Top Topics"
	SectionTrends     = "Temporal Trends"
	SectionAnalysis   = "Analysis"
	SectionSources    = "Data Sources"
)

const titleSuffix = "- Research Report"

// sectionLabels maps decoration-stripped header text to its canonical
// section. "Top Keywords" is the label older reports used.
var sectionLabels = map[string]string{
	"Quick Stats":               SectionQuickStats,
	"Changes Since Last Report": SectionChanges,
	"Sentiment Analysis":        SectionSentiment,
	"Top Topics":                SectionTopics,
	"Top Keywords":              SectionTopics,
	"Temporal Trends":           SectionTrends,
	"Analysis":                  SectionAnalysis,
	"AI Analysis":               SectionAnalysis,
	"Data Sources":              SectionSources,
}

var (
	reHeader       = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	reBoldLabel    = regexp.MustCompile(`^\*\*([^*]+)\*\*:\s*(.*)$`)
	reTopicLine    = regexp.MustCompile(`^(.+?)\s*\(([0-9]*\.?[0-9]+)(?:,\s*([A-Za-z]+))?\)$`)
	reCompound     = regexp.MustCompile(`^([A-Za-z]+)\s*\(compound score:\s*([+-]?[0-9]*\.?[0-9]+)\)`)
	reQuickSent    = regexp.MustCompile(`^([A-Za-z]+)\s*\(([+-]?[0-9]*\.?[0-9]+)\)`)
	reDistribution = regexp.MustCompile(`^(Positive|Neutral|Negative):\s*█*\s*([0-9.]+)%\s*\((\d+)\s+items?\)$`)
	reAnalyzed     = regexp.MustCompile(`^\*Analyzed\s+(\d+)\s+items?\*$`)
	reExtracted    = regexp.MustCompile(`^\*Extracted\s+(\d+)\s+total topics\*$`)
	reDateRange    = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\s+to\s+(\d{4}-\d{2}-\d{2})$`)
	reDayCount     = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}):\s*(\d+)\s+items?$`)
	reFreqStat     = regexp.MustCompile(`^(Average|Peak|Coverage|Engagement):\s*[0-9.]+`)
	reSourceCount  = regexp.MustCompile(`([A-Za-z0-9_.-]+)\s*\((\d+)\)`)
	reTotalCount   = regexp.MustCompile(`Total:\s*(\d+)`)
	reSourceHeader = regexp.MustCompile(`^([A-Za-z0-9_.-]+)\s+-\s+(\d+)\s+items?$`)
	reItemNumber   = regexp.MustCompile(`^\d+\.\s+\*\*`)
)

// ClassifyLines splits text into lines and tags each one. Section state
// advances only on known headers, so a stray or misspelled header leaves
// the current section intact.
func ClassifyLines(text string) []Line {
	raw := strings.Split(text, "\n")
	lines := make([]Line, 0, len(raw))
	section := ""
	for _, r := range raw {
		ln := classifyLine(r, section)
		if ln.Kind == HeaderLine {
			section = ln.Section
		}
		lines = append(lines, ln)
	}
	return lines
}

func classifyLine(raw, section string) Line {
	trimmed := strings.TrimSpace(raw)

	if m := reHeader.FindStringSubmatch(trimmed); m != nil {
		level := len(m[1])
		label := stripDecoration(m[2])
		if level == 1 && strings.HasSuffix(label, titleSuffix) {
			return Line{Kind: HeaderLine, Section: "", Level: level, Text: raw}
		}
		if canonical, ok := sectionLabels[label]; ok && level == 2 {
			return Line{Kind: HeaderLine, Section: canonical, Level: level, Text: raw}
		}
		if level == 3 && section == SectionSources && reSourceHeader.MatchString(label) {
			return Line{Kind: DataLine, Section: section, Level: level, Text: raw}
		}
		return Line{Kind: OtherLine, Section: section, Text: raw}
	}

	if isDataLine(trimmed, section) {
		return Line{Kind: DataLine, Section: section, Text: raw}
	}
	return Line{Kind: OtherLine, Section: section, Text: raw}
}

func isDataLine(trimmed, section string) bool {
	if trimmed == "" || trimmed == "---" {
		return false
	}
	boldLabel := ""
	if m := reBoldLabel.FindStringSubmatch(trimmed); m != nil {
		boldLabel = m[1]
	}

	switch section {
	case "":
		switch boldLabel {
		case "Generated", "Data Sources", "Analysis Model":
			return true
		}
	case SectionQuickStats:
		return boldLabel == "Overall Sentiment"
	case SectionChanges:
		switch boldLabel {
		case "New Topics", "Declining Topics", "Sentiment Shift", "Overall Trend":
			return true
		}
		return strings.HasPrefix(trimmed, "-") && stripBullet(trimmed) != ""
	case SectionSentiment:
		if boldLabel == "Overall Sentiment" || boldLabel == "Distribution" {
			return true
		}
		return reDistribution.MatchString(stripBullet(trimmed)) || reAnalyzed.MatchString(trimmed)
	case SectionTopics:
		if boldLabel == "Most Important Topics" || reExtracted.MatchString(trimmed) {
			return true
		}
		return reTopicLine.MatchString(stripBullet(trimmed))
	case SectionTrends:
		switch boldLabel {
		case "Date Range", "Posting Frequency", "Recent Activity":
			return true
		}
		s := stripBullet(trimmed)
		return reFreqStat.MatchString(s) || reDayCount.MatchString(s)
	case SectionSources:
		return reItemNumber.MatchString(trimmed)
	}
	return false
}

// stripDecoration drops emoji and bullet glyphs so labels and values match
// on their plain text. Emphasis markers are handled by the patterns that
// expect them.
func stripDecoration(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for _, r := range s {
		if r == '•' || r == 0xFE0F || r == 0x200D || r >= 0x1F000 || (r >= 0x2600 && r <= 0x27BF) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// stripBullet removes decoration plus a leading "-" list marker.
func stripBullet(s string) string {
	s = stripDecoration(s)
	if strings.HasPrefix(s, "-") {
		return strings.TrimSpace(s[1:])
	}
	return s
}
