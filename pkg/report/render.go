package report

import (
	"fmt"
	"strings"

	"github.com/driftwatch/driftwatch/pkg/sources"
)

const (
	timeLayout = "2006-01-02 15:04:05"
	dateLayout = "2006-01-02"

	// Per-source cap in the Data Sources listing. Everything past it is
	// summarized as "...and N more".
	maxListedPerSource = 10
)

// Document is everything the renderer needs for one report.
type Document struct {
	Topic        string
	Meta         Meta
	Snapshot     Snapshot
	Distribution Distribution
	Activity     *Activity
	Changes      *Changes
	Analysis     string
	Items        []sources.Item
}

// Render produces the markdown report for doc. The output is the exact
// format Parse understands; topic importances and the sentiment compound
// are written with three decimals.
func Render(doc *Document) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s - Research Report\n\n", doc.Topic)
	renderMeta(&b, doc.Meta)
	b.WriteString("---\n\n")

	renderQuickStats(&b, doc)
	if doc.Changes != nil {
		renderChanges(&b, doc.Changes)
	}
	renderSentiment(&b, doc)
	renderTopics(&b, doc.Snapshot.Topics)
	if doc.Activity != nil || !doc.Snapshot.DateRange.IsZero() {
		renderTrends(&b, doc)
	}
	if text := strings.TrimSpace(doc.Analysis); text != "" {
		fmt.Fprintf(&b, "## 🤖 Analysis\n\n%s\n\n", text)
	}
	if len(doc.Items) > 0 {
		renderItems(&b, doc.Items)
	}

	b.WriteString("---\n*Report generated by driftwatch*\n")
	return b.String()
}

func renderMeta(b *strings.Builder, m Meta) {
	if !m.GeneratedAt.IsZero() {
		fmt.Fprintf(b, "**Generated**: %s\n", m.GeneratedAt.Format(timeLayout))
	}
	if len(m.SourceCounts) > 0 {
		parts := make([]string, 0, len(m.SourceCounts))
		for _, sc := range m.SourceCounts {
			parts = append(parts, fmt.Sprintf("%s (%d)", sc.Name, sc.Count))
		}
		fmt.Fprintf(b, "**Data Sources**: %s - Total: %d\n", strings.Join(parts, ", "), m.TotalItems)
	}
	if m.Model != "" {
		fmt.Fprintf(b, "**Analysis Model**: %s\n", m.Model)
	}
	b.WriteString("\n")
}

func renderQuickStats(b *strings.Builder, doc *Document) {
	parts := []string{fmt.Sprintf("**Overall Sentiment**: %s (%+.3f)",
		doc.Snapshot.Sentiment.Label, doc.Snapshot.Sentiment.Compound)}
	if top := doc.Snapshot.TopTopic(); top != "" {
		parts = append(parts, fmt.Sprintf("**Top Topic**: %s", top))
	}
	if doc.Activity != nil {
		parts = append(parts, fmt.Sprintf("**Avg Activity**: %.1f items/day", doc.Activity.Average))
	}
	fmt.Fprintf(b, "## 📊 Quick Stats\n\n%s\n\n", strings.Join(parts, " | "))
}

func renderChanges(b *strings.Builder, c *Changes) {
	b.WriteString("## 🔄 Changes Since Last Report\n\n")
	if len(c.NewTopics) > 0 {
		b.WriteString("**New Topics**:\n")
		for _, name := range c.NewTopics {
			fmt.Fprintf(b, "- ✨ %s\n", name)
		}
		b.WriteString("\n")
	}
	if len(c.DecliningTopics) > 0 {
		b.WriteString("**Declining Topics**:\n")
		for _, name := range c.DecliningTopics {
			fmt.Fprintf(b, "- 📉 %s\n", name)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(b, "**Sentiment Shift**: %s → %s\n\n", c.PreviousLabel, c.CurrentLabel)
	fmt.Fprintf(b, "**Overall Trend**: %s\n\n", c.Trend)
}

func renderSentiment(b *strings.Builder, doc *Document) {
	b.WriteString("## 😊 Sentiment Analysis\n\n")
	fmt.Fprintf(b, "**Overall Sentiment**: %s (compound score: %+.3f)\n\n",
		doc.Snapshot.Sentiment.Label, doc.Snapshot.Sentiment.Compound)

	if total := doc.Distribution.Total(); total > 0 {
		b.WriteString("**Distribution**:\n")
		writeBar := func(label string, count int) {
			pct := 100 * float64(count) / float64(total)
			bar := strings.Repeat("█", int(pct/2))
			fmt.Fprintf(b, "- %-9s %s %.1f%% (%d items)\n", label+":", bar, pct, count)
		}
		writeBar(LabelPositive, doc.Distribution.Positive)
		writeBar(LabelNeutral, doc.Distribution.Neutral)
		writeBar(LabelNegative, doc.Distribution.Negative)
		b.WriteString("\n")
	}

	fmt.Fprintf(b, "*Analyzed %d items*\n\n", doc.Snapshot.ItemCount)
}

func topicGlyph(importance float64) string {
	switch {
	case importance >= 0.7:
		return "🔥"
	case importance >= 0.4:
		return "📌"
	default:
		return "•"
	}
}

func renderTopics(b *strings.Builder, topics []Topic) {
	b.WriteString("## 🔑 Top Topics\n\n")
	if len(topics) == 0 {
		b.WriteString("*No topics extracted*\n\n")
		return
	}
	b.WriteString("**Most Important Topics**:\n")
	for _, t := range topics {
		if t.Label != "" {
			fmt.Fprintf(b, "%s %s (%.3f, %s)\n", topicGlyph(t.Importance), t.Name, t.Importance, t.Label)
		} else {
			fmt.Fprintf(b, "%s %s (%.3f)\n", topicGlyph(t.Importance), t.Name, t.Importance)
		}
	}
	fmt.Fprintf(b, "\n*Extracted %d total topics*\n\n", len(topics))
}

func renderTrends(b *strings.Builder, doc *Document) {
	b.WriteString("## 📈 Temporal Trends\n\n")
	if r := doc.Snapshot.DateRange; !r.IsZero() {
		fmt.Fprintf(b, "**Date Range**: %s to %s\n\n",
			r.Start.Format(dateLayout), r.End.Format(dateLayout))
	}
	if a := doc.Activity; a != nil {
		b.WriteString("**Posting Frequency**:\n")
		fmt.Fprintf(b, "- Average: %.1f items/day\n", a.Average)
		fmt.Fprintf(b, "- Peak: %d items/day\n", a.Peak)
		fmt.Fprintf(b, "- Coverage: %d days\n", a.Coverage)
		if a.AvgEngagement > 0 {
			fmt.Fprintf(b, "- Engagement: %.1f avg\n", a.AvgEngagement)
		}
		b.WriteString("\n")
		if len(a.Recent) > 0 {
			b.WriteString("**Recent Activity**:\n")
			for _, day := range a.Recent {
				fmt.Fprintf(b, "- %s: %d items\n", day.Date.Format(dateLayout), day.Count)
			}
			b.WriteString("\n")
		}
	}
}

func renderItems(b *strings.Builder, items []sources.Item) {
	b.WriteString("## 📚 Data Sources\n\n")

	order := make([]string, 0, 4)
	grouped := make(map[string][]sources.Item)
	for _, it := range items {
		if _, ok := grouped[it.Source]; !ok {
			order = append(order, it.Source)
		}
		grouped[it.Source] = append(grouped[it.Source], it)
	}

	for _, name := range order {
		group := grouped[name]
		fmt.Fprintf(b, "### %s - %d items\n\n", name, len(group))
		for i, it := range group {
			if i == maxListedPerSource {
				fmt.Fprintf(b, "*...and %d more*\n", len(group)-maxListedPerSource)
				break
			}
			fmt.Fprintf(b, "%d. **%s**\n", i+1, it.Title)
			detail := []string{}
			if it.Site != "" {
				detail = append(detail, "Source: "+it.Site)
			}
			if !it.PublishedAt.IsZero() {
				detail = append(detail, "Date: "+it.PublishedAt.Format(dateLayout))
			}
			if len(detail) > 0 {
				fmt.Fprintf(b, "   %s\n", strings.Join(detail, " | "))
			}
			if it.URL != "" {
				fmt.Fprintf(b, "   [View](%s)\n", it.URL)
			}
		}
		b.WriteString("\n")
	}
}
