package analyze

import (
	"sort"
	"strings"
	"unicode"

	rake "github.com/afjoseph/RAKE.Go"

	"github.com/driftwatch/driftwatch/pkg/report"
	"github.com/driftwatch/driftwatch/pkg/sources"
)

// DefaultTopicCount is how many topics a report carries unless told
// otherwise.
const DefaultTopicCount = 15

// Topics extracts candidate phrases with RAKE, normalizes their scores to
// (0, 1] importance and labels each topic with the majority sentiment of
// the items mentioning it. Ranked by descending importance, name as the
// tiebreak, cut at limit.
func Topics(items []sources.Item, limit int) []report.Topic {
	return topicsFromScores(scoreItems(items), limit)
}

func topicsFromScores(scores []scored, limit int) []report.Topic {
	if limit <= 0 {
		limit = DefaultTopicCount
	}
	if len(scores) == 0 {
		return nil
	}

	var corpus strings.Builder
	for _, s := range scores {
		corpus.WriteString(s.item.Text())
		// Sentence break so phrases never span two items.
		corpus.WriteString(". ")
	}

	best := make(map[string]float64)
	for _, c := range rake.RunRake(corpus.String()) {
		phrase := report.NormalizeName(c.Key)
		if !usablePhrase(phrase) {
			continue
		}
		if c.Value > best[phrase] {
			best[phrase] = c.Value
		}
	}
	if len(best) == 0 {
		return nil
	}

	maxScore := 0.0
	for _, v := range best {
		if v > maxScore {
			maxScore = v
		}
	}

	topics := make([]report.Topic, 0, len(best))
	for phrase, score := range best {
		topics = append(topics, report.Topic{Name: phrase, Importance: score / maxScore})
	}
	sort.SliceStable(topics, func(i, j int) bool {
		if topics[i].Importance != topics[j].Importance {
			return topics[i].Importance > topics[j].Importance
		}
		return topics[i].Name < topics[j].Name
	})
	if len(topics) > limit {
		topics = topics[:limit]
	}

	for i := range topics {
		topics[i].Label = topicLabel(topics[i].Name, scores)
	}
	return topics
}

// usablePhrase rejects degenerate RAKE candidates: too short, too long,
// letterless, or a bare stopword.
func usablePhrase(phrase string) bool {
	if len(phrase) < 3 {
		return false
	}
	words := strings.Fields(phrase)
	if len(words) > 4 {
		return false
	}
	hasLetter := false
	for _, r := range phrase {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		return false
	}
	if len(words) == 1 && IsStopWord(words[0]) {
		return false
	}
	return true
}

// topicLabel is the majority sentiment among items mentioning the phrase.
// Ties and zero mentions read Neutral.
func topicLabel(phrase string, scores []scored) string {
	var pos, neg, neu int
	for _, s := range scores {
		if !strings.Contains(s.lower, phrase) {
			continue
		}
		switch s.label {
		case report.LabelPositive:
			pos++
		case report.LabelNegative:
			neg++
		default:
			neu++
		}
	}
	switch {
	case pos > neg && pos > neu:
		return report.LabelPositive
	case neg > pos && neg > neu:
		return report.LabelNegative
	default:
		return report.LabelNeutral
	}
}

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(
		"a about an and are as at be been but by can did do does for from had has " +
			"have he her his how i if in into is it its just like me more most " +
			"my no not of on or our out she so some than that the their them " +
			"then there these they this to too up us was we were what when " +
			"where which who why will with would you your") {
		stopWords[w] = struct{}{}
	}
}

// IsStopWord reports whether w (lowercase) is a common English word that
// carries no topical signal. Shared with the follow-up session's
// relevance ranking.
func IsStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}
