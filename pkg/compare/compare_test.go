package compare

import (
	"reflect"
	"testing"

	"pgregory.net/rapid"

	"github.com/driftwatch/driftwatch/pkg/report"
)

func snap(sentLabel string, compound float64, topics ...report.Topic) report.Snapshot {
	return report.Snapshot{
		Topics:    topics,
		Sentiment: report.Sentiment{Label: sentLabel, Compound: compound},
	}
}

func topic(name string, importance float64) report.Topic {
	return report.Topic{Name: name, Importance: importance}
}

func names(topics []report.Topic) []string {
	out := make([]string, len(topics))
	for i, t := range topics {
		out[i] = t.Name
	}
	return out
}

func TestSnapshotsWorkedExample(t *testing.T) {
	historical := snap(report.LabelNeutral, 0, topic("uniswap v3", 0.8))
	current := snap(report.LabelPositive, 0.342, topic("uniswap v4 hooks", 0.9))

	res := Snapshots(current, historical, Opts{})

	if !reflect.DeepEqual(names(res.NewTopics), []string{"uniswap v4 hooks"}) {
		t.Errorf("expected new [uniswap v4 hooks], got %v", names(res.NewTopics))
	}
	if !reflect.DeepEqual(names(res.DecliningTopics), []string{"uniswap v3"}) {
		t.Errorf("expected declining [uniswap v3], got %v", names(res.DecliningTopics))
	}
	if res.SentimentShift != (Shift{From: report.LabelNeutral, To: report.LabelPositive}) {
		t.Errorf("expected Neutral → Positive shift, got %+v", res.SentimentShift)
	}
	if res.Trend != TrendImproving {
		t.Errorf("expected Improving, got %s", res.Trend)
	}
}

func TestSnapshotsSelfCompare(t *testing.T) {
	s := snap(report.LabelPositive, 0.4,
		topic("generics", 0.9), topic("error handling", 0.5))

	res := Snapshots(s, s, Opts{})

	if len(res.NewTopics) != 0 || len(res.DecliningTopics) != 0 {
		t.Errorf("self compare must report no churn, got new=%v declining=%v",
			names(res.NewTopics), names(res.DecliningTopics))
	}
	if res.SentimentShift != (Shift{From: report.LabelPositive, To: report.LabelPositive}) {
		t.Errorf("expected identical shift, got %+v", res.SentimentShift)
	}
	if res.Trend != TrendStable {
		t.Errorf("expected Stable, got %s", res.Trend)
	}
}

func TestSnapshotsDecliningByImportanceDrop(t *testing.T) {
	cases := []struct {
		name      string
		hist      float64
		curr      float64
		declining bool
	}{
		{"dropped well past half", 1.0, 0.4, true},
		{"dropped exactly half", 1.0, 0.5, false},
		{"dropped slightly", 1.0, 0.9, false},
		{"grew", 0.5, 0.9, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Snapshots(
				snap(report.LabelNeutral, 0, topic("a", tc.curr)),
				snap(report.LabelNeutral, 0, topic("a", tc.hist)),
				Opts{},
			)
			got := len(res.DecliningTopics) == 1
			if got != tc.declining {
				t.Fatalf("hist %.1f curr %.1f: declining=%v, want %v", tc.hist, tc.curr, got, tc.declining)
			}
		})
	}
}

func TestSnapshotsNameIdentity(t *testing.T) {
	historical := snap(report.LabelNeutral, 0, topic("Uniswap  V3", 0.8))
	current := snap(report.LabelNeutral, 0, topic("uniswap v3", 0.8), topic("uniswap v3 forks", 0.3))

	res := Snapshots(current, historical, Opts{})

	if len(res.DecliningTopics) != 0 {
		t.Errorf("case and spacing must not split a topic, got declining %v", names(res.DecliningTopics))
	}
	if !reflect.DeepEqual(names(res.NewTopics), []string{"uniswap v3 forks"}) {
		t.Errorf("longer names are distinct topics, got new %v", names(res.NewTopics))
	}
}

func TestSnapshotsOrdering(t *testing.T) {
	historical := snap(report.LabelNeutral, 0,
		topic("old minor", 0.2), topic("old major", 0.9), topic("kept", 0.5))
	current := snap(report.LabelNeutral, 0,
		topic("kept", 0.5), topic("new minor", 0.1), topic("new major", 0.8))

	res := Snapshots(current, historical, Opts{})

	if !reflect.DeepEqual(names(res.NewTopics), []string{"new major", "new minor"}) {
		t.Errorf("new topics must sort by descending current importance, got %v", names(res.NewTopics))
	}
	if !reflect.DeepEqual(names(res.DecliningTopics), []string{"old major", "old minor"}) {
		t.Errorf("declining topics must sort by descending historical importance, got %v", names(res.DecliningTopics))
	}
}

func TestTrendTable(t *testing.T) {
	cases := []struct {
		name  string
		delta float64
		nNew  int
		nDecl int
		want  Trend
	}{
		{"sentiment up, more new", 0.2, 3, 1, TrendImproving},
		{"sentiment up, equal churn", 0.2, 1, 1, TrendImproving},
		{"sentiment up, mostly declining", 0.2, 0, 2, TrendMixed},
		{"sentiment down, more declining", -0.2, 0, 2, TrendDeclining},
		{"sentiment down, equal churn", -0.2, 1, 1, TrendMixed},
		{"flat, quiet", 0.0, 1, 1, TrendStable},
		{"flat, zero churn", 0.0, 0, 0, TrendStable},
		{"flat, heavy churn", 0.0, 3, 3, TrendMixed},
		{"epsilon boundary up", 0.05, 0, 0, TrendStable},
		{"just past epsilon", 0.051, 1, 0, TrendImproving},
		{"epsilon boundary down", -0.05, 0, 0, TrendStable},
		{"just past epsilon down", -0.051, 0, 1, TrendDeclining},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := trend(tc.delta, Opts{}.withDefaults(), tc.nNew, tc.nDecl)
			if got != tc.want {
				t.Fatalf("trend(%v, new=%d, declining=%d) = %s, want %s",
					tc.delta, tc.nNew, tc.nDecl, got, tc.want)
			}
		})
	}
}

// Every (delta, churn) combination yields exactly one of the four calls,
// and equal inputs always yield equal results.
func TestSnapshotsDeterministic(t *testing.T) {
	labels := []string{report.LabelPositive, report.LabelNeutral, report.LabelNegative}
	genSnap := func(rt *rapid.T, prefix string) report.Snapshot {
		n := rapid.IntRange(0, 6).Draw(rt, prefix+"N")
		topics := make([]report.Topic, n)
		for i := range topics {
			topics[i] = report.Topic{
				Name:       rapid.StringMatching(`[a-z]{1,8}`).Draw(rt, prefix+"Name"),
				Importance: rapid.Float64Range(0.001, 1).Draw(rt, prefix+"Imp"),
			}
		}
		return report.Snapshot{
			Topics: topics,
			Sentiment: report.Sentiment{
				Label:    rapid.SampledFrom(labels).Draw(rt, prefix+"Label"),
				Compound: rapid.Float64Range(-1, 1).Draw(rt, prefix+"Compound"),
			},
		}
	}

	rapid.Check(t, func(rt *rapid.T) {
		current := genSnap(rt, "curr")
		historical := genSnap(rt, "hist")

		first := Snapshots(current, historical, Opts{})
		second := Snapshots(current, historical, Opts{})
		if !reflect.DeepEqual(first, second) {
			rt.Fatalf("same inputs produced different results:\n%+v\n%+v", first, second)
		}

		switch first.Trend {
		case TrendImproving, TrendDeclining, TrendStable, TrendMixed:
		default:
			rt.Fatalf("trend %q is not one of the four calls", first.Trend)
		}
	})
}
