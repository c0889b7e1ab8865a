package errlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/driftwatch/driftwatch/pkg/collect"
)

func tempLog(t *testing.T) (*Log, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "errors.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l, path
}

func TestRecordAndRead(t *testing.T) {
	l, path := tempLog(t)

	base := time.Date(2026, 4, 3, 8, 0, 0, 0, time.UTC)
	l.RecordAttempt(collect.AttemptRecord{
		Time:    base,
		Source:  "hackernews",
		Attempt: 1,
		Kind:    "ratelimit",
		Delay:   2 * time.Second,
		Message: "status 429: too many requests",
	})
	l.RecordAttempt(collect.AttemptRecord{
		Time:    base.Add(2 * time.Second),
		Source:  "hackernews",
		Attempt: 2,
		Kind:    "ratelimit",
		Message: "status 429: too many requests",
	})
	l.RecordAttempt(collect.AttemptRecord{
		Time:    base.Add(3 * time.Second),
		Source:  "twitter",
		Attempt: 1,
		Kind:    "auth",
		Message: "status 401: unauthorized",
	})

	events, err := Read(path, Filter{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	first := events[0]
	if first.Source != "hackernews" || first.Attempt != 1 || first.Kind != "ratelimit" {
		t.Errorf("first event = %+v", first)
	}
	if first.DelayMS != 2000 {
		t.Errorf("delay_ms = %d, want 2000", first.DelayMS)
	}
	if !first.Time.Equal(base) {
		t.Errorf("time = %v", first.Time)
	}
}

func TestReadFilters(t *testing.T) {
	l, path := tempLog(t)

	base := time.Date(2026, 4, 3, 8, 0, 0, 0, time.UTC)
	l.RecordAttempt(collect.AttemptRecord{Time: base, Source: "a", Attempt: 1, Kind: "network", Message: "m"})
	l.RecordAttempt(collect.AttemptRecord{Time: base.Add(time.Hour), Source: "b", Attempt: 1, Kind: "auth", Message: "m"})
	l.RecordAttempt(collect.AttemptRecord{Time: base.Add(2 * time.Hour), Source: "a", Attempt: 2, Kind: "timeout", Message: "m"})

	bySource, err := Read(path, Filter{Source: "a"})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(bySource) != 2 {
		t.Errorf("source filter got %d events, want 2", len(bySource))
	}

	byKind, err := Read(path, Filter{Kind: "auth"})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(byKind) != 1 || byKind[0].Source != "b" {
		t.Errorf("kind filter = %+v", byKind)
	}

	since, err := Read(path, Filter{Since: base.Add(30 * time.Minute)})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(since) != 2 {
		t.Errorf("since filter got %d events, want 2", len(since))
	}
}

func TestReadSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.jsonl")
	content := `{"time":"2026-04-03T08:00:00Z","source":"a","kind":"network","message":"ok"}
this line is not json
{"time":"2026-04-03T08:01:00Z","source":"b","kind":"auth","mess` + "\n" + `{"time":"2026-04-03T08:02:00Z","source":"c","kind":"timeout","message":"ok"}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	events, err := Read(path, Filter{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want the 2 intact ones", len(events))
	}
	if events[0].Source != "a" || events[1].Source != "c" {
		t.Errorf("events = %+v", events)
	}
}

func TestReadMissingFile(t *testing.T) {
	events, err := Read(filepath.Join(t.TempDir(), "nope.jsonl"), Filter{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if events != nil {
		t.Errorf("events = %v, want nil", events)
	}
}

func TestRecordRun(t *testing.T) {
	l, path := tempLog(t)

	l.RecordRun("uniswap v4", &collect.Report{
		Succeeded:   []string{"hackernews", "web"},
		FailedNames: []string{"twitter"},
		Elapsed:     1500 * time.Millisecond,
	})

	events, err := Read(path, Filter{Kind: "run"})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d run events, want 1", len(events))
	}
	msg := events[0].Message
	for _, want := range []string{"uniswap v4", "2/3 sources"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestSuggestionTable(t *testing.T) {
	for _, kind := range []string{"auth", "ratelimit", "network", "timeout", "unknown"} {
		if Suggestion(kind) == "" {
			t.Errorf("no suggestion for %q", kind)
		}
	}
	if Suggestion("cancelled") != "" {
		t.Error("cancelled runs need no suggestion")
	}
}
