// Package errlog keeps an append-only JSONL log of collection attempts so
// failures survive the run that produced them.
package errlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/driftwatch/driftwatch/internal/utils"
	"github.com/driftwatch/driftwatch/pkg/collect"
)

// Event is one logged line. Attempt events come from the collector; run
// events summarize a whole collection pass.
type Event struct {
	Time    time.Time `json:"time"`
	Source  string    `json:"source"`
	Attempt int       `json:"attempt,omitempty"`
	Kind    string    `json:"kind"`
	DelayMS int64     `json:"delay_ms,omitempty"`
	Message string    `json:"message"`
}

const runKind = "run"

// Log appends events to a file. Safe for concurrent use.
type Log struct {
	mu sync.Mutex
	f  *os.File
}

// Open opens (or creates) the log file for appending.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &Log{f: f}, nil
}

func (l *Log) Close() error {
	if l == nil || l.f == nil {
		return nil
	}
	return l.f.Close()
}

// RecordAttempt implements collect.AttemptSink. Write failures are logged
// and swallowed; a broken event log must never fail a collection run.
func (l *Log) RecordAttempt(rec collect.AttemptRecord) {
	l.append(Event{
		Time:    rec.Time,
		Source:  rec.Source,
		Attempt: rec.Attempt,
		Kind:    rec.Kind,
		DelayMS: rec.Delay.Milliseconds(),
		Message: rec.Message,
	})
}

// RecordRun logs one summary event for a finished collection pass.
func (l *Log) RecordRun(topic string, rep *collect.Report) {
	if rep == nil {
		return
	}
	l.append(Event{
		Time:   time.Now().UTC(),
		Source: runKind,
		Kind:   runKind,
		Message: fmt.Sprintf("topic %q: %d/%d sources succeeded, %d items in %s",
			topic, len(rep.Succeeded), len(rep.Succeeded)+len(rep.FailedNames), len(rep.Items), rep.Elapsed.Round(time.Millisecond)),
	})
}

func (l *Log) append(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	line, err := json.Marshal(ev)
	if err != nil {
		utils.Log.Debugf("[errlog] marshal event: %v", err)
		return
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.f.Write(line); err != nil {
		utils.Log.Debugf("[errlog] append event: %v", err)
	}
}

// Filter selects events when reading the log back.
type Filter struct {
	Source string
	Kind   string
	Since  time.Time
}

func (f Filter) match(ev Event) bool {
	if f.Source != "" && ev.Source != f.Source {
		return false
	}
	if f.Kind != "" && ev.Kind != f.Kind {
		return false
	}
	if !f.Since.IsZero() && ev.Time.Before(f.Since) {
		return false
	}
	return true
}

// Read returns matching events in file order. Lines that do not parse are
// skipped; a log truncated mid-write stays readable.
func Read(path string, f Filter) ([]Event, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var out []Event
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		if f.match(ev) {
			out = append(out, ev)
		}
	}
	return out, scanner.Err()
}

// DefaultPath resolves the event log location next to the archive.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "driftwatch", "errors.jsonl"), nil
}

var suggestions = map[string]string{
	"auth":      "check the source credentials (API key environment variables); auth errors are never retried",
	"ratelimit": "lower the source rate limit or raise the backoff base so retries spread out",
	"network":   "check connectivity to the source endpoint; transient outages usually clear on the next run",
	"timeout":   "raise the per-attempt timeout or request fewer items per call",
	"unknown":   "inspect the message and rerun with --log-level debug for full attempt traces",
}

// Suggestion returns operator guidance for an error kind, or "" when the
// kind needs none.
func Suggestion(kind string) string {
	return suggestions[kind]
}
