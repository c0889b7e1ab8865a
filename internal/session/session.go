// Package session is the interactive follow-up loop offered after a
// research run: a small REPL over the collected items and the snapshot,
// with a markdown transcript export.
package session

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/driftwatch/driftwatch/internal/render"
	"github.com/driftwatch/driftwatch/pkg/analyze"
	"github.com/driftwatch/driftwatch/pkg/report"
	"github.com/driftwatch/driftwatch/pkg/sources"
)

const (
	prompt       = "driftwatch> "
	focusResults = 5
)

// Config seeds a session. Items may be empty when the session runs over a
// parsed report file; focus then has nothing to search.
type Config struct {
	Topic        string
	Items        []sources.Item
	Snapshot     report.Snapshot
	Distribution report.Distribution
	SourceCounts []report.SourceCount
	ExportDir    string
}

type exchange struct {
	input  string
	output string
}

type Session struct {
	topic        string
	items        []sources.Item
	snapshot     report.Snapshot
	distribution report.Distribution
	sourceCounts []report.SourceCount
	exportDir    string
	history      []exchange

	// now is swappable for tests that check export filenames.
	now func() time.Time
}

func New(cfg Config) *Session {
	counts := cfg.SourceCounts
	if len(counts) == 0 && len(cfg.Items) > 0 {
		counts = countBySource(cfg.Items)
	}
	dir := cfg.ExportDir
	if dir == "" {
		dir = "."
	}
	return &Session{
		topic:        cfg.Topic,
		items:        cfg.Items,
		snapshot:     cfg.Snapshot,
		distribution: cfg.Distribution,
		sourceCounts: counts,
		exportDir:    dir,
		now:          time.Now,
	}
}

// Run reads commands until quit or EOF.
func (s *Session) Run(in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "Follow-up session for %q over %d items. Type help for commands.\n", s.topic, len(s.items))
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		reply, quit := s.Execute(line)
		fmt.Fprintln(out, reply)
		if quit {
			break
		}
	}
	return scanner.Err()
}

// Execute dispatches one command line and reports whether the session is
// over. Every non-quit exchange lands in the transcript history.
func (s *Session) Execute(line string) (string, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", false
	}
	cmd := strings.ToLower(fields[0])
	args := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	var reply string
	switch cmd {
	case "help":
		reply = helpText
	case "focus":
		reply = s.focus(args)
	case "sentiment":
		reply = s.sentiment()
	case "topics":
		reply = s.topics()
	case "sources":
		reply = s.sources()
	case "export":
		reply = s.export()
	case "quit", "exit":
		return "bye", true
	default:
		reply = fmt.Sprintf("unknown command %q (try help)", cmd)
	}

	s.history = append(s.history, exchange{input: line, output: reply})
	return reply, false
}

// focus ranks items by how many of the question's keywords they contain.
// Stopwords in the question are ignored so "what about the fees" searches
// for "fees".
func (s *Session) focus(question string) string {
	if len(s.items) == 0 {
		return "no collected items in this session; topics and sentiment are still available"
	}

	var keywords []string
	for _, w := range strings.Fields(strings.ToLower(question)) {
		w = strings.Trim(w, ".,!?\"'")
		if w == "" || analyze.IsStopWord(w) {
			continue
		}
		keywords = append(keywords, w)
	}
	if len(keywords) == 0 {
		return "focus needs at least one keyword, e.g. focus liquidity fees"
	}

	type hit struct {
		item    sources.Item
		matched int
	}
	var hits []hit
	for _, it := range s.items {
		text := strings.ToLower(it.Text())
		matched := 0
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				matched++
			}
		}
		if matched > 0 {
			hits = append(hits, hit{item: it, matched: matched})
		}
	}
	if len(hits) == 0 {
		return fmt.Sprintf("nothing matches %s", strings.Join(keywords, " "))
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].matched > hits[j].matched })
	if len(hits) > focusResults {
		hits = hits[:focusResults]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d items match %s:\n", len(hits), strings.Join(keywords, " "))
	for i, h := range hits {
		fmt.Fprintf(&sb, "%d. [%s] %s (matched %d)\n", i+1, h.item.Source, h.item.Title, h.matched)
		if h.item.URL != "" {
			fmt.Fprintf(&sb, "   %s\n", h.item.URL)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (s *Session) sentiment() string {
	var sb strings.Builder
	render.KeyValues(&sb, [][2]string{
		{"Overall", fmt.Sprintf("%s (%+.3f)", s.snapshot.Sentiment.Label, s.snapshot.Sentiment.Compound)},
		{"Positive", fmt.Sprintf("%d items", s.distribution.Positive)},
		{"Neutral", fmt.Sprintf("%d items", s.distribution.Neutral)},
		{"Negative", fmt.Sprintf("%d items", s.distribution.Negative)},
	})
	return strings.TrimRight(sb.String(), "\n")
}

func (s *Session) topics() string {
	if len(s.snapshot.Topics) == 0 {
		return "no topics extracted"
	}
	tbl := render.NewTable("SCORE", "TOPIC", "SENTIMENT")
	for _, t := range s.snapshot.Topics {
		tbl.AddRow(fmt.Sprintf("%.3f", t.Importance), t.Name, t.Label)
	}
	var sb strings.Builder
	tbl.WriteTo(&sb)
	return strings.TrimRight(sb.String(), "\n")
}

func (s *Session) sources() string {
	if len(s.sourceCounts) == 0 {
		return "no source information in this session"
	}
	tbl := render.NewTable("SOURCE", "ITEMS")
	for _, sc := range s.sourceCounts {
		tbl.AddRow(sc.Name, fmt.Sprintf("%d", sc.Count))
	}
	var sb strings.Builder
	tbl.WriteTo(&sb)
	return strings.TrimRight(sb.String(), "\n")
}

// export writes the transcript so far as markdown next to the report.
func (s *Session) export() string {
	name := fmt.Sprintf("followup-%s-%s.md", strings.ReplaceAll(report.NormalizeName(s.topic), " ", "-"), s.now().Format("20060102-150405"))
	path := filepath.Join(s.exportDir, name)

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Follow-up session - %s\n\n", s.topic)
	fmt.Fprintf(&sb, "**Exported**: %s\n\n", s.now().Format("2006-01-02 15:04:05"))
	for _, ex := range s.history {
		fmt.Fprintf(&sb, "## > %s\n\n%s\n\n", ex.input, ex.output)
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Sprintf("export failed: %v", err)
	}
	return fmt.Sprintf("transcript written to %s", path)
}

func countBySource(items []sources.Item) []report.SourceCount {
	order := []string{}
	counts := map[string]int{}
	for _, it := range items {
		if _, seen := counts[it.Source]; !seen {
			order = append(order, it.Source)
		}
		counts[it.Source]++
	}
	out := make([]report.SourceCount, 0, len(order))
	for _, name := range order {
		out = append(out, report.SourceCount{Name: name, Count: counts[name]})
	}
	return out
}

const helpText = `commands:
  focus <keywords>  rank collected items against your question
  sentiment         overall sentiment and distribution
  topics            extracted topics with scores
  sources           item counts per source
  export            write this session as a markdown transcript
  quit              leave the session`
