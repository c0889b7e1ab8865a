package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/driftwatch/driftwatch/internal/errlog"
	"github.com/driftwatch/driftwatch/internal/render"
	"github.com/driftwatch/driftwatch/internal/session"
	"github.com/driftwatch/driftwatch/internal/utils"
	"github.com/driftwatch/driftwatch/pkg/ai"
	"github.com/driftwatch/driftwatch/pkg/analyze"
	"github.com/driftwatch/driftwatch/pkg/collect"
	"github.com/driftwatch/driftwatch/pkg/compare"
	"github.com/driftwatch/driftwatch/pkg/report"
	"github.com/driftwatch/driftwatch/pkg/sources"
	"github.com/driftwatch/driftwatch/pkg/sources/hackernews"
	"github.com/driftwatch/driftwatch/pkg/sources/web"
	"github.com/driftwatch/driftwatch/pkg/sources/xapi"
	"github.com/driftwatch/driftwatch/pkg/storage"
)

// researchCmd implements: driftwatch research
var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Collect sources on a topic and write a research report",
	Long: `Collects what the configured sources currently say about a topic,
summarizes sentiment and topics, compares against the previous report
and writes a markdown report.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("unknown argument: '%s'. See 'driftwatch research --help'", args[0])
		}
		topic, _ := cmd.Flags().GetString("topic")
		if strings.TrimSpace(topic) == "" {
			return fmt.Errorf("--topic is required")
		}
		depthFlag, _ := cmd.Flags().GetString("depth")
		depth, err := ai.ParseDepth(depthFlag)
		if err != nil {
			return err
		}

		registry, err := sources.LoadRegistry(viper.GetString("sources.registry"))
		if err != nil {
			return err
		}
		requested, _ := cmd.Flags().GetString("sources")
		srcs, err := resolveSources(registry, requested)
		if err != nil {
			return err
		}

		// Attempt log failures must never block a run.
		var sink *errlog.Log
		if path, err := errlog.DefaultPath(); err == nil {
			if sink, err = errlog.Open(path); err != nil {
				utils.Log.Warnf("Attempt log unavailable: %v", err)
			} else {
				defer sink.Close()
			}
		}

		maxItems, _ := cmd.Flags().GetInt("max-items")
		allowPartial, _ := cmd.Flags().GetBool("allow-partial")
		concurrency, _ := cmd.Flags().GetInt("concurrency")

		cfg := collect.Config{
			Sources:          srcs,
			Query:            topic,
			MaxItems:         maxItems,
			AllowPartial:     allowPartial,
			Concurrency:      concurrency,
			Policy:           collect.DefaultPolicy(),
			BreakerThreshold: collect.DefaultBreakerThreshold,
			Log:              utils.Log,
		}
		if sink != nil {
			cfg.Sink = sink
		}

		rep, err := collect.All(cmd.Context(), cfg)
		if sink != nil && rep != nil {
			sink.RecordRun(topic, rep)
		}
		if err != nil {
			if rep != nil {
				printSourceTable(rep)
				printFailureHints(rep)
			}
			return err
		}

		summary := analyze.Summarize(rep.Items, analyze.DefaultTopicCount)
		doc := &report.Document{
			Topic: topic,
			Meta: report.Meta{
				GeneratedAt:  time.Now(),
				SourceCounts: sourceCounts(rep),
				TotalItems:   len(rep.Items),
			},
			Snapshot:     summary.Snapshot,
			Distribution: summary.Distribution,
			Activity:     summary.Activity,
			Items:        rep.Items,
		}

		runAIAnalysis(cmd.Context(), doc, rep.Items, depth, cmd)

		compareWith, _ := cmd.Flags().GetString("compare-with")
		historical, err := loadHistorical(cmd, topic, compareWith)
		if err != nil {
			return err
		}
		var result *compare.Result
		if historical != nil {
			r := compare.Snapshots(summary.Snapshot, historical.Snapshot, compare.Opts{})
			result = &r
			doc.Changes = r.Changes()
		}

		text := report.Render(doc)
		outDir, _ := cmd.Flags().GetString("output")
		path, err := writeReport(outDir, topic, doc.Meta.GeneratedAt, text)
		if err != nil {
			return err
		}

		archiveRun(cmd, topic, rep, doc, text, path)

		printSourceTable(rep)
		printFailureHints(rep)
		fmt.Println()
		pairs := [][2]string{
			{"Report", path},
			{"Items collected", fmt.Sprintf("%d", len(rep.Items))},
			{"Success rate", fmt.Sprintf("%.0f%%", rep.SuccessRate*100)},
			{"Sentiment", fmt.Sprintf("%s (%+.3f)", summary.Snapshot.Sentiment.Label, summary.Snapshot.Sentiment.Compound)},
		}
		if result != nil {
			pairs = append(pairs, [2]string{"Trend", string(result.Trend)})
		}
		render.KeyValues(os.Stdout, pairs)

		interactive, _ := cmd.Flags().GetBool("interactive")
		if interactive {
			sess := session.New(session.Config{
				Topic:        topic,
				Items:        rep.Items,
				Snapshot:     summary.Snapshot,
				Distribution: summary.Distribution,
				SourceCounts: doc.Meta.SourceCounts,
				ExportDir:    outDir,
			})
			return sess.Run(os.Stdin, os.Stdout)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(researchCmd)

	researchCmd.Flags().StringP("topic", "t", "", "Topic to research (required)")
	researchCmd.Flags().String("sources", "", "Comma-separated source names (default: all enabled in the registry)")
	researchCmd.Flags().Int("max-items", 50, "Maximum items to collect per source")
	researchCmd.Flags().Bool("allow-partial", true, "Accept a run in which only some sources succeeded")
	researchCmd.Flags().Int("concurrency", 0, "Concurrent source collections (0: all at once)")
	researchCmd.Flags().String("depth", "quick", "AI analysis depth: quick or detailed")
	researchCmd.Flags().String("model", "", "AI model override")
	researchCmd.Flags().StringP("output", "o", ".", "Directory to write the report into")
	researchCmd.Flags().String("compare-with", "", "Historical report file or URL (default: newest archived report for the topic)")
	researchCmd.Flags().BoolP("interactive", "i", false, "Open a follow-up session after the report is written")
}

// resolveSources maps requested names (or the registry's enabled set) to
// live collectors. Explicitly requested sources fail hard when they cannot
// be built; registry defaults only include what is actually usable.
func resolveSources(registry *sources.Registry, requested string) ([]sources.Source, error) {
	var configs []sources.SourceConfig
	if strings.TrimSpace(requested) == "" {
		configs = registry.Enabled()
	} else {
		for _, raw := range strings.Split(requested, ",") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			sc, ok := registry.Lookup(raw)
			if !ok {
				return nil, fmt.Errorf("unknown source %q (known: %s)", raw, strings.Join(registry.Names(), ", "))
			}
			configs = append(configs, sc)
		}
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("no sources selected")
	}

	out := make([]sources.Source, 0, len(configs))
	for _, sc := range configs {
		switch sc.Name {
		case "hackernews":
			out = append(out, hackernews.New(sc.Rate, sc.Burst))
		case "web":
			out = append(out, web.New(sc.Rate, sc.Burst, sc.Results))
		case "x":
			tokenEnv := sc.TokenEnv
			if tokenEnv == "" {
				tokenEnv = "DRIFTWATCH_X_TOKEN"
			}
			token := os.Getenv(tokenEnv)
			if token == "" {
				token = viper.GetString("x.token")
			}
			if token == "" {
				return nil, fmt.Errorf("source %q needs a bearer token in $%s", sc.Name, tokenEnv)
			}
			out = append(out, xapi.New(token, sc.Rate, sc.Burst))
		default:
			return nil, fmt.Errorf("source %q has no collector", sc.Name)
		}
	}
	return out, nil
}

// runAIAnalysis fills doc.Analysis when a model is configured. Analysis
// failures degrade to a report without the section, never a failed run.
func runAIAnalysis(ctx context.Context, doc *report.Document, items []sources.Item, depth ai.Depth, cmd *cobra.Command) {
	apiKey := viper.GetString("ai.api_key")
	if apiKey == "" {
		utils.Log.Info("Skipping AI analysis: no API key configured (set ai.api_key or OPENAI_API_KEY).")
		return
	}

	model, _ := cmd.Flags().GetString("model")
	if model == "" {
		model = viper.GetString("ai.model")
	}
	analyzer, err := ai.NewAnalyzer(ai.Config{
		Provider: viper.GetString("ai.provider"),
		APIKey:   apiKey,
		Model:    model,
		Endpoint: viper.GetString("ai.endpoint"),
	})
	if err != nil {
		utils.Log.Warnf("AI analysis disabled: %v", err)
		return
	}

	analysis, err := analyzer.Analyze(ctx, doc.Topic, items, depth)
	if err != nil {
		utils.Log.Warnf("AI analysis failed, writing report without it: %v", err)
		return
	}
	if analysis != nil {
		doc.Analysis = analysis.Text()
		doc.Meta.Model = analyzer.Name()
		utils.Log.Debugf("AI analysis used %d tokens", analysis.TokensUsed)
	}
}

// loadHistorical resolves the report to compare against: an explicit file
// or URL wins; otherwise the newest archived report for the topic. No
// history is not an error, it just skips the comparison.
func loadHistorical(cmd *cobra.Command, topic, ref string) (*report.Parsed, error) {
	if ref != "" {
		text, err := readReportRef(ref)
		if err != nil {
			return nil, err
		}
		parsed, err := report.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", ref, err)
		}
		return parsed, nil
	}

	db, err := openArchive(cmd)
	if err != nil {
		utils.Log.Warnf("Archive unavailable, skipping comparison: %v", err)
		return nil, nil
	}
	defer db.Close()

	rec, err := db.LatestReport(cmd.Context(), topic, time.Time{})
	if err != nil {
		// Covers ErrNotFound on first runs.
		utils.Log.Debugf("No archived report for %q: %v", topic, err)
		return nil, nil
	}
	parsed, err := report.Parse(rec.Content)
	if err != nil {
		utils.Log.Warnf("Archived report for %q is not parsable, skipping comparison: %v", topic, err)
		return nil, nil
	}
	utils.Log.Infof("Comparing against archived report from %s", rec.GeneratedAt.Format("2006-01-02 15:04"))
	return parsed, nil
}

func readReportRef(ref string) (string, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		rc := retryablehttp.NewClient()
		rc.RetryMax = 3
		rc.Logger = nil
		client := rc.StandardClient()

		resp, err := client.Get(ref)
		if err != nil {
			return "", fmt.Errorf("fetch %s: %w", ref, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("fetch %s: HTTP %d", ref, resp.StatusCode)
		}
		raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return "", fmt.Errorf("fetch %s: %w", ref, err)
		}
		return string(raw), nil
	}

	raw, err := os.ReadFile(ref)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func writeReport(dir, topic string, generated time.Time, text string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	slug := strings.ReplaceAll(report.NormalizeName(topic), " ", "-")
	name := fmt.Sprintf("%s-%s.md", slug, generated.Format("20060102-150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// archiveRun persists the run and report. The flock keeps concurrent
// driftwatch processes from interleaving writes. Archive trouble is
// reported but never fails a run that already wrote its report.
func archiveRun(cmd *cobra.Command, topic string, rep *collect.Report, doc *report.Document, text, path string) {
	dbFlag, _ := cmd.Flags().GetString("db")
	lock, err := utils.NewDBLock(dbFlag)
	if err != nil {
		utils.Log.Warnf("Could not prepare archive lock: %v", err)
		return
	}
	if err := lock.Lock(); err != nil {
		utils.Log.Warnf("Could not lock archive: %v", err)
		return
	}
	defer lock.Unlock()

	db, err := openArchive(cmd)
	if err != nil {
		utils.Log.Warnf("Could not open archive: %v", err)
		return
	}
	defer db.Close()

	ctx := cmd.Context()
	runID, err := db.SaveRun(ctx, storageRun(topic, rep))
	if err != nil {
		utils.Log.Warnf("Could not archive run: %v", err)
		return
	}
	if _, err := db.SaveReport(ctx, storageReport(runID, doc, text, path)); err != nil {
		utils.Log.Warnf("Could not archive report: %v", err)
	}
}

func storageRun(topic string, rep *collect.Report) storage.RunRecord {
	return storage.RunRecord{
		Topic:         topic,
		StartedAt:     rep.Started,
		FinishedAt:    rep.Started.Add(rep.Elapsed),
		SourcesOK:     rep.Succeeded,
		SourcesFailed: rep.FailedNames,
		SuccessRate:   rep.SuccessRate,
		ItemCount:     len(rep.Items),
	}
}

func storageReport(runID int64, doc *report.Document, text, path string) storage.ReportRecord {
	return storage.ReportRecord{
		RunID:       runID,
		Topic:       doc.Topic,
		GeneratedAt: doc.Meta.GeneratedAt,
		Model:       doc.Meta.Model,
		Sentiment:   doc.Snapshot.Sentiment.Label,
		Compound:    doc.Snapshot.Sentiment.Compound,
		ItemCount:   doc.Snapshot.ItemCount,
		Path:        path,
		Content:     text,
	}
}

func sourceCounts(rep *collect.Report) []report.SourceCount {
	var out []report.SourceCount
	for _, o := range rep.Outcomes {
		if o.Status == collect.StatusSuccess {
			out = append(out, report.SourceCount{Name: o.Source, Count: len(o.Items)})
		}
	}
	return out
}

func printSourceTable(rep *collect.Report) {
	tbl := render.NewTable("SOURCE", "STATUS", "ATTEMPTS", "ITEMS")
	for _, o := range rep.Outcomes {
		status := "ok"
		if o.Status != collect.StatusSuccess {
			status = fmt.Sprintf("failed (%s)", o.Err.Kind)
		}
		tbl.AddRow(o.Source, status, fmt.Sprintf("%d", o.Attempts), fmt.Sprintf("%d", len(o.Items)))
	}
	tbl.WriteTo(os.Stdout)
}

func printFailureHints(rep *collect.Report) {
	for _, name := range rep.FailedNames {
		fe := rep.Failed[name]
		if fe == nil {
			continue
		}
		if hint := errlog.Suggestion(fe.Kind.String()); hint != "" {
			fmt.Printf("  hint (%s): %s\n", name, hint)
		}
	}
}
