package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/driftwatch/driftwatch/internal/errlog"
	"github.com/driftwatch/driftwatch/internal/render"
)

// historyCmd implements: driftwatch history
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show archived runs and recent collection errors",
	RunE: func(cmd *cobra.Command, args []string) error {
		showErrors, _ := cmd.Flags().GetBool("errors")
		if showErrors {
			return printErrorHistory(cmd)
		}
		return printRunHistory(cmd)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringP("topic", "t", "", "Only this topic")
	historyCmd.Flags().Int("limit", 20, "Runs to show")
	historyCmd.Flags().Bool("errors", false, "Show recent collection errors with suggestions instead")
	historyCmd.Flags().String("source", "", "With --errors: only this source")
	historyCmd.Flags().String("kind", "", "With --errors: only this error kind (auth, ratelimit, network, timeout, unknown)")
	historyCmd.Flags().String("since", "", "With --errors: only events after this RFC3339 timestamp")
}

func printRunHistory(cmd *cobra.Command) error {
	db, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	topic, _ := cmd.Flags().GetString("topic")
	limit, _ := cmd.Flags().GetInt("limit")

	if topic == "" {
		stats, err := db.Stats(cmd.Context())
		if err != nil {
			return err
		}
		if len(stats) == 0 {
			fmt.Println("The archive is empty. Run 'driftwatch research --topic ...' first.")
			return nil
		}
		tbl := render.NewTable("TOPIC", "RUNS", "ITEMS", "LAST RUN")
		for _, s := range stats {
			tbl.AddRow(s.Topic, fmt.Sprintf("%d", s.Runs), fmt.Sprintf("%d", s.Items), s.LastRun.Format("2006-01-02 15:04"))
		}
		tbl.WriteTo(os.Stdout)
		fmt.Println()
	}

	runs, err := db.ListRuns(cmd.Context(), topic, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		if topic != "" {
			fmt.Printf("No archived runs for %q.\n", topic)
		}
		return nil
	}

	tbl := render.NewTable("FINISHED", "TOPIC", "SOURCES", "RATE", "ITEMS")
	for _, run := range runs {
		sources := strings.Join(run.SourcesOK, ",")
		if len(run.SourcesFailed) > 0 {
			if sources != "" {
				sources += " "
			}
			sources += fmt.Sprintf("(failed: %s)", strings.Join(run.SourcesFailed, ","))
		}
		tbl.AddRow(
			run.FinishedAt.Format("2006-01-02 15:04"),
			run.Topic,
			sources,
			fmt.Sprintf("%.0f%%", run.SuccessRate*100),
			fmt.Sprintf("%d", run.ItemCount),
		)
	}
	tbl.WriteTo(os.Stdout)
	return nil
}

func printErrorHistory(cmd *cobra.Command) error {
	path, err := errlog.DefaultPath()
	if err != nil {
		return err
	}

	filter := errlog.Filter{}
	filter.Source, _ = cmd.Flags().GetString("source")
	filter.Kind, _ = cmd.Flags().GetString("kind")
	if since, _ := cmd.Flags().GetString("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return fmt.Errorf("--since wants RFC3339, e.g. 2026-04-01T00:00:00Z: %w", err)
		}
		filter.Since = t
	}

	events, err := errlog.Read(path, filter)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("No matching collection errors logged.")
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}

	tbl := render.NewTable("TIME", "SOURCE", "ATTEMPT", "KIND", "MESSAGE")
	kindSet := map[string]bool{}
	for _, ev := range events {
		if ev.Kind != "" && ev.Source != "run" {
			kindSet[ev.Kind] = true
		}
		attempt := ""
		if ev.Attempt > 0 {
			attempt = fmt.Sprintf("%d", ev.Attempt)
		}
		tbl.AddRow(ev.Time.Format("2006-01-02 15:04:05"), ev.Source, attempt, ev.Kind, ev.Message)
	}
	tbl.WriteTo(os.Stdout)

	kinds := make([]string, 0, len(kindSet))
	for kind := range kindSet {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	printed := false
	for _, kind := range kinds {
		if hint := errlog.Suggestion(kind); hint != "" {
			if !printed {
				fmt.Println()
				printed = true
			}
			fmt.Printf("hint (%s): %s\n", kind, hint)
		}
	}
	return nil
}
