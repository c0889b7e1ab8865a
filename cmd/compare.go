package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/driftwatch/driftwatch/internal/render"
	"github.com/driftwatch/driftwatch/internal/utils"
	"github.com/driftwatch/driftwatch/pkg/compare"
	"github.com/driftwatch/driftwatch/pkg/report"
)

// compareCmd implements: driftwatch compare OLD NEW
var compareCmd = &cobra.Command{
	Use:   "compare OLD NEW",
	Short: "Compare two report files and print what changed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		oldParsed, err := parseReportFile(args[0])
		if err != nil {
			return err
		}
		newParsed, err := parseReportFile(args[1])
		if err != nil {
			return err
		}

		if report.NormalizeName(oldParsed.Topic) != report.NormalizeName(newParsed.Topic) {
			utils.Log.Warnf("Comparing reports about different topics: %q vs %q", oldParsed.Topic, newParsed.Topic)
		}

		result := compare.Snapshots(newParsed.Snapshot, oldParsed.Snapshot, compare.Opts{})
		printComparison(newParsed.Topic, result)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(compareCmd)
}

func parseReportFile(path string) (*report.Parsed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	parsed, err := report.Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return parsed, nil
}

func printComparison(topic string, result compare.Result) {
	fmt.Printf("Changes for %q\n\n", topic)

	if len(result.NewTopics) > 0 {
		fmt.Println("New topics:")
		tbl := render.NewTable()
		for _, t := range result.NewTopics {
			tbl.AddRow("  ✨", t.Name, fmt.Sprintf("%.3f", t.Importance))
		}
		tbl.WriteTo(os.Stdout)
	}
	if len(result.DecliningTopics) > 0 {
		fmt.Println("Declining topics:")
		tbl := render.NewTable()
		for _, t := range result.DecliningTopics {
			tbl.AddRow("  📉", t.Name, fmt.Sprintf("%.3f", t.Importance))
		}
		tbl.WriteTo(os.Stdout)
	}
	if len(result.NewTopics) == 0 && len(result.DecliningTopics) == 0 {
		fmt.Println("No topic churn.")
	}

	fmt.Println()
	render.KeyValues(os.Stdout, [][2]string{
		{"Sentiment", fmt.Sprintf("%s → %s", result.SentimentShift.From, result.SentimentShift.To)},
		{"Compound delta", fmt.Sprintf("%+.3f", result.Delta)},
		{"Overall trend", string(result.Trend)},
	})
}
