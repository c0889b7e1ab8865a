package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/driftwatch/driftwatch/internal/session"
)

// followupCmd implements: driftwatch followup FILE
var followupCmd = &cobra.Command{
	Use:   "followup FILE",
	Short: "Open a follow-up session over an existing report file",
	Long: `Parses a report written by driftwatch and opens the interactive
follow-up loop over it. Without the original collected items only the
snapshot commands (topics, sentiment, sources) have data to show.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parsed, err := parseReportFile(args[0])
		if err != nil {
			return err
		}

		sess := session.New(session.Config{
			Topic:        parsed.Topic,
			Snapshot:     parsed.Snapshot,
			Distribution: parsed.Distribution,
			SourceCounts: parsed.Meta.SourceCounts,
			ExportDir:    filepath.Dir(args[0]),
		})
		return sess.Run(os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(followupCmd)
}
