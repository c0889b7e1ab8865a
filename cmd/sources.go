package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/driftwatch/driftwatch/internal/render"
	"github.com/driftwatch/driftwatch/pkg/sources"
)

// sourcesCmd implements: driftwatch sources
var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the configured sources and their rate limits",
	RunE: func(cmd *cobra.Command, args []string) error {
		registryPath := viper.GetString("sources.registry")
		registry, err := sources.LoadRegistry(registryPath)
		if err != nil {
			return err
		}

		tbl := render.NewTable("NAME", "STATUS", "RATE", "BURST", "TOKEN")
		for _, sc := range registry.Sources {
			status := "enabled"
			if sc.Disabled {
				status = "disabled"
			}
			token := "-"
			if sc.TokenEnv != "" {
				token = "$" + sc.TokenEnv
				if os.Getenv(sc.TokenEnv) != "" {
					token += " (set)"
				}
			}
			tbl.AddRow(sc.Name, status, fmt.Sprintf("%.1f req/s", sc.Rate), fmt.Sprintf("%d", sc.Burst), token)
		}
		tbl.WriteTo(os.Stdout)

		if registryPath == "" {
			fmt.Println("\nUsing the built-in registry. Point sources.registry in ~/.driftwatch.yaml at a sources.yaml to customize.")
		} else {
			fmt.Printf("\nRegistry: %s\n", registryPath)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
