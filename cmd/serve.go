package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/driftwatch/driftwatch/internal/server"
)

// serveCmd implements: driftwatch serve
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the report archive over a read-only JSON API",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")
		if username == "" {
			username = viper.GetString("serve.username")
		}
		if password == "" {
			password = viper.GetString("serve.password")
		}

		db, err := openArchive(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		return server.New(db, username, password).Start(addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "HTTP listen address")
	serveCmd.Flags().String("username", "", "Basic auth username (empty disables auth)")
	serveCmd.Flags().String("password", "", "Basic auth password")
}
