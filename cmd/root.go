package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/driftwatch/driftwatch/internal/utils"
	"github.com/driftwatch/driftwatch/pkg/storage"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `     _      _  __ _                 _       _
  __| |_ __(_)/ _| |___      ____ _| |_ ___| |__
 / _' | '__| | |_| __\ \ /\ / / _' | __/ __| '_ \
| (_| | |  | |  _| |_ \ V  V / (_| | || (__| | | |
 \__,_|_|  |_|_|  \__| \_/\_/ \__,_|\__\___|_| |_|

`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "driftwatch",
	Short: "Topic research automation with drift tracking between runs.",
	Long: LOGO + `driftwatch collects what multiple sources currently say about a topic,
distills sentiment and key topics into a markdown report, and compares
each report against the previous one to show how the conversation drifted.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.driftwatch.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("db", "", "Path to the archive database (default: ~/.config/driftwatch/driftwatch.sqlite)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".driftwatch")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()
	viper.BindEnv("ai.api_key", "OPENAI_API_KEY")
	viper.BindEnv("x.token", "DRIFTWATCH_X_TOKEN")

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.driftwatch.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Set default empty values for all keys
	viper.SetDefault("ai.provider", "openai")
	viper.SetDefault("ai.api_key", "")
	viper.SetDefault("ai.model", "")
	viper.SetDefault("ai.endpoint", "")
	viper.SetDefault("sources.registry", "")
	viper.SetDefault("serve.username", "")
	viper.SetDefault("serve.password", "")

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("log-level")
	utils.SetLogLevel(levelString)
}

// openArchive resolves the archive path from the --db flag and opens it.
func openArchive(cmd *cobra.Command) (*storage.DB, error) {
	dbFlag, _ := cmd.Flags().GetString("db")
	path, err := utils.GetAbsDBPath(dbFlag)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return storage.Open(path)
}
