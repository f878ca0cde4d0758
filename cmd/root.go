/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/josephgoksu/deepagent/internal/logger"
	"github.com/spf13/cobra"
)

var (
	// cfgFile is the path to the configuration file.
	cfgFile string
	// verbose enables verbose output.
	verbose bool
	// dataDir overrides storage.dataDir.
	dataDir string
	// outputFormat is text, json or yaml.
	outputFormat string
	// version is the application version.
	version = "0.1.0"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "deepagent",
	Short: "deepagent - a planning-aware conversational agent",
	Long: `deepagent runs a conversational agent that plans multi-step work.

Each conversation thread has at most one active plan. Plans are an ordered
list of steps that the agent (or you) checks off until the plan completes.

Examples:
  deepagent serve
  deepagent chat "Plan a three-day trip to Lisbon"
  deepagent plan show --thread thread-1a2b3c4d
  deepagent notes search "passport"`,
	Version:           version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	defer logger.RecoverAndReport()

	if err := rootCmd.Execute(); err != nil {
		PrintError(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./.deepagent.yaml or $HOME/.deepagent.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory holding the database and exports")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", outputText, "output format: text, json or yaml")
}

// PrintError prints err to stderr. Verbose mode keeps the wrapped chain.
func PrintError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, formatError(err, verbose))
}
