package cmd

import (
	"fmt"
	"os"

	"github.com/josephgoksu/deepagent/internal/config"
	"github.com/josephgoksu/deepagent/internal/logger"
	"github.com/josephgoksu/deepagent/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	// settings is the viper instance behind appConfig. serve watches it.
	settings *viper.Viper
	// appConfig is the validated configuration of the running command.
	appConfig *types.AppConfig
)

// initConfig reads the config file, .env and DEEPAGENT_* variables, then
// validates the result into appConfig.
func initConfig(cmd *cobra.Command, _ []string) error {
	if err := validateOutput(); err != nil {
		return err
	}

	v := viper.New()
	config.Setup(v, cfgFile)

	flags := cmd.Root().PersistentFlags()
	_ = v.BindPFlag("config", flags.Lookup("config"))
	_ = v.BindPFlag("verbose", flags.Lookup("verbose"))
	_ = v.BindPFlag("storage.dataDir", flags.Lookup("data-dir"))

	if err := config.Read(v, cfgFile != ""); err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	cfg.Config = v.ConfigFileUsed()
	cfg.Storage.DataDir = config.ResolveDataDir(cfg.Storage.DataDir)
	if cfg.Verbose {
		cfg.Log.Level = "debug"
		if cfg.Config != "" {
			fmt.Fprintln(os.Stderr, "Using config file:", cfg.Config)
		}
	}

	logger.SetBasePath(cfg.Storage.DataDir)
	logger.SetVersion(version)
	logger.SetCommand(cmd.CommandPath())

	settings = v
	appConfig = cfg
	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file with every default",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.FileName + ".yaml"
		if len(args) == 1 {
			path = args[0]
		}
		force, _ := cmd.Flags().GetBool("force")

		cfg, err := config.Defaults()
		if err != nil {
			return err
		}
		if err := config.WriteFile(path, cfg, force); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  "Print the configuration after defaults, config file, .env and environment overrides. API keys are masked.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		shown := *appConfig
		shown.Server.APIKey = mask(shown.Server.APIKey)
		shown.LLM.APIKey = mask(shown.LLM.APIKey)
		shown.Telemetry.APIKey = mask(shown.Telemetry.APIKey)

		if outputFormat == outputJSON {
			return printJSON(cmd.OutOrStdout(), shown)
		}
		out, err := yaml.Marshal(shown)
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		if shown.Config != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", shown.Config)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
}
