package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/propfoto/propfoto/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and generate configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration",
	Long: `Print the configuration after merging defaults, the config file,
environment variables and flags, in YAML.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := GetConfig()
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to render configuration: %w", err)
		}
		if used := GetConfigLoader().GetConfigFileUsed(); used != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "# config file: %s\n", used)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(out))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file populated with defaults",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "propfoto.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("refusing to overwrite existing file: %s", path)
		}
		if err := config.GenerateDefaultConfigFile(path); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

var configPathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "List configuration search paths",
	Run: func(cmd *cobra.Command, _ []string) {
		for _, p := range config.GetConfigSearchPaths() {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathsCmd)
	rootCmd.AddCommand(configCmd)
}
