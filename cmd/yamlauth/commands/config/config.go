// Package config implements the "yamlauth config" subcommands.
package config

import "github.com/spf13/cobra"

// Cmd is the parent command for configuration management.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the yamlauth configuration file",
	Long: `Inspect, validate and edit the yamlauth configuration file.

All subcommands honour the global --config flag and fall back to
$XDG_CONFIG_HOME/yamlauth/config.yaml.`,
}

func init() {
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(validateCmd)
	Cmd.AddCommand(editCmd)
	Cmd.AddCommand(schemaCmd)
}

func configPathFlag(cmd *cobra.Command) string {
	// Persistent flag defined on the root command.
	path, _ := cmd.Flags().GetString("config")
	return path
}
