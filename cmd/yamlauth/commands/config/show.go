package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/yamlauth/internal/cli/output"
	"github.com/marmos91/yamlauth/pkg/config"
)

const redacted = "<redacted>"

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after file, environment and defaults are merged.

The admin token is redacted.

Examples:
  yamlauth config show
  YAMLAUTH_API_PORT=9000 yamlauth config show -o json`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}
	if format == output.FormatTable {
		return fmt.Errorf("unsupported output format for config show: %s", format)
	}

	cfg, err := config.MustLoad(configPathFlag(cmd))
	if err != nil {
		return err
	}

	shown := *cfg
	if shown.API.AdminToken != "" {
		shown.API.AdminToken = redacted
	}

	// Round-trip through YAML so both formats share key names and
	// durations render as "10s" rather than nanoseconds.
	data, err := yaml.Marshal(&shown)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if format == output.FormatYAML {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	var generic map[string]any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return output.PrintJSON(cmd.OutOrStdout(), generic)
}
