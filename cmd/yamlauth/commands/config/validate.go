package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/yamlauth/internal/cli/output"
	"github.com/marmos91/yamlauth/pkg/config"
	"github.com/marmos91/yamlauth/pkg/credentials"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the yamlauth configuration file.

Checks for syntax errors, missing required fields and invalid values, then
tries to load the configured users file.

Examples:
  # Validate default config
  yamlauth config validate

  # Validate specific config file
  yamlauth config validate --config /etc/yamlauth/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath := configPathFlag(cmd)

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
		if !config.DefaultConfigExists() {
			displayPath = "(environment only)"
		}
	}

	var warnings []string
	users := "unreadable"
	if records, err := credentials.Load(cfg.UsersFile); err != nil {
		warnings = append(warnings, fmt.Sprintf("users file: %v", err))
	} else {
		users = fmt.Sprintf("%d records", len(records))
		if dups := credentials.Duplicates(records); len(dups) > 0 {
			warnings = append(warnings, fmt.Sprintf("users defined more than once: %v", dups))
		}
	}

	if cfg.API.IsEnabled() && cfg.API.AdminToken == "" {
		warnings = append(warnings, "api.admin_token not set - POST /reload is unauthenticated")
	}
	if cfg.Logging.Output != "stdout" && cfg.Logging.Output != "stderr" {
		if _, err := os.Stat(cfg.Logging.Output); err != nil && !os.IsNotExist(err) {
			warnings = append(warnings, fmt.Sprintf("log output: %v", err))
		}
	}

	printer := output.NewPrinterFor(cmd.OutOrStdout(), output.FormatTable)
	printer.Printf("Configuration file: %s\n", displayPath)
	printer.Success("Validation: OK")

	if len(warnings) > 0 {
		printer.Println("\nWarnings:")
		for _, w := range warnings {
			printer.Warning("  - " + w)
		}
	}

	printer.Println("\nConfiguration summary:")
	return output.KeyValues(printer.Writer(), [][2]string{
		{"Users file", cfg.UsersFile},
		{"Users", users},
		{"API", enabledPort(cfg.API.IsEnabled(), cfg.API.Port)},
		{"Metrics", enabledPort(cfg.Metrics.Enabled, cfg.Metrics.Port)},
		{"Watch", fmt.Sprintf("%t (debounce %s)", cfg.Watch.IsEnabled(), cfg.Watch.Debounce)},
		{"Log level", cfg.Logging.Level},
	})
}

func enabledPort(enabled bool, port int) string {
	if !enabled {
		return "disabled"
	}
	return fmt.Sprintf("port %d", port)
}
