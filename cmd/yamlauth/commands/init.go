package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/yamlauth/internal/cli/prompt"
	"github.com/marmos91/yamlauth/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample yamlauth configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/yamlauth/config.yaml.
Use --config to specify a custom path. When the file already exists you are
asked before it is replaced; --force skips the question.

Examples:
  # Initialize with default location
  yamlauth init

  # Initialize with custom path
  yamlauth init --config /etc/yamlauth/config.yaml

  # Force overwrite existing config
  yamlauth init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	force := initForce
	if _, err := os.Stat(configPath); err == nil && !force {
		ok, err := prompt.ConfirmWithForce(fmt.Sprintf("%s exists. Overwrite", configPath), false)
		switch {
		case errors.Is(err, prompt.ErrNotInteractive):
			// Fall through to InitConfigToPath, which refuses politely.
		case err != nil:
			return err
		case !ok:
			return nil
		default:
			force = true
		}
	}

	if err := config.InitConfigToPath(configPath, force); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Point users_file at your users YAML file")
	_, _ = fmt.Fprintf(out, "  2. Check it with: yamlauth check %s\n", config.DefaultUsersFile)
	_, _ = fmt.Fprintf(out, "  3. Start the daemon with: yamlauth serve --config %s\n", configPath)
	return nil
}
