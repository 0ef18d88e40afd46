package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/yamlauth/internal/cli/output"
	"github.com/marmos91/yamlauth/pkg/apiclient"
)

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Ask a running daemon to re-read its users file",
	Long: `Send POST /reload to a running yamlauth daemon.

On failure the daemon keeps the credentials it already had; the error is
reported here. Sending SIGHUP to the daemon process has the same effect.

Examples:
  yamlauth reload
  yamlauth reload --addr http://mqtt-auth:8085 --token "$ADMIN_TOKEN"`,
	RunE: runReload,
}

func init() {
	addClientFlags(reloadCmd)
}

func runReload(cmd *cobra.Command, args []string) error {
	client := newClient(cmd)

	res, err := client.Reload(cmd.Context())
	if err != nil {
		if apiErr, ok := apiclient.AsAPIError(err); ok && apiErr.IsAuthError() {
			return fmt.Errorf("reload rejected: %s (check --token or api.admin_token)", apiErr.Message)
		}
		return fmt.Errorf("reload failed: %w", err)
	}

	printer := output.NewPrinterFor(cmd.OutOrStdout(), output.FormatTable)
	printer.Success(fmt.Sprintf("Reloaded: %d users", res.Users))
	return nil
}
