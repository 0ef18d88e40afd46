package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/yamlauth/pkg/apiclient"
	"github.com/marmos91/yamlauth/pkg/config"
)

const defaultDaemonPort = 8085

// addClientFlags registers the flags shared by commands that talk to a
// running daemon.
func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().String("addr", "", "Daemon address (default: http://localhost:<api.port> from config)")
	cmd.Flags().String("token", "", "Admin token (default: api.admin_token from config)")
}

// newClient builds an API client from --addr/--token, falling back to the
// local configuration when it can be loaded.
func newClient(cmd *cobra.Command) *apiclient.Client {
	addr, _ := cmd.Flags().GetString("addr")
	token, _ := cmd.Flags().GetString("token")

	if addr == "" || token == "" {
		port := defaultDaemonPort
		if cfg, err := config.Load(GetConfigFile()); err == nil {
			port = cfg.API.Port
			if !cfg.API.IsEnabled() && cfg.Metrics.Enabled {
				port = cfg.Metrics.Port
			}
			if token == "" {
				token = cfg.API.AdminToken
			}
		}
		if addr == "" {
			addr = fmt.Sprintf("http://localhost:%d", port)
		}
	}

	client := apiclient.New(addr)
	if token != "" {
		client.SetToken(token)
	}
	return client
}
