package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/yamlauth/internal/cli/output"
	"github.com/marmos91/yamlauth/internal/cli/timeutil"
	"github.com/marmos91/yamlauth/pkg/apiclient"
)

var statusOutput string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a running daemon",
	Long: `Query the health endpoints of a running yamlauth daemon.

Reports liveness, uptime and whether credentials are loaded.

Examples:
  # Daemon configured in the default config file
  yamlauth status

  # Explicit address, JSON output
  yamlauth status --addr http://mqtt-auth:8085 -o json`,
	RunE: runStatus,
}

func init() {
	addClientFlags(statusCmd)
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// DaemonStatus is the status of a daemon as displayed.
type DaemonStatus struct {
	Server    string `json:"server" yaml:"server"`
	Status    string `json:"status" yaml:"status"`
	Healthy   bool   `json:"healthy" yaml:"healthy"`
	Ready     bool   `json:"ready" yaml:"ready"`
	Service   string `json:"service,omitempty" yaml:"service,omitempty"`
	StartedAt string `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Uptime    string `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	State     string `json:"state,omitempty" yaml:"state,omitempty"`
	Users     int    `json:"users" yaml:"users"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	client := newClient(cmd)
	status := DaemonStatus{Server: client.BaseURL(), Status: "unreachable"}

	health, err := client.Health(cmd.Context())
	if err != nil {
		status.Error = err.Error()
	} else {
		status.Status = "healthy"
		status.Healthy = true
		status.Service = health.Service
		status.StartedAt = health.StartedAt
		status.Uptime = health.Uptime

		ready, err := client.Ready(cmd.Context())
		switch {
		case err == nil:
			status.Ready = true
			status.State = ready.State
			status.Users = ready.Users
		default:
			status.Status = "not ready"
			status.Error = err.Error()
			if apiErr, ok := apiclient.AsAPIError(err); ok {
				status.Error = apiErr.Message
			}
		}
	}

	printer := output.NewPrinterFor(cmd.OutOrStdout(), format)
	if format != output.FormatTable {
		return printer.Print(status)
	}
	return printStatusTable(printer, status)
}

func printStatusTable(printer *output.Printer, status DaemonStatus) error {
	switch {
	case status.Ready:
		printer.Success("● " + status.Status)
	case status.Healthy:
		printer.Warning("● " + status.Status)
	default:
		printer.Error("○ " + status.Status)
	}

	pairs := [][2]string{{"Server", status.Server}}
	if status.Service != "" {
		pairs = append(pairs, [2]string{"Service", status.Service})
	}
	if status.StartedAt != "" {
		pairs = append(pairs, [2]string{"Started", timeutil.FormatTime(status.StartedAt)})
	}
	if status.Uptime != "" {
		pairs = append(pairs, [2]string{"Uptime", timeutil.FormatUptime(status.Uptime)})
	}
	if status.Ready {
		pairs = append(pairs, [2]string{"Credentials", status.State}, [2]string{"Users", strconv.Itoa(status.Users)})
	}
	if status.Error != "" {
		pairs = append(pairs, [2]string{"Error", status.Error})
	}
	return output.KeyValues(printer.Writer(), pairs)
}
