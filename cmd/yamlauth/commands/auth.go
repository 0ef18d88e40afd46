package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/yamlauth/internal/cli/output"
	"github.com/marmos91/yamlauth/internal/cli/prompt"
	"github.com/marmos91/yamlauth/pkg/plugin"
)

// ErrDenied is returned by the auth command when the credentials are rejected.
var ErrDenied = errors.New("authentication denied")

var authPassword string

var authCmd = &cobra.Command{
	Use:   "auth <users-file> <username>",
	Short: "Check a username/password pair against a users file",
	Long: `Run one authentication through the plugin exactly as the broker would.

The password is taken from --password, otherwise prompted for on a terminal,
otherwise read from the first line of stdin. Prints "ok" and exits 0 on
success; prints "denied" and exits 1 otherwise.

Examples:
  yamlauth auth /etc/mosquitto/users.yaml alice
  echo secret1 | yamlauth auth /etc/mosquitto/users.yaml alice`,
	Args: cobra.ExactArgs(2),
	RunE: runAuth,
}

func init() {
	authCmd.Flags().StringVarP(&authPassword, "password", "p", "", "Password to check (visible in the process list; prefer stdin)")
}

func runAuth(cmd *cobra.Command, args []string) error {
	path, username := args[0], args[1]

	password, err := readPassword(cmd)
	if err != nil {
		return err
	}

	opts := []plugin.Option{{Key: plugin.OptUsersFile, Value: path}}
	p := plugin.New(opts)
	defer p.Cleanup()

	if err := p.SecurityInit(cmd.Context(), opts, false); err != nil {
		return err
	}

	printer := output.NewPrinterFor(cmd.OutOrStdout(), output.FormatTable)
	if p.UnpwdCheck(cmd.Context(), &username, &password) != plugin.ResultSuccess {
		printer.Error("denied")
		return ErrDenied
	}
	printer.Success("ok")
	return nil
}

func readPassword(cmd *cobra.Command) (string, error) {
	if cmd.Flags().Changed("password") {
		return authPassword, nil
	}

	in := cmd.InOrStdin()
	if in == os.Stdin && prompt.IsInteractive() {
		return prompt.Password("Password")
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}
