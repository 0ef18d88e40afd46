package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/yamlauth/internal/cli/output"
	"github.com/marmos91/yamlauth/pkg/credentials"
	"github.com/marmos91/yamlauth/pkg/credstore"
)

var checkOutput string

var checkCmd = &cobra.Command{
	Use:   "check <users-file>",
	Short: "Validate a users file",
	Long: `Load a users file exactly as the plugin would and report what it holds.

Passwords are never printed. Usernames defined more than once are flagged:
the last definition is the one that takes effect.

Exits non-zero if the file cannot be read or parsed.

Examples:
  yamlauth check /etc/mosquitto/users.yaml
  yamlauth check /etc/mosquitto/users.yaml -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVarP(&checkOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// checkReport summarizes a users file without exposing passwords.
type checkReport struct {
	File       string      `json:"file" yaml:"file"`
	Records    int         `json:"records" yaml:"records"`
	Users      int         `json:"users" yaml:"users"`
	Duplicates []string    `json:"duplicates" yaml:"duplicates"`
	Entries    []userEntry `json:"entries" yaml:"entries"`
}

type userEntry struct {
	Username    string `json:"username" yaml:"username"`
	Definitions int    `json:"definitions" yaml:"definitions"`
}

func (r *checkReport) Headers() []string {
	return []string{"Username", "Definitions"}
}

func (r *checkReport) Rows() [][]string {
	rows := make([][]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		rows = append(rows, []string{e.Username, strconv.Itoa(e.Definitions)})
	}
	return rows
}

func newCheckReport(path string, records []credentials.Record) *checkReport {
	store := credstore.New()
	store.Load(records)

	counts := make(map[string]int, len(records))
	for _, rec := range records {
		counts[rec.Username]++
	}

	report := &checkReport{
		File:       path,
		Records:    len(records),
		Users:      store.Len(),
		Duplicates: credentials.Duplicates(records),
	}
	if report.Duplicates == nil {
		report.Duplicates = []string{}
	}
	for _, name := range store.Usernames() {
		report.Entries = append(report.Entries, userEntry{Username: name, Definitions: counts[name]})
	}
	if report.Entries == nil {
		report.Entries = []userEntry{}
	}
	return report
}

func runCheck(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(checkOutput)
	if err != nil {
		return err
	}

	path := args[0]
	records, err := credentials.Load(path)
	if err != nil {
		return err
	}

	report := newCheckReport(path, records)
	printer := output.NewPrinterFor(cmd.OutOrStdout(), format)

	if format != output.FormatTable {
		return printer.Print(report)
	}

	if err := output.KeyValues(printer.Writer(), [][2]string{
		{"File", report.File},
		{"Records", strconv.Itoa(report.Records)},
		{"Users", strconv.Itoa(report.Users)},
	}); err != nil {
		return err
	}
	if len(report.Duplicates) > 0 {
		printer.Warning(fmt.Sprintf("Defined more than once (last wins): %s", strings.Join(report.Duplicates, ", ")))
	}
	if report.Users == 0 {
		printer.Warning("No users defined: every authentication will be denied")
		return nil
	}
	printer.Println()
	return printer.Print(report)
}
