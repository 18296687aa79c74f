package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tabledriver/internal/journal"
	"github.com/roach88/tabledriver/internal/record"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	RunID   string
	Failed  bool
	Command string
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal <dir>",
		Short: "Print record outcomes from a journal",
		Long: `Print the record outcomes written to an outcome journal.

Each entry is one evaluated record: its table, line, command and the
outcome it produced. Entries are printed in execution order.

Example:
  tabledriver journal ./journal
  tabledriver journal ./journal --run 0190a5b2-... --failed`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run", "", "only entries of this run")
	cmd.Flags().BoolVar(&opts.Failed, "failed", false, "only entries whose outcome is a failure")
	cmd.Flags().StringVar(&opts.Command, "command", "", "only entries for this command (case-insensitive)")

	return cmd
}

func runJournal(opts *JournalOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	j, err := journal.Open(dir, journal.Options{})
	if err != nil {
		_ = formatter.Error(ErrCodeStorage, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	entries := []journal.Entry{}
	err = j.LoadAll(func(e journal.Entry) error {
		if opts.RunID != "" && e.RunID != opts.RunID {
			return nil
		}
		if opts.Failed && !isFailure(e.Outcome) {
			return nil
		}
		if opts.Command != "" && !strings.EqualFold(e.Command, opts.Command) {
			return nil
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		_ = formatter.Error(ErrCodeStorage, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	formatter.VerboseLog("%d journal entries matched", len(entries))
	if formatter.Format == "json" {
		return formatter.Success(entries)
	}
	return formatter.Success(renderEntries(entries))
}

func renderEntries(entries []journal.Entry) string {
	if len(entries) == 0 {
		return "No entries."
	}
	var sb strings.Builder
	for _, e := range entries {
		command := e.Command
		if command == "" {
			command = "-"
		}
		fmt.Fprintf(&sb, "%6d %s %s:%s:%d %s %s %s",
			e.Index, shortID(e.RunID), e.Level, e.Table, e.LineNumber, e.Type, command, e.Outcome)
		if e.StatusInfo != "" {
			fmt.Fprintf(&sb, " (%s)", e.StatusInfo)
		}
		sb.WriteString("\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func isFailure(o record.Outcome) bool {
	switch o {
	case record.GeneralScriptFailure, record.InvalidFileIO, record.TestFailureLogged:
		return true
	}
	return false
}

// shortID keeps run IDs readable in columns.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
