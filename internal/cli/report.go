package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tabledriver/internal/record"
	"github.com/roach88/tabledriver/internal/report"
	"github.com/roach88/tabledriver/internal/store"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Database string
	RunID    string
	Limit    int
	Messages bool
	Type     string
}

// RunReport is the JSON payload for one stored run.
type RunReport struct {
	Run      store.Run             `json:"run"`
	Tables   []store.TableCounters `json:"tables"`
	Messages []store.Message       `json:"messages,omitempty"`
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show stored run results",
		Long: `Show runs recorded in a tabledriver database.

Without --run, lists the most recent runs. With --run, shows the run's
status counters, one row per executed table, and optionally its messages.

Example:
  tabledriver report --db ./runs.db
  tabledriver report --db ./runs.db --run 0190a5b2-... --messages --type FAILED`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID to show")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs to list (0 for all)")
	cmd.Flags().BoolVar(&opts.Messages, "messages", false, "include the run's messages")
	cmd.Flags().StringVar(&opts.Type, "type", "", "only messages of this type (e.g. FAILED)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runReport(opts *ReportOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStorage, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	theme := themeFor(cmd.OutOrStdout())

	if opts.RunID == "" {
		runs, err := st.ListRuns(ctx, opts.Limit)
		if err != nil {
			_ = formatter.Error(ErrCodeStorage, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		if formatter.Format == "json" {
			return formatter.Success(runs)
		}
		return formatter.Success(renderRunList(runs))
	}

	rep, err := loadRunReport(ctx, st, opts)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
			return WrapExitError(ExitCommandError, "run not found", err)
		}
		_ = formatter.Error(ErrCodeStorage, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	return formatter.RunSuccess(rep.Run.ID, rep, renderRunReport(rep, theme))
}

func loadRunReport(ctx context.Context, st *store.Store, opts *ReportOptions) (*RunReport, error) {
	run, err := st.ReadRun(ctx, opts.RunID)
	if err != nil {
		return nil, err
	}
	tables, err := st.ReadCounters(ctx, opts.RunID)
	if err != nil {
		return nil, err
	}
	rep := &RunReport{Run: run, Tables: tables}
	if !opts.Messages {
		return rep, nil
	}
	if opts.Type != "" {
		rep.Messages, err = st.MessagesOfType(ctx, opts.RunID, record.MessageType(strings.ToUpper(opts.Type)))
	} else {
		rep.Messages, err = st.ReadMessages(ctx, opts.RunID)
	}
	if err != nil {
		return nil, err
	}
	return rep, nil
}

func renderRunList(runs []store.Run) string {
	if len(runs) == 0 {
		return "No runs recorded."
	}
	var sb strings.Builder
	for _, r := range runs {
		verdict := "RUNNING"
		if r.Status != nil {
			verdict = string(report.VerdictOf(*r.Status))
		}
		if r.Shutdown {
			verdict += " (shutdown)"
		}
		fmt.Fprintf(&sb, "%s  %s  %-5s %s  %s\n",
			r.ID, r.StartedAt.Format(time.RFC3339), r.Level, r.Table, verdict)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func renderRunReport(rep *RunReport, theme report.Theme) string {
	var sb strings.Builder
	title := fmt.Sprintf("%s %s (run %s)", rep.Run.Level, rep.Run.Table, rep.Run.ID)
	if rep.Run.Status == nil {
		sb.WriteString(title + "  not finished")
	} else {
		sb.WriteString(report.Summary(title, *rep.Run.Status, theme))
	}
	if rep.Run.Shutdown {
		sb.WriteString("\nrun ended by shutdown request")
	}

	if len(rep.Tables) > 0 {
		rows := make([]report.Row, 0, len(rep.Tables))
		for _, tc := range rep.Tables {
			rows = append(rows, report.Row{Label: string(tc.Level) + ":" + tc.Table, Status: tc.Status})
		}
		sb.WriteString("\n\n")
		sb.WriteString(report.Table(rows, theme))
	}

	if len(rep.Messages) > 0 {
		sb.WriteString("\n")
		for _, m := range rep.Messages {
			fmt.Fprintf(&sb, "\n%4d %-15s %s", m.Seq, m.Type, m.Message)
			if m.Detail != "" {
				fmt.Fprintf(&sb, " | %s", m.Detail)
			}
		}
	}
	return sb.String()
}
