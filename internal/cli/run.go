package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/roach88/tabledriver/internal/config"
	"github.com/roach88/tabledriver/internal/driver"
	"github.com/roach88/tabledriver/internal/engines"
	"github.com/roach88/tabledriver/internal/journal"
	"github.com/roach88/tabledriver/internal/logs"
	"github.com/roach88/tabledriver/internal/monitor"
	"github.com/roach88/tabledriver/internal/record"
	"github.com/roach88/tabledriver/internal/report"
	"github.com/roach88/tabledriver/internal/source"
	"github.com/roach88/tabledriver/internal/store"
	"github.com/roach88/tabledriver/internal/vars"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config    string
	Project   string
	Level     string
	Separator string
	Database  string
	Journal   string
	Vars      string
	Monitor   bool

	// RunIDs allows overriding the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs driver.RunIDGenerator

	// Now allows overriding the clock recorded in the store (for testing).
	Now func() time.Time
}

// RunOutput is the JSON payload of a finished run.
type RunOutput struct {
	Run    *driver.RunResult      `json:"run"`
	Tables []store.TableCounters `json:"tables,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <table>",
		Short: "Execute a test table",
		Long: `Execute a CYCLE, SUITE or STEP table to completion.

The table is looked up under the project directory, with the level's file
extension appended when the name has none. Nested tables named by T records
are executed at the next lower level. Messages are logged to stderr and,
when a database is configured, stored with per-table status counters.

Exits 1 when the run recorded any failure, 2 when the table could not be
opened or the run could not be set up.

Example:
  tabledriver run --level SUITE --project ./tables Smoke
  tabledriver run --config tabledriver.yaml --db ./runs.db Regression
  tabledriver run --config tabledriver.yaml --monitor Regression`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTable(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "path to configuration file")
	cmd.Flags().StringVar(&opts.Project, "project", "", "directory holding the tables")
	cmd.Flags().StringVarP(&opts.Level, "level", "l", string(record.Cycle), "table level (CYCLE|SUITE|STEP)")
	cmd.Flags().StringVar(&opts.Separator, "separator", "", "field separator")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for run results")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "directory of the outcome journal")
	cmd.Flags().StringVar(&opts.Vars, "vars", "", "directory of the persistent variable store")
	cmd.Flags().BoolVar(&opts.Monitor, "monitor", false, "show the interactive run monitor")

	return cmd
}

// runSession holds everything a run opened, in close order.
type runSession struct {
	closers []func() error
}

func (s *runSession) onClose(f func() error) {
	s.closers = append(s.closers, f)
}

func (s *runSession) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			slog.Error("error closing run resources", "error", err)
		}
	}
}

func runTable(opts *RunOptions, table string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	level, err := parseLevelFlag(opts.Level)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid arguments", err)
	}

	cfg, err := LoadConfig(opts.Config, Overrides{
		Project:   opts.Project,
		Separator: opts.Separator,
		Database:  opts.Database,
		Journal:   opts.Journal,
		Vars:      opts.Vars,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	setupLogging(formatter.GetErrWriter(), opts.Verbose, cfg.Log.Level)

	drvOpts, err := cfg.Options()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid driver options", err)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = driver.UUIDv7Generator{}
	}
	runID := runIDs.Generate()
	src := record.Source{Name: table, Level: level, Separator: cfg.Tables.Separator}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	session := &runSession{}
	defer session.Close()

	varSvc, err := openVars(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open variable store", err)
	}
	session.onClose(varSvc.Close)

	sinks := logs.Multi{logs.NewSlog(nil)}
	driverOpts := []driver.DriverOption{
		driver.WithOptions(drvOpts),
		driver.WithRunIDGenerator(driver.NewFixedGenerator(runID)),
	}

	var st *store.Store
	if cfg.Log.Store != "" {
		slog.Info("opening database", "path", cfg.Log.Store)
		st, err = store.Open(cfg.Log.Store)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		session.onClose(st.Close)
		if err := st.BeginRun(ctx, runID, src, now()); err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		runLog := st.RunLog(runID)
		sinks = append(sinks, runLog)
		driverOpts = append(driverOpts, driver.WithCounters(runLog))
	}
	driverOpts = append(driverOpts, driver.WithLogService(sinks))

	if cfg.Log.Journal != "" {
		j, err := journal.Open(cfg.Log.Journal, journal.Options{})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		session.onClose(j.Close)
		driverOpts = append(driverOpts, driver.WithRecorder(j.Recorder(runID)))
	}

	built, err := engines.Default().BuildAll(cfg.Engines, engines.Env{Logs: sinks, LogID: drvOpts.LogID})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build engines", err)
	}
	driverOpts = append(driverOpts, driver.WithEngines(built...))
	if len(cfg.Preferred) > 0 {
		driverOpts = append(driverOpts, driver.WithPreferred(cfg.Preferred...))
	}

	d, err := driver.New(newDirSource(cfg), varSvc, driverOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create driver", err)
	}
	session.onClose(d.Close)

	formatter.VerboseLog("run %s: %s", runID, src)
	result, runErr := execute(ctx, d, varSvc, src, opts.Monitor)
	if runErr != nil && driver.IsTableOpen(runErr) {
		return WrapExitError(ExitCommandError, fmt.Sprintf("table %s not found", table), runErr)
	}

	var tables []store.TableCounters
	if st != nil && result != nil {
		if err := st.FinishRun(ctx, result, now()); err != nil {
			slog.Error("failed to record run result", "run_id", runID, "error", err)
		}
		tables, err = st.ReadCounters(ctx, runID)
		if err != nil {
			slog.Error("failed to read table counters", "run_id", runID, "error", err)
		}
	}
	if runErr != nil {
		return WrapExitError(ExitCommandError, "run aborted", runErr)
	}

	out := RunOutput{Run: result, Tables: tables}
	if err := formatter.RunSuccess(runID, out, renderRun(out, themeFor(cmd.OutOrStdout()))); err != nil {
		return err
	}

	if result.Status.Failed() {
		return NewExitError(ExitFailure, fmt.Sprintf("run %s recorded failures", runID))
	}
	return nil
}

// execute runs the table, optionally under the monitor. The monitor only
// starts on an interactive terminal.
func execute(ctx context.Context, d *driver.Driver, v driver.VariableService, src record.Source, withMonitor bool) (*driver.RunResult, error) {
	if !withMonitor {
		return d.Run(ctx, src)
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		slog.Warn("monitor disabled: stdout is not a terminal")
		return d.Run(ctx, src)
	}

	type outcome struct {
		result *driver.RunResult
		err    error
	}
	done := make(chan struct{})
	finished := make(chan outcome, 1)
	go func() {
		defer close(done)
		r, err := d.Run(ctx, src)
		finished <- outcome{r, err}
	}()

	if err := monitor.Run(ctx, v, d.Controller(), done); err != nil {
		slog.Warn("monitor stopped", "error", err)
	}
	o := <-finished
	return o.result, o.err
}

func openVars(cfg *config.Config) (*vars.Service, error) {
	if cfg.Log.Vars == "" {
		return vars.NewMemoryService(), nil
	}
	kv, err := vars.OpenBadger(cfg.Log.Vars)
	if err != nil {
		return nil, err
	}
	return vars.New(kv), nil
}

func newDirSource(cfg *config.Config) *source.Dir {
	var dirOpts []source.DirOption
	for level, ext := range cfg.Extensions() {
		dirOpts = append(dirOpts, source.WithExtension(level, ext))
	}
	return source.NewDir(cfg.Project, dirOpts...)
}

// themeFor styles output only for terminals.
func themeFor(w io.Writer) report.Theme {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return report.DefaultTheme()
	}
	return report.PlainTheme()
}

func renderRun(out RunOutput, theme report.Theme) string {
	title := fmt.Sprintf("%s %s (run %s)", out.Run.Level, out.Run.Table, out.Run.RunID)
	text := report.Summary(title, out.Run.Status, theme)
	if out.Run.Shutdown {
		text += "\nrun ended by shutdown request"
	}
	if len(out.Tables) > 0 {
		rows := make([]report.Row, 0, len(out.Tables))
		for _, tc := range out.Tables {
			rows = append(rows, report.Row{Label: string(tc.Level) + ":" + tc.Table, Status: tc.Status})
		}
		text += "\n\n" + report.Table(rows, theme)
	}
	return text
}
