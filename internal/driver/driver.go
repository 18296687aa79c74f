package driver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/text/language"

	"github.com/roach88/tabledriver/internal/record"
)

// Shared variables the driver publishes for monitors.
const (
	SeparatorVariable   = "SAFS/Hook/separator"
	InputRecordVariable = "SAFS/Hook/inputrecord"
	FilenameVariable    = "SAFS/Hook/filename"
	LineNumberVariable  = "SAFS/Hook/linenumber"
	StatusCodeVariable  = "SAFS/Hook/statuscode"
	StatusInfoVariable  = "SAFS/Hook/statusinfo"
)

// Options is the configuration threaded through the driver.
type Options struct {
	// PreferredEnginesOverride tries preferred engines before the internal
	// handlers whenever a preference exists.
	PreferredEnginesOverride bool

	// ResolveSkippedRecords resolves variables in S records too.
	ResolveSkippedRecords bool

	// PerTableFlowControl gives every table its own FlowControl. The
	// UseLocalFlowControl command toggles it at runtime.
	PerTableFlowControl bool

	// DelayBetweenRecords is applied before every control-state poll.
	DelayBetweenRecords time.Duration

	// PollInterval is the sleep between checks while paused.
	PollInterval time.Duration

	// Breakpoints makes BP records pause execution.
	Breakpoints bool

	// AllowRecursiveTables disables the self-reference check.
	AllowRecursiveTables bool

	// MaxTableDepth bounds nesting; 0 means unlimited.
	MaxTableDepth int

	// LegacyControlTokens publishes the short control tokens (PAUSE, STEP,
	// ...) instead of the *_EXECUTION forms.
	LegacyControlTokens bool

	// LogID names the log all messages go to.
	LogID string

	// Language selects the message catalog.
	Language language.Tag
}

// DefaultOptions returns the defaults used when no configuration is given.
func DefaultOptions() Options {
	return Options{
		ResolveSkippedRecords: true,
		PollInterval:          DefaultPollInterval,
		LogID:                 "tabledriver",
		Language:              language.English,
	}
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithOptions replaces the driver options.
func WithOptions(o Options) DriverOption {
	return func(d *Driver) {
		d.opts = o
	}
}

// WithEngines registers engines in order.
func WithEngines(engines ...Engine) DriverOption {
	return func(d *Driver) {
		d.pendingEngines = append(d.pendingEngines, engines...)
	}
}

// WithPreferred starts a preference for each name, last name first in the
// resulting list.
func WithPreferred(names ...string) DriverOption {
	return func(d *Driver) {
		d.pendingPreferred = append(d.pendingPreferred, names...)
	}
}

// WithLogService sets the test-log sink.
func WithLogService(l LogService) DriverOption {
	return func(d *Driver) {
		d.logs = l
	}
}

// WithCounters sets the shared counters service.
func WithCounters(c CountersService) DriverOption {
	return func(d *Driver) {
		d.counters = c
	}
}

// WithRecorder sets the per-record observer, e.g. the outcome journal.
func WithRecorder(r Recorder) DriverOption {
	return func(d *Driver) {
		d.recorder = r
	}
}

// WithSleep replaces the sleep used for pauses and delays. Tests use it to
// drive the control loop without waiting.
func WithSleep(s SleepFunc) DriverOption {
	return func(d *Driver) {
		d.sleep = s
	}
}

// WithRunIDGenerator overrides the run ID source.
func WithRunIDGenerator(g RunIDGenerator) DriverOption {
	return func(d *Driver) {
		d.runIDs = g
	}
}

// WithInternalHandler adds an in-process handler for mode, tried after the
// built-in driver commands.
func WithInternalHandler(mode Mode, h Handler) DriverOption {
	return func(d *Driver) {
		d.pendingInternal = append(d.pendingInternal, modeHandler{mode, h})
	}
}

// WithFallback sets the lowest-priority driver-command handler.
func WithFallback(h Handler) DriverOption {
	return func(d *Driver) {
		d.fallback = h
	}
}

type modeHandler struct {
	mode Mode
	h    Handler
}

// Driver executes test tables.
//
// A Driver is single-threaded: Run must not be called concurrently. The
// shared control state lives in the VariableService, so operator consoles
// interact with a running Driver only through that service.
type Driver struct {
	source   RecordSource
	vars     VariableService
	logs     LogService
	counters CountersService
	recorder Recorder
	opts     Options

	router     *Router
	controller *Controller
	msgs       *Messages
	scopes     flowScopes
	stack      *TableStack
	runIDs     RunIDGenerator
	sleep      SleepFunc
	fallback   Handler

	// runtime state shared by nested tables
	perTable  bool
	exitSuite bool
	exitCycle bool
	current   *tableContext
	global    StatusCounter

	pendingEngines   []Engine
	pendingPreferred []string
	pendingInternal  []modeHandler
}

// New creates a driver reading tables from source and sharing state
// through vars.
func New(source RecordSource, vars VariableService, opts ...DriverOption) (*Driver, error) {
	d := &Driver{
		source: source,
		vars:   vars,
		opts:   DefaultOptions(),
		scopes: newFlowScopes(),
		stack:  NewTableStack(),
		runIDs: UUIDv7Generator{},
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.opts.Language == language.Und {
		d.opts.Language = language.English
	}
	if d.opts.LogID == "" {
		d.opts.LogID = DefaultOptions().LogID
	}

	d.msgs = NewMessages(d.opts.Language)
	d.perTable = d.opts.PerTableFlowControl
	d.controller = NewController(vars, d.opts.PollInterval, d.sleep, d.opts.LegacyControlTokens)
	d.router = NewRouter(RouterOptions{
		PreferredOverride: d.opts.PreferredEnginesOverride,
		Internal: map[Mode][]Handler{
			ModeDriverCommand: {&driverCommands{d: d}},
		},
		Fallback: d.fallback,
	}, d.logs, d.msgs)
	for _, mh := range d.pendingInternal {
		d.router.AddInternal(mh.mode, mh.h)
	}

	for _, e := range d.pendingEngines {
		if err := d.router.Register(e); err != nil {
			return nil, fmt.Errorf("register engine: %w", err)
		}
	}
	for i := len(d.pendingPreferred) - 1; i >= 0; i-- {
		if _, err := d.router.StartPreference(d.pendingPreferred[i]); err != nil {
			return nil, fmt.Errorf("preferred engine: %w", err)
		}
	}
	d.pendingEngines, d.pendingPreferred, d.pendingInternal = nil, nil, nil
	return d, nil
}

// Router exposes engine registration and preferences.
func (d *Driver) Router() *Router {
	return d.router
}

// Controller exposes the shared control state.
func (d *Driver) Controller() *Controller {
	return d.controller
}

// Tables returns the executing tables, outermost first.
func (d *Driver) Tables() []string {
	return d.stack.Tables()
}

// Status returns the global counter accumulated over all runs.
func (d *Driver) Status() StatusCounter {
	return d.global
}

// FlowControl returns the shared policy for level.
func (d *Driver) FlowControl(level record.TestLevel) *FlowControl {
	return d.scopes.get(level)
}

// RunResult summarizes one Run.
type RunResult struct {
	RunID    string        `json:"run_id"`
	Table    string        `json:"table"`
	Level    string        `json:"level"`
	Status   StatusCounter `json:"status"`
	Shutdown bool          `json:"shutdown"`
}

// Run executes the table described by src to completion and merges its
// status into the global counter.
//
// Test outcomes never produce errors. Run returns an error when the
// top-level table cannot be opened or when an unexpected panic escapes a
// collaborator; in the latter case the partial status is still returned.
func (d *Driver) Run(ctx context.Context, src record.Source) (result *RunResult, err error) {
	result = &RunResult{
		RunID: d.runIDs.Generate(),
		Table: src.Name,
		Level: string(src.Level),
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("run aborted by unexpected failure", "run_id", result.RunID, "panic", r)
			d.logMessage(ctx, d.opts.LogID, d.msgs.Text(msgPanic, r), "", record.MessageFailed)
			err = fmt.Errorf("run %s: unexpected failure: %v", result.RunID, r)
		}
	}()

	if err := d.controller.Init(ctx); err != nil {
		slog.Warn("control state init failed", "error", err)
	}
	d.exitSuite, d.exitCycle = false, false

	slog.Info("run starting", "run_id", result.RunID, "table", src.Name, "level", src.Level)
	status, shutdown, err := d.runTable(ctx, src, d.opts.LogID)
	result.Status = status
	result.Shutdown = shutdown
	d.global.Merge(status)
	if err != nil {
		return result, err
	}
	slog.Info("run finished",
		"run_id", result.RunID,
		"records", status.Total(),
		"test_failures", status.TestFailures,
		"general_failures", status.GeneralFailures,
		"shutdown", shutdown,
	)
	return result, nil
}

// Close shuts down every registered engine.
func (d *Driver) Close() error {
	return d.router.Shutdown()
}

// flow returns the policy the current table consults.
func (d *Driver) flow() *FlowControl {
	if d.current == nil {
		return d.scopes.get(record.Step)
	}
	if d.perTable {
		return d.current.local
	}
	return d.scopes.get(d.current.src.Level)
}

func (d *Driver) logMessage(ctx context.Context, logID, message, detail string, kind record.MessageType) {
	if d.logs == nil {
		return
	}
	if err := d.logs.LogMessage(ctx, logID, message, detail, kind); err != nil {
		slog.Warn("log message failed", "error", err)
	}
}

func (d *Driver) setVar(ctx context.Context, name, value string) {
	if err := d.vars.SetValue(ctx, name, value); err != nil {
		slog.Debug("variable write failed", "name", name, "error", err)
	}
}
