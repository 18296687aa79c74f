package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/language"

	"github.com/roach88/tabledriver/internal/record"
)

// Mode selects which command token a record carries and which internal
// handlers apply.
type Mode int

const (
	// ModeDriverCommand routes C, CW and CF records; the command is field 1.
	ModeDriverCommand Mode = iota
	// ModeEngineCommand routes E records; the command is field 1.
	ModeEngineCommand
	// ModeComponentFunction routes STEP-level test records; the command is
	// field 3 (window, component, action).
	ModeComponentFunction
	// ModeImpliedCall routes records with an unrecognized type tag; the
	// command is field 0.
	ModeImpliedCall
)

func (m Mode) commandField() int {
	switch m {
	case ModeComponentFunction:
		return 3
	case ModeImpliedCall:
		return 0
	}
	return 1
}

func (m Mode) label() string {
	switch m {
	case ModeEngineCommand:
		return "Engine Command"
	case ModeComponentFunction:
		return "Action Command"
	case ModeImpliedCall:
		return "Script"
	}
	return "Driver Command"
}

func (m Mode) String() string {
	switch m {
	case ModeDriverCommand:
		return "driver-command"
	case ModeEngineCommand:
		return "engine-command"
	case ModeComponentFunction:
		return "component-function"
	case ModeImpliedCall:
		return "implied-call"
	}
	return "unknown"
}

// RouterOptions configures a Router.
type RouterOptions struct {
	// PreferredOverride tries preferred engines before the internal
	// handlers when any preference exists.
	PreferredOverride bool

	// Internal lists the in-process handlers tried for each mode.
	Internal map[Mode][]Handler

	// Fallback is the lowest-priority handler for driver commands.
	Fallback Handler
}

// Router dispatches records to internal handlers and registered engines.
//
// Preferred engines are tried in preference order, most recently preferred
// first, and always before engines that are not preferred.
type Router struct {
	engines   []Engine
	preferred []Engine
	internal  map[Mode][]Handler
	fallback  Handler
	override  bool
	logs      LogService
	msgs      *Messages
}

// NewRouter creates an empty router. logs may be nil.
func NewRouter(opts RouterOptions, logs LogService, msgs *Messages) *Router {
	if msgs == nil {
		msgs = NewMessages(language.English)
	}
	internal := make(map[Mode][]Handler, len(opts.Internal))
	for m, hs := range opts.Internal {
		internal[m] = append([]Handler(nil), hs...)
	}
	return &Router{
		internal: internal,
		fallback: opts.Fallback,
		override: opts.PreferredOverride,
		logs:     logs,
		msgs:     msgs,
	}
}

// AddInternal appends an in-process handler for mode.
func (r *Router) AddInternal(mode Mode, h Handler) {
	r.internal[mode] = append(r.internal[mode], h)
}

// Register appends an engine in registration order. Names are unique
// case-insensitively.
func (r *Router) Register(e Engine) error {
	if e == nil || strings.TrimSpace(e.Name()) == "" {
		return NewInvalidArgumentError("engine", "")
	}
	for _, existing := range r.engines {
		if strings.EqualFold(existing.Name(), e.Name()) {
			return NewInvalidArgumentError("engine", e.Name())
		}
	}
	r.engines = append(r.engines, e)
	return nil
}

// Engines returns the registered engines in registration order.
func (r *Router) Engines() []Engine {
	return append([]Engine(nil), r.engines...)
}

// PreferredEngine resolves name to a registered engine. An exact
// case-insensitive match wins; otherwise the first engine whose name
// contains name is returned.
func (r *Router) PreferredEngine(name string) (Engine, error) {
	key := strings.ToUpper(strings.TrimSpace(name))
	if key == "" {
		return nil, NewInvalidArgumentError("engine", name)
	}
	for _, e := range r.engines {
		if strings.ToUpper(e.Name()) == key {
			return e, nil
		}
	}
	for _, e := range r.engines {
		if strings.Contains(strings.ToUpper(e.Name()), key) {
			return e, nil
		}
	}
	return nil, NewInvalidArgumentError("engine", name)
}

// StartPreference moves the named engine to the front of the preferred
// list, adding it if it was not preferred.
func (r *Router) StartPreference(name string) (Engine, error) {
	e, err := r.PreferredEngine(name)
	if err != nil {
		return nil, err
	}
	r.removePreferred(e)
	r.preferred = append([]Engine{e}, r.preferred...)
	slog.Debug("engine preference started", "engine", e.Name(), "preferred", r.Preferences())
	return e, nil
}

// EndPreference removes the named engine from the preferred list. Ending a
// preference for an engine that is not preferred does nothing.
func (r *Router) EndPreference(name string) error {
	e, err := r.PreferredEngine(name)
	if err != nil {
		return err
	}
	if !r.removePreferred(e) {
		return nil
	}
	slog.Debug("engine preference ended", "engine", e.Name(), "preferred", r.Preferences())
	return nil
}

// ClearPreferences empties the preferred list.
func (r *Router) ClearPreferences() {
	r.preferred = nil
}

// Preferences returns the preferred engine names, most recent first.
func (r *Router) Preferences() []string {
	names := make([]string, len(r.preferred))
	for i, e := range r.preferred {
		names[i] = e.Name()
	}
	return names
}

// HasPreferences reports whether any engine is preferred.
func (r *Router) HasPreferences() bool {
	return len(r.preferred) > 0
}

// IsPreferred reports whether e is in the preferred list.
func (r *Router) IsPreferred(e Engine) bool {
	for _, p := range r.preferred {
		if p == e {
			return true
		}
	}
	return false
}

func (r *Router) removePreferred(e Engine) bool {
	for i, p := range r.preferred {
		if p == e {
			r.preferred = append(r.preferred[:i], r.preferred[i+1:]...)
			return true
		}
	}
	return false
}

// Route dispatches rec in mode and returns its outcome, which is also
// stored in rec.Status.
//
// Order: internal handlers (unless overridden by preferences), preferred
// engines, internal handlers again when overridden, remaining engines in
// registration order, then the fallback handler for driver commands. A
// record nobody claims becomes a SCRIPT_WARNING unless it carries the
// shutdown marker. A record with no command token is SCRIPT_NOT_EXECUTED.
func (r *Router) Route(ctx context.Context, rec *record.TestRecord, mode Mode) record.Outcome {
	command := rec.Field(mode.commandField())
	if command == "" {
		r.log(ctx, rec, r.msgs.Text(msgMissingParameter, mode.label(), rec.Filename, rec.LineNumber),
			rec.Line, record.MessageFailed)
		return r.finish(rec, record.ScriptNotExecuted)
	}
	rec.Command = command

	overridden := r.override && r.HasPreferences()
	result := record.ScriptNotExecuted

	if !overridden {
		result = r.tryInternal(ctx, rec, mode)
	}
	if r.open(rec, result) {
		result = r.tryPreferred(ctx, rec)
	}
	if overridden && r.open(rec, result) {
		result = r.tryInternal(ctx, rec, mode)
	}
	if r.open(rec, result) {
		result = r.tryRemaining(ctx, rec)
	}
	if mode == ModeDriverCommand && r.fallback != nil && r.open(rec, result) {
		result = r.call(ctx, rec, "fallback", r.fallback)
	}

	if r.open(rec, result) {
		text := r.msgs.Text(msgUnknownCommand, mode.label(), command, rec.Filename, rec.LineNumber)
		if mode == ModeImpliedCall {
			text = r.msgs.Text(msgUnknownRecord, rec.Filename, rec.LineNumber)
		}
		r.log(ctx, rec, text, rec.Line, record.MessageWarning)
		result = record.ScriptWarning
	}
	return r.finish(rec, result)
}

// Broadcast delivers rec to every engine regardless of individual results
// and returns NO_SCRIPT_FAILURE.
func (r *Router) Broadcast(ctx context.Context, rec *record.TestRecord) record.Outcome {
	if rec.Command == "" {
		rec.Command = rec.Field(ModeDriverCommand.commandField())
	}
	for i, e := range r.engines {
		rec.MoreEngines = i < len(r.engines)-1
		outcome := r.call(ctx, rec, e.Name(), e)
		slog.Debug("broadcast delivered", "engine", e.Name(), "command", rec.Command, "outcome", outcome.String())
	}
	return r.finish(rec, record.NoScriptFailure)
}

// Shutdown shuts down every engine and joins their errors.
func (r *Router) Shutdown() error {
	var errs []error
	for _, e := range r.engines {
		if err := e.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", e.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// open reports whether routing should continue.
func (r *Router) open(rec *record.TestRecord, result record.Outcome) bool {
	return result == record.ScriptNotExecuted && rec.StatusInfo != record.ShutdownMarker
}

func (r *Router) finish(rec *record.TestRecord, result record.Outcome) record.Outcome {
	rec.MoreEngines = false
	rec.Status = result
	return result
}

func (r *Router) tryInternal(ctx context.Context, rec *record.TestRecord, mode Mode) record.Outcome {
	rec.MoreEngines = len(r.engines) > 0
	for _, h := range r.internal[mode] {
		result := r.call(ctx, rec, "internal", h)
		if !r.open(rec, result) {
			return result
		}
	}
	return record.ScriptNotExecuted
}

func (r *Router) tryPreferred(ctx context.Context, rec *record.TestRecord) record.Outcome {
	remaining := r.remaining()
	for i, e := range r.preferred {
		rec.MoreEngines = i < len(r.preferred)-1 || len(remaining) > 0
		result := r.call(ctx, rec, e.Name(), e)
		if !r.open(rec, result) {
			return result
		}
	}
	return record.ScriptNotExecuted
}

func (r *Router) tryRemaining(ctx context.Context, rec *record.TestRecord) record.Outcome {
	remaining := r.remaining()
	for i, e := range remaining {
		rec.MoreEngines = i < len(remaining)-1
		result := r.call(ctx, rec, e.Name(), e)
		if !r.open(rec, result) {
			return result
		}
	}
	return record.ScriptNotExecuted
}

// remaining returns registered engines that are not preferred.
func (r *Router) remaining() []Engine {
	var out []Engine
	for _, e := range r.engines {
		if !r.IsPreferred(e) {
			out = append(out, e)
		}
	}
	return out
}

func (r *Router) call(ctx context.Context, rec *record.TestRecord, name string, h Handler) record.Outcome {
	slog.Debug("trying handler", "handler", name, "command", rec.Command, "line", rec.LineNumber)
	result := h.ProcessRecord(ctx, rec)
	slog.Debug("handler returned", "handler", name, "outcome", result.String())
	return result
}

func (r *Router) log(ctx context.Context, rec *record.TestRecord, message, detail string, kind record.MessageType) {
	if r.logs == nil {
		return
	}
	if err := r.logs.LogMessage(ctx, rec.LogID, message, detail, kind); err != nil {
		slog.Warn("log message failed", "error", err)
	}
}
