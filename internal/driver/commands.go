package driver

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/tabledriver/internal/record"
)

// Built-in driver command keywords, matched case-insensitively.
const (
	CmdExitTable                   = "ExitTable"
	CmdExitSuite                   = "ExitSuite"
	CmdExitCycle                   = "ExitCycle"
	CmdCallCycle                   = "CallCycle"
	CmdCallSuite                   = "CallSuite"
	CmdCallStep                    = "CallStep"
	CmdGotoBlockID                 = "GotoBlockID"
	CmdOnEqualGotoBlockID          = "OnEqualGotoBlockID"
	CmdOnNotEqualGotoBlockID       = "OnNotEqualGotoBlockID"
	CmdOnContainsGotoBlockID       = "OnContainsGotoBlockID"
	CmdOnNotContainsGotoBlockID    = "OnNotContainsGotoBlockID"
	CmdOnLessThanGotoBlockID       = "OnLessThanGotoBlockID"
	CmdOnNotLessThanGotoBlockID    = "OnNotLessThanGotoBlockID"
	CmdOnGreaterThanGotoBlockID    = "OnGreaterThanGotoBlockID"
	CmdOnNotGreaterThanGotoBlockID = "OnNotGreaterThanGotoBlockID"
	CmdOnInRangeGotoBlockID        = "OnInRangeGotoBlockID"
	CmdOnNotInRangeGotoBlockID     = "OnNotInRangeGotoBlockID"
	CmdOnFileExistGotoBlockID      = "OnFileExistGotoBlockID"
	CmdOnFileNotExistGotoBlockID   = "OnFileNotExistGotoBlockID"
	CmdOnDirExistGotoBlockID       = "OnDirectoryExistGotoBlockID"
	CmdOnDirNotExistGotoBlockID    = "OnDirectoryNotExistGotoBlockID"
	CmdUseLocalFlowControl         = "UseLocalFlowControl"
	CmdSetExitTableBlock           = "SetExitTableBlock"
	CmdSetGeneralFailureBlock      = "SetGeneralScriptFailureBlock"
	CmdSetInvalidFileIOBlock       = "SetInvalidFileIOBlock"
	CmdSetNoScriptFailureBlock     = "SetNoScriptFailureBlock"
	CmdSetScriptNotExecutedBlock   = "SetScriptNotExecutedBlock"
	CmdSetScriptWarningBlock       = "SetScriptWarningBlock"
	CmdStartEnginePreference       = "StartEnginePreference"
	CmdUseEngine                   = "UseEngine"
	CmdEndEnginePreference         = "EndEnginePreference"
	CmdClearEnginePreferences      = "ClearEnginePreferences"
	CmdSetVariableValue            = "SetVariableValue"
	CmdLogMessage                  = "LogMessage"
	CmdLogTestSuccess              = "LogTestSuccess"
	CmdLogTestFailure              = "LogTestFailure"
	CmdLogTestWarning              = "LogTestWarning"
	CmdDelay                       = "Delay"
	CmdPause                       = "Pause"
	CmdClearAppMapCache            = "ClearAppMapCache"
)

type commandFunc func(c *driverCommands, ctx context.Context, rec *record.TestRecord) record.Outcome

// commandTable maps upper-cased keywords to their implementations.
var commandTable = buildCommandTable()

func buildCommandTable() map[string]commandFunc {
	t := map[string]commandFunc{
		CmdExitTable: func(*driverCommands, context.Context, *record.TestRecord) record.Outcome {
			return record.ExitTableCommand
		},
		CmdExitSuite: (*driverCommands).exitSuite,
		CmdExitCycle: func(c *driverCommands, _ context.Context, _ *record.TestRecord) record.Outcome {
			c.d.exitCycle = true
			return record.ExitTableCommand
		},
		CmdCallCycle: (*driverCommands).callTable,
		CmdCallSuite: (*driverCommands).callTable,
		CmdCallStep:  (*driverCommands).callTable,
		CmdGotoBlockID: func(c *driverCommands, ctx context.Context, rec *record.TestRecord) record.Outcome {
			return c.gotoBlock(ctx, rec, true, "")
		},
		CmdUseLocalFlowControl: (*driverCommands).useLocalFlowControl,
		CmdStartEnginePreference: func(c *driverCommands, ctx context.Context, rec *record.TestRecord) record.Outcome {
			return c.preference(ctx, rec, true)
		},
		CmdEndEnginePreference: func(c *driverCommands, ctx context.Context, rec *record.TestRecord) record.Outcome {
			return c.preference(ctx, rec, false)
		},
		CmdClearEnginePreferences: func(c *driverCommands, ctx context.Context, rec *record.TestRecord) record.Outcome {
			c.d.router.ClearPreferences()
			c.d.logMessage(ctx, rec.LogID, c.d.msgs.Text(msgSomethingSet, rec.Command, "[]"), "", record.MessageGeneric)
			return record.NoScriptFailure
		},
		CmdSetVariableValue: (*driverCommands).setVariable,
		CmdLogMessage:       logCommand(record.MessageGeneric, record.NoScriptFailure),
		CmdLogTestSuccess:   logCommand(record.MessagePassed, record.TestSuccessLogged),
		CmdLogTestFailure:   logCommand(record.MessageFailed, record.TestFailureLogged),
		CmdLogTestWarning:   logCommand(record.MessageWarning, record.TestWarningLogged),
		CmdDelay:            (*driverCommands).delay,
		CmdPause: func(c *driverCommands, ctx context.Context, rec *record.TestRecord) record.Outcome {
			if err := c.d.controller.Set(ctx, StatePause); err != nil {
				return c.fail(ctx, rec, err.Error())
			}
			return record.NoScriptFailure
		},
		CmdClearAppMapCache: func(c *driverCommands, ctx context.Context, rec *record.TestRecord) record.Outcome {
			return c.d.router.Broadcast(ctx, rec)
		},
	}
	t[CmdUseEngine] = t[CmdStartEnginePreference]
	for _, kw := range []string{
		CmdOnEqualGotoBlockID, CmdOnNotEqualGotoBlockID,
		CmdOnContainsGotoBlockID, CmdOnNotContainsGotoBlockID,
		CmdOnLessThanGotoBlockID, CmdOnNotLessThanGotoBlockID,
		CmdOnGreaterThanGotoBlockID, CmdOnNotGreaterThanGotoBlockID,
	} {
		t[kw] = (*driverCommands).compare
	}
	t[CmdOnInRangeGotoBlockID] = (*driverCommands).inRange
	t[CmdOnNotInRangeGotoBlockID] = (*driverCommands).inRange
	for _, kw := range []string{
		CmdOnFileExistGotoBlockID, CmdOnFileNotExistGotoBlockID,
		CmdOnDirExistGotoBlockID, CmdOnDirNotExistGotoBlockID,
	} {
		t[kw] = (*driverCommands).pathExists
	}
	for kw, cat := range map[string]FlowCategory{
		CmdSetExitTableBlock:         FlowExitTable,
		CmdSetGeneralFailureBlock:    FlowFailure,
		CmdSetInvalidFileIOBlock:     FlowIOFailure,
		CmdSetNoScriptFailureBlock:   FlowNoFailure,
		CmdSetScriptNotExecutedBlock: FlowNotExecuted,
		CmdSetScriptWarningBlock:     FlowWarning,
	} {
		t[kw] = setBlockCommand(cat)
	}

	upper := make(map[string]commandFunc, len(t))
	for kw, fn := range t {
		upper[strings.ToUpper(kw)] = fn
	}
	return upper
}

func logCommand(kind record.MessageType, outcome record.Outcome) commandFunc {
	return func(c *driverCommands, ctx context.Context, rec *record.TestRecord) record.Outcome {
		c.d.logMessage(ctx, rec.LogID, rec.Field(2), rec.Field(3), kind)
		return outcome
	}
}

func setBlockCommand(cat FlowCategory) commandFunc {
	return func(c *driverCommands, ctx context.Context, rec *record.TestRecord) record.Outcome {
		return c.setBlock(ctx, rec, cat)
	}
}

// IsDriverCommand reports whether keyword is handled in-process.
func IsDriverCommand(keyword string) bool {
	_, ok := commandTable[strings.ToUpper(strings.TrimSpace(keyword))]
	return ok
}

// driverCommands handles the in-process driver commands. It is the first
// internal handler for ModeDriverCommand.
type driverCommands struct {
	d *Driver
}

func (c *driverCommands) ProcessRecord(ctx context.Context, rec *record.TestRecord) record.Outcome {
	fn, ok := commandTable[strings.ToUpper(rec.Command)]
	if !ok {
		return record.ScriptNotExecuted
	}
	return fn(c, ctx, rec)
}

func (c *driverCommands) fail(ctx context.Context, rec *record.TestRecord, detail string) record.Outcome {
	c.d.logMessage(ctx, rec.LogID, c.d.msgs.Text(msgBadParam, rec.Command), detail, record.MessageFailed)
	return record.GeneralScriptFailure
}

func (c *driverCommands) exitSuite(ctx context.Context, rec *record.TestRecord) record.Outcome {
	if rec.Level == record.Step || rec.Level == record.Suite {
		c.d.exitSuite = true
		return record.ExitTableCommand
	}
	c.d.logMessage(ctx, rec.LogID, "Unable to perform "+rec.Command, rec.Line, record.MessageGeneric)
	return record.NoScriptFailure
}

func (c *driverCommands) callTable(ctx context.Context, rec *record.TestRecord) record.Outcome {
	level := record.Cycle
	switch {
	case strings.EqualFold(rec.Command, CmdCallStep):
		level = record.Step
	case strings.EqualFold(rec.Command, CmdCallSuite):
		level = record.Suite
	}
	if (level == record.Step && rec.Level != record.Step) || (level == record.Suite && rec.Level == record.Cycle) {
		c.d.logMessage(ctx, rec.LogID,
			"Unable to perform "+rec.Command+" on \""+rec.Field(2)+"\"",
			"Not supported at this test level.", record.MessageFailed)
		return record.GeneralScriptFailure
	}
	if rec.Field(2) == "" {
		c.d.logMessage(ctx, rec.LogID,
			c.d.msgs.Text(msgMissingParameter, "ACTION/TESTNAME", rec.Filename, rec.LineNumber),
			rec.Line, record.MessageFailed)
		return record.GeneralScriptFailure
	}

	result := c.d.invokeTable(ctx, rec, rec.Field(2), rec.Field(3), level)
	if result != record.NoScriptFailure {
		return result
	}
	// exit requests raised inside the child continue upward
	if c.d.exitCycle {
		return record.ExitTableCommand
	}
	if c.d.exitSuite {
		return c.exitSuite(ctx, rec)
	}
	return record.NoScriptFailure
}

// gotoBlock branches unconditionally when passed is true.
func (c *driverCommands) gotoBlock(ctx context.Context, rec *record.TestRecord, passed bool, criteria string) record.Outcome {
	block := rec.Field(2)
	if block == "" {
		return c.fail(ctx, rec, "Missing BlockID specification")
	}
	if criteria != "" {
		verb := " did not branch to "
		if passed {
			verb = " attempting branch to "
		}
		c.d.logMessage(ctx, rec.LogID, rec.Command+verb+block+"  "+criteria, "", record.MessageGeneric)
	}
	if !passed {
		return record.NoScriptFailure
	}
	rec.StatusInfo = block
	return record.BranchToBlockID
}

func (c *driverCommands) compare(ctx context.Context, rec *record.TestRecord) record.Outcome {
	v1, v2 := rec.Field(3), rec.Field(4)
	caseSensitive := !strings.EqualFold(rec.Field(5), "CaseInsensitive")
	cmp := compareValues(v1, v2, caseSensitive)
	is := func(kw string) bool { return strings.EqualFold(rec.Command, kw) }

	var passed bool
	var criteria string
	switch {
	case is(CmdOnContainsGotoBlockID), is(CmdOnNotContainsGotoBlockID):
		a, b := v1, v2
		if !caseSensitive {
			a, b = strings.ToUpper(a), strings.ToUpper(b)
		}
		contains := strings.Contains(a, b)
		passed = contains == is(CmdOnContainsGotoBlockID)
		criteria = v1 + " did not contain " + v2
		if contains {
			criteria = v1 + " contains " + v2
		}
	case is(CmdOnEqualGotoBlockID), is(CmdOnNotEqualGotoBlockID):
		passed = (cmp == 0) == is(CmdOnEqualGotoBlockID)
		criteria = v1 + " did not equal " + v2
		if cmp == 0 {
			criteria = v1 + " equals " + v2
		}
	case is(CmdOnLessThanGotoBlockID), is(CmdOnNotLessThanGotoBlockID):
		passed = (cmp < 0) == is(CmdOnLessThanGotoBlockID)
		criteria = v1 + " is not less than " + v2
		if cmp < 0 {
			criteria = v1 + " is less than " + v2
		}
	default:
		passed = (cmp > 0) == is(CmdOnGreaterThanGotoBlockID)
		criteria = v1 + " is not greater than " + v2
		if cmp > 0 {
			criteria = v1 + " is greater than " + v2
		}
	}
	if !caseSensitive {
		criteria += " (CASEINSENSITIVE)"
	}
	return c.gotoBlock(ctx, rec, passed, criteria)
}

// C, OnInRangeGotoBlockID, block, value, low, high [, CaseInsensitive]
func (c *driverCommands) inRange(ctx context.Context, rec *record.TestRecord) record.Outcome {
	v, low, high := rec.Field(3), rec.Field(4), rec.Field(5)
	caseSensitive := !strings.EqualFold(rec.Field(6), "CaseInsensitive")
	in := compareValues(v, low, caseSensitive) >= 0 && compareValues(v, high, caseSensitive) <= 0
	passed := in == strings.EqualFold(rec.Command, CmdOnInRangeGotoBlockID)
	criteria := v + " is not in range " + low + " to " + high
	if in {
		criteria = v + " is in range " + low + " to " + high
	}
	return c.gotoBlock(ctx, rec, passed, criteria)
}

func (c *driverCommands) pathExists(ctx context.Context, rec *record.TestRecord) record.Outcome {
	path := rec.Field(3)
	if path == "" {
		return c.fail(ctx, rec, "Missing path specification")
	}
	is := func(kw string) bool { return strings.EqualFold(rec.Command, kw) }
	wantDir := is(CmdOnDirExistGotoBlockID) || is(CmdOnDirNotExistGotoBlockID)
	info, err := os.Stat(path)
	exists := err == nil && info.IsDir() == wantDir
	onExist := is(CmdOnFileExistGotoBlockID) || is(CmdOnDirExistGotoBlockID)
	criteria := path + " does not exist"
	if exists {
		criteria = path + " exists"
	}
	return c.gotoBlock(ctx, rec, exists == onExist, criteria)
}

// compareValues compares numerically when both parse as numbers.
func compareValues(a, b string, caseSensitive bool) int {
	fa, errA := strconv.ParseFloat(strings.TrimSpace(a), 64)
	fb, errB := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	if !caseSensitive {
		a, b = strings.ToUpper(a), strings.ToUpper(b)
	}
	return strings.Compare(a, b)
}

func (c *driverCommands) setBlock(ctx context.Context, rec *record.TestRecord, cat FlowCategory) record.Outcome {
	block := rec.Field(2)
	c.d.flow().Set(cat, block)
	c.d.logMessage(ctx, rec.LogID, c.d.msgs.Text(msgSomethingSet, rec.Command, "\""+block+"\""), "", record.MessageGeneric)
	if cat == FlowNoFailure {
		// keep this record's own success from consuming the new target
		return record.IgnoreReturnCode
	}
	return record.NoScriptFailure
}

func (c *driverCommands) useLocalFlowControl(ctx context.Context, rec *record.TestRecord) record.Outcome {
	on := true
	if v := rec.Field(2); v != "" {
		on = parseSwitch(v)
	}
	c.d.perTable = on
	c.d.logMessage(ctx, rec.LogID, c.d.msgs.Text(msgSomethingSet, rec.Command, strings.ToUpper(strconv.FormatBool(on))),
		"", record.MessageGeneric)
	return record.NoScriptFailure
}

func (c *driverCommands) preference(ctx context.Context, rec *record.TestRecord, start bool) record.Outcome {
	name := rec.Field(2)
	var err error
	if start {
		_, err = c.d.router.StartPreference(name)
	} else {
		err = c.d.router.EndPreference(name)
	}
	if err != nil {
		return c.fail(ctx, rec, err.Error())
	}
	c.d.logMessage(ctx, rec.LogID,
		c.d.msgs.Text(msgSomethingSet, rec.Command, strings.Join(c.d.router.Preferences(), ",")), "", record.MessageGeneric)
	return record.NoScriptFailure
}

func (c *driverCommands) setVariable(ctx context.Context, rec *record.TestRecord) record.Outcome {
	name := rec.Field(2)
	if name == "" {
		return c.fail(ctx, rec, "Missing variable name")
	}
	if err := c.d.vars.SetValue(ctx, name, rec.Field(3)); err != nil {
		return c.fail(ctx, rec, err.Error())
	}
	return record.NoScriptFailure
}

func (c *driverCommands) delay(ctx context.Context, rec *record.TestRecord) record.Outcome {
	ms, err := strconv.Atoi(rec.Field(2))
	if err != nil || ms < 0 {
		return c.fail(ctx, rec, rec.Field(2))
	}
	if err := c.d.sleep(ctx, time.Duration(ms)*time.Millisecond); err != nil {
		rec.MarkShutdown()
		return record.ScriptNotExecuted
	}
	return record.NoScriptFailure
}

// parseSwitch accepts ON/OFF, TRUE/FALSE, YES/NO and 1/0.
func parseSwitch(v string) bool {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case SwitchOff, "FALSE", "NO", "0":
		return false
	}
	return true
}
