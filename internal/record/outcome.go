package record

import (
	"fmt"
	"strconv"
	"strings"
)

// Outcome is the integer result of attempting to process a record.
//
// The numeric values are shared with external monitors and engines and must
// be preserved bit-exact.
type Outcome int

const (
	ScriptWarning        Outcome = -2
	NoScriptFailure      Outcome = -1
	GeneralScriptFailure Outcome = 0
	InvalidFileIO        Outcome = 2
	ScriptNotExecuted    Outcome = 4
	TestFailureLogged    Outcome = 5
	TestSuccessLogged    Outcome = 6
	TestWarningLogged    Outcome = 7
	ExitTableCommand     Outcome = 8
	IgnoreReturnCode     Outcome = 16
	BranchToBlockID      Outcome = 256
)

var outcomeNames = map[Outcome]string{
	ScriptWarning:        "SCRIPT_WARNING",
	NoScriptFailure:      "NO_SCRIPT_FAILURE",
	GeneralScriptFailure: "GENERAL_SCRIPT_FAILURE",
	InvalidFileIO:        "INVALID_FILE_IO",
	ScriptNotExecuted:    "SCRIPT_NOT_EXECUTED",
	TestFailureLogged:    "TESTFAILURE_LOGGED",
	TestSuccessLogged:    "TESTSUCCESS_LOGGED",
	TestWarningLogged:    "TESTWARNING_LOGGED",
	ExitTableCommand:     "EXIT_TABLE_COMMAND",
	IgnoreReturnCode:     "IGNORE_RETURN_CODE",
	BranchToBlockID:      "BRANCH_TO_BLOCKID",
}

// short aliases accepted by ParseOutcome
var outcomeAliases = map[string]Outcome{
	"WARNING":         ScriptWarning,
	"NO_FAILURE":      NoScriptFailure,
	"PASS":            NoScriptFailure,
	"GENERAL_FAILURE": GeneralScriptFailure,
	"FAILURE":         GeneralScriptFailure,
	"FAIL":            GeneralScriptFailure,
	"IO_FAILURE":      InvalidFileIO,
	"NOT_EXECUTED":    ScriptNotExecuted,
	"EXIT_TABLE":      ExitTableCommand,
}

// String returns the canonical name of the outcome, or its integer value
// for codes outside the known set.
func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return strconv.Itoa(int(o))
}

// Known reports whether o is one of the defined outcome codes.
func (o Outcome) Known() bool {
	_, ok := outcomeNames[o]
	return ok
}

// ParseOutcome accepts a canonical name, a short alias or an integer.
func ParseOutcome(s string) (Outcome, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	if key == "" {
		return 0, fmt.Errorf("empty outcome")
	}
	for o, name := range outcomeNames {
		if name == key {
			return o, nil
		}
	}
	if o, ok := outcomeAliases[key]; ok {
		return o, nil
	}
	n, err := strconv.Atoi(key)
	if err != nil {
		return 0, fmt.Errorf("unknown outcome %q", s)
	}
	return Outcome(n), nil
}

// MarshalYAML writes the canonical name.
func (o Outcome) MarshalYAML() (any, error) {
	return o.String(), nil
}

// UnmarshalYAML accepts any form understood by ParseOutcome.
func (o *Outcome) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseOutcome(s)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}
