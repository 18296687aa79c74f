package record

import (
	"fmt"
	"strings"
)

// RecordType is the tag in field 0 of a table line.
type RecordType string

const (
	DriverCommand       RecordType = "C"
	DriverCommandWarnOK RecordType = "CW"
	DriverCommandFailOK RecordType = "CF"
	EngineCommand       RecordType = "E"
	TestStep            RecordType = "T"
	TestStepWarnOK      RecordType = "TW"
	TestStepFailOK      RecordType = "TF"
	Skipped             RecordType = "S"
	BlockID             RecordType = "B"
	Breakpoint          RecordType = "BP"
)

// IsDriverCommand reports C, CW and CF records.
func (t RecordType) IsDriverCommand() bool {
	return t == DriverCommand || t == DriverCommandWarnOK || t == DriverCommandFailOK
}

// IsTest reports T, TW and TF records.
func (t RecordType) IsTest() bool {
	return t == TestStep || t == TestStepWarnOK || t == TestStepFailOK
}

// IsImplied reports whether t is none of the recognized tags. Such records
// are treated as an implied call.
func (t RecordType) IsImplied() bool {
	switch t {
	case DriverCommand, DriverCommandWarnOK, DriverCommandFailOK,
		EngineCommand, TestStep, TestStepWarnOK, TestStepFailOK,
		Skipped, BlockID, Breakpoint:
		return false
	}
	return true
}

// TestLevel is one tier of the table hierarchy.
type TestLevel string

const (
	Cycle TestLevel = "CYCLE"
	Suite TestLevel = "SUITE"
	Step  TestLevel = "STEP"
)

// ParseTestLevel is case-insensitive.
func ParseTestLevel(s string) (TestLevel, error) {
	switch TestLevel(strings.ToUpper(strings.TrimSpace(s))) {
	case Cycle:
		return Cycle, nil
	case Suite:
		return Suite, nil
	case Step:
		return Step, nil
	}
	return "", fmt.Errorf("unknown test level %q", s)
}

// Child returns the level of tables referenced from this one: SUITE from a
// CYCLE, STEP from anything else.
func (l TestLevel) Child() TestLevel {
	if l == Cycle {
		return Suite
	}
	return Step
}

// ActiveTableVariable is the shared variable naming the table currently
// executing at this level.
func (l TestLevel) ActiveTableVariable() string {
	switch l {
	case Cycle:
		return "safsActiveCycle"
	case Suite:
		return "safsActiveSuite"
	}
	return "safsActiveStep"
}

// Source identifies one opened table.
type Source struct {
	Name      string
	Level     TestLevel
	Separator string
}

// String returns "LEVEL:name".
func (s Source) String() string {
	return string(s.Level) + ":" + s.Name
}
