package engines

import "github.com/roach88/tabledriver/internal/record"

// AdjustForExpectation applies the warn-OK and fail-OK record variants: a
// CW or TW record treats a warning as success, and a CF or TF record treats
// a failure or a warning as success. Other records are returned unchanged.
func AdjustForExpectation(t record.RecordType, outcome record.Outcome) record.Outcome {
	warnOK := t == record.DriverCommandWarnOK || t == record.TestStepWarnOK
	failOK := t == record.DriverCommandFailOK || t == record.TestStepFailOK
	if !warnOK && !failOK {
		return outcome
	}

	switch outcome {
	case record.ScriptWarning:
		return record.NoScriptFailure
	case record.TestWarningLogged:
		return record.TestSuccessLogged
	}
	if failOK {
		switch outcome {
		case record.GeneralScriptFailure:
			return record.NoScriptFailure
		case record.TestFailureLogged:
			return record.TestSuccessLogged
		}
	}
	return outcome
}
