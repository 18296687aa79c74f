package record

// StatusKind names a single counter family incremented for one record.
type StatusKind int

const (
	GeneralPass StatusKind = iota
	GeneralFailure
	GeneralWarning
	GeneralIOFailure
	TestPass
	TestFailure
	TestWarning
	TestIOFailure
	SkippedRecord
)

var statusKindNames = [...]string{
	GeneralPass:      "general_pass",
	GeneralFailure:   "general_failure",
	GeneralWarning:   "general_warning",
	GeneralIOFailure: "general_io_failure",
	TestPass:         "test_pass",
	TestFailure:      "test_failure",
	TestWarning:      "test_warning",
	TestIOFailure:    "test_io_failure",
	SkippedRecord:    "skipped",
}

func (k StatusKind) String() string {
	if int(k) >= 0 && int(k) < len(statusKindNames) {
		return statusKindNames[k]
	}
	return "unknown"
}

// StatusKinds lists every kind in declaration order.
func StatusKinds() []StatusKind {
	kinds := make([]StatusKind, len(statusKindNames))
	for i := range kinds {
		kinds[i] = StatusKind(i)
	}
	return kinds
}

// MessageType classifies a test-log message.
type MessageType string

const (
	MessageGeneric        MessageType = "GENERIC"
	MessagePassed         MessageType = "PASSED"
	MessageFailed         MessageType = "FAILED"
	MessageWarning        MessageType = "WARNING"
	MessageSkipped        MessageType = "SKIPPED"
	MessageStartDatatable MessageType = "START_DATATABLE"
	MessageEndDatatable   MessageType = "END_DATATABLE"
	MessageStatus         MessageType = "STATUS"
	MessageDebug          MessageType = "DEBUG"
)

// ParseStatusKind is the inverse of StatusKind.String.
func ParseStatusKind(s string) (StatusKind, bool) {
	for i, name := range statusKindNames {
		if name == s {
			return StatusKind(i), true
		}
	}
	return 0, false
}
