package driver

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys for test-log text.
const (
	msgUnknownCommand   = "unknown_command"
	msgMissingParameter = "missing_parameter"
	msgUnknownRecord    = "unknown_record"
	msgBlockNotFound    = "blockid_not_found"
	msgBranchFailed     = "branch_failed"
	msgBranching        = "branching"
	msgTerminatingEarly = "terminating_early"
	msgUserAbort        = "user_abort"
	msgBeginBlock       = "begin_block"
	msgBreakpoint       = "breakpoint"
	msgTableCycle       = "table_cycle"
	msgTableDepth       = "table_depth"
	msgTableOpen        = "table_open"
	msgTableStart       = "table_start"
	msgTableEnd         = "table_end"
	msgSomethingSet     = "something_set"
	msgBadParam         = "bad_param"
	msgRetry            = "retry"
	msgPanic            = "panic"
)

var englishMessages = map[string]string{
	msgUnknownCommand:   "Unknown %s \"%s\" in table %s at line %d",
	msgMissingParameter: "Missing %s in table %s at line %d",
	msgUnknownRecord:    "Unknown RECORD TYPE, SCRIPT NAME, or COMMAND in table %s at line %d",
	msgBlockNotFound:    "BlockId '%s' not found.",
	msgBranchFailed:     "Unable to branch to BlockID in table %s at line %d",
	msgBranching:        "Branching to BlockID '%s' in table %s",
	msgTerminatingEarly: "%s terminating prematurely by command.",
	msgUserAbort:        "User-initiated shutdown requested.  Stopping all tests.",
	msgBeginBlock:       "Begin Block '%s'",
	msgBreakpoint:       "Breakpoint at line %d in %s",
	msgTableCycle:       "%s TABLE \"%s\" is already executing; recursive call rejected",
	msgTableDepth:       "%s TABLE \"%s\" exceeds the maximum table depth of %d",
	msgTableOpen:        "Unable to locate or open %s TABLE: \"%s\".",
	msgTableStart:       "%s TABLE: %s",
	msgTableEnd:         "%s TABLE: %s",
	msgSomethingSet:     "%s set to %s",
	msgBadParam:         "Invalid parameter value for %s",
	msgRetry:            "Retrying line %d in %s",
	msgPanic:            "Unexpected failure: %v",
}

var germanMessages = map[string]string{
	msgUnknownCommand:   "Unbekannter %s \"%s\" in Tabelle %s, Zeile %d",
	msgMissingParameter: "%s fehlt in Tabelle %s, Zeile %d",
	msgBlockNotFound:    "BlockId '%s' nicht gefunden.",
	msgUserAbort:        "Abbruch durch Benutzer angefordert.  Alle Tests werden beendet.",
	msgBeginBlock:       "Beginn Block '%s'",
}

var messageCatalog = buildCatalog()

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, msg := range englishMessages {
		_ = b.SetString(language.English, key, msg)
	}
	for key, msg := range englishMessages {
		if de, ok := germanMessages[key]; ok {
			msg = de
		}
		_ = b.SetString(language.German, key, msg)
	}
	return b
}

// Messages renders localized test-log text.
type Messages struct {
	p *message.Printer
}

// NewMessages returns a renderer for tag. Untranslated keys render in
// English.
func NewMessages(tag language.Tag) *Messages {
	return &Messages{p: message.NewPrinter(tag, message.Catalog(messageCatalog))}
}

// Text formats the message stored under key.
func (m *Messages) Text(key string, args ...any) string {
	return m.p.Sprintf(key, args...)
}
