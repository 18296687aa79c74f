package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"

	"github.com/roach88/tabledriver/internal/record"
)

func TestCompareValues(t *testing.T) {
	tests := []struct {
		name          string
		a, b          string
		caseSensitive bool
		want          int
	}{
		{"numeric less", "9", "10", true, -1},
		{"numeric equal with spaces", " 2.0", "2", true, 0},
		{"string order when not numeric", "9", "10x", true, 1},
		{"case-sensitive", "abc", "ABC", true, 1},
		{"case-insensitive", "abc", "ABC", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compareValues(tt.a, tt.b, tt.caseSensitive))
		})
	}
}

func TestParseSwitch(t *testing.T) {
	for _, v := range []string{"ON", "on", "true", "Yes", "1", "anything"} {
		assert.True(t, parseSwitch(v), v)
	}
	for _, v := range []string{"OFF", "off", "false", "NO", "0", " off "} {
		assert.False(t, parseSwitch(v), v)
	}
}

func TestIsDriverCommand(t *testing.T) {
	assert.True(t, IsDriverCommand("callstep"))
	assert.True(t, IsDriverCommand(" SetScriptWarningBlock "))
	assert.True(t, IsDriverCommand("OnDirectoryNotExistGotoBlockID"))
	assert.False(t, IsDriverCommand("Click"))
}

func TestMessages_Localized(t *testing.T) {
	en := NewMessages(language.English)
	de := NewMessages(language.German)

	assert.Equal(t, "BlockId 'Retry' not found.", en.Text(msgBlockNotFound, "Retry"))
	assert.Equal(t, "BlockId 'Retry' nicht gefunden.", de.Text(msgBlockNotFound, "Retry"))
	assert.Equal(t, en.Text(msgBranching, "X", "T"), de.Text(msgBranching, "X", "T"), "untranslated keys fall back to English")
}

func TestTableStack(t *testing.T) {
	s := NewTableStack()
	s.Push("Cycle")
	s.Push("Suite")

	assert.True(t, s.WouldCycle("cycle"))
	assert.False(t, s.WouldCycle("Step"))
	assert.Equal(t, 2, s.Depth())
	assert.Equal(t, []string{"Cycle", "Suite"}, s.Tables())

	s.Pop()
	s.Pop()
	s.Pop()
	assert.Equal(t, 0, s.Depth())
}

func TestFlowScopes(t *testing.T) {
	scopes := newFlowScopes()
	scopes.get(record.Suite).Set(FlowFailure, "X")

	assert.Equal(t, "X", scopes.get(record.Suite).Target(FlowFailure))
	assert.Equal(t, "", scopes.get(record.Step).Target(FlowFailure), "levels are independent")
}
