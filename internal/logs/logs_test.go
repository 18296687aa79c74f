package logs

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tabledriver/internal/record"
)

func TestSlog_LogMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	s := NewSlog(logger)
	require.NoError(t, s.LogMessage(context.Background(), "run1", "Unknown COMMAND", "C, Foo", record.MessageWarning))

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, `msg="Unknown COMMAND"`)
	assert.Contains(t, out, "log=run1")
	assert.Contains(t, out, `detail="C, Foo"`)
}

func TestLevel(t *testing.T) {
	assert.Equal(t, slog.LevelError, Level(record.MessageFailed))
	assert.Equal(t, slog.LevelWarn, Level(record.MessageWarning))
	assert.Equal(t, slog.LevelDebug, Level(record.MessageDebug))
	assert.Equal(t, slog.LevelInfo, Level(record.MessagePassed))
	assert.Equal(t, slog.LevelInfo, Level(record.MessageStartDatatable))
}

type failing struct{ calls int }

func (f *failing) LogMessage(context.Context, string, string, string, record.MessageType) error {
	f.calls++
	return errors.New("sink down")
}

func TestMulti_CallsEverySink(t *testing.T) {
	a, b := &failing{}, &failing{}
	m := Multi{a, nil, Discard{}, b}

	err := m.LogMessage(context.Background(), "log", "msg", "", record.MessageGeneric)
	require.Error(t, err)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}
