package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/coreos/go-systemd/v22/journal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.input), tt.input)
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "json", slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("hello", "widget", "notes")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "notes", rec["widget"])
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "text", slog.LevelWarn).Warn("careful", "n", 3)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "n=3")
}

type sent struct {
	msg  string
	pri  journal.Priority
	vars map[string]string
}

func captureJournal(level slog.Level) (*JournalHandler, *[]sent) {
	var out []sent
	h := NewJournalHandler(level)
	h.send = func(msg string, p journal.Priority, vars map[string]string) error {
		out = append(out, sent{msg, p, vars})
		return nil
	}
	return h, &out
}

func TestJournalHandler(t *testing.T) {
	h, out := captureJournal(slog.LevelInfo)
	logger := slog.New(h).With("component", "store").WithGroup("req")
	logger.Debug("dropped")
	logger.Error("insert failed", "collection", "notes", slog.Group("doc", "id", "abc"))

	require.Len(t, *out, 1)
	got := (*out)[0]
	assert.Equal(t, "insert failed", got.msg)
	assert.Equal(t, journal.PriErr, got.pri)
	assert.Equal(t, "store", got.vars["COMPONENT"])
	assert.Equal(t, "notes", got.vars["REQ_COLLECTION"])
	assert.Equal(t, "abc", got.vars["REQ_DOC_ID"])
	assert.Equal(t, "lifedashd", got.vars["SYSLOG_IDENTIFIER"])
}

func TestJournalPriority(t *testing.T) {
	assert.Equal(t, journal.PriDebug, priority(slog.LevelDebug))
	assert.Equal(t, journal.PriInfo, priority(slog.LevelInfo))
	assert.Equal(t, journal.PriWarning, priority(slog.LevelWarn))
	assert.Equal(t, journal.PriErr, priority(slog.LevelError+4))
}

func TestFieldName(t *testing.T) {
	assert.Equal(t, "TS_UNIX_MS", fieldName("ts-unix.ms"))
	assert.Equal(t, "ERR", fieldName("_err"))
	assert.Equal(t, "", fieldName("__"))
}

func TestJournalHandlerEnabled(t *testing.T) {
	h, _ := captureJournal(slog.LevelWarn)
	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}
