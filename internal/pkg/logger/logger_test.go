package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neofleet/internal/config"
)

func captureLogger(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	lm, err := InitLogger(&config.LogConfig{Level: level, Format: "json", Output: "stdout"})
	require.NoError(t, err)
	buf := &bytes.Buffer{}
	lm.GetLogger().SetOutput(buf)
	t.Cleanup(func() { LoggerInstance = nil })
	return buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &m))
	return m
}

func TestHelpersNoopWithoutLogger(t *testing.T) {
	LoggerInstance = nil
	assert.NotPanics(t, func() {
		LogSystemEvent("c", "e", "m", InfoLevel, nil)
		LogCommandOperation("id", "AGENT_PING", "tok", "translate", "failed", "x", nil)
		LogScheduleEvent(1, "dsn", "collect", "x", WarnLevel, nil)
		LogError(errors.New("x"), "", "", "", "", "", nil)
		Infof("x %d", 1)
	})
}

func TestLogCommandOperationFields(t *testing.T) {
	buf := captureLogger(t, "debug")
	LogCommandOperation("agent-42#c1|0|AGENT_PING", "AGENT_PING", "agent-token-0042", "orphan", "dropped", "no pending entry", map[string]interface{}{"serial": "0"})

	m := lastEntry(t, buf)
	assert.Equal(t, "warning", m["level"])
	assert.Equal(t, string(CommandLog), m["type"])
	assert.Equal(t, "agent-42#c1|0|AGENT_PING", m["correlation_id"])
	assert.Equal(t, "agen****0042", m["agent_token"])
	assert.Equal(t, "0", m["serial"])
}

func TestLogScheduleEventLevel(t *testing.T) {
	buf := captureLogger(t, "info")
	LogScheduleEvent(7, "system:cpu.usage", "collect", "ok", DebugLevel, nil)
	assert.Empty(t, buf.String())

	LogScheduleEvent(7, "system:cpu.usage", "collect_failed", "boom", ErrorLevel, nil)
	m := lastEntry(t, buf)
	assert.Equal(t, "error", m["level"])
	assert.EqualValues(t, 7, m["derived_id"])
}

func TestUpdateConfigLevel(t *testing.T) {
	captureLogger(t, "info")
	require.NoError(t, LoggerInstance.UpdateConfig(&config.LogConfig{Level: "debug", Format: "json", Output: "stdout"}))
	assert.Equal(t, "debug", LoggerInstance.GetLogger().GetLevel().String())
	assert.Error(t, LoggerInstance.UpdateConfig(nil))
}

func TestInitLoggerRejectsBadOutput(t *testing.T) {
	_, err := InitLogger(&config.LogConfig{Level: "info", Format: "json", Output: "kafka"})
	assert.Error(t, err)
	_, err = InitLogger(nil)
	assert.Error(t, err)
	LoggerInstance = nil
}
