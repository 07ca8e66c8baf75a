package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitProductionWritesJSON(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	flush := Init(Options{Output: &buf})
	defer flush()

	slog.Debug("hidden")
	slog.Info("task created", "task_id", "abc")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "task created", record["msg"])
	require.Equal(t, "abc", record["task_id"])
	require.Equal(t, "thrive", record["service"])
}

func TestInitDevelopmentLogsDebug(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	Init(Options{Development: true, Output: &buf})()

	slog.Debug("visible")
	require.Contains(t, buf.String(), "msg=visible")
}
