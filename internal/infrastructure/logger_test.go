package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalpanel/internal/config"
)

func decodeLines(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), "log line is JSON: %s", line)
		out = append(out, entry)
	}
	return out
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name        string
		output      string
		wantConsole bool
		wantFile    bool
	}{
		{"console", "console", true, false},
		{"file", "file", false, true},
		{"both", "both", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var console bytes.Buffer
			path := filepath.Join(t.TempDir(), "logs", "panel.log")
			logger, file, err := NewLogger(config.LoggingConfig{Level: "info", Output: tt.output, FilePath: path}, &console)
			require.NoError(t, err)

			logger.Info("stage completed", "stage", "aggregate")
			logger.Debug("hidden below info")
			if file != nil {
				require.NoError(t, file.Close())
			}

			if tt.wantConsole {
				entries := decodeLines(t, console.Bytes())
				require.Len(t, entries, 1)
				assert.Equal(t, "stage completed", entries[0]["msg"])
				assert.Equal(t, "aggregate", entries[0]["stage"])
				assert.Equal(t, "INFO", entries[0]["level"])
			} else {
				assert.Zero(t, console.Len())
			}

			content, err := os.ReadFile(path)
			if tt.wantFile {
				require.NoError(t, err)
				assert.Len(t, decodeLines(t, content), 1)
			} else {
				assert.True(t, os.IsNotExist(err))
			}
		})
	}
}

func TestTraceHandler_InjectsContextIDs(t *testing.T) {
	var console bytes.Buffer
	logger, _, err := NewLogger(config.LoggingConfig{Level: "debug", Output: "console"}, &console)
	require.NoError(t, err)

	ctx := WithRunID(WithTraceID(context.Background(), "trace-123"), "run-456")
	logger.With("component", "runner").DebugContext(ctx, "shard started")
	logger.InfoContext(context.Background(), "no ids")

	entries := decodeLines(t, console.Bytes())
	require.Len(t, entries, 2)
	assert.Equal(t, "trace-123", entries[0]["trace_id"])
	assert.Equal(t, "run-456", entries[0]["run_id"])
	assert.Equal(t, "runner", entries[0]["component"])
	assert.NotContains(t, entries[1], "trace_id")
	assert.NotContains(t, entries[1], "run_id")
}

func TestInitializeLogger(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	path := filepath.Join(t.TempDir(), "panel.log")
	logger, err := InitializeLogger(config.LoggingConfig{Level: "warn", Output: "file", FilePath: path})
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Same(t, logger, GetLogger())

	again, err := InitializeLogger(config.LoggingConfig{Level: "debug", Output: "console"})
	require.NoError(t, err)
	assert.Same(t, logger, again, "initialisation happens once")

	logger.Info("filtered")
	logger.Warn("kept")
	require.NoError(t, CloseLogFile())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	entries := decodeLines(t, content)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0]["msg"])
}

func TestContextHelpers(t *testing.T) {
	ctx := EnsureTraceID(context.Background())
	id := GetTraceID(ctx)
	assert.Len(t, id, 36)
	assert.Equal(t, id, GetTraceID(EnsureTraceID(ctx)), "existing trace id is kept")
	assert.NotEqual(t, id, GenerateTraceID())

	assert.Empty(t, GetRunID(context.Background()))
	assert.Equal(t, "r1", GetRunID(WithRunID(ctx, "r1")))

}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}
