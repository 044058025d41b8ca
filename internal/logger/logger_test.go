package logger

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newBufferLogger(t *testing.T, level LogLevel) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return NewSlogLogger(&buf, level, time.UTC), &buf
}

func TestLogLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level     LogLevel
		visible   []string
		invisible []string
	}{
		{LogLevelTrace, []string{"trace-msg", "debug-msg", "info-msg", "warn-msg", "error-msg"}, nil},
		{LogLevelDebug, []string{"debug-msg", "info-msg", "error-msg"}, []string{"trace-msg"}},
		{LogLevelInfo, []string{"info-msg", "warn-msg"}, []string{"trace-msg", "debug-msg"}},
		{LogLevelError, []string{"error-msg"}, []string{"info-msg", "warn-msg"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			t.Parallel()
			log, buf := newBufferLogger(t, tt.level)

			log.Trace("trace-msg")
			log.Debug("debug-msg")
			log.Info("info-msg")
			log.Warn("warn-msg")
			log.Error("error-msg")

			out := buf.String()
			for _, s := range tt.visible {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.invisible {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestFieldsAreRendered(t *testing.T) {
	t.Parallel()
	log, buf := newBufferLogger(t, LogLevelInfo)

	log.Info("rating stored",
		String("item_id", "1A2B3C4D"),
		Int("rating", 8),
		Float64("average", 7.66666),
		Bool("approved", true),
		Duration("elapsed", 1500*time.Millisecond),
		Error(errors.New("boom")))

	out := buf.String()
	assert.Contains(t, out, "item_id=1A2B3C4D")
	assert.Contains(t, out, "rating=8")
	assert.Contains(t, out, "average=7.667")
	assert.Contains(t, out, "approved=true")
	assert.Contains(t, out, "elapsed=1.5s")
	assert.Contains(t, out, "error=boom")
	assert.Contains(t, out, "INFO ")
}

func TestWithAndModuleKeepParentFields(t *testing.T) {
	t.Parallel()
	base, buf := newBufferLogger(t, LogLevelInfo)

	parent := base.Module("datastore").With(String("table", "Strains"))
	child := parent.Module("worker").With(Int("queue", 3))

	child.Info("job done")
	parent.Info("parent line")

	out := buf.String()
	assert.Contains(t, out, "module=datastore.worker")
	assert.Contains(t, out, "table=Strains")
	assert.Contains(t, out, "queue=3")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.NotContains(t, string(lines[1]), "queue=3", "child fields must not leak into the parent")
}

func TestWithContextAddsTraceID(t *testing.T) {
	t.Parallel()
	log, buf := newBufferLogger(t, LogLevelInfo)

	ctx := WithTraceID(context.Background(), "trace-123")
	log.WithContext(ctx).Info("with trace")
	log.WithContext(context.Background()).Info("without trace")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), "trace_id=trace-123")
	assert.NotContains(t, string(lines[1]), "trace_id")
}

func TestCentralLoggerFileOutputs(t *testing.T) {
	dir := t.TempDir()
	mainPath := filepath.Join(dir, "main.log")
	accessPath := filepath.Join(dir, "sub", "access.log")

	cl, err := NewCentralLogger(&LoggingConfig{
		Timezone:     "UTC",
		DefaultLevel: "debug",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: mainPath, Level: "debug"},
		ModuleOutputs: map[string]ModuleOutput{
			"access": {Enabled: true, FilePath: accessPath, Level: "info"},
		},
	})
	require.NoError(t, err)

	cl.Module("moderation").Debug("submission received", String("user", "42"))
	cl.Module("access").Info("GET /health", Int("status", 200))
	cl.Module("access").Debug("filtered by module level")
	require.NoError(t, cl.Close())

	mainEntries := readJSONLines(t, mainPath)
	require.Len(t, mainEntries, 1)
	assert.Equal(t, "submission received", mainEntries[0]["msg"])
	assert.Equal(t, "moderation", mainEntries[0]["module"])
	assert.Equal(t, "42", mainEntries[0]["user"])

	accessEntries := readJSONLines(t, accessPath)
	require.Len(t, accessEntries, 1)
	assert.Equal(t, "GET /health", accessEntries[0]["msg"])
	assert.InDelta(t, 200, accessEntries[0]["status"], 0)
}

func TestCentralLoggerRejectsBadTimezone(t *testing.T) {
	t.Parallel()
	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)

	_, err = NewCentralLogger(nil)
	require.Error(t, err)
}

func TestModuleLevelOverride(t *testing.T) {
	t.Parallel()
	cl, err := NewCentralLogger(&LoggingConfig{
		Console:      &ConsoleOutput{Enabled: true, Level: "trace"},
		DefaultLevel: "info",
		ModuleLevels: map[string]string{"sheetdb": "trace"},
	})
	require.NoError(t, err)
	defer func() { _ = cl.Close() }()

	sheet, ok := cl.Module("sheetdb").(*moduleLogger)
	require.True(t, ok)
	assert.Equal(t, traceLevelValue, sheet.level)

	other, ok := cl.Module("cache").(*moduleLogger)
	require.True(t, ok)
	assert.Equal(t, parseLogLevel("info"), other.level)
}

func TestValidLevel(t *testing.T) {
	t.Parallel()
	for _, lvl := range []string{"trace", "DEBUG", "info", "Warn", "error"} {
		assert.NoError(t, ValidLevel(lvl), lvl)
	}
	assert.Error(t, ValidLevel("verbose"))
}

func TestGlobalFallback(t *testing.T) {
	t.Parallel()
	g := Global()
	require.NotNil(t, g)
	assert.NotNil(t, g.Module("test"))
}

func TestGormLogger(t *testing.T) {
	t.Parallel()
	log, buf := newBufferLogger(t, LogLevelTrace)
	gl := NewGormLogger(log, 10*time.Millisecond)
	ctx := context.Background()

	gl.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)
	gl.Trace(ctx, time.Now().Add(-time.Second), func() (string, int64) { return "SELECT 2", 1 }, nil)
	gl.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 3", 0 }, errors.New("no such table"))
	gl.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 4", 0 }, gorm.ErrRecordNotFound)

	long := "INSERT INTO sheet_rows VALUES ('" + strings.Repeat("x", 2*maxLoggedSQL) + "')"
	gl.Trace(ctx, time.Now(), func() (string, int64) { return long, 1 }, nil)

	out := buf.String()
	assert.Contains(t, out, "sql statement")
	assert.Contains(t, out, "slow sql statement")
	assert.Contains(t, out, "sql statement failed")
	assert.Contains(t, out, "no such table")
	assert.NotContains(t, out, "record not found")
	assert.NotContains(t, out, strings.Repeat("x", maxLoggedSQL), "long statements are cut")

	buf.Reset()
	quiet := gl.LogMode(gormlogger.Silent)
	quiet.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 5", 1 }, errors.New("boom"))
	quiet.Error(ctx, "failed %d", 1)
	assert.Empty(t, buf.String())

	gl.LogMode(gormlogger.Info).Warn(ctx, "deprecated %s", "option")
	assert.Contains(t, buf.String(), "deprecated option")
}

func TestFanoutHandlerFiltersPerChild(t *testing.T) {
	t.Parallel()
	var debugOut, warnOut bytes.Buffer
	h := newFanoutHandler(
		slog.NewJSONHandler(&debugOut, &slog.HandlerOptions{Level: slog.LevelDebug}),
		nil,
		slog.NewJSONHandler(&warnOut, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)
	log := slog.New(h).With("module", "datastore")

	log.Debug("cache invalidated")
	log.Warn("store call quota exhausted")

	assert.Contains(t, debugOut.String(), "cache invalidated")
	assert.Contains(t, debugOut.String(), "store call quota exhausted")
	assert.NotContains(t, warnOut.String(), "cache invalidated")
	assert.Contains(t, warnOut.String(), "store call quota exhausted")
	assert.Contains(t, warnOut.String(), `"module":"datastore"`)

	single := slog.NewTextHandler(&debugOut, nil)
	assert.Same(t, single, newFanoutHandler(nil, single))
}

func readJSONLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path) //nolint:gosec // t.TempDir path
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var entries []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	require.NoError(t, scanner.Err())
	return entries
}
