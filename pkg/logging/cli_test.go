package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(level slog.Level) (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(NewCLIHandler(&buf, level)), &buf
}

func TestCLIHandler_Colors(t *testing.T) {
	tests := []struct {
		name  string
		log   func(*slog.Logger)
		color string
	}{
		{"info is green", func(l *slog.Logger) { l.Info("metrics computed") }, colorGreen},
		{"warn is yellow", func(l *slog.Logger) { l.Warn("no prediction column") }, colorYellow},
		{"error is red", func(l *slog.Logger) { l.Error("audit failed") }, colorRed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newTestLogger(slog.LevelInfo)
			tt.log(logger)

			out := buf.String()
			assert.True(t, strings.HasPrefix(out, tt.color), out)
			assert.True(t, strings.HasSuffix(out, colorReset+"\n"), out)
		})
	}
}

func TestCLIHandler_Level(t *testing.T) {
	logger, buf := newTestLogger(slog.LevelWarn)

	logger.Debug("groups partitioned")
	logger.Info("dataset loaded")
	assert.Zero(t, buf.Len())

	logger.Warn("no prediction column")
	assert.Contains(t, buf.String(), "no prediction column")
}

func TestCLIHandler_HandlerAttrsBeforeRecordAttrs(t *testing.T) {
	logger, buf := newTestLogger(slog.LevelInfo)

	logger.With("source", "compas.csv").Info("dataset loaded", "records", 6172, "missing", 42)

	out := buf.String()
	assert.Contains(t, out, "dataset loaded: source=compas.csv records=6172 missing=42")
}

func TestCLIHandler_WithAttrsDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	base := NewCLIHandler(&buf, slog.LevelInfo)
	assert.Same(t, base, base.WithAttrs(nil))

	parent := slog.New(base).With("audit", "a1")
	left := parent.With("group", "privileged")
	right := parent.With("group", "unprivileged")

	left.Info("summarized")
	right.Info("summarized")
	parent.Info("done")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "audit=a1 group=privileged")
	assert.NotContains(t, lines[0], "unprivileged")
	assert.Contains(t, lines[1], "audit=a1 group=unprivileged")
	assert.NotContains(t, lines[2], "group=")
}

func TestCLIHandler_WithGroup(t *testing.T) {
	logger, buf := newTestLogger(slog.LevelInfo)

	logger.WithGroup("serve").Info("server started", "address", "127.0.0.1:8080")
	assert.Contains(t, buf.String(), "[serve] server started: address=127.0.0.1:8080")

	buf.Reset()
	logger.WithGroup("").Info("no prefix")
	assert.True(t, strings.HasPrefix(buf.String(), colorGreen+"no prefix"), buf.String())
}

func TestCLIHandler_ConcurrentDerivedHandlers(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(NewCLIHandler(&buf, slog.LevelInfo))

	const workers, lines = 8, 50
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := base.With("worker", i)
			for range lines {
				l.Info("counted")
			}
		}()
	}
	wg.Wait()

	out := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, out, workers*lines)
	for _, line := range out {
		assert.True(t, strings.HasPrefix(line, colorGreen+"counted: worker="), line)
	}
}

func TestSetDefaultCLILogger(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	SetDefaultCLILogger("warn")
	h, ok := slog.Default().Handler().(*CLIHandler)
	require.True(t, ok)
	assert.Equal(t, slog.LevelWarn, h.level)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" DEBUG ", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLogLevel(tt.input))
		})
	}
}
