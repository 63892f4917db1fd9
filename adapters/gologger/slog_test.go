package gologger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func newBufferLogger(level slog.Level) (*bytes.Buffer, *slog.Logger) {
	buf := &bytes.Buffer{}
	return buf, slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: level}))
}

func TestSlogLogger_WritesLevelsAndArgs(t *testing.T) {
	buf, base := newBufferLogger(LevelTrace)
	logger := NewSlogLogger(base)

	logger.Trace("trace line")
	logger.Info("bunq update succeeded", "accounts", 2)

	out := buf.String()
	if !strings.Contains(out, "trace line") {
		t.Fatalf("expected trace record, got %q", out)
	}
	if !strings.Contains(out, "msg=\"bunq update succeeded\"") || !strings.Contains(out, "accounts=2") {
		t.Fatalf("expected info record with args, got %q", out)
	}
}

func TestSlogLogger_RespectsHandlerLevel(t *testing.T) {
	buf, base := newBufferLogger(slog.LevelInfo)
	logger := NewSlogLogger(base)

	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug record to be filtered, got %q", buf.String())
	}
}

func TestSlogLogger_WithFieldsAndFatal(t *testing.T) {
	buf, base := newBufferLogger(slog.LevelInfo)
	logger := NewSlogLogger(base)
	exitCode := -1
	logger.exit = func(code int) { exitCode = code }

	scoped := logger.WithFields(map[string]any{"operation": "transfer", "account_id": "101"})
	scoped.Fatal("giving up")

	out := buf.String()
	if !strings.Contains(out, "account_id=101") || !strings.Contains(out, "operation=transfer") {
		t.Fatalf("expected scoped fields, got %q", out)
	}
	if exitCode != 1 {
		t.Fatalf("expected fatal to exit with 1, got %d", exitCode)
	}
}

func TestSlogProvider_TagsLoggerName(t *testing.T) {
	buf, base := newBufferLogger(slog.LevelInfo)
	provider := NewSlogProvider(base)

	Named("bunq.cli", provider, nil).Info("ready")
	if !strings.Contains(buf.String(), "logger=bunq.cli") {
		t.Fatalf("expected logger name attribute, got %q", buf.String())
	}
}
