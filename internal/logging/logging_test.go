package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestPreInitLoggerUsesConfiguredHandler(t *testing.T) {
	logger := L("server")

	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger.Info("listening", "addr", "127.0.0.1:7890")

	out := buf.String()
	if strings.Contains(out, `msg="INFO listening`) {
		t.Fatalf("unexpected nested severity prefix in message: %s", out)
	}
	if !strings.Contains(out, "msg=listening") {
		t.Fatalf("expected plain listening message, got: %s", out)
	}
	if !strings.Contains(out, "component=server") {
		t.Fatalf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "addr=127.0.0.1:7890") {
		t.Fatalf("expected addr field, got: %s", out)
	}
}

func TestPreInitLoggerRespectsConfiguredLevel(t *testing.T) {
	logger := L("server")

	var buf bytes.Buffer
	Init("text", "warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info log should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn log should be emitted: %s", out)
	}
}
