package config

import (
	"strings"
	"testing"
)

func TestValidatePortOutOfRangeIsError(t *testing.T) {
	cfg := Default()
	cfg.Port = 70000
	errs := cfg.Validate()
	found := false
	for _, err := range errs {
		if strings.Contains(err.Error(), "out of range") {
			found = true
		}
	}
	if !found {
		t.Fatal("expected out-of-range port error")
	}
}

func TestValidateMaxMessageBytesClamping(t *testing.T) {
	cfg := Default()
	cfg.MaxMessageBytes = 10
	errs := cfg.Validate()
	if len(errs) == 0 {
		t.Fatal("expected clamping error")
	}
	if cfg.MaxMessageBytes != 1024 {
		t.Fatalf("MaxMessageBytes = %d, want 1024 (clamped)", cfg.MaxMessageBytes)
	}
}

func TestValidateClientSendQueueSizeClamping(t *testing.T) {
	cfg := Default()
	cfg.ClientSendQueueSize = 0
	cfg.Validate()
	if cfg.ClientSendQueueSize != 1 {
		t.Fatalf("ClientSendQueueSize = %d, want 1", cfg.ClientSendQueueSize)
	}
}

func TestValidateShutdownTimeoutClamping(t *testing.T) {
	cfg := Default()
	cfg.ShutdownTimeoutSeconds = -5
	cfg.Validate()
	if cfg.ShutdownTimeoutSeconds != 1 {
		t.Fatalf("ShutdownTimeoutSeconds = %d, want 1", cfg.ShutdownTimeoutSeconds)
	}
}

func TestValidateUnknownLogLevelIsError(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "verbose"
	errs := cfg.Validate()
	if len(errs) == 0 {
		t.Fatal("expected error for unknown log level")
	}
}

func TestValidateInvalidLogFormatIsError(t *testing.T) {
	cfg := Default()
	cfg.LogFormat = "xml"
	errs := cfg.Validate()
	if len(errs) == 0 {
		t.Fatal("expected error for invalid log format")
	}
}

func TestValidConfigHasNoErrors(t *testing.T) {
	cfg := Default()
	errs := cfg.Validate()
	if len(errs) != 0 {
		t.Fatalf("default config has errors: %v", errs)
	}
}
