package config

import (
	"fmt"
	"strings"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the config for invalid values and returns all errors
// found. Dangerous values that would otherwise cause panics or
// pathological behavior (message and queue sizes, timeouts, intervals) are
// clamped to safe minimums in place; the clamp itself is still reported so
// the caller can log it. An out-of-range port and an unknown log level or
// format are reported only, not changed.
func (c *Config) Validate() []error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range 1..65535", c.Port))
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	if c.MaxMessageBytes < 1024 {
		errs = append(errs, fmt.Errorf("max_message_bytes %d is below minimum 1024, clamping", c.MaxMessageBytes))
		c.MaxMessageBytes = 1024
	}

	if c.ClientSendQueueSize < 1 {
		errs = append(errs, fmt.Errorf("client_send_queue_size %d is below minimum 1, clamping", c.ClientSendQueueSize))
		c.ClientSendQueueSize = 1
	}

	if c.ShutdownTimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("shutdown_timeout_seconds %d is below minimum 1, clamping", c.ShutdownTimeoutSeconds))
		c.ShutdownTimeoutSeconds = 1
	}

	if c.StatusReportIntervalSeconds < 1 {
		errs = append(errs, fmt.Errorf("status_report_interval_seconds %d is below minimum 1, clamping", c.StatusReportIntervalSeconds))
		c.StatusReportIntervalSeconds = 1
	}

	return errs
}
