package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the options a launcher hands to the core server. The core
// never parses flags or environment variables itself (that is the
// launcher's job); Load exists so cmd/timecodesvr, acting as its own
// launcher, can gather them the way the rest of this stack gathers config.
type Config struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	StatusReporting bool   `mapstructure:"status_reporting"`

	// StatusReportIntervalSeconds is how often the status reporter logs
	// (and, when enabled, publishes to /metrics and /status) session and
	// client counts.
	StatusReportIntervalSeconds int    `mapstructure:"status_report_interval_seconds"`
	StatusAddr                  string `mapstructure:"status_addr"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	MaxMessageBytes        int `mapstructure:"max_message_bytes"`
	ClientSendQueueSize    int `mapstructure:"client_send_queue_size"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

func Default() *Config {
	return &Config{
		Host:                        "0.0.0.0",
		Port:                        7890,
		StatusReporting:             false,
		StatusReportIntervalSeconds: 30,
		StatusAddr:                  "127.0.0.1:7891",
		LogLevel:                    "info",
		LogFormat:                   "text",
		MaxMessageBytes:             64 * 1024,
		ClientSendQueueSize:         256,
		ShutdownTimeoutSeconds:      5,
	}
}

// Load reads configuration from cfgFile if non-empty, otherwise from a
// "timecodesvr" YAML file on the default search path (/etc/timecodesvr,
// then the working directory), and then from TCSVR_-prefixed environment
// variables, which take precedence over the file. Keys set by neither keep
// their Default values. Validation errors are returned; callers decide
// whether a non-nil error is fatal (see Config.Validate doc).
func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("timecodesvr")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/timecodesvr")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TCSVR")
	v.AutomaticEnv()
	// Unmarshal only sees keys viper knows about, so bind each one
	// explicitly; otherwise env vars for keys absent from the file are lost.
	for _, key := range []string{"host", "port", "status_reporting", "status_report_interval_seconds", "status_addr",
		"log_level", "log_format", "max_message_bytes", "client_send_queue_size", "shutdown_timeout_seconds"} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return cfg, fmt.Errorf("config: %d validation issue(s), first: %w", len(errs), errs[0])
	}

	return cfg, nil
}
