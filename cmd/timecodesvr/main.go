package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lanternops/timecodesvr/internal/config"
	"github.com/lanternops/timecodesvr/internal/logging"
	"github.com/lanternops/timecodesvr/internal/server"
)

var (
	version = "0.1.0"
	cfgFile string
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "timecodesvr",
	Short: "SMPTE timecode synchronization server",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the timecode server",
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("timecodesvr v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/timecodesvr/timecodesvr.yaml)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initLogging sets up structured logging from config. Call after config.Load().
func initLogging(cfg *config.Config) {
	logging.Init(cfg.LogFormat, cfg.LogLevel, os.Stdout)
	log = logging.L("main")
}

func runServer() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		if cfg == nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(2)
		}
		// cfg is non-nil: Load still returns a usable config (with
		// dangerous values already clamped) alongside validation issues,
		// per config.Validate's clamp-and-report contract. Log and run
		// with the clamped values rather than refuse to start.
		fmt.Fprintf(os.Stderr, "Config validation issue(s), continuing with clamped values: %v\n", err)
	}

	initLogging(cfg)
	log.Info("starting timecodesvr", "version", version, "host", cfg.Host, "port", cfg.Port)

	srv := server.New(server.Config{
		Host:                 cfg.Host,
		Port:                 cfg.Port,
		MaxMessageBytes:      cfg.MaxMessageBytes,
		ClientSendQueueSize:  cfg.ClientSendQueueSize,
		ShutdownTimeout:      time.Duration(cfg.ShutdownTimeoutSeconds) * time.Second,
		StatusReporting:      cfg.StatusReporting,
		StatusReportInterval: time.Duration(cfg.StatusReportIntervalSeconds) * time.Second,
		StatusAddr:           cfg.StatusAddr,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	if err := srv.Run(ctx); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("timecodesvr stopped")
}
