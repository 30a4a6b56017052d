// Package main is the entry point for shaderwall.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/Faultbox/shaderwall/internal/app"
	"github.com/Faultbox/shaderwall/internal/catalog"
	"github.com/Faultbox/shaderwall/internal/config"
	"github.com/Faultbox/shaderwall/internal/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Parse CLI flags first
	config.ParseFlags()

	if config.ListRequested() {
		listShaders()
		return 0
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		return 1
	}

	if path := config.SaveConfigPath(); path != "" {
		return saveConfig(cfg, path)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	logger.Info("=== shaderwall ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	open, err := app.Backend(cfg.Window.Backend)
	if err != nil {
		logger.Error("invalid backend", zap.Error(err))
		return 1
	}

	a, err := app.New(cfg, open)
	if err != nil {
		logger.Error("failed to start", zap.Error(err))
		return 1
	}

	if config.CheckRequested() {
		checkErr := a.Check(config.SnapshotDir())
		closeErr := a.Close()
		if checkErr != nil {
			logger.Error("check failed", zap.Error(checkErr))
			return 1
		}
		if closeErr != nil {
			logger.Warn("teardown reported errors", zap.Error(closeErr))
		}
		logger.Info("check passed", zap.Int("surfaces", len(cfg.Surfaces)))
		return 0
	}

	// Ctrl+C stops the loop at the next frame
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := a.Run(ctx)
	if err := a.Close(); err != nil {
		logger.Warn("teardown reported errors", zap.Error(err))
	}
	if runErr != nil {
		logger.Error("render loop error", zap.Error(runErr))
		return 1
	}

	logger.Info("shaderwall closed normally")
	return 0
}

func listShaders() {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tDESCRIPTION")
	for _, e := range catalog.Builtin() {
		fmt.Fprintf(tw, "%s\t%dx%d\t%s\n", e.Name, e.Width, e.Height, e.Description)
	}
	tw.Flush()
}

func saveConfig(cfg *config.Config, path string) int {
	if path == "-" {
		if err := cfg.Encode(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
			return 1
		}
		return 0
	}
	if err := cfg.SaveTo(path); err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "Config written to %s\n", path)
	return 0
}
