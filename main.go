package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/soocke/pixel-scan-go/app"
	"github.com/soocke/pixel-scan-go/config"
)

func main() {
	cfgPath := flag.String("config", "", "config file (.json, .yaml or .yml)")
	deviceSpec := flag.String("device", "", "camera backend: screen[:X,Y,W,H], dir:PATH, v4l2:/dev/videoN")
	owner := flag.String("owner", "", "owner tag for the camera hold")
	debugFlag := flag.Bool("debug", false, "debug logging and runtime loggers")
	writeDefaults := flag.Bool("write-config", false, "write the effective config to -config and exit")
	flag.Parse()

	// Base config from defaults, then the file, then flags.
	cfg := config.DefaultConfig()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "config:", err)
			os.Exit(2)
		}
		cfg = loaded
	}
	if *deviceSpec != "" {
		cfg.Device = *deviceSpec
	}
	if *owner != "" {
		cfg.OwnerTag = *owner
	}
	if *debugFlag {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	if *writeDefaults {
		if *cfgPath == "" {
			fmt.Fprintln(os.Stderr, "-write-config needs -config")
			os.Exit(2)
		}
		if err := cfg.Save(*cfgPath); err != nil {
			fmt.Fprintln(os.Stderr, "config:", err)
			os.Exit(1)
		}
		return
	}

	// Logs go to stderr; stdout carries the report.
	logger := NewLogger(os.Stderr, ParseLevel(cfg.LogLevel, cfg.Debug))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := app.BuildContainer(cfg, logger, nil)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	report, err := app.New(c).Run(ctx)
	if err != nil {
		logger.Error("scan failed", "error", err)
		os.Exit(1)
	}
	if err := app.WriteReport(os.Stdout, report); err != nil {
		logger.Error("write report", "error", err)
		os.Exit(1)
	}
}
