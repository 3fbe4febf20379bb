package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"omnigate/core/gateway"
	"omnigate/core/registry"
	"omnigate/internal/config"
	"omnigate/providers/observability"
)

const serveUsage = `Usage:
  omnigate serve [--config <path>] [--addr <addr>] [--verbose]

Flags:
  --config string   Path to YAML configuration file (optional; env-only without it)
  --addr   string   Override listen address from configuration
  --verbose         Enable debug logging`

func serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, serveUsage)
	}

	var cfgPath, addr string
	var verbose bool
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")
	fs.StringVar(&addr, "addr", "", "override listen address")
	fs.BoolVar(&verbose, "verbose", false, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse serve flags: %w", err)
	}

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	var cfg config.Config
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	reg, err := registry.New(cfg)
	if err != nil {
		return fmt.Errorf("build provider registry: %w", err)
	}
	for _, provider := range reg.All() {
		slog.Info("provider registered", "vendor", provider.Vendor())
	}

	var metrics observability.Metrics = observability.NewInMemory()
	if verbose {
		// Echo every recording to the debug log alongside the sink.
		metrics = observability.NewSlog(slog.Default(), metrics)
	}
	srv, err := gateway.New(cfg, reg, metrics)
	if err != nil {
		return fmt.Errorf("build gateway: %w", err)
	}

	return srv.Run(ctx)
}
