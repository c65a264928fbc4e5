// Command induction-planner runs one planning pass, typically from the
// nightly scheduler, and prints the fleet status as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/metro-depot/fleet/induction/internal/app"
	"github.com/metro-depot/fleet/induction/internal/config"
)

func main() {
	date := flag.String("date", "", "planning date YYYY-MM-DD (default: today in INDUCTION_TIMEZONE)")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall deadline for the run")
	indent := flag.Bool("indent", true, "pretty-print the JSON output")
	flag.Parse()

	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load", "error", err)
		os.Exit(1)
	}
	// stdout carries the plan, logs go to stderr
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := run(ctx, cfg, logger, *date, *indent); err != nil {
		logger.Error("planning run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, date string, indent bool) error {
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	fs, err := a.Service.GeneratePlan(ctx, date)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(fs); err != nil {
		return err
	}
	if fs.SourceError != "" {
		logger.Warn("fleet could not be listed, plan is empty", "error", fs.SourceError)
	}
	return nil
}
