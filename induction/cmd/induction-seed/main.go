// Command induction-seed migrates the schema and loads a YAML fleet fixture.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/metro-depot/fleet/induction/internal/app"
	"github.com/metro-depot/fleet/induction/internal/config"
	"github.com/metro-depot/fleet/induction/internal/fixtures"
)

func main() {
	file := flag.String("file", "induction/testdata/fleet.yaml", "fixture to load")
	replace := flag.Bool("replace", false, "clear all records before loading")
	rebase := flag.String("rebase", "", "move the fixture anchor to this date (YYYY-MM-DD, or 'today')")
	flag.Parse()

	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load", "error", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger(os.Stderr)

	fleet, err := fixtures.ReadFile(*file)
	if err != nil {
		logger.Error("fixture", "error", err)
		os.Exit(1)
	}
	if *rebase != "" {
		day := time.Now().In(cfg.Location)
		if *rebase != "today" {
			day, err = time.ParseInLocation("2006-01-02", *rebase, cfg.Location)
			if err != nil {
				logger.Error("invalid -rebase date", "value", *rebase)
				os.Exit(1)
			}
		}
		fleet = fleet.Rebase(day)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, st, err := app.OpenStore(ctx, cfg)
	if err != nil {
		logger.Error("open store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	counts, err := fixtures.Load(ctx, st, fleet, fixtures.LoadOptions{Replace: *replace})
	if err != nil {
		logger.Error("load fixture", "error", err, "loaded", counts)
		os.Exit(1)
	}
	logger.Info("fixture loaded",
		"file", *file,
		"bays", counts.StablingBays,
		"trainsets", counts.Trainsets,
		"certificates", counts.Certificates,
		"job_cards", counts.JobCards,
		"branding", counts.Branding,
		"cleaning_slots", counts.CleaningSlots,
		"mileage_records", counts.MileageRecords,
	)
}
