// Package app wires the induction service from configuration. It is shared
// by the service and the nightly planner binaries.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/metro-depot/fleet/induction/internal/archive"
	"github.com/metro-depot/fleet/induction/internal/attest"
	"github.com/metro-depot/fleet/induction/internal/cache"
	"github.com/metro-depot/fleet/induction/internal/config"
	"github.com/metro-depot/fleet/induction/internal/publish"
	"github.com/metro-depot/fleet/induction/internal/service"
	"github.com/metro-depot/fleet/induction/internal/store"
)

type App struct {
	DB      *sql.DB
	Store   *store.SQLStore
	Service *service.Service

	closers []func() error
}

// OpenStore connects to the configured database and applies the schema.
func OpenStore(ctx context.Context, cfg config.Config) (*sql.DB, *store.SQLStore, error) {
	db, dialect, err := store.Open(ctx, cfg.DBDriver, cfg.DSN())
	if err != nil {
		return nil, nil, err
	}
	if dialect == store.DialectPostgres {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
	}
	st := store.NewSQLStore(db, dialect)
	if err := st.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return db, st, nil
}

// Build opens the store and every optional collaborator that is configured.
// Redis, Kafka, S3 and the attestation key are each skipped when unset.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	rules, err := config.LoadRules(cfg.RulesFile)
	if err != nil {
		return nil, err
	}

	db, st, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &App{DB: db, Store: st}
	a.closers = append(a.closers, db.Close)

	deps := service.Deps{Logger: logger}

	if cfg.RedisAddr != "" {
		rc := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
		if err := rc.Ping(ctx); err != nil {
			logger.Warn("redis unreachable, using in-process cache", "addr", cfg.RedisAddr, "error", err)
			rc.Close()
			deps.Cache = cache.NewMemoryCache(cfg.CacheTTL)
		} else {
			deps.Cache = rc
			a.closers = append(a.closers, rc.Close)
		}
	} else {
		deps.Cache = cache.NewMemoryCache(cfg.CacheTTL)
	}

	if cfg.SignerKeyB64 != "" {
		signer, err := attest.NewSignerFromB64(cfg.SignerKeyB64, cfg.SignerID)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("signer init: %w", err)
		}
		deps.Attester = signer
	}

	if len(cfg.KafkaBrokers) > 0 {
		pub, err := publish.NewKafkaPublisher(publish.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		}, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		deps.Publisher = pub
		a.closers = append(a.closers, pub.Close)
	}

	if cfg.ArchiveBucket != "" {
		arc, err := archive.NewS3Archiver(ctx, cfg.ArchiveBucket, cfg.ArchivePrefix)
		if err != nil {
			a.Close()
			return nil, err
		}
		deps.Archiver = arc
	}

	a.Service = service.New(st, service.Config{
		Location:        cfg.Location,
		LoadConcurrency: cfg.LoadConcurrency,
		Thresholds:      rules.Thresholds,
		WatchRules:      rules.Watch,
	}, deps)

	logger.Info("induction service wired",
		"db", cfg.DBDriver,
		"redis", cfg.RedisAddr != "",
		"kafka", len(cfg.KafkaBrokers) > 0,
		"archive", cfg.ArchiveBucket != "",
		"attest", deps.Attester != nil,
		"watch_rules", len(rules.Watch),
	)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
