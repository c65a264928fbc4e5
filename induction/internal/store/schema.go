package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Open connects to the configured database. For sqlite, dsn is a file path.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, Dialect, error) {
	var (
		db      *sql.DB
		dialect Dialect
		err     error
	)
	switch Dialect(strings.ToLower(driver)) {
	case DialectPostgres, "":
		dialect = DialectPostgres
		db, err = sql.Open("postgres", dsn)
	case DialectSQLite:
		dialect = DialectSQLite
		db, err = sql.Open("sqlite", dsn+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
		if err == nil {
			db.SetMaxOpenConns(1)
		}
	default:
		return nil, "", fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", dialect, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("ping %s: %w", dialect, err)
	}
	return db, dialect, nil
}

type columnTypes struct {
	ts, float, boolean string
}

func typesFor(d Dialect) columnTypes {
	if d == DialectSQLite {
		return columnTypes{ts: "TIMESTAMP", float: "REAL", boolean: "BOOLEAN"}
	}
	return columnTypes{ts: "TIMESTAMPTZ", float: "DOUBLE PRECISION", boolean: "BOOLEAN"}
}

func schema(d Dialect) []string {
	t := typesFor(d)
	r := strings.NewReplacer("{ts}", t.ts, "{float}", t.float, "{bool}", t.boolean)
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trainsets (
			id TEXT PRIMARY KEY,
			number TEXT NOT NULL UNIQUE,
			current_mileage {float} NOT NULL DEFAULT 0,
			stabling_bay TEXT,
			created_at {ts} NOT NULL,
			updated_at {ts} NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS fitness_certificates (
			id TEXT PRIMARY KEY,
			trainset_id TEXT NOT NULL REFERENCES trainsets(id) ON DELETE CASCADE,
			certificate_type TEXT NOT NULL,
			status TEXT NOT NULL,
			certificate_number TEXT NOT NULL UNIQUE,
			issuing_authority TEXT NOT NULL DEFAULT '',
			issue_date {ts} NOT NULL,
			expiry_date {ts} NOT NULL,
			notes TEXT,
			created_at {ts} NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS job_cards (
			id TEXT PRIMARY KEY,
			trainset_id TEXT NOT NULL REFERENCES trainsets(id) ON DELETE CASCADE,
			job_card_number TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			priority TEXT NOT NULL DEFAULT 'Medium',
			created_date {ts} NOT NULL,
			due_date {ts},
			assigned_to TEXT,
			created_at {ts} NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS branding_contracts (
			id TEXT PRIMARY KEY,
			trainset_id TEXT NOT NULL REFERENCES trainsets(id) ON DELETE CASCADE,
			priority_level TEXT NOT NULL,
			brand_name TEXT NOT NULL,
			campaign_name TEXT,
			contract_start {ts} NOT NULL,
			contract_end {ts} NOT NULL,
			revenue_impact {float},
			created_at {ts} NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cleaning_slots (
			id TEXT PRIMARY KEY,
			trainset_id TEXT NOT NULL REFERENCES trainsets(id) ON DELETE CASCADE,
			slot_date {ts} NOT NULL,
			cleaning_type TEXT NOT NULL,
			bay_number TEXT NOT NULL,
			status TEXT NOT NULL,
			assigned_crew TEXT,
			created_at {ts} NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS mileage_records (
			id TEXT PRIMARY KEY,
			trainset_id TEXT NOT NULL REFERENCES trainsets(id) ON DELETE CASCADE,
			record_date {ts} NOT NULL,
			daily_mileage {float} NOT NULL,
			cumulative_mileage {float} NOT NULL,
			route TEXT,
			created_at {ts} NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS stabling_bays (
			bay_number TEXT PRIMARY KEY,
			bay_type TEXT NOT NULL DEFAULT '',
			capacity INTEGER NOT NULL DEFAULT 1,
			is_available {bool} NOT NULL DEFAULT TRUE,
			maintenance_required {bool} NOT NULL DEFAULT FALSE,
			location TEXT,
			updated_at {ts} NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fitness_certificates_trainset ON fitness_certificates (trainset_id)`,
		`CREATE INDEX IF NOT EXISTS idx_job_cards_trainset ON job_cards (trainset_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_branding_contracts_trainset ON branding_contracts (trainset_id)`,
		`CREATE INDEX IF NOT EXISTS idx_cleaning_slots_trainset ON cleaning_slots (trainset_id, slot_date)`,
		`CREATE INDEX IF NOT EXISTS idx_mileage_records_trainset ON mileage_records (trainset_id, record_date)`,
	}
	for i, s := range stmts {
		stmts[i] = r.Replace(s)
	}
	return stmts
}

// Migrate creates the schema if it does not exist. It is safe to run on
// every start.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema(s.dialect) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
