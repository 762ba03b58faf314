package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations are applied in order; PRAGMA user_version records how many ran.
var migrations = []string{
	// 1: base tables
	`
	CREATE TABLE IF NOT EXISTS climatology_daily (
		id           TEXT PRIMARY KEY,
		lat          REAL NOT NULL,
		lon          REAL NOT NULL,
		doy          INTEGER NOT NULL,
		tmean        REAL,
		tmin         REAL,
		tmax         REAL,
		period_start TEXT,
		period_end   TEXT,
		source       TEXT NOT NULL DEFAULT 'meteostat',
		created_at   TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
	);
	CREATE INDEX IF NOT EXISTS idx_climo_latlon_doy ON climatology_daily(lat, lon, doy);

	CREATE TABLE IF NOT EXISTS forecast_cache (
		id          TEXT PRIMARY KEY,
		lat         REAL NOT NULL,
		lon         REAL NOT NULL,
		run_time    TEXT NOT NULL,
		target_date TEXT NOT NULL,
		tmean       REAL,
		payload     TEXT,
		expires_at  INTEGER NOT NULL,
		created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
		CONSTRAINT uq_fc_lat_lon_run_target UNIQUE (lat, lon, run_time, target_date)
	);
	CREATE INDEX IF NOT EXISTS idx_fc_latlon_target ON forecast_cache(lat, lon, target_date);
	CREATE INDEX IF NOT EXISTS idx_fc_expires ON forecast_cache(expires_at);

	CREATE TABLE IF NOT EXISTS residuals (
		id         TEXT PRIMARY KEY,
		month      INTEGER NOT NULL,
		lead_days  INTEGER NOT NULL,
		variable   TEXT NOT NULL DEFAULT 'tmean',
		resid      REAL NOT NULL,
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
	);
	CREATE INDEX IF NOT EXISTS idx_residuals_key ON residuals(month, lead_days, variable);
	`,
	// 2: predictions and unique climatology keys
	`
	CREATE TABLE IF NOT EXISTS predictions (
		id          TEXT PRIMARY KEY,
		lat         REAL NOT NULL,
		lon         REAL NOT NULL,
		target_date TEXT NOT NULL,
		t_p50       REAL,
		t_p10       REAL,
		t_p90       REAL,
		method      TEXT,
		components  TEXT,
		created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
		CONSTRAINT uq_predictions_lat_lon_date UNIQUE (lat, lon, target_date)
	);
	CREATE UNIQUE INDEX IF NOT EXISTS uq_climo_latlon_doy ON climatology_daily(lat, lon, doy);
	`,
}

// SchemaVersion is the user_version after all migrations ran.
var SchemaVersion = len(migrations)

// Migrate applies pending migrations, each in its own transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	current, err := Version(ctx, db)
	if err != nil {
		return err
	}
	if current > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported %d", current, SchemaVersion)
	}

	for v := current; v < SchemaVersion; v++ {
		if err := applyMigration(ctx, db, v+1, migrations[v]); err != nil {
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, version int, stmt string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return err
	}
	return tx.Commit()
}

// Version reads PRAGMA user_version.
func Version(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}
