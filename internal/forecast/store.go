package forecast

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entry is one cached anchor value.
type Entry struct {
	Lat        float64
	Lon        float64
	RunDate    string // date the forecast was fetched, YYYY-MM-DD
	TargetDate string // date the value is for, YYYY-MM-DD
	TMean      *float64
	Series     Series
	ExpiresAt  time.Time
}

// Store is the SQLite forecast_cache table.
type Store struct {
	db *sql.DB
}

// NewStore wraps db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns the freshest unexpired entry for a point and target date.
func (s *Store) Get(ctx context.Context, lat, lon float64, targetDate string, now time.Time) (Entry, bool, error) {
	var (
		e     = Entry{Lat: lat, Lon: lon, TargetDate: targetDate}
		tmean sql.NullFloat64
		exp   int64
	)
	err := s.db.QueryRowContext(ctx, `
	SELECT run_time, tmean, expires_at FROM forecast_cache
	WHERE lat = ? AND lon = ? AND target_date = ? AND expires_at > ?
	ORDER BY run_time DESC LIMIT 1`,
		lat, lon, targetDate, now.Unix(),
	).Scan(&e.RunDate, &tmean, &exp)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("query forecast cache: %w", err)
	}
	if tmean.Valid {
		v := tmean.Float64
		e.TMean = &v
	}
	e.ExpiresAt = time.Unix(exp, 0)
	return e, true, nil
}

// Put upserts an entry keyed by point, run date and target date.
func (s *Store) Put(ctx context.Context, e Entry) error {
	payload, err := json.Marshal(struct {
		Time  []string   `json:"time"`
		TMean []*float64 `json:"temperature_2m_mean"`
	}{e.Series.Dates, e.Series.TMean})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	var tmean any
	if e.TMean != nil {
		tmean = *e.TMean
	}
	_, err = s.db.ExecContext(ctx, `
	INSERT INTO forecast_cache (id, lat, lon, run_time, target_date, tmean, payload, expires_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(lat, lon, run_time, target_date) DO UPDATE SET
		tmean = excluded.tmean,
		payload = excluded.payload,
		expires_at = excluded.expires_at`,
		uuid.NewString(), e.Lat, e.Lon, e.RunDate, e.TargetDate, tmean, string(payload), e.ExpiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert forecast cache: %w", err)
	}
	return nil
}

// DeleteExpired removes rows whose expiry has passed.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM forecast_cache WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("prune forecast cache: %w", err)
	}
	return res.RowsAffected()
}
