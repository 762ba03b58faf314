package climatology

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Row is one stored daily normal.
type Row struct {
	Lat   float64
	Lon   float64
	DOY   int
	TMean float64
	TMin  *float64
	TMax  *float64
}

// Store reads and writes climatology_daily.
type Store struct {
	db       *sql.DB
	gridStep float64
	logger   zerolog.Logger
}

// NewStore creates a Store snapping coordinates to gridStep degrees.
func NewStore(db *sql.DB, gridStep float64, logger zerolog.Logger) *Store {
	if gridStep <= 0 {
		gridStep = 0.25
	}
	return &Store{db: db, gridStep: gridStep, logger: logger}
}

// RoundToGrid snaps a coordinate to the nearest multiple of step.
// The result is rounded to 6 decimals so SQL equality stays exact.
func RoundToGrid(v, step float64) float64 {
	snapped := math.Round(v/step) * step
	return math.Round(snapped*1e6) / 1e6
}

// Normal returns the stored mean for the grid cell when present, keeping the
// model spread. Lookup failures fall back to the model.
func (s *Store) Normal(ctx context.Context, lat, lon float64, date time.Time) (Normal, error) {
	doy := date.YearDay()
	modelMean, std := Seasonal(lat, doy)

	var tmean sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT tmean FROM climatology_daily WHERE lat = ? AND lon = ? AND doy = ?`,
		RoundToGrid(lat, s.gridStep), RoundToGrid(lon, s.gridStep), doy,
	).Scan(&tmean)

	switch {
	case err == nil && tmean.Valid:
		return Normal{Mean: tmean.Float64, Std: std, Source: "stored"}, nil
	case err == nil, errors.Is(err, sql.ErrNoRows):
	case ctx.Err() != nil:
		return Normal{}, ctx.Err()
	default:
		s.logger.Warn().Err(err).
			Str("event", "climatology.lookup_failed").
			Msg("climatology lookup failed, using seasonal model")
	}
	return Normal{Mean: modelMean, Std: std, Source: "model"}, nil
}

// Upsert writes rows in one transaction, replacing existing cells.
func (s *Store) Upsert(ctx context.Context, rows []Row) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO climatology_daily (id, lat, lon, doy, tmean, tmin, tmax, source)
	VALUES (?, ?, ?, ?, ?, ?, ?, 'import')
	ON CONFLICT(lat, lon, doy) DO UPDATE SET
		tmean = excluded.tmean,
		tmin = excluded.tmin,
		tmax = excluded.tmax,
		source = excluded.source
	`)
	if err != nil {
		return 0, err
	}
	defer func() { _ = stmt.Close() }()

	for i, r := range rows {
		if r.DOY < 1 || r.DOY > 366 {
			return 0, fmt.Errorf("row %d: day of year %d out of range", i+1, r.DOY)
		}
		if !finite(r.TMean) || (r.TMin != nil && !finite(*r.TMin)) || (r.TMax != nil && !finite(*r.TMax)) {
			return 0, fmt.Errorf("row %d: temperatures must be finite", i+1)
		}
		if _, err := stmt.ExecContext(ctx,
			uuid.NewString(),
			RoundToGrid(r.Lat, s.gridStep), RoundToGrid(r.Lon, s.gridStep), r.DOY,
			r.TMean, nullable(r.TMin), nullable(r.TMax),
		); err != nil {
			return 0, fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
