package prediction

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record is a stored prediction row.
type Record struct {
	Lat        float64
	Lon        float64
	TargetDate string
	P50        float64
	P10        float64
	P90        float64
	Method     string
	Components Explain
}

// NewRecord maps a Result onto the predictions table: p50 is the temperature
// and p10/p90 are the 80% band edges.
func NewRecord(lat, lon float64, target time.Time, r Result) Record {
	return Record{
		Lat:        lat,
		Lon:        lon,
		TargetDate: target.Format(dateLayout),
		P50:        r.Temp,
		P10:        r.Low80,
		P90:        r.High80,
		Method:     r.Explain.Method,
		Components: r.Explain,
	}
}

// Repository stores predictions.
type Repository interface {
	Save(ctx context.Context, rec Record) error
}

// SQLRepository writes to the predictions table.
type SQLRepository struct {
	db *sql.DB
}

// NewSQLRepository wraps db.
func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// Save upserts by (lat, lon, target_date).
func (r *SQLRepository) Save(ctx context.Context, rec Record) error {
	components, err := json.Marshal(rec.Components)
	if err != nil {
		return fmt.Errorf("encode components: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
	INSERT INTO predictions (id, lat, lon, target_date, t_p50, t_p10, t_p90, method, components)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(lat, lon, target_date) DO UPDATE SET
		t_p50 = excluded.t_p50,
		t_p10 = excluded.t_p10,
		t_p90 = excluded.t_p90,
		method = excluded.method,
		components = excluded.components`,
		uuid.NewString(), rec.Lat, rec.Lon, rec.TargetDate,
		rec.P50, rec.P10, rec.P90, rec.Method, string(components),
	)
	if err != nil {
		return fmt.Errorf("upsert prediction: %w", err)
	}
	return nil
}

// Get loads the stored prediction for a point and date.
func (r *SQLRepository) Get(ctx context.Context, lat, lon float64, targetDate string) (Record, bool, error) {
	rec := Record{Lat: lat, Lon: lon, TargetDate: targetDate}
	var components string
	err := r.db.QueryRowContext(ctx, `
	SELECT t_p50, t_p10, t_p90, method, components FROM predictions
	WHERE lat = ? AND lon = ? AND target_date = ?`,
		lat, lon, targetDate,
	).Scan(&rec.P50, &rec.P10, &rec.P90, &rec.Method, &components)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("query prediction: %w", err)
	}
	if err := json.Unmarshal([]byte(components), &rec.Components); err != nil {
		return Record{}, false, fmt.Errorf("decode components: %w", err)
	}
	return rec, true, nil
}
