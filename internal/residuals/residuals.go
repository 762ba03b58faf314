// Package residuals keeps the observed-minus-predicted history that the
// prediction engine adds back as a bias correction.
package residuals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// DefaultVariable is the only variable the predictor corrects today.
const DefaultVariable = "tmean"

// MaxLead caps the lead time used as a lookup key.
const MaxLead = 30

var ErrInvalidResidual = errors.New("invalid residual")

// Source yields the mean correction for a month and lead time.
type Source interface {
	MeanOffset(ctx context.Context, month, leadDays int) (float64, error)
}

// None always reports a zero correction.
type None struct{}

// MeanOffset implements Source.
func (None) MeanOffset(context.Context, int, int) (float64, error) { return 0, nil }

// Store is the SQLite-backed residual history.
type Store struct {
	db *sql.DB
}

// NewStore wraps db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// MeanOffset averages residuals for (month, lead, tmean). No rows yields 0.
// Lead times beyond MaxLead share the MaxLead bucket.
func (s *Store) MeanOffset(ctx context.Context, month, leadDays int) (float64, error) {
	if leadDays > MaxLead {
		leadDays = MaxLead
	}
	var mean sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT AVG(resid) FROM residuals WHERE month = ? AND lead_days = ? AND variable = ?`,
		month, leadDays, DefaultVariable,
	).Scan(&mean)
	if err != nil {
		return 0, fmt.Errorf("query residuals: %w", err)
	}
	if !mean.Valid {
		return 0, nil
	}
	return mean.Float64, nil
}

// Add records one residual.
func (s *Store) Add(ctx context.Context, month, leadDays int, resid float64) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: month %d not in 1..12", ErrInvalidResidual, month)
	}
	if leadDays < 0 || leadDays > MaxLead {
		return fmt.Errorf("%w: lead %d not in 0..%d", ErrInvalidResidual, leadDays, MaxLead)
	}
	if math.IsNaN(resid) || math.IsInf(resid, 0) {
		return fmt.Errorf("%w: resid %v is not finite", ErrInvalidResidual, resid)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO residuals (id, month, lead_days, variable, resid) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), month, leadDays, DefaultVariable, resid,
	)
	if err != nil {
		return fmt.Errorf("insert residual: %w", err)
	}
	return nil
}
