package residuals

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/ManuGH/weatherfortune/internal/persistence/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "wf.db"), sqlite.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}

func TestMeanOffset_EmptyIsZero(t *testing.T) {
	s := openStore(t)
	got, err := s.MeanOffset(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}

func TestMeanOffset_Averages(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, 3, 7, 1.0))
	require.NoError(t, s.Add(ctx, 3, 7, 2.0))
	require.NoError(t, s.Add(ctx, 3, 8, 100))
	require.NoError(t, s.Add(ctx, 4, 7, -100))

	got, err := s.MeanOffset(ctx, 3, 7)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, got, 1e-9)
}

func TestMeanOffset_LeadIsCapped(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, 6, MaxLead, -0.8))

	got, err := s.MeanOffset(ctx, 6, 120)
	require.NoError(t, err)
	assert.InDelta(t, -0.8, got, 1e-9)
}

func TestAdd_Validates(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.Add(ctx, 0, 1, 1), ErrInvalidResidual)
	assert.ErrorIs(t, s.Add(ctx, 13, 1, 1), ErrInvalidResidual)
	assert.ErrorIs(t, s.Add(ctx, 1, -1, 1), ErrInvalidResidual)
	assert.ErrorIs(t, s.Add(ctx, 1, MaxLead+1, 1), ErrInvalidResidual)
}

func TestAdd_RejectsNonFinite(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	for _, v := range []float64{math.Inf(1), math.Inf(-1), math.NaN()} {
		assert.ErrorIs(t, s.Add(ctx, 7, 5, v), ErrInvalidResidual, "resid %v", v)
	}

	got, err := s.MeanOffset(ctx, 7, 5)
	require.NoError(t, err)
	assert.Zero(t, got, "nothing was stored")
}

func TestNone(t *testing.T) {
	got, err := None{}.MeanOffset(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Zero(t, got)
}
